package assets_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/photopilot/photopilot/internal/assets"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveReadableHandle_Success(t *testing.T) {
	var gotPath string
	var gotExpiry int
	var gotAuth string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/sign", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")

		var req struct {
			Path      string `json:"path"`
			ExpirySec int    `json:"expiry_sec"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		gotPath = req.Path
		gotExpiry = req.ExpirySec

		json.NewEncoder(w).Encode(map[string]string{
			"signed_url": "https://cdn.example/abc?sig=xyz",
		})
	}))
	defer server.Close()

	c := assets.NewHTTPClient(server.URL, "gw-token", 5*time.Second)

	url, err := c.ResolveReadableHandle(context.Background(), "photos/p1.jpg", 10*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example/abc?sig=xyz", url)
	assert.Equal(t, "photos/p1.jpg", gotPath)
	assert.Equal(t, 600, gotExpiry)
	assert.Equal(t, "Bearer gw-token", gotAuth)
}

func TestResolveReadableHandle_ErrorMapping(t *testing.T) {
	tests := []struct {
		status  int
		wantErr error
	}{
		{http.StatusNotFound, assets.ErrAssetMissing},
		{http.StatusForbidden, assets.ErrDenied},
		{http.StatusUnauthorized, assets.ErrDenied},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			c := assets.NewHTTPClient(server.URL, "", 5*time.Second)
			_, err := c.ResolveReadableHandle(context.Background(), "photos/p1.jpg", time.Minute)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestResolveReadableHandle_GatewayDown(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {}))
	server.Close() // nothing listening anymore

	c := assets.NewHTTPClient(server.URL, "", time.Second)
	_, err := c.ResolveReadableHandle(context.Background(), "photos/p1.jpg", time.Minute)
	assert.ErrorIs(t, err, assets.ErrUnreachable)
}

func TestResolveReadableHandle_EmptySignedURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"signed_url": ""})
	}))
	defer server.Close()

	c := assets.NewHTTPClient(server.URL, "", 5*time.Second)
	_, err := c.ResolveReadableHandle(context.Background(), "photos/p1.jpg", time.Minute)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty signed url")
}

func TestRemove(t *testing.T) {
	var gotPaths []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/remove", r.URL.Path)
		var req struct {
			Paths []string `json:"paths"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		gotPaths = req.Paths
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	c := assets.NewHTTPClient(server.URL, "", 5*time.Second)
	require.NoError(t, c.Remove(context.Background(), []string{"photos/a.jpg", "photos/b.jpg"}))
	assert.Equal(t, []string{"photos/a.jpg", "photos/b.jpg"}, gotPaths)
}

func TestRemove_EmptyIsNoOp(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		called = true
	}))
	defer server.Close()

	c := assets.NewHTTPClient(server.URL, "", 5*time.Second)
	require.NoError(t, c.Remove(context.Background(), nil))
	assert.False(t, called)
}
