// Package assets talks to the object-storage gateway that holds photo files.
// PhotoPilot never reads image bytes itself; it only asks the gateway for
// time-boxed signed read handles that downstream services (the vision
// provider) can fetch.
package assets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"
)

// Sentinel errors for asset gateway failures.
var (
	ErrUnreachable  = errors.New("asset gateway unreachable")
	ErrDenied       = errors.New("asset access denied")
	ErrAssetMissing = errors.New("asset not found")
)

// Client is the interface for resolving and removing stored assets.
type Client interface {
	// ResolveReadableHandle returns a signed URL valid for ttl. Callers must
	// treat expiry as a hard deadline and fail rather than wait it out.
	ResolveReadableHandle(ctx context.Context, path string, ttl time.Duration) (string, error)
	Remove(ctx context.Context, paths []string) error
}

// HTTPClient implements Client against the gateway's signing API.
type HTTPClient struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewHTTPClient creates a new asset gateway client.
func NewHTTPClient(baseURL, token string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: timeout},
	}
}

type signRequest struct {
	Path      string `json:"path"`
	ExpirySec int    `json:"expiry_sec"`
}

type signResponse struct {
	SignedURL string `json:"signed_url"`
}

func (c *HTTPClient) ResolveReadableHandle(ctx context.Context, path string, ttl time.Duration) (string, error) {
	body, err := json.Marshal(signRequest{Path: path, ExpirySec: int(ttl.Seconds())})
	if err != nil {
		return "", fmt.Errorf("marshal sign request: %w", err)
	}

	u := c.baseURL + "/v1/sign"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u, strings.NewReader(string(body)))
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}
	c.setHeaders(httpReq)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", classifyError(err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return "", ErrAssetMissing
	case http.StatusForbidden, http.StatusUnauthorized:
		return "", ErrDenied
	default:
		return "", fmt.Errorf("asset gateway: unexpected status %d", resp.StatusCode)
	}

	var signResp signResponse
	if err := json.NewDecoder(resp.Body).Decode(&signResp); err != nil {
		return "", fmt.Errorf("decoding sign response: %w", err)
	}
	if signResp.SignedURL == "" {
		return "", fmt.Errorf("asset gateway: empty signed url")
	}
	return signResp.SignedURL, nil
}

type removeRequest struct {
	Paths []string `json:"paths"`
}

func (c *HTTPClient) Remove(ctx context.Context, paths []string) error {
	if len(paths) == 0 {
		return nil
	}

	body, err := json.Marshal(removeRequest{Paths: paths})
	if err != nil {
		return fmt.Errorf("marshal remove request: %w", err)
	}

	u := c.baseURL + "/v1/remove"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u, strings.NewReader(string(body)))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	c.setHeaders(httpReq)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return classifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("asset gateway: unexpected status %d", resp.StatusCode)
	}
	return nil
}

func (c *HTTPClient) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

func classifyError(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: timeout: %v", ErrUnreachable, err)
	}
	return fmt.Errorf("%w: %v", ErrUnreachable, err)
}

var _ Client = (*HTTPClient)(nil)
