package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	mw "github.com/photopilot/photopilot/internal/api/middleware"
	"github.com/photopilot/photopilot/internal/jobs"
	"github.com/photopilot/photopilot/internal/store"
	"github.com/photopilot/photopilot/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockJobService struct {
	createFunc func(ctx context.Context, ownerID uuid.UUID, photoIDs []uuid.UUID, opts models.AnalyzeOptions) (*models.Job, error)
	getFunc    func(ctx context.Context, id, ownerID uuid.UUID) (*models.Job, error)
	listFunc   func(ctx context.Context, ownerID uuid.UUID) ([]*models.Job, error)
}

func (m *mockJobService) CreateBatchAnalysis(ctx context.Context, ownerID uuid.UUID, photoIDs []uuid.UUID, opts models.AnalyzeOptions) (*models.Job, error) {
	return m.createFunc(ctx, ownerID, photoIDs, opts)
}

func (m *mockJobService) GetJob(ctx context.Context, id, ownerID uuid.UUID) (*models.Job, error) {
	return m.getFunc(ctx, id, ownerID)
}

func (m *mockJobService) ListJobs(ctx context.Context, ownerID uuid.UUID) ([]*models.Job, error) {
	return m.listFunc(ctx, ownerID)
}

// authed attaches an owner identity the way the auth middleware would.
func authed(r *http.Request, ownerID uuid.UUID) *http.Request {
	return r.WithContext(mw.SetOwnerID(r.Context(), ownerID))
}

func decodeData(t *testing.T, body *bytes.Buffer, dst any) {
	t.Helper()
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(body.Bytes(), &env))
	require.NoError(t, json.Unmarshal(env.Data, dst))
}

func errorCode(t *testing.T, body *bytes.Buffer) string {
	t.Helper()
	var env struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(body.Bytes(), &env))
	return env.Error.Code
}

// --- create ---

func TestCreateJobHandler_Accepted(t *testing.T) {
	ownerID := uuid.New()
	now := time.Now().UTC()
	svc := &mockJobService{
		createFunc: func(_ context.Context, gotOwner uuid.UUID, photoIDs []uuid.UUID, opts models.AnalyzeOptions) (*models.Job, error) {
			assert.Equal(t, ownerID, gotOwner)
			assert.Len(t, photoIDs, 2)
			assert.True(t, opts.GenerateTags)
			return &models.Job{
				ID: uuid.New(), OwnerID: gotOwner, Kind: models.JobKindBatchAnalysis,
				Status: models.JobStatusPending, TotalItems: 2,
				Input:     models.JobInput{PhotoIDs: photoIDs, Options: opts},
				CreatedAt: now, UpdatedAt: now,
			}, nil
		},
	}

	body := fmt.Sprintf(`{"photo_ids": [%q, %q], "options": {"generate_tags": true}}`,
		uuid.New(), uuid.New())
	req := authed(httptest.NewRequest(http.MethodPost, "/api/v1/jobs", bytes.NewBufferString(body)), ownerID)
	rec := httptest.NewRecorder()

	NewCreateJobHandler(svc)(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	var got struct {
		Status   string `json:"status"`
		Progress int    `json:"progress"`
	}
	decodeData(t, rec.Body, &got)
	assert.Equal(t, models.JobStatusPending, got.Status)
	assert.Equal(t, 0, got.Progress)
}

func TestCreateJobHandler_RequiresAnOption(t *testing.T) {
	svc := &mockJobService{
		createFunc: func(_ context.Context, _ uuid.UUID, _ []uuid.UUID, _ models.AnalyzeOptions) (*models.Job, error) {
			t.Fatal("service must not be called")
			return nil, nil
		},
	}

	body := fmt.Sprintf(`{"photo_ids": [%q], "options": {}}`, uuid.New())
	req := authed(httptest.NewRequest(http.MethodPost, "/api/v1/jobs", bytes.NewBufferString(body)), uuid.New())
	rec := httptest.NewRecorder()

	NewCreateJobHandler(svc)(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", errorCode(t, rec.Body))
}

func TestCreateJobHandler_ValidationError(t *testing.T) {
	svc := &mockJobService{
		createFunc: func(_ context.Context, _ uuid.UUID, _ []uuid.UUID, _ models.AnalyzeOptions) (*models.Job, error) {
			return nil, fmt.Errorf("%w: 1 of 1 photos not found for owner", jobs.ErrValidation)
		},
	}

	body := fmt.Sprintf(`{"photo_ids": [%q], "options": {"improve_filenames": true}}`, uuid.New())
	req := authed(httptest.NewRequest(http.MethodPost, "/api/v1/jobs", bytes.NewBufferString(body)), uuid.New())
	rec := httptest.NewRecorder()

	NewCreateJobHandler(svc)(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", errorCode(t, rec.Body))
}

func TestCreateJobHandler_BadJSON(t *testing.T) {
	req := authed(httptest.NewRequest(http.MethodPost, "/api/v1/jobs", bytes.NewBufferString("{nope")), uuid.New())
	rec := httptest.NewRecorder()

	NewCreateJobHandler(&mockJobService{})(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_REQUEST", errorCode(t, rec.Body))
}

func TestCreateJobHandler_NoOwner(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/jobs", bytes.NewBufferString(`{}`))
	rec := httptest.NewRecorder()

	NewCreateJobHandler(&mockJobService{})(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

// --- get ---

func newJobRouter(svc JobService) http.Handler {
	r := chi.NewRouter()
	r.Get("/api/v1/jobs/{jobID}", NewGetJobHandler(svc))
	return r
}

func TestGetJobHandler_Found(t *testing.T) {
	ownerID := uuid.New()
	jobID := uuid.New()
	now := time.Now().UTC()
	svc := &mockJobService{
		getFunc: func(_ context.Context, id, gotOwner uuid.UUID) (*models.Job, error) {
			assert.Equal(t, jobID, id)
			assert.Equal(t, ownerID, gotOwner)
			return &models.Job{
				ID: id, OwnerID: gotOwner, Kind: models.JobKindBatchAnalysis,
				Status: models.JobStatusProcessing, TotalItems: 4, ProcessedItems: 3,
				CreatedAt: now, UpdatedAt: now,
			}, nil
		},
	}

	req := authed(httptest.NewRequest(http.MethodGet, "/api/v1/jobs/"+jobID.String(), nil), ownerID)
	rec := httptest.NewRecorder()
	newJobRouter(svc).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var got struct {
		Status   string `json:"status"`
		Progress int    `json:"progress"`
	}
	decodeData(t, rec.Body, &got)
	assert.Equal(t, models.JobStatusProcessing, got.Status)
	assert.Equal(t, 75, got.Progress)
}

func TestGetJobHandler_NotFound(t *testing.T) {
	svc := &mockJobService{
		getFunc: func(_ context.Context, _, _ uuid.UUID) (*models.Job, error) {
			return nil, store.ErrNotFound
		},
	}

	req := authed(httptest.NewRequest(http.MethodGet, "/api/v1/jobs/"+uuid.NewString(), nil), uuid.New())
	rec := httptest.NewRecorder()
	newJobRouter(svc).ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", errorCode(t, rec.Body))
}

func TestGetJobHandler_BadUUID(t *testing.T) {
	req := authed(httptest.NewRequest(http.MethodGet, "/api/v1/jobs/not-a-uuid", nil), uuid.New())
	rec := httptest.NewRecorder()
	newJobRouter(&mockJobService{}).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// --- list ---

func TestListJobsHandler(t *testing.T) {
	now := time.Now().UTC()
	svc := &mockJobService{
		listFunc: func(_ context.Context, ownerID uuid.UUID) ([]*models.Job, error) {
			return []*models.Job{
				{ID: uuid.New(), OwnerID: ownerID, Status: models.JobStatusCompleted,
					TotalItems: 2, ProcessedItems: 2, CreatedAt: now, UpdatedAt: now},
				{ID: uuid.New(), OwnerID: ownerID, Status: models.JobStatusPending,
					TotalItems: 1, CreatedAt: now, UpdatedAt: now},
			}, nil
		},
	}

	req := authed(httptest.NewRequest(http.MethodGet, "/api/v1/jobs", nil), uuid.New())
	rec := httptest.NewRecorder()
	NewListJobsHandler(svc)(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var got []struct {
		Progress int `json:"progress"`
	}
	decodeData(t, rec.Body, &got)
	require.Len(t, got, 2)
	assert.Equal(t, 100, got[0].Progress)
	assert.Equal(t, 0, got[1].Progress)
}
