package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	mw "github.com/photopilot/photopilot/internal/api/middleware"
	"github.com/photopilot/photopilot/internal/api/response"
	"github.com/photopilot/photopilot/internal/jobs"
	"github.com/photopilot/photopilot/internal/store"
	"github.com/photopilot/photopilot/pkg/models"
)

// JobService is the interface the job handlers depend on.
type JobService interface {
	CreateBatchAnalysis(ctx context.Context, ownerID uuid.UUID, photoIDs []uuid.UUID, opts models.AnalyzeOptions) (*models.Job, error)
	GetJob(ctx context.Context, id, ownerID uuid.UUID) (*models.Job, error)
	ListJobs(ctx context.Context, ownerID uuid.UUID) ([]*models.Job, error)
}

// jobPayload is the wire shape for a job, with derived progress.
type jobPayload struct {
	*models.Job
	Progress int `json:"progress"`
}

func toJobPayload(j *models.Job) jobPayload {
	return jobPayload{Job: j, Progress: j.Progress()}
}

// NewCreateJobHandler returns an http.HandlerFunc for POST /api/v1/jobs.
// The job is created synchronously; the work itself runs in the background
// and the response carries the pending job snapshot.
func NewCreateJobHandler(svc JobService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, ok := mw.GetOwnerID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing owner", nil)
			return
		}

		var req struct {
			PhotoIDs []uuid.UUID           `json:"photo_ids"`
			Options  models.AnalyzeOptions `json:"options"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}

		if !req.Options.ImproveFilenames && !req.Options.GenerateTags {
			response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR",
				"At least one of improve_filenames or generate_tags must be set", nil)
			return
		}

		job, err := svc.CreateBatchAnalysis(r.Context(), ownerID, req.PhotoIDs, req.Options)
		if err != nil {
			if errors.Is(err, jobs.ErrValidation) {
				response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
				return
			}
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"An unexpected error occurred", nil)
			return
		}

		response.Accepted(w, toJobPayload(job))
	}
}

// NewGetJobHandler returns an http.HandlerFunc for GET /api/v1/jobs/{jobID}.
func NewGetJobHandler(svc JobService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, ok := mw.GetOwnerID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing owner", nil)
			return
		}

		jobID, err := uuid.Parse(chi.URLParam(r, "jobID"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "jobID must be a UUID", nil)
			return
		}

		job, err := svc.GetJob(r.Context(), jobID, ownerID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				response.Error(w, http.StatusNotFound, "NOT_FOUND", "Job not found", nil)
				return
			}
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"An unexpected error occurred", nil)
			return
		}

		response.JSON(w, toJobPayload(job))
	}
}

// NewListJobsHandler returns an http.HandlerFunc for GET /api/v1/jobs,
// newest first.
func NewListJobsHandler(svc JobService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, ok := mw.GetOwnerID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing owner", nil)
			return
		}

		list, err := svc.ListJobs(r.Context(), ownerID)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"An unexpected error occurred", nil)
			return
		}

		payloads := make([]jobPayload, 0, len(list))
		for _, j := range list {
			payloads = append(payloads, toJobPayload(j))
		}
		response.JSON(w, payloads)
	}
}
