// Package jobs is the async batch-analysis subsystem: durable job records,
// the bounded-concurrency worker that drains them, and the per-photo item
// processor.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/photopilot/photopilot/internal/cache"
	"github.com/photopilot/photopilot/internal/feed"
	"github.com/photopilot/photopilot/internal/store"
	"github.com/photopilot/photopilot/pkg/models"
)

// ErrValidation rejects a job request before any job row is created: empty
// item set, or a referenced photo the caller does not own.
var ErrValidation = errors.New("invalid job request")

// Service creates jobs and dispatches them to the worker off the request
// path.
type Service struct {
	store     store.Store
	cache     cache.Cache
	publisher feed.Publisher
	worker    *Worker
}

func NewService(st store.Store, ca cache.Cache, pub feed.Publisher, worker *Worker) *Service {
	return &Service{
		store:     st,
		cache:     ca,
		publisher: pub,
		worker:    worker,
	}
}

// CreateBatchAnalysis validates ownership of every referenced photo, creates
// a pending job, and hands it to the worker in a background goroutine. The
// caller gets the job back immediately.
func (s *Service) CreateBatchAnalysis(ctx context.Context, ownerID uuid.UUID, photoIDs []uuid.UUID, opts models.AnalyzeOptions) (*models.Job, error) {
	if len(photoIDs) == 0 {
		return nil, fmt.Errorf("%w: at least one photo is required", ErrValidation)
	}

	unique := dedupe(photoIDs)
	owned, err := s.store.CountPhotosOwned(ctx, ownerID, unique)
	if err != nil {
		return nil, fmt.Errorf("checking photo ownership: %w", err)
	}
	if owned != len(unique) {
		return nil, fmt.Errorf("%w: %d of %d photos not found for owner", ErrValidation, len(unique)-owned, len(unique))
	}

	now := time.Now().UTC()
	job := &models.Job{
		ID:         uuid.New(),
		OwnerID:    ownerID,
		Kind:       models.JobKindBatchAnalysis,
		Status:     models.JobStatusPending,
		TotalItems: len(unique),
		Input: models.JobInput{
			PhotoIDs: unique,
			Options:  opts,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.store.CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("creating job: %w", err)
	}

	_ = s.cache.SetJobStatus(ctx, job.ID, models.JobStatusPending, jobStatusTTL)
	feed.PublishJob(ctx, s.publisher, models.ChangeOpInsert, job)

	go s.worker.Run(job.ID)

	return job, nil
}

// GetJob returns one job scoped to its owner.
func (s *Service) GetJob(ctx context.Context, id, ownerID uuid.UUID) (*models.Job, error) {
	return s.store.GetJob(ctx, id, ownerID)
}

// ListJobs returns the owner's jobs, newest first.
func (s *Service) ListJobs(ctx context.Context, ownerID uuid.UUID) ([]*models.Job, error) {
	return s.store.ListJobs(ctx, ownerID)
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
