package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/photopilot/photopilot/pkg/models"
)

var ErrNotFound = errors.New("resource not found")
var ErrDuplicateKey = errors.New("duplicate key violation")

// ErrConflict is returned when a conditional job transition finds the job in
// a different status than expected, or when a progress append would write a
// second result for the same item. Callers treat it as a no-op signal, not a
// failure.
var ErrConflict = errors.New("state conflict")

// Store is the data access interface. All database operations go through here.
type Store interface {
	Ping(ctx context.Context) error
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetDefaultUser(ctx context.Context) (*models.User, error)

	GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error)
	UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error
	CreateAPIKey(ctx context.Context, key *models.APIKey) error
	ListAPIKeys(ctx context.Context, ownerID uuid.UUID) ([]*models.APIKey, error)
	RevokeAPIKey(ctx context.Context, id uuid.UUID, ownerID uuid.UUID) error

	CreatePhoto(ctx context.Context, photo *models.Photo) error
	GetPhoto(ctx context.Context, id uuid.UUID, ownerID uuid.UUID) (*models.Photo, error)
	ListPhotos(ctx context.Context, ownerID uuid.UUID) ([]*models.Photo, error)
	CountPhotosOwned(ctx context.Context, ownerID uuid.UUID, ids []uuid.UUID) (int, error)
	UpdatePhoto(ctx context.Context, id uuid.UUID, ownerID uuid.UUID, upd PhotoUpdate) (*models.Photo, error)
	DeletePhotos(ctx context.Context, ownerID uuid.UUID, ids []uuid.UUID) error

	CreateJob(ctx context.Context, job *models.Job) error
	GetJob(ctx context.Context, id uuid.UUID, ownerID uuid.UUID) (*models.Job, error)
	ListJobs(ctx context.Context, ownerID uuid.UUID) ([]*models.Job, error)
	// TransitionJob performs a conditional status update: the write happens
	// only if the job is currently in expectedStatus, otherwise ErrConflict.
	// started_at is stamped on entry to processing, completed_at on entry to
	// either terminal status.
	TransitionJob(ctx context.Context, id uuid.UUID, expectedStatus, newStatus string, opts ...JobUpdateOption) (*models.Job, error)
	// AppendJobProgress atomically increments processed_items and appends one
	// item result to output. Safe under concurrent callers for the same job;
	// a second result for the same item yields ErrConflict and no mutation.
	AppendJobProgress(ctx context.Context, id uuid.UUID, result models.ItemResult) (*models.Job, error)
}

// PhotoUpdate carries the fields a photo write may touch. Nil fields are left
// unchanged.
type PhotoUpdate struct {
	DisplayName         *string
	AIDescription       *string
	AITags              []string
	AnalysisCompletedAt *time.Time
}

// Empty reports whether the update would touch nothing.
func (u PhotoUpdate) Empty() bool {
	return u.DisplayName == nil && u.AIDescription == nil && u.AITags == nil && u.AnalysisCompletedAt == nil
}

type jobUpdateParams struct {
	ErrorMessage *string
}

type JobUpdateOption func(*jobUpdateParams)

func WithErrorMessage(msg string) JobUpdateOption {
	return func(p *jobUpdateParams) {
		p.ErrorMessage = &msg
	}
}

// ErrorMessageFromOptions resolves the error message carried by a set of job
// update options, nil when none set one. Store implementations and mocks share
// it so options stay opaque to callers.
func ErrorMessageFromOptions(opts ...JobUpdateOption) *string {
	p := jobUpdateParams{}
	for _, opt := range opts {
		opt(&p)
	}
	return p.ErrorMessage
}
