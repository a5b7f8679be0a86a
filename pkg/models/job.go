package models

import (
	"math"
	"time"

	"github.com/google/uuid"
)

const (
	JobStatusPending    = "pending"
	JobStatusProcessing = "processing"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
)

// JobKindBatchAnalysis is the only job kind today: per-photo vision inference
// over a set of photos (rename suggestions, tags, descriptions).
const JobKindBatchAnalysis = "batch_analysis"

// Job tracks one async batch operation. The API returns a job_id on
// POST /api/v1/jobs; clients follow progress through the change feed or by
// polling GET /api/v1/jobs/{job_id} until status is completed or failed.
type Job struct {
	ID             uuid.UUID    `db:"id"              json:"id"`
	OwnerID        uuid.UUID    `db:"owner_id"        json:"owner_id"`
	Kind           string       `db:"kind"            json:"kind"`
	Status         string       `db:"status"          json:"status"`
	TotalItems     int          `db:"total_items"     json:"total_items"`
	ProcessedItems int          `db:"processed_items" json:"processed_items"`
	Input          JobInput     `db:"input"           json:"input"`
	Output         []ItemResult `db:"output"          json:"output"`
	ErrorMessage   *string      `db:"error_message"   json:"error_message,omitempty"`
	StartedAt      *time.Time   `db:"started_at"      json:"started_at,omitempty"`
	CompletedAt    *time.Time   `db:"completed_at"    json:"completed_at,omitempty"`
	CreatedAt      time.Time    `db:"created_at"      json:"created_at"`
	UpdatedAt      time.Time    `db:"updated_at"      json:"updated_at"`
}

// Progress returns completion as a 0-100 integer.
func (j *Job) Progress() int {
	if j.TotalItems == 0 {
		return 0
	}
	return int(math.Round(float64(j.ProcessedItems) / float64(j.TotalItems) * 100))
}

// Terminal reports whether the job has reached an absorbing state.
func (j *Job) Terminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}

// JobInput is the immutable payload captured at job creation.
type JobInput struct {
	PhotoIDs []uuid.UUID    `json:"photo_ids"`
	Options  AnalyzeOptions `json:"options"`
}

// AnalyzeOptions selects which analysis sub-steps run for each photo.
type AnalyzeOptions struct {
	ImproveFilenames bool `json:"improve_filenames"`
	GenerateTags     bool `json:"generate_tags"`
}

// ItemResult records the outcome of one photo within a job. Success and
// failure are both terminal for the item; a job can complete with individual
// item failures in its output.
type ItemResult struct {
	ItemID       uuid.UUID         `json:"item_id"`
	Succeeded    bool              `json:"succeeded"`
	Error        string            `json:"error,omitempty"`
	ResultFields map[string]string `json:"result_fields,omitempty"`
}
