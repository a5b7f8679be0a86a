package models

import (
	"time"

	"github.com/google/uuid"
)

// Photo is one uploaded image. display_name and analysis_completed_at are
// written only by the batch item processor or by a direct user rename; merges
// elsewhere are last-writer-wins by updated_at.
type Photo struct {
	ID                  uuid.UUID  `db:"id"                    json:"id"`
	OwnerID             uuid.UUID  `db:"owner_id"              json:"owner_id"`
	DisplayName         string     `db:"display_name"          json:"display_name"`
	StoragePath         string     `db:"storage_path"          json:"storage_path"`
	ContentType         string     `db:"content_type"          json:"content_type"`
	SizeBytes           int64      `db:"size_bytes"            json:"size_bytes"`
	AIDescription       *string    `db:"ai_description"        json:"ai_description,omitempty"`
	AITags              []string   `db:"ai_tags"               json:"ai_tags,omitempty"`
	AnalysisCompletedAt *time.Time `db:"analysis_completed_at" json:"analysis_completed_at,omitempty"`
	CreatedAt           time.Time  `db:"created_at"            json:"created_at"`
	UpdatedAt           time.Time  `db:"updated_at"            json:"updated_at"`
}
