package models

import (
	"time"

	"github.com/google/uuid"
)

// User is the owning principal for photos, jobs, and API keys. All reads and
// writes are scoped to an owner; authentication itself lives in an external
// identity service, this row only anchors ownership.
type User struct {
	ID          uuid.UUID `db:"id"           json:"id"`
	Email       string    `db:"email"        json:"email"`
	DisplayName string    `db:"display_name" json:"display_name"`
	CreatedAt   time.Time `db:"created_at"   json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"   json:"updated_at"`
}
