package models

import (
	"encoding/json"
	"time"
)

// Change feed operations.
const (
	ChangeOpInsert = "insert"
	ChangeOpUpdate = "update"
	ChangeOpDelete = "delete"
)

// Change feed tables.
const (
	ChangeTableJobs   = "jobs"
	ChangeTablePhotos = "photos"
)

// ChangeEvent is one row-level change pushed to subscribed clients. Delivery
// is at-least-once and ordered per row, not globally; consumers must merge
// idempotently, comparing ServerTime for last-writer-wins.
type ChangeEvent struct {
	Table      string          `json:"table"`
	Op         string          `json:"op"`
	Row        json.RawMessage `json:"row"`
	ServerTime time.Time       `json:"server_time"`
}

// DecodeRow unmarshals the event row into dst (a *Job or *Photo).
func (e ChangeEvent) DecodeRow(dst any) error {
	return json.Unmarshal(e.Row, dst)
}
