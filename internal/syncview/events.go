package syncview

import (
	"log/slog"

	"github.com/photopilot/photopilot/pkg/models"
)

// OnFeedEvent merges one change-feed event into the cache. Upserts are
// keyed by entity ID and guarded by server timestamp, so at-least-once and
// out-of-order delivery are both harmless. Events for an entity with an
// in-flight optimistic mutation are ignored: Confirm/Rollback carry the
// authoritative outcome, and a later fetch supersedes anything missed.
func (v *View) OnFeedEvent(ev models.ChangeEvent) {
	switch ev.Table {
	case models.ChangeTablePhotos:
		v.onPhotoEvent(ev)
	case models.ChangeTableJobs:
		v.onJobEvent(ev)
	default:
		slog.Debug("ignoring change event for unknown table", "table", ev.Table)
	}
}

func (v *View) onPhotoEvent(ev models.ChangeEvent) {
	var p models.Photo
	if ev.Op != models.ChangeOpDelete || len(ev.Row) > 0 {
		if err := ev.DecodeRow(&p); err != nil {
			slog.Warn("malformed photo change event", "error", err)
			return
		}
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if v.pending[p.ID] {
		return
	}

	switch ev.Op {
	case models.ChangeOpInsert, models.ChangeOpUpdate:
		v.mergePhotoLocked(p)
	case models.ChangeOpDelete:
		// A delete for an ID not in cache is a no-op.
		delete(v.photos, p.ID)
	default:
		return
	}
	v.generation++
}

func (v *View) onJobEvent(ev models.ChangeEvent) {
	var j models.Job
	if err := ev.DecodeRow(&j); err != nil {
		slog.Warn("malformed job change event", "error", err)
		return
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	switch ev.Op {
	case models.ChangeOpInsert, models.ChangeOpUpdate:
		v.mergeJobLocked(j)
	case models.ChangeOpDelete:
		delete(v.jobs, j.ID)
	default:
		return
	}
	v.generation++
}
