package syncview

import (
	"github.com/google/uuid"
	"github.com/photopilot/photopilot/pkg/models"
)

// Token is the rollback handle returned by an optimistic mutation. It holds
// the exact pre-mutation snapshot of the one entity the mutation touched.
// Confirm and Rollback are each effective once; later calls are no-ops, so a
// racing feed event can never double-apply.
type Token struct {
	view    *View
	id      uuid.UUID
	prev    models.Photo
	existed bool
	settled bool
}

// AddPhotoOptimistic inserts a provisional photo under a temporary local ID
// (photo.ID, generated by the caller). The entry lives only until the server
// confirms with the authoritative record or the mutation is rolled back; it
// is never persisted.
func (v *View) AddPhotoOptimistic(photo models.Photo) *Token {
	v.mu.Lock()
	defer v.mu.Unlock()

	tok := v.snapshotLocked(photo.ID)
	v.photos[photo.ID] = photo
	v.pending[photo.ID] = true
	v.generation++
	return tok
}

// RenamePhotoOptimistic applies a provisional display name to a cached photo.
func (v *View) RenamePhotoOptimistic(id uuid.UUID, displayName string) *Token {
	v.mu.Lock()
	defer v.mu.Unlock()

	tok := v.snapshotLocked(id)
	if p, ok := v.photos[id]; ok {
		p.DisplayName = displayName
		v.photos[id] = p
	}
	v.pending[id] = true
	v.generation++
	return tok
}

// RemovePhotoOptimistic provisionally removes a cached photo.
func (v *View) RemovePhotoOptimistic(id uuid.UUID) *Token {
	v.mu.Lock()
	defer v.mu.Unlock()

	tok := v.snapshotLocked(id)
	delete(v.photos, id)
	v.pending[id] = true
	v.generation++
	return tok
}

func (v *View) snapshotLocked(id uuid.UUID) *Token {
	tok := &Token{view: v, id: id}
	if prev, ok := v.photos[id]; ok {
		tok.prev = prev
		tok.existed = true
	}
	return tok
}

// Confirm replaces the provisional entry with the server-confirmed record.
// For an optimistic add the temporary ID disappears and the authoritative ID
// takes its place.
func (v *View) Confirm(tok *Token, server models.Photo) {
	if tok == nil {
		return
	}
	v.mu.Lock()
	defer v.mu.Unlock()

	if tok.settled {
		return
	}
	tok.settled = true
	delete(v.pending, tok.id)

	if tok.id != server.ID {
		delete(v.photos, tok.id)
	}
	v.mergePhotoLocked(server)
	v.generation++
}

// ConfirmRemoval settles an optimistic removal the server accepted.
func (v *View) ConfirmRemoval(tok *Token) {
	if tok == nil {
		return
	}
	v.mu.Lock()
	defer v.mu.Unlock()

	if tok.settled {
		return
	}
	tok.settled = true
	delete(v.pending, tok.id)
	delete(v.photos, tok.id)
	v.generation++
}

// Rollback restores the exact pre-mutation snapshot captured when the
// optimistic mutation was applied.
func (v *View) Rollback(tok *Token) {
	if tok == nil {
		return
	}
	v.mu.Lock()
	defer v.mu.Unlock()

	if tok.settled {
		return
	}
	tok.settled = true
	delete(v.pending, tok.id)

	if tok.existed {
		v.photos[tok.id] = tok.prev
	} else {
		delete(v.photos, tok.id)
	}
	v.generation++
}

// mergePhotoLocked upserts a photo, newest server write wins.
func (v *View) mergePhotoLocked(p models.Photo) {
	if cur, ok := v.photos[p.ID]; ok && cur.UpdatedAt.After(p.UpdatedAt) {
		return
	}
	v.photos[p.ID] = p
}
