package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	mw "github.com/photopilot/photopilot/internal/api/middleware"
	"github.com/photopilot/photopilot/internal/api/response"
	"github.com/photopilot/photopilot/internal/assets"
	"github.com/photopilot/photopilot/internal/feed"
	"github.com/photopilot/photopilot/internal/store"
	"github.com/photopilot/photopilot/pkg/models"
)

// NewListPhotosHandler returns an http.HandlerFunc for GET /api/v1/photos,
// newest first.
func NewListPhotosHandler(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, ok := mw.GetOwnerID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing owner", nil)
			return
		}

		photos, err := st.ListPhotos(r.Context(), ownerID)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"An unexpected error occurred", nil)
			return
		}
		response.JSON(w, photos)
	}
}

// NewRegisterPhotoHandler returns an http.HandlerFunc for POST /api/v1/photos.
// The file bytes already live in the asset store; this registers the metadata
// row and announces it on the change feed.
func NewRegisterPhotoHandler(st store.Store, pub feed.Publisher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, ok := mw.GetOwnerID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing owner", nil)
			return
		}

		var req struct {
			DisplayName string `json:"display_name"`
			StoragePath string `json:"storage_path"`
			ContentType string `json:"content_type"`
			SizeBytes   int64  `json:"size_bytes"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}
		if strings.TrimSpace(req.DisplayName) == "" {
			response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "display_name is required", nil)
			return
		}
		if strings.TrimSpace(req.StoragePath) == "" {
			response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "storage_path is required", nil)
			return
		}

		now := time.Now().UTC()
		photo := &models.Photo{
			ID:          uuid.New(),
			OwnerID:     ownerID,
			DisplayName: req.DisplayName,
			StoragePath: req.StoragePath,
			ContentType: req.ContentType,
			SizeBytes:   req.SizeBytes,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if photo.ContentType == "" {
			photo.ContentType = "image/jpeg"
		}

		if err := st.CreatePhoto(r.Context(), photo); err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"An unexpected error occurred", nil)
			return
		}
		feed.PublishPhoto(r.Context(), pub, models.ChangeOpInsert, photo)

		response.Created(w, photo)
	}
}

// NewRenamePhotoHandler returns an http.HandlerFunc for
// PATCH /api/v1/photos/{photoID}. Direct user renames and the batch item
// processor are the only writers of display_name.
func NewRenamePhotoHandler(st store.Store, pub feed.Publisher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, ok := mw.GetOwnerID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing owner", nil)
			return
		}

		photoID, err := uuid.Parse(chi.URLParam(r, "photoID"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "photoID must be a UUID", nil)
			return
		}

		var req struct {
			DisplayName string `json:"display_name"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}
		name := strings.TrimSpace(req.DisplayName)
		if name == "" {
			response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "display_name is required", nil)
			return
		}

		photo, err := st.UpdatePhoto(r.Context(), photoID, ownerID, store.PhotoUpdate{DisplayName: &name})
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				response.Error(w, http.StatusNotFound, "NOT_FOUND", "Photo not found", nil)
				return
			}
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"An unexpected error occurred", nil)
			return
		}
		feed.PublishPhoto(r.Context(), pub, models.ChangeOpUpdate, photo)

		response.JSON(w, photo)
	}
}

// NewDeletePhotosHandler returns an http.HandlerFunc for DELETE /api/v1/photos.
// Rows go first; asset removal is best-effort afterwards, an orphaned blob is
// recoverable garbage while a dangling row is user-visible.
func NewDeletePhotosHandler(st store.Store, ac assets.Client, pub feed.Publisher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, ok := mw.GetOwnerID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing owner", nil)
			return
		}

		var req struct {
			PhotoIDs []uuid.UUID `json:"photo_ids"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}
		if len(req.PhotoIDs) == 0 {
			response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "photo_ids is required", nil)
			return
		}

		var paths []string
		var removed []*models.Photo
		for _, id := range req.PhotoIDs {
			photo, err := st.GetPhoto(r.Context(), id, ownerID)
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			if err != nil {
				response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
					"An unexpected error occurred", nil)
				return
			}
			paths = append(paths, photo.StoragePath)
			removed = append(removed, photo)
		}

		if err := st.DeletePhotos(r.Context(), ownerID, req.PhotoIDs); err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"An unexpected error occurred", nil)
			return
		}

		now := time.Now().UTC()
		for _, photo := range removed {
			photo.UpdatedAt = now
			feed.PublishPhoto(r.Context(), pub, models.ChangeOpDelete, photo)
		}

		if len(paths) > 0 {
			if err := ac.Remove(r.Context(), paths); err != nil {
				slog.Warn("remove assets", "error", err, "owner_id", ownerID)
			}
		}

		response.JSON(w, map[string]int{"deleted": len(removed)})
	}
}
