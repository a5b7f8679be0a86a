package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	mw "github.com/photopilot/photopilot/internal/api/middleware"
	"github.com/photopilot/photopilot/internal/api/response"
	"github.com/photopilot/photopilot/pkg/models"
)

const heartbeatInterval = 15 * time.Second

// FeedSubscriber is the interface the events handler depends on.
type FeedSubscriber interface {
	Subscribe(ownerID uuid.UUID) (<-chan models.ChangeEvent, func())
}

// NewEventsHandler returns an http.HandlerFunc for GET /api/v1/events: a
// server-sent event stream of the caller's change feed. The subscription is
// torn down when the client disconnects; heartbeats keep intermediaries from
// reaping the idle connection.
func NewEventsHandler(sub FeedSubscriber) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, ok := mw.GetOwnerID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing owner", nil)
			return
		}

		flusher, ok := w.(http.Flusher)
		if !ok {
			response.Error(w, http.StatusInternalServerError, "STREAMING_UNSUPPORTED",
				"Response writer does not support streaming", nil)
			return
		}

		events, cancel := sub.Subscribe(ownerID)
		defer cancel()

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)

		fmt.Fprint(w, "event: connected\ndata: {}\n\n")
		flusher.Flush()

		heartbeat := time.NewTicker(heartbeatInterval)
		defer heartbeat.Stop()

		for {
			select {
			case <-r.Context().Done():
				return
			case <-heartbeat.C:
				fmt.Fprint(w, ": ping\n\n")
				flusher.Flush()
			case ev, open := <-events:
				if !open {
					return
				}
				payload, err := json.Marshal(ev)
				if err != nil {
					continue
				}
				fmt.Fprintf(w, "event: change\ndata: %s\n\n", payload)
				flusher.Flush()
			}
		}
	}
}
