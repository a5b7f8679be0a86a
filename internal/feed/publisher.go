// Package feed is the change notification channel: row-level change events
// for jobs and photos, published per owner over Redis Pub/Sub and fanned out
// to in-process subscribers. Delivery is at-least-once and best-effort;
// clients self-heal through their fallback poll.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/photopilot/photopilot/internal/cache"
	"github.com/photopilot/photopilot/pkg/models"
	"github.com/redis/go-redis/v9"
)

// Publisher emits change events for one owner's subscribers.
type Publisher interface {
	Publish(ctx context.Context, ownerID uuid.UUID, event models.ChangeEvent) error
}

// RedisPublisher implements Publisher on Redis Pub/Sub.
type RedisPublisher struct {
	client *redis.Client
}

func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{client: client}
}

func (p *RedisPublisher) Publish(ctx context.Context, ownerID uuid.UUID, event models.ChangeEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal change event: %w", err)
	}
	if err := p.client.Publish(ctx, cache.FeedChannel(ownerID), payload).Err(); err != nil {
		return fmt.Errorf("publish change event: %w", err)
	}
	return nil
}

// PublishJob pushes a job row event. Publish failures are logged and
// swallowed: the feed is a best-effort channel and the durable row is already
// written.
func PublishJob(ctx context.Context, p Publisher, op string, job *models.Job) {
	row, err := json.Marshal(job)
	if err != nil {
		slog.Error("marshal job row for feed", "error", err, "job_id", job.ID)
		return
	}
	ev := models.ChangeEvent{
		Table:      models.ChangeTableJobs,
		Op:         op,
		Row:        row,
		ServerTime: job.UpdatedAt,
	}
	if err := p.Publish(ctx, job.OwnerID, ev); err != nil {
		slog.Warn("publish job change event", "error", err, "job_id", job.ID)
	}
}

// PublishPhoto pushes a photo row event.
func PublishPhoto(ctx context.Context, p Publisher, op string, photo *models.Photo) {
	row, err := json.Marshal(photo)
	if err != nil {
		slog.Error("marshal photo row for feed", "error", err, "photo_id", photo.ID)
		return
	}
	ev := models.ChangeEvent{
		Table:      models.ChangeTablePhotos,
		Op:         op,
		Row:        row,
		ServerTime: photo.UpdatedAt,
	}
	if err := p.Publish(ctx, photo.OwnerID, ev); err != nil {
		slog.Warn("publish photo change event", "error", err, "photo_id", photo.ID)
	}
}

var _ Publisher = (*RedisPublisher)(nil)
