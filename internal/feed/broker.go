package feed

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/photopilot/photopilot/internal/cache"
	"github.com/photopilot/photopilot/pkg/models"
	"github.com/redis/go-redis/v9"
)

const defaultSubscriberBuffer = 64

// Broker fans Redis Pub/Sub change events out to in-process subscribers,
// one upstream subscription per owner regardless of subscriber count.
type Broker struct {
	client *redis.Client

	mu     sync.Mutex
	owners map[uuid.UUID]*ownerHub
}

type ownerHub struct {
	pubsub *redis.PubSub
	cancel context.CancelFunc
	subs   map[int]chan models.ChangeEvent
	nextID int
}

func NewBroker(client *redis.Client) *Broker {
	return &Broker{
		client: client,
		owners: make(map[uuid.UUID]*ownerHub),
	}
}

// Subscribe registers a subscriber for one owner's change events. The
// returned cancel func is idempotent and does not disturb other subscribers;
// the upstream Redis subscription closes when the last subscriber leaves.
// Events are dropped for subscribers that fall behind — the fallback poll
// covers the gap.
func (b *Broker) Subscribe(ownerID uuid.UUID) (<-chan models.ChangeEvent, func()) {
	b.mu.Lock()
	hub, ok := b.owners[ownerID]
	if !ok {
		ctx, cancel := context.WithCancel(context.Background())
		hub = &ownerHub{
			pubsub: b.client.Subscribe(ctx, cache.FeedChannel(ownerID)),
			cancel: cancel,
			subs:   make(map[int]chan models.ChangeEvent),
		}
		b.owners[ownerID] = hub
		go b.pump(ctx, ownerID, hub)
	}
	id := hub.nextID
	hub.nextID++
	ch := make(chan models.ChangeEvent, defaultSubscriberBuffer)
	hub.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.unsubscribe(ownerID, id)
		})
	}
	return ch, cancel
}

func (b *Broker) unsubscribe(ownerID uuid.UUID, id int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	hub, ok := b.owners[ownerID]
	if !ok {
		return
	}
	ch, ok := hub.subs[id]
	if !ok {
		return
	}
	delete(hub.subs, id)
	close(ch)

	if len(hub.subs) == 0 {
		hub.cancel()
		_ = hub.pubsub.Close()
		delete(b.owners, ownerID)
	}
}

// Close tears down all owner subscriptions.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for ownerID, hub := range b.owners {
		for id, ch := range hub.subs {
			delete(hub.subs, id)
			close(ch)
		}
		hub.cancel()
		_ = hub.pubsub.Close()
		delete(b.owners, ownerID)
	}
}

func (b *Broker) pump(ctx context.Context, ownerID uuid.UUID, hub *ownerHub) {
	msgs := hub.pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			var ev models.ChangeEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				slog.Warn("malformed change event", "error", err, "owner_id", ownerID)
				continue
			}
			b.mu.Lock()
			for _, ch := range hub.subs {
				select {
				case ch <- ev:
				default:
					// Subscriber is not draining; drop rather than block
					// the fan-out.
				}
			}
			b.mu.Unlock()
		}
	}
}
