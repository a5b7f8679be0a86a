// Package syncview is the client-side sync cache: an in-memory, per-owner
// view of photos and jobs that merges change-feed events, applies optimistic
// local mutations, and reconciles them against server-confirmed state. A
// fallback poll keeps the view converging when the feed is silent.
package syncview

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/photopilot/photopilot/pkg/models"
)

const defaultStaleAfter = 5 * time.Minute

// Fetcher is the server read surface the view refreshes from.
// store.Store satisfies it.
type Fetcher interface {
	ListPhotos(ctx context.Context, ownerID uuid.UUID) ([]*models.Photo, error)
	ListJobs(ctx context.Context, ownerID uuid.UUID) ([]*models.Job, error)
}

// Subscriber hands out change-feed subscriptions. feed.Broker satisfies it.
type Subscriber interface {
	Subscribe(ownerID uuid.UUID) (<-chan models.ChangeEvent, func())
}

// View is one owner's sync cache. All state lives behind a single mutex;
// callers never observe partially applied mutations. Independent View
// instances do not share state, so tests can construct as many as they want.
type View struct {
	ownerID      uuid.UUID
	fetcher      Fetcher
	feed         Subscriber
	pollInterval time.Duration
	staleAfter   time.Duration

	mu          sync.Mutex
	photos      map[uuid.UUID]models.Photo
	jobs        map[uuid.UUID]models.Job
	pending     map[uuid.UUID]bool // entity IDs with an in-flight optimistic mutation
	generation  uint64
	fetched     bool
	lastRefresh time.Time

	lifecycleMu sync.Mutex
	unsubscribe func()
	stopPoll    context.CancelFunc
	wg          sync.WaitGroup
}

// Config wires a View.
type Config struct {
	OwnerID      uuid.UUID
	Fetcher      Fetcher
	Feed         Subscriber
	PollInterval time.Duration
	StaleAfter   time.Duration
}

func New(cfg Config) *View {
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	staleAfter := cfg.StaleAfter
	if staleAfter <= 0 {
		staleAfter = defaultStaleAfter
	}
	return &View{
		ownerID:      cfg.OwnerID,
		fetcher:      cfg.Fetcher,
		feed:         cfg.Feed,
		pollInterval: pollInterval,
		staleAfter:   staleAfter,
		photos:       make(map[uuid.UUID]models.Photo),
		jobs:         make(map[uuid.UUID]models.Job),
		pending:      make(map[uuid.UUID]bool),
	}
}

// Start subscribes to the change feed and starts the fallback poll loop.
// Calling Start on a started view is a no-op.
func (v *View) Start() {
	v.lifecycleMu.Lock()
	defer v.lifecycleMu.Unlock()

	if v.unsubscribe != nil {
		return
	}

	events, cancel := v.feed.Subscribe(v.ownerID)
	v.unsubscribe = cancel

	pollCtx, stopPoll := context.WithCancel(context.Background())
	v.stopPoll = stopPoll

	v.wg.Add(2)
	go func() {
		defer v.wg.Done()
		for ev := range events {
			v.OnFeedEvent(ev)
		}
	}()
	go func() {
		defer v.wg.Done()
		v.pollLoop(pollCtx)
	}()
}

// Stop unsubscribes from the feed and stops the poll loop. Safe to call
// redundantly and on a never-started view.
func (v *View) Stop() {
	v.lifecycleMu.Lock()
	defer v.lifecycleMu.Unlock()

	if v.unsubscribe == nil {
		return
	}
	v.unsubscribe()
	v.stopPoll()
	v.unsubscribe = nil
	v.stopPoll = nil
	v.wg.Wait()
}

// pollLoop is the backstop against missed or delayed feed events: while any
// job is non-terminal it re-fetches the job list every tick. With no active
// job a tick touches only local state, so the backstop costs nothing at rest.
func (v *View) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(v.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !v.anyJobActive() {
				continue
			}
			if err := v.refreshJobs(ctx); err != nil {
				slog.Warn("fallback poll failed", "error", err, "owner_id", v.ownerID)
			}
		}
	}
}

func (v *View) anyJobActive() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, j := range v.jobs {
		if !j.Terminal() {
			return true
		}
	}
	return false
}

// Fetch returns the current photo snapshot. A warm cache answers immediately
// and refreshes in the background (stale-while-revalidate); a cold or expired
// cache blocks on the first load.
func (v *View) Fetch(ctx context.Context) ([]models.Photo, error) {
	v.mu.Lock()
	warm := v.fetched && time.Since(v.lastRefresh) < v.staleAfter
	v.mu.Unlock()

	if !warm {
		if err := v.refresh(ctx); err != nil {
			return nil, err
		}
		return v.Photos(), nil
	}

	snapshot := v.Photos()
	go func() {
		if err := v.refresh(context.Background()); err != nil {
			slog.Warn("background refresh failed", "error", err, "owner_id", v.ownerID)
		}
	}()
	return snapshot, nil
}

// refresh replaces the cached photo and job state with the server's, keeping
// entities that have an in-flight optimistic mutation untouched.
func (v *View) refresh(ctx context.Context) error {
	photos, err := v.fetcher.ListPhotos(ctx, v.ownerID)
	if err != nil {
		return err
	}
	jobs, err := v.fetcher.ListJobs(ctx, v.ownerID)
	if err != nil {
		return err
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	fresh := make(map[uuid.UUID]models.Photo, len(photos))
	for _, p := range photos {
		fresh[p.ID] = *p
	}
	// Carry provisional entries and shield pending entities from the fetch.
	for id := range v.pending {
		if cur, ok := v.photos[id]; ok {
			fresh[id] = cur
		} else {
			delete(fresh, id)
		}
	}
	v.photos = fresh

	for _, j := range jobs {
		v.mergeJobLocked(*j)
	}

	v.fetched = true
	v.lastRefresh = time.Now()
	v.generation++
	return nil
}

func (v *View) refreshJobs(ctx context.Context) error {
	jobs, err := v.fetcher.ListJobs(ctx, v.ownerID)
	if err != nil {
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, j := range jobs {
		v.mergeJobLocked(*j)
	}
	v.generation++
	return nil
}

// mergeJobLocked upserts a job, newest server write wins. Idempotent: the
// poll and the feed can deliver the same state in any order without flicker.
func (v *View) mergeJobLocked(j models.Job) {
	if cur, ok := v.jobs[j.ID]; ok && cur.UpdatedAt.After(j.UpdatedAt) {
		return
	}
	v.jobs[j.ID] = j
}

// Photos returns the cached photos, newest first.
func (v *View) Photos() []models.Photo {
	v.mu.Lock()
	defer v.mu.Unlock()

	out := make([]models.Photo, 0, len(v.photos))
	for _, p := range v.photos {
		out = append(out, p)
	}
	sort.Slice(out, func(i, k int) bool {
		if out[i].CreatedAt.Equal(out[k].CreatedAt) {
			return out[i].ID.String() > out[k].ID.String()
		}
		return out[i].CreatedAt.After(out[k].CreatedAt)
	})
	return out
}

// Jobs returns the cached jobs, newest first.
func (v *View) Jobs() []models.Job {
	v.mu.Lock()
	defer v.mu.Unlock()

	out := make([]models.Job, 0, len(v.jobs))
	for _, j := range v.jobs {
		out = append(out, j)
	}
	sort.Slice(out, func(i, k int) bool {
		if out[i].CreatedAt.Equal(out[k].CreatedAt) {
			return out[i].ID.String() > out[k].ID.String()
		}
		return out[i].CreatedAt.After(out[k].CreatedAt)
	})
	return out
}

// Generation returns the version stamp, bumped on every applied change.
func (v *View) Generation() uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.generation
}

// Invalidate drops all cached state. The next Fetch reloads from the server.
func (v *View) Invalidate() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.photos = make(map[uuid.UUID]models.Photo)
	v.jobs = make(map[uuid.UUID]models.Job)
	v.fetched = false
	v.generation++
}
