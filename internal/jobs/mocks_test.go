package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/photopilot/photopilot/internal/store"
	"github.com/photopilot/photopilot/pkg/models"
)

// --- store mock ---

// mockStore is an in-memory store.Store with the same conditional-transition
// and duplicate-append semantics as the Postgres implementation.
type mockStore struct {
	mu          sync.Mutex
	jobs        map[uuid.UUID]*models.Job
	photos      map[uuid.UUID]*models.Photo
	transitions []string // "pending->processing" etc., in order

	appendErr     error
	transitionErr error
}

func newMockStore() *mockStore {
	return &mockStore{
		jobs:   make(map[uuid.UUID]*models.Job),
		photos: make(map[uuid.UUID]*models.Photo),
	}
}

func (s *mockStore) Ping(_ context.Context) error { return nil }
func (s *mockStore) GetUser(_ context.Context, _ uuid.UUID) (*models.User, error) {
	return nil, store.ErrNotFound
}
func (s *mockStore) GetDefaultUser(_ context.Context) (*models.User, error) { return nil, nil }
func (s *mockStore) GetAPIKeyByPrefix(_ context.Context, _ string) ([]*models.APIKey, error) {
	return nil, nil
}
func (s *mockStore) UpdateAPIKeyLastUsed(_ context.Context, _ uuid.UUID) error { return nil }
func (s *mockStore) CreateAPIKey(_ context.Context, _ *models.APIKey) error   { return nil }
func (s *mockStore) ListAPIKeys(_ context.Context, _ uuid.UUID) ([]*models.APIKey, error) {
	return nil, nil
}
func (s *mockStore) RevokeAPIKey(_ context.Context, _ uuid.UUID, _ uuid.UUID) error { return nil }

func (s *mockStore) CreatePhoto(_ context.Context, photo *models.Photo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *photo
	s.photos[photo.ID] = &cp
	return nil
}

func (s *mockStore) GetPhoto(_ context.Context, id, ownerID uuid.UUID) (*models.Photo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.photos[id]
	if !ok || p.OwnerID != ownerID {
		return nil, store.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *mockStore) ListPhotos(_ context.Context, ownerID uuid.UUID) ([]*models.Photo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Photo
	for _, p := range s.photos {
		if p.OwnerID == ownerID {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *mockStore) CountPhotosOwned(_ context.Context, ownerID uuid.UUID, ids []uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, id := range ids {
		if p, ok := s.photos[id]; ok && p.OwnerID == ownerID {
			count++
		}
	}
	return count, nil
}

func (s *mockStore) UpdatePhoto(_ context.Context, id, ownerID uuid.UUID, upd store.PhotoUpdate) (*models.Photo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.photos[id]
	if !ok || p.OwnerID != ownerID {
		return nil, store.ErrNotFound
	}
	if upd.DisplayName != nil {
		p.DisplayName = *upd.DisplayName
	}
	if upd.AIDescription != nil {
		p.AIDescription = upd.AIDescription
	}
	if upd.AITags != nil {
		p.AITags = upd.AITags
	}
	if upd.AnalysisCompletedAt != nil {
		p.AnalysisCompletedAt = upd.AnalysisCompletedAt
	}
	p.UpdatedAt = time.Now().UTC()
	cp := *p
	return &cp, nil
}

func (s *mockStore) DeletePhotos(_ context.Context, ownerID uuid.UUID, ids []uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		if p, ok := s.photos[id]; ok && p.OwnerID == ownerID {
			delete(s.photos, id)
		}
	}
	return nil
}

func (s *mockStore) CreateJob(_ context.Context, job *models.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *job
	s.jobs[job.ID] = &cp
	return nil
}

func (s *mockStore) GetJob(_ context.Context, id, ownerID uuid.UUID) (*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok || j.OwnerID != ownerID {
		return nil, store.ErrNotFound
	}
	cp := *j
	return &cp, nil
}

func (s *mockStore) ListJobs(_ context.Context, ownerID uuid.UUID) ([]*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Job
	for _, j := range s.jobs {
		if j.OwnerID == ownerID {
			cp := *j
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *mockStore) TransitionJob(_ context.Context, id uuid.UUID, expectedStatus, newStatus string, opts ...store.JobUpdateOption) (*models.Job, error) {
	if s.transitionErr != nil {
		return nil, s.transitionErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if j.Status != expectedStatus {
		return nil, store.ErrConflict
	}
	now := time.Now().UTC()
	j.Status = newStatus
	j.UpdatedAt = now
	if newStatus == models.JobStatusProcessing {
		j.StartedAt = &now
	}
	if newStatus == models.JobStatusCompleted || newStatus == models.JobStatusFailed {
		j.CompletedAt = &now
	}
	if msg := store.ErrorMessageFromOptions(opts...); msg != nil {
		j.ErrorMessage = msg
	}
	s.transitions = append(s.transitions, expectedStatus+"->"+newStatus)
	cp := *j
	return &cp, nil
}

func (s *mockStore) AppendJobProgress(_ context.Context, id uuid.UUID, result models.ItemResult) (*models.Job, error) {
	if s.appendErr != nil {
		return nil, s.appendErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	for _, existing := range j.Output {
		if existing.ItemID == result.ItemID {
			return nil, store.ErrConflict
		}
	}
	j.Output = append(j.Output, result)
	j.ProcessedItems++
	j.UpdatedAt = time.Now().UTC()
	cp := *j
	return &cp, nil
}

var _ store.Store = (*mockStore)(nil)

// --- cache mock ---

type mockCache struct {
	mu       sync.Mutex
	statuses map[string]string
}

func newMockCache() *mockCache {
	return &mockCache{statuses: make(map[string]string)}
}

func (c *mockCache) Set(_ context.Context, _ string, _ []byte, _ time.Duration) error { return nil }
func (c *mockCache) Get(_ context.Context, _ string) ([]byte, bool, error)            { return nil, false, nil }
func (c *mockCache) Delete(_ context.Context, _ string) error                         { return nil }
func (c *mockCache) Ping(_ context.Context) error                                     { return nil }
func (c *mockCache) IncrWithExpiry(_ context.Context, _ string, _ time.Duration) (int64, error) {
	return 0, nil
}

func (c *mockCache) SetJobStatus(_ context.Context, jobID uuid.UUID, status string, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.statuses[jobID.String()] = status
	return nil
}

func (c *mockCache) GetJobStatus(_ context.Context, jobID uuid.UUID) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.statuses[jobID.String()]
	return s, ok, nil
}

// --- feed mock ---

type mockPublisher struct {
	mu     sync.Mutex
	events []models.ChangeEvent
}

func (p *mockPublisher) Publish(_ context.Context, _ uuid.UUID, event models.ChangeEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *mockPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

// --- processor mock ---

// mockItemProcessor tracks the high-water mark of concurrent Process calls.
type mockItemProcessor struct {
	mu          sync.Mutex
	inFlight    int
	maxInFlight int
	calls       int

	delay time.Duration
	fn    func(itemID uuid.UUID) models.ItemResult
}

func (p *mockItemProcessor) Process(_ context.Context, _ uuid.UUID, itemID uuid.UUID, _ models.AnalyzeOptions) models.ItemResult {
	p.mu.Lock()
	p.inFlight++
	p.calls++
	if p.inFlight > p.maxInFlight {
		p.maxInFlight = p.inFlight
	}
	p.mu.Unlock()

	if p.delay > 0 {
		time.Sleep(p.delay)
	}

	p.mu.Lock()
	p.inFlight--
	p.mu.Unlock()

	if p.fn != nil {
		return p.fn(itemID)
	}
	return models.ItemResult{ItemID: itemID, Succeeded: true}
}
