package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/photopilot/photopilot/internal/ai"
	"github.com/photopilot/photopilot/internal/ai/mock"
	"github.com/photopilot/photopilot/internal/assets"
	"github.com/photopilot/photopilot/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAssets hands out a fixed signed URL or a canned error.
type fakeAssets struct {
	url string
	err error
}

func (f *fakeAssets) ResolveReadableHandle(_ context.Context, _ string, _ time.Duration) (string, error) {
	return f.url, f.err
}

func (f *fakeAssets) Remove(_ context.Context, _ []string) error { return nil }

func seedPhoto(t *testing.T, st *mockStore, ownerID uuid.UUID, name string) *models.Photo {
	t.Helper()
	now := time.Now().UTC()
	p := &models.Photo{
		ID:          uuid.New(),
		OwnerID:     ownerID,
		DisplayName: name,
		StoragePath: "photos/" + uuid.NewString(),
		ContentType: "image/jpeg",
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	require.NoError(t, st.CreatePhoto(context.Background(), p))
	return p
}

func TestProcessor_Success(t *testing.T) {
	st := newMockStore()
	pub := &mockPublisher{}
	ownerID := uuid.New()
	photo := seedPhoto(t, st, ownerID, "IMG_1234.JPG")

	p := NewProcessor(ProcessorConfig{
		Store:     st,
		Assets:    &fakeAssets{url: "https://gw.example/signed"},
		Provider:  mock.NewProvider(),
		Publisher: pub,
	})

	res := p.Process(context.Background(), ownerID, photo.ID,
		models.AnalyzeOptions{ImproveFilenames: true, GenerateTags: true})

	require.True(t, res.Succeeded, "unexpected failure: %s", res.Error)
	assert.Equal(t, photo.ID, res.ItemID)
	assert.Equal(t, "golden-hour-at-the-lake.jpg", res.ResultFields["display_name"])
	assert.NotEmpty(t, res.ResultFields["ai_description"])
	assert.Equal(t, "lake,sunset,landscape", res.ResultFields["ai_tags"])

	got, err := st.GetPhoto(context.Background(), photo.ID, ownerID)
	require.NoError(t, err)
	assert.Equal(t, "golden-hour-at-the-lake.jpg", got.DisplayName)
	require.NotNil(t, got.AIDescription)
	assert.Equal(t, []string{"lake", "sunset", "landscape"}, got.AITags)
	assert.NotNil(t, got.AnalysisCompletedAt)

	// The processor announces the new photo state on the feed.
	pub.mu.Lock()
	defer pub.mu.Unlock()
	require.Len(t, pub.events, 1)
	assert.Equal(t, models.ChangeTablePhotos, pub.events[0].Table)
}

func TestProcessor_RenameOnlySkipsTags(t *testing.T) {
	st := newMockStore()
	ownerID := uuid.New()
	photo := seedPhoto(t, st, ownerID, "DSC_0001.png")

	p := NewProcessor(ProcessorConfig{
		Store:     st,
		Assets:    &fakeAssets{url: "https://gw.example/signed"},
		Provider:  mock.NewProvider(),
		Publisher: &mockPublisher{},
	})

	res := p.Process(context.Background(), ownerID, photo.ID,
		models.AnalyzeOptions{ImproveFilenames: true})

	require.True(t, res.Succeeded)
	assert.Equal(t, "golden-hour-at-the-lake.png", res.ResultFields["display_name"])
	assert.NotContains(t, res.ResultFields, "ai_tags")

	got, err := st.GetPhoto(context.Background(), photo.ID, ownerID)
	require.NoError(t, err)
	assert.Nil(t, got.AIDescription)
	assert.Nil(t, got.AITags)
}

func TestProcessor_MissingPhoto(t *testing.T) {
	p := NewProcessor(ProcessorConfig{
		Store:     newMockStore(),
		Assets:    &fakeAssets{url: "https://gw.example/signed"},
		Provider:  mock.NewProvider(),
		Publisher: &mockPublisher{},
	})

	res := p.Process(context.Background(), uuid.New(), uuid.New(),
		models.AnalyzeOptions{GenerateTags: true})

	assert.False(t, res.Succeeded)
	assert.Contains(t, res.Error, "resolve photo")
}

func TestProcessor_AssetGatewayDown(t *testing.T) {
	st := newMockStore()
	ownerID := uuid.New()
	photo := seedPhoto(t, st, ownerID, "IMG_0002.jpg")

	p := NewProcessor(ProcessorConfig{
		Store:     st,
		Assets:    &fakeAssets{err: assets.ErrUnreachable},
		Provider:  mock.NewProvider(),
		Publisher: &mockPublisher{},
	})

	res := p.Process(context.Background(), ownerID, photo.ID,
		models.AnalyzeOptions{GenerateTags: true})

	assert.False(t, res.Succeeded)
	assert.Contains(t, res.Error, "resolve read handle")

	// The photo must not be marked analyzed.
	got, err := st.GetPhoto(context.Background(), photo.ID, ownerID)
	require.NoError(t, err)
	assert.Nil(t, got.AnalysisCompletedAt)
}

func TestProcessor_ProviderError(t *testing.T) {
	st := newMockStore()
	ownerID := uuid.New()
	photo := seedPhoto(t, st, ownerID, "IMG_0003.jpg")

	p := NewProcessor(ProcessorConfig{
		Store:     st,
		Assets:    &fakeAssets{url: "https://gw.example/signed"},
		Provider:  mock.NewFailingProvider(ai.ErrProviderUnavailable),
		Publisher: &mockPublisher{},
	})

	res := p.Process(context.Background(), ownerID, photo.ID,
		models.AnalyzeOptions{GenerateTags: true})

	assert.False(t, res.Succeeded)
	assert.Contains(t, res.Error, "vision inference")
}

func TestProcessor_EmptyVisionOutputStillSucceeds(t *testing.T) {
	st := newMockStore()
	ownerID := uuid.New()
	photo := seedPhoto(t, st, ownerID, "IMG_0004.jpg")

	// A provider that returns nothing usable: every sub-step degrades to a
	// no-op, but analysis itself finished.
	empty := &mock.MockProvider{
		Name_: "mock-empty",
		DescribeFunc: func(_ context.Context, _ models.VisionRequest) (models.VisionResult, error) {
			return models.VisionResult{}, nil
		},
	}

	p := NewProcessor(ProcessorConfig{
		Store:     st,
		Assets:    &fakeAssets{url: "https://gw.example/signed"},
		Provider:  empty,
		Publisher: &mockPublisher{},
	})

	res := p.Process(context.Background(), ownerID, photo.ID,
		models.AnalyzeOptions{ImproveFilenames: true, GenerateTags: true})

	require.True(t, res.Succeeded)
	assert.Empty(t, res.ResultFields)

	got, err := st.GetPhoto(context.Background(), photo.ID, ownerID)
	require.NoError(t, err)
	assert.Equal(t, "IMG_0004.jpg", got.DisplayName)
	assert.NotNil(t, got.AnalysisCompletedAt)
}

func TestProcessor_InferenceTimeout(t *testing.T) {
	st := newMockStore()
	ownerID := uuid.New()
	photo := seedPhoto(t, st, ownerID, "IMG_0005.jpg")

	p := NewProcessor(ProcessorConfig{
		Store:            st,
		Assets:           &fakeAssets{url: "https://gw.example/signed"},
		Provider:         mock.NewTimeoutProvider(),
		Publisher:        &mockPublisher{},
		InferenceTimeout: 20 * time.Millisecond,
	})

	start := time.Now()
	res := p.Process(context.Background(), ownerID, photo.ID,
		models.AnalyzeOptions{GenerateTags: true})

	assert.False(t, res.Succeeded)
	assert.Contains(t, res.Error, "vision inference")
	assert.Less(t, time.Since(start), 2*time.Second)
}
