package mock

import (
	"context"

	"github.com/photopilot/photopilot/pkg/models"
)

// MockProvider satisfies models.VisionProvider for testing.
type MockProvider struct {
	Name_        string
	DescribeFunc func(ctx context.Context, req models.VisionRequest) (models.VisionResult, error)
}

func (m *MockProvider) Name() string { return m.Name_ }

func (m *MockProvider) Describe(ctx context.Context, req models.VisionRequest) (models.VisionResult, error) {
	if m.DescribeFunc != nil {
		return m.DescribeFunc(ctx, req)
	}
	return models.VisionResult{}, nil
}

// NewProvider returns a MockProvider with sensible default responses.
func NewProvider() *MockProvider {
	return &MockProvider{
		Name_: "mock",
		DescribeFunc: func(_ context.Context, req models.VisionRequest) (models.VisionResult, error) {
			res := models.VisionResult{}
			if req.WantFilename {
				res.FilenameHint = "Golden Hour At The Lake"
			}
			if req.WantTags {
				res.Description = "A calm lake at sunset with hills in the background."
				res.Tags = []string{"lake", "sunset", "landscape"}
			}
			return res, nil
		},
	}
}

// NewFailingProvider returns a MockProvider that always returns the given error.
func NewFailingProvider(err error) *MockProvider {
	return &MockProvider{
		Name_: "mock-failing",
		DescribeFunc: func(_ context.Context, _ models.VisionRequest) (models.VisionResult, error) {
			return models.VisionResult{}, err
		},
	}
}

// NewTimeoutProvider returns a MockProvider that blocks until context is cancelled.
func NewTimeoutProvider() *MockProvider {
	return &MockProvider{
		Name_: "mock-timeout",
		DescribeFunc: func(ctx context.Context, _ models.VisionRequest) (models.VisionResult, error) {
			<-ctx.Done()
			return models.VisionResult{}, ctx.Err()
		},
	}
}

// Compile-time check that MockProvider implements VisionProvider.
var _ models.VisionProvider = (*MockProvider)(nil)
