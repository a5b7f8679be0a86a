package jobs

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/photopilot/photopilot/internal/assets"
	"github.com/photopilot/photopilot/internal/feed"
	"github.com/photopilot/photopilot/internal/store"
	"github.com/photopilot/photopilot/pkg/models"
	"golang.org/x/time/rate"
)

// ItemProcessor performs the unit of work for one photo. Implementations
// never let a fault escape: every failure is captured in the returned
// ItemResult.
type ItemProcessor interface {
	Process(ctx context.Context, ownerID, itemID uuid.UUID, opts models.AnalyzeOptions) models.ItemResult
}

// Processor resolves a signed read handle for the photo, runs vision
// inference, sanitizes the output, and persists whichever fields were
// produced. Partial persistence is fine: a good filename with failed tags
// still counts as a success.
type Processor struct {
	store     store.Store
	assets    assets.Client
	provider  models.VisionProvider
	publisher feed.Publisher
	limiter   *rate.Limiter

	handleTTL    time.Duration
	inferTimeout time.Duration
}

// ProcessorConfig wires a Processor.
type ProcessorConfig struct {
	Store     store.Store
	Assets    assets.Client
	Provider  models.VisionProvider
	Publisher feed.Publisher
	// InferencePerSec caps inference calls across all concurrent item tasks.
	// Zero disables the ceiling.
	InferencePerSec  float64
	HandleTTL        time.Duration
	InferenceTimeout time.Duration
}

func NewProcessor(cfg ProcessorConfig) *Processor {
	limit := rate.Inf
	if cfg.InferencePerSec > 0 {
		limit = rate.Limit(cfg.InferencePerSec)
	}
	handleTTL := cfg.HandleTTL
	if handleTTL <= 0 {
		handleTTL = 10 * time.Minute
	}
	inferTimeout := cfg.InferenceTimeout
	if inferTimeout <= 0 {
		inferTimeout = 60 * time.Second
	}
	return &Processor{
		store:        cfg.Store,
		assets:       cfg.Assets,
		provider:     cfg.Provider,
		publisher:    cfg.Publisher,
		limiter:      rate.NewLimiter(limit, 1),
		handleTTL:    handleTTL,
		inferTimeout: inferTimeout,
	}
}

func (p *Processor) Process(ctx context.Context, ownerID, itemID uuid.UUID, opts models.AnalyzeOptions) models.ItemResult {
	fail := func(stage string, err error) models.ItemResult {
		return models.ItemResult{
			ItemID:    itemID,
			Succeeded: false,
			Error:     fmt.Sprintf("%s: %v", stage, err),
		}
	}

	photo, err := p.store.GetPhoto(ctx, itemID, ownerID)
	if err != nil {
		return fail("resolve photo", err)
	}

	// The handle's validity doubles as the item's overall deadline: an item
	// whose handle expired must fail, not hang its chunk.
	itemCtx, cancel := context.WithTimeout(ctx, p.handleTTL)
	defer cancel()

	handle, err := p.assets.ResolveReadableHandle(itemCtx, photo.StoragePath, p.handleTTL)
	if err != nil {
		return fail("resolve read handle", err)
	}

	if err := p.limiter.Wait(itemCtx); err != nil {
		return fail("inference rate wait", err)
	}

	inferCtx, cancelInfer := context.WithTimeout(itemCtx, p.inferTimeout)
	defer cancelInfer()

	vision, err := p.provider.Describe(inferCtx, models.VisionRequest{
		ImageURL:     handle,
		OriginalName: photo.DisplayName,
		WantFilename: opts.ImproveFilenames,
		WantTags:     opts.GenerateTags,
	})
	if err != nil {
		return fail("vision inference", err)
	}

	upd := store.PhotoUpdate{}
	resultFields := make(map[string]string)

	if opts.ImproveFilenames {
		if name := ComposeFilename(vision.FilenameHint, photo.DisplayName); name != "" {
			upd.DisplayName = &name
			resultFields["display_name"] = name
		}
	}
	if opts.GenerateTags {
		// Malformed or empty structured output degrades these sub-steps to
		// no-ops rather than failing the item.
		if desc := strings.TrimSpace(vision.Description); desc != "" {
			upd.AIDescription = &desc
			resultFields["ai_description"] = desc
		}
		if tags := SanitizeTags(vision.Tags); len(tags) > 0 {
			upd.AITags = tags
			resultFields["ai_tags"] = strings.Join(tags, ",")
		}
	}

	now := time.Now().UTC()
	upd.AnalysisCompletedAt = &now

	updated, err := p.store.UpdatePhoto(ctx, itemID, ownerID, upd)
	if err != nil {
		return fail("persist photo", err)
	}
	feed.PublishPhoto(ctx, p.publisher, models.ChangeOpUpdate, updated)

	return models.ItemResult{
		ItemID:       itemID,
		Succeeded:    true,
		ResultFields: resultFields,
	}
}

var _ ItemProcessor = (*Processor)(nil)
