package openai

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
	"github.com/photopilot/photopilot/internal/ai"
	"github.com/photopilot/photopilot/internal/config"
	"github.com/photopilot/photopilot/pkg/models"
)

// Provider implements models.VisionProvider using the OpenAI chat completions
// API with image-URL content parts.
type Provider struct {
	client openai.Client
	model  string
}

func NewProvider(cfg config.OpenAIConfig) *Provider {
	return &Provider{
		client: openai.NewClient(option.WithAPIKey(cfg.APIKey)),
		model:  cfg.Model,
	}
}

func (p *Provider) Name() string { return "openai" }

func (p *Provider) Describe(ctx context.Context, req models.VisionRequest) (models.VisionResult, error) {
	parts := []openai.ChatCompletionContentPartUnionParam{
		openai.TextContentPart(ai.BuildPrompt(req)),
		openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
			URL: req.ImageURL,
		}),
	}

	resp, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(p.model),
		Messages: []openai.ChatCompletionMessageParamUnion{openai.UserMessage(parts)},
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return models.VisionResult{}, ai.ErrInferenceTimeout
		}
		return models.VisionResult{}, fmt.Errorf("%w: %v", ai.ErrProviderUnavailable, err)
	}

	if len(resp.Choices) == 0 {
		return models.VisionResult{}, ai.ErrInvalidResponse
	}

	return ai.ParseResult(resp.Choices[0].Message.Content), nil
}

var _ models.VisionProvider = (*Provider)(nil)
