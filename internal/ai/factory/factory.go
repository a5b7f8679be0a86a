// Package factory constructs vision providers from configuration. It lives
// below the provider packages so they can share internal/ai without a cycle.
package factory

import (
	"fmt"

	"github.com/photopilot/photopilot/internal/ai/mock"
	"github.com/photopilot/photopilot/internal/ai/ollama"
	"github.com/photopilot/photopilot/internal/ai/openai"
	"github.com/photopilot/photopilot/internal/config"
	"github.com/photopilot/photopilot/pkg/models"
)

// NewProvider constructs the appropriate vision provider based on config.
// Called once at server startup.
func NewProvider(cfg config.AIConfig) (models.VisionProvider, error) {
	switch cfg.Provider {
	case "ollama":
		return ollama.NewProvider(cfg.Ollama), nil
	case "openai":
		return openai.NewProvider(cfg.OpenAI), nil
	case "mock":
		return mock.NewProvider(), nil
	default:
		return nil, fmt.Errorf("unknown AI provider %q: must be one of ollama, openai, mock", cfg.Provider)
	}
}
