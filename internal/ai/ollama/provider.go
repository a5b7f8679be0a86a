package ollama

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"

	"github.com/photopilot/photopilot/internal/ai"
	"github.com/photopilot/photopilot/internal/config"
	"github.com/photopilot/photopilot/pkg/models"
)

// maxImageBytes caps how much of the signed asset we will pull into memory
// before handing it to the model.
const maxImageBytes = 20 << 20

// Provider implements models.VisionProvider against Ollama's generate API.
// Ollama takes inline base64 images, so the provider fetches the signed
// handle itself before calling the model.
type Provider struct {
	baseURL string
	model   string
	client  *http.Client
}

func NewProvider(cfg config.OllamaConfig) *Provider {
	return &Provider{
		baseURL: cfg.BaseURL,
		model:   cfg.Model,
		client:  &http.Client{},
	}
}

func (p *Provider) Name() string { return "ollama" }

type generateRequest struct {
	Model  string   `json:"model"`
	Prompt string   `json:"prompt"`
	Images []string `json:"images"`
	Stream bool     `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
}

func (p *Provider) Describe(ctx context.Context, req models.VisionRequest) (models.VisionResult, error) {
	image, err := p.fetchImage(ctx, req.ImageURL)
	if err != nil {
		return models.VisionResult{}, err
	}

	body, err := json.Marshal(generateRequest{
		Model:  p.model,
		Prompt: ai.BuildPrompt(req),
		Images: []string{base64.StdEncoding.EncodeToString(image)},
		Stream: false,
	})
	if err != nil {
		return models.VisionResult{}, fmt.Errorf("marshal generate request: %w", err)
	}

	u := p.baseURL + "/api/generate"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return models.VisionResult{}, fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return models.VisionResult{}, classifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return models.VisionResult{}, fmt.Errorf("%w: status %d", ai.ErrProviderUnavailable, resp.StatusCode)
	}

	var genResp generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&genResp); err != nil {
		return models.VisionResult{}, fmt.Errorf("%w: %v", ai.ErrInvalidResponse, err)
	}

	return ai.ParseResult(genResp.Response), nil
}

func (p *Provider) fetchImage(ctx context.Context, url string) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building image request: %w", err)
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, classifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch image: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	return data, nil
}

func classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return ai.ErrInferenceTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ai.ErrInferenceTimeout
	}
	return fmt.Errorf("%w: %v", ai.ErrProviderUnavailable, err)
}

var _ models.VisionProvider = (*Provider)(nil)
