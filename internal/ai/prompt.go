package ai

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/photopilot/photopilot/pkg/models"
)

// BuildPrompt renders the instruction for one vision call. Providers share the
// same prompt so their outputs stay interchangeable.
func BuildPrompt(req models.VisionRequest) string {
	var b strings.Builder
	b.WriteString("You are labeling a photo for a personal photo library.\n")
	fmt.Fprintf(&b, "The current file name is %q.\n", req.OriginalName)
	b.WriteString("Respond with a single JSON object, no prose, with these keys:\n")
	if req.WantFilename {
		b.WriteString(`- "filename": a short descriptive file name for the image, 3-6 words, no extension` + "\n")
	}
	if req.WantTags {
		b.WriteString(`- "description": one sentence describing the image` + "\n")
		b.WriteString(`- "tags": an array of 3-8 lowercase single-word tags` + "\n")
	}
	return b.String()
}

// ParseResult decodes a provider's raw text into a VisionResult. Models wrap
// JSON in code fences often enough that we strip them first. A response that
// is not JSON at all is an empty result, not an error: the caller degrades
// the affected sub-step to a no-op.
func ParseResult(raw string) models.VisionResult {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	raw = strings.TrimSpace(raw)

	var res models.VisionResult
	if err := json.Unmarshal([]byte(raw), &res); err != nil {
		return models.VisionResult{}
	}
	return res
}
