package ai

import (
	"testing"

	"github.com/photopilot/photopilot/pkg/models"
	"github.com/stretchr/testify/assert"
)

func TestBuildPrompt_SelectsSubSteps(t *testing.T) {
	full := BuildPrompt(models.VisionRequest{
		OriginalName: "IMG_1234.jpg",
		WantFilename: true,
		WantTags:     true,
	})
	assert.Contains(t, full, `"filename"`)
	assert.Contains(t, full, `"tags"`)
	assert.Contains(t, full, "IMG_1234.jpg")

	renameOnly := BuildPrompt(models.VisionRequest{
		OriginalName: "IMG_1234.jpg",
		WantFilename: true,
	})
	assert.Contains(t, renameOnly, `"filename"`)
	assert.NotContains(t, renameOnly, `"tags"`)

	tagsOnly := BuildPrompt(models.VisionRequest{
		OriginalName: "IMG_1234.jpg",
		WantTags:     true,
	})
	assert.NotContains(t, tagsOnly, `"filename"`)
	assert.Contains(t, tagsOnly, `"description"`)
}

func TestParseResult(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want models.VisionResult
	}{
		{
			name: "plain json",
			raw:  `{"filename": "sunset at pier", "description": "A pier at dusk.", "tags": ["pier", "dusk"]}`,
			want: models.VisionResult{
				FilenameHint: "sunset at pier",
				Description:  "A pier at dusk.",
				Tags:         []string{"pier", "dusk"},
			},
		},
		{
			name: "fenced json",
			raw:  "```json\n{\"filename\": \"sunset at pier\"}\n```",
			want: models.VisionResult{FilenameHint: "sunset at pier"},
		},
		{
			name: "bare fence",
			raw:  "```\n{\"tags\": [\"dog\"]}\n```",
			want: models.VisionResult{Tags: []string{"dog"}},
		},
		{
			name: "prose instead of json",
			raw:  "Sure! Here is a description of the image.",
			want: models.VisionResult{},
		},
		{
			name: "empty",
			raw:  "",
			want: models.VisionResult{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseResult(tt.raw))
		})
	}
}
