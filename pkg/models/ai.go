// Package models contains shared data models used across the PhotoPilot codebase.
package models

import "context"

// VisionProvider is the core interface that all vision inference integrations
// must implement. Never call specific providers directly — always inject this
// interface.
type VisionProvider interface {
	// Describe analyzes a single image reachable through a signed URL and
	// returns whichever fields were requested.
	Describe(ctx context.Context, req VisionRequest) (VisionResult, error)
	// Name returns the provider identifier (e.g., "ollama", "openai").
	Name() string
}

// VisionRequest is the input to one inference call.
type VisionRequest struct {
	// ImageURL is a time-boxed signed read handle for the asset.
	ImageURL string
	// OriginalName is the photo's current display name, given as context.
	OriginalName string
	// WantFilename requests a short descriptive filename suggestion.
	WantFilename bool
	// WantTags requests tags and a one-sentence description.
	WantTags bool
}

// VisionResult holds whatever the provider produced. Fields the caller did
// not request, or that the provider failed to produce, are left empty.
type VisionResult struct {
	FilenameHint string   `json:"filename"`
	Description  string   `json:"description"`
	Tags         []string `json:"tags"`
}
