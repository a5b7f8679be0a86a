package ai

import "errors"

// Sentinel errors shared by all vision providers. The item processor records
// whichever of these an item hit in its result entry.
var (
	ErrProviderUnavailable = errors.New("vision provider unavailable")
	ErrInferenceTimeout    = errors.New("vision inference timeout")
	ErrInvalidResponse     = errors.New("vision provider returned invalid response")
)
