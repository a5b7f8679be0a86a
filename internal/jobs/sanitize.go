package jobs

import (
	"path/filepath"
	"strings"
)

// maxBaseNameLen bounds the sanitized base name. Long model output gets
// truncated, never rejected.
const maxBaseNameLen = 64

// SanitizeBaseName normalizes model-suggested text into a safe file base
// name: lowercase, alphanumeric words joined by single hyphens, bounded
// length. Returns "" if nothing usable survives.
func SanitizeBaseName(s string) string {
	var b strings.Builder
	lastSep := true
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastSep = false
		default:
			if !lastSep {
				b.WriteByte('-')
				lastSep = true
			}
		}
	}
	out := strings.Trim(b.String(), "-")
	if len(out) > maxBaseNameLen {
		out = strings.Trim(out[:maxBaseNameLen], "-")
	}
	return out
}

// ComposeFilename builds the new display name from a model suggestion,
// preserving the original file's extension. Returns "" when the suggestion
// sanitizes to nothing, in which case the rename sub-step is a no-op.
func ComposeFilename(suggestion, originalName string) string {
	base := SanitizeBaseName(suggestion)
	if base == "" {
		return ""
	}
	return base + strings.ToLower(filepath.Ext(originalName))
}

// SanitizeTags lowercases, trims, and dedupes model-suggested tags, dropping
// any that sanitize to nothing.
func SanitizeTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	var out []string
	for _, t := range tags {
		clean := SanitizeBaseName(t)
		if clean == "" || seen[clean] {
			continue
		}
		seen[clean] = true
		out = append(out, clean)
	}
	return out
}
