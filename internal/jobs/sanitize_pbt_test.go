package jobs

import (
	"regexp"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

var baseNameShape = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

func TestSanitizeBaseName_Properties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("output is empty or hyphen-joined lowercase alnum words", prop.ForAll(
		func(s string) bool {
			out := SanitizeBaseName(s)
			return out == "" || baseNameShape.MatchString(out)
		},
		gen.AnyString(),
	))

	properties.Property("output never exceeds the length bound", prop.ForAll(
		func(s string) bool {
			return len(SanitizeBaseName(s)) <= maxBaseNameLen
		},
		gen.AnyString(),
	))

	properties.Property("sanitizing is idempotent", prop.ForAll(
		func(s string) bool {
			once := SanitizeBaseName(s)
			return SanitizeBaseName(once) == once
		},
		gen.AnyString(),
	))

	properties.TestingRun(t)
}

func TestSanitizeTags_Properties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("tags are unique and individually sanitized", prop.ForAll(
		func(tags []string) bool {
			out := SanitizeTags(tags)
			seen := make(map[string]bool, len(out))
			for _, tag := range out {
				if seen[tag] || !baseNameShape.MatchString(tag) {
					return false
				}
				seen[tag] = true
			}
			return len(out) <= len(tags)
		},
		gen.SliceOf(gen.AnyString()),
	))

	properties.TestingRun(t)
}
