package chat

import (
	"regexp"
	"strings"
)

var newlineRuns = regexp.MustCompile(`\n+`)

// NormalizeSource collapses runs of newlines into one and trims surrounding whitespace.
func NormalizeSource(text string) string {
	return strings.TrimSpace(newlineRuns.ReplaceAllString(text, "\n"))
}

// SourceContext is the retrieved supporting text shown in the collapsible panel.
type SourceContext struct {
	Texts []string
	Open  bool
}

func normalizeSources(texts []string) []string {
	out := make([]string, len(texts))
	for i, text := range texts {
		out[i] = NormalizeSource(text)
	}
	return out
}
