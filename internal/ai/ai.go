// Package ai generates titles, tags, summaries and cleaned-up formatting for
// note text.
package ai

import (
	"context"
	"errors"
	"sort"
	"strings"
)

var ErrEmptyResponse = errors.New("ai: empty response")

// Analysis is the combined result of one analysis request.
type Analysis struct {
	Title   string   `json:"title"`
	Tags    []string `json:"tags"`
	Summary string   `json:"summary"`
}

type Service interface {
	Analyze(ctx context.Context, text string) (Analysis, error)
	GenerateTitle(ctx context.Context, text string) (string, error)
	GenerateTags(ctx context.Context, text string) ([]string, error)
	Summarize(ctx context.Context, text string) (string, error)
	FixFormatting(ctx context.Context, text string) (string, error)
}

// normalizeTags lower-cases, trims, strips a leading '#', de-duplicates and
// caps the list at max entries (max <= 0 means no cap). Order is preserved.
func normalizeTags(tags []string, max int) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(tag), "#")))
		if tag == "" {
			continue
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	if max > 0 && len(out) > max {
		out = out[:max]
	}
	return out
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
