package ai

import (
	"context"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	maxTitleRunes   = 60
	maxSummaryRunes = 200
)

// SimpleService is the offline fallback: hashtags plus a keyword table for
// tags, the first line for the title, and the leading text for a summary.
type SimpleService struct {
	maxTags int
}

func NewSimpleService(maxTags int) *SimpleService {
	return &SimpleService{maxTags: maxTags}
}

var categoryKeywords = map[string][]string{
	"work":      {"project", "meeting", "deadline", "task", "report"},
	"personal":  {"family", "friend", "home", "birthday", "holiday"},
	"shopping":  {"buy", "purchase", "store", "shop", "price", "grocery"},
	"education": {"study", "learn", "course", "book", "homework"},
	"travel":    {"trip", "flight", "hotel", "vacation", "booking"},
	"finance":   {"invoice", "bill", "payment", "budget", "tax"},
}

func (s *SimpleService) Analyze(ctx context.Context, text string) (Analysis, error) {
	return Analysis{
		Title:   simpleTitle(text),
		Tags:    s.tags(text),
		Summary: truncateRunes(collapseSpace(text), maxSummaryRunes),
	}, nil
}

func (s *SimpleService) GenerateTitle(ctx context.Context, text string) (string, error) {
	return simpleTitle(text), nil
}

func (s *SimpleService) GenerateTags(ctx context.Context, text string) ([]string, error) {
	return s.tags(text), nil
}

func (s *SimpleService) Summarize(ctx context.Context, text string) (string, error) {
	return truncateRunes(collapseSpace(text), maxSummaryRunes), nil
}

var blankRuns = regexp.MustCompile(`\n{3,}`)

// FixFormatting trims trailing whitespace on each line and collapses runs of
// blank lines.
func (s *SimpleService) FixFormatting(ctx context.Context, text string) (string, error) {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	out := blankRuns.ReplaceAllString(strings.Join(lines, "\n"), "\n\n")
	return strings.TrimSpace(out), nil
}

// tags extracts hashtags and common categories.
func (s *SimpleService) tags(content string) []string {
	words := strings.Fields(content)
	found := make([]string, 0)

	// Extract hashtags
	for _, word := range words {
		if strings.HasPrefix(word, "#") {
			found = append(found, strings.TrimRight(word, ".,;:!?"))
		}
	}

	lower := strings.ToLower(content)
	categories := make(map[string]struct{})
	for category, keywords := range categoryKeywords {
		for _, keyword := range keywords {
			if strings.Contains(lower, keyword) {
				categories[category] = struct{}{}
				break
			}
		}
	}
	found = append(found, sortedKeys(categories)...)

	return normalizeTags(found, s.maxTags)
}

func simpleTitle(text string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			return truncateRunes(line, maxTitleRunes)
		}
	}
	return "Untitled"
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:max])) + "…"
}
