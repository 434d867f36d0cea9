package rules

import (
	"strconv"
	"strings"
	"time"

	"github.com/xaenox/memo-desk/internal/models"
)

// Matcher evaluates folder rules. The zero value is not usable; use
// NewMatcher. A Matcher holds no mutable state and is safe for concurrent use.
type Matcher struct {
	now func() time.Time
}

type Option func(*Matcher)

// WithClock sets the time source used by last_n_days.
func WithClock(now func() time.Time) Option {
	return func(m *Matcher) {
		if now != nil {
			m.now = now
		}
	}
}

func NewMatcher(opts ...Option) *Matcher {
	m := &Matcher{now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

var defaultMatcher = NewMatcher()

// EvaluateCondition reports whether note satisfies c using the wall clock.
func EvaluateCondition(note models.Note, c models.Condition) bool {
	return defaultMatcher.EvaluateCondition(note, c)
}

// EvaluateCondition reports whether note satisfies c. An empty value never
// matches except for has_any and has_all, and an operator outside the field's
// legal set never matches.
func (m *Matcher) EvaluateCondition(note models.Note, c models.Condition) bool {
	if !c.Field.Allows(c.Operator) {
		return false
	}
	if c.Value == "" && c.Operator != models.OpHasAny && c.Operator != models.OpHasAll {
		return false
	}

	v := ExtractField(note, c.Field)
	switch c.Field {
	case models.FieldTitle, models.FieldContent:
		return matchText(v, c.Operator, c.Value)
	case models.FieldTags:
		return matchTags(v, c.Operator, c.Value)
	case models.FieldCreatedDate, models.FieldUpdatedDate:
		return m.matchTime(v, c.Operator, c.Value)
	}
	return false
}

func matchText(v Value, op models.Operator, operand string) bool {
	if v.Kind != KindText {
		return false
	}
	text := strings.ToLower(v.Text)
	want := strings.ToLower(operand)

	switch op {
	case models.OpContains:
		return strings.Contains(text, want)
	case models.OpNotContains:
		return !strings.Contains(text, want)
	case models.OpStartsWith:
		return strings.HasPrefix(text, want)
	case models.OpEndsWith:
		return strings.HasSuffix(text, want)
	case models.OpEquals:
		return text == want
	case models.OpNotEquals:
		return text != want
	}
	return false
}

func matchTags(v Value, op models.Operator, operand string) bool {
	if v.Kind != KindTags {
		return false
	}
	have := make(map[string]struct{}, len(v.Tags))
	for _, tag := range v.Tags {
		have[strings.ToLower(tag)] = struct{}{}
	}
	want := ParseTagList(operand)

	anyFound := false
	allFound := true
	for _, tag := range want {
		if _, ok := have[tag]; ok {
			anyFound = true
		} else {
			allFound = false
		}
	}

	switch op {
	case models.OpContains, models.OpHasAny:
		return anyFound
	case models.OpNotContains:
		return !anyFound
	case models.OpHasAll:
		// An empty operand set is vacuously satisfied.
		return allFound
	}
	return false
}

// ParseTagList splits a comma separated operand into trimmed, lower-cased
// tags, dropping empty entries.
func ParseTagList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (m *Matcher) matchTime(v Value, op models.Operator, operand string) bool {
	if v.Kind != KindTime {
		return false
	}

	switch op {
	case models.OpBefore:
		at, ok := models.ParseTime(operand)
		return ok && v.Time.Before(at)
	case models.OpAfter:
		at, ok := models.ParseTime(operand)
		return ok && v.Time.After(at)
	case models.OpLastNDays:
		days, err := strconv.Atoi(strings.TrimSpace(operand))
		if err != nil {
			return false
		}
		cutoff := m.now().UTC().Add(-time.Duration(days) * 24 * time.Hour)
		return !v.Time.Before(cutoff)
	}
	return false
}
