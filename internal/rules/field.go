// Package rules decides which notes belong to a folder.
//
// Everything here is a pure function of the notes and folder passed in. Bad
// input (unknown fields or operators, unparsable operands, missing note data)
// never produces an error; it simply does not match.
package rules

import (
	"strings"
	"time"

	"github.com/xaenox/memo-desk/internal/models"
	"golang.org/x/net/html"
)

// ValueKind tags which member of Value is set.
type ValueKind int

const (
	KindNone ValueKind = iota
	KindText
	KindTags
	KindTime
)

// Value is the comparable form of one note field.
type Value struct {
	Kind ValueKind
	Text string
	Tags []string
	Time time.Time
}

// ExtractField returns the value of field on note. Dates that are missing
// report KindNone, as does an unknown field.
func ExtractField(note models.Note, field models.Field) Value {
	switch field {
	case models.FieldTitle:
		return Value{Kind: KindText, Text: note.Title}
	case models.FieldContent:
		return Value{Kind: KindText, Text: PlainText(note.Content)}
	case models.FieldTags:
		tags := note.Tags
		if tags == nil {
			tags = []string{}
		}
		return Value{Kind: KindTags, Tags: tags}
	case models.FieldCreatedDate:
		return timeValue(note.CreatedAt)
	case models.FieldUpdatedDate:
		return timeValue(note.UpdatedAt)
	}
	return Value{Kind: KindNone}
}

func timeValue(t time.Time) Value {
	if t.IsZero() {
		return Value{Kind: KindNone}
	}
	return Value{Kind: KindTime, Time: t.UTC()}
}

// PlainText strips markup from s and decodes entities. Text nodes are joined
// as-is, so "<p>a</p><p>b</p>" becomes "ab".
func PlainText(s string) string {
	if s == "" {
		return ""
	}
	if !strings.ContainsAny(s, "<&") {
		return s
	}

	var b strings.Builder
	z := html.NewTokenizer(strings.NewReader(s))
	for {
		switch z.Next() {
		case html.ErrorToken:
			// io.EOF or a truncated document; either way we keep what we have.
			return b.String()
		case html.TextToken:
			b.Write(z.Text())
		}
	}
}
