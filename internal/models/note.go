package models

import (
	"encoding/json"
	"strings"
	"time"
)

// Note is a stored note. Content is rich markup (usually HTML).
type Note struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Tags      []string  `json:"tags"`
	FolderID  *string   `json:"folder_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Layouts accepted for stored timestamps and date operands. Values without a
// zone are read as UTC.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseTime parses s with the accepted layouts. The second return is false
// when s is empty or matches none of them.
func ParseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// HasFolder reports whether the note is manually assigned to folderID.
func (n Note) HasFolder(folderID string) bool {
	return n.FolderID != nil && *n.FolderID == folderID
}

type noteRecord struct {
	ID             string          `json:"id"`
	Title          string          `json:"title"`
	Content        string          `json:"content"`
	Tags           []string        `json:"tags"`
	FolderID       *string         `json:"folder_id"`
	FolderIDCamel  *string         `json:"folderId"`
	CreatedAt      json.RawMessage `json:"created_at"`
	CreatedAtCamel json.RawMessage `json:"createdAt"`
	UpdatedAt      json.RawMessage `json:"updated_at"`
	UpdatedAtCamel json.RawMessage `json:"updatedAt"`
}

// UnmarshalJSON accepts snake_case and camelCase keys. Timestamps may be
// strings or Unix milliseconds; missing or unparsable ones decode to the zero
// time instead of failing.
func (n *Note) UnmarshalJSON(data []byte) error {
	var rec noteRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return err
	}

	*n = Note{
		ID:        rec.ID,
		Title:     rec.Title,
		Content:   rec.Content,
		Tags:      rec.Tags,
		FolderID:  rec.FolderID,
		CreatedAt: firstTime(rec.CreatedAt, rec.CreatedAtCamel),
		UpdatedAt: firstTime(rec.UpdatedAt, rec.UpdatedAtCamel),
	}
	if n.FolderID == nil {
		n.FolderID = rec.FolderIDCamel
	}
	if n.FolderID != nil && *n.FolderID == "" {
		n.FolderID = nil
	}
	return nil
}

// firstTime returns the first raw value that reads as a time. Strings use the
// accepted layouts; numbers are Unix milliseconds.
func firstTime(raws ...json.RawMessage) time.Time {
	for _, raw := range raws {
		if len(raw) == 0 {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			if t, ok := ParseTime(s); ok {
				return t
			}
			continue
		}
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			continue
		}
		if ms, err := n.Int64(); err == nil {
			return time.UnixMilli(ms).UTC()
		}
		if f, err := n.Float64(); err == nil {
			return time.UnixMilli(int64(f)).UTC()
		}
	}
	return time.Time{}
}
