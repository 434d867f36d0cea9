package models

import "time"

type ClipboardType string

const (
	ClipboardText ClipboardType = "text"
	ClipboardURL  ClipboardType = "url"
)

// ClipboardEvent is emitted when the system clipboard changes.
type ClipboardEvent struct {
	Type      ClipboardType `json:"type"`
	Content   string        `json:"content"`
	Timestamp time.Time     `json:"timestamp"`
}

// ClipboardItem is a persisted clipboard history entry.
type ClipboardItem struct {
	ID        string        `json:"id"`
	Type      ClipboardType `json:"type"`
	Content   string        `json:"content"`
	CreatedAt time.Time     `json:"created_at"`
}
