package storage

import (
	"context"
	"errors"

	"github.com/xaenox/memo-desk/internal/models"
)

var ErrNotFound = errors.New("storage: not found")

type Storage interface {
	NoteStorage
	FolderStorage
	ClipboardStorage

	// ListTags returns the distinct tags used by any note, sorted.
	ListTags(ctx context.Context) ([]string, error)
	Close() error
}

type NoteStorage interface {
	CreateNote(ctx context.Context, note *models.Note) error
	GetNote(ctx context.Context, id string) (*models.Note, error)
	UpdateNote(ctx context.Context, note *models.Note) error
	DeleteNote(ctx context.Context, id string) error
	// ListNotes returns every note, most recently updated first.
	ListNotes(ctx context.Context) ([]models.Note, error)
}

type FolderStorage interface {
	CreateFolder(ctx context.Context, folder *models.Folder) error
	GetFolder(ctx context.Context, id string) (*models.Folder, error)
	UpdateFolder(ctx context.Context, folder *models.Folder) error
	// DeleteFolder removes the folder and clears it from any note assigned to it.
	DeleteFolder(ctx context.Context, id string) error
	ListFolders(ctx context.Context) ([]models.Folder, error)
}

type ClipboardStorage interface {
	SaveClipboardItem(ctx context.Context, item *models.ClipboardItem) error
	// ListClipboardItems returns the newest items first. limit <= 0 means all.
	ListClipboardItems(ctx context.Context, limit int) ([]models.ClipboardItem, error)
	// PruneClipboardItems keeps the newest keep items and deletes the rest.
	PruneClipboardItems(ctx context.Context, keep int) error
}
