package notebook

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/xaenox/memo-desk/internal/models"
	"github.com/xaenox/memo-desk/internal/storage"
	"github.com/xaenox/memo-desk/internal/vault"
	"go.uber.org/zap"
)

const clipboardTag = "clipboard"

// CaptureClipboard stores a clipboard event in the history, trims the
// history, and optionally turns the capture into a note.
func (s *Service) CaptureClipboard(ctx context.Context, ev models.ClipboardEvent) (*models.ClipboardItem, error) {
	if strings.TrimSpace(ev.Content) == "" {
		return nil, ErrEmptyNote
	}
	created := ev.Timestamp
	if created.IsZero() {
		created = s.now()
	}
	item := &models.ClipboardItem{
		ID:        uuid.New().String(),
		Type:      ev.Type,
		Content:   ev.Content,
		CreatedAt: created.UTC(),
	}
	if item.Type == "" {
		item.Type = models.ClipboardText
	}

	if err := s.store.SaveClipboardItem(ctx, item); err != nil {
		return nil, fmt.Errorf("save clipboard item: %w", err)
	}
	if s.opts.ClipboardHistory > 0 {
		if err := s.store.PruneClipboardItems(ctx, s.opts.ClipboardHistory); err != nil {
			s.logger.Warn("Failed to prune clipboard history", zap.Error(err))
		}
	}

	if s.opts.ClipboardToNotes {
		_, err := s.CreateNote(ctx, NoteInput{
			Content: TextContent(ev.Content),
			Tags:    []string{clipboardTag, string(item.Type)},
		})
		if err != nil {
			return item, fmt.Errorf("save clipboard note: %w", err)
		}
	}
	return item, nil
}

func (s *Service) ClipboardHistory(ctx context.Context, limit int) ([]models.ClipboardItem, error) {
	return s.store.ListClipboardItems(ctx, limit)
}

// ExportVault writes every note to dir as markdown and returns the number of
// files written.
func (s *Service) ExportVault(ctx context.Context, dir string) (int, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("create vault dir: %w", err)
	}
	notes, err := s.store.ListNotes(ctx)
	if err != nil {
		return 0, fmt.Errorf("list notes: %w", err)
	}
	folders, err := s.store.ListFolders(ctx)
	if err != nil {
		return 0, fmt.Errorf("list folders: %w", err)
	}
	names := make(map[string]string, len(folders))
	for _, f := range folders {
		names[f.ID] = f.Name
	}

	for i, n := range notes {
		folder := ""
		if n.FolderID != nil {
			folder = names[*n.FolderID]
		}
		if _, err := vault.WriteNote(dir, n, folder); err != nil {
			return i, err
		}
	}
	s.logger.Info("Vault exported",
		zap.String("dir", dir),
		zap.Int("notes", len(notes)))
	return len(notes), nil
}

// ImportVault creates a note for each vault file whose id is not already
// stored. Folder names are matched against existing folders.
func (s *Service) ImportVault(ctx context.Context, dir string) (int, error) {
	entries, err := vault.ListNotes(dir)
	if err != nil {
		return 0, fmt.Errorf("read vault: %w", err)
	}
	folders, err := s.store.ListFolders(ctx)
	if err != nil {
		return 0, fmt.Errorf("list folders: %w", err)
	}
	ids := make(map[string]string, len(folders))
	for _, f := range folders {
		ids[strings.ToLower(f.Name)] = f.ID
	}

	imported := 0
	for _, e := range entries {
		note := e.Note
		if note.ID == "" {
			note.ID = uuid.New().String()
		} else if _, err := s.store.GetNote(ctx, note.ID); err == nil {
			continue
		} else if !errors.Is(err, storage.ErrNotFound) {
			return imported, err
		}
		note.Content = TextContent(note.Content)
		if id, ok := ids[strings.ToLower(e.Folder)]; ok && e.Folder != "" {
			note.FolderID = &id
		}
		now := s.now().UTC()
		if note.CreatedAt.IsZero() {
			note.CreatedAt = now
		}
		if note.UpdatedAt.IsZero() {
			note.UpdatedAt = note.CreatedAt
		}
		if err := s.store.CreateNote(ctx, &note); err != nil {
			return imported, fmt.Errorf("import %s: %w", e.Path, err)
		}
		imported++
	}
	return imported, nil
}
