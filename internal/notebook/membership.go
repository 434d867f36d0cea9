package notebook

import (
	"context"
	"fmt"

	"github.com/xaenox/memo-desk/internal/models"
)

// FolderMembers returns the notes in a folder, most recently updated first.
// Membership is recomputed from a fresh snapshot on every call.
func (s *Service) FolderMembers(ctx context.Context, folderID string) ([]models.Note, error) {
	folder, err := s.store.GetFolder(ctx, folderID)
	if err != nil {
		return nil, err
	}
	notes, err := s.store.ListNotes(ctx)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	return s.matcher.MembersOf(notes, *folder), nil
}

// FoldersForNote returns every folder the note currently belongs to.
func (s *Service) FoldersForNote(ctx context.Context, noteID string) ([]models.Folder, error) {
	note, err := s.store.GetNote(ctx, noteID)
	if err != nil {
		return nil, err
	}
	folders, err := s.store.ListFolders(ctx)
	if err != nil {
		return nil, fmt.Errorf("list folders: %w", err)
	}

	out := make([]models.Folder, 0)
	for _, f := range folders {
		if s.matcher.IsMember(*note, f) {
			out = append(out, f)
		}
	}
	return out, nil
}

type FolderCount struct {
	Folder models.Folder
	Count  int
}

// FolderCounts returns every folder with its member count, in folder order.
func (s *Service) FolderCounts(ctx context.Context) ([]FolderCount, error) {
	folders, err := s.store.ListFolders(ctx)
	if err != nil {
		return nil, fmt.Errorf("list folders: %w", err)
	}
	notes, err := s.store.ListNotes(ctx)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}

	out := make([]FolderCount, 0, len(folders))
	for _, f := range folders {
		out = append(out, FolderCount{Folder: f, Count: len(s.matcher.MembersOf(notes, f))})
	}
	return out, nil
}
