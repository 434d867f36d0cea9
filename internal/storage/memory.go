package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/xaenox/memo-desk/internal/models"
)

type MemoryStorage struct {
	mu        sync.RWMutex
	notes     map[string]models.Note
	folders   map[string]models.Folder
	clipboard []models.ClipboardItem
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		notes:   make(map[string]models.Note),
		folders: make(map[string]models.Folder),
	}
}

// Note methods
func (s *MemoryStorage) CreateNote(ctx context.Context, note *models.Note) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.notes[note.ID] = cloneNote(*note)
	return nil
}

func (s *MemoryStorage) GetNote(ctx context.Context, id string) (*models.Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	note, exists := s.notes[id]
	if !exists {
		return nil, ErrNotFound
	}
	out := cloneNote(note)
	return &out, nil
}

func (s *MemoryStorage) UpdateNote(ctx context.Context, note *models.Note) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.notes[note.ID]; !exists {
		return ErrNotFound
	}
	s.notes[note.ID] = cloneNote(*note)
	return nil
}

func (s *MemoryStorage) DeleteNote(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.notes[id]; !exists {
		return ErrNotFound
	}
	delete(s.notes, id)
	return nil
}

func (s *MemoryStorage) ListNotes(ctx context.Context) ([]models.Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Note, 0, len(s.notes))
	for _, n := range s.notes {
		out = append(out, cloneNote(n))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

func (s *MemoryStorage) ListTags(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, n := range s.notes {
		for _, tag := range n.Tags {
			seen[tag] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for tag := range seen {
		out = append(out, tag)
	}
	sort.Strings(out)
	return out, nil
}

// Folder methods
func (s *MemoryStorage) CreateFolder(ctx context.Context, folder *models.Folder) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.folders[folder.ID] = cloneFolder(*folder)
	return nil
}

func (s *MemoryStorage) GetFolder(ctx context.Context, id string) (*models.Folder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	folder, exists := s.folders[id]
	if !exists {
		return nil, ErrNotFound
	}
	out := cloneFolder(folder)
	return &out, nil
}

func (s *MemoryStorage) UpdateFolder(ctx context.Context, folder *models.Folder) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.folders[folder.ID]; !exists {
		return ErrNotFound
	}
	s.folders[folder.ID] = cloneFolder(*folder)
	return nil
}

func (s *MemoryStorage) DeleteFolder(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.folders[id]; !exists {
		return ErrNotFound
	}
	delete(s.folders, id)
	for noteID, n := range s.notes {
		if n.HasFolder(id) {
			n.FolderID = nil
			s.notes[noteID] = n
		}
	}
	return nil
}

func (s *MemoryStorage) ListFolders(ctx context.Context) ([]models.Folder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Folder, 0, len(s.folders))
	for _, f := range s.folders {
		out = append(out, cloneFolder(f))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name == out[j].Name {
			return out[i].ID < out[j].ID
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

// Clipboard methods
func (s *MemoryStorage) SaveClipboardItem(ctx context.Context, item *models.ClipboardItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.clipboard = append(s.clipboard, *item)
	return nil
}

func (s *MemoryStorage) ListClipboardItems(ctx context.Context, limit int) ([]models.ClipboardItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.clipboard)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]models.ClipboardItem, 0, n)
	for i := len(s.clipboard) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, s.clipboard[i])
	}
	return out, nil
}

func (s *MemoryStorage) PruneClipboardItems(ctx context.Context, keep int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if keep < 0 {
		keep = 0
	}
	if len(s.clipboard) > keep {
		s.clipboard = append([]models.ClipboardItem(nil), s.clipboard[len(s.clipboard)-keep:]...)
	}
	return nil
}

func (s *MemoryStorage) Close() error {
	// Nothing to close for in-memory storage
	return nil
}

func cloneNote(n models.Note) models.Note {
	if n.Tags != nil {
		n.Tags = append([]string(nil), n.Tags...)
	}
	if n.FolderID != nil {
		id := *n.FolderID
		n.FolderID = &id
	}
	return n
}

func cloneFolder(f models.Folder) models.Folder {
	if f.RuleGroups == nil {
		return f
	}
	groups := make([]models.RuleGroup, len(f.RuleGroups))
	for i, g := range f.RuleGroups {
		groups[i] = models.RuleGroup{Conditions: append([]models.Condition(nil), g.Conditions...)}
	}
	f.RuleGroups = groups
	return f
}
