package notebook

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/xaenox/memo-desk/internal/models"
	"github.com/xaenox/memo-desk/internal/storage"
	"go.uber.org/zap"
)

func (s *Service) CreateFolder(ctx context.Context, name string, kind models.FolderKind, match models.MatchType) (*models.Folder, error) {
	now := s.now().UTC()
	folder := &models.Folder{
		ID:        uuid.New().String(),
		Name:      strings.TrimSpace(name),
		Kind:      kind,
		MatchType: models.NormalizeMatchType(match),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := folder.Validate(); err != nil {
		return nil, err
	}
	if err := s.store.CreateFolder(ctx, folder); err != nil {
		return nil, fmt.Errorf("create folder: %w", err)
	}
	s.logger.Info("Folder created",
		zap.String("folder_id", folder.ID),
		zap.String("kind", string(folder.Kind)))
	return folder, nil
}

func (s *Service) GetFolder(ctx context.Context, id string) (*models.Folder, error) {
	return s.store.GetFolder(ctx, id)
}

func (s *Service) ListFolders(ctx context.Context) ([]models.Folder, error) {
	return s.store.ListFolders(ctx)
}

// FindFolder looks a folder up by case-insensitive name.
func (s *Service) FindFolder(ctx context.Context, name string) (*models.Folder, error) {
	folders, err := s.store.ListFolders(ctx)
	if err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	for i := range folders {
		if strings.EqualFold(folders[i].Name, name) {
			return &folders[i], nil
		}
	}
	return nil, fmt.Errorf("folder %q: %w", name, storage.ErrNotFound)
}

func (s *Service) DeleteFolder(ctx context.Context, id string) error {
	return s.store.DeleteFolder(ctx, id)
}

func (s *Service) RenameFolder(ctx context.Context, id, name string) (*models.Folder, error) {
	return s.editFolder(ctx, id, false, func(f *models.Folder) error {
		f.Name = strings.TrimSpace(name)
		return nil
	})
}

func (s *Service) SetMatchType(ctx context.Context, id string, match models.MatchType) (*models.Folder, error) {
	return s.editFolder(ctx, id, true, func(f *models.Folder) error {
		f.MatchType = match
		return nil
	})
}

// AddRuleGroup appends a new group holding one condition.
func (s *Service) AddRuleGroup(ctx context.Context, folderID string, cond models.Condition) (*models.Folder, error) {
	if err := validateCondition(cond); err != nil {
		return nil, err
	}
	return s.editFolder(ctx, folderID, true, func(f *models.Folder) error {
		f.RuleGroups = append(f.RuleGroups, models.RuleGroup{Conditions: []models.Condition{cond}})
		return nil
	})
}

func (s *Service) AddCondition(ctx context.Context, folderID string, group int, cond models.Condition) (*models.Folder, error) {
	if err := validateCondition(cond); err != nil {
		return nil, err
	}
	return s.editFolder(ctx, folderID, true, func(f *models.Folder) error {
		if group < 0 || group >= len(f.RuleGroups) {
			return fmt.Errorf("%w: %d", ErrGroupIndex, group)
		}
		g := &f.RuleGroups[group]
		g.Conditions = append(g.Conditions, cond)
		return nil
	})
}

func (s *Service) UpdateCondition(ctx context.Context, folderID string, group, index int, cond models.Condition) (*models.Folder, error) {
	if err := validateCondition(cond); err != nil {
		return nil, err
	}
	return s.editFolder(ctx, folderID, true, func(f *models.Folder) error {
		if group < 0 || group >= len(f.RuleGroups) {
			return fmt.Errorf("%w: %d", ErrGroupIndex, group)
		}
		conds := f.RuleGroups[group].Conditions
		if index < 0 || index >= len(conds) {
			return fmt.Errorf("%w: %d", ErrConditionIndex, index)
		}
		conds[index] = cond
		return nil
	})
}

// RemoveCondition deletes one condition. A group left without conditions is
// removed with it, so no empty group is ever stored.
func (s *Service) RemoveCondition(ctx context.Context, folderID string, group, index int) (*models.Folder, error) {
	return s.editFolder(ctx, folderID, true, func(f *models.Folder) error {
		if group < 0 || group >= len(f.RuleGroups) {
			return fmt.Errorf("%w: %d", ErrGroupIndex, group)
		}
		conds := f.RuleGroups[group].Conditions
		if index < 0 || index >= len(conds) {
			return fmt.Errorf("%w: %d", ErrConditionIndex, index)
		}
		conds = append(conds[:index:index], conds[index+1:]...)
		if len(conds) == 0 {
			f.RuleGroups = append(f.RuleGroups[:group:group], f.RuleGroups[group+1:]...)
			return nil
		}
		f.RuleGroups[group].Conditions = conds
		return nil
	})
}

func (s *Service) RemoveRuleGroup(ctx context.Context, folderID string, group int) (*models.Folder, error) {
	return s.editFolder(ctx, folderID, true, func(f *models.Folder) error {
		if group < 0 || group >= len(f.RuleGroups) {
			return fmt.Errorf("%w: %d", ErrGroupIndex, group)
		}
		f.RuleGroups = append(f.RuleGroups[:group:group], f.RuleGroups[group+1:]...)
		return nil
	})
}

// editFolder loads, mutates, validates and stores a folder. When rulesEdit is
// set the folder must be dynamic or hybrid. Only the settings are validated
// here; callers validate the condition they add, so stored conditions that no
// longer validate do not block unrelated edits.
func (s *Service) editFolder(ctx context.Context, id string, rulesEdit bool, edit func(*models.Folder) error) (*models.Folder, error) {
	folder, err := s.store.GetFolder(ctx, id)
	if err != nil {
		return nil, err
	}
	if rulesEdit && !folder.Kind.HasRules() {
		return nil, ErrManualFolderRules
	}
	if err := edit(folder); err != nil {
		return nil, err
	}
	if err := folder.ValidateSettings(); err != nil {
		return nil, err
	}
	folder.UpdatedAt = s.now().UTC()
	if err := s.store.UpdateFolder(ctx, folder); err != nil {
		return nil, fmt.Errorf("update folder: %w", err)
	}
	return folder, nil
}

func validateCondition(c models.Condition) error {
	if err := c.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidCondition, err)
	}
	return nil
}
