// Package notebook is the application layer: it stores notes and folders,
// edits folder rules, and answers folder membership queries.
package notebook

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xaenox/memo-desk/internal/ai"
	"github.com/xaenox/memo-desk/internal/models"
	"github.com/xaenox/memo-desk/internal/rules"
	"github.com/xaenox/memo-desk/internal/storage"
	"go.uber.org/zap"
)

var (
	ErrInvalidCondition  = errors.New("notebook: invalid condition")
	ErrGroupIndex        = errors.New("notebook: rule group index out of range")
	ErrConditionIndex    = errors.New("notebook: condition index out of range")
	ErrManualFolderRules = errors.New("notebook: manual folders have no rules")
	ErrEmptyNote         = errors.New("notebook: note is empty")
	ErrAIDisabled        = errors.New("notebook: ai is disabled")
)

type Options struct {
	// AutoAnalyze fills a missing title or tags from the AI service.
	AutoAnalyze bool
	// ClipboardHistory is how many clipboard items are kept. 0 keeps all.
	ClipboardHistory int
	// ClipboardToNotes also saves each clipboard capture as a note.
	ClipboardToNotes bool
}

type Service struct {
	store   storage.Storage
	ai      ai.Service
	matcher *rules.Matcher
	opts    Options
	logger  *zap.Logger
	now     func() time.Time
}

// New builds a Service. assistant may be nil when AI is not configured.
func New(store storage.Storage, assistant ai.Service, matcher *rules.Matcher, opts Options, logger *zap.Logger) *Service {
	if matcher == nil {
		matcher = rules.NewMatcher()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:   store,
		ai:      assistant,
		matcher: matcher,
		opts:    opts,
		logger:  logger,
		now:     time.Now,
	}
}

type NoteInput struct {
	Title    string
	Content  string
	Tags     []string
	FolderID *string
}

func (s *Service) CreateNote(ctx context.Context, in NoteInput) (*models.Note, error) {
	if strings.TrimSpace(in.Title) == "" && strings.TrimSpace(rules.PlainText(in.Content)) == "" {
		return nil, ErrEmptyNote
	}

	now := s.now().UTC()
	note := &models.Note{
		ID:        uuid.New().String(),
		Title:     strings.TrimSpace(in.Title),
		Content:   in.Content,
		Tags:      normalizeTags(in.Tags),
		FolderID:  in.FolderID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if s.opts.AutoAnalyze && s.ai != nil && (note.Title == "" || len(note.Tags) == 0) {
		s.analyze(ctx, note)
	}
	if note.Title == "" {
		note.Title = "Untitled"
	}

	if err := s.store.CreateNote(ctx, note); err != nil {
		return nil, fmt.Errorf("create note: %w", err)
	}
	s.logger.Info("Note created",
		zap.String("note_id", note.ID),
		zap.Strings("tags", note.Tags))
	return note, nil
}

func (s *Service) analyze(ctx context.Context, note *models.Note) {
	analysis, err := s.ai.Analyze(ctx, rules.PlainText(note.Content))
	if err != nil {
		s.logger.Warn("Failed to analyze note",
			zap.Error(err),
			zap.String("note_id", note.ID))
		return
	}
	if note.Title == "" {
		note.Title = analysis.Title
	}
	if len(note.Tags) == 0 {
		note.Tags = normalizeTags(analysis.Tags)
	}
}

func (s *Service) GetNote(ctx context.Context, id string) (*models.Note, error) {
	return s.store.GetNote(ctx, id)
}

func (s *Service) ListNotes(ctx context.Context) ([]models.Note, error) {
	return s.store.ListNotes(ctx)
}

// UpdateNote replaces the editable fields of a note and bumps updated_at.
func (s *Service) UpdateNote(ctx context.Context, id string, in NoteInput) (*models.Note, error) {
	note, err := s.store.GetNote(ctx, id)
	if err != nil {
		return nil, err
	}
	note.Title = strings.TrimSpace(in.Title)
	note.Content = in.Content
	note.Tags = normalizeTags(in.Tags)
	note.FolderID = in.FolderID
	note.UpdatedAt = s.now().UTC()

	if err := s.store.UpdateNote(ctx, note); err != nil {
		return nil, fmt.Errorf("update note: %w", err)
	}
	return note, nil
}

func (s *Service) DeleteNote(ctx context.Context, id string) error {
	return s.store.DeleteNote(ctx, id)
}

// AssignFolder sets or clears (folderID == nil) a note's manual folder.
func (s *Service) AssignFolder(ctx context.Context, noteID string, folderID *string) error {
	if folderID != nil {
		if _, err := s.store.GetFolder(ctx, *folderID); err != nil {
			return fmt.Errorf("assign folder: %w", err)
		}
	}
	note, err := s.store.GetNote(ctx, noteID)
	if err != nil {
		return err
	}
	note.FolderID = folderID
	note.UpdatedAt = s.now().UTC()
	return s.store.UpdateNote(ctx, note)
}

// Summarize asks the AI service for a summary of the note's text.
func (s *Service) Summarize(ctx context.Context, noteID string) (string, error) {
	if s.ai == nil {
		return "", ErrAIDisabled
	}
	note, err := s.store.GetNote(ctx, noteID)
	if err != nil {
		return "", err
	}
	return s.ai.Summarize(ctx, rules.PlainText(note.Content))
}

// FixFormatting rewrites the note's content with the AI service's cleaned-up
// text. The reply is plain text and is stored escaped.
func (s *Service) FixFormatting(ctx context.Context, noteID string) (*models.Note, error) {
	if s.ai == nil {
		return nil, ErrAIDisabled
	}
	note, err := s.store.GetNote(ctx, noteID)
	if err != nil {
		return nil, err
	}
	fixed, err := s.ai.FixFormatting(ctx, rules.PlainText(note.Content))
	if err != nil {
		return nil, err
	}
	note.Content = TextContent(fixed)
	note.UpdatedAt = s.now().UTC()
	if err := s.store.UpdateNote(ctx, note); err != nil {
		return nil, fmt.Errorf("update note: %w", err)
	}
	return note, nil
}

func (s *Service) ListTags(ctx context.Context) ([]string, error) {
	return s.store.ListTags(ctx)
}

// TextContent wraps plain text as note content markup.
func TextContent(text string) string {
	return "<p>" + html.EscapeString(text) + "</p>"
}

func normalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		key := strings.ToLower(tag)
		if tag == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, tag)
	}
	return out
}
