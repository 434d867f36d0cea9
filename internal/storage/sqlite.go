package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/xaenox/memo-desk/internal/models"
	"go.uber.org/zap"
)

// Fixed-width UTC layout so timestamps sort correctly as text.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z"

type SQLiteStorage struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewSQLiteStorage(db *sql.DB, logger *zap.Logger) (*SQLiteStorage, error) {
	if db == nil {
		return nil, errors.New("storage: nil db")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SQLiteStorage{db: db, logger: logger}, nil
}

// OpenSQLite opens the database file at path and brings its schema up to date.
func OpenSQLite(path string, logger *zap.Logger) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single connection keeps writes serialized.
	db.SetMaxOpenConns(1)

	if err := MigrateSQLite(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return NewSQLiteStorage(db, logger)
}

const sqliteNoteColumns = `id, title, content, tags, folder_id, created_at, updated_at`

func (s *SQLiteStorage) CreateNote(ctx context.Context, note *models.Note) error {
	tags, err := encodeTags(note.Tags)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO notes (`+sqliteNoteColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		note.ID, note.Title, note.Content, tags, note.FolderID,
		nullTime(note.CreatedAt), nullTime(note.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("create note: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) GetNote(ctx context.Context, id string) (*models.Note, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sqliteNoteColumns+` FROM notes WHERE id = ?`, id)
	note, err := s.scanNote(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get note: %w", err)
	}
	return &note, nil
}

func (s *SQLiteStorage) UpdateNote(ctx context.Context, note *models.Note) error {
	tags, err := encodeTags(note.Tags)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE notes
		SET title = ?, content = ?, tags = ?, folder_id = ?, updated_at = ?
		WHERE id = ?`,
		note.Title, note.Content, tags, note.FolderID, nullTime(note.UpdatedAt), note.ID,
	)
	if err != nil {
		return fmt.Errorf("update note: %w", err)
	}
	return checkRowsAffected(res)
}

func (s *SQLiteStorage) DeleteNote(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM notes WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete note: %w", err)
	}
	return checkRowsAffected(res)
}

func (s *SQLiteStorage) ListNotes(ctx context.Context) ([]models.Note, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+sqliteNoteColumns+`
		FROM notes
		ORDER BY updated_at IS NULL, updated_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	defer rows.Close()

	out := make([]models.Note, 0)
	for rows.Next() {
		note, scanErr := s.scanNote(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan note: %w", scanErr)
		}
		out = append(out, note)
	}
	return out, rows.Err()
}

func (s *SQLiteStorage) ListTags(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT j.value
		FROM notes, json_each(notes.tags) AS j
		ORDER BY j.value`)
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	defer rows.Close()

	out := make([]string, 0)
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		out = append(out, tag)
	}
	return out, rows.Err()
}

const sqliteFolderColumns = `id, name, kind, match_type, rule_groups, created_at, updated_at`

func (s *SQLiteStorage) CreateFolder(ctx context.Context, folder *models.Folder) error {
	groups, err := models.EncodeRuleGroups(folder.RuleGroups)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO folders (`+sqliteFolderColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		folder.ID, folder.Name, folder.Kind, folder.MatchType, string(groups),
		mustTime(folder.CreatedAt), mustTime(folder.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("create folder: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) GetFolder(ctx context.Context, id string) (*models.Folder, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sqliteFolderColumns+` FROM folders WHERE id = ?`, id)
	folder, err := s.scanFolder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get folder: %w", err)
	}
	return &folder, nil
}

func (s *SQLiteStorage) UpdateFolder(ctx context.Context, folder *models.Folder) error {
	groups, err := models.EncodeRuleGroups(folder.RuleGroups)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE folders
		SET name = ?, kind = ?, match_type = ?, rule_groups = ?, updated_at = ?
		WHERE id = ?`,
		folder.Name, folder.Kind, folder.MatchType, string(groups), mustTime(folder.UpdatedAt), folder.ID,
	)
	if err != nil {
		return fmt.Errorf("update folder: %w", err)
	}
	return checkRowsAffected(res)
}

func (s *SQLiteStorage) DeleteFolder(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM folders WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete folder: %w", err)
	}
	if err := checkRowsAffected(res); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE notes SET folder_id = NULL WHERE folder_id = ?`, id); err != nil {
		return fmt.Errorf("clear folder assignment: %w", err)
	}
	return tx.Commit()
}

func (s *SQLiteStorage) ListFolders(ctx context.Context) ([]models.Folder, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+sqliteFolderColumns+` FROM folders ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("list folders: %w", err)
	}
	defer rows.Close()

	out := make([]models.Folder, 0)
	for rows.Next() {
		folder, scanErr := s.scanFolder(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan folder: %w", scanErr)
		}
		out = append(out, folder)
	}
	return out, rows.Err()
}

func (s *SQLiteStorage) SaveClipboardItem(ctx context.Context, item *models.ClipboardItem) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO clipboard_items (id, type, content, created_at) VALUES (?, ?, ?, ?)`,
		item.ID, item.Type, item.Content, mustTime(item.CreatedAt))
	if err != nil {
		return fmt.Errorf("save clipboard item: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) ListClipboardItems(ctx context.Context, limit int) ([]models.ClipboardItem, error) {
	query := `SELECT id, type, content, created_at FROM clipboard_items ORDER BY seq DESC`
	args := make([]any, 0, 1)
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list clipboard items: %w", err)
	}
	defer rows.Close()

	out := make([]models.ClipboardItem, 0)
	for rows.Next() {
		var (
			item      models.ClipboardItem
			createdAt string
		)
		if err := rows.Scan(&item.ID, &item.Type, &item.Content, &createdAt); err != nil {
			return nil, fmt.Errorf("scan clipboard item: %w", err)
		}
		item.CreatedAt = parseStoredTime(createdAt)
		out = append(out, item)
	}
	return out, rows.Err()
}

func (s *SQLiteStorage) PruneClipboardItems(ctx context.Context, keep int) error {
	if keep < 0 {
		keep = 0
	}
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM clipboard_items
		WHERE seq NOT IN (SELECT seq FROM clipboard_items ORDER BY seq DESC LIMIT ?)`, keep)
	if err != nil {
		return fmt.Errorf("prune clipboard items: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func (s *SQLiteStorage) scanNote(row rowScanner) (models.Note, error) {
	var (
		note      models.Note
		tags      string
		folderID  sql.NullString
		createdAt sql.NullString
		updatedAt sql.NullString
	)
	if err := row.Scan(&note.ID, &note.Title, &note.Content, &tags, &folderID, &createdAt, &updatedAt); err != nil {
		return models.Note{}, err
	}
	if err := json.Unmarshal([]byte(tags), &note.Tags); err != nil {
		s.logger.Warn("Ignoring unreadable note tags",
			zap.Error(err),
			zap.String("note_id", note.ID))
		note.Tags = nil
	}
	if folderID.Valid && folderID.String != "" {
		note.FolderID = &folderID.String
	}
	// Unparsable timestamps stay zero and read as "no value" in rules.
	note.CreatedAt = parseStoredTime(createdAt.String)
	note.UpdatedAt = parseStoredTime(updatedAt.String)
	return note, nil
}

func (s *SQLiteStorage) scanFolder(row rowScanner) (models.Folder, error) {
	var (
		folder    models.Folder
		groups    string
		createdAt string
		updatedAt string
	)
	if err := row.Scan(&folder.ID, &folder.Name, &folder.Kind, &folder.MatchType, &groups, &createdAt, &updatedAt); err != nil {
		return models.Folder{}, err
	}
	decoded, err := models.DecodeRuleGroups([]byte(groups))
	if err != nil {
		s.logger.Warn("Dropping unreadable rule groups",
			zap.Error(err),
			zap.String("folder_id", folder.ID))
	}
	folder.RuleGroups = decoded
	folder.MatchType = models.NormalizeMatchType(folder.MatchType)
	folder.CreatedAt = parseStoredTime(createdAt)
	folder.UpdatedAt = parseStoredTime(updatedAt)
	return folder, nil
}

func encodeTags(tags []string) (string, error) {
	data, err := json.Marshal(nonNilTags(tags))
	if err != nil {
		return "", fmt.Errorf("encode tags: %w", err)
	}
	return string(data), nil
}

func mustTime(t time.Time) string {
	return t.UTC().Format(sqliteTimeLayout)
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return mustTime(t)
}

func parseStoredTime(s string) time.Time {
	t, ok := models.ParseTime(s)
	if !ok {
		return time.Time{}
	}
	return t
}
