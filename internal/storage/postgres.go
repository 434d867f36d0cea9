package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/xaenox/memo-desk/internal/models"
	"go.uber.org/zap"
)

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

type PostgresStorage struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewPostgresStorage(config DatabaseConfig, logger *zap.Logger) (*PostgresStorage, error) {
	db, err := sql.Open("postgres", config.DSN())
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("error connecting to the database: %w", err)
	}

	if err := MigratePostgres(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("error initializing database schema: %w", err)
	}

	logger.Info("Connected to PostgreSQL",
		zap.String("host", config.Host),
		zap.String("dbname", config.DBName))

	return &PostgresStorage{db: db, logger: logger}, nil
}

const pgNoteColumns = `id, title, content, tags, folder_id, created_at, updated_at`

func (s *PostgresStorage) CreateNote(ctx context.Context, note *models.Note) error {
	query := `
		INSERT INTO notes (` + pgNoteColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := s.db.ExecContext(ctx, query,
		note.ID,
		note.Title,
		note.Content,
		pq.Array(nonNilTags(note.Tags)),
		note.FolderID,
		pgTime(note.CreatedAt),
		pgTime(note.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("error creating note: %w", err)
	}
	return nil
}

func (s *PostgresStorage) GetNote(ctx context.Context, id string) (*models.Note, error) {
	query := `SELECT ` + pgNoteColumns + ` FROM notes WHERE id = $1`

	note, err := scanPGNote(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error getting note: %w", err)
	}
	return &note, nil
}

func (s *PostgresStorage) UpdateNote(ctx context.Context, note *models.Note) error {
	query := `
		UPDATE notes
		SET title = $1, content = $2, tags = $3, folder_id = $4, updated_at = $5
		WHERE id = $6`

	result, err := s.db.ExecContext(ctx, query,
		note.Title,
		note.Content,
		pq.Array(nonNilTags(note.Tags)),
		note.FolderID,
		pgTime(note.UpdatedAt),
		note.ID,
	)
	if err != nil {
		return fmt.Errorf("error updating note: %w", err)
	}
	return checkRowsAffected(result)
}

func (s *PostgresStorage) DeleteNote(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM notes WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("error deleting note: %w", err)
	}
	return checkRowsAffected(result)
}

func (s *PostgresStorage) ListNotes(ctx context.Context) ([]models.Note, error) {
	query := `
		SELECT ` + pgNoteColumns + `
		FROM notes
		ORDER BY updated_at DESC NULLS LAST, id`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error querying notes: %w", err)
	}
	defer rows.Close()

	notes := make([]models.Note, 0)
	for rows.Next() {
		note, err := scanPGNote(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning note: %w", err)
		}
		notes = append(notes, note)
	}
	return notes, rows.Err()
}

func (s *PostgresStorage) ListTags(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT unnest(tags) AS tag FROM notes ORDER BY tag`)
	if err != nil {
		return nil, fmt.Errorf("error querying tags: %w", err)
	}
	defer rows.Close()

	tags := make([]string, 0)
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, fmt.Errorf("error scanning tag: %w", err)
		}
		tags = append(tags, tag)
	}
	return tags, rows.Err()
}

const pgFolderColumns = `id, name, kind, match_type, rule_groups, created_at, updated_at`

func (s *PostgresStorage) CreateFolder(ctx context.Context, folder *models.Folder) error {
	groups, err := models.EncodeRuleGroups(folder.RuleGroups)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO folders (` + pgFolderColumns + `)
		VALUES ($1, $2, $3, $4, $5::jsonb, $6, $7)`

	_, err = s.db.ExecContext(ctx, query,
		folder.ID,
		folder.Name,
		folder.Kind,
		folder.MatchType,
		string(groups),
		folder.CreatedAt,
		folder.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("error creating folder: %w", err)
	}
	return nil
}

func (s *PostgresStorage) GetFolder(ctx context.Context, id string) (*models.Folder, error) {
	query := `SELECT ` + pgFolderColumns + ` FROM folders WHERE id = $1`

	folder, err := s.scanFolder(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error getting folder: %w", err)
	}
	return &folder, nil
}

func (s *PostgresStorage) UpdateFolder(ctx context.Context, folder *models.Folder) error {
	groups, err := models.EncodeRuleGroups(folder.RuleGroups)
	if err != nil {
		return err
	}

	query := `
		UPDATE folders
		SET name = $1, kind = $2, match_type = $3, rule_groups = $4::jsonb, updated_at = $5
		WHERE id = $6`

	result, err := s.db.ExecContext(ctx, query,
		folder.Name,
		folder.Kind,
		folder.MatchType,
		string(groups),
		folder.UpdatedAt,
		folder.ID,
	)
	if err != nil {
		return fmt.Errorf("error updating folder: %w", err)
	}
	return checkRowsAffected(result)
}

func (s *PostgresStorage) DeleteFolder(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error starting transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `DELETE FROM folders WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("error deleting folder: %w", err)
	}
	if err := checkRowsAffected(result); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE notes SET folder_id = NULL WHERE folder_id = $1`, id); err != nil {
		return fmt.Errorf("error clearing folder assignment: %w", err)
	}
	return tx.Commit()
}

func (s *PostgresStorage) ListFolders(ctx context.Context) ([]models.Folder, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+pgFolderColumns+` FROM folders ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("error querying folders: %w", err)
	}
	defer rows.Close()

	folders := make([]models.Folder, 0)
	for rows.Next() {
		folder, err := s.scanFolder(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning folder: %w", err)
		}
		folders = append(folders, folder)
	}
	return folders, rows.Err()
}

func (s *PostgresStorage) SaveClipboardItem(ctx context.Context, item *models.ClipboardItem) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO clipboard_items (id, type, content, created_at) VALUES ($1, $2, $3, $4)`,
		item.ID, item.Type, item.Content, item.CreatedAt)
	if err != nil {
		return fmt.Errorf("error saving clipboard item: %w", err)
	}
	return nil
}

func (s *PostgresStorage) ListClipboardItems(ctx context.Context, limit int) ([]models.ClipboardItem, error) {
	query := `SELECT id, type, content, created_at FROM clipboard_items ORDER BY seq DESC`
	args := make([]any, 0, 1)
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying clipboard items: %w", err)
	}
	defer rows.Close()

	items := make([]models.ClipboardItem, 0)
	for rows.Next() {
		var item models.ClipboardItem
		if err := rows.Scan(&item.ID, &item.Type, &item.Content, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning clipboard item: %w", err)
		}
		item.CreatedAt = item.CreatedAt.UTC()
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *PostgresStorage) PruneClipboardItems(ctx context.Context, keep int) error {
	if keep < 0 {
		keep = 0
	}
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM clipboard_items
		WHERE seq NOT IN (SELECT seq FROM clipboard_items ORDER BY seq DESC LIMIT $1)`, keep)
	if err != nil {
		return fmt.Errorf("error pruning clipboard items: %w", err)
	}
	return nil
}

func (s *PostgresStorage) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPGNote(row rowScanner) (models.Note, error) {
	var (
		note      models.Note
		tags      pq.StringArray
		folderID  sql.NullString
		createdAt sql.NullTime
		updatedAt sql.NullTime
	)
	if err := row.Scan(&note.ID, &note.Title, &note.Content, &tags, &folderID, &createdAt, &updatedAt); err != nil {
		return models.Note{}, err
	}
	note.Tags = []string(tags)
	if folderID.Valid {
		note.FolderID = &folderID.String
	}
	if createdAt.Valid {
		note.CreatedAt = createdAt.Time.UTC()
	}
	if updatedAt.Valid {
		note.UpdatedAt = updatedAt.Time.UTC()
	}
	return note, nil
}

// scanFolder loads rule groups through the legacy migration so older rows
// come back in the canonical shape.
func (s *PostgresStorage) scanFolder(row rowScanner) (models.Folder, error) {
	var (
		folder models.Folder
		groups []byte
	)
	if err := row.Scan(&folder.ID, &folder.Name, &folder.Kind, &folder.MatchType, &groups, &folder.CreatedAt, &folder.UpdatedAt); err != nil {
		return models.Folder{}, err
	}
	decoded, err := models.DecodeRuleGroups(groups)
	if err != nil {
		s.logger.Warn("Dropping unreadable rule groups",
			zap.Error(err),
			zap.String("folder_id", folder.ID))
	}
	folder.RuleGroups = decoded
	folder.MatchType = models.NormalizeMatchType(folder.MatchType)
	folder.CreatedAt = folder.CreatedAt.UTC()
	folder.UpdatedAt = folder.UpdatedAt.UTC()
	return folder, nil
}

func pgTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC()
}

func nonNilTags(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}

func checkRowsAffected(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("error getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
