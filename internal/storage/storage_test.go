package storage

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaenox/memo-desk/internal/models"
	"go.uber.org/zap"
)

func setupSQLite(t *testing.T) *SQLiteStorage {
	t.Helper()
	store, err := OpenSQLite(filepath.Join(t.TempDir(), "memodesk-test.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func backends(t *testing.T) map[string]Storage {
	t.Helper()
	out := map[string]Storage{
		"memory": NewMemoryStorage(),
		"sqlite": setupSQLite(t),
	}
	if dsn := os.Getenv("MEMODESK_TEST_DATABASE_URL"); dsn != "" {
		db, err := sql.Open("postgres", dsn)
		require.NoError(t, err)
		_, err = db.Exec(`DROP TABLE IF EXISTS clipboard_items, notes, folders, schema_migrations`)
		require.NoError(t, err)
		require.NoError(t, db.Close())

		pg, err := newPostgresFromDSN(dsn)
		require.NoError(t, err)
		t.Cleanup(func() { _ = pg.Close() })
		out["postgres"] = pg
	}
	return out
}

func newPostgresFromDSN(dsn string) (*PostgresStorage, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := MigratePostgres(db); err != nil {
		return nil, err
	}
	return &PostgresStorage{db: db, logger: zap.NewNop()}, nil
}

func ts(t *testing.T, value string) time.Time {
	t.Helper()
	out, ok := models.ParseTime(value)
	require.True(t, ok, value)
	return out
}

func strPtr(s string) *string { return &s }

func TestNoteCRUDAndList(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			older := models.Note{
				ID:        "note-1",
				Title:     "March Invoice",
				Content:   "<p>pay</p>",
				Tags:      []string{"finance", "work"},
				CreatedAt: ts(t, "2024-01-01T10:00:00Z"),
				UpdatedAt: ts(t, "2024-01-02T10:00:00Z"),
			}
			newer := models.Note{
				ID:        "note-2",
				Title:     "Groceries",
				Tags:      []string{"home"},
				FolderID:  strPtr("folder-1"),
				CreatedAt: ts(t, "2024-02-01T10:00:00Z"),
				UpdatedAt: ts(t, "2024-02-01T10:00:00Z"),
			}
			require.NoError(t, store.CreateNote(ctx, &older))
			require.NoError(t, store.CreateNote(ctx, &newer))

			got, err := store.GetNote(ctx, older.ID)
			require.NoError(t, err)
			assert.Equal(t, older.Title, got.Title)
			assert.Equal(t, older.Tags, got.Tags)
			assert.Nil(t, got.FolderID)
			assert.True(t, got.CreatedAt.Equal(older.CreatedAt))

			list, err := store.ListNotes(ctx)
			require.NoError(t, err)
			require.Len(t, list, 2)
			assert.Equal(t, "note-2", list[0].ID)
			require.NotNil(t, list[0].FolderID)
			assert.Equal(t, "folder-1", *list[0].FolderID)

			older.Title = "April Invoice"
			older.UpdatedAt = ts(t, "2024-03-01T00:00:00Z")
			require.NoError(t, store.UpdateNote(ctx, &older))
			list, err = store.ListNotes(ctx)
			require.NoError(t, err)
			assert.Equal(t, "note-1", list[0].ID)
			assert.Equal(t, "April Invoice", list[0].Title)

			tags, err := store.ListTags(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"finance", "home", "work"}, tags)

			require.NoError(t, store.DeleteNote(ctx, older.ID))
			_, err = store.GetNote(ctx, older.ID)
			assert.ErrorIs(t, err, ErrNotFound)
			assert.ErrorIs(t, store.DeleteNote(ctx, older.ID), ErrNotFound)
			assert.ErrorIs(t, store.UpdateNote(ctx, &models.Note{ID: "missing"}), ErrNotFound)
		})
	}
}

func TestFolderCRUDClearsAssignmentsOnDelete(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			now := ts(t, "2024-01-01T00:00:00Z")

			folder := models.Folder{
				ID:        "folder-1",
				Name:      "Invoices",
				Kind:      models.FolderHybrid,
				MatchType: models.MatchAny,
				RuleGroups: []models.RuleGroup{{Conditions: []models.Condition{
					{Field: models.FieldTitle, Operator: models.OpContains, Value: "invoice"},
				}}},
				CreatedAt: now,
				UpdatedAt: now,
			}
			require.NoError(t, store.CreateFolder(ctx, &folder))
			require.NoError(t, store.CreateFolder(ctx, &models.Folder{
				ID: "folder-0", Name: "Archive", Kind: models.FolderManual, MatchType: models.MatchAll,
				CreatedAt: now, UpdatedAt: now,
			}))

			got, err := store.GetFolder(ctx, folder.ID)
			require.NoError(t, err)
			assert.Equal(t, folder.RuleGroups, got.RuleGroups)
			assert.Equal(t, models.MatchAny, got.MatchType)

			folder.Name = "Bills"
			folder.RuleGroups = append(folder.RuleGroups, models.RuleGroup{Conditions: []models.Condition{
				{Field: models.FieldTags, Operator: models.OpHasAny, Value: "finance"},
			}})
			require.NoError(t, store.UpdateFolder(ctx, &folder))

			folders, err := store.ListFolders(ctx)
			require.NoError(t, err)
			require.Len(t, folders, 2)
			assert.Equal(t, "Archive", folders[0].Name)
			assert.Equal(t, "Bills", folders[1].Name)
			assert.Len(t, folders[1].RuleGroups, 2)

			note := models.Note{ID: "n1", Title: "x", FolderID: strPtr(folder.ID), UpdatedAt: now}
			require.NoError(t, store.CreateNote(ctx, &note))

			require.NoError(t, store.DeleteFolder(ctx, folder.ID))
			_, err = store.GetFolder(ctx, folder.ID)
			assert.ErrorIs(t, err, ErrNotFound)

			reloaded, err := store.GetNote(ctx, note.ID)
			require.NoError(t, err)
			assert.Nil(t, reloaded.FolderID)
			assert.ErrorIs(t, store.DeleteFolder(ctx, folder.ID), ErrNotFound)
		})
	}
}

func TestClipboardHistory(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			base := ts(t, "2024-01-01T00:00:00Z")
			for i, content := range []string{"one", "two", "three", "four"} {
				item := models.ClipboardItem{
					ID:        "clip-" + content,
					Type:      models.ClipboardText,
					Content:   content,
					CreatedAt: base.Add(time.Duration(i) * time.Minute),
				}
				require.NoError(t, store.SaveClipboardItem(ctx, &item))
			}

			latest, err := store.ListClipboardItems(ctx, 2)
			require.NoError(t, err)
			require.Len(t, latest, 2)
			assert.Equal(t, "four", latest[0].Content)
			assert.Equal(t, "three", latest[1].Content)

			require.NoError(t, store.PruneClipboardItems(ctx, 3))
			all, err := store.ListClipboardItems(ctx, 0)
			require.NoError(t, err)
			require.Len(t, all, 3)
			assert.Equal(t, "two", all[2].Content)
			assert.True(t, all[0].CreatedAt.Equal(base.Add(3*time.Minute)))
		})
	}
}

func TestSQLiteLoadsLegacyRuleGroups(t *testing.T) {
	store := setupSQLite(t)
	ctx := context.Background()

	_, err := store.db.ExecContext(ctx, `
		INSERT INTO folders (id, name, kind, match_type, rule_groups, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		"legacy", "Legacy", "dynamic", "",
		`[{"field":"title","operator":"contains","value":"invoice"},{"conditions":[]}]`,
		"2024-01-01T00:00:00Z", "2024-01-01T00:00:00Z")
	require.NoError(t, err)

	folder, err := store.GetFolder(ctx, "legacy")
	require.NoError(t, err)
	assert.Equal(t, models.MatchAll, folder.MatchType)
	require.Len(t, folder.RuleGroups, 1)
	assert.Equal(t, []models.Condition{{Field: models.FieldTitle, Operator: models.OpContains, Value: "invoice"}},
		folder.RuleGroups[0].Conditions)
}

func TestSQLiteKeepsGroupsBesideMalformedOne(t *testing.T) {
	store := setupSQLite(t)
	ctx := context.Background()

	_, err := store.db.ExecContext(ctx, `
		INSERT INTO folders (id, name, kind, match_type, rule_groups, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		"mixed", "Mixed", "dynamic", "any",
		`[{"conditions":[{"field":"title","operator":"contains","value":"invoice"}]},{"field":"created_date","operator":"last_n_days","value":30}]`,
		"2024-01-01T00:00:00Z", "2024-01-01T00:00:00Z")
	require.NoError(t, err)

	folder, err := store.GetFolder(ctx, "mixed")
	require.NoError(t, err)
	require.Len(t, folder.RuleGroups, 2)
	assert.Equal(t, "invoice", folder.RuleGroups[0].Conditions[0].Value)
	assert.Equal(t, models.Condition{Field: models.FieldCreatedDate, Operator: models.OpLastNDays, Value: "30"},
		folder.RuleGroups[1].Conditions[0])
}

func TestSQLiteUnparsableTimestampsReadAsZero(t *testing.T) {
	store := setupSQLite(t)
	ctx := context.Background()

	_, err := store.db.ExecContext(ctx, `
		INSERT INTO notes (id, title, content, tags, folder_id, created_at, updated_at)
		VALUES ('odd', 'Odd', '', '["a"]', NULL, 'last tuesday', NULL)`)
	require.NoError(t, err)

	note, err := store.GetNote(ctx, "odd")
	require.NoError(t, err)
	assert.True(t, note.CreatedAt.IsZero())
	assert.True(t, note.UpdatedAt.IsZero())
	assert.Equal(t, []string{"a"}, note.Tags)
}
