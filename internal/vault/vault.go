// Package vault writes notes to a directory of markdown files with YAML
// frontmatter and reads them back.
package vault

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/xaenox/memo-desk/internal/models"
	"github.com/xaenox/memo-desk/internal/rules"
	"gopkg.in/yaml.v3"
)

var ErrInvalidFrontmatter = errors.New("vault: invalid frontmatter")

type frontmatter struct {
	ID        string    `yaml:"id"`
	Title     string    `yaml:"title"`
	Tags      []string  `yaml:"tags,omitempty"`
	Folder    string    `yaml:"folder,omitempty"`
	CreatedAt time.Time `yaml:"created_at,omitempty"`
	UpdatedAt time.Time `yaml:"updated_at,omitempty"`
}

// Entry is a note as stored in the vault. Folder is the folder name, not its id.
type Entry struct {
	Path   string
	Note   models.Note
	Folder string
}

// WriteNote writes note to dir and returns the file path. The body is the
// plain text of the note content.
func WriteNote(dir string, note models.Note, folder string) (string, error) {
	var buf bytes.Buffer

	buf.WriteString("---\n")
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	fm := frontmatter{
		ID:        note.ID,
		Title:     note.Title,
		Tags:      note.Tags,
		Folder:    folder,
		CreatedAt: note.CreatedAt.UTC(),
		UpdatedAt: note.UpdatedAt.UTC(),
	}
	if err := encoder.Encode(fm); err != nil {
		return "", fmt.Errorf("encode frontmatter: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return "", fmt.Errorf("encode frontmatter: %w", err)
	}
	buf.WriteString("---\n\n")
	buf.WriteString(rules.PlainText(note.Content))
	buf.WriteString("\n")

	path := filepath.Join(dir, FileName(note))
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("write note %s: %w", note.ID, err)
	}
	return path, nil
}

func ReadNote(path string) (Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Entry{}, err
	}

	parts := bytes.SplitN(data, []byte("---"), 3)
	if len(parts) < 3 || len(bytes.TrimSpace(parts[0])) != 0 {
		return Entry{}, ErrInvalidFrontmatter
	}

	var fm frontmatter
	if err := yaml.Unmarshal(parts[1], &fm); err != nil {
		return Entry{}, fmt.Errorf("%w: %v", ErrInvalidFrontmatter, err)
	}
	if fm.ID == "" {
		return Entry{}, fmt.Errorf("%w: missing id", ErrInvalidFrontmatter)
	}

	return Entry{
		Path:   path,
		Folder: fm.Folder,
		Note: models.Note{
			ID:        fm.ID,
			Title:     fm.Title,
			Content:   string(bytes.TrimSpace(parts[2])),
			Tags:      fm.Tags,
			CreatedAt: fm.CreatedAt.UTC(),
			UpdatedAt: fm.UpdatedAt.UTC(),
		},
	}, nil
}

// ListNotes reads every .md file in dir, skipping files that do not parse.
// Entries are sorted by path.
func ListNotes(dir string) ([]Entry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	out := make([]Entry, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}
		e, err := ReadNote(filepath.Join(dir, entry.Name()))
		if err != nil {
			continue // Skip invalid notes
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

var unsafeChars = regexp.MustCompile(`[^a-z0-9]+`)

// FileName is "<slug>-<id prefix>.md"; the id keeps names unique.
func FileName(note models.Note) string {
	slug := strings.Trim(unsafeChars.ReplaceAllString(strings.ToLower(note.Title), "-"), "-")
	if len(slug) > 48 {
		slug = strings.Trim(slug[:48], "-")
	}
	if slug == "" {
		slug = "note"
	}
	id := note.ID
	if len(id) > 8 {
		id = id[:8]
	}
	return slug + "-" + id + ".md"
}
