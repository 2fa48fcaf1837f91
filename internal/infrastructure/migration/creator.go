package migration

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"text/template"
	"time"

	"github.com/healthbudget/backend/migrations"
)

var fileTemplate = template.Must(template.New("migration").Parse(
	`-- {{.Name}}{{if .Down}} (rollback){{end}}
-- Created: {{.Created}}
{{- with .Description}}
-- {{.}}
{{- end}}
{{if .Down}}
-- Drop in reverse dependency order.
{{else}}
-- Money columns are DECIMAL(18, 2); keys are UUID.
{{end}}`))

// MigrationFile describes a generated up/down pair
type MigrationFile struct {
	Version     string
	Name        string
	Description string
	UpPath      string
	DownPath    string
}

// CreateMigration writes <version>_<name>.up.sql and .down.sql into dir.
// The version is a UTC timestamp so files sort in creation order.
func CreateMigration(dir, name, description string) (*MigrationFile, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create migrations directory: %w", err)
	}

	now := time.Now().UTC()
	version := now.Format("20060102150405")
	base := filepath.Join(dir, version+"_"+sanitizeName(name))
	mf := &MigrationFile{
		Version:     version,
		Name:        name,
		Description: description,
		UpPath:      base + ".up.sql",
		DownPath:    base + ".down.sql",
	}

	for _, f := range []struct {
		path string
		down bool
	}{{mf.UpPath, false}, {mf.DownPath, true}} {
		var buf bytes.Buffer
		err := fileTemplate.Execute(&buf, map[string]any{
			"Name":        name,
			"Description": description,
			"Created":     now.Format(time.RFC3339),
			"Down":        f.down,
		})
		if err == nil {
			err = os.WriteFile(f.path, buf.Bytes(), 0o644)
		}
		if err != nil {
			_ = os.Remove(mf.UpPath)
			return nil, fmt.Errorf("write %s: %w", filepath.Base(f.path), err)
		}
	}
	return mf, nil
}

var (
	unsafeChars = regexp.MustCompile(`[^a-z0-9\s_-]+`)
	separators  = regexp.MustCompile(`[\s_-]+`)
)

// sanitizeName lowercases name and joins its words with single underscores
func sanitizeName(name string) string {
	s := unsafeChars.ReplaceAllString(strings.ToLower(name), "")
	return strings.Trim(separators.ReplaceAllString(s, "_"), "_")
}

// ListMigrations returns the sorted base names of the up migrations in dir.
// An empty dir lists the embedded schema; a missing dir lists nothing.
func ListMigrations(dir string) ([]string, error) {
	fsys := fs.FS(migrations.FS)
	if dir != "" {
		fsys = os.DirFS(dir)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read migrations: %w", err)
	}

	names := []string{}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if base, ok := strings.CutSuffix(e.Name(), ".up.sql"); ok && base != "" {
			names = append(names, base)
		}
	}
	slices.Sort(names)
	return names, nil
}
