package migrate

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	versionLayout = "20060102150405"
	upMarker      = "-- +goose Up"
	downMarker    = "-- +goose Down"
)

const sqlTemplate = `-- +goose Up
-- +goose StatementBegin
-- %[1]s
-- +goose StatementEnd

-- +goose Down
-- +goose StatementBegin
-- rollback %[1]s
-- +goose StatementEnd
`

// migrationFile is a parsed <version>_<name>.sql filename.
type migrationFile struct {
	version int64
	name    string
	file    string
}

func parseFilename(file string) (migrationFile, bool) {
	base, ok := strings.CutSuffix(file, ".sql")
	if !ok {
		return migrationFile{}, false
	}
	version, name, ok := strings.Cut(base, "_")
	if !ok || len(version) != len(versionLayout) || name != slug(name) || name == "" {
		return migrationFile{}, false
	}
	if _, err := time.Parse(versionLayout, version); err != nil {
		return migrationFile{}, false
	}
	v, err := strconv.ParseInt(version, 10, 64)
	if err != nil {
		return migrationFile{}, false
	}
	return migrationFile{version: v, name: name, file: file}, true
}

// slug lowercases name and collapses every run of other characters into one underscore.
func slug(name string) string {
	var b strings.Builder
	pending := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pending && b.Len() > 0 {
				b.WriteByte('_')
			}
			pending = false
			b.WriteRune(r)
			continue
		}
		pending = true
	}
	return b.String()
}

// CreateSQLMigration writes an empty goose migration named after the current
// UTC time. If that version is not newer than every existing file, the latest
// version plus one second is used so ordering is preserved.
func CreateSQLMigration(dir, name string) (string, error) {
	if dir == "" {
		return "", errors.New("dir is required")
	}
	safe := slug(name)
	if safe == "" {
		return "", fmt.Errorf("migration name %q has no usable characters", name)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", dir, err)
	}

	existing, err := listMigrations(os.DirFS(dir), ".")
	if err != nil {
		return "", err
	}
	version := time.Now().UTC().Truncate(time.Second)
	if n := len(existing); n > 0 {
		latest, _ := time.Parse(versionLayout, strconv.FormatInt(existing[n-1].version, 10))
		if !version.After(latest) {
			version = latest.Add(time.Second)
		}
	}

	full := filepath.Join(dir, version.Format(versionLayout)+"_"+safe+".sql")
	f, err := os.OpenFile(full, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create migration: %w", err)
	}
	if _, err := fmt.Fprintf(f, sqlTemplate, safe); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("write migration: %w", err)
	}
	return full, f.Close()
}

// ValidateDir checks the migration files in dir. See ValidateFS.
func ValidateDir(dir string) error {
	if dir == "" {
		return errors.New("dir is required")
	}
	return ValidateFS(os.DirFS(dir), ".")
}

// ValidateFS requires at least one migration, unique versions, and an Up
// section followed by a Down section in every file.
func ValidateFS(fsys fs.FS, dir string) error {
	files, err := listMigrations(fsys, dir)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no migrations found in %q", dir)
	}
	for i, m := range files {
		if i > 0 && files[i-1].version == m.version {
			return fmt.Errorf("duplicate migration version %d in %q and %q", m.version, files[i-1].file, m.file)
		}
		body, err := fs.ReadFile(fsys, path.Join(dir, m.file))
		if err != nil {
			return fmt.Errorf("read %s: %w", m.file, err)
		}
		up := strings.Index(string(body), upMarker)
		down := strings.Index(string(body), downMarker)
		switch {
		case up < 0:
			return fmt.Errorf("migration %q missing %q", m.file, upMarker)
		case down < 0:
			return fmt.Errorf("migration %q missing %q", m.file, downMarker)
		case down < up:
			return fmt.Errorf("migration %q has its Down section before Up", m.file)
		}
	}
	return nil
}

// listMigrations returns the .sql files in dir ordered by version. Any .sql
// file with a malformed name is an error.
func listMigrations(fsys fs.FS, dir string) ([]migrationFile, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read migrations dir: %w", err)
	}
	var out []migrationFile
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		m, ok := parseFilename(e.Name())
		if !ok {
			return nil, fmt.Errorf("invalid migration filename %q (want YYYYMMDDHHMMSS_name.sql)", e.Name())
		}
		out = append(out, m)
	}
	// fs.ReadDir sorts by filename and versions are fixed width, so out is already ordered.
	return out, nil
}
