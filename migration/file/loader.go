// Package file loads operator-supplied SQL migrations from a directory. Files
// are named <version>_<name>.up.sql with an optional matching .down.sql.
package file

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/beesaferoot/kost-manager/migration"
)

const (
	upSuffix   = ".up.sql"
	downSuffix = ".down.sql"
)

// MigrationLoader handles loading SQL migration files
type MigrationLoader struct {
	directory string
}

// NewMigrationLoader creates a new migration loader
func NewMigrationLoader(directory string) *MigrationLoader {
	return &MigrationLoader{directory: directory}
}

// LoadMigrations reads every *.up.sql file in the directory. A missing
// directory yields no migrations.
func (l *MigrationLoader) LoadMigrations() ([]*migration.Migration, error) {
	if l.directory == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(l.directory)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var out []*migration.Migration
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), upSuffix) {
			continue
		}
		mr, err := l.parse(entry)
		if err != nil {
			return nil, fmt.Errorf("failed to parse migration file %s: %w", entry.Name(), err)
		}
		out = append(out, mr)
	}
	migration.SortByVersion(out)
	return out, nil
}

func (l *MigrationLoader) parse(entry os.DirEntry) (*migration.Migration, error) {
	base := strings.TrimSuffix(entry.Name(), upSuffix)
	version, name, ok := strings.Cut(base, "_")
	if !ok || version == "" || name == "" {
		return nil, fmt.Errorf("invalid migration filename format: %s", entry.Name())
	}

	upPath := filepath.Join(l.directory, entry.Name())
	up, err := os.ReadFile(upPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	upStatements := SplitStatements(string(up))
	if len(upStatements) == 0 {
		return nil, fmt.Errorf("no SQL statements in %s", entry.Name())
	}

	var downStatements []string
	down, err := os.ReadFile(filepath.Join(l.directory, base+downSuffix))
	switch {
	case err == nil:
		downStatements = SplitStatements(string(down))
	case !os.IsNotExist(err):
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	createdAt := time.Now()
	if info, err := entry.Info(); err == nil {
		createdAt = info.ModTime()
	}

	return &migration.Migration{
		Version:   version,
		Name:      name,
		CreatedAt: createdAt,
		Up:        execAll(upStatements),
		Down: func(db *gorm.DB) error {
			if downStatements == nil {
				return fmt.Errorf("migration %s_%s has no %s file", version, name, downSuffix)
			}
			return execAll(downStatements)(db)
		},
	}, nil
}

func execAll(statements []string) func(*gorm.DB) error {
	return func(db *gorm.DB) error {
		for _, statement := range statements {
			if err := db.Exec(statement).Error; err != nil {
				return fmt.Errorf("failed to execute SQL: %w", err)
			}
		}
		return nil
	}
}

// SplitStatements splits a script on lines ending with ';'. Lines starting
// with "--" are dropped.
func SplitStatements(script string) []string {
	var (
		out []string
		cur strings.Builder
	)
	flush := func() {
		stmt := strings.TrimSpace(cur.String())
		stmt = strings.TrimSuffix(stmt, ";")
		if stmt = strings.TrimSpace(stmt); stmt != "" {
			out = append(out, stmt)
		}
		cur.Reset()
	}
	for _, line := range strings.Split(script, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		cur.WriteString(line)
		cur.WriteString("\n")
		if strings.HasSuffix(trimmed, ";") {
			flush()
		}
	}
	flush()
	return out
}
