// Package migrations hands the embedded collection sync schema to a
// persistence client. The schema ships in exactly two dialects, postgres at
// the migration root and sqlite in a subdirectory, so registration is a fixed
// pair rather than a configurable catalog.
package migrations

import (
	"context"
	"fmt"
	"io/fs"
	"strings"

	collectionsync "github.com/goliatone/go-collection-sync"
)

// SourceLabel identifies this module as the migration source in the
// persistence client's bookkeeping.
const SourceLabel = "go-collection-sync"

const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"
)

const migrationsPath = "data/sql/migrations"

// DialectFS pairs a dialect with its embedded migration filesystem.
type DialectFS struct {
	Dialect string
	Path    string
	FS      fs.FS
}

// RegisterFunc receives one dialect filesystem; implementations typically
// forward it to persistence.Client.RegisterSQLMigrations.
type RegisterFunc func(ctx context.Context, dialect string, sourceLabel string, fsys fs.FS) error

// Filesystems returns the postgres and sqlite migration filesystems and
// verifies each carries at least one *.up.sql file.
func Filesystems() ([]DialectFS, error) {
	base, err := fs.Sub(collectionsync.GetCoreMigrationsFS(), migrationsPath)
	if err != nil {
		return nil, fmt.Errorf("migrations: resolve %s: %w", migrationsPath, err)
	}
	sqliteFS, err := fs.Sub(base, "sqlite")
	if err != nil {
		return nil, fmt.Errorf("migrations: resolve sqlite filesystem: %w", err)
	}

	filesystems := []DialectFS{
		{Dialect: DialectPostgres, Path: migrationsPath, FS: base},
		{Dialect: DialectSQLite, Path: migrationsPath + "/sqlite", FS: sqliteFS},
	}
	for _, fsys := range filesystems {
		matches, globErr := fs.Glob(fsys.FS, "*.up.sql")
		if globErr != nil {
			return nil, fmt.Errorf("migrations: glob %s %s: %w", fsys.Dialect, fsys.Path, globErr)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("migrations: %s filesystem %q has no *.up.sql files", fsys.Dialect, fsys.Path)
		}
	}
	return filesystems, nil
}

// Register invokes registerFn once per requested dialect. With no dialects it
// registers both; unknown dialect names are an error.
func Register(ctx context.Context, registerFn RegisterFunc, dialects ...string) error {
	if registerFn == nil {
		return fmt.Errorf("migrations: register function is required")
	}

	selected := map[string]bool{}
	if len(dialects) == 0 {
		selected[DialectPostgres] = true
		selected[DialectSQLite] = true
	}
	for _, dialect := range dialects {
		normalized := strings.TrimSpace(strings.ToLower(dialect))
		switch normalized {
		case DialectPostgres, DialectSQLite:
			selected[normalized] = true
		default:
			return fmt.Errorf("migrations: unknown dialect %q", dialect)
		}
	}

	filesystems, err := Filesystems()
	if err != nil {
		return err
	}
	for _, fsys := range filesystems {
		if !selected[fsys.Dialect] {
			continue
		}
		if err := registerFn(ctx, fsys.Dialect, SourceLabel, fsys.FS); err != nil {
			return fmt.Errorf("migrations: register %s (%s): %w", fsys.Dialect, fsys.Path, err)
		}
	}
	return nil
}
