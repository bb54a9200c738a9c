package store

import (
	"database/sql"
	"embed"
	"fmt"

	migrate "github.com/rubenv/sql-migrate"
)

//go:embed migrations
var migrationFS embed.FS

// Migrate applies (or rolls back) the embedded schema for dialect "postgres" or "sqlite3".
func Migrate(db *sql.DB, dialect string, direction migrate.MigrationDirection) (int, error) {
	src := &migrate.EmbedFileSystemMigrationSource{
		FileSystem: migrationFS,
		Root:       "migrations/" + dialect,
	}
	n, err := migrate.Exec(db, dialect, src, direction)
	if err != nil {
		return 0, fmt.Errorf("migrate %s: %w", dialect, err)
	}
	return n, nil
}
