package dbconn

import (
	"database/sql"
	"io/fs"

	"github.com/pressly/goose/v3"
)

// Migrations helpers run caller-supplied goose migrations against a MySQL
// pool. The fsys is typically an embed.FS holding .sql files under dir.

func setupMigrations(fsys fs.FS) error {
	if err := goose.SetDialect("mysql"); err != nil {
		return err
	}
	goose.SetBaseFS(fsys)
	return nil
}

// Migrate applies all pending migrations found under dir in fsys.
func Migrate(db *sql.DB, fsys fs.FS, dir string) error {
	if err := setupMigrations(fsys); err != nil {
		return err
	}
	return goose.Up(db, dir)
}

// Rollback rolls back the most recent migration.
func Rollback(db *sql.DB, fsys fs.FS, dir string) error {
	if err := setupMigrations(fsys); err != nil {
		return err
	}
	return goose.Down(db, dir)
}

// MigrationStatus prints the migration status for dir.
func MigrationStatus(db *sql.DB, fsys fs.FS, dir string) error {
	if err := setupMigrations(fsys); err != nil {
		return err
	}
	return goose.Status(db, dir)
}
