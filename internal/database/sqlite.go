package database

import (
	"database/sql"
	"fmt"

	"fwbot-go/internal/database/migrations"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// connPragmas run once on the single pooled connection.
var connPragmas = []string{
	"PRAGMA foreign_keys = ON",
	"PRAGMA busy_timeout = 5000",
}

// SQLiteDatabase holds the device catalog, version markers and run history.
type SQLiteDatabase struct {
	db   *sql.DB
	path string
}

// NewSQLiteDatabase opens path, which may be ":memory:".
//
// The pool is capped at one connection. Poll workers and the dispatcher
// write concurrently, and an in-memory database would otherwise split into
// one private database per connection.
func NewSQLiteDatabase(path string) (*SQLiteDatabase, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	for _, p := range connPragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", p, err)
		}
	}
	return &SQLiteDatabase{db: db, path: path}, nil
}

func (s *SQLiteDatabase) Path() string { return s.path }

// Migrate applies pending schema migrations.
func (s *SQLiteDatabase) Migrate() error {
	return migrations.MigrateUp(s.db)
}

// CheckMigrations fails unless the schema is clean and current.
func (s *SQLiteDatabase) CheckMigrations() error {
	return migrations.CheckDBMigrationStatus(s.db)
}

// BackupTo writes a consistent copy of the database to destPath with
// VACUUM INTO. destPath must not exist.
func (s *SQLiteDatabase) BackupTo(destPath string) error {
	if _, err := s.db.Exec("VACUUM INTO ?", destPath); err != nil {
		return fmt.Errorf("snapshot to %s: %w", destPath, err)
	}
	return nil
}

func (s *SQLiteDatabase) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
