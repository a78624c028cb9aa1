// Package migrations embeds the SQLite schema for the model catalog,
// version markers and cycle history, and applies it with golang-migrate.
package migrations

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed files/*.sql
var schemaFiles embed.FS

const schemaDir = "files"

// ErrNotInitialized is returned by CheckDBMigrationStatus when no migration
// has ever been applied.
var ErrNotInitialized = errors.New("schema not initialized")

// Status is the schema state of a database relative to the embedded files.
type Status struct {
	Applied     uint
	Latest      uint
	Dirty       bool
	Initialized bool
}

// Pending reports how many embedded migrations have not been applied.
func (s Status) Pending() uint {
	if s.Applied >= s.Latest {
		return 0
	}
	return s.Latest - s.Applied
}

// ReadStatus inspects db without changing it. The caller keeps ownership of
// db; the migrate instance is not closed because that would close db too.
func ReadStatus(db *sql.DB) (Status, error) {
	m, err := newMigrate(db)
	if err != nil {
		return Status{}, err
	}

	var st Status
	applied, dirty, err := m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
	case err != nil:
		return Status{}, fmt.Errorf("read schema version: %w", err)
	default:
		st.Applied, st.Dirty, st.Initialized = applied, dirty, true
	}

	src, err := iofs.New(schemaFiles, schemaDir)
	if err != nil {
		return Status{}, fmt.Errorf("open embedded schema: %w", err)
	}
	defer src.Close()

	if st.Latest, err = latestVersion(src); err != nil {
		return Status{}, fmt.Errorf("scan embedded schema: %w", err)
	}
	return st, nil
}

// CheckDBMigrationStatus returns nil only when db is clean and exactly at
// the newest embedded version.
func CheckDBMigrationStatus(db *sql.DB) error {
	st, err := ReadStatus(db)
	if err != nil {
		return err
	}

	switch {
	case !st.Initialized:
		return fmt.Errorf("%w: run migrations first", ErrNotInitialized)
	case st.Dirty:
		return fmt.Errorf("schema version %d is dirty: a previous migration failed", st.Applied)
	case st.Applied > st.Latest:
		return fmt.Errorf("schema version %d is newer than this build supports (%d)", st.Applied, st.Latest)
	case st.Pending() > 0:
		return fmt.Errorf("schema version %d is %d migration(s) behind %d", st.Applied, st.Pending(), st.Latest)
	}
	return nil
}

// MigrateUp applies every pending migration. An up-to-date database is not
// an error.
func MigrateUp(db *sql.DB) error {
	m, err := newMigrate(db)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

func newMigrate(db *sql.DB) (*migrate.Migrate, error) {
	src, err := iofs.New(schemaFiles, schemaDir)
	if err != nil {
		return nil, fmt.Errorf("open embedded schema: %w", err)
	}

	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		src.Close()
		return nil, fmt.Errorf("wrap sqlite handle: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		src.Close()
		return nil, fmt.Errorf("init migrator: %w", err)
	}
	return m, nil
}

func latestVersion(src source.Driver) (uint, error) {
	v, err := src.First()
	if err != nil {
		return 0, err
	}
	for {
		next, err := src.Next(v)
		if errors.Is(err, fs.ErrNotExist) {
			return v, nil
		}
		if err != nil {
			return 0, err
		}
		v = next
	}
}
