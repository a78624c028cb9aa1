package testutil

import (
	"testing"

	"fwbot-go/internal/config"
	"fwbot-go/internal/database"
	"fwbot-go/internal/fwbot"
)

// NewTestDatabase creates a new in-memory SQLite database with migrations applied.
// The database is automatically closed when the test completes.
func NewTestDatabase(t *testing.T) *database.SQLiteDatabase {
	t.Helper()

	db, err := database.NewDatabaseFromConfig(config.DatabaseConfig{Type: "memory"})
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() {
		db.Close()
	})
	return db
}

// AddModels registers each spec ("fw" or "fw:kernel") in the given regions.
func AddModels(t *testing.T, db *database.SQLiteDatabase, regions []string, specs ...string) {
	t.Helper()
	for _, s := range specs {
		m, err := fwbot.ParseModel(s)
		if err != nil {
			t.Fatalf("ParseModel(%q) error = %v", s, err)
		}
		if err := db.AddModel(t.Context(), m, regions); err != nil {
			t.Fatalf("AddModel(%q) error = %v", s, err)
		}
	}
}
