package repository

import (
	"database/sql"
	"testing"

	"github.com/cellarlog/cellarlog/internal/database/migrations"
	_ "github.com/tursodatabase/go-libsql"
)

// setupTestDB creates an in-memory SQLite database for testing.
// It runs migrations and returns a database connection that will be cleaned up
// when the test completes.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	// Create in-memory database
	db, err := sql.Open("libsql", ":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("failed to enable foreign keys: %v", err)
	}

	// Run migrations
	if err := migrations.Run(db, nil); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	// Clean up when test completes
	t.Cleanup(func() {
		_ = db.Close()
	})

	return db
}

// setupTestRepos creates all repositories using a test database.
func setupTestRepos(t *testing.T) *Repositories {
	t.Helper()
	db := setupTestDB(t)
	return NewRepositories(db)
}

// InsertTestCalibrationNote is a helper to insert a calibration note directly.
func InsertTestCalibrationNote(t *testing.T, db *sql.DB, id string, scoreValue int, description string) {
	t.Helper()
	query := `
		INSERT INTO calibration_notes (id, score_value, description, examples, created_at, updated_at)
		VALUES (?, ?, ?, '[]', datetime('now'), datetime('now'))
	`
	if _, err := db.Exec(query, id, scoreValue, description); err != nil {
		t.Fatalf("failed to insert test calibration note: %v", err)
	}
}

// InsertTestNote is a helper to insert a minimal tasting note directly.
func InsertTestNote(t *testing.T, db *sql.DB, id, status string, scoreTotal int) {
	t.Helper()
	query := `
		INSERT INTO tasting_notes (id, created_at, updated_at, status, source, template_version,
			producer, cuvee, country, region, grapes_json, score_total, tags_json, note_json)
		VALUES (?, datetime('now'), datetime('now'), ?, 'manual', '1.0',
			'Test Producer', '', '', '', '[]', ?, '[]', '{}')
	`
	if _, err := db.Exec(query, id, status, scoreTotal); err != nil {
		t.Fatalf("failed to insert test note: %v", err)
	}
}

// InsertTestInboxItem is a helper to insert an inbox item directly.
func InsertTestInboxItem(t *testing.T, db *sql.DB, id, rawText string, converted bool) {
	t.Helper()
	isConverted := 0
	if converted {
		isConverted = 1
	}
	query := `
		INSERT INTO inbox_items (id, raw_text, created_at, updated_at, converted, tags_json)
		VALUES (?, ?, datetime('now'), datetime('now'), ?, '[]')
	`
	if _, err := db.Exec(query, id, rawText, isConverted); err != nil {
		t.Fatalf("failed to insert test inbox item: %v", err)
	}
}

// InsertTestConversionRun is a helper to insert a conversion run directly.
func InsertTestConversionRun(t *testing.T, db *sql.DB, id, inboxItemID string, success bool) {
	t.Helper()
	isSuccess := 0
	if success {
		isSuccess = 1
	}
	query := `
		INSERT INTO conversion_runs (id, inbox_item_id, created_at, parser, parser_version,
			input_hash, raw_input, success, repair_attempts)
		VALUES (?, ?, datetime('now'), 'rule', '1.0', 'testhash', 'raw', ?, 0)
	`
	if _, err := db.Exec(query, id, inboxItemID, isSuccess); err != nil {
		t.Fatalf("failed to insert test conversion run: %v", err)
	}
}
