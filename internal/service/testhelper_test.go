package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	_ "github.com/tursodatabase/go-libsql"

	"github.com/cellarlog/cellarlog/internal/constants"
	"github.com/cellarlog/cellarlog/internal/database/migrations"
	"github.com/cellarlog/cellarlog/internal/logging"
	"github.com/cellarlog/cellarlog/internal/repository"
)

const testSigningKey = "test-signing-key"

// setupTestDB creates an in-memory SQLite database with the full schema.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("libsql", ":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("failed to enable foreign keys: %v", err)
	}
	if err := migrations.Run(db, nil); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})
	return db
}

// testEnv bundles the pieces most service tests need.
type testEnv struct {
	db          *sql.DB
	repos       *repository.Repositories
	entitlement *EntitlementService
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := setupTestDB(t)
	repos := repository.NewRepositories(db)
	entitlement := NewEntitlementService(repos, nil, testSigningKey, time.Minute, logging.New())
	return &testEnv{db: db, repos: repos, entitlement: entitlement}
}

// signTestLicense builds a signed license token for the given tier.
func signTestLicense(t *testing.T, tier string, expiresAt time.Time) string {
	t.Helper()
	claims := LicenseClaims{
		Tier:  tier,
		Email: "taster@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSigningKey))
	if err != nil {
		t.Fatalf("failed to sign test license: %v", err)
	}
	return token
}

// activateProLicense puts the environment on the pro tier.
func activateProLicense(t *testing.T, env *testEnv) {
	t.Helper()
	token := signTestLicense(t, constants.TierPro, time.Now().Add(24*time.Hour))
	if _, err := env.entitlement.ActivateLicense(context.Background(), token); err != nil {
		t.Fatalf("failed to activate test license: %v", err)
	}
}

// insertTestNote inserts a minimal tasting note row directly.
func insertTestNote(t *testing.T, db *sql.DB, id, status string, scoreTotal int) {
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
