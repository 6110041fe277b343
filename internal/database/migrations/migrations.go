// Package migrations handles database schema migrations.
// Each migration is a revision in a chain: it names its own ID and the ID
// of the revision it revises. The chain is resolved into a directed graph
// and applied in topological order, tracked in the database so each
// revision runs exactly once. Every revision carries both forward (Up)
// and reverse (Down) statements.
//
// Migration files should be named: NNNN_description.go
// Example: 0003_calibration_notes.go
package migrations

import (
	"database/sql"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"
)

// Migration represents a single schema revision.
type Migration struct {
	// ID identifies this revision (e.g., "0003").
	ID string
	// Revises is the ID of the predecessor revision, empty for the root.
	Revises string
	// BranchLabels optionally names the branch this revision starts.
	BranchLabels []string
	// DependsOn lists additional revisions that must be applied first,
	// beyond the direct predecessor.
	DependsOn []string
	// Description is a human-readable summary.
	Description string
	// Up holds the SQL statements that apply the revision, in order.
	Up []string
	// Down holds the SQL statements that reverse it, in order.
	Down []string
}

// registry holds all registered migrations.
var registry []Migration

// Register adds a migration to the registry.
// Called by init() functions in individual migration files.
func Register(m Migration) {
	registry = append(registry, m)
}

// Chain resolves the registered migrations into apply order.
// It rejects duplicate IDs, references to unknown revisions, cycles,
// and chains with more than one head.
func Chain() ([]Migration, error) {
	return resolveChain(registry)
}

// resolveChain builds the revision graph and returns a deterministic
// topological order. An edge runs from each revision's predecessor (and
// every DependsOn entry) to the revision itself.
func resolveChain(ms []Migration) ([]Migration, error) {
	byID := make(map[string]Migration, len(ms))
	for _, m := range ms {
		if m.ID == "" {
			return nil, fmt.Errorf("migration %q has no revision ID", m.Description)
		}
		if _, dup := byID[m.ID]; dup {
			return nil, fmt.Errorf("duplicate revision ID %q", m.ID)
		}
		byID[m.ID] = m
	}

	// indegree counts unapplied predecessors; successors maps a revision
	// to the revisions waiting on it.
	indegree := make(map[string]int, len(ms))
	successors := make(map[string][]string, len(ms))
	for _, m := range ms {
		indegree[m.ID] += 0
		parents := make([]string, 0, 1+len(m.DependsOn))
		if m.Revises != "" {
			parents = append(parents, m.Revises)
		}
		parents = append(parents, m.DependsOn...)
		for _, p := range parents {
			if _, ok := byID[p]; !ok {
				return nil, fmt.Errorf("revision %s references unknown revision %q", m.ID, p)
			}
			indegree[m.ID]++
			successors[p] = append(successors[p], m.ID)
		}
	}

	// Kahn's algorithm with a sorted ready set, so the order is total
	// and stable across runs.
	var ready []string
	for id, deg := range indegree {
		if deg == 0 {
			ready = append(ready, id)
		}
	}
	sort.Strings(ready)

	ordered := make([]Migration, 0, len(ms))
	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		ordered = append(ordered, byID[id])

		inserted := false
		for _, succ := range successors[id] {
			indegree[succ]--
			if indegree[succ] == 0 {
				ready = append(ready, succ)
				inserted = true
			}
		}
		if inserted {
			sort.Strings(ready)
		}
	}

	if len(ordered) != len(ms) {
		var stuck []string
		for id, deg := range indegree {
			if deg > 0 {
				stuck = append(stuck, id)
			}
		}
		sort.Strings(stuck)
		return nil, fmt.Errorf("revision cycle involving %s", strings.Join(stuck, ", "))
	}

	// A linear chain has exactly one head: a revision nothing revises.
	if len(ordered) > 0 {
		var heads []string
		for _, m := range ms {
			if len(successors[m.ID]) == 0 {
				heads = append(heads, m.ID)
			}
		}
		if len(heads) > 1 {
			sort.Strings(heads)
			return nil, fmt.Errorf("multiple chain heads: %s", strings.Join(heads, ", "))
		}
	}

	return ordered, nil
}

// Head returns the ID of the last revision in the chain, or "" when the
// chain is empty.
func Head() (string, error) {
	chain, err := Chain()
	if err != nil {
		return "", err
	}
	if len(chain) == 0 {
		return "", nil
	}
	return chain[len(chain)-1].ID, nil
}

// Run applies all pending migrations in chain order.
// Creates the tracking table if it doesn't exist.
func Run(db *sql.DB, logger *slog.Logger) error {
	return UpgradeTo(db, logger, "")
}

// UpgradeTo applies pending migrations in chain order up to and including
// target. An empty target means the chain head.
func UpgradeTo(db *sql.DB, logger *slog.Logger, target string) error {
	if logger == nil {
		logger = slog.Default()
	}

	if err := ensureTrackingTable(db); err != nil {
		return err
	}

	chain, err := Chain()
	if err != nil {
		return fmt.Errorf("resolving revision chain: %w", err)
	}

	if target != "" && !chainContains(chain, target) {
		return fmt.Errorf("unknown target revision %q", target)
	}

	applied, err := getAppliedVersions(db)
	if err != nil {
		return fmt.Errorf("failed to get applied migrations: %w", err)
	}

	for _, m := range chain {
		if !applied[m.ID] {
			logger.Info("applying revision", "revision", m.ID, "description", m.Description)

			if err := runMigration(db, m); err != nil {
				return fmt.Errorf("revision %s (%s): %w", m.ID, m.Description, err)
			}

			logger.Info("revision applied", "revision", m.ID)
		}
		if m.ID == target {
			break
		}
	}

	return nil
}

// Downgrade reverses applied migrations, newest first, until target is the
// last one still applied. Target "" or "base" reverses everything.
// Reversing a revision that was never applied is an error.
func Downgrade(db *sql.DB, logger *slog.Logger, target string) error {
	if logger == nil {
		logger = slog.Default()
	}

	if err := ensureTrackingTable(db); err != nil {
		return err
	}

	chain, err := Chain()
	if err != nil {
		return fmt.Errorf("resolving revision chain: %w", err)
	}

	toBase := target == "" || target == "base"
	if !toBase && !chainContains(chain, target) {
		return fmt.Errorf("unknown target revision %q", target)
	}

	applied, err := getAppliedVersions(db)
	if err != nil {
		return fmt.Errorf("failed to get applied migrations: %w", err)
	}

	if !toBase && !applied[target] {
		return fmt.Errorf("target revision %s is not applied", target)
	}

	for i := len(chain) - 1; i >= 0; i-- {
		m := chain[i]
		if m.ID == target {
			break
		}
		if !applied[m.ID] {
			continue
		}

		logger.Info("reversing revision", "revision", m.ID, "description", m.Description)

		if err := revertMigration(db, m); err != nil {
			return fmt.Errorf("revision %s (%s): %w", m.ID, m.Description, err)
		}

		logger.Info("revision reversed", "revision", m.ID)
	}

	return nil
}

func ensureTrackingTable(db *sql.DB) error {
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TEXT NOT NULL
		)
	`); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}
	return nil
}

func chainContains(chain []Migration, id string) bool {
	for _, m := range chain {
		if m.ID == id {
			return true
		}
	}
	return false
}

// getAppliedVersions returns a map of applied revision IDs.
func getAppliedVersions(db *sql.DB) (map[string]bool, error) {
	rows, err := db.Query("SELECT version FROM schema_migrations")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = true
	}

	return applied, rows.Err()
}

// runMigration executes a single migration's Up statements within a
// transaction and records it. On failure the transaction rolls back and
// no tracking row is written.
func runMigration(db *sql.DB, m Migration) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range m.Up {
		if _, err := tx.Exec(stmt); err != nil {
			// Handle expected errors gracefully
			if isExpectedError(err, stmt) {
				continue
			}
			return fmt.Errorf("failed to execute statement: %w\n%s", err, stmt)
		}
	}

	// Record migration
	if _, err := tx.Exec(
		"INSERT INTO schema_migrations (version, description, applied_at) VALUES (?, ?, ?)",
		m.ID, m.Description, time.Now().UTC().Format(time.RFC3339),
	); err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}

	return tx.Commit()
}

// revertMigration executes a migration's Down statements within a
// transaction and removes its tracking row. Database errors propagate
// unmodified: a DROP against an object that doesn't exist fails rather
// than being skipped, and the tracking row survives the rollback.
func revertMigration(db *sql.DB, m Migration) error {
	if len(m.Down) == 0 {
		return fmt.Errorf("revision has no reverse statements")
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range m.Down {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute statement: %w\n%s", err, stmt)
		}
	}

	if _, err := tx.Exec("DELETE FROM schema_migrations WHERE version = ?", m.ID); err != nil {
		return fmt.Errorf("failed to remove migration record: %w", err)
	}

	return tx.Commit()
}

// isExpectedError checks if an error during Up is expected and can be
// ignored.
func isExpectedError(err error, stmt string) bool {
	errStr := err.Error()

	// Duplicate column from ALTER TABLE ADD COLUMN
	if strings.Contains(errStr, "duplicate column") {
		return true
	}

	// Index already exists
	if strings.Contains(errStr, "already exists") && strings.Contains(stmt, "CREATE INDEX") {
		return true
	}

	return false
}

// GetAppliedMigrations returns info about applied migrations in apply
// order.
func GetAppliedMigrations(db *sql.DB) ([]AppliedMigration, error) {
	if err := ensureTrackingTable(db); err != nil {
		return nil, err
	}

	rows, err := db.Query("SELECT version, description, applied_at FROM schema_migrations ORDER BY applied_at, version")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var applied []AppliedMigration
	for rows.Next() {
		var m AppliedMigration
		var appliedAt string
		if err := rows.Scan(&m.ID, &m.Description, &appliedAt); err != nil {
			return nil, err
		}
		m.AppliedAt, _ = time.Parse(time.RFC3339, appliedAt)
		applied = append(applied, m)
	}

	return applied, rows.Err()
}

// AppliedMigration represents a migration that has been applied.
type AppliedMigration struct {
	ID          string
	Description string
	AppliedAt   time.Time
}

// GetPendingMigrations returns migrations that haven't been applied yet,
// in chain order.
func GetPendingMigrations(db *sql.DB) ([]Migration, error) {
	if err := ensureTrackingTable(db); err != nil {
		return nil, err
	}

	chain, err := Chain()
	if err != nil {
		return nil, err
	}

	applied, err := getAppliedVersions(db)
	if err != nil {
		return nil, err
	}

	var pending []Migration
	for _, m := range chain {
		if !applied[m.ID] {
			pending = append(pending, m)
		}
	}

	return pending, nil
}

// CurrentVersion returns the deepest applied revision in chain order.
// Returns empty string if no migrations have been applied.
func CurrentVersion(db *sql.DB) (string, error) {
	if err := ensureTrackingTable(db); err != nil {
		return "", err
	}

	chain, err := Chain()
	if err != nil {
		return "", err
	}

	applied, err := getAppliedVersions(db)
	if err != nil {
		return "", err
	}

	current := ""
	for _, m := range chain {
		if applied[m.ID] {
			current = m.ID
		}
	}
	return current, nil
}

// GetMigrationCount returns the total number of applied migrations.
func GetMigrationCount(db *sql.DB) (int, error) {
	var count int
	err := db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}
