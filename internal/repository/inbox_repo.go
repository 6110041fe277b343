package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/cellarlog/cellarlog/internal/models"
)

// SQLiteInboxRepository implements InboxRepository for SQLite.
type SQLiteInboxRepository struct {
	db *sql.DB
}

// NewSQLiteInboxRepository creates a new SQLite inbox repository.
func NewSQLiteInboxRepository(db *sql.DB) *SQLiteInboxRepository {
	return &SQLiteInboxRepository{db: db}
}

const inboxColumns = `id, raw_text, created_at, updated_at, converted, conversion_run_id, tags_json`

func (r *SQLiteInboxRepository) Create(ctx context.Context, item *models.InboxItem) error {
	query := `
		INSERT INTO inbox_items (id, raw_text, created_at, updated_at, converted, conversion_run_id, tags_json)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	converted := 0
	if item.Converted {
		converted = 1
	}
	_, err := r.db.ExecContext(ctx, query,
		item.ID,
		item.RawText,
		item.CreatedAt.Format(time.RFC3339),
		item.UpdatedAt.Format(time.RFC3339),
		converted,
		nullStringPtr(item.ConversionRunID),
		item.Tags,
	)
	if err != nil {
		return fmt.Errorf("failed to create inbox item: %w", err)
	}
	return nil
}

func (r *SQLiteInboxRepository) GetByID(ctx context.Context, id string) (*models.InboxItem, error) {
	query := `SELECT ` + inboxColumns + ` FROM inbox_items WHERE id = ?`
	return r.scanItem(r.db.QueryRowContext(ctx, query, id))
}

func (r *SQLiteInboxRepository) Update(ctx context.Context, item *models.InboxItem) error {
	converted := 0
	if item.Converted {
		converted = 1
	}
	query := `
		UPDATE inbox_items
		SET raw_text = ?, updated_at = ?, converted = ?, conversion_run_id = ?, tags_json = ?
		WHERE id = ?
	`
	_, err := r.db.ExecContext(ctx, query,
		item.RawText,
		time.Now().UTC().Format(time.RFC3339),
		converted,
		nullStringPtr(item.ConversionRunID),
		item.Tags,
		item.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update inbox item: %w", err)
	}
	return nil
}

func (r *SQLiteInboxRepository) Delete(ctx context.Context, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx, "DELETE FROM inbox_items WHERE id = ?", id)
	if err != nil {
		return false, fmt.Errorf("failed to delete inbox item: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return affected > 0, nil
}

func (r *SQLiteInboxRepository) List(ctx context.Context, includeConverted bool, limit, offset int) ([]*models.InboxItem, error) {
	var rows *sql.Rows
	var err error

	if includeConverted {
		query := `SELECT ` + inboxColumns + ` FROM inbox_items ORDER BY created_at DESC LIMIT ? OFFSET ?`
		rows, err = r.db.QueryContext(ctx, query, limit, offset)
	} else {
		query := `SELECT ` + inboxColumns + ` FROM inbox_items WHERE converted = 0 ORDER BY created_at DESC LIMIT ? OFFSET ?`
		rows, err = r.db.QueryContext(ctx, query, limit, offset)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query inbox items: %w", err)
	}
	defer rows.Close()

	var items []*models.InboxItem
	for rows.Next() {
		item, err := r.scanItemFromRows(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *SQLiteInboxRepository) CountPending(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM inbox_items WHERE converted = 0").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count pending inbox items: %w", err)
	}
	return count, nil
}

// ClaimNextPending atomically claims the oldest unconverted item by
// stamping conversion_run_id, so concurrent workers never pick the same
// item. Returns nil when nothing is pending.
func (r *SQLiteInboxRepository) ClaimNextPending(ctx context.Context, runID string) (*models.InboxItem, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	// Claim and fetch in one statement to reduce lock contention
	now := time.Now().UTC().Format(time.RFC3339)
	query := `
		UPDATE inbox_items
		SET conversion_run_id = ?, updated_at = ?
		WHERE id = (
			SELECT id FROM inbox_items
			WHERE converted = 0 AND conversion_run_id IS NULL
			ORDER BY created_at ASC
			LIMIT 1
		)
		RETURNING ` + inboxColumns

	item, err := r.scanItem(tx.QueryRowContext(ctx, query, runID, now))
	if err != nil {
		return nil, fmt.Errorf("failed to claim inbox item: %w", err)
	}
	if item == nil {
		// Nothing pending - this is normal, not an error
		return nil, nil
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	committed = true

	return item, nil
}

func (r *SQLiteInboxRepository) ReleaseClaim(ctx context.Context, id string) error {
	query := `UPDATE inbox_items SET conversion_run_id = NULL, updated_at = ? WHERE id = ? AND converted = 0`
	_, err := r.db.ExecContext(ctx, query, time.Now().UTC().Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("failed to release inbox claim: %w", err)
	}
	return nil
}

// ReleaseStaleClaims frees items claimed longer than maxAge ago without
// being converted, typically after a crash mid-conversion.
func (r *SQLiteInboxRepository) ReleaseStaleClaims(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := time.Now().Add(-maxAge).UTC().Format(time.RFC3339)
	query := `
		UPDATE inbox_items
		SET conversion_run_id = NULL, updated_at = ?
		WHERE converted = 0 AND conversion_run_id IS NOT NULL AND updated_at < ?
	`
	result, err := r.db.ExecContext(ctx, query, time.Now().UTC().Format(time.RFC3339), cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to release stale claims: %w", err)
	}
	count, _ := result.RowsAffected()
	return count, nil
}

func (r *SQLiteInboxRepository) MarkConverted(ctx context.Context, id, runID string) error {
	query := `UPDATE inbox_items SET converted = 1, conversion_run_id = ?, updated_at = ? WHERE id = ?`
	_, err := r.db.ExecContext(ctx, query, runID, time.Now().UTC().Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("failed to mark inbox item converted: %w", err)
	}
	return nil
}

func (r *SQLiteInboxRepository) scanItem(row *sql.Row) (*models.InboxItem, error) {
	var item models.InboxItem
	var createdAt, updatedAt string
	var converted int
	var runID sql.NullString

	err := row.Scan(&item.ID, &item.RawText, &createdAt, &updatedAt, &converted, &runID, &item.Tags)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan inbox item: %w", err)
	}

	item.Converted = converted == 1
	if runID.Valid {
		item.ConversionRunID = &runID.String
	}
	item.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	item.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &item, nil
}

func (r *SQLiteInboxRepository) scanItemFromRows(rows *sql.Rows) (*models.InboxItem, error) {
	var item models.InboxItem
	var createdAt, updatedAt string
	var converted int
	var runID sql.NullString

	if err := rows.Scan(&item.ID, &item.RawText, &createdAt, &updatedAt, &converted, &runID, &item.Tags); err != nil {
		return nil, fmt.Errorf("failed to scan inbox item: %w", err)
	}

	item.Converted = converted == 1
	if runID.Valid {
		item.ConversionRunID = &runID.String
	}
	item.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	item.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &item, nil
}
