package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/cellarlog/cellarlog/internal/models"
)

// SQLiteConversionRunRepository implements ConversionRunRepository for SQLite.
type SQLiteConversionRunRepository struct {
	db *sql.DB
}

// NewSQLiteConversionRunRepository creates a new SQLite conversion run repository.
func NewSQLiteConversionRunRepository(db *sql.DB) *SQLiteConversionRunRepository {
	return &SQLiteConversionRunRepository{db: db}
}

const conversionRunColumns = `id, inbox_item_id, created_at, parser, parser_version, input_hash,
	raw_input, parsed_json, success, error_message, repair_attempts, resulting_note_id`

func (r *SQLiteConversionRunRepository) Create(ctx context.Context, run *models.ConversionRun) error {
	query := `
		INSERT INTO conversion_runs (id, inbox_item_id, created_at, parser, parser_version,
			input_hash, raw_input, parsed_json, success, error_message, repair_attempts, resulting_note_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	success := 0
	if run.Success {
		success = 1
	}
	_, err := r.db.ExecContext(ctx, query,
		run.ID,
		run.InboxItemID,
		run.CreatedAt.Format(time.RFC3339),
		run.Parser,
		run.ParserVersion,
		run.InputHash,
		run.RawInput,
		nullString(run.ParsedJSON),
		success,
		nullString(run.ErrorMessage),
		run.RepairAttempts,
		nullStringPtr(run.ResultingNoteID),
	)
	if err != nil {
		return fmt.Errorf("failed to create conversion run: %w", err)
	}
	return nil
}

func (r *SQLiteConversionRunRepository) Update(ctx context.Context, run *models.ConversionRun) error {
	query := `
		UPDATE conversion_runs
		SET parsed_json = ?, success = ?, error_message = ?, repair_attempts = ?, resulting_note_id = ?
		WHERE id = ?
	`
	success := 0
	if run.Success {
		success = 1
	}
	_, err := r.db.ExecContext(ctx, query,
		nullString(run.ParsedJSON),
		success,
		nullString(run.ErrorMessage),
		run.RepairAttempts,
		nullStringPtr(run.ResultingNoteID),
		run.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update conversion run: %w", err)
	}
	return nil
}

func (r *SQLiteConversionRunRepository) GetByID(ctx context.Context, id string) (*models.ConversionRun, error) {
	query := `SELECT ` + conversionRunColumns + ` FROM conversion_runs WHERE id = ?`
	row := r.db.QueryRowContext(ctx, query, id)

	run, err := scanConversionRun(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan conversion run: %w", err)
	}
	return run, nil
}

func (r *SQLiteConversionRunRepository) GetByInboxItemID(ctx context.Context, inboxItemID string) ([]*models.ConversionRun, error) {
	query := `SELECT ` + conversionRunColumns + ` FROM conversion_runs WHERE inbox_item_id = ? ORDER BY created_at DESC`
	return r.queryRuns(ctx, query, inboxItemID)
}

func (r *SQLiteConversionRunRepository) ListRecent(ctx context.Context, limit int) ([]*models.ConversionRun, error) {
	query := `SELECT ` + conversionRunColumns + ` FROM conversion_runs ORDER BY created_at DESC LIMIT ?`
	return r.queryRuns(ctx, query, limit)
}

func (r *SQLiteConversionRunRepository) queryRuns(ctx context.Context, query string, args ...any) ([]*models.ConversionRun, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query conversion runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.ConversionRun
	for rows.Next() {
		run, err := scanConversionRun(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan conversion run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// scanConversionRun works with both sql.Row and sql.Rows scan functions.
func scanConversionRun(scan func(...any) error) (*models.ConversionRun, error) {
	var run models.ConversionRun
	var createdAt string
	var parsedJSON, errorMessage, resultingNoteID sql.NullString
	var success int

	err := scan(
		&run.ID, &run.InboxItemID, &createdAt, &run.Parser, &run.ParserVersion,
		&run.InputHash, &run.RawInput, &parsedJSON, &success, &errorMessage,
		&run.RepairAttempts, &resultingNoteID,
	)
	if err != nil {
		return nil, err
	}

	run.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	run.ParsedJSON = parsedJSON.String
	run.ErrorMessage = errorMessage.String
	run.Success = success == 1
	if resultingNoteID.Valid {
		run.ResultingNoteID = &resultingNoteID.String
	}
	return &run, nil
}
