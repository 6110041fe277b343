package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/cellarlog/cellarlog/internal/models"
)

// SQLiteCalibrationRepository implements CalibrationRepository for SQLite.
type SQLiteCalibrationRepository struct {
	db *sql.DB
}

// NewSQLiteCalibrationRepository creates a new SQLite calibration repository.
func NewSQLiteCalibrationRepository(db *sql.DB) *SQLiteCalibrationRepository {
	return &SQLiteCalibrationRepository{db: db}
}

const calibrationColumns = `id, score_value, description, examples, created_at, updated_at`

func (r *SQLiteCalibrationRepository) Create(ctx context.Context, note *models.CalibrationNote) error {
	query := `
		INSERT INTO calibration_notes (id, score_value, description, examples, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		note.ID,
		note.ScoreValue,
		note.Description,
		note.Examples,
		note.CreatedAt.Format(time.RFC3339),
		note.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to create calibration note: %w", err)
	}
	return nil
}

func (r *SQLiteCalibrationRepository) GetByID(ctx context.Context, id string) (*models.CalibrationNote, error) {
	query := `SELECT ` + calibrationColumns + ` FROM calibration_notes WHERE id = ?`
	return r.scanNote(r.db.QueryRowContext(ctx, query, id))
}

func (r *SQLiteCalibrationRepository) GetByScoreValue(ctx context.Context, scoreValue int) (*models.CalibrationNote, error) {
	// The score index is not unique; take the oldest note if duplicates
	// ever exist so repeated reads stay stable
	query := `SELECT ` + calibrationColumns + ` FROM calibration_notes WHERE score_value = ? ORDER BY created_at ASC LIMIT 1`
	return r.scanNote(r.db.QueryRowContext(ctx, query, scoreValue))
}

func (r *SQLiteCalibrationRepository) List(ctx context.Context) ([]*models.CalibrationNote, error) {
	query := `SELECT ` + calibrationColumns + ` FROM calibration_notes ORDER BY score_value ASC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query calibration notes: %w", err)
	}
	defer rows.Close()

	var notes []*models.CalibrationNote
	for rows.Next() {
		note, err := r.scanNoteFromRows(rows)
		if err != nil {
			return nil, err
		}
		notes = append(notes, note)
	}
	return notes, rows.Err()
}

func (r *SQLiteCalibrationRepository) Update(ctx context.Context, note *models.CalibrationNote) error {
	query := `
		UPDATE calibration_notes
		SET score_value = ?, description = ?, examples = ?, updated_at = ?
		WHERE id = ?
	`
	_, err := r.db.ExecContext(ctx, query,
		note.ScoreValue,
		note.Description,
		note.Examples,
		note.UpdatedAt.Format(time.RFC3339),
		note.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update calibration note: %w", err)
	}
	return nil
}

func (r *SQLiteCalibrationRepository) Delete(ctx context.Context, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx, "DELETE FROM calibration_notes WHERE id = ?", id)
	if err != nil {
		return false, fmt.Errorf("failed to delete calibration note: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return affected > 0, nil
}

func (r *SQLiteCalibrationRepository) scanNote(row *sql.Row) (*models.CalibrationNote, error) {
	var note models.CalibrationNote
	var createdAt, updatedAt string

	err := row.Scan(&note.ID, &note.ScoreValue, &note.Description, &note.Examples, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan calibration note: %w", err)
	}

	note.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	note.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &note, nil
}

func (r *SQLiteCalibrationRepository) scanNoteFromRows(rows *sql.Rows) (*models.CalibrationNote, error) {
	var note models.CalibrationNote
	var createdAt, updatedAt string

	if err := rows.Scan(&note.ID, &note.ScoreValue, &note.Description, &note.Examples, &createdAt, &updatedAt); err != nil {
		return nil, fmt.Errorf("failed to scan calibration note: %w", err)
	}

	note.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	note.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &note, nil
}
