package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/cellarlog/cellarlog/internal/models"
)

// SQLiteMaintenanceRepository implements MaintenanceRepository for SQLite.
// Run IDs are ULIDs so ListRecent ordering matches insertion order.
type SQLiteMaintenanceRepository struct {
	db *sql.DB
}

// NewSQLiteMaintenanceRepository creates a new SQLite maintenance repository.
func NewSQLiteMaintenanceRepository(db *sql.DB) *SQLiteMaintenanceRepository {
	return &SQLiteMaintenanceRepository{db: db}
}

const maintenanceColumns = `id, task_name, started_at, completed_at, status, details_json, error_message`

func (r *SQLiteMaintenanceRepository) Start(ctx context.Context, taskName string) (*models.MaintenanceRun, error) {
	run := &models.MaintenanceRun{
		ID:          ulid.Make().String(),
		TaskName:    taskName,
		StartedAt:   time.Now().UTC(),
		Status:      models.MaintenanceStatusRunning,
		DetailsJSON: "{}",
	}

	query := `
		INSERT INTO maintenance_log (id, task_name, started_at, status, details_json)
		VALUES (?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		run.ID, run.TaskName, run.StartedAt.Format(time.RFC3339), run.Status, run.DetailsJSON,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start maintenance run: %w", err)
	}
	return run, nil
}

func (r *SQLiteMaintenanceRepository) Complete(ctx context.Context, id string, detailsJSON string) error {
	if detailsJSON == "" {
		detailsJSON = "{}"
	}
	query := `UPDATE maintenance_log SET status = ?, completed_at = ?, details_json = ? WHERE id = ?`
	_, err := r.db.ExecContext(ctx, query,
		models.MaintenanceStatusCompleted, time.Now().UTC().Format(time.RFC3339), detailsJSON, id,
	)
	if err != nil {
		return fmt.Errorf("failed to complete maintenance run: %w", err)
	}
	return nil
}

func (r *SQLiteMaintenanceRepository) Fail(ctx context.Context, id string, errorMessage string) error {
	query := `UPDATE maintenance_log SET status = ?, completed_at = ?, error_message = ? WHERE id = ?`
	_, err := r.db.ExecContext(ctx, query,
		models.MaintenanceStatusFailed, time.Now().UTC().Format(time.RFC3339), errorMessage, id,
	)
	if err != nil {
		return fmt.Errorf("failed to mark maintenance run failed: %w", err)
	}
	return nil
}

func (r *SQLiteMaintenanceRepository) GetByID(ctx context.Context, id string) (*models.MaintenanceRun, error) {
	query := `SELECT ` + maintenanceColumns + ` FROM maintenance_log WHERE id = ?`
	row := r.db.QueryRowContext(ctx, query, id)

	run, err := scanMaintenanceRun(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan maintenance run: %w", err)
	}
	return run, nil
}

func (r *SQLiteMaintenanceRepository) ListRecent(ctx context.Context, limit int) ([]*models.MaintenanceRun, error) {
	query := `SELECT ` + maintenanceColumns + ` FROM maintenance_log ORDER BY started_at DESC, id DESC LIMIT ?`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query maintenance runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.MaintenanceRun
	for rows.Next() {
		run, err := scanMaintenanceRun(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan maintenance run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func scanMaintenanceRun(scan func(...any) error) (*models.MaintenanceRun, error) {
	var run models.MaintenanceRun
	var startedAt string
	var completedAt, errorMessage sql.NullString

	err := scan(&run.ID, &run.TaskName, &startedAt, &completedAt, &run.Status, &run.DetailsJSON, &errorMessage)
	if err != nil {
		return nil, err
	}

	run.StartedAt, _ = time.Parse(time.RFC3339, startedAt)
	if completedAt.Valid {
		t, _ := time.Parse(time.RFC3339, completedAt.String)
		run.CompletedAt = &t
	}
	run.ErrorMessage = errorMessage.String
	return &run, nil
}
