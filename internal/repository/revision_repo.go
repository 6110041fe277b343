package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/cellarlog/cellarlog/internal/models"
)

// SQLiteRevisionRepository implements RevisionRepository for SQLite.
type SQLiteRevisionRepository struct {
	db *sql.DB
}

// NewSQLiteRevisionRepository creates a new SQLite note revision repository.
func NewSQLiteRevisionRepository(db *sql.DB) *SQLiteRevisionRepository {
	return &SQLiteRevisionRepository{db: db}
}

func (r *SQLiteRevisionRepository) Create(ctx context.Context, rev *models.NoteRevision) error {
	query := `
		INSERT INTO note_revisions (id, tasting_note_id, revision_number, created_at,
			changed_fields_json, previous_snapshot, new_snapshot, change_reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		rev.ID,
		rev.TastingNoteID,
		rev.RevisionNumber,
		rev.CreatedAt.Format(time.RFC3339),
		rev.ChangedFields,
		rev.PreviousSnapshot,
		rev.NewSnapshot,
		rev.ChangeReason,
	)
	if err != nil {
		return fmt.Errorf("failed to create note revision: %w", err)
	}
	return nil
}

func (r *SQLiteRevisionRepository) ListByNoteID(ctx context.Context, noteID string) ([]*models.NoteRevision, error) {
	query := `
		SELECT id, tasting_note_id, revision_number, created_at, changed_fields_json,
			previous_snapshot, new_snapshot, change_reason
		FROM note_revisions WHERE tasting_note_id = ? ORDER BY revision_number ASC
	`
	rows, err := r.db.QueryContext(ctx, query, noteID)
	if err != nil {
		return nil, fmt.Errorf("failed to query note revisions: %w", err)
	}
	defer rows.Close()

	var revs []*models.NoteRevision
	for rows.Next() {
		var rev models.NoteRevision
		var createdAt string
		err := rows.Scan(
			&rev.ID, &rev.TastingNoteID, &rev.RevisionNumber, &createdAt,
			&rev.ChangedFields, &rev.PreviousSnapshot, &rev.NewSnapshot, &rev.ChangeReason,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan note revision: %w", err)
		}
		rev.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		revs = append(revs, &rev)
	}
	return revs, rows.Err()
}

func (r *SQLiteRevisionRepository) NextRevisionNumber(ctx context.Context, noteID string) (int, error) {
	var max sql.NullInt64
	err := r.db.QueryRowContext(ctx,
		"SELECT MAX(revision_number) FROM note_revisions WHERE tasting_note_id = ?", noteID,
	).Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("failed to get next revision number: %w", err)
	}
	return int(max.Int64) + 1, nil
}
