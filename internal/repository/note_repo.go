package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cellarlog/cellarlog/internal/models"
)

// SQLiteNoteRepository implements NoteRepository for SQLite.
// Identity and score fields live in their own columns for querying; the
// full payload round-trips through note_json.
type SQLiteNoteRepository struct {
	db *sql.DB
}

// NewSQLiteNoteRepository creates a new SQLite tasting note repository.
func NewSQLiteNoteRepository(db *sql.DB) *SQLiteNoteRepository {
	return &SQLiteNoteRepository{db: db}
}

const noteColumns = `id, created_at, updated_at, status, source, template_version, inbox_item_id,
	producer, cuvee, vintage, country, region, grapes_json, color, score_total, quality_band,
	tags_json, note_json`

func (r *SQLiteNoteRepository) Create(ctx context.Context, note *models.TastingNote) error {
	payloadJSON, err := json.Marshal(note.Payload)
	if err != nil {
		return fmt.Errorf("failed to serialize note payload: %w", err)
	}

	query := `
		INSERT INTO tasting_notes (id, created_at, updated_at, status, source, template_version,
			inbox_item_id, producer, cuvee, vintage, country, region, grapes_json, color,
			score_total, quality_band, tags_json, note_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = r.db.ExecContext(ctx, query,
		note.ID,
		note.CreatedAt.Format(time.RFC3339),
		note.UpdatedAt.Format(time.RFC3339),
		note.Status,
		note.Source,
		note.TemplateVersion,
		nullStringPtr(note.InboxItemID),
		note.Producer,
		note.Cuvee,
		nullIntPtr(note.Vintage),
		note.Country,
		note.Region,
		note.Grapes,
		nullColorPtr(note.Color),
		note.ScoreTotal,
		nullBandPtr(note.QualityBand),
		note.Tags,
		string(payloadJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to create tasting note: %w", err)
	}
	return nil
}

func (r *SQLiteNoteRepository) GetByID(ctx context.Context, id string) (*models.TastingNote, error) {
	query := `SELECT ` + noteColumns + ` FROM tasting_notes WHERE id = ?`
	return r.scanNote(r.db.QueryRowContext(ctx, query, id))
}

func (r *SQLiteNoteRepository) GetByInboxItemID(ctx context.Context, inboxItemID string) (*models.TastingNote, error) {
	query := `SELECT ` + noteColumns + ` FROM tasting_notes WHERE inbox_item_id = ? ORDER BY created_at DESC LIMIT 1`
	return r.scanNote(r.db.QueryRowContext(ctx, query, inboxItemID))
}

func (r *SQLiteNoteRepository) Update(ctx context.Context, note *models.TastingNote) error {
	payloadJSON, err := json.Marshal(note.Payload)
	if err != nil {
		return fmt.Errorf("failed to serialize note payload: %w", err)
	}

	query := `
		UPDATE tasting_notes
		SET updated_at = ?, status = ?, source = ?, template_version = ?, inbox_item_id = ?,
			producer = ?, cuvee = ?, vintage = ?, country = ?, region = ?, grapes_json = ?,
			color = ?, score_total = ?, quality_band = ?, tags_json = ?, note_json = ?
		WHERE id = ?
	`
	_, err = r.db.ExecContext(ctx, query,
		note.UpdatedAt.Format(time.RFC3339),
		note.Status,
		note.Source,
		note.TemplateVersion,
		nullStringPtr(note.InboxItemID),
		note.Producer,
		note.Cuvee,
		nullIntPtr(note.Vintage),
		note.Country,
		note.Region,
		note.Grapes,
		nullColorPtr(note.Color),
		note.ScoreTotal,
		nullBandPtr(note.QualityBand),
		note.Tags,
		string(payloadJSON),
		note.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update tasting note: %w", err)
	}
	return nil
}

func (r *SQLiteNoteRepository) Delete(ctx context.Context, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx, "DELETE FROM tasting_notes WHERE id = ?", id)
	if err != nil {
		return false, fmt.Errorf("failed to delete tasting note: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return affected > 0, nil
}

func (r *SQLiteNoteRepository) List(ctx context.Context, status models.NoteStatus, limit, offset int) ([]*models.TastingNote, error) {
	var rows *sql.Rows
	var err error

	if status == "" {
		query := `SELECT ` + noteColumns + ` FROM tasting_notes ORDER BY updated_at DESC LIMIT ? OFFSET ?`
		rows, err = r.db.QueryContext(ctx, query, limit, offset)
	} else {
		query := `SELECT ` + noteColumns + ` FROM tasting_notes WHERE status = ? ORDER BY updated_at DESC LIMIT ? OFFSET ?`
		rows, err = r.db.QueryContext(ctx, query, status, limit, offset)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query tasting notes: %w", err)
	}
	defer rows.Close()

	var notes []*models.TastingNote
	for rows.Next() {
		note, err := r.scanNoteFromRows(rows)
		if err != nil {
			return nil, err
		}
		notes = append(notes, note)
	}
	return notes, rows.Err()
}

func (r *SQLiteNoteRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM tasting_notes").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count tasting notes: %w", err)
	}
	return count, nil
}

func (r *SQLiteNoteRepository) CountByStatus(ctx context.Context, status models.NoteStatus) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM tasting_notes WHERE status = ?", status).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count tasting notes: %w", err)
	}
	return count, nil
}

func (r *SQLiteNoteRepository) scanNote(row *sql.Row) (*models.TastingNote, error) {
	var note models.TastingNote
	var createdAt, updatedAt, payloadJSON string
	var inboxItemID, color, qualityBand sql.NullString
	var vintage sql.NullInt64

	err := row.Scan(
		&note.ID, &createdAt, &updatedAt, &note.Status, &note.Source, &note.TemplateVersion,
		&inboxItemID, &note.Producer, &note.Cuvee, &vintage, &note.Country, &note.Region,
		&note.Grapes, &color, &note.ScoreTotal, &qualityBand, &note.Tags, &payloadJSON,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan tasting note: %w", err)
	}

	return r.finishNote(&note, createdAt, updatedAt, payloadJSON, inboxItemID, color, qualityBand, vintage)
}

func (r *SQLiteNoteRepository) scanNoteFromRows(rows *sql.Rows) (*models.TastingNote, error) {
	var note models.TastingNote
	var createdAt, updatedAt, payloadJSON string
	var inboxItemID, color, qualityBand sql.NullString
	var vintage sql.NullInt64

	err := rows.Scan(
		&note.ID, &createdAt, &updatedAt, &note.Status, &note.Source, &note.TemplateVersion,
		&inboxItemID, &note.Producer, &note.Cuvee, &vintage, &note.Country, &note.Region,
		&note.Grapes, &color, &note.ScoreTotal, &qualityBand, &note.Tags, &payloadJSON,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan tasting note: %w", err)
	}

	return r.finishNote(&note, createdAt, updatedAt, payloadJSON, inboxItemID, color, qualityBand, vintage)
}

func (r *SQLiteNoteRepository) finishNote(note *models.TastingNote, createdAt, updatedAt, payloadJSON string, inboxItemID, color, qualityBand sql.NullString, vintage sql.NullInt64) (*models.TastingNote, error) {
	note.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	note.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	if inboxItemID.Valid {
		note.InboxItemID = &inboxItemID.String
	}
	if vintage.Valid {
		v := int(vintage.Int64)
		note.Vintage = &v
	}
	if color.Valid {
		c := models.WineColor(color.String)
		note.Color = &c
	}
	if qualityBand.Valid {
		b := models.QualityBand(qualityBand.String)
		note.QualityBand = &b
	}
	if err := json.Unmarshal([]byte(payloadJSON), &note.Payload); err != nil {
		return nil, fmt.Errorf("failed to parse note payload: %w", err)
	}
	return note, nil
}

// Helper functions

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullStringPtr(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullIntPtr(n *int) sql.NullInt64 {
	if n == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*n), Valid: true}
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.Format(time.RFC3339), Valid: true}
}

func nullColorPtr(c *models.WineColor) sql.NullString {
	if c == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*c), Valid: true}
}

func nullBandPtr(b *models.QualityBand) sql.NullString {
	if b == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*b), Valid: true}
}
