package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/cellarlog/cellarlog/internal/models"
)

// SearchFilters restrict a tasting note search. Zero values mean "no
// filter"; Status defaults to published and "all" disables it.
type SearchFilters struct {
	Query       string
	ScoreMin    *int
	ScoreMax    *int
	Region      string
	Country     string
	Grape       string
	Producer    string
	VintageMin  *int
	VintageMax  *int
	DrinkOrHold string
	Status      string
}

// SearchResult is a page of matching notes.
type SearchResult struct {
	Notes      []*models.TastingNote `json:"notes"`
	TotalCount int                   `json:"total_count"`
	Limit      int                   `json:"limit"`
	Offset     int                   `json:"offset"`
}

// HasMore reports whether another page exists.
func (r *SearchResult) HasMore() bool {
	return r.Offset+len(r.Notes) < r.TotalCount
}

// FilterOptions lists the distinct values available for search filters.
type FilterOptions struct {
	Regions   []string `json:"regions"`
	Countries []string `json:"countries"`
	Producers []string `json:"producers"`
}

// SQLiteSearchRepository implements full-text search over tasting notes
// using the tasting_notes_fts FTS5 table.
type SQLiteSearchRepository struct {
	db *sql.DB
}

// NewSQLiteSearchRepository creates a new SQLite search repository.
func NewSQLiteSearchRepository(db *sql.DB) *SQLiteSearchRepository {
	return &SQLiteSearchRepository{db: db}
}

// Search returns notes matching the filters, newest first.
func (r *SQLiteSearchRepository) Search(ctx context.Context, filters SearchFilters, limit, offset int) (*SearchResult, error) {
	var conditions []string
	var args []interface{}

	if filters.Status == "" {
		filters.Status = string(models.NoteStatusPublished)
	}
	if filters.Status != "all" {
		conditions = append(conditions, "tn.status = ?")
		args = append(args, filters.Status)
	}
	if filters.ScoreMin != nil {
		conditions = append(conditions, "tn.score_total >= ?")
		args = append(args, *filters.ScoreMin)
	}
	if filters.ScoreMax != nil {
		conditions = append(conditions, "tn.score_total <= ?")
		args = append(args, *filters.ScoreMax)
	}
	if filters.Region != "" {
		conditions = append(conditions, "LOWER(tn.region) LIKE LOWER(?)")
		args = append(args, "%"+filters.Region+"%")
	}
	if filters.Country != "" {
		conditions = append(conditions, "LOWER(tn.country) LIKE LOWER(?)")
		args = append(args, "%"+filters.Country+"%")
	}
	if filters.Producer != "" {
		conditions = append(conditions, "LOWER(tn.producer) LIKE LOWER(?)")
		args = append(args, "%"+filters.Producer+"%")
	}
	if filters.Grape != "" {
		conditions = append(conditions, "LOWER(tn.grapes_json) LIKE LOWER(?)")
		args = append(args, "%"+filters.Grape+"%")
	}
	if filters.VintageMin != nil {
		conditions = append(conditions, "tn.vintage >= ?")
		args = append(args, *filters.VintageMin)
	}
	if filters.VintageMax != nil {
		conditions = append(conditions, "tn.vintage <= ?")
		args = append(args, *filters.VintageMax)
	}
	if filters.DrinkOrHold != "" {
		conditions = append(conditions, "json_extract(tn.note_json, '$.readiness.drink_or_hold') = ?")
		args = append(args, filters.DrinkOrHold)
	}

	whereClause := "1=1"
	if len(conditions) > 0 {
		whereClause = strings.Join(conditions, " AND ")
	}

	var listQuery, countQuery string
	var listArgs, countArgs []interface{}

	if filters.Query != "" {
		ftsQuery := buildFTSQuery(filters.Query)
		listQuery = fmt.Sprintf(`
			SELECT %s
			FROM tasting_notes tn
			INNER JOIN tasting_notes_fts fts ON tn.id = fts.note_id
			WHERE fts.tasting_notes_fts MATCH ? AND %s
			ORDER BY tn.updated_at DESC
			LIMIT ? OFFSET ?
		`, prefixedNoteColumns("tn"), whereClause)
		countQuery = fmt.Sprintf(`
			SELECT COUNT(*)
			FROM tasting_notes tn
			INNER JOIN tasting_notes_fts fts ON tn.id = fts.note_id
			WHERE fts.tasting_notes_fts MATCH ? AND %s
		`, whereClause)
		listArgs = append([]interface{}{ftsQuery}, args...)
		countArgs = append([]interface{}{ftsQuery}, args...)
	} else {
		listQuery = fmt.Sprintf(`
			SELECT %s
			FROM tasting_notes tn
			WHERE %s
			ORDER BY tn.updated_at DESC
			LIMIT ? OFFSET ?
		`, prefixedNoteColumns("tn"), whereClause)
		countQuery = fmt.Sprintf("SELECT COUNT(*) FROM tasting_notes tn WHERE %s", whereClause)
		listArgs = args
		countArgs = args
	}

	var totalCount int
	if err := r.db.QueryRowContext(ctx, countQuery, countArgs...).Scan(&totalCount); err != nil {
		return nil, fmt.Errorf("failed to count search results: %w", err)
	}

	listArgs = append(listArgs, limit, offset)
	rows, err := r.db.QueryContext(ctx, listQuery, listArgs...)
	if err != nil {
		return nil, fmt.Errorf("failed to search tasting notes: %w", err)
	}
	defer rows.Close()

	noteRepo := &SQLiteNoteRepository{db: r.db}
	var notes []*models.TastingNote
	for rows.Next() {
		note, err := noteRepo.scanNoteFromRows(rows)
		if err != nil {
			return nil, err
		}
		notes = append(notes, note)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &SearchResult{
		Notes:      notes,
		TotalCount: totalCount,
		Limit:      limit,
		Offset:     offset,
	}, nil
}

// RebuildIndex drops all FTS rows and reindexes every tasting note.
// Returns the number of notes indexed.
func (r *SQLiteSearchRepository) RebuildIndex(ctx context.Context) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM tasting_notes_fts"); err != nil {
		return 0, fmt.Errorf("failed to clear search index: %w", err)
	}

	result, err := tx.ExecContext(ctx, `
		INSERT INTO tasting_notes_fts(
			note_id, producer, cuvee, region, country, grapes,
			nose_notes, palate_notes, conclusion, tags
		)
		SELECT
			id,
			producer,
			cuvee,
			region,
			country,
			grapes_json,
			json_extract(note_json, '$.nose_notes'),
			json_extract(note_json, '$.palate_notes'),
			json_extract(note_json, '$.conclusion'),
			tags_json
		FROM tasting_notes
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to rebuild search index: %w", err)
	}

	count, _ := result.RowsAffected()
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return int(count), nil
}

// CountIndexed returns the number of rows in the search index.
func (r *SQLiteSearchRepository) CountIndexed(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM tasting_notes_fts").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count indexed notes: %w", err)
	}
	return count, nil
}

// GetFilterOptions returns distinct values present in the notes for
// populating filter dropdowns.
func (r *SQLiteSearchRepository) GetFilterOptions(ctx context.Context) (*FilterOptions, error) {
	options := &FilterOptions{
		Regions:   []string{},
		Countries: []string{},
		Producers: []string{},
	}

	queries := []struct {
		sql  string
		dest *[]string
	}{
		{"SELECT DISTINCT region FROM tasting_notes WHERE region != '' ORDER BY region", &options.Regions},
		{"SELECT DISTINCT country FROM tasting_notes WHERE country != '' ORDER BY country", &options.Countries},
		{"SELECT DISTINCT producer FROM tasting_notes WHERE producer != '' ORDER BY producer", &options.Producers},
	}

	for _, q := range queries {
		rows, err := r.db.QueryContext(ctx, q.sql)
		if err != nil {
			return nil, fmt.Errorf("failed to query filter options: %w", err)
		}
		for rows.Next() {
			var value string
			if err := rows.Scan(&value); err != nil {
				rows.Close()
				return nil, fmt.Errorf("failed to scan filter option: %w", err)
			}
			*q.dest = append(*q.dest, value)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, err
		}
		rows.Close()
	}

	return options, nil
}

// buildFTSQuery turns user input into an FTS5 prefix query. Special
// characters are stripped and each remaining word becomes a quoted
// prefix term, so partial words still match.
func buildFTSQuery(query string) string {
	cleaned := strings.TrimSpace(query)
	for _, c := range []string{`"`, "'", "(", ")", "*", ":", "-", "^"} {
		cleaned = strings.ReplaceAll(cleaned, c, " ")
	}

	words := strings.Fields(cleaned)
	if len(words) == 0 {
		return `""`
	}

	terms := make([]string, 0, len(words))
	for _, w := range words {
		terms = append(terms, `"`+w+`"*`)
	}
	return strings.Join(terms, " ")
}

// prefixedNoteColumns qualifies the note column list with a table alias.
func prefixedNoteColumns(alias string) string {
	cols := strings.Split(noteColumns, ",")
	for i, c := range cols {
		cols[i] = alias + "." + strings.TrimSpace(c)
	}
	return strings.Join(cols, ", ")
}
