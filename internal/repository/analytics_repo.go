package repository

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	"github.com/cellarlog/cellarlog/internal/models"
)

// PersonalStats summarizes the user's scoring behavior across published
// notes.
type PersonalStats struct {
	TotalNotes        int     `json:"total_notes"`
	AvgScore          float64 `json:"avg_score"`
	StdDev            float64 `json:"std_dev"`
	ScoreMin          int     `json:"score_min"`
	ScoreMax          int     `json:"score_max"`
	NotesThisMonth    int     `json:"notes_this_month"`
	AvgScoreThisMonth float64 `json:"avg_score_this_month"`
}

// ScoreConsistency reports score spread overall and per region/country.
// Only regions and countries with at least three published notes are
// included.
type ScoreConsistency struct {
	OverallStdDev float64            `json:"overall_std_dev"`
	ByRegion      map[string]float64 `json:"by_region"`
	ByCountry     map[string]float64 `json:"by_country"`
}

// ScoringTrendPoint is one time bucket of scoring activity.
type ScoringTrendPoint struct {
	Period   string  `json:"period"`
	Count    int     `json:"count"`
	AvgScore float64 `json:"avg_score"`
}

// SQLiteAnalyticsRepository implements scoring analytics for SQLite.
type SQLiteAnalyticsRepository struct {
	db *sql.DB
}

// NewSQLiteAnalyticsRepository creates a new analytics repository.
func NewSQLiteAnalyticsRepository(db *sql.DB) *SQLiteAnalyticsRepository {
	return &SQLiteAnalyticsRepository{db: db}
}

// GetPersonalStats returns all-time and current-month scoring statistics
// over published notes.
func (r *SQLiteAnalyticsRepository) GetPersonalStats(ctx context.Context) (*PersonalStats, error) {
	scores, err := r.publishedScores(ctx, "")
	if err != nil {
		return nil, err
	}

	stats := &PersonalStats{TotalNotes: len(scores)}
	if len(scores) > 0 {
		stats.AvgScore = round1(mean(scores))
		stats.StdDev = round1(stdDev(scores))
		stats.ScoreMin, stats.ScoreMax = minMax(scores)
	}

	now := time.Now().UTC()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).Format(time.RFC3339)
	monthScores, err := r.publishedScores(ctx, monthStart)
	if err != nil {
		return nil, err
	}

	stats.NotesThisMonth = len(monthScores)
	if len(monthScores) > 0 {
		stats.AvgScoreThisMonth = round1(mean(monthScores))
	}

	return stats, nil
}

// GetScoreConsistency analyzes score spread across regions and countries.
func (r *SQLiteAnalyticsRepository) GetScoreConsistency(ctx context.Context) (*ScoreConsistency, error) {
	scores, err := r.publishedScores(ctx, "")
	if err != nil {
		return nil, err
	}

	consistency := &ScoreConsistency{
		OverallStdDev: round1(stdDev(scores)),
		ByRegion:      make(map[string]float64),
		ByCountry:     make(map[string]float64),
	}

	byRegion, err := r.scoresGroupedBy(ctx, "region")
	if err != nil {
		return nil, err
	}
	for region, vals := range byRegion {
		if len(vals) >= 3 {
			consistency.ByRegion[region] = round1(stdDev(vals))
		}
	}

	byCountry, err := r.scoresGroupedBy(ctx, "country")
	if err != nil {
		return nil, err
	}
	for country, vals := range byCountry {
		if len(vals) >= 3 {
			consistency.ByCountry[country] = round1(stdDev(vals))
		}
	}

	return consistency, nil
}

// GetScoringTrends returns per-period note counts and score averages
// over published notes. Period is "month" or "year".
func (r *SQLiteAnalyticsRepository) GetScoringTrends(ctx context.Context, period string) ([]*ScoringTrendPoint, error) {
	dateFormat := "%Y-%m"
	if period == "year" {
		dateFormat = "%Y"
	}

	query := fmt.Sprintf(`
		SELECT
			strftime('%s', created_at) as period,
			COUNT(*) as count,
			AVG(score_total) as avg_score
		FROM tasting_notes
		WHERE status = 'published'
		GROUP BY period
		ORDER BY period ASC
	`, dateFormat)

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query scoring trends: %w", err)
	}
	defer rows.Close()

	var trends []*ScoringTrendPoint
	for rows.Next() {
		var point ScoringTrendPoint
		var avg float64
		if err := rows.Scan(&point.Period, &point.Count, &avg); err != nil {
			return nil, fmt.Errorf("failed to scan trend point: %w", err)
		}
		point.AvgScore = round1(avg)
		trends = append(trends, &point)
	}
	return trends, rows.Err()
}

// publishedScores returns score_total values for published notes,
// optionally created at or after the RFC3339 timestamp since.
func (r *SQLiteAnalyticsRepository) publishedScores(ctx context.Context, since string) ([]int, error) {
	query := "SELECT score_total FROM tasting_notes WHERE status = ?"
	args := []interface{}{models.NoteStatusPublished}
	if since != "" {
		query += " AND created_at >= ?"
		args = append(args, since)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query scores: %w", err)
	}
	defer rows.Close()

	var scores []int
	for rows.Next() {
		var s int
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("failed to scan score: %w", err)
		}
		scores = append(scores, s)
	}
	return scores, rows.Err()
}

// scoresGroupedBy returns published scores keyed by a column value,
// skipping rows where the column is empty.
func (r *SQLiteAnalyticsRepository) scoresGroupedBy(ctx context.Context, column string) (map[string][]int, error) {
	// column is one of the fixed identifiers "region" or "country"
	query := fmt.Sprintf(
		"SELECT %s, score_total FROM tasting_notes WHERE status = ? AND %s != ''",
		column, column,
	)
	rows, err := r.db.QueryContext(ctx, query, models.NoteStatusPublished)
	if err != nil {
		return nil, fmt.Errorf("failed to query grouped scores: %w", err)
	}
	defer rows.Close()

	grouped := make(map[string][]int)
	for rows.Next() {
		var key string
		var score int
		if err := rows.Scan(&key, &score); err != nil {
			return nil, fmt.Errorf("failed to scan grouped score: %w", err)
		}
		grouped[key] = append(grouped[key], score)
	}
	return grouped, rows.Err()
}

func mean(values []int) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0
	for _, v := range values {
		sum += v
	}
	return float64(sum) / float64(len(values))
}

// stdDev returns the sample standard deviation, 0 for fewer than two
// values.
func stdDev(values []int) float64 {
	if len(values) < 2 {
		return 0
	}
	m := mean(values)
	var sumSq float64
	for _, v := range values {
		d := float64(v) - m
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(values)-1))
}

func minMax(values []int) (int, int) {
	if len(values) == 0 {
		return 0, 0
	}
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
