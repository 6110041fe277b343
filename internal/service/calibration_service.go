package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/cellarlog/cellarlog/internal/models"
	"github.com/cellarlog/cellarlog/internal/repository"
)

// CalibrationService manages the personal score calibration scale: short
// descriptions of what each score level means to the taster, with example
// wines, plus scoring statistics derived from published notes.
type CalibrationService struct {
	repos  *repository.Repositories
	logger *slog.Logger
}

// NewCalibrationService creates a new calibration service.
func NewCalibrationService(repos *repository.Repositories, logger *slog.Logger) *CalibrationService {
	return &CalibrationService{
		repos:  repos,
		logger: logger,
	}
}

// ScoreReferenceEntry is one row of the score reference scale. Note is
// nil for default levels the user has not described yet.
type ScoreReferenceEntry struct {
	ScoreValue int                     `json:"score_value"`
	Band       models.QualityBand      `json:"band"`
	Note       *models.CalibrationNote `json:"note,omitempty"`
}

// ListNotes returns all calibration notes ordered by score value.
func (s *CalibrationService) ListNotes(ctx context.Context) ([]*models.CalibrationNote, error) {
	return s.repos.Calibration.List(ctx)
}

// GetNote returns a calibration note by ID, or nil if not found.
func (s *CalibrationService) GetNote(ctx context.Context, id string) (*models.CalibrationNote, error) {
	return s.repos.Calibration.GetByID(ctx, id)
}

// GetNoteByScore returns the calibration note for a score value, or nil.
func (s *CalibrationService) GetNoteByScore(ctx context.Context, scoreValue int) (*models.CalibrationNote, error) {
	return s.repos.Calibration.GetByScoreValue(ctx, scoreValue)
}

// SetNote creates or updates a calibration note. When noteID is given and
// exists, that note is updated in place. Otherwise the note anchored at
// scoreValue is updated if one exists, so each score level keeps a single
// note, and a new note is created only for an unanchored level.
func (s *CalibrationService) SetNote(ctx context.Context, scoreValue int, description string, examples []string, noteID string) (*models.CalibrationNote, error) {
	if description == "" {
		return nil, fmt.Errorf("%w: description is required", ErrInvalidInput)
	}
	if scoreValue < 0 || scoreValue > models.MaxTotalScore {
		return nil, fmt.Errorf("%w: score value must be between 0 and %d", ErrInvalidInput, models.MaxTotalScore)
	}

	now := time.Now().UTC()

	if noteID != "" {
		existing, err := s.repos.Calibration.GetByID(ctx, noteID)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			existing.ScoreValue = scoreValue
			existing.Description = description
			existing.Examples = models.StringList(examples)
			existing.UpdatedAt = now
			if err := s.repos.Calibration.Update(ctx, existing); err != nil {
				return nil, err
			}
			s.logger.Info("updated calibration note", "id", existing.ID, "score_value", scoreValue)
			return existing, nil
		}
	}

	existing, err := s.repos.Calibration.GetByScoreValue(ctx, scoreValue)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		existing.Description = description
		existing.Examples = models.StringList(examples)
		existing.UpdatedAt = now
		if err := s.repos.Calibration.Update(ctx, existing); err != nil {
			return nil, err
		}
		s.logger.Info("updated calibration note", "id", existing.ID, "score_value", scoreValue)
		return existing, nil
	}

	note := &models.CalibrationNote{
		ID:          uuid.NewString(),
		ScoreValue:  scoreValue,
		Description: description,
		Examples:    models.StringList(examples),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repos.Calibration.Create(ctx, note); err != nil {
		return nil, err
	}

	s.logger.Info("created calibration note", "id", note.ID, "score_value", scoreValue)
	return note, nil
}

// DeleteNote deletes a calibration note, reporting whether it existed.
func (s *CalibrationService) DeleteNote(ctx context.Context, id string) (bool, error) {
	deleted, err := s.repos.Calibration.Delete(ctx, id)
	if err != nil {
		return false, err
	}
	if deleted {
		s.logger.Info("deleted calibration note", "id", id)
	}
	return deleted, nil
}

// ScoreReference builds the calibration scale: the default score levels
// merged with every level the user has described, ascending.
func (s *CalibrationService) ScoreReference(ctx context.Context) ([]ScoreReferenceEntry, error) {
	notes, err := s.repos.Calibration.List(ctx)
	if err != nil {
		return nil, err
	}

	byScore := make(map[int]*models.CalibrationNote, len(notes))
	levels := make(map[int]bool)
	for _, level := range models.DefaultScoreLevels {
		levels[level] = true
	}
	for _, note := range notes {
		byScore[note.ScoreValue] = note
		levels[note.ScoreValue] = true
	}

	values := make([]int, 0, len(levels))
	for level := range levels {
		values = append(values, level)
	}
	sort.Ints(values)

	entries := make([]ScoreReferenceEntry, 0, len(values))
	for _, v := range values {
		entries = append(entries, ScoreReferenceEntry{
			ScoreValue: v,
			Band:       models.DetermineQualityBand(v),
			Note:       byScore[v],
		})
	}
	return entries, nil
}

// PersonalStats returns all-time and current-month scoring statistics.
func (s *CalibrationService) PersonalStats(ctx context.Context) (*repository.PersonalStats, error) {
	return s.repos.Analytics.GetPersonalStats(ctx)
}

// ScoreConsistency returns score spread overall and per region/country.
func (s *CalibrationService) ScoreConsistency(ctx context.Context) (*repository.ScoreConsistency, error) {
	return s.repos.Analytics.GetScoreConsistency(ctx)
}

// ScoringTrends returns per-period note counts and averages. Period is
// "month" or "year"; anything else falls back to month buckets.
func (s *CalibrationService) ScoringTrends(ctx context.Context, period string) ([]*repository.ScoringTrendPoint, error) {
	if period != "year" {
		period = "month"
	}
	return s.repos.Analytics.GetScoringTrends(ctx, period)
}
