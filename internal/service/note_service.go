package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cellarlog/cellarlog/internal/models"
	"github.com/cellarlog/cellarlog/internal/repository"
)

// NoteService manages the tasting note lifecycle: draft, published,
// archived. Edits to published notes go through Revise, which records a
// snapshot revision.
type NoteService struct {
	repos       *repository.Repositories
	entitlement *EntitlementService
	logger      *slog.Logger
}

// NewNoteService creates a new note service.
func NewNoteService(repos *repository.Repositories, entitlement *EntitlementService, logger *slog.Logger) *NoteService {
	return &NoteService{
		repos:       repos,
		entitlement: entitlement,
		logger:      logger,
	}
}

// CreateNoteInput carries the fields for a new tasting note.
type CreateNoteInput struct {
	Payload models.NotePayload
	Tags    []string
	Source  models.NoteSource
	// InboxItemID links a converted note back to its inbox item
	InboxItemID *string
}

// CreateNote creates a new draft note. Subscores are validated, the
// total and quality band recalculated, and the wine identity promoted
// into queryable columns.
func (s *NoteService) CreateNote(ctx context.Context, input CreateNoteInput) (*models.TastingNote, error) {
	if errs := input.Payload.Scores.SubScores.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("%w: invalid subscores: %s", ErrInvalidInput, strings.Join(errs, "; "))
	}

	count, err := s.repos.Note.Count(ctx)
	if err != nil {
		return nil, err
	}
	if result := s.entitlement.CheckNoteLimit(ctx, count); !result.Allowed {
		return nil, fmt.Errorf("%w: %s", ErrLimitExceeded, result.Reason)
	}

	source := input.Source
	if source == "" {
		source = models.NoteSourceManual
	}

	now := time.Now().UTC()
	note := &models.TastingNote{
		ID:              uuid.NewString(),
		CreatedAt:       now,
		UpdatedAt:       now,
		Status:          models.NoteStatusDraft,
		Source:          source,
		TemplateVersion: "1.0",
		InboxItemID:     input.InboxItemID,
		Tags:            models.StringList(input.Tags),
		Payload:         input.Payload,
	}
	note.Payload.Scores.System = models.ScoringSystem
	note.Payload.Scores.Recalculate()
	syncPromotedColumns(note)

	if err := s.repos.Note.Create(ctx, note); err != nil {
		return nil, err
	}

	s.logger.Info("created tasting note",
		"id", note.ID,
		"producer", note.Producer,
		"score_total", note.ScoreTotal,
		"source", note.Source,
	)
	return note, nil
}

// GetNote returns a note by ID, or nil if not found.
func (s *NoteService) GetNote(ctx context.Context, id string) (*models.TastingNote, error) {
	return s.repos.Note.GetByID(ctx, id)
}

// ListNotes returns recent notes, optionally restricted to one status.
func (s *NoteService) ListNotes(ctx context.Context, status models.NoteStatus, limit, offset int) ([]*models.TastingNote, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.repos.Note.List(ctx, status, limit, offset)
}

// UpdateDraft applies changes to an unpublished note. Published notes
// must be edited through Revise so a revision is recorded.
func (s *NoteService) UpdateDraft(ctx context.Context, id string, payload models.NotePayload, tags []string) (*models.TastingNote, error) {
	note, err := s.repos.Note.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if note == nil {
		return nil, fmt.Errorf("%w: note %s", ErrNotFound, id)
	}
	if note.Status == models.NoteStatusPublished {
		return nil, fmt.Errorf("%w: cannot edit a published note directly, use Revise", ErrConflict)
	}
	if errs := payload.Scores.SubScores.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("%w: invalid subscores: %s", ErrInvalidInput, strings.Join(errs, "; "))
	}

	note.Payload = payload
	note.Payload.Scores.System = models.ScoringSystem
	note.Payload.Scores.Recalculate()
	note.Tags = models.StringList(tags)
	note.UpdatedAt = time.Now().UTC()
	syncPromotedColumns(note)

	if err := s.repos.Note.Update(ctx, note); err != nil {
		return nil, err
	}

	s.logger.Info("saved draft", "id", note.ID)
	return note, nil
}

// Publish marks a note published, recording a revision snapshot. The
// note must identify its wine by at least a producer or a vintage.
func (s *NoteService) Publish(ctx context.Context, id string) (*models.TastingNote, error) {
	note, err := s.repos.Note.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if note == nil {
		return nil, fmt.Errorf("%w: note %s", ErrNotFound, id)
	}
	if note.Status == models.NoteStatusPublished {
		return nil, fmt.Errorf("%w: note is already published", ErrConflict)
	}
	if note.Payload.Wine.Producer == "" && note.Payload.Wine.Vintage == nil {
		return nil, fmt.Errorf("%w: at least producer or vintage must be set before publishing", ErrInvalidInput)
	}

	previous := *note
	note.Status = models.NoteStatusPublished
	note.UpdatedAt = time.Now().UTC()

	if err := s.repos.Note.Update(ctx, note); err != nil {
		return nil, err
	}
	if err := s.recordRevision(ctx, &previous, note, []string{"status"}, "Initial publication"); err != nil {
		return nil, err
	}

	s.logger.Info("published note", "id", note.ID, "score_total", note.ScoreTotal)
	return note, nil
}

// Revise applies changes to a published note and records a revision with
// the changed fields and optional reason.
func (s *NoteService) Revise(ctx context.Context, id string, payload models.NotePayload, tags []string, changeReason string) (*models.TastingNote, error) {
	note, err := s.repos.Note.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if note == nil {
		return nil, fmt.Errorf("%w: note %s", ErrNotFound, id)
	}
	if note.Status != models.NoteStatusPublished {
		return nil, fmt.Errorf("%w: only published notes can be revised, use UpdateDraft", ErrConflict)
	}
	if errs := payload.Scores.SubScores.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("%w: invalid subscores: %s", ErrInvalidInput, strings.Join(errs, "; "))
	}

	previous := *note
	note.Payload = payload
	note.Payload.Scores.System = models.ScoringSystem
	note.Payload.Scores.Recalculate()
	note.Tags = models.StringList(tags)
	note.UpdatedAt = time.Now().UTC()
	syncPromotedColumns(note)

	changed := changedFields(&previous, note)
	if len(changed) == 0 {
		return note, nil
	}

	if err := s.repos.Note.Update(ctx, note); err != nil {
		return nil, err
	}
	if err := s.recordRevision(ctx, &previous, note, changed, changeReason); err != nil {
		return nil, err
	}

	s.logger.Info("revised note", "id", note.ID, "changed_fields", changed)
	return note, nil
}

// Archive moves a published note out of the active collection.
func (s *NoteService) Archive(ctx context.Context, id string) (*models.TastingNote, error) {
	note, err := s.repos.Note.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if note == nil {
		return nil, fmt.Errorf("%w: note %s", ErrNotFound, id)
	}
	if note.Status == models.NoteStatusArchived {
		return note, nil
	}

	previous := *note
	note.Status = models.NoteStatusArchived
	note.UpdatedAt = time.Now().UTC()

	if err := s.repos.Note.Update(ctx, note); err != nil {
		return nil, err
	}
	if err := s.recordRevision(ctx, &previous, note, []string{"status"}, "Archived"); err != nil {
		return nil, err
	}

	s.logger.Info("archived note", "id", note.ID)
	return note, nil
}

// DeleteNote deletes an unpublished note, reporting whether it existed.
// Published notes cannot be deleted; archive them instead.
func (s *NoteService) DeleteNote(ctx context.Context, id string) (bool, error) {
	note, err := s.repos.Note.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	if note == nil {
		return false, nil
	}
	if note.Status == models.NoteStatusPublished {
		return false, fmt.Errorf("%w: cannot delete a published note", ErrConflict)
	}

	deleted, err := s.repos.Note.Delete(ctx, id)
	if err != nil {
		return false, err
	}
	if deleted {
		s.logger.Info("deleted note", "id", id)
	}
	return deleted, nil
}

// GetRevisions returns all revisions for a note, oldest first.
func (s *NoteService) GetRevisions(ctx context.Context, noteID string) ([]*models.NoteRevision, error) {
	return s.repos.Revision.ListByNoteID(ctx, noteID)
}

// recordRevision snapshots the note before and after a change. The first
// revision stores an empty previous snapshot.
func (s *NoteService) recordRevision(ctx context.Context, previous, current *models.TastingNote, changed []string, reason string) error {
	number, err := s.repos.Revision.NextRevisionNumber(ctx, current.ID)
	if err != nil {
		return err
	}

	previousJSON := "{}"
	if number > 1 {
		data, err := json.Marshal(previous)
		if err != nil {
			return fmt.Errorf("failed to snapshot previous state: %w", err)
		}
		previousJSON = string(data)
	}
	newJSON, err := json.Marshal(current)
	if err != nil {
		return fmt.Errorf("failed to snapshot new state: %w", err)
	}

	rev := &models.NoteRevision{
		ID:               uuid.NewString(),
		TastingNoteID:    current.ID,
		RevisionNumber:   number,
		CreatedAt:        time.Now().UTC(),
		ChangedFields:    models.StringList(changed),
		PreviousSnapshot: previousJSON,
		NewSnapshot:      string(newJSON),
		ChangeReason:     reason,
	}
	return s.repos.Revision.Create(ctx, rev)
}

// syncPromotedColumns copies the queryable identity and score fields out
// of the payload into their columns.
func syncPromotedColumns(note *models.TastingNote) {
	note.Producer = note.Payload.Wine.Producer
	note.Cuvee = note.Payload.Wine.Cuvee
	note.Vintage = note.Payload.Wine.Vintage
	note.Country = note.Payload.Wine.Country
	note.Region = note.Payload.Wine.Region
	note.Grapes = note.Payload.Wine.Grapes
	note.Color = note.Payload.Wine.Color
	note.ScoreTotal = note.Payload.Scores.Total
	note.QualityBand = note.Payload.Scores.QualityBand
}

// changedFields compares two notes section by section.
func changedFields(previous, current *models.TastingNote) []string {
	var changed []string

	if previous.Status != current.Status {
		changed = append(changed, "status")
	}
	if !reflect.DeepEqual(previous.Payload.Wine, current.Payload.Wine) {
		changed = append(changed, "wine")
	}
	if !reflect.DeepEqual(previous.Payload.Scores, current.Payload.Scores) {
		changed = append(changed, "scores")
	}
	if !reflect.DeepEqual(previous.Payload.Descriptors, current.Payload.Descriptors) {
		changed = append(changed, "descriptors")
	}
	if !reflect.DeepEqual(previous.Payload.Readiness, current.Payload.Readiness) {
		changed = append(changed, "readiness")
	}
	if !reflect.DeepEqual(previous.Tags, current.Tags) {
		changed = append(changed, "tags")
	}

	freeText := map[string][2]string{
		"appearance_notes": {previous.Payload.AppearanceNotes, current.Payload.AppearanceNotes},
		"nose_notes":       {previous.Payload.NoseNotes, current.Payload.NoseNotes},
		"palate_notes":     {previous.Payload.PalateNotes, current.Payload.PalateNotes},
		"structure_notes":  {previous.Payload.StructureNotes, current.Payload.StructureNotes},
		"finish_notes":     {previous.Payload.FinishNotes, current.Payload.FinishNotes},
		"overall_notes":    {previous.Payload.OverallNotes, current.Payload.OverallNotes},
		"conclusion":       {previous.Payload.Conclusion, current.Payload.Conclusion},
	}
	for field, pair := range freeText {
		if pair[0] != pair[1] {
			changed = append(changed, field)
		}
	}

	return changed
}
