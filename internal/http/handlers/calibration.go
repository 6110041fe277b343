package handlers

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/cellarlog/cellarlog/internal/models"
	"github.com/cellarlog/cellarlog/internal/service"
)

// CalibrationHandler handles calibration note endpoints.
type CalibrationHandler struct {
	calibrationSvc *service.CalibrationService
}

// NewCalibrationHandler creates a new calibration handler.
func NewCalibrationHandler(calibrationSvc *service.CalibrationService) *CalibrationHandler {
	return &CalibrationHandler{calibrationSvc: calibrationSvc}
}

// ListCalibrationOutput represents the calibration note list response.
type ListCalibrationOutput struct {
	Body struct {
		Notes []*models.CalibrationNote `json:"notes"`
	}
}

// ListNotes returns all calibration notes ordered by score value.
func (h *CalibrationHandler) ListNotes(ctx context.Context, input *struct{}) (*ListCalibrationOutput, error) {
	notes, err := h.calibrationSvc.ListNotes(ctx)
	if err != nil {
		return nil, mapServiceError(err)
	}
	out := &ListCalibrationOutput{}
	out.Body.Notes = notes
	return out, nil
}

// GetCalibrationInput identifies one calibration note.
type GetCalibrationInput struct {
	ID string `path:"id" doc:"Calibration note ID"`
}

// CalibrationNoteOutput wraps a single calibration note.
type CalibrationNoteOutput struct {
	Body models.CalibrationNote
}

// GetNote returns one calibration note by ID.
func (h *CalibrationHandler) GetNote(ctx context.Context, input *GetCalibrationInput) (*CalibrationNoteOutput, error) {
	note, err := h.calibrationSvc.GetNote(ctx, input.ID)
	if err != nil {
		return nil, mapServiceError(err)
	}
	if note == nil {
		return nil, huma.Error404NotFound("calibration note not found")
	}
	return &CalibrationNoteOutput{Body: *note}, nil
}

// SetCalibrationInput represents a create-or-update request for the
// note anchored at a score level.
type SetCalibrationInput struct {
	Body struct {
		ID          string   `json:"id,omitempty" doc:"Existing note ID to update in place"`
		ScoreValue  int      `json:"score_value" minimum:"0" maximum:"100" doc:"Score level this note anchors"`
		Description string   `json:"description" minLength:"1" doc:"What a wine at this level tastes like"`
		Examples    []string `json:"examples,omitempty" doc:"Example wines for this level"`
	}
}

// SetNote creates or updates the calibration note for a score level.
func (h *CalibrationHandler) SetNote(ctx context.Context, input *SetCalibrationInput) (*CalibrationNoteOutput, error) {
	note, err := h.calibrationSvc.SetNote(ctx, input.Body.ScoreValue, input.Body.Description, input.Body.Examples, input.Body.ID)
	if err != nil {
		return nil, mapServiceError(err)
	}
	return &CalibrationNoteOutput{Body: *note}, nil
}

// DeleteCalibrationInput identifies the note to delete.
type DeleteCalibrationInput struct {
	ID string `path:"id" doc:"Calibration note ID"`
}

// DeleteCalibrationOutput represents the delete response.
type DeleteCalibrationOutput struct {
	Body struct {
		Deleted bool `json:"deleted"`
	}
}

// DeleteNote removes a calibration note.
func (h *CalibrationHandler) DeleteNote(ctx context.Context, input *DeleteCalibrationInput) (*DeleteCalibrationOutput, error) {
	deleted, err := h.calibrationSvc.DeleteNote(ctx, input.ID)
	if err != nil {
		return nil, mapServiceError(err)
	}
	if !deleted {
		return nil, huma.Error404NotFound("calibration note not found")
	}
	out := &DeleteCalibrationOutput{}
	out.Body.Deleted = true
	return out, nil
}

// ScoreReferenceOutput represents the score reference scale response.
type ScoreReferenceOutput struct {
	Body struct {
		Levels []service.ScoreReferenceEntry `json:"levels"`
	}
}

// ScoreReference returns the reference scale: every default score level
// plus every described one, with the user's note where present.
func (h *CalibrationHandler) ScoreReference(ctx context.Context, input *struct{}) (*ScoreReferenceOutput, error) {
	levels, err := h.calibrationSvc.ScoreReference(ctx)
	if err != nil {
		return nil, mapServiceError(err)
	}
	out := &ScoreReferenceOutput{}
	out.Body.Levels = levels
	return out, nil
}
