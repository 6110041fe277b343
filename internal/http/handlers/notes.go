package handlers

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/cellarlog/cellarlog/internal/models"
	"github.com/cellarlog/cellarlog/internal/service"
)

// NoteHandler handles tasting note endpoints.
type NoteHandler struct {
	noteSvc *service.NoteService
}

// NewNoteHandler creates a new note handler.
func NewNoteHandler(noteSvc *service.NoteService) *NoteHandler {
	return &NoteHandler{noteSvc: noteSvc}
}

// CreateNoteInput represents a new tasting note request.
type CreateNoteInput struct {
	Body struct {
		Payload models.NotePayload `json:"payload" doc:"Structured tasting note content"`
		Tags    []string           `json:"tags,omitempty" doc:"Free-form tags"`
	}
}

// NoteOutput wraps a single tasting note.
type NoteOutput struct {
	Body models.TastingNote
}

// CreateNote creates a new draft tasting note.
func (h *NoteHandler) CreateNote(ctx context.Context, input *CreateNoteInput) (*NoteOutput, error) {
	note, err := h.noteSvc.CreateNote(ctx, service.CreateNoteInput{
		Payload: input.Body.Payload,
		Tags:    input.Body.Tags,
		Source:  models.NoteSourceManual,
	})
	if err != nil {
		return nil, mapServiceError(err)
	}
	return &NoteOutput{Body: *note}, nil
}

// GetNoteInput identifies one tasting note.
type GetNoteInput struct {
	ID string `path:"id" doc:"Tasting note ID"`
}

// GetNote returns one tasting note by ID.
func (h *NoteHandler) GetNote(ctx context.Context, input *GetNoteInput) (*NoteOutput, error) {
	note, err := h.noteSvc.GetNote(ctx, input.ID)
	if err != nil {
		return nil, mapServiceError(err)
	}
	if note == nil {
		return nil, huma.Error404NotFound("tasting note not found")
	}
	return &NoteOutput{Body: *note}, nil
}

// ListNotesInput represents list query parameters.
type ListNotesInput struct {
	Status string `query:"status" enum:"draft,published,archived," doc:"Restrict to one lifecycle status"`
	Limit  int    `query:"limit" minimum:"0" maximum:"200" doc:"Page size (default 50)"`
	Offset int    `query:"offset" minimum:"0" doc:"Page offset"`
}

// ListNotesOutput represents the note list response.
type ListNotesOutput struct {
	Body struct {
		Notes []*models.TastingNote `json:"notes"`
	}
}

// ListNotes returns recent notes, optionally restricted to one status.
func (h *NoteHandler) ListNotes(ctx context.Context, input *ListNotesInput) (*ListNotesOutput, error) {
	notes, err := h.noteSvc.ListNotes(ctx, models.NoteStatus(input.Status), input.Limit, input.Offset)
	if err != nil {
		return nil, mapServiceError(err)
	}
	out := &ListNotesOutput{}
	out.Body.Notes = notes
	return out, nil
}

// UpdateNoteInput represents a draft edit request.
type UpdateNoteInput struct {
	ID   string `path:"id" doc:"Tasting note ID"`
	Body struct {
		Payload models.NotePayload `json:"payload"`
		Tags    []string           `json:"tags,omitempty"`
	}
}

// UpdateDraft applies changes to an unpublished note.
func (h *NoteHandler) UpdateDraft(ctx context.Context, input *UpdateNoteInput) (*NoteOutput, error) {
	note, err := h.noteSvc.UpdateDraft(ctx, input.ID, input.Body.Payload, input.Body.Tags)
	if err != nil {
		return nil, mapServiceError(err)
	}
	return &NoteOutput{Body: *note}, nil
}

// PublishNoteInput identifies the draft to publish.
type PublishNoteInput struct {
	ID string `path:"id" doc:"Tasting note ID"`
}

// Publish moves a draft into the published state.
func (h *NoteHandler) Publish(ctx context.Context, input *PublishNoteInput) (*NoteOutput, error) {
	note, err := h.noteSvc.Publish(ctx, input.ID)
	if err != nil {
		return nil, mapServiceError(err)
	}
	return &NoteOutput{Body: *note}, nil
}

// ReviseNoteInput represents an edit to a published note.
type ReviseNoteInput struct {
	ID   string `path:"id" doc:"Tasting note ID"`
	Body struct {
		Payload      models.NotePayload `json:"payload"`
		Tags         []string           `json:"tags,omitempty"`
		ChangeReason string             `json:"change_reason,omitempty" doc:"Why the published note changed"`
	}
}

// Revise edits a published note, recording a revision snapshot.
func (h *NoteHandler) Revise(ctx context.Context, input *ReviseNoteInput) (*NoteOutput, error) {
	note, err := h.noteSvc.Revise(ctx, input.ID, input.Body.Payload, input.Body.Tags, input.Body.ChangeReason)
	if err != nil {
		return nil, mapServiceError(err)
	}
	return &NoteOutput{Body: *note}, nil
}

// ArchiveNoteInput identifies the note to archive.
type ArchiveNoteInput struct {
	ID string `path:"id" doc:"Tasting note ID"`
}

// Archive moves a published note into the archived state.
func (h *NoteHandler) Archive(ctx context.Context, input *ArchiveNoteInput) (*NoteOutput, error) {
	note, err := h.noteSvc.Archive(ctx, input.ID)
	if err != nil {
		return nil, mapServiceError(err)
	}
	return &NoteOutput{Body: *note}, nil
}

// DeleteNoteInput identifies the note to delete.
type DeleteNoteInput struct {
	ID string `path:"id" doc:"Tasting note ID"`
}

// DeleteNoteOutput represents the delete response.
type DeleteNoteOutput struct {
	Body struct {
		Deleted bool `json:"deleted"`
	}
}

// DeleteNote removes a tasting note and its revisions.
func (h *NoteHandler) DeleteNote(ctx context.Context, input *DeleteNoteInput) (*DeleteNoteOutput, error) {
	deleted, err := h.noteSvc.DeleteNote(ctx, input.ID)
	if err != nil {
		return nil, mapServiceError(err)
	}
	if !deleted {
		return nil, huma.Error404NotFound("tasting note not found")
	}
	out := &DeleteNoteOutput{}
	out.Body.Deleted = true
	return out, nil
}

// ListRevisionsInput identifies the note whose history is requested.
type ListRevisionsInput struct {
	ID string `path:"id" doc:"Tasting note ID"`
}

// ListRevisionsOutput represents the revision history response.
type ListRevisionsOutput struct {
	Body struct {
		Revisions []*models.NoteRevision `json:"revisions"`
	}
}

// ListRevisions returns the revision history of a note, newest first.
func (h *NoteHandler) ListRevisions(ctx context.Context, input *ListRevisionsInput) (*ListRevisionsOutput, error) {
	revisions, err := h.noteSvc.GetRevisions(ctx, input.ID)
	if err != nil {
		return nil, mapServiceError(err)
	}
	out := &ListRevisionsOutput{}
	out.Body.Revisions = revisions
	return out, nil
}
