package handlers

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/cellarlog/cellarlog/internal/models"
	"github.com/cellarlog/cellarlog/internal/service"
)

// InboxHandler handles capture inbox endpoints.
type InboxHandler struct {
	inboxSvc *service.InboxService
}

// NewInboxHandler creates a new inbox handler.
func NewInboxHandler(inboxSvc *service.InboxService) *InboxHandler {
	return &InboxHandler{inboxSvc: inboxSvc}
}

// CaptureInput represents a raw text capture request.
type CaptureInput struct {
	Body struct {
		RawText string   `json:"raw_text" minLength:"1" doc:"Raw tasting text to capture"`
		Tags    []string `json:"tags,omitempty" doc:"Tags carried onto the converted note"`
	}
}

// InboxItemOutput wraps a single inbox item.
type InboxItemOutput struct {
	Body models.InboxItem
}

// Capture stores a new raw text item in the inbox.
func (h *InboxHandler) Capture(ctx context.Context, input *CaptureInput) (*InboxItemOutput, error) {
	item, err := h.inboxSvc.Capture(ctx, input.Body.RawText, input.Body.Tags)
	if err != nil {
		return nil, mapServiceError(err)
	}
	return &InboxItemOutput{Body: *item}, nil
}

// ListInboxInput represents inbox list query parameters.
type ListInboxInput struct {
	IncludeConverted bool `query:"include_converted" doc:"Include items already converted to notes"`
	Limit            int  `query:"limit" minimum:"0" maximum:"200" doc:"Page size (default 50)"`
	Offset           int  `query:"offset" minimum:"0" doc:"Page offset"`
}

// ListInboxOutput represents the inbox list response.
type ListInboxOutput struct {
	Body struct {
		Items []*models.InboxItem `json:"items"`
	}
}

// ListItems returns inbox items newest first.
func (h *InboxHandler) ListItems(ctx context.Context, input *ListInboxInput) (*ListInboxOutput, error) {
	items, err := h.inboxSvc.ListItems(ctx, input.IncludeConverted, input.Limit, input.Offset)
	if err != nil {
		return nil, mapServiceError(err)
	}
	out := &ListInboxOutput{}
	out.Body.Items = items
	return out, nil
}

// GetInboxInput identifies one inbox item.
type GetInboxInput struct {
	ID string `path:"id" doc:"Inbox item ID"`
}

// GetItem returns one inbox item by ID.
func (h *InboxHandler) GetItem(ctx context.Context, input *GetInboxInput) (*InboxItemOutput, error) {
	item, err := h.inboxSvc.GetItem(ctx, input.ID)
	if err != nil {
		return nil, mapServiceError(err)
	}
	if item == nil {
		return nil, huma.Error404NotFound("inbox item not found")
	}
	return &InboxItemOutput{Body: *item}, nil
}

// DeleteInboxInput identifies the item to delete.
type DeleteInboxInput struct {
	ID string `path:"id" doc:"Inbox item ID"`
}

// DeleteInboxOutput represents the delete response.
type DeleteInboxOutput struct {
	Body struct {
		Deleted bool `json:"deleted"`
	}
}

// DeleteItem deletes an unconverted inbox item.
func (h *InboxHandler) DeleteItem(ctx context.Context, input *DeleteInboxInput) (*DeleteInboxOutput, error) {
	deleted, err := h.inboxSvc.DeleteItem(ctx, input.ID)
	if err != nil {
		return nil, mapServiceError(err)
	}
	if !deleted {
		return nil, huma.Error404NotFound("inbox item not found")
	}
	out := &DeleteInboxOutput{}
	out.Body.Deleted = true
	return out, nil
}

// ListRunsInput identifies the item whose conversion runs are requested.
type ListRunsInput struct {
	ID string `path:"id" doc:"Inbox item ID"`
}

// ListRunsOutput represents the conversion run list response.
type ListRunsOutput struct {
	Body struct {
		Runs []*models.ConversionRun `json:"runs"`
	}
}

// ListRuns returns every conversion attempt recorded for an item.
func (h *InboxHandler) ListRuns(ctx context.Context, input *ListRunsInput) (*ListRunsOutput, error) {
	runs, err := h.inboxSvc.ItemRuns(ctx, input.ID)
	if err != nil {
		return nil, mapServiceError(err)
	}
	out := &ListRunsOutput{}
	out.Body.Runs = runs
	return out, nil
}

// InboxStatsOutput represents the inbox statistics response.
type InboxStatsOutput struct {
	Body service.InboxStats
}

// Stats returns the pending count and recent conversion runs.
func (h *InboxHandler) Stats(ctx context.Context, input *struct{}) (*InboxStatsOutput, error) {
	stats, err := h.inboxSvc.Stats(ctx)
	if err != nil {
		return nil, mapServiceError(err)
	}
	return &InboxStatsOutput{Body: *stats}, nil
}
