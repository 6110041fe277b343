package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cellarlog/cellarlog/internal/models"
	"github.com/cellarlog/cellarlog/internal/repository"
)

// MaxInboxTextBytes caps the size of a single captured text.
const MaxInboxTextBytes = 64 * 1024

// InboxService manages the capture inbox: raw tasting text waiting to
// be converted into structured notes by the conversion worker.
type InboxService struct {
	repos       *repository.Repositories
	entitlement *EntitlementService
	logger      *slog.Logger
}

// NewInboxService creates a new inbox service.
func NewInboxService(repos *repository.Repositories, entitlement *EntitlementService, logger *slog.Logger) *InboxService {
	return &InboxService{
		repos:       repos,
		entitlement: entitlement,
		logger:      logger,
	}
}

// Capture stores a new raw text item in the inbox.
func (s *InboxService) Capture(ctx context.Context, rawText string, tags []string) (*models.InboxItem, error) {
	rawText = strings.TrimSpace(rawText)
	if rawText == "" {
		return nil, fmt.Errorf("%w: raw text is required", ErrInvalidInput)
	}
	if len(rawText) > MaxInboxTextBytes {
		return nil, fmt.Errorf("%w: raw text exceeds %d bytes", ErrInvalidInput, MaxInboxTextBytes)
	}

	pending, err := s.repos.Inbox.CountPending(ctx)
	if err != nil {
		return nil, err
	}
	if result := s.entitlement.CheckInboxLimit(ctx, pending); !result.Allowed {
		return nil, fmt.Errorf("%w: %s", ErrLimitExceeded, result.Reason)
	}

	now := time.Now().UTC()
	item := &models.InboxItem{
		ID:        uuid.NewString(),
		RawText:   rawText,
		CreatedAt: now,
		UpdatedAt: now,
		Tags:      models.StringList(tags),
	}
	if err := s.repos.Inbox.Create(ctx, item); err != nil {
		return nil, err
	}

	s.logger.Info("captured inbox item", "id", item.ID, "size_bytes", len(rawText))
	return item, nil
}

// GetItem returns an inbox item by ID, or nil if not found.
func (s *InboxService) GetItem(ctx context.Context, id string) (*models.InboxItem, error) {
	return s.repos.Inbox.GetByID(ctx, id)
}

// ListItems returns inbox items newest first. Converted items are
// included only when includeConverted is set.
func (s *InboxService) ListItems(ctx context.Context, includeConverted bool, limit, offset int) ([]*models.InboxItem, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.repos.Inbox.List(ctx, includeConverted, limit, offset)
}

// DeleteItem deletes an unconverted inbox item, reporting whether it
// existed. Converted items stay as the provenance of their note.
func (s *InboxService) DeleteItem(ctx context.Context, id string) (bool, error) {
	item, err := s.repos.Inbox.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	if item == nil {
		return false, nil
	}
	if item.Converted {
		return false, fmt.Errorf("%w: item has been converted, delete the note instead", ErrConflict)
	}

	deleted, err := s.repos.Inbox.Delete(ctx, id)
	if err != nil {
		return false, err
	}
	if deleted {
		s.logger.Info("deleted inbox item", "id", id)
	}
	return deleted, nil
}

// ItemRuns returns every conversion attempt recorded for an item.
func (s *InboxService) ItemRuns(ctx context.Context, itemID string) ([]*models.ConversionRun, error) {
	return s.repos.ConversionRun.GetByInboxItemID(ctx, itemID)
}

// InboxStats summarizes the state of the inbox.
type InboxStats struct {
	PendingCount int                     `json:"pending_count"`
	RecentRuns   []*models.ConversionRun `json:"recent_runs"`
}

// Stats returns the pending count and the most recent conversion runs.
func (s *InboxService) Stats(ctx context.Context) (*InboxStats, error) {
	pending, err := s.repos.Inbox.CountPending(ctx)
	if err != nil {
		return nil, err
	}
	runs, err := s.repos.ConversionRun.ListRecent(ctx, 10)
	if err != nil {
		return nil, err
	}
	return &InboxStats{PendingCount: pending, RecentRuns: runs}, nil
}
