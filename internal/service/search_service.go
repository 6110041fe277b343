package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/cellarlog/cellarlog/internal/constants"
	"github.com/cellarlog/cellarlog/internal/repository"
)

// Maintenance task names recorded in the audit log.
const (
	TaskSearchReindex = "search_reindex"
	TaskBackup        = "backup"
	TaskBackupCleanup = "backup_cleanup"
)

// SearchService wraps full-text search over published tasting notes.
type SearchService struct {
	repos       *repository.Repositories
	entitlement *EntitlementService
	logger      *slog.Logger
}

// NewSearchService creates a new search service.
func NewSearchService(repos *repository.Repositories, entitlement *EntitlementService, logger *slog.Logger) *SearchService {
	return &SearchService{
		repos:       repos,
		entitlement: entitlement,
		logger:      logger,
	}
}

// Search runs a full-text and filtered search over tasting notes.
// Filtered (non-query) searches are available on every tier; a text
// query requires the basic search feature.
func (s *SearchService) Search(ctx context.Context, filters repository.SearchFilters, limit, offset int) (*repository.SearchResult, error) {
	if filters.Query != "" {
		if err := s.entitlement.RequireFeature(ctx, constants.FeatureBasicSearch); err != nil {
			return nil, err
		}
	}
	if filters.ScoreMin != nil && filters.ScoreMax != nil && *filters.ScoreMin > *filters.ScoreMax {
		return nil, fmt.Errorf("%w: score_min is greater than score_max", ErrInvalidInput)
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.repos.Search.Search(ctx, filters, limit, offset)
}

// FilterOptions returns the distinct regions, countries and producers
// present in published notes, for populating filter dropdowns.
func (s *SearchService) FilterOptions(ctx context.Context) (*repository.FilterOptions, error) {
	return s.repos.Search.GetFilterOptions(ctx)
}

// IndexedCount returns the number of notes currently in the search
// index.
func (s *SearchService) IndexedCount(ctx context.Context) (int, error) {
	return s.repos.Search.CountIndexed(ctx)
}

// Reindex rebuilds the search index from scratch and records the run
// in the maintenance log. Normally the index stays current through
// triggers; a rebuild is only needed after a restore or index
// corruption.
func (s *SearchService) Reindex(ctx context.Context) (int, error) {
	run, err := s.repos.Maintenance.Start(ctx, TaskSearchReindex)
	if err != nil {
		return 0, err
	}

	start := time.Now()
	indexed, err := s.repos.Search.RebuildIndex(ctx)
	if err != nil {
		if ferr := s.repos.Maintenance.Fail(ctx, run.ID, err.Error()); ferr != nil {
			s.logger.Error("failed to record reindex failure", "run_id", run.ID, "error", ferr)
		}
		return 0, fmt.Errorf("failed to rebuild search index: %w", err)
	}

	details, _ := json.Marshal(map[string]any{
		"indexed_notes": indexed,
		"duration_ms":   time.Since(start).Milliseconds(),
	})
	if err := s.repos.Maintenance.Complete(ctx, run.ID, string(details)); err != nil {
		s.logger.Error("failed to record reindex completion", "run_id", run.ID, "error", err)
	}

	s.logger.Info("rebuilt search index", "run_id", run.ID, "indexed_notes", indexed)
	return indexed, nil
}
