package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/cellarlog/cellarlog/internal/logging"
	"github.com/cellarlog/cellarlog/internal/models"
	"github.com/cellarlog/cellarlog/internal/repository"
)

func newTestSearchService(env *testEnv) *SearchService {
	return NewSearchService(env.repos, env.entitlement, logging.New())
}

// seedSearchNote creates and publishes a note through the service so the
// FTS triggers index it.
func seedSearchNote(t *testing.T, env *testEnv, producer, region string, total int, palate string) *models.TastingNote {
	t.Helper()
	ctx := context.Background()
	notes := NewNoteService(env.repos, env.entitlement, logging.New())

	payload := testPayload(producer, total)
	payload.Wine.Region = region
	payload.PalateNotes = palate

	note, err := notes.CreateNote(ctx, CreateNoteInput{Payload: payload})
	if err != nil {
		t.Fatalf("CreateNote() error = %v", err)
	}
	if _, err := notes.Publish(ctx, note.ID); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	return note
}

func TestSearch_TextQuery(t *testing.T) {
	env := setupTestEnv(t)
	svc := newTestSearchService(env)
	ctx := context.Background()

	seedSearchNote(t, env, "Ridge", "Santa Cruz Mountains", 93, "cassis and graphite")
	seedSearchNote(t, env, "Leflaive", "Burgundy", 95, "citrus and hazelnut")

	result, err := svc.Search(ctx, repository.SearchFilters{Query: "hazelnut"}, 50, 0)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if result.TotalCount != 1 {
		t.Fatalf("TotalCount = %d, want 1", result.TotalCount)
	}
	if result.Notes[0].Producer != "Leflaive" {
		t.Errorf("matched %q, want Leflaive", result.Notes[0].Producer)
	}
}

func TestSearch_ScoreRangeFilter(t *testing.T) {
	env := setupTestEnv(t)
	svc := newTestSearchService(env)
	ctx := context.Background()

	seedSearchNote(t, env, "Everyday Red", "Languedoc", 84, "simple and juicy")
	seedSearchNote(t, env, "Special Bottle", "Piedmont", 95, "tar and roses")

	scoreMin := 90
	result, err := svc.Search(ctx, repository.SearchFilters{ScoreMin: &scoreMin}, 50, 0)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if result.TotalCount != 1 || result.Notes[0].Producer != "Special Bottle" {
		t.Errorf("result = %d notes, first %v", result.TotalCount, result.Notes)
	}
}

func TestSearch_InvalidScoreRange(t *testing.T) {
	env := setupTestEnv(t)
	svc := newTestSearchService(env)

	scoreMin, scoreMax := 95, 80
	_, err := svc.Search(context.Background(), repository.SearchFilters{ScoreMin: &scoreMin, ScoreMax: &scoreMax}, 50, 0)
	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("error = %v, want ErrInvalidInput", err)
	}
}

func TestSearch_PaginationDefaults(t *testing.T) {
	env := setupTestEnv(t)
	svc := newTestSearchService(env)

	result, err := svc.Search(context.Background(), repository.SearchFilters{}, -1, -5)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if result.Limit != 50 || result.Offset != 0 {
		t.Errorf("limit/offset = %d/%d, want 50/0", result.Limit, result.Offset)
	}
}

func TestFilterOptions(t *testing.T) {
	env := setupTestEnv(t)
	svc := newTestSearchService(env)
	ctx := context.Background()

	seedSearchNote(t, env, "Ridge", "Santa Cruz Mountains", 93, "cassis")
	seedSearchNote(t, env, "Leflaive", "Burgundy", 95, "citrus")

	opts, err := svc.FilterOptions(ctx)
	if err != nil {
		t.Fatalf("FilterOptions() error = %v", err)
	}
	if len(opts.Producers) != 2 {
		t.Errorf("Producers = %v, want 2 entries", opts.Producers)
	}
	if !containsString(opts.Regions, "Burgundy") {
		t.Errorf("Regions = %v, want Burgundy included", opts.Regions)
	}
}

func TestReindex(t *testing.T) {
	env := setupTestEnv(t)
	svc := newTestSearchService(env)
	ctx := context.Background()

	seedSearchNote(t, env, "Ridge", "Santa Cruz Mountains", 93, "cassis")
	seedSearchNote(t, env, "Leflaive", "Burgundy", 95, "citrus")

	indexed, err := svc.Reindex(ctx)
	if err != nil {
		t.Fatalf("Reindex() error = %v", err)
	}
	if indexed != 2 {
		t.Errorf("indexed = %d, want 2", indexed)
	}

	count, err := svc.IndexedCount(ctx)
	if err != nil {
		t.Fatalf("IndexedCount() error = %v", err)
	}
	if count != 2 {
		t.Errorf("IndexedCount = %d, want 2", count)
	}

	// The rebuild lands in the maintenance log
	runs, err := env.repos.Maintenance.ListRecent(ctx, 10)
	if err != nil {
		t.Fatalf("Maintenance.ListRecent() error = %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("got %d maintenance runs, want 1", len(runs))
	}
	run := runs[0]
	if run.TaskName != TaskSearchReindex {
		t.Errorf("TaskName = %q, want %q", run.TaskName, TaskSearchReindex)
	}
	if run.Status != models.MaintenanceStatusCompleted {
		t.Errorf("Status = %q, want completed", run.Status)
	}
	if !strings.Contains(run.DetailsJSON, "indexed_notes") {
		t.Errorf("DetailsJSON = %q, want indexed_notes recorded", run.DetailsJSON)
	}
}

func containsString(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}
