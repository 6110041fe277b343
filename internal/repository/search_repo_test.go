package repository

import (
	"context"
	"testing"

	"github.com/cellarlog/cellarlog/internal/models"
)

// ========================================
// SearchRepository Tests
// ========================================

func createSearchFixtures(t *testing.T, repos *Repositories, ctx context.Context) {
	t.Helper()

	barolo := testTastingNote("search-barolo")
	barolo.Status = models.NoteStatusPublished
	barolo.Producer = "Giacomo Conterno"
	barolo.Cuvee = "Monfortino"
	barolo.Country = "Italy"
	barolo.Region = "Piedmont"
	barolo.Grapes = models.StringList{"Nebbiolo"}
	barolo.ScoreTotal = 97
	v := 2015
	barolo.Vintage = &v
	barolo.Payload.Wine.Producer = "Giacomo Conterno"
	barolo.Payload.NoseNotes = "Tar and dried roses"
	barolo.Payload.Readiness.DrinkOrHold = models.DrinkOrHoldHold
	if err := repos.Note.Create(ctx, barolo); err != nil {
		t.Fatalf("failed to create fixture: %v", err)
	}

	chablis := testTastingNote("search-chablis")
	chablis.Status = models.NoteStatusPublished
	chablis.Producer = "Dauvissat"
	chablis.Cuvee = "Les Clos"
	chablis.Country = "France"
	chablis.Region = "Chablis"
	chablis.Grapes = models.StringList{"Chardonnay"}
	chablis.ScoreTotal = 94
	v2 := 2020
	chablis.Vintage = &v2
	chablis.Payload.NoseNotes = "Oyster shell and citrus"
	chablis.Payload.Readiness.DrinkOrHold = models.DrinkOrHoldDrink
	if err := repos.Note.Create(ctx, chablis); err != nil {
		t.Fatalf("failed to create fixture: %v", err)
	}

	draft := testTastingNote("search-draft")
	draft.Producer = "Draft Cellars"
	draft.Region = "Piedmont"
	draft.ScoreTotal = 80
	if err := repos.Note.Create(ctx, draft); err != nil {
		t.Fatalf("failed to create fixture: %v", err)
	}
}

func TestSearchRepository_Search_FullText(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()
	createSearchFixtures(t, repos, ctx)

	result, err := repos.Search.Search(ctx, SearchFilters{Query: "Conterno"}, 10, 0)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if result.TotalCount != 1 {
		t.Fatalf("TotalCount = %d, want 1", result.TotalCount)
	}
	if result.Notes[0].ID != "search-barolo" {
		t.Errorf("got note %q, want search-barolo", result.Notes[0].ID)
	}
}

func TestSearchRepository_Search_PrefixMatch(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()
	createSearchFixtures(t, repos, ctx)

	// "oyst" should prefix-match "Oyster shell" in the nose notes
	result, err := repos.Search.Search(ctx, SearchFilters{Query: "oyst"}, 10, 0)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if result.TotalCount != 1 {
		t.Fatalf("TotalCount = %d, want 1", result.TotalCount)
	}
	if result.Notes[0].ID != "search-chablis" {
		t.Errorf("got note %q, want search-chablis", result.Notes[0].ID)
	}
}

func TestSearchRepository_Search_DefaultsToPublished(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()
	createSearchFixtures(t, repos, ctx)

	result, err := repos.Search.Search(ctx, SearchFilters{Region: "Piedmont"}, 10, 0)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if result.TotalCount != 1 {
		t.Errorf("TotalCount = %d, want 1 (draft excluded)", result.TotalCount)
	}

	all, err := repos.Search.Search(ctx, SearchFilters{Region: "Piedmont", Status: "all"}, 10, 0)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if all.TotalCount != 2 {
		t.Errorf("TotalCount = %d, want 2 with status all", all.TotalCount)
	}
}

func TestSearchRepository_Search_ScoreRange(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()
	createSearchFixtures(t, repos, ctx)

	min := 95
	result, err := repos.Search.Search(ctx, SearchFilters{ScoreMin: &min}, 10, 0)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if result.TotalCount != 1 {
		t.Fatalf("TotalCount = %d, want 1", result.TotalCount)
	}
	if result.Notes[0].ScoreTotal != 97 {
		t.Errorf("ScoreTotal = %d, want 97", result.Notes[0].ScoreTotal)
	}
}

func TestSearchRepository_Search_VintageRange(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()
	createSearchFixtures(t, repos, ctx)

	vmin, vmax := 2018, 2022
	result, err := repos.Search.Search(ctx, SearchFilters{VintageMin: &vmin, VintageMax: &vmax}, 10, 0)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if result.TotalCount != 1 {
		t.Fatalf("TotalCount = %d, want 1", result.TotalCount)
	}
	if result.Notes[0].ID != "search-chablis" {
		t.Errorf("got note %q, want search-chablis", result.Notes[0].ID)
	}
}

func TestSearchRepository_Search_PartialRegion(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()
	createSearchFixtures(t, repos, ctx)

	// Case-insensitive partial match
	result, err := repos.Search.Search(ctx, SearchFilters{Region: "piedm"}, 10, 0)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if result.TotalCount != 1 {
		t.Errorf("TotalCount = %d, want 1", result.TotalCount)
	}
}

func TestSearchRepository_Search_Grape(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()
	createSearchFixtures(t, repos, ctx)

	result, err := repos.Search.Search(ctx, SearchFilters{Grape: "nebbiolo"}, 10, 0)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if result.TotalCount != 1 {
		t.Fatalf("TotalCount = %d, want 1", result.TotalCount)
	}
	if result.Notes[0].ID != "search-barolo" {
		t.Errorf("got note %q, want search-barolo", result.Notes[0].ID)
	}
}

func TestSearchRepository_Search_DrinkOrHold(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()
	createSearchFixtures(t, repos, ctx)

	result, err := repos.Search.Search(ctx, SearchFilters{DrinkOrHold: "hold"}, 10, 0)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if result.TotalCount != 1 {
		t.Fatalf("TotalCount = %d, want 1", result.TotalCount)
	}
	if result.Notes[0].ID != "search-barolo" {
		t.Errorf("got note %q, want search-barolo", result.Notes[0].ID)
	}
}

func TestSearchRepository_Search_Pagination(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()
	createSearchFixtures(t, repos, ctx)

	result, err := repos.Search.Search(ctx, SearchFilters{}, 1, 0)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if result.TotalCount != 2 {
		t.Errorf("TotalCount = %d, want 2", result.TotalCount)
	}
	if len(result.Notes) != 1 {
		t.Errorf("page size = %d, want 1", len(result.Notes))
	}
	if !result.HasMore() {
		t.Error("expected HasMore to be true on first page")
	}

	last, err := repos.Search.Search(ctx, SearchFilters{}, 1, 1)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if last.HasMore() {
		t.Error("expected HasMore to be false on last page")
	}
}

func TestSearchRepository_Search_NoResults(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()
	createSearchFixtures(t, repos, ctx)

	result, err := repos.Search.Search(ctx, SearchFilters{Query: "zinfandel"}, 10, 0)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if result.TotalCount != 0 {
		t.Errorf("TotalCount = %d, want 0", result.TotalCount)
	}
	if len(result.Notes) != 0 {
		t.Errorf("expected no notes, got %d", len(result.Notes))
	}
}

func TestSearchRepository_RebuildIndex(t *testing.T) {
	db := setupTestDB(t)
	repos := NewRepositories(db)
	ctx := context.Background()
	createSearchFixtures(t, repos, ctx)

	// Wipe the index behind the triggers' back, then rebuild
	if _, err := db.Exec("DELETE FROM tasting_notes_fts"); err != nil {
		t.Fatalf("failed to clear index: %v", err)
	}
	count, err := repos.Search.CountIndexed(ctx)
	if err != nil {
		t.Fatalf("failed to count indexed: %v", err)
	}
	if count != 0 {
		t.Fatalf("indexed count = %d, want 0 after wipe", count)
	}

	rebuilt, err := repos.Search.RebuildIndex(ctx)
	if err != nil {
		t.Fatalf("failed to rebuild index: %v", err)
	}
	if rebuilt != 3 {
		t.Errorf("rebuilt = %d, want 3", rebuilt)
	}

	result, err := repos.Search.Search(ctx, SearchFilters{Query: "Conterno"}, 10, 0)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if result.TotalCount != 1 {
		t.Errorf("TotalCount = %d, want 1 after rebuild", result.TotalCount)
	}
}

func TestSearchRepository_GetFilterOptions(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()
	createSearchFixtures(t, repos, ctx)

	options, err := repos.Search.GetFilterOptions(ctx)
	if err != nil {
		t.Fatalf("failed to get filter options: %v", err)
	}
	if len(options.Countries) != 2 {
		t.Errorf("expected 2 countries, got %v", options.Countries)
	}
	// Sorted alphabetically
	if len(options.Countries) == 2 && options.Countries[0] != "France" {
		t.Errorf("Countries[0] = %q, want France", options.Countries[0])
	}
	// Piedmont appears on two fixtures but is listed once
	if len(options.Regions) != 2 {
		t.Errorf("expected 2 regions, got %v", options.Regions)
	}
	if len(options.Regions) == 2 && options.Regions[0] != "Chablis" {
		t.Errorf("Regions[0] = %q, want Chablis", options.Regions[0])
	}
}

func TestBuildFTSQuery(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"barolo", `"barolo"*`},
		{"tar roses", `"tar"* "roses"*`},
		{`"quoted" phrase`, `"quoted"* "phrase"*`},
		{"semi:colon", `"semi"* "colon"*`},
		{"star*", `"star"*`},
		{"  spaced   out  ", `"spaced"* "out"*`},
		{"", `""`},
		{"***", `""`},
	}

	for _, tt := range tests {
		if got := buildFTSQuery(tt.input); got != tt.want {
			t.Errorf("buildFTSQuery(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
