package repository

import (
	"context"
	"testing"
	"time"

	"github.com/cellarlog/cellarlog/internal/models"
)

// ========================================
// InboxRepository Tests
// ========================================

func testInboxItem(id, rawText string, createdAt time.Time) *models.InboxItem {
	return &models.InboxItem{
		ID:        id,
		RawText:   rawText,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
		Tags:      models.StringList{},
	}
}

func TestInboxRepository_CreateAndGet(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()

	item := testInboxItem("inbox-create", "2019 Barolo, tar and roses, 93", time.Now().UTC())
	item.Tags = models.StringList{"nebbiolo"}
	if err := repos.Inbox.Create(ctx, item); err != nil {
		t.Fatalf("failed to create inbox item: %v", err)
	}

	fetched, err := repos.Inbox.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("failed to fetch inbox item: %v", err)
	}
	if fetched == nil {
		t.Fatal("expected inbox item, got nil")
	}
	if fetched.RawText != "2019 Barolo, tar and roses, 93" {
		t.Errorf("RawText = %q, want original text", fetched.RawText)
	}
	if fetched.Converted {
		t.Error("expected new item to be unconverted")
	}
	if fetched.ConversionRunID != nil {
		t.Error("expected new item to be unclaimed")
	}
	if len(fetched.Tags) != 1 || fetched.Tags[0] != "nebbiolo" {
		t.Errorf("Tags = %v, want [nebbiolo]", fetched.Tags)
	}
}

func TestInboxRepository_List_ExcludesConverted(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()

	now := time.Now().UTC()
	repos.Inbox.Create(ctx, testInboxItem("pending-1", "a", now))
	repos.Inbox.Create(ctx, testInboxItem("pending-2", "b", now))
	done := testInboxItem("done-1", "c", now)
	done.Converted = true
	repos.Inbox.Create(ctx, done)

	pending, err := repos.Inbox.List(ctx, false, 10, 0)
	if err != nil {
		t.Fatalf("failed to list pending items: %v", err)
	}
	if len(pending) != 2 {
		t.Errorf("expected 2 pending items, got %d", len(pending))
	}

	all, err := repos.Inbox.List(ctx, true, 10, 0)
	if err != nil {
		t.Fatalf("failed to list all items: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("expected 3 items, got %d", len(all))
	}
}

func TestInboxRepository_CountPending(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()

	now := time.Now().UTC()
	repos.Inbox.Create(ctx, testInboxItem("cp-1", "a", now))
	done := testInboxItem("cp-2", "b", now)
	done.Converted = true
	repos.Inbox.Create(ctx, done)

	count, err := repos.Inbox.CountPending(ctx)
	if err != nil {
		t.Fatalf("failed to count pending: %v", err)
	}
	if count != 1 {
		t.Errorf("CountPending = %d, want 1", count)
	}
}

func TestInboxRepository_ClaimNextPending_OldestFirst(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()

	repos.Inbox.Create(ctx, testInboxItem("newer", "b", time.Date(2025, 5, 2, 0, 0, 0, 0, time.UTC)))
	repos.Inbox.Create(ctx, testInboxItem("older", "a", time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)))

	claimed, err := repos.Inbox.ClaimNextPending(ctx, "run-1")
	if err != nil {
		t.Fatalf("failed to claim item: %v", err)
	}
	if claimed == nil {
		t.Fatal("expected claimed item, got nil")
	}
	if claimed.ID != "older" {
		t.Errorf("claimed ID = %q, want older", claimed.ID)
	}
	if claimed.ConversionRunID == nil || *claimed.ConversionRunID != "run-1" {
		t.Errorf("ConversionRunID = %v, want run-1", claimed.ConversionRunID)
	}

	// A second claim must not see the already-claimed item
	second, err := repos.Inbox.ClaimNextPending(ctx, "run-2")
	if err != nil {
		t.Fatalf("failed to claim second item: %v", err)
	}
	if second == nil {
		t.Fatal("expected second claimed item, got nil")
	}
	if second.ID != "newer" {
		t.Errorf("second claimed ID = %q, want newer", second.ID)
	}

	third, err := repos.Inbox.ClaimNextPending(ctx, "run-3")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if third != nil {
		t.Errorf("expected nil when nothing is claimable, got %q", third.ID)
	}
}

func TestInboxRepository_ClaimNextPending_Empty(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()

	claimed, err := repos.Inbox.ClaimNextPending(ctx, "run-empty")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if claimed != nil {
		t.Error("expected nil for empty inbox")
	}
}

func TestInboxRepository_ReleaseClaim(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()

	repos.Inbox.Create(ctx, testInboxItem("release-me", "text", time.Now().UTC()))

	claimed, _ := repos.Inbox.ClaimNextPending(ctx, "run-fail")
	if claimed == nil {
		t.Fatal("expected claimed item")
	}

	if err := repos.Inbox.ReleaseClaim(ctx, claimed.ID); err != nil {
		t.Fatalf("failed to release claim: %v", err)
	}

	// Released item is claimable again
	reclaimed, err := repos.Inbox.ClaimNextPending(ctx, "run-retry")
	if err != nil {
		t.Fatalf("failed to reclaim item: %v", err)
	}
	if reclaimed == nil || reclaimed.ID != "release-me" {
		t.Errorf("expected to reclaim release-me, got %v", reclaimed)
	}
}

func TestInboxRepository_ReleaseStaleClaims(t *testing.T) {
	db := setupTestDB(t)
	repos := NewRepositories(db)
	ctx := context.Background()

	repos.Inbox.Create(ctx, testInboxItem("stale-1", "a", time.Now().UTC()))
	claimed, _ := repos.Inbox.ClaimNextPending(ctx, "run-crashed")
	if claimed == nil {
		t.Fatal("expected claimed item")
	}

	// Backdate the claim to simulate a worker that died mid-conversion
	old := time.Now().Add(-2 * time.Hour).UTC().Format(time.RFC3339)
	if _, err := db.Exec("UPDATE inbox_items SET updated_at = ? WHERE id = ?", old, claimed.ID); err != nil {
		t.Fatalf("failed to backdate claim: %v", err)
	}

	released, err := repos.Inbox.ReleaseStaleClaims(ctx, time.Hour)
	if err != nil {
		t.Fatalf("failed to release stale claims: %v", err)
	}
	if released != 1 {
		t.Errorf("released = %d, want 1", released)
	}

	item, _ := repos.Inbox.GetByID(ctx, claimed.ID)
	if item.ConversionRunID != nil {
		t.Error("expected stale claim to be cleared")
	}
}

func TestInboxRepository_ReleaseStaleClaims_KeepsFreshClaims(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()

	repos.Inbox.Create(ctx, testInboxItem("fresh-1", "a", time.Now().UTC()))
	claimed, _ := repos.Inbox.ClaimNextPending(ctx, "run-active")
	if claimed == nil {
		t.Fatal("expected claimed item")
	}

	released, err := repos.Inbox.ReleaseStaleClaims(ctx, time.Hour)
	if err != nil {
		t.Fatalf("failed to release stale claims: %v", err)
	}
	if released != 0 {
		t.Errorf("released = %d, want 0", released)
	}

	item, _ := repos.Inbox.GetByID(ctx, claimed.ID)
	if item.ConversionRunID == nil {
		t.Error("expected fresh claim to survive")
	}
}

func TestInboxRepository_MarkConverted(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()

	repos.Inbox.Create(ctx, testInboxItem("convert-me", "text", time.Now().UTC()))

	if err := repos.Inbox.MarkConverted(ctx, "convert-me", "run-ok"); err != nil {
		t.Fatalf("failed to mark converted: %v", err)
	}

	item, _ := repos.Inbox.GetByID(ctx, "convert-me")
	if !item.Converted {
		t.Error("expected item to be converted")
	}
	if item.ConversionRunID == nil || *item.ConversionRunID != "run-ok" {
		t.Errorf("ConversionRunID = %v, want run-ok", item.ConversionRunID)
	}

	count, _ := repos.Inbox.CountPending(ctx)
	if count != 0 {
		t.Errorf("CountPending = %d, want 0", count)
	}
}

func TestInboxRepository_Delete(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()

	repos.Inbox.Create(ctx, testInboxItem("delete-me", "text", time.Now().UTC()))

	deleted, err := repos.Inbox.Delete(ctx, "delete-me")
	if err != nil {
		t.Fatalf("failed to delete inbox item: %v", err)
	}
	if !deleted {
		t.Error("expected Delete to report true for existing item")
	}

	deleted, _ = repos.Inbox.Delete(ctx, "delete-me")
	if deleted {
		t.Error("expected Delete to report false for missing item")
	}
}
