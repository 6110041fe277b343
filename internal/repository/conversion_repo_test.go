package repository

import (
	"context"
	"testing"
	"time"

	"github.com/cellarlog/cellarlog/internal/models"
)

// ========================================
// ConversionRunRepository Tests
// ========================================

func TestConversionRunRepository_CreateAndGet(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()

	run := &models.ConversionRun{
		ID:            "run-create",
		InboxItemID:   "inbox-1",
		CreatedAt:     time.Now().UTC(),
		Parser:        "rule",
		ParserVersion: "1.0",
		InputHash:     "abc123",
		RawInput:      "2018 Rioja Reserva, 90 points",
	}
	if err := repos.ConversionRun.Create(ctx, run); err != nil {
		t.Fatalf("failed to create conversion run: %v", err)
	}

	fetched, err := repos.ConversionRun.GetByID(ctx, run.ID)
	if err != nil {
		t.Fatalf("failed to fetch conversion run: %v", err)
	}
	if fetched == nil {
		t.Fatal("expected conversion run, got nil")
	}
	if fetched.InboxItemID != "inbox-1" {
		t.Errorf("InboxItemID = %q, want inbox-1", fetched.InboxItemID)
	}
	if fetched.Success {
		t.Error("expected new run to be unsuccessful until updated")
	}
	if fetched.ResultingNoteID != nil {
		t.Error("expected ResultingNoteID to be nil")
	}
}

func TestConversionRunRepository_Update(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()

	run := &models.ConversionRun{
		ID:            "run-update",
		InboxItemID:   "inbox-2",
		CreatedAt:     time.Now().UTC(),
		Parser:        "rule",
		ParserVersion: "1.0",
		InputHash:     "def456",
		RawInput:      "raw",
	}
	repos.ConversionRun.Create(ctx, run)

	noteID := "note-result"
	run.Success = true
	run.ParsedJSON = `{"producer":"Test"}`
	run.RepairAttempts = 1
	run.ResultingNoteID = &noteID

	if err := repos.ConversionRun.Update(ctx, run); err != nil {
		t.Fatalf("failed to update conversion run: %v", err)
	}

	fetched, _ := repos.ConversionRun.GetByID(ctx, run.ID)
	if !fetched.Success {
		t.Error("expected run to be successful")
	}
	if fetched.RepairAttempts != 1 {
		t.Errorf("RepairAttempts = %d, want 1", fetched.RepairAttempts)
	}
	if fetched.ResultingNoteID == nil || *fetched.ResultingNoteID != noteID {
		t.Errorf("ResultingNoteID = %v, want %q", fetched.ResultingNoteID, noteID)
	}
}

func TestConversionRunRepository_GetByInboxItemID(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()

	for i, id := range []string{"attempt-1", "attempt-2"} {
		run := &models.ConversionRun{
			ID:            id,
			InboxItemID:   "inbox-retried",
			CreatedAt:     time.Date(2025, 4, 1+i, 0, 0, 0, 0, time.UTC),
			Parser:        "rule",
			ParserVersion: "1.0",
			InputHash:     "xyz",
			RawInput:      "raw",
		}
		repos.ConversionRun.Create(ctx, run)
	}

	runs, err := repos.ConversionRun.GetByInboxItemID(ctx, "inbox-retried")
	if err != nil {
		t.Fatalf("failed to fetch runs: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	// Newest first
	if runs[0].ID != "attempt-2" {
		t.Errorf("runs[0].ID = %q, want attempt-2", runs[0].ID)
	}
}
