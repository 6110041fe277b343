package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/cellarlog/cellarlog/internal/constants"
	"github.com/cellarlog/cellarlog/internal/logging"
	"github.com/cellarlog/cellarlog/internal/models"
)

func newTestNoteService(env *testEnv) *NoteService {
	return NewNoteService(env.repos, env.entitlement, logging.New())
}

func testPayload(producer string, total int) models.NotePayload {
	p := models.NotePayload{}
	p.Wine.Producer = producer
	p.Scores.SubScores = distributeScore(total)
	return p
}

func TestCreateNote(t *testing.T) {
	env := setupTestEnv(t)
	svc := newTestNoteService(env)
	ctx := context.Background()

	note, err := svc.CreateNote(ctx, CreateNoteInput{
		Payload: testPayload("Ridge", 91),
		Tags:    []string{"cabernet", "california"},
	})
	if err != nil {
		t.Fatalf("CreateNote() error = %v", err)
	}

	if note.Status != models.NoteStatusDraft {
		t.Errorf("Status = %q, want draft", note.Status)
	}
	if note.Source != models.NoteSourceManual {
		t.Errorf("Source = %q, want manual", note.Source)
	}
	if note.Producer != "Ridge" {
		t.Errorf("promoted Producer = %q, want Ridge", note.Producer)
	}
	if note.ScoreTotal != 91 {
		t.Errorf("promoted ScoreTotal = %d, want 91", note.ScoreTotal)
	}
	if note.Payload.Scores.System != models.ScoringSystem {
		t.Errorf("scoring system = %q", note.Payload.Scores.System)
	}

	stored, err := svc.GetNote(ctx, note.ID)
	if err != nil {
		t.Fatalf("GetNote() error = %v", err)
	}
	if stored == nil || stored.Producer != "Ridge" {
		t.Errorf("stored note = %+v", stored)
	}
}

func TestCreateNote_InvalidSubscores(t *testing.T) {
	env := setupTestEnv(t)
	svc := newTestNoteService(env)

	payload := testPayload("Ridge", 90)
	payload.Scores.SubScores.Appearance = 5 // max is 2

	_, err := svc.CreateNote(context.Background(), CreateNoteInput{Payload: payload})
	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("error = %v, want ErrInvalidInput", err)
	}
}

func TestCreateNote_FreeTierCap(t *testing.T) {
	env := setupTestEnv(t)
	svc := newTestNoteService(env)
	ctx := context.Background()

	maxNotes := constants.GetTierLimits(constants.TierFree).MaxNotes
	for i := 0; i < maxNotes; i++ {
		insertTestNote(t, env.db, fmt.Sprintf("note-%03d", i), "published", 85)
	}

	_, err := svc.CreateNote(ctx, CreateNoteInput{Payload: testPayload("One Too Many", 85)})
	if !errors.Is(err, ErrLimitExceeded) {
		t.Errorf("error = %v, want ErrLimitExceeded", err)
	}

	// A pro license lifts the cap
	activateProLicense(t, env)
	if _, err := svc.CreateNote(ctx, CreateNoteInput{Payload: testPayload("Now Fine", 85)}); err != nil {
		t.Errorf("CreateNote() on pro error = %v", err)
	}
}

func TestUpdateDraft(t *testing.T) {
	env := setupTestEnv(t)
	svc := newTestNoteService(env)
	ctx := context.Background()

	note, err := svc.CreateNote(ctx, CreateNoteInput{Payload: testPayload("Ridge", 88)})
	if err != nil {
		t.Fatalf("CreateNote() error = %v", err)
	}

	updated, err := svc.UpdateDraft(ctx, note.ID, testPayload("Ridge Vineyards", 90), []string{"revisit"})
	if err != nil {
		t.Fatalf("UpdateDraft() error = %v", err)
	}
	if updated.Producer != "Ridge Vineyards" || updated.ScoreTotal != 90 {
		t.Errorf("updated = %q/%d", updated.Producer, updated.ScoreTotal)
	}

	// Drafts don't accumulate revisions
	revs, err := svc.GetRevisions(ctx, note.ID)
	if err != nil {
		t.Fatalf("GetRevisions() error = %v", err)
	}
	if len(revs) != 0 {
		t.Errorf("draft has %d revisions, want 0", len(revs))
	}
}

func TestUpdateDraft_NotFound(t *testing.T) {
	env := setupTestEnv(t)
	svc := newTestNoteService(env)

	_, err := svc.UpdateDraft(context.Background(), "missing", testPayload("X", 80), nil)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestPublish(t *testing.T) {
	env := setupTestEnv(t)
	svc := newTestNoteService(env)
	ctx := context.Background()

	note, err := svc.CreateNote(ctx, CreateNoteInput{Payload: testPayload("Ridge", 92)})
	if err != nil {
		t.Fatalf("CreateNote() error = %v", err)
	}

	published, err := svc.Publish(ctx, note.ID)
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if published.Status != models.NoteStatusPublished {
		t.Errorf("Status = %q, want published", published.Status)
	}

	revs, err := svc.GetRevisions(ctx, note.ID)
	if err != nil {
		t.Fatalf("GetRevisions() error = %v", err)
	}
	if len(revs) != 1 {
		t.Fatalf("got %d revisions, want 1", len(revs))
	}
	if revs[0].RevisionNumber != 1 || revs[0].PreviousSnapshot != "{}" {
		t.Errorf("first revision = number %d, previous %q", revs[0].RevisionNumber, revs[0].PreviousSnapshot)
	}

	// Publishing twice conflicts
	if _, err := svc.Publish(ctx, note.ID); !errors.Is(err, ErrConflict) {
		t.Errorf("second Publish() error = %v, want ErrConflict", err)
	}
}

func TestPublish_RequiresWineIdentity(t *testing.T) {
	env := setupTestEnv(t)
	svc := newTestNoteService(env)
	ctx := context.Background()

	note, err := svc.CreateNote(ctx, CreateNoteInput{Payload: testPayload("", 85)})
	if err != nil {
		t.Fatalf("CreateNote() error = %v", err)
	}

	if _, err := svc.Publish(ctx, note.ID); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("error = %v, want ErrInvalidInput", err)
	}
}

func TestPublishedNoteEditsGoThroughRevise(t *testing.T) {
	env := setupTestEnv(t)
	svc := newTestNoteService(env)
	ctx := context.Background()

	note, err := svc.CreateNote(ctx, CreateNoteInput{Payload: testPayload("Ridge", 89)})
	if err != nil {
		t.Fatalf("CreateNote() error = %v", err)
	}
	if _, err := svc.Publish(ctx, note.ID); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	// Direct draft edit is rejected
	if _, err := svc.UpdateDraft(ctx, note.ID, testPayload("Ridge", 90), nil); !errors.Is(err, ErrConflict) {
		t.Errorf("UpdateDraft() error = %v, want ErrConflict", err)
	}

	revised, err := svc.Revise(ctx, note.ID, testPayload("Ridge", 93), nil, "Retasted with dinner")
	if err != nil {
		t.Fatalf("Revise() error = %v", err)
	}
	if revised.ScoreTotal != 93 {
		t.Errorf("ScoreTotal = %d, want 93", revised.ScoreTotal)
	}

	revs, err := svc.GetRevisions(ctx, note.ID)
	if err != nil {
		t.Fatalf("GetRevisions() error = %v", err)
	}
	if len(revs) != 2 {
		t.Fatalf("got %d revisions, want 2", len(revs))
	}
	last := revs[len(revs)-1]
	if last.ChangeReason != "Retasted with dinner" {
		t.Errorf("ChangeReason = %q", last.ChangeReason)
	}
	found := false
	for _, f := range last.ChangedFields {
		if f == "scores" {
			found = true
		}
	}
	if !found {
		t.Errorf("ChangedFields = %v, want scores included", last.ChangedFields)
	}
}

func TestRevise_NoChangesRecordsNothing(t *testing.T) {
	env := setupTestEnv(t)
	svc := newTestNoteService(env)
	ctx := context.Background()

	note, err := svc.CreateNote(ctx, CreateNoteInput{Payload: testPayload("Ridge", 89)})
	if err != nil {
		t.Fatalf("CreateNote() error = %v", err)
	}
	if _, err := svc.Publish(ctx, note.ID); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	if _, err := svc.Revise(ctx, note.ID, testPayload("Ridge", 89), nil, ""); err != nil {
		t.Fatalf("Revise() error = %v", err)
	}

	revs, err := svc.GetRevisions(ctx, note.ID)
	if err != nil {
		t.Fatalf("GetRevisions() error = %v", err)
	}
	if len(revs) != 1 {
		t.Errorf("got %d revisions, want just the publication", len(revs))
	}
}

func TestArchive(t *testing.T) {
	env := setupTestEnv(t)
	svc := newTestNoteService(env)
	ctx := context.Background()

	note, err := svc.CreateNote(ctx, CreateNoteInput{Payload: testPayload("Ridge", 87)})
	if err != nil {
		t.Fatalf("CreateNote() error = %v", err)
	}
	if _, err := svc.Publish(ctx, note.ID); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	archived, err := svc.Archive(ctx, note.ID)
	if err != nil {
		t.Fatalf("Archive() error = %v", err)
	}
	if archived.Status != models.NoteStatusArchived {
		t.Errorf("Status = %q, want archived", archived.Status)
	}

	// Archiving again is a no-op
	again, err := svc.Archive(ctx, note.ID)
	if err != nil {
		t.Fatalf("second Archive() error = %v", err)
	}
	if again.Status != models.NoteStatusArchived {
		t.Errorf("Status = %q", again.Status)
	}
}

func TestDeleteNote(t *testing.T) {
	env := setupTestEnv(t)
	svc := newTestNoteService(env)
	ctx := context.Background()

	note, err := svc.CreateNote(ctx, CreateNoteInput{Payload: testPayload("Ridge", 86)})
	if err != nil {
		t.Fatalf("CreateNote() error = %v", err)
	}

	deleted, err := svc.DeleteNote(ctx, note.ID)
	if err != nil {
		t.Fatalf("DeleteNote() error = %v", err)
	}
	if !deleted {
		t.Error("expected the draft to be deleted")
	}

	deleted, err = svc.DeleteNote(ctx, note.ID)
	if err != nil {
		t.Fatalf("DeleteNote() on missing error = %v", err)
	}
	if deleted {
		t.Error("deleting a missing note should report false")
	}
}

func TestDeleteNote_PublishedRejected(t *testing.T) {
	env := setupTestEnv(t)
	svc := newTestNoteService(env)
	ctx := context.Background()

	note, err := svc.CreateNote(ctx, CreateNoteInput{Payload: testPayload("Ridge", 90)})
	if err != nil {
		t.Fatalf("CreateNote() error = %v", err)
	}
	if _, err := svc.Publish(ctx, note.ID); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	if _, err := svc.DeleteNote(ctx, note.ID); !errors.Is(err, ErrConflict) {
		t.Errorf("error = %v, want ErrConflict", err)
	}
}

func TestListNotes_StatusFilter(t *testing.T) {
	env := setupTestEnv(t)
	svc := newTestNoteService(env)
	ctx := context.Background()

	insertTestNote(t, env.db, "n1", "draft", 85)
	insertTestNote(t, env.db, "n2", "published", 90)
	insertTestNote(t, env.db, "n3", "published", 92)

	all, err := svc.ListNotes(ctx, "", 50, 0)
	if err != nil {
		t.Fatalf("ListNotes() error = %v", err)
	}
	if len(all) != 3 {
		t.Errorf("all notes = %d, want 3", len(all))
	}

	published, err := svc.ListNotes(ctx, models.NoteStatusPublished, 50, 0)
	if err != nil {
		t.Fatalf("ListNotes(published) error = %v", err)
	}
	if len(published) != 2 {
		t.Errorf("published notes = %d, want 2", len(published))
	}
}
