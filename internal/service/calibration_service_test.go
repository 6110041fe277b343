package service

import (
	"context"
	"errors"
	"testing"

	"github.com/cellarlog/cellarlog/internal/logging"
	"github.com/cellarlog/cellarlog/internal/models"
)

func newTestCalibrationService(env *testEnv) *CalibrationService {
	return NewCalibrationService(env.repos, logging.New())
}

func TestSetNote_CreateAndUpdateByScore(t *testing.T) {
	env := setupTestEnv(t)
	svc := newTestCalibrationService(env)
	ctx := context.Background()

	note, err := svc.SetNote(ctx, 90, "Outstanding, would buy a case", []string{"2016 Ridge Monte Bello"}, "")
	if err != nil {
		t.Fatalf("SetNote() error = %v", err)
	}
	if note.ScoreValue != 90 {
		t.Errorf("ScoreValue = %d, want 90", note.ScoreValue)
	}

	// Setting the same score again updates in place, never duplicates
	updated, err := svc.SetNote(ctx, 90, "Outstanding, benchmark quality", nil, "")
	if err != nil {
		t.Fatalf("second SetNote() error = %v", err)
	}
	if updated.ID != note.ID {
		t.Errorf("updated ID = %s, want %s", updated.ID, note.ID)
	}
	if updated.Description != "Outstanding, benchmark quality" {
		t.Errorf("Description = %q", updated.Description)
	}

	notes, err := svc.ListNotes(ctx)
	if err != nil {
		t.Fatalf("ListNotes() error = %v", err)
	}
	if len(notes) != 1 {
		t.Errorf("got %d notes, want 1", len(notes))
	}
}

func TestSetNote_MoveByID(t *testing.T) {
	env := setupTestEnv(t)
	svc := newTestCalibrationService(env)
	ctx := context.Background()

	note, err := svc.SetNote(ctx, 85, "Very good", nil, "")
	if err != nil {
		t.Fatalf("SetNote() error = %v", err)
	}

	// Addressing by ID can move the note to another score level
	moved, err := svc.SetNote(ctx, 87, "Very good indeed", nil, note.ID)
	if err != nil {
		t.Fatalf("SetNote(by id) error = %v", err)
	}
	if moved.ID != note.ID || moved.ScoreValue != 87 {
		t.Errorf("moved = %s@%d, want %s@87", moved.ID, moved.ScoreValue, note.ID)
	}
}

func TestSetNote_Validation(t *testing.T) {
	env := setupTestEnv(t)
	svc := newTestCalibrationService(env)
	ctx := context.Background()

	if _, err := svc.SetNote(ctx, 90, "", nil, ""); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("empty description error = %v, want ErrInvalidInput", err)
	}
	if _, err := svc.SetNote(ctx, 101, "Too high", nil, ""); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("out-of-range score error = %v, want ErrInvalidInput", err)
	}
	if _, err := svc.SetNote(ctx, -1, "Too low", nil, ""); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("negative score error = %v, want ErrInvalidInput", err)
	}
}

func TestDeleteCalibrationNote(t *testing.T) {
	env := setupTestEnv(t)
	svc := newTestCalibrationService(env)
	ctx := context.Background()

	note, err := svc.SetNote(ctx, 80, "Good everyday wine", nil, "")
	if err != nil {
		t.Fatalf("SetNote() error = %v", err)
	}

	deleted, err := svc.DeleteNote(ctx, note.ID)
	if err != nil {
		t.Fatalf("DeleteNote() error = %v", err)
	}
	if !deleted {
		t.Error("expected the note to be deleted")
	}

	deleted, err = svc.DeleteNote(ctx, note.ID)
	if err != nil {
		t.Fatalf("second DeleteNote() error = %v", err)
	}
	if deleted {
		t.Error("deleting a missing note should report false")
	}
}

func TestScoreReference(t *testing.T) {
	env := setupTestEnv(t)
	svc := newTestCalibrationService(env)
	ctx := context.Background()

	// 93 is not a default level; it should appear once described
	if _, err := svc.SetNote(ctx, 93, "My sweet spot for splurges", nil, ""); err != nil {
		t.Fatalf("SetNote() error = %v", err)
	}

	entries, err := svc.ScoreReference(ctx)
	if err != nil {
		t.Fatalf("ScoreReference() error = %v", err)
	}
	if len(entries) != len(models.DefaultScoreLevels)+1 {
		t.Errorf("got %d entries, want %d", len(entries), len(models.DefaultScoreLevels)+1)
	}

	var found bool
	lastScore := -1
	for _, e := range entries {
		if e.ScoreValue <= lastScore {
			t.Errorf("entries not ascending at %d", e.ScoreValue)
		}
		lastScore = e.ScoreValue
		if e.Band == "" {
			t.Errorf("entry %d missing quality band", e.ScoreValue)
		}
		if e.ScoreValue == 93 {
			found = true
			if e.Note == nil {
				t.Error("described level should carry its note")
			}
		} else if e.Note != nil {
			t.Errorf("level %d should have no note", e.ScoreValue)
		}
	}
	if !found {
		t.Error("described level 93 missing from the reference")
	}
}
