package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cellarlog/cellarlog/internal/constants"
	"github.com/cellarlog/cellarlog/internal/models"
	"github.com/cellarlog/cellarlog/internal/repository"
)

// ConversionService turns captured inbox items into draft tasting
// notes. Every attempt is recorded as a conversion run, successful or
// not, so the provenance of a converted note is always auditable.
type ConversionService struct {
	repos       *repository.Repositories
	notes       *NoteService
	entitlement *EntitlementService
	logger      *slog.Logger
}

// NewConversionService creates a new conversion service.
func NewConversionService(repos *repository.Repositories, notes *NoteService, entitlement *EntitlementService, logger *slog.Logger) *ConversionService {
	return &ConversionService{
		repos:       repos,
		notes:       notes,
		entitlement: entitlement,
		logger:      logger,
	}
}

// Convert parses an inbox item into a draft tasting note, recording a
// conversion run under runID. The first parse pass requires the text to
// identify a wine; later repair passes relax that so the capture still
// becomes an (unidentified) draft rather than being lost.
//
// The item must already be claimed by runID (the worker claims before
// calling). On success the item is marked converted.
func (s *ConversionService) Convert(ctx context.Context, item *models.InboxItem, runID string) (*models.ConversionRun, error) {
	if err := s.entitlement.RequireFeature(ctx, constants.FeatureConversion); err != nil {
		return nil, err
	}

	hash := sha256.Sum256([]byte(item.RawText))
	run := &models.ConversionRun{
		ID:            runID,
		InboxItemID:   item.ID,
		CreatedAt:     time.Now().UTC(),
		Parser:        parserName,
		ParserVersion: parserVersion,
		InputHash:     hex.EncodeToString(hash[:]),
		RawInput:      item.RawText,
	}
	if err := s.repos.ConversionRun.Create(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to record conversion run: %w", err)
	}

	payload, attempts, err := s.parseWithRepair(item.RawText)
	run.RepairAttempts = attempts
	if err != nil {
		return s.failRun(ctx, run, err)
	}

	parsed, err := json.Marshal(payload)
	if err != nil {
		return s.failRun(ctx, run, fmt.Errorf("failed to serialize parsed payload: %w", err))
	}
	run.ParsedJSON = string(parsed)

	note, err := s.notes.CreateNote(ctx, CreateNoteInput{
		Payload:     *payload,
		Tags:        item.Tags,
		Source:      models.NoteSourceConverted,
		InboxItemID: &item.ID,
	})
	if err != nil {
		return s.failRun(ctx, run, fmt.Errorf("failed to create note: %w", err))
	}

	run.Success = true
	run.ResultingNoteID = &note.ID
	if err := s.repos.ConversionRun.Update(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to update conversion run: %w", err)
	}
	if err := s.repos.Inbox.MarkConverted(ctx, item.ID, runID); err != nil {
		return nil, fmt.Errorf("failed to mark item converted: %w", err)
	}

	s.logger.Info("converted inbox item",
		"item_id", item.ID,
		"run_id", runID,
		"note_id", note.ID,
		"repair_attempts", attempts,
		"scores", describeSubScores(payload.Scores.SubScores),
	)
	return run, nil
}

// parseWithRepair runs the parser up to MaxRepairAttempts times,
// relaxing the rules after the first failure. Non-retryable failures
// (empty input) stop immediately.
func (s *ConversionService) parseWithRepair(rawText string) (*models.NotePayload, int, error) {
	var lastErr error
	for attempt := 0; attempt < constants.MaxRepairAttempts; attempt++ {
		strict := attempt == 0
		payload, err := parseRawNote(rawText, strict)
		if err == nil {
			return payload, attempt, nil
		}
		lastErr = err

		var pe *parseError
		if errors.As(err, &pe) && !constants.IsRetryableCategory(pe.category) {
			return nil, attempt, err
		}
	}
	return nil, constants.MaxRepairAttempts, lastErr
}

// failRun records a failed conversion. Retryable failures release the
// item's claim so a later run can pick it up; non-retryable ones keep
// the claim, parking the item until the stale-claim janitor or the user
// deals with it.
func (s *ConversionService) failRun(ctx context.Context, run *models.ConversionRun, cause error) (*models.ConversionRun, error) {
	run.Success = false
	run.ErrorMessage = cause.Error()
	if err := s.repos.ConversionRun.Update(ctx, run); err != nil {
		s.logger.Error("failed to record conversion failure", "run_id", run.ID, "error", err)
	}

	retryable := true
	var pe *parseError
	if errors.As(cause, &pe) {
		retryable = constants.IsRetryableCategory(pe.category)
	}
	if retryable {
		if err := s.repos.Inbox.ReleaseClaim(ctx, run.InboxItemID); err != nil {
			s.logger.Error("failed to release inbox claim", "item_id", run.InboxItemID, "error", err)
		}
	}

	s.logger.Warn("conversion failed",
		"item_id", run.InboxItemID,
		"run_id", run.ID,
		"repair_attempts", run.RepairAttempts,
		"error", cause,
	)
	return run, cause
}
