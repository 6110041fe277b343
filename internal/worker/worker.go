// Package worker runs the background conversion loop that turns
// captured inbox items into draft tasting notes.
package worker

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/cellarlog/cellarlog/internal/constants"
	"github.com/cellarlog/cellarlog/internal/repository"
	"github.com/cellarlog/cellarlog/internal/service"
)

// Worker polls the inbox for unconverted items, claims them and runs
// the conversion service. A separate janitor loop releases claims left
// behind by crashed runs.
type Worker struct {
	inboxRepo     repository.InboxRepository
	conversionSvc *service.ConversionService
	pollInterval  time.Duration
	concurrency   int
	stop          chan struct{}
	wg            sync.WaitGroup
	active        atomic.Int64
	logger        *slog.Logger
}

// Config holds worker configuration.
type Config struct {
	PollInterval time.Duration
	Concurrency  int
}

// New creates a new worker.
func New(
	inboxRepo repository.InboxRepository,
	conversionSvc *service.ConversionService,
	cfg Config,
	logger *slog.Logger,
) *Worker {
	if cfg.PollInterval == 0 {
		cfg.PollInterval = constants.DefaultPollInterval
	}
	if cfg.Concurrency == 0 {
		cfg.Concurrency = constants.DefaultWorkerConcurrency
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		inboxRepo:     inboxRepo,
		conversionSvc: conversionSvc,
		pollInterval:  cfg.PollInterval,
		concurrency:   cfg.Concurrency,
		stop:          make(chan struct{}),
		logger:        logger.With("component", "worker"),
	}
}

// Start begins processing inbox items.
func (w *Worker) Start(ctx context.Context) {
	w.logger.Info("starting", "concurrency", w.concurrency, "poll_interval", w.pollInterval.String())

	for i := 0; i < w.concurrency; i++ {
		w.wg.Add(1)
		go w.runWorker(ctx, i)
	}

	w.wg.Add(1)
	go w.runJanitor(ctx)
}

// Stop gracefully stops the worker, waiting for in-flight conversions.
func (w *Worker) Stop() {
	w.logger.Info("stopping")
	close(w.stop)
	w.wg.Wait()
	w.logger.Info("stopped")
}

// HasActiveWork reports whether any conversion is currently running.
// The idle monitor uses this to avoid shutting down mid-conversion.
func (w *Worker) HasActiveWork() bool {
	return w.active.Load() > 0
}

func (w *Worker) runWorker(ctx context.Context, workerID int) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			// Drain the backlog before sleeping again
			for w.processNextItem(ctx, workerID) {
				select {
				case <-w.stop:
					return
				case <-ctx.Done():
					return
				default:
				}
			}
		}
	}
}

// processNextItem claims and converts one item, reporting whether an
// item was available.
func (w *Worker) processNextItem(ctx context.Context, workerID int) bool {
	runID := uuid.NewString()
	item, err := w.inboxRepo.ClaimNextPending(ctx, runID)
	if err != nil {
		w.logger.Error("failed to claim inbox item", "worker_id", workerID, "error", err)
		return false
	}
	if item == nil {
		return false
	}

	w.active.Add(1)
	defer w.active.Add(-1)

	w.logger.Info("converting inbox item", "worker_id", workerID, "item_id", item.ID, "run_id", runID)

	if _, err := w.conversionSvc.Convert(ctx, item, runID); err != nil {
		// Already recorded on the conversion run; nothing to retry here
		w.logger.Warn("conversion attempt failed", "worker_id", workerID, "item_id", item.ID, "error", err)
	}
	return true
}

// runJanitor periodically releases claims older than StaleRunAge so
// items stuck behind a crashed conversion become claimable again.
func (w *Worker) runJanitor(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(constants.StaleRunAge / 2)
	defer ticker.Stop()

	for {
		select {
		case <-w.stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			released, err := w.inboxRepo.ReleaseStaleClaims(ctx, constants.StaleRunAge)
			if err != nil {
				w.logger.Error("failed to release stale claims", "error", err)
				continue
			}
			if released > 0 {
				w.logger.Warn("released stale inbox claims", "count", released)
			}
		}
	}
}
