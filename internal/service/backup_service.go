package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	appconfig "github.com/cellarlog/cellarlog/internal/config"
	"github.com/cellarlog/cellarlog/internal/constants"
	"github.com/cellarlog/cellarlog/internal/repository"
)

// BackupService snapshots the SQLite database into timestamped archive
// files using VACUUM INTO, prunes old archives, and optionally mirrors
// archives to object storage for licensed tiers.
type BackupService struct {
	db          *sql.DB
	cfg         *appconfig.Config
	repos       *repository.Repositories
	entitlement *EntitlementService
	storage     *StorageService
	logger      *slog.Logger

	mu sync.Mutex // one backup at a time

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewBackupService creates a new backup service.
func NewBackupService(db *sql.DB, cfg *appconfig.Config, repos *repository.Repositories, entitlement *EntitlementService, storage *StorageService, logger *slog.Logger) *BackupService {
	return &BackupService{
		db:          db,
		cfg:         cfg,
		repos:       repos,
		entitlement: entitlement,
		storage:     storage,
		logger:      logger,
	}
}

// BackupArchive describes one local backup archive.
type BackupArchive struct {
	Filename   string    `json:"filename"`
	Path       string    `json:"-"`
	SizeBytes  int64     `json:"size_bytes"`
	CreatedAt  time.Time `json:"created_at"`
	StorageKey string    `json:"storage_key,omitempty"`
}

// Run performs a backup now. The archive name embeds a timestamp and a
// ULID so concurrent histories never collide. The run is recorded in
// the maintenance log; when cloud backup is licensed and storage is
// configured the archive is also uploaded.
func (s *BackupService) Run(ctx context.Context) (*BackupArchive, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	run, err := s.repos.Maintenance.Start(ctx, TaskBackup)
	if err != nil {
		return nil, err
	}

	archive, uploadErr, err := s.runLocked(ctx)
	if err != nil {
		if ferr := s.repos.Maintenance.Fail(ctx, run.ID, err.Error()); ferr != nil {
			s.logger.Error("failed to record backup failure", "run_id", run.ID, "error", ferr)
		}
		return nil, err
	}

	details := map[string]any{
		"filename":   archive.Filename,
		"size_bytes": archive.SizeBytes,
	}
	if archive.StorageKey != "" {
		details["storage_key"] = archive.StorageKey
	}
	if uploadErr != nil {
		details["upload_error"] = uploadErr.Error()
	}
	detailsJSON, _ := json.Marshal(details)
	if err := s.repos.Maintenance.Complete(ctx, run.ID, string(detailsJSON)); err != nil {
		s.logger.Error("failed to record backup completion", "run_id", run.ID, "error", err)
	}

	s.logger.Info("backup completed",
		"run_id", run.ID,
		"archive", archive.Filename,
		"size_bytes", archive.SizeBytes,
		"uploaded", archive.StorageKey != "",
	)
	return archive, nil
}

// runLocked does the actual snapshot. A failed cloud upload does not
// fail the backup; the local archive is the primary artifact.
func (s *BackupService) runLocked(ctx context.Context) (*BackupArchive, error, error) {
	if err := os.MkdirAll(s.cfg.BackupDir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("failed to create backup dir: %w", err)
	}

	now := time.Now().UTC()
	filename := fmt.Sprintf("cellarlog-%s-%s.db", now.Format("20060102-150405"), ulid.Make().String())
	path := filepath.Join(s.cfg.BackupDir, filename)

	// VACUUM INTO writes a compacted, consistent snapshot without
	// blocking readers.
	if _, err := s.db.ExecContext(ctx, `VACUUM INTO ?`, path); err != nil {
		return nil, nil, fmt.Errorf("failed to snapshot database: %w", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to stat archive: %w", err)
	}

	archive := &BackupArchive{
		Filename:  filename,
		Path:      path,
		SizeBytes: info.Size(),
		CreatedAt: now,
	}

	var uploadErr error
	if s.storage.IsEnabled() {
		if err := s.entitlement.RequireFeature(ctx, constants.FeatureCloudBackup); err == nil {
			key, err := s.storage.StoreBackupArchive(ctx, path)
			if err != nil {
				uploadErr = err
				s.logger.Warn("backup upload failed, keeping local archive", "archive", filename, "error", err)
			} else {
				archive.StorageKey = key
			}
		}
	}

	if err := s.pruneLocked(); err != nil {
		s.logger.Warn("backup retention pruning failed", "error", err)
	}

	return archive, uploadErr, nil
}

// ListArchives returns local backup archives, newest first.
func (s *BackupService) ListArchives() ([]BackupArchive, error) {
	entries, err := os.ReadDir(s.cfg.BackupDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read backup dir: %w", err)
	}

	var archives []BackupArchive
	for _, entry := range entries {
		if entry.IsDir() || !isArchiveName(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		archives = append(archives, BackupArchive{
			Filename:  entry.Name(),
			Path:      filepath.Join(s.cfg.BackupDir, entry.Name()),
			SizeBytes: info.Size(),
			CreatedAt: info.ModTime().UTC(),
		})
	}

	sort.Slice(archives, func(i, j int) bool {
		return archives[i].CreatedAt.After(archives[j].CreatedAt)
	})
	return archives, nil
}

func isArchiveName(name string) bool {
	return strings.HasPrefix(name, "cellarlog-") && strings.HasSuffix(name, ".db")
}

// pruneLocked deletes the oldest local archives beyond the configured
// retention count. Retention 0 keeps everything.
func (s *BackupService) pruneLocked() error {
	if s.cfg.BackupRetention <= 0 {
		return nil
	}
	archives, err := s.ListArchives()
	if err != nil {
		return err
	}
	for _, old := range archives[min(len(archives), s.cfg.BackupRetention):] {
		if err := os.Remove(old.Path); err != nil {
			s.logger.Warn("failed to prune old archive", "archive", old.Filename, "error", err)
			continue
		}
		s.logger.Info("pruned old backup archive", "archive", old.Filename)
	}
	return nil
}

// StartScheduler begins periodic backups at the configured interval.
// It is a no-op when scheduled backups are disabled.
func (s *BackupService) StartScheduler(ctx context.Context) {
	if !s.cfg.BackupEnabled || s.stopCh != nil {
		return
	}
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})

	go func() {
		defer close(s.doneCh)
		ticker := time.NewTicker(s.cfg.BackupInterval)
		defer ticker.Stop()

		s.logger.Info("backup scheduler started", "interval", s.cfg.BackupInterval.String())
		for {
			select {
			case <-ticker.C:
				if _, err := s.Run(ctx); err != nil {
					s.logger.Error("scheduled backup failed", "error", err)
				}
			case <-s.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// StopScheduler stops the periodic backup loop and waits for it.
func (s *BackupService) StopScheduler() {
	if s.stopCh == nil {
		return
	}
	close(s.stopCh)
	<-s.doneCh
	s.stopCh = nil
	s.logger.Info("backup scheduler stopped")
}

// RestoreFromArchive replaces the live database file with an archive.
// It must be called while the database is closed (the restore CLI
// command runs it offline). The current file is kept alongside as a
// pre-restore safety copy.
func RestoreFromArchive(archivePath, databasePath string, logger *slog.Logger) error {
	src, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer func() { _ = src.Close() }()

	if _, err := os.Stat(databasePath); err == nil {
		safety := fmt.Sprintf("%s.pre-restore-%s", databasePath, time.Now().UTC().Format("20060102-150405"))
		if err := copyFile(databasePath, safety); err != nil {
			return fmt.Errorf("failed to write pre-restore copy: %w", err)
		}
		logger.Info("saved pre-restore copy", "path", safety)
	}

	// SQLite sidecar files from the previous database must not
	// survive the restore.
	for _, suffix := range []string{"-wal", "-shm"} {
		_ = os.Remove(databasePath + suffix)
	}

	dst, err := os.Create(databasePath)
	if err != nil {
		return fmt.Errorf("failed to create database file: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		return fmt.Errorf("failed to copy archive: %w", err)
	}
	if err := dst.Close(); err != nil {
		return fmt.Errorf("failed to finalize database file: %w", err)
	}

	logger.Info("restored database from archive", "archive", archivePath, "database", databasePath)
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
