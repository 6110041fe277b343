package service

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/cellarlog/cellarlog/internal/database"
	"github.com/cellarlog/cellarlog/internal/database/migrations"
	"github.com/cellarlog/cellarlog/internal/models"
	"github.com/cellarlog/cellarlog/internal/repository"
)

// AdminService exposes operational state: schema version, maintenance
// history and manually triggered maintenance tasks.
type AdminService struct {
	db     *sql.DB
	repos  *repository.Repositories
	search *SearchService
	backup *BackupService
	logger *slog.Logger
}

// NewAdminService creates a new admin service.
func NewAdminService(db *sql.DB, repos *repository.Repositories, search *SearchService, backup *BackupService, logger *slog.Logger) *AdminService {
	return &AdminService{
		db:     db,
		repos:  repos,
		search: search,
		backup: backup,
		logger: logger,
	}
}

// SchemaStatus reports where the database schema stands relative to the
// migration chain built into the binary.
type SchemaStatus struct {
	CurrentVersion string                        `json:"current_version"`
	HeadVersion    string                        `json:"head_version"`
	UpToDate       bool                          `json:"up_to_date"`
	Applied        []migrations.AppliedMigration `json:"applied"`
	Pending        []PendingMigration            `json:"pending"`
}

// PendingMigration is one not-yet-applied revision.
type PendingMigration struct {
	ID          string `json:"id"`
	Description string `json:"description"`
}

// GetSchemaStatus returns the applied and pending migrations.
func (s *AdminService) GetSchemaStatus(ctx context.Context) (*SchemaStatus, error) {
	current, err := database.CurrentSchemaVersion(s.db)
	if err != nil {
		return nil, err
	}
	head, err := database.HeadSchemaVersion()
	if err != nil {
		return nil, err
	}
	applied, err := database.GetAppliedMigrations(s.db)
	if err != nil {
		return nil, err
	}
	pending, err := database.GetPendingMigrations(s.db)
	if err != nil {
		return nil, err
	}

	status := &SchemaStatus{
		CurrentVersion: current,
		HeadVersion:    head,
		UpToDate:       current == head,
		Applied:        applied,
	}
	for _, m := range pending {
		status.Pending = append(status.Pending, PendingMigration{ID: m.ID, Description: m.Description})
	}
	return status, nil
}

// MaintenanceHistory returns recent maintenance runs, newest first.
func (s *AdminService) MaintenanceHistory(ctx context.Context, limit int) ([]*models.MaintenanceRun, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.repos.Maintenance.ListRecent(ctx, limit)
}

// TriggerReindex rebuilds the search index on demand.
func (s *AdminService) TriggerReindex(ctx context.Context) (int, error) {
	s.logger.Info("reindex triggered manually")
	return s.search.Reindex(ctx)
}

// TriggerBackup runs a backup on demand.
func (s *AdminService) TriggerBackup(ctx context.Context) (*BackupArchive, error) {
	s.logger.Info("backup triggered manually")
	return s.backup.Run(ctx)
}

// ListBackups lists local backup archives.
func (s *AdminService) ListBackups(ctx context.Context) ([]BackupArchive, error) {
	return s.backup.ListArchives()
}

// Counts summarizes stored records for the status endpoint.
type Counts struct {
	Notes          int `json:"notes"`
	PublishedNotes int `json:"published_notes"`
	PendingInbox   int `json:"pending_inbox"`
	IndexedNotes   int `json:"indexed_notes"`
}

// GetCounts returns record counts for the status endpoint.
func (s *AdminService) GetCounts(ctx context.Context) (*Counts, error) {
	total, err := s.repos.Note.Count(ctx)
	if err != nil {
		return nil, err
	}
	published, err := s.repos.Note.CountByStatus(ctx, models.NoteStatusPublished)
	if err != nil {
		return nil, err
	}
	pending, err := s.repos.Inbox.CountPending(ctx)
	if err != nil {
		return nil, err
	}
	indexed, err := s.search.IndexedCount(ctx)
	if err != nil {
		return nil, err
	}
	return &Counts{
		Notes:          total,
		PublishedNotes: published,
		PendingInbox:   pending,
		IndexedNotes:   indexed,
	}, nil
}
