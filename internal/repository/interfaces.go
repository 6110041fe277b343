// Package repository defines repository interfaces for data access.
// All repositories are backed by SQLite; times are stored as RFC3339
// TEXT and list fields as JSON arrays.
package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/cellarlog/cellarlog/internal/models"
)

// CalibrationRepository defines methods for calibration note data access.
type CalibrationRepository interface {
	Create(ctx context.Context, note *models.CalibrationNote) error
	GetByID(ctx context.Context, id string) (*models.CalibrationNote, error)
	// GetByScoreValue returns the note anchored at a score level, or nil
	GetByScoreValue(ctx context.Context, scoreValue int) (*models.CalibrationNote, error)
	// List returns all notes ordered by score value ascending
	List(ctx context.Context) ([]*models.CalibrationNote, error)
	Update(ctx context.Context, note *models.CalibrationNote) error
	// Delete removes a note, reporting whether it existed
	Delete(ctx context.Context, id string) (bool, error)
}

// NoteRepository defines methods for tasting note data access.
type NoteRepository interface {
	Create(ctx context.Context, note *models.TastingNote) error
	GetByID(ctx context.Context, id string) (*models.TastingNote, error)
	GetByInboxItemID(ctx context.Context, inboxItemID string) (*models.TastingNote, error)
	Update(ctx context.Context, note *models.TastingNote) error
	Delete(ctx context.Context, id string) (bool, error)
	// List returns recent notes, optionally restricted to one status
	List(ctx context.Context, status models.NoteStatus, limit, offset int) ([]*models.TastingNote, error)
	Count(ctx context.Context) (int, error)
	CountByStatus(ctx context.Context, status models.NoteStatus) (int, error)
}

// InboxRepository defines methods for inbox item data access.
type InboxRepository interface {
	Create(ctx context.Context, item *models.InboxItem) error
	GetByID(ctx context.Context, id string) (*models.InboxItem, error)
	Update(ctx context.Context, item *models.InboxItem) error
	Delete(ctx context.Context, id string) (bool, error)
	// List returns items newest first; converted items are included only
	// when includeConverted is set
	List(ctx context.Context, includeConverted bool, limit, offset int) ([]*models.InboxItem, error)
	CountPending(ctx context.Context) (int, error)
	// ClaimNextPending atomically claims the oldest unconverted, unclaimed
	// item by stamping it with runID. Returns nil when nothing is pending.
	ClaimNextPending(ctx context.Context, runID string) (*models.InboxItem, error)
	// ReleaseClaim returns a claimed item to the pending pool
	ReleaseClaim(ctx context.Context, id string) error
	// ReleaseStaleClaims frees claims older than maxAge, returning how many
	ReleaseStaleClaims(ctx context.Context, maxAge time.Duration) (int64, error)
	// MarkConverted flags an item as converted by the given run
	MarkConverted(ctx context.Context, id, runID string) error
}

// ConversionRunRepository defines methods for conversion run data access.
// Runs are an append-only audit of every conversion attempt.
type ConversionRunRepository interface {
	Create(ctx context.Context, run *models.ConversionRun) error
	Update(ctx context.Context, run *models.ConversionRun) error
	GetByID(ctx context.Context, id string) (*models.ConversionRun, error)
	GetByInboxItemID(ctx context.Context, inboxItemID string) ([]*models.ConversionRun, error)
	ListRecent(ctx context.Context, limit int) ([]*models.ConversionRun, error)
}

// RevisionRepository defines methods for note revision data access.
type RevisionRepository interface {
	Create(ctx context.Context, rev *models.NoteRevision) error
	ListByNoteID(ctx context.Context, noteID string) ([]*models.NoteRevision, error)
	// NextRevisionNumber returns max(revision_number)+1 for a note
	NextRevisionNumber(ctx context.Context, noteID string) (int, error)
}

// SettingsRepository defines methods for the app configuration singleton.
type SettingsRepository interface {
	// Get returns the configuration row (id = 1)
	Get(ctx context.Context) (*models.AppConfiguration, error)
	Update(ctx context.Context, cfg *models.AppConfiguration) error
}

// MaintenanceRepository defines methods for the maintenance audit log.
type MaintenanceRepository interface {
	// Start records a new running maintenance task and returns it
	Start(ctx context.Context, taskName string) (*models.MaintenanceRun, error)
	Complete(ctx context.Context, id string, detailsJSON string) error
	Fail(ctx context.Context, id string, errorMessage string) error
	GetByID(ctx context.Context, id string) (*models.MaintenanceRun, error)
	ListRecent(ctx context.Context, limit int) ([]*models.MaintenanceRun, error)
}

// Repositories holds all repository instances.
type Repositories struct {
	Calibration   CalibrationRepository
	Note          NoteRepository
	Inbox         InboxRepository
	ConversionRun ConversionRunRepository
	Revision      RevisionRepository
	Settings      SettingsRepository
	Maintenance   MaintenanceRepository
	Search        *SQLiteSearchRepository
	Analytics     *SQLiteAnalyticsRepository
}

// NewRepositories creates all repository instances.
func NewRepositories(db *sql.DB) *Repositories {
	return &Repositories{
		Calibration:   NewSQLiteCalibrationRepository(db),
		Note:          NewSQLiteNoteRepository(db),
		Inbox:         NewSQLiteInboxRepository(db),
		ConversionRun: NewSQLiteConversionRunRepository(db),
		Revision:      NewSQLiteRevisionRepository(db),
		Settings:      NewSQLiteSettingsRepository(db),
		Maintenance:   NewSQLiteMaintenanceRepository(db),
		Search:        NewSQLiteSearchRepository(db),
		Analytics:     NewSQLiteAnalyticsRepository(db),
	}
}
