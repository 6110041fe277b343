package service

import (
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/cellarlog/cellarlog/internal/config"
	"github.com/cellarlog/cellarlog/internal/crypto"
	"github.com/cellarlog/cellarlog/internal/repository"
)

// Services holds all service instances.
type Services struct {
	Entitlement *EntitlementService
	Calibration *CalibrationService
	Note        *NoteService
	Inbox       *InboxService
	Conversion  *ConversionService
	Search      *SearchService
	Export      *ExportService
	Storage     *StorageService
	Backup      *BackupService
	Admin       *AdminService
}

// NewServices creates all service instances.
func NewServices(cfg *config.Config, db *sql.DB, repos *repository.Repositories, logger *slog.Logger) (*Services, error) {
	// License keys are stored encrypted at rest when a key is configured
	var encryptor *crypto.Encryptor
	if len(cfg.EncryptionKey) > 0 {
		var err error
		encryptor, err = crypto.NewEncryptor(cfg.EncryptionKey)
		if err != nil {
			return nil, fmt.Errorf("failed to create encryptor: %w", err)
		}
	} else {
		logger.Warn("no encryption key configured - license keys will be stored in plaintext")
	}

	storageSvc, err := NewStorageService(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage service: %w", err)
	}

	entitlementSvc := NewEntitlementService(repos, encryptor, cfg.LicenseSigningKey, cfg.LicenseCacheTTL, logger)
	calibrationSvc := NewCalibrationService(repos, logger)
	noteSvc := NewNoteService(repos, entitlementSvc, logger)
	inboxSvc := NewInboxService(repos, entitlementSvc, logger)
	conversionSvc := NewConversionService(repos, noteSvc, entitlementSvc, logger)
	searchSvc := NewSearchService(repos, entitlementSvc, logger)
	exportSvc := NewExportService(repos, entitlementSvc, storageSvc, logger)
	backupSvc := NewBackupService(db, cfg, repos, entitlementSvc, storageSvc, logger)
	adminSvc := NewAdminService(db, repos, searchSvc, backupSvc, logger)

	return &Services{
		Entitlement: entitlementSvc,
		Calibration: calibrationSvc,
		Note:        noteSvc,
		Inbox:       inboxSvc,
		Conversion:  conversionSvc,
		Search:      searchSvc,
		Export:      exportSvc,
		Storage:     storageSvc,
		Backup:      backupSvc,
		Admin:       adminSvc,
	}, nil
}
