package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/cellarlog/cellarlog/internal/models"
)

// SQLiteSettingsRepository implements SettingsRepository for SQLite.
// The app_configuration table holds a single row with id = 1, seeded by
// the schema migration.
type SQLiteSettingsRepository struct {
	db *sql.DB
}

// NewSQLiteSettingsRepository creates a new SQLite settings repository.
func NewSQLiteSettingsRepository(db *sql.DB) *SQLiteSettingsRepository {
	return &SQLiteSettingsRepository{db: db}
}

func (r *SQLiteSettingsRepository) Get(ctx context.Context) (*models.AppConfiguration, error) {
	query := `
		SELECT id, license_key, license_validated_at, subscription_tier, tier_expires_at,
			email, machine_id, created_at, updated_at
		FROM app_configuration WHERE id = 1
	`
	var cfg models.AppConfiguration
	var licenseKey, licenseValidatedAt, tierExpiresAt, email, machineID sql.NullString
	var createdAt, updatedAt string

	err := r.db.QueryRowContext(ctx, query).Scan(
		&cfg.ID, &licenseKey, &licenseValidatedAt, &cfg.SubscriptionTier, &tierExpiresAt,
		&email, &machineID, &createdAt, &updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("app configuration row missing, database not migrated")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get app configuration: %w", err)
	}

	if licenseKey.Valid {
		cfg.LicenseKey = &licenseKey.String
	}
	if licenseValidatedAt.Valid {
		t, _ := time.Parse(time.RFC3339, licenseValidatedAt.String)
		cfg.LicenseValidatedAt = &t
	}
	if tierExpiresAt.Valid {
		t, _ := time.Parse(time.RFC3339, tierExpiresAt.String)
		cfg.TierExpiresAt = &t
	}
	if email.Valid {
		cfg.Email = &email.String
	}
	if machineID.Valid {
		cfg.MachineID = &machineID.String
	}
	cfg.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	cfg.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &cfg, nil
}

func (r *SQLiteSettingsRepository) Update(ctx context.Context, cfg *models.AppConfiguration) error {
	query := `
		UPDATE app_configuration
		SET license_key = ?, license_validated_at = ?, subscription_tier = ?, tier_expires_at = ?,
			email = ?, machine_id = ?, updated_at = ?
		WHERE id = 1
	`
	_, err := r.db.ExecContext(ctx, query,
		nullStringPtr(cfg.LicenseKey),
		nullTime(cfg.LicenseValidatedAt),
		cfg.SubscriptionTier,
		nullTime(cfg.TierExpiresAt),
		nullStringPtr(cfg.Email),
		nullStringPtr(cfg.MachineID),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to update app configuration: %w", err)
	}
	return nil
}
