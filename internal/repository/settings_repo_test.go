package repository

import (
	"context"
	"testing"
	"time"
)

// ========================================
// SettingsRepository Tests
// ========================================

func TestSettingsRepository_Get_SeededRow(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()

	cfg, err := repos.Settings.Get(ctx)
	if err != nil {
		t.Fatalf("failed to get app configuration: %v", err)
	}
	if cfg.ID != 1 {
		t.Errorf("ID = %d, want 1", cfg.ID)
	}
	if cfg.SubscriptionTier != "free" {
		t.Errorf("SubscriptionTier = %q, want free", cfg.SubscriptionTier)
	}
	if cfg.LicenseKey != nil {
		t.Error("expected LicenseKey to be nil on a fresh database")
	}
}

func TestSettingsRepository_Update(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()

	cfg, err := repos.Settings.Get(ctx)
	if err != nil {
		t.Fatalf("failed to get app configuration: %v", err)
	}

	key := "LIC-TEST-KEY"
	email := "taster@example.com"
	validated := time.Now().UTC().Truncate(time.Second)
	cfg.LicenseKey = &key
	cfg.Email = &email
	cfg.LicenseValidatedAt = &validated
	cfg.SubscriptionTier = "pro"

	if err := repos.Settings.Update(ctx, cfg); err != nil {
		t.Fatalf("failed to update app configuration: %v", err)
	}

	fetched, err := repos.Settings.Get(ctx)
	if err != nil {
		t.Fatalf("failed to re-fetch app configuration: %v", err)
	}
	if fetched.LicenseKey == nil || *fetched.LicenseKey != key {
		t.Errorf("LicenseKey = %v, want %q", fetched.LicenseKey, key)
	}
	if fetched.SubscriptionTier != "pro" {
		t.Errorf("SubscriptionTier = %q, want pro", fetched.SubscriptionTier)
	}
	if fetched.Email == nil || *fetched.Email != email {
		t.Errorf("Email = %v, want %q", fetched.Email, email)
	}
	if fetched.LicenseValidatedAt == nil || !fetched.LicenseValidatedAt.Equal(validated) {
		t.Errorf("LicenseValidatedAt = %v, want %v", fetched.LicenseValidatedAt, validated)
	}
}
