package handlers

import (
	"context"

	"github.com/cellarlog/cellarlog/internal/models"
	"github.com/cellarlog/cellarlog/internal/service"
)

// AdminHandler handles operational and license endpoints.
type AdminHandler struct {
	adminSvc       *service.AdminService
	entitlementSvc *service.EntitlementService
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(adminSvc *service.AdminService, entitlementSvc *service.EntitlementService) *AdminHandler {
	return &AdminHandler{adminSvc: adminSvc, entitlementSvc: entitlementSvc}
}

// SchemaStatusOutput represents the schema status response.
type SchemaStatusOutput struct {
	Body service.SchemaStatus
}

// GetSchemaStatus returns applied and pending schema migrations.
func (h *AdminHandler) GetSchemaStatus(ctx context.Context, input *struct{}) (*SchemaStatusOutput, error) {
	status, err := h.adminSvc.GetSchemaStatus(ctx)
	if err != nil {
		return nil, mapServiceError(err)
	}
	return &SchemaStatusOutput{Body: *status}, nil
}

// StatusOutput represents the service status response.
type StatusOutput struct {
	Body struct {
		Tier     service.TierVerdict `json:"tier"`
		Features map[string]bool     `json:"features"`
		Counts   service.Counts      `json:"counts"`
	}
}

// GetStatus returns the current tier, feature availability and record
// counts.
func (h *AdminHandler) GetStatus(ctx context.Context, input *struct{}) (*StatusOutput, error) {
	verdict, err := h.entitlementSvc.CurrentVerdict(ctx)
	if err != nil {
		return nil, mapServiceError(err)
	}
	counts, err := h.adminSvc.GetCounts(ctx)
	if err != nil {
		return nil, mapServiceError(err)
	}

	out := &StatusOutput{}
	out.Body.Tier = *verdict
	out.Body.Features = h.entitlementSvc.FeatureSummary(ctx)
	out.Body.Counts = *counts
	return out, nil
}

// MaintenanceHistoryInput represents history query parameters.
type MaintenanceHistoryInput struct {
	Limit int `query:"limit" minimum:"0" maximum:"100" doc:"Entries to return (default 20)"`
}

// MaintenanceHistoryOutput represents the maintenance log response.
type MaintenanceHistoryOutput struct {
	Body struct {
		Runs []*models.MaintenanceRun `json:"runs"`
	}
}

// MaintenanceHistory returns recent maintenance runs, newest first.
func (h *AdminHandler) MaintenanceHistory(ctx context.Context, input *MaintenanceHistoryInput) (*MaintenanceHistoryOutput, error) {
	runs, err := h.adminSvc.MaintenanceHistory(ctx, input.Limit)
	if err != nil {
		return nil, mapServiceError(err)
	}
	out := &MaintenanceHistoryOutput{}
	out.Body.Runs = runs
	return out, nil
}

// ReindexOutput represents the reindex response.
type ReindexOutput struct {
	Body struct {
		IndexedNotes int `json:"indexed_notes"`
	}
}

// TriggerReindex rebuilds the search index.
func (h *AdminHandler) TriggerReindex(ctx context.Context, input *struct{}) (*ReindexOutput, error) {
	indexed, err := h.adminSvc.TriggerReindex(ctx)
	if err != nil {
		return nil, mapServiceError(err)
	}
	out := &ReindexOutput{}
	out.Body.IndexedNotes = indexed
	return out, nil
}

// BackupOutput represents the backup trigger response.
type BackupOutput struct {
	Body service.BackupArchive
}

// TriggerBackup runs a backup now.
func (h *AdminHandler) TriggerBackup(ctx context.Context, input *struct{}) (*BackupOutput, error) {
	archive, err := h.adminSvc.TriggerBackup(ctx)
	if err != nil {
		return nil, mapServiceError(err)
	}
	return &BackupOutput{Body: *archive}, nil
}

// ListBackupsOutput represents the backup archive list response.
type ListBackupsOutput struct {
	Body struct {
		Archives []service.BackupArchive `json:"archives"`
	}
}

// ListBackups lists local backup archives, newest first.
func (h *AdminHandler) ListBackups(ctx context.Context, input *struct{}) (*ListBackupsOutput, error) {
	archives, err := h.adminSvc.ListBackups(ctx)
	if err != nil {
		return nil, mapServiceError(err)
	}
	out := &ListBackupsOutput{}
	out.Body.Archives = archives
	return out, nil
}

// ActivateLicenseInput represents a license activation request.
type ActivateLicenseInput struct {
	Body struct {
		LicenseKey string `json:"license_key" minLength:"1" doc:"Signed license token"`
	}
}

// LicenseOutput represents the resolved license state.
type LicenseOutput struct {
	Body service.TierVerdict
}

// ActivateLicense validates and stores a license token.
func (h *AdminHandler) ActivateLicense(ctx context.Context, input *ActivateLicenseInput) (*LicenseOutput, error) {
	verdict, err := h.entitlementSvc.ActivateLicense(ctx, input.Body.LicenseKey)
	if err != nil {
		return nil, mapServiceError(err)
	}
	return &LicenseOutput{Body: *verdict}, nil
}

// DeactivateLicenseOutput represents the deactivation response.
type DeactivateLicenseOutput struct {
	Body struct {
		Tier string `json:"tier"`
	}
}

// DeactivateLicense clears the stored license, dropping back to free.
func (h *AdminHandler) DeactivateLicense(ctx context.Context, input *struct{}) (*DeactivateLicenseOutput, error) {
	if err := h.entitlementSvc.DeactivateLicense(ctx); err != nil {
		return nil, mapServiceError(err)
	}
	out := &DeactivateLicenseOutput{}
	out.Body.Tier = "free"
	return out, nil
}

// SettingsOutput represents the app configuration response.
type SettingsOutput struct {
	Body models.AppConfiguration
}

// GetSettings returns the app configuration with the license key
// redacted.
func (h *AdminHandler) GetSettings(ctx context.Context, input *struct{}) (*SettingsOutput, error) {
	cfg, err := h.entitlementSvc.AppConfigurationSnapshot(ctx)
	if err != nil {
		return nil, mapServiceError(err)
	}
	return &SettingsOutput{Body: *cfg}, nil
}
