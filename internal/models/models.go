// Package models defines the domain models for the application.
// All records are stored in SQLite; list-valued fields are serialized as
// JSON arrays in TEXT columns via StringList.
package models

import (
	"time"
)

// NoteStatus represents the lifecycle state of a tasting note.
type NoteStatus string

const (
	NoteStatusDraft     NoteStatus = "draft"
	NoteStatusPublished NoteStatus = "published"
	NoteStatusArchived  NoteStatus = "archived"
)

// NoteSource represents how a tasting note was created.
type NoteSource string

const (
	NoteSourceManual    NoteSource = "manual"    // Created directly in the editor
	NoteSourceConverted NoteSource = "converted" // Converted from an inbox item
	NoteSourceImported  NoteSource = "imported"  // Imported from an export file
)

// WineColor classifies the wine.
type WineColor string

const (
	WineColorRed       WineColor = "red"
	WineColorWhite     WineColor = "white"
	WineColorRose      WineColor = "rose"
	WineColorOrange    WineColor = "orange"
	WineColorSparkling WineColor = "sparkling"
	WineColorFortified WineColor = "fortified"
	WineColorOther     WineColor = "other"
)

// QualityBand buckets a total score into a descriptive band.
type QualityBand string

const (
	QualityBandPoor        QualityBand = "poor"        // 0-69
	QualityBandAcceptable  QualityBand = "acceptable"  // 70-79
	QualityBandGood        QualityBand = "good"        // 80-89
	QualityBandVeryGood    QualityBand = "very_good"   // 90-94
	QualityBandOutstanding QualityBand = "outstanding" // 95-100
)

// CalibrationNote anchors a score level to a personal description.
// At most one note exists per score value in practice, but the schema
// does not enforce uniqueness; SetNote collapses duplicates on write.
type CalibrationNote struct {
	ID          string     `json:"id"`
	ScoreValue  int        `json:"score_value"`
	Description string     `json:"description"`
	Examples    StringList `json:"examples"` // Example wine names for this level
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// InboxItem is raw captured text waiting to be converted into a
// structured tasting note.
type InboxItem struct {
	ID              string     `json:"id"`
	RawText         string     `json:"raw_text"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	Converted       bool       `json:"converted"`
	ConversionRunID *string    `json:"conversion_run_id,omitempty"`
	Tags            StringList `json:"tags"`
}

// TastingNote is the structured wine record. Identity and score fields
// are promoted to columns for querying; the full payload lives in
// Payload and round-trips through the note_json column.
type TastingNote struct {
	ID              string       `json:"id"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
	Status          NoteStatus   `json:"status"`
	Source          NoteSource   `json:"source"`
	TemplateVersion string       `json:"template_version"`
	InboxItemID     *string      `json:"inbox_item_id,omitempty"`
	Producer        string       `json:"producer"`
	Cuvee           string       `json:"cuvee"`
	Vintage         *int         `json:"vintage,omitempty"`
	Country         string       `json:"country"`
	Region          string       `json:"region"`
	Grapes          StringList   `json:"grapes"`
	Color           *WineColor   `json:"color,omitempty"`
	ScoreTotal      int          `json:"score_total"`
	QualityBand     *QualityBand `json:"quality_band,omitempty"`
	Tags            StringList   `json:"tags"`
	Payload         NotePayload  `json:"payload"`
}

// ConversionRun records one attempt to convert an inbox item, successful
// or not.
type ConversionRun struct {
	ID              string    `json:"id"`
	InboxItemID     string    `json:"inbox_item_id"`
	CreatedAt       time.Time `json:"created_at"`
	Parser          string    `json:"parser"`
	ParserVersion   string    `json:"parser_version"`
	InputHash       string    `json:"input_hash"` // SHA-256 of the raw input
	RawInput        string    `json:"raw_input"`
	ParsedJSON      string    `json:"parsed_json,omitempty"`
	Success         bool      `json:"success"`
	ErrorMessage    string    `json:"error_message,omitempty"`
	RepairAttempts  int       `json:"repair_attempts"`
	ResultingNoteID *string   `json:"resulting_note_id,omitempty"`
}

// NoteRevision is a snapshot audit entry for an edited tasting note.
type NoteRevision struct {
	ID               string     `json:"id"`
	TastingNoteID    string     `json:"tasting_note_id"`
	RevisionNumber   int        `json:"revision_number"`
	CreatedAt        time.Time  `json:"created_at"`
	ChangedFields    StringList `json:"changed_fields"`
	PreviousSnapshot string     `json:"previous_snapshot"` // Full note JSON before the edit
	NewSnapshot      string     `json:"new_snapshot"`      // Full note JSON after the edit
	ChangeReason     string     `json:"change_reason,omitempty"`
}

// AppConfiguration is the singleton settings row (id = 1).
type AppConfiguration struct {
	ID                 int        `json:"id"`
	LicenseKey         *string    `json:"license_key,omitempty"`
	LicenseValidatedAt *time.Time `json:"license_validated_at,omitempty"`
	SubscriptionTier   string     `json:"subscription_tier"`
	TierExpiresAt      *time.Time `json:"tier_expires_at,omitempty"`
	Email              *string    `json:"email,omitempty"`
	MachineID          *string    `json:"machine_id,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// MaintenanceStatus represents the state of a maintenance task run.
type MaintenanceStatus string

const (
	MaintenanceStatusPending   MaintenanceStatus = "pending"
	MaintenanceStatusRunning   MaintenanceStatus = "running"
	MaintenanceStatusCompleted MaintenanceStatus = "completed"
	MaintenanceStatusFailed    MaintenanceStatus = "failed"
)

// MaintenanceRun is one audit entry for a maintenance task such as a
// search reindex, backup, or restore.
type MaintenanceRun struct {
	ID           string            `json:"id"`
	TaskName     string            `json:"task_name"`
	StartedAt    time.Time         `json:"started_at"`
	CompletedAt  *time.Time        `json:"completed_at,omitempty"`
	Status       MaintenanceStatus `json:"status"`
	DetailsJSON  string            `json:"details_json"`
	ErrorMessage string            `json:"error_message,omitempty"`
}
