// Package constants defines centralized configuration for tier limits,
// feature gating, and user-facing messages. Change values here to update
// limits across the entire application.
package constants

import (
	"fmt"
	"sync"
	"time"
)

// tiersMu protects concurrent access to the Tiers map.
var tiersMu sync.RWMutex

// Tier names
const (
	TierFree   = "free"
	TierPro    = "pro"
	TierCellar = "cellar"
)

// Feature names carried in license keys and checked by the entitlement
// service. Higher tiers include all features of lower tiers.
const (
	// Free tier
	FeatureInboxCapture = "inbox_capture" // Capture raw text into the inbox
	FeatureNotes        = "notes"         // Create and edit tasting notes
	FeatureBasicSearch  = "basic_search"  // Full-text search over notes

	// Pro tier
	FeatureUnlimitedNotes = "unlimited_notes" // Removes the note count cap
	FeatureConversion     = "conversion"      // Structured conversion of inbox items
	FeatureCalibration    = "calibration"     // Personal score calibration scale
	FeatureInsights       = "insights"        // Scoring statistics and consistency
	FeatureExport         = "export"          // Markdown/CSV/JSON export

	// Cellar tier
	FeatureCloudBackup = "cloud_backup" // Backup archives to object storage
)

// TierLimits defines the numeric limits and feature set for a tier.
type TierLimits struct {
	// DisplayName is the user-facing name for this tier.
	DisplayName string
	// Order controls display order in tier listings (lower = first).
	Order int
	// MaxNotes is the max tasting notes that can be stored (0 = unlimited).
	MaxNotes int
	// MaxInboxPending is the max unconverted inbox items (0 = unlimited).
	MaxInboxPending int
	// RequestsPerMinute is the API rate limit (0 = unlimited).
	RequestsPerMinute int
	// Features lists the feature names available on this tier.
	Features []string
}

var freeFeatures = []string{
	FeatureInboxCapture,
	FeatureNotes,
	FeatureBasicSearch,
}

var proFeatures = append(append([]string{}, freeFeatures...),
	FeatureUnlimitedNotes,
	FeatureConversion,
	FeatureCalibration,
	FeatureInsights,
	FeatureExport,
)

var cellarFeatures = append(append([]string{}, proFeatures...),
	FeatureCloudBackup,
)

// Tiers defines limits for each subscription tier.
// To change tier limits, modify this map.
var Tiers = map[string]TierLimits{
	TierFree: {
		DisplayName:       "Free",
		Order:             0,
		MaxNotes:          25,
		MaxInboxPending:   50,
		RequestsPerMinute: 60,
		Features:          freeFeatures,
	},
	TierPro: {
		DisplayName:       "Pro",
		Order:             1,
		MaxNotes:          0, // Unlimited
		MaxInboxPending:   0,
		RequestsPerMinute: 120,
		Features:          proFeatures,
	},
	TierCellar: {
		DisplayName:       "Cellar",
		Order:             2,
		MaxNotes:          0,
		MaxInboxPending:   0,
		RequestsPerMinute: 0,
		Features:          cellarFeatures,
	},
}

// GetTierLimits returns the limits for a tier, defaulting to free tier.
// Normalizes license claim tier names (e.g., "plan_v1_pro" -> "pro").
// Thread-safe for concurrent access.
func GetTierLimits(tier string) TierLimits {
	tiersMu.RLock()
	defer tiersMu.RUnlock()

	if limits, ok := Tiers[tier]; ok {
		return limits
	}

	normalized := NormalizeTierName(tier)
	if limits, ok := Tiers[normalized]; ok {
		return limits
	}

	return Tiers[TierFree]
}

// NormalizeTierName converts license claim tier names to internal tier names.
// Examples:
//   - "plan_v1_pro" -> "pro"
//   - "plan_v1_cellar" -> "cellar"
//   - "pro" -> "pro" (already normalized)
func NormalizeTierName(tier string) string {
	tierMappings := map[string]string{
		"plan_v1_free":   TierFree,
		"plan_v1_pro":    TierPro,
		"plan_v1_cellar": TierCellar,
	}

	if mapped, ok := tierMappings[tier]; ok {
		return mapped
	}

	return tier
}

// TierHasFeature reports whether a tier includes a feature.
// Thread-safe for concurrent access.
func TierHasFeature(tier, feature string) bool {
	limits := GetTierLimits(tier)
	for _, f := range limits.Features {
		if f == feature {
			return true
		}
	}
	return false
}

// MinimumTierForFeature returns the lowest tier that includes the feature,
// used for upgrade prompts. Unknown features map to the Cellar tier.
func MinimumTierForFeature(feature string) string {
	for _, tier := range []string{TierFree, TierPro, TierCellar} {
		if TierHasFeature(tier, feature) {
			return tier
		}
	}
	return TierCellar
}

// Global rate limiting defaults
const (
	// GlobalIPRateLimitPerMinute is the fallback rate limit for unauthenticated requests
	GlobalIPRateLimitPerMinute = 100
	// MaxRequestBodySize is the max request body size in bytes (1MB)
	MaxRequestBodySize = 1 * 1024 * 1024
)

// HTTP request timeouts
const (
	// DefaultRequestTimeout is the timeout for most API endpoints
	DefaultRequestTimeout = 60 * time.Second
	// MaintenanceRequestTimeout covers reindex, backup and export requests
	MaintenanceRequestTimeout = 5 * time.Minute
)

// NoteLimitMessage returns a user-friendly message for the note cap.
func NoteLimitMessage(tier string) string {
	normalized := NormalizeTierName(tier)
	limits := GetTierLimits(normalized)
	switch normalized {
	case TierFree:
		return fmt.Sprintf("You've reached the free tier limit of %d tasting notes. Upgrade to Pro for unlimited notes.",
			limits.MaxNotes)
	default:
		return "You've reached your tasting note limit. Please upgrade your plan."
	}
}

// FeatureNotAvailableMessage returns a user-friendly message for feature not available.
func FeatureNotAvailableMessage(feature string) string {
	switch feature {
	case FeatureConversion:
		return "Structured conversion is not available on your current plan. Upgrade to Pro to convert inbox items into tasting notes."
	case FeatureCalibration:
		return "Score calibration is not available on your current plan. Upgrade to Pro to build your personal scoring scale."
	case FeatureInsights:
		return "Scoring insights are not available on your current plan. Upgrade to Pro for statistics and consistency analysis."
	case FeatureExport:
		return "Export is not available on your current plan. Upgrade to Pro to export notes as Markdown, CSV or JSON."
	case FeatureCloudBackup:
		return "Cloud backup is only available on the Cellar plan. Upgrade to back up your archives to object storage."
	default:
		return "This feature is not available on your current plan. Please upgrade to access this feature."
	}
}
