// Package constants defines centralized configuration for inbox conversion.
package constants

import "time"

// Conversion retry and backoff configuration.
const (
	// MaxRepairAttempts is the maximum number of parse repair attempts per
	// conversion run before the run is marked failed.
	MaxRepairAttempts = 3

	// InitialBackoff is the initial delay before the first retry.
	InitialBackoff = 2 * time.Second

	// MaxBackoff is the maximum delay between retries (caps exponential growth).
	MaxBackoff = 30 * time.Second

	// BackoffMultiplier is the factor by which backoff increases after each retry.
	// With InitialBackoff=2s and multiplier=2: delays are 2s, 4s, 8s, etc.
	BackoffMultiplier = 2.0
)

// Conversion worker defaults.
const (
	// DefaultWorkerConcurrency is the default number of conversion goroutines.
	DefaultWorkerConcurrency = 2

	// DefaultPollInterval is how often the worker polls for unconverted items.
	DefaultPollInterval = 5 * time.Second

	// StaleRunAge is how long a conversion run can be "running" before it's
	// considered abandoned and eligible for cleanup.
	StaleRunAge = 30 * time.Minute
)

// CalculateBackoff returns the delay before retry number attempt (0-based),
// growing exponentially from InitialBackoff and capped at MaxBackoff.
func CalculateBackoff(attempt int) time.Duration {
	if attempt < 0 {
		return InitialBackoff
	}
	backoff := InitialBackoff
	for i := 0; i < attempt; i++ {
		backoff = time.Duration(float64(backoff) * BackoffMultiplier)
		if backoff >= MaxBackoff {
			return MaxBackoff
		}
	}
	if backoff > MaxBackoff {
		return MaxBackoff
	}
	return backoff
}

// ErrorCategory classifies conversion errors for retry decisions.
type ErrorCategory string

const (
	// ErrorCategoryEmptyInput indicates the inbox item had no usable text - not retryable.
	ErrorCategoryEmptyInput ErrorCategory = "empty_input"

	// ErrorCategoryParseFailed indicates the text could not be parsed into
	// note fields - retryable up to MaxRepairAttempts.
	ErrorCategoryParseFailed ErrorCategory = "parse_failed"

	// ErrorCategoryStorage indicates a database error while persisting the
	// result - retryable.
	ErrorCategoryStorage ErrorCategory = "storage"

	// ErrorCategoryUnknown indicates an unclassified error.
	ErrorCategoryUnknown ErrorCategory = "unknown"
)

// IsRetryableCategory returns true if the error category is potentially
// retryable after backoff.
func IsRetryableCategory(category ErrorCategory) bool {
	switch category {
	case ErrorCategoryParseFailed, ErrorCategoryStorage:
		return true
	default:
		return false
	}
}
