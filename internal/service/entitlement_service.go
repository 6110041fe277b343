package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	gocache "github.com/patrickmn/go-cache"

	"github.com/cellarlog/cellarlog/internal/constants"
	"github.com/cellarlog/cellarlog/internal/crypto"
	"github.com/cellarlog/cellarlog/internal/models"
	"github.com/cellarlog/cellarlog/internal/repository"
)

// EntitlementService is the single source of truth for feature access.
// Licenses are signed JWTs validated offline against the configured
// signing secret; the resulting tier verdict is cached so hot-path
// feature checks don't hit the database on every request.
type EntitlementService struct {
	repos      *repository.Repositories
	encryptor  *crypto.Encryptor
	signingKey []byte
	cache      *gocache.Cache
	logger     *slog.Logger
}

// cache key for the resolved tier verdict
const tierVerdictKey = "tier_verdict"

// ErrInvalidLicense indicates a license token that failed validation.
var ErrInvalidLicense = errors.New("invalid license")

// LicenseClaims are the claims carried in a signed license token.
type LicenseClaims struct {
	Tier      string `json:"tier"`
	Email     string `json:"email,omitempty"`
	MachineID string `json:"machine_id,omitempty"`
	jwt.RegisteredClaims
}

// TierVerdict is the resolved entitlement state.
type TierVerdict struct {
	Tier              string     `json:"tier"`
	Expired           bool       `json:"expired"`
	ExpiresAt         *time.Time `json:"expires_at,omitempty"`
	Email             string     `json:"email,omitempty"`
	WasPreviouslyPaid bool       `json:"was_previously_paid"`
}

// EntitlementResult is the outcome of a feature or limit check.
type EntitlementResult struct {
	Allowed     bool   `json:"allowed"`
	Reason      string `json:"reason,omitempty"`
	UpgradeTier string `json:"upgrade_tier,omitempty"`
}

// NewEntitlementService creates a new entitlement service. cacheTTL
// bounds how stale a cached tier verdict may be.
func NewEntitlementService(repos *repository.Repositories, encryptor *crypto.Encryptor, signingKey string, cacheTTL time.Duration, logger *slog.Logger) *EntitlementService {
	if cacheTTL <= 0 {
		cacheTTL = 1 * time.Hour
	}
	return &EntitlementService{
		repos:      repos,
		encryptor:  encryptor,
		signingKey: []byte(signingKey),
		cache:      gocache.New(cacheTTL, 2*cacheTTL),
		logger:     logger,
	}
}

// ValidateLicense parses and verifies a license token. Only HS256 is
// accepted; expiry is checked by the JWT library.
func (s *EntitlementService) ValidateLicense(token string) (*LicenseClaims, error) {
	if len(s.signingKey) == 0 {
		return nil, fmt.Errorf("%w: no signing key configured", ErrInvalidLicense)
	}

	claims := &LicenseClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.signingKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidLicense, err)
	}
	if !parsed.Valid {
		return nil, ErrInvalidLicense
	}

	tier := constants.NormalizeTierName(claims.Tier)
	if tier != constants.TierPro && tier != constants.TierCellar {
		return nil, fmt.Errorf("%w: unknown tier %q", ErrInvalidLicense, claims.Tier)
	}
	claims.Tier = tier

	return claims, nil
}

// ActivateLicense validates a license token and records it in the app
// configuration. The raw token is stored encrypted at rest.
func (s *EntitlementService) ActivateLicense(ctx context.Context, token string) (*TierVerdict, error) {
	claims, err := s.ValidateLicense(token)
	if err != nil {
		return nil, err
	}

	cfg, err := s.repos.Settings.Get(ctx)
	if err != nil {
		return nil, err
	}

	stored := token
	if s.encryptor != nil {
		stored, err = s.encryptor.Encrypt(token)
		if err != nil {
			return nil, fmt.Errorf("failed to encrypt license key: %w", err)
		}
	}

	now := time.Now().UTC()
	cfg.LicenseKey = &stored
	cfg.LicenseValidatedAt = &now
	cfg.SubscriptionTier = claims.Tier
	if claims.ExpiresAt != nil {
		exp := claims.ExpiresAt.Time.UTC()
		cfg.TierExpiresAt = &exp
	} else {
		cfg.TierExpiresAt = nil
	}
	if claims.Email != "" {
		cfg.Email = &claims.Email
	}
	if claims.MachineID != "" {
		cfg.MachineID = &claims.MachineID
	}
	cfg.UpdatedAt = now

	if err := s.repos.Settings.Update(ctx, cfg); err != nil {
		return nil, err
	}
	s.cache.Delete(tierVerdictKey)

	s.logger.Info("license activated", "tier", claims.Tier, "expires_at", cfg.TierExpiresAt)
	return s.CurrentVerdict(ctx)
}

// DeactivateLicense clears the stored license, dropping back to free.
func (s *EntitlementService) DeactivateLicense(ctx context.Context) error {
	cfg, err := s.repos.Settings.Get(ctx)
	if err != nil {
		return err
	}

	cfg.LicenseKey = nil
	cfg.LicenseValidatedAt = nil
	cfg.SubscriptionTier = constants.TierFree
	cfg.TierExpiresAt = nil
	cfg.UpdatedAt = time.Now().UTC()

	if err := s.repos.Settings.Update(ctx, cfg); err != nil {
		return err
	}
	s.cache.Delete(tierVerdictKey)

	s.logger.Info("license deactivated")
	return nil
}

// CurrentVerdict resolves the current tier from the stored
// configuration, caching the result. An expired license drops the
// effective tier back to free but remembers the paid history.
func (s *EntitlementService) CurrentVerdict(ctx context.Context) (*TierVerdict, error) {
	if cached, ok := s.cache.Get(tierVerdictKey); ok {
		return cached.(*TierVerdict), nil
	}

	cfg, err := s.repos.Settings.Get(ctx)
	if err != nil {
		return nil, err
	}

	verdict := &TierVerdict{
		Tier:      constants.NormalizeTierName(cfg.SubscriptionTier),
		ExpiresAt: cfg.TierExpiresAt,
	}
	if cfg.Email != nil {
		verdict.Email = *cfg.Email
	}
	if verdict.Tier != constants.TierFree {
		verdict.WasPreviouslyPaid = true
	}
	if cfg.TierExpiresAt != nil && cfg.TierExpiresAt.Before(time.Now().UTC()) {
		verdict.Expired = true
		verdict.Tier = constants.TierFree
	}

	s.cache.SetDefault(tierVerdictKey, verdict)
	return verdict, nil
}

// CurrentTier returns the effective tier name, defaulting to free when
// the configuration cannot be read.
func (s *EntitlementService) CurrentTier(ctx context.Context) string {
	verdict, err := s.CurrentVerdict(ctx)
	if err != nil {
		s.logger.Warn("failed to resolve tier, defaulting to free", "error", err)
		return constants.TierFree
	}
	return verdict.Tier
}

// CanAccess reports whether the current tier includes a feature.
func (s *EntitlementService) CanAccess(ctx context.Context, feature string) EntitlementResult {
	verdict, err := s.CurrentVerdict(ctx)
	if err != nil {
		return EntitlementResult{
			Allowed: false,
			Reason:  fmt.Sprintf("entitlement check failed: %s", err),
		}
	}

	if constants.TierHasFeature(verdict.Tier, feature) {
		return EntitlementResult{Allowed: true}
	}

	reason := constants.FeatureNotAvailableMessage(feature)
	if verdict.Expired {
		reason = "Your license has expired. " + reason
	}
	return EntitlementResult{
		Allowed:     false,
		Reason:      reason,
		UpgradeTier: constants.MinimumTierForFeature(feature),
	}
}

// RequireFeature returns ErrFeatureNotLicensed when the current tier
// does not include the feature.
func (s *EntitlementService) RequireFeature(ctx context.Context, feature string) error {
	result := s.CanAccess(ctx, feature)
	if !result.Allowed {
		return fmt.Errorf("%w: %s", ErrFeatureNotLicensed, result.Reason)
	}
	return nil
}

// CheckNoteLimit reports whether another tasting note may be created.
func (s *EntitlementService) CheckNoteLimit(ctx context.Context, currentCount int) EntitlementResult {
	tier := s.CurrentTier(ctx)
	limits := constants.GetTierLimits(tier)
	if limits.MaxNotes == 0 || currentCount < limits.MaxNotes {
		return EntitlementResult{Allowed: true}
	}
	return EntitlementResult{
		Allowed:     false,
		Reason:      constants.NoteLimitMessage(tier),
		UpgradeTier: constants.TierPro,
	}
}

// CheckInboxLimit reports whether another inbox item may be captured.
func (s *EntitlementService) CheckInboxLimit(ctx context.Context, pendingCount int) EntitlementResult {
	tier := s.CurrentTier(ctx)
	limits := constants.GetTierLimits(tier)
	if limits.MaxInboxPending == 0 || pendingCount < limits.MaxInboxPending {
		return EntitlementResult{Allowed: true}
	}
	return EntitlementResult{
		Allowed:     false,
		Reason:      fmt.Sprintf("You have %d unconverted inbox items, the maximum for the %s tier. Convert or delete some first.", pendingCount, limits.DisplayName),
		UpgradeTier: constants.TierPro,
	}
}

// FeatureSummary maps every known feature to its availability on the
// current tier.
func (s *EntitlementService) FeatureSummary(ctx context.Context) map[string]bool {
	tier := s.CurrentTier(ctx)
	summary := make(map[string]bool)
	for _, feature := range []string{
		constants.FeatureInboxCapture,
		constants.FeatureNotes,
		constants.FeatureBasicSearch,
		constants.FeatureUnlimitedNotes,
		constants.FeatureConversion,
		constants.FeatureCalibration,
		constants.FeatureInsights,
		constants.FeatureExport,
		constants.FeatureCloudBackup,
	} {
		summary[feature] = constants.TierHasFeature(tier, feature)
	}
	return summary
}

// InvalidateCache drops the cached verdict, forcing the next check to
// re-read the stored configuration.
func (s *EntitlementService) InvalidateCache() {
	s.cache.Delete(tierVerdictKey)
}

// AppConfigurationSnapshot returns the raw settings row with the
// license key redacted.
func (s *EntitlementService) AppConfigurationSnapshot(ctx context.Context) (*models.AppConfiguration, error) {
	cfg, err := s.repos.Settings.Get(ctx)
	if err != nil {
		return nil, err
	}
	if cfg.LicenseKey != nil {
		redacted := "(set)"
		cfg.LicenseKey = &redacted
	}
	return cfg, nil
}
