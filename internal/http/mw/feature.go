package mw

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/cellarlog/cellarlog/internal/service"
)

// EntitlementChecker is the part of the entitlement service this
// middleware needs.
type EntitlementChecker interface {
	CanAccess(ctx context.Context, feature string) service.EntitlementResult
}

// RequireFeature returns middleware that rejects requests with 402 when
// the current license tier does not include the feature. The response
// body names the tier that would unlock it.
func RequireFeature(checker EntitlementChecker, feature string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			result := checker.CanAccess(r.Context(), feature)
			if !result.Allowed {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusPaymentRequired)
				_ = json.NewEncoder(w).Encode(map[string]string{
					"error":        result.Reason,
					"feature":      feature,
					"upgrade_tier": result.UpgradeTier,
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
