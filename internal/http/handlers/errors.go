package handlers

import (
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/cellarlog/cellarlog/internal/service"
)

// mapServiceError converts service layer errors into huma status
// errors. Unrecognized errors become opaque 500s so internal details
// never reach the client.
func mapServiceError(err error) error {
	switch {
	case errors.Is(err, service.ErrNotFound):
		return huma.Error404NotFound(err.Error())
	case errors.Is(err, service.ErrInvalidInput):
		return huma.Error400BadRequest(err.Error())
	case errors.Is(err, service.ErrConflict):
		return huma.Error409Conflict(err.Error())
	case errors.Is(err, service.ErrFeatureNotLicensed), errors.Is(err, service.ErrLimitExceeded):
		// huma has no generated helper for 402
		return huma.NewError(http.StatusPaymentRequired, err.Error())
	case errors.Is(err, service.ErrInvalidLicense):
		return huma.Error422UnprocessableEntity(err.Error())
	case errors.Is(err, service.ErrStorageDisabled):
		return huma.Error503ServiceUnavailable(err.Error())
	default:
		return huma.Error500InternalServerError("internal error")
	}
}
