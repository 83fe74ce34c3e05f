package api

import (
	"errors"
	"net/http"

	"github.com/gridmind/gridmind/internal/core"
)

// httpStatusForDomainError maps engine error categories onto HTTP status
// codes. Unknown errors fall through to 500.
func httpStatusForDomainError(err error) int {
	var domainErr *core.DomainError
	if !errors.As(err, &domainErr) {
		return http.StatusInternalServerError
	}

	switch domainErr.Category {
	case core.ErrCatValidation:
		return http.StatusUnprocessableEntity
	case core.ErrCatNotFound:
		return http.StatusNotFound
	case core.ErrCatAuth:
		return http.StatusUnauthorized
	case core.ErrCatRateLimit:
		return http.StatusTooManyRequests
	case core.ErrCatTimeout:
		return http.StatusGatewayTimeout
	case core.ErrCatState:
		return http.StatusConflict
	case core.ErrCatMalformed:
		return http.StatusBadRequest
	case core.ErrCatService, core.ErrCatSearch:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
