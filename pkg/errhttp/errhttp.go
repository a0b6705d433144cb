// Package errhttp maps domain sentinel errors to HTTP status codes.
// Add a case to mapErrorToStatus for each new domain sentinel error.
package errhttp

import (
	"errors"
	"net/http"

	"github.com/ghuser/eshop-ordering/pkg/auth"
	"github.com/ghuser/eshop-ordering/pkg/httpx"
	"github.com/ghuser/eshop-ordering/pkg/idempotency"
	orderdomain "github.com/ghuser/eshop-ordering/services/ordering/domain"
)

// retryAfterSeconds is sent with 409 responses for requests still in flight.
const retryAfterSeconds = "1"

// WriteError maps err to an HTTP status code and writes a JSON error response.
// Uses errors.Is() so wrapped sentinel errors are matched correctly.
// Defaults to 500 Internal Server Error for unrecognized errors. In production
// the message of any 5xx response is replaced with the status text.
func WriteError(w http.ResponseWriter, err error, isProduction bool) {
	status := mapErrorToStatus(err)
	if errors.Is(err, idempotency.ErrRequestInProgress) {
		w.Header().Set("Retry-After", retryAfterSeconds)
	}
	httpx.JSONError(w, status, httpx.SafeError(err, status, isProduction))
}

func mapErrorToStatus(err error) int {
	switch {
	case errors.Is(err, auth.ErrUnauthenticated):
		return http.StatusUnauthorized // 401
	case errors.Is(err, idempotency.ErrInvalidRequestID):
		return http.StatusBadRequest // 400
	case errors.Is(err, idempotency.ErrRequestInProgress):
		return http.StatusConflict // 409
	case errors.Is(err, orderdomain.ErrOrderAlreadyExists):
		return http.StatusConflict // 409
	case errors.Is(err, orderdomain.ErrValidation):
		return http.StatusUnprocessableEntity // 422
	case errors.Is(err, orderdomain.ErrPersistence):
		return http.StatusServiceUnavailable // 503
	default:
		return http.StatusInternalServerError // 500
	}
}
