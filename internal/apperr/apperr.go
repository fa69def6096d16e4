package apperr

import (
	"context"
	"errors"
	"net/http"
)

// Classified errors. Packages wrap these (directly or through their own
// sentinels) so the transport layer can map them without importing every
// domain package.
var (
	ErrValidation     = errors.New("validation failed")
	ErrNotFound       = errors.New("not found")
	ErrForbidden      = errors.New("access denied")
	ErrSimulatedFault = errors.New("simulated fault")
)

const (
	KindValidation     = "validation"
	KindNotFound       = "not_found"
	KindForbidden      = "forbidden"
	KindSimulatedFault = "simulated_fault"
	KindTimeout        = "timeout"
	KindCanceled       = "canceled"
	KindInternal       = "internal"
)

func Kind(err error) string {
	switch {
	case err == nil:
		return ""

	case errors.Is(err, ErrValidation):
		return KindValidation

	case errors.Is(err, ErrNotFound):
		return KindNotFound

	case errors.Is(err, ErrForbidden):
		return KindForbidden

	case errors.Is(err, ErrSimulatedFault):
		return KindSimulatedFault

	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout

	case errors.Is(err, context.Canceled):
		return KindCanceled

	default:
		return KindInternal
	}
}

func HTTPStatus(err error) int {
	switch Kind(err) {
	case "":
		return http.StatusOK
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindForbidden:
		return http.StatusForbidden
	case KindTimeout:
		return http.StatusGatewayTimeout
	case KindCanceled:
		return http.StatusRequestTimeout
	default:
		// simulated faults surface as server errors on purpose
		return http.StatusInternalServerError
	}
}
