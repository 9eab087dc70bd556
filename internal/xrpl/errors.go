package xrpl

import (
	"errors"
	"fmt"

	dErrors "reliefpool/pkg/domain-errors"
	"reliefpool/pkg/platform/sentinel"
)

// DomainError translates gateway sentinel errors into coded domain errors so
// handlers map them to the right HTTP status. Unrecognized errors become
// internal.
func DomainError(op string, err error) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeNotFound, fmt.Sprintf("%s: not found on ledger", op))
	case errors.Is(err, sentinel.ErrUnavailable):
		return dErrors.Wrap(err, dErrors.CodeUnavailable, fmt.Sprintf("%s: ledger node unavailable", op))
	case errors.Is(err, sentinel.ErrSigning):
		return dErrors.Wrap(err, dErrors.CodeSigningFailed, fmt.Sprintf("%s: transaction signing failed", op))
	case errors.Is(err, sentinel.ErrInvalidState):
		return dErrors.Wrap(err, dErrors.CodeConflict, fmt.Sprintf("%s: rejected by ledger", op))
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, op)
	}
}
