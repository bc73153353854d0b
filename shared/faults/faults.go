package faults

import (
	"net/http"

	"github.com/pkg/errors"
)

// Closed set of error kinds shared across services. Handlers and retry loops
// classify errors with errors.Is against these sentinels instead of matching
// message strings.
var (
	// ErrInvalidPayment signals a payment invariant violated at creation.
	// Rejected before any saga starts, never retried.
	ErrInvalidPayment = errors.New("invalid payment")

	// ErrInvalidStateTransition signals an operation attempted against the
	// wrong aggregate status. Logged and surfaced, never blindly retried.
	ErrInvalidStateTransition = errors.New("invalid state transition")

	// ErrStepExecutionFailed signals a step executor reported failure.
	// Retried per the step budget, then escalates to compensation.
	ErrStepExecutionFailed = errors.New("step execution failed")

	// ErrCompensationFailed signals a compensation attempt failed. Retried
	// per its own budget, then escalates to an operator-visible stuck state.
	ErrCompensationFailed = errors.New("compensation failed")

	// ErrConfigurationNotFound signals no saga definition exists for the
	// (tenant, payment type) pair. Fatal for the attempt, no default applies.
	ErrConfigurationNotFound = errors.New("configuration not found")

	// ErrOptimisticLockConflict signals a stale-version save. Always
	// recoverable by reload-and-retry, never surfaced externally.
	ErrOptimisticLockConflict = errors.New("optimistic lock conflict")

	// ErrNotFound signals a missing aggregate.
	ErrNotFound = errors.New("not found")
)

// Invalid wraps err (or creates one from msg) as an ErrInvalidPayment
func Invalid(msg string) error {
	return errors.Wrap(ErrInvalidPayment, msg)
}

// Transition builds an ErrInvalidStateTransition with context
func Transition(msg string) error {
	return errors.Wrap(ErrInvalidStateTransition, msg)
}

// HTTPStatus maps an error kind to a transport status code. Pure mapping,
// kept outside the domain core. ErrOptimisticLockConflict intentionally maps
// to 500: it must be absorbed by retry loops before reaching a handler.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidPayment):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrInvalidStateTransition):
		return http.StatusConflict
	case errors.Is(err, ErrConfigurationNotFound):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
