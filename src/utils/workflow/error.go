package workflow

import (
	"errors"
	"fmt"

	"github.com/warp-contracts/shadowlink/src/utils/settlement"
)

// Categories. Every error returned by a workflow operation wraps one of them.
var (
	// Bad input, caught before any external call
	ErrValidation = errors.New("validation error")

	// Registration precondition unmet
	ErrNotEligible = errors.New("not eligible")

	// Operation illegal in the current state of the entity
	ErrInvalidState = errors.New("invalid state")

	// Lost an optimistic concurrency race, not retryable
	ErrAlreadyFinalized = errors.New("already finalized")

	ErrNotFound = errors.New("not found")

	// Actor isn't allowed to perform the operation
	ErrForbidden = errors.New("forbidden")
)

var (
	ErrDuplicateBid         = fmt.Errorf("%w: bidder already has a live bid, update it instead", ErrInvalidState)
	ErrNotOpen              = fmt.Errorf("%w: tender is not open", ErrInvalidState)
	ErrNotInProgress        = fmt.Errorf("%w: tender is not in progress", ErrInvalidState)
	ErrNoWorkSubmission     = fmt.Errorf("%w: work hasn't been submitted", ErrInvalidState)
	ErrWorkAlreadySubmitted = fmt.Errorf("%w: work already submitted", ErrInvalidState)
	ErrDeadlinePassed       = fmt.Errorf("%w: bidding deadline passed", ErrInvalidState)
	ErrNotPending           = fmt.Errorf("%w: invoice is not pending", ErrInvalidState)
	ErrRecipientNotEligible = fmt.Errorf("%w: recipient is not registered", ErrNotEligible)
	ErrSenderNotEligible    = fmt.Errorf("%w: sender is not registered", ErrNotEligible)
)

// Wraps err with a category, keeping both in the chain
func Wrap(category error, format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", category, fmt.Sprintf(format, args...))
}

// Can the caller start a fresh attempt of the same operation
func IsRetryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrAlreadyFinalized),
		errors.Is(err, ErrValidation),
		errors.Is(err, ErrNotEligible),
		errors.Is(err, ErrInvalidState),
		errors.Is(err, ErrNotFound),
		errors.Is(err, ErrForbidden):
		return false
	}
	return settlement.IsRetryable(err)
}
