package settlement

import (
	"context"
	"errors"
)

var (
	// User declined to sign
	ErrSignerRejected = errors.New("signer rejected the request")

	// Checkpoint lapsed before the confirmation was observed
	ErrSettlementExpired = errors.New("settlement expired before confirmation")

	// Ledger or pool reported a failure
	ErrSettlementFailed = errors.New("settlement failed")

	// Submitted, but the outcome couldn't be observed. Current state needs to be re-checked.
	ErrConfirmationUnknown = errors.New("settlement submitted, confirmation unknown")

	// Signer doesn't control the address the operation is for
	ErrSignerMismatch = errors.New("signer address doesn't match the sender")

	// Unsigned instruction returned by the pool couldn't be decoded
	ErrInvalidInstruction = errors.New("invalid instruction")

	// Result can't be retried
	ErrNotRetryable = errors.New("settlement is not retryable")

	ErrBadResponse = errors.New("bad response")
)

// Can a fresh attempt, with a new checkpoint, be started after this error
func IsRetryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrConfirmationUnknown),
		errors.Is(err, ErrSignerMismatch),
		errors.Is(err, ErrNotRetryable):
		return false
	case errors.Is(err, ErrSignerRejected),
		errors.Is(err, ErrSettlementExpired),
		errors.Is(err, ErrSettlementFailed),
		errors.Is(err, ErrInvalidInstruction),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return true
	}

	// Transport errors, nothing was submitted
	return true
}
