package types

import (
	"errors"
	"fmt"
)

// ErrorKind classifies everything the core surfaces to a caller.
type ErrorKind int

const (
	// ErrValidation covers bad or missing swap parameters. Rejected
	// synchronously, never sent upstream.
	ErrValidation ErrorKind = iota
	// ErrTransient covers upstream rate limiting and temporary
	// unavailability. Retried internally before surfacing.
	ErrTransient
	// ErrCancelled covers a user-declined wallet signature. Recoverable,
	// never presented as a failure.
	ErrCancelled
	// ErrIndeterminate covers confirmation timeouts where on-chain state is
	// unknown. Always sets the recovery record.
	ErrIndeterminate
	// ErrPostDeposit covers a failed swap step after a confirmed deposit.
	// Value has left the plain balance and is expected to be recoverable as
	// a confidential balance.
	ErrPostDeposit
	// ErrInternal covers everything else.
	ErrInternal
)

// SwapError is the structured error surfaced out of the core: a human
// message, whether a retry is sensible, and remediation guidance. Raw
// upstream error strings are wrapped, never surfaced bare.
type SwapError struct {
	Kind      ErrorKind
	Message   string
	Retryable bool
	Guidance  string
	Err       error
}

func (e *SwapError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *SwapError) Unwrap() error { return e.Err }

// ValidationError builds a synchronous parameter rejection.
func ValidationError(message string) *SwapError {
	return &SwapError{Kind: ErrValidation, Message: message}
}

// TransientError wraps a rate-limit or temporary-unavailability failure.
func TransientError(message string, err error) *SwapError {
	return &SwapError{
		Kind:      ErrTransient,
		Message:   message,
		Retryable: true,
		Guidance:  "The upstream service is busy. Try again in a moment.",
		Err:       err,
	}
}

// CancelledError maps a declined wallet signature.
func CancelledError() *SwapError {
	return &SwapError{
		Kind:     ErrCancelled,
		Message:  "signature request declined",
		Guidance: "No transaction was sent. Start the swap again when ready.",
	}
}

// IndeterminateError wraps a confirmation timeout where the on-chain outcome
// is unknown.
func IndeterminateError(signature string, err error) *SwapError {
	return &SwapError{
		Kind:      ErrIndeterminate,
		Message:   "transaction confirmation timed out",
		Retryable: false,
		Guidance:  fmt.Sprintf("The outcome of signature %s is unknown. Run recovery to reconcile it.", signature),
		Err:       err,
	}
}

// PostDepositError wraps a swap failure after a confirmed deposit.
func PostDepositError(signature string, err error) *SwapError {
	return &SwapError{
		Kind:      ErrPostDeposit,
		Message:   "swap failed after deposit was confirmed",
		Retryable: false,
		Guidance:  fmt.Sprintf("Your funds were deposited (signature %s) and should be recoverable as a confidential balance. Run recovery.", signature),
		Err:       err,
	}
}

// InternalError wraps everything else with a human message.
func InternalError(message string, err error) *SwapError {
	return &SwapError{Kind: ErrInternal, Message: message, Err: err}
}

// KindOf extracts the kind from any error, defaulting to ErrInternal.
func KindOf(err error) ErrorKind {
	var se *SwapError
	if errors.As(err, &se) {
		return se.Kind
	}
	return ErrInternal
}
