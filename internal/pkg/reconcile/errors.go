package reconcile

import "errors"

var (
	// ErrValidation marks a malformed or unsupported webhook. Dropped and
	// acknowledged so the gateway stops redelivering garbage.
	ErrValidation = errors.New("invalid webhook event")
	// ErrInvalidTransition marks a stale or out-of-order snapshot. Logged
	// as a reconciliation anomaly and acknowledged without mutation.
	ErrInvalidTransition = errors.New("invalid state transition")
	// ErrAlreadyTerminal is returned for a local cancel/refund attempted
	// against a payment the gateway reports as terminal.
	ErrAlreadyTerminal = errors.New("payment already terminal")
	// ErrNotRefundable is returned when a refund is requested for a
	// payment that was never approved.
	ErrNotRefundable = errors.New("payment not in a refundable state")
	// ErrResourceMissing is returned when the gateway does not know the
	// referenced resource. Notifications can arrive moments before the
	// resource becomes queryable, so the slot is released and the next
	// redelivery acts as the retry.
	ErrResourceMissing = errors.New("resource unknown at gateway")
)
