package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// BeginState is the outcome of an acquisition attempt.
type BeginState int

const (
	// Acquired means the caller owns the processing slot for this delivery.
	Acquired BeginState = iota
	// AlreadyProcessed means an earlier delivery fully committed; Outcome
	// carries its recorded result.
	AlreadyProcessed
	// InFlight means another deliverer currently holds the slot.
	InFlight
)

// Begin is the result of TryBegin.
type Begin struct {
	State   BeginState
	Outcome string
}

// Store records which notifications have been fully processed per tenant.
// Acquisition is atomic: concurrent deliveries of the same notification
// cannot both proceed past TryBegin.
type Store interface {
	TryBegin(ctx context.Context, tenantID uint, notificationID, topic, resourceID string) (Begin, error)
	// Commit marks the notification as processed with a machine-readable
	// outcome. Write-once; never downgraded.
	Commit(ctx context.Context, tenantID uint, notificationID, outcome string) error
	// Release frees the slot after a failure so a redelivery may retry.
	// A committed record is never released.
	Release(ctx context.Context, tenantID uint, notificationID string) error
}

// FallbackKey derives a deterministic notification id when the gateway sent
// none, so duplicates of the same delivery still collapse.
func FallbackKey(topic, resourceID string, tenantID uint) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%d", topic, resourceID, tenantID)))
	return "hash:" + hex.EncodeToString(sum[:])
}
