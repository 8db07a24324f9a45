package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	processor "github.com/solpayments/solana-payment-processor"
)

// SettlementStatus is the result of checking the store for a key.
type SettlementStatus int

const (
	// StatusNotFound means no cached split and no in-flight settlement.
	StatusNotFound SettlementStatus = iota
	// StatusCached means a cached split was found.
	StatusCached
	// StatusInFlight means another request is currently settling this order.
	StatusInFlight
)

// SettlementStore is the deduplication backend. Implementations must be safe
// for concurrent use; the in-memory store below serves single-process
// embedders, a shared backend serves load-balanced deployments.
type SettlementStore interface {
	// CheckAndMark atomically checks the store and claims the in-flight slot
	// when the key is unknown. The returned channel is non-nil unless a cached
	// split was found; the claimer must hand it back through Complete or Fail.
	CheckAndMark(key string) (SettlementStatus, *processor.FeeSplit, chan struct{})

	// WaitForResult blocks until an in-flight settlement finishes or the
	// context is cancelled. A nil split with a nil error means the in-flight
	// attempt failed and the caller may retry.
	WaitForResult(ctx context.Context, key string, done chan struct{}) (*processor.FeeSplit, error)

	// Complete caches a successful split and releases the in-flight slot.
	Complete(key string, split *processor.FeeSplit, done chan struct{})

	// Fail releases the in-flight slot without caching, so the settlement can
	// be retried.
	Fail(key string, done chan struct{})
}

// KeyGenerator derives the deduplication key for a settlement request.
type KeyGenerator func(params processor.WithdrawParams) string

// DefaultKeyGenerator keys settlements by the order address. The order is the
// exactly-once unit, so any two requests against the same order deduplicate
// regardless of which destinations they name.
func DefaultKeyGenerator(params processor.WithdrawParams) string {
	hash := sha256.Sum256(params.Order.Bytes())
	return hex.EncodeToString(hash[:])
}
