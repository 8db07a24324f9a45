// Package idempotency wraps the settlement operation with request
// deduplication. Settlement is already exactly-once at the order level, but a
// client retrying during a slow release otherwise sees a conflict instead of
// the fee split the first call produced. The wrapper caches successful splits
// for a deduplication window and collapses concurrent retries onto the single
// in-flight settlement.
package idempotency
