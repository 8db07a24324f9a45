package idempotency

import (
	"context"
	"time"

	processor "github.com/solpayments/solana-payment-processor"
)

type config struct {
	ttl          time.Duration
	store        SettlementStore
	keyGenerator KeyGenerator
}

// Option configures an IdempotentSettler.
type Option func(*config)

// WithTTL sets the deduplication window for successful settlements. Ignored
// when WithStore supplies a custom backend; configure expiry there instead.
func WithTTL(ttl time.Duration) Option {
	return func(c *config) { c.ttl = ttl }
}

// WithStore sets a custom SettlementStore, for shared backends in
// load-balanced deployments.
func WithStore(store SettlementStore) Option {
	return func(c *config) { c.store = store }
}

// WithKeyGenerator overrides how settlement requests map onto deduplication
// keys. The default keys by order address.
func WithKeyGenerator(gen KeyGenerator) Option {
	return func(c *config) { c.keyGenerator = gen }
}

// IdempotentSettler wraps an engine so retried settlement requests return the
// original fee split instead of a conflict. Only Withdraw is intercepted; all
// other operations go straight to the engine.
type IdempotentSettler struct {
	engine       *processor.Processor
	store        SettlementStore
	keyGenerator KeyGenerator
}

// Wrap builds an IdempotentSettler around an engine. Defaults: an in-memory
// store with a 10 minute window, keyed by order address.
func Wrap(engine *processor.Processor, opts ...Option) *IdempotentSettler {
	cfg := &config{
		ttl:          10 * time.Minute,
		keyGenerator: DefaultKeyGenerator,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	store := cfg.store
	if store == nil {
		store = NewInMemoryStore(cfg.ttl)
	}
	return &IdempotentSettler{
		engine:       engine,
		store:        store,
		keyGenerator: cfg.keyGenerator,
	}
}

// Engine returns the wrapped engine for direct access to the other
// operations.
func (s *IdempotentSettler) Engine() *processor.Processor { return s.engine }

// Settle runs Withdraw with deduplication. A request whose key already
// produced a split within the window gets that split back; a request racing an
// in-flight settlement waits for it. Failed settlements are never cached, so
// legitimate retries still reach the engine.
func (s *IdempotentSettler) Settle(ctx context.Context, params processor.WithdrawParams) (*processor.FeeSplit, error) {
	key := s.keyGenerator(params)

	status, cached, done := s.store.CheckAndMark(key)
	switch status {
	case StatusCached:
		return cached, nil
	case StatusInFlight:
		result, err := s.store.WaitForResult(ctx, key, done)
		if err != nil {
			return nil, err
		}
		if result != nil {
			return result, nil
		}
		// The in-flight attempt failed; claim a fresh slot.
		return s.Settle(ctx, params)
	case StatusNotFound:
		// This request owns the in-flight slot.
	}

	split, err := s.engine.Withdraw(params)
	if err != nil {
		s.store.Fail(key, done)
		return nil, err
	}
	s.store.Complete(key, split, done)
	return split, nil
}
