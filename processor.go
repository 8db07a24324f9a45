// Package processor implements a non-custodial payment settlement engine:
// merchants register once, buyers pay into escrow accounts that only a
// derived, keyless authority can move, and anyone may later trigger
// settlement, which splits the escrowed funds between the merchant, the
// platform operator, and an optional referring sponsor. Subscriptions are a
// second state layer built on top of a completed payment.
//
// The engine runs inside a host that serializes operations per account, so it
// does no locking of its own: every operation validates, then mutates, and
// either fully applies or applies nothing. Account storage, value transfer,
// and time are injected collaborators (see interfaces.go).
package processor

import (
	"time"

	solana "github.com/gagliardetto/solana-go"
)

const (
	// PlatformFeeBps is the fixed platform commission: 30 basis points, 0.3%.
	PlatformFeeBps = 30

	// DefaultSponsorFeeBps applies when a merchant registers with a sponsor
	// but without an explicit fee policy.
	DefaultSponsorFeeBps = 30

	// DefaultMerchantSeed is used when registration supplies no seed.
	DefaultMerchantSeed = "merchant"

	// DefaultAccountData is the empty metadata payload.
	DefaultAccountData = "{}"
)

// DefaultProgramID is the deployed program identity; overridable for tests via
// WithProgramID.
var DefaultProgramID = solana.MustPublicKeyFromBase58("mosh111111111111111111111111111111111111111")

// DefaultPlatformOperator receives the platform fee unless overridden.
var DefaultPlatformOperator = solana.MustPublicKeyFromBase58("mosh782eoKyPca9eotWfepHVSKavjDMBjNkNE3Gge6Z")

// Processor is the settlement engine. All four core operations plus the
// subscription supplements hang off it.
type Processor struct {
	programID solana.PublicKey
	operator  solana.PublicKey
	store     AccountStore
	ledger    ValueLedger
	nowFn     func() time.Time
}

// Option configures a Processor.
type Option func(*Processor)

// WithProgramID overrides the program identity used for all derivations.
func WithProgramID(id solana.PublicKey) Option {
	return func(p *Processor) { p.programID = id }
}

// WithPlatformOperator overrides the identity that platform fees are paid to.
func WithPlatformOperator(operator solana.PublicKey) Option {
	return func(p *Processor) { p.operator = operator }
}

// WithClock overrides the time source. Intended for tests that need
// deterministic timestamps.
func WithClock(now func() time.Time) Option {
	return func(p *Processor) {
		if now != nil {
			p.nowFn = now
		}
	}
}

// NewProcessor wires the engine to its collaborators.
func NewProcessor(store AccountStore, ledger ValueLedger, opts ...Option) *Processor {
	p := &Processor{
		programID: DefaultProgramID,
		operator:  DefaultPlatformOperator,
		store:     store,
		ledger:    ledger,
		nowFn:     time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ProgramID returns the program identity the engine derives addresses under.
func (p *Processor) ProgramID() solana.PublicKey { return p.programID }

// PlatformOperator returns the identity that receives platform fees.
func (p *Processor) PlatformOperator() solana.PublicKey { return p.operator }

// Derivation returns the derivation service bound to this engine's program
// identity.
func (p *Processor) Derivation() Derivation { return Derivation{ProgramID: p.programID} }

func (p *Processor) now() int64 { return p.nowFn().Unix() }

// loadAccount fetches an account and rejects wrong ownership before any
// contents are interpreted.
func (p *Processor) loadAccount(address solana.PublicKey) (*Account, error) {
	acc, ok := p.store.Get(address)
	if !ok {
		return nil, ErrAccountNotFound
	}
	if !acc.Owner.Equals(p.programID) {
		return nil, ErrInvalidAccountOwner
	}
	return acc, nil
}

// Merchant fetches and decodes the merchant record at address.
func (p *Processor) Merchant(address solana.PublicKey) (*MerchantAccount, error) {
	return p.loadMerchant(address)
}

// Order fetches and decodes the order record at address.
func (p *Processor) Order(address solana.PublicKey) (*OrderAccount, error) {
	return p.loadOrder(address)
}

// Subscription fetches and decodes the subscription record at address.
func (p *Processor) Subscription(address solana.PublicKey) (*SubscriptionAccount, error) {
	return p.loadSubscription(address)
}

func (p *Processor) loadMerchant(address solana.PublicKey) (*MerchantAccount, error) {
	acc, err := p.loadAccount(address)
	if err != nil {
		return nil, err
	}
	return UnpackMerchantAccount(acc.Data)
}

func (p *Processor) loadOrder(address solana.PublicKey) (*OrderAccount, error) {
	acc, err := p.loadAccount(address)
	if err != nil {
		return nil, err
	}
	return UnpackOrderAccount(acc.Data)
}

func (p *Processor) loadSubscription(address solana.PublicKey) (*SubscriptionAccount, error) {
	acc, err := p.loadAccount(address)
	if err != nil {
		return nil, err
	}
	return UnpackSubscriptionAccount(acc.Data)
}

// storeAccount serializes a record back into its account.
func (p *Processor) storeAccount(address solana.PublicKey, record interface{ Pack() ([]byte, error) }) error {
	acc, err := p.loadAccount(address)
	if err != nil {
		return err
	}
	data, err := record.Pack()
	if err != nil {
		return err
	}
	acc.Data = data
	return p.store.Put(acc)
}

// createAccount allocates and writes a fresh record in one step.
func (p *Processor) createAccount(address solana.PublicKey, record interface{ Pack() ([]byte, error) }) error {
	acc, err := p.store.Create(address, p.programID)
	if err != nil {
		return err
	}
	data, err := record.Pack()
	if err != nil {
		return err
	}
	acc.Data = data
	return p.store.Put(acc)
}
