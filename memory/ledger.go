package memory

import (
	"fmt"
	"sync"

	solana "github.com/gagliardetto/solana-go"

	processor "github.com/solpayments/solana-payment-processor"
)

type valueAccount struct {
	owner   solana.PublicKey
	balance uint64
}

// TokenLedger is an in-memory value-transfer collaborator. Escrow-sourced
// transfers are authorized by proof-of-derivation against the program
// identity, not by signature: the ledger re-derives the authority address
// from the supplied seeds and requires it to control the source account.
type TokenLedger struct {
	mu        sync.Mutex
	programID solana.PublicKey
	accounts  map[solana.PublicKey]*valueAccount
}

// NewTokenLedger creates an empty ledger that verifies derived authorities
// under the given program identity.
func NewTokenLedger(programID solana.PublicKey) *TokenLedger {
	return &TokenLedger{
		programID: programID,
		accounts:  make(map[solana.PublicKey]*valueAccount),
	}
}

// CreateAccount registers a value account controlled by the authority
// address. Re-creating with the same authority is a no-op.
func (l *TokenLedger) CreateAccount(address, authority solana.PublicKey) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if existing, ok := l.accounts[address]; ok {
		if existing.owner.Equals(authority) {
			return nil
		}
		return processor.ErrAccountExists
	}
	l.accounts[address] = &valueAccount{owner: authority}
	return nil
}

// Mint credits an account out of thin air. Test and bootstrap helper.
func (l *TokenLedger) Mint(address solana.PublicKey, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	acc, ok := l.accounts[address]
	if !ok {
		return processor.ErrAccountNotFound
	}
	acc.balance += amount
	return nil
}

// Balance returns the current balance of an account.
func (l *TokenLedger) Balance(address solana.PublicKey) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	acc, ok := l.accounts[address]
	if !ok {
		return 0, processor.ErrAccountNotFound
	}
	return acc.balance, nil
}

// Owner returns the controlling authority address of an account.
func (l *TokenLedger) Owner(address solana.PublicKey) (solana.PublicKey, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	acc, ok := l.accounts[address]
	if !ok {
		return solana.PublicKey{}, processor.ErrAccountNotFound
	}
	return acc.owner, nil
}

// Transfer moves amount between accounts. The authority must control the
// source: a wallet authority by matching the owner directly, a derived
// authority by a valid derivation proof resolving to the owner. On any
// failure no value moves.
func (l *TokenLedger) Transfer(source, destination solana.PublicKey, amount uint64, authority processor.Authority) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	src, ok := l.accounts[source]
	if !ok {
		return fmt.Errorf("source: %w", processor.ErrAccountNotFound)
	}
	dst, ok := l.accounts[destination]
	if !ok {
		return fmt.Errorf("destination: %w", processor.ErrAccountNotFound)
	}
	if authority.Derived() {
		if !authority.Verify(l.programID) {
			return fmt.Errorf("derivation proof: %w", processor.ErrUnauthorized)
		}
	}
	if !src.owner.Equals(authority.Address) {
		return fmt.Errorf("authority does not control source: %w", processor.ErrUnauthorized)
	}
	if src.balance < amount {
		return processor.ErrInsufficientFunds
	}
	src.balance -= amount
	dst.balance += amount
	return nil
}

var _ processor.ValueLedger = (*TokenLedger)(nil)
