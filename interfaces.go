package processor

import (
	solana "github.com/gagliardetto/solana-go"
)

// Account is one persisted record in the host ledger: raw serialized contents
// plus the program that owns (and may mutate) them.
type Account struct {
	Address solana.PublicKey
	Owner   solana.PublicKey
	Data    []byte
}

// AccountStore is the account-storage collaborator. The host guarantees that
// no two operations touching the same account run concurrently, so
// implementations only need to be safe for use from multiple goroutines, not
// transactional.
type AccountStore interface {
	// Create allocates an empty account at the given address, owned by the
	// given program. Returns ErrAccountExists if the address is occupied.
	Create(address, owner solana.PublicKey) (*Account, error)

	// Get returns the account at the address, if any.
	Get(address solana.PublicKey) (*Account, bool)

	// Put writes the account contents back.
	Put(account *Account) error
}

// ValueLedger is the value-transfer collaborator. Escrow-sourced transfers
// must carry a derived Authority whose proof the ledger verifies by
// re-derivation; it never sees a private key for escrow accounts.
type ValueLedger interface {
	// CreateAccount registers a value-holding account controlled by the given
	// authority address. Creating an existing account with the same authority
	// is a no-op.
	CreateAccount(address, authority solana.PublicKey) error

	// Balance returns the current balance, or ErrAccountNotFound.
	Balance(address solana.PublicKey) (uint64, error)

	// Owner returns the controlling authority address of an account.
	Owner(address solana.PublicKey) (solana.PublicKey, error)

	// Transfer moves amount from source to destination. Fails with
	// ErrInsufficientFunds or ErrUnauthorized; on failure no value moves.
	Transfer(source, destination solana.PublicKey, amount uint64, authority Authority) error
}
