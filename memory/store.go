// Package memory provides in-memory implementations of the engine's
// account-storage and value-transfer collaborators. They are suitable for
// tests and single-process embedders; the state is an explicit keyed store
// injected into the engine, never ambient globals.
package memory

import (
	"sync"

	solana "github.com/gagliardetto/solana-go"

	processor "github.com/solpayments/solana-payment-processor"
)

// AccountStore is a mutex-guarded map of accounts keyed by derived address.
// Reads and writes copy account contents so callers never alias stored state.
type AccountStore struct {
	mu       sync.Mutex
	accounts map[solana.PublicKey]*processor.Account
}

// NewAccountStore creates an empty store.
func NewAccountStore() *AccountStore {
	return &AccountStore{accounts: make(map[solana.PublicKey]*processor.Account)}
}

// Create allocates an empty account. Occupied addresses fail with
// ErrAccountExists; creation is never an overwrite.
func (s *AccountStore) Create(address, owner solana.PublicKey) (*processor.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.accounts[address]; exists {
		return nil, processor.ErrAccountExists
	}
	acc := &processor.Account{Address: address, Owner: owner}
	s.accounts[address] = acc
	return cloneAccount(acc), nil
}

// Get returns a copy of the account at the address, if any.
func (s *AccountStore) Get(address solana.PublicKey) (*processor.Account, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[address]
	if !ok {
		return nil, false
	}
	return cloneAccount(acc), true
}

// Put writes account contents back. The account must have been created.
func (s *AccountStore) Put(account *processor.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.accounts[account.Address]; !exists {
		return processor.ErrAccountNotFound
	}
	s.accounts[account.Address] = cloneAccount(account)
	return nil
}

func cloneAccount(acc *processor.Account) *processor.Account {
	data := make([]byte, len(acc.Data))
	copy(data, acc.Data)
	return &processor.Account{Address: acc.Address, Owner: acc.Owner, Data: data}
}

var _ processor.AccountStore = (*AccountStore)(nil)
