package processor

import (
	"fmt"

	bin "github.com/gagliardetto/binary"
	solana "github.com/gagliardetto/solana-go"
)

// Account records are serialized with borsh so their shape on the wire is
// fixed and checkable. A record that fails to decode, or whose status byte is
// still zero, is rejected as InvalidAccountData.

// MerchantStatus is the lifecycle marker of a merchant record.
type MerchantStatus uint8

const (
	MerchantUninitialized MerchantStatus = iota
	MerchantInitialized
)

// OrderStatus is the lifecycle marker of an order record. Paid -> Withdrawn is
// monotonic and exactly-once; Cancelled is reachable only from Paid through a
// subscription cancellation.
type OrderStatus uint8

const (
	OrderUninitialized OrderStatus = iota
	OrderPaid
	OrderWithdrawn
	OrderCancelled
)

// SubscriptionStatus is the lifecycle marker of a subscription record.
type SubscriptionStatus uint8

const (
	SubscriptionUninitialized SubscriptionStatus = iota
	SubscriptionActive
	SubscriptionCancelled
)

// MerchantAccount is created exactly once per (owner, seed) pair and never
// deleted. FeeBps is the sponsor commission in basis points; the platform fee
// is a fixed engine constant, not merchant data.
type MerchantAccount struct {
	Status  uint8
	Owner   solana.PublicKey
	Sponsor *solana.PublicKey `bin:"optional"`
	FeeBps  uint64
	Data    string
}

// Initialized reports whether the record has been written.
func (m *MerchantAccount) Initialized() bool {
	return m.Status == uint8(MerchantInitialized)
}

// HasSponsor reports whether a referring sponsor was fixed at registration.
func (m *MerchantAccount) HasSponsor() bool {
	return m.Sponsor != nil && !m.Sponsor.IsZero()
}

// OrderAccount is created only at checkout. ExpectedAmount never changes after
// creation; Escrow records the derived value account funded at checkout.
type OrderAccount struct {
	Status         uint8
	Created        int64
	Modified       int64
	Merchant       solana.PublicKey
	Payer          solana.PublicKey
	Escrow         solana.PublicKey
	ExpectedAmount uint64
	PaidAmount     uint64
	OrderID        string
	Secret         string
	Data           string
}

// Initialized reports whether the record has been written.
func (o *OrderAccount) Initialized() bool {
	return o.Status != uint8(OrderUninitialized)
}

// SubscriptionAccount is created once per order. PeriodEnd is the expiry:
// activation time plus the package duration (times the renewed quantity).
type SubscriptionAccount struct {
	Status      uint8
	Owner       solana.PublicKey
	Merchant    solana.PublicKey
	Order       solana.PublicKey
	Name        string
	Joined      int64
	PeriodStart int64
	PeriodEnd   int64
	Data        string
}

// Initialized reports whether the record has been written.
func (s *SubscriptionAccount) Initialized() bool {
	return s.Status != uint8(SubscriptionUninitialized)
}

// Pack serializes the merchant record.
func (m *MerchantAccount) Pack() ([]byte, error) { return bin.MarshalBorsh(m) }

// Pack serializes the order record.
func (o *OrderAccount) Pack() ([]byte, error) { return bin.MarshalBorsh(o) }

// Pack serializes the subscription record.
func (s *SubscriptionAccount) Pack() ([]byte, error) { return bin.MarshalBorsh(s) }

// UnpackMerchantAccount decodes an initialized merchant record.
func UnpackMerchantAccount(data []byte) (*MerchantAccount, error) {
	var m MerchantAccount
	if err := bin.UnmarshalBorsh(&m, data); err != nil {
		return nil, fmt.Errorf("merchant account: %w", ErrInvalidAccountData)
	}
	if !m.Initialized() {
		return nil, fmt.Errorf("merchant account uninitialized: %w", ErrInvalidAccountData)
	}
	return &m, nil
}

// UnpackOrderAccount decodes an initialized order record.
func UnpackOrderAccount(data []byte) (*OrderAccount, error) {
	var o OrderAccount
	if err := bin.UnmarshalBorsh(&o, data); err != nil {
		return nil, fmt.Errorf("order account: %w", ErrInvalidAccountData)
	}
	if !o.Initialized() {
		return nil, fmt.Errorf("order account uninitialized: %w", ErrInvalidAccountData)
	}
	return &o, nil
}

// UnpackSubscriptionAccount decodes an initialized subscription record.
func UnpackSubscriptionAccount(data []byte) (*SubscriptionAccount, error) {
	var s SubscriptionAccount
	if err := bin.UnmarshalBorsh(&s, data); err != nil {
		return nil, fmt.Errorf("subscription account: %w", ErrInvalidAccountData)
	}
	if !s.Initialized() {
		return nil, fmt.Errorf("subscription account uninitialized: %w", ErrInvalidAccountData)
	}
	return &s, nil
}
