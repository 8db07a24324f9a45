package processor

import (
	"encoding/binary"

	solana "github.com/gagliardetto/solana-go"
	"github.com/spaolacci/murmur3"
)

// Seed prefixes for the program-derived addresses. Stable: the same seeds must
// yield the same address at checkout time and at withdrawal time.
const (
	authoritySeed    = "authority"
	escrowSeed       = "escrow"
	subscriptionSeed = "subscription"
)

// hashedSeed folds an arbitrary-length input into a fixed 16-byte seed.
// Program-derived address seeds are capped at 32 bytes, and merchant-supplied
// strings (registration seeds, order ids) have no length bound. Murmur3 is
// enough here: the inputs are not adversarial and the full seed tuple still
// includes the parties' public keys.
func hashedSeed(input string) []byte {
	h1, h2 := murmur3.Sum128([]byte(input))
	seed := make([]byte, 16)
	binary.LittleEndian.PutUint64(seed[:8], h1)
	binary.LittleEndian.PutUint64(seed[8:], h2)
	return seed
}

// Authority is a spending capability accepted by the value ledger. A wallet
// authority stands for a signature the host has already verified; a derived
// authority carries the full seed tuple (bump included) as a
// proof-of-derivation that the ledger checks against the program id. No
// private key ever exists for a derived authority.
type Authority struct {
	Address solana.PublicKey
	Seeds   [][]byte
}

// WalletAuthority wraps a signer identity.
func WalletAuthority(owner solana.PublicKey) Authority {
	return Authority{Address: owner}
}

// Derived reports whether this authority carries a derivation proof.
func (a Authority) Derived() bool { return len(a.Seeds) > 0 }

// Verify re-derives the address from the proof seeds and compares. Only
// meaningful for derived authorities.
func (a Authority) Verify(programID solana.PublicKey) bool {
	if !a.Derived() {
		return false
	}
	derived, err := solana.CreateProgramAddress(a.Seeds, programID)
	if err != nil {
		return false
	}
	return derived.Equals(a.Address)
}

// Derivation maps stable seed tuples to addresses under one program identity.
// Pure: no state, no side effects.
type Derivation struct {
	ProgramID solana.PublicKey
}

// MerchantAddress derives the merchant account address from the registering
// owner and the registration seed.
func (d Derivation) MerchantAddress(owner solana.PublicKey, seed string) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{owner.Bytes(), hashedSeed(seed)}, d.ProgramID)
}

// OrderAddress derives the order account address. Uniqueness of
// (merchant, order id, buyer) falls out of the derivation: a second checkout
// with the same triple lands on an occupied address.
func (d Derivation) OrderAddress(merchant solana.PublicKey, orderID string, buyer solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{merchant.Bytes(), hashedSeed(orderID), buyer.Bytes()}, d.ProgramID)
}

// SubscriptionAddress derives the subscription account address for an order.
func (d Derivation) SubscriptionAddress(merchant, order solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{[]byte(subscriptionSeed), merchant.Bytes(), order.Bytes()}, d.ProgramID)
}

// EscrowAddress derives the value account that holds an order's funds.
func (d Derivation) EscrowAddress(order solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{[]byte(escrowSeed), order.Bytes()}, d.ProgramID)
}

// EscrowAuthority derives the keyless authority that controls an order's
// escrow. The returned Authority carries the proof seeds, bump appended, ready
// to authorize escrow-sourced transfers.
func (d Derivation) EscrowAuthority(merchant, order solana.PublicKey) (Authority, error) {
	seeds := [][]byte{[]byte(authoritySeed), merchant.Bytes(), order.Bytes()}
	addr, bump, err := solana.FindProgramAddress(seeds, d.ProgramID)
	if err != nil {
		return Authority{}, err
	}
	proof := make([][]byte, 0, len(seeds)+1)
	proof = append(proof, seeds...)
	proof = append(proof, []byte{bump})
	return Authority{Address: addr, Seeds: proof}, nil
}
