package processor

import (
	"errors"
	"fmt"

	solana "github.com/gagliardetto/solana-go"
)

// RegisterMerchantParams carries the inputs of a merchant registration. Owner
// is the authorizing signer and becomes the only identity allowed to mutate
// merchant configuration later.
type RegisterMerchantParams struct {
	Owner solana.PublicKey

	// Seed disambiguates multiple merchant accounts under one owner. Empty
	// means DefaultMerchantSeed.
	Seed string

	// FeeBps is the sponsor commission rate in basis points. Nil means
	// DefaultSponsorFeeBps.
	FeeBps *uint64

	// Data is merchant-defined metadata. Empty means DefaultAccountData. When
	// it declares a package table the table shape is validated.
	Data string

	// Sponsor is the optional referring party, fixed here and immutable
	// thereafter.
	Sponsor *solana.PublicKey
}

// RegisterMerchant allocates and initializes a merchant account at the address
// derived from (owner, seed). Registering the same pair twice fails with
// AlreadyRegistered.
func (p *Processor) RegisterMerchant(params RegisterMerchantParams) (*MerchantAccount, solana.PublicKey, error) {
	if params.Owner.IsZero() {
		return nil, solana.PublicKey{}, fmt.Errorf("register merchant: %w", ErrUnauthorized)
	}
	if params.Sponsor != nil && params.Sponsor.IsZero() {
		return nil, solana.PublicKey{}, ErrInvalidSponsor
	}

	seed := params.Seed
	if seed == "" {
		seed = DefaultMerchantSeed
	}
	data := params.Data
	if data == "" {
		data = DefaultAccountData
	}
	if err := ValidateMerchantData(data); err != nil {
		return nil, solana.PublicKey{}, err
	}
	feeBps := uint64(DefaultSponsorFeeBps)
	if params.FeeBps != nil {
		feeBps = *params.FeeBps
	}

	address, _, err := p.Derivation().MerchantAddress(params.Owner, seed)
	if err != nil {
		return nil, solana.PublicKey{}, fmt.Errorf("derive merchant address: %w", err)
	}

	merchant := &MerchantAccount{
		Status:  uint8(MerchantInitialized),
		Owner:   params.Owner,
		Sponsor: params.Sponsor,
		FeeBps:  feeBps,
		Data:    data,
	}
	if err := p.createAccount(address, merchant); err != nil {
		if errors.Is(err, ErrAccountExists) {
			return nil, solana.PublicKey{}, ErrAlreadyRegistered
		}
		return nil, solana.PublicKey{}, err
	}
	return merchant, address, nil
}
