package processor

import (
	"errors"
	"fmt"

	solana "github.com/gagliardetto/solana-go"
)

// WithdrawParams carries the inputs of a settlement. Caller may be any signer:
// destination ownership checks, not caller identity, decide where the funds
// go. SponsorDestination is required only when the merchant registered with a
// sponsor. Subscription is an optional cross-check: when supplied it must
// match the address derived from (merchant, order); the trial guard finds the
// subscription by derivation either way.
type WithdrawParams struct {
	Caller              solana.PublicKey
	Merchant            solana.PublicKey
	Order               solana.PublicKey
	MerchantDestination solana.PublicKey
	PlatformDestination solana.PublicKey
	SponsorDestination  solana.PublicKey
	Subscription        *solana.PublicKey
}

// Withdraw settles a paid order: the escrow is emptied into the merchant,
// platform, and sponsor destinations per the fee split, and the order flips
// to Withdrawn. The status guard makes the release exactly-once; a second
// invocation fails with OrderAlreadyWithdrawn and moves nothing.
func (p *Processor) Withdraw(params WithdrawParams) (*FeeSplit, error) {
	if params.Caller.IsZero() {
		return nil, fmt.Errorf("withdraw: %w", ErrUnauthorized)
	}
	merchant, err := p.loadMerchant(params.Merchant)
	if err != nil {
		return nil, fmt.Errorf("withdraw: %w", err)
	}
	order, err := p.loadOrder(params.Order)
	if err != nil {
		return nil, fmt.Errorf("withdraw: %w", err)
	}
	if !order.Merchant.Equals(params.Merchant) {
		return nil, ErrWrongOrderAccount
	}
	if order.Status != uint8(OrderPaid) {
		return nil, ErrOrderAlreadyWithdrawn
	}

	// Anyone can trigger settlement, so the destinations are pinned to the
	// recorded parties rather than to the caller.
	if err := p.requireDestination(params.MerchantDestination, merchant.Owner); err != nil {
		return nil, fmt.Errorf("merchant destination: %w", err)
	}
	if err := p.requireDestination(params.PlatformDestination, p.operator); err != nil {
		return nil, fmt.Errorf("platform destination: %w", err)
	}

	split, err := SplitAmount(order.ExpectedAmount, merchant.FeeBps, merchant.HasSponsor())
	if err != nil {
		return nil, err
	}
	if merchant.HasSponsor() && split.SponsorFee > 0 {
		if err := p.requireDestination(params.SponsorDestination, *merchant.Sponsor); err != nil {
			return nil, fmt.Errorf("sponsor destination: %w", err)
		}
	}

	balance, err := p.ledger.Balance(order.Escrow)
	if err != nil {
		return nil, fmt.Errorf("escrow: %w", err)
	}
	if balance != order.ExpectedAmount {
		return nil, ErrEscrowMismatch
	}

	if err := p.checkTrialWindow(merchant, params.Merchant, params.Order, params.Subscription); err != nil {
		return nil, err
	}

	authority, err := p.Derivation().EscrowAuthority(params.Merchant, params.Order)
	if err != nil {
		return nil, fmt.Errorf("derive escrow authority: %w", err)
	}
	if split.MerchantShare > 0 {
		if err := p.ledger.Transfer(order.Escrow, params.MerchantDestination, split.MerchantShare, authority); err != nil {
			return nil, fmt.Errorf("merchant payout: %w", err)
		}
	}
	if split.PlatformFee > 0 {
		if err := p.ledger.Transfer(order.Escrow, params.PlatformDestination, split.PlatformFee, authority); err != nil {
			return nil, fmt.Errorf("platform fee: %w", err)
		}
	}
	if split.SponsorFee > 0 {
		if err := p.ledger.Transfer(order.Escrow, params.SponsorDestination, split.SponsorFee, authority); err != nil {
			return nil, fmt.Errorf("sponsor fee: %w", err)
		}
	}

	order.Status = uint8(OrderWithdrawn)
	order.Modified = p.now()
	if err := p.storeAccount(params.Order, order); err != nil {
		return nil, err
	}
	return &split, nil
}

// requireDestination checks that a payout account is controlled by the
// expected party.
func (p *Processor) requireDestination(destination, expectedOwner solana.PublicKey) error {
	owner, err := p.ledger.Owner(destination)
	if err != nil {
		return err
	}
	if !owner.Equals(expectedOwner) {
		return ErrInvalidAccountOwner
	}
	return nil
}

// checkTrialWindow blocks settlement of subscription payments whose trial has
// not elapsed, so a cancellation inside the trial can still be refunded. The
// subscription is located by re-deriving its address from (merchant, order),
// never from order data the buyer wrote at checkout: an order that activated a
// subscription is guarded whether or not its data mentions one.
func (p *Processor) checkTrialWindow(merchant *MerchantAccount, merchantAddr, orderAddr solana.PublicKey, subscriptionAddr *solana.PublicKey) error {
	if !DeclaresPackages(merchant.Data) {
		return nil
	}
	derived, _, err := p.Derivation().SubscriptionAddress(merchantAddr, orderAddr)
	if err != nil {
		return fmt.Errorf("derive subscription address: %w", err)
	}
	if subscriptionAddr != nil && !derived.Equals(*subscriptionAddr) {
		return ErrWrongOrderAccount
	}
	subscription, err := p.loadSubscription(derived)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			// The order does not pay for a subscription.
			return nil
		}
		return err
	}
	pkg, err := findMerchantPackage(merchant, subscription.Name)
	if err != nil {
		return err
	}
	if p.now() < subscription.Joined+pkg.TrialSeconds() {
		return ErrWithdrawalDuringTrial
	}
	return nil
}
