package processor

import (
	"errors"
	"fmt"
	"math"

	solana "github.com/gagliardetto/solana-go"
)

// SubscribeParams carries the inputs of a subscription activation. Payer is
// the authorizing signer and must be the buyer of the referenced order.
type SubscribeParams struct {
	Payer    solana.PublicKey
	Merchant solana.PublicKey
	Order    solana.PublicKey
	Name     string
	Data     string
}

// subscribeChecks validates the merchant/order pair shared by the
// subscription operations and resolves the named package.
func (p *Processor) subscribeChecks(payer, merchantAddr, orderAddr solana.PublicKey, name string) (*MerchantAccount, *OrderAccount, *Package, error) {
	merchant, err := p.loadMerchant(merchantAddr)
	if err != nil {
		return nil, nil, nil, err
	}
	order, err := p.loadOrder(orderAddr)
	if err != nil {
		return nil, nil, nil, err
	}
	if !order.Payer.Equals(payer) {
		return nil, nil, nil, fmt.Errorf("subscription: %w", ErrUnauthorized)
	}
	if order.Status != uint8(OrderPaid) {
		return nil, nil, nil, ErrOrderNotPaid
	}
	if !order.Merchant.Equals(merchantAddr) {
		return nil, nil, nil, ErrWrongOrderAccount
	}
	pkg, err := findMerchantPackage(merchant, name)
	if err != nil {
		return nil, nil, nil, err
	}
	return merchant, order, pkg, nil
}

// Subscribe creates the subscription account for a paid order. The expiry is
// the activation time plus the package duration. Subscribing neither
// withdraws nor alters escrow.
func (p *Processor) Subscribe(params SubscribeParams) (*SubscriptionAccount, solana.PublicKey, error) {
	if params.Payer.IsZero() {
		return nil, solana.PublicKey{}, fmt.Errorf("subscribe: %w", ErrUnauthorized)
	}
	_, order, pkg, err := p.subscribeChecks(params.Payer, params.Merchant, params.Order, params.Name)
	if err != nil {
		return nil, solana.PublicKey{}, err
	}
	if pkg.Price > order.PaidAmount {
		return nil, solana.PublicKey{}, ErrNotFullyPaid
	}

	address, _, err := p.Derivation().SubscriptionAddress(params.Merchant, params.Order)
	if err != nil {
		return nil, solana.PublicKey{}, fmt.Errorf("derive subscription address: %w", err)
	}
	// An order whose data names a subscription must name this one.
	if linked, ok := orderSubscription(order.Data); ok && !linked.Equals(address) {
		return nil, solana.PublicKey{}, ErrWrongOrderAccount
	}

	data := params.Data
	if data == "" {
		data = DefaultAccountData
	}
	now := p.now()
	subscription := &SubscriptionAccount{
		Status:      uint8(SubscriptionActive),
		Owner:       params.Payer,
		Merchant:    params.Merchant,
		Order:       params.Order,
		Name:        params.Name,
		Joined:      now,
		PeriodStart: now,
		PeriodEnd:   now + pkg.Duration,
		Data:        data,
	}
	if err := p.createAccount(address, subscription); err != nil {
		if errors.Is(err, ErrAccountExists) {
			return nil, solana.PublicKey{}, ErrAlreadySubscribed
		}
		return nil, solana.PublicKey{}, err
	}
	return subscription, address, nil
}

// RenewSubscriptionParams carries the inputs of a renewal. The referenced
// order must be Paid and cover Quantity times the package price.
type RenewSubscriptionParams struct {
	Payer        solana.PublicKey
	Merchant     solana.PublicKey
	Order        solana.PublicKey
	Subscription solana.PublicKey
	Quantity     int64
}

// RenewSubscription extends an active subscription by quantity package
// durations. A renewal that lands after the current period restarts the
// period at the current time instead of stacking onto the stale end.
func (p *Processor) RenewSubscription(params RenewSubscriptionParams) (*SubscriptionAccount, error) {
	if params.Payer.IsZero() {
		return nil, fmt.Errorf("renew: %w", ErrUnauthorized)
	}
	if params.Quantity <= 0 {
		return nil, ErrInvalidAmount
	}
	subscription, err := p.loadSubscription(params.Subscription)
	if err != nil {
		return nil, err
	}
	if subscription.Status != uint8(SubscriptionActive) {
		return nil, ErrSubscriptionNotActive
	}
	if !subscription.Order.Equals(params.Order) {
		return nil, ErrWrongOrderAccount
	}
	_, order, pkg, err := p.subscribeChecks(params.Payer, params.Merchant, params.Order, subscription.Name)
	if err != nil {
		return nil, err
	}
	quantity := uint64(params.Quantity)
	if pkg.Price > 0 && quantity > math.MaxUint64/pkg.Price {
		return nil, ErrInvalidAmount
	}
	expected := quantity * pkg.Price
	if expected > order.PaidAmount {
		return nil, ErrNotFullyPaid
	}
	if pkg.Duration > 0 && params.Quantity > math.MaxInt64/pkg.Duration {
		return nil, ErrInvalidAmount
	}

	now := p.now()
	extension := pkg.Duration * params.Quantity
	if now > subscription.PeriodEnd {
		subscription.PeriodStart = now
		subscription.PeriodEnd = now + extension
	} else {
		subscription.PeriodEnd += extension
	}
	if err := p.storeAccount(params.Subscription, subscription); err != nil {
		return nil, err
	}
	return subscription, nil
}

// CancelSubscriptionParams carries the inputs of a cancellation. The refund
// destination must be a value account controlled by the payer.
type CancelSubscriptionParams struct {
	Payer             solana.PublicKey
	Merchant          solana.PublicKey
	Order             solana.PublicKey
	Subscription      solana.PublicKey
	RefundDestination solana.PublicKey
}

// CancelSubscription cancels the payer's subscription. Inside the package's
// trial window the escrowed payment is refunded in full, authorized by the
// derived escrow authority; after the trial only the status changes. The
// order moves to Cancelled either way, which permanently blocks withdrawal.
func (p *Processor) CancelSubscription(params CancelSubscriptionParams) error {
	if params.Payer.IsZero() {
		return fmt.Errorf("cancel: %w", ErrUnauthorized)
	}
	subscription, err := p.loadSubscription(params.Subscription)
	if err != nil {
		return err
	}
	if subscription.Status != uint8(SubscriptionActive) {
		return ErrSubscriptionNotActive
	}
	if !subscription.Order.Equals(params.Order) {
		return ErrWrongOrderAccount
	}
	_, order, pkg, err := p.subscribeChecks(params.Payer, params.Merchant, params.Order, subscription.Name)
	if err != nil {
		return err
	}

	now := p.now()
	if now <= subscription.Joined+pkg.TrialSeconds() {
		refundOwner, err := p.ledger.Owner(params.RefundDestination)
		if err != nil {
			return fmt.Errorf("refund destination: %w", err)
		}
		if !refundOwner.Equals(params.Payer) {
			return fmt.Errorf("refund destination: %w", ErrInvalidAccountOwner)
		}
		authority, err := p.Derivation().EscrowAuthority(params.Merchant, params.Order)
		if err != nil {
			return fmt.Errorf("derive escrow authority: %w", err)
		}
		if err := p.ledger.Transfer(order.Escrow, params.RefundDestination, order.PaidAmount, authority); err != nil {
			return fmt.Errorf("refund escrow: %w", err)
		}
	}

	order.Status = uint8(OrderCancelled)
	order.Modified = now
	if err := p.storeAccount(params.Order, order); err != nil {
		return err
	}
	subscription.Status = uint8(SubscriptionCancelled)
	return p.storeAccount(params.Subscription, subscription)
}
