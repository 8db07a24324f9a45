package processor

import (
	"fmt"

	solana "github.com/gagliardetto/solana-go"
)

// Process is the router entry point: it decodes the wire instruction, checks
// the signer/writable attributes of each positional account reference, checks
// derived addresses against the supplied ones, and dispatches to the matching
// operation. Every failure is terminal; no partial effects survive.
func (p *Processor) Process(data []byte, accounts []*solana.AccountMeta) error {
	ix, err := UnpackInstruction(data)
	if err != nil {
		return err
	}
	switch {
	case ix.RegisterMerchant != nil:
		return p.processRegisterMerchant(ix.RegisterMerchant, accounts)
	case ix.ExpressCheckout != nil:
		return p.processExpressCheckout(ix.ExpressCheckout, accounts)
	case ix.ChainCheckout != nil:
		return p.processChainCheckout(ix.ChainCheckout, accounts)
	case ix.Withdraw != nil:
		return p.processWithdraw(accounts)
	case ix.Subscribe != nil:
		return p.processSubscribe(ix.Subscribe, accounts)
	case ix.RenewSubscription != nil:
		return p.processRenewSubscription(ix.RenewSubscription, accounts)
	case ix.CancelSubscription != nil:
		return p.processCancelSubscription(accounts)
	}
	return ErrInvalidInstruction
}

// nextAccount mirrors iterating the positional account list: it fails cleanly
// when the list is shorter than the instruction requires.
func nextAccount(accounts []*solana.AccountMeta, index int) (*solana.AccountMeta, error) {
	if index >= len(accounts) {
		return nil, fmt.Errorf("account %d missing: %w", index, ErrInvalidAccountData)
	}
	if accounts[index] == nil {
		return nil, fmt.Errorf("account %d nil: %w", index, ErrInvalidAccountData)
	}
	return accounts[index], nil
}

func requireSigner(meta *solana.AccountMeta) (solana.PublicKey, error) {
	if !meta.IsSigner {
		return solana.PublicKey{}, ErrUnauthorized
	}
	return meta.PublicKey, nil
}

func requireWritable(meta *solana.AccountMeta) (solana.PublicKey, error) {
	if !meta.IsWritable {
		return solana.PublicKey{}, ErrAccountNotWritable
	}
	return meta.PublicKey, nil
}

// requireDerived asserts that a supplied account reference matches its
// re-derivation from the instruction inputs.
func requireDerived(meta *solana.AccountMeta, derived solana.PublicKey) error {
	if !meta.PublicKey.Equals(derived) {
		return fmt.Errorf("account does not match seed derivation: %w", ErrInvalidAccountData)
	}
	return nil
}

func (p *Processor) processRegisterMerchant(ix *RegisterMerchantInstruction, accounts []*solana.AccountMeta) error {
	ownerMeta, err := nextAccount(accounts, 0)
	if err != nil {
		return err
	}
	owner, err := requireSigner(ownerMeta)
	if err != nil {
		return err
	}
	merchantMeta, err := nextAccount(accounts, 1)
	if err != nil {
		return err
	}
	if _, err := requireWritable(merchantMeta); err != nil {
		return err
	}

	params := RegisterMerchantParams{Owner: owner}
	if ix.Seed != nil {
		params.Seed = *ix.Seed
	}
	params.FeeBps = ix.FeeBps
	if ix.Data != nil {
		params.Data = *ix.Data
	}
	if len(accounts) > 2 {
		sponsorMeta, err := nextAccount(accounts, 2)
		if err != nil {
			return err
		}
		sponsor := sponsorMeta.PublicKey
		params.Sponsor = &sponsor
	}

	seed := params.Seed
	if seed == "" {
		seed = DefaultMerchantSeed
	}
	derived, _, err := p.Derivation().MerchantAddress(owner, seed)
	if err != nil {
		return err
	}
	if err := requireDerived(merchantMeta, derived); err != nil {
		return err
	}

	_, _, err = p.RegisterMerchant(params)
	return err
}

func (p *Processor) processExpressCheckout(ix *ExpressCheckoutInstruction, accounts []*solana.AccountMeta) error {
	buyerMeta, err := nextAccount(accounts, 0)
	if err != nil {
		return err
	}
	buyer, err := requireSigner(buyerMeta)
	if err != nil {
		return err
	}
	fundingMeta, err := nextAccount(accounts, 1)
	if err != nil {
		return err
	}
	funding, err := requireWritable(fundingMeta)
	if err != nil {
		return err
	}
	merchantMeta, err := nextAccount(accounts, 2)
	if err != nil {
		return err
	}
	orderMeta, err := nextAccount(accounts, 3)
	if err != nil {
		return err
	}
	if _, err := requireWritable(orderMeta); err != nil {
		return err
	}
	escrowMeta, err := nextAccount(accounts, 4)
	if err != nil {
		return err
	}
	if _, err := requireWritable(escrowMeta); err != nil {
		return err
	}

	derivedOrder, _, err := p.Derivation().OrderAddress(merchantMeta.PublicKey, ix.OrderID, buyer)
	if err != nil {
		return err
	}
	if err := requireDerived(orderMeta, derivedOrder); err != nil {
		return err
	}
	derivedEscrow, _, err := p.Derivation().EscrowAddress(derivedOrder)
	if err != nil {
		return err
	}
	if err := requireDerived(escrowMeta, derivedEscrow); err != nil {
		return err
	}

	params := ExpressCheckoutParams{
		Buyer:        buyer,
		BuyerFunding: funding,
		Merchant:     merchantMeta.PublicKey,
		Amount:       ix.Amount,
		OrderID:      ix.OrderID,
		Secret:       ix.Secret,
	}
	if ix.Data != nil {
		params.Data = *ix.Data
	}
	_, _, err = p.ExpressCheckout(params)
	return err
}

func (p *Processor) processChainCheckout(ix *ChainCheckoutInstruction, accounts []*solana.AccountMeta) error {
	buyerMeta, err := nextAccount(accounts, 0)
	if err != nil {
		return err
	}
	buyer, err := requireSigner(buyerMeta)
	if err != nil {
		return err
	}
	fundingMeta, err := nextAccount(accounts, 1)
	if err != nil {
		return err
	}
	funding, err := requireWritable(fundingMeta)
	if err != nil {
		return err
	}
	merchantMeta, err := nextAccount(accounts, 2)
	if err != nil {
		return err
	}

	params := ChainCheckoutParams{
		Buyer:        buyer,
		BuyerFunding: funding,
		Merchant:     merchantMeta.PublicKey,
		Amount:       ix.Amount,
		Items:        ix.Items,
	}
	if ix.Data != nil {
		params.Data = *ix.Data
	}
	_, _, err = p.ChainCheckout(params)
	return err
}

func (p *Processor) processWithdraw(accounts []*solana.AccountMeta) error {
	callerMeta, err := nextAccount(accounts, 0)
	if err != nil {
		return err
	}
	caller, err := requireSigner(callerMeta)
	if err != nil {
		return err
	}
	orderMeta, err := nextAccount(accounts, 1)
	if err != nil {
		return err
	}
	order, err := requireWritable(orderMeta)
	if err != nil {
		return err
	}
	merchantMeta, err := nextAccount(accounts, 2)
	if err != nil {
		return err
	}
	merchantDestMeta, err := nextAccount(accounts, 3)
	if err != nil {
		return err
	}
	merchantDest, err := requireWritable(merchantDestMeta)
	if err != nil {
		return err
	}
	platformDestMeta, err := nextAccount(accounts, 4)
	if err != nil {
		return err
	}
	platformDest, err := requireWritable(platformDestMeta)
	if err != nil {
		return err
	}

	params := WithdrawParams{
		Caller:              caller,
		Merchant:            merchantMeta.PublicKey,
		Order:               order,
		MerchantDestination: merchantDest,
		PlatformDestination: platformDest,
	}
	if len(accounts) > 5 {
		sponsorMeta, err := nextAccount(accounts, 5)
		if err != nil {
			return err
		}
		sponsorDest, err := requireWritable(sponsorMeta)
		if err != nil {
			return err
		}
		params.SponsorDestination = sponsorDest
	}
	if len(accounts) > 6 {
		subscriptionMeta, err := nextAccount(accounts, 6)
		if err != nil {
			return err
		}
		subscription := subscriptionMeta.PublicKey
		params.Subscription = &subscription
	}
	_, err = p.Withdraw(params)
	return err
}

func (p *Processor) subscriptionAccounts(accounts []*solana.AccountMeta) (payer, subscription, merchant, order solana.PublicKey, err error) {
	payerMeta, err := nextAccount(accounts, 0)
	if err != nil {
		return
	}
	payer, err = requireSigner(payerMeta)
	if err != nil {
		return
	}
	subscriptionMeta, err := nextAccount(accounts, 1)
	if err != nil {
		return
	}
	subscription, err = requireWritable(subscriptionMeta)
	if err != nil {
		return
	}
	merchantMeta, err := nextAccount(accounts, 2)
	if err != nil {
		return
	}
	merchant = merchantMeta.PublicKey
	orderMeta, err := nextAccount(accounts, 3)
	if err != nil {
		return
	}
	order = orderMeta.PublicKey
	return
}

func (p *Processor) processSubscribe(ix *SubscribeInstruction, accounts []*solana.AccountMeta) error {
	payer, subscription, merchant, order, err := p.subscriptionAccounts(accounts)
	if err != nil {
		return err
	}
	derived, _, err := p.Derivation().SubscriptionAddress(merchant, order)
	if err != nil {
		return err
	}
	if !subscription.Equals(derived) {
		return fmt.Errorf("account does not match seed derivation: %w", ErrInvalidAccountData)
	}

	params := SubscribeParams{
		Payer:    payer,
		Merchant: merchant,
		Order:    order,
		Name:     ix.Name,
	}
	if ix.Data != nil {
		params.Data = *ix.Data
	}
	_, _, err = p.Subscribe(params)
	return err
}

func (p *Processor) processRenewSubscription(ix *RenewSubscriptionInstruction, accounts []*solana.AccountMeta) error {
	payer, subscription, merchant, order, err := p.subscriptionAccounts(accounts)
	if err != nil {
		return err
	}
	_, err = p.RenewSubscription(RenewSubscriptionParams{
		Payer:        payer,
		Merchant:     merchant,
		Order:        order,
		Subscription: subscription,
		Quantity:     ix.Quantity,
	})
	return err
}

func (p *Processor) processCancelSubscription(accounts []*solana.AccountMeta) error {
	payer, subscription, merchant, order, err := p.subscriptionAccounts(accounts)
	if err != nil {
		return err
	}
	orderMeta, err := nextAccount(accounts, 3)
	if err != nil {
		return err
	}
	if _, err := requireWritable(orderMeta); err != nil {
		return err
	}
	refundMeta, err := nextAccount(accounts, 4)
	if err != nil {
		return err
	}
	refund, err := requireWritable(refundMeta)
	if err != nil {
		return err
	}
	return p.CancelSubscription(CancelSubscriptionParams{
		Payer:             payer,
		Merchant:          merchant,
		Order:             order,
		Subscription:      subscription,
		RefundDestination: refund,
	})
}
