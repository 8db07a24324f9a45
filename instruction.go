package processor

import (
	"bytes"
	"fmt"

	bin "github.com/gagliardetto/binary"
	solana "github.com/gagliardetto/solana-go"
)

// Instructions travel as a borsh tagged union: one tag byte followed by the
// variant payload. The account references for each variant are positional;
// the builders below produce the expected ordering.

// InstructionTag discriminates the instruction union.
type InstructionTag uint8

const (
	TagRegisterMerchant InstructionTag = iota
	TagExpressCheckout
	TagChainCheckout
	TagWithdraw
	TagSubscribe
	TagRenewSubscription
	TagCancelSubscription
)

// RegisterMerchantInstruction registers a merchant account.
//
// Accounts expected:
//
//  0. `[signer]` the registering owner
//  1. `[writable]` the merchant account, derived from (owner, seed)
//  2. `[]` the sponsor identity (optional)
type RegisterMerchantInstruction struct {
	Seed   *string `bin:"optional"`
	FeeBps *uint64 `bin:"optional"`
	Data   *string `bin:"optional"`
}

// ExpressCheckoutInstruction creates an order and funds its escrow.
//
// Accounts expected:
//
//  0. `[signer]` the buyer
//  1. `[writable]` the buyer's funding account
//  2. `[]` the merchant account
//  3. `[writable]` the order account, derived from (merchant, order id, buyer)
//  4. `[writable]` the escrow account, derived from the order
type ExpressCheckoutInstruction struct {
	Amount  uint64
	OrderID string
	Secret  string
	Data    *string `bin:"optional"`
}

// ChainCheckoutInstruction creates an itemized order with a generated id.
//
// Accounts expected:
//
//  0. `[signer]` the buyer
//  1. `[writable]` the buyer's funding account
//  2. `[]` the merchant account
type ChainCheckoutInstruction struct {
	Amount uint64
	Items  []OrderItem
	Data   *string `bin:"optional"`
}

// WithdrawInstruction settles a paid order.
//
// Accounts expected:
//
//  0. `[signer]` any caller
//  1. `[writable]` the order account
//  2. `[]` the merchant account
//  3. `[writable]` the merchant payout destination
//  4. `[writable]` the platform payout destination
//  5. `[writable]` the sponsor payout destination (required with a sponsor)
//  6. `[]` the subscription account (optional cross-check for subscription orders)
type WithdrawInstruction struct{}

// SubscribeInstruction activates a subscription on a paid order.
//
// Accounts expected:
//
//  0. `[signer]` the order's payer
//  1. `[writable]` the subscription account, derived from (merchant, order)
//  2. `[]` the merchant account
//  3. `[]` the order account
type SubscribeInstruction struct {
	Name string
	Data *string `bin:"optional"`
}

// RenewSubscriptionInstruction extends an active subscription.
//
// Accounts expected: same as SubscribeInstruction.
type RenewSubscriptionInstruction struct {
	Quantity int64
}

// CancelSubscriptionInstruction cancels a subscription, refunding the escrow
// when still inside the trial window.
//
// Accounts expected:
//
//  0. `[signer]` the order's payer
//  1. `[writable]` the subscription account
//  2. `[]` the merchant account
//  3. `[writable]` the order account
//  4. `[writable]` the refund destination
type CancelSubscriptionInstruction struct{}

// Instruction is the decoded union. Exactly one variant field is set.
type Instruction struct {
	RegisterMerchant   *RegisterMerchantInstruction
	ExpressCheckout    *ExpressCheckoutInstruction
	ChainCheckout      *ChainCheckoutInstruction
	Withdraw           *WithdrawInstruction
	Subscribe          *SubscribeInstruction
	RenewSubscription  *RenewSubscriptionInstruction
	CancelSubscription *CancelSubscriptionInstruction
}

// Tag returns the union discriminant for the populated variant.
func (ix *Instruction) Tag() (InstructionTag, error) {
	switch {
	case ix.RegisterMerchant != nil:
		return TagRegisterMerchant, nil
	case ix.ExpressCheckout != nil:
		return TagExpressCheckout, nil
	case ix.ChainCheckout != nil:
		return TagChainCheckout, nil
	case ix.Withdraw != nil:
		return TagWithdraw, nil
	case ix.Subscribe != nil:
		return TagSubscribe, nil
	case ix.RenewSubscription != nil:
		return TagRenewSubscription, nil
	case ix.CancelSubscription != nil:
		return TagCancelSubscription, nil
	}
	return 0, ErrInvalidInstruction
}

func (ix *Instruction) payload() interface{} {
	switch {
	case ix.RegisterMerchant != nil:
		return ix.RegisterMerchant
	case ix.ExpressCheckout != nil:
		return ix.ExpressCheckout
	case ix.ChainCheckout != nil:
		return ix.ChainCheckout
	case ix.Subscribe != nil:
		return ix.Subscribe
	case ix.RenewSubscription != nil:
		return ix.RenewSubscription
	}
	return nil
}

// Pack serializes the instruction into its wire form.
func (ix *Instruction) Pack() ([]byte, error) {
	tag, err := ix.Tag()
	if err != nil {
		return nil, err
	}
	buf := new(bytes.Buffer)
	buf.WriteByte(byte(tag))
	if payload := ix.payload(); payload != nil {
		if err := bin.NewBorshEncoder(buf).Encode(payload); err != nil {
			return nil, fmt.Errorf("encode instruction: %w", err)
		}
	}
	return buf.Bytes(), nil
}

// UnpackInstruction decodes a wire instruction. An unknown tag or a malformed
// payload fails with InvalidInstruction.
func UnpackInstruction(data []byte) (*Instruction, error) {
	if len(data) == 0 {
		return nil, ErrInvalidInstruction
	}
	tag, rest := InstructionTag(data[0]), data[1:]
	ix := &Instruction{}
	var payload interface{}
	switch tag {
	case TagRegisterMerchant:
		ix.RegisterMerchant = &RegisterMerchantInstruction{}
		payload = ix.RegisterMerchant
	case TagExpressCheckout:
		ix.ExpressCheckout = &ExpressCheckoutInstruction{}
		payload = ix.ExpressCheckout
	case TagChainCheckout:
		ix.ChainCheckout = &ChainCheckoutInstruction{}
		payload = ix.ChainCheckout
	case TagWithdraw:
		ix.Withdraw = &WithdrawInstruction{}
		return ix, nil
	case TagSubscribe:
		ix.Subscribe = &SubscribeInstruction{}
		payload = ix.Subscribe
	case TagRenewSubscription:
		ix.RenewSubscription = &RenewSubscriptionInstruction{}
		payload = ix.RenewSubscription
	case TagCancelSubscription:
		ix.CancelSubscription = &CancelSubscriptionInstruction{}
		return ix, nil
	default:
		return nil, ErrInvalidInstruction
	}
	if err := bin.NewBorshDecoder(rest).Decode(payload); err != nil {
		return nil, fmt.Errorf("decode instruction payload: %w", ErrInvalidInstruction)
	}
	return ix, nil
}

// NewRegisterMerchantInstruction builds the wire data and ordered account
// references for a registration.
func NewRegisterMerchantInstruction(d Derivation, owner solana.PublicKey, payload RegisterMerchantInstruction, sponsor *solana.PublicKey) ([]byte, []*solana.AccountMeta, error) {
	seed := DefaultMerchantSeed
	if payload.Seed != nil {
		seed = *payload.Seed
	}
	merchantAddr, _, err := d.MerchantAddress(owner, seed)
	if err != nil {
		return nil, nil, err
	}
	data, err := (&Instruction{RegisterMerchant: &payload}).Pack()
	if err != nil {
		return nil, nil, err
	}
	metas := []*solana.AccountMeta{
		solana.NewAccountMeta(owner, false, true),
		solana.NewAccountMeta(merchantAddr, true, false),
	}
	if sponsor != nil {
		metas = append(metas, solana.NewAccountMeta(*sponsor, false, false))
	}
	return data, metas, nil
}

// NewExpressCheckoutInstruction builds the wire data and ordered account
// references for a checkout.
func NewExpressCheckoutInstruction(d Derivation, buyer, buyerFunding, merchant solana.PublicKey, payload ExpressCheckoutInstruction) ([]byte, []*solana.AccountMeta, error) {
	orderAddr, _, err := d.OrderAddress(merchant, payload.OrderID, buyer)
	if err != nil {
		return nil, nil, err
	}
	escrowAddr, _, err := d.EscrowAddress(orderAddr)
	if err != nil {
		return nil, nil, err
	}
	data, err := (&Instruction{ExpressCheckout: &payload}).Pack()
	if err != nil {
		return nil, nil, err
	}
	metas := []*solana.AccountMeta{
		solana.NewAccountMeta(buyer, false, true),
		solana.NewAccountMeta(buyerFunding, true, false),
		solana.NewAccountMeta(merchant, false, false),
		solana.NewAccountMeta(orderAddr, true, false),
		solana.NewAccountMeta(escrowAddr, true, false),
	}
	return data, metas, nil
}

// NewWithdrawInstruction builds the wire data and ordered account references
// for a settlement.
func NewWithdrawInstruction(caller, order, merchant, merchantDest, platformDest solana.PublicKey, sponsorDest, subscription *solana.PublicKey) ([]byte, []*solana.AccountMeta, error) {
	data, err := (&Instruction{Withdraw: &WithdrawInstruction{}}).Pack()
	if err != nil {
		return nil, nil, err
	}
	metas := []*solana.AccountMeta{
		solana.NewAccountMeta(caller, false, true),
		solana.NewAccountMeta(order, true, false),
		solana.NewAccountMeta(merchant, false, false),
		solana.NewAccountMeta(merchantDest, true, false),
		solana.NewAccountMeta(platformDest, true, false),
	}
	if sponsorDest != nil {
		metas = append(metas, solana.NewAccountMeta(*sponsorDest, true, false))
	}
	if subscription != nil {
		metas = append(metas, solana.NewAccountMeta(*subscription, false, false))
	}
	return data, metas, nil
}

// NewSubscribeInstruction builds the wire data and ordered account references
// for a subscription activation.
func NewSubscribeInstruction(d Derivation, payer, merchant, order solana.PublicKey, payload SubscribeInstruction) ([]byte, []*solana.AccountMeta, error) {
	subscriptionAddr, _, err := d.SubscriptionAddress(merchant, order)
	if err != nil {
		return nil, nil, err
	}
	data, err := (&Instruction{Subscribe: &payload}).Pack()
	if err != nil {
		return nil, nil, err
	}
	metas := []*solana.AccountMeta{
		solana.NewAccountMeta(payer, false, true),
		solana.NewAccountMeta(subscriptionAddr, true, false),
		solana.NewAccountMeta(merchant, false, false),
		solana.NewAccountMeta(order, false, false),
	}
	return data, metas, nil
}
