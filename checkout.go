package processor

import (
	"encoding/json"
	"fmt"
	"strconv"

	solana "github.com/gagliardetto/solana-go"
)

// ExpressCheckoutParams carries the inputs of a checkout. Buyer is the
// authorizing signer; BuyerFunding is the value account the payment is drawn
// from and must be controlled by the buyer.
type ExpressCheckoutParams struct {
	Buyer        solana.PublicKey
	BuyerFunding solana.PublicKey
	Merchant     solana.PublicKey
	Amount       uint64
	OrderID      string
	Secret       string
	Data         string
}

// ExpressCheckout atomically moves Amount from the buyer's funding account
// into a freshly derived escrow and records the order as Paid. The escrow's
// only spending authority is the derived authority for (merchant, order) —
// never a human key. Validation precedes every mutation so a failed checkout
// leaves no trace.
func (p *Processor) ExpressCheckout(params ExpressCheckoutParams) (*OrderAccount, solana.PublicKey, error) {
	if params.Buyer.IsZero() {
		return nil, solana.PublicKey{}, fmt.Errorf("express checkout: %w", ErrUnauthorized)
	}
	if params.Amount == 0 {
		return nil, solana.PublicKey{}, ErrInvalidAmount
	}
	if params.OrderID == "" {
		return nil, solana.PublicKey{}, ErrInvalidOrderID
	}

	if _, err := p.loadMerchant(params.Merchant); err != nil {
		return nil, solana.PublicKey{}, fmt.Errorf("express checkout: %w", err)
	}

	orderAddress, _, err := p.Derivation().OrderAddress(params.Merchant, params.OrderID, params.Buyer)
	if err != nil {
		return nil, solana.PublicKey{}, fmt.Errorf("derive order address: %w", err)
	}
	if _, exists := p.store.Get(orderAddress); exists {
		return nil, solana.PublicKey{}, ErrDuplicateOrder
	}

	fundingOwner, err := p.ledger.Owner(params.BuyerFunding)
	if err != nil {
		return nil, solana.PublicKey{}, fmt.Errorf("buyer funding: %w", err)
	}
	if !fundingOwner.Equals(params.Buyer) {
		return nil, solana.PublicKey{}, fmt.Errorf("buyer funding: %w", ErrUnauthorized)
	}
	balance, err := p.ledger.Balance(params.BuyerFunding)
	if err != nil {
		return nil, solana.PublicKey{}, fmt.Errorf("buyer funding: %w", err)
	}
	if balance < params.Amount {
		return nil, solana.PublicKey{}, ErrInsufficientFunds
	}

	escrowAddress, _, err := p.Derivation().EscrowAddress(orderAddress)
	if err != nil {
		return nil, solana.PublicKey{}, fmt.Errorf("derive escrow address: %w", err)
	}
	authority, err := p.Derivation().EscrowAuthority(params.Merchant, orderAddress)
	if err != nil {
		return nil, solana.PublicKey{}, fmt.Errorf("derive escrow authority: %w", err)
	}

	if err := p.ledger.CreateAccount(escrowAddress, authority.Address); err != nil {
		return nil, solana.PublicKey{}, fmt.Errorf("create escrow: %w", err)
	}
	if err := p.ledger.Transfer(params.BuyerFunding, escrowAddress, params.Amount, WalletAuthority(params.Buyer)); err != nil {
		return nil, solana.PublicKey{}, fmt.Errorf("fund escrow: %w", err)
	}

	data := params.Data
	if data == "" {
		data = DefaultAccountData
	}
	now := p.now()
	order := &OrderAccount{
		Status:         uint8(OrderPaid),
		Created:        now,
		Modified:       now,
		Merchant:       params.Merchant,
		Payer:          params.Buyer,
		Escrow:         escrowAddress,
		ExpectedAmount: params.Amount,
		PaidAmount:     params.Amount,
		OrderID:        params.OrderID,
		Secret:         params.Secret,
		Data:           data,
	}
	if err := p.createAccount(orderAddress, order); err != nil {
		return nil, solana.PublicKey{}, fmt.Errorf("create order: %w", err)
	}
	return order, orderAddress, nil
}

// ChainCheckoutParams carries the inputs of an itemized checkout. The order id
// is generated from the current timestamp and the item list is recorded into
// the order data for reconciliation.
type ChainCheckoutParams struct {
	Buyer        solana.PublicKey
	BuyerFunding solana.PublicKey
	Merchant     solana.PublicKey
	Amount       uint64
	Items        []OrderItem
	Data         string
}

// OrderItem is one line of an itemized checkout.
type OrderItem struct {
	Name     string `json:"name"`
	Quantity uint64 `json:"quantity"`
}

type chainOrderData struct {
	Items []OrderItem `json:"items"`
	Data  string      `json:"data,omitempty"`
}

// ChainCheckout is ExpressCheckout with an engine-generated order id and an
// item manifest folded into the order data.
func (p *Processor) ChainCheckout(params ChainCheckoutParams) (*OrderAccount, solana.PublicKey, error) {
	manifest, err := json.Marshal(chainOrderData{Items: params.Items, Data: params.Data})
	if err != nil {
		return nil, solana.PublicKey{}, fmt.Errorf("encode order items: %w", err)
	}
	return p.ExpressCheckout(ExpressCheckoutParams{
		Buyer:        params.Buyer,
		BuyerFunding: params.BuyerFunding,
		Merchant:     params.Merchant,
		Amount:       params.Amount,
		OrderID:      strconv.FormatInt(p.now(), 10),
		Data:         string(manifest),
	})
}
