package processor_test

import (
	"testing"
	"time"

	solana "github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"

	processor "github.com/solpayments/solana-payment-processor"
	"github.com/solpayments/solana-payment-processor/memory"
)

// fixture wires an engine to in-memory collaborators with a controllable
// clock.
type fixture struct {
	processor *processor.Processor
	store     *memory.AccountStore
	ledger    *memory.TokenLedger
	operator  solana.PublicKey
	nowUnix   int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:    memory.NewAccountStore(),
		ledger:   memory.NewTokenLedger(processor.DefaultProgramID),
		operator: solana.NewWallet().PublicKey(),
		nowUnix:  time.Date(2021, 3, 1, 12, 0, 0, 0, time.UTC).Unix(),
	}
	f.processor = processor.NewProcessor(
		f.store,
		f.ledger,
		processor.WithPlatformOperator(f.operator),
		processor.WithClock(func() time.Time { return time.Unix(f.nowUnix, 0) }),
	)
	return f
}

func (f *fixture) advance(seconds int64) { f.nowUnix += seconds }

// fundedAccount creates a value account controlled by owner holding amount.
func (f *fixture) fundedAccount(t *testing.T, owner solana.PublicKey, amount uint64) solana.PublicKey {
	t.Helper()
	address := solana.NewWallet().PublicKey()
	require.NoError(t, f.ledger.CreateAccount(address, owner))
	if amount > 0 {
		require.NoError(t, f.ledger.Mint(address, amount))
	}
	return address
}

func (f *fixture) balance(t *testing.T, address solana.PublicKey) uint64 {
	t.Helper()
	balance, err := f.ledger.Balance(address)
	require.NoError(t, err)
	return balance
}

// registerMerchant registers a fresh merchant and returns its owner and
// derived address.
func (f *fixture) registerMerchant(t *testing.T, params processor.RegisterMerchantParams) (solana.PublicKey, solana.PublicKey) {
	t.Helper()
	if params.Owner.IsZero() {
		params.Owner = solana.NewWallet().PublicKey()
	}
	_, address, err := f.processor.RegisterMerchant(params)
	require.NoError(t, err)
	return params.Owner, address
}

// checkout runs an express checkout from a freshly funded buyer and returns
// the buyer, the order record, and the order address.
func (f *fixture) checkout(t *testing.T, merchant solana.PublicKey, amount uint64, orderID string, data string) (solana.PublicKey, *processor.OrderAccount, solana.PublicKey) {
	t.Helper()
	buyer := solana.NewWallet().PublicKey()
	funding := f.fundedAccount(t, buyer, amount)
	order, address, err := f.processor.ExpressCheckout(processor.ExpressCheckoutParams{
		Buyer:        buyer,
		BuyerFunding: funding,
		Merchant:     merchant,
		Amount:       amount,
		OrderID:      orderID,
		Secret:       "hunter2",
		Data:         data,
	})
	require.NoError(t, err)
	return buyer, order, address
}

func uint64Ptr(v uint64) *uint64 { return &v }
