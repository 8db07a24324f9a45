package processor_test

import (
	"testing"

	solana "github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	processor "github.com/solpayments/solana-payment-processor"
)

func strPtr(s string) *string { return &s }

func TestInstructionRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		ix   processor.Instruction
	}{
		{
			name: "register merchant, all fields",
			ix: processor.Instruction{RegisterMerchant: &processor.RegisterMerchantInstruction{
				Seed:   strPtr("storefront"),
				FeeBps: uint64Ptr(100),
				Data:   strPtr(`{"packages": []}`),
			}},
		},
		{
			name: "register merchant, defaults",
			ix:   processor.Instruction{RegisterMerchant: &processor.RegisterMerchantInstruction{}},
		},
		{
			name: "express checkout",
			ix: processor.Instruction{ExpressCheckout: &processor.ExpressCheckoutInstruction{
				Amount:  10_000,
				OrderID: "order-1",
				Secret:  "hunter2",
				Data:    strPtr("{}"),
			}},
		},
		{
			name: "chain checkout",
			ix: processor.Instruction{ChainCheckout: &processor.ChainCheckoutInstruction{
				Amount: 7_500,
				Items:  []processor.OrderItem{{Name: "widget", Quantity: 3}},
			}},
		},
		{
			name: "withdraw",
			ix:   processor.Instruction{Withdraw: &processor.WithdrawInstruction{}},
		},
		{
			name: "subscribe",
			ix: processor.Instruction{Subscribe: &processor.SubscribeInstruction{
				Name: "store:premium",
			}},
		},
		{
			name: "renew subscription",
			ix:   processor.Instruction{RenewSubscription: &processor.RenewSubscriptionInstruction{Quantity: 2}},
		},
		{
			name: "cancel subscription",
			ix:   processor.Instruction{CancelSubscription: &processor.CancelSubscriptionInstruction{}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := tt.ix.Pack()
			require.NoError(t, err)

			decoded, err := processor.UnpackInstruction(data)
			require.NoError(t, err)
			assert.Equal(t, &tt.ix, decoded)
		})
	}
}

func TestUnpackInstructionInvalid(t *testing.T) {
	t.Run("empty data", func(t *testing.T) {
		_, err := processor.UnpackInstruction(nil)
		assert.ErrorIs(t, err, processor.ErrInvalidInstruction)
	})

	t.Run("unknown tag", func(t *testing.T) {
		_, err := processor.UnpackInstruction([]byte{0xff})
		assert.ErrorIs(t, err, processor.ErrInvalidInstruction)
	})

	t.Run("truncated payload", func(t *testing.T) {
		_, err := processor.UnpackInstruction([]byte{byte(processor.TagExpressCheckout), 0x01})
		assert.ErrorIs(t, err, processor.ErrInvalidInstruction)
	})

	t.Run("empty union fails to pack", func(t *testing.T) {
		_, err := (&processor.Instruction{}).Pack()
		assert.ErrorIs(t, err, processor.ErrInvalidInstruction)
	})
}

func TestProcessEndToEnd(t *testing.T) {
	f := newFixture(t)
	d := f.processor.Derivation()
	owner := solana.NewWallet().PublicKey()

	// Register.
	data, metas, err := processor.NewRegisterMerchantInstruction(d, owner, processor.RegisterMerchantInstruction{}, nil)
	require.NoError(t, err)
	require.NoError(t, f.processor.Process(data, metas))
	merchantAddr := metas[1].PublicKey

	// Checkout.
	buyer := solana.NewWallet().PublicKey()
	funding := f.fundedAccount(t, buyer, 10_000)
	data, metas, err = processor.NewExpressCheckoutInstruction(d, buyer, funding, merchantAddr, processor.ExpressCheckoutInstruction{
		Amount:  10_000,
		OrderID: "order-1",
	})
	require.NoError(t, err)
	require.NoError(t, f.processor.Process(data, metas))
	orderAddr := metas[3].PublicKey

	order, err := f.processor.Order(orderAddr)
	require.NoError(t, err)
	assert.Equal(t, uint64(10_000), f.balance(t, order.Escrow))

	// Withdraw.
	merchantDest := f.fundedAccount(t, owner, 0)
	platformDest := f.fundedAccount(t, f.operator, 0)
	data, metas, err = processor.NewWithdrawInstruction(owner, orderAddr, merchantAddr, merchantDest, platformDest, nil, nil)
	require.NoError(t, err)
	require.NoError(t, f.processor.Process(data, metas))

	assert.Equal(t, uint64(9_970), f.balance(t, merchantDest))
	assert.Equal(t, uint64(30), f.balance(t, platformDest))

	settled, err := f.processor.Order(orderAddr)
	require.NoError(t, err)
	assert.Equal(t, uint8(processor.OrderWithdrawn), settled.Status)
}

func TestProcessSubscribeDispatch(t *testing.T) {
	f := newFixture(t)
	d := f.processor.Derivation()
	merchant, payer, order := subscriptionFixture(t, f, 1_000)

	data, metas, err := processor.NewSubscribeInstruction(d, payer, merchant, order, processor.SubscribeInstruction{
		Name: "basic",
	})
	require.NoError(t, err)
	require.NoError(t, f.processor.Process(data, metas))

	subscription, err := f.processor.Subscription(metas[1].PublicKey)
	require.NoError(t, err)
	assert.Equal(t, uint8(processor.SubscriptionActive), subscription.Status)
	assert.Equal(t, payer, subscription.Owner)
}

func TestProcessAccountAttributeChecks(t *testing.T) {
	f := newFixture(t)
	d := f.processor.Derivation()
	owner := solana.NewWallet().PublicKey()

	data, metas, err := processor.NewRegisterMerchantInstruction(d, owner, processor.RegisterMerchantInstruction{}, nil)
	require.NoError(t, err)

	t.Run("missing signer attribute", func(t *testing.T) {
		tampered := []*solana.AccountMeta{
			solana.NewAccountMeta(owner, false, false),
			metas[1],
		}
		assert.ErrorIs(t, f.processor.Process(data, tampered), processor.ErrUnauthorized)
	})

	t.Run("merchant account not writable", func(t *testing.T) {
		tampered := []*solana.AccountMeta{
			metas[0],
			solana.NewAccountMeta(metas[1].PublicKey, false, false),
		}
		assert.ErrorIs(t, f.processor.Process(data, tampered), processor.ErrAccountNotWritable)
	})

	t.Run("merchant address not derived from owner and seed", func(t *testing.T) {
		tampered := []*solana.AccountMeta{
			metas[0],
			solana.NewAccountMeta(solana.NewWallet().PublicKey(), true, false),
		}
		assert.ErrorIs(t, f.processor.Process(data, tampered), processor.ErrInvalidAccountData)
	})

	t.Run("account list too short", func(t *testing.T) {
		assert.ErrorIs(t, f.processor.Process(data, metas[:1]), processor.ErrInvalidAccountData)
	})
}

func TestProcessCheckoutDerivedAddressChecks(t *testing.T) {
	f := newFixture(t)
	d := f.processor.Derivation()
	_, merchant := f.registerMerchant(t, processor.RegisterMerchantParams{})

	buyer := solana.NewWallet().PublicKey()
	funding := f.fundedAccount(t, buyer, 1_000)
	data, metas, err := processor.NewExpressCheckoutInstruction(d, buyer, funding, merchant, processor.ExpressCheckoutInstruction{
		Amount:  1_000,
		OrderID: "order-1",
	})
	require.NoError(t, err)

	t.Run("order account swapped", func(t *testing.T) {
		tampered := append([]*solana.AccountMeta{}, metas...)
		tampered[3] = solana.NewAccountMeta(solana.NewWallet().PublicKey(), true, false)
		assert.ErrorIs(t, f.processor.Process(data, tampered), processor.ErrInvalidAccountData)
	})

	t.Run("escrow account swapped", func(t *testing.T) {
		tampered := append([]*solana.AccountMeta{}, metas...)
		tampered[4] = solana.NewAccountMeta(solana.NewWallet().PublicKey(), true, false)
		assert.ErrorIs(t, f.processor.Process(data, tampered), processor.ErrInvalidAccountData)
		assert.Equal(t, uint64(1_000), f.balance(t, funding))
	})
}
