package processor_test

import (
	"fmt"
	"testing"

	solana "github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	processor "github.com/solpayments/solana-payment-processor"
)

// payoutAccounts creates empty destination accounts for the recorded parties.
func payoutAccounts(t *testing.T, f *fixture, merchantOwner solana.PublicKey, sponsor *solana.PublicKey) (merchantDest, platformDest, sponsorDest solana.PublicKey) {
	t.Helper()
	merchantDest = f.fundedAccount(t, merchantOwner, 0)
	platformDest = f.fundedAccount(t, f.operator, 0)
	if sponsor != nil {
		sponsorDest = f.fundedAccount(t, *sponsor, 0)
	}
	return merchantDest, platformDest, sponsorDest
}

func TestWithdrawSponsoredSplit(t *testing.T) {
	f := newFixture(t)
	sponsor := solana.NewWallet().PublicKey()
	owner, merchant := f.registerMerchant(t, processor.RegisterMerchantParams{
		Sponsor: &sponsor,
		FeeBps:  uint64Ptr(100), // 1%
	})
	_, order, orderAddress := f.checkout(t, merchant, 10_000, "order-1", "")
	merchantDest, platformDest, sponsorDest := payoutAccounts(t, f, owner, &sponsor)

	split, err := f.processor.Withdraw(processor.WithdrawParams{
		Caller:              solana.NewWallet().PublicKey(), // settlement is permissionless
		Merchant:            merchant,
		Order:               orderAddress,
		MerchantDestination: merchantDest,
		PlatformDestination: platformDest,
		SponsorDestination:  sponsorDest,
	})
	require.NoError(t, err)

	assert.Equal(t, uint64(30), split.PlatformFee)
	assert.Equal(t, uint64(100), split.SponsorFee)
	assert.Equal(t, uint64(9_870), split.MerchantShare)

	assert.Equal(t, uint64(9_870), f.balance(t, merchantDest))
	assert.Equal(t, uint64(30), f.balance(t, platformDest))
	assert.Equal(t, uint64(100), f.balance(t, sponsorDest))
	assert.Equal(t, uint64(0), f.balance(t, order.Escrow))

	settled, err := f.processor.Order(orderAddress)
	require.NoError(t, err)
	assert.Equal(t, uint8(processor.OrderWithdrawn), settled.Status)
	assert.Equal(t, f.nowUnix, settled.Modified)
}

func TestWithdrawWithoutSponsor(t *testing.T) {
	f := newFixture(t)
	owner, merchant := f.registerMerchant(t, processor.RegisterMerchantParams{})
	_, order, orderAddress := f.checkout(t, merchant, 10_000, "order-1", "")
	merchantDest, platformDest, _ := payoutAccounts(t, f, owner, nil)

	split, err := f.processor.Withdraw(processor.WithdrawParams{
		Caller:              owner,
		Merchant:            merchant,
		Order:               orderAddress,
		MerchantDestination: merchantDest,
		PlatformDestination: platformDest,
	})
	require.NoError(t, err)

	assert.Equal(t, uint64(30), split.PlatformFee)
	assert.Zero(t, split.SponsorFee)
	assert.Equal(t, uint64(9_970), split.MerchantShare)
	assert.Equal(t, uint64(9_970), f.balance(t, merchantDest))
	assert.Equal(t, uint64(30), f.balance(t, platformDest))
	assert.Equal(t, uint64(0), f.balance(t, order.Escrow))
}

func TestWithdrawExactlyOnce(t *testing.T) {
	f := newFixture(t)
	owner, merchant := f.registerMerchant(t, processor.RegisterMerchantParams{})
	_, _, orderAddress := f.checkout(t, merchant, 10_000, "order-1", "")
	merchantDest, platformDest, _ := payoutAccounts(t, f, owner, nil)

	params := processor.WithdrawParams{
		Caller:              owner,
		Merchant:            merchant,
		Order:               orderAddress,
		MerchantDestination: merchantDest,
		PlatformDestination: platformDest,
	}
	_, err := f.processor.Withdraw(params)
	require.NoError(t, err)

	_, err = f.processor.Withdraw(params)
	assert.ErrorIs(t, err, processor.ErrOrderAlreadyWithdrawn)

	// The second attempt moved nothing.
	assert.Equal(t, uint64(9_970), f.balance(t, merchantDest))
	assert.Equal(t, uint64(30), f.balance(t, platformDest))
}

func TestWithdrawDestinationOwnership(t *testing.T) {
	f := newFixture(t)
	sponsor := solana.NewWallet().PublicKey()
	owner, merchant := f.registerMerchant(t, processor.RegisterMerchantParams{
		Sponsor: &sponsor,
		FeeBps:  uint64Ptr(100),
	})
	_, order, orderAddress := f.checkout(t, merchant, 10_000, "order-1", "")
	merchantDest, platformDest, sponsorDest := payoutAccounts(t, f, owner, &sponsor)
	stranger := f.fundedAccount(t, solana.NewWallet().PublicKey(), 0)

	good := processor.WithdrawParams{
		Caller:              owner,
		Merchant:            merchant,
		Order:               orderAddress,
		MerchantDestination: merchantDest,
		PlatformDestination: platformDest,
		SponsorDestination:  sponsorDest,
	}
	for name, mutate := range map[string]func(*processor.WithdrawParams){
		"merchant": func(p *processor.WithdrawParams) { p.MerchantDestination = stranger },
		"platform": func(p *processor.WithdrawParams) { p.PlatformDestination = stranger },
		"sponsor":  func(p *processor.WithdrawParams) { p.SponsorDestination = stranger },
	} {
		t.Run(fmt.Sprintf("%s destination hijacked", name), func(t *testing.T) {
			params := good
			mutate(&params)
			_, err := f.processor.Withdraw(params)
			assert.ErrorIs(t, err, processor.ErrInvalidAccountOwner)
			assert.Equal(t, uint64(10_000), f.balance(t, order.Escrow))
			assert.Equal(t, uint64(0), f.balance(t, stranger))
		})
	}
}

func TestWithdrawEscrowMismatch(t *testing.T) {
	f := newFixture(t)
	owner, merchant := f.registerMerchant(t, processor.RegisterMerchantParams{})
	_, order, orderAddress := f.checkout(t, merchant, 10_000, "order-1", "")
	merchantDest, platformDest, _ := payoutAccounts(t, f, owner, nil)

	// Escrow balance drifting from the recorded amount aborts settlement.
	require.NoError(t, f.ledger.Mint(order.Escrow, 1))

	_, err := f.processor.Withdraw(processor.WithdrawParams{
		Caller:              owner,
		Merchant:            merchant,
		Order:               orderAddress,
		MerchantDestination: merchantDest,
		PlatformDestination: platformDest,
	})
	assert.ErrorIs(t, err, processor.ErrEscrowMismatch)
	assert.Equal(t, uint64(10_001), f.balance(t, order.Escrow))
}

func TestWithdrawFeePolicyInvalid(t *testing.T) {
	f := newFixture(t)
	sponsor := solana.NewWallet().PublicKey()
	owner, merchant := f.registerMerchant(t, processor.RegisterMerchantParams{
		Sponsor: &sponsor,
		FeeBps:  uint64Ptr(10_000), // 100% sponsor commission cannot coexist with the platform fee
	})
	_, order, orderAddress := f.checkout(t, merchant, 10_000, "order-1", "")
	merchantDest, platformDest, sponsorDest := payoutAccounts(t, f, owner, &sponsor)

	_, err := f.processor.Withdraw(processor.WithdrawParams{
		Caller:              owner,
		Merchant:            merchant,
		Order:               orderAddress,
		MerchantDestination: merchantDest,
		PlatformDestination: platformDest,
		SponsorDestination:  sponsorDest,
	})
	assert.ErrorIs(t, err, processor.ErrFeePolicyInvalid)
	assert.Equal(t, uint64(10_000), f.balance(t, order.Escrow))
}

func TestWithdrawWrongMerchant(t *testing.T) {
	f := newFixture(t)
	owner, merchant := f.registerMerchant(t, processor.RegisterMerchantParams{})
	_, otherMerchant := f.registerMerchant(t, processor.RegisterMerchantParams{})
	_, _, orderAddress := f.checkout(t, merchant, 10_000, "order-1", "")
	merchantDest, platformDest, _ := payoutAccounts(t, f, owner, nil)

	_, err := f.processor.Withdraw(processor.WithdrawParams{
		Caller:              owner,
		Merchant:            otherMerchant,
		Order:               orderAddress,
		MerchantDestination: merchantDest,
		PlatformDestination: platformDest,
	})
	assert.ErrorIs(t, err, processor.ErrWrongOrderAccount)
}

// trialWithdrawFixture pays for a trial subscription with the subscription
// link recorded in the order data, the way a checkout that funds a
// subscription is expected to.
func trialWithdrawFixture(t *testing.T, f *fixture) (owner, merchant, orderAddress, subAddress solana.PublicKey) {
	t.Helper()
	owner, merchant = f.registerMerchant(t, processor.RegisterMerchantParams{Data: subscriptionMerchantData})

	buyer := solana.NewWallet().PublicKey()
	funding := f.fundedAccount(t, buyer, 5_000)

	d := processor.Derivation{ProgramID: processor.DefaultProgramID}
	derivedOrder, _, err := d.OrderAddress(merchant, "trial-order", buyer)
	require.NoError(t, err)
	derivedSub, _, err := d.SubscriptionAddress(merchant, derivedOrder)
	require.NoError(t, err)

	_, orderAddress, err = f.processor.ExpressCheckout(processor.ExpressCheckoutParams{
		Buyer:        buyer,
		BuyerFunding: funding,
		Merchant:     merchant,
		Amount:       5_000,
		OrderID:      "trial-order",
		Data:         fmt.Sprintf(`{"subscription": %q}`, derivedSub.String()),
	})
	require.NoError(t, err)
	require.Equal(t, derivedOrder, orderAddress)

	_, subAddress, err = f.processor.Subscribe(processor.SubscribeParams{
		Payer:    buyer,
		Merchant: merchant,
		Order:    orderAddress,
		Name:     "premium",
	})
	require.NoError(t, err)
	require.Equal(t, derivedSub, subAddress)
	return owner, merchant, orderAddress, subAddress
}

func TestWithdrawDuringTrial(t *testing.T) {
	f := newFixture(t)
	owner, merchant, orderAddress, subAddress := trialWithdrawFixture(t, f)
	merchantDest, platformDest, _ := payoutAccounts(t, f, owner, nil)

	params := processor.WithdrawParams{
		Caller:              owner,
		Merchant:            merchant,
		Order:               orderAddress,
		MerchantDestination: merchantDest,
		PlatformDestination: platformDest,
		Subscription:        &subAddress,
	}

	// Inside the week-long trial the escrow stays locked for refunds.
	f.advance(3_600)
	_, err := f.processor.Withdraw(params)
	assert.ErrorIs(t, err, processor.ErrWithdrawalDuringTrial)

	// Once the trial elapses settlement proceeds.
	f.advance(604_800)
	split, err := f.processor.Withdraw(params)
	require.NoError(t, err)
	assert.Equal(t, uint64(5_000), split.PlatformFee+split.SponsorFee+split.MerchantShare)
}

func TestWithdrawTrialGuardIgnoresOrderData(t *testing.T) {
	f := newFixture(t)
	owner, merchant := f.registerMerchant(t, processor.RegisterMerchantParams{Data: subscriptionMerchantData})

	// Checkout data never mentions the subscription; the guard must find it by
	// derivation anyway.
	payer, order, orderAddress := f.checkout(t, merchant, 5_000, "trial-order", "")
	_, subAddress, err := f.processor.Subscribe(processor.SubscribeParams{
		Payer:    payer,
		Merchant: merchant,
		Order:    orderAddress,
		Name:     "premium",
	})
	require.NoError(t, err)

	merchantDest, platformDest, _ := payoutAccounts(t, f, owner, nil)
	params := processor.WithdrawParams{
		Caller:              owner,
		Merchant:            merchant,
		Order:               orderAddress,
		MerchantDestination: merchantDest,
		PlatformDestination: platformDest,
		Subscription:        &subAddress,
	}

	_, err = f.processor.Withdraw(params)
	assert.ErrorIs(t, err, processor.ErrWithdrawalDuringTrial)

	// Omitting the subscription account does not dodge the guard either.
	params.Subscription = nil
	_, err = f.processor.Withdraw(params)
	assert.ErrorIs(t, err, processor.ErrWithdrawalDuringTrial)
	assert.Equal(t, uint64(5_000), f.balance(t, order.Escrow))

	f.advance(604_800 + 1)
	_, err = f.processor.Withdraw(params)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), f.balance(t, order.Escrow))
}

func TestWithdrawTrialAccountChecks(t *testing.T) {
	f := newFixture(t)
	owner, merchant, orderAddress, _ := trialWithdrawFixture(t, f)
	merchantDest, platformDest, _ := payoutAccounts(t, f, owner, nil)

	base := processor.WithdrawParams{
		Caller:              owner,
		Merchant:            merchant,
		Order:               orderAddress,
		MerchantDestination: merchantDest,
		PlatformDestination: platformDest,
	}

	t.Run("guard applies without the subscription account", func(t *testing.T) {
		_, err := f.processor.Withdraw(base)
		assert.ErrorIs(t, err, processor.ErrWithdrawalDuringTrial)
	})

	t.Run("mismatched subscription account", func(t *testing.T) {
		params := base
		wrong := solana.NewWallet().PublicKey()
		params.Subscription = &wrong
		_, err := f.processor.Withdraw(params)
		assert.ErrorIs(t, err, processor.ErrWrongOrderAccount)
	})
}
