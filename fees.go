package processor

import "math/big"

const bpsDenominator = 10_000

// FeeSplit is the settlement outcome for one order. The three parts always sum
// to the original amount: floor rounding remainders stay with the merchant.
type FeeSplit struct {
	PlatformFee   uint64
	SponsorFee    uint64
	MerchantShare uint64
}

// feeOf computes floor(amount * bps / 10000). The multiply is done in big.Int
// to avoid 64-bit overflow on large amounts; a quotient beyond the uint64
// range is reported rather than truncated.
func feeOf(amount, bps uint64) (uint64, bool) {
	fee := new(big.Int).Mul(new(big.Int).SetUint64(amount), new(big.Int).SetUint64(bps))
	fee.Div(fee, big.NewInt(bpsDenominator))
	if !fee.IsUint64() {
		return 0, false
	}
	return fee.Uint64(), true
}

// SplitAmount computes the deterministic three-way split for an order amount.
// sponsorBps is ignored unless hasSponsor is set. When the configured rates
// leave the merchant a negative share the split fails with FeePolicyInvalid
// rather than clamping.
func SplitAmount(amount uint64, sponsorBps uint64, hasSponsor bool) (FeeSplit, error) {
	platformFee, ok := feeOf(amount, PlatformFeeBps)
	if !ok {
		return FeeSplit{}, ErrFeePolicyInvalid
	}
	var sponsorFee uint64
	if hasSponsor {
		sponsorFee, ok = feeOf(amount, sponsorBps)
		if !ok {
			return FeeSplit{}, ErrFeePolicyInvalid
		}
	}
	if platformFee > amount || sponsorFee > amount-platformFee {
		return FeeSplit{}, ErrFeePolicyInvalid
	}
	return FeeSplit{
		PlatformFee:   platformFee,
		SponsorFee:    sponsorFee,
		MerchantShare: amount - platformFee - sponsorFee,
	}, nil
}
