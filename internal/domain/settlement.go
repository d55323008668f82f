package domain

// BpsDenominator is the basis-point scale used for all fee arithmetic.
const BpsDenominator = 10_000

// FeePolicy holds the fixed settlement constants: the platform cut and the
// merchant's share of the net, both in basis points.
type FeePolicy struct {
	FeeRateBps       uint64
	MerchantShareBps uint64
}

// Settlement is the three-way split of an order's escrowed amount. By
// construction PlatformFee + MerchantPayout + RiderPayout equals the amount
// exactly; truncation from integer division lands in the rider payout.
type Settlement struct {
	PlatformFee    uint64
	MerchantPayout uint64
	RiderPayout    uint64
}

// Split computes the settlement for an escrowed amount. Division truncates
// toward zero.
func (p FeePolicy) Split(amount uint64) Settlement {
	fee := amount * p.FeeRateBps / BpsDenominator
	net := amount - fee
	merchant := net * p.MerchantShareBps / BpsDenominator
	return Settlement{
		PlatformFee:    fee,
		MerchantPayout: merchant,
		RiderPayout:    net - merchant,
	}
}

// Total returns the sum of all three legs.
func (s Settlement) Total() uint64 {
	return s.PlatformFee + s.MerchantPayout + s.RiderPayout
}
