package commission_fee

import "github.com/shopspring/decimal"

// RateCommissionFee charges a proportional rate on the notional.
type RateCommissionFee struct {
	rate decimal.Decimal
}

func NewRateCommissionFee(rate float64) CommissionFee {
	return &RateCommissionFee{rate: decimal.NewFromFloat(rate)}
}

func (c *RateCommissionFee) Calculate(notional float64) float64 {
	fee, _ := decimal.NewFromFloat(notional).Mul(c.rate).Float64()

	return fee
}

// RateFixedCommissionFee charges a small proportional rate plus a flat fee per fill,
// the "X per ten-thousand plus broker minimum" schedule.
type RateFixedCommissionFee struct {
	ratePct decimal.Decimal
	fixed   decimal.Decimal
}

func NewRateFixedCommissionFee(ratePct float64, fixed float64) CommissionFee {
	return &RateFixedCommissionFee{
		ratePct: decimal.NewFromFloat(ratePct),
		fixed:   decimal.NewFromFloat(fixed),
	}
}

func (c *RateFixedCommissionFee) Calculate(notional float64) float64 {
	fee, _ := decimal.NewFromFloat(notional).Mul(c.ratePct).Add(c.fixed).Float64()

	return fee
}
