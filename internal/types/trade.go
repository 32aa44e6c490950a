package types

import (
	"time"

	"github.com/shopspring/decimal"
)

type PurchaseType string

const (
	PurchaseTypeBuy  PurchaseType = "BUY"
	PurchaseTypeSell PurchaseType = "SELL"
)

// Trade is one executed fill. Trades are appended to the portfolio's trade
// log and never modified afterwards.
type Trade struct {
	Time   time.Time    `yaml:"date" json:"date" csv:"date"`
	Symbol string       `yaml:"code" json:"code" csv:"code"`
	Side   PurchaseType `yaml:"side" json:"side" csv:"side"`
	Price  float64      `yaml:"price" json:"price" csv:"price"`
	Shares int64        `yaml:"shares" json:"shares" csv:"shares"`
	// Amount is price times shares.
	Amount float64 `yaml:"amount" json:"amount" csv:"amount"`
	Fee    float64 `yaml:"fee" json:"fee" csv:"fee"`
}

// CashFlow is the signed cash impact of the trade: buys spend amount plus
// fee, sells bring in amount minus fee.
func (t Trade) CashFlow() decimal.Decimal {
	amount := decimal.NewFromFloat(t.Price).Mul(decimal.NewFromInt(t.Shares))
	fee := decimal.NewFromFloat(t.Fee)

	if t.Side == PurchaseTypeBuy {
		return amount.Add(fee).Neg()
	}

	return amount.Sub(fee)
}

// NetCashFlow sums CashFlow over trades.
func NetCashFlow(trades []Trade) decimal.Decimal {
	total := decimal.Zero
	for _, t := range trades {
		total = total.Add(t.CashFlow())
	}

	return total
}
