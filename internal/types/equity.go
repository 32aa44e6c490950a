package types

import (
	"time"

	"github.com/moznion/go-optional"
)

// EquityPoint is one row of the equity curve, recorded once per session day.
type EquityPoint struct {
	Time  time.Time `yaml:"date" json:"date" csv:"date"`
	Total float64   `yaml:"total" json:"total" csv:"total"`
	Cash  float64   `yaml:"cash" json:"cash" csv:"cash"`
}

// DailyPnL is one row of the daily P&L table. PnL excludes the cash moved by
// the day's trades so it only reflects price changes and fees.
type DailyPnL struct {
	Time   time.Time `yaml:"date" json:"date" csv:"date"`
	PnL    float64   `yaml:"pnl" json:"pnl" csv:"pnl"`
	Return float64   `yaml:"return" json:"return" csv:"return"`
	Total  float64   `yaml:"total" json:"total" csv:"total"`
}

// Drawdown describes the deepest peak-to-trough decline of an equity curve.
type Drawdown struct {
	MaxDrawdown  float64
	Start        optional.Option[time.Time]
	End          optional.Option[time.Time]
	DurationDays int
}
