package types

import (
	"fmt"
	"os"
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-ashare/internal/utils"
	"gopkg.in/yaml.v3"
)

// BacktestResult is everything a single run produces. When the run was
// halted by the risk manager the tables contain the data accumulated up to
// the halting bar.
type BacktestResult struct {
	RunID        string
	StrategyName string
	InitialCash  float64
	FinalValue   float64
	TotalReturn  float64
	Drawdown     Drawdown
	// Intraday is true when the replay ran over sub-daily bars.
	Intraday bool
	Halted   bool
	HaltedAt optional.Option[time.Time]
	// UnpricedValuations counts valuations in which a held instrument had no
	// cached price and was marked at zero.
	UnpricedValuations int
	Trades             []Trade
	EquityCurve        []EquityPoint
	DailyPnL           []DailyPnL
}

// TotalFees sums the fee of every trade.
func (r *BacktestResult) TotalFees() float64 {
	total := 0.0
	for _, t := range r.Trades {
		total += t.Fee
	}

	return total
}

// DrawdownStats is the drawdown block of stats.yaml.
type DrawdownStats struct {
	MaxDrawdown  float64 `yaml:"max_drawdown" json:"max_drawdown"`
	Start        string  `yaml:"drawdown_start,omitempty" json:"drawdown_start,omitempty"`
	End          string  `yaml:"drawdown_end,omitempty" json:"drawdown_end,omitempty"`
	DurationDays int     `yaml:"drawdown_duration_days" json:"drawdown_duration_days"`
}

// BacktestStats is the summary written next to the result tables.
type BacktestStats struct {
	// ID is the unique identifier for this backtest run.
	ID string `yaml:"id" json:"id"`
	// Timestamp is when the stats were produced.
	Timestamp      time.Time     `yaml:"timestamp" json:"timestamp"`
	Strategy       string        `yaml:"strategy" json:"strategy"`
	InitialCash    float64       `yaml:"initial_cash" json:"initial_cash"`
	FinalValue     float64       `yaml:"final_value" json:"final_value"`
	TotalReturn    float64       `yaml:"total_return" json:"total_return"`
	Drawdown       DrawdownStats `yaml:"drawdown" json:"drawdown"`
	NumberOfTrades int           `yaml:"number_of_trades" json:"number_of_trades"`
	TotalFees      float64       `yaml:"total_fees" json:"total_fees"`
	TradingDays    int           `yaml:"trading_days" json:"trading_days"`
	Halted         bool          `yaml:"halted" json:"halted"`
	HaltedAt       string        `yaml:"halted_at,omitempty" json:"halted_at,omitempty"`
	// UnpricedValuations is non-zero when some position was valued at zero
	// for lack of a price.
	UnpricedValuations int `yaml:"unpriced_valuations" json:"unpriced_valuations"`
	// File paths of the exported tables, relative to the result folder.
	TradesFilePath string `yaml:"trades_file_path,omitempty" json:"trades_file_path,omitempty"`
	EquityFilePath string `yaml:"equity_file_path,omitempty" json:"equity_file_path,omitempty"`
	PnLFilePath    string `yaml:"pnl_file_path,omitempty" json:"pnl_file_path,omitempty"`
}

// NewBacktestStats condenses a result into its summary.
func NewBacktestStats(result *BacktestResult, now time.Time) BacktestStats {
	stats := BacktestStats{
		ID:          result.RunID,
		Timestamp:   now,
		Strategy:    result.StrategyName,
		InitialCash: result.InitialCash,
		FinalValue:  result.FinalValue,
		TotalReturn: result.TotalReturn,
		Drawdown: DrawdownStats{
			MaxDrawdown:  result.Drawdown.MaxDrawdown,
			DurationDays: result.Drawdown.DurationDays,
		},
		NumberOfTrades:     len(result.Trades),
		TotalFees:          result.TotalFees(),
		TradingDays:        len(result.EquityCurve),
		Halted:             result.Halted,
		UnpricedValuations: result.UnpricedValuations,
	}

	if start, err := result.Drawdown.Start.Take(); err == nil {
		stats.Drawdown.Start = utils.FormatBarTime(start, result.Intraday)
	}

	if end, err := result.Drawdown.End.Take(); err == nil {
		stats.Drawdown.End = utils.FormatBarTime(end, result.Intraday)
	}

	if haltedAt, err := result.HaltedAt.Take(); err == nil {
		stats.HaltedAt = utils.FormatBarTime(haltedAt, result.Intraday)
	}

	return stats
}

// WriteBacktestStats writes stats as YAML to path.
func WriteBacktestStats(path string, stats BacktestStats) error {
	data, err := yaml.Marshal(stats)
	if err != nil {
		return fmt.Errorf("failed to marshal backtest stats to YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write backtest stats to file: %w", err)
	}

	return nil
}
