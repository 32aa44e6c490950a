package engine

import (
	"maps"
	"slices"
	"strconv"
	"time"

	"github.com/rxtech-lab/argo-ashare/internal/backtest/engine/engine_v1/commission_fee"
	"github.com/rxtech-lab/argo-ashare/internal/backtest/engine/engine_v1/risk"
	"github.com/rxtech-lab/argo-ashare/internal/log"
	"github.com/rxtech-lab/argo-ashare/internal/logger"
	"github.com/rxtech-lab/argo-ashare/internal/types"
	"github.com/rxtech-lab/argo-ashare/internal/utils"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Portfolio owns the cash, the two T+1 position books, the price cache and
// the append-only trade, equity and P&L logs of one backtest run.
//
// Shares bought during a session day land in the pending book and become
// sellable only after OnNewDay. Sells draw on the settled book alone.
type Portfolio struct {
	initialCash float64
	cash        decimal.Decimal
	settled     map[string]int64
	pending     map[string]int64
	prices      map[string]float64
	avgCost     map[string]float64

	trades      []types.Trade
	equityCurve []types.EquityPoint
	dailyPnL    []types.DailyPnL
	lastTotal   float64

	unpricedValuations int
	unpricedWarned     map[string]bool

	commission commission_fee.CommissionFee
	events     log.Log
	logger     *logger.Logger
}

// NewPortfolio creates a portfolio holding only initialCash. events may be nil.
func NewPortfolio(initialCash float64, commission commission_fee.CommissionFee, portfolioLogger *logger.Logger, events log.Log) *Portfolio {
	if portfolioLogger == nil {
		portfolioLogger = logger.NewNopLogger()
	}

	if commission == nil {
		commission = commission_fee.NewZeroCommissionFee()
	}

	return &Portfolio{
		initialCash:        initialCash,
		cash:               decimal.NewFromFloat(initialCash),
		settled:            make(map[string]int64),
		pending:            make(map[string]int64),
		prices:             make(map[string]float64),
		avgCost:            make(map[string]float64),
		trades:             nil,
		equityCurve:        nil,
		dailyPnL:           nil,
		lastTotal:          initialCash,
		unpricedValuations: 0,
		unpricedWarned:     make(map[string]bool),
		commission:         commission,
		events:             events,
		logger:             portfolioLogger,
	}
}

// UpdatePrice caches the latest close of symbol. Non-positive prices are
// logged and ignored.
func (p *Portfolio) UpdatePrice(symbol string, price float64, ts time.Time) {
	if price <= 0 {
		p.logger.Warn("Invalid price ignored",
			logger.BarTime(ts),
			zap.String("symbol", symbol),
			zap.Float64("price", price),
		)
		p.journal(ts, symbol, types.LogLevelWarn, "invalid price ignored", map[string]string{
			"price": strconv.FormatFloat(price, 'f', -1, 64),
		})

		return
	}

	p.prices[symbol] = price
}

// TotalValue is cash plus every settled and pending position marked at its
// cached price. A held instrument without a cached price is marked at zero and
// counted in UnpricedValuations.
func (p *Portfolio) TotalValue() float64 {
	total := p.cash
	unpriced := false

	for _, book := range []map[string]int64{p.settled, p.pending} {
		for symbol, shares := range book {
			price, ok := p.prices[symbol]
			if !ok {
				unpriced = true

				if !p.unpricedWarned[symbol] {
					p.unpricedWarned[symbol] = true
					p.logger.Warn("Position has no price and is valued at zero",
						zap.String("symbol", symbol),
						zap.Int64("shares", shares),
					)
				}

				continue
			}

			total = total.Add(decimal.NewFromFloat(price).Mul(decimal.NewFromInt(shares)))
		}
	}

	if unpriced {
		p.unpricedValuations++
	}

	return total.InexactFloat64()
}

// OnNewDay moves every pending position into the settled book. Call it exactly
// once per session day before any trading on that day.
func (p *Portfolio) OnNewDay() {
	for symbol, shares := range p.pending {
		p.settled[symbol] += shares
	}

	clear(p.pending)
}

// Rebalance moves each instrument toward its target weight of the current
// total value. Sells run before buys so their proceeds fund the buys, each
// pass in symbol order. Orders are either filled in full at the cached price
// or skipped. It returns the trades executed.
func (p *Portfolio) Rebalance(ts time.Time, weights map[string]float64, riskManager *risk.RiskManager) []types.Trade {
	totalValue := p.TotalValue()

	var executed []types.Trade

	diffs := make(map[string]int64, len(weights))

	for _, symbol := range slices.Sorted(maps.Keys(weights)) {
		weight := riskManager.CapPosition(weights[symbol])

		price, ok := p.prices[symbol]
		if !ok || price <= 0 {
			p.logger.Warn("No valid price, skipping rebalance",
				logger.BarTime(ts),
				zap.String("symbol", symbol),
			)
			p.journal(ts, symbol, types.LogLevelWarn, "no valid price, rebalance skipped", nil)

			continue
		}

		target := utils.TargetShares(totalValue, weight, price)
		diffs[symbol] = target - (p.settled[symbol] + p.pending[symbol])
	}

	for _, symbol := range slices.Sorted(maps.Keys(diffs)) {
		if diff := diffs[symbol]; diff < 0 {
			if trade, ok := p.sell(ts, symbol, p.prices[symbol], -diff); ok {
				executed = append(executed, trade)
			}
		}
	}

	for _, symbol := range slices.Sorted(maps.Keys(diffs)) {
		if diff := diffs[symbol]; diff > 0 {
			if trade, ok := p.buy(ts, symbol, p.prices[symbol], diff); ok {
				executed = append(executed, trade)
			}
		}
	}

	return executed
}

func (p *Portfolio) sell(ts time.Time, symbol string, price float64, want int64) (types.Trade, bool) {
	quantity := min(want, p.settled[symbol])
	if quantity <= 0 {
		p.logger.Debug("Nothing sellable under T+1",
			logger.BarTime(ts),
			zap.String("symbol", symbol),
			zap.Int64("requested", want),
			zap.Int64("pending", p.pending[symbol]),
		)
		p.journal(ts, symbol, types.LogLevelInfo, "sell skipped, no settled shares", map[string]string{
			"requested": strconv.FormatInt(want, 10),
		})

		return types.Trade{}, false
	}

	proceeds := decimal.NewFromFloat(price).Mul(decimal.NewFromInt(quantity))
	fee := p.commission.Calculate(proceeds.InexactFloat64())

	p.cash = p.cash.Add(proceeds).Sub(decimal.NewFromFloat(fee))

	p.settled[symbol] -= quantity
	if p.settled[symbol] == 0 {
		delete(p.settled, symbol)
	}

	if p.settled[symbol]+p.pending[symbol] == 0 {
		delete(p.avgCost, symbol)
	}

	return p.record(types.Trade{
		Time:   ts,
		Symbol: symbol,
		Side:   types.PurchaseTypeSell,
		Price:  price,
		Shares: quantity,
		Amount: proceeds.InexactFloat64(),
		Fee:    fee,
	}), true
}

func (p *Portfolio) buy(ts time.Time, symbol string, price float64, quantity int64) (types.Trade, bool) {
	cost := decimal.NewFromFloat(price).Mul(decimal.NewFromInt(quantity))
	fee := p.commission.Calculate(cost.InexactFloat64())
	required := cost.Add(decimal.NewFromFloat(fee))

	if p.cash.LessThan(required) {
		p.logger.Warn("Insufficient cash, buy rejected",
			logger.BarTime(ts),
			zap.String("symbol", symbol),
			zap.Int64("shares", quantity),
			zap.String("required", required.String()),
			zap.String("cash", p.cash.String()),
		)
		p.journal(ts, symbol, types.LogLevelWarn, "buy rejected, insufficient cash", map[string]string{
			"shares":   strconv.FormatInt(quantity, 10),
			"required": required.String(),
			"cash":     p.cash.String(),
		})

		return types.Trade{}, false
	}

	held := p.settled[symbol] + p.pending[symbol]
	previousCost := decimal.NewFromFloat(p.avgCost[symbol]).Mul(decimal.NewFromInt(held))
	p.avgCost[symbol] = previousCost.Add(cost).Div(decimal.NewFromInt(held + quantity)).InexactFloat64()

	p.cash = p.cash.Sub(required)
	p.pending[symbol] += quantity

	return p.record(types.Trade{
		Time:   ts,
		Symbol: symbol,
		Side:   types.PurchaseTypeBuy,
		Price:  price,
		Shares: quantity,
		Amount: cost.InexactFloat64(),
		Fee:    fee,
	}), true
}

func (p *Portfolio) record(trade types.Trade) types.Trade {
	p.trades = append(p.trades, trade)

	p.logger.Debug("Trade executed",
		logger.BarTime(trade.Time),
		zap.String("symbol", trade.Symbol),
		zap.String("side", string(trade.Side)),
		zap.Int64("shares", trade.Shares),
		zap.Float64("price", trade.Price),
		zap.Float64("fee", trade.Fee),
	)

	return trade
}

// RecordDaily appends one equity point and one P&L point for the session day
// ending at ts. The P&L excludes the net cash flow of trades so it reflects
// price moves and fees only. Calling it twice for the same day counts that
// day twice.
func (p *Portfolio) RecordDaily(ts time.Time, trades []types.Trade) {
	total := p.TotalValue()
	cashFlow := types.NetCashFlow(trades)

	pnl := decimal.NewFromFloat(total).
		Sub(decimal.NewFromFloat(p.lastTotal)).
		Sub(cashFlow)

	ret := 0.0
	if p.lastTotal > 0 {
		ret = pnl.Div(decimal.NewFromFloat(p.lastTotal)).InexactFloat64()
	}

	p.equityCurve = append(p.equityCurve, types.EquityPoint{
		Time:  ts,
		Total: total,
		Cash:  p.Cash(),
	})
	p.dailyPnL = append(p.dailyPnL, types.DailyPnL{
		Time:   ts,
		PnL:    pnl.InexactFloat64(),
		Return: ret,
		Total:  total,
	})

	p.lastTotal = total
}

// Snapshot copies the current state for a scheduled callback.
func (p *Portfolio) Snapshot(ts time.Time) types.Snapshot {
	return types.Snapshot{
		Time:       ts,
		Cash:       p.Cash(),
		TotalValue: p.TotalValue(),
		Settled:    maps.Clone(p.settled),
		Pending:    maps.Clone(p.pending),
		Prices:     maps.Clone(p.prices),
	}
}

func (p *Portfolio) journal(ts time.Time, symbol string, level types.LogLevel, message string, fields map[string]string) {
	if p.events == nil {
		return
	}

	if err := p.events.Log(log.LogEntry{
		Timestamp: ts,
		Symbol:    symbol,
		Level:     level,
		Message:   message,
		Fields:    fields,
	}); err != nil {
		p.logger.Error("Failed to journal event", zap.Error(err))
	}
}

func (p *Portfolio) InitialCash() float64 {
	return p.initialCash
}

func (p *Portfolio) Cash() float64 {
	return p.cash.InexactFloat64()
}

// Settled returns a copy of the sellable position book.
func (p *Portfolio) Settled() map[string]int64 {
	return maps.Clone(p.settled)
}

// Pending returns a copy of today's frozen purchases.
func (p *Portfolio) Pending() map[string]int64 {
	return maps.Clone(p.pending)
}

func (p *Portfolio) Price(symbol string) (float64, bool) {
	price, ok := p.prices[symbol]

	return price, ok
}

// AverageCost returns the weighted-average purchase price of an open position.
func (p *Portfolio) AverageCost(symbol string) (float64, bool) {
	cost, ok := p.avgCost[symbol]

	return cost, ok
}

// Held returns every instrument with settled or pending shares, sorted.
func (p *Portfolio) Held() []string {
	symbols := make(map[string]struct{}, len(p.settled)+len(p.pending))
	for symbol := range p.settled {
		symbols[symbol] = struct{}{}
	}

	for symbol := range p.pending {
		symbols[symbol] = struct{}{}
	}

	return slices.Sorted(maps.Keys(symbols))
}

func (p *Portfolio) Trades() []types.Trade {
	return slices.Clone(p.trades)
}

func (p *Portfolio) EquityCurve() []types.EquityPoint {
	return slices.Clone(p.equityCurve)
}

func (p *Portfolio) DailyPnL() []types.DailyPnL {
	return slices.Clone(p.dailyPnL)
}

// UnpricedValuations counts TotalValue calls that marked a held instrument at
// zero for lack of a price.
func (p *Portfolio) UnpricedValuations() int {
	return p.unpricedValuations
}
