package engine

import (
	"context"
	"fmt"
	"maps"
	"time"

	"github.com/google/uuid"
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-ashare/internal/backtest/engine/engine_v1/commission_fee"
	"github.com/rxtech-lab/argo-ashare/internal/backtest/engine/engine_v1/datasource"
	"github.com/rxtech-lab/argo-ashare/internal/backtest/engine/engine_v1/rebalance"
	"github.com/rxtech-lab/argo-ashare/internal/backtest/engine/engine_v1/risk"
	"github.com/rxtech-lab/argo-ashare/internal/backtest/engine/engine_v1/scheduler"
	"github.com/rxtech-lab/argo-ashare/internal/log"
	"github.com/rxtech-lab/argo-ashare/internal/logger"
	"github.com/rxtech-lab/argo-ashare/internal/types"
	"github.com/rxtech-lab/argo-ashare/internal/utils"
	"github.com/rxtech-lab/argo-ashare/pkg/errors"
	"github.com/rxtech-lab/argo-ashare/pkg/strategy"
	"go.uber.org/zap"
)

// ProgressFunc is called after every processed bar. Returning an error aborts
// the run.
type ProgressFunc func(current int, total int) error

// Runner replays one strategy over the unified calendar of a data source.
// Each bar runs, in order: day rollover, price update, scheduled callbacks
// (intraday only), strategy, rebalance, drawdown check and daily close.
type Runner struct {
	runID      string
	config     BacktestEngineV1Config
	datasource datasource.DataSource
	strategy   strategy.Strategy
	portfolio  *Portfolio
	risk       *risk.RiskManager
	scheduler  *scheduler.Scheduler
	rebalancer *rebalance.Controller
	events     log.Log
	log        *logger.Logger
	symbols    []string
	timestamps []time.Time
	intraday   bool
}

// NewRunner validates the configuration and wires a fresh portfolio, risk
// manager and scheduler for a single run. events may be nil.
func NewRunner(config BacktestEngineV1Config, ds datasource.DataSource, strat strategy.Strategy, runnerLogger *logger.Logger, events log.Log) (*Runner, error) {
	if runnerLogger == nil {
		runnerLogger = logger.NewNopLogger()
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	if ds == nil {
		return nil, errors.New(errors.ErrCodeBacktestNoDatasource, "no data source set")
	}

	if strat == nil {
		return nil, errors.New(errors.ErrCodeBacktestNoStrategies, "no strategy set")
	}

	symbols := ds.Symbols()
	if len(symbols) == 0 {
		return nil, errors.New(errors.ErrCodeNoDataFound, "data source has no instruments")
	}

	timestamps := ds.Timestamps(config.StartTime, config.EndTime)
	if len(timestamps) == 0 {
		return nil, errors.New(errors.ErrCodeNoDataFound, "no bars inside the replay window")
	}

	commission, err := commission_fee.NewFeeModel(config.Fee)
	if err != nil {
		return nil, err
	}

	riskManager, err := risk.NewRiskManager(config.Risk, runnerLogger)
	if err != nil {
		return nil, err
	}

	var rebalancer *rebalance.Controller

	if config.RebalancePeriod != "" {
		period, err := rebalance.ParsePeriod(config.RebalancePeriod)
		if err != nil {
			return nil, err
		}

		rebalancer = rebalance.NewController(period)
	}

	runner := &Runner{
		runID:      uuid.New().String(),
		config:     config,
		datasource: ds,
		strategy:   strat,
		portfolio:  NewPortfolio(config.InitialCapital, commission, runnerLogger, events),
		risk:       riskManager,
		scheduler:  scheduler.NewScheduler(runnerLogger),
		rebalancer: rebalancer,
		events:     events,
		log:        runnerLogger,
		symbols:    symbols,
		timestamps: timestamps,
		intraday:   resolveIntraday(config.ReplayMode, timestamps),
	}

	if initializable, ok := strat.(strategy.Initializable); ok {
		if err := initializable.Initialize(ds); err != nil {
			return nil, errors.Wrapf(errors.ErrCodeStrategyConfigError, err, "failed to initialize strategy %s", strat.Name())
		}
	}

	if scheduled, ok := strat.(strategy.ScheduledStrategy); ok {
		if err := scheduled.RegisterSchedules(runner.scheduler); err != nil {
			if errors.HasCode(err, errors.ErrCodeInvalidTrigger) {
				return nil, err
			}

			return nil, errors.Wrapf(errors.ErrCodeStrategyConfigError, err, "failed to register schedules of %s", strat.Name())
		}
	}

	return runner, nil
}

func resolveIntraday(mode ReplayMode, timestamps []time.Time) bool {
	switch mode {
	case ReplayModeDaily:
		return false
	case ReplayModeIntraday:
		return true
	default:
		return utils.IsIntraday(timestamps, intradaySampleSize)
	}
}

// RunID identifies this run in logs, callbacks and the result.
func (r *Runner) RunID() string {
	return r.runID
}

// Intraday reports whether the replay runs in intraday mode.
func (r *Runner) Intraday() bool {
	return r.intraday
}

// Timestamps returns the replay calendar.
func (r *Runner) Timestamps() []time.Time {
	return r.timestamps
}

// Portfolio exposes the run's portfolio, mainly for inspection after Run.
func (r *Runner) Portfolio() *Portfolio {
	return r.portfolio
}

// Run replays every timestamp and returns the result. A drawdown breach stops
// the replay and returns the partial result with Halted set. Context
// cancellation and progress callback errors abort the run without a result.
func (r *Runner) Run(ctx context.Context, onProcess ProgressFunc) (*types.BacktestResult, error) {
	total := len(r.timestamps)
	halted := optional.None[time.Time]()

	var dayTrades []types.Trade

	r.log.Info("Backtest started",
		zap.String("run_id", r.runID),
		zap.String("strategy", r.strategy.Name()),
		zap.Int("bars", total),
		zap.Int("instruments", len(r.symbols)),
		zap.Bool("intraday", r.intraday),
	)

	for i, ts := range r.timestamps {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("backtest cancelled at %s: %w", ts, err)
		}

		if i == 0 || !utils.SameSession(r.timestamps[i-1], ts) {
			r.portfolio.OnNewDay()
		}

		r.updatePrices(ts)

		if r.intraday {
			r.scheduler.DispatchBar(ts, r.portfolio.Snapshot(ts))
		}

		weights := r.targetWeights(ts)

		// empty bars do not use up a rebalance window
		if len(weights) > 0 && r.rebalancer != nil && !r.rebalancer.ShouldRebalance(ts) {
			weights = nil
		}

		weights = r.applyStopLoss(ts, weights)

		if len(weights) > 0 {
			dayTrades = append(dayTrades, r.portfolio.Rebalance(ts, weights, r.risk)...)
		}

		if !r.risk.CheckPortfolio(r.portfolio.TotalValue()) {
			halted = optional.Some(ts)

			r.log.Warn("Risk limit breached, backtest halted", logger.BarTime(ts))
			r.journal(ts, types.LogLevelError, "risk limit breached, backtest halted")

			break
		}

		if r.isDayClose(i) {
			r.portfolio.RecordDaily(ts, dayTrades)
			dayTrades = nil

			if r.intraday {
				r.scheduler.DispatchAfterClose(r.portfolio.Snapshot(ts))
			}
		}

		if onProcess != nil {
			if err := onProcess(i+1, total); err != nil {
				return nil, errors.Wrap(errors.ErrCodeCallbackFailed, "progress callback failed", err)
			}
		}
	}

	return r.result(halted), nil
}

// isDayClose reports whether bar i closes its session day: every bar in daily
// mode, otherwise the last bar before the date changes or the final bar.
func (r *Runner) isDayClose(i int) bool {
	if !r.intraday {
		return true
	}

	if i == len(r.timestamps)-1 {
		return true
	}

	return !utils.SameSession(r.timestamps[i], r.timestamps[i+1])
}

func (r *Runner) updatePrices(ts time.Time) {
	for _, symbol := range r.symbols {
		bar, ok := r.datasource.GetBar(symbol, ts)
		if !ok {
			r.log.Debug("No bar for instrument", logger.BarTime(ts), zap.String("symbol", symbol))

			continue
		}

		r.portfolio.UpdatePrice(symbol, bar.Close, ts)
	}
}

// targetWeights calls the strategy, turning errors and panics into an empty
// weight map.
func (r *Runner) targetWeights(ts time.Time) (weights map[string]float64) {
	defer func() {
		if recovered := recover(); recovered != nil {
			r.log.Error("Strategy panicked",
				logger.BarTime(ts),
				zap.String("strategy", r.strategy.Name()),
				zap.Any("panic", recovered),
			)
			r.journal(ts, types.LogLevelError, fmt.Sprintf("strategy panicked: %v", recovered))

			weights = nil
		}
	}()

	weights, err := r.strategy.OnBar(ts)
	if err != nil {
		r.log.Error("Strategy failed",
			logger.BarTime(ts),
			zap.String("strategy", r.strategy.Name()),
			zap.Error(err),
		)
		r.journal(ts, types.LogLevelError, fmt.Sprintf("strategy failed: %v", err))

		return nil
	}

	return weights
}

// applyStopLoss zeroes the weight of every held instrument whose loss from
// its average cost reached the stop loss. The strategy's map is not modified.
func (r *Runner) applyStopLoss(ts time.Time, weights map[string]float64) map[string]float64 {
	if !r.config.Risk.LiquidateOnStopLoss || r.config.Risk.StopLossPct.IsNone() {
		return weights
	}

	var result map[string]float64

	for _, symbol := range r.portfolio.Held() {
		cost, ok := r.portfolio.AverageCost(symbol)
		if !ok {
			continue
		}

		price, ok := r.portfolio.Price(symbol)
		if !ok || !r.risk.CheckStopLoss(cost, price) {
			continue
		}

		if result == nil {
			result = maps.Clone(weights)
			if result == nil {
				result = make(map[string]float64)
			}
		}

		result[symbol] = 0

		r.log.Info("Stop loss triggered",
			logger.BarTime(ts),
			zap.String("symbol", symbol),
			zap.Float64("average_cost", cost),
			zap.Float64("price", price),
		)
		r.journal(ts, types.LogLevelWarn, "stop loss triggered for "+symbol)
	}

	if result == nil {
		return weights
	}

	return result
}

func (r *Runner) journal(ts time.Time, level types.LogLevel, message string) {
	if r.events == nil {
		return
	}

	if err := r.events.Log(log.LogEntry{
		Timestamp: ts,
		Symbol:    "",
		Level:     level,
		Message:   message,
		Fields:    nil,
	}); err != nil {
		r.log.Error("Failed to journal event", zap.Error(err))
	}
}

func (r *Runner) result(halted optional.Option[time.Time]) *types.BacktestResult {
	equity := r.portfolio.EquityCurve()
	unpriced := r.portfolio.UnpricedValuations()

	// a halting bar is not on the equity curve, so value the portfolio directly
	finalValue := r.portfolio.TotalValue()

	totalReturn := 0.0
	if r.config.InitialCapital > 0 {
		totalReturn = (finalValue - r.config.InitialCapital) / r.config.InitialCapital
	}

	result := &types.BacktestResult{
		RunID:              r.runID,
		StrategyName:       r.strategy.Name(),
		InitialCash:        r.config.InitialCapital,
		FinalValue:         finalValue,
		TotalReturn:        totalReturn,
		Drawdown:           CalcDrawdown(equity),
		Intraday:           r.intraday,
		Halted:             halted.IsSome(),
		HaltedAt:           halted,
		UnpricedValuations: unpriced,
		Trades:             r.portfolio.Trades(),
		EquityCurve:        equity,
		DailyPnL:           r.portfolio.DailyPnL(),
	}

	r.log.Info("Backtest finished",
		zap.String("run_id", result.RunID),
		zap.String("strategy", result.StrategyName),
		zap.Float64("final_value", result.FinalValue),
		zap.Float64("total_return", result.TotalReturn),
		zap.Float64("max_drawdown", result.Drawdown.MaxDrawdown),
		zap.Int("trades", len(result.Trades)),
		zap.Bool("halted", result.Halted),
	)

	return result
}
