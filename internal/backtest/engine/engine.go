package engine

import (
	"context"

	"github.com/rxtech-lab/argo-ashare/internal/backtest/engine/engine_v1/datasource"
	"github.com/rxtech-lab/argo-ashare/internal/types"
	"github.com/rxtech-lab/argo-ashare/pkg/strategy"
)

// Lifecycle callback types for backtest phases
// All callbacks with error return can abort execution if they return an error

// OnBacktestStartCallback is called when the entire backtest begins.
type OnBacktestStartCallback func(totalStrategies int, totalInstruments int) error

// OnBacktestEndCallback is called when the entire backtest completes (always called via defer).
type OnBacktestEndCallback func(err error)

// OnStrategyStartCallback is called when a strategy iteration begins.
type OnStrategyStartCallback func(strategyIndex int, strategyName string, totalStrategies int) error

// OnStrategyEndCallback is called when a strategy iteration ends.
type OnStrategyEndCallback func(strategyIndex int, strategyName string)

// OnRunStartCallback is called once the replay calendar of a run is known.
// runID is the identifier stamped on the run's result and stats file.
type OnRunStartCallback func(runID string, strategyName string, totalBars int) error

// OnRunEndCallback is called after a run's results were written to resultFolderPath.
type OnRunEndCallback func(runID string, strategyName string, resultFolderPath string, result *types.BacktestResult)

// OnProcessDataCallback is called for each replayed bar.
type OnProcessDataCallback func(current int, total int) error

// LifecycleCallbacks holds all lifecycle callback functions for the backtest engine.
// All fields are pointers - nil means no callback will be invoked.
type LifecycleCallbacks struct {
	OnBacktestStart *OnBacktestStartCallback
	OnBacktestEnd   *OnBacktestEndCallback
	OnStrategyStart *OnStrategyStartCallback
	OnStrategyEnd   *OnStrategyEndCallback
	OnRunStart      *OnRunStartCallback
	OnRunEnd        *OnRunEndCallback
	OnProcessData   *OnProcessDataCallback
}

//nolint:interfacebloat // Engine is a core interface that naturally requires multiple methods
type Engine interface {
	// Initialize the engine with the given YAML configuration. Fields missing
	// from the document keep their defaults.
	Initialize(config string) error
	// SetDataPath sets the bar files to load, as a glob over CSV or Parquet
	// files (e.g. "data/*.csv"). Each file holds one or more instruments.
	SetDataPath(path string) error
	// SetResultsFolder sets the output directory. Every strategy writes into
	// <folder>/<strategy name>, with a start_end sub folder when the replay
	// window is bounded.
	SetResultsFolder(folder string) error
	// SetDataSource sets a ready data source, taking precedence over SetDataPath.
	SetDataSource(dataSource datasource.DataSource) error
	// LoadStrategy adds a strategy. Could be called multiple times; every
	// strategy is replayed in its own isolated run.
	LoadStrategy(strategy strategy.Strategy) error
	// Run replays every loaded strategy and writes the results.
	// The context can be used to cancel the backtest operation.
	// Use LifecycleCallbacks to receive notifications at different phases of the backtest.
	Run(ctx context.Context, callbacks LifecycleCallbacks) error
	// Results returns the results of the last Run, one per strategy.
	Results() []*types.BacktestResult
	// GetConfigSchema returns the schema of the engine configuration
	GetConfigSchema() (string, error)
}
