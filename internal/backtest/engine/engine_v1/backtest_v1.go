package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rxtech-lab/argo-ashare/internal/backtest/engine"
	"github.com/rxtech-lab/argo-ashare/internal/backtest/engine/engine_v1/datasource"
	"github.com/rxtech-lab/argo-ashare/internal/logger"
	"github.com/rxtech-lab/argo-ashare/internal/types"
	"github.com/rxtech-lab/argo-ashare/pkg/errors"
	"github.com/rxtech-lab/argo-ashare/pkg/strategy"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// StatsFile is the summary written into every result folder.
const StatsFile = "stats.yaml"

type BacktestEngineV1 struct {
	config        BacktestEngineV1Config
	initialized   bool
	strategies    []strategy.Strategy
	dataPath      string
	resultsFolder string
	log           *logger.Logger
	datasource    datasource.DataSource
	results       []*types.BacktestResult
}

func NewBacktestEngineV1() engine.Engine {
	return &BacktestEngineV1{
		config:        DefaultConfig(),
		initialized:   false,
		strategies:    nil,
		dataPath:      "",
		resultsFolder: "",
		log:           logger.NewNopLogger(),
		datasource:    nil,
		results:       nil,
	}
}

// Initialize implements engine.Engine.
func (b *BacktestEngineV1) Initialize(config string) error {
	cfg := DefaultConfig()

	if err := yaml.Unmarshal([]byte(config), &cfg); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to parse backtest config", err)
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	log, err := logger.NewLoggerWithLevel(cfg.LogLevel)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to create logger", err)
	}

	b.config = cfg
	b.log = log
	b.initialized = true

	b.log.Debug("Backtest engine initialized",
		zap.Float64("initial_capital", cfg.InitialCapital),
		zap.String("fee_mode", string(cfg.Fee.Mode)),
		zap.String("replay_mode", string(cfg.ReplayMode)),
	)

	return nil
}

// LoadStrategy implements engine.Engine.
func (b *BacktestEngineV1) LoadStrategy(strat strategy.Strategy) error {
	if strat == nil {
		return errors.New(errors.ErrCodeInvalidParameter, "strategy is nil")
	}

	b.strategies = append(b.strategies, strat)
	b.log.Debug("Strategy loaded",
		zap.String("strategy", strat.Name()),
		zap.Int("total_strategies", len(b.strategies)),
	)

	return nil
}

// SetDataPath implements engine.Engine.
func (b *BacktestEngineV1) SetDataPath(path string) error {
	files, err := filepath.Glob(path)
	if err != nil {
		b.log.Error("Failed to set data path",
			zap.String("path", path),
			zap.Error(err),
		)

		return errors.Wrapf(errors.ErrCodeInvalidParameter, err, "invalid data path %s", path)
	}

	if len(files) == 0 {
		return errors.Newf(errors.ErrCodeNoDataFound, "no data files match %s", path)
	}

	b.dataPath = path
	b.log.Debug("Data path set",
		zap.String("path", path),
		zap.Strings("files", files),
	)

	return nil
}

// SetResultsFolder implements engine.Engine.
func (b *BacktestEngineV1) SetResultsFolder(folder string) error {
	b.resultsFolder = folder
	b.log.Debug("Results folder set",
		zap.String("folder", folder),
	)

	return nil
}

// SetDataSource implements engine.Engine.
func (b *BacktestEngineV1) SetDataSource(dataSource datasource.DataSource) error {
	b.datasource = dataSource

	return nil
}

// Results implements engine.Engine.
func (b *BacktestEngineV1) Results() []*types.BacktestResult {
	return b.results
}

// GetConfigSchema implements engine.Engine.
func (b *BacktestEngineV1) GetConfigSchema() (string, error) {
	config := b.config

	schema, err := config.GenerateSchemaJSON()
	if err != nil {
		return "", fmt.Errorf("failed to generate schema: %w", err)
	}

	return schema, nil
}

// Run implements engine.Engine. Each strategy gets its own runner, and so its
// own portfolio, risk manager and scheduler; only the read-only data source
// is shared.
func (b *BacktestEngineV1) Run(ctx context.Context, callbacks engine.LifecycleCallbacks) (err error) {
	defer func() {
		if callbacks.OnBacktestEnd != nil {
			(*callbacks.OnBacktestEnd)(err)
		}
	}()

	if err := b.preRunCheck(); err != nil {
		return err
	}

	ds, release, err := b.resolveDataSource()
	if err != nil {
		return err
	}
	defer release()

	state, err := NewBacktestState(b.log)
	if err != nil {
		return errors.Wrap(errors.ErrCodeBacktestInitFailed, "failed to create backtest state", err)
	}
	defer state.Close()

	journal, err := NewBacktestLog(b.log)
	if err != nil {
		return errors.Wrap(errors.ErrCodeBacktestInitFailed, "failed to create event journal", err)
	}
	defer journal.Close()

	if callbacks.OnBacktestStart != nil {
		if err := (*callbacks.OnBacktestStart)(len(b.strategies), len(ds.Symbols())); err != nil {
			return errors.Wrap(errors.ErrCodeCallbackFailed, "backtest start callback failed", err)
		}
	}

	b.results = nil

	for i, strat := range b.strategies {
		if callbacks.OnStrategyStart != nil {
			if err := (*callbacks.OnStrategyStart)(i, strat.Name(), len(b.strategies)); err != nil {
				return errors.Wrap(errors.ErrCodeCallbackFailed, "strategy start callback failed", err)
			}
		}

		result, err := b.runStrategy(ctx, ds, strat, state, journal, callbacks)
		if err != nil {
			return err
		}

		b.results = append(b.results, result)

		if callbacks.OnStrategyEnd != nil {
			(*callbacks.OnStrategyEnd)(i, strat.Name())
		}
	}

	return nil
}

func (b *BacktestEngineV1) runStrategy(
	ctx context.Context,
	ds datasource.DataSource,
	strat strategy.Strategy,
	state *BacktestState,
	journal *BacktestLog,
	callbacks engine.LifecycleCallbacks,
) (*types.BacktestResult, error) {
	defer func() {
		if err := state.Cleanup(); err != nil {
			b.log.Error("Failed to cleanup state", zap.Error(err))
		}

		if err := journal.Cleanup(); err != nil {
			b.log.Error("Failed to cleanup event journal", zap.Error(err))
		}
	}()

	runner, err := NewRunner(b.config, ds, strat, b.log, journal)
	if err != nil {
		return nil, err
	}

	if callbacks.OnRunStart != nil {
		if err := (*callbacks.OnRunStart)(runner.RunID(), strat.Name(), len(runner.Timestamps())); err != nil {
			return nil, errors.Wrap(errors.ErrCodeCallbackFailed, "run start callback failed", err)
		}
	}

	var onProcess ProgressFunc
	if callbacks.OnProcessData != nil {
		onProcess = ProgressFunc(*callbacks.OnProcessData)
	}

	result, err := runner.Run(ctx, onProcess)
	if err != nil {
		return nil, err
	}

	resultFolderPath := getResultFolder(b.resultsFolder, strat.Name(), b.config)

	b.log.Debug("Writing results",
		zap.String("strategy", strat.Name()),
		zap.String("result", resultFolderPath),
	)

	if err := b.writeResults(state, journal, resultFolderPath, result); err != nil {
		return nil, errors.Wrap(errors.ErrCodeBacktestWriteFailed, "failed to write results", err)
	}

	if callbacks.OnRunEnd != nil {
		(*callbacks.OnRunEnd)(result.RunID, strat.Name(), resultFolderPath, result)
	}

	return result, nil
}

func (b *BacktestEngineV1) writeResults(state *BacktestState, journal *BacktestLog, resultFolderPath string, result *types.BacktestResult) error {
	// stale files from a previous run would mix with this one
	if err := os.RemoveAll(resultFolderPath); err != nil {
		return fmt.Errorf("failed to clean result folder: %w", err)
	}

	if err := state.Record(result); err != nil {
		return err
	}

	files, err := state.Write(resultFolderPath, b.config.Output)
	if err != nil {
		return err
	}

	if _, err := journal.Write(resultFolderPath); err != nil {
		return err
	}

	stats := types.NewBacktestStats(result, time.Now())
	stats.TradesFilePath = filepath.Base(files.Trades)
	stats.EquityFilePath = filepath.Base(files.Equity)
	stats.PnLFilePath = filepath.Base(files.PnL)

	if err := types.WriteBacktestStats(filepath.Join(resultFolderPath, StatsFile), stats); err != nil {
		return err
	}

	return nil
}

// resolveDataSource returns the data source set with SetDataSource, or loads
// the files of SetDataPath. release closes a data source the engine opened.
func (b *BacktestEngineV1) resolveDataSource() (datasource.DataSource, func(), error) {
	if b.datasource != nil {
		return b.datasource, func() {}, nil
	}

	ds, err := datasource.NewDataSource(b.log)
	if err != nil {
		return nil, nil, err
	}

	if err := ds.Initialize(b.dataPath); err != nil {
		ds.Close()

		return nil, nil, err
	}

	release := func() {
		if err := ds.Close(); err != nil {
			b.log.Error("Failed to close data source", zap.Error(err))
		}
	}

	return ds, release, nil
}

func (b *BacktestEngineV1) preRunCheck() error {
	if !b.initialized {
		b.log.Error("Engine not initialized")

		return errors.New(errors.ErrCodeBacktestConfigError, "engine not initialized")
	}

	if len(b.strategies) == 0 {
		b.log.Error("No strategies loaded")

		return errors.New(errors.ErrCodeBacktestNoStrategies, "no strategies loaded")
	}

	if b.resultsFolder == "" {
		b.log.Error("No results folder set")

		return errors.New(errors.ErrCodeBacktestNoResultsDir, "no results folder set")
	}

	if b.datasource == nil && b.dataPath == "" {
		b.log.Error("No datasource set")

		return errors.New(errors.ErrCodeBacktestNoDatasource, "no datasource or data path set")
	}

	return nil
}
