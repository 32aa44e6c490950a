package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	engine_types "github.com/rxtech-lab/argo-ashare/internal/backtest/engine"
	"github.com/rxtech-lab/argo-ashare/internal/backtest/engine/engine_v1/datasource"
	"github.com/rxtech-lab/argo-ashare/internal/types"
	"github.com/rxtech-lab/argo-ashare/mocks"
	"github.com/rxtech-lab/argo-ashare/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"gopkg.in/yaml.v3"
)

const zeroFeeConfig = `
initial_capital: 1000000
fee:
  mode: zero
risk:
  max_position_pct: 1
  max_drawdown: 1
`

func newTestEngine(t *testing.T, config string) *BacktestEngineV1 {
	t.Helper()

	backtest := NewBacktestEngineV1().(*BacktestEngineV1)
	require.NoError(t, backtest.Initialize(config))

	return backtest
}

func inMemorySource(t *testing.T, bars map[string][]types.MarketData) datasource.DataSource {
	t.Helper()

	ds, err := datasource.NewInMemoryDataSource(bars)
	require.NoError(t, err)

	return ds
}

func TestBacktestEngineV1_Initialize(t *testing.T) {
	t.Run("Missing fields keep defaults", func(t *testing.T) {
		backtest := newTestEngine(t, "initial_capital: 500000\n")

		assert.Equal(t, 500000.0, backtest.config.InitialCapital)
		assert.Equal(t, DefaultConfig().Fee, backtest.config.Fee)
		assert.Equal(t, DefaultOutputConfig(), backtest.config.Output)
	})

	t.Run("Malformed yaml", func(t *testing.T) {
		backtest := NewBacktestEngineV1()

		err := backtest.Initialize("initial_capital: [")
		require.Error(t, err)
		assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidConfiguration))
	})

	t.Run("Invalid values are rejected", func(t *testing.T) {
		backtest := NewBacktestEngineV1()

		assert.Error(t, backtest.Initialize("initial_capital: -1\n"))
		assert.Error(t, backtest.Initialize("rebalance_period: 3x\n"))
	})
}

func TestBacktestEngineV1_PreRunCheck(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockStrategy := mocks.NewMockStrategy(ctrl)
	mockStrategy.EXPECT().Name().Return("noop").AnyTimes()

	t.Run("Not initialized", func(t *testing.T) {
		backtest := NewBacktestEngineV1()

		err := backtest.Run(context.Background(), engine_types.LifecycleCallbacks{})
		assert.True(t, errors.HasCode(err, errors.ErrCodeBacktestConfigError))
	})

	t.Run("No strategies", func(t *testing.T) {
		backtest := newTestEngine(t, zeroFeeConfig)

		err := backtest.Run(context.Background(), engine_types.LifecycleCallbacks{})
		assert.True(t, errors.HasCode(err, errors.ErrCodeBacktestNoStrategies))
	})

	t.Run("No results folder", func(t *testing.T) {
		backtest := newTestEngine(t, zeroFeeConfig)
		require.NoError(t, backtest.LoadStrategy(mockStrategy))

		err := backtest.Run(context.Background(), engine_types.LifecycleCallbacks{})
		assert.True(t, errors.HasCode(err, errors.ErrCodeBacktestNoResultsDir))
	})

	t.Run("No data source", func(t *testing.T) {
		backtest := newTestEngine(t, zeroFeeConfig)
		require.NoError(t, backtest.LoadStrategy(mockStrategy))
		require.NoError(t, backtest.SetResultsFolder(t.TempDir()))

		err := backtest.Run(context.Background(), engine_types.LifecycleCallbacks{})
		assert.True(t, errors.HasCode(err, errors.ErrCodeBacktestNoDatasource))
	})

	t.Run("Nil strategy", func(t *testing.T) {
		backtest := newTestEngine(t, zeroFeeConfig)

		assert.Error(t, backtest.LoadStrategy(nil))
	})

	t.Run("Data path without files", func(t *testing.T) {
		backtest := newTestEngine(t, zeroFeeConfig)

		err := backtest.SetDataPath(filepath.Join(t.TempDir(), "*.csv"))
		assert.True(t, errors.HasCode(err, errors.ErrCodeNoDataFound))
	})
}

func TestBacktestEngineV1_Run(t *testing.T) {
	t.Run("Complete execution flow through Run function", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		mockStrategy := mocks.NewMockStrategy(ctrl)
		mockStrategy.EXPECT().Name().Return("half").AnyTimes()
		mockStrategy.EXPECT().OnBar(gomock.Any()).Return(map[string]float64{"600519.SH": 0.5}, nil).Times(3)

		resultsFolder := t.TempDir()

		backtest := newTestEngine(t, zeroFeeConfig)
		require.NoError(t, backtest.SetResultsFolder(resultsFolder))
		require.NoError(t, backtest.SetDataSource(inMemorySource(t, map[string][]types.MarketData{
			"600519.SH": seriesOf("600519.SH", session(2), 100, 110, 120),
		})))
		require.NoError(t, backtest.LoadStrategy(mockStrategy))

		var (
			started, ended       bool
			endErr               error
			runID, resultFolder  string
			processed, totalBars int
		)

		onBacktestStart := engine_types.OnBacktestStartCallback(func(totalStrategies int, totalInstruments int) error {
			started = true

			assert.Equal(t, 1, totalStrategies)
			assert.Equal(t, 1, totalInstruments)

			return nil
		})
		onBacktestEnd := engine_types.OnBacktestEndCallback(func(err error) {
			ended = true
			endErr = err
		})
		onRunStart := engine_types.OnRunStartCallback(func(id string, strategyName string, bars int) error {
			runID = id
			totalBars = bars

			return nil
		})
		onRunEnd := engine_types.OnRunEndCallback(func(id string, strategyName string, folder string, result *types.BacktestResult) {
			assert.Equal(t, runID, id)
			assert.Equal(t, "half", strategyName)
			assert.Equal(t, id, result.RunID)

			resultFolder = folder
		})
		onProcessData := engine_types.OnProcessDataCallback(func(current int, total int) error {
			processed = current

			return nil
		})

		err := backtest.Run(context.Background(), engine_types.LifecycleCallbacks{
			OnBacktestStart: &onBacktestStart,
			OnBacktestEnd:   &onBacktestEnd,
			OnRunStart:      &onRunStart,
			OnRunEnd:        &onRunEnd,
			OnProcessData:   &onProcessData,
		})
		require.NoError(t, err)

		assert.True(t, started)
		assert.True(t, ended)
		assert.NoError(t, endErr)
		assert.Equal(t, 3, totalBars)
		assert.Equal(t, 3, processed)
		assert.Equal(t, filepath.Join(resultsFolder, "half"), resultFolder)

		results := backtest.Results()
		require.Len(t, results, 1)
		assert.Equal(t, int64(5000), results[0].Trades[0].Shares)

		for _, file := range []string{DefaultTradesFile, DefaultEquityFile, DefaultPnLFile, EventsFile, StatsFile} {
			_, err := os.Stat(filepath.Join(resultFolder, file))
			assert.NoError(t, err, file)
		}

		content, err := os.ReadFile(filepath.Join(resultFolder, StatsFile))
		require.NoError(t, err)

		var stats types.BacktestStats
		require.NoError(t, yaml.Unmarshal(content, &stats))
		assert.Equal(t, runID, stats.ID)
		assert.Equal(t, DefaultTradesFile, stats.TradesFilePath)
		assert.Equal(t, DefaultPnLFile, stats.PnLFilePath)

		trades := readLines(filepath.Join(resultFolder, DefaultTradesFile))
		// buy 5000 on day one, then two trims back to half weight as the price rises
		assert.Len(t, trades, 4)
	})

	t.Run("Strategies run in isolation", func(t *testing.T) {
		resultsFolder := t.TempDir()

		backtest := newTestEngine(t, zeroFeeConfig)
		require.NoError(t, backtest.SetResultsFolder(resultsFolder))
		require.NoError(t, backtest.SetDataSource(inMemorySource(t, map[string][]types.MarketData{
			"A": seriesOf("A", session(2), 100, 100),
		})))

		allIn := weightsAt(map[string]float64{"A": 1})
		idle := &namedStrategy{funcStrategy: weightsAt(), name: "idle"}

		require.NoError(t, backtest.LoadStrategy(allIn))
		require.NoError(t, backtest.LoadStrategy(idle))

		var strategyNames []string

		onStrategyStart := engine_types.OnStrategyStartCallback(func(index int, name string, total int) error {
			assert.Equal(t, 2, total)

			strategyNames = append(strategyNames, fmt.Sprintf("%d:%s", index, name))

			return nil
		})

		require.NoError(t, backtest.Run(context.Background(), engine_types.LifecycleCallbacks{
			OnStrategyStart: &onStrategyStart,
		}))

		assert.Equal(t, []string{"0:func", "1:idle"}, strategyNames)

		results := backtest.Results()
		require.Len(t, results, 2)
		assert.Len(t, results[0].Trades, 1)
		assert.Empty(t, results[1].Trades)
		assert.Equal(t, 1000000.0, results[1].FinalValue)

		// the second run must not see the first run's trades
		assert.Len(t, readLines(filepath.Join(resultsFolder, "idle", DefaultTradesFile)), 1)
		assert.Len(t, readLines(filepath.Join(resultsFolder, "func", DefaultTradesFile)), 2)
	})

	t.Run("Time range folder", func(t *testing.T) {
		resultsFolder := t.TempDir()

		backtest := newTestEngine(t, zeroFeeConfig+"start_time: 2024-01-03T00:00:00Z\n")
		require.NoError(t, backtest.SetResultsFolder(resultsFolder))
		require.NoError(t, backtest.SetDataSource(inMemorySource(t, map[string][]types.MarketData{
			"A": seriesOf("A", session(2), 100, 100, 100),
		})))
		require.NoError(t, backtest.LoadStrategy(weightsAt()))

		require.NoError(t, backtest.Run(context.Background(), engine_types.LifecycleCallbacks{}))

		equity := readLines(filepath.Join(resultsFolder, "func", "20240103_all", DefaultEquityFile))
		assert.Len(t, equity, 3)
	})

	t.Run("Callback failure aborts the run", func(t *testing.T) {
		backtest := newTestEngine(t, zeroFeeConfig)
		require.NoError(t, backtest.SetResultsFolder(t.TempDir()))
		require.NoError(t, backtest.SetDataSource(inMemorySource(t, map[string][]types.MarketData{
			"A": seriesOf("A", session(2), 100, 100),
		})))
		require.NoError(t, backtest.LoadStrategy(weightsAt()))

		var endErr error

		onBacktestStart := engine_types.OnBacktestStartCallback(func(int, int) error {
			return fmt.Errorf("refused")
		})
		onBacktestEnd := engine_types.OnBacktestEndCallback(func(err error) {
			endErr = err
		})

		err := backtest.Run(context.Background(), engine_types.LifecycleCallbacks{
			OnBacktestStart: &onBacktestStart,
			OnBacktestEnd:   &onBacktestEnd,
		})
		require.Error(t, err)
		assert.True(t, errors.HasCode(err, errors.ErrCodeCallbackFailed))
		assert.Equal(t, err, endErr)
		assert.Empty(t, backtest.Results())
	})

	t.Run("Cancelled context", func(t *testing.T) {
		backtest := newTestEngine(t, zeroFeeConfig)
		require.NoError(t, backtest.SetResultsFolder(t.TempDir()))
		require.NoError(t, backtest.SetDataSource(inMemorySource(t, map[string][]types.MarketData{
			"A": seriesOf("A", session(2), 100, 100),
		})))
		require.NoError(t, backtest.LoadStrategy(weightsAt()))

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := backtest.Run(ctx, engine_types.LifecycleCallbacks{})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestBacktestEngineV1_RunFromFiles(t *testing.T) {
	dataDir := t.TempDir()
	resultsFolder := t.TempDir()

	generator := mocks.NewDataGenerator(42)
	config := mocks.DefaultConfig()
	config.Days = 10

	bars := generator.GenerateMultiSymbol([]string{"600000.SH", "000001.SZ"}, config)
	for symbol, series := range bars {
		require.NoError(t, mocks.WriteCSV(filepath.Join(dataDir, symbol+".csv"), series))
	}

	backtest := newTestEngine(t, zeroFeeConfig)
	require.NoError(t, backtest.SetDataPath(filepath.Join(dataDir, "*.csv")))
	require.NoError(t, backtest.SetResultsFolder(resultsFolder))
	require.NoError(t, backtest.LoadStrategy(weightsAt(map[string]float64{"600000.SH": 0.4, "000001.SZ": 0.4})))

	var instruments int

	onBacktestStart := engine_types.OnBacktestStartCallback(func(totalStrategies int, totalInstruments int) error {
		instruments = totalInstruments

		return nil
	})

	require.NoError(t, backtest.Run(context.Background(), engine_types.LifecycleCallbacks{
		OnBacktestStart: &onBacktestStart,
	}))

	assert.Equal(t, 2, instruments)

	results := backtest.Results()
	require.Len(t, results, 1)
	assert.Len(t, results[0].EquityCurve, 10)
	assert.Len(t, results[0].Trades, 2)
	assert.False(t, results[0].Intraday)

	equity := readLines(filepath.Join(resultsFolder, "func", DefaultEquityFile))
	require.Len(t, equity, 11)
	assert.Equal(t, "date,total,cash", equity[0])
	assert.Regexp(t, `^\d{4}-\d{2}-\d{2},`, equity[1])
}

func TestBacktestEngineV1_GetConfigSchema(t *testing.T) {
	schema, err := NewBacktestEngineV1().GetConfigSchema()
	require.NoError(t, err)

	assert.Contains(t, schema, "initial_capital")
	assert.Contains(t, schema, "rebalance_period")
}

// namedStrategy renames a funcStrategy.
type namedStrategy struct {
	*funcStrategy
	name string
}

func (n *namedStrategy) Name() string {
	return n.name
}
