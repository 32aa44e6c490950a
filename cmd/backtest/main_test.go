package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	engine_v1 "github.com/rxtech-lab/argo-ashare/internal/backtest/engine/engine_v1"
	"github.com/rxtech-lab/argo-ashare/internal/strategy"
	"github.com/rxtech-lab/argo-ashare/internal/version"
	"github.com/rxtech-lab/argo-ashare/mocks"
	"github.com/stretchr/testify/suite"
)

type BacktestCmdTestSuite struct {
	suite.Suite
	dataDir    string
	resultsDir string
}

func TestBacktestCmdSuite(t *testing.T) {
	suite.Run(t, new(BacktestCmdTestSuite))
}

func (suite *BacktestCmdTestSuite) SetupTest() {
	suite.dataDir = suite.T().TempDir()
	suite.resultsDir = suite.T().TempDir()

	config := mocks.DefaultConfig()
	config.Days = 40

	bars := mocks.NewDataGenerator(7).GenerateMultiSymbol([]string{"600000.SH", "000001.SZ"}, config)
	for symbol, series := range bars {
		suite.Require().NoError(mocks.WriteCSV(filepath.Join(suite.dataDir, symbol+".csv"), series))
	}
}

func (suite *BacktestCmdTestSuite) run(args ...string) (string, error) {
	var out bytes.Buffer

	app := newApp()
	app.Writer = &out

	err := app.Run(context.Background(), append([]string{"backtest"}, args...))

	return out.String(), err
}

func (suite *BacktestCmdTestSuite) TestRun() {
	out, err := suite.run("run", "-q",
		"--data", filepath.Join(suite.dataDir, "*.csv"),
		"--results", suite.resultsDir,
		"--strategy", strategy.MaCrossName,
		"--strategy", strategy.BuyAndHoldName,
	)
	suite.Require().NoError(err)

	suite.Contains(out, "final value:")
	suite.Contains(out, strategy.BuyAndHoldName)

	for _, name := range []string{strategy.MaCrossName, strategy.BuyAndHoldName} {
		for _, file := range []string{engine_v1.DefaultTradesFile, engine_v1.DefaultEquityFile, engine_v1.DefaultPnLFile, engine_v1.StatsFile} {
			_, err := os.Stat(filepath.Join(suite.resultsDir, name, file))
			suite.NoError(err, filepath.Join(name, file))
		}
	}
}

func (suite *BacktestCmdTestSuite) TestRunWithConfigFiles() {
	configPath := filepath.Join(suite.T().TempDir(), "engine.yaml")
	suite.Require().NoError(os.WriteFile(configPath, []byte("initial_capital: 200000\noutput:\n  parquet: false\n"), 0644))

	strategyPath := filepath.Join(suite.T().TempDir(), "hold.yaml")
	suite.Require().NoError(os.WriteFile(strategyPath, []byte("symbols: [600000.SH]\ntotal_weight: 0.2\n"), 0644))

	_, err := suite.run("run", "-q",
		"-c", configPath,
		"-d", filepath.Join(suite.dataDir, "*.csv"),
		"-r", suite.resultsDir,
		"-s", strategy.BuyAndHoldName+"="+strategyPath,
	)
	suite.Require().NoError(err)

	_, err = os.Stat(filepath.Join(suite.resultsDir, strategy.BuyAndHoldName, "daily_trades.parquet"))
	suite.True(os.IsNotExist(err))
}

func (suite *BacktestCmdTestSuite) TestRunErrors() {
	_, err := suite.run("run", "-q", "--data", filepath.Join(suite.dataDir, "*.csv"), "--strategy", "momentum")
	suite.Error(err)

	_, err = suite.run("run", "-q", "--data", filepath.Join(suite.dataDir, "*.json"))
	suite.Error(err)

	_, err = suite.run("run", "-q", "--data", filepath.Join(suite.dataDir, "*.csv"), "--config", "missing.yaml")
	suite.Error(err)
}

func (suite *BacktestCmdTestSuite) TestSchema() {
	out, err := suite.run("schema")
	suite.Require().NoError(err)
	suite.Contains(out, "initial_capital")

	out, err = suite.run("schema", "--strategy", strategy.MaCrossName)
	suite.Require().NoError(err)
	suite.Contains(out, "short_period")

	_, err = suite.run("schema", "--strategy", "momentum")
	suite.Error(err)
}

func (suite *BacktestCmdTestSuite) TestVersion() {
	out, err := suite.run("version")
	suite.Require().NoError(err)
	suite.Contains(out, version.GetVersion())
}
