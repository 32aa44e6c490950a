package engine

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-ashare/internal/backtest/engine/engine_v1/commission_fee"
	"github.com/rxtech-lab/argo-ashare/internal/version"
	"github.com/rxtech-lab/argo-ashare/pkg/errors"
	"github.com/stretchr/testify/suite"
	"gopkg.in/yaml.v3"
)

type ConfigTestSuite struct {
	suite.Suite
}

func TestConfigSuite(t *testing.T) {
	suite.Run(t, new(ConfigTestSuite))
}

func (suite *ConfigTestSuite) TestEmptyConfig() {
	config := EmptyConfig()

	suite.Equal(0.0, config.InitialCapital)
	suite.True(config.StartTime.IsNone())
	suite.True(config.EndTime.IsNone())
	suite.Error(config.Validate())
}

func (suite *ConfigTestSuite) TestDefaultConfig() {
	config := DefaultConfig()

	suite.Equal(1_000_000.0, config.InitialCapital)
	suite.Equal(commission_fee.FeeModeRate, config.Fee.Mode)
	suite.Equal(0.001, config.Fee.Rate)
	suite.Equal(0.0001, config.Fee.RatePct)
	suite.Equal(5.0, config.Fee.Fixed)
	suite.Equal(0.3, config.Risk.MaxPositionPct)
	suite.Equal(0.2, config.Risk.MaxDrawdown)
	suite.True(config.Risk.StopLossPct.IsNone())
	suite.Equal(ReplayModeAuto, config.ReplayMode)
	suite.Equal("daily_trades.csv", config.Output.TradesFile)
	suite.Equal("equity_curve.csv", config.Output.EquityFile)
	suite.Equal("daily_pnl.csv", config.Output.PnLFile)
	suite.NoError(config.Validate())
}

func (suite *ConfigTestSuite) TestTestConfig() {
	startTime := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	endTime := time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC)

	config := TestConfig(startTime, endTime, commission_fee.FeeConfig{Mode: commission_fee.FeeModeZero})

	suite.Equal(commission_fee.FeeModeZero, config.Fee.Mode)
	suite.Equal(startTime, config.StartTime.Unwrap())
	suite.Equal(endTime, config.EndTime.Unwrap())
	suite.Equal(1.0, config.Risk.MaxPositionPct)
	suite.NoError(config.Validate())
}

func (suite *ConfigTestSuite) TestGenerateSchema() {
	config := &BacktestEngineV1Config{}
	schema, err := config.GenerateSchema()

	suite.NoError(err)
	suite.NotNil(schema)
	suite.Equal("backtest-engine-v1-config", schema.Title)
	suite.Equal("Configuration schema for BacktestEngineV1", schema.Description)
	suite.Equal("http://json-schema.org/draft-07/schema#", schema.Version)
}

func (suite *ConfigTestSuite) TestGenerateSchemaJSON() {
	config := &BacktestEngineV1Config{}
	schemaJSON, err := config.GenerateSchemaJSON()

	suite.NoError(err)
	suite.NotEmpty(schemaJSON)

	var result map[string]interface{}
	err = json.Unmarshal([]byte(schemaJSON), &result)
	suite.NoError(err)

	suite.Equal("backtest-engine-v1-config", result["title"])
	suite.Contains(schemaJSON, "rate+fixed")
	suite.Contains(schemaJSON, "intraday")
}

func (suite *ConfigTestSuite) TestUnmarshalYAMLComplete() {
	yamlData := `
initial_capital: 500000
fee:
  mode: rate+fixed
  rate_pct: 0.00025
  fixed: 5
risk:
  max_position_pct: 0.5
  max_drawdown: 0.15
  stop_loss_pct: 0.08
  liquidate_on_stop_loss: true
replay_mode: intraday
rebalance_period: 1w
start_time: 2023-01-03T00:00:00Z
end_time: 2023-12-29T00:00:00Z
output:
  trades_file: trades.csv
  parquet: false
log_level: debug
`

	config := DefaultConfig()
	err := yaml.Unmarshal([]byte(yamlData), &config)
	suite.Require().NoError(err)

	suite.Equal(500000.0, config.InitialCapital)
	suite.Equal(commission_fee.FeeModeRateFixed, config.Fee.Mode)
	suite.Equal(0.00025, config.Fee.RatePct)
	suite.Equal(commission_fee.DefaultFeeRate, config.Fee.Rate, "unset fee fields keep defaults")
	suite.Equal(0.5, config.Risk.MaxPositionPct)
	suite.Equal(0.08, config.Risk.StopLossPct.Unwrap())
	suite.True(config.Risk.LiquidateOnStopLoss)
	suite.Equal(ReplayModeIntraday, config.ReplayMode)
	suite.Equal("1w", config.RebalancePeriod)
	suite.Equal(time.Date(2023, 1, 3, 0, 0, 0, 0, time.UTC), config.StartTime.Unwrap())
	suite.Equal(2023, config.EndTime.Unwrap().Year())
	suite.Equal("trades.csv", config.Output.TradesFile)
	suite.Equal(DefaultEquityFile, config.Output.EquityFile)
	suite.False(config.Output.Parquet)
	suite.Equal("debug", config.LogLevel)
	suite.NoError(config.Validate())
}

func (suite *ConfigTestSuite) TestUnmarshalYAMLPartialKeepsDefaults() {
	config := DefaultConfig()
	suite.Require().NoError(yaml.Unmarshal([]byte(`initial_capital: 20000`), &config))

	suite.Equal(20000.0, config.InitialCapital)
	suite.Equal(DefaultConfig().Fee, config.Fee)
	suite.Equal(DefaultConfig().Output, config.Output)
	suite.True(config.StartTime.IsNone())
}

func (suite *ConfigTestSuite) TestUnmarshalYAMLInvalid() {
	config := DefaultConfig()
	err := yaml.Unmarshal([]byte("initial_capital: [1, 2]"), &config)
	suite.Error(err)
}

func (suite *ConfigTestSuite) TestValidate() {
	tests := []struct {
		name   string
		mutate func(c *BacktestEngineV1Config)
		code   errors.ErrorCode
	}{
		{"non positive capital", func(c *BacktestEngineV1Config) { c.InitialCapital = 0 }, errors.ErrCodeInvalidConfiguration},
		{"negative fee rate", func(c *BacktestEngineV1Config) { c.Fee.Rate = -0.1 }, errors.ErrCodeInvalidConfiguration},
		{"unknown fee mode", func(c *BacktestEngineV1Config) { c.Fee.Mode = "tiered" }, errors.ErrCodeInvalidFeeMode},
		{"drawdown above one", func(c *BacktestEngineV1Config) { c.Risk.MaxDrawdown = 1.5 }, errors.ErrCodeInvalidThreshold},
		{"stop loss zero", func(c *BacktestEngineV1Config) { c.Risk.StopLossPct = optional.Some(0.0) }, errors.ErrCodeInvalidThreshold},
		{"unknown replay mode", func(c *BacktestEngineV1Config) { c.ReplayMode = "weekly" }, errors.ErrCodeInvalidConfiguration},
		{"bad rebalance period", func(c *BacktestEngineV1Config) { c.RebalancePeriod = "3y" }, errors.ErrCodeInvalidRebalancePeriod},
		{"end before start", func(c *BacktestEngineV1Config) {
			c.StartTime = optional.Some(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC))
			c.EndTime = optional.Some(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
		}, errors.ErrCodeInvalidPeriod},
		{"bad log level", func(c *BacktestEngineV1Config) { c.LogLevel = "verbose" }, errors.ErrCodeInvalidConfiguration},
		{"missing output file", func(c *BacktestEngineV1Config) { c.Output.PnLFile = "" }, errors.ErrCodeInvalidConfiguration},
	}

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			config := DefaultConfig()
			tc.mutate(&config)

			err := config.Validate()
			suite.Error(err)
			suite.True(errors.HasCode(err, tc.code), "got %v", err)
		})
	}
}

func (suite *ConfigTestSuite) TestValidateEngineVersion() {
	original := version.Version
	defer func() { version.Version = original }()

	version.Version = "1.2.0"

	config := DefaultConfig()

	config.EngineVersion = "1.2.7"
	suite.NoError(config.Validate())

	config.EngineVersion = "1.3.0"
	err := config.Validate()
	suite.True(errors.HasCode(err, errors.ErrCodeVersionMismatch))
	suite.Contains(err.Error(), "minor version mismatch")

	config.EngineVersion = "2.0.0"
	suite.Contains(config.Validate().Error(), "major version mismatch")

	version.Version = "main"
	suite.NoError(config.Validate())
}

func (suite *ConfigTestSuite) TestMarshalYAMLRoundTrip() {
	config := DefaultConfig()
	config.StartTime = optional.Some(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC))
	config.Risk.StopLossPct = optional.Some(0.1)

	content, err := yaml.Marshal(config)
	suite.Require().NoError(err)
	suite.Contains(string(content), "start_time:")
	suite.NotContains(string(content), "end_time:")

	decoded := EmptyConfig()
	suite.Require().NoError(yaml.Unmarshal(content, &decoded))

	suite.Equal(config.InitialCapital, decoded.InitialCapital)
	suite.Equal(config.Fee, decoded.Fee)
	suite.True(config.StartTime.Unwrap().Equal(decoded.StartTime.Unwrap()))
	suite.True(decoded.EndTime.IsNone())
	suite.Equal(0.1, decoded.Risk.StopLossPct.Unwrap())
	suite.Equal(config.Output, decoded.Output)
	suite.NoError(decoded.Validate())
}
