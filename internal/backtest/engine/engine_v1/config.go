package engine

import (
	"encoding/json"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-ashare/internal/backtest/engine/engine_v1/commission_fee"
	"github.com/rxtech-lab/argo-ashare/internal/backtest/engine/engine_v1/rebalance"
	"github.com/rxtech-lab/argo-ashare/internal/backtest/engine/engine_v1/risk"
	"github.com/rxtech-lab/argo-ashare/internal/version"
	"github.com/rxtech-lab/argo-ashare/pkg/errors"
	"gopkg.in/yaml.v3"
)

type ReplayMode string

const (
	// ReplayModeAuto treats the replay as intraday when any of the first
	// timestamps carries a time of day.
	ReplayModeAuto     ReplayMode = "auto"
	ReplayModeDaily    ReplayMode = "daily"
	ReplayModeIntraday ReplayMode = "intraday"
)

var AllReplayModes = []any{
	ReplayModeAuto,
	ReplayModeDaily,
	ReplayModeIntraday,
}

const (
	DefaultInitialCapital = 1_000_000
	DefaultTradesFile     = "daily_trades.csv"
	DefaultEquityFile     = "equity_curve.csv"
	DefaultPnLFile        = "daily_pnl.csv"
	// intradaySampleSize is how many leading timestamps auto mode inspects.
	intradaySampleSize = 10
)

// OutputConfig names the files a run writes into its result folder.
type OutputConfig struct {
	TradesFile string `yaml:"trades_file" json:"trades_file" validate:"required" jsonschema:"title=Trades File,default=daily_trades.csv"`
	EquityFile string `yaml:"equity_file" json:"equity_file" validate:"required" jsonschema:"title=Equity File,default=equity_curve.csv"`
	PnLFile    string `yaml:"pnl_file" json:"pnl_file" validate:"required" jsonschema:"title=PnL File,default=daily_pnl.csv"`
	// Parquet also writes a .parquet copy of every table.
	Parquet bool `yaml:"parquet" json:"parquet" jsonschema:"title=Parquet,description=Also export every table as Parquet,default=true"`
}

type BacktestEngineV1Config struct {
	InitialCapital float64                  `yaml:"initial_capital" json:"initial_capital" validate:"gt=0" jsonschema:"title=Initial Capital,description=Starting cash in CNY,exclusiveMinimum=0,default=1000000"`
	Fee            commission_fee.FeeConfig `yaml:"fee" json:"fee" jsonschema:"title=Fee,description=Commission schedule applied to both legs"`
	Risk           risk.Config              `yaml:"risk" json:"risk" jsonschema:"title=Risk,description=Position cap and drawdown breaker"`
	ReplayMode     ReplayMode               `yaml:"replay_mode" json:"replay_mode" jsonschema:"title=Replay Mode,description=auto detects intraday bars from the first timestamps,default=auto"`
	// RebalancePeriod limits rebalancing to once per period, e.g. 5d, 2w or 1m.
	// Empty means every bar.
	RebalancePeriod string                     `yaml:"rebalance_period" json:"rebalance_period" jsonschema:"title=Rebalance Period,description=Nd or Nw or Nm; empty rebalances every bar"`
	StartTime       optional.Option[time.Time] `yaml:"start_time" json:"start_time" jsonschema:"title=Start Time,description=Optional start time for the backtest period"`
	EndTime         optional.Option[time.Time] `yaml:"end_time" json:"end_time" jsonschema:"title=End Time,description=Optional end time for the backtest period"`
	Output          OutputConfig               `yaml:"output" json:"output" jsonschema:"title=Output"`
	LogLevel        string                     `yaml:"log_level" json:"log_level" validate:"omitempty,oneof=debug info warn error" jsonschema:"title=Log Level,enum=debug,enum=info,enum=warn,enum=error,default=info"`
	// EngineVersion is the engine version the config was written for. When
	// set, the running engine must share its major and minor version.
	EngineVersion string `yaml:"engine_version" json:"engine_version" jsonschema:"title=Engine Version,description=Engine version this config targets"`
}

// UnmarshalYAML overlays the document onto c, so fields absent from the YAML
// keep their current values.
func (c *BacktestEngineV1Config) UnmarshalYAML(value *yaml.Node) error {
	type Config struct {
		InitialCapital  *float64                  `yaml:"initial_capital"`
		Fee             *commission_fee.FeeConfig `yaml:"fee"`
		Risk            *risk.Config              `yaml:"risk"`
		ReplayMode      *ReplayMode               `yaml:"replay_mode"`
		RebalancePeriod *string                   `yaml:"rebalance_period"`
		StartTime       *time.Time                `yaml:"start_time"`
		EndTime         *time.Time                `yaml:"end_time"`
		Output          *OutputConfig             `yaml:"output"`
		LogLevel        *string                   `yaml:"log_level"`
		EngineVersion   *string                   `yaml:"engine_version"`
	}

	fee := c.Fee
	riskConfig := c.Risk
	output := c.Output

	config := Config{Fee: &fee, Risk: &riskConfig, Output: &output}
	if err := value.Decode(&config); err != nil {
		return err
	}

	if config.InitialCapital != nil {
		c.InitialCapital = *config.InitialCapital
	}

	if config.Fee != nil {
		c.Fee = *config.Fee
	}

	if config.Risk != nil {
		c.Risk = *config.Risk
	}

	if config.ReplayMode != nil {
		c.ReplayMode = *config.ReplayMode
	}

	if config.RebalancePeriod != nil {
		c.RebalancePeriod = *config.RebalancePeriod
	}

	if config.StartTime != nil {
		c.StartTime = optional.Some(*config.StartTime)
	}

	if config.EndTime != nil {
		c.EndTime = optional.Some(*config.EndTime)
	}

	if config.Output != nil {
		c.Output = *config.Output
	}

	if config.LogLevel != nil {
		c.LogLevel = *config.LogLevel
	}

	if config.EngineVersion != nil {
		c.EngineVersion = *config.EngineVersion
	}

	return nil
}

// MarshalYAML writes the replay window as plain timestamps, omitted when unset.
func (c BacktestEngineV1Config) MarshalYAML() (any, error) {
	type Config struct {
		InitialCapital  float64                  `yaml:"initial_capital"`
		Fee             commission_fee.FeeConfig `yaml:"fee"`
		Risk            risk.Config              `yaml:"risk"`
		ReplayMode      ReplayMode               `yaml:"replay_mode"`
		RebalancePeriod string                   `yaml:"rebalance_period"`
		StartTime       *time.Time               `yaml:"start_time,omitempty"`
		EndTime         *time.Time               `yaml:"end_time,omitempty"`
		Output          OutputConfig             `yaml:"output"`
		LogLevel        string                   `yaml:"log_level"`
		EngineVersion   string                   `yaml:"engine_version,omitempty"`
	}

	config := Config{
		InitialCapital:  c.InitialCapital,
		Fee:             c.Fee,
		Risk:            c.Risk,
		ReplayMode:      c.ReplayMode,
		RebalancePeriod: c.RebalancePeriod,
		StartTime:       nil,
		EndTime:         nil,
		Output:          c.Output,
		LogLevel:        c.LogLevel,
		EngineVersion:   c.EngineVersion,
	}

	if start, err := c.StartTime.Take(); err == nil {
		config.StartTime = &start
	}

	if end, err := c.EndTime.Take(); err == nil {
		config.EndTime = &end
	}

	return config, nil
}

// Validate reports the first configuration error. Every error carries a
// validation error code.
func (c *BacktestEngineV1Config) Validate() error {
	validate := validator.New()

	if err := validate.Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid backtest config", err)
	}

	if _, err := commission_fee.NewFeeModel(c.Fee); err != nil {
		return err
	}

	if err := c.Risk.Validate(); err != nil {
		return err
	}

	switch c.ReplayMode {
	case ReplayModeAuto, ReplayModeDaily, ReplayModeIntraday, "":
	default:
		return errors.Newf(errors.ErrCodeInvalidConfiguration, "unknown replay mode %q", c.ReplayMode)
	}

	if c.RebalancePeriod != "" {
		if _, err := rebalance.ParsePeriod(c.RebalancePeriod); err != nil {
			return err
		}
	}

	start, startErr := c.StartTime.Take()
	end, endErr := c.EndTime.Take()

	if startErr == nil && endErr == nil && end.Before(start) {
		return errors.Newf(errors.ErrCodeInvalidPeriod, "end_time %s is before start_time %s", end, start)
	}

	if c.EngineVersion != "" {
		if err := version.CheckVersionCompatibility(version.GetVersion(), c.EngineVersion); err != nil {
			return errors.Wrap(errors.ErrCodeVersionMismatch, "config targets an incompatible engine", err)
		}
	}

	return nil
}

// GenerateSchema generates a JSON schema for the BacktestEngineV1Config
func (c *BacktestEngineV1Config) GenerateSchema() (*jsonschema.Schema, error) {
	reflector := jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		ExpandedStruct:             true,
		AllowAdditionalProperties:  false,
		Mapper: func(t reflect.Type) *jsonschema.Schema {
			switch {
			case t.String() == "optional.Option[time.Time]":
				return &jsonschema.Schema{
					Type:   "string",
					Format: "date-time",
				}
			case t.String() == "optional.Option[float64]":
				return &jsonschema.Schema{
					Type: "number",
				}
			case strings.Contains(t.String(), "commission_fee.FeeMode"):
				return &jsonschema.Schema{
					Type: "string",
					Enum: commission_fee.AllFeeModes,
				}
			case strings.Contains(t.String(), "engine.ReplayMode"):
				return &jsonschema.Schema{
					Type: "string",
					Enum: AllReplayModes,
				}
			}

			return nil
		},
	}

	schema := reflector.Reflect(c)

	schema.Title = "backtest-engine-v1-config"
	schema.Description = "Configuration schema for BacktestEngineV1"
	schema.Version = "http://json-schema.org/draft-07/schema#"

	return schema, nil
}

// GenerateSchemaJSON generates a JSON schema string for the BacktestEngineV1Config
func (c *BacktestEngineV1Config) GenerateSchemaJSON() (string, error) {
	schema, err := c.GenerateSchema()
	if err != nil {
		return "", err
	}

	schemaBytes, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return "", err
	}

	return string(schemaBytes), nil
}

func DefaultOutputConfig() OutputConfig {
	return OutputConfig{
		TradesFile: DefaultTradesFile,
		EquityFile: DefaultEquityFile,
		PnLFile:    DefaultPnLFile,
		Parquet:    true,
	}
}

// DefaultConfig returns the configuration a run uses when the YAML omits a field.
func DefaultConfig() BacktestEngineV1Config {
	return BacktestEngineV1Config{
		InitialCapital:  DefaultInitialCapital,
		Fee:             commission_fee.DefaultFeeConfig(),
		Risk:            risk.DefaultConfig(),
		ReplayMode:      ReplayModeAuto,
		RebalancePeriod: "",
		StartTime:       optional.None[time.Time](),
		EndTime:         optional.None[time.Time](),
		Output:          DefaultOutputConfig(),
		LogLevel:        "info",
		EngineVersion:   "",
	}
}

// TestConfig is DefaultConfig bounded to [startTime, endTime] with a
// permissive risk profile and the given fee schedule.
func TestConfig(startTime time.Time, endTime time.Time, fee commission_fee.FeeConfig) BacktestEngineV1Config {
	config := DefaultConfig()
	config.Fee = fee
	config.Risk.MaxPositionPct = 1
	config.Risk.MaxDrawdown = 1
	config.StartTime = optional.Some(startTime)
	config.EndTime = optional.Some(endTime)

	return config
}

// EmptyConfig returns a BacktestEngineV1Config with zero values
func EmptyConfig() BacktestEngineV1Config {
	return BacktestEngineV1Config{
		InitialCapital:  0,
		Fee:             commission_fee.FeeConfig{},
		Risk:            risk.Config{},
		ReplayMode:      "",
		RebalancePeriod: "",
		StartTime:       optional.None[time.Time](),
		EndTime:         optional.None[time.Time](),
		Output:          OutputConfig{},
		LogLevel:        "",
		EngineVersion:   "",
	}
}
