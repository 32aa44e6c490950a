package risk

import (
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-ashare/internal/logger"
	"github.com/rxtech-lab/argo-ashare/pkg/errors"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

const (
	DefaultMaxPositionPct = 0.3
	DefaultMaxDrawdown    = 0.2
)

// Config holds the risk thresholds. Every threshold is a fraction in (0, 1].
type Config struct {
	// MaxPositionPct caps the target weight of any single instrument.
	MaxPositionPct float64 `yaml:"max_position_pct" json:"max_position_pct" jsonschema:"title=Max Position Pct,description=Largest weight a single instrument may take,exclusiveMinimum=0,maximum=1,default=0.3"`
	// MaxDrawdown halts the run once the portfolio falls this far below its peak.
	MaxDrawdown float64 `yaml:"max_drawdown" json:"max_drawdown" jsonschema:"title=Max Drawdown,description=Drawdown from peak that halts the backtest,exclusiveMinimum=0,maximum=1,default=0.2"`
	// StopLossPct enables the per-instrument stop loss when set.
	StopLossPct optional.Option[float64] `yaml:"stop_loss_pct" json:"stop_loss_pct" jsonschema:"title=Stop Loss Pct,description=Loss from average cost that triggers the stop loss"`
	// LiquidateOnStopLoss makes the runner close positions whose stop loss fired.
	LiquidateOnStopLoss bool `yaml:"liquidate_on_stop_loss" json:"liquidate_on_stop_loss" jsonschema:"title=Liquidate On Stop Loss,default=false"`
}

// DefaultConfig returns the default thresholds with the stop loss disabled.
func DefaultConfig() Config {
	return Config{
		MaxPositionPct:      DefaultMaxPositionPct,
		MaxDrawdown:         DefaultMaxDrawdown,
		StopLossPct:         optional.None[float64](),
		LiquidateOnStopLoss: false,
	}
}

// UnmarshalYAML reads stop_loss_pct as a plain optional number.
func (c *Config) UnmarshalYAML(value *yaml.Node) error {
	type rawConfig struct {
		MaxPositionPct      *float64 `yaml:"max_position_pct"`
		MaxDrawdown         *float64 `yaml:"max_drawdown"`
		StopLossPct         *float64 `yaml:"stop_loss_pct"`
		LiquidateOnStopLoss bool     `yaml:"liquidate_on_stop_loss"`
	}

	var raw rawConfig
	if err := value.Decode(&raw); err != nil {
		return err
	}

	if raw.MaxPositionPct != nil {
		c.MaxPositionPct = *raw.MaxPositionPct
	}

	if raw.MaxDrawdown != nil {
		c.MaxDrawdown = *raw.MaxDrawdown
	}

	c.StopLossPct = optional.None[float64]()
	if raw.StopLossPct != nil {
		c.StopLossPct = optional.Some(*raw.StopLossPct)
	}

	c.LiquidateOnStopLoss = raw.LiquidateOnStopLoss

	return nil
}

// MarshalYAML writes stop_loss_pct as a plain number or null.
func (c Config) MarshalYAML() (any, error) {
	type rawConfig struct {
		MaxPositionPct      float64  `yaml:"max_position_pct"`
		MaxDrawdown         float64  `yaml:"max_drawdown"`
		StopLossPct         *float64 `yaml:"stop_loss_pct"`
		LiquidateOnStopLoss bool     `yaml:"liquidate_on_stop_loss"`
	}

	raw := rawConfig{
		MaxPositionPct:      c.MaxPositionPct,
		MaxDrawdown:         c.MaxDrawdown,
		LiquidateOnStopLoss: c.LiquidateOnStopLoss,
	}

	if stopLoss, err := c.StopLossPct.Take(); err == nil {
		raw.StopLossPct = &stopLoss
	}

	return raw, nil
}

// Validate checks that every configured threshold lies in (0, 1].
func (c Config) Validate() error {
	if !inUnitInterval(c.MaxPositionPct) {
		return errors.Newf(errors.ErrCodeInvalidThreshold, "max_position_pct must be in (0, 1], got %v", c.MaxPositionPct)
	}

	if !inUnitInterval(c.MaxDrawdown) {
		return errors.Newf(errors.ErrCodeInvalidThreshold, "max_drawdown must be in (0, 1], got %v", c.MaxDrawdown)
	}

	if stopLoss, err := c.StopLossPct.Take(); err == nil && !inUnitInterval(stopLoss) {
		return errors.Newf(errors.ErrCodeInvalidThreshold, "stop_loss_pct must be in (0, 1], got %v", stopLoss)
	}

	return nil
}

func inUnitInterval(v float64) bool {
	return v > 0 && v <= 1
}

// RiskManager enforces the position cap and the drawdown breaker. The only
// state it keeps is the running peak portfolio value, which never decreases
// over the life of the manager.
type RiskManager struct {
	config Config
	peak   optional.Option[float64]
	log    *logger.Logger
}

// NewRiskManager validates cfg and returns a manager with no recorded peak.
func NewRiskManager(cfg Config, log *logger.Logger) (*RiskManager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if log == nil {
		log = logger.NewNopLogger()
	}

	return &RiskManager{
		config: cfg,
		peak:   optional.None[float64](),
		log:    log,
	}, nil
}

// Config returns the thresholds the manager was built with.
func (r *RiskManager) Config() Config {
	return r.config
}

// CapPosition clamps weight to [0, max_position_pct].
func (r *RiskManager) CapPosition(weight float64) float64 {
	if weight < 0 {
		return 0
	}

	if weight > r.config.MaxPositionPct {
		return r.config.MaxPositionPct
	}

	return weight
}

// CheckPortfolio updates the running peak with value and reports whether the
// run may continue. It returns false when value is negative or when the
// drawdown from the peak reaches max_drawdown.
func (r *RiskManager) CheckPortfolio(value float64) bool {
	if value < 0 {
		r.log.Error("Portfolio value is negative", zap.Float64("value", value))

		return false
	}

	peak, err := r.peak.Take()
	if err != nil || value > peak {
		peak = value
	}

	r.peak = optional.Some(peak)

	if peak <= 0 {
		return true
	}

	drawdown := (peak - value) / peak
	if drawdown >= r.config.MaxDrawdown {
		r.log.Warn("Max drawdown breached",
			zap.Float64("drawdown", drawdown),
			zap.Float64("peak", peak),
			zap.Float64("value", value),
		)

		return false
	}

	return true
}

// CheckStopLoss reports whether the loss from entry to current reaches the
// configured stop loss. It is always false when no stop loss is configured or
// entry is not positive.
func (r *RiskManager) CheckStopLoss(entry float64, current float64) bool {
	stopLoss, err := r.config.StopLossPct.Take()
	if err != nil {
		return false
	}

	if entry <= 0 {
		return false
	}

	return (entry-current)/entry >= stopLoss
}

// Peak returns the highest portfolio value seen so far, if any.
func (r *RiskManager) Peak() optional.Option[float64] {
	return r.peak
}
