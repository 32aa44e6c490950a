package strategy

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rxtech-lab/argo-ashare/internal/backtest/engine/engine_v1/datasource"
	"github.com/rxtech-lab/argo-ashare/internal/indicator"
	"github.com/rxtech-lab/argo-ashare/internal/types"
	"github.com/rxtech-lab/argo-ashare/internal/utils"
	"github.com/rxtech-lab/argo-ashare/pkg/errors"
	pkgstrategy "github.com/rxtech-lab/argo-ashare/pkg/strategy"
)

// MaCrossName is the registry name of MaCross.
const MaCrossName = "ma_cross"

type MaCrossConfig struct {
	// Symbols restricts the strategy to these instruments. Empty means every
	// instrument of the data source.
	Symbols     []string `yaml:"symbols" json:"symbols" jsonschema:"title=Symbols,description=Instruments to trade; empty trades every instrument"`
	ShortPeriod int      `yaml:"short_period" json:"short_period" validate:"gt=0" jsonschema:"title=Short Period,minimum=1,default=5"`
	LongPeriod  int      `yaml:"long_period" json:"long_period" validate:"gtfield=ShortPeriod" jsonschema:"title=Long Period,minimum=2,default=20"`
	Weight      float64  `yaml:"weight" json:"weight" validate:"gt=0,lte=1" jsonschema:"title=Weight,description=Target weight while the short average is above the long one,exclusiveMinimum=0,maximum=1,default=0.5"`
	// TriggerTime limits intraday signals to one minute per session. Empty
	// evaluates every bar.
	TriggerTime string `yaml:"trigger_time" json:"trigger_time" jsonschema:"title=Trigger Time,description=HH:MM minute at which intraday signals are evaluated,default=09:58"`
}

func DefaultMaCrossConfig() MaCrossConfig {
	return MaCrossConfig{
		Symbols:     nil,
		ShortPeriod: 5,
		LongPeriod:  20,
		Weight:      0.5,
		TriggerTime: "09:58",
	}
}

// MaCross holds Weight of an instrument while its short simple moving average
// is above the long one, and nothing otherwise. Instruments without enough
// history are left out of the weights, so their positions are kept as is.
type MaCross struct {
	config  MaCrossConfig
	short   *indicator.MA
	long    *indicator.MA
	ds      datasource.DataSource
	symbols []string
	// triggeredAt is the bar at which the trigger callback last fired.
	triggeredAt time.Time
}

var (
	_ pkgstrategy.ScheduledStrategy = (*MaCross)(nil)
	_ pkgstrategy.Initializable     = (*MaCross)(nil)
	_ pkgstrategy.Configurable      = (*MaCross)(nil)
)

func NewMaCross(config MaCrossConfig) (*MaCross, error) {
	if err := validator.New().Struct(config); err != nil {
		return nil, errors.Wrap(errors.ErrCodeStrategyConfigError, "invalid ma_cross config", err)
	}

	short, err := indicator.NewMA(config.ShortPeriod)
	if err != nil {
		return nil, err
	}

	long, err := indicator.NewMA(config.LongPeriod)
	if err != nil {
		return nil, err
	}

	return &MaCross{
		config:  config,
		short:   short,
		long:    long,
		symbols: config.Symbols,
	}, nil
}

// NewMaCrossFromYAML builds a MaCross from a YAML document. Missing fields
// keep their defaults.
func NewMaCrossFromYAML(config string) (*MaCross, error) {
	cfg, err := pkgstrategy.ParseConfig(MaCrossName, config, DefaultMaCrossConfig())
	if err != nil {
		return nil, err
	}

	return NewMaCross(cfg)
}

// Name implements strategy.Strategy.
func (s *MaCross) Name() string {
	return MaCrossName
}

// Initialize implements strategy.Initializable.
func (s *MaCross) Initialize(ds datasource.DataSource) error {
	s.ds = ds
	s.triggeredAt = time.Time{}

	if len(s.config.Symbols) == 0 {
		s.symbols = ds.Symbols()
	}

	return nil
}

// RegisterSchedules implements strategy.ScheduledStrategy.
func (s *MaCross) RegisterSchedules(scheduler pkgstrategy.Scheduler) error {
	if s.config.TriggerTime == "" {
		return nil
	}

	return scheduler.Register(s.config.TriggerTime, func(snapshot types.Snapshot) error {
		s.triggeredAt = snapshot.Time

		return nil
	})
}

// OnBar implements strategy.Strategy.
func (s *MaCross) OnBar(ts time.Time) (map[string]float64, error) {
	if s.ds == nil {
		return nil, errors.New(errors.ErrCodeStrategyNotLoaded, "ma_cross is not initialized")
	}

	// daily bars carry no clock, the trigger only gates intraday replays
	if s.config.TriggerTime != "" && utils.HasTimeOfDay(ts) && !s.triggeredAt.Equal(ts) {
		return nil, nil
	}

	weights := make(map[string]float64, len(s.symbols))

	for _, symbol := range s.symbols {
		short, err := s.short.Value(s.ds, symbol, ts)
		if errors.IsInsufficientDataError(err) {
			continue
		}

		if err != nil {
			return nil, fmt.Errorf("failed to compute %s of %s: %w", s.short.Name(), symbol, err)
		}

		long, err := s.long.Value(s.ds, symbol, ts)
		if errors.IsInsufficientDataError(err) {
			continue
		}

		if err != nil {
			return nil, fmt.Errorf("failed to compute %s of %s: %w", s.long.Name(), symbol, err)
		}

		if short > long {
			weights[symbol] = s.config.Weight
		} else {
			weights[symbol] = 0
		}
	}

	return weights, nil
}

// GetConfigSchema implements strategy.Configurable.
func (s *MaCross) GetConfigSchema() (string, error) {
	return pkgstrategy.ToJSONSchema(MaCrossConfig{})
}
