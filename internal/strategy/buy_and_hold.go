package strategy

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rxtech-lab/argo-ashare/internal/backtest/engine/engine_v1/datasource"
	"github.com/rxtech-lab/argo-ashare/pkg/errors"
	pkgstrategy "github.com/rxtech-lab/argo-ashare/pkg/strategy"
)

const BuyAndHoldName = "buy_and_hold"

type BuyAndHoldConfig struct {
	Symbols []string `yaml:"symbols" json:"symbols" jsonschema:"title=Symbols,description=Instruments to buy; empty buys every instrument"`
	// TotalWeight is split equally between the instruments.
	TotalWeight float64 `yaml:"total_weight" json:"total_weight" validate:"gt=0,lte=1" jsonschema:"title=Total Weight,exclusiveMinimum=0,maximum=1,default=1"`
}

func DefaultBuyAndHoldConfig() BuyAndHoldConfig {
	return BuyAndHoldConfig{Symbols: nil, TotalWeight: 1}
}

// BuyAndHold buys an equal-weight basket on the first bar at which every
// instrument of the basket has a price, then never trades again.
type BuyAndHold struct {
	config  BuyAndHoldConfig
	ds      datasource.DataSource
	symbols []string
	bought  bool
}

var (
	_ pkgstrategy.Initializable = (*BuyAndHold)(nil)
	_ pkgstrategy.Configurable  = (*BuyAndHold)(nil)
)

func NewBuyAndHold(config BuyAndHoldConfig) (*BuyAndHold, error) {
	if err := validator.New().Struct(config); err != nil {
		return nil, errors.Wrap(errors.ErrCodeStrategyConfigError, "invalid buy_and_hold config", err)
	}

	return &BuyAndHold{config: config, symbols: config.Symbols}, nil
}

func NewBuyAndHoldFromYAML(config string) (*BuyAndHold, error) {
	cfg, err := pkgstrategy.ParseConfig(BuyAndHoldName, config, DefaultBuyAndHoldConfig())
	if err != nil {
		return nil, err
	}

	return NewBuyAndHold(cfg)
}

func (s *BuyAndHold) Name() string {
	return BuyAndHoldName
}

func (s *BuyAndHold) Initialize(ds datasource.DataSource) error {
	s.ds = ds
	s.bought = false

	if len(s.config.Symbols) == 0 {
		s.symbols = ds.Symbols()
	}

	return nil
}

func (s *BuyAndHold) OnBar(ts time.Time) (map[string]float64, error) {
	if s.ds == nil {
		return nil, errors.New(errors.ErrCodeStrategyNotLoaded, "buy_and_hold is not initialized")
	}

	if s.bought || len(s.symbols) == 0 {
		return nil, nil
	}

	for _, symbol := range s.symbols {
		if _, ok := s.ds.GetBar(symbol, ts); !ok {
			return nil, nil
		}
	}

	weight := s.config.TotalWeight / float64(len(s.symbols))
	weights := make(map[string]float64, len(s.symbols))

	for _, symbol := range s.symbols {
		weights[symbol] = weight
	}

	s.bought = true

	return weights, nil
}

func (s *BuyAndHold) GetConfigSchema() (string, error) {
	return pkgstrategy.ToJSONSchema(BuyAndHoldConfig{})
}
