package commission_fee

import (
	"github.com/rxtech-lab/argo-ashare/pkg/errors"
)

type CommissionFee interface {
	// Calculate the fee charged on one fill of the given notional (price * shares).
	// The same schedule applies to buys and sells.
	Calculate(notional float64) float64
}

type FeeMode string

const (
	// FeeModeRate charges notional * rate.
	FeeModeRate FeeMode = "rate"
	// FeeModeRateFixed charges notional * rate_pct plus a flat fee per fill.
	FeeModeRateFixed FeeMode = "rate+fixed"
	FeeModeZero      FeeMode = "zero"
)

var AllFeeModes = []any{
	FeeModeRate,
	FeeModeRateFixed,
	FeeModeZero,
}

const (
	DefaultFeeRate    = 0.001
	DefaultFeeRatePct = 0.0001
	DefaultFeeFixed   = 5.0
)

// FeeConfig selects and parameterizes the fee schedule.
type FeeConfig struct {
	Mode    FeeMode `yaml:"mode" json:"mode" jsonschema:"title=Fee Mode,description=rate or rate+fixed or zero,default=rate"`
	Rate    float64 `yaml:"rate" json:"rate" validate:"gte=0,lt=1" jsonschema:"title=Fee Rate,description=Proportional fee used by the rate mode,minimum=0,default=0.001"`
	RatePct float64 `yaml:"rate_pct" json:"rate_pct" validate:"gte=0,lt=1" jsonschema:"title=Fee Rate Pct,description=Proportional fee used by the rate+fixed mode,minimum=0,default=0.0001"`
	Fixed   float64 `yaml:"fixed" json:"fixed" validate:"gte=0" jsonschema:"title=Fixed Fee,description=Flat fee per fill used by the rate+fixed mode,minimum=0,default=5"`
}

// DefaultFeeConfig is the flat 0.1% schedule.
func DefaultFeeConfig() FeeConfig {
	return FeeConfig{
		Mode:    FeeModeRate,
		Rate:    DefaultFeeRate,
		RatePct: DefaultFeeRatePct,
		Fixed:   DefaultFeeFixed,
	}
}

// NewFeeModel builds the CommissionFee selected by cfg.Mode.
func NewFeeModel(cfg FeeConfig) (CommissionFee, error) {
	switch cfg.Mode {
	case FeeModeRate, "":
		return NewRateCommissionFee(cfg.Rate), nil
	case FeeModeRateFixed:
		return NewRateFixedCommissionFee(cfg.RatePct, cfg.Fixed), nil
	case FeeModeZero:
		return NewZeroCommissionFee(), nil
	default:
		return nil, errors.Newf(errors.ErrCodeInvalidFeeMode, "unsupported fee mode %q", cfg.Mode)
	}
}
