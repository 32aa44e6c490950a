package types

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rxtech-lab/argo-ashare/pkg/errors"
)

// MarketData is one OHLCV bar of one instrument.
type MarketData struct {
	Symbol string    `yaml:"symbol" json:"symbol" csv:"symbol" validate:"required"`
	Time   time.Time `yaml:"time" json:"time" csv:"time" validate:"required"`
	Open   float64   `yaml:"open" json:"open" csv:"open" validate:"gt=0"`
	High   float64   `yaml:"high" json:"high" csv:"high" validate:"gt=0"`
	Low    float64   `yaml:"low" json:"low" csv:"low" validate:"gt=0"`
	Close  float64   `yaml:"close" json:"close" csv:"close" validate:"gt=0"`
	Volume float64   `yaml:"volume" json:"volume" csv:"volume" validate:"gte=0"`
}

var barValidator = validator.New()

// Validate checks that the bar is tagged with a symbol and time, carries
// positive prices and a non-negative volume.
func (m *MarketData) Validate() error {
	if err := barValidator.Struct(m); err != nil {
		return errors.Wrapf(errors.ErrCodeInvalidMarketData, err, "invalid bar for %s at %s", m.Symbol, m.Time)
	}

	return nil
}
