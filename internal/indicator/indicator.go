package indicator

import (
	"time"

	"github.com/rxtech-lab/argo-ashare/internal/backtest/engine/engine_v1/datasource"
)

// Indicator computes a value for one instrument from the bars up to and
// including end. Implementations must not look past end.
type Indicator interface {
	// Name returns the name of the indicator
	Name() string
	// Value returns the indicator value at end
	Value(ds datasource.DataSource, symbol string, end time.Time) (float64, error)
}
