package indicator

import (
	"fmt"
	"time"

	"github.com/rxtech-lab/argo-ashare/internal/backtest/engine/engine_v1/datasource"
	"github.com/rxtech-lab/argo-ashare/internal/types"
	"github.com/rxtech-lab/argo-ashare/pkg/errors"
)

// MA indicator implements Simple Moving Average calculation over closes.
type MA struct {
	period int
}

// NewMA creates a new MA indicator over period bars.
func NewMA(period int) (*MA, error) {
	if period <= 0 {
		return nil, errors.Newf(errors.ErrCodeInvalidPeriod, "period must be a positive integer, got %d", period)
	}

	return &MA{period: period}, nil
}

// Name returns the name of the indicator.
func (m *MA) Name() string {
	return fmt.Sprintf("ma%d", m.period)
}

// Period returns the number of bars averaged.
func (m *MA) Period() int {
	return m.period
}

// Value returns the average close of the last period bars up to end. It
// returns an InsufficientDataError while fewer than period bars exist.
func (m *MA) Value(ds datasource.DataSource, symbol string, end time.Time) (float64, error) {
	historicalData, err := ds.GetPreviousNumberOfDataPoints(end, symbol, m.period)
	if err != nil {
		return 0, err
	}

	return calculateSimpleMovingAverage(historicalData), nil
}

// calculateSimpleMovingAverage calculates a simple moving average from the given historical data.
func calculateSimpleMovingAverage(data []types.MarketData) float64 {
	if len(data) == 0 {
		return 0
	}

	sum := 0.0
	for _, d := range data {
		sum += d.Close
	}

	return sum / float64(len(data))
}
