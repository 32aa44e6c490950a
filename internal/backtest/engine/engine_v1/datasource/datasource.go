package datasource

import (
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-ashare/internal/types"
)

// DataSource serves pre-loaded daily or minute bars for a fixed set of
// instruments. Each instrument's series is strictly increasing in time.
type DataSource interface {
	// Symbols returns the loaded instruments in sorted order.
	Symbols() []string
	// GetBar returns the bar of symbol at exactly ts. The second value is false
	// when the instrument has no bar at ts.
	GetBar(symbol string, ts time.Time) (types.MarketData, bool)
	// GetPreviousNumberOfDataPoints returns up to count bars of symbol ending at
	// (and including) end, oldest first.
	GetPreviousNumberOfDataPoints(end time.Time, symbol string, count int) ([]types.MarketData, error)
	// ReadAll yields every bar of symbol inside the optional time window.
	ReadAll(symbol string, start optional.Option[time.Time], end optional.Option[time.Time]) func(yield func(types.MarketData, error) bool)
	// Timestamps returns the replay calendar: the sorted union of every
	// instrument's timestamps inside the optional time window.
	Timestamps(start optional.Option[time.Time], end optional.Option[time.Time]) []time.Time
	// Close releases any resources held by the data source.
	Close() error
}
