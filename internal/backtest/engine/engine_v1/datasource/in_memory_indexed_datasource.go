package datasource

import (
	"sort"
	"sync"
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-ashare/internal/types"
	"github.com/rxtech-lab/argo-ashare/pkg/errors"
)

// InMemoryIndexedDataSource keeps every bar in memory and answers point
// lookups through a per-symbol time index.
type InMemoryIndexedDataSource struct {
	symbols []string

	// data[symbol][barIndex] = MarketData
	data map[string][]types.MarketData

	// timeIndex[symbol][unixNano] = barIndex
	timeIndex map[string]map[int64]int

	// calendar is the sorted union of every symbol's timestamps
	calendar []time.Time

	mu sync.RWMutex
}

// NewInMemoryDataSource validates and indexes bars keyed by symbol. Every
// series must be non-empty and strictly increasing in time, and every bar
// must pass MarketData.Validate. The slices are copied.
func NewInMemoryDataSource(bars map[string][]types.MarketData) (*InMemoryIndexedDataSource, error) {
	if len(bars) == 0 {
		return nil, errors.New(errors.ErrCodeNoDataFound, "no instruments supplied")
	}

	ds := &InMemoryIndexedDataSource{
		symbols:   make([]string, 0, len(bars)),
		data:      make(map[string][]types.MarketData, len(bars)),
		timeIndex: make(map[string]map[int64]int, len(bars)),
		calendar:  nil,
		mu:        sync.RWMutex{},
	}

	for symbol, series := range bars {
		copied := make([]types.MarketData, len(series))
		copy(copied, series)

		for i := range copied {
			if copied[i].Symbol == "" {
				copied[i].Symbol = symbol
			}
		}

		if err := validateSeries(symbol, copied); err != nil {
			return nil, err
		}

		index := make(map[int64]int, len(copied))
		for i, bar := range copied {
			index[bar.Time.UnixNano()] = i
		}

		ds.symbols = append(ds.symbols, symbol)
		ds.data[symbol] = copied
		ds.timeIndex[symbol] = index
	}

	sort.Strings(ds.symbols)
	ds.calendar = UnionCalendar(ds.data)

	return ds, nil
}

func validateSeries(symbol string, series []types.MarketData) error {
	if len(series) == 0 {
		return errors.Newf(errors.ErrCodeNoDataFound, "instrument %s has no bars", symbol)
	}

	for i := range series {
		bar := series[i]
		if bar.Symbol != symbol {
			return errors.Newf(errors.ErrCodeInvalidMarketData, "bar tagged %s found in series of %s", bar.Symbol, symbol)
		}

		if err := bar.Validate(); err != nil {
			return err
		}

		if i > 0 && !bar.Time.After(series[i-1].Time) {
			return errors.Newf(errors.ErrCodeInvalidMarketData,
				"timestamps of %s are not strictly increasing at %s", symbol, bar.Time)
		}
	}

	return nil
}

// UnionCalendar merges the timestamps of every series into one sorted,
// de-duplicated calendar.
func UnionCalendar(series map[string][]types.MarketData) []time.Time {
	seen := make(map[int64]time.Time)

	for _, bars := range series {
		for _, bar := range bars {
			seen[bar.Time.UnixNano()] = bar.Time
		}
	}

	calendar := make([]time.Time, 0, len(seen))
	for _, ts := range seen {
		calendar = append(calendar, ts)
	}

	sort.Slice(calendar, func(i, j int) bool {
		return calendar[i].Before(calendar[j])
	})

	return calendar
}

func inWindow(ts time.Time, start optional.Option[time.Time], end optional.Option[time.Time]) bool {
	if s, err := start.Take(); err == nil && ts.Before(s) {
		return false
	}

	if e, err := end.Take(); err == nil && ts.After(e) {
		return false
	}

	return true
}

// Symbols implements DataSource.
func (ds *InMemoryIndexedDataSource) Symbols() []string {
	ds.mu.RLock()
	defer ds.mu.RUnlock()

	symbols := make([]string, len(ds.symbols))
	copy(symbols, ds.symbols)

	return symbols
}

// GetBar implements DataSource with an O(1) index lookup.
func (ds *InMemoryIndexedDataSource) GetBar(symbol string, ts time.Time) (types.MarketData, bool) {
	ds.mu.RLock()
	defer ds.mu.RUnlock()

	index, ok := ds.timeIndex[symbol]
	if !ok {
		return types.MarketData{}, false
	}

	barIndex, ok := index[ts.UnixNano()]
	if !ok {
		return types.MarketData{}, false
	}

	return ds.data[symbol][barIndex], true
}

// GetPreviousNumberOfDataPoints implements DataSource. It returns an
// InsufficientDataError when fewer than count bars exist up to end, together
// with the bars that do exist.
func (ds *InMemoryIndexedDataSource) GetPreviousNumberOfDataPoints(end time.Time, symbol string, count int) ([]types.MarketData, error) {
	if count <= 0 {
		return nil, errors.Newf(errors.ErrCodeInvalidParameter, "count must be positive, got %d", count)
	}

	ds.mu.RLock()
	defer ds.mu.RUnlock()

	series, ok := ds.data[symbol]
	if !ok {
		return nil, errors.Newf(errors.ErrCodeDataNotFound, "unknown instrument %s", symbol)
	}

	// first bar strictly after end
	upper := sort.Search(len(series), func(i int) bool {
		return series[i].Time.After(end)
	})

	lower := upper - count
	if lower < 0 {
		lower = 0
	}

	result := make([]types.MarketData, upper-lower)
	copy(result, series[lower:upper])

	if len(result) < count {
		return result, errors.NewInsufficientDataErrorf(count, len(result), symbol,
			"only %d of %d bars available for %s up to %s", len(result), count, symbol, end)
	}

	return result, nil
}

// ReadAll implements DataSource.
func (ds *InMemoryIndexedDataSource) ReadAll(symbol string, start optional.Option[time.Time], end optional.Option[time.Time]) func(yield func(types.MarketData, error) bool) {
	return func(yield func(types.MarketData, error) bool) {
		ds.mu.RLock()
		series, ok := ds.data[symbol]
		ds.mu.RUnlock()

		if !ok {
			yield(types.MarketData{}, errors.Newf(errors.ErrCodeDataNotFound, "unknown instrument %s", symbol))

			return
		}

		for _, bar := range series {
			if !inWindow(bar.Time, start, end) {
				continue
			}

			if !yield(bar, nil) {
				return
			}
		}
	}
}

// Timestamps implements DataSource.
func (ds *InMemoryIndexedDataSource) Timestamps(start optional.Option[time.Time], end optional.Option[time.Time]) []time.Time {
	ds.mu.RLock()
	defer ds.mu.RUnlock()

	timestamps := make([]time.Time, 0, len(ds.calendar))

	for _, ts := range ds.calendar {
		if inWindow(ts, start, end) {
			timestamps = append(timestamps, ts)
		}
	}

	return timestamps
}

// Close implements DataSource.
func (ds *InMemoryIndexedDataSource) Close() error {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	ds.data = make(map[string][]types.MarketData)
	ds.timeIndex = make(map[string]map[int64]int)
	ds.calendar = nil
	ds.symbols = nil

	return nil
}
