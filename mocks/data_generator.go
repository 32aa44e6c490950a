package mocks

import (
	"encoding/csv"
	"math"
	"math/rand"
	"os"
	"strconv"
	"time"

	"github.com/rxtech-lab/argo-ashare/internal/types"
	"github.com/rxtech-lab/argo-ashare/internal/utils"
)

// Frequency selects daily or one-minute bars.
type Frequency string

const (
	FrequencyDaily  Frequency = "daily"
	FrequencyMinute Frequency = "minute"
)

// MinutesPerSession is the number of one-minute bars in an A-share session:
// 09:31 to 11:30 and 13:01 to 15:00, each bar stamped at its close.
const MinutesPerSession = 240

var shanghai = time.FixedZone("CST", 8*3600)

// DataGenerator generates realistic A-share bars for tests and benchmarks.
type DataGenerator struct {
	rng *rand.Rand
}

// NewDataGenerator creates a new DataGenerator with the given seed.
// Use a fixed seed for reproducible results in tests.
func NewDataGenerator(seed int64) *DataGenerator {
	return &DataGenerator{
		rng: rand.New(rand.NewSource(seed)),
	}
}

// GeneratorConfig configures how market data is generated.
type GeneratorConfig struct {
	// Symbol is the instrument code, e.g. "600519.SH".
	Symbol string
	// StartDate is the first calendar day considered. Weekends are skipped.
	StartDate time.Time
	// Days is the number of trading days to generate.
	Days      int
	Frequency Frequency
	// InitialPrice is the starting price in CNY.
	InitialPrice float64
	// Volatility controls price movement per bar (0.01 = 1%).
	Volatility float64
	// Trend is the total drift over the whole series (-0.2 to 0.2 is typical).
	Trend float64
	// VolumeBase is the average volume per bar.
	VolumeBase float64
	// VolumeVariance is the variance in volume (0.0 to 1.0).
	VolumeVariance float64
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() GeneratorConfig {
	return GeneratorConfig{
		Symbol:         "600000.SH",
		StartDate:      time.Date(2024, 1, 2, 0, 0, 0, 0, shanghai),
		Days:           20,
		Frequency:      FrequencyDaily,
		InitialPrice:   10.0,
		Volatility:     0.02,
		Trend:          0.0,
		VolumeBase:     100000,
		VolumeVariance: 0.3,
	}
}

// TradingDays returns count weekdays starting at start, at midnight.
func TradingDays(start time.Time, count int) []time.Time {
	days := make([]time.Time, 0, count)
	day := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, start.Location())

	for len(days) < count {
		if day.Weekday() != time.Saturday && day.Weekday() != time.Sunday {
			days = append(days, day)
		}

		day = day.AddDate(0, 0, 1)
	}

	return days
}

// SessionMinutes returns the bar timestamps of one A-share trading day.
func SessionMinutes(day time.Time) []time.Time {
	minutes := make([]time.Time, 0, MinutesPerSession)

	for _, open := range []time.Time{
		time.Date(day.Year(), day.Month(), day.Day(), 9, 30, 0, 0, day.Location()),
		time.Date(day.Year(), day.Month(), day.Day(), 13, 0, 0, 0, day.Location()),
	} {
		for i := 1; i <= MinutesPerSession/2; i++ {
			minutes = append(minutes, open.Add(time.Duration(i)*time.Minute))
		}
	}

	return minutes
}

func (c GeneratorConfig) timestamps() []time.Time {
	days := TradingDays(c.StartDate, c.Days)
	if c.Frequency != FrequencyMinute {
		return days
	}

	stamps := make([]time.Time, 0, len(days)*MinutesPerSession)
	for _, day := range days {
		stamps = append(stamps, SessionMinutes(day)...)
	}

	return stamps
}

// Generate creates one instrument's bars. Prices follow a geometric Brownian
// motion and are rounded to the 0.01 CNY tick.
func (g *DataGenerator) Generate(config GeneratorConfig) []types.MarketData {
	stamps := config.timestamps()
	data := make([]types.MarketData, len(stamps))
	currentPrice := config.InitialPrice

	for i, ts := range stamps {
		open := currentPrice

		// Box-Muller transform for a standard normal draw
		u1 := 1 - g.rng.Float64()
		u2 := g.rng.Float64()
		z := math.Sqrt(-2*math.Log(u1)) * math.Cos(2*math.Pi*u2)

		drift := config.Trend / float64(len(stamps))

		close := open * (1 + config.Volatility*z + drift)
		if close <= 0.01 {
			close = open * 0.99
		}

		high := math.Max(open, close) + math.Abs(g.rng.Float64()*config.Volatility*open*0.5)
		low := math.Min(open, close) - math.Abs(g.rng.Float64()*config.Volatility*open*0.5)

		if low <= 0.01 {
			low = math.Min(open, close) * 0.99
		}

		volume := config.VolumeBase * (1.0 + (g.rng.Float64()*2-1)*config.VolumeVariance)
		if volume < 0 {
			volume = config.VolumeBase * 0.1
		}

		data[i] = types.MarketData{
			Symbol: config.Symbol,
			Time:   ts,
			Open:   roundToTick(open),
			High:   roundToTick(high),
			Low:    math.Max(roundToTick(low), 0.01),
			Close:  roundToTick(close),
			Volume: math.Round(volume),
		}

		currentPrice = close
	}

	return data
}

// GenerateMultiSymbol generates one series per symbol keyed by symbol, the
// shape in-memory data sources are built from.
func (g *DataGenerator) GenerateMultiSymbol(symbols []string, baseConfig GeneratorConfig) map[string][]types.MarketData {
	bars := make(map[string][]types.MarketData, len(symbols))

	for _, symbol := range symbols {
		config := baseConfig
		config.Symbol = symbol
		// Vary initial price and volatility slightly per symbol
		config.InitialPrice = baseConfig.InitialPrice * (0.8 + g.rng.Float64()*0.4)
		config.Volatility = baseConfig.Volatility * (0.8 + g.rng.Float64()*0.4)

		bars[symbol] = g.Generate(config)
	}

	return bars
}

// WriteCSV writes bars in the date,code,open,high,low,close,volume layout the
// DuckDB data source reads. Intraday bars keep their clock.
func WriteCSV(path string, bars []types.MarketData) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)

	if err := writer.Write([]string{"date", "code", "open", "high", "low", "close", "volume"}); err != nil {
		return err
	}

	for _, bar := range bars {
		record := []string{
			utils.FormatBarTime(bar.Time, utils.HasTimeOfDay(bar.Time)),
			bar.Symbol,
			formatFloat(bar.Open),
			formatFloat(bar.High),
			formatFloat(bar.Low),
			formatFloat(bar.Close),
			formatFloat(bar.Volume),
		}

		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()

	return writer.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func roundToTick(val float64) float64 {
	return math.Round(val*100) / 100
}
