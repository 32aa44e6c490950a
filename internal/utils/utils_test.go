package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type UtilsTestSuite struct {
	suite.Suite
}

func TestUtilsTestSuite(t *testing.T) {
	suite.Run(t, new(UtilsTestSuite))
}

func (suite *UtilsTestSuite) TestTargetShares() {
	tests := []struct {
		name       string
		totalValue float64
		weight     float64
		price      float64
		expected   int64
	}{
		{"half of a million at 100", 1_000_000, 0.5, 100, 5000},
		{"fractional shares are floored", 1000, 0.3, 7, 42},
		{"zero weight", 1_000_000, 0, 100, 0},
		{"negative weight", 1_000_000, -0.2, 100, 0},
		{"zero price", 1_000_000, 0.5, 0, 0},
		{"empty portfolio", 0, 0.5, 100, 0},
	}

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			suite.Equal(tc.expected, TargetShares(tc.totalValue, tc.weight, tc.price))
		})
	}
}

func (suite *UtilsTestSuite) TestSameSession() {
	morning := time.Date(2024, 1, 2, 9, 31, 0, 0, time.UTC)
	afternoon := time.Date(2024, 1, 2, 14, 59, 0, 0, time.UTC)
	nextDay := time.Date(2024, 1, 3, 9, 31, 0, 0, time.UTC)

	suite.True(SameSession(morning, afternoon))
	suite.False(SameSession(afternoon, nextDay))
}

func (suite *UtilsTestSuite) TestIsIntraday() {
	daily := []time.Time{
		time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC),
	}
	suite.False(IsIntraday(daily, 10))
	suite.False(IsIntraday(nil, 10))

	minute := append([]time.Time{}, daily...)
	minute = append(minute, time.Date(2024, 1, 4, 9, 30, 0, 0, time.UTC))
	suite.True(IsIntraday(minute, 10))
	// only the sampled prefix is inspected
	suite.False(IsIntraday(minute, 2))
}

func (suite *UtilsTestSuite) TestFormatBarTime() {
	ts := time.Date(2024, 5, 6, 13, 5, 9, 0, time.UTC)
	suite.Equal("2024-05-06", FormatBarTime(ts, false))
	suite.Equal("2024-05-06 13:05:09", FormatBarTime(ts, true))
	suite.Equal("13:05", ClockKey(ts))
}

func (suite *UtilsTestSuite) TestCalendarDaysBetween() {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	suite.Equal(0, CalendarDaysBetween(start, start))
	suite.Equal(31, CalendarDaysBetween(start, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)))
}
