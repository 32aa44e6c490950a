package rebalance

import (
	"strconv"
	"strings"
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-ashare/pkg/errors"
)

type Unit byte

const (
	UnitDay   Unit = 'd'
	UnitWeek  Unit = 'w'
	UnitMonth Unit = 'm'
)

// Period is a parsed rebalance period such as "5d", "2w" or "1m".
type Period struct {
	N    int
	Unit Unit
}

var aliases = map[string]string{
	"daily":   "1d",
	"weekly":  "1w",
	"monthly": "1m",
}

// ParsePeriod parses "<N>d", "<N>w", "<N>m" (N >= 1) or one of the aliases
// daily, weekly, monthly.
func ParsePeriod(s string) (Period, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if alias, ok := aliases[s]; ok {
		s = alias
	}

	if len(s) < 2 {
		return Period{}, errors.Newf(errors.ErrCodeInvalidRebalancePeriod, "invalid rebalance period %q", s)
	}

	unit := Unit(s[len(s)-1])
	if unit != UnitDay && unit != UnitWeek && unit != UnitMonth {
		return Period{}, errors.Newf(errors.ErrCodeInvalidRebalancePeriod, "invalid rebalance period unit in %q, expected d, w or m", s)
	}

	n, err := strconv.Atoi(s[:len(s)-1])
	if err != nil || n < 1 {
		return Period{}, errors.Newf(errors.ErrCodeInvalidRebalancePeriod, "invalid rebalance period count in %q", s)
	}

	return Period{N: n, Unit: unit}, nil
}

func (p Period) String() string {
	return strconv.Itoa(p.N) + string(p.Unit)
}

// Controller gates rebalancing to once per period. The first call always
// allows a rebalance.
type Controller struct {
	period Period
	last   optional.Option[time.Time]
}

func NewController(period Period) *Controller {
	return &Controller{period: period, last: optional.None[time.Time]()}
}

// ShouldRebalance reports whether a rebalance is due at ts, and if so marks ts
// as the last rebalance.
func (c *Controller) ShouldRebalance(ts time.Time) bool {
	last, err := c.last.Take()
	if err != nil || c.due(last, ts) {
		c.last = optional.Some(ts)

		return true
	}

	return false
}

func (c *Controller) due(last time.Time, ts time.Time) bool {
	days := int(ts.Sub(last).Hours() / 24)

	switch c.period.Unit {
	case UnitDay:
		return days >= c.period.N
	case UnitWeek:
		return days/7 >= c.period.N
	case UnitMonth:
		months := (ts.Year()-last.Year())*12 + int(ts.Month()) - int(last.Month())

		return months >= c.period.N
	default:
		return false
	}
}
