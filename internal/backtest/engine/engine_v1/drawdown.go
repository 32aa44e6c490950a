package engine

import (
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-ashare/internal/types"
	"github.com/rxtech-lab/argo-ashare/internal/utils"
)

// CalcDrawdown scans the equity curve once, keeping the running peak and where
// it happened. The deepest (peak - value) / peak decline wins; ties keep the
// earliest. An empty or never-declining curve yields a zero drawdown with no
// start or end.
func CalcDrawdown(curve []types.EquityPoint) types.Drawdown {
	result := types.Drawdown{
		MaxDrawdown:  0,
		Start:        optional.None[time.Time](),
		End:          optional.None[time.Time](),
		DurationDays: 0,
	}

	if len(curve) == 0 {
		return result
	}

	peak := curve[0].Total
	peakIndex := 0

	for i, point := range curve {
		if point.Total > peak {
			peak = point.Total
			peakIndex = i
		}

		if peak <= 0 {
			continue
		}

		drawdown := (peak - point.Total) / peak
		if drawdown > result.MaxDrawdown {
			result.MaxDrawdown = drawdown
			result.Start = optional.Some(curve[peakIndex].Time)
			result.End = optional.Some(point.Time)
			result.DurationDays = utils.CalendarDaysBetween(curve[peakIndex].Time, point.Time)
		}
	}

	return result
}
