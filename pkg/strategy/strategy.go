package strategy

import (
	"time"

	"github.com/rxtech-lab/argo-ashare/internal/backtest/engine/engine_v1/datasource"
	"github.com/rxtech-lab/argo-ashare/internal/types"
)

// Strategy turns a replay timestamp into target portfolio weights keyed by
// instrument. An empty or nil map means no rebalancing on this bar.
type Strategy interface {
	// Name identifies the strategy in logs and result folders.
	Name() string
	// OnBar is called once per bar after prices are updated.
	OnBar(ts time.Time) (map[string]float64, error)
}

// Scheduler accepts time-of-day callbacks. trigger is an "HH:MM" clock time
// or "after_close".
type Scheduler interface {
	Register(trigger string, callback func(snapshot types.Snapshot) error) error
}

// ScheduledStrategy is a Strategy that also registers scheduled callbacks
// before the replay starts.
type ScheduledStrategy interface {
	Strategy
	RegisterSchedules(scheduler Scheduler) error
}

// Initializable strategies receive the run's data source before the first bar.
type Initializable interface {
	Initialize(ds datasource.DataSource) error
}

// Configurable strategies describe their parameters as a JSON schema.
type Configurable interface {
	GetConfigSchema() (string, error)
}
