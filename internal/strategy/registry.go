package strategy

import (
	"slices"

	"github.com/rxtech-lab/argo-ashare/pkg/errors"
	pkgstrategy "github.com/rxtech-lab/argo-ashare/pkg/strategy"
)

type factory func(config string) (pkgstrategy.Strategy, error)

var registry = map[string]factory{
	MaCrossName: func(config string) (pkgstrategy.Strategy, error) {
		return NewMaCrossFromYAML(config)
	},
	BuyAndHoldName: func(config string) (pkgstrategy.Strategy, error) {
		return NewBuyAndHoldFromYAML(config)
	},
}

// New builds the strategy registered under name from a YAML config. An empty
// config selects the defaults.
func New(name string, config string) (pkgstrategy.Strategy, error) {
	create, ok := registry[name]
	if !ok {
		return nil, errors.Newf(errors.ErrCodeStrategyNotLoaded, "unknown strategy %q, available: %v", name, Names())
	}

	return create(config)
}

// Names lists the registered strategy names in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}

	slices.Sort(names)

	return names
}
