package strategy

import (
	"maps"
	"time"
)

// FixedWeights replays a script of target weights keyed by bar time. Bars
// missing from the script yield no weights.
type FixedWeights struct {
	name   string
	script map[int64]map[string]float64
}

func NewFixedWeights(name string, script map[time.Time]map[string]float64) *FixedWeights {
	byNano := make(map[int64]map[string]float64, len(script))
	for ts, weights := range script {
		byNano[ts.UnixNano()] = maps.Clone(weights)
	}

	return &FixedWeights{name: name, script: byNano}
}

func (s *FixedWeights) Name() string {
	return s.name
}

func (s *FixedWeights) OnBar(ts time.Time) (map[string]float64, error) {
	weights, ok := s.script[ts.UnixNano()]
	if !ok {
		return nil, nil
	}

	return maps.Clone(weights), nil
}
