package engine

import (
	"fmt"
	"path/filepath"
)

// getResultFolder returns <resultsFolder>/<strategy>, with a start_end sub
// folder when the replay window is bounded. A missing bound reads "all".
func getResultFolder(resultsFolder string, strategyName string, config BacktestEngineV1Config) string {
	strategyFolder := filepath.Join(resultsFolder, strategyName)

	if config.StartTime.IsNone() && config.EndTime.IsNone() {
		return strategyFolder
	}

	startTimeStr := "all"
	endTimeStr := "all"

	if config.StartTime.IsSome() {
		startTimeStr = config.StartTime.Unwrap().Format("20060102")
	}

	if config.EndTime.IsSome() {
		endTimeStr = config.EndTime.Unwrap().Format("20060102")
	}

	return filepath.Join(strategyFolder, fmt.Sprintf("%s_%s", startTimeStr, endTimeStr))
}
