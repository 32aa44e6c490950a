package log

import (
	"time"

	"github.com/rxtech-lab/argo-ashare/internal/types"
)

// LogEntry is one engine event tied to a replay timestamp: a skipped order,
// a dropped price, a failed callback, a risk halt.
type LogEntry struct {
	// Timestamp is the bar time the event happened at.
	Timestamp time.Time
	// Symbol is the instrument involved, empty for portfolio-wide events.
	Symbol  string
	Level   types.LogLevel
	Message string
	// Fields contains optional structured key-value data.
	Fields map[string]string
}

// Log is the interface for journaling engine events.
type Log interface {
	Log(entry LogEntry) error
	GetLogs() ([]LogEntry, error)
}
