package logger

import (
	"time"

	"github.com/rxtech-lab/argo-ashare/internal/utils"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps the zap logger with additional functionality.
type Logger struct {
	*zap.Logger
}

// NewLogger creates a new logger instance with production configuration.
func NewLogger() (*Logger, error) {
	return NewLoggerWithLevel("info")
}

// NewLoggerWithLevel creates a production logger at the given level
// ("debug", "info", "warn", "error"). An empty level means info.
func NewLoggerWithLevel(level string) (*Logger, error) {
	config := zap.NewProductionConfig()

	config.OutputPaths = []string{"stdout"}
	config.ErrorOutputPaths = []string{"stderr"}

	lvl := zapcore.InfoLevel
	if level != "" {
		if err := lvl.UnmarshalText([]byte(level)); err != nil {
			return nil, err
		}
	}

	config.Level = zap.NewAtomicLevelAt(lvl)

	zapLogger, err := config.Build()
	if err != nil {
		return nil, err
	}

	return &Logger{
		Logger: zapLogger,
	}, nil
}

// NewNopLogger returns a logger that discards everything. Used by tests and
// by library callers that do not care about engine output.
func NewNopLogger() *Logger {
	return &Logger{Logger: zap.NewNop()}
}

// Sync flushes any buffered log entries.
func (l *Logger) Sync() error {
	if l.Logger != nil {
		return l.Logger.Sync()
	}

	return nil
}

// BarTime is a zap field carrying the replay timestamp. Daily bars print as a
// date, intraday bars print with the clock.
func BarTime(ts time.Time) zap.Field {
	return zap.String("bar_time", utils.FormatBarTime(ts, utils.HasTimeOfDay(ts)))
}
