package engine

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Masterminds/squirrel"
	_ "github.com/marcboeker/go-duckdb"
	"github.com/rxtech-lab/argo-ashare/internal/log"
	"github.com/rxtech-lab/argo-ashare/internal/logger"
	"github.com/rxtech-lab/argo-ashare/internal/types"
	"go.uber.org/zap"
)

// EventsFile is the name of the journal export inside a result folder.
const EventsFile = "events.parquet"

// BacktestLog journals engine events of a run (skipped orders, dropped
// prices, failed callbacks, risk halts) in an in-memory DuckDB table.
type BacktestLog struct {
	db     *sql.DB
	logger *logger.Logger
	sq     squirrel.StatementBuilderType
}

// NewBacktestLog opens the journal database and creates its table.
func NewBacktestLog(journalLogger *logger.Logger) (*BacktestLog, error) {
	if journalLogger == nil {
		journalLogger = logger.NewNopLogger()
	}

	db, err := sql.Open("duckdb", ":memory:")
	if err != nil {
		journalLogger.Error("Failed to open database", zap.Error(err))

		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		journalLogger.Error("Failed to connect to database", zap.Error(err))
		db.Close()

		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	journal := &BacktestLog{
		logger: journalLogger,
		db:     db,
		sq:     squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
	}

	if err := journal.initialize(); err != nil {
		db.Close()

		return nil, err
	}

	return journal, nil
}

// Log implements log.Log.
func (l *BacktestLog) Log(entry log.LogEntry) error {
	if l == nil || l.db == nil {
		return fmt.Errorf("backtest log is closed")
	}

	var fields sql.NullString

	if len(entry.Fields) > 0 {
		encoded, err := json.Marshal(entry.Fields)
		if err != nil {
			return fmt.Errorf("failed to marshal event fields: %w", err)
		}

		fields = sql.NullString{String: string(encoded), Valid: true}
	}

	_, err := l.sq.
		Insert("events").
		Columns("id", "bar_time", "symbol", "level", "message", "fields").
		Values(squirrel.Expr("nextval('event_id_seq')"), entry.Timestamp, entry.Symbol, string(entry.Level), entry.Message, fields).
		RunWith(l.db).
		Exec()
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}

	return nil
}

// GetLogs implements log.Log. Entries come back in insertion order.
func (l *BacktestLog) GetLogs() ([]log.LogEntry, error) {
	return l.query(l.sq.Select("bar_time", "symbol", "level", "message", "fields").From("events"))
}

// GetLogsByLevel returns the entries logged at level, in insertion order.
func (l *BacktestLog) GetLogsByLevel(level types.LogLevel) ([]log.LogEntry, error) {
	return l.query(l.sq.
		Select("bar_time", "symbol", "level", "message", "fields").
		From("events").
		Where(squirrel.Eq{"level": string(level)}))
}

func (l *BacktestLog) query(builder squirrel.SelectBuilder) ([]log.LogEntry, error) {
	if l == nil || l.db == nil {
		return nil, fmt.Errorf("backtest log is closed")
	}

	rows, err := builder.OrderBy("id ASC").RunWith(l.db).Query()
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var entries []log.LogEntry

	for rows.Next() {
		var (
			entry  log.LogEntry
			level  string
			fields sql.NullString
		)

		if err := rows.Scan(&entry.Timestamp, &entry.Symbol, &level, &entry.Message, &fields); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}

		entry.Level = types.LogLevel(level)

		if fields.Valid && fields.String != "" {
			if err := json.Unmarshal([]byte(fields.String), &entry.Fields); err != nil {
				return nil, fmt.Errorf("failed to unmarshal event fields: %w", err)
			}
		}

		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating events: %w", err)
	}

	return entries, nil
}

// Count returns the number of journaled events.
func (l *BacktestLog) Count() (int, error) {
	if l == nil || l.db == nil {
		return 0, fmt.Errorf("backtest log is closed")
	}

	var count int

	if err := l.sq.Select("COUNT(*)").From("events").RunWith(l.db).QueryRow().Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}

	return count, nil
}

// Write exports the journal to dir/events.parquet and returns the file path.
func (l *BacktestLog) Write(dir string) (string, error) {
	if l == nil || l.db == nil {
		return "", fmt.Errorf("backtest log is closed")
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	path := filepath.Join(dir, EventsFile)

	// COPY has no squirrel builder
	if _, err := l.db.Exec(fmt.Sprintf(`COPY (SELECT bar_time, symbol, level, message, fields FROM events ORDER BY id) TO '%s' (FORMAT PARQUET)`, path)); err != nil {
		return "", fmt.Errorf("failed to export events to Parquet: %w", err)
	}

	l.logger.Debug("Exported event journal", zap.String("events", path))

	return path, nil
}

// Cleanup drops every event so the journal can be reused for another run.
func (l *BacktestLog) Cleanup() error {
	if l == nil || l.db == nil {
		return fmt.Errorf("backtest log is closed")
	}

	if _, err := l.db.Exec(`
		DROP TABLE IF EXISTS events;
		DROP SEQUENCE IF EXISTS event_id_seq;
	`); err != nil {
		return fmt.Errorf("failed to drop events table: %w", err)
	}

	return l.initialize()
}

// Close closes the database connection.
func (l *BacktestLog) Close() error {
	if l == nil || l.db == nil {
		return nil
	}

	err := l.db.Close()
	l.db = nil

	return err
}

func (l *BacktestLog) initialize() error {
	if _, err := l.db.Exec(`CREATE SEQUENCE IF NOT EXISTS event_id_seq`); err != nil {
		return fmt.Errorf("failed to create sequence: %w", err)
	}

	if _, err := l.db.Exec(`
		CREATE TABLE IF NOT EXISTS events (
			id BIGINT PRIMARY KEY,
			bar_time TIMESTAMP,
			symbol TEXT,
			level TEXT,
			message TEXT,
			fields TEXT
		)
	`); err != nil {
		return fmt.Errorf("failed to create events table: %w", err)
	}

	return nil
}
