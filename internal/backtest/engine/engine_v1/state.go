package engine

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Masterminds/squirrel"
	_ "github.com/marcboeker/go-duckdb"
	"github.com/rxtech-lab/argo-ashare/internal/logger"
	"github.com/rxtech-lab/argo-ashare/internal/types"
	"github.com/rxtech-lab/argo-ashare/internal/utils"
	"go.uber.org/zap"
)

// BacktestState stages the trade, equity and P&L tables of a finished run in
// an in-memory DuckDB database and exports them as CSV and Parquet.
//
// Dates are stored pre-formatted: "2006-01-02" for daily replays and
// "2006-01-02 15:04:05" for intraday ones, matching the output contract.
type BacktestState struct {
	db     *sql.DB
	logger *logger.Logger
	sq     squirrel.StatementBuilderType
}

// ResultFiles lists the files written by BacktestState.Write.
type ResultFiles struct {
	Trades  string
	Equity  string
	PnL     string
	Parquet []string
}

func NewBacktestState(stateLogger *logger.Logger) (*BacktestState, error) {
	if stateLogger == nil {
		stateLogger = logger.NewNopLogger()
	}

	db, err := sql.Open("duckdb", ":memory:")
	if err != nil {
		stateLogger.Error("Failed to open database", zap.Error(err))

		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	state := &BacktestState{
		db:     db,
		logger: stateLogger,
		sq:     squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
	}

	if err := state.Initialize(); err != nil {
		db.Close()

		return nil, err
	}

	return state, nil
}

// Initialize creates the result tables.
func (b *BacktestState) Initialize() error {
	if b == nil || b.db == nil {
		return fmt.Errorf("backtest state is closed")
	}

	_, err := b.db.Exec(`
		CREATE TABLE IF NOT EXISTS trades (
			seq INTEGER,
			date VARCHAR,
			code VARCHAR,
			side VARCHAR,
			price DOUBLE,
			shares BIGINT,
			amount DOUBLE,
			fee DOUBLE
		);
		CREATE TABLE IF NOT EXISTS equity_curve (
			seq INTEGER,
			date VARCHAR,
			total DOUBLE,
			cash DOUBLE
		);
		CREATE TABLE IF NOT EXISTS daily_pnl (
			seq INTEGER,
			date VARCHAR,
			pnl DOUBLE,
			"return" DOUBLE,
			total DOUBLE
		);
	`)
	if err != nil {
		return fmt.Errorf("failed to create result tables: %w", err)
	}

	return nil
}

// Record stores every row of result in a single transaction.
func (b *BacktestState) Record(result *types.BacktestResult) error {
	if b == nil || b.db == nil {
		return fmt.Errorf("backtest state is closed")
	}

	tx, err := b.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := b.insert(tx, result); err != nil {
		tx.Rollback()

		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit results: %w", err)
	}

	b.logger.Debug("Results staged",
		zap.String("run_id", result.RunID),
		zap.Int("trades", len(result.Trades)),
		zap.Int("days", len(result.EquityCurve)),
	)

	return nil
}

func (b *BacktestState) insert(tx *sql.Tx, result *types.BacktestResult) error {
	for i, trade := range result.Trades {
		_, err := b.sq.
			Insert("trades").
			Columns("seq", "date", "code", "side", "price", "shares", "amount", "fee").
			Values(i, utils.FormatBarTime(trade.Time, result.Intraday), trade.Symbol, string(trade.Side),
				trade.Price, trade.Shares, trade.Amount, trade.Fee).
			RunWith(tx).
			Exec()
		if err != nil {
			return fmt.Errorf("failed to insert trade: %w", err)
		}
	}

	for i, point := range result.EquityCurve {
		_, err := b.sq.
			Insert("equity_curve").
			Columns("seq", "date", "total", "cash").
			Values(i, utils.FormatBarTime(point.Time, result.Intraday), point.Total, point.Cash).
			RunWith(tx).
			Exec()
		if err != nil {
			return fmt.Errorf("failed to insert equity point: %w", err)
		}
	}

	for i, point := range result.DailyPnL {
		_, err := b.sq.
			Insert("daily_pnl").
			Columns("seq", "date", "pnl", `"return"`, "total").
			Values(i, utils.FormatBarTime(point.Time, result.Intraday), point.PnL, point.Return, point.Total).
			RunWith(tx).
			Exec()
		if err != nil {
			return fmt.Errorf("failed to insert daily pnl: %w", err)
		}
	}

	return nil
}

// TradeCount returns the number of staged trades.
func (b *BacktestState) TradeCount() (int, error) {
	if b == nil || b.db == nil {
		return 0, fmt.Errorf("backtest state is closed")
	}

	var count int
	if err := b.sq.Select("COUNT(*)").From("trades").RunWith(b.db).QueryRow().Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count trades: %w", err)
	}

	return count, nil
}

// TotalFees sums the fees of the staged trades, optionally for one code.
func (b *BacktestState) TotalFees(code string) (float64, error) {
	if b == nil || b.db == nil {
		return 0, fmt.Errorf("backtest state is closed")
	}

	query := b.sq.Select("COALESCE(SUM(fee), 0)").From("trades")
	if code != "" {
		query = query.Where(squirrel.Eq{"code": code})
	}

	var total float64
	if err := query.RunWith(b.db).QueryRow().Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to sum fees: %w", err)
	}

	return total, nil
}

// Write exports the staged tables into dir using the file names of output.
// CSV files carry a header row and exactly the contract columns. When
// output.Parquet is set, a .parquet copy of every table is written as well.
func (b *BacktestState) Write(dir string, output OutputConfig) (ResultFiles, error) {
	if b == nil || b.db == nil {
		return ResultFiles{}, fmt.Errorf("backtest state is closed")
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return ResultFiles{}, fmt.Errorf("failed to create directory: %w", err)
	}

	tables := []struct {
		name    string
		columns string
		file    string
	}{
		{"trades", `date, code, side, price, shares, amount, fee`, output.TradesFile},
		{"equity_curve", `date, total, cash`, output.EquityFile},
		{"daily_pnl", `date, pnl, "return", total`, output.PnLFile},
	}

	var files ResultFiles

	for _, table := range tables {
		selectSQL := fmt.Sprintf(`SELECT %s FROM %s ORDER BY seq`, table.columns, table.name)

		csvPath := filepath.Join(dir, table.file)
		if err := b.copy(selectSQL, csvPath, `HEADER, DELIMITER ','`); err != nil {
			return ResultFiles{}, err
		}

		switch table.name {
		case "trades":
			files.Trades = csvPath
		case "equity_curve":
			files.Equity = csvPath
		case "daily_pnl":
			files.PnL = csvPath
		}

		if output.Parquet {
			parquetPath := filepath.Join(dir, strings.TrimSuffix(table.file, filepath.Ext(table.file))+".parquet")
			if err := b.copy(selectSQL, parquetPath, `FORMAT PARQUET`); err != nil {
				return ResultFiles{}, err
			}

			files.Parquet = append(files.Parquet, parquetPath)
		}
	}

	b.logger.Debug("Exported backtest results",
		zap.String("trades", files.Trades),
		zap.String("equity", files.Equity),
		zap.String("pnl", files.PnL),
		zap.Strings("parquet", files.Parquet),
	)

	return files, nil
}

// copy runs a raw COPY statement, which squirrel has no builder for.
func (b *BacktestState) copy(selectSQL string, path string, options string) error {
	escaped := strings.ReplaceAll(path, "'", "''")

	if _, err := b.db.Exec(fmt.Sprintf(`COPY (%s) TO '%s' (%s)`, selectSQL, escaped, options)); err != nil {
		return fmt.Errorf("failed to export %s: %w", filepath.Base(path), err)
	}

	return nil
}

// Cleanup drops every staged row so the state can hold another run.
func (b *BacktestState) Cleanup() error {
	if b == nil || b.db == nil {
		return fmt.Errorf("backtest state is closed")
	}

	if _, err := b.db.Exec(`
		DROP TABLE IF EXISTS trades;
		DROP TABLE IF EXISTS equity_curve;
		DROP TABLE IF EXISTS daily_pnl;
	`); err != nil {
		return fmt.Errorf("failed to cleanup tables: %w", err)
	}

	return b.Initialize()
}

// Close closes the database connection.
func (b *BacktestState) Close() error {
	if b == nil || b.db == nil {
		return nil
	}

	err := b.db.Close()
	b.db = nil

	return err
}
