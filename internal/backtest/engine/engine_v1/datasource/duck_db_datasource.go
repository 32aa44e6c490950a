package datasource

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	_ "github.com/marcboeker/go-duckdb"
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-ashare/internal/logger"
	"github.com/rxtech-lab/argo-ashare/internal/types"
	"github.com/rxtech-lab/argo-ashare/pkg/errors"
	"go.uber.org/zap"
)

var (
	timeColumnCandidates   = []string{"time", "date", "datetime", "timestamp"}
	symbolColumnCandidates = []string{"symbol", "code"}
	priceColumns           = []string{"open", "high", "low", "close", "volume"}
)

// DuckDBDataSource loads CSV or Parquet bar files through an in-process DuckDB
// and serves them from an in-memory index. A file must carry a time column
// (time, date, datetime or timestamp) and open, high, low, close and volume
// columns. Without a symbol or code column the file name is used as the
// instrument code.
type DuckDBDataSource struct {
	db     *sql.DB
	logger *logger.Logger
	sq     squirrel.StatementBuilderType
	index  *InMemoryIndexedDataSource
}

// NewDataSource opens an in-memory DuckDB database for loading bar files.
func NewDataSource(log *logger.Logger) (*DuckDBDataSource, error) {
	if log == nil {
		log = logger.NewNopLogger()
	}

	db, err := sql.Open("duckdb", ":memory:")
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeDataSourceUnavailable, "failed to open duckdb", err)
	}

	return &DuckDBDataSource{
		db:     db,
		logger: log,
		sq:     squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		index:  nil,
	}, nil
}

// Initialize loads every file matched by path, which may be a single file or
// a glob pattern. Files ending in .parquet are read with read_parquet, every
// other file with read_csv_auto.
func (d *DuckDBDataSource) Initialize(path string) error {
	files, err := filepath.Glob(path)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeInvalidParameter, err, "invalid data path %s", path)
	}

	if len(files) == 0 {
		return errors.Newf(errors.ErrCodeNoDataFound, "no data files match %s", path)
	}

	sort.Strings(files)

	bars := make(map[string][]types.MarketData)

	for _, file := range files {
		d.logger.Debug("Loading bar file", zap.String("file", file))

		loaded, err := d.loadFile(file)
		if err != nil {
			return err
		}

		for _, bar := range loaded {
			bars[bar.Symbol] = append(bars[bar.Symbol], bar)
		}
	}

	for symbol := range bars {
		series := bars[symbol]
		sort.SliceStable(series, func(i, j int) bool {
			return series[i].Time.Before(series[j].Time)
		})
	}

	index, err := NewInMemoryDataSource(bars)
	if err != nil {
		return err
	}

	d.index = index

	d.logger.Info("Data source initialized",
		zap.String("path", path),
		zap.Int("files", len(files)),
		zap.Int("instruments", len(bars)),
	)

	return nil
}

func tableFunction(file string) string {
	escaped := strings.ReplaceAll(file, "'", "''")

	if strings.EqualFold(filepath.Ext(file), ".parquet") {
		return fmt.Sprintf("read_parquet('%s')", escaped)
	}

	// all_varchar keeps codes such as 000001 from being read as integers
	return fmt.Sprintf("read_csv_auto('%s', all_varchar=true)", escaped)
}

// resolveColumns maps the file's column names onto the expected bar fields.
func (d *DuckDBDataSource) resolveColumns(source string) (map[string]string, error) {
	query, args, err := d.sq.Select("*").From(source).Limit(0).ToSql()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to build column query", err)
	}

	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeQueryFailed, err, "failed to read columns of %s", source)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to read columns", err)
	}

	available := make(map[string]string, len(columns))
	for _, column := range columns {
		available[strings.ToLower(column)] = column
	}

	resolved := make(map[string]string)

	for _, candidate := range timeColumnCandidates {
		if column, ok := available[candidate]; ok {
			resolved["time"] = column

			break
		}
	}

	for _, candidate := range symbolColumnCandidates {
		if column, ok := available[candidate]; ok {
			resolved["symbol"] = column

			break
		}
	}

	if _, ok := resolved["time"]; !ok {
		return nil, errors.Newf(errors.ErrCodeInvalidMarketData, "%s has no time column", source)
	}

	for _, name := range priceColumns {
		column, ok := available[name]
		if !ok {
			return nil, errors.Newf(errors.ErrCodeInvalidMarketData, "%s is missing column %s", source, name)
		}

		resolved[name] = column
	}

	return resolved, nil
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (d *DuckDBDataSource) loadFile(file string) ([]types.MarketData, error) {
	source := tableFunction(file)

	columns, err := d.resolveColumns(source)
	if err != nil {
		return nil, err
	}

	symbolExpr := fmt.Sprintf("'%s'", strings.ReplaceAll(symbolFromFileName(file), "'", "''"))
	if column, ok := columns["symbol"]; ok {
		symbolExpr = fmt.Sprintf("CAST(%s AS VARCHAR)", quoteIdent(column))
	}

	query, args, err := d.sq.
		Select(
			fmt.Sprintf("CAST(%s AS TIMESTAMP) AS time", quoteIdent(columns["time"])),
			symbolExpr+" AS symbol",
			fmt.Sprintf("CAST(%s AS DOUBLE) AS open", quoteIdent(columns["open"])),
			fmt.Sprintf("CAST(%s AS DOUBLE) AS high", quoteIdent(columns["high"])),
			fmt.Sprintf("CAST(%s AS DOUBLE) AS low", quoteIdent(columns["low"])),
			fmt.Sprintf("CAST(%s AS DOUBLE) AS close", quoteIdent(columns["close"])),
			fmt.Sprintf("CAST(%s AS DOUBLE) AS volume", quoteIdent(columns["volume"])),
		).
		From(source).
		OrderBy("symbol", "time").
		ToSql()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to build bar query", err)
	}

	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeQueryFailed, err, "failed to read bars from %s", file)
	}
	defer rows.Close()

	var bars []types.MarketData

	for rows.Next() {
		var (
			timestamp                      time.Time
			symbol                         string
			open, high, low, close, volume float64
		)

		if err := rows.Scan(&timestamp, &symbol, &open, &high, &low, &close, &volume); err != nil {
			return nil, errors.Wrapf(errors.ErrCodeQueryFailed, err, "failed to scan bar from %s", file)
		}

		bars = append(bars, types.MarketData{
			Symbol: symbol,
			Time:   timestamp,
			Open:   open,
			High:   high,
			Low:    low,
			Close:  close,
			Volume: volume,
		})
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrapf(errors.ErrCodeQueryFailed, err, "failed to iterate bars from %s", file)
	}

	return bars, nil
}

func symbolFromFileName(file string) string {
	base := filepath.Base(file)

	return strings.TrimSuffix(base, filepath.Ext(base))
}

func (d *DuckDBDataSource) loaded() (*InMemoryIndexedDataSource, error) {
	if d.index == nil {
		return nil, errors.New(errors.ErrCodeDataSourceUnavailable, "data source is not initialized")
	}

	return d.index, nil
}

// Symbols implements DataSource.
func (d *DuckDBDataSource) Symbols() []string {
	index, err := d.loaded()
	if err != nil {
		return nil
	}

	return index.Symbols()
}

// GetBar implements DataSource.
func (d *DuckDBDataSource) GetBar(symbol string, ts time.Time) (types.MarketData, bool) {
	index, err := d.loaded()
	if err != nil {
		return types.MarketData{}, false
	}

	return index.GetBar(symbol, ts)
}

// GetPreviousNumberOfDataPoints implements DataSource.
func (d *DuckDBDataSource) GetPreviousNumberOfDataPoints(end time.Time, symbol string, count int) ([]types.MarketData, error) {
	index, err := d.loaded()
	if err != nil {
		return nil, err
	}

	return index.GetPreviousNumberOfDataPoints(end, symbol, count)
}

// ReadAll implements DataSource.
func (d *DuckDBDataSource) ReadAll(symbol string, start optional.Option[time.Time], end optional.Option[time.Time]) func(yield func(types.MarketData, error) bool) {
	index, err := d.loaded()
	if err != nil {
		return func(yield func(types.MarketData, error) bool) {
			yield(types.MarketData{}, err)
		}
	}

	return index.ReadAll(symbol, start, end)
}

// Timestamps implements DataSource.
func (d *DuckDBDataSource) Timestamps(start optional.Option[time.Time], end optional.Option[time.Time]) []time.Time {
	index, err := d.loaded()
	if err != nil {
		return nil
	}

	return index.Timestamps(start, end)
}

// Close implements DataSource.
func (d *DuckDBDataSource) Close() error {
	if d.index != nil {
		_ = d.index.Close()
	}

	return d.db.Close()
}
