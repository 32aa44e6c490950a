package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"

	"github.com/rxtech-lab/argo-ashare/internal/backtest/engine"
	engine_v1 "github.com/rxtech-lab/argo-ashare/internal/backtest/engine/engine_v1"
	"github.com/rxtech-lab/argo-ashare/internal/strategy"
	"github.com/rxtech-lab/argo-ashare/internal/types"
	"github.com/rxtech-lab/argo-ashare/internal/version"
	pkgstrategy "github.com/rxtech-lab/argo-ashare/pkg/strategy"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v3"
)

// parseStrategyFlag splits "name" or "name=config.yaml" and reads the config.
func parseStrategyFlag(value string) (pkgstrategy.Strategy, error) {
	name, configPath, hasConfig := strings.Cut(value, "=")

	config := ""

	if hasConfig {
		content, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read strategy config %s: %w", configPath, err)
		}

		config = string(content)
	}

	return strategy.New(name, config)
}

func runAction(ctx context.Context, cmd *cli.Command) error {
	config := ""

	if configPath := cmd.String("config"); configPath != "" {
		content, err := os.ReadFile(configPath)
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		config = string(content)
	}

	backtest := engine_v1.NewBacktestEngineV1()

	if err := backtest.Initialize(config); err != nil {
		return fmt.Errorf("failed to initialize backtest engine: %w", err)
	}

	if err := backtest.SetDataPath(cmd.String("data")); err != nil {
		return fmt.Errorf("failed to set data path: %w", err)
	}

	if err := backtest.SetResultsFolder(cmd.String("results")); err != nil {
		return fmt.Errorf("failed to set results folder: %w", err)
	}

	for _, value := range cmd.StringSlice("strategy") {
		strat, err := parseStrategyFlag(value)
		if err != nil {
			return err
		}

		if err := backtest.LoadStrategy(strat); err != nil {
			return fmt.Errorf("failed to load strategy: %w", err)
		}
	}

	out := cmd.Root().Writer
	quiet := cmd.Bool("quiet")

	var bar *progressbar.ProgressBar

	onRunStart := engine.OnRunStartCallback(func(runID string, strategyName string, totalBars int) error {
		if quiet {
			return nil
		}

		bar = progressbar.NewOptions(totalBars,
			progressbar.OptionSetWriter(out),
			progressbar.OptionSetDescription(fmt.Sprintf("Backtesting %s", strategyName)),
			progressbar.OptionShowCount(),
		)

		return nil
	})
	onProcessData := engine.OnProcessDataCallback(func(current int, total int) error {
		if bar == nil {
			return nil
		}

		return bar.Set(current)
	})
	onRunEnd := engine.OnRunEndCallback(func(runID string, strategyName string, resultFolderPath string, result *types.BacktestResult) {
		if bar != nil {
			_ = bar.Finish()
			bar = nil
		}

		printSummary(out, resultFolderPath, result)
	})

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	return backtest.Run(ctx, engine.LifecycleCallbacks{
		OnRunStart:    &onRunStart,
		OnRunEnd:      &onRunEnd,
		OnProcessData: &onProcessData,
	})
}

func printSummary(out io.Writer, resultFolderPath string, result *types.BacktestResult) {
	fmt.Fprintf(out, "\n%s (%s)\n", result.StrategyName, result.RunID)
	fmt.Fprintf(out, "  final value:   %.2f\n", result.FinalValue)
	fmt.Fprintf(out, "  total return:  %.2f%%\n", result.TotalReturn*100)
	fmt.Fprintf(out, "  max drawdown:  %.2f%%\n", result.Drawdown.MaxDrawdown*100)
	fmt.Fprintf(out, "  trades:        %d\n", len(result.Trades))
	fmt.Fprintf(out, "  fees:          %.2f\n", result.TotalFees())

	if haltedAt, err := result.HaltedAt.Take(); err == nil {
		fmt.Fprintf(out, "  halted at:     %s\n", haltedAt.Format("2006-01-02 15:04:05"))
	}

	fmt.Fprintf(out, "  results:       %s\n", resultFolderPath)
}

func schemaAction(_ context.Context, cmd *cli.Command) error {
	var (
		schema string
		err    error
	)

	if name := cmd.String("strategy"); name != "" {
		strat, newErr := strategy.New(name, "")
		if newErr != nil {
			return newErr
		}

		configurable, ok := strat.(pkgstrategy.Configurable)
		if !ok {
			return fmt.Errorf("strategy %s has no config schema", name)
		}

		schema, err = configurable.GetConfigSchema()
	} else {
		schema, err = engine_v1.NewBacktestEngineV1().GetConfigSchema()
	}

	if err != nil {
		return fmt.Errorf("failed to generate schema: %w", err)
	}

	fmt.Fprintln(cmd.Root().Writer, schema)

	return nil
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:  "backtest",
		Usage: "Replay A-share bars through target-weight strategies under T+1 settlement",
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Run a backtest and write the result tables",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Usage:   "Path to the engine `YAML` config; defaults apply when omitted",
					},
					&cli.StringFlag{
						Name:     "data",
						Aliases:  []string{"d"},
						Usage:    "Bar files as a glob over CSV or Parquet files, e.g. data/*.csv",
						Required: true,
					},
					&cli.StringSliceFlag{
						Name:    "strategy",
						Aliases: []string{"s"},
						Usage:   fmt.Sprintf("Strategy as name or name=config.yaml, repeatable (available: %s)", strings.Join(strategy.Names(), ", ")),
						Value:   []string{strategy.MaCrossName},
					},
					&cli.StringFlag{
						Name:    "results",
						Aliases: []string{"r"},
						Usage:   "Results folder",
						Value:   "results",
					},
					&cli.BoolFlag{
						Name:    "quiet",
						Aliases: []string{"q"},
						Usage:   "Hide the progress bar",
					},
				},
				Action: runAction,
			},
			{
				Name:  "schema",
				Usage: "Print the JSON schema of the engine config, or of a strategy config",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "strategy",
						Aliases: []string{"s"},
						Usage:   "Strategy name",
					},
				},
				Action: schemaAction,
			},
			{
				Name:  "version",
				Usage: "Print the engine version",
				Action: func(_ context.Context, cmd *cli.Command) error {
					fmt.Fprintln(cmd.Root().Writer, version.GetVersion())

					return nil
				},
			},
		},
	}
}

func main() {
	if err := newApp().Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
