package main

import (
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/skulane/priceflow/internal/cache"
	"github.com/skulane/priceflow/internal/config"
	"github.com/skulane/priceflow/internal/engine"
	"github.com/skulane/priceflow/internal/engine/priceopt"
	"github.com/skulane/priceflow/internal/engine/stockout"
	"github.com/skulane/priceflow/internal/repository"
	"github.com/skulane/priceflow/internal/repository/postgres"
	"github.com/skulane/priceflow/internal/storage"
	"github.com/skulane/priceflow/pkg/logger"
)

func main() {
	app := &cli.App{
		Name:  "engine",
		Usage: "Run the stockout detection and price optimization batch",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "info",
				EnvVars: []string{"LOG_LEVEL"},
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Load input tables, run the engine, replace output tables",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Override the group worker pool size",
					},
					&cli.IntFlag{
						Name:  "trials",
						Usage: "Override the number of price trials per group",
					},
					&cli.BoolFlag{
						Name:  "export",
						Usage: "Upload CSV snapshots of the output tables after the run",
					},
					&cli.TimestampFlag{
						Name:   "run-date",
						Layout: "2006-01-02",
						Usage:  "Snapshot date used for export keys (default today)",
					},
				},
				Action: runBatch,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		logger.Log.Fatal().Err(err).Msg("engine failed")
	}
}

func runBatch(c *cli.Context) error {
	cfg := config.Load()
	logger.SetLevel(c.String("log-level"))

	db, err := postgres.NewDB(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	engineCfg := engineConfig(cfg.Engine)
	if workers := c.Int("workers"); workers > 0 {
		engineCfg.WorkerCount = workers
	}
	if trials := c.Int("trials"); trials > 0 {
		engineCfg.Optimizer.Trials = trials
	}

	repo := repository.NewBatchRepository(db)

	start := time.Now()
	inputs, err := repo.LoadInputs(c.Context)
	if err != nil {
		return fmt.Errorf("failed to load inputs: %w", err)
	}
	logger.Log.Info().
		Int("sales_rows", len(inputs.Sales)).
		Int("forecast_rows", len(inputs.Forecast)).
		Dur("elapsed", time.Since(start)).
		Msg("inputs loaded")

	out, err := engine.New(engineCfg).Run(c.Context, inputs)
	if err != nil {
		return fmt.Errorf("batch run failed: %w", err)
	}

	if err := repo.ReplaceOutputs(c.Context, out); err != nil {
		return fmt.Errorf("failed to write outputs: %w", err)
	}

	invalidateCache(c, cfg)

	if c.Bool("export") {
		if err := exportSnapshots(c, cfg, out); err != nil {
			return err
		}
	}

	logger.Log.Info().
		Int("summary_rows", len(out.Summary)).
		Int("skipped_groups", len(out.Skipped)).
		Dur("elapsed", time.Since(start)).
		Msg("batch finished")
	return nil
}

func invalidateCache(c *cli.Context, cfg *config.Config) {
	summaryCache, err := cache.NewSummaryCache(cfg.Cache)
	if err != nil {
		logger.Log.Warn().Err(err).Msg("cache unavailable, skipping invalidation")
		return
	}
	if err := summaryCache.InvalidateAll(c.Context); err != nil {
		logger.Log.Warn().Err(err).Msg("cache invalidation failed")
	}
}

func exportSnapshots(c *cli.Context, cfg *config.Config, out *engine.Outputs) error {
	store, err := storage.NewMinioClient(cfg.Export)
	if err != nil {
		return fmt.Errorf("export storage unavailable: %w", err)
	}

	runDate := time.Now()
	if t := c.Timestamp("run-date"); t != nil && !t.IsZero() {
		runDate = *t
	}

	exporter := storage.NewExporter(store, cfg.Export.Prefix)
	if err := exporter.Export(c.Context, runDate, out); err != nil {
		return fmt.Errorf("snapshot export failed: %w", err)
	}
	return nil
}

func engineConfig(cfg config.EngineConfig) engine.Config {
	return engine.Config{
		WorkerCount: cfg.WorkerCount,
		Detector: stockout.Config{
			GapYearsThreshold: cfg.GapYearsThreshold,
		},
		Optimizer: priceopt.Config{
			LowerBoundFactor:   cfg.LowerBoundFactor,
			UpperBoundFactor:   cfg.UpperBoundFactor,
			Trials:             cfg.Trials,
			TrialConcurrency:   cfg.TrialConcurrency,
			ForecastStockLevel: cfg.ForecastStockLevel,
			MinStockLevel:      cfg.MinStockLevel,
			StockoutPenalty:    cfg.StockoutPenalty,
			SafetyHorizonDays:  cfg.SafetyHorizonDays,
		},
	}
}
