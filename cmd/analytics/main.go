package main

import (
	"os"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/andresuchdata/vendor-analytics/internal/config"
	"github.com/andresuchdata/vendor-analytics/pkg/logger"
)

func newDBURLFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "db-url",
		Usage:   "Database connection string; results are only persisted when set",
		EnvVars: []string{"DATABASE_URL"},
	}
}

func inputFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "sales",
			Usage:    "Sales file (CSV or XLSX)",
			Required: true,
			EnvVars:  []string{"SALES_FILE"},
		},
		&cli.StringFlag{
			Name:     "purchases",
			Usage:    "Purchases file (CSV or XLSX)",
			Required: true,
			EnvVars:  []string{"PURCHASES_FILE"},
		},
		&cli.StringFlag{
			Name:  "stock",
			Usage: "Optional on-hand stock file keyed by vendor and description",
		},
	}
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg := config.Load()
	if url := c.String("db-url"); url != "" {
		cfg.Database.URL = url
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger.SetLevel(cfg.App.LogLevel)
	return cfg, nil
}

func main() {
	app := &cli.App{
		Name:  "analytics",
		Usage: "Vendor sales analytics: aggregation, scoring, forecasting, anomalies and alerts",
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Run the full pipeline over a sales and a purchases file",
				Flags: append(inputFlags(),
					newDBURLFlag(),
					&cli.StringSliceFlag{
						Name:  "skip",
						Usage: "Stages to skip (scores, forecasts, anomalies, inventory, pricing, alerts)",
					},
					&cli.StringFlag{
						Name:  "export-dir",
						Usage: "Write every produced table as CSV into this directory",
					},
					&cli.BoolFlag{
						Name:  "upload",
						Usage: "Upload the exported tables to object storage",
					},
				),
				Action: runPipeline,
			},
			{
				Name:  "alerts",
				Usage: "Evaluate alerts, record them in the alert stores and print the active set",
				Flags: append(inputFlags(),
					newDBURLFlag(),
					&cli.StringFlag{
						Name:  "priority",
						Usage: "Only print alerts of this priority",
					},
				),
				Action: runAlerts,
			},
			{
				Name:  "forecast",
				Usage: "Forecast demand for every item, or for one vendor and description",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "sales",
						Usage:    "Sales file (CSV or XLSX)",
						Required: true,
						EnvVars:  []string{"SALES_FILE"},
					},
					&cli.StringFlag{Name: "vendor", Usage: "Vendor name"},
					&cli.StringFlag{Name: "description", Usage: "Item description"},
					&cli.IntFlag{
						Name:  "horizon",
						Usage: "Forecast horizon in days (defaults to FORECAST_HORIZON_DAYS)",
					},
				},
				Action: runForecast,
			},
			{
				Name:  "generate",
				Usage: "Write a synthetic sales and purchases dataset",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "out-dir", Value: "./data/sample", Usage: "Output directory"},
					&cli.IntFlag{Name: "vendors", Value: 20, Usage: "Number of vendors"},
					&cli.IntFlag{Name: "items", Value: 3, Usage: "Items per vendor"},
					&cli.IntFlag{Name: "days", Value: 90, Usage: "Days of sales history"},
					&cli.Uint64Flag{Name: "seed", Value: 42, Usage: "Random seed"},
				},
				Action: runGenerate,
			},
			{
				Name:   "migrate",
				Usage:  "Apply database migrations",
				Flags:  []cli.Flag{newDBURLFlag()},
				Action: runMigrate,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal().Err(err).Msg("analytics command failed")
	}
}
