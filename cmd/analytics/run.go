package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/andresuchdata/vendor-analytics/internal/alerts"
	"github.com/andresuchdata/vendor-analytics/internal/analytics"
	"github.com/andresuchdata/vendor-analytics/internal/cache"
	"github.com/andresuchdata/vendor-analytics/internal/config"
	"github.com/andresuchdata/vendor-analytics/internal/domain"
	"github.com/andresuchdata/vendor-analytics/internal/export"
	"github.com/andresuchdata/vendor-analytics/internal/ingest"
	"github.com/andresuchdata/vendor-analytics/internal/pipeline"
	"github.com/andresuchdata/vendor-analytics/internal/repository/postgres"
	"github.com/andresuchdata/vendor-analytics/internal/storage"
)

func parseSkip(values []string) ([]pipeline.Stage, error) {
	var skip []pipeline.Stage
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			stage, ok := pipeline.ParseStage(part)
			if !ok {
				return nil, fmt.Errorf("unknown stage %q", part)
			}
			skip = append(skip, stage)
		}
	}
	return skip, nil
}

func runPipeline(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	skip, err := parseSkip(c.StringSlice("skip"))
	if err != nil {
		return err
	}

	var opts []pipeline.Option
	persisted := c.String("db-url") != ""
	if persisted {
		db, err := postgres.NewDB(&cfg.Database)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer db.Close()

		opts = append(opts,
			pipeline.WithCommitter(postgres.NewAnalyticsRepository(db)),
			pipeline.WithTracker(pipeline.NewRepository(db.DB.DB)),
		)
	} else {
		store := alerts.NewMemoryStore()
		opts = append(opts, pipeline.WithAlertStores(store, store))
	}

	runner, err := pipeline.NewRunner(pipeline.ConfigFrom(cfg.Analytics), opts...)
	if err != nil {
		return err
	}

	out, report, err := pipeline.NewOrchestrator(ingest.NewReader(), runner).RunFiles(c.Context, pipeline.Files{
		Sales:     c.String("sales"),
		Purchases: c.String("purchases"),
		Stock:     c.String("stock"),
		Skip:      skip,
	})
	if err != nil {
		return err
	}

	if persisted {
		invalidateCache(c.Context, cfg.Cache)
	}

	printReport(report)

	tables := export.Tables(out)
	if dir := c.String("export-dir"); dir != "" {
		if _, err := export.WriteDir(filepath.Join(dir, out.Run.ID), tables); err != nil {
			return err
		}
	}
	if c.Bool("upload") {
		if err := uploadTables(c.Context, cfg.Storage, out.Run.ID, tables); err != nil {
			return err
		}
	}
	return nil
}

// invalidateCache drops the cached reads of a running server so it serves the
// tables just committed.
func invalidateCache(ctx context.Context, cfg config.CacheConfig) {
	if err := cache.InvalidateFor(ctx, cfg); err != nil {
		log.Warn().Err(err).Msg("failed to invalidate analytics cache")
		return
	}
	if cfg.Enabled {
		log.Info().Msg("analytics cache invalidated")
	}
}

func uploadTables(ctx context.Context, cfg config.StorageConfig, runID string, tables []export.Table) error {
	client, err := storage.NewMinioClient(cfg)
	if err != nil {
		return err
	}
	keys, err := export.Upload(ctx, client, cfg.Prefix, runID, tables)
	if err != nil {
		return err
	}
	log.Info().Strs("keys", keys).Msg("exports uploaded")
	return nil
}

func runAlerts(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	var only domain.Priority
	if raw := c.String("priority"); raw != "" {
		p, ok := domain.ParsePriority(raw)
		if !ok {
			return fmt.Errorf("unknown priority %q", raw)
		}
		only = p
	}

	// The alert stage runs below through the engine so the result lands in
	// the alert stores.
	pcfg := pipeline.ConfigFrom(cfg.Analytics)
	runner, err := pipeline.NewRunner(pcfg)
	if err != nil {
		return err
	}
	out, _, err := pipeline.NewOrchestrator(ingest.NewReader(), runner).RunFiles(c.Context, pipeline.Files{
		Sales:     c.String("sales"),
		Purchases: c.String("purchases"),
		Stock:     c.String("stock"),
		Skip:      []pipeline.Stage{pipeline.StageAlerts},
	})
	if err != nil {
		return err
	}

	var store interface {
		alerts.ActiveStore
		alerts.HistoryStore
	}
	if c.String("db-url") != "" {
		db, err := postgres.NewDB(&cfg.Database)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer db.Close()
		store = postgres.NewAlertRepository(db)
	} else {
		store = alerts.NewMemoryStore()
	}

	ev, err := alerts.NewEngine(pcfg.Alerts, store, store).Run(c.Context, alerts.Inputs{
		Summaries: out.Summaries,
		Scores:    out.Scores,
		Inventory: out.Inventory,
		Anomalies: out.Anomalies,
	}, out.Run.ID)
	if err != nil {
		return err
	}
	if c.String("db-url") != "" {
		invalidateCache(c.Context, cfg.Cache)
	}

	active, err := store.ListActive(c.Context)
	if err != nil {
		return err
	}

	printAlertSummary(ev.Summary)
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PRIORITY\tTYPE\tVENDOR\tDESCRIPTION\tMESSAGE")
	for _, a := range active {
		if only != "" && a.Priority != only {
			continue
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", a.Priority, a.Type.Label(), a.Vendor, a.Description, a.Message)
	}
	if len(ev.Skipped) > 0 {
		fmt.Fprintf(w, "\nskipped checks: %v\n", ev.Skipped)
	}
	return w.Flush()
}

func runForecast(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	sales, err := ingest.NewReader().LoadSales(c.Context, c.String("sales"))
	if err != nil {
		return err
	}

	forecaster := analytics.NewForecaster(pipeline.ConfigFrom(cfg.Analytics).Forecast)
	horizon := c.Int("horizon")

	var forecasts []domain.DemandForecast
	if vendor := c.String("vendor"); vendor != "" {
		f, err := forecaster.Forecast(sales, vendor, c.String("description"), horizon)
		if err != nil {
			log.Warn().Err(err).Str("vendor", vendor).Msg("forecast not available")
		}
		forecasts = append(forecasts, f)
	} else {
		forecasts = forecaster.ForecastItems(sales, horizon)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "VENDOR\tDESCRIPTION\tHORIZON\tQUANTITY\tDOLLARS\tCONFIDENCE")
	for _, f := range forecasts {
		if !f.Sufficient {
			fmt.Fprintf(w, "%s\t%s\t%d\t-\t-\tinsufficient data (%d days)\n", f.Vendor, f.Description, f.HorizonDays, f.Buckets)
			continue
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%.1f\t%.2f\t%s\n", f.Vendor, f.Description, f.HorizonDays, f.ForecastQuantity, f.ForecastDollars, f.Confidence)
	}
	return w.Flush()
}

func printAlertSummary(s domain.AlertSummary) {
	fmt.Printf("Alerts: %d total (critical %d, high %d, medium %d, low %d)\n\n", s.Total, s.Critical, s.High, s.Medium, s.Low)
}

func printReport(r *pipeline.Report) {
	fmt.Printf("Run %s %s in %s\n", r.RunID, r.Status, r.Duration)
	fmt.Printf("Input: %d sales rows, %d purchase rows\n", r.SalesRows, r.PurchaseRows)
	for _, stage := range []string{"summaries", "scores", "forecasts", "anomalies", "inventory", "prices", "alerts"} {
		fmt.Printf("  %-10s %d\n", stage, r.Counts[stage])
	}
	for _, issue := range r.Issues {
		fmt.Printf("  warning: %s\n", issue.Message)
	}
	for _, s := range r.Skipped {
		fmt.Printf("  skipped %s: %s\n", s.Stage, s.Reason)
	}
	printAlertSummary(r.AlertSummary)
}
