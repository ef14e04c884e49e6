package pipeline

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/vendor-analytics/internal/alerts"
	"github.com/andresuchdata/vendor-analytics/internal/analytics"
	"github.com/andresuchdata/vendor-analytics/internal/anomaly"
)

// ErrRunInProgress is returned when a second run starts while one is active.
var ErrRunInProgress = errors.New("a run is already in progress")

// Runner executes the full batch: aggregate, score, forecast, detect
// anomalies, optimize inventory and prices, evaluate alerts and commit.
// At most one run executes at a time per Runner.
type Runner struct {
	cfg        Config
	scorer     *analytics.Scorer
	forecaster *analytics.Forecaster
	detector   *anomaly.Detector
	inventory  *analytics.InventoryOptimizer
	pricing    *analytics.PriceOptimizer
	engine     *alerts.Engine

	committer     Committer
	tracker       RunTracker
	recorder      Recorder
	activeAlerts  alerts.ActiveStore
	alertsHistory alerts.HistoryStore

	mu    sync.Mutex
	now   func() time.Time
	newID func() string
}

// Option configures a Runner.
type Option func(*Runner)

// WithCommitter persists each successful run.
func WithCommitter(c Committer) Option {
	return func(r *Runner) { r.committer = c }
}

// WithAlertStores keeps the alerts of each run in the given stores. They are
// written only when no Committer is set; a Committer persists alerts itself.
func WithAlertStores(active alerts.ActiveStore, history alerts.HistoryStore) Option {
	return func(r *Runner) {
		r.activeAlerts = active
		r.alertsHistory = history
	}
}

// WithTracker records run start and failure.
func WithTracker(t RunTracker) Option {
	return func(r *Runner) { r.tracker = t }
}

// WithRecorder receives run metrics.
func WithRecorder(rec Recorder) Option {
	return func(r *Runner) { r.recorder = rec }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// NewRunner validates the configuration and builds every component. Invalid
// weights or anomaly settings fail here, before any data is read.
func NewRunner(cfg Config, opts ...Option) (*Runner, error) {
	scorer, err := analytics.NewScorer(cfg.Weights)
	if err != nil {
		return nil, fmt.Errorf("scorer: %w", err)
	}
	detector, err := anomaly.NewDetector(cfg.Anomaly)
	if err != nil {
		return nil, fmt.Errorf("anomaly detector: %w", err)
	}

	r := &Runner{
		cfg:        cfg,
		scorer:     scorer,
		forecaster: analytics.NewForecaster(cfg.Forecast),
		detector:   detector,
		inventory:  analytics.NewInventoryOptimizer(cfg.Inventory),
		pricing:    analytics.NewPriceOptimizer(cfg.Price),
		now:        time.Now,
		newID:      uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.committer == nil {
		r.engine = alerts.NewEngine(cfg.Alerts, r.activeAlerts, r.alertsHistory)
	} else {
		r.engine = alerts.NewEngine(cfg.Alerts, nil, nil)
	}
	return r, nil
}

// Run executes one batch. Only an aggregation or commit failure fails the
// run; any other stage that cannot produce a result is reported in
// Report.Skipped and the remaining stages proceed without it.
func (r *Runner) Run(ctx context.Context, in Input) (*Output, *Report, error) {
	if !r.mu.TryLock() {
		return nil, nil, ErrRunInProgress
	}
	defer r.mu.Unlock()

	started := r.now().UTC()
	out := &Output{
		Run: Run{
			ID:           r.newID(),
			Source:       in.Source,
			Status:       StatusProcessing,
			SalesRows:    len(in.Sales),
			PurchaseRows: len(in.Purchases),
			StartedAt:    started,
		},
	}
	report := &Report{
		RunID:        out.Run.ID,
		Status:       StatusProcessing,
		StartedAt:    started,
		SalesRows:    len(in.Sales),
		PurchaseRows: len(in.Purchases),
		Counts:       map[string]int{},
	}

	logger := log.With().Str("run_id", out.Run.ID).Logger()
	logger.Info().
		Str("source", in.Source).
		Int("sales", len(in.Sales)).
		Int("purchases", len(in.Purchases)).
		Msg("run started")

	if r.tracker != nil {
		if err := r.tracker.CreateRun(ctx, &out.Run); err != nil {
			return nil, nil, fmt.Errorf("create run record: %w", err)
		}
	}

	report.Issues = analytics.ValidateInputs(in.Sales, in.Purchases)
	for _, issue := range report.Issues {
		logger.Warn().Str("dataset", issue.Dataset).Str("check", issue.Check).Int("count", issue.Count).Msg(issue.Message)
	}

	summaries, err := analytics.Aggregate(in.Sales, in.Purchases)
	if err != nil {
		return r.fail(ctx, out, report, fmt.Errorf("aggregate: %w", err))
	}
	out.Summaries = summaries
	out.Run.SummaryRows = len(summaries)
	logger.Info().Int("rows", len(summaries)).Msg("summary aggregated")

	skip := func(stage Stage) bool { return slices.Contains(in.Skip, stage) }
	skipped := func(stage Stage, reason string) {
		report.Skipped = append(report.Skipped, SkippedStage{Stage: stage, Reason: reason})
		logger.Warn().Str("stage", string(stage)).Str("reason", reason).Msg("stage skipped")
		if r.recorder != nil {
			r.recorder.ObserveStageSkipped(stage)
		}
	}

	if skip(StageScores) {
		skipped(StageScores, "disabled")
	} else if scores, err := r.scorer.Score(summaries); err != nil {
		skipped(StageScores, err.Error())
	} else {
		out.Scores = scores
	}

	if skip(StageForecasts) {
		skipped(StageForecasts, "disabled")
	} else {
		forecasts, insufficient := r.forecaster.ForecastAll(in.Sales, summaries)
		out.Forecasts = forecasts
		if insufficient > 0 {
			logger.Info().Int("insufficient", insufficient).Int("total", len(forecasts)).Msg("forecasts without enough history")
		}
	}

	if skip(StageAnomalies) {
		skipped(StageAnomalies, "disabled")
	} else if anomalies, err := r.detector.Detect(anomaly.SamplesFrom(summaries, out.Scores)); err != nil {
		skipped(StageAnomalies, err.Error())
	} else {
		out.Anomalies = anomalies
	}

	if skip(StageInventory) {
		skipped(StageInventory, "disabled")
	} else {
		out.Inventory = r.inventory.Recommend(summaries, in.StockLevels)
	}

	if skip(StagePricing) {
		skipped(StagePricing, "disabled")
	} else {
		out.Prices = r.pricing.Recommend(summaries)
	}

	if skip(StageAlerts) {
		skipped(StageAlerts, "disabled")
	} else {
		ev, err := r.engine.RunAt(ctx, alerts.Inputs{
			Summaries: summaries,
			Scores:    out.Scores,
			Inventory: out.Inventory,
			Anomalies: out.Anomalies,
		}, out.Run.ID, started)
		if err != nil {
			return r.fail(ctx, out, report, fmt.Errorf("alerts: %w", err))
		}
		out.Evaluation = ev
		out.AlertsEvaluated = true
		out.Run.AlertCount = len(out.Evaluation.Alerts)
		report.SkippedChecks = out.Evaluation.Skipped
		report.AlertSummary = out.Evaluation.Summary
	}

	completed := r.now().UTC()
	out.Run.Status = StatusCompleted
	out.Run.CompletedAt = &completed

	if r.committer != nil {
		if err := r.committer.Commit(ctx, out); err != nil {
			out.Run.CompletedAt = nil
			return r.fail(ctx, out, report, fmt.Errorf("commit: %w", err))
		}
	}

	report.Status = StatusCompleted
	report.Duration = completed.Sub(started)
	report.Counts = outputCounts(out)

	if r.recorder != nil {
		r.recorder.ObserveRun(StatusCompleted, report.Duration)
		r.recorder.ObserveAlerts(report.AlertSummary)
		for table, n := range report.Counts {
			r.recorder.ObserveRows(table, n)
		}
	}

	logger.Info().
		Dur("duration", report.Duration).
		Int("alerts", out.Run.AlertCount).
		Int("skipped", len(report.Skipped)).
		Msg("run completed")

	return out, report, nil
}

func (r *Runner) fail(ctx context.Context, out *Output, report *Report, cause error) (*Output, *Report, error) {
	out.Run.Status = StatusFailed
	out.Run.ErrorMessage = cause.Error()
	report.Status = StatusFailed
	report.Duration = r.now().UTC().Sub(report.StartedAt)

	if r.tracker != nil {
		if err := r.tracker.UpdateRun(ctx, &out.Run); err != nil {
			log.Error().Err(err).Str("run_id", out.Run.ID).Msg("failed to record run failure")
		}
	}
	if r.recorder != nil {
		r.recorder.ObserveRun(StatusFailed, report.Duration)
	}

	log.Error().Err(cause).Str("run_id", out.Run.ID).Msg("run failed")
	return out, report, cause
}

func outputCounts(out *Output) map[string]int {
	return map[string]int{
		"summaries": len(out.Summaries),
		"scores":    len(out.Scores),
		"forecasts": len(out.Forecasts),
		"anomalies": len(out.Anomalies),
		"inventory": len(out.Inventory),
		"prices":    len(out.Prices),
		"alerts":    len(out.Evaluation.Alerts),
	}
}
