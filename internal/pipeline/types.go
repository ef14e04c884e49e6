package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/andresuchdata/vendor-analytics/internal/alerts"
	"github.com/andresuchdata/vendor-analytics/internal/analytics"
	"github.com/andresuchdata/vendor-analytics/internal/anomaly"
	"github.com/andresuchdata/vendor-analytics/internal/config"
	"github.com/andresuchdata/vendor-analytics/internal/domain"
)

// Stage names a component of the run.
type Stage string

const (
	StageAggregate Stage = "aggregate"
	StageScores    Stage = "scores"
	StageForecasts Stage = "forecasts"
	StageAnomalies Stage = "anomalies"
	StageInventory Stage = "inventory"
	StagePricing   Stage = "pricing"
	StageAlerts    Stage = "alerts"
)

// Stages lists every optional stage in execution order.
var Stages = []Stage{StageScores, StageForecasts, StageAnomalies, StageInventory, StagePricing, StageAlerts}

// ParseStage returns the optional stage with the given name (case-insensitive).
func ParseStage(name string) (Stage, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, s := range Stages {
		if string(s) == name {
			return s, true
		}
	}
	return "", false
}

// RunStatus represents the current state of a run.
type RunStatus string

const (
	StatusProcessing RunStatus = "processing"
	StatusCompleted  RunStatus = "completed"
	StatusFailed     RunStatus = "failed"
)

// Config holds the tuning of every component of a run.
type Config struct {
	Weights   analytics.Weights
	Forecast  analytics.ForecastConfig
	Inventory analytics.InventoryConfig
	Price     analytics.PriceConfig
	Anomaly   anomaly.Config
	Alerts    alerts.Config
}

// DefaultConfig returns the defaults of every component.
func DefaultConfig() Config {
	return Config{
		Weights:   analytics.DefaultWeights(),
		Forecast:  analytics.DefaultForecastConfig(),
		Inventory: analytics.DefaultInventoryConfig(),
		Price:     analytics.DefaultPriceConfig(),
		Anomaly:   anomaly.DefaultConfig(),
		Alerts:    alerts.DefaultConfig(),
	}
}

// ConfigFrom maps the application settings onto the component configs.
func ConfigFrom(a config.AnalyticsConfig) Config {
	return Config{
		Weights: analytics.Weights{
			Margin:     a.Weights.Margin,
			Turnover:   a.Weights.Turnover,
			Sales:      a.Weights.Sales,
			Efficiency: a.Weights.Efficiency,
		},
		Forecast: analytics.ForecastConfig{
			HorizonDays: a.ForecastHorizonDays,
			Window:      a.ForecastWindow,
			MinBuckets:  a.ForecastMinBuckets,
		},
		Inventory: analytics.InventoryConfig{
			LeadTimeDays:          a.LeadTimeDays,
			SafetyStockMultiplier: a.SafetyStockMultiplier,
			TargetSupplyDays:      a.TargetSupplyDays,
			OverstockTurnover:     a.OverstockTurnover,
			UnderstockTurnover:    a.UnderstockTurnover,
		},
		Price: analytics.PriceConfig{
			LowMargin:         a.LowMarginThreshold,
			HighMargin:        a.HighMarginThreshold,
			TurnoverThreshold: a.TurnoverThreshold,
		},
		Anomaly: anomaly.Config{
			Trees:         a.AnomalyTrees,
			SampleSize:    a.AnomalySampleSize,
			Contamination: a.Contamination,
			MinSamples:    a.AnomalyMinSamples,
			Seed:          a.AnomalySeed,
		},
		Alerts: alerts.Config{
			LowProfitMargin:        a.LowProfitMargin,
			LowStockTurnover:       a.LowStockTurnover,
			HighInventoryValue:     a.HighInventoryValue,
			AnomalyScoreThreshold:  a.AnomalyScoreThreshold,
			PoorPerformanceScore:   a.PoorPerformanceScore,
			MaxHighInventoryAlerts: a.MaxHighInventoryAlerts,
		},
	}
}

// Input is the raw data of a run.
type Input struct {
	Sales     []domain.SalesRecord
	Purchases []domain.PurchaseRecord
	// StockLevels optionally overrides the estimated on-hand stock per item.
	StockLevels analytics.StockLevels
	// Skip disables stages. Skipped stages produce no output and their
	// dependent alert checks are reported as skipped.
	Skip []Stage
	// Source describes where the input came from, for the run log.
	Source string
}

// Run tracks a single execution of the engine.
type Run struct {
	ID           string     `json:"id" db:"id"`
	Source       string     `json:"source" db:"source"`
	Status       RunStatus  `json:"status" db:"status"`
	SalesRows    int        `json:"sales_rows" db:"sales_rows"`
	PurchaseRows int        `json:"purchase_rows" db:"purchase_rows"`
	SummaryRows  int        `json:"summary_rows" db:"summary_rows"`
	AlertCount   int        `json:"alert_count" db:"alert_count"`
	StartedAt    time.Time  `json:"started_at" db:"started_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty" db:"completed_at"`
	ErrorMessage string     `json:"error_message,omitempty" db:"error_message"`
}

// Output is everything a run produced. Nil slices belong to stages that did
// not produce a result.
type Output struct {
	Run        Run
	Summaries  []domain.VendorSummary
	Scores     []domain.PerformanceScore
	Forecasts  []domain.DemandForecast
	Anomalies  []domain.AnomalyRecord
	Inventory  []domain.InventoryRecommendation
	Prices     []domain.PriceRecommendation
	Evaluation alerts.Evaluation

	// AlertsEvaluated is false when the alert stage was skipped. The active
	// set must then be left untouched.
	AlertsEvaluated bool
}

// SkippedStage records a stage that produced no result and why.
type SkippedStage struct {
	Stage  Stage  `json:"stage"`
	Reason string `json:"reason"`
}

// Report is the outcome of a run returned to callers.
type Report struct {
	RunID         string                      `json:"run_id"`
	Status        RunStatus                   `json:"status"`
	StartedAt     time.Time                   `json:"started_at"`
	Duration      time.Duration               `json:"duration"`
	SalesRows     int                         `json:"sales_rows"`
	PurchaseRows  int                         `json:"purchase_rows"`
	Counts        map[string]int              `json:"counts"`
	Issues        []analytics.ValidationIssue `json:"issues,omitempty"`
	Skipped       []SkippedStage              `json:"skipped,omitempty"`
	SkippedChecks []domain.AlertType          `json:"skipped_checks,omitempty"`
	AlertSummary  domain.AlertSummary         `json:"alert_summary"`
}

// Committer persists the output of a run. An implementation must make every
// table visible at once or none of them.
type Committer interface {
	Commit(ctx context.Context, out *Output) error
}

// RunTracker records run bookkeeping outside the output commit.
type RunTracker interface {
	CreateRun(ctx context.Context, run *Run) error
	UpdateRun(ctx context.Context, run *Run) error
}

// Recorder receives run measurements.
type Recorder interface {
	ObserveRun(status RunStatus, d time.Duration)
	ObserveStageSkipped(stage Stage)
	ObserveAlerts(summary domain.AlertSummary)
	ObserveRows(table string, n int)
}
