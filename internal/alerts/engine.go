package alerts

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/vendor-analytics/internal/domain"
)

// Inputs are the outputs of the upstream components. A nil slice means the
// component produced nothing and its checks are skipped. An empty non-nil
// slice means the component ran and found nothing.
type Inputs struct {
	Summaries []domain.VendorSummary
	Scores    []domain.PerformanceScore
	Inventory []domain.InventoryRecommendation
	Anomalies []domain.AnomalyRecord
}

// Evaluation is the result of one pass over the checks.
type Evaluation struct {
	RunID   string
	Alerts  []domain.Alert
	Summary domain.AlertSummary
	// Skipped lists the checks that could not run because their input was absent.
	Skipped []domain.AlertType
}

// Engine evaluates the checks and maintains the active and history stores.
type Engine struct {
	cfg     Config
	active  ActiveStore
	history HistoryStore
	now     func() time.Time
}

func NewEngine(cfg Config, active ActiveStore, history HistoryStore) *Engine {
	return &Engine{
		cfg:     cfg,
		active:  active,
		history: history,
		now:     time.Now,
	}
}

// Run evaluates the inputs at the current time and persists the result. See RunAt.
func (e *Engine) Run(ctx context.Context, in Inputs, runID string) (Evaluation, error) {
	return e.RunAt(ctx, in, runID, e.now().UTC())
}

// RunAt evaluates the inputs, then appends the alerts to history and replaces
// the active set with exactly those alerts in one transaction. Nothing is
// written when either step fails. An engine without stores only evaluates.
func (e *Engine) RunAt(ctx context.Context, in Inputs, runID string, now time.Time) (Evaluation, error) {
	ev := e.Evaluate(in, runID, now)

	if err := e.persist(ctx, ev.Alerts); err != nil {
		return ev, err
	}

	log.Info().
		Str("run_id", runID).
		Int("total", ev.Summary.Total).
		Int("critical", ev.Summary.Critical).
		Int("high", ev.Summary.High).
		Int("medium", ev.Summary.Medium).
		Int("low", ev.Summary.Low).
		Msg("alerts evaluated")

	return ev, nil
}

func (e *Engine) persist(ctx context.Context, alerts []domain.Alert) error {
	if e.active == nil && e.history == nil {
		return nil
	}

	tx, ok := e.active.(Transactor)
	if !ok {
		tx, ok = e.history.(Transactor)
	}
	if !ok {
		return ErrNotTransactional
	}

	return tx.InTx(ctx, func(active ActiveStore, history HistoryStore) error {
		if err := history.AppendHistory(ctx, alerts); err != nil {
			return fmt.Errorf("append alert history: %w", err)
		}
		if err := active.ReplaceActive(ctx, alerts); err != nil {
			return fmt.Errorf("replace active alerts: %w", err)
		}
		return nil
	})
}

// Evaluate runs every check. It has no side effects; the same inputs, run ID
// and time give the same alerts, IDs included.
func (e *Engine) Evaluate(in Inputs, runID string, now time.Time) Evaluation {
	ev := Evaluation{RunID: runID}
	var out []domain.Alert

	if in.Summaries == nil {
		ev.Skipped = append(ev.Skipped,
			domain.AlertLowProfitMargin,
			domain.AlertNegativeProfit,
			domain.AlertLowStockTurnover,
			domain.AlertHighInventoryValue,
		)
	} else {
		out = append(out, e.checkProfit(in.Summaries)...)
		out = append(out, e.checkTurnover(in.Summaries)...)
		out = append(out, e.checkInventoryValue(in.Summaries)...)
	}

	if in.Inventory == nil {
		ev.Skipped = append(ev.Skipped, domain.AlertOverstocked, domain.AlertUnderstocked)
	} else {
		out = append(out, e.checkStock(in.Inventory)...)
	}

	if in.Anomalies == nil {
		ev.Skipped = append(ev.Skipped, domain.AlertAnomalousBehavior)
	} else {
		out = append(out, e.checkAnomalies(in.Anomalies)...)
	}

	if in.Scores == nil {
		ev.Skipped = append(ev.Skipped, domain.AlertPoorPerformance)
	} else {
		out = append(out, e.checkPerformance(in.Scores)...)
	}

	for i := range out {
		out[i].RunID = runID
		out[i].Timestamp = now
		out[i].ID = alertID(runID, out[i])
	}
	sortAlerts(out)

	if out == nil {
		out = []domain.Alert{}
	}
	ev.Alerts = out
	ev.Summary = domain.SummarizeAlerts(out)
	return ev
}

func (e *Engine) checkProfit(rows []domain.VendorSummary) []domain.Alert {
	var out []domain.Alert
	for _, r := range rows {
		if r.ProfitMargin < e.cfg.LowProfitMargin {
			out = append(out, domain.Alert{
				Type:           domain.AlertLowProfitMargin,
				Priority:       domain.PriorityHigh,
				Vendor:         r.Vendor,
				Description:    r.Description,
				MetricValue:    r.ProfitMargin,
				Threshold:      e.cfg.LowProfitMargin,
				Message:        fmt.Sprintf("Profit margin (%.2f%%) below threshold (%.1f%%)", r.ProfitMargin, e.cfg.LowProfitMargin),
				Recommendation: "Review pricing strategy or negotiate better purchase terms",
			})
		}
		if r.GrossProfit < 0 {
			out = append(out, domain.Alert{
				Type:           domain.AlertNegativeProfit,
				Priority:       domain.PriorityCritical,
				Vendor:         r.Vendor,
				Description:    r.Description,
				MetricValue:    r.GrossProfit,
				Threshold:      0,
				Message:        fmt.Sprintf("Negative profit: losing $%.2f", -r.GrossProfit),
				Recommendation: "Review immediately, the item is selling at a loss",
			})
		}
	}
	return out
}

func (e *Engine) checkTurnover(rows []domain.VendorSummary) []domain.Alert {
	var out []domain.Alert
	for _, r := range rows {
		if r.StockTurnover < e.cfg.LowStockTurnover {
			out = append(out, domain.Alert{
				Type:           domain.AlertLowStockTurnover,
				Priority:       domain.PriorityMedium,
				Vendor:         r.Vendor,
				Description:    r.Description,
				MetricValue:    r.StockTurnover,
				Threshold:      e.cfg.LowStockTurnover,
				Message:        fmt.Sprintf("Slow-moving inventory (turnover: %.2fx)", r.StockTurnover),
				Recommendation: "Consider discounting or promotional activities",
			})
		}
	}
	return out
}

func (e *Engine) checkInventoryValue(rows []domain.VendorSummary) []domain.Alert {
	var high []domain.VendorSummary
	for _, r := range rows {
		if r.TotalPurchaseDollars > e.cfg.HighInventoryValue {
			high = append(high, r)
		}
	}
	if e.cfg.MaxHighInventoryAlerts > 0 && len(high) > e.cfg.MaxHighInventoryAlerts {
		sort.SliceStable(high, func(i, j int) bool {
			return high[i].TotalPurchaseDollars > high[j].TotalPurchaseDollars
		})
		high = high[:e.cfg.MaxHighInventoryAlerts]
	}

	out := make([]domain.Alert, 0, len(high))
	for _, r := range high {
		out = append(out, domain.Alert{
			Type:           domain.AlertHighInventoryValue,
			Priority:       domain.PriorityLow,
			Vendor:         r.Vendor,
			Description:    r.Description,
			MetricValue:    r.TotalPurchaseDollars,
			Threshold:      e.cfg.HighInventoryValue,
			Message:        fmt.Sprintf("High inventory value ($%.2f), monitor closely", r.TotalPurchaseDollars),
			Recommendation: "Track closely to ensure adequate return on investment",
		})
	}
	return out
}

func (e *Engine) checkStock(recs []domain.InventoryRecommendation) []domain.Alert {
	var out []domain.Alert
	for _, r := range recs {
		if r.IsOverstocked {
			out = append(out, domain.Alert{
				Type:           domain.AlertOverstocked,
				Priority:       domain.PriorityHigh,
				Vendor:         r.Vendor,
				Description:    r.Description,
				MetricValue:    r.CurrentStock,
				Threshold:      r.OptimalOrderQuantity,
				Message:        fmt.Sprintf("Overstocked: %.0f units on hand against an optimal %.0f", r.CurrentStock, r.OptimalOrderQuantity),
				Recommendation: "Reduce ordering, consider clearance sale",
			})
		}
		if r.IsUnderstocked {
			out = append(out, domain.Alert{
				Type:           domain.AlertUnderstocked,
				Priority:       domain.PriorityCritical,
				Vendor:         r.Vendor,
				Description:    r.Description,
				MetricValue:    r.CurrentStock,
				Threshold:      r.ReorderPoint,
				Message:        fmt.Sprintf("Stock level critically low: %.0f units against a reorder point of %.0f", r.CurrentStock, r.ReorderPoint),
				Recommendation: "Reorder immediately to avoid stockout",
			})
		}
	}
	return out
}

func (e *Engine) checkAnomalies(recs []domain.AnomalyRecord) []domain.Alert {
	var out []domain.Alert
	for _, r := range recs {
		if r.AnomalyScore < e.cfg.AnomalyScoreThreshold {
			out = append(out, domain.Alert{
				Type:           domain.AlertAnomalousBehavior,
				Priority:       domain.PriorityMedium,
				Vendor:         r.Vendor,
				Description:    r.Description,
				MetricValue:    r.AnomalyScore,
				Threshold:      e.cfg.AnomalyScoreThreshold,
				Message:        fmt.Sprintf("Unusual behavior pattern detected (score %.2f)", r.AnomalyScore),
				Recommendation: "Investigate for data quality issues or exceptional circumstances",
			})
		}
	}
	return out
}

func (e *Engine) checkPerformance(scores []domain.PerformanceScore) []domain.Alert {
	var out []domain.Alert
	for _, s := range scores {
		if s.Score < e.cfg.PoorPerformanceScore {
			out = append(out, domain.Alert{
				Type:           domain.AlertPoorPerformance,
				Priority:       domain.PriorityHigh,
				Vendor:         s.Vendor,
				Description:    s.Description,
				MetricValue:    s.Score,
				Threshold:      e.cfg.PoorPerformanceScore,
				Message:        fmt.Sprintf("Poor overall performance score (%.1f/100)", s.Score),
				Recommendation: "Review vendor relationship, consider alternatives",
			})
		}
	}
	return out
}

// alertID derives a stable ID from the run and the alert's identity.
func alertID(runID string, a domain.Alert) string {
	name := runID + "|" + string(a.Type) + "|" + a.Vendor + "|" + a.Description
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(name)).String()
}

func sortAlerts(alerts []domain.Alert) {
	sort.SliceStable(alerts, func(i, j int) bool {
		a, b := alerts[i], alerts[j]
		if a.Priority.Rank() != b.Priority.Rank() {
			return a.Priority.Rank() < b.Priority.Rank()
		}
		if a.Vendor != b.Vendor {
			return a.Vendor < b.Vendor
		}
		if a.Description != b.Description {
			return a.Description < b.Description
		}
		return a.Type < b.Type
	})
}
