package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/vendor-analytics/internal/domain"
	"github.com/andresuchdata/vendor-analytics/internal/pipeline"
)

const (
	insertSummary = `
		INSERT INTO vendor_sales_summary (
			vendor, description, total_sales_quantity, total_sales_dollars,
			total_purchase_quantity, total_purchase_dollars, purchase_count,
			gross_profit, profit_margin, stock_turnover, sales_to_purchase_ratio
		) VALUES (
			:vendor, :description, :total_sales_quantity, :total_sales_dollars,
			:total_purchase_quantity, :total_purchase_dollars, :purchase_count,
			:gross_profit, :profit_margin, :stock_turnover, :sales_to_purchase_ratio
		)`

	insertScore = `
		INSERT INTO vendor_performance_scores (
			vendor, description, margin_score, turnover_score, sales_score,
			efficiency_score, score, tier
		) VALUES (
			:vendor, :description, :margin_score, :turnover_score, :sales_score,
			:efficiency_score, :score, :tier
		)`

	insertForecast = `
		INSERT INTO demand_forecasts (
			vendor, description, horizon_days, forecast_quantity, forecast_dollars,
			confidence, buckets, sufficient
		) VALUES (
			:vendor, :description, :horizon_days, :forecast_quantity, :forecast_dollars,
			:confidence, :buckets, :sufficient
		)`

	insertAnomaly = `
		INSERT INTO vendor_anomalies (vendor, description, anomaly_score, is_anomalous)
		VALUES (:vendor, :description, :anomaly_score, :is_anomalous)`

	insertInventory = `
		INSERT INTO inventory_recommendations (
			vendor, description, current_stock, stock_turnover, demand_rate,
			safety_stock, reorder_point, optimal_order_quantity,
			is_overstocked, is_understocked
		) VALUES (
			:vendor, :description, :current_stock, :stock_turnover, :demand_rate,
			:safety_stock, :reorder_point, :optimal_order_quantity,
			:is_overstocked, :is_understocked
		)`

	insertPrice = `
		INSERT INTO price_recommendations (
			vendor, description, current_margin, current_turnover, action,
			magnitude, rationale
		) VALUES (
			:vendor, :description, :current_margin, :current_turnover, :action,
			:magnitude, :rationale
		)`

	upsertRun = `
		INSERT INTO pipeline_runs (
			id, source, status, sales_rows, purchase_rows, summary_rows,
			alert_count, started_at, completed_at, error_message
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NULL)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			summary_rows = EXCLUDED.summary_rows,
			alert_count = EXCLUDED.alert_count,
			completed_at = EXCLUDED.completed_at,
			error_message = NULL`
)

// AnalyticsRepository persists and reads the derived tables.
type AnalyticsRepository struct {
	db *DB
}

func NewAnalyticsRepository(db *DB) *AnalyticsRepository {
	return &AnalyticsRepository{db: db}
}

// Commit replaces every derived table, appends the run's alerts to history,
// replaces the active alerts and finalizes the run record in one transaction.
// A stage without output leaves its table empty. When alerts were not
// evaluated the active set and history are left as they are.
func (r *AnalyticsRepository) Commit(ctx context.Context, out *pipeline.Output) error {
	return r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := replaceTable(ctx, tx, "vendor_sales_summary", insertSummary, out.Summaries); err != nil {
			return err
		}
		if err := replaceTable(ctx, tx, "vendor_performance_scores", insertScore, out.Scores); err != nil {
			return err
		}
		if err := replaceTable(ctx, tx, "demand_forecasts", insertForecast, out.Forecasts); err != nil {
			return err
		}
		if err := replaceTable(ctx, tx, "vendor_anomalies", insertAnomaly, out.Anomalies); err != nil {
			return err
		}
		if err := replaceTable(ctx, tx, "inventory_recommendations", insertInventory, out.Inventory); err != nil {
			return err
		}
		if err := replaceTable(ctx, tx, "price_recommendations", insertPrice, out.Prices); err != nil {
			return err
		}

		if out.AlertsEvaluated {
			if err := appendHistory(ctx, tx, out.Evaluation.Alerts); err != nil {
				return err
			}
			if err := replaceActive(ctx, tx, out.Evaluation.Alerts); err != nil {
				return err
			}
		}

		run := out.Run
		if _, err := tx.ExecContext(ctx, upsertRun,
			run.ID, run.Source, run.Status, run.SalesRows, run.PurchaseRows,
			run.SummaryRows, run.AlertCount, run.StartedAt, run.CompletedAt,
		); err != nil {
			return fmt.Errorf("finalize run %s: %w", run.ID, err)
		}

		log.Info().
			Str("run_id", run.ID).
			Int("summaries", len(out.Summaries)).
			Int("alerts", len(out.Evaluation.Alerts)).
			Msg("run committed")
		return nil
	})
}

func replaceTable[T any](ctx context.Context, tx *sqlx.Tx, table, insert string, rows []T) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
		return fmt.Errorf("clear %s: %w", table, err)
	}
	if err := insertBatches(ctx, tx, insert, rows); err != nil {
		return fmt.Errorf("insert %s: %w", table, err)
	}
	return nil
}

// ItemFilter narrows list queries on the derived tables.
type ItemFilter struct {
	Vendor string
	Limit  int
	Offset int
}

// listQuery builds a SELECT with ? placeholders, rebound for the driver.
type listQuery struct {
	table   string
	where   []string
	args    []interface{}
	orderBy string
}

func (q *listQuery) and(clause string, args ...interface{}) {
	q.where = append(q.where, clause)
	q.args = append(q.args, args...)
}

func (q *listQuery) build(filter ItemFilter) (string, []interface{}) {
	if filter.Vendor != "" {
		q.and("vendor = ?", filter.Vendor)
	}

	query := "SELECT * FROM " + q.table
	if len(q.where) > 0 {
		query += " WHERE " + strings.Join(q.where, " AND ")
	}
	query += " ORDER BY " + q.orderBy

	args := q.args
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		query += " OFFSET ?"
		args = append(args, filter.Offset)
	}
	return query, args
}

func listItems[T any](ctx context.Context, db *DB, q *listQuery, filter ItemFilter) ([]T, error) {
	query, args := q.build(filter)

	out := []T{}
	if err := db.SelectContext(ctx, &out, db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list %s: %w", q.table, err)
	}
	return out, nil
}

func (r *AnalyticsRepository) ListSummaries(ctx context.Context, filter ItemFilter) ([]domain.VendorSummary, error) {
	q := &listQuery{table: "vendor_sales_summary", orderBy: "total_sales_dollars DESC, vendor, description"}
	return listItems[domain.VendorSummary](ctx, r.db, q, filter)
}

// ListScores returns scores, best first. An empty tier returns all tiers.
func (r *AnalyticsRepository) ListScores(ctx context.Context, tier domain.Tier, filter ItemFilter) ([]domain.PerformanceScore, error) {
	q := &listQuery{table: "vendor_performance_scores", orderBy: "score DESC, vendor, description"}
	if tier != "" {
		q.and("tier = ?", tier)
	}
	return listItems[domain.PerformanceScore](ctx, r.db, q, filter)
}

// ListInventory returns recommendations. flaggedOnly keeps over- or understocked items.
func (r *AnalyticsRepository) ListInventory(ctx context.Context, flaggedOnly bool, filter ItemFilter) ([]domain.InventoryRecommendation, error) {
	q := &listQuery{table: "inventory_recommendations", orderBy: "vendor, description"}
	if flaggedOnly {
		q.and("(is_overstocked OR is_understocked)")
	}
	return listItems[domain.InventoryRecommendation](ctx, r.db, q, filter)
}

// ListPrices returns price recommendations. An empty action returns all.
func (r *AnalyticsRepository) ListPrices(ctx context.Context, action domain.PriceAction, filter ItemFilter) ([]domain.PriceRecommendation, error) {
	q := &listQuery{table: "price_recommendations", orderBy: "vendor, description"}
	if action != "" {
		q.and("action = ?", action)
	}
	return listItems[domain.PriceRecommendation](ctx, r.db, q, filter)
}

// ListAnomalies returns anomaly scores, most anomalous first.
func (r *AnalyticsRepository) ListAnomalies(ctx context.Context, anomalousOnly bool, filter ItemFilter) ([]domain.AnomalyRecord, error) {
	q := &listQuery{table: "vendor_anomalies", orderBy: "anomaly_score ASC, vendor, description"}
	if anomalousOnly {
		q.and("is_anomalous")
	}
	return listItems[domain.AnomalyRecord](ctx, r.db, q, filter)
}

func (r *AnalyticsRepository) ListForecasts(ctx context.Context, filter ItemFilter) ([]domain.DemandForecast, error) {
	q := &listQuery{table: "demand_forecasts", orderBy: "forecast_dollars DESC, vendor, description"}
	return listItems[domain.DemandForecast](ctx, r.db, q, filter)
}

// TierCounts returns the number of scored items per tier.
func (r *AnalyticsRepository) TierCounts(ctx context.Context) ([]domain.TierCount, error) {
	out := []domain.TierCount{}
	err := r.db.SelectContext(ctx, &out, `
		SELECT tier, COUNT(*) AS count
		FROM vendor_performance_scores
		GROUP BY tier
		ORDER BY tier`)
	if err != nil {
		return nil, fmt.Errorf("tier counts: %w", err)
	}
	return out, nil
}
