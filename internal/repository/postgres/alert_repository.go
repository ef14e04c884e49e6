package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/andresuchdata/vendor-analytics/internal/alerts"
	"github.com/andresuchdata/vendor-analytics/internal/domain"
)

const alertColumns = `id, run_id, alert_type, priority, vendor, description,
	metric_value, threshold, message, recommendation, created_at`

const alertValues = `:id, :run_id, :alert_type, :priority, :vendor, :description,
	:metric_value, :threshold, :message, :recommendation, :created_at`

var (
	insertHistory = `INSERT INTO alert_history (` + alertColumns + `) VALUES (` + alertValues + `)
		ON CONFLICT (id) DO NOTHING`
	insertActive = `INSERT INTO active_alerts (` + alertColumns + `) VALUES (` + alertValues + `)`
)

// queryer is satisfied by both *sqlx.DB and *sqlx.Tx.
type queryer interface {
	sqlx.QueryerContext
	Rebind(query string) string
}

// AlertRepository backs the alert engine with postgres. It satisfies
// alerts.ActiveStore, alerts.HistoryStore and alerts.Transactor.
type AlertRepository struct {
	db *DB
}

func NewAlertRepository(db *DB) *AlertRepository {
	return &AlertRepository{db: db}
}

func appendHistory(ctx context.Context, tx *sqlx.Tx, alerts []domain.Alert) error {
	if err := insertBatches(ctx, tx, insertHistory, alerts); err != nil {
		return fmt.Errorf("append alert history: %w", err)
	}
	return nil
}

func replaceActive(ctx context.Context, tx *sqlx.Tx, alerts []domain.Alert) error {
	if err := replaceTable(ctx, tx, "active_alerts", insertActive, alerts); err != nil {
		return fmt.Errorf("replace active alerts: %w", err)
	}
	return nil
}

// InTx runs fn with stores bound to one transaction, so the history append and
// the active replacement commit together.
func (r *AlertRepository) InTx(ctx context.Context, fn func(active alerts.ActiveStore, history alerts.HistoryStore) error) error {
	return r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		store := &txAlertStore{tx: tx}
		return fn(store, store)
	})
}

func (r *AlertRepository) ReplaceActive(ctx context.Context, alerts []domain.Alert) error {
	return r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		return replaceActive(ctx, tx, alerts)
	})
}

func (r *AlertRepository) AppendHistory(ctx context.Context, alerts []domain.Alert) error {
	return r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		return appendHistory(ctx, tx, alerts)
	})
}

// ListActive returns the current alerts, most urgent first.
func (r *AlertRepository) ListActive(ctx context.Context) ([]domain.Alert, error) {
	return listActive(ctx, r.db)
}

// ListHistory returns past alerts, newest first.
func (r *AlertRepository) ListHistory(ctx context.Context, filter domain.AlertHistoryFilter) ([]domain.Alert, error) {
	return listHistory(ctx, r.db, filter)
}

func listActive(ctx context.Context, q queryer) ([]domain.Alert, error) {
	out := []domain.Alert{}
	err := sqlx.SelectContext(ctx, q, &out, `
		SELECT `+alertColumns+`
		FROM active_alerts
		ORDER BY
			CASE priority
				WHEN 'Critical' THEN 0
				WHEN 'High' THEN 1
				WHEN 'Medium' THEN 2
				ELSE 3
			END,
			vendor, description, alert_type`)
	if err != nil {
		return nil, fmt.Errorf("list active alerts: %w", err)
	}
	return out, nil
}

func listHistory(ctx context.Context, q queryer, filter domain.AlertHistoryFilter) ([]domain.Alert, error) {
	var (
		where []string
		args  []interface{}
	)
	if len(filter.Vendors) > 0 {
		where = append(where, "vendor = ANY(?)")
		args = append(args, pq.Array(filter.Vendors))
	}
	if filter.Type != "" {
		where = append(where, "alert_type = ?")
		args = append(args, filter.Type)
	}
	if filter.Priority != "" {
		where = append(where, "priority = ?")
		args = append(args, filter.Priority)
	}
	if filter.Since != nil {
		where = append(where, "created_at >= ?")
		args = append(args, *filter.Since)
	}

	query := "SELECT " + alertColumns + " FROM alert_history"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	out := []domain.Alert{}
	if err := sqlx.SelectContext(ctx, q, &out, q.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list alert history: %w", err)
	}
	return out, nil
}

// ActiveSummary counts the active alerts per priority.
func (r *AlertRepository) ActiveSummary(ctx context.Context) (domain.AlertSummary, error) {
	var rows []struct {
		Priority domain.Priority `db:"priority"`
		Count    int             `db:"count"`
	}
	if err := r.db.SelectContext(ctx, &rows, `
		SELECT priority, COUNT(*) AS count
		FROM active_alerts
		GROUP BY priority`); err != nil {
		return domain.AlertSummary{}, fmt.Errorf("active alert summary: %w", err)
	}

	var summary domain.AlertSummary
	for _, row := range rows {
		for i := 0; i < row.Count; i++ {
			summary.Add(row.Priority)
		}
	}
	return summary, nil
}

// AlertTrend returns daily alert counts per priority for the last days days.
func (r *AlertRepository) AlertTrend(ctx context.Context, days int) ([]domain.AlertTrendPoint, error) {
	if days <= 0 {
		days = 30
	}

	out := []domain.AlertTrendPoint{}
	err := r.db.SelectContext(ctx, &out, `
		SELECT TO_CHAR(DATE(created_at), 'YYYY-MM-DD') AS date, priority, COUNT(*) AS count
		FROM alert_history
		WHERE created_at >= NOW() - make_interval(days => $1)
		GROUP BY DATE(created_at), priority
		ORDER BY DATE(created_at), priority`, days)
	if err != nil {
		return nil, fmt.Errorf("alert trend: %w", err)
	}
	return out, nil
}

// txAlertStore reads and writes the alert tables inside one transaction.
type txAlertStore struct {
	tx *sqlx.Tx
}

func (s *txAlertStore) ReplaceActive(ctx context.Context, alerts []domain.Alert) error {
	return replaceActive(ctx, s.tx, alerts)
}

func (s *txAlertStore) AppendHistory(ctx context.Context, alerts []domain.Alert) error {
	return appendHistory(ctx, s.tx, alerts)
}

func (s *txAlertStore) ListActive(ctx context.Context) ([]domain.Alert, error) {
	return listActive(ctx, s.tx)
}

func (s *txAlertStore) ListHistory(ctx context.Context, filter domain.AlertHistoryFilter) ([]domain.Alert, error) {
	return listHistory(ctx, s.tx, filter)
}
