package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresuchdata/vendor-analytics/internal/alerts"
	"github.com/andresuchdata/vendor-analytics/internal/domain"
	"github.com/andresuchdata/vendor-analytics/internal/pipeline"
)

func newMockDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })
	return Wrap(sqlx.NewDb(mockDB, "postgres")), mock
}

func committedOutput(evaluated bool) *pipeline.Output {
	done := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	out := &pipeline.Output{
		Run: pipeline.Run{
			ID: "run-1", Source: "sales.csv+purchases.csv", Status: pipeline.StatusCompleted,
			SalesRows: 4, PurchaseRows: 2, SummaryRows: 1, StartedAt: done.Add(-time.Minute), CompletedAt: &done,
		},
		Summaries: []domain.VendorSummary{{
			Vendor: "Acme", Description: "Widget", TotalSalesQuantity: 10, TotalSalesDollars: 100,
			TotalPurchaseQuantity: 8, TotalPurchaseDollars: 60, PurchaseCount: 2,
			GrossProfit: 40, ProfitMargin: 40, StockTurnover: 2.5, SalesToPurchaseRatio: 1.67,
		}},
		AlertsEvaluated: evaluated,
	}
	if evaluated {
		out.Evaluation = alerts.Evaluation{
			RunID: "run-1",
			Alerts: []domain.Alert{{
				ID: "a-1", RunID: "run-1", Type: domain.AlertLowStockTurnover, Priority: domain.PriorityMedium,
				Vendor: "Acme", Description: "Widget", MetricValue: 0.2, Threshold: 0.3,
				Message: "slow", Recommendation: "review", Timestamp: done,
			}},
		}
	}
	return out
}

func expectDerivedTables(mock sqlmock.Sqlmock) {
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM vendor_sales_summary")).WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO vendor_sales_summary")).WillReturnResult(sqlmock.NewResult(0, 1))
	for _, table := range []string{
		"vendor_performance_scores", "demand_forecasts", "vendor_anomalies",
		"inventory_recommendations", "price_recommendations",
	} {
		mock.ExpectExec(regexp.QuoteMeta("DELETE FROM " + table)).WillReturnResult(sqlmock.NewResult(0, 0))
	}
}

func TestAnalyticsRepository_Commit(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAnalyticsRepository(db)

	mock.ExpectBegin()
	expectDerivedTables(mock)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO alert_history")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM active_alerts")).WillReturnResult(sqlmock.NewResult(0, 5))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO active_alerts")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO pipeline_runs")).
		WithArgs("run-1", "sales.csv+purchases.csv", pipeline.StatusCompleted, 4, 2, 1, 0, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Commit(context.Background(), committedOutput(true)))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAnalyticsRepository_CommitLeavesAlertsWhenNotEvaluated(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAnalyticsRepository(db)

	mock.ExpectBegin()
	expectDerivedTables(mock)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO pipeline_runs")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Commit(context.Background(), committedOutput(false)))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAnalyticsRepository_CommitRollsBackOnError(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAnalyticsRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM vendor_sales_summary")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO vendor_sales_summary")).WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := repo.Commit(context.Background(), committedOutput(true))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert vendor_sales_summary")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAnalyticsRepository_ListScoresFilters(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAnalyticsRepository(db)

	cols := []string{"vendor", "description", "margin_score", "turnover_score", "sales_score", "efficiency_score", "score", "tier"}
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM vendor_performance_scores WHERE tier = $1 AND vendor = $2 ORDER BY score DESC, vendor, description LIMIT $3")).
		WithArgs(domain.TierPoor, "Acme", 10).
		WillReturnRows(sqlmock.NewRows(cols).AddRow("Acme", "Widget", 10, 20, 5, 0, 9.5, "Poor"))

	scores, err := repo.ListScores(context.Background(), domain.TierPoor, ItemFilter{Vendor: "Acme", Limit: 10})
	require.NoError(t, err)
	require.Len(t, scores, 1)
	assert.Equal(t, domain.TierPoor, scores[0].Tier)
	assert.InDelta(t, 9.5, scores[0].Score, 1e-9)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAnalyticsRepository_ListInventoryFlagged(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAnalyticsRepository(db)

	cols := []string{"vendor", "description", "current_stock", "stock_turnover", "demand_rate", "safety_stock",
		"reorder_point", "optimal_order_quantity", "is_overstocked", "is_understocked"}
	mock.ExpectQuery(regexp.QuoteMeta("WHERE (is_overstocked OR is_understocked) ORDER BY vendor, description")).
		WillReturnRows(sqlmock.NewRows(cols).AddRow("Acme", "Widget", 500, 0.2, 1, 10, 17, 30, true, false))

	recs, err := repo.ListInventory(context.Background(), true, ItemFilter{})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.True(t, recs[0].IsOverstocked)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAnalyticsRepository_ListReturnsEmptySlice(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAnalyticsRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM price_recommendations WHERE action = $1")).
		WithArgs(domain.PriceIncrease).
		WillReturnRows(sqlmock.NewRows([]string{"vendor"}))

	prices, err := repo.ListPrices(context.Background(), domain.PriceIncrease, ItemFilter{})
	require.NoError(t, err)
	assert.NotNil(t, prices)
	assert.Empty(t, prices)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAnalyticsRepository_TierCounts(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAnalyticsRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("GROUP BY tier")).
		WillReturnRows(sqlmock.NewRows([]string{"tier", "count"}).
			AddRow("Excellent", 2).
			AddRow("Poor", 5))

	counts, err := repo.TierCounts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []domain.TierCount{{Tier: domain.TierExcellent, Count: 2}, {Tier: domain.TierPoor, Count: 5}}, counts)
	assert.NoError(t, mock.ExpectationsWereMet())
}
