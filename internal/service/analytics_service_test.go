package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresuchdata/vendor-analytics/internal/domain"
	"github.com/andresuchdata/vendor-analytics/internal/ingest"
	"github.com/andresuchdata/vendor-analytics/internal/pipeline"
	"github.com/andresuchdata/vendor-analytics/internal/repository/postgres"
	"github.com/andresuchdata/vendor-analytics/internal/storage"
)

type fakeReader struct {
	summaryCalls int
	scores       []domain.PerformanceScore
	lastTier     domain.Tier
}

func (f *fakeReader) ListSummaries(context.Context, postgres.ItemFilter) ([]domain.VendorSummary, error) {
	f.summaryCalls++
	return []domain.VendorSummary{{Vendor: "Acme", Description: "Widget"}}, nil
}

func (f *fakeReader) ListScores(_ context.Context, tier domain.Tier, _ postgres.ItemFilter) ([]domain.PerformanceScore, error) {
	f.lastTier = tier
	return f.scores, nil
}

func (f *fakeReader) ListInventory(context.Context, bool, postgres.ItemFilter) ([]domain.InventoryRecommendation, error) {
	return []domain.InventoryRecommendation{}, nil
}

func (f *fakeReader) ListPrices(context.Context, domain.PriceAction, postgres.ItemFilter) ([]domain.PriceRecommendation, error) {
	return []domain.PriceRecommendation{}, nil
}

func (f *fakeReader) ListAnomalies(context.Context, bool, postgres.ItemFilter) ([]domain.AnomalyRecord, error) {
	return []domain.AnomalyRecord{}, nil
}

func (f *fakeReader) ListForecasts(context.Context, postgres.ItemFilter) ([]domain.DemandForecast, error) {
	return []domain.DemandForecast{}, nil
}

func (f *fakeReader) TierCounts(context.Context) ([]domain.TierCount, error) {
	return []domain.TierCount{{Tier: domain.TierGood, Count: 1}}, nil
}

type fakeAlerts struct {
	lastFilter domain.AlertHistoryFilter
	lastDays   int
}

func (f *fakeAlerts) ListActive(context.Context) ([]domain.Alert, error) {
	return []domain.Alert{{ID: "a-1"}}, nil
}

func (f *fakeAlerts) ListHistory(_ context.Context, filter domain.AlertHistoryFilter) ([]domain.Alert, error) {
	f.lastFilter = filter
	return []domain.Alert{}, nil
}

func (f *fakeAlerts) ActiveSummary(context.Context) (domain.AlertSummary, error) {
	return domain.AlertSummary{Total: 1, High: 1}, nil
}

func (f *fakeAlerts) AlertTrend(_ context.Context, days int) ([]domain.AlertTrendPoint, error) {
	f.lastDays = days
	return []domain.AlertTrendPoint{}, nil
}

type fakeRuns struct{}

func (fakeRuns) GetRun(_ context.Context, id string) (*pipeline.Run, error) {
	if id == "run-1" {
		return &pipeline.Run{ID: id, Status: pipeline.StatusCompleted}, nil
	}
	return nil, nil
}

func (fakeRuns) ListRuns(context.Context, int) ([]*pipeline.Run, error) {
	return []*pipeline.Run{}, nil
}

type countingCache struct {
	entries     map[string]bool
	invalidated int
}

func (c *countingCache) Get(_ context.Context, key string, _ interface{}) (bool, error) {
	return false, nil
}

func (c *countingCache) Set(_ context.Context, key string, _ interface{}) error {
	c.entries[key] = true
	return nil
}

func (c *countingCache) InvalidateAll(context.Context) error {
	c.invalidated++
	c.entries = map[string]bool{}
	return nil
}

type memoryStore struct {
	keys []string
}

func (m *memoryStore) ListObjects(context.Context, string) ([]storage.ObjectInfo, error) {
	return nil, nil
}

func (m *memoryStore) DownloadObject(context.Context, string, string) error {
	return nil
}

func (m *memoryStore) UploadObject(_ context.Context, key string, _ []byte, _ string) error {
	m.keys = append(m.keys, key)
	return nil
}

const salesCSV = `VendorName,Description,SalesQuantity,SalesDollars,SalesDate
Acme,Widget,10,200,2024-01-01
Acme,Widget,5,100,2024-01-02
Globex,Gadget,3,90,2024-01-01
`

const purchasesCSV = `VendorName,Description,Quantity,Dollars,ReceivingDate
Acme,Widget,12,120,2023-12-20
Globex,Gadget,4,60,2023-12-21
`

func newTestService(t *testing.T, opts ...Option) (*AnalyticsService, *fakeReader, *fakeAlerts) {
	t.Helper()
	runner, err := pipeline.NewRunner(pipeline.DefaultConfig())
	require.NoError(t, err)

	reader := &fakeReader{scores: []domain.PerformanceScore{{Vendor: "Acme", Tier: domain.TierPoor}}}
	alertReader := &fakeAlerts{}
	return NewAnalyticsService(reader, alertReader, fakeRuns{}, runner, opts...), reader, alertReader
}

func TestAnalyticsService_ReadsGoThroughCache(t *testing.T) {
	c := &countingCache{entries: map[string]bool{}}
	svc, reader, _ := newTestService(t, WithCache(c))
	ctx := context.Background()

	_, err := svc.GetSummaries(ctx, postgres.ItemFilter{Vendor: "Acme"})
	require.NoError(t, err)
	assert.Equal(t, 1, reader.summaryCalls)
	assert.Len(t, c.entries, 1)

	scores, err := svc.GetScores(ctx, domain.TierPoor, postgres.ItemFilter{})
	require.NoError(t, err)
	assert.Len(t, scores, 1)
	assert.Equal(t, domain.TierPoor, reader.lastTier)

	summary, err := svc.GetAlertSummary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.High)
	assert.Len(t, c.entries, 3)
}

func TestAnalyticsService_Defaults(t *testing.T) {
	svc, _, alertReader := newTestService(t)
	ctx := context.Background()

	_, err := svc.GetAlertHistory(ctx, domain.AlertHistoryFilter{Vendors: []string{"Acme"}})
	require.NoError(t, err)
	assert.Equal(t, 100, alertReader.lastFilter.Limit)
	assert.Equal(t, []string{"Acme"}, alertReader.lastFilter.Vendors)

	_, err = svc.GetAlertTrend(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 30, alertReader.lastDays)
}

func TestAnalyticsService_GetRun(t *testing.T) {
	svc, _, _ := newTestService(t)

	run, err := svc.GetRun(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, "run-1", run.ID)

	_, err = svc.GetRun(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAnalyticsService_RunUploads(t *testing.T) {
	c := &countingCache{entries: map[string]bool{"stale": true}}
	store := &memoryStore{}
	svc, _, _ := newTestService(t, WithCache(c), WithPublisher(&Publisher{Store: store, Prefix: "exports"}))

	report, err := svc.RunUploads(context.Background(),
		Upload{Name: "sales.csv", Body: strings.NewReader(salesCSV)},
		Upload{Name: "purchases.csv", Body: strings.NewReader(purchasesCSV)},
		[]pipeline.Stage{pipeline.StageForecasts},
	)
	require.NoError(t, err)
	require.NotNil(t, report)

	assert.Equal(t, pipeline.StatusCompleted, report.Status)
	assert.Equal(t, 3, report.SalesRows)
	assert.Equal(t, 2, report.PurchaseRows)
	assert.Equal(t, 2, report.Counts["summaries"])
	assert.Equal(t, 1, c.invalidated)
	assert.Empty(t, c.entries)
	assert.NotEmpty(t, store.keys)
	for _, key := range store.keys {
		assert.True(t, strings.HasPrefix(key, "exports/"+report.RunID+"/"), key)
	}
}

func TestAnalyticsService_RunUploadsRejectsFormat(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.RunUploads(context.Background(),
		Upload{Name: "sales.json", Body: strings.NewReader("{}")},
		Upload{Name: "purchases.csv", Body: strings.NewReader(purchasesCSV)},
		nil,
	)
	assert.True(t, errors.Is(err, ingest.ErrUnsupportedFormat))
}

func TestAnalyticsService_RunUploadsRejectsNonFiniteCells(t *testing.T) {
	svc, _, _ := newTestService(t)

	assert.NotPanics(t, func() {
		_, err := svc.RunUploads(context.Background(),
			Upload{Name: "sales.csv", Body: strings.NewReader("VendorName,Description,SalesQuantity,SalesDollars\nAcme,Widget,10,NaN\n")},
			Upload{Name: "purchases.csv", Body: strings.NewReader(purchasesCSV)},
			nil,
		)
		assert.ErrorIs(t, err, ingest.ErrInvalidValue)
	})
}
