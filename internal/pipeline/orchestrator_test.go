package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresuchdata/vendor-analytics/internal/analytics"
	"github.com/andresuchdata/vendor-analytics/internal/domain"
)

type fakeLoader struct {
	in  Input
	err error
}

func (f fakeLoader) LoadSales(context.Context, string) ([]domain.SalesRecord, error) {
	return f.in.Sales, f.err
}

func (f fakeLoader) LoadPurchases(context.Context, string) ([]domain.PurchaseRecord, error) {
	return f.in.Purchases, nil
}

func TestOrchestrator_RunFiles(t *testing.T) {
	r, err := NewRunner(DefaultConfig())
	require.NoError(t, err)

	o := NewOrchestrator(fakeLoader{in: sampleInput(3)}, r)
	out, report, err := o.RunFiles(context.Background(), Files{Sales: "/data/sales.csv", Purchases: "/data/purchases.xlsx"})
	require.NoError(t, err)
	assert.Equal(t, "sales.csv+purchases.xlsx", out.Run.Source)
	assert.Equal(t, StatusCompleted, report.Status)
}

func TestOrchestrator_LoadError(t *testing.T) {
	r, err := NewRunner(DefaultConfig())
	require.NoError(t, err)

	o := NewOrchestrator(fakeLoader{err: errors.New("no such file")}, r)
	_, _, err = o.RunFiles(context.Background(), Files{Sales: "sales.csv", Purchases: "purchases.csv"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load sales")
}

type stockLoader struct {
	fakeLoader
	levels analytics.StockLevels
}

func (s stockLoader) LoadStockLevels(context.Context, string) (analytics.StockLevels, error) {
	return s.levels, nil
}

func TestOrchestrator_StockLevels(t *testing.T) {
	r, err := NewRunner(DefaultConfig())
	require.NoError(t, err)

	in := sampleInput(3)
	key := domain.ItemKey{Vendor: in.Sales[0].Vendor, Description: in.Sales[0].Description}
	loader := stockLoader{fakeLoader: fakeLoader{in: in}, levels: analytics.StockLevels{key: 12345}}

	out, _, err := NewOrchestrator(loader, r).RunFiles(context.Background(), Files{Sales: "s.csv", Purchases: "p.csv", Stock: "stock.csv"})
	require.NoError(t, err)

	var found bool
	for _, rec := range out.Inventory {
		if rec.Key() == key {
			found = true
			assert.Equal(t, 12345.0, rec.CurrentStock)
		}
	}
	assert.True(t, found)

	_, _, err = NewOrchestrator(fakeLoader{in: in}, r).RunFiles(context.Background(), Files{Sales: "s.csv", Purchases: "p.csv", Stock: "stock.csv"})
	assert.Error(t, err)
}
