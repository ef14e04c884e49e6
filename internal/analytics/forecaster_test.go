package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresuchdata/vendor-analytics/internal/domain"
)

func dailySales(vendor, item string, start time.Time, qty []float64, price float64) []domain.SalesRecord {
	out := make([]domain.SalesRecord, 0, len(qty))
	for i, q := range qty {
		d := start.AddDate(0, 0, i)
		out = append(out, domain.SalesRecord{Vendor: vendor, Description: item, Quantity: q, Dollars: q * price, Date: &d})
	}
	return out
}

func TestForecaster_MovingAverage(t *testing.T) {
	start := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	qty := []float64{100, 100, 100, 1, 2, 3, 4, 5, 6, 7}
	f := NewForecaster(DefaultForecastConfig())

	fc, err := f.Forecast(dailySales("V", "I", start, qty, 2), "V", "I", 10)
	require.NoError(t, err)

	assert.True(t, fc.Sufficient)
	assert.Equal(t, 10, fc.Buckets)
	// last 7 buckets average to 4
	assert.InDelta(t, 40, fc.ForecastQuantity, 1e-9)
	assert.InDelta(t, 80, fc.ForecastDollars, 1e-9)
	assert.Equal(t, domain.ConfidenceMedium, fc.Confidence)
}

func TestForecaster_FillsGapsWithZero(t *testing.T) {
	d1 := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	d2 := d1.AddDate(0, 0, 3)
	sales := []domain.SalesRecord{
		{Vendor: "V", Description: "I", Quantity: 8, Dollars: 8, Date: &d1},
		{Vendor: "V", Description: "I", Quantity: 8, Dollars: 8, Date: &d2},
	}
	f := NewForecaster(ForecastConfig{Window: 7, MinBuckets: 3})

	fc, err := f.Forecast(sales, "V", "", 1)
	require.NoError(t, err)
	assert.Equal(t, 4, fc.Buckets)
	assert.InDelta(t, 4, fc.ForecastQuantity, 1e-9)
	assert.Equal(t, domain.ConfidenceLow, fc.Confidence)
}

func TestForecaster_InsufficientDataIsNotZero(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	f := NewForecaster(DefaultForecastConfig())

	fc, err := f.Forecast(dailySales("V", "I", start, []float64{5, 5}, 1), "V", "I", 30)
	require.ErrorIs(t, err, ErrInsufficientData)
	assert.False(t, fc.Sufficient)
	assert.Equal(t, 2, fc.Buckets)
	assert.Equal(t, domain.ConfidenceNone, fc.Confidence)

	undated := []domain.SalesRecord{{Vendor: "V", Description: "I", Quantity: 5, Dollars: 5}}
	fc, err = f.Forecast(undated, "V", "I", 30)
	require.ErrorIs(t, err, ErrInsufficientData)
	assert.False(t, fc.Sufficient)
	assert.Zero(t, fc.Buckets)
}

func TestForecaster_ZeroDemandIsSufficient(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	f := NewForecaster(DefaultForecastConfig())

	fc, err := f.Forecast(dailySales("V", "I", start, []float64{0, 0, 0, 0}, 1), "V", "I", 30)
	require.NoError(t, err)
	assert.True(t, fc.Sufficient)
	assert.Zero(t, fc.ForecastQuantity)
}

func TestConfidenceForBuckets(t *testing.T) {
	assert.Equal(t, domain.ConfidenceHigh, ConfidenceForBuckets(30))
	assert.Equal(t, domain.ConfidenceMedium, ConfidenceForBuckets(29))
	assert.Equal(t, domain.ConfidenceMedium, ConfidenceForBuckets(10))
	assert.Equal(t, domain.ConfidenceLow, ConfidenceForBuckets(9))
}

func TestForecaster_ForecastAll(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	sales := append(dailySales("A", "x", start, []float64{1, 2, 3, 4}, 1), dailySales("B", "y", start, []float64{1}, 1)...)
	rows := []domain.VendorSummary{{Vendor: "A", Description: "x"}, {Vendor: "B", Description: "y"}}

	out, insufficient := NewForecaster(DefaultForecastConfig()).ForecastAll(sales, rows)
	require.Len(t, out, 2)
	assert.Equal(t, 1, insufficient)
	assert.True(t, out[0].Sufficient)
	assert.Equal(t, 30, out[0].HorizonDays)
	assert.False(t, out[1].Sufficient)
}

func TestForecaster_ForecastAllMatchesPerItemForecast(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var sales []domain.SalesRecord
	sales = append(sales, dailySales("VendorA", "Widget", start, []float64{5, 0, 7, 9, 1, 3, 8, 2}, 3)...)
	sales = append(sales, dailySales(" VendorA ", "Gadget", start.AddDate(0, 0, 2), []float64{1, 2}, 10)...)
	sales = append(sales, dailySales("VendorB", " Widget", start, []float64{4, 4, 4, 4}, 1.5)...)
	sales = append(sales, domain.SalesRecord{Vendor: "VendorB", Description: "Widget", Quantity: 100, Dollars: 100})
	sales = append(sales, domain.SalesRecord{Vendor: "VendorC", Description: "Spare", Quantity: 1, Dollars: 1})

	rows := []domain.VendorSummary{
		{Vendor: "VendorA", Description: "Gadget"},
		{Vendor: "VendorA", Description: "Widget"},
		{Vendor: "VendorB", Description: "Widget"},
		{Vendor: "VendorC", Description: "Spare"},
	}

	f := NewForecaster(DefaultForecastConfig())
	all, insufficient := f.ForecastAll(sales, rows)
	require.Len(t, all, len(rows))

	wantInsufficient := 0
	for i, r := range rows {
		want, err := f.Forecast(sales, r.Vendor, r.Description, DefaultForecastConfig().HorizonDays)
		if err != nil {
			wantInsufficient++
		}
		assert.Equal(t, want, all[i], "%s/%s", r.Vendor, r.Description)
	}
	assert.Equal(t, wantInsufficient, insufficient)
	assert.Equal(t, 2, insufficient)
}

func TestForecaster_ForecastItems(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	sales := append(dailySales("VendorA", "Widget", start, []float64{1, 2, 3}, 1),
		domain.SalesRecord{Vendor: "VendorB", Description: "Gizmo", Quantity: 2, Dollars: 4})

	out := NewForecaster(DefaultForecastConfig()).ForecastItems(sales, 10)
	require.Len(t, out, 2)
	assert.Equal(t, "VendorA", out[0].Vendor)
	assert.True(t, out[0].Sufficient)
	assert.InDelta(t, 20, out[0].ForecastQuantity, 1e-9)
	assert.Equal(t, "VendorB", out[1].Vendor)
	assert.False(t, out[1].Sufficient)
	assert.Equal(t, 10, out[1].HorizonDays)
}
