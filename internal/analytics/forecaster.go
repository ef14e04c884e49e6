package analytics

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/andresuchdata/vendor-analytics/internal/domain"
)

// ForecastConfig tunes the moving-average forecaster.
type ForecastConfig struct {
	HorizonDays int // default horizon used by ForecastAll
	Window      int // trailing buckets averaged
	MinBuckets  int // fewer buckets yield ErrInsufficientData
}

// DefaultForecastConfig returns a 30 day horizon over a 7 day window.
func DefaultForecastConfig() ForecastConfig {
	return ForecastConfig{HorizonDays: 30, Window: 7, MinBuckets: 3}
}

const (
	highConfidenceBuckets   = 30
	mediumConfidenceBuckets = 10
)

// ConfidenceForBuckets maps the number of history buckets onto a confidence level.
func ConfidenceForBuckets(n int) domain.Confidence {
	switch {
	case n >= highConfidenceBuckets:
		return domain.ConfidenceHigh
	case n >= mediumConfidenceBuckets:
		return domain.ConfidenceMedium
	default:
		return domain.ConfidenceLow
	}
}

// Forecaster projects a smoothed daily average forward. There is no seasonality.
type Forecaster struct {
	cfg ForecastConfig
}

func NewForecaster(cfg ForecastConfig) *Forecaster {
	def := DefaultForecastConfig()
	if cfg.HorizonDays <= 0 {
		cfg.HorizonDays = def.HorizonDays
	}
	if cfg.Window <= 0 {
		cfg.Window = def.Window
	}
	if cfg.MinBuckets <= 0 {
		cfg.MinBuckets = def.MinBuckets
	}
	return &Forecaster{cfg: cfg}
}

type dayBucket struct {
	qty     float64
	dollars float64
}

// Forecast projects demand for a vendor, optionally restricted to one item
// when description is not empty. Records without a date are ignored. Days
// without sales between the first and last sale count as zero demand.
//
// When history is shorter than MinBuckets the returned forecast has
// Sufficient=false and the error wraps ErrInsufficientData.
func (f *Forecaster) Forecast(sales []domain.SalesRecord, vendor, description string, horizonDays int) (domain.DemandForecast, error) {
	if horizonDays <= 0 {
		horizonDays = f.cfg.HorizonDays
	}
	result := f.emptyForecast(vendor, description, horizonDays)

	var matched []domain.SalesRecord
	for _, r := range sales {
		if r.Date == nil || strings.TrimSpace(r.Vendor) != vendor {
			continue
		}
		if description != "" && strings.TrimSpace(r.Description) != description {
			continue
		}
		matched = append(matched, r)
	}
	return f.project(matched, result)
}

// project computes the forecast from records already narrowed to one item
// or vendor. Every record must carry a date.
func (f *Forecaster) project(records []domain.SalesRecord, result domain.DemandForecast) (domain.DemandForecast, error) {
	vendor, description := result.Vendor, result.Description

	buckets := make(map[time.Time]*dayBucket)
	var first, last time.Time
	for _, r := range records {
		day := truncateDay(*r.Date)
		b, ok := buckets[day]
		if !ok {
			b = &dayBucket{}
			buckets[day] = b
		}
		b.qty += r.Quantity
		b.dollars += r.Dollars

		if first.IsZero() || day.Before(first) {
			first = day
		}
		if last.IsZero() || day.After(last) {
			last = day
		}
	}

	if len(buckets) == 0 {
		return result, fmt.Errorf("forecast %s/%s: no dated sales: %w", vendor, description, ErrInsufficientData)
	}

	series := make([]dayBucket, 0, len(buckets))
	for day := first; !day.After(last); day = day.AddDate(0, 0, 1) {
		if b, ok := buckets[day]; ok {
			series = append(series, *b)
		} else {
			series = append(series, dayBucket{})
		}
	}

	result.Buckets = len(series)
	if len(series) < f.cfg.MinBuckets {
		return result, fmt.Errorf("forecast %s/%s: %d buckets, need %d: %w",
			vendor, description, len(series), f.cfg.MinBuckets, ErrInsufficientData)
	}

	window := f.cfg.Window
	if window > len(series) {
		window = len(series)
	}
	var qty, dollars float64
	for _, b := range series[len(series)-window:] {
		qty += b.qty
		dollars += b.dollars
	}
	avgQty := qty / float64(window)
	avgDollars := dollars / float64(window)

	result.ForecastQuantity = avgQty * float64(result.HorizonDays)
	result.ForecastDollars = avgDollars * float64(result.HorizonDays)
	result.Confidence = ConfidenceForBuckets(len(series))
	result.Sufficient = true
	return result, nil
}

// ForecastAll forecasts every summary pair over the configured horizon.
// Pairs without enough history are returned with Sufficient=false. The second
// return value counts them. Sales are grouped by item once, so the cost is
// linear in the number of sales records.
func (f *Forecaster) ForecastAll(sales []domain.SalesRecord, rows []domain.VendorSummary) ([]domain.DemandForecast, int) {
	byItem, _ := groupDatedSales(sales)

	out := make([]domain.DemandForecast, 0, len(rows))
	insufficient := 0
	for _, r := range rows {
		fc, err := f.project(byItem[r.Key()], f.emptyForecast(r.Vendor, r.Description, f.cfg.HorizonDays))
		if errors.Is(err, ErrInsufficientData) {
			insufficient++
		}
		out = append(out, fc)
	}
	return out, insufficient
}

// ForecastItems forecasts every item that has at least one sale, in order of
// first appearance. Items without dated sales come back with Sufficient=false.
func (f *Forecaster) ForecastItems(sales []domain.SalesRecord, horizonDays int) []domain.DemandForecast {
	if horizonDays <= 0 {
		horizonDays = f.cfg.HorizonDays
	}
	byItem, order := groupDatedSales(sales)

	out := make([]domain.DemandForecast, 0, len(order))
	for _, key := range order {
		fc, _ := f.project(byItem[key], f.emptyForecast(key.Vendor, key.Description, horizonDays))
		out = append(out, fc)
	}
	return out
}

func (f *Forecaster) emptyForecast(vendor, description string, horizonDays int) domain.DemandForecast {
	return domain.DemandForecast{
		Vendor:      vendor,
		Description: description,
		HorizonDays: horizonDays,
		Confidence:  domain.ConfidenceNone,
	}
}

// groupDatedSales buckets dated sales by trimmed item key. order lists every
// key seen, dated or not, by first appearance.
func groupDatedSales(sales []domain.SalesRecord) (map[domain.ItemKey][]domain.SalesRecord, []domain.ItemKey) {
	byItem := make(map[domain.ItemKey][]domain.SalesRecord)
	seen := make(map[domain.ItemKey]bool)
	var order []domain.ItemKey
	for _, r := range sales {
		key := domain.ItemKey{Vendor: strings.TrimSpace(r.Vendor), Description: strings.TrimSpace(r.Description)}
		if !seen[key] {
			seen[key] = true
			order = append(order, key)
		}
		if r.Date != nil {
			byItem[key] = append(byItem[key], r)
		}
	}
	return byItem, order
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
