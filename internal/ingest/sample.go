package ingest

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"strconv"
	"time"

	"github.com/brianvoe/gofakeit/v7"

	"github.com/andresuchdata/vendor-analytics/internal/domain"
)

// SampleOptions shapes a synthetic dataset.
type SampleOptions struct {
	Vendors        int
	ItemsPerVendor int
	Days           int
	Start          time.Time
	Seed           uint64
}

// DefaultSampleOptions returns a 20 vendor, 90 day dataset.
func DefaultSampleOptions() SampleOptions {
	return SampleOptions{
		Vendors:        20,
		ItemsPerVendor: 3,
		Days:           90,
		Start:          time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Seed:           42,
	}
}

// GenerateSample builds a reproducible synthetic dataset. Most items sell at
// a markup; a few sell at a loss or barely move so every alert type has
// something to fire on.
func GenerateSample(opts SampleOptions) *Dataset {
	faker := gofakeit.New(opts.Seed)
	ds := &Dataset{}

	for v := 0; v < opts.Vendors; v++ {
		vendor := fmt.Sprintf("%s #%d", faker.Company(), v+1)
		for i := 0; i < opts.ItemsPerVendor; i++ {
			item := faker.ProductName()
			unitCost := faker.Price(2, 80)
			markup := faker.Float64Range(0.05, 0.9)
			if faker.IntRange(1, 10) == 1 {
				markup = faker.Float64Range(-0.3, 0.05)
			}
			price := round2(unitCost * (1 + markup))
			maxDaily := faker.IntRange(1, 25)
			if faker.IntRange(1, 8) == 1 {
				maxDaily = 1
			}

			var sold int
			for d := 0; d < opts.Days; d++ {
				qty := faker.IntRange(0, maxDaily)
				if qty == 0 {
					continue
				}
				sold += qty
				date := opts.Start.AddDate(0, 0, d)
				ds.Sales = append(ds.Sales, domain.SalesRecord{
					Vendor:      vendor,
					Description: item,
					Quantity:    float64(qty),
					Dollars:     round2(float64(qty) * price),
					Date:        &date,
				})
			}

			// replenish in weekly batches that roughly cover demand
			batches := max(1, opts.Days/7)
			perBatch := max(1, int(math.Ceil(float64(sold)*faker.Float64Range(0.8, 1.6)/float64(batches))))
			for b := 0; b < batches; b++ {
				date := opts.Start.AddDate(0, 0, b*7)
				ds.Purchases = append(ds.Purchases, domain.PurchaseRecord{
					Vendor:      vendor,
					Description: item,
					Quantity:    float64(perBatch),
					Dollars:     round2(float64(perBatch) * unitCost),
					Date:        &date,
				})
			}
		}
	}
	return ds
}

// WriteCSV writes the dataset as two CSV files readable by Reader.
func (ds *Dataset) WriteCSV(salesPath, purchasesPath string) error {
	sales := make([][]string, 0, len(ds.Sales)+1)
	sales = append(sales, []string{"VendorName", "Description", "SalesQuantity", "SalesDollars", "SalesDate"})
	for _, r := range ds.Sales {
		sales = append(sales, []string{r.Vendor, r.Description, formatFloat(r.Quantity), formatFloat(r.Dollars), formatDate(r.Date)})
	}
	if err := writeCSVFile(salesPath, sales); err != nil {
		return err
	}

	purchases := make([][]string, 0, len(ds.Purchases)+1)
	purchases = append(purchases, []string{"VendorName", "Description", "Quantity", "Dollars", "ReceivingDate"})
	for _, r := range ds.Purchases {
		purchases = append(purchases, []string{r.Vendor, r.Description, formatFloat(r.Quantity), formatFloat(r.Dollars), formatDate(r.Date)})
	}
	return writeCSVFile(purchasesPath, purchases)
}

func writeCSVFile(path string, rows [][]string) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create csv file %s: %w", path, err)
	}
	defer out.Close()

	w := csv.NewWriter(out)
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to write csv file %s: %w", path, err)
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
