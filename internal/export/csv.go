// Package export writes the tables of a pipeline run to CSV files and
// optionally publishes them to object storage.
package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/vendor-analytics/internal/domain"
	"github.com/andresuchdata/vendor-analytics/internal/pipeline"
	"github.com/andresuchdata/vendor-analytics/internal/storage"
)

// Table is one exported dataset.
type Table struct {
	Name   string
	Header []string
	Rows   [][]string
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}

// Tables renders every stage output present in out. Stages that produced
// nothing are left out; alerts are included only when they were evaluated.
func Tables(out *pipeline.Output) []Table {
	var tables []Table

	if out.Summaries != nil {
		t := Table{Name: "vendor_sales_summary", Header: []string{
			"VendorName", "Description", "TotalSalesQuantity", "TotalSalesDollars",
			"TotalPurchaseQuantity", "TotalPurchaseDollars", "PurchaseCount",
			"GrossProfit", "ProfitMargin", "StockTurnover", "SalesToPurchaseRatio",
		}}
		for _, s := range out.Summaries {
			t.Rows = append(t.Rows, []string{
				s.Vendor, s.Description, formatFloat(s.TotalSalesQuantity), formatFloat(s.TotalSalesDollars),
				formatFloat(s.TotalPurchaseQuantity), formatFloat(s.TotalPurchaseDollars), strconv.Itoa(s.PurchaseCount),
				formatFloat(s.GrossProfit), formatFloat(s.ProfitMargin), formatFloat(s.StockTurnover), formatFloat(s.SalesToPurchaseRatio),
			})
		}
		tables = append(tables, t)
	}

	if out.Scores != nil {
		t := Table{Name: "vendor_performance_scores", Header: []string{
			"VendorName", "Description", "MarginScore", "TurnoverScore", "SalesScore", "EfficiencyScore", "Score", "Tier",
		}}
		for _, s := range out.Scores {
			t.Rows = append(t.Rows, []string{
				s.Vendor, s.Description, formatFloat(s.MarginScore), formatFloat(s.TurnoverScore),
				formatFloat(s.SalesScore), formatFloat(s.EfficiencyScore), formatFloat(s.Score), string(s.Tier),
			})
		}
		tables = append(tables, t)
	}

	if out.Forecasts != nil {
		t := Table{Name: "demand_forecasts", Header: []string{
			"VendorName", "Description", "HorizonDays", "ForecastQuantity", "ForecastDollars", "Confidence", "Buckets", "Sufficient",
		}}
		for _, f := range out.Forecasts {
			t.Rows = append(t.Rows, []string{
				f.Vendor, f.Description, strconv.Itoa(f.HorizonDays), formatFloat(f.ForecastQuantity),
				formatFloat(f.ForecastDollars), string(f.Confidence), strconv.Itoa(f.Buckets), strconv.FormatBool(f.Sufficient),
			})
		}
		tables = append(tables, t)
	}

	if out.Anomalies != nil {
		t := Table{Name: "vendor_anomalies", Header: []string{"VendorName", "Description", "AnomalyScore", "IsAnomalous"}}
		for _, a := range out.Anomalies {
			t.Rows = append(t.Rows, []string{a.Vendor, a.Description, formatFloat(a.AnomalyScore), strconv.FormatBool(a.IsAnomalous)})
		}
		tables = append(tables, t)
	}

	if out.Inventory != nil {
		t := Table{Name: "inventory_recommendations", Header: []string{
			"VendorName", "Description", "CurrentStock", "StockTurnover", "DemandRate", "SafetyStock",
			"ReorderPoint", "OptimalOrderQuantity", "IsOverstocked", "IsUnderstocked",
		}}
		for _, r := range out.Inventory {
			t.Rows = append(t.Rows, []string{
				r.Vendor, r.Description, formatFloat(r.CurrentStock), formatFloat(r.StockTurnover), formatFloat(r.DemandRate),
				formatFloat(r.SafetyStock), formatFloat(r.ReorderPoint), formatFloat(r.OptimalOrderQuantity),
				strconv.FormatBool(r.IsOverstocked), strconv.FormatBool(r.IsUnderstocked),
			})
		}
		tables = append(tables, t)
	}

	if out.Prices != nil {
		t := Table{Name: "price_recommendations", Header: []string{
			"VendorName", "Description", "CurrentMargin", "CurrentTurnover", "Action", "Magnitude", "Rationale",
		}}
		for _, p := range out.Prices {
			t.Rows = append(t.Rows, []string{
				p.Vendor, p.Description, formatFloat(p.CurrentMargin), formatFloat(p.CurrentTurnover),
				string(p.Action), formatFloat(p.Magnitude), p.Rationale,
			})
		}
		tables = append(tables, t)
	}

	if out.AlertsEvaluated {
		tables = append(tables, alertTable(out.Evaluation.Alerts))
	}

	return tables
}

func alertTable(alerts []domain.Alert) Table {
	t := Table{Name: "active_alerts", Header: []string{
		"ID", "Type", "Priority", "VendorName", "Description", "MetricValue", "Threshold",
		"Message", "Recommendation", "Timestamp",
	}}
	for _, a := range alerts {
		t.Rows = append(t.Rows, []string{
			a.ID, a.Type.Label(), string(a.Priority), a.Vendor, a.Description,
			formatFloat(a.MetricValue), formatFloat(a.Threshold), a.Message, a.Recommendation,
			a.Timestamp.UTC().Format(time.RFC3339),
		})
	}
	return t
}

// WriteCSV writes t with its header row.
func WriteCSV(w io.Writer, t Table) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(t.Header); err != nil {
		return err
	}
	if err := writer.WriteAll(t.Rows); err != nil {
		return fmt.Errorf("write %s: %w", t.Name, err)
	}
	return nil
}

// WriteDir writes each table to dir/<name>.csv and returns the file paths.
func WriteDir(dir string, tables []Table) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create export dir: %w", err)
	}

	paths := make([]string, 0, len(tables))
	for _, t := range tables {
		p := filepath.Join(dir, t.Name+".csv")
		f, err := os.Create(p)
		if err != nil {
			return paths, fmt.Errorf("create %s: %w", p, err)
		}
		if err := WriteCSV(f, t); err != nil {
			f.Close()
			return paths, err
		}
		if err := f.Close(); err != nil {
			return paths, err
		}
		paths = append(paths, p)
	}

	log.Info().Str("dir", dir).Int("tables", len(paths)).Msg("tables exported")
	return paths, nil
}

// Upload publishes each table under prefix/runID/<name>.csv and returns the object keys.
func Upload(ctx context.Context, store storage.ObjectStorage, prefix, runID string, tables []Table) ([]string, error) {
	keys := make([]string, 0, len(tables))
	for _, t := range tables {
		var buf bytes.Buffer
		if err := WriteCSV(&buf, t); err != nil {
			return keys, err
		}

		key := path.Join(prefix, runID, t.Name+".csv")
		if err := store.UploadObject(ctx, key, buf.Bytes(), "text/csv"); err != nil {
			return keys, err
		}
		keys = append(keys, key)
	}

	log.Info().Str("run_id", runID).Int("objects", len(keys)).Msg("tables uploaded")
	return keys, nil
}
