package ingest

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/xuri/excelize/v2"
	"golang.org/x/sync/errgroup"

	"github.com/andresuchdata/vendor-analytics/internal/analytics"
	"github.com/andresuchdata/vendor-analytics/internal/domain"
)

var (
	ErrMissingColumn     = errors.New("missing required column")
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrInvalidValue      = errors.New("invalid value")
)

// Format of an input table.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// FormatFromName picks the format from a file extension.
func FormatFromName(name string) (Format, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv":
		return FormatCSV, nil
	case ".xlsx", ".xlsm":
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("%s: %w", name, ErrUnsupportedFormat)
	}
}

// Dataset holds both inputs of a run.
type Dataset struct {
	Sales     []domain.SalesRecord
	Purchases []domain.PurchaseRecord
}

// Reader loads sales and purchase records from CSV or XLSX files.
type Reader struct{}

func NewReader() *Reader {
	return &Reader{}
}

// Load reads both files concurrently.
func (r *Reader) Load(ctx context.Context, salesPath, purchasesPath string) (*Dataset, error) {
	ds := &Dataset{}
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		sales, err := r.LoadSales(ctx, salesPath)
		if err != nil {
			return err
		}
		ds.Sales = sales
		return nil
	})
	g.Go(func() error {
		purchases, err := r.LoadPurchases(ctx, purchasesPath)
		if err != nil {
			return err
		}
		ds.Purchases = purchases
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return ds, nil
}

// LoadSales reads sales records from a file.
func (r *Reader) LoadSales(ctx context.Context, path string) ([]domain.SalesRecord, error) {
	rows, err := readFile(ctx, path)
	if err != nil {
		return nil, err
	}
	records, err := salesFromRows(rows)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	log.Debug().Str("path", path).Int("rows", len(records)).Msg("sales loaded")
	return records, nil
}

// LoadPurchases reads purchase records from a file.
func (r *Reader) LoadPurchases(ctx context.Context, path string) ([]domain.PurchaseRecord, error) {
	rows, err := readFile(ctx, path)
	if err != nil {
		return nil, err
	}
	records, err := purchasesFromRows(rows)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	log.Debug().Str("path", path).Int("rows", len(records)).Msg("purchases loaded")
	return records, nil
}

// LoadStockLevels reads an optional on-hand stock table keyed by vendor and description.
func (r *Reader) LoadStockLevels(ctx context.Context, path string) (analytics.StockLevels, error) {
	rows, err := readFile(ctx, path)
	if err != nil {
		return nil, err
	}
	levels, err := stockFromRows(rows)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return levels, nil
}

// ParseSales reads sales records from a stream, as with an uploaded file.
func ParseSales(src io.Reader, format Format) ([]domain.SalesRecord, error) {
	rows, err := readTable(src, format)
	if err != nil {
		return nil, err
	}
	return salesFromRows(rows)
}

// ParsePurchases reads purchase records from a stream.
func ParsePurchases(src io.Reader, format Format) ([]domain.PurchaseRecord, error) {
	rows, err := readTable(src, format)
	if err != nil {
		return nil, err
	}
	return purchasesFromRows(rows)
}

func readFile(ctx context.Context, path string) ([][]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	format, err := FormatFromName(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	rows, err := readTable(f, format)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return rows, nil
}

func readTable(src io.Reader, format Format) ([][]string, error) {
	switch format {
	case FormatCSV:
		reader := csv.NewReader(src)
		reader.TrimLeadingSpace = true
		reader.FieldsPerRecord = -1
		return reader.ReadAll()
	case FormatXLSX:
		return readXLSX(src)
	default:
		return nil, fmt.Errorf("%q: %w", format, ErrUnsupportedFormat)
	}
}

// readXLSX returns the rows of the first sheet.
func readXLSX(src io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(src)
	if err != nil {
		return nil, fmt.Errorf("failed to open xlsx: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("xlsx file has no sheets")
	}
	sheet := sheets[0]

	rows, err := f.Rows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read rows from sheet %s: %w", sheet, err)
	}
	defer rows.Close()

	var out [][]string
	for rows.Next() {
		record, err := rows.Columns()
		if err != nil {
			return nil, fmt.Errorf("failed to read row: %w", err)
		}
		out = append(out, record)
	}
	if err := rows.Error(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return out, nil
}

// table walks data rows with access by column position.
type table struct {
	header header
	rows   [][]string
}

func newTable(rows [][]string) (*table, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("header row: %w", ErrMissingColumn)
	}
	return &table{header: header(rows[0]), rows: rows[1:]}, nil
}

func (t *table) require(field string, names ...string) (int, error) {
	idx := t.header.index(names...)
	if idx < 0 {
		return -1, fmt.Errorf("%s (accepted: %s): %w", field, strings.Join(names, ", "), ErrMissingColumn)
	}
	return idx, nil
}

func cell(record []string, idx int) string {
	if idx < 0 || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}

func blank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func parseFloat(v string) (float64, error) {
	if v == "" {
		return 0, nil
	}
	v = strings.ReplaceAll(v, ",", "")
	v = strings.TrimPrefix(v, "$")
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%q: %w", v, ErrInvalidValue)
	}
	return f, nil
}

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"01/02/2006",
	"1/2/2006",
	"01-02-06",
}

func parseDate(v string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	// spreadsheet serial dates
	if serial, err := strconv.ParseFloat(v, 64); err == nil && serial > 0 {
		t, err := excelize.ExcelDateToTime(serial, false)
		if err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, fmt.Errorf("date %q: %w", v, ErrInvalidValue)
}

type lineFields struct {
	vendor, description string
	quantity, dollars   float64
	date                *time.Time
}

func parseLines(rows [][]string, qtyCols, dollarCols, dateCols []string) ([]lineFields, error) {
	t, err := newTable(rows)
	if err != nil {
		return nil, err
	}
	idxVendor, err := t.require("vendor", vendorColumns...)
	if err != nil {
		return nil, err
	}
	idxDescription, err := t.require("description", descriptionColumns...)
	if err != nil {
		return nil, err
	}
	idxQty, err := t.require("quantity", qtyCols...)
	if err != nil {
		return nil, err
	}
	idxDollars, err := t.require("dollars", dollarCols...)
	if err != nil {
		return nil, err
	}
	idxDate := t.header.index(dateCols...)

	out := make([]lineFields, 0, len(t.rows))
	for i, record := range t.rows {
		if blank(record) {
			continue
		}
		line := i + 2
		qty, err := parseFloat(cell(record, idxQty))
		if err != nil {
			return nil, fmt.Errorf("line %d quantity: %w", line, err)
		}
		dollars, err := parseFloat(cell(record, idxDollars))
		if err != nil {
			return nil, fmt.Errorf("line %d dollars: %w", line, err)
		}
		date, err := parseDate(cell(record, idxDate))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, lineFields{
			vendor:      cell(record, idxVendor),
			description: cell(record, idxDescription),
			quantity:    qty,
			dollars:     dollars,
			date:        date,
		})
	}
	return out, nil
}

func salesFromRows(rows [][]string) ([]domain.SalesRecord, error) {
	lines, err := parseLines(rows, salesQuantityColumns, salesDollarsColumns, salesDateColumns)
	if err != nil {
		return nil, err
	}
	out := make([]domain.SalesRecord, len(lines))
	for i, l := range lines {
		out[i] = domain.SalesRecord{Vendor: l.vendor, Description: l.description, Quantity: l.quantity, Dollars: l.dollars, Date: l.date}
	}
	return out, nil
}

func purchasesFromRows(rows [][]string) ([]domain.PurchaseRecord, error) {
	lines, err := parseLines(rows, purchaseQuantityColumns, purchaseDollarsColumns, purchaseDateColumns)
	if err != nil {
		return nil, err
	}
	out := make([]domain.PurchaseRecord, len(lines))
	for i, l := range lines {
		out[i] = domain.PurchaseRecord{Vendor: l.vendor, Description: l.description, Quantity: l.quantity, Dollars: l.dollars, Date: l.date}
	}
	return out, nil
}

func stockFromRows(rows [][]string) (analytics.StockLevels, error) {
	t, err := newTable(rows)
	if err != nil {
		return nil, err
	}
	idxVendor, err := t.require("vendor", vendorColumns...)
	if err != nil {
		return nil, err
	}
	idxDescription, err := t.require("description", descriptionColumns...)
	if err != nil {
		return nil, err
	}
	idxStock, err := t.require("stock", stockColumns...)
	if err != nil {
		return nil, err
	}

	levels := make(analytics.StockLevels, len(t.rows))
	for i, record := range t.rows {
		if blank(record) {
			continue
		}
		qty, err := parseFloat(cell(record, idxStock))
		if err != nil {
			return nil, fmt.Errorf("line %d stock: %w", i+2, err)
		}
		key := domain.ItemKey{Vendor: cell(record, idxVendor), Description: cell(record, idxDescription)}
		levels[key] += qty
	}
	return levels, nil
}
