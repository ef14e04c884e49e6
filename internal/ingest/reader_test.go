package ingest

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/andresuchdata/vendor-analytics/internal/domain"
)

func TestParseSales_FlexibleHeaders(t *testing.T) {
	src := "Vendor Name,Description,Sales_Quantity,Sales Dollars,Sales-Date\n" +
		"VendorA, Widget ,100,\"1,000.50\",2024-01-05\n" +
		",,,,\n" +
		"VendorB,Gadget,3,$30,\n"

	records, err := ParseSales(strings.NewReader(src), FormatCSV)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "VendorA", records[0].Vendor)
	assert.Equal(t, "Widget", records[0].Description)
	assert.Equal(t, 100.0, records[0].Quantity)
	assert.Equal(t, 1000.50, records[0].Dollars)
	require.NotNil(t, records[0].Date)
	assert.Equal(t, time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC), *records[0].Date)

	assert.Equal(t, 30.0, records[1].Dollars)
	assert.Nil(t, records[1].Date)
}

func TestParsePurchases_Aliases(t *testing.T) {
	src := "VendorName,Description,Quantity,Dollars,ReceivingDate\nVendorA,Widget,80,800,01/15/2024\n"

	records, err := ParsePurchases(strings.NewReader(src), FormatCSV)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, domain.PurchaseRecord{
		Vendor: "VendorA", Description: "Widget", Quantity: 80, Dollars: 800,
		Date: ptrTime(time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)),
	}, records[0])
}

func TestParseSales_Errors(t *testing.T) {
	_, err := ParseSales(strings.NewReader("VendorName,Quantity,Dollars\nA,1,2\n"), FormatCSV)
	assert.ErrorIs(t, err, ErrMissingColumn)

	_, err = ParseSales(strings.NewReader("VendorName,Description,Quantity,Dollars\nA,B,lots,2\n"), FormatCSV)
	require.ErrorIs(t, err, ErrInvalidValue)
	assert.Contains(t, err.Error(), "line 2")

	_, err = ParseSales(strings.NewReader(""), FormatCSV)
	assert.ErrorIs(t, err, ErrMissingColumn)

	for _, v := range []string{"NaN", "inf", "-Inf", "+Infinity"} {
		_, err = ParseSales(strings.NewReader("VendorName,Description,Quantity,Dollars\nA,B,10,"+v+"\n"), FormatCSV)
		assert.ErrorIs(t, err, ErrInvalidValue, v)
	}
	_, err = ParsePurchases(strings.NewReader("VendorName,Description,Quantity,Dollars\nA,B,inf,8\n"), FormatCSV)
	assert.ErrorIs(t, err, ErrInvalidValue)

	_, err = FormatFromName("sales.json")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestParseSales_XLSX(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]any{"VendorName", "Description", "SalesQuantity", "SalesDollars", "SalesDate"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]any{"VendorA", "Widget", 4, 40.5, "2024-02-01"}))

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))

	records, err := ParseSales(&buf, FormatXLSX)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 4.0, records[0].Quantity)
	assert.Equal(t, 40.5, records[0].Dollars)
	require.NotNil(t, records[0].Date)
}

func TestReader_LoadBothAndStockLevels(t *testing.T) {
	dir := t.TempDir()
	salesPath := filepath.Join(dir, "sales.csv")
	purchasesPath := filepath.Join(dir, "purchases.csv")
	stockPath := filepath.Join(dir, "stock.csv")

	require.NoError(t, os.WriteFile(salesPath, []byte("VendorName,Description,SalesQuantity,SalesDollars\nA,x,1,10\n"), 0o644))
	require.NoError(t, os.WriteFile(purchasesPath, []byte("VendorName,Description,Quantity,Dollars\nA,x,2,8\nA,x,1,4\n"), 0o644))
	require.NoError(t, os.WriteFile(stockPath, []byte("VendorName,Description,OnHand\nA,x,12\nA,x,3\n"), 0o644))

	r := NewReader()
	ds, err := r.Load(context.Background(), salesPath, purchasesPath)
	require.NoError(t, err)
	assert.Len(t, ds.Sales, 1)
	assert.Len(t, ds.Purchases, 2)

	levels, err := r.LoadStockLevels(context.Background(), stockPath)
	require.NoError(t, err)
	assert.Equal(t, 15.0, levels[domain.ItemKey{Vendor: "A", Description: "x"}])

	_, err = r.Load(context.Background(), filepath.Join(dir, "missing.csv"), purchasesPath)
	assert.Error(t, err)
}

func TestGenerateSample_RoundTrip(t *testing.T) {
	opts := DefaultSampleOptions()
	opts.Vendors = 4
	opts.Days = 21

	ds := GenerateSample(opts)
	require.NotEmpty(t, ds.Sales)
	require.NotEmpty(t, ds.Purchases)
	assert.Equal(t, ds, GenerateSample(opts), "same seed gives same data")

	dir := t.TempDir()
	salesPath := filepath.Join(dir, "sales.csv")
	purchasesPath := filepath.Join(dir, "purchases.csv")
	require.NoError(t, ds.WriteCSV(salesPath, purchasesPath))

	loaded, err := NewReader().Load(context.Background(), salesPath, purchasesPath)
	require.NoError(t, err)
	assert.Len(t, loaded.Sales, len(ds.Sales))
	assert.Len(t, loaded.Purchases, len(ds.Purchases))
	assert.Equal(t, ds.Sales[0].Vendor, loaded.Sales[0].Vendor)
}

func ptrTime(t time.Time) *time.Time { return &t }
