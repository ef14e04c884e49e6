package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/andresuchdata/vendor-analytics/internal/ingest"
)

func runGenerate(c *cli.Context) error {
	opts := ingest.DefaultSampleOptions()
	opts.Vendors = c.Int("vendors")
	opts.ItemsPerVendor = c.Int("items")
	opts.Days = c.Int("days")
	opts.Seed = c.Uint64("seed")

	dir := c.String("out-dir")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	salesPath := filepath.Join(dir, "sales.csv")
	purchasesPath := filepath.Join(dir, "purchases.csv")
	ds := ingest.GenerateSample(opts)
	if err := ds.WriteCSV(salesPath, purchasesPath); err != nil {
		return err
	}

	fmt.Printf("wrote %d sales rows to %s and %d purchase rows to %s\n",
		len(ds.Sales), salesPath, len(ds.Purchases), purchasesPath)
	return nil
}
