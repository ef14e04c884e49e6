package pipeline

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/andresuchdata/vendor-analytics/internal/analytics"
	"github.com/andresuchdata/vendor-analytics/internal/domain"
)

// Loader reads the two input datasets from files.
type Loader interface {
	LoadSales(ctx context.Context, path string) ([]domain.SalesRecord, error)
	LoadPurchases(ctx context.Context, path string) ([]domain.PurchaseRecord, error)
}

// StockLoader is implemented by loaders that can also read on-hand stock.
type StockLoader interface {
	LoadStockLevels(ctx context.Context, path string) (analytics.StockLevels, error)
}

// Orchestrator coordinates loading a pair of local files and running them
// through a Runner.
type Orchestrator struct {
	loader Loader
	runner *Runner
}

// NewOrchestrator creates a new Orchestrator.
func NewOrchestrator(loader Loader, runner *Runner) *Orchestrator {
	return &Orchestrator{loader: loader, runner: runner}
}

// Files describes the inputs of a file-based run.
type Files struct {
	Sales     string
	Purchases string
	// Stock is an optional on-hand stock file.
	Stock string
	Skip  []Stage
}

// RunFiles loads both files and executes a run over them.
func (o *Orchestrator) RunFiles(ctx context.Context, files Files) (*Output, *Report, error) {
	sales, err := o.loader.LoadSales(ctx, files.Sales)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load sales from %s: %w", files.Sales, err)
	}

	purchases, err := o.loader.LoadPurchases(ctx, files.Purchases)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load purchases from %s: %w", files.Purchases, err)
	}

	var levels analytics.StockLevels
	if files.Stock != "" {
		stockLoader, ok := o.loader.(StockLoader)
		if !ok {
			return nil, nil, fmt.Errorf("loader cannot read stock levels from %s", files.Stock)
		}
		if levels, err = stockLoader.LoadStockLevels(ctx, files.Stock); err != nil {
			return nil, nil, fmt.Errorf("failed to load stock levels from %s: %w", files.Stock, err)
		}
	}

	return o.runner.Run(ctx, Input{
		Sales:       sales,
		Purchases:   purchases,
		StockLevels: levels,
		Skip:        files.Skip,
		Source:      filepath.Base(files.Sales) + "+" + filepath.Base(files.Purchases),
	})
}
