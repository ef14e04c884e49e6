package analytics

import (
	"math"

	"github.com/andresuchdata/vendor-analytics/internal/domain"
)

const daysPerYear = 365.0

// InventoryConfig tunes the reorder arithmetic.
type InventoryConfig struct {
	LeadTimeDays          float64
	SafetyStockMultiplier float64
	TargetSupplyDays      float64
	OverstockTurnover     float64
	UnderstockTurnover    float64
}

// DefaultInventoryConfig returns a 7 day lead time, 1.5x safety stock and a 30 day target.
func DefaultInventoryConfig() InventoryConfig {
	return InventoryConfig{
		LeadTimeDays:          7,
		SafetyStockMultiplier: 1.5,
		TargetSupplyDays:      30,
		OverstockTurnover:     0.5,
		UnderstockTurnover:    2.0,
	}
}

// StockLevels maps an item to its on-hand quantity.
type StockLevels map[domain.ItemKey]float64

// InventoryOptimizer computes reorder guidance per item.
type InventoryOptimizer struct {
	cfg InventoryConfig
}

func NewInventoryOptimizer(cfg InventoryConfig) *InventoryOptimizer {
	return &InventoryOptimizer{cfg: cfg}
}

// Recommend returns one recommendation per summary row. Stock is taken from
// levels when present, else estimated as purchased minus sold quantity.
func (o *InventoryOptimizer) Recommend(rows []domain.VendorSummary, levels StockLevels) []domain.InventoryRecommendation {
	out := make([]domain.InventoryRecommendation, 0, len(rows))
	for _, r := range rows {
		stock, ok := levels[r.Key()]
		if !ok {
			stock = math.Max(0, r.TotalPurchaseQuantity-r.TotalSalesQuantity)
		}
		out = append(out, o.Calculate(r, stock))
	}
	return out
}

// Calculate computes the metrics of a single item given its current stock.
func (o *InventoryOptimizer) Calculate(r domain.VendorSummary, currentStock float64) domain.InventoryRecommendation {
	rec := domain.InventoryRecommendation{
		Vendor:        r.Vendor,
		Description:   r.Description,
		CurrentStock:  currentStock,
		StockTurnover: r.StockTurnover,
	}

	// 1. Demand rate = yearly sales / 365
	demandRate := math.Max(0, r.TotalSalesQuantity/daysPerYear)
	rec.DemandRate = demandRate

	// 2. Safety stock = demand rate × lead time × multiplier
	rec.SafetyStock = demandRate * o.cfg.LeadTimeDays * o.cfg.SafetyStockMultiplier

	// 3. Reorder point = (demand rate × lead time) + safety stock
	rec.ReorderPoint = demandRate*o.cfg.LeadTimeDays + rec.SafetyStock

	// 4. Quantity for the target supply window
	rec.OptimalOrderQuantity = demandRate * o.cfg.TargetSupplyDays

	// 5. Flags
	rec.IsOverstocked = r.StockTurnover < o.cfg.OverstockTurnover && currentStock > rec.OptimalOrderQuantity
	rec.IsUnderstocked = demandRate > 0 &&
		r.StockTurnover > o.cfg.UnderstockTurnover &&
		currentStock < rec.ReorderPoint

	return rec
}
