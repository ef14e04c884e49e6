package analytics

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/andresuchdata/vendor-analytics/internal/domain"
)

type groupTotals struct {
	salesQty      decimal.Decimal
	salesDollars  decimal.Decimal
	purchaseQty   decimal.Decimal
	purchaseCost  decimal.Decimal
	purchaseCount int
}

// Aggregate joins sales and purchases on vendor and description and derives the
// per-pair KPIs. Only pairs with positive sales dollars and positive purchase
// dollars are kept. The result is sorted by vendor, then description.
func Aggregate(sales []domain.SalesRecord, purchases []domain.PurchaseRecord) ([]domain.VendorSummary, error) {
	groups := make(map[domain.ItemKey]*groupTotals)

	get := func(key domain.ItemKey) *groupTotals {
		g, ok := groups[key]
		if !ok {
			g = &groupTotals{}
			groups[key] = g
		}
		return g
	}

	for i, r := range sales {
		key, err := recordKey(r.Vendor, r.Description)
		if err != nil {
			return nil, fmt.Errorf("sales record %d: %w", i, err)
		}
		if err := checkFinite(r.Quantity, r.Dollars); err != nil {
			return nil, fmt.Errorf("sales record %d: %w", i, err)
		}
		g := get(key)
		g.salesQty = g.salesQty.Add(decimal.NewFromFloat(r.Quantity))
		g.salesDollars = g.salesDollars.Add(decimal.NewFromFloat(r.Dollars))
	}

	for i, r := range purchases {
		key, err := recordKey(r.Vendor, r.Description)
		if err != nil {
			return nil, fmt.Errorf("purchase record %d: %w", i, err)
		}
		if err := checkFinite(r.Quantity, r.Dollars); err != nil {
			return nil, fmt.Errorf("purchase record %d: %w", i, err)
		}
		g := get(key)
		g.purchaseQty = g.purchaseQty.Add(decimal.NewFromFloat(r.Quantity))
		g.purchaseCost = g.purchaseCost.Add(decimal.NewFromFloat(r.Dollars))
		g.purchaseCount++
	}

	summaries := make([]domain.VendorSummary, 0, len(groups))
	for key, g := range groups {
		if !g.salesDollars.IsPositive() || !g.purchaseCost.IsPositive() {
			continue
		}
		summaries = append(summaries, summarize(key, g))
	}

	SortSummaries(summaries)
	return summaries, nil
}

func summarize(key domain.ItemKey, g *groupTotals) domain.VendorSummary {
	salesQty := g.salesQty.InexactFloat64()
	salesDollars := g.salesDollars.InexactFloat64()
	purchaseQty := g.purchaseQty.InexactFloat64()
	purchaseDollars := g.purchaseCost.InexactFloat64()

	grossProfit := g.salesDollars.Sub(g.purchaseCost).InexactFloat64()

	var margin float64
	if salesDollars > 0 {
		margin = safeDiv(grossProfit, salesDollars) * 100
	}

	var avgPurchaseQty float64
	if g.purchaseCount > 0 {
		avgPurchaseQty = purchaseQty / float64(g.purchaseCount)
	}

	var turnover float64
	if avgPurchaseQty > 0 {
		turnover = safeDiv(salesQty, avgPurchaseQty)
	}

	var ratio float64
	if purchaseDollars > 0 {
		ratio = safeDiv(salesDollars, purchaseDollars)
	}

	return domain.VendorSummary{
		Vendor:                key.Vendor,
		Description:           key.Description,
		TotalSalesQuantity:    salesQty,
		TotalSalesDollars:     salesDollars,
		TotalPurchaseQuantity: purchaseQty,
		TotalPurchaseDollars:  purchaseDollars,
		PurchaseCount:         g.purchaseCount,
		GrossProfit:           grossProfit,
		ProfitMargin:          margin,
		StockTurnover:         turnover,
		SalesToPurchaseRatio:  ratio,
	}
}

func recordKey(vendor, description string) (domain.ItemKey, error) {
	vendor = strings.TrimSpace(vendor)
	description = strings.TrimSpace(description)
	if vendor == "" {
		return domain.ItemKey{}, fmt.Errorf("vendor: %w", ErrMissingField)
	}
	if description == "" {
		return domain.ItemKey{}, fmt.Errorf("description: %w", ErrMissingField)
	}
	return domain.ItemKey{Vendor: vendor, Description: description}, nil
}

func checkFinite(quantity, dollars float64) error {
	for _, v := range []float64{quantity, dollars} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%v: %w", v, ErrInvalidNumber)
		}
	}
	return nil
}

// SortSummaries orders rows by vendor, then description.
func SortSummaries(rows []domain.VendorSummary) {
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Vendor != rows[j].Vendor {
			return rows[i].Vendor < rows[j].Vendor
		}
		return rows[i].Description < rows[j].Description
	})
}

// safeDiv returns 0 instead of NaN or Inf.
func safeDiv(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	v := num / den
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
