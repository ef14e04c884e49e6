package analytics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresuchdata/vendor-analytics/internal/domain"
)

func TestAggregate_SingleWidget(t *testing.T) {
	sales := []domain.SalesRecord{{Vendor: "VendorA", Description: "Widget", Quantity: 100, Dollars: 1000}}
	purchases := []domain.PurchaseRecord{{Vendor: "VendorA", Description: "Widget", Quantity: 80, Dollars: 800}}

	rows, err := Aggregate(sales, purchases)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	row := rows[0]
	assert.Equal(t, "VendorA", row.Vendor)
	assert.Equal(t, "Widget", row.Description)
	assert.InDelta(t, 200, row.GrossProfit, 1e-9)
	assert.InDelta(t, 20, row.ProfitMargin, 1e-9)
	assert.InDelta(t, 1.25, row.StockTurnover, 1e-9)
	assert.InDelta(t, 1.25, row.SalesToPurchaseRatio, 1e-9)
	assert.Equal(t, 1, row.PurchaseCount)
}

func TestAggregate_DropsRowsWithoutPositiveBothSides(t *testing.T) {
	tests := []struct {
		name      string
		sales     []domain.SalesRecord
		purchases []domain.PurchaseRecord
	}{
		{
			name:      "zero purchase dollars",
			sales:     []domain.SalesRecord{{Vendor: "VendorA", Description: "Widget", Quantity: 100, Dollars: 1000}},
			purchases: []domain.PurchaseRecord{{Vendor: "VendorA", Description: "Widget", Quantity: 80, Dollars: 0}},
		},
		{
			name:  "no matching purchases",
			sales: []domain.SalesRecord{{Vendor: "VendorA", Description: "Widget", Quantity: 100, Dollars: 1000}},
		},
		{
			name:      "purchases only",
			purchases: []domain.PurchaseRecord{{Vendor: "VendorA", Description: "Widget", Quantity: 80, Dollars: 800}},
		},
		{
			name:      "returns cancel sales",
			sales:     []domain.SalesRecord{{Vendor: "V", Description: "I", Quantity: 1, Dollars: 10}, {Vendor: "V", Description: "I", Quantity: -1, Dollars: -10}},
			purchases: []domain.PurchaseRecord{{Vendor: "V", Description: "I", Quantity: 1, Dollars: 5}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, err := Aggregate(tt.sales, tt.purchases)
			require.NoError(t, err)
			assert.Empty(t, rows)
		})
	}
}

func TestAggregate_TurnoverUsesAveragePurchaseQuantity(t *testing.T) {
	sales := []domain.SalesRecord{
		{Vendor: "V", Description: "I", Quantity: 60, Dollars: 600},
		{Vendor: "V", Description: "I", Quantity: 40, Dollars: 400},
	}
	purchases := []domain.PurchaseRecord{
		{Vendor: "V", Description: "I", Quantity: 30, Dollars: 300},
		{Vendor: "V", Description: "I", Quantity: 10, Dollars: 100},
	}

	rows, err := Aggregate(sales, purchases)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	// 100 sold / avg(30, 10)
	assert.InDelta(t, 5, rows[0].StockTurnover, 1e-9)
	assert.InDelta(t, 40, rows[0].TotalPurchaseQuantity, 1e-9)
	assert.Equal(t, 2, rows[0].PurchaseCount)
}

func TestAggregate_DerivedFieldsAreFinite(t *testing.T) {
	sales := []domain.SalesRecord{
		{Vendor: "V", Description: "zero qty", Quantity: 0, Dollars: 100},
		{Vendor: "V", Description: "neg purchase qty", Quantity: 5, Dollars: 100},
	}
	purchases := []domain.PurchaseRecord{
		{Vendor: "V", Description: "zero qty", Quantity: 0, Dollars: 50},
		{Vendor: "V", Description: "neg purchase qty", Quantity: -3, Dollars: 50},
	}

	rows, err := Aggregate(sales, purchases)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	for _, r := range rows {
		for _, v := range []float64{r.ProfitMargin, r.StockTurnover, r.SalesToPurchaseRatio} {
			assert.False(t, math.IsNaN(v) || math.IsInf(v, 0), "non-finite value in %+v", r)
		}
		assert.Zero(t, r.StockTurnover)
	}
}

func TestAggregate_IsIdempotentAndSorted(t *testing.T) {
	sales := []domain.SalesRecord{
		{Vendor: "B", Description: "x", Quantity: 3, Dollars: 30},
		{Vendor: "A", Description: "z", Quantity: 1, Dollars: 10.1},
		{Vendor: "A", Description: "y", Quantity: 2, Dollars: 20.2},
		{Vendor: "A", Description: "y", Quantity: 2, Dollars: 0.1},
	}
	purchases := []domain.PurchaseRecord{
		{Vendor: "A", Description: "y", Quantity: 2, Dollars: 10},
		{Vendor: "A", Description: "z", Quantity: 1, Dollars: 5},
		{Vendor: "B", Description: "x", Quantity: 3, Dollars: 15},
	}

	first, err := Aggregate(sales, purchases)
	require.NoError(t, err)

	reversed := make([]domain.SalesRecord, len(sales))
	for i := range sales {
		reversed[len(sales)-1-i] = sales[i]
	}
	second, err := Aggregate(reversed, purchases)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	require.Len(t, first, 3)
	assert.Equal(t, domain.ItemKey{Vendor: "A", Description: "y"}, first[0].Key())
	assert.Equal(t, domain.ItemKey{Vendor: "A", Description: "z"}, first[1].Key())
	assert.Equal(t, domain.ItemKey{Vendor: "B", Description: "x"}, first[2].Key())
	assert.InDelta(t, 20.3, first[0].TotalSalesDollars, 1e-9)
}

func TestAggregate_MissingField(t *testing.T) {
	_, err := Aggregate([]domain.SalesRecord{{Vendor: " ", Description: "Widget", Dollars: 1}}, nil)
	require.ErrorIs(t, err, ErrMissingField)
	assert.Contains(t, err.Error(), "sales record 0")

	_, err = Aggregate(nil, []domain.PurchaseRecord{{Vendor: "V", Dollars: 1}})
	require.ErrorIs(t, err, ErrMissingField)
	assert.Contains(t, err.Error(), "purchase record 0")
}

func TestValidateInputs(t *testing.T) {
	issues := ValidateInputs(nil, nil)
	require.Len(t, issues, 2)
	assert.Equal(t, CheckEmpty, issues[0].Check)
	assert.Equal(t, CheckEmpty, issues[1].Check)

	sales := []domain.SalesRecord{{Vendor: "V", Description: "I", Dollars: -1}, {Vendor: "V", Description: "I", Dollars: 5}}
	purchases := []domain.PurchaseRecord{{Vendor: "V", Description: "I", Dollars: -2}}
	issues = ValidateInputs(sales, purchases)

	byKey := map[string]ValidationIssue{}
	for _, i := range issues {
		byKey[i.Dataset+"/"+i.Check] = i
	}
	assert.Equal(t, 1, byKey["sales/negative_dollars"].Count)
	assert.Equal(t, 2, byKey["sales/missing_date"].Count)
	assert.Equal(t, 1, byKey["purchases/negative_dollars"].Count)
}

func TestAggregate_RejectsNonFiniteNumbers(t *testing.T) {
	purchases := []domain.PurchaseRecord{{Vendor: "VendorA", Description: "Widget", Quantity: 80, Dollars: 800}}
	sales := []domain.SalesRecord{
		{Vendor: "VendorA", Description: "Widget", Quantity: 1, Dollars: 10},
		{Vendor: "VendorA", Description: "Widget", Quantity: 10, Dollars: math.NaN()},
	}

	assert.NotPanics(t, func() {
		_, err := Aggregate(sales, purchases)
		require.ErrorIs(t, err, ErrInvalidNumber)
		assert.Contains(t, err.Error(), "sales record 1")
	})

	assert.NotPanics(t, func() {
		bad := []domain.PurchaseRecord{{Vendor: "VendorA", Description: "Widget", Quantity: math.Inf(1), Dollars: 8}}
		_, err := Aggregate(sales[:1], bad)
		require.ErrorIs(t, err, ErrInvalidNumber)
		assert.Contains(t, err.Error(), "purchase record 0")
	})
}
