package domain

import "time"

// SalesRecord is a single sales line as delivered by the ingestion layer.
type SalesRecord struct {
	Vendor      string     `json:"vendor"`
	Description string     `json:"description"`
	Quantity    float64    `json:"quantity"`
	Dollars     float64    `json:"dollars"`
	Date        *time.Time `json:"date,omitempty"`
}

// PurchaseRecord is a single purchase line as delivered by the ingestion layer.
type PurchaseRecord struct {
	Vendor      string     `json:"vendor"`
	Description string     `json:"description"`
	Quantity    float64    `json:"quantity"`
	Dollars     float64    `json:"dollars"`
	Date        *time.Time `json:"date,omitempty"`
}

// ItemKey identifies a vendor/product pair.
type ItemKey struct {
	Vendor      string
	Description string
}

// VendorSummary is one aggregated row per vendor/product pair that has both
// positive sales dollars and positive purchase dollars.
type VendorSummary struct {
	Vendor                string  `json:"vendor" db:"vendor"`
	Description           string  `json:"description" db:"description"`
	TotalSalesQuantity    float64 `json:"total_sales_quantity" db:"total_sales_quantity"`
	TotalSalesDollars     float64 `json:"total_sales_dollars" db:"total_sales_dollars"`
	TotalPurchaseQuantity float64 `json:"total_purchase_quantity" db:"total_purchase_quantity"`
	TotalPurchaseDollars  float64 `json:"total_purchase_dollars" db:"total_purchase_dollars"`
	PurchaseCount         int     `json:"purchase_count" db:"purchase_count"`
	GrossProfit           float64 `json:"gross_profit" db:"gross_profit"`
	ProfitMargin          float64 `json:"profit_margin" db:"profit_margin"`
	StockTurnover         float64 `json:"stock_turnover" db:"stock_turnover"`
	SalesToPurchaseRatio  float64 `json:"sales_to_purchase_ratio" db:"sales_to_purchase_ratio"`
}

// Key returns the vendor/product key of the row.
func (s VendorSummary) Key() ItemKey {
	return ItemKey{Vendor: s.Vendor, Description: s.Description}
}

// CapitalEfficiency is gross profit per purchase dollar, 0 when nothing was purchased.
func (s VendorSummary) CapitalEfficiency() float64 {
	if s.TotalPurchaseDollars <= 0 {
		return 0
	}
	return s.GrossProfit / s.TotalPurchaseDollars
}

// PerformanceScore is the composite score and tier of a vendor/product pair.
type PerformanceScore struct {
	Vendor          string  `json:"vendor" db:"vendor"`
	Description     string  `json:"description" db:"description"`
	MarginScore     float64 `json:"margin_score" db:"margin_score"`
	TurnoverScore   float64 `json:"turnover_score" db:"turnover_score"`
	SalesScore      float64 `json:"sales_score" db:"sales_score"`
	EfficiencyScore float64 `json:"efficiency_score" db:"efficiency_score"`
	Score           float64 `json:"score" db:"score"`
	Tier            Tier    `json:"tier" db:"tier"`
}

// Key returns the vendor/product key of the score.
func (p PerformanceScore) Key() ItemKey {
	return ItemKey{Vendor: p.Vendor, Description: p.Description}
}

// InventoryRecommendation holds reorder guidance for a single item.
type InventoryRecommendation struct {
	Vendor               string  `json:"vendor" db:"vendor"`
	Description          string  `json:"description" db:"description"`
	CurrentStock         float64 `json:"current_stock" db:"current_stock"`
	StockTurnover        float64 `json:"stock_turnover" db:"stock_turnover"`
	DemandRate           float64 `json:"demand_rate" db:"demand_rate"`
	SafetyStock          float64 `json:"safety_stock" db:"safety_stock"`
	ReorderPoint         float64 `json:"reorder_point" db:"reorder_point"`
	OptimalOrderQuantity float64 `json:"optimal_order_quantity" db:"optimal_order_quantity"`
	IsOverstocked        bool    `json:"is_overstocked" db:"is_overstocked"`
	IsUnderstocked       bool    `json:"is_understocked" db:"is_understocked"`
}

// Key returns the vendor/product key of the recommendation.
func (r InventoryRecommendation) Key() ItemKey {
	return ItemKey{Vendor: r.Vendor, Description: r.Description}
}

// PriceRecommendation is the suggested price direction for an item.
type PriceRecommendation struct {
	Vendor          string      `json:"vendor" db:"vendor"`
	Description     string      `json:"description" db:"description"`
	CurrentMargin   float64     `json:"current_margin" db:"current_margin"`
	CurrentTurnover float64     `json:"current_turnover" db:"current_turnover"`
	Action          PriceAction `json:"action" db:"action"`
	Magnitude       float64     `json:"magnitude" db:"magnitude"` // percent
	Rationale       string      `json:"rationale" db:"rationale"`
}

// AnomalyRecord is the isolation score of one member of the population.
// Lower scores are more anomalous.
type AnomalyRecord struct {
	Vendor       string  `json:"vendor" db:"vendor"`
	Description  string  `json:"description" db:"description"`
	AnomalyScore float64 `json:"anomaly_score" db:"anomaly_score"`
	IsAnomalous  bool    `json:"is_anomalous" db:"is_anomalous"`
}

// Key returns the vendor/product key of the record.
func (a AnomalyRecord) Key() ItemKey {
	return ItemKey{Vendor: a.Vendor, Description: a.Description}
}

// DemandForecast is a smoothed-average projection of demand. When Sufficient is
// false there was not enough history and the quantities carry no meaning.
type DemandForecast struct {
	Vendor           string     `json:"vendor" db:"vendor"`
	Description      string     `json:"description" db:"description"`
	HorizonDays      int        `json:"horizon_days" db:"horizon_days"`
	ForecastQuantity float64    `json:"forecast_quantity" db:"forecast_quantity"`
	ForecastDollars  float64    `json:"forecast_dollars" db:"forecast_dollars"`
	Confidence       Confidence `json:"confidence" db:"confidence"`
	Buckets          int        `json:"buckets" db:"buckets"`
	Sufficient       bool       `json:"sufficient" db:"sufficient"`
}

// Alert is a single triggered condition.
type Alert struct {
	ID             string    `json:"id" db:"id"`
	RunID          string    `json:"run_id" db:"run_id"`
	Type           AlertType `json:"type" db:"alert_type"`
	Priority       Priority  `json:"priority" db:"priority"`
	Vendor         string    `json:"vendor" db:"vendor"`
	Description    string    `json:"description,omitempty" db:"description"`
	MetricValue    float64   `json:"metric_value" db:"metric_value"`
	Threshold      float64   `json:"threshold" db:"threshold"`
	Message        string    `json:"message" db:"message"`
	Recommendation string    `json:"recommendation" db:"recommendation"`
	Timestamp      time.Time `json:"timestamp" db:"created_at"`
}
