package domain

import "strings"

// Tier is a coarse performance bucket.
type Tier string

const (
	TierExcellent Tier = "Excellent"
	TierGood      Tier = "Good"
	TierFair      Tier = "Fair"
	TierPoor      Tier = "Poor"
)

// TierForScore maps a score in [0,100] onto its band.
func TierForScore(score float64) Tier {
	switch {
	case score >= 75:
		return TierExcellent
	case score >= 50:
		return TierGood
	case score >= 25:
		return TierFair
	default:
		return TierPoor
	}
}

// Confidence of a demand forecast.
type Confidence string

const (
	ConfidenceHigh   Confidence = "High"
	ConfidenceMedium Confidence = "Medium"
	ConfidenceLow    Confidence = "Low"
	ConfidenceNone   Confidence = ""
)

// PriceAction is the recommended price direction.
type PriceAction string

const (
	PriceIncrease PriceAction = "Increase"
	PriceDecrease PriceAction = "Decrease"
	PriceMaintain PriceAction = "Maintain"
)

// Priority of an alert.
type Priority string

const (
	PriorityCritical Priority = "Critical"
	PriorityHigh     Priority = "High"
	PriorityMedium   Priority = "Medium"
	PriorityLow      Priority = "Low"
)

// Priorities lists every priority from most to least urgent.
var Priorities = []Priority{PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow}

var priorityRanks = map[Priority]int{
	PriorityCritical: 0,
	PriorityHigh:     1,
	PriorityMedium:   2,
	PriorityLow:      3,
}

// Rank orders priorities, 0 being the most urgent. Unknown priorities sort last.
func (p Priority) Rank() int {
	if r, ok := priorityRanks[p]; ok {
		return r
	}
	return len(priorityRanks)
}

// ParsePriority returns the priority for a label (case-insensitive).
func ParsePriority(label string) (Priority, bool) {
	for _, p := range Priorities {
		if strings.EqualFold(string(p), strings.TrimSpace(label)) {
			return p, true
		}
	}
	return "", false
}

// AlertType names a check of the alert engine.
type AlertType string

const (
	AlertLowProfitMargin    AlertType = "LowProfitMargin"
	AlertNegativeProfit     AlertType = "NegativeProfit"
	AlertLowStockTurnover   AlertType = "LowStockTurnover"
	AlertOverstocked        AlertType = "Overstocked"
	AlertUnderstocked       AlertType = "Understocked"
	AlertAnomalousBehavior  AlertType = "AnomalousBehavior"
	AlertPoorPerformance    AlertType = "PoorPerformance"
	AlertHighInventoryValue AlertType = "HighInventoryValue"
)

// AlertTypes lists every check in evaluation order.
var AlertTypes = []AlertType{
	AlertLowProfitMargin,
	AlertNegativeProfit,
	AlertLowStockTurnover,
	AlertOverstocked,
	AlertUnderstocked,
	AlertAnomalousBehavior,
	AlertPoorPerformance,
	AlertHighInventoryValue,
}

var alertTypeLabels = map[AlertType]string{
	AlertLowProfitMargin:    "Low Profit Margin",
	AlertNegativeProfit:     "Negative Profit",
	AlertLowStockTurnover:   "Low Stock Turnover",
	AlertOverstocked:        "Overstocked Item",
	AlertUnderstocked:       "Understocked Item",
	AlertAnomalousBehavior:  "Anomalous Behavior",
	AlertPoorPerformance:    "Poor Performance Score",
	AlertHighInventoryValue: "High Inventory Value",
}

// Label returns a human-readable label for the alert type.
func (t AlertType) Label() string {
	if label, ok := alertTypeLabels[t]; ok {
		return label
	}
	return string(t)
}

// ParseAlertType accepts either the identifier or the label (case-insensitive).
func ParseAlertType(s string) (AlertType, bool) {
	s = strings.TrimSpace(s)
	for _, t := range AlertTypes {
		if strings.EqualFold(string(t), s) || strings.EqualFold(t.Label(), s) {
			return t, true
		}
	}
	return "", false
}
