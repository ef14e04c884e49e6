package domain

import "time"

// AlertSummary counts alerts per priority.
type AlertSummary struct {
	Total    int `json:"total"`
	Critical int `json:"critical"`
	High     int `json:"high"`
	Medium   int `json:"medium"`
	Low      int `json:"low"`
}

// Add counts one alert of the given priority.
func (s *AlertSummary) Add(p Priority) {
	s.Total++
	switch p {
	case PriorityCritical:
		s.Critical++
	case PriorityHigh:
		s.High++
	case PriorityMedium:
		s.Medium++
	case PriorityLow:
		s.Low++
	}
}

// SummarizeAlerts builds the per-priority counts of a set of alerts.
func SummarizeAlerts(alerts []Alert) AlertSummary {
	var s AlertSummary
	for _, a := range alerts {
		s.Add(a.Priority)
	}
	return s
}

// AlertHistoryFilter narrows alert history queries.
type AlertHistoryFilter struct {
	Vendors  []string   `json:"vendors"`
	Type     AlertType  `json:"type"`
	Priority Priority   `json:"priority"`
	Since    *time.Time `json:"since"`
	Limit    int        `json:"limit"`
}

// AlertTrendPoint is the number of alerts of a priority on a given day.
type AlertTrendPoint struct {
	Date     string   `json:"date" db:"date"`
	Priority Priority `json:"priority" db:"priority"`
	Count    int      `json:"count" db:"count"`
}

// TierCount is the number of scored items in a tier.
type TierCount struct {
	Tier  Tier `json:"tier" db:"tier"`
	Count int  `json:"count" db:"count"`
}
