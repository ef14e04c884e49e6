package analytics

import (
	"fmt"
	"math"

	"github.com/andresuchdata/vendor-analytics/internal/domain"
)

// PriceConfig holds the margin and turnover thresholds of the price rule.
type PriceConfig struct {
	LowMargin         float64
	HighMargin        float64
	TurnoverThreshold float64
}

// DefaultPriceConfig returns 20% / 60% margins and a turnover threshold of 1.
func DefaultPriceConfig() PriceConfig {
	return PriceConfig{LowMargin: 20, HighMargin: 60, TurnoverThreshold: 1}
}

const (
	minIncreasePct = 5.0
	maxIncreasePct = 10.0
	decreasePct    = 5.0
)

// PriceOptimizer recommends a price direction from margin and turnover.
type PriceOptimizer struct {
	cfg PriceConfig
}

func NewPriceOptimizer(cfg PriceConfig) *PriceOptimizer {
	return &PriceOptimizer{cfg: cfg}
}

// Recommend applies the rule to every row.
func (o *PriceOptimizer) Recommend(rows []domain.VendorSummary) []domain.PriceRecommendation {
	out := make([]domain.PriceRecommendation, 0, len(rows))
	for _, r := range rows {
		out = append(out, o.Decide(r.Vendor, r.Description, r.ProfitMargin, r.StockTurnover))
	}
	return out
}

// Decide evaluates the rule for a single margin/turnover pair. Low margin wins
// over the high-margin slow-mover case.
func (o *PriceOptimizer) Decide(vendor, description string, margin, turnover float64) domain.PriceRecommendation {
	rec := domain.PriceRecommendation{
		Vendor:          vendor,
		Description:     description,
		CurrentMargin:   margin,
		CurrentTurnover: turnover,
		Action:          domain.PriceMaintain,
	}

	switch {
	case margin < o.cfg.LowMargin:
		rec.Action = domain.PriceIncrease
		rec.Magnitude = o.increaseMagnitude(margin)
		rec.Rationale = fmt.Sprintf("margin %.1f%% is below %.1f%%", margin, o.cfg.LowMargin)
	case margin > o.cfg.HighMargin && turnover < o.cfg.TurnoverThreshold:
		rec.Action = domain.PriceDecrease
		rec.Magnitude = decreasePct
		rec.Rationale = fmt.Sprintf("margin %.1f%% is above %.1f%% with turnover %.2f below %.2f",
			margin, o.cfg.HighMargin, turnover, o.cfg.TurnoverThreshold)
	default:
		rec.Rationale = "margin and turnover are within range"
	}
	return rec
}

// increaseMagnitude scales from 5% at the low threshold to 10% at a zero or negative margin.
func (o *PriceOptimizer) increaseMagnitude(margin float64) float64 {
	if o.cfg.LowMargin <= 0 || margin <= 0 {
		return maxIncreasePct
	}
	gap := (o.cfg.LowMargin - margin) / o.cfg.LowMargin
	gap = math.Max(0, math.Min(1, gap))
	return minIncreasePct + gap*(maxIncreasePct-minIncreasePct)
}
