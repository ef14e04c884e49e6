package analytics

import (
	"fmt"
	"math"

	"github.com/andresuchdata/vendor-analytics/internal/domain"
)

// Weights of the composite score. They must be non-negative and sum to 1.
type Weights struct {
	Margin     float64 `json:"margin"`
	Turnover   float64 `json:"turnover"`
	Sales      float64 `json:"sales"`
	Efficiency float64 `json:"efficiency"`
}

// DefaultWeights returns the standard 0.35/0.25/0.25/0.15 split.
func DefaultWeights() Weights {
	return Weights{Margin: 0.35, Turnover: 0.25, Sales: 0.25, Efficiency: 0.15}
}

const (
	weightTolerance = 1e-6
	// MinScoringPopulation is the smallest population that can be min-max normalized.
	MinScoringPopulation = 2
	neutralScore         = 50.0
)

// Validate checks the weights.
func (w Weights) Validate() error {
	for _, v := range []float64{w.Margin, w.Turnover, w.Sales, w.Efficiency} {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: negative or non-finite weight in %+v", ErrInvalidWeights, w)
		}
	}
	sum := w.Margin + w.Turnover + w.Sales + w.Efficiency
	if math.Abs(sum-1) > weightTolerance {
		return fmt.Errorf("%w: weights sum to %.6f", ErrInvalidWeights, sum)
	}
	return nil
}

// Scorer combines normalized KPIs into a composite score.
type Scorer struct {
	weights Weights
}

// NewScorer fails fast on invalid weights.
func NewScorer(w Weights) (*Scorer, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	return &Scorer{weights: w}, nil
}

// Score normalizes every metric across the whole population, so the result for
// one row depends on every other row. Populations smaller than
// MinScoringPopulation return ErrInsufficientData.
func (s *Scorer) Score(rows []domain.VendorSummary) ([]domain.PerformanceScore, error) {
	if len(rows) < MinScoringPopulation {
		return nil, fmt.Errorf("scoring needs at least %d rows, got %d: %w", MinScoringPopulation, len(rows), ErrInsufficientData)
	}

	margins := make([]float64, len(rows))
	turnovers := make([]float64, len(rows))
	sales := make([]float64, len(rows))
	efficiency := make([]float64, len(rows))
	for i, r := range rows {
		margins[i] = r.ProfitMargin
		turnovers[i] = r.StockTurnover
		sales[i] = r.TotalSalesDollars
		efficiency[i] = r.CapitalEfficiency()
	}

	marginN := minMaxNormalize(margins)
	turnoverN := minMaxNormalize(turnovers)
	salesN := minMaxNormalize(sales)
	efficiencyN := minMaxNormalize(efficiency)

	out := make([]domain.PerformanceScore, len(rows))
	for i, r := range rows {
		score := s.weights.Margin*marginN[i] +
			s.weights.Turnover*turnoverN[i] +
			s.weights.Sales*salesN[i] +
			s.weights.Efficiency*efficiencyN[i]
		score = clamp(score, 0, 100)

		out[i] = domain.PerformanceScore{
			Vendor:          r.Vendor,
			Description:     r.Description,
			MarginScore:     marginN[i],
			TurnoverScore:   turnoverN[i],
			SalesScore:      salesN[i],
			EfficiencyScore: efficiencyN[i],
			Score:           score,
			Tier:            domain.TierForScore(score),
		}
	}
	return out, nil
}

// minMaxNormalize maps values onto [0,100]. A constant metric maps to 50.
func minMaxNormalize(values []float64) []float64 {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range values {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}

	out := make([]float64, len(values))
	span := hi - lo
	for i, v := range values {
		if span == 0 || math.IsNaN(span) || math.IsInf(span, 0) {
			out[i] = neutralScore
			continue
		}
		out[i] = clamp((v-lo)/span*100, 0, 100)
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}
