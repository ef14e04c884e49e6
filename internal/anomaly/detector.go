package anomaly

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"github.com/andresuchdata/vendor-analytics/internal/domain"
)

// ErrInsufficientData is returned when the population is too small to build
// meaningful partitions.
var ErrInsufficientData = errors.New("insufficient data for anomaly detection")

// Config tunes the isolation forest.
type Config struct {
	Trees         int
	SampleSize    int
	Contamination float64
	MinSamples    int
	Seed          uint64
}

// DefaultConfig returns 100 trees over subsamples of 256 with a 10% contamination.
func DefaultConfig() Config {
	return Config{
		Trees:         100,
		SampleSize:    256,
		Contamination: 0.10,
		MinSamples:    10,
		Seed:          42,
	}
}

// Sample is one member of the population with its feature vector.
type Sample struct {
	Vendor      string
	Description string
	Features    []float64
}

// SamplesFrom builds feature vectors from the summary. When scores is not nil
// the composite score of each pair is appended as an extra feature; pairs
// without a score get the neutral 50.
func SamplesFrom(rows []domain.VendorSummary, scores []domain.PerformanceScore) []Sample {
	var byKey map[domain.ItemKey]float64
	if scores != nil {
		byKey = make(map[domain.ItemKey]float64, len(scores))
		for _, s := range scores {
			byKey[s.Key()] = s.Score
		}
	}

	out := make([]Sample, 0, len(rows))
	for _, r := range rows {
		features := []float64{
			r.ProfitMargin,
			r.StockTurnover,
			r.TotalSalesDollars,
			r.CapitalEfficiency(),
			r.SalesToPurchaseRatio,
		}
		if byKey != nil {
			score, ok := byKey[r.Key()]
			if !ok {
				score = 50
			}
			features = append(features, score)
		}
		out = append(out, Sample{Vendor: r.Vendor, Description: r.Description, Features: features})
	}
	return out
}

// Detector scores a population with an isolation forest.
type Detector struct {
	cfg Config
}

func NewDetector(cfg Config) (*Detector, error) {
	if cfg.Trees < 1 {
		return nil, fmt.Errorf("trees must be positive, got %d", cfg.Trees)
	}
	if cfg.SampleSize < 2 {
		return nil, fmt.Errorf("sample size must be at least 2, got %d", cfg.SampleSize)
	}
	if cfg.Contamination <= 0 || cfg.Contamination > 0.5 {
		return nil, fmt.Errorf("contamination must be in (0, 0.5], got %v", cfg.Contamination)
	}
	if cfg.MinSamples < 2 {
		cfg.MinSamples = 2
	}
	return &Detector{cfg: cfg}, nil
}

// Detect scores every sample. The same seed and input always produce the same
// output. Exactly ceil(contamination·n) samples are flagged, lowest scores
// first, with ties broken by input order.
func (d *Detector) Detect(samples []Sample) ([]domain.AnomalyRecord, error) {
	if len(samples) < d.cfg.MinSamples {
		return nil, fmt.Errorf("need at least %d samples, got %d: %w", d.cfg.MinSamples, len(samples), ErrInsufficientData)
	}

	dims := len(samples[0].Features)
	points := make([][]float64, len(samples))
	for i, s := range samples {
		if len(s.Features) != dims {
			return nil, fmt.Errorf("sample %d has %d features, expected %d", i, len(s.Features), dims)
		}
		p := make([]float64, dims)
		for j, v := range s.Features {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				v = 0
			}
			p[j] = v
		}
		points[i] = p
	}

	rng := rand.New(rand.NewPCG(d.cfg.Seed, d.cfg.Seed))
	f := growForest(points, d.cfg.Trees, d.cfg.SampleSize, rng)

	out := make([]domain.AnomalyRecord, len(samples))
	for i, s := range samples {
		out[i] = domain.AnomalyRecord{
			Vendor:       s.Vendor,
			Description:  s.Description,
			AnomalyScore: f.score(points[i]),
		}
	}

	flag := int(math.Ceil(d.cfg.Contamination*float64(len(samples)) - 1e-9))
	order := make([]int, len(out))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return out[order[a]].AnomalyScore < out[order[b]].AnomalyScore
	})
	for _, i := range order[:flag] {
		out[i].IsAnomalous = true
	}

	return out, nil
}
