package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/andresuchdata/vendor-analytics/internal/cache"
	"github.com/andresuchdata/vendor-analytics/internal/domain"
	"github.com/andresuchdata/vendor-analytics/internal/export"
	"github.com/andresuchdata/vendor-analytics/internal/ingest"
	"github.com/andresuchdata/vendor-analytics/internal/pipeline"
	"github.com/andresuchdata/vendor-analytics/internal/repository/postgres"
	"github.com/andresuchdata/vendor-analytics/internal/storage"
)

var ErrNotFound = errors.New("not found")

// AnalyticsReader reads the derived tables of the last committed run.
type AnalyticsReader interface {
	ListSummaries(ctx context.Context, filter postgres.ItemFilter) ([]domain.VendorSummary, error)
	ListScores(ctx context.Context, tier domain.Tier, filter postgres.ItemFilter) ([]domain.PerformanceScore, error)
	ListInventory(ctx context.Context, flaggedOnly bool, filter postgres.ItemFilter) ([]domain.InventoryRecommendation, error)
	ListPrices(ctx context.Context, action domain.PriceAction, filter postgres.ItemFilter) ([]domain.PriceRecommendation, error)
	ListAnomalies(ctx context.Context, anomalousOnly bool, filter postgres.ItemFilter) ([]domain.AnomalyRecord, error)
	ListForecasts(ctx context.Context, filter postgres.ItemFilter) ([]domain.DemandForecast, error)
	TierCounts(ctx context.Context) ([]domain.TierCount, error)
}

// AlertReader reads active alerts and alert history.
type AlertReader interface {
	ListActive(ctx context.Context) ([]domain.Alert, error)
	ListHistory(ctx context.Context, filter domain.AlertHistoryFilter) ([]domain.Alert, error)
	ActiveSummary(ctx context.Context) (domain.AlertSummary, error)
	AlertTrend(ctx context.Context, days int) ([]domain.AlertTrendPoint, error)
}

// RunReader reads the pipeline run log.
type RunReader interface {
	GetRun(ctx context.Context, id string) (*pipeline.Run, error)
	ListRuns(ctx context.Context, limit int) ([]*pipeline.Run, error)
}

// Publisher uploads the exported tables of a completed run.
type Publisher struct {
	Store  storage.ObjectStorage
	Prefix string
}

// Upload is one uploaded input file.
type Upload struct {
	Name string
	Body io.Reader
}

type AnalyticsService struct {
	reader    AnalyticsReader
	alerts    AlertReader
	runs      RunReader
	runner    *pipeline.Runner
	cache     cache.AnalyticsCache
	publisher *Publisher
}

// Option configures an AnalyticsService.
type Option func(*AnalyticsService)

func WithCache(c cache.AnalyticsCache) Option {
	return func(s *AnalyticsService) {
		if c != nil {
			s.cache = c
		}
	}
}

func WithPublisher(p *Publisher) Option {
	return func(s *AnalyticsService) { s.publisher = p }
}

func NewAnalyticsService(reader AnalyticsReader, alertReader AlertReader, runs RunReader, runner *pipeline.Runner, opts ...Option) *AnalyticsService {
	s := &AnalyticsService{
		reader: reader,
		alerts: alertReader,
		runs:   runs,
		runner: runner,
		cache:  cache.NewNoopAnalyticsCache(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func filterParams(filter postgres.ItemFilter, extra ...string) []string {
	params := []string{
		"vendor=" + filter.Vendor,
		"limit=" + strconv.Itoa(filter.Limit),
		"offset=" + strconv.Itoa(filter.Offset),
	}
	return append(params, extra...)
}

func (s *AnalyticsService) GetSummaries(ctx context.Context, filter postgres.ItemFilter) ([]domain.VendorSummary, error) {
	return cache.Fetch(ctx, s.cache, cache.Key("summaries", filterParams(filter)...), func() ([]domain.VendorSummary, error) {
		return s.reader.ListSummaries(ctx, filter)
	})
}

func (s *AnalyticsService) GetScores(ctx context.Context, tier domain.Tier, filter postgres.ItemFilter) ([]domain.PerformanceScore, error) {
	return cache.Fetch(ctx, s.cache, cache.Key("scores", filterParams(filter, "tier="+string(tier))...), func() ([]domain.PerformanceScore, error) {
		return s.reader.ListScores(ctx, tier, filter)
	})
}

func (s *AnalyticsService) GetTierCounts(ctx context.Context) ([]domain.TierCount, error) {
	return cache.Fetch(ctx, s.cache, cache.Key("tiers"), func() ([]domain.TierCount, error) {
		return s.reader.TierCounts(ctx)
	})
}

func (s *AnalyticsService) GetInventory(ctx context.Context, flaggedOnly bool, filter postgres.ItemFilter) ([]domain.InventoryRecommendation, error) {
	return s.reader.ListInventory(ctx, flaggedOnly, filter)
}

func (s *AnalyticsService) GetPrices(ctx context.Context, action domain.PriceAction, filter postgres.ItemFilter) ([]domain.PriceRecommendation, error) {
	return s.reader.ListPrices(ctx, action, filter)
}

func (s *AnalyticsService) GetAnomalies(ctx context.Context, anomalousOnly bool, filter postgres.ItemFilter) ([]domain.AnomalyRecord, error) {
	return s.reader.ListAnomalies(ctx, anomalousOnly, filter)
}

func (s *AnalyticsService) GetForecasts(ctx context.Context, filter postgres.ItemFilter) ([]domain.DemandForecast, error) {
	return s.reader.ListForecasts(ctx, filter)
}

func (s *AnalyticsService) GetActiveAlerts(ctx context.Context) ([]domain.Alert, error) {
	return cache.Fetch(ctx, s.cache, cache.Key("alerts_active"), func() ([]domain.Alert, error) {
		return s.alerts.ListActive(ctx)
	})
}

func (s *AnalyticsService) GetAlertSummary(ctx context.Context) (domain.AlertSummary, error) {
	return cache.Fetch(ctx, s.cache, cache.Key("alerts_summary"), func() (domain.AlertSummary, error) {
		return s.alerts.ActiveSummary(ctx)
	})
}

func (s *AnalyticsService) GetAlertHistory(ctx context.Context, filter domain.AlertHistoryFilter) ([]domain.Alert, error) {
	if filter.Limit <= 0 {
		filter.Limit = 100
	}
	return s.alerts.ListHistory(ctx, filter)
}

func (s *AnalyticsService) GetAlertTrend(ctx context.Context, days int) ([]domain.AlertTrendPoint, error) {
	if days <= 0 {
		days = 30
	}
	return s.alerts.AlertTrend(ctx, days)
}

func (s *AnalyticsService) GetRun(ctx context.Context, id string) (*pipeline.Run, error) {
	run, err := s.runs.GetRun(ctx, id)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	return run, nil
}

func (s *AnalyticsService) ListRuns(ctx context.Context, limit int) ([]*pipeline.Run, error) {
	return s.runs.ListRuns(ctx, limit)
}

// RunUploads parses the uploaded sales and purchase files and runs the
// pipeline on them. The read cache is cleared once the run is committed.
func (s *AnalyticsService) RunUploads(ctx context.Context, sales, purchases Upload, skip []pipeline.Stage) (*pipeline.Report, error) {
	salesFormat, err := ingest.FormatFromName(sales.Name)
	if err != nil {
		return nil, fmt.Errorf("sales file: %w", err)
	}
	purchaseFormat, err := ingest.FormatFromName(purchases.Name)
	if err != nil {
		return nil, fmt.Errorf("purchases file: %w", err)
	}

	in := pipeline.Input{
		Skip:   skip,
		Source: strings.Join([]string{sales.Name, purchases.Name}, "+"),
	}

	g := new(errgroup.Group)
	g.Go(func() error {
		var err error
		in.Sales, err = ingest.ParseSales(sales.Body, salesFormat)
		return err
	})
	g.Go(func() error {
		var err error
		in.Purchases, err = ingest.ParsePurchases(purchases.Body, purchaseFormat)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out, report, err := s.runner.Run(ctx, in)
	if err != nil {
		return report, err
	}

	if err := s.cache.InvalidateAll(ctx); err != nil {
		log.Warn().Err(err).Msg("analytics: cache invalidation failed")
	}

	if s.publisher != nil && s.publisher.Store != nil {
		if _, err := export.Upload(ctx, s.publisher.Store, s.publisher.Prefix, out.Run.ID, export.Tables(out)); err != nil {
			log.Warn().Err(err).Str("run_id", out.Run.ID).Msg("analytics: export upload failed")
		}
	}

	return report, nil
}
