package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/andresuchdata/vendor-analytics/internal/analytics"
	"github.com/andresuchdata/vendor-analytics/internal/domain"
	"github.com/andresuchdata/vendor-analytics/internal/ingest"
	"github.com/andresuchdata/vendor-analytics/internal/pipeline"
	"github.com/andresuchdata/vendor-analytics/internal/repository/postgres"
	"github.com/andresuchdata/vendor-analytics/internal/service"
)

// AnalyticsService is what the handlers need from the service layer.
type AnalyticsService interface {
	GetSummaries(ctx context.Context, filter postgres.ItemFilter) ([]domain.VendorSummary, error)
	GetScores(ctx context.Context, tier domain.Tier, filter postgres.ItemFilter) ([]domain.PerformanceScore, error)
	GetTierCounts(ctx context.Context) ([]domain.TierCount, error)
	GetInventory(ctx context.Context, flaggedOnly bool, filter postgres.ItemFilter) ([]domain.InventoryRecommendation, error)
	GetPrices(ctx context.Context, action domain.PriceAction, filter postgres.ItemFilter) ([]domain.PriceRecommendation, error)
	GetAnomalies(ctx context.Context, anomalousOnly bool, filter postgres.ItemFilter) ([]domain.AnomalyRecord, error)
	GetForecasts(ctx context.Context, filter postgres.ItemFilter) ([]domain.DemandForecast, error)

	GetActiveAlerts(ctx context.Context) ([]domain.Alert, error)
	GetAlertSummary(ctx context.Context) (domain.AlertSummary, error)
	GetAlertHistory(ctx context.Context, filter domain.AlertHistoryFilter) ([]domain.Alert, error)
	GetAlertTrend(ctx context.Context, days int) ([]domain.AlertTrendPoint, error)

	GetRun(ctx context.Context, id string) (*pipeline.Run, error)
	ListRuns(ctx context.Context, limit int) ([]*pipeline.Run, error)
	RunUploads(ctx context.Context, sales, purchases service.Upload, skip []pipeline.Stage) (*pipeline.Report, error)
}

type AnalyticsHandler struct {
	service AnalyticsService
}

func NewAnalyticsHandler(service AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{service: service}
}

func parseItemFilter(c *gin.Context) postgres.ItemFilter {
	filter := postgres.ItemFilter{Limit: 100}

	if limit, err := strconv.Atoi(c.Query("limit")); err == nil && limit > 0 {
		filter.Limit = min(limit, 1000)
	}
	if offset, err := strconv.Atoi(c.Query("offset")); err == nil && offset > 0 {
		filter.Offset = offset
	}
	filter.Vendor = strings.TrimSpace(c.Query("vendor"))

	return filter
}

// parseList accepts ?key=A&key=B as well as ?key=A,B.
func parseList(c *gin.Context, key string) []string {
	var out []string
	for _, v := range c.QueryArray(key) {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func respond[T any](c *gin.Context, what string, data T, err error) {
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch " + what, "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, data)
}

func (h *AnalyticsHandler) GetSummaries(c *gin.Context) {
	data, err := h.service.GetSummaries(c.Request.Context(), parseItemFilter(c))
	respond(c, "summaries", gin.H{"items": data}, err)
}

func (h *AnalyticsHandler) GetScores(c *gin.Context) {
	var tier domain.Tier
	if raw := strings.TrimSpace(c.Query("tier")); raw != "" {
		for _, t := range []domain.Tier{domain.TierExcellent, domain.TierGood, domain.TierFair, domain.TierPoor} {
			if strings.EqualFold(string(t), raw) {
				tier = t
			}
		}
		if tier == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown tier " + raw})
			return
		}
	}

	data, err := h.service.GetScores(c.Request.Context(), tier, parseItemFilter(c))
	respond(c, "scores", gin.H{"items": data}, err)
}

func (h *AnalyticsHandler) GetTierCounts(c *gin.Context) {
	data, err := h.service.GetTierCounts(c.Request.Context())
	respond(c, "tier counts", gin.H{"tiers": data}, err)
}

func (h *AnalyticsHandler) GetInventory(c *gin.Context) {
	flagged := c.Query("flagged") == "true"
	data, err := h.service.GetInventory(c.Request.Context(), flagged, parseItemFilter(c))
	respond(c, "inventory recommendations", gin.H{"items": data}, err)
}

func (h *AnalyticsHandler) GetPricing(c *gin.Context) {
	var action domain.PriceAction
	if raw := strings.TrimSpace(c.Query("action")); raw != "" {
		for _, a := range []domain.PriceAction{domain.PriceIncrease, domain.PriceDecrease, domain.PriceMaintain} {
			if strings.EqualFold(string(a), raw) {
				action = a
			}
		}
		if action == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown action " + raw})
			return
		}
	}

	data, err := h.service.GetPrices(c.Request.Context(), action, parseItemFilter(c))
	respond(c, "price recommendations", gin.H{"items": data}, err)
}

func (h *AnalyticsHandler) GetAnomalies(c *gin.Context) {
	onlyAnomalous := c.Query("anomalous") == "true"
	data, err := h.service.GetAnomalies(c.Request.Context(), onlyAnomalous, parseItemFilter(c))
	respond(c, "anomalies", gin.H{"items": data}, err)
}

func (h *AnalyticsHandler) GetForecasts(c *gin.Context) {
	data, err := h.service.GetForecasts(c.Request.Context(), parseItemFilter(c))
	respond(c, "forecasts", gin.H{"items": data}, err)
}

func (h *AnalyticsHandler) GetRuns(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	data, err := h.service.ListRuns(c.Request.Context(), limit)
	respond(c, "runs", gin.H{"runs": data}, err)
}

func (h *AnalyticsHandler) GetRun(c *gin.Context) {
	run, err := h.service.GetRun(c.Request.Context(), c.Param("id"))
	if errors.Is(err, service.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
		return
	}
	respond(c, "run", run, err)
}

// CreateRun runs the pipeline on the uploaded sales and purchases files and
// answers with the run report once it is committed.
func (h *AnalyticsHandler) CreateRun(c *gin.Context) {
	salesHeader, err := c.FormFile("sales")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "sales file is required"})
		return
	}
	purchasesHeader, err := c.FormFile("purchases")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "purchases file is required"})
		return
	}

	var skip []pipeline.Stage
	for _, s := range c.PostFormArray("skip") {
		for _, part := range strings.Split(s, ",") {
			stage, ok := pipeline.ParseStage(part)
			if !ok {
				c.JSON(http.StatusBadRequest, gin.H{"error": "unknown stage " + part})
				return
			}
			skip = append(skip, stage)
		}
	}

	salesFile, err := salesHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read sales file"})
		return
	}
	defer salesFile.Close()

	purchasesFile, err := purchasesHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read purchases file"})
		return
	}
	defer purchasesFile.Close()

	report, err := h.service.RunUploads(c.Request.Context(),
		service.Upload{Name: salesHeader.Filename, Body: salesFile},
		service.Upload{Name: purchasesHeader.Filename, Body: purchasesFile},
		skip,
	)
	switch {
	case errors.Is(err, pipeline.ErrRunInProgress):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, ingest.ErrUnsupportedFormat),
		errors.Is(err, ingest.ErrMissingColumn),
		errors.Is(err, ingest.ErrInvalidValue),
		errors.Is(err, analytics.ErrMissingField),
		errors.Is(err, analytics.ErrInvalidNumber):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case err != nil:
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "run failed", "details": err.Error(), "report": report})
	default:
		c.JSON(http.StatusOK, report)
	}
}
