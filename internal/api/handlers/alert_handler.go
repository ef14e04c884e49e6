package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/andresuchdata/vendor-analytics/internal/domain"
)

type AlertHandler struct {
	service AnalyticsService
}

func NewAlertHandler(service AnalyticsService) *AlertHandler {
	return &AlertHandler{service: service}
}

func (h *AlertHandler) GetActive(c *gin.Context) {
	alerts, err := h.service.GetActiveAlerts(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch active alerts", "details": err.Error()})
		return
	}

	if raw := strings.TrimSpace(c.Query("priority")); raw != "" {
		priority, ok := domain.ParsePriority(raw)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown priority " + raw})
			return
		}
		filtered := make([]domain.Alert, 0, len(alerts))
		for _, a := range alerts {
			if a.Priority == priority {
				filtered = append(filtered, a)
			}
		}
		alerts = filtered
	}

	c.JSON(http.StatusOK, gin.H{"alerts": alerts, "total": len(alerts)})
}

func (h *AlertHandler) GetSummary(c *gin.Context) {
	summary, err := h.service.GetAlertSummary(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch alert summary", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *AlertHandler) GetHistory(c *gin.Context) {
	filter := domain.AlertHistoryFilter{Vendors: parseList(c, "vendor")}

	if raw := strings.TrimSpace(c.Query("type")); raw != "" {
		t, ok := domain.ParseAlertType(raw)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown alert type " + raw})
			return
		}
		filter.Type = t
	}
	if raw := strings.TrimSpace(c.Query("priority")); raw != "" {
		p, ok := domain.ParsePriority(raw)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown priority " + raw})
			return
		}
		filter.Priority = p
	}
	if raw := strings.TrimSpace(c.Query("since")); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			if since, err = time.Parse(time.DateOnly, raw); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "since must be RFC3339 or YYYY-MM-DD"})
				return
			}
		}
		filter.Since = &since
	}
	if limit, err := strconv.Atoi(c.Query("limit")); err == nil && limit > 0 {
		filter.Limit = limit
	}

	alerts, err := h.service.GetAlertHistory(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch alert history", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"alerts": alerts, "total": len(alerts)})
}

func (h *AlertHandler) GetTrend(c *gin.Context) {
	days, _ := strconv.Atoi(c.DefaultQuery("days", "30"))
	if days <= 0 {
		days = 30
	}

	points, err := h.service.GetAlertTrend(c.Request.Context(), days)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch alert trend", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"days": days, "points": points})
}
