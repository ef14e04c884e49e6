// Package metrics exposes pipeline and HTTP measurements to Prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/andresuchdata/vendor-analytics/internal/domain"
	"github.com/andresuchdata/vendor-analytics/internal/pipeline"
)

const namespace = "vendor_analytics"

// Collector records pipeline runs and HTTP traffic on its own registry.
// It satisfies pipeline.Recorder.
type Collector struct {
	registry *prometheus.Registry

	runsTotal       *prometheus.CounterVec
	runDuration     prometheus.Histogram
	stagesSkipped   *prometheus.CounterVec
	activeAlerts    *prometheus.GaugeVec
	tableRows       *prometheus.GaugeVec
	httpRequests    *prometheus.CounterVec
	httpRequestTime *prometheus.HistogramVec
}

var _ pipeline.Recorder = (*Collector)(nil)

func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_runs_total",
			Help:      "Pipeline runs by final status.",
		}, []string{"status"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pipeline_run_duration_seconds",
			Help:      "Wall time of a pipeline run.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}),
		stagesSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_stages_skipped_total",
			Help:      "Stages that were skipped or produced no output.",
		}, []string{"stage"}),
		activeAlerts: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_alerts",
			Help:      "Active alerts of the last committed run by priority.",
		}, []string{"priority"}),
		tableRows: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "table_rows",
			Help:      "Rows written per derived table by the last committed run.",
		}, []string{"table"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"method", "route", "status_code"}),
		httpRequestTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	c.registry.MustRegister(
		c.runsTotal,
		c.runDuration,
		c.stagesSkipped,
		c.activeAlerts,
		c.tableRows,
		c.httpRequests,
		c.httpRequestTime,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

func (c *Collector) ObserveRun(status pipeline.RunStatus, d time.Duration) {
	c.runsTotal.WithLabelValues(string(status)).Inc()
	c.runDuration.Observe(d.Seconds())
}

func (c *Collector) ObserveStageSkipped(stage pipeline.Stage) {
	c.stagesSkipped.WithLabelValues(string(stage)).Inc()
}

func (c *Collector) ObserveAlerts(summary domain.AlertSummary) {
	c.activeAlerts.WithLabelValues(string(domain.PriorityCritical)).Set(float64(summary.Critical))
	c.activeAlerts.WithLabelValues(string(domain.PriorityHigh)).Set(float64(summary.High))
	c.activeAlerts.WithLabelValues(string(domain.PriorityMedium)).Set(float64(summary.Medium))
	c.activeAlerts.WithLabelValues(string(domain.PriorityLow)).Set(float64(summary.Low))
}

func (c *Collector) ObserveRows(table string, n int) {
	c.tableRows.WithLabelValues(table).Set(float64(n))
}

// Middleware counts requests per matched route.
func (c *Collector) Middleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()
		ctx.Next()

		route := ctx.FullPath()
		if route == "" {
			route = "unmatched"
		}
		c.httpRequests.WithLabelValues(ctx.Request.Method, route, strconv.Itoa(ctx.Writer.Status())).Inc()
		c.httpRequestTime.WithLabelValues(ctx.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}
