package metrics

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the clinic's Prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	httpDuration     *prometheus.HistogramVec
	stockAdjustments *prometheus.CounterVec
	rejections       *prometheus.CounterVec
	auditRecords     *prometheus.CounterVec
	auditPublished   prometheus.Counter
	gatherer         prometheus.Gatherer
}

// New registers the collectors on reg. A nil reg uses a fresh registry.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "clinic",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		stockAdjustments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Name:      "stock_adjustments_total",
			Help:      "Medication stock adjustments by direction",
		}, []string{"direction"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Name:      "rejections_total",
			Help:      "Writes rejected by business rules",
		}, []string{"operation", "reason"}),
		auditRecords: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Name:      "audit_records_total",
			Help:      "Audit records written by action",
		}, []string{"action"}),
		auditPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "clinic",
			Name:      "audit_published_total",
			Help:      "Audit records relayed to the event stream",
		}),
		gatherer: reg,
	}
	reg.MustRegister(m.httpDuration, m.stockAdjustments, m.rejections, m.auditRecords, m.auditPublished)
	return m
}

// ObserveStock counts one adjustment; negative deltas are draws.
func (m *Metrics) ObserveStock(delta int) {
	if m == nil || delta == 0 {
		return
	}
	direction := "restore"
	if delta < 0 {
		direction = "draw"
	}
	m.stockAdjustments.WithLabelValues(direction).Inc()
}

func (m *Metrics) ObserveRejection(operation, reason string) {
	if m == nil {
		return
	}
	m.rejections.WithLabelValues(operation, reason).Inc()
}

func (m *Metrics) ObserveAudit(action string) {
	if m == nil {
		return
	}
	m.auditRecords.WithLabelValues(action).Inc()
}

func (m *Metrics) ObservePublished(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.auditPublished.Add(float64(n))
}

// Middleware records request latency by route template.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if m == nil {
				return next(c)
			}
			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if err != nil {
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				}
			}
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			m.httpDuration.WithLabelValues(c.Request().Method, route, strconv.Itoa(status)).
				Observe(time.Since(start).Seconds())
			return err
		}
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{}))
}
