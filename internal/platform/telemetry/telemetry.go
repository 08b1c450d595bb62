// Package telemetry exposes Prometheus metrics for the HTTP server and the
// patient record load.
package telemetry

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Provider owns a private registry and the collectors registered on it.
type Provider struct {
	registry *prometheus.Registry

	requests       *prometheus.CounterVec
	duration       *prometheus.HistogramVec
	activeRequests prometheus.Gauge
	loads          *prometheus.CounterVec
	records        prometheus.Gauge
	accesses       *prometheus.CounterVec
}

// NewProvider creates a Provider with all collectors registered under the
// given namespace.
func NewProvider(namespace string) *Provider {
	if namespace == "" {
		namespace = "patient_desk"
	}
	p := &Provider{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		activeRequests: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_active_requests",
			Help:      "Requests currently being served.",
		}),
		loads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "record_loads_total",
			Help:      "Initial record loads by outcome.",
		}, []string{"outcome"}),
		records: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "records_loaded",
			Help:      "Records received by the most recent load.",
		}),
		accesses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "patient_access_total",
			Help:      "Audited patient data accesses by action and status class.",
		}, []string{"action", "status"}),
	}
	p.registry.MustRegister(p.requests, p.duration, p.activeRequests, p.loads, p.records, p.accesses)
	return p
}

// Registry returns the underlying registry.
func (p *Provider) Registry() *prometheus.Registry {
	return p.registry
}

// ObserveLoad records the outcome of a record load.
func (p *Provider) ObserveLoad(records int, err error) {
	if err != nil {
		p.loads.WithLabelValues("error").Inc()
		p.records.Set(0)
		return
	}
	p.loads.WithLabelValues("success").Inc()
	p.records.Set(float64(records))
}

// ObserveAccess counts one audited access. Statuses are bucketed by class
// (2xx, 4xx, ...) to keep the series small.
func (p *Provider) ObserveAccess(action string, status int) {
	p.accesses.WithLabelValues(action, strconv.Itoa(status/100)+"xx").Inc()
}

// MetricsMiddleware returns an Echo middleware that records HTTP server metrics.
func (p *Provider) MetricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p.activeRequests.Inc()
			defer p.activeRequests.Dec()

			start := time.Now()
			err := next(c)

			// Route pattern keeps label cardinality bounded.
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}

			method := c.Request().Method
			p.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
			p.duration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

// PrometheusHandler serves the registry in the Prometheus exposition format.
func (p *Provider) PrometheusHandler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{}))
}
