// Package telemetry exposes Prometheus metrics for the HTTP surface and
// for the pregnancy dating workflow.
package telemetry

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/carenest/carenest/internal/platform/middleware"
)

const namespace = "carenest"

var defaultDurationBuckets = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5}

// Provider owns a private registry so tests and multiple servers in one
// process never collide on metric names.
type Provider struct {
	registry *prometheus.Registry

	activeRequests  prometheus.Gauge
	requestDuration *prometheus.HistogramVec
	responseSize    *prometheus.HistogramVec

	registrations   prometheus.Counter
	datings         *prometheus.CounterVec
	recommendations *prometheus.CounterVec
	snapshotRefresh *prometheus.CounterVec
}

func NewProvider() *Provider {
	p := &Provider{
		registry: prometheus.NewRegistry(),
		activeRequests: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_active_requests",
			Help:      "Requests currently being served.",
		}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route and status.",
			Buckets:   defaultDurationBuckets,
		}, []string{"method", "route", "status"}),
		responseSize: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_response_size_bytes",
			Help:      "HTTP response body size by route.",
			Buckets:   prometheus.ExponentialBuckets(64, 4, 7),
		}, []string{"route"}),
		registrations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registrations_total",
			Help:      "Mothers registered.",
		}),
		datings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dating_computations_total",
			Help:      "Pregnancy dating computations by outcome.",
		}, []string{"outcome"}),
		recommendations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "appointment_recommendations_total",
			Help:      "Next-visit recommendations by cadence interval.",
		}, []string{"interval_weeks"}),
		snapshotRefresh: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshot_refresh_total",
			Help:      "Stored dating snapshots rewritten by the refresh job.",
		}, []string{"result"}),
	}

	p.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		p.activeRequests,
		p.requestDuration,
		p.responseSize,
		p.registrations,
		p.datings,
		p.recommendations,
		p.snapshotRefresh,
	)
	return p
}

func (p *Provider) Registry() *prometheus.Registry {
	return p.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (p *Provider) Handler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{}))
}

// Middleware records latency, size and in-flight count for every request.
func (p *Provider) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p.activeRequests.Inc()
			defer p.activeRequests.Dec()

			start := time.Now()
			err := next(c)

			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			status := strconv.Itoa(middleware.StatusOf(c, err))
			p.requestDuration.WithLabelValues(c.Request().Method, route, status).Observe(time.Since(start).Seconds())
			if size := c.Response().Size; size > 0 {
				p.responseSize.WithLabelValues(route).Observe(float64(size))
			}
			return err
		}
	}
}

// The recorders below are nil-safe so services can run without metrics.

func (p *Provider) Registered() {
	if p == nil {
		return
	}
	p.registrations.Inc()
}

// Dated records one dating computation; outcome is "ok", "undated" or "invalid".
func (p *Provider) Dated(outcome string) {
	if p == nil {
		return
	}
	p.datings.WithLabelValues(outcome).Inc()
}

func (p *Provider) Recommended(intervalWeeks int) {
	if p == nil {
		return
	}
	p.recommendations.WithLabelValues(strconv.Itoa(intervalWeeks)).Inc()
}

func (p *Provider) SnapshotsRefreshed(updated, failed int) {
	if p == nil {
		return
	}
	p.snapshotRefresh.WithLabelValues("updated").Add(float64(updated))
	p.snapshotRefresh.WithLabelValues("failed").Add(float64(failed))
}
