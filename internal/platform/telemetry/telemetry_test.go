package telemetry

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddleware_RecordsRoute(t *testing.T) {
	p := NewProvider()
	e := echo.New()
	e.Use(p.Middleware())
	e.GET("/api/v1/appointments/:id", func(c echo.Context) error {
		return c.String(http.StatusOK, "appointment")
	})
	e.GET("/boom", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusNotFound, "nope")
	})

	for _, path := range []string{"/api/v1/appointments/1", "/api/v1/appointments/2", "/boom"} {
		e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, 2, testutil.CollectAndCount(p.requestDuration),
		"one series per method/route/status")
	assert.Equal(t, float64(0), testutil.ToFloat64(p.activeRequests))
}

func TestRecorders(t *testing.T) {
	p := NewProvider()
	p.Registered()
	p.Dated("ok")
	p.Dated("ok")
	p.Dated("invalid")
	p.Recommended(4)
	p.SnapshotsRefreshed(3, 1)

	assert.Equal(t, float64(1), testutil.ToFloat64(p.registrations))
	assert.Equal(t, float64(2), testutil.ToFloat64(p.datings.WithLabelValues("ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(p.datings.WithLabelValues("invalid")))
	assert.Equal(t, float64(1), testutil.ToFloat64(p.recommendations.WithLabelValues("4")))
	assert.Equal(t, float64(3), testutil.ToFloat64(p.snapshotRefresh.WithLabelValues("updated")))
}

func TestRecorders_NilSafe(t *testing.T) {
	var p *Provider
	assert.NotPanics(t, func() {
		p.Registered()
		p.Dated("ok")
		p.Recommended(2)
		p.SnapshotsRefreshed(1, 0)
	})
}

func TestHandler_ExposesMetrics(t *testing.T) {
	p := NewProvider()
	p.Registered()

	e := echo.New()
	e.GET("/metrics", p.Handler())
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "carenest_registrations_total 1"), body)
	assert.Contains(t, body, "go_goroutines")
}
