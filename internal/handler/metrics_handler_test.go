package handler

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/hospital-admin-api/internal/service"
)

func TestMetricsHandlerPrometheus(t *testing.T) {
	metrics := service.NewMetricsService()
	metrics.ObserveHTTPRequest(http.MethodGet, "/api/v1/users/:userId/navigation", http.StatusOK, 0)

	c, rec := newTestContext(t, http.MethodGet, "/metrics", nil, nil)
	NewMetricsHandler(metrics, nil).Prometheus(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "/api/v1/users/:userId/navigation")
}

func TestMetricsHandlerPrometheusDisabled(t *testing.T) {
	c, rec := newTestContext(t, http.MethodGet, "/metrics", nil, nil)
	NewMetricsHandler(nil, nil).Prometheus(c)
	c.Writer.WriteHeaderNow() // flush status as the gin engine does after a handler

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsHandlerHealth(t *testing.T) {
	c, rec := newTestContext(t, http.MethodGet, "/health", nil, nil)
	NewMetricsHandler(nil, nil).Health(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)
}

func TestMetricsHandlerReady(t *testing.T) {
	ok := func(context.Context) error { return nil }

	t.Run("all healthy", func(t *testing.T) {
		c, rec := newTestContext(t, http.MethodGet, "/ready", nil, nil)
		NewMetricsHandler(nil, map[string]Pinger{"postgres": ok, "redis": ok}).Ready(c)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "postgres")
	})

	t.Run("one failing", func(t *testing.T) {
		c, rec := newTestContext(t, http.MethodGet, "/ready", nil, nil)
		NewMetricsHandler(nil, map[string]Pinger{
			"postgres": ok,
			"redis":    func(context.Context) error { return errors.New("connection refused") },
		}).Ready(c)

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Contains(t, rec.Body.String(), "connection refused")
		assert.NotContains(t, rec.Body.String(), "postgres")
	})
}
