package observability

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/linzen78111/pos2/internal/config"
)

func TestManagerServesDomainMetrics(t *testing.T) {
	mgr, err := newManager(context.Background(), config.Observability{
		ServiceName:     "pos",
		Environment:     "test",
		EnableMetrics:   true,
		MetricsExporter: "prometheus",
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = mgr.Shutdown(context.Background()) })

	assert.True(t, mgr.MetricsEnabled())
	assert.False(t, mgr.TracingEnabled())

	inst, err := NewInstruments(mgr)
	require.NoError(t, err)
	inst.OrderAdmitted(context.Background(), "takeout")

	rec := httptest.NewRecorder()
	mgr.MetricsHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "pos_orders_admitted")
	assert.Contains(t, string(body), "go_goroutines")
}

func TestManagerDisabled(t *testing.T) {
	mgr, err := newManager(context.Background(), config.Observability{ServiceName: "pos"}, nil)
	require.NoError(t, err)

	assert.False(t, mgr.MetricsEnabled())
	assert.False(t, mgr.TracingEnabled())
	assert.Nil(t, mgr.MetricsHandler())
	assert.NotNil(t, mgr.MeterProvider())
	assert.NoError(t, mgr.Shutdown(context.Background()))
}

func TestManagerRejectsUnknownExporters(t *testing.T) {
	_, err := newManager(context.Background(), config.Observability{
		EnableTracing: true,
		TraceExporter: "zipkin",
	}, nil)
	assert.ErrorContains(t, err, "zipkin")

	_, err = newManager(context.Background(), config.Observability{
		EnableMetrics:   true,
		MetricsExporter: "statsd",
	}, nil)
	assert.ErrorContains(t, err, "statsd")
}

func TestNewSampler(t *testing.T) {
	assert.Equal(t, sdktrace.AlwaysSample().Description(), newSampler(1).Description())
	assert.Contains(t, newSampler(0.25).Description(), "TraceIDRatioBased{0.25}")
}
