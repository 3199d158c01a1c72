package observability

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/linzen78111/pos2/internal/config"
)

const shutdownTimeout = 10 * time.Second

// Manager owns the process-wide tracer and meter providers.
type Manager struct {
	cfg      config.Observability
	logger   *zap.Logger
	tracer   *sdktrace.TracerProvider
	meter    *sdkmetric.MeterProvider
	registry *prometheus.Registry
}

// Module exposes the observability manager and domain instruments to Fx.
var Module = fx.Provide(NewManager, NewInstruments)

// NewManager builds the providers and installs them as otel globals for the
// lifetime of the app.
func NewManager(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (*Manager, error) {
	mgr, err := newManager(context.Background(), cfg.Observability, logger)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			mgr.install()
			return nil
		},
		OnStop: mgr.Shutdown,
	})
	return mgr, nil
}

func newManager(ctx context.Context, cfg config.Observability, logger *zap.Logger) (*Manager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	res, err := newResource(ctx, cfg)
	if err != nil {
		return nil, err
	}

	mgr := &Manager{cfg: cfg, logger: logger}

	if cfg.EnableTracing {
		exporter, err := newSpanExporter(ctx, cfg)
		if err != nil {
			return nil, err
		}
		if exporter != nil {
			mgr.tracer = sdktrace.NewTracerProvider(
				sdktrace.WithBatcher(exporter),
				sdktrace.WithResource(res),
				sdktrace.WithSampler(newSampler(cfg.TraceSample)),
			)
		}
	}

	if cfg.EnableMetrics {
		if cfg.MetricsExporter == "prometheus" {
			mgr.registry = prometheus.NewRegistry()
			mgr.registry.MustRegister(
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)
		}
		reader, err := newMetricReader(cfg, mgr.registry)
		if err != nil {
			return nil, err
		}
		if reader != nil {
			mgr.meter = sdkmetric.NewMeterProvider(
				sdkmetric.WithReader(reader),
				sdkmetric.WithResource(res),
			)
		}
	}

	logger.Debug("observability configured",
		zap.Bool("tracing", mgr.tracer != nil),
		zap.Bool("metrics", mgr.meter != nil),
		zap.String("metrics_exporter", cfg.MetricsExporter),
	)
	return mgr, nil
}

func (m *Manager) install() {
	if m.tracer != nil {
		otel.SetTracerProvider(m.tracer)
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		))
	}
	if m.meter != nil {
		otel.SetMeterProvider(m.meter)
	}
}

// Shutdown flushes and stops both providers.
func (m *Manager) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	var err error
	if m.tracer != nil {
		err = errors.Join(err, m.tracer.Shutdown(ctx))
	}
	if m.meter != nil {
		err = errors.Join(err, m.meter.Shutdown(ctx))
	}
	return err
}

// TracingEnabled reports whether spans are exported.
func (m *Manager) TracingEnabled() bool {
	return m != nil && m.tracer != nil
}

// MetricsEnabled reports whether a meter provider is active.
func (m *Manager) MetricsEnabled() bool {
	return m != nil && m.meter != nil
}

// MetricsHandler serves the private Prometheus registry, or nil when metrics
// are not scraped.
func (m *Manager) MetricsHandler() http.Handler {
	if m == nil || m.registry == nil {
		return nil
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// MeterProvider returns the SDK provider when metrics are enabled, otherwise
// the global one.
func (m *Manager) MeterProvider() metric.MeterProvider {
	if m == nil || m.meter == nil {
		return otel.GetMeterProvider()
	}
	return m.meter
}
