package observability

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	stdoutmetric "go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	stdouttrace "go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"

	"github.com/linzen78111/pos2/internal/config"
)

const (
	serviceVersion   = "1.0.0"
	otlpDialTimeout  = 10 * time.Second
	stdoutMetricTick = 30 * time.Second
)

func newResource(ctx context.Context, cfg config.Observability) (*sdkresource.Resource, error) {
	return sdkresource.New(ctx,
		sdkresource.WithFromEnv(),
		sdkresource.WithHost(),
		sdkresource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(serviceVersion),
			semconv.DeploymentEnvironment(cfg.Environment),
		),
	)
}

// newSpanExporter returns nil for "none".
func newSpanExporter(ctx context.Context, cfg config.Observability) (sdktrace.SpanExporter, error) {
	switch cfg.TraceExporter {
	case "", "stdout":
		return stdouttrace.New(stdouttrace.WithPrettyPrint())
	case "otlp":
		if cfg.TraceEndpoint == "" {
			return nil, fmt.Errorf("OBS_OTLP_ENDPOINT must be set for otlp exporter")
		}
		opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.TraceEndpoint)}
		if cfg.TraceInsecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		dialCtx, cancel := context.WithTimeout(ctx, otlpDialTimeout)
		defer cancel()
		return otlptracegrpc.New(dialCtx, opts...)
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported trace exporter %q", cfg.TraceExporter)
	}
}

func newSampler(ratio float64) sdktrace.Sampler {
	if ratio >= 1 {
		return sdktrace.AlwaysSample()
	}
	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
}

// newMetricReader returns nil for "none". The prometheus reader registers on
// reg rather than the global registry.
func newMetricReader(cfg config.Observability, reg prometheus.Registerer) (sdkmetric.Reader, error) {
	switch cfg.MetricsExporter {
	case "", "prometheus":
		if reg == nil {
			reg = prometheus.NewRegistry()
		}
		return promexporter.New(promexporter.WithRegisterer(reg))
	case "stdout":
		exporter, err := stdoutmetric.New(stdoutmetric.WithPrettyPrint(), stdoutmetric.WithWriter(os.Stdout))
		if err != nil {
			return nil, err
		}
		return sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(stdoutMetricTick)), nil
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported metrics exporter %q", cfg.MetricsExporter)
	}
}
