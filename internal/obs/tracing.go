package obs

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// ServiceName identifies the storefront in logs, traces and resources.
const ServiceName = "toko-storefront"

const instrumentationName = "github.com/noah-isme/toko-storefront"

// Exporter names accepted by TracingConfig.Exporter.
const (
	ExporterOTLP = "otlp"
	// ExporterNone installs propagators only, so trace context from the
	// browser still reaches the order gateway without exporting spans.
	ExporterNone = "none"
)

// TracingConfig controls tracer provider initialisation. Empty fields fall
// back to ServiceName, ExporterOTLP and full sampling.
type TracingConfig struct {
	ServiceName   string
	Endpoint      string
	Exporter      string
	SamplingRatio float64
	Environment   string
}

// Tracer returns a storefront tracer for component, e.g. "checkout".
func Tracer(component string) trace.Tracer {
	if component == "" {
		return otel.Tracer(instrumentationName)
	}
	return otel.Tracer(instrumentationName + "/" + component)
}

// InitTracer installs the global tracer provider and W3C propagators and
// returns a shutdown function that flushes pending spans.
func InitTracer(ctx context.Context, cfg TracingConfig) (func(context.Context) error, error) {
	noop := func(context.Context) error { return nil }

	exporter := strings.ToLower(strings.TrimSpace(cfg.Exporter))
	if exporter == "" {
		exporter = ExporterOTLP
	}
	var spanExporter sdktrace.SpanExporter
	switch exporter {
	case ExporterNone:
		setPropagators()
		return noop, nil
	case ExporterOTLP:
		opts := []otlptracehttp.Option{}
		if endpoint := strings.TrimSpace(cfg.Endpoint); endpoint != "" {
			opts = append(opts, otlptracehttp.WithEndpointURL(endpoint))
		}
		var err error
		if spanExporter, err = otlptracehttp.New(ctx, opts...); err != nil {
			return noop, fmt.Errorf("obs: otlp exporter: %w", err)
		}
	default:
		return noop, fmt.Errorf("obs: unsupported tracing exporter %q", exporter)
	}

	res, err := newResource(ctx, cfg)
	if err != nil {
		return noop, err
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(samplingRatio(cfg.SamplingRatio)))),
		sdktrace.WithBatcher(spanExporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	setPropagators()
	return tp.Shutdown, nil
}

func newResource(ctx context.Context, cfg TracingConfig) (*resource.Resource, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = ServiceName
	}
	env := strings.TrimSpace(cfg.Environment)
	if env == "" {
		env = "development"
	}
	res, err := resource.New(ctx,
		resource.WithFromEnv(),
		resource.WithProcess(),
		resource.WithTelemetrySDK(),
		resource.WithAttributes(
			semconv.ServiceName(name),
			semconv.ServiceNamespace("toko"),
			semconv.DeploymentEnvironment(env),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("obs: tracing resource: %w", err)
	}
	return res, nil
}

// samplingRatio clamps ratio into (0, 1]; zero or less samples everything.
func samplingRatio(ratio float64) float64 {
	if ratio <= 0 || ratio > 1 {
		return 1
	}
	return ratio
}

func setPropagators() {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
}
