package instrument

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// Instrumentation hands out tracers and meters and flushes them on shutdown.
type Instrumentation interface {
	Tracer(name string) trace.Tracer
	Meter(name string) metric.Meter
	Shutdown(ctx context.Context) error
}

// Config drives OpenTelemetry initialization. ServiceName, ServiceVersion and
// Environment become resource attributes; LogLevel is one of debug, info,
// warn or error.
type Config struct {
	Enabled          bool
	ServiceName      string
	ServiceVersion   string
	Environment      string
	OTLPEndpoint     string
	OTLPSecure       bool
	TraceSampleRatio float64
	MetricsInterval  time.Duration
	MaskFields       []string
	LogLevel         string
}

// New installs the process-wide slog handler and, when cfg.Enabled is set,
// returns providers exporting traces, metrics and logs over OTLP/gRPC.
// Disabled instrumentation still logs JSON to stdout.
func New(ctx context.Context, cfg *Config) (Instrumentation, error) {
	if cfg == nil {
		return NewNoop(), nil
	}

	level := parseLevel(cfg.LogLevel)
	if !cfg.Enabled {
		initLogging(os.Stdout, cfg.ServiceName, nil, cfg.MaskFields, level)
		return NewNoop(), nil
	}

	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
		attribute.String("env", cfg.Environment),
	))
	if err != nil {
		return nil, fmt.Errorf("otel resource: %w", err)
	}

	exp, err := newExporters(ctx, cfg.OTLPEndpoint, cfg.OTLPSecure)
	if err != nil {
		return nil, err
	}

	sampler := sdktrace.ParentBased(sdktrace.TraceIDRatioBased(clampRatio(cfg.TraceSampleRatio)))
	tp := sdktrace.NewTracerProvider(sdktrace.WithResource(res), sdktrace.WithSampler(sampler), sdktrace.WithBatcher(exp.trace))
	reader := sdkmetric.NewPeriodicReader(exp.metric, sdkmetric.WithInterval(cfg.MetricsInterval))
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithResource(res), sdkmetric.WithReader(reader))
	lp := sdklog.NewLoggerProvider(sdklog.WithResource(res), sdklog.WithProcessor(sdklog.NewBatchProcessor(exp.log)))

	initLogging(os.Stdout, cfg.ServiceName, lp, cfg.MaskFields, level)

	return &providers{
		tp: tp,
		mp: mp,
		// logs go last so failures of the other providers can still be exported
		shutdown: func(ctx context.Context) error {
			err := errors.Join(tp.Shutdown(ctx), mp.Shutdown(ctx))
			return errors.Join(err, lp.Shutdown(ctx))
		},
	}, nil
}

// NewNoop returns instrumentation that records nothing. Tests use it.
func NewNoop() Instrumentation {
	return &providers{tp: tracenoop.NewTracerProvider(), mp: metricnoop.NewMeterProvider()}
}

type providers struct {
	tp       trace.TracerProvider
	mp       metric.MeterProvider
	shutdown func(context.Context) error
}

func (p *providers) Tracer(name string) trace.Tracer { return p.tp.Tracer(name) }

func (p *providers) Meter(name string) metric.Meter { return p.mp.Meter(name) }

func (p *providers) Shutdown(ctx context.Context) error {
	if p.shutdown == nil {
		return nil
	}
	return p.shutdown(ctx)
}

type exporters struct {
	trace  *otlptrace.Exporter
	metric *otlpmetricgrpc.Exporter
	log    *otlploggrpc.Exporter
}

// newExporters dials the collector once per signal. Exporters created before
// a failure are shut down so no connection leaks.
func newExporters(ctx context.Context, endpoint string, secure bool) (*exporters, error) {
	traceOpts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(endpoint)}
	metricOpts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(endpoint)}
	logOpts := []otlploggrpc.Option{otlploggrpc.WithEndpoint(endpoint)}
	if !secure {
		traceOpts = append(traceOpts, otlptracegrpc.WithInsecure())
		metricOpts = append(metricOpts, otlpmetricgrpc.WithInsecure())
		logOpts = append(logOpts, otlploggrpc.WithInsecure())
	}

	te, err := otlptracegrpc.New(ctx, traceOpts...)
	if err != nil {
		return nil, fmt.Errorf("otlp trace exporter: %w", err)
	}

	me, err := otlpmetricgrpc.New(ctx, metricOpts...)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("otlp metric exporter: %w", err), te.Shutdown(ctx))
	}

	le, err := otlploggrpc.New(ctx, logOpts...)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("otlp log exporter: %w", err), te.Shutdown(ctx), me.Shutdown(ctx))
	}

	return &exporters{trace: te, metric: me, log: le}, nil
}

func clampRatio(r float64) float64 {
	switch {
	case r <= 0:
		return 0
	case r >= 1:
		return 1
	default:
		return r
	}
}
