// Package telemetry wires warp measurements into OpenTelemetry and
// bootstraps the SDK with OTLP gRPC exporters.
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"google.golang.org/grpc"
)

// MeterReporter records warp measurements on an OpenTelemetry meter.
type MeterReporter struct {
	requests metric.Int64Counter
	errs     metric.Int64Counter
	latency  metric.Float64Histogram
}

// NewReporter creates the warp client instruments on the given meter.
func NewReporter(meter metric.Meter) (*MeterReporter, error) {
	requests, err := meter.Int64Counter("warp.client.requests",
		metric.WithDescription("Number of invocations started"))
	if err != nil {
		return nil, err
	}
	errs, err := meter.Int64Counter("warp.client.errors",
		metric.WithDescription("Number of invocations that terminated with an error"))
	if err != nil {
		return nil, err
	}
	latency, err := meter.Float64Histogram("warp.client.duration",
		metric.WithDescription("Invocation duration"), metric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}
	return &MeterReporter{requests: requests, errs: errs, latency: latency}, nil
}

// ReportRequest counts an invocation start.
func (r *MeterReporter) ReportRequest(configKey string) {
	r.requests.Add(context.Background(), 1, metric.WithAttributes(keyAttr(configKey)))
}

// ReportError counts a terminal invocation error.
func (r *MeterReporter) ReportError(configKey string, _ error) {
	r.errs.Add(context.Background(), 1, metric.WithAttributes(keyAttr(configKey)))
}

// ReportLatency records an invocation's duration.
func (r *MeterReporter) ReportLatency(configKey string, latency time.Duration) {
	ms := float64(latency) / float64(time.Millisecond)
	r.latency.Record(context.Background(), ms, metric.WithAttributes(keyAttr(configKey)))
}

func keyAttr(configKey string) attribute.KeyValue {
	return attribute.String("config_key", configKey)
}

// Options configures Setup.
type Options struct {
	// ServiceName identifies this process in exported telemetry.
	ServiceName string
	// Endpoint is the OTLP gRPC collector endpoint (host:port).
	Endpoint string
	// Insecure disables transport security on the exporter connections.
	Insecure bool
	// DialOptions are extra gRPC dial options for the exporter connections.
	DialOptions []grpc.DialOption
}

// Setup bootstraps global OpenTelemetry tracer and meter providers backed
// by OTLP gRPC exporters and registers the W3C trace context propagator.
// The returned function flushes and shuts both providers down.
func Setup(ctx context.Context, opts Options) (func(context.Context) error, error) {
	res := resource.NewSchemaless(attribute.String("service.name", opts.ServiceName))

	traceOpts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(opts.Endpoint)}
	metricOpts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(opts.Endpoint)}
	if opts.Insecure {
		traceOpts = append(traceOpts, otlptracegrpc.WithInsecure())
		metricOpts = append(metricOpts, otlpmetricgrpc.WithInsecure())
	}
	if len(opts.DialOptions) > 0 {
		traceOpts = append(traceOpts, otlptracegrpc.WithDialOption(opts.DialOptions...))
		metricOpts = append(metricOpts, otlpmetricgrpc.WithDialOption(opts.DialOptions...))
	}

	traceExporter, err := otlptracegrpc.New(ctx, traceOpts...)
	if err != nil {
		return nil, err
	}
	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(res),
	)

	metricExporter, err := otlpmetricgrpc.New(ctx, metricOpts...)
	if err != nil {
		_ = tracerProvider.Shutdown(ctx)
		return nil, err
	}
	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter)),
		sdkmetric.WithResource(res),
	)

	otel.SetTracerProvider(tracerProvider)
	otel.SetMeterProvider(meterProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{}))

	return func(ctx context.Context) error {
		traceErr := tracerProvider.Shutdown(ctx)
		if meterErr := meterProvider.Shutdown(ctx); meterErr != nil {
			return meterErr
		}
		return traceErr
	}, nil
}
