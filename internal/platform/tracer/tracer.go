package tracer

import (
	"context"
	"fmt"
	"time"

	"github.com/Bernard-Murphy/dbay-public/internal/platform/logger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const setupTimeout = 10 * time.Second

// InitTracer installs the global propagator and tracer provider. Spans are
// exported over OTLP/gRPC when otlpEndpoint is set; otherwise, and whenever
// the exporter cannot be built, the returned provider records spans without
// exporting them so callers never need a nil check.
func InitTracer(serviceName, otlpEndpoint string, appLogger *logger.Logger) *sdktrace.TracerProvider {
	log := appLogger.Named("tracer")
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	if otlpEndpoint == "" {
		log.Info("Tracing export disabled, OTEL_EXPORTER_OTLP_ENDPOINT is empty")
		return sdktrace.NewTracerProvider()
	}

	ctx, cancel := context.WithTimeout(context.Background(), setupTimeout)
	defer cancel()

	exporter, err := newExporter(ctx, otlpEndpoint)
	if err != nil {
		log.Error("Tracing export disabled", zap.String("endpoint", otlpEndpoint), zap.Error(err))
		return sdktrace.NewTracerProvider()
	}

	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(
		semconv.ServiceNameKey.String(serviceName),
	))
	if err != nil {
		log.Warn("Using default trace resource", zap.Error(err))
		res = resource.Default()
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	log.Info("Tracing enabled", zap.String("service_name", serviceName), zap.String("endpoint", otlpEndpoint))
	return tp
}

// newExporter builds an OTLP exporter over an insecure gRPC client
// connection. The connection is lazy, so an unreachable collector only shows
// up as export errors later.
func newExporter(ctx context.Context, endpoint string) (sdktrace.SpanExporter, error) {
	conn, err := grpc.NewClient(endpoint, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("grpc client for %s: %w", endpoint, err)
	}
	exporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("otlp exporter: %w", err)
	}
	return exporter, nil
}
