package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/omeyang/xtube/pkg/observability/xmetrics"
)

const (
	instrumentationName = "github.com/omeyang/xtube/cmd/xtubectl"
	telemetryFlushWait  = 5 * time.Second
)

// telemetry 持有本次命令的 OTel provider，shutdown 刷出全部 span 和指标。
type telemetry struct {
	observer xmetrics.Observer
	shutdown func(ctx context.Context) error
}

// newTelemetry 把 span 和指标以 JSON 写到 w。
func newTelemetry(w io.Writer) (*telemetry, error) {
	spans, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		return nil, fmt.Errorf("create span exporter: %w", err)
	}
	metrics, err := stdoutmetric.New(stdoutmetric.WithWriter(w))
	if err != nil {
		return nil, fmt.Errorf("create metric exporter: %w", err)
	}
	return buildTelemetry(spans, sdkmetric.NewPeriodicReader(metrics))
}

func buildTelemetry(spans sdktrace.SpanExporter, reader sdkmetric.Reader) (*telemetry, error) {
	res := resource.NewSchemaless(
		attribute.String("service.name", "xtubectl"),
		attribute.String("service.version", Version),
	)
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(spans),
		sdktrace.WithResource(res),
	)
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(reader),
		sdkmetric.WithResource(res),
	)
	shutdown := func(ctx context.Context) error {
		return errors.Join(tp.Shutdown(ctx), mp.Shutdown(ctx))
	}

	observer, err := xmetrics.NewOTelObserver(
		xmetrics.WithInstrumentationName(instrumentationName),
		xmetrics.WithTracerProvider(tp),
		xmetrics.WithMeterProvider(mp),
	)
	if err != nil {
		_ = shutdown(context.Background())
		return nil, err
	}
	return &telemetry{observer: observer, shutdown: shutdown}, nil
}

// close 在有限时间内刷出数据，命令已被取消时仍然执行。
func (t *telemetry) close(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), telemetryFlushWait)
	defer cancel()
	return t.shutdown(ctx)
}
