package xmetrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func newTestObserver(t *testing.T) (Observer, *tracetest.InMemoryExporter, *sdkmetric.ManualReader) {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		_ = mp.Shutdown(context.Background())
	})

	obs, err := NewOTelObserver(
		WithInstrumentationName("xmetrics-test"),
		WithTracerProvider(tp),
		WithMeterProvider(mp),
	)
	require.NoError(t, err)
	return obs, exporter, reader
}

func collectSum(t *testing.T, reader *sdkmetric.ManualReader, name string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
		}
	}
	return total
}

func TestStart_NilObserver(t *testing.T) {
	ctx, span := Start(context.Background(), nil, SpanOptions{Component: "xapi"})
	assert.NotNil(t, ctx)
	assert.IsType(t, NoopSpan{}, span)
	span.End(Result{})
}

func TestStart_NilContext(t *testing.T) {
	//nolint:staticcheck // 验证 nil ctx 的兜底
	ctx, span := Start(nil, NoopObserver{}, SpanOptions{})
	assert.NotNil(t, ctx)
	assert.NotNil(t, span)
}

type nilSpanObserver struct{}

func (nilSpanObserver) Start(context.Context, SpanOptions) (context.Context, Span) {
	return nil, nil
}

func TestStart_ObserverReturnsNil(t *testing.T) {
	ctx, span := Start(context.Background(), nilSpanObserver{}, SpanOptions{})
	assert.NotNil(t, ctx)
	assert.IsType(t, NoopSpan{}, span)
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "Internal", KindInternal.String())
	assert.Equal(t, "Client", KindClient.String())
	assert.Equal(t, "Kind(9)", Kind(9).String())
}

func TestOTelObserver_RecordsSpanAndMetrics(t *testing.T) {
	obs, exporter, reader := newTestObserver(t)

	_, span := obs.Start(context.Background(), SpanOptions{
		Component: "xrefresh",
		Operation: "Refresh",
		Kind:      KindClient,
		Attrs:     []Attr{String("path", "/users/refresh-token"), Int("pending", 2)},
	})
	span.End(Result{Attrs: []Attr{Duration("wait", time.Millisecond), Bool("ok", true)}})
	span.End(Result{Err: errors.New("ignored")})

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "xrefresh.Refresh", spans[0].Name)
	assert.Equal(t, trace.SpanKindClient, spans[0].SpanKind)
	assert.Equal(t, codes.Ok, spans[0].Status.Code)
	assert.Contains(t, spans[0].Attributes, attribute.String("path", "/users/refresh-token"))
	assert.Contains(t, spans[0].Attributes, attribute.Int64("wait", int64(time.Millisecond)))

	assert.Equal(t, int64(1), collectSum(t, reader, metricOperationTotal))
}

func TestOTelObserver_ErrorStatus(t *testing.T) {
	obs, exporter, _ := newTestObserver(t)

	_, span := obs.Start(context.Background(), SpanOptions{})
	span.End(Result{Err: errors.New("boom")})

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "unknown.unknown", spans[0].Name)
	assert.Equal(t, codes.Error, spans[0].Status.Code)
	assert.Equal(t, "boom", spans[0].Status.Description)
}

func TestOTelObserver_ExplicitErrorWithoutErr(t *testing.T) {
	obs, exporter, _ := newTestObserver(t)

	_, span := obs.Start(context.Background(), SpanOptions{Component: "xapi", Operation: "HTTP"})
	span.End(Result{Status: StatusError})

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "operation failed", spans[0].Status.Description)
}

func TestToKeyValue_Fallback(t *testing.T) {
	kv := toKeyValue(Attr{Key: "k", Value: struct{ A int }{A: 1}})
	assert.Equal(t, attribute.String("k", "{1}"), kv)
	assert.Nil(t, attrsToOTel(nil))
	assert.Empty(t, attrsToOTel([]Attr{{Key: "", Value: 1}, {Key: "x"}}))
}
