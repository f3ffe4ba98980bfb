package trace

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
)

func TestInitTracing_HTTP(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	cfg := &Config{
		Enabled:     true,
		ServiceName: "grimrelay-test",
		Protocol:    "http",
		Insecure:    true,
		SamplerRate: 2, // clamped to 1
	}
	shutdown, err := InitTracing(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	require.NotNil(t, shutdown)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = shutdown(ctx)
}

func TestSpanScope(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	sr := tracetest.NewSpanRecorder()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr)))

	scope := Tracer("test").Start(context.Background(), "relay.dispatch").
		WithAttrs(AttrSessionID.String("ABC123"), AttrMessageKind.String("ping"))
	scope.RecordError(errors.New("boom"))
	scope.End()

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "relay.dispatch", spans[0].Name())
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Contains(t, spans[0].Attributes(), AttrSessionID.String("ABC123"))
}

func TestSpanScope_NilSafe(t *testing.T) {
	var s *SpanScope
	assert.NotPanics(t, func() {
		s.WithAttrs(AttrPlayerID.String("p1")).RecordError(errors.New("x")).End()
	})
}

func TestInitTracing_UnsupportedProtocol(t *testing.T) {
	_, err := InitTracing(context.Background(), &Config{Protocol: "kafka"}, zap.NewNop())
	assert.ErrorContains(t, err, "unsupported protocol")
}

func TestClampRateAndDefaults(t *testing.T) {
	assert.Equal(t, 0.0, clampRate(-1))
	assert.Equal(t, 1.0, clampRate(3))
	assert.Equal(t, 0.25, clampRate(0.25))
	assert.Equal(t, "http://localhost:4318", defaultEndpoint(ProtocolHTTP))
	assert.Equal(t, "localhost:4317", defaultEndpoint(ProtocolGRPC))
}
