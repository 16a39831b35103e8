package observability

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace/noop"
)

func TestInitTracing_Disabled(t *testing.T) {
	shutdown, err := InitTracing(TracingConfig{ServiceName: "yatube-test"})
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown(context.Background()))
	assert.Contains(t, otel.GetTextMapPropagator().Fields(), "traceparent")

	ctx, span := StartSpan(context.Background(), "PostService.Index")
	assert.NotNil(t, ctx)
	EndSpan(span, errors.New("boom"))
}

func TestInitTracing_StdoutExportsSpans(t *testing.T) {
	var buf bytes.Buffer
	prevWriter := stdoutWriter
	stdoutWriter = &buf
	t.Cleanup(func() {
		stdoutWriter = prevWriter
		otel.SetTracerProvider(noop.NewTracerProvider())
		Tracer = otel.Tracer("yatube")
	})

	shutdown, err := InitTracing(TracingConfig{
		ServiceName:  "yatube-test",
		Enabled:      true,
		Exporter:     "stdout",
		SamplerRatio: 1,
	})
	require.NoError(t, err)

	_, span := StartSpan(context.Background(), "PostService.Create")
	EndSpan(span, nil)
	require.NoError(t, shutdown(context.Background()))

	assert.Contains(t, buf.String(), "PostService.Create")
}

func TestInitTracing_BadExporter(t *testing.T) {
	_, err := InitTracing(TracingConfig{Enabled: true, Exporter: "zipkin"})
	assert.Error(t, err)

	_, err = InitTracing(TracingConfig{Enabled: true, Exporter: "otlp"})
	assert.Error(t, err, "otlp needs an endpoint")
}

func TestSamplerFor(t *testing.T) {
	assert.Contains(t, samplerFor(1).Description(), "AlwaysOnSampler")
	assert.Contains(t, samplerFor(0).Description(), "AlwaysOffSampler")
	assert.Contains(t, samplerFor(0.25).Description(), "TraceIDRatioBased{0.25}")
}
