package trace

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestInit_Disabled(t *testing.T) {
	shutdown, err := Init(context.Background(), "feed-service", Config{})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestNewExporter_Unknown(t *testing.T) {
	_, err := newExporter(context.Background(), Config{Exporter: "zipkin"}, nil)
	assert.EqualError(t, err, `unknown trace exporter "zipkin"`)
}

func TestNewExporter_Stdout(t *testing.T) {
	var buf bytes.Buffer
	exp, err := newExporter(context.Background(), Config{Exporter: "stdout"}, &buf)
	require.NoError(t, err)

	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	_, span := tp.Tracer(instrumentation).Start(context.Background(), "feed.cycle")
	span.End()
	require.NoError(t, tp.Shutdown(context.Background()))

	assert.Contains(t, buf.String(), `"Name": "feed.cycle"`)
}
