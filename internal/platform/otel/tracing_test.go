package otel

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

func TestInitTracer_Disabled(t *testing.T) {
	shutdown, err := InitTracer(false, ServiceName, zap.NewNop(), nil)
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestInitTracer_ExportsSpans(t *testing.T) {
	prev := otel.GetTracerProvider()
	defer otel.SetTracerProvider(prev)

	var out bytes.Buffer
	shutdown, err := InitTracer(true, ServiceName, zap.NewNop(), &out)
	require.NoError(t, err)

	_, span := otel.Tracer("test").Start(context.Background(), "pipeline.run")
	span.End()

	require.NoError(t, shutdown(context.Background()))
	assert.Contains(t, out.String(), `"Name": "pipeline.run"`)
	assert.Contains(t, out.String(), ServiceName)
}
