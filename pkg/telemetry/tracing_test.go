package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitTracingDisabled(t *testing.T) {
	provider, err := InitTracing(context.Background(), TracingConfig{Enabled: false})
	require.NoError(t, err)

	// The no-op tracer still produces usable spans.
	_, span := provider.Tracer.Start(context.Background(), "test")
	span.End()

	assert.NoError(t, provider.Shutdown(context.Background()))
}

func TestInitTracingNoneExporter(t *testing.T) {
	provider, err := InitTracing(context.Background(), TracingConfig{
		Enabled:  true,
		Exporter: "none",
	})
	require.NoError(t, err)
	defer func() { _ = provider.Shutdown(context.Background()) }()

	_, span := provider.Tracer.Start(context.Background(), "test")
	span.End()
}

func TestInitTracingUnknownExporter(t *testing.T) {
	_, err := InitTracing(context.Background(), TracingConfig{
		Enabled:  true,
		Exporter: "carrier-pigeon",
	})
	assert.Error(t, err)
}
