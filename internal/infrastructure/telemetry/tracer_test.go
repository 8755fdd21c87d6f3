package telemetry_test

import (
	"context"
	"testing"

	"github.com/invoicing/backend/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestNewTracerProvider_Disabled(t *testing.T) {
	ctx := context.Background()

	tp, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		CollectorEndpoint: "localhost:14317",
		SamplingRatio:     1.0,
		ServiceName:       "test-service",
	}, zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.False(t, tp.IsEnabled())
	assert.NotNil(t, tp.Tracer("test"))
	assert.NoError(t, tp.ForceFlush(ctx))
	assert.NoError(t, tp.Shutdown(ctx))
}

func TestNewTracerProvider_Enabled(t *testing.T) {
	ctx := context.Background()

	// The gRPC exporter connects lazily, so no collector is needed.
	tp, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           true,
		CollectorEndpoint: "localhost:14317",
		SamplingRatio:     0.5,
		ServiceName:       "test-service",
		Insecure:          true,
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.True(t, tp.IsEnabled())

	_, span := tp.Tracer("test").Start(ctx, "op")
	span.End()

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_ = tp.Shutdown(cancelled)
}
