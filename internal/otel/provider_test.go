package otel

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/iBurnApp/iBurn-iOS/internal/config"
)

func TestNew_Disabled(t *testing.T) {
	p, err := New(context.Background(), Config{Enabled: false})
	require.NoError(t, err)
	assert.False(t, p.Enabled())
	assert.NotNil(t, p.Tracer("test"))
	assert.NotNil(t, p.Meter("test"))
	assert.NoError(t, p.Flush(context.Background()))
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestNew_EnabledWithoutEndpoint(t *testing.T) {
	_, err := New(context.Background(), Config{Enabled: true, ServiceName: "test"})
	assert.Error(t, err)
}

func TestNew_ExportsSpans(t *testing.T) {
	exp := tracetest.NewInMemoryExporter()
	p, err := New(context.Background(), Config{
		Enabled:      true,
		ServiceName:  "test",
		BatchTimeout: 10 * time.Millisecond,
		Exporter:     exp,
	})
	require.NoError(t, err)
	assert.True(t, p.Enabled())

	_, span := p.Tracer("test").Start(context.Background(), "import")
	span.End()

	require.NoError(t, p.Flush(context.Background()))
	spans := exp.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "import", spans[0].Name)

	require.NoError(t, p.Shutdown(context.Background()))
}

func TestNew_WithEndpoint(t *testing.T) {
	// the exporter connects lazily, so construction succeeds without a collector
	p, err := New(context.Background(), Config{Enabled: true, Endpoint: "127.0.0.1:4318", Insecure: true})
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_ = p.Shutdown(ctx)
}

func TestFromConfig(t *testing.T) {
	cfg := FromConfig(config.OTelConfig{Enabled: true, ServiceName: "iburn", Endpoint: "collector:4318", Insecure: true})
	assert.True(t, cfg.Enabled)
	assert.Equal(t, "iburn", cfg.ServiceName)
	assert.Equal(t, "collector:4318", cfg.Endpoint)
	assert.True(t, cfg.Insecure)
	assert.Nil(t, cfg.Exporter)
}
