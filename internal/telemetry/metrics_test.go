package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

func TestSetupMetrics_CollectsCounterTotals(t *testing.T) {
	setup := SetupMetrics()
	ctx := context.Background()
	t.Cleanup(func() { _ = setup.Shutdown(context.Background()) })

	meter := otel.Meter("telemetry-test")
	counter, err := meter.Int64Counter("items_total")
	require.NoError(t, err)

	counter.Add(ctx, 3, metric.WithAttributes(attribute.String("status", "completed")))
	counter.Add(ctx, 2, metric.WithAttributes(attribute.String("status", "failed")))

	rm, err := setup.Collect(ctx)
	require.NoError(t, err)

	totals := CounterTotals(rm)
	assert.Equal(t, int64(5), totals["items_total"], "attribute sets sum per instrument")
}

func TestCounterTotals_EmptyCollection(t *testing.T) {
	setup := SetupMetrics()
	t.Cleanup(func() { _ = setup.Shutdown(context.Background()) })

	rm, err := setup.Collect(context.Background())
	require.NoError(t, err)
	assert.Empty(t, CounterTotals(rm))
}
