// Package telemetry wires the process-wide OpenTelemetry meter provider.
// The CLI aggregates instrument recordings in process with a manual
// reader and reports totals when the run finishes.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// MeterSetup owns the meter provider for one CLI invocation.
type MeterSetup struct {
	provider *sdkmetric.MeterProvider
	reader   *sdkmetric.ManualReader
}

// SetupMetrics installs a manual-reader meter provider as the global
// OTel provider. Call before constructing any instrumented component so
// instruments bind to this provider instead of the no-op default.
func SetupMetrics() *MeterSetup {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)
	return &MeterSetup{provider: provider, reader: reader}
}

// Collect drains the metrics aggregated so far.
func (m *MeterSetup) Collect(ctx context.Context) (metricdata.ResourceMetrics, error) {
	var rm metricdata.ResourceMetrics
	err := m.reader.Collect(ctx, &rm)
	return rm, err
}

// Shutdown flushes and stops the provider.
func (m *MeterSetup) Shutdown(ctx context.Context) error {
	return m.provider.Shutdown(ctx)
}

// CounterTotals flattens int64 counter sums by instrument name, summing
// across attribute sets.
func CounterTotals(rm metricdata.ResourceMetrics) map[string]int64 {
	totals := make(map[string]int64)
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, point := range sum.DataPoints {
				totals[m.Name] += point.Value
			}
		}
	}
	return totals
}
