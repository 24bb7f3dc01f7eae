package service

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName identifies this module's meter.
const meterName = "catalogboost/orchestrator"

// EnhancementMetrics holds OTEL instruments for batch processing.
type EnhancementMetrics struct {
	chunksProcessedTotal metric.Int64Counter
	itemsProcessedTotal  metric.Int64Counter
	tokensUsedTotal      metric.Int64Counter
	streamEventsTotal    metric.Int64Counter
}

// NewEnhancementMetrics initializes OTEL metrics for the orchestrator.
func NewEnhancementMetrics() (*EnhancementMetrics, error) {
	meter := otel.Meter(meterName)

	chunksProcessed, err := meter.Int64Counter(
		"enhancement_chunks_processed_total",
		metric.WithDescription("Total number of processed chunks"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create chunks processed counter: %w", err)
	}

	itemsProcessed, err := meter.Int64Counter(
		"enhancement_items_processed_total",
		metric.WithDescription("Total number of processed items by outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create items processed counter: %w", err)
	}

	tokensUsed, err := meter.Int64Counter(
		"enhancement_tokens_used_total",
		metric.WithDescription("Total tokens consumed as reported by the service"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create tokens used counter: %w", err)
	}

	streamEvents, err := meter.Int64Counter(
		"enhancement_stream_events_total",
		metric.WithDescription("Total stream events received by name"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create stream events counter: %w", err)
	}

	return &EnhancementMetrics{
		chunksProcessedTotal: chunksProcessed,
		itemsProcessedTotal:  itemsProcessed,
		tokensUsedTotal:      tokensUsed,
		streamEventsTotal:    streamEvents,
	}, nil
}

// RecordChunk records one completed chunk call and its item outcomes.
func (m *EnhancementMetrics) RecordChunk(ctx context.Context, succeeded, failed int) {
	if m == nil {
		return
	}
	m.chunksProcessedTotal.Add(ctx, 1)
	m.itemsProcessedTotal.Add(ctx, int64(succeeded), metric.WithAttributes(attribute.String("status", "completed")))
	m.itemsProcessedTotal.Add(ctx, int64(failed), metric.WithAttributes(attribute.String("status", "failed")))
}

// RecordTokens records server-reported token consumption.
func (m *EnhancementMetrics) RecordTokens(ctx context.Context, tokens int) {
	if m == nil || tokens <= 0 {
		return
	}
	m.tokensUsedTotal.Add(ctx, int64(tokens))
}

// RecordStreamEvent records one received stream event by name.
func (m *EnhancementMetrics) RecordStreamEvent(ctx context.Context, event string) {
	if m == nil {
		return
	}
	m.streamEventsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("event", event)))
}
