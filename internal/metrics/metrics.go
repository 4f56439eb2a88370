// Package metrics is the single metrics system for this process
// (spec.md §9 warns against duplication — otel/trace is deliberately
// not wired here; see DESIGN.md). Counters/histograms are collected via
// a manual reader and exported as periodic slog snapshots rather than
// pushed over OTLP, since no OTLP metrics exporter exists in the
// reference corpus (only trace exporters do).
package metrics

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// Metrics holds the instruments spec.md §9 names: tool invocations (by
// name, status), HTTP request duration (by endpoint, identity), cache
// hits/misses, listener re-registrations, AFK transitions.
type Metrics struct {
	reader *sdkmetric.ManualReader

	ToolInvocations    metric.Int64Counter
	HTTPRequestSeconds metric.Float64Histogram
	CacheHits          metric.Int64Counter
	CacheMisses        metric.Int64Counter
	ListenerReregs     metric.Int64Counter
	AFKTransitions     metric.Int64Counter
}

// New builds the meter provider, instruments, and manual reader.
func New() (*Metrics, error) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	meter := provider.Meter("zulip-mcp")

	toolInvocations, err := meter.Int64Counter("tool_invocations_total",
		metric.WithDescription("Tool calls by name and status"))
	if err != nil {
		return nil, err
	}
	httpSeconds, err := meter.Float64Histogram("http_request_duration_seconds",
		metric.WithDescription("Zulip REST request duration by endpoint and identity"))
	if err != nil {
		return nil, err
	}
	cacheHits, err := meter.Int64Counter("cache_hits_total")
	if err != nil {
		return nil, err
	}
	cacheMisses, err := meter.Int64Counter("cache_misses_total")
	if err != nil {
		return nil, err
	}
	listenerReregs, err := meter.Int64Counter("listener_reregistrations_total")
	if err != nil {
		return nil, err
	}
	afkTransitions, err := meter.Int64Counter("afk_transitions_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		reader:             reader,
		ToolInvocations:    toolInvocations,
		HTTPRequestSeconds: httpSeconds,
		CacheHits:          cacheHits,
		CacheMisses:        cacheMisses,
		ListenerReregs:     listenerReregs,
		AFKTransitions:     afkTransitions,
	}, nil
}

// RunSnapshotLoop periodically collects the manual reader and logs a
// summary, the process's only metrics export path.
func (m *Metrics) RunSnapshotLoop(ctx context.Context, interval time.Duration, log *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.logSnapshot(ctx, log)
		}
	}
}

func (m *Metrics) logSnapshot(ctx context.Context, log *slog.Logger) {
	var rm metricdata.ResourceMetrics
	if err := m.reader.Collect(ctx, &rm); err != nil {
		log.Error("metrics: collect failed", "error", err)
		return
	}
	count := 0
	for _, sm := range rm.ScopeMetrics {
		count += len(sm.Metrics)
	}
	log.Info("metrics: snapshot", "scope_metric_count", count)
}
