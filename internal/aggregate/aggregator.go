// Package aggregate rolls raw telemetry into windowed summary snapshots.
package aggregate

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/kiranshivaraju/pulsehound/internal/snapshot"
	"github.com/kiranshivaraju/pulsehound/internal/store"
	"github.com/kiranshivaraju/pulsehound/pkg/models"
)

// Fixed thresholds for the cheap spike pre-flags embedded in snapshots.
// These feed dashboards only; the statistical detector is the authoritative
// trigger for downstream analysis.
const (
	spikeErrorRatePercent = 5.0
	spikeP95LatencyMs     = 1000.0
	spikeCPUPercent       = 80.0
	spikeMemoryPercent    = 85.0

	// slowEndpointP95Ms ranks operations into the snapshot's slow list.
	slowEndpointP95Ms = 1000.0
)

// Aggregator builds one snapshot per cycle from the raw telemetry store
// and persists it to the snapshot store.
type Aggregator struct {
	store     store.Store
	snapshots *snapshot.Store

	windowMinutes int
	snapshotTTL   time.Duration

	now func() time.Time
}

// New creates an Aggregator summarizing the trailing windowMinutes.
func New(st store.Store, snaps *snapshot.Store, windowMinutes int, snapshotTTL time.Duration) *Aggregator {
	return &Aggregator{
		store:         st,
		snapshots:     snaps,
		windowMinutes: windowMinutes,
		snapshotTTL:   snapshotTTL,
		now:           time.Now,
	}
}

// Run executes one aggregation cycle: query the raw store, assemble a
// snapshot, persist it. Any failed query aborts the cycle before anything
// is written; the next scheduled cycle retries independently.
func (a *Aggregator) Run(ctx context.Context) (*models.Snapshot, error) {
	logCounts, err := a.store.LogCounts(ctx, a.windowMinutes)
	if err != nil {
		return nil, fmt.Errorf("aggregate logs: %w", err)
	}
	serviceMetrics, err := a.store.ServiceMetrics(ctx, a.windowMinutes)
	if err != nil {
		return nil, fmt.Errorf("aggregate metrics: %w", err)
	}
	operationTraces, err := a.store.OperationTraces(ctx, a.windowMinutes)
	if err != nil {
		return nil, fmt.Errorf("aggregate traces: %w", err)
	}

	snap := a.build(logCounts, serviceMetrics, operationTraces)

	if err := a.snapshots.Put(ctx, snap, a.snapshotTTL); err != nil {
		return nil, fmt.Errorf("persist snapshot: %w", err)
	}

	slog.Info("aggregation cycle complete",
		"timestamp", snap.Timestamp,
		"services", len(snap.Services),
		"operations", len(snap.Operations),
		"log_total", snap.Logs.Total,
		"request_total", snap.RequestVolume.Total,
		"spikes", len(snap.Spikes),
	)
	return snap, nil
}

func (a *Aggregator) build(logCounts []models.LogLevelCount, serviceMetrics []models.ServiceMetrics, operationTraces []models.OperationTrace) *models.Snapshot {
	snap := &models.Snapshot{
		Timestamp:     a.now().UTC().Truncate(time.Second),
		WindowMinutes: a.windowMinutes,
		Logs:          summarizeLogs(logCounts),
		Services:      serviceMetrics,
		Operations:    operationTraces,
		SlowEndpoints: slowEndpoints(operationTraces),
		RequestVolume: requestVolume(serviceMetrics),
	}
	snap.Spikes = detectSpikes(serviceMetrics)
	return snap
}

func summarizeLogs(counts []models.LogLevelCount) models.LogsSummary {
	sum := models.LogsSummary{
		ByLevel:   make(map[string]int64),
		ByService: make(map[string]int64),
	}
	for _, c := range counts {
		sum.Total += c.Count
		sum.ByLevel[c.Level] += c.Count
		sum.ByService[c.Service] += c.Count
		switch strings.ToLower(c.Level) {
		case "error", "critical", "fatal":
			sum.Errors += c.Count
		}
	}
	return sum
}

func requestVolume(metrics []models.ServiceMetrics) models.RequestVolume {
	vol := models.RequestVolume{ByService: make(map[string]int64)}
	for _, m := range metrics {
		vol.Total += m.RequestCount
		vol.ByService[m.Service] = m.RequestCount
	}
	return vol
}

// slowEndpoints returns operations whose P95 exceeds the fixed threshold,
// ranked by P95 descending.
func slowEndpoints(traces []models.OperationTrace) []models.SlowEndpoint {
	var slow []models.SlowEndpoint
	for _, t := range traces {
		if t.P95DurationMs > slowEndpointP95Ms {
			slow = append(slow, models.SlowEndpoint{
				Service:       t.Service,
				Operation:     t.Operation,
				P95DurationMs: t.P95DurationMs,
				TraceCount:    t.TraceCount,
			})
		}
	}
	sort.Slice(slow, func(i, j int) bool {
		return slow[i].P95DurationMs > slow[j].P95DurationMs
	})
	return slow
}

func detectSpikes(metrics []models.ServiceMetrics) []models.Spike {
	var spikes []models.Spike
	for _, m := range metrics {
		if rate := m.ErrorRatePercent(); rate > spikeErrorRatePercent {
			spikes = append(spikes, models.Spike{Kind: "error_rate", Service: m.Service, Value: rate, Threshold: spikeErrorRatePercent})
		}
		if m.P95LatencyMs > spikeP95LatencyMs {
			spikes = append(spikes, models.Spike{Kind: "latency", Service: m.Service, Value: m.P95LatencyMs, Threshold: spikeP95LatencyMs})
		}
		if m.AvgCPUPercent > spikeCPUPercent {
			spikes = append(spikes, models.Spike{Kind: "cpu", Service: m.Service, Value: m.AvgCPUPercent, Threshold: spikeCPUPercent})
		}
		if m.AvgMemoryPercent > spikeMemoryPercent {
			spikes = append(spikes, models.Spike{Kind: "memory", Service: m.Service, Value: m.AvgMemoryPercent, Threshold: spikeMemoryPercent})
		}
	}
	return spikes
}
