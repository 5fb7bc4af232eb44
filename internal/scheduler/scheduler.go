// Package scheduler drives the aggregation and detection loops on
// independent fixed intervals for the process lifetime.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/kiranshivaraju/pulsehound/internal/aggregate"
	"github.com/kiranshivaraju/pulsehound/internal/ai"
	"github.com/kiranshivaraju/pulsehound/internal/detect"
	"github.com/kiranshivaraju/pulsehound/internal/dispatch"
	"github.com/kiranshivaraju/pulsehound/internal/metrics"
	"github.com/kiranshivaraju/pulsehound/internal/snapshot"
)

// Scheduler owns the two pipeline loops. The snapshot store is their only
// shared state; the detector reading a snapshot up to one aggregation
// interval old is accepted.
type Scheduler struct {
	aggregator *aggregate.Aggregator
	snapshots  *snapshot.Store
	cooldown   *detect.Cooldown
	dispatcher *dispatch.Dispatcher

	aggregationInterval time.Duration
	detectionInterval   time.Duration
	historySnapshots    int
}

// New wires a Scheduler from its collaborators.
func New(
	agg *aggregate.Aggregator,
	snaps *snapshot.Store,
	cooldown *detect.Cooldown,
	disp *dispatch.Dispatcher,
	aggregationInterval, detectionInterval time.Duration,
	historySnapshots int,
) *Scheduler {
	return &Scheduler{
		aggregator:          agg,
		snapshots:           snaps,
		cooldown:            cooldown,
		dispatcher:          disp,
		aggregationInterval: aggregationInterval,
		detectionInterval:   detectionInterval,
		historySnapshots:    historySnapshots,
	}
}

// Run blocks until ctx is cancelled. Both loops fire immediately at
// startup, then on their fixed intervals. A failed cycle is logged and
// abandoned; the fixed interval is the retry policy.
func (s *Scheduler) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		s.loop(ctx, s.aggregationInterval, metrics.CycleAggregation, s.aggregationCycle)
	}()
	go func() {
		defer wg.Done()
		s.loop(ctx, s.detectionInterval, metrics.CycleDetection, s.detectionCycle)
	}()

	wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context, interval time.Duration, kind string, cycle func(context.Context) error) {
	run := func() {
		err := cycle(ctx)
		metrics.ObserveCycle(kind, err)
		if err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("cycle failed", "kind", kind, "error", err)
		}
	}

	run()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			run()
		case <-ctx.Done():
			return
		}
	}
}

func (s *Scheduler) aggregationCycle(ctx context.Context) error {
	_, err := s.aggregator.Run(ctx)
	return err
}

// detectionCycle is one pass of the detection state machine: load history,
// detect, consult the cooldown governor, dispatch. Every branch returns to
// idle; nothing here is fatal to the process.
func (s *Scheduler) detectionCycle(ctx context.Context) error {
	recent, err := s.snapshots.GetRecent(ctx, s.historySnapshots+1)
	if err != nil {
		return err
	}
	if len(recent) == 0 {
		slog.Debug("detection skipped, no snapshots yet")
		return nil
	}

	current := recent[len(recent)-1]
	history := recent[:len(recent)-1]

	anomaly := detect.Detect(history, current)
	if anomaly == nil {
		return nil
	}

	metrics.ObserveAnomaly(string(anomaly.Metric), string(anomaly.Severity))
	slog.Info("anomaly detected",
		"metric", anomaly.Metric,
		"severity", anomaly.Severity,
		"current", anomaly.CurrentValue,
		"z_score", anomaly.ZScore,
	)

	if s.cooldown.ShouldSuppress(anomaly.Metric, anomaly.Severity) {
		metrics.ObserveSuppressed()
		slog.Info("anomaly suppressed by cooldown", "metric", anomaly.Metric, "severity", anomaly.Severity)
		return nil
	}

	rec, err := s.dispatcher.Dispatch(ctx, *anomaly, current)
	if err != nil {
		// Provider failures still consume the cooldown slot so a
		// persistently failing provider is not retried every cycle.
		// Context-fetch failures do not: the next cycle retries them.
		if isProviderFailure(err) {
			s.cooldown.MarkDispatched(anomaly.Metric, anomaly.Severity)
		}
		return err
	}

	s.cooldown.MarkDispatched(anomaly.Metric, anomaly.Severity)
	slog.Info("root-cause analysis dispatched",
		"record_id", rec.ID,
		"provider", rec.Provider,
		"metric", rec.Metric,
		"severity", rec.Severity,
	)
	return nil
}

func isProviderFailure(err error) bool {
	return errors.Is(err, ai.ErrNoProviders) ||
		errors.Is(err, ai.ErrProviderUnavailable) ||
		errors.Is(err, ai.ErrInferenceTimeout) ||
		errors.Is(err, ai.ErrInvalidResponse)
}
