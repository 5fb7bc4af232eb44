// Package dispatch turns a non-suppressed anomaly into a persisted,
// published root-cause analysis.
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/pulsehound/internal/ai"
	"github.com/kiranshivaraju/pulsehound/internal/cache"
	"github.com/kiranshivaraju/pulsehound/internal/metrics"
	"github.com/kiranshivaraju/pulsehound/internal/notify"
	"github.com/kiranshivaraju/pulsehound/internal/store"
	"github.com/kiranshivaraju/pulsehound/pkg/models"
)

// Dispatcher runs the root-cause flow for one anomaly: fetch supporting
// context, invoke the provider chain, persist the record, notify.
type Dispatcher struct {
	store     store.Store
	cache     cache.Cache
	providers []models.AIProvider
	notifier  notify.Notifier

	lookbackMinutes  int
	maxContextLines  int
	analysisTTL      time.Duration
	inferenceTimeout time.Duration

	now func() time.Time
}

// Options configures a Dispatcher.
type Options struct {
	LookbackMinutes  int
	MaxContextLines  int
	AnalysisTTL      time.Duration
	InferenceTimeout time.Duration
}

// New creates a Dispatcher. The provider slice is tried in order; an empty
// slice means every dispatch aborts with ErrNoProviders.
func New(st store.Store, ca cache.Cache, providers []models.AIProvider, notifier notify.Notifier, opts Options) *Dispatcher {
	return &Dispatcher{
		store:            st,
		cache:            ca,
		providers:        providers,
		notifier:         notifier,
		lookbackMinutes:  opts.LookbackMinutes,
		maxContextLines:  opts.MaxContextLines,
		analysisTTL:      opts.AnalysisTTL,
		inferenceTimeout: opts.InferenceTimeout,
		now:              time.Now,
	}
}

// Dispatch executes the root-cause flow and returns the persisted record.
// Returns an error without a record when context cannot be fetched or every
// provider fails; the caller decides whether to mark the cooldown (it
// should, to avoid hot-looping on a persistently failing provider).
//
// A permanent-store write failure after the fast-store write succeeded is
// logged and tolerated: the record is still usable downstream. A
// notification failure is logged and never propagated.
func (d *Dispatcher) Dispatch(ctx context.Context, anomaly models.Anomaly, snap *models.Snapshot) (*models.AnalysisRecord, error) {
	logs, err := d.store.RecentErrorLogs(ctx, d.lookbackMinutes, d.maxContextLines)
	if err != nil {
		return nil, fmt.Errorf("fetching error logs: %w", err)
	}
	spans, err := d.store.RecentFailedSpans(ctx, d.lookbackMinutes, d.maxContextLines)
	if err != nil {
		return nil, fmt.Errorf("fetching failed spans: %w", err)
	}

	prompt := BuildPrompt(anomaly, snap, logs, spans)

	started := d.now()
	analysis, provider, err := d.analyze(ctx, prompt)
	if err != nil {
		return nil, err
	}
	metrics.ObserveAnalysis(d.now().Sub(started))

	rec := &models.AnalysisRecord{
		ID:        uuid.New(),
		Provider:  provider,
		Metric:    anomaly.Metric,
		Severity:  anomaly.Severity,
		Message:   anomaly.Message,
		Analysis:  analysis,
		CreatedAt: d.now().UTC(),
	}

	if err := d.persist(ctx, rec); err != nil {
		return nil, err
	}

	if err := d.notifier.Publish(ctx, notify.NewPayload(anomaly, rec)); err != nil {
		slog.Error("notification publish failed", "error", err, "record_id", rec.ID)
	}

	return rec, nil
}

// analyze tries each provider in order under the inference timeout and
// returns the first successful narrative plus the provider name.
func (d *Dispatcher) analyze(ctx context.Context, prompt string) (string, string, error) {
	if len(d.providers) == 0 {
		return "", "", ai.ErrNoProviders
	}

	var errs []error
	for _, p := range d.providers {
		analysisCtx, cancel := context.WithTimeout(ctx, d.inferenceTimeout)
		text, err := p.Analyze(analysisCtx, prompt)
		cancel()
		if err == nil {
			return text, p.Name(), nil
		}
		slog.Warn("ai provider failed, trying next", "provider", p.Name(), "error", err)
		errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
	}

	return "", "", fmt.Errorf("all providers failed: %w", errors.Join(errs...))
}

// persist writes the record to the fast store with a short TTL, then to the
// permanent store. The fast-store write is authoritative for the cycle; a
// permanent-store failure is logged as critical but not rolled back.
func (d *Dispatcher) persist(ctx context.Context, rec *models.AnalysisRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal analysis record: %w", err)
	}
	if err := d.cache.Set(ctx, cache.AnalysisKey(rec.ID), data, d.analysisTTL); err != nil {
		return fmt.Errorf("cache analysis record: %w", err)
	}

	if err := d.store.CreateAnalysisRecord(ctx, rec); err != nil {
		slog.Error("permanent store write failed, record kept in fast store only",
			"error", err, "record_id", rec.ID)
	}
	return nil
}
