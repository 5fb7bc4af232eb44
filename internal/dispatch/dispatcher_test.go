package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiranshivaraju/pulsehound/internal/ai"
	"github.com/kiranshivaraju/pulsehound/internal/ai/mock"
	"github.com/kiranshivaraju/pulsehound/internal/cache"
	"github.com/kiranshivaraju/pulsehound/internal/notify"
	"github.com/kiranshivaraju/pulsehound/internal/store"
	"github.com/kiranshivaraju/pulsehound/pkg/models"
)

type fakeStore struct {
	logs  []models.ErrorLogLine
	spans []models.TraceSample

	logErr    error
	createErr error
	created   []*models.AnalysisRecord
}

var _ store.Store = (*fakeStore)(nil)

func (f *fakeStore) Ping(context.Context) error { return nil }

func (f *fakeStore) LogCounts(context.Context, int) ([]models.LogLevelCount, error) {
	return nil, nil
}

func (f *fakeStore) ServiceMetrics(context.Context, int) ([]models.ServiceMetrics, error) {
	return nil, nil
}

func (f *fakeStore) OperationTraces(context.Context, int) ([]models.OperationTrace, error) {
	return nil, nil
}

func (f *fakeStore) RecentErrorLogs(context.Context, int, int) ([]models.ErrorLogLine, error) {
	return f.logs, f.logErr
}

func (f *fakeStore) RecentFailedSpans(context.Context, int, int) ([]models.TraceSample, error) {
	return f.spans, nil
}

func (f *fakeStore) CreateAnalysisRecord(_ context.Context, rec *models.AnalysisRecord) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, rec)
	return nil
}

func (f *fakeStore) ListAnalysisRecords(context.Context, int) ([]*models.AnalysisRecord, error) {
	return f.created, nil
}

type memCache struct {
	data   map[string][]byte
	setErr error
}

var _ cache.Cache = (*memCache)(nil)

func newMemCache() *memCache { return &memCache{data: make(map[string][]byte)} }

func (m *memCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	if m.setErr != nil {
		return m.setErr
	}
	m.data[key] = value
	return nil
}

func (m *memCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memCache) Delete(_ context.Context, key string) error {
	delete(m.data, key)
	return nil
}

func (m *memCache) Keys(context.Context, string) ([]string, error) { return nil, nil }
func (m *memCache) Ping(context.Context) error                     { return nil }

type captureNotifier struct {
	payloads []notify.Payload
	err      error
}

func (c *captureNotifier) Publish(_ context.Context, p notify.Payload) error {
	if c.err != nil {
		return c.err
	}
	c.payloads = append(c.payloads, p)
	return nil
}

func (c *captureNotifier) Close() error { return nil }

func testOptions() Options {
	return Options{
		LookbackMinutes:  30,
		MaxContextLines:  100,
		AnalysisTTL:      time.Hour,
		InferenceTimeout: 5 * time.Second,
	}
}

func testAnomaly() models.Anomaly {
	return models.Anomaly{
		Metric:       models.MetricErrorRate,
		CurrentValue: 12.5,
		ZScore:       3.1,
		Severity:     models.SeverityHigh,
		Message:      "Error rate at 12.50% (baseline mean 2.00%, z=3.10)",
	}
}

func TestDispatchHappyPath(t *testing.T) {
	fs := &fakeStore{}
	mc := newMemCache()
	cn := &captureNotifier{}
	provider := mock.NewMockProvider()

	d := New(fs, mc, []models.AIProvider{provider}, cn, testOptions())

	rec, err := d.Dispatch(context.Background(), testAnomaly(), &models.Snapshot{})
	require.NoError(t, err)
	require.NotNil(t, rec)

	assert.Equal(t, "mock", rec.Provider)
	assert.Equal(t, models.MetricErrorRate, rec.Metric)
	assert.Equal(t, models.SeverityHigh, rec.Severity)
	assert.NotEmpty(t, rec.Analysis)
	assert.False(t, rec.CreatedAt.IsZero())

	// Persisted to both stores.
	require.Len(t, fs.created, 1)
	cached, ok := mc.data[cache.AnalysisKey(rec.ID)]
	require.True(t, ok, "record should be in the fast store")
	var roundTrip models.AnalysisRecord
	require.NoError(t, json.Unmarshal(cached, &roundTrip))
	assert.Equal(t, rec.ID, roundTrip.ID)
	assert.Equal(t, rec.Analysis, roundTrip.Analysis)

	// Notification carries the anomaly and analysis.
	require.Len(t, cn.payloads, 1)
	p := cn.payloads[0]
	assert.Equal(t, notify.TypeAnomalyDetected, p.Type)
	assert.Equal(t, models.SeverityHigh, p.Severity)
	assert.Equal(t, rec.Analysis, p.Analysis)
	assert.Equal(t, "mock", p.Provider)
}

func TestDispatchFallsBackToSecondProvider(t *testing.T) {
	fs := &fakeStore{}
	failing := mock.NewFailingProvider(ai.ErrProviderUnavailable)
	working := mock.NewMockProvider()

	d := New(fs, newMemCache(), []models.AIProvider{failing, working}, &captureNotifier{}, testOptions())

	rec, err := d.Dispatch(context.Background(), testAnomaly(), &models.Snapshot{})
	require.NoError(t, err)
	assert.Equal(t, "mock", rec.Provider)
	assert.Len(t, failing.Calls, 1, "primary must be tried first")
	assert.Len(t, working.Calls, 1)
}

func TestDispatchAllProvidersFail(t *testing.T) {
	fs := &fakeStore{}
	p1 := mock.NewFailingProvider(ai.ErrInferenceTimeout)
	p2 := mock.NewFailingProvider(ai.ErrProviderUnavailable)
	cn := &captureNotifier{}

	d := New(fs, newMemCache(), []models.AIProvider{p1, p2}, cn, testOptions())

	rec, err := d.Dispatch(context.Background(), testAnomaly(), &models.Snapshot{})
	require.Error(t, err)
	assert.Nil(t, rec)
	// Both underlying failures survive the join.
	assert.ErrorIs(t, err, ai.ErrInferenceTimeout)
	assert.ErrorIs(t, err, ai.ErrProviderUnavailable)
	assert.Empty(t, fs.created, "no record on total provider failure")
	assert.Empty(t, cn.payloads, "no notification on total provider failure")
}

func TestDispatchNoProviders(t *testing.T) {
	d := New(&fakeStore{}, newMemCache(), nil, &captureNotifier{}, testOptions())

	rec, err := d.Dispatch(context.Background(), testAnomaly(), &models.Snapshot{})
	require.ErrorIs(t, err, ai.ErrNoProviders)
	assert.Nil(t, rec)
}

func TestDispatchContextFetchFailure(t *testing.T) {
	fs := &fakeStore{logErr: errors.New("db down")}
	provider := mock.NewMockProvider()

	d := New(fs, newMemCache(), []models.AIProvider{provider}, &captureNotifier{}, testOptions())

	rec, err := d.Dispatch(context.Background(), testAnomaly(), &models.Snapshot{})
	require.Error(t, err)
	assert.Nil(t, rec)
	assert.Empty(t, provider.Calls, "provider must not be invoked without context")
}

func TestDispatchToleratesPermanentStoreFailure(t *testing.T) {
	fs := &fakeStore{createErr: errors.New("db down")}
	mc := newMemCache()
	cn := &captureNotifier{}

	d := New(fs, mc, []models.AIProvider{mock.NewMockProvider()}, cn, testOptions())

	rec, err := d.Dispatch(context.Background(), testAnomaly(), &models.Snapshot{})
	require.NoError(t, err, "fast-store write is authoritative for the cycle")
	require.NotNil(t, rec)
	_, ok := mc.data[cache.AnalysisKey(rec.ID)]
	assert.True(t, ok)
	require.Len(t, cn.payloads, 1, "notification still goes out")
}

func TestDispatchFailsOnFastStoreFailure(t *testing.T) {
	mc := newMemCache()
	mc.setErr = errors.New("redis down")
	cn := &captureNotifier{}

	d := New(&fakeStore{}, mc, []models.AIProvider{mock.NewMockProvider()}, cn, testOptions())

	rec, err := d.Dispatch(context.Background(), testAnomaly(), &models.Snapshot{})
	require.Error(t, err)
	assert.Nil(t, rec)
	assert.Empty(t, cn.payloads)
}

func TestDispatchSwallowsNotificationFailure(t *testing.T) {
	cn := &captureNotifier{err: errors.New("nats down")}

	d := New(&fakeStore{}, newMemCache(), []models.AIProvider{mock.NewMockProvider()}, cn, testOptions())

	rec, err := d.Dispatch(context.Background(), testAnomaly(), &models.Snapshot{})
	require.NoError(t, err, "notification failure must not fail the dispatch")
	assert.NotNil(t, rec)
}

func TestBuildPromptContainsContext(t *testing.T) {
	anomaly := testAnomaly()
	snap := &models.Snapshot{
		Timestamp:     time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		WindowMinutes: 15,
		Services: []models.ServiceMetrics{
			{Service: "checkout", RequestCount: 500, ErrorCount: 60, P95LatencyMs: 340},
		},
	}
	logs := []models.ErrorLogLine{
		{Timestamp: snap.Timestamp, Service: "checkout", Level: "error", Message: "payment gateway timeout"},
	}
	spans := []models.TraceSample{
		{Timestamp: snap.Timestamp, Service: "checkout", Operation: "POST /pay", DurationMs: 2100, StatusCode: 502},
	}

	prompt := BuildPrompt(anomaly, snap, logs, spans)

	assert.Contains(t, prompt, anomaly.Message)
	assert.Contains(t, prompt, "checkout")
	assert.Contains(t, prompt, "payment gateway timeout")
	assert.Contains(t, prompt, "POST /pay")
	assert.Contains(t, prompt, "status=502")
}

func TestBuildPromptTruncatesLongLogLines(t *testing.T) {
	long := strings.Repeat("x", 2000)
	logs := []models.ErrorLogLine{{Service: "checkout", Level: "error", Message: long}}

	prompt := BuildPrompt(testAnomaly(), nil, logs, nil)

	assert.NotContains(t, prompt, long)
	assert.Contains(t, prompt, strings.Repeat("x", maxLogMessageBytes))
}

func TestTruncateStringKeepsRunesIntact(t *testing.T) {
	s := "héllo wörld"
	got := truncateString(s, 3)
	// "h" is 1 byte, "é" is 2; cutting at 3 keeps both intact.
	assert.Equal(t, "hé", got)

	// Never splits a multi-byte rune.
	got = truncateString(s, 2)
	assert.Equal(t, "h", got)
}
