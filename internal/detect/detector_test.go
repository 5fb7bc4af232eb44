package detect

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/kiranshivaraju/pulsehound/pkg/models"
)

// steadySnapshot builds a snapshot with a single service at the given error
// rate (out of 100 requests), P95 latency and total request volume.
func steadySnapshot(errCount int64, p95 float64, volume int64) *models.Snapshot {
	return &models.Snapshot{
		Timestamp:     time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		WindowMinutes: 15,
		Services: []models.ServiceMetrics{
			{
				Service:      "checkout",
				RequestCount: 100,
				ErrorCount:   errCount,
				P95LatencyMs: p95,
			},
		},
		RequestVolume: models.RequestVolume{Total: volume},
	}
}

func repeatSnapshots(n int, errCount int64, p95 float64, volume int64) []*models.Snapshot {
	out := make([]*models.Snapshot, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, steadySnapshot(errCount, p95, volume))
	}
	return out
}

func TestDetectInsufficientHistory(t *testing.T) {
	// Two snapshots are below the floor; even an extreme current snapshot
	// must not trigger.
	history := repeatSnapshots(2, 1, 200, 1000)
	current := steadySnapshot(90, 5000, 10)

	if got := Detect(history, current); got != nil {
		t.Fatalf("expected nil with %d history snapshots, got %+v", len(history), got)
	}
}

func TestDetectNilCurrent(t *testing.T) {
	history := repeatSnapshots(5, 1, 200, 1000)
	if got := Detect(history, nil); got != nil {
		t.Fatalf("expected nil for nil current, got %+v", got)
	}
}

func TestDetectNominalTraffic(t *testing.T) {
	history := repeatSnapshots(5, 1, 200, 1000)
	current := steadySnapshot(1, 200, 1000)

	if got := Detect(history, current); got != nil {
		t.Fatalf("expected nil for steady traffic, got %+v", got)
	}
}

func TestDetectErrorRateFloorOnFlatBaseline(t *testing.T) {
	// A perfectly flat baseline has zero stddev, so the z-score is defined
	// as zero and only the absolute floor can trigger.
	history := repeatSnapshots(4, 2, 200, 1000)
	current := steadySnapshot(8, 200, 1000)

	got := Detect(history, current)
	if got == nil {
		t.Fatal("expected error-rate anomaly above the 5% floor")
	}
	if got.Metric != models.MetricErrorRate {
		t.Fatalf("metric = %q, want %q", got.Metric, models.MetricErrorRate)
	}
	if got.ZScore != 0 {
		t.Fatalf("z-score on flat baseline = %v, want 0", got.ZScore)
	}
	if got.Severity != models.SeverityMedium {
		t.Fatalf("severity = %q, want %q", got.Severity, models.SeverityMedium)
	}
	if !strings.Contains(got.Message, "8.00%") {
		t.Fatalf("message %q should contain the current rate 8.00%%", got.Message)
	}
	// With zero stddev the expected range collapses to the mean.
	if got.ExpectedRange.Min != got.ExpectedRange.Max {
		t.Fatalf("expected range should collapse on flat baseline, got %+v", got.ExpectedRange)
	}
}

func TestDetectErrorRateSeverityLadder(t *testing.T) {
	tests := []struct {
		name     string
		errCount int64
		want     models.Severity
	}{
		{name: "medium just above floor", errCount: 8, want: models.SeverityMedium},
		{name: "high above 10 percent", errCount: 12, want: models.SeverityHigh},
		{name: "critical above 20 percent", errCount: 25, want: models.SeverityCritical},
	}

	history := repeatSnapshots(4, 2, 200, 1000)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Detect(history, steadySnapshot(tt.errCount, 200, 1000))
			if got == nil {
				t.Fatal("expected an anomaly")
			}
			if got.Severity != tt.want {
				t.Fatalf("severity = %q, want %q", got.Severity, tt.want)
			}
		})
	}
}

func TestDetectErrorRateZScoreCritical(t *testing.T) {
	// Baseline samples [1,3,1,3] have mean 2 and population stddev 1. A
	// current rate of 6% sits four deviations out, well past critical.
	history := []*models.Snapshot{
		steadySnapshot(1, 200, 1000),
		steadySnapshot(3, 200, 1000),
		steadySnapshot(1, 200, 1000),
		steadySnapshot(3, 200, 1000),
	}
	current := steadySnapshot(6, 200, 1000)

	got := Detect(history, current)
	if got == nil {
		t.Fatal("expected error-rate anomaly")
	}
	if math.Abs(got.ZScore-4) > 1e-9 {
		t.Fatalf("z-score = %v, want 4", got.ZScore)
	}
	if got.Severity != models.SeverityCritical {
		t.Fatalf("severity = %q, want critical for |z| > 3", got.Severity)
	}
	// Expected range is mean +/- 2 stddev.
	if got.ExpectedRange.Min != 0 || got.ExpectedRange.Max != 4 {
		t.Fatalf("expected range = %+v, want [0, 4]", got.ExpectedRange)
	}
}

func TestDetectPriorityErrorRateWins(t *testing.T) {
	// Both error rate and latency are extreme; only the first metric in
	// priority order is reported.
	history := repeatSnapshots(4, 1, 200, 1000)
	current := steadySnapshot(30, 3000, 1000)

	got := Detect(history, current)
	if got == nil {
		t.Fatal("expected an anomaly")
	}
	if got.Metric != models.MetricErrorRate {
		t.Fatalf("metric = %q, want error rate to win priority", got.Metric)
	}
}

func TestDetectLatencyFloor(t *testing.T) {
	history := repeatSnapshots(4, 1, 200, 1000)
	current := steadySnapshot(1, 2500, 1000)

	got := Detect(history, current)
	if got == nil {
		t.Fatal("expected latency anomaly above the 1000ms floor")
	}
	if got.Metric != models.MetricLatency {
		t.Fatalf("metric = %q, want %q", got.Metric, models.MetricLatency)
	}
	if got.Severity != models.SeverityCritical {
		t.Fatalf("severity = %q, want critical above 2000ms", got.Severity)
	}
	if got.CurrentValue != 2500 {
		t.Fatalf("current value = %v, want 2500", got.CurrentValue)
	}
}

func TestDetectLatencyIsMeanOfPerServiceP95(t *testing.T) {
	history := repeatSnapshots(4, 1, 200, 1000)
	current := &models.Snapshot{
		Services: []models.ServiceMetrics{
			{Service: "checkout", RequestCount: 100, P95LatencyMs: 3000},
			{Service: "search", RequestCount: 100, P95LatencyMs: 1000},
		},
		RequestVolume: models.RequestVolume{Total: 1000},
	}

	got := Detect(history, current)
	if got == nil {
		t.Fatal("expected latency anomaly")
	}
	if got.CurrentValue != 2000 {
		t.Fatalf("current value = %v, want mean of per-service P95s (2000)", got.CurrentValue)
	}
}

func TestDetectVolumeDrop(t *testing.T) {
	history := []*models.Snapshot{
		steadySnapshot(1, 200, 1000),
		steadySnapshot(1, 200, 1010),
		steadySnapshot(1, 200, 990),
		steadySnapshot(1, 200, 1000),
	}
	current := steadySnapshot(1, 200, 900)

	got := Detect(history, current)
	if got == nil {
		t.Fatal("expected volume anomaly")
	}
	if got.Metric != models.MetricRequestVolume {
		t.Fatalf("metric = %q, want %q", got.Metric, models.MetricRequestVolume)
	}
	if got.ZScore >= 0 {
		t.Fatalf("z-score = %v, want negative for a drop", got.ZScore)
	}
	if !strings.Contains(got.Message, "drop") {
		t.Fatalf("message %q should say drop", got.Message)
	}
	if got.Severity != models.SeverityCritical {
		t.Fatalf("severity = %q, want critical for |z| > 3.5", got.Severity)
	}
}

func TestDetectVolumeHasNoAbsoluteFloor(t *testing.T) {
	// A flat volume baseline means zero stddev, z=0, and no trigger no
	// matter how large the absolute swing is.
	history := repeatSnapshots(4, 1, 200, 1000)
	current := steadySnapshot(1, 200, 50000)

	if got := Detect(history, current); got != nil {
		t.Fatalf("expected nil, volume has no absolute floor, got %+v", got)
	}
}

func TestMeanStddevPopulation(t *testing.T) {
	tests := []struct {
		name       string
		samples    []float64
		wantMean   float64
		wantStddev float64
	}{
		{name: "empty", samples: nil, wantMean: 0, wantStddev: 0},
		{name: "single sample", samples: []float64{5}, wantMean: 5, wantStddev: 0},
		{name: "uniform", samples: []float64{3, 3, 3}, wantMean: 3, wantStddev: 0},
		// Population stddev divides by N: sqrt(((2-4)^2+(4-4)^2+(6-4)^2)/3).
		{name: "spread", samples: []float64{2, 4, 6}, wantMean: 4, wantStddev: math.Sqrt(8.0 / 3.0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, sd := meanStddev(tt.samples)
			if math.Abs(m-tt.wantMean) > 1e-9 {
				t.Errorf("mean = %v, want %v", m, tt.wantMean)
			}
			if math.Abs(sd-tt.wantStddev) > 1e-9 {
				t.Errorf("stddev = %v, want %v", sd, tt.wantStddev)
			}
		})
	}
}

func TestZScoreSymmetry(t *testing.T) {
	up := zScore(130, 100, 10)
	down := zScore(70, 100, 10)
	if up != 3 || down != -3 {
		t.Fatalf("z-scores = %v, %v; want symmetric 3, -3", up, down)
	}
}
