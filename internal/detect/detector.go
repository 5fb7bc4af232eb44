// Package detect compares the latest snapshot against the rolling baseline
// and decides whether an anomaly warrants root-cause analysis.
package detect

import (
	"fmt"
	"math"

	"github.com/kiranshivaraju/pulsehound/pkg/models"
)

// minHistory is the hard floor on baseline size. Below it no detection
// happens regardless of how extreme the current snapshot looks.
const minHistory = 3

// Absolute trigger floors, in the same units the snapshot carries.
const (
	errorRateFloorPercent = 5.0
	latencyFloorMs        = 1000.0
)

// Detect evaluates the current snapshot against history and returns at most
// one anomaly. Metrics are checked in fixed priority order (error rate,
// then latency, then request volume) and the first trigger wins; later
// metrics are not evaluated that cycle.
func Detect(history []*models.Snapshot, current *models.Snapshot) *models.Anomaly {
	if len(history) < minHistory || current == nil {
		return nil
	}

	if a := detectErrorRate(history, current); a != nil {
		return a
	}
	if a := detectLatency(history, current); a != nil {
		return a
	}
	return detectRequestVolume(history, current)
}

func detectErrorRate(history []*models.Snapshot, current *models.Snapshot) *models.Anomaly {
	var samples []float64
	for _, snap := range history {
		for _, svc := range snap.Services {
			samples = append(samples, svc.ErrorRatePercent())
		}
	}

	var totalErrors, totalRequests int64
	for _, svc := range current.Services {
		totalErrors += svc.ErrorCount
		totalRequests += svc.RequestCount
	}
	currentRate := 0.0
	if totalRequests > 0 {
		currentRate = float64(totalErrors) / float64(totalRequests) * 100
	}

	m, sd := meanStddev(samples)
	z := zScore(currentRate, m, sd)

	if math.Abs(z) <= 2 && currentRate <= errorRateFloorPercent {
		return nil
	}

	severity := models.SeverityMedium
	switch {
	case currentRate > 20 || math.Abs(z) > 3:
		severity = models.SeverityCritical
	case currentRate > 10 || math.Abs(z) > 2.5:
		severity = models.SeverityHigh
	}

	return &models.Anomaly{
		Metric:        models.MetricErrorRate,
		CurrentValue:  currentRate,
		ExpectedRange: expectedRange(m, sd, 2),
		ZScore:        z,
		Severity:      severity,
		Message: fmt.Sprintf("Error rate at %.2f%% (baseline mean %.2f%%, z=%.2f)",
			currentRate, m, z),
	}
}

func detectLatency(history []*models.Snapshot, current *models.Snapshot) *models.Anomaly {
	var samples []float64
	for _, snap := range history {
		for _, svc := range snap.Services {
			samples = append(samples, svc.P95LatencyMs)
		}
	}

	var currentP95 float64
	if len(current.Services) > 0 {
		for _, svc := range current.Services {
			currentP95 += svc.P95LatencyMs
		}
		currentP95 /= float64(len(current.Services))
	}

	m, sd := meanStddev(samples)
	z := zScore(currentP95, m, sd)

	if math.Abs(z) <= 2 && currentP95 <= latencyFloorMs {
		return nil
	}

	severity := models.SeverityMedium
	switch {
	case currentP95 > 2000 || math.Abs(z) > 3:
		severity = models.SeverityCritical
	case currentP95 > 1500 || math.Abs(z) > 2.5:
		severity = models.SeverityHigh
	}

	return &models.Anomaly{
		Metric:        models.MetricLatency,
		CurrentValue:  currentP95,
		ExpectedRange: expectedRange(m, sd, 2),
		ZScore:        z,
		Severity:      severity,
		Message: fmt.Sprintf("P95 latency at %.0fms (baseline mean %.0fms, z=%.2f)",
			currentP95, m, z),
	}
}

// detectRequestVolume has no absolute floor: a volume anomaly is relative
// only, and either direction (spike or drop) is reported.
func detectRequestVolume(history []*models.Snapshot, current *models.Snapshot) *models.Anomaly {
	var samples []float64
	for _, snap := range history {
		samples = append(samples, float64(snap.RequestVolume.Total))
	}

	currentVol := float64(current.RequestVolume.Total)
	m, sd := meanStddev(samples)
	z := zScore(currentVol, m, sd)

	if math.Abs(z) <= 2.5 {
		return nil
	}

	severity := models.SeverityMedium
	switch {
	case math.Abs(z) > 3.5:
		severity = models.SeverityCritical
	case math.Abs(z) > 3:
		severity = models.SeverityHigh
	}

	direction := "spike"
	if z < 0 {
		direction = "drop"
	}

	return &models.Anomaly{
		Metric:        models.MetricRequestVolume,
		CurrentValue:  currentVol,
		ExpectedRange: expectedRange(m, sd, 2.5),
		ZScore:        z,
		Severity:      severity,
		Message: fmt.Sprintf("Request volume %s: %.0f requests (baseline mean %.0f, z=%.2f)",
			direction, currentVol, m, z),
	}
}

// meanStddev returns the mean and population standard deviation
// (divide by N, not N-1) of samples.
func meanStddev(samples []float64) (float64, float64) {
	if len(samples) == 0 {
		return 0, 0
	}
	var sum float64
	for _, s := range samples {
		sum += s
	}
	mean := sum / float64(len(samples))

	var sq float64
	for _, s := range samples {
		d := s - mean
		sq += d * d
	}
	return mean, math.Sqrt(sq / float64(len(samples)))
}

// zScore treats a zero-stddev baseline as z=0: without variance the
// statistical test is meaningless and only absolute floors can trigger.
func zScore(value, mean, stddev float64) float64 {
	if stddev == 0 {
		return 0
	}
	return (value - mean) / stddev
}

func expectedRange(mean, stddev, k float64) models.Range {
	return models.Range{Min: mean - k*stddev, Max: mean + k*stddev}
}
