// Package models contains shared data models used across the PulseHound codebase.
package models

import "time"

// Snapshot is one windowed aggregation of raw telemetry at a point in time.
// A snapshot is immutable once created and is identified by its Timestamp.
type Snapshot struct {
	Timestamp     time.Time        `json:"timestamp"`
	WindowMinutes int              `json:"window_minutes"`
	Logs          LogsSummary      `json:"logs"`
	Services      []ServiceMetrics `json:"services"`
	Operations    []OperationTrace `json:"operations"`
	SlowEndpoints []SlowEndpoint   `json:"slow_endpoints"`
	RequestVolume RequestVolume    `json:"request_volume"`
	Spikes        []Spike          `json:"spikes,omitempty"`
}

// LogsSummary aggregates log events within the snapshot window.
type LogsSummary struct {
	Total     int64            `json:"total"`
	Errors    int64            `json:"errors"`
	ByLevel   map[string]int64 `json:"by_level"`
	ByService map[string]int64 `json:"by_service"`
}

// ServiceMetrics aggregates request metrics for one service.
// Percentages are in [0,100]; latencies and durations are milliseconds.
type ServiceMetrics struct {
	Service          string  `json:"service"`
	RequestCount     int64   `json:"request_count"`
	ErrorCount       int64   `json:"error_count"`
	AvgLatencyMs     float64 `json:"avg_latency_ms"`
	P95LatencyMs     float64 `json:"p95_latency_ms"`
	P99LatencyMs     float64 `json:"p99_latency_ms"`
	AvgCPUPercent    float64 `json:"avg_cpu_percent"`
	AvgMemoryPercent float64 `json:"avg_memory_percent"`
	MaxConnections   int64   `json:"max_connections"`
	TotalThroughput  float64 `json:"total_throughput"`
}

// ErrorRatePercent returns the service error rate in [0,100].
// Returns 0 when the service handled no requests.
func (m ServiceMetrics) ErrorRatePercent() float64 {
	if m.RequestCount == 0 {
		return 0
	}
	return float64(m.ErrorCount) / float64(m.RequestCount) * 100
}

// OperationTrace aggregates trace spans for one (service, operation) pair.
type OperationTrace struct {
	Service       string  `json:"service"`
	Operation     string  `json:"operation"`
	TraceCount    int64   `json:"trace_count"`
	AvgDurationMs float64 `json:"avg_duration_ms"`
	P95DurationMs float64 `json:"p95_duration_ms"`
	P99DurationMs float64 `json:"p99_duration_ms"`
	Status4xx     int64   `json:"status_4xx"`
	Status5xx     int64   `json:"status_5xx"`
}

// SlowEndpoint is an operation whose P95 duration exceeds the slow threshold.
type SlowEndpoint struct {
	Service       string  `json:"service"`
	Operation     string  `json:"operation"`
	P95DurationMs float64 `json:"p95_duration_ms"`
	TraceCount    int64   `json:"trace_count"`
}

// RequestVolume is the total and per-service request count for the window.
type RequestVolume struct {
	Total     int64            `json:"total"`
	ByService map[string]int64 `json:"by_service"`
}

// Spike is a cheap fixed-threshold flag embedded in the snapshot for
// dashboard use. Spikes do not feed the statistical detector.
type Spike struct {
	Kind      string  `json:"kind"`
	Service   string  `json:"service"`
	Value     float64 `json:"value"`
	Threshold float64 `json:"threshold"`
}
