package models

// Metric identifies which signal an anomaly was detected on.
type Metric string

const (
	MetricErrorRate     Metric = "error_rate"
	MetricLatency       Metric = "latency"
	MetricRequestVolume Metric = "request_volume"
)

// Severity ranks how actionable an anomaly is.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Range is the expected value band derived from the historical baseline.
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Anomaly is a single detection result. Anomalies are computed fresh each
// detection cycle and are never persisted on their own; they exist only as
// input to the cooldown governor and the root-cause dispatcher.
type Anomaly struct {
	Metric        Metric   `json:"metric"`
	CurrentValue  float64  `json:"current_value"`
	ExpectedRange Range    `json:"expected_range"`
	ZScore        float64  `json:"z_score"`
	Severity      Severity `json:"severity"`
	Message       string   `json:"message"`
}
