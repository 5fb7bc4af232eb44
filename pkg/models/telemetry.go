package models

import "time"

// LogLevelCount is one (service, level) bucket from a windowed log query.
type LogLevelCount struct {
	Service string `json:"service"`
	Level   string `json:"level"`
	Count   int64  `json:"count"`
}

// ErrorLogLine is one error-level log event pulled as root-cause context.
type ErrorLogLine struct {
	Timestamp time.Time `json:"timestamp"`
	Service   string    `json:"service"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
}

// TraceSample is one failed or slow span pulled as root-cause context.
type TraceSample struct {
	Timestamp  time.Time `json:"timestamp"`
	Service    string    `json:"service"`
	Operation  string    `json:"operation"`
	DurationMs float64   `json:"duration_ms"`
	StatusCode int       `json:"status_code"`
}
