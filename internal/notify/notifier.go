// Package notify publishes anomaly notifications to the alerting channel.
package notify

import (
	"context"
	"time"

	"github.com/kiranshivaraju/pulsehound/pkg/models"
)

// Payload is the structured notification emitted for each non-suppressed
// anomaly. Downstream delivery (chat, email) is outside this service.
type Payload struct {
	Type      string          `json:"type"`
	Severity  models.Severity `json:"severity"`
	Metric    models.Metric   `json:"metric"`
	Message   string          `json:"message"`
	Analysis  string          `json:"analysis"`
	Timestamp time.Time       `json:"timestamp"`
	Provider  string          `json:"provider"`
}

// TypeAnomalyDetected is the only payload type this service emits today.
const TypeAnomalyDetected = "anomaly_detected"

// Notifier delivers notification payloads. Implementations must be safe
// for concurrent use.
type Notifier interface {
	Publish(ctx context.Context, p Payload) error
	Close() error
}

// NewPayload builds the notification for an anomaly and its analysis record.
func NewPayload(anomaly models.Anomaly, rec *models.AnalysisRecord) Payload {
	return Payload{
		Type:      TypeAnomalyDetected,
		Severity:  anomaly.Severity,
		Metric:    anomaly.Metric,
		Message:   anomaly.Message,
		Analysis:  rec.Analysis,
		Timestamp: rec.CreatedAt,
		Provider:  rec.Provider,
	}
}
