package models

import (
	"time"

	"github.com/google/uuid"
)

// AnalysisRecord is the durable artifact of a non-suppressed anomaly: the
// AI-generated root-cause narrative plus the anomaly facts it explains.
// Records are never mutated after creation.
type AnalysisRecord struct {
	ID        uuid.UUID `db:"id"         json:"id"`
	Provider  string    `db:"provider"   json:"provider"`
	Metric    Metric    `db:"metric"     json:"metric"`
	Severity  Severity  `db:"severity"   json:"severity"`
	Message   string    `db:"message"    json:"message"`
	Analysis  string    `db:"analysis"   json:"analysis"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
