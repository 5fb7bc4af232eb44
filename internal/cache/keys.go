package cache

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SnapshotKeyPrefix is shared by all aggregated snapshot keys, including
// the "latest" sentinel.
const SnapshotKeyPrefix = "aggregated:"

// SnapshotLatestKey is the sentinel key always holding the newest snapshot.
const SnapshotLatestKey = SnapshotKeyPrefix + "latest"

// SnapshotKey returns the key for a snapshot created at t.
func SnapshotKey(t time.Time) string {
	return SnapshotKeyPrefix + t.UTC().Format(time.RFC3339)
}

// AnalysisKey returns the fast-store key for an analysis record.
func AnalysisKey(id uuid.UUID) string {
	return fmt.Sprintf("analysis:%s", id)
}
