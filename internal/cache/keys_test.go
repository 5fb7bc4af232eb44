package cache

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestSnapshotKey(t *testing.T) {
	ts := time.Date(2025, 6, 1, 12, 5, 0, 0, time.UTC)
	assert.Equal(t, "aggregated:2025-06-01T12:05:00Z", SnapshotKey(ts))
}

func TestSnapshotKeyNormalizesToUTC(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*3600)
	local := time.Date(2025, 6, 1, 14, 5, 0, 0, loc)
	assert.Equal(t, "aggregated:2025-06-01T12:05:00Z", SnapshotKey(local))
}

func TestSnapshotLatestKeySharesPrefix(t *testing.T) {
	assert.True(t, strings.HasPrefix(SnapshotLatestKey, SnapshotKeyPrefix))
}

func TestAnalysisKey(t *testing.T) {
	id := uuid.MustParse("550e8400-e29b-41d4-a716-446655440000")
	assert.Equal(t, "analysis:550e8400-e29b-41d4-a716-446655440000", AnalysisKey(id))
}
