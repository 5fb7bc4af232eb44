// Package snapshot persists summary snapshots in the cache with expiry,
// exposing "latest" and "recent N" access patterns to the detector.
package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/kiranshivaraju/pulsehound/internal/cache"
	"github.com/kiranshivaraju/pulsehound/pkg/models"
)

// Store reads and writes snapshots through the cache. Snapshots live under
// "aggregated:<RFC3339 timestamp>" with a sentinel "aggregated:latest"
// always holding the newest one.
type Store struct {
	cache cache.Cache
}

// NewStore creates a snapshot Store backed by c.
func NewStore(c cache.Cache) *Store {
	return &Store{cache: c}
}

// Put writes snap under both its timestamp key and the latest sentinel.
// Writing the same timestamp twice overwrites, so retries are idempotent.
func (s *Store) Put(ctx context.Context, snap *models.Snapshot, ttl time.Duration) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	if err := s.cache.Set(ctx, cache.SnapshotKey(snap.Timestamp), data, ttl); err != nil {
		return fmt.Errorf("store snapshot: %w", err)
	}
	if err := s.cache.Set(ctx, cache.SnapshotLatestKey, data, ttl); err != nil {
		return fmt.Errorf("store latest snapshot: %w", err)
	}
	return nil
}

// GetLatest returns the newest snapshot, or (nil, nil) if none exists or
// the latest sentinel has expired.
func (s *Store) GetLatest(ctx context.Context) (*models.Snapshot, error) {
	data, found, err := s.cache.Get(ctx, cache.SnapshotLatestKey)
	if err != nil {
		return nil, fmt.Errorf("get latest snapshot: %w", err)
	}
	if !found {
		return nil, nil
	}

	var snap models.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal latest snapshot: %w", err)
	}
	return &snap, nil
}

// GetRecent returns up to n snapshots in chronological ascending order,
// deduplicated by timestamp. Snapshots whose TTL has lapsed between
// enumeration and fetch are silently dropped. If key enumeration itself
// fails, the result degrades to the latest snapshot alone rather than
// failing the caller.
func (s *Store) GetRecent(ctx context.Context, n int) ([]*models.Snapshot, error) {
	if n <= 0 {
		return nil, nil
	}

	keys, err := s.cache.Keys(ctx, cache.SnapshotKeyPrefix+"*")
	if err != nil {
		slog.Warn("snapshot key enumeration degraded, falling back to latest", "error", err)
		latest, lerr := s.GetLatest(ctx)
		if lerr != nil {
			return nil, lerr
		}
		if latest == nil {
			return nil, nil
		}
		return []*models.Snapshot{latest}, nil
	}

	seen := make(map[int64]bool)
	var snaps []*models.Snapshot
	for _, key := range keys {
		if key == cache.SnapshotLatestKey {
			continue
		}
		data, found, err := s.cache.Get(ctx, key)
		if err != nil || !found {
			// Expired between SCAN and GET, or a transient read error.
			continue
		}
		var snap models.Snapshot
		if err := json.Unmarshal(data, &snap); err != nil {
			slog.Warn("skipping undecodable snapshot", "key", key, "error", err)
			continue
		}
		if seen[snap.Timestamp.UnixNano()] {
			continue
		}
		seen[snap.Timestamp.UnixNano()] = true
		snaps = append(snaps, &snap)
	}

	sort.Slice(snaps, func(i, j int) bool {
		return snaps[i].Timestamp.Before(snaps[j].Timestamp)
	})

	if len(snaps) > n {
		snaps = snaps[len(snaps)-n:]
	}
	return snaps, nil
}
