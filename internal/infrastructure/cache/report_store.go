package cache

import (
	"context"
	"time"

	"go.uber.org/atomic"
)

// ReportBackend is a JSON report store keyed by string
type ReportBackend interface {
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	InvalidateShop(ctx context.Context, shopID int64) error
}

// ReportCacheStats is a snapshot of report cache usage
type ReportCacheStats struct {
	Hits          int64   `json:"hits"`
	Misses        int64   `json:"misses"`
	Errors        int64   `json:"errors"`
	Invalidations int64   `json:"invalidations"`
	HitRatio      float64 `json:"hit_ratio"`
}

// ReportStore counts hits and misses of a report backend
type ReportStore struct {
	backend ReportBackend

	hits          atomic.Int64
	misses        atomic.Int64
	errors        atomic.Int64
	invalidations atomic.Int64
}

// NewReportStore wraps backend
func NewReportStore(backend ReportBackend) *ReportStore {
	return &ReportStore{backend: backend}
}

// Get loads key into dest and reports whether it was present
func (s *ReportStore) Get(ctx context.Context, key string, dest any) (bool, error) {
	found, err := s.backend.Get(ctx, key, dest)
	switch {
	case err != nil:
		s.errors.Inc()
	case found:
		s.hits.Inc()
	default:
		s.misses.Inc()
	}
	return found, err
}

// Set stores value under key for ttl
func (s *ReportStore) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	err := s.backend.Set(ctx, key, value, ttl)
	if err != nil {
		s.errors.Inc()
	}
	return err
}

// InvalidateShop deletes every report of the shop
func (s *ReportStore) InvalidateShop(ctx context.Context, shopID int64) error {
	if err := s.backend.InvalidateShop(ctx, shopID); err != nil {
		s.errors.Inc()
		return err
	}
	s.invalidations.Inc()
	return nil
}

// Stats returns the counters collected since creation or the last reset
func (s *ReportStore) Stats() ReportCacheStats {
	stats := ReportCacheStats{
		Hits:          s.hits.Load(),
		Misses:        s.misses.Load(),
		Errors:        s.errors.Load(),
		Invalidations: s.invalidations.Load(),
	}
	if total := stats.Hits + stats.Misses; total > 0 {
		stats.HitRatio = float64(stats.Hits) / float64(total)
	}
	return stats
}

// ResetStats zeroes the counters
func (s *ReportStore) ResetStats() {
	s.hits.Store(0)
	s.misses.Store(0)
	s.errors.Store(0)
	s.invalidations.Store(0)
}
