// Package metrics produces the live metrics snapshot: all-time total,
// today's per-type counts and per-type rollups.
package metrics

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/straywatch/straywatch-api/internal/aggregate"
	"github.com/straywatch/straywatch-api/internal/models"
)

// FallbackError is the error text carried by the zero-valued fallback snapshot.
const FallbackError = "Failed to load metrics"

// Source answers the three independent metric queries.
type Source interface {
	TotalReports(ctx context.Context) (int64, error)
	CountByType(ctx context.Context, day aggregate.Day) (map[models.IncidentType]int64, error)
	TypeRollups(ctx context.Context) ([]models.TypeRollup, error)
}

// Service runs the metric queries and joins them into one snapshot.
type Service struct {
	source  Source
	loc     *time.Location
	timeout time.Duration
	now     func() time.Time
}

// NewService builds a Service. loc defines the calendar day behind todayCounts.
func NewService(source Source, loc *time.Location, timeout time.Duration) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{source: source, loc: loc, timeout: timeout, now: time.Now}
}

// WithClock replaces the clock. Used by tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Fallback is the zero snapshot returned when any query fails.
func Fallback(generatedAt time.Time) models.MetricsSnapshot {
	return models.MetricsSnapshot{
		TodayCounts: models.ZeroTodayCounts(),
		TypeRollups: []models.TypeRollup{},
		GeneratedAt: generatedAt,
		Error:       FallbackError,
	}
}

// Get returns a fresh snapshot. The three queries run concurrently and the
// result is all-or-nothing: on any failure the snapshot is Fallback and the
// first error is returned for logging. A Snapshotter source is frozen first
// so the three answers agree with each other.
func (s *Service) Get(ctx context.Context) (models.MetricsSnapshot, error) {
	now := s.now()

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	source := s.source
	if sn, ok := source.(Snapshotter); ok {
		frozen, err := sn.Snapshot(ctx)
		if err != nil {
			return Fallback(now), fmt.Errorf("snapshot records: %w", err)
		}
		source = frozen
	}

	var (
		total   int64
		today   map[models.IncidentType]int64
		rollups []models.TypeRollup
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := source.TotalReports(gctx)
		if err != nil {
			return fmt.Errorf("total reports: %w", err)
		}
		total = n
		return nil
	})
	g.Go(func() error {
		counts, err := source.CountByType(gctx, aggregate.DayOf(now, s.loc))
		if err != nil {
			return fmt.Errorf("today counts: %w", err)
		}
		today = counts
		return nil
	})
	g.Go(func() error {
		r, err := source.TypeRollups(gctx)
		if err != nil {
			return fmt.Errorf("type rollups: %w", err)
		}
		rollups = r
		return nil
	})

	if err := g.Wait(); err != nil {
		return Fallback(now), err
	}

	counts := models.ZeroTodayCounts()
	for t, n := range today {
		if _, ok := counts[t]; ok {
			counts[t] = n
		}
	}
	if rollups == nil {
		rollups = []models.TypeRollup{}
	}

	return models.MetricsSnapshot{
		TotalReports: total,
		TodayCounts:  counts,
		TypeRollups:  rollups,
		GeneratedAt:  now,
	}, nil
}
