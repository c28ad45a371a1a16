// Package leaderboard ranks contributors over a trailing window of reports.
package leaderboard

import (
	"context"
	"fmt"
	"time"

	"github.com/straywatch/straywatch-api/internal/aggregate"
	"github.com/straywatch/straywatch-api/internal/identity"
	"github.com/straywatch/straywatch-api/internal/models"
)

// DefaultWindowDays is the trailing window used when a query does not set one.
const DefaultWindowDays = 30

// RecordLister is the read side of the incident store.
type RecordLister interface {
	ListRecords(ctx context.Context, since *time.Time) ([]models.IncidentRecord, error)
}

// Viewer identifies the caller asking for a personalised self entry.
// Profile, when present, overrides the display fields of the caller's own entry.
type Viewer struct {
	ID      string
	Profile identity.Profile
}

// Query selects the window and optional viewer.
type Query struct {
	WindowDays int
	Viewer     *Viewer
}

// Service builds leaderboards.
type Service struct {
	records RecordLister
	limit   int
	timeout time.Duration
	now     func() time.Time
}

// NewService builds a Service returning at most limit ranked entries.
func NewService(records RecordLister, limit int, timeout time.Duration) *Service {
	if limit <= 0 {
		limit = aggregate.DefaultLimit
	}
	return &Service{records: records, limit: limit, timeout: timeout, now: time.Now}
}

// WithClock replaces the clock. Used by tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Empty is the leaderboard returned when ranking cannot be computed.
func Empty() models.Leaderboard {
	return models.Leaderboard{Leaders: []models.ContributorAggregate{}}
}

// WindowStart returns the closed lower bound of the window ending at now.
func WindowStart(now time.Time, windowDays int) time.Time {
	if windowDays <= 0 {
		windowDays = DefaultWindowDays
	}
	return now.Add(-time.Duration(windowDays) * 24 * time.Hour)
}

// Get returns the ranked leaders and the viewer's own entry.
// It never fails outward: on a store error it returns Empty together with
// the cause so the caller can log it.
func (s *Service) Get(ctx context.Context, q Query) (models.Leaderboard, error) {
	since := WindowStart(s.now(), q.WindowDays)

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	records, err := s.records.ListRecords(ctx, &since)
	if err != nil {
		return Empty(), fmt.Errorf("list records since %s: %w", since.Format(time.RFC3339), err)
	}
	records = aggregate.InWindow(records, since)

	var override *identity.Override
	if q.Viewer != nil && q.Viewer.ID != "" {
		override = &identity.Override{Key: identity.UserKey(q.Viewer.ID), Profile: q.Viewer.Profile}
	}

	// Leaders are ranked from record snapshots only; the viewer's profile
	// reaches Self and nothing else.
	aggs := aggregate.ByContributor(records)
	return models.Leaderboard{
		Leaders: aggregate.SelectRanked(aggs, s.limit, true),
		Self:    aggregate.Self(aggs, override),
	}, nil
}
