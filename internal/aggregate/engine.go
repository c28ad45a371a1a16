// Package aggregate reduces incident record sequences to contributor rankings
// and metric rollups. Every function is pure and safe for concurrent use.
package aggregate

import (
	"sort"
	"time"

	"github.com/straywatch/straywatch-api/internal/identity"
	"github.com/straywatch/straywatch-api/internal/models"
)

// DefaultLimit is the ranked leaderboard size when the caller does not set one.
const DefaultLimit = 10

// ByContributor groups records by identity key and counts records per group.
// The `count` field of a record is not summed. Display fields come from the
// most recent record of each group; ties on created_at go to the later record
// in input order.
func ByContributor(records []models.IncidentRecord) map[string]models.ContributorAggregate {
	type group struct {
		agg    models.ContributorAggregate
		latest time.Time
	}
	groups := make(map[string]*group)

	for _, rec := range records {
		id := identity.Resolve(rec)
		g, ok := groups[id.Key]
		if !ok {
			g = &group{agg: models.ContributorAggregate{
				IdentityKey:   id.Key,
				ContributorID: id.ContributorID,
			}}
			groups[id.Key] = g
		}
		g.agg.ReportCount++
		if g.agg.ReportCount == 1 || !rec.CreatedAt.Before(g.latest) {
			g.latest = rec.CreatedAt
			g.agg.DisplayName = id.Profile.Name.Or(identity.AnonymousName)
			g.agg.DisplayOrigin = id.Profile.Origin.Ptr()
		}
	}

	out := make(map[string]models.ContributorAggregate, len(groups))
	for key, g := range groups {
		out[key] = g.agg
	}
	return out
}

// Self returns a copy of the override's own aggregate with the override
// profile applied, or nil when the key has no records. aggs is not modified,
// so ranking the same map stays independent of who is viewing.
func Self(aggs map[string]models.ContributorAggregate, override *identity.Override) *models.ContributorAggregate {
	if override == nil {
		return nil
	}
	agg, ok := aggs[override.Key]
	if !ok {
		return nil
	}
	override.Apply(&agg)
	return &agg
}

// Sorted returns the aggregates ordered by report count descending, then
// identity key ascending.
func Sorted(aggs map[string]models.ContributorAggregate) []models.ContributorAggregate {
	out := make([]models.ContributorAggregate, 0, len(aggs))
	for _, a := range aggs {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ReportCount != out[j].ReportCount {
			return out[i].ReportCount > out[j].ReportCount
		}
		return out[i].IdentityKey < out[j].IdentityKey
	})
	return out
}

// IsNamed reports whether the aggregate carries a real display name.
func IsNamed(a models.ContributorAggregate) bool {
	return a.DisplayName != "" && a.DisplayName != identity.AnonymousName
}

// SelectRanked sorts and truncates aggregates for public display.
//
// With preferNamed, entries showing the anonymous placeholder are dropped as
// soon as one named entry exists. When none is named the placeholder entries
// are kept so the board is never empty while data exists.
func SelectRanked(aggs map[string]models.ContributorAggregate, limit int, preferNamed bool) []models.ContributorAggregate {
	if limit <= 0 {
		limit = DefaultLimit
	}
	sorted := Sorted(aggs)

	if preferNamed {
		named := make([]models.ContributorAggregate, 0, len(sorted))
		for _, a := range sorted {
			if IsNamed(a) {
				named = append(named, a)
			}
		}
		if len(named) > 0 {
			sorted = named
		}
	}

	if len(sorted) > limit {
		sorted = sorted[:limit]
	}
	return sorted
}

// InWindow keeps records created at or after start.
func InWindow(records []models.IncidentRecord, start time.Time) []models.IncidentRecord {
	out := make([]models.IncidentRecord, 0, len(records))
	for _, rec := range records {
		if !rec.CreatedAt.Before(start) {
			out = append(out, rec)
		}
	}
	return out
}
