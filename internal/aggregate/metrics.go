package aggregate

import (
	"sort"
	"time"

	"github.com/straywatch/straywatch-api/internal/models"
)

// Day is the half-open interval [Start, End) of one calendar day.
type Day struct {
	Start time.Time
	End   time.Time
}

// DayOf returns the calendar day containing t in loc.
// End is computed with AddDate so days spanning a DST change keep their real length.
func DayOf(t time.Time, loc *time.Location) Day {
	if loc == nil {
		loc = time.UTC
	}
	lt := t.In(loc)
	start := time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, loc)
	return Day{Start: start, End: start.AddDate(0, 0, 1)}
}

// Contains reports whether t falls inside the day.
func (d Day) Contains(t time.Time) bool {
	return !t.Before(d.Start) && t.Before(d.End)
}

// CountByType counts records per type created during day. Every known type is present.
func CountByType(records []models.IncidentRecord, day Day) map[models.IncidentType]int64 {
	counts := models.ZeroTodayCounts()
	for _, rec := range records {
		if !day.Contains(rec.CreatedAt) {
			continue
		}
		if _, ok := counts[rec.Type]; ok {
			counts[rec.Type]++
		}
	}
	return counts
}

// RollupByType returns per-type record counts and summed item counts, ordered by type.
// Types with no records are omitted.
func RollupByType(records []models.IncidentRecord) []models.TypeRollup {
	byType := make(map[models.IncidentType]*models.TypeRollup)
	for _, rec := range records {
		r, ok := byType[rec.Type]
		if !ok {
			r = &models.TypeRollup{Type: rec.Type}
			byType[rec.Type] = r
		}
		r.TotalCount++
		r.TotalItems += int64(rec.Count)
	}

	out := make([]models.TypeRollup, 0, len(byType))
	for _, r := range byType {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })
	return out
}

// Metrics computes a full snapshot from the complete record set.
func Metrics(records []models.IncidentRecord, today Day, generatedAt time.Time) models.MetricsSnapshot {
	return models.MetricsSnapshot{
		TotalReports: int64(len(records)),
		TodayCounts:  CountByType(records, today),
		TypeRollups:  RollupByType(records),
		GeneratedAt:  generatedAt,
	}
}
