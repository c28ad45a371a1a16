package models

import "time"

// ContributorAggregate is a derived per-contributor count over a window. Never persisted.
type ContributorAggregate struct {
	IdentityKey   string  `json:"identity_key"`
	ContributorID *string `json:"contributor_id"`
	DisplayName   string  `json:"display_name"`
	DisplayOrigin *string `json:"display_origin"`
	ReportCount   int     `json:"report_count"`
}

// Leaderboard is the GET /leaderboard response.
type Leaderboard struct {
	Leaders []ContributorAggregate `json:"leaders"`
	Self    *ContributorAggregate  `json:"self"`
}

// TypeRollup is the all-time rollup for one incident type.
type TypeRollup struct {
	Type       IncidentType `json:"type"`
	TotalCount int64        `json:"total_count"`
	TotalItems int64        `json:"total_items"`
}

// MetricsSnapshot is the GET /metrics response.
// Error is only set on the zero-valued fallback.
type MetricsSnapshot struct {
	TotalReports int64                  `json:"totalReports"`
	TodayCounts  map[IncidentType]int64 `json:"todayCounts"`
	TypeRollups  []TypeRollup           `json:"typeRollups"`
	GeneratedAt  time.Time              `json:"generatedAt"`
	Error        string                 `json:"error,omitempty"`
}

// ZeroTodayCounts returns a per-type map with every known type set to zero.
func ZeroTodayCounts() map[IncidentType]int64 {
	m := make(map[IncidentType]int64, len(IncidentTypes))
	for _, t := range IncidentTypes {
		m[t] = 0
	}
	return m
}
