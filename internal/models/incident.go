package models

import (
	"strings"
	"time"
)

// IncidentType is the kind of observation a contributor logged.
type IncidentType string

const (
	TypeSighting IncidentType = "sighting"
	TypeBite     IncidentType = "bite"
	TypeGarbage  IncidentType = "garbage"
)

// IncidentTypes lists every valid type in display order.
var IncidentTypes = []IncidentType{TypeSighting, TypeBite, TypeGarbage}

// Valid reports whether t is one of the known incident types.
func (t IncidentType) Valid() bool {
	switch t {
	case TypeSighting, TypeBite, TypeGarbage:
		return true
	}
	return false
}

// IncidentRecord is one persisted report.
// ID and CreatedAt are assigned by the store, never by the client.
type IncidentRecord struct {
	ID              string       `json:"id"`
	Type            IncidentType `json:"type"`
	Lat             float64      `json:"lat"`
	Lng             float64      `json:"lng"`
	Count           int          `json:"count"`
	Severity        *string      `json:"severity"`
	Notes           *string      `json:"notes"`
	ContributorID   *string      `json:"user_id"`
	ContributorName *string      `json:"contributor_name"`
	ContributorFrom *string      `json:"contributor_from"`
	CreatedAt       time.Time    `json:"created_at"`
}

// CreateReportRequest is the POST /reports payload.
type CreateReportRequest struct {
	Type     IncidentType `json:"type"`
	Lat      *float64     `json:"lat"`
	Lng      *float64     `json:"lng"`
	Count    int          `json:"count"`
	Severity *string      `json:"severity,omitempty"`
	Notes    *string      `json:"notes,omitempty"`
}

// ReportPatch is the PATCH /reports/:id payload. Nil fields are left unchanged.
// A blank Severity or Notes clears that field.
type ReportPatch struct {
	Type     *IncidentType `json:"type,omitempty"`
	Lat      *float64      `json:"lat,omitempty"`
	Lng      *float64      `json:"lng,omitempty"`
	Count    *int          `json:"count,omitempty"`
	Severity *string       `json:"severity,omitempty"`
	Notes    *string       `json:"notes,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p ReportPatch) Empty() bool {
	return p.Type == nil && p.Lat == nil && p.Lng == nil && p.Count == nil &&
		p.Severity == nil && p.Notes == nil
}

// Apply returns a copy of rec with the patch fields written over it.
func (p ReportPatch) Apply(rec IncidentRecord) IncidentRecord {
	if p.Type != nil {
		rec.Type = *p.Type
	}
	if p.Lat != nil {
		rec.Lat = *p.Lat
	}
	if p.Lng != nil {
		rec.Lng = *p.Lng
	}
	if p.Count != nil {
		rec.Count = *p.Count
	}
	if p.Severity != nil {
		rec.Severity = clearable(*p.Severity)
	}
	if p.Notes != nil {
		rec.Notes = clearable(*p.Notes)
	}
	return rec
}

func clearable(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
