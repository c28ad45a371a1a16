package handlers

import (
	"strings"

	"github.com/golang/geo/s2"

	"github.com/straywatch/straywatch-api/internal/models"
)

const maxNotesLen = 2000

// validCoordinates reports whether lat/lng name a point on the globe.
func validCoordinates(lat, lng float64) bool {
	return s2.LatLngFromDegrees(lat, lng).IsValid()
}

// trimOptional trims s and turns a blank value into nil.
func trimOptional(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

// trimPresent trims s but keeps a blank value, which a patch uses to clear a field.
func trimPresent(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}

// validateCreate checks a new report and fills defaults. It returns the
// client-facing message for the first problem found.
func validateCreate(req *models.CreateReportRequest) string {
	if !req.Type.Valid() {
		return "type must be one of sighting, bite, garbage"
	}
	if req.Lat == nil || req.Lng == nil {
		return "lat and lng required"
	}
	if !validCoordinates(*req.Lat, *req.Lng) {
		return "lat must be within [-90, 90] and lng within [-180, 180]"
	}
	if req.Count == 0 {
		req.Count = 1
	}
	if req.Count < 1 {
		return "count must be at least 1"
	}
	req.Severity = trimOptional(req.Severity)
	req.Notes = trimOptional(req.Notes)
	if req.Notes != nil && len(*req.Notes) > maxNotesLen {
		return "notes too long"
	}
	return ""
}

// validatePatch checks the fields a patch sets and trims its text fields.
// An explicit blank severity or notes stays in the patch and clears the field.
func validatePatch(p *models.ReportPatch) string {
	p.Severity = trimPresent(p.Severity)
	p.Notes = trimPresent(p.Notes)
	if p.Empty() {
		return "nothing to update"
	}
	if p.Type != nil && !p.Type.Valid() {
		return "type must be one of sighting, bite, garbage"
	}
	if (p.Lat == nil) != (p.Lng == nil) {
		return "lat and lng must be updated together"
	}
	if p.Lat != nil && !validCoordinates(*p.Lat, *p.Lng) {
		return "lat must be within [-90, 90] and lng within [-180, 180]"
	}
	if p.Count != nil && *p.Count < 1 {
		return "count must be at least 1"
	}
	if p.Notes != nil && len(*p.Notes) > maxNotesLen {
		return "notes too long"
	}
	return ""
}
