package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	geojson "github.com/paulmach/go.geojson"

	"github.com/straywatch/straywatch-api/internal/auth"
	"github.com/straywatch/straywatch-api/internal/logging"
	"github.com/straywatch/straywatch-api/internal/models"
	"github.com/straywatch/straywatch-api/internal/store"
	"github.com/straywatch/straywatch-api/internal/telemetry"
)

// writeStoreError maps a gateway error on a write path to a response.
func writeStoreError(c *gin.Context, err error, msg string) {
	switch {
	case errors.Is(err, store.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "not your report"})
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "report not found"})
	default:
		logging.Error().Err(err).Str("request_id", logging.RequestID(c)).Msg(msg)
		c.JSON(http.StatusInternalServerError, gin.H{"error": msg})
	}
}

// reportsFeatureCollection renders records as GeoJSON points for the live map.
func reportsFeatureCollection(records []models.IncidentRecord) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, r := range records {
		f := geojson.NewPointFeature([]float64{r.Lng, r.Lat})
		f.ID = r.ID
		f.SetProperty("type", string(r.Type))
		f.SetProperty("count", r.Count)
		f.SetProperty("created_at", r.CreatedAt.UTC().Format(time.RFC3339))
		if r.Severity != nil {
			f.SetProperty("severity", *r.Severity)
		}
		if r.Notes != nil {
			f.SetProperty("notes", *r.Notes)
		}
		fc.AddFeature(f)
	}
	return fc
}

// RegisterReportRoutes registers the incident report endpoints.
// requireUser guards the routes that act on the caller's own reports.
//
// GET    /reports          - all reports, newest first; 500 with [] on store failure
// GET    /reports.geojson  - the same reports as a GeoJSON FeatureCollection
// GET    /reports/mine     - the caller's reports
// POST   /reports          - create; contributor fields come from the verified token
// PATCH  /reports/:id      - owner-only partial update
// DELETE /reports/:id      - owner-only delete
func RegisterReportRoutes(r gin.IRoutes, gw store.Gateway, requireUser gin.HandlerFunc) {
	r.GET("/reports", func(c *gin.Context) {
		records, err := gw.ListRecords(c.Request.Context(), nil)
		if err != nil {
			logging.Error().Err(err).Str("request_id", logging.RequestID(c)).Msg("list reports failed")
			telemetry.Degraded("reports")
			c.JSON(http.StatusInternalServerError, []models.IncidentRecord{})
			return
		}
		c.Header("Cache-Control", reportsCache)
		c.JSON(http.StatusOK, records)
	})

	r.GET("/reports.geojson", func(c *gin.Context) {
		records, err := gw.ListRecords(c.Request.Context(), nil)
		if err != nil {
			logging.Error().Err(err).Str("request_id", logging.RequestID(c)).Msg("list reports failed")
			telemetry.Degraded("reports.geojson")
			records = nil
		}

		raw, mErr := reportsFeatureCollection(records).MarshalJSON()
		if mErr != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "encode failed"})
			return
		}

		status := http.StatusOK
		if err != nil {
			status = http.StatusInternalServerError
		} else {
			c.Header("Cache-Control", reportsCache)
		}
		c.Data(status, "application/geo+json", raw)
	})

	r.GET("/reports/mine", requireUser, func(c *gin.Context) {
		user, _ := auth.CurrentUser(c)

		records, err := gw.ListByContributor(c.Request.Context(), user.ID)
		if err != nil {
			logging.Error().Err(err).Str("request_id", logging.RequestID(c)).Msg("list own reports failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db query failed"})
			return
		}
		c.Header("Cache-Control", "private, no-store")
		c.JSON(http.StatusOK, records)
	})

	r.POST("/reports", requireUser, func(c *gin.Context) {
		user, _ := auth.CurrentUser(c)

		var req models.CreateReportRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON payload"})
			return
		}
		if msg := validateCreate(&req); msg != "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": msg})
			return
		}

		// The contributor snapshot is taken now and never rewritten.
		userID := user.ID
		rec, err := gw.Insert(c.Request.Context(), models.IncidentRecord{
			Type:            req.Type,
			Lat:             *req.Lat,
			Lng:             *req.Lng,
			Count:           req.Count,
			Severity:        req.Severity,
			Notes:           req.Notes,
			ContributorID:   &userID,
			ContributorName: user.Profile.Name.Ptr(),
			ContributorFrom: user.Profile.Origin.Ptr(),
		})
		if err != nil {
			writeStoreError(c, err, "report insert failed")
			return
		}
		c.JSON(http.StatusCreated, rec)
	})

	r.PATCH("/reports/:id", requireUser, func(c *gin.Context) {
		user, _ := auth.CurrentUser(c)

		var patch models.ReportPatch
		if err := c.ShouldBindJSON(&patch); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON payload"})
			return
		}
		if msg := validatePatch(&patch); msg != "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": msg})
			return
		}

		rec, err := gw.Update(c.Request.Context(), user.ID, c.Param("id"), patch)
		if err != nil {
			writeStoreError(c, err, "report update failed")
			return
		}
		c.JSON(http.StatusOK, rec)
	})

	r.DELETE("/reports/:id", requireUser, func(c *gin.Context) {
		user, _ := auth.CurrentUser(c)

		if err := gw.Remove(c.Request.Context(), user.ID, c.Param("id")); err != nil {
			writeStoreError(c, err, "report delete failed")
			return
		}
		c.Status(http.StatusNoContent)
	})
}
