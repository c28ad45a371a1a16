package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/straywatch/straywatch-api/internal/identity"
	"github.com/straywatch/straywatch-api/internal/leaderboard"
	"github.com/straywatch/straywatch-api/internal/logging"
	"github.com/straywatch/straywatch-api/internal/telemetry"
)

// Cache-Control values for the public read endpoints.
const (
	leaderboardCache         = "public, max-age=30, s-maxage=60"
	personalLeaderboardCache = "private, max-age=30"
	metricsCache             = "public, max-age=30, s-maxage=120"
	reportsCache             = "public, max-age=10, s-maxage=30"
	geocodeCache             = "public, max-age=300, s-maxage=600"
)

// RegisterLeaderboardRoutes registers the contributor ranking.
//
// GET /leaderboard?viewer_identity=&viewer_name=&viewer_origin=
// - Always 200: a store failure yields an empty board, never an error page
// - viewer_identity adds the caller's own entry as "self", even outside the top N
// - viewer_name / viewer_origin override the display fields of that entry only
func RegisterLeaderboardRoutes(r gin.IRoutes, svc *leaderboard.Service, windowDays int) {
	r.GET("/leaderboard", func(c *gin.Context) {
		q := leaderboard.Query{WindowDays: windowDays}

		if id := strings.TrimSpace(c.Query("viewer_identity")); id != "" {
			q.Viewer = &leaderboard.Viewer{
				ID: id,
				Profile: identity.Profile{
					Name:   identity.Some(c.Query("viewer_name")),
					Origin: identity.Some(c.Query("viewer_origin")),
				},
			}
		}

		board, err := svc.Get(c.Request.Context(), q)
		if err != nil {
			logging.Warn().Err(err).Str("request_id", logging.RequestID(c)).Msg("leaderboard degraded to empty")
			telemetry.Degraded("leaderboard")
		}

		if q.Viewer != nil {
			c.Header("Cache-Control", personalLeaderboardCache)
		} else {
			c.Header("Cache-Control", leaderboardCache)
		}
		c.JSON(http.StatusOK, board)
	})
}
