package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/straywatch/straywatch-api/internal/logging"
	"github.com/straywatch/straywatch-api/internal/metrics"
	"github.com/straywatch/straywatch-api/internal/telemetry"
)

// RegisterMetricRoutes registers the live metrics snapshot.
//
// GET /metrics
// - Always 200: on any failed query the body is the zero snapshot with "error" set
func RegisterMetricRoutes(r gin.IRoutes, svc *metrics.Service) {
	r.GET("/metrics", func(c *gin.Context) {
		snap, err := svc.Get(c.Request.Context())
		if err != nil {
			logging.Warn().Err(err).Str("request_id", logging.RequestID(c)).Msg("metrics degraded to zero snapshot")
			telemetry.Degraded("metrics")
		}

		c.Header("Cache-Control", metricsCache)
		c.JSON(http.StatusOK, snap)
	})
}
