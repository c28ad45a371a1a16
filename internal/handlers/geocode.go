package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/straywatch/straywatch-api/internal/geocode"
	"github.com/straywatch/straywatch-api/internal/logging"
	"github.com/straywatch/straywatch-api/internal/telemetry"
)

// geocodeFailure maps a lookup error to a status, a client message and a
// telemetry outcome.
func geocodeFailure(err error) (int, string, string) {
	switch {
	case errors.Is(err, geocode.ErrEmptyQuery):
		return http.StatusBadRequest, "Query parameter 'q' is required", "invalid"
	case errors.Is(err, geocode.ErrRateLimited):
		return http.StatusTooManyRequests, "Geocoding rate limit reached, try again shortly", "rate_limited"
	case errors.Is(err, geocode.ErrProvider):
		return http.StatusBadGateway, "Geocoding provider error", "provider_error"
	case errors.Is(err, context.Canceled):
		return 499, "Request cancelled", "cancelled"
	default:
		return http.StatusGatewayTimeout, "Geocoding provider unavailable", "unavailable"
	}
}

// RegisterGeocodeRoutes registers the forward geocoding proxy.
//
// GET /geocode?q=...&limit=...
// - 400 when q is blank or limit is not an integer in [1, maxResults]
// - 429 when the provider rate-limits, 502 on other provider errors, 504 when unreachable
// - An empty array is a successful answer
func RegisterGeocodeRoutes(r gin.IRoutes, lookup geocode.Lookup, maxResults int) {
	r.GET("/geocode", func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")

		q := strings.TrimSpace(c.Query("q"))
		if q == "" {
			telemetry.GeocodeOutcome("invalid")
			c.JSON(http.StatusBadRequest, gin.H{"error": "Query parameter 'q' is required"})
			return
		}

		limit := maxResults
		if raw := c.Query("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 || n > maxResults {
				telemetry.GeocodeOutcome("invalid")
				c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and " + strconv.Itoa(maxResults)})
				return
			}
			limit = n
		}

		places, err := lookup.Search(c.Request.Context(), q, limit)
		if err != nil {
			status, msg, outcome := geocodeFailure(err)
			telemetry.GeocodeOutcome(outcome)
			logging.Warn().Err(err).Str("request_id", logging.RequestID(c)).Str("q", q).Msg("geocode lookup failed")
			c.JSON(status, gin.H{"error": msg})
			return
		}
		if places == nil {
			places = []geocode.Place{}
		}

		telemetry.GeocodeOutcome("ok")
		c.Header("Cache-Control", geocodeCache)
		c.JSON(http.StatusOK, places)
	})
}
