package httpserver

import (
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"

	"github.com/straywatch/straywatch-api/internal/auth"
	"github.com/straywatch/straywatch-api/internal/config"
	"github.com/straywatch/straywatch-api/internal/geocode"
	"github.com/straywatch/straywatch-api/internal/handlers"
	"github.com/straywatch/straywatch-api/internal/leaderboard"
	"github.com/straywatch/straywatch-api/internal/logging"
	"github.com/straywatch/straywatch-api/internal/metrics"
	"github.com/straywatch/straywatch-api/internal/notify"
	"github.com/straywatch/straywatch-api/internal/store"
	"github.com/straywatch/straywatch-api/internal/telemetry"
)

// Deps are the services the router serves.
type Deps struct {
	Store       store.Backend
	Leaderboard *leaderboard.Service
	Metrics     *metrics.Service
	Geocoder    geocode.Lookup
	Verifier    auth.Verifier
	Notifier    notify.Notifier
}

// NewRouter wires public endpoints and authenticated APIs.
// Public: /health, /ready, /leaderboard, /metrics, /geocode, /geocode/live, /reports, /reports.geojson, /prometheus
// Authenticated: /reports/mine, report writes, /feedback, /auth/verify
func NewRouter(cfg config.Config, d Deps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logging.GinLogger())
	r.Use(telemetry.GinMiddleware())
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/geocode/live", "/prometheus"})))

	handlers.RegisterHealthRoutes(r, d.Store)
	r.GET("/prometheus", gin.WrapH(telemetry.Handler()))

	handlers.RegisterLeaderboardRoutes(r, d.Leaderboard, cfg.Leaderboard.WindowDays)
	handlers.RegisterMetricRoutes(r, d.Metrics)

	handlers.RegisterGeocodeRoutes(r, d.Geocoder, cfg.Geocoder.MaxResults)
	handlers.RegisterGeocodeLiveRoutes(r, d.Geocoder, geocode.SessionOptions{
		Debounce: cfg.Autocomplete.Debounce,
		MinChars: cfg.Autocomplete.MinChars,
		Limit:    min(cfg.Geocoder.MaxResults, geocode.DefaultSuggestionsLimit),
	})

	handlers.RegisterReportRoutes(r, d.Store, auth.BearerMiddleware(d.Verifier, auth.DefaultMissingMessage))

	// Auth group enforces a verified bearer token.
	feedbackGroup := r.Group("/")
	feedbackGroup.Use(auth.BearerMiddleware(d.Verifier, "Sign in required for feedback"))
	handlers.RegisterFeedbackRoutes(feedbackGroup, d.Store, d.Notifier, cfg.IsAdmin)

	authGroup := r.Group("/")
	authGroup.Use(auth.BearerMiddleware(d.Verifier, auth.DefaultMissingMessage))
	handlers.RegisterAuthRoutes(authGroup)

	return r
}
