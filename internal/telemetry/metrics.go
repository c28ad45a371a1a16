// Package telemetry exposes Prometheus counters for the HTTP surface and
// the degraded paths behind it.
package telemetry

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once sync.Once

	// RequestsTotal counts handled requests by route and status.
	RequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "straywatch",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total number of HTTP requests, labeled by method, route and status.",
	}, []string{"method", "route", "status"})

	// RequestDurationSeconds is the handler latency per route.
	RequestDurationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "straywatch",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP handler latency, labeled by method and route.",
		Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"method", "route"})

	// DegradedResponsesTotal counts read responses served from a fallback.
	DegradedResponsesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "straywatch",
		Name:      "degraded_responses_total",
		Help:      "Responses served as an empty or zero fallback because an upstream failed, labeled by endpoint.",
	}, []string{"endpoint"})

	// GeocodeLookupsTotal counts geocoder calls by outcome.
	GeocodeLookupsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "straywatch",
		Subsystem: "geocode",
		Name:      "lookups_total",
		Help:      "Total number of geocoding lookups, labeled by outcome.",
	}, []string{"outcome"})
)

// Register registers service metrics with the default Prometheus registry.
// Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			RequestsTotal,
			RequestDurationSeconds,
			DegradedResponsesTotal,
			GeocodeLookupsTotal,
		)
	})
}

// Degraded records a fallback response on endpoint.
func Degraded(endpoint string) {
	DegradedResponsesTotal.WithLabelValues(endpoint).Inc()
}

// GeocodeOutcome records the result class of one geocoder call.
func GeocodeOutcome(outcome string) {
	GeocodeLookupsTotal.WithLabelValues(outcome).Inc()
}

// GinMiddleware records request count and latency per matched route.
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		RequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		RequestDurationSeconds.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
