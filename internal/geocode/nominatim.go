// Package geocode proxies forward geocoding lookups to Nominatim and drives
// debounced, single-flight autocomplete sessions on top of it.
package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"
)

var (
	// ErrEmptyQuery is returned before any network call when the query is blank.
	ErrEmptyQuery = errors.New("geocode: empty query")
	// ErrRateLimited means the provider answered 429. Callers should back off.
	ErrRateLimited = errors.New("geocode: provider rate limited")
	// ErrProvider means the provider answered with another non-success status.
	ErrProvider = errors.New("geocode: provider error")
	// ErrUnavailable means the provider could not be reached in time.
	ErrUnavailable = errors.New("geocode: provider unavailable")
)

// Place is one geocoding match.
type Place struct {
	Latitude    float64 `json:"lat"`
	Longitude   float64 `json:"lon"`
	DisplayName string  `json:"display_name"`
}

// Lookup resolves free text to places, returning at most limit results.
type Lookup interface {
	Search(ctx context.Context, query string, limit int) ([]Place, error)
}

// Options configures a NominatimClient.
type Options struct {
	BaseURL        string
	UserAgent      string
	AcceptLanguage string
	MaxResults     int
	Timeout        time.Duration
	// MinInterval spaces outgoing requests; the public Nominatim policy is one per second.
	MinInterval time.Duration
}

// NominatimClient calls the Nominatim /search endpoint.
type NominatimClient struct {
	opts    Options
	http    *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[[]Place]
}

// NewNominatimClient builds a client with rate limiting and a circuit breaker.
func NewNominatimClient(opts Options) *NominatimClient {
	if opts.MaxResults <= 0 {
		opts.MaxResults = 5
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")

	limit := rate.Inf
	if opts.MinInterval > 0 {
		limit = rate.Every(opts.MinInterval)
	}

	return &NominatimClient{
		opts:    opts,
		http:    &http.Client{Timeout: opts.Timeout},
		limiter: rate.NewLimiter(limit, 1),
		breaker: gobreaker.NewCircuitBreaker[[]Place](gobreaker.Settings{
			Name:        "nominatim",
			MaxRequests: 1,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			IsSuccessful: func(err error) bool {
				// Only an unreachable provider trips the breaker.
				return err == nil || !errors.Is(err, ErrUnavailable)
			},
		}),
	}
}

// MaxResults is the largest limit the client will request.
func (c *NominatimClient) MaxResults() int { return c.opts.MaxResults }

// Search returns up to limit places for query. An empty slice is a valid answer.
func (c *NominatimClient) Search(ctx context.Context, query string, limit int) ([]Place, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if limit <= 0 || limit > c.opts.MaxResults {
		limit = c.opts.MaxResults
	}

	if err := c.limiter.Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	places, err := c.breaker.Execute(func() ([]Place, error) {
		return c.search(ctx, query, limit)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return places, err
}

type nominatimResult struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

func (c *NominatimClient) search(ctx context.Context, query string, limit int) ([]Place, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	params.Set("addressdetails", "0")
	params.Set("polygon_geojson", "0")
	params.Set("extratags", "0")
	params.Set("limit", strconv.Itoa(limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.opts.BaseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", c.opts.UserAgent)
	if c.opts.AcceptLanguage != "" {
		req.Header.Set("Accept-Language", c.opts.AcceptLanguage)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); errors.Is(ctxErr, context.Canceled) {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, ErrRateLimited
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: status %d: %s", ErrProvider, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var raw []nominatimResult
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrProvider, err)
	}

	places := make([]Place, 0, len(raw))
	for _, r := range raw {
		lat, errLat := strconv.ParseFloat(r.Lat, 64)
		lon, errLon := strconv.ParseFloat(r.Lon, 64)
		if errLat != nil || errLon != nil {
			continue
		}
		places = append(places, Place{Latitude: lat, Longitude: lon, DisplayName: r.DisplayName})
		if len(places) == limit {
			break
		}
	}
	return places, nil
}
