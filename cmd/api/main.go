package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/straywatch/straywatch-api/internal/auth"
	"github.com/straywatch/straywatch-api/internal/config"
	"github.com/straywatch/straywatch-api/internal/geocode"
	"github.com/straywatch/straywatch-api/internal/httpserver"
	"github.com/straywatch/straywatch-api/internal/leaderboard"
	"github.com/straywatch/straywatch-api/internal/logging"
	"github.com/straywatch/straywatch-api/internal/metrics"
	"github.com/straywatch/straywatch-api/internal/notify"
	"github.com/straywatch/straywatch-api/internal/store"
	"github.com/straywatch/straywatch-api/internal/telemetry"
)

// main boots the service: config → logging → store → services → HTTP server.
func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Error().Err(err).Msg("load config")
		os.Exit(1)
	}
	logging.Init(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})

	// Postgres (schema ensured on open) or memory:// for local runs.
	st, err := store.Open(cfg.DB.URL)
	if err != nil {
		logging.Error().Err(err).Msg("open store")
		os.Exit(1)
	}
	defer st.Close()

	// Postgres answers metrics with aggregate SQL; other stores are folded in memory.
	var source metrics.Source = metrics.RecordSource{Records: st}
	if pg, ok := st.(*store.PostgresStore); ok {
		source = pg
	}

	telemetry.Register()

	notifier := notify.NewAsync(newNotifier(cfg), cfg.Upstream.Timeout)

	deps := httpserver.Deps{
		Store:       st,
		Leaderboard: leaderboard.NewService(st, cfg.Leaderboard.Limit, cfg.Upstream.Timeout),
		Metrics:     metrics.NewService(source, cfg.Location, cfg.Upstream.Timeout),
		Geocoder: geocode.NewNominatimClient(geocode.Options{
			BaseURL:        cfg.Geocoder.BaseURL,
			UserAgent:      cfg.Geocoder.UserAgent,
			AcceptLanguage: cfg.Geocoder.AcceptLanguage,
			MaxResults:     cfg.Geocoder.MaxResults,
			Timeout:        cfg.Geocoder.Timeout,
			MinInterval:    cfg.Geocoder.MinInterval,
		}),
		Verifier: newVerifier(cfg),
		Notifier: notifier,
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           httpserver.NewRouter(cfg, deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logging.Info().Str("addr", cfg.Server.Addr).Str("timezone", cfg.Reports.Timezone).Msg("server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error().Err(err).Msg("server failed")
			stop()
		}
	}()

	<-ctx.Done()
	logging.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("graceful shutdown failed")
	}
	notifier.Wait()
}

func newVerifier(cfg config.Config) auth.Verifier {
	if cfg.Identity.Mode == "remote" {
		return auth.NewRemoteVerifier(cfg.Identity.ProviderURL, cfg.Identity.APIKey, cfg.Upstream.Timeout)
	}
	return auth.NewJWTVerifier(cfg.Identity.JWTSecret)
}

func newNotifier(cfg config.Config) notify.Notifier {
	if cfg.Feedback.SendGridAPIKey == "" {
		logging.Info().Msg("feedback notifications disabled: no SendGrid API key")
		return notify.Noop{}
	}
	return notify.NewSendGridNotifier(cfg.Feedback.SendGridAPIKey, cfg.Feedback.NotifyFrom, cfg.Feedback.NotifyTo)
}
