package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/ewilliams-labs/latent/internal/adapters/rest"
	"github.com/ewilliams-labs/latent/internal/adapters/sources"
	"github.com/ewilliams-labs/latent/internal/adapters/spotify"
	"github.com/ewilliams-labs/latent/internal/adapters/sqlite"
	"github.com/ewilliams-labs/latent/internal/config"
	"github.com/ewilliams-labs/latent/internal/core/services"
	"github.com/ewilliams-labs/latent/internal/logging"
)

func main() {
	// 1. Configuration: crash early if required settings are missing
	cfg, err := config.Load()
	if err != nil {
		logging.Init("info", "json")
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	logging.Init(cfg.Logging.Level, cfg.Logging.Format)
	log.Info().Str("config", cfg.String()).Msg("configuration loaded")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Driven adapters
	store, err := sqlite.NewAdapter(cfg.Storage.Path, cfg.FeedbackPolicy())
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.Storage.Path).Msg("failed to initialize database")
	}
	defer store.Close()

	sc := cfg.Spotify
	clientOpts := []spotify.Option{
		spotify.WithRetry(sc.MaxRetries, sc.Backoff),
		spotify.WithRateLimit(sc.RateLimit, sc.RateBurst),
	}
	catalog := spotify.NewCatalogClient(ctx, spotify.CatalogCredentials{
		ClientID:     sc.ClientID,
		ClientSecret: sc.ClientSecret,
		TokenURL:     sc.TokenURL,
	}, sc.BaseURL, sc.Timeout, append(clientOpts, spotify.WithCache(sc.CacheSize, sc.CacheTTL))...)
	history := spotify.NewConnector(sc.BaseURL, sc.Timeout, clientOpts...)

	registry := sources.NewDefaultRegistry(
		&http.Client{Timeout: cfg.Shadow.CallTimeout},
		cfg.SourceURLs(),
		cfg.BreakerSettings(),
	)

	// 3. Core services
	svc := services.NewOrchestrator(
		history,
		services.NewProfileBuilder(0),
		services.NewExpander(catalog, cfg.ExpanderSettings()),
		services.NewScorer(cfg.ScoringSettings(), store),
		services.NewAggregator(cfg.ShadowSettings()),
		registry,
		store,
		store,
	)
	svc.SetMaxCandidates(cfg.ExpandDefaults().MaxCandidates)

	// 4. Driving adapter
	handler := rest.NewHandler(svc, rest.Options{
		MinPopularity:     cfg.Expansion.MinPopularity,
		MaxPopularity:     cfg.Expansion.MaxPopularity,
		AllowedOrigins:    cfg.CORS.AllowedOrigins,
		RequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
		Ready:             store,
	})

	// 5. Start the Server
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Strs("sources", registry.Names()).Msg("latent API listening")
		err := srv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			log.Fatal().Err(err).Msg("server failed")
		}
	case <-ctx.Done():
		log.Info().Msg("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("shutdown error")
		}
	}
}
