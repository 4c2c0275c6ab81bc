// Command server runs the disaster coordination service: a JSON API over the
// mutation coordinator, enrichment adapters with a shared SQLite-backed
// cache, and an SSE stream fanning committed mutations out to subscribers.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/disaster-coordination-service/internal/adapter/gemini"
	"github.com/couchcryptid/disaster-coordination-service/internal/adapter/mapbox"
	"github.com/couchcryptid/disaster-coordination-service/internal/adapter/socialfeed"
	"github.com/couchcryptid/disaster-coordination-service/internal/adapter/sqlite"
	"github.com/couchcryptid/disaster-coordination-service/internal/broadcast"
	"github.com/couchcryptid/disaster-coordination-service/internal/config"
	"github.com/couchcryptid/disaster-coordination-service/internal/coordinator"
	"github.com/couchcryptid/disaster-coordination-service/internal/enrich"
	"github.com/couchcryptid/disaster-coordination-service/internal/observability"
	"github.com/couchcryptid/disaster-coordination-service/internal/proximity"
	"github.com/couchcryptid/disaster-coordination-service/internal/server"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()
	clock := clockwork.NewRealClock()

	db, err := sqlite.Open(cfg.DatabasePath)
	if err != nil {
		logger.Error("failed to open database", "path", cfg.DatabasePath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	cacheStore := sqlite.NewCacheStore(db, clock, logger)
	records := sqlite.NewRecordStore(db)
	resources := sqlite.NewResourceStore(db)

	mapboxClient := mapbox.NewClient(cfg.MapboxToken, cfg.MapboxTimeout, logger)
	geminiClient := gemini.NewClient(cfg.GeminiAPIKey, cfg.GeminiTimeout, logger)
	socialClient := socialfeed.NewClient(cfg.SocialFeedURL, cfg.SocialFeedToken, cfg.SocialFeedTimeout, logger)

	extractor := enrich.NewPlaceNameExtractor(cacheStore, geminiClient, cfg.CacheTTL, logger, metrics)
	forward := enrich.NewForwardGeocoder(cacheStore, mapboxClient, enrich.DefaultFallbackTable(), cfg.CacheTTL, logger, metrics)
	reverse := enrich.NewReverseGeocoder(cacheStore, mapboxClient, cfg.CacheTTL, logger, metrics)
	scorer := enrich.NewImageScorer(cacheStore, geminiClient, cfg.CacheTTL, logger, metrics)
	social := enrich.NewSocialSearcher(cacheStore, socialClient, cfg.SocialCacheTTL, logger, metrics)

	registry := broadcast.NewRegistry(cfg.PingInterval, clock, logger, metrics)
	coord := coordinator.New(records, forward, registry, clock, logger, metrics)
	resolver := proximity.NewResolver(resources, logger)

	handlers := server.NewHandlers(coord, records, resources, resolver,
		extractor, forward, reverse, scorer, social, registry, clock, logger)

	srv := server.New(logger, db)
	srv.Register(handlers)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("http server starting", "addr", cfg.HTTPAddr)
		if err := srv.Start(cfg.HTTPAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		return registry.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("service error", "error", err)
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}
