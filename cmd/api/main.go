package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/zhouzirui/transit-voice/backend/internal/config"
	"github.com/zhouzirui/transit-voice/backend/internal/handler"
	"github.com/zhouzirui/transit-voice/backend/internal/service/dialog"
	"github.com/zhouzirui/transit-voice/backend/internal/service/geo"
	"github.com/zhouzirui/transit-voice/backend/internal/service/identity"
	"github.com/zhouzirui/transit-voice/backend/internal/service/session"
	"github.com/zhouzirui/transit-voice/backend/internal/service/transit"
	"github.com/zhouzirui/transit-voice/backend/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("no .env file, using system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	setupLogging(cfg.Log)

	profiles, err := store.Open(ctx, cfg.Store)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Store.Driver).Msg("failed to open profile store")
	}
	defer profiles.Close()
	log.Info().Str("driver", cfg.Store.Driver).Msg("profile store ready")

	regions := geo.SeedRegions()
	if cfg.Geo.RegionsFile != "" {
		regions, err = geo.LoadRegionsFile(cfg.Geo.RegionsFile)
		if err != nil {
			log.Fatal().Err(err).Str("file", cfg.Geo.RegionsFile).Msg("failed to load region catalog")
		}
	}
	if cfg.Geo.APIKey == "" {
		log.Warn().Msg("GOOGLE_MAPS_API_KEY not set, city lookups will fail")
	}
	geoSvc := geo.NewService(
		geo.NewGoogleGeocoder(geo.GeocoderConfig{
			BaseURL:  cfg.Geo.BaseURL,
			APIKey:   cfg.Geo.APIKey,
			RetryMax: cfg.Geo.RetryMax,
			Timeout:  cfg.Geo.Timeout,
		}),
		geo.NewCatalog(regions, cfg.Geo.MaxDistanceMeters),
	)

	transitFactory := transit.OBAFactory{
		APIKey:     cfg.Transit.APIKey,
		HTTPClient: geo.NewHTTPClient(cfg.Transit.RetryMax, cfg.Transit.Timeout),
	}

	background := identity.NewBackground(cfg.Identity.MaxInFlight, cfg.Identity.Timeout)
	resolver := identity.NewResolver(profiles, background)
	sessions := session.NewService(cfg.Session.Idle)

	router := dialog.NewRouter(profiles, geoSvc, transitFactory, resolver, dialog.Options{
		ArrivalsWindowMinutes:  cfg.Dialog.ArrivalsWindowMinutes,
		StopSearchRadiusMeters: cfg.Dialog.StopSearchRadiusMeters,
		SpeakRegionList:        cfg.Dialog.SpeakRegionList,
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler.NewRouter(router, sessions),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		log.Info().Str("addr", srv.Addr).Int("regions", len(regions)).Msg("transit voice backend listening")
		return runServer(groupCtx, srv)
	})
	group.Go(func() error {
		sessions.Run(groupCtx, time.Minute)
		return nil
	})

	if err := group.Wait(); err != nil {
		log.Error().Err(err).Msg("server error")
	}

	drainCtx, cancel := context.WithTimeout(context.Background(), cfg.Identity.Timeout+time.Second)
	defer cancel()
	if err := background.Drain(drainCtx); err != nil {
		log.Warn().Err(err).Msg("background tasks still running at shutdown")
	}
	log.Info().Msg("shutdown complete")
}

func setupLogging(cfg config.LogConfig) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Console() {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
			With().Timestamp().Logger()
		return
	}
	log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "listen")
	}
}
