package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	router "github.com/dkeye/society/internal/adapters/http"
	"github.com/dkeye/society/internal/app"
	"github.com/dkeye/society/internal/auth"
	"github.com/dkeye/society/internal/broker"
	"github.com/dkeye/society/internal/config"
	"github.com/dkeye/society/internal/domain"
	"github.com/dkeye/society/internal/service"
	"github.com/dkeye/society/internal/storage"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if cfg.Mode == "debug" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}

	if err := run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("server failed")
	}
	log.Info().Msg("Server exited gracefully")
}

func run(ctx context.Context, cfg *config.Config) error {
	db, err := storage.Open(ctx, cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return err
	}
	defer db.Close()

	b, err := broker.Open(ctx, cfg.Broker)
	if err != nil {
		return err
	}
	defer b.Close()

	orch := app.NewOrchestrator(b, app.NewRoomRateLimiter(cfg.Chat.JoinLimit, cfg.Chat.JoinInterval))
	if err := orch.Run(ctx); err != nil {
		return fmt.Errorf("broker subscribe: %w", err)
	}

	authSvc := service.NewAuth(db.Users(), auth.NewTokens(cfg.Secret, cfg.TokenTTL), orch)
	if cfg.Admin.Email != "" {
		if _, err := authSvc.EnsureAdmin(ctx, domain.SocietyID(cfg.Admin.Society), cfg.Admin.Name, cfg.Admin.Email, cfg.Admin.Password); err != nil {
			return fmt.Errorf("seed administrator: %w", err)
		}
	}
	notes := service.NewNotifications(db.Notifications(), db.Users(), orch)

	r := router.SetupRouter(ctx, cfg, router.Services{
		Auth:          authSvc,
		Users:         service.NewUsers(db.Users()),
		Notifications: notes,
		Announcements: service.NewAnnouncements(db.Announcements(), db.Users(), notes),
		Orch:          orch,
	})
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("society server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	return nil
}
