package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/npezzotti/go-fellowship/internal/api"
	"github.com/npezzotti/go-fellowship/internal/config"
	"github.com/npezzotti/go-fellowship/internal/database"
	"github.com/npezzotti/go-fellowship/internal/identity"
	"github.com/npezzotti/go-fellowship/internal/logging"
	"github.com/npezzotti/go-fellowship/internal/push"
	"github.com/npezzotti/go-fellowship/internal/realtime"
	"github.com/npezzotti/go-fellowship/internal/stats"
	"github.com/rs/zerolog"
)

func main() {
	envFile := flag.String("env-file", "", "dotenv file to load before reading FELLOWSHIP_* variables")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		bootLog := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
		bootLog.Fatal().Err(err).Msg("config")
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		bootLog := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
		bootLog.Fatal().Err(err).Msg("logger")
	}

	dbConn, err := database.NewPgChurchRepository(cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("db open")
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Error().Err(err).Msg("db close")
		}
	}()

	if cfg.AutoMigrate {
		if err := dbConn.Migrate(logger.With().Str("component", "migrate").Logger()); err != nil {
			logger.Fatal().Err(err).Msg("migrate")
		}
	}

	mux := http.NewServeMux()

	statsUpdater := stats.NewStatsUpdater(mux)

	hub := realtime.NewHub(logger.With().Str("component", "hub").Logger(), dbConn, statsUpdater)

	var sender push.Sender
	if cfg.FirebaseCredentials != "" {
		fcm, err := push.NewFCMSender(context.Background(), cfg.FirebaseCredentials)
		if err != nil {
			logger.Fatal().Err(err).Msg("firebase messaging")
		}
		sender = fcm
	} else {
		logger.Warn().Msg("FELLOWSHIP_FIREBASE_CREDENTIALS not set, push goes to live connections only")
	}

	pushSvc := push.NewService(dbConn, hub, sender, statsUpdater, logger.With().Str("component", "push").Logger())
	auth := identity.NewService(dbConn, cfg.SigningKey, cfg.SessionTTL)

	srv, err := api.NewChurchApp(mux, logger, dbConn, hub, auth, pushSvc, statsUpdater, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("new app")
	}

	statsUpdater.Run()
	defer statsUpdater.Stop()

	go hub.Run()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		logger.Info().Str("signal", sig.String()).Msg("received signal")
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("server")
		}
	}

	shutDownCtx, cancel := context.WithTimeout(
		context.Background(),
		10*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutDownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown")
	}

	logger.Info().Msg("shutting down realtime hub...")
	if err := hub.Shutdown(shutDownCtx); err != nil {
		logger.Error().Err(err).Msg("hub shutdown")
	}

	logger.Info().Msg("shutdown complete")
}
