package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"storefront/internal/config"
	"storefront/internal/database"
	"storefront/internal/handlers"
	"storefront/internal/log"
	"storefront/internal/repository"
	"storefront/internal/server"
)

func main() {
	configFile := flag.String("config", "", "config file")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		panic(err)
	}

	logger := log.New(cfg.Environment, nil)

	ctx := context.Background()

	accounts, dbPool := openAccounts(ctx, cfg, logger)

	handlerSet := handlers.NewHandlerSet(logger, accounts, cfg)
	httpServer := server.NewHTTPServer(cfg, logger, handlerSet)

	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	waitForShutdown(logger, httpServer, dbPool)
}

func openAccounts(ctx context.Context, cfg *config.AppConfig, logger zerolog.Logger) (repository.AccountRepository, *pgxpool.Pool) {
	switch cfg.Backend.Repository {
	case "postgres":
		dbPool, err := database.NewPostgresPool(ctx, cfg.Postgres)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect postgres")
		}
		if err := database.Migrate(ctx, dbPool); err != nil {
			logger.Fatal().Err(err).Msg("failed to migrate postgres")
		}
		return repository.NewPostgresAccountRepository(dbPool), dbPool
	case "", "memory":
		logger.Warn().Msg("using in-memory account repository, accounts are lost on exit")
		return repository.NewMemoryAccountRepository(), nil
	default:
		logger.Fatal().Str("repository", cfg.Backend.Repository).Msg("unknown account repository")
		return nil, nil
	}
}

func waitForShutdown(logger zerolog.Logger, srv *server.HTTPServer, db *pgxpool.Pool) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
		if err := srv.Shutdown(context.Background()); err != nil {
			logger.Error().Err(err).Msg("forced shutdown failed")
		}
	}

	if db != nil {
		db.Close()
	}

	logger.Info().Msg("server exited cleanly")
	os.Exit(0)
}
