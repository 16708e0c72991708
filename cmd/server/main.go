// Command server runs the tutor HTTP API.
//
// Configuration comes from the environment; .env.local and .env in the
// working directory are loaded first when present. With -migrate-only (or
// MIGRATE_ONLY=true) the schema is migrated and the process exits.
package main

import (
	"context"
	"errors"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/go-tutor-backend/internal/config"
	httpapi "github.com/tbourn/go-tutor-backend/internal/http"
	"github.com/tbourn/go-tutor-backend/internal/mailer"
	"github.com/tbourn/go-tutor-backend/internal/observability"
	"github.com/tbourn/go-tutor-backend/internal/repo"
	"github.com/tbourn/go-tutor-backend/internal/sysutil"
	"github.com/tbourn/go-tutor-backend/internal/upstream"
)

const (
	shutdownGrace         = 20 * time.Second
	idempotencySweepEvery = time.Hour
)

func main() {
	migrateOnly := flag.Bool("migrate-only", false, "migrate the database schema and exit")
	flag.Parse()

	envFiles, envErr := sysutil.LoadEnvFiles(".env.local", ".env")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	logCloser, err := observability.SetupLogging(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("logging setup")
	}
	defer logCloser.Close()
	if envErr != nil {
		log.Warn().Err(envErr).Msg("dotenv file ignored")
	}

	version := sysutil.Version()
	log.Info().
		Str("version", version).
		Strs("env_files", envFiles).
		Str("db_path", cfg.DBPath).
		Str("upstream", cfg.Upstream.BaseURL).
		Msg("starting")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("tracing setup")
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			log.Warn().Err(err).Msg("tracer shutdown")
		}
	}()

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("db_path", cfg.DBPath).Msg("open database")
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrate database")
	}
	if *migrateOnly || sysutil.IsTruthy(os.Getenv("MIGRATE_ONLY")) {
		log.Info().Msg("schema migrated, exiting")
		return
	}

	go sweepIdempotency(ctx, db, idempotencySweepEvery)

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, db, upstream.New(cfg.Upstream), mailer.New(cfg.Mail), cfg)

	srv := &http.Server{
		Addr:              net.JoinHostPort("", cfg.Port),
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("base_path", cfg.APIBasePath).Msg("listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server stopped")
		}
		return
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown")
	}
}

// sweepIdempotency drops expired replay records until ctx ends.
func sweepIdempotency(ctx context.Context, db *gorm.DB, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			n, err := repo.DeleteExpiredIdempotency(ctx, db, now.UTC())
			if err != nil {
				log.Warn().Err(err).Msg("idempotency sweep")
				continue
			}
			if n > 0 {
				log.Debug().Int64("deleted", n).Msg("idempotency sweep")
			}
		}
	}
}
