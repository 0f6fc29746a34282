package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/dvloznov/sheetledger/internal/api"
	"github.com/dvloznov/sheetledger/internal/audit"
	"github.com/dvloznov/sheetledger/internal/auth"
	"github.com/dvloznov/sheetledger/internal/bootstrap"
	"github.com/dvloznov/sheetledger/internal/config"
	infraBQ "github.com/dvloznov/sheetledger/internal/infra/bigquery"
	"github.com/dvloznov/sheetledger/internal/jobs"
	"github.com/dvloznov/sheetledger/internal/jobs/inmemory"
	"github.com/dvloznov/sheetledger/internal/ledger"
	"github.com/dvloznov/sheetledger/internal/logger"
	"github.com/joho/godotenv"
)

func main() {
	// Missing .env is fine; the environment wins otherwise.
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log, err := logger.Setup(cfg.Logging.Level, cfg.Logging.Format, os.Stdout)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if envErr == nil {
		log.Debug().Msg("Loaded .env file")
	}

	ctx := logger.WithContext(context.Background(), log)

	schemas, closeStore, err := bootstrap.SchemaStore(ctx, cfg.Store)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open schema store")
	}
	defer closeStore()

	// Initialize audit delivery
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(inmemory.QueueOptions{
		BufferSize:   cfg.Audit.QueueSize,
		Workers:      cfg.Audit.Workers,
		RetryBackoff: cfg.Audit.RetryBackoff,
	}, jobStore)

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	var recorder audit.Recorder = audit.LogRecorder{}
	if cfg.Audit.Enabled() {
		repo, err := infraBQ.NewAuditRepository(ctx, infraBQ.Config{
			ProjectID: cfg.Audit.ProjectID,
			DatasetID: cfg.Audit.DatasetID,
			Table:     cfg.Audit.Table,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create audit repository")
		}
		defer repo.Close()

		if err := jobQueue.Start(workerCtx, jobs.DeliverAudit(repo)); err != nil {
			log.Fatal().Err(err).Msg("Failed to start audit workers")
		}
		recorder = audit.Multi{audit.LogRecorder{}, jobs.NewAuditRecorder(jobQueue)}
		log.Info().
			Str("project", cfg.Audit.ProjectID).
			Str("dataset", cfg.Audit.DatasetID).
			Str("table", cfg.Audit.Table).
			Msg("Shipping write audit to BigQuery")
	} else {
		log.Warn().Msg("No audit project configured - write audit is only logged")
	}

	svc := ledger.NewService(bootstrap.SheetsClient(cfg.Google), schemas, recorder, ledger.Options{
		DetectConcurrency: cfg.Ledger.DetectConcurrency,
		DefaultPerPage:    cfg.Ledger.DefaultPerPage,
		MaxPerPage:        cfg.Ledger.MaxPerPage,
	})

	opts := api.RouterOptions{
		Ledger:         svc,
		Jobs:           jobStore,
		StaticOwner:    cfg.Auth.LocalOwner,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Log:            log,
	}
	if cfg.Auth.Disabled {
		log.Warn().Str("owner", cfg.Auth.LocalOwner).Msg("Authentication disabled")
	} else {
		opts.Verifier = auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      api.NewRouter(opts),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Int("port", cfg.Server.Port).Str("store", cfg.Store.Backend).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Wait for in-flight audit jobs
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}
	cancelWorker()

	if err := jobQueue.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close job queue")
	}

	log.Info().Msg("Server exited")
}
