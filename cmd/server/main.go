// Package main is the entry point for the foliodraft service: the bulk
// data-entry engine behind the portfolio tracker's QuickStart wizard.
// It wires the draft store, the enrichment and submission services and the
// persistence adapter, and serves them to the wizard UI over HTTP.
package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/robfig/cron/v3"

	"github.com/foliodraft/foliodraft/internal/clients/folioapi"
	"github.com/foliodraft/foliodraft/internal/clients/pricestream"
	"github.com/foliodraft/foliodraft/internal/config"
	"github.com/foliodraft/foliodraft/internal/draft"
	"github.com/foliodraft/foliodraft/internal/enrich"
	"github.com/foliodraft/foliodraft/internal/entity"
	"github.com/foliodraft/foliodraft/internal/persist"
	"github.com/foliodraft/foliodraft/internal/server"
	"github.com/foliodraft/foliodraft/internal/submit"
	"github.com/foliodraft/foliodraft/pkg/logger"
)

func main() {
	// Load configuration first to get log level
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: true,
	})

	log.Info().Msg("Starting foliodraft")

	// Snapshot database. One small sqlite file holding the durable draft
	// slot; the in-memory store stays the source of truth.
	dbPath := filepath.Join(cfg.DataDir, "drafts.db")
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", dbPath).Msg("Failed to open snapshot database")
	}
	defer db.Close()

	slot := persist.NewSlot(db)
	if err := slot.InitSchema(); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize snapshot schema")
	}

	// Core wiring: one store per process; this service hosts a single
	// wizard session.
	store := draft.NewStore(entity.Readiness, log)
	backend := folioapi.NewClient(cfg.BackendBaseURL, log)

	enrichment := enrich.NewService(store, backend, log, enrich.Options{
		Debounce:     cfg.SearchDebounce,
		HydrateDelay: cfg.HydrateDelay,
		MinQueryLen:  cfg.MinQueryLen,
	})
	orchestrator := submit.NewOrchestrator(store, backend, log)
	persistence := persist.NewAdapter(slot, store, log, persist.Options{
		TTL:      cfg.SnapshotTTL,
		Debounce: cfg.AutosaveDebounce,
	})

	// Expired snapshots are also swept on a schedule, so abandoned
	// sessions do not leave blobs behind until someone checks for a draft.
	cleanup := persist.NewCleanupJob(slot, log)
	scheduler := cron.New()
	if _, err := scheduler.AddJob("@hourly", cleanup); err != nil {
		log.Error().Err(err).Msg("Failed to schedule snapshot cleanup")
	}
	scheduler.Start()

	// Optional live quote feed keeps prices of staged rows fresh.
	var stream *pricestream.Client
	if cfg.PriceStreamURL != "" {
		stream = pricestream.NewClient(cfg.PriceStreamURL, enrichment.ApplyQuote, log)
		stream.Start()
	}

	srv := server.New(server.Config{
		Port:         cfg.Port,
		Log:          log,
		Store:        store,
		Enrichment:   enrichment,
		Orchestrator: orchestrator,
		Persistence:  persistence,
		Backend:      backend,
		DevMode:      cfg.DevMode,
	})

	go func() {
		if err := srv.Start(); err != nil {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()
	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down...")

	scheduler.Stop()
	if stream != nil {
		stream.Stop()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Any pending autosave goes to disk before the process exits.
	persistence.Flush()

	log.Info().Msg("Server stopped")
}
