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

	"github.com/intellisoft-ke/findams/internal/amc"
	"github.com/intellisoft-ke/findams/internal/aware"
	"github.com/intellisoft-ke/findams/internal/batch"
	"github.com/intellisoft-ke/findams/internal/config"
	"github.com/intellisoft-ke/findams/internal/core"
	"github.com/intellisoft-ke/findams/internal/dhis"
	"github.com/intellisoft-ke/findams/internal/logging"
	"github.com/intellisoft-ke/findams/internal/pipeline"
	"github.com/intellisoft-ke/findams/internal/store"
	"github.com/intellisoft-ke/findams/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"dhis_base_url", cfg.DHIS.BaseURL,
		"inbound_dir", cfg.Files.InboundDir,
		"scan_interval", cfg.Import.ScanInterval,
	)

	ctx := context.Background()
	log := slog.Default()

	client := dhis.NewClient(cfg.DHIS, log)
	classes := aware.Load(cfg.Files.AwarePath, log)
	pipe := pipeline.New(client, cfg.DHIS, cfg.Import, classes, log)

	// Optional local audit mirror, enabled by DATABASE_URL.
	var audit batch.AuditStore
	if cfg.Database.URL != "" {
		pg, err := store.Open(ctx, cfg.Database)
		if err != nil {
			slog.Error("failed to open audit store", "error", err)
			os.Exit(1)
		}
		defer pg.Close()
		audit = pg
		slog.Info("audit store enabled")
	}

	tracker := batch.NewTracker(client, audit, cfg.Files.ProcessedDir, log)

	service, err := core.NewService(pipe, tracker, cfg.Files.InboundDir, log)
	if err != nil {
		slog.Error("failed to create service", "error", err)
		os.Exit(1)
	}

	// Optional consumption collaborator, enabled by FUNSOFT_AMU_URL.
	if cfg.Funsoft.AmuURL != "" {
		ref, err := amc.LoadReference(cfg.Files.AtcDddPath)
		if err != nil {
			slog.Error("failed to load atc ddd reference", "error", err)
			os.Exit(1)
		}
		service.SetConsumptionTrigger(amc.NewCollector(amc.NewFeedClient(cfg.Funsoft), ref, log))
		slog.Info("consumption trigger enabled")
	}

	server := web.NewServer(service, cfg.Security, log)

	// Cancellable context for the background scan
	jobCtx, cancelJobs := context.WithCancel(context.Background())

	go service.StartScheduler(jobCtx, cfg.Import.ScanInterval)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")
		cancelJobs()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	if err := server.Start(cfg.Server); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}
