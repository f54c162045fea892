package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/aigoflow/stt-service/internal/admission"
	"github.com/aigoflow/stt-service/internal/audio"
	"github.com/aigoflow/stt-service/internal/config"
	"github.com/aigoflow/stt-service/internal/repository"
	"github.com/aigoflow/stt-service/internal/services"
	"github.com/aigoflow/stt-service/internal/store"
	"github.com/aigoflow/stt-service/internal/whisper"
	"github.com/aigoflow/stt-service/pkg/server"
)

func main() {
	var envFile = flag.String("env", "", "Optional .env file to load")
	flag.Parse()

	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load(*envFile)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	// Initialize outcome log store
	repo := repository.NewDisabledRepository()
	var db *store.DB
	if cfg.LogStoreEnabled {
		_ = os.MkdirAll(filepath.Dir(cfg.DBPath), 0755)
		db, err = store.Open(cfg.DBPath)
		if err != nil {
			slog.Error("Failed to open database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		repo = repository.NewSQLiteRepository(db)

		db.Event("info", "startup", "Server starting", map[string]interface{}{
			"model_name": cfg.ModelName,
			"http_addr":  cfg.HTTPAddr,
			"db_path":    cfg.DBPath,
		})
	} else {
		slog.Info("Outcome log store disabled")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start the background model load; requests fail fast until it finishes.
	loader := whisper.NewLoader(whisper.LoaderConfig{
		BinPath:   cfg.WhisperBin,
		ModelPath: cfg.ModelPath,
		ModelURL:  cfg.ModelURL,
	})
	if db != nil {
		db.Event("info", "model.loading", "Model loading started", map[string]interface{}{
			"model_path": cfg.ModelPath,
			"model_name": cfg.ModelName,
			"device":     cfg.ModelDevice,
		})
	}
	loader.Start(ctx)

	// Initialize pipeline services
	scratchDir := filepath.Join(cfg.DataDir, "tmp")
	_ = os.MkdirAll(scratchDir, 0755)

	pool := admission.NewSlotPool(cfg.MaxConcurrent)
	normalizer := audio.NewNormalizer(cfg.FFmpegBin, cfg.FFmpegTimeout)
	outcome := services.NewOutcomeLogger(repo, cfg.MaxLogPayloadChars)
	svc := services.NewTranscriptionService(loader, pool, normalizer, outcome, repo, services.TranscriptionConfig{
		MaxUploadBytes: cfg.MaxUploadBytes,
		BeamSize:       cfg.BeamSize,
		Threads:        cfg.Threads,
		ScratchDir:     scratchDir,
	})

	// Start HTTP server
	httpServer := server.NewServer(cfg, svc, loader)
	go func() {
		if err := httpServer.Start(ctx); err != nil {
			if db != nil {
				db.Event("error", "http.failed", "HTTP server failed", map[string]interface{}{
					"error": err.Error(),
				})
			}
			slog.Error("HTTP server failed", "error", err)
		}
	}()

	// Start NATS transport when configured
	if cfg.NatsURL != "" {
		natsService, err := services.NewNATSService(cfg, svc)
		if err != nil {
			if db != nil {
				db.Event("error", "nats.failed", "NATS service initialization failed", map[string]interface{}{
					"nats_url": cfg.NatsURL,
					"error":    err.Error(),
				})
			}
			slog.Error("Failed to create NATS service", "error", err)
			os.Exit(1)
		}
		go func() {
			if err := natsService.Start(ctx); err != nil {
				slog.Error("NATS service failed", "error", err)
			}
		}()
	}

	if db != nil {
		db.Event("info", "server.ready", "Server ready to accept requests", map[string]interface{}{
			"http_addr":      cfg.HTTPAddr,
			"model_name":     cfg.ModelName,
			"max_concurrent": cfg.MaxConcurrent,
		})
	}

	// Graceful shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	slog.Info("Shutting down server")
}
