package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/aigoflow/stt-service/internal/config"
	"github.com/aigoflow/stt-service/internal/handlers"
	"github.com/aigoflow/stt-service/internal/services"
	"github.com/aigoflow/stt-service/internal/whisper"
)

type Server struct {
	cfg    *config.Config
	svc    *services.TranscriptionService
	loader *whisper.Loader
}

func NewServer(cfg *config.Config, svc *services.TranscriptionService, loader *whisper.Loader) *Server {
	return &Server{
		cfg:    cfg,
		svc:    svc,
		loader: loader,
	}
}

func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()

	transcribeHandler := handlers.NewTranscribeHandler(s.svc, s.loader)
	transcribeHandler.RegisterRoutes(mux)

	var root http.Handler = mux
	root = handlers.SecurityHeaders(root)
	root = handlers.OriginFilter(s.cfg, s.svc, root)

	srv := &http.Server{
		Addr:    s.cfg.HTTPAddr,
		Handler: root,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("HTTP server starting",
		"addr", s.cfg.HTTPAddr,
		"endpoints", []string{"/transcribe", "/transcribe/logs", "/healthz"})

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
