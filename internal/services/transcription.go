package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aigoflow/stt-service/internal/admission"
	"github.com/aigoflow/stt-service/internal/audio"
	"github.com/aigoflow/stt-service/internal/models"
	"github.com/aigoflow/stt-service/internal/repository"
	"github.com/aigoflow/stt-service/internal/whisper"
)

// TranscribeRequest carries one upload through the pipeline. It lives for
// the duration of a single call.
type TranscribeRequest struct {
	ReqID        string
	File         io.Reader
	Filename     string
	ContentType  string
	Language     string
	DeclaredSize int64 // -1 when unknown
	Source       string
	ClientHost   string
	UserAgent    string
}

// TranscriptionService runs the admission and processing pipeline:
// readiness gate, upload validation, slot acquisition, normalization,
// model invocation and the outcome record.
type TranscriptionService struct {
	loader     *whisper.Loader
	pool       *admission.SlotPool
	normalizer *audio.Normalizer
	outcome    *OutcomeLogger
	repo       repository.Repository

	maxUploadBytes int64
	beamSize       int
	threads        int
	scratchDir     string
}

type TranscriptionConfig struct {
	MaxUploadBytes int64
	BeamSize       int
	Threads        int
	ScratchDir     string
}

func NewTranscriptionService(loader *whisper.Loader, pool *admission.SlotPool, normalizer *audio.Normalizer,
	outcome *OutcomeLogger, repo repository.Repository, cfg TranscriptionConfig) *TranscriptionService {
	return &TranscriptionService{
		loader:         loader,
		pool:           pool,
		normalizer:     normalizer,
		outcome:        outcome,
		repo:           repo,
		maxUploadBytes: cfg.MaxUploadBytes,
		beamSize:       cfg.BeamSize,
		threads:        cfg.Threads,
		scratchDir:     cfg.ScratchDir,
	}
}

// Transcribe processes one upload end to end and always writes exactly one
// outcome record, success or failure. Errors are Conditions carrying their
// boundary status.
func (s *TranscriptionService) Transcribe(ctx context.Context, req TranscribeRequest) (result *models.TranscriptionResult, err error) {
	start := time.Now()
	var sizeBytes int64

	defer func() {
		status := http.StatusOK
		errStr := ""
		payload := ""
		if err != nil {
			status = StatusOf(err)
			errStr = DetailOf(err)
		} else if b, mErr := json.Marshal(result); mErr == nil {
			payload = string(b)
		}
		s.outcome.Record(ctx, &models.RequestLogRecord{
			Timestamp:   start,
			ReqID:       req.ReqID,
			Source:      req.Source,
			ClientHost:  req.ClientHost,
			UserAgent:   req.UserAgent,
			Filename:    req.Filename,
			ContentType: req.ContentType,
			SizeBytes:   sizeBytes,
			Status:      status,
			DurationMs:  float64(time.Since(start).Milliseconds()),
			Payload:     payload,
			Error:       errStr,
			OK:          err == nil,
		})
	}()

	// Readiness gate: fail fast, never wait on the load.
	state, diag := s.loader.State()
	switch state {
	case whisper.StateLoading:
		return nil, ServiceUnavailable("model is still loading, retry shortly")
	case whisper.StateFailed:
		return nil, ServiceUnavailable("model failed to load: " + diag)
	}

	if err = ValidateUpload(req.Filename, req.DeclaredSize, s.maxUploadBytes); err != nil {
		return nil, err
	}

	if !s.pool.TryAcquire() {
		return nil, TooManyRequests("transcription capacity exhausted, retry shortly")
	}
	defer s.pool.Release()

	tmpDir, dirErr := os.MkdirTemp(s.scratchDir, "transcribe-")
	if dirErr != nil {
		return nil, ProcessingFailed("could not allocate scratch space", dirErr)
	}
	defer os.RemoveAll(tmpDir)

	inPath := filepath.Join(tmpDir, "input"+strings.ToLower(filepath.Ext(req.Filename)))
	sizeBytes, err = saveWithLimit(req.File, inPath, s.maxUploadBytes)
	if err != nil {
		return nil, err
	}

	// External processes run on a detached context: a client disconnect must
	// not orphan artifacts mid-conversion, the timeouts bound them instead.
	procCtx := context.WithoutCancel(ctx)

	wavPath, nErr := s.normalizer.Normalize(procCtx, inPath)
	if nErr != nil {
		if errors.Is(nErr, audio.ErrTimeout) {
			return nil, Timeout("audio processing time exceeded", nErr)
		}
		return nil, ProcessingFailed("could not process the audio file", nErr)
	}
	defer os.Remove(wavPath)

	res, tErr := s.loader.Engine().Transcribe(procCtx, wavPath, whisper.Options{
		Language: req.Language,
		BeamSize: s.beamSize,
		Threads:  s.threads,
	})
	if tErr != nil {
		return nil, ModelInferenceFailed("transcription failed", tErr)
	}

	slog.Info("Transcription completed",
		"req_id", req.ReqID,
		"source", req.Source,
		"size_bytes", sizeBytes,
		"segments", len(res.Segments),
		"language", res.Language,
		"duration_ms", time.Since(start).Milliseconds())

	return res, nil
}

// GetRequestLogs returns the most recent outcome records, newest first.
func (s *TranscriptionService) GetRequestLogs(ctx context.Context, limit int) ([]*models.RequestLogRecord, error) {
	return s.repo.Request().GetRequestLogs(ctx, limit)
}

// RecordRejection writes an outcome record for a request refused before it
// reached the pipeline, such as an origin filter denial.
func (s *TranscriptionService) RecordRejection(ctx context.Context, rec *models.RequestLogRecord) {
	s.outcome.Record(ctx, rec)
}

// saveWithLimit streams the upload to path, failing mid-stream once the
// byte cap is exceeded. An empty upload is rejected like a missing one.
func saveWithLimit(r io.Reader, path string, maxBytes int64) (int64, error) {
	if r == nil {
		return 0, UnsupportedMediaType("no file provided")
	}

	dst, err := os.Create(path)
	if err != nil {
		return 0, ProcessingFailed("could not store upload", err)
	}
	defer dst.Close()

	var total int64
	buf := make([]byte, 1<<20)
	for {
		n, rErr := r.Read(buf)
		if n > 0 {
			total += int64(n)
			if maxBytes > 0 && total > maxBytes {
				return total, PayloadTooLarge(fmt.Sprintf("file too large, maximum allowed: %d bytes", maxBytes))
			}
			if _, wErr := dst.Write(buf[:n]); wErr != nil {
				return total, ProcessingFailed("could not store upload", wErr)
			}
		}
		if rErr == io.EOF {
			break
		}
		if rErr != nil {
			return total, ProcessingFailed("could not read upload", rErr)
		}
	}

	if total == 0 {
		return 0, UnsupportedMediaType("empty file")
	}
	return total, nil
}
