package services

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/aigoflow/stt-service/internal/config"
	"github.com/aigoflow/stt-service/internal/models"
)

// AudioRequest is the NATS transcription request payload.
type AudioRequest struct {
	ReqID       string `json:"req_id"`
	Filename    string `json:"filename,omitempty"`
	AudioBase64 string `json:"audio_base64,omitempty"`
	Language    string `json:"language,omitempty"`
	ReplyTo     string `json:"reply_to,omitempty"`
}

// AudioResponse is the NATS transcription reply payload.
type AudioResponse struct {
	ReqID      string           `json:"req_id"`
	Text       string           `json:"text"`
	Language   string           `json:"language"`
	Segments   []models.Segment `json:"segments,omitempty"`
	DurationMs int64            `json:"duration_ms"`
	Status     int              `json:"status"`
	Error      string           `json:"error,omitempty"`
}

// generateWorkerID creates a unique worker ID using timestamp and random bytes
func generateWorkerID() string {
	timestamp := time.Now().UnixNano()
	randomBytes := make([]byte, 4)
	rand.Read(randomBytes)
	return fmt.Sprintf("worker-%d-%s", timestamp, hex.EncodeToString(randomBytes))
}

// NATSService consumes transcription requests from a JetStream work queue
// and routes them through the same pipeline as HTTP, admission included.
type NATSService struct {
	conn *nats.Conn
	js   nats.JetStreamContext
	svc  *TranscriptionService
	cfg  *config.Config
}

func NewNATSService(cfg *config.Config, svc *TranscriptionService) (*NATSService, error) {
	conn, err := nats.Connect(cfg.NatsURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	return &NATSService{
		conn: conn,
		js:   js,
		svc:  svc,
		cfg:  cfg,
	}, nil
}

func (s *NATSService) Start(ctx context.Context) error {
	if err := s.ensureStream(); err != nil {
		return fmt.Errorf("failed to ensure stream: %w", err)
	}

	consumer, err := s.js.PullSubscribe(s.cfg.Subject, s.cfg.Durable, nats.ManualAck())
	if err != nil {
		return fmt.Errorf("failed to create pull consumer: %w", err)
	}

	slog.Info("NATS service starting",
		"stream", s.cfg.Stream,
		"subject", s.cfg.Subject,
		"consumer", s.cfg.Durable,
		"concurrency", s.cfg.Concurrency)

	for i := 0; i < s.cfg.Concurrency; i++ {
		go s.worker(ctx, consumer, generateWorkerID())
	}

	<-ctx.Done()
	slog.Info("NATS service shutting down")
	s.conn.Close()
	return nil
}

func (s *NATSService) ensureStream() error {
	streamInfo, err := s.js.StreamInfo(s.cfg.Stream)
	if err != nil {
		if err == nats.ErrStreamNotFound {
			_, err = s.js.AddStream(&nats.StreamConfig{
				Name:      s.cfg.Stream,
				Subjects:  []string{s.cfg.Subject},
				MaxMsgs:   int64(s.cfg.MaxMsgs),
				MaxAge:    s.cfg.MaxAge,
				Storage:   nats.FileStorage,
				Retention: nats.WorkQueuePolicy,
			})
			if err != nil {
				return fmt.Errorf("failed to create stream: %w", err)
			}
			slog.Info("Created NATS stream", "name", s.cfg.Stream)
			return nil
		}
		return fmt.Errorf("failed to get stream info: %w", err)
	}

	slog.Info("NATS stream already exists", "name", s.cfg.Stream, "messages", streamInfo.State.Msgs)
	return nil
}

func (s *NATSService) worker(ctx context.Context, consumer *nats.Subscription, workerID string) {
	slog.Info("NATS worker starting", "worker_id", workerID)

	for {
		select {
		case <-ctx.Done():
			slog.Info("NATS worker shutting down", "worker_id", workerID)
			return
		default:
			msgs, err := consumer.Fetch(1, nats.MaxWait(time.Second))
			if err != nil {
				if err == nats.ErrTimeout {
					continue
				}
				slog.Error("Failed to fetch messages", "worker_id", workerID, "error", err)
				time.Sleep(time.Second)
				continue
			}

			for _, msg := range msgs {
				s.processMessage(ctx, msg, workerID)
			}
		}
	}
}

func (s *NATSService) processMessage(ctx context.Context, msg *nats.Msg, workerID string) {
	start := time.Now()

	var req AudioRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		slog.Error("Failed to parse transcription request",
			"worker_id", workerID,
			"subject", msg.Subject,
			"error", err)
		msg.Nak()
		return
	}

	slog.Debug("Processing NATS transcription request",
		"worker_id", workerID,
		"req_id", req.ReqID,
		"subject", msg.Subject)

	response := AudioResponse{ReqID: req.ReqID}

	audioData, decErr := base64.StdEncoding.DecodeString(req.AudioBase64)
	if decErr != nil || len(audioData) == 0 {
		response.Status = 422
		response.Error = "invalid or missing base64 audio data"
	} else {
		result, err := s.svc.Transcribe(ctx, TranscribeRequest{
			ReqID:        req.ReqID,
			File:         bytes.NewReader(audioData),
			Filename:     req.Filename,
			Language:     req.Language,
			DeclaredSize: int64(len(audioData)),
			Source:       fmt.Sprintf("nats.%s", msg.Subject),
			ClientHost:   "nats",
			UserAgent:    workerID,
		})
		if err != nil {
			response.Status = StatusOf(err)
			response.Error = DetailOf(err)
		} else {
			response.Status = 200
			response.Text = result.Text
			response.Language = result.Language
			response.Segments = result.Segments
		}
	}

	response.DurationMs = time.Since(start).Milliseconds()

	if req.ReplyTo != "" {
		data, marshalErr := json.Marshal(response)
		if marshalErr != nil {
			slog.Error("Failed to marshal response", "worker_id", workerID, "req_id", req.ReqID, "error", marshalErr)
		} else if pubErr := s.conn.Publish(req.ReplyTo, data); pubErr != nil {
			slog.Error("Failed to publish response",
				"worker_id", workerID,
				"req_id", req.ReqID,
				"reply_subject", req.ReplyTo,
				"error", pubErr)
		}
	}

	if ackErr := msg.Ack(); ackErr != nil {
		slog.Error("Failed to acknowledge message", "worker_id", workerID, "req_id", req.ReqID, "error", ackErr)
	}

	if response.Error == "" {
		slog.Info("NATS transcription completed",
			"worker_id", workerID,
			"req_id", req.ReqID,
			"duration_ms", response.DurationMs,
			"segments", len(response.Segments))
	} else {
		slog.Error("NATS transcription failed",
			"worker_id", workerID,
			"req_id", req.ReqID,
			"duration_ms", response.DurationMs,
			"status", response.Status,
			"error", response.Error)
	}
}
