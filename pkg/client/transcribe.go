// Package client provides a NATS-based client for the transcription
// work queue.
package client

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/oklog/ulid/v2"
)

// TranscribeRequest is the work-queue request payload.
type TranscribeRequest struct {
	ReqID       string `json:"req_id"`
	Filename    string `json:"filename,omitempty"`
	AudioBase64 string `json:"audio_base64,omitempty"`
	Language    string `json:"language,omitempty"`
	ReplyTo     string `json:"reply_to,omitempty"`
}

// Segment mirrors the service's timed segment.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// TranscribeResponse is the work-queue reply payload.
type TranscribeResponse struct {
	ReqID      string    `json:"req_id"`
	Text       string    `json:"text"`
	Language   string    `json:"language"`
	Segments   []Segment `json:"segments,omitempty"`
	DurationMs int64     `json:"duration_ms"`
	Status     int       `json:"status"`
	Error      string    `json:"error,omitempty"`
}

// TranscribeClient submits audio to the service over NATS and waits for
// the reply.
type TranscribeClient interface {
	Transcribe(ctx context.Context, model, filename string, audio []byte, language string) (*TranscribeResponse, error)
	Close() error
}

type natsTranscribeClient struct {
	conn     *nats.Conn
	clientID string
	timeout  time.Duration
}

func NewNATSClient(natsURL, clientID string) (TranscribeClient, error) {
	conn, err := nats.Connect(natsURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	if clientID == "" {
		clientID = "transcribe-client"
	}

	return &natsTranscribeClient{
		conn:     conn,
		clientID: clientID,
		timeout:  120 * time.Second,
	}, nil
}

func (c *natsTranscribeClient) Transcribe(ctx context.Context, model, filename string, audio []byte, language string) (*TranscribeResponse, error) {
	topic := fmt.Sprintf("transcribe.request.%s", model)

	reqID := ulid.Make().String()
	replySubject := fmt.Sprintf("transcribe.response.%s.%s", c.clientID, reqID)

	request := TranscribeRequest{
		ReqID:       reqID,
		Filename:    filename,
		AudioBase64: base64.StdEncoding.EncodeToString(audio),
		Language:    language,
		ReplyTo:     replySubject,
	}

	sub, err := c.conn.SubscribeSync(replySubject)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to reply subject: %w", err)
	}
	defer sub.Unsubscribe()

	data, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	if err := c.conn.Publish(topic, data); err != nil {
		return nil, fmt.Errorf("failed to publish request: %w", err)
	}

	timeout := c.timeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}

	msg, err := sub.NextMsg(timeout)
	if err != nil {
		return nil, fmt.Errorf("no response for request %s: %w", reqID, err)
	}

	var response TranscribeResponse
	if err := json.Unmarshal(msg.Data, &response); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	return &response, nil
}

func (c *natsTranscribeClient) Close() error {
	c.conn.Close()
	return nil
}
