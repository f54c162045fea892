package models

import "time"

// Segment is a timestamped span of recognized speech.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// TranscriptionResult is the assembled output of one model invocation.
type TranscriptionResult struct {
	Text     string    `json:"text"`
	Language string    `json:"language"`
	Segments []Segment `json:"segments"`
}

// RequestLogRecord is one durable audit entry per terminal request outcome.
type RequestLogRecord struct {
	ID          int64     `json:"id"`
	Timestamp   time.Time `json:"ts"`
	ReqID       string    `json:"req_id"`
	Source      string    `json:"source"`
	ClientHost  string    `json:"client_host"`
	UserAgent   string    `json:"user_agent"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`
	Status      int       `json:"status"`
	DurationMs  float64   `json:"dur_ms"`
	Payload     string    `json:"payload"`
	Error       string    `json:"error"`
	OK          bool      `json:"ok"`
}
