package services

import (
	"context"
	"log/slog"

	"github.com/aigoflow/stt-service/internal/models"
	"github.com/aigoflow/stt-service/internal/repository"
)

// TruncationMarker is appended to oversized payloads in place of the
// removed tail.
const TruncationMarker = "...[truncated]"

// OutcomeLogger persists exactly one record per completed request attempt.
// It is strictly best-effort: its own failures, panics included, are
// reported to slog and never reach the response path.
type OutcomeLogger struct {
	repo     repository.Repository
	maxChars int
}

func NewOutcomeLogger(repo repository.Repository, maxChars int) *OutcomeLogger {
	return &OutcomeLogger{repo: repo, maxChars: maxChars}
}

func (l *OutcomeLogger) Record(ctx context.Context, rec *models.RequestLogRecord) {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("Outcome log write panicked", "req_id", rec.ReqID, "panic", r)
		}
	}()

	rec.Payload = l.Truncate(rec.Payload)
	rec.Error = l.Truncate(rec.Error)

	if err := l.repo.Request().LogRequest(ctx, rec); err != nil {
		slog.Warn("Outcome log write failed",
			"req_id", rec.ReqID,
			"status", rec.Status,
			"error", err)
	}
}

// Truncate cuts s down to the configured character budget, marking the cut
// explicitly rather than rejecting the record.
func (l *OutcomeLogger) Truncate(s string) string {
	if l.maxChars <= 0 || len(s) <= l.maxChars {
		return s
	}
	return s[:l.maxChars] + TruncationMarker
}
