package repository

import (
	"context"

	"github.com/aigoflow/stt-service/internal/models"
)

// Repository aggregates all repository interfaces
type Repository interface {
	Request() RequestRepositoryInterface
	Event() EventRepositoryInterface
}

// RequestRepositoryInterface defines outcome record operations
type RequestRepositoryInterface interface {
	LogRequest(ctx context.Context, rec *models.RequestLogRecord) error
	GetRequestLogs(ctx context.Context, limit int) ([]*models.RequestLogRecord, error)
}

// EventRepositoryInterface defines process event logging operations
type EventRepositoryInterface interface {
	LogEvent(ctx context.Context, level, code, msg string, meta map[string]interface{}) error
}
