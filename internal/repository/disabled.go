package repository

import (
	"context"

	"github.com/aigoflow/stt-service/internal/models"
)

// DisabledRepository is used when the outcome log store is switched off.
// Writes are dropped and reads return nothing; the pipeline behaves
// identically otherwise.
type DisabledRepository struct{}

func NewDisabledRepository() Repository {
	return &DisabledRepository{}
}

func (r *DisabledRepository) Request() RequestRepositoryInterface {
	return &disabledRequestRepository{}
}

func (r *DisabledRepository) Event() EventRepositoryInterface {
	return &disabledEventRepository{}
}

type disabledRequestRepository struct{}

func (r *disabledRequestRepository) LogRequest(ctx context.Context, rec *models.RequestLogRecord) error {
	return nil
}

func (r *disabledRequestRepository) GetRequestLogs(ctx context.Context, limit int) ([]*models.RequestLogRecord, error) {
	return nil, nil
}

type disabledEventRepository struct{}

func (r *disabledEventRepository) LogEvent(ctx context.Context, level, code, msg string, meta map[string]interface{}) error {
	return nil
}
