package repository

import (
	"context"
	"time"

	"github.com/aigoflow/stt-service/internal/models"
	"github.com/aigoflow/stt-service/internal/store"
)

// SQLiteRepository implements Repository interface using SQLite
type SQLiteRepository struct {
	db          *store.DB
	requestRepo RequestRepositoryInterface
	eventRepo   EventRepositoryInterface
}

func NewSQLiteRepository(db *store.DB) Repository {
	return &SQLiteRepository{
		db:          db,
		requestRepo: &SQLiteRequestRepository{db: db},
		eventRepo:   &SQLiteEventRepository{db: db},
	}
}

func (r *SQLiteRepository) Request() RequestRepositoryInterface {
	return r.requestRepo
}

func (r *SQLiteRepository) Event() EventRepositoryInterface {
	return r.eventRepo
}

// SQLiteRequestRepository handles outcome record persistence
type SQLiteRequestRepository struct {
	db *store.DB
}

func (r *SQLiteRequestRepository) LogRequest(ctx context.Context, rec *models.RequestLogRecord) error {
	return r.db.Req(
		rec.Timestamp,
		rec.ReqID,
		rec.Source,
		rec.ClientHost,
		rec.UserAgent,
		rec.Filename,
		rec.ContentType,
		rec.SizeBytes,
		rec.Status,
		time.Duration(rec.DurationMs)*time.Millisecond,
		rec.Payload,
		rec.Error,
		rec.OK,
	)
}

func (r *SQLiteRequestRepository) GetRequestLogs(ctx context.Context, limit int) ([]*models.RequestLogRecord, error) {
	rows, err := r.db.Query(`SELECT id,ts,req_id,source,client_host,user_agent,filename,content_type,size_bytes,status,dur_ms,payload,error,ok FROM requests ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*models.RequestLogRecord
	for rows.Next() {
		var rec models.RequestLogRecord
		var tsFloat float64
		var okInt int

		if err := rows.Scan(
			&rec.ID, &tsFloat, &rec.ReqID, &rec.Source, &rec.ClientHost, &rec.UserAgent,
			&rec.Filename, &rec.ContentType, &rec.SizeBytes, &rec.Status, &rec.DurationMs,
			&rec.Payload, &rec.Error, &okInt,
		); err == nil {
			rec.Timestamp = time.Unix(0, int64(tsFloat*1e9))
			rec.OK = okInt != 0
			records = append(records, &rec)
		}
	}

	return records, nil
}

// SQLiteEventRepository handles process event logging
type SQLiteEventRepository struct {
	db *store.DB
}

func (r *SQLiteEventRepository) LogEvent(ctx context.Context, level, code, msg string, meta map[string]interface{}) error {
	r.db.Event(level, code, msg, meta)
	return nil
}
