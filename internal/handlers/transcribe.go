package handlers

import (
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net"
	"net/http"
	"strconv"

	"github.com/oklog/ulid/v2"

	"github.com/aigoflow/stt-service/internal/models"
	"github.com/aigoflow/stt-service/internal/services"
	"github.com/aigoflow/stt-service/internal/whisper"
)

type TranscribeHandler struct {
	svc    *services.TranscriptionService
	loader *whisper.Loader
}

func NewTranscribeHandler(svc *services.TranscriptionService, loader *whisper.Loader) *TranscribeHandler {
	return &TranscribeHandler{svc: svc, loader: loader}
}

func (h *TranscribeHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/transcribe", h.handleTranscribe)
	mux.HandleFunc("/transcribe/logs", h.handleLogs)
	mux.HandleFunc("/healthz", h.handleHealth)
}

func (h *TranscribeHandler) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeDetail(w, http.StatusMethodNotAllowed, "POST only")
		return
	}

	reqID := ulid.Make().String()

	// The upload is streamed straight into the pipeline, never buffered
	// whole in memory. Form fields before the file part are still honored.
	language := r.URL.Query().Get("language")
	var file io.Reader
	var filename, contentType string

	mr, err := r.MultipartReader()
	if err == nil {
		for {
			part, pErr := mr.NextPart()
			if pErr != nil {
				break
			}
			switch part.FormName() {
			case "language":
				if v, vErr := readSmallField(part); vErr == nil && v != "" {
					language = v
				}
			case "file":
				file = part
				filename = part.FileName()
				contentType = part.Header.Get("Content-Type")
			}
			if file != nil {
				break
			}
		}
	}

	result, err := h.svc.Transcribe(r.Context(), services.TranscribeRequest{
		ReqID:        reqID,
		File:         file,
		Filename:     filename,
		ContentType:  contentType,
		Language:     language,
		DeclaredSize: r.ContentLength,
		Source:       "http.transcribe",
		ClientHost:   clientHost(r),
		UserAgent:    r.UserAgent(),
	})
	if err != nil {
		status := services.StatusOf(err)
		slog.Warn("Transcription request rejected",
			"req_id", reqID,
			"status", status,
			"filename", filename,
			"error", err)
		writeDetail(w, status, services.DetailOf(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(result)
}

func (h *TranscribeHandler) handleLogs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeDetail(w, http.StatusMethodNotAllowed, "GET only")
		return
	}

	limit := 50
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			limit = n
		}
	}

	records, err := h.svc.GetRequestLogs(r.Context(), limit)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, "failed to read request logs")
		return
	}
	if records == nil {
		records = []*models.RequestLogRecord{}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(records)
}

func (h *TranscribeHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	state, diag := h.loader.State()

	status := http.StatusOK
	if state != whisper.StateReady {
		status = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status": state.String(),
		"detail": diag,
	})
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"detail": detail})
}

func clientHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func readSmallField(part *multipart.Part) (string, error) {
	b, err := io.ReadAll(io.LimitReader(part, 256))
	return string(b), err
}
