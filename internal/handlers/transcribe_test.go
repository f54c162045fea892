package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aigoflow/stt-service/internal/admission"
	"github.com/aigoflow/stt-service/internal/audio"
	"github.com/aigoflow/stt-service/internal/config"
	"github.com/aigoflow/stt-service/internal/handlers"
	"github.com/aigoflow/stt-service/internal/models"
	"github.com/aigoflow/stt-service/internal/repository"
	"github.com/aigoflow/stt-service/internal/services"
	"github.com/aigoflow/stt-service/internal/whisper"
)

const ffmpegOKScript = `#!/bin/sh
for last in "$@"; do :; done
printf 'RIFF0000WAVEdata' > "$last"
`

const whisperOKScript = `#!/bin/sh
out=""
prev=""
for a in "$@"; do
  if [ "$prev" = "--output-file" ]; then out="$a"; fi
  prev="$a"
done
cat > "$out.json" <<'JSON'
{"result":{"language":"en"},"transcription":[{"offsets":{"from":0,"to":900},"text":" good"},{"offsets":{"from":900,"to":1800},"text":" morning"}]}
JSON
`

type memoryRepo struct {
	mu      sync.Mutex
	records []*models.RequestLogRecord
}

func (r *memoryRepo) Request() repository.RequestRepositoryInterface { return (*memoryRequests)(r) }
func (r *memoryRepo) Event() repository.EventRepositoryInterface    { return memoryEvents{} }

func (r *memoryRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

type memoryRequests memoryRepo

func (r *memoryRequests) LogRequest(ctx context.Context, rec *models.RequestLogRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
	return nil
}

func (r *memoryRequests) GetRequestLogs(ctx context.Context, limit int) ([]*models.RequestLogRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.RequestLogRecord
	for i := len(r.records) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, r.records[i])
	}
	return out, nil
}

type memoryEvents struct{}

func (memoryEvents) LogEvent(ctx context.Context, level, code, msg string, meta map[string]interface{}) error {
	return nil
}

type fixture struct {
	handler http.Handler
	repo    *memoryRepo
	loader  *whisper.Loader
}

func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o755))
	return path
}

func newFixture(t *testing.T, allowedHosts string, ready bool) *fixture {
	t.Helper()
	dir := t.TempDir()

	modelPath := filepath.Join(dir, "model.bin")
	require.NoError(t, os.WriteFile(modelPath, []byte("model"), 0o644))
	loader := whisper.NewLoader(whisper.LoaderConfig{
		BinPath:   writeScript(t, dir, "whisper-cli", whisperOKScript),
		ModelPath: modelPath,
	})
	if ready {
		loader.Start(context.Background())
		deadline := time.Now().Add(5 * time.Second)
		for time.Now().Before(deadline) {
			if state, _ := loader.State(); state == whisper.StateReady {
				break
			}
			time.Sleep(5 * time.Millisecond)
		}
		state, diag := loader.State()
		require.Equal(t, whisper.StateReady, state, diag)
	}

	repo := &memoryRepo{}
	svc := services.NewTranscriptionService(
		loader,
		admission.NewSlotPool(1),
		audio.NewNormalizer(writeScript(t, dir, "ffmpeg", ffmpegOKScript), 2*time.Second),
		services.NewOutcomeLogger(repo, 20000),
		repo,
		services.TranscriptionConfig{
			MaxUploadBytes: 1 << 20,
			BeamSize:       5,
			ScratchDir:     dir,
		},
	)

	t.Setenv("ALLOWED_POST_HOSTS", allowedHosts)
	cfg, err := config.Load("")
	require.NoError(t, err)

	mux := http.NewServeMux()
	handlers.NewTranscribeHandler(svc, loader).RegisterRoutes(mux)
	var root http.Handler = mux
	root = handlers.SecurityHeaders(root)
	root = handlers.OriginFilter(cfg, svc, root)

	return &fixture{handler: root, repo: repo, loader: loader}
}

func multipartUpload(t *testing.T, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	fw, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return &body, w.FormDataContentType()
}

func TestOriginFilterDeniesForeignHost(t *testing.T) {
	fx := newFixture(t, "127.0.0.1,::1", false)

	body, contentType := multipartUpload(t, "clip.wav", []byte("audio"))
	req := httptest.NewRequest(http.MethodPost, "/transcribe", body)
	req.Header.Set("Content-Type", contentType)
	req.RemoteAddr = "203.0.113.9:4000"

	rec := httptest.NewRecorder()
	fx.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Contains(t, resp["detail"], "not allowed")
	require.Equal(t, 1, fx.repo.count(), "denied requests still get an outcome record")
}

func TestOriginFilterWildcardDisablesCheck(t *testing.T) {
	fx := newFixture(t, "*", false)

	body, contentType := multipartUpload(t, "clip.wav", []byte("audio"))
	req := httptest.NewRequest(http.MethodPost, "/transcribe", body)
	req.Header.Set("Content-Type", contentType)
	req.RemoteAddr = "203.0.113.9:4000"

	rec := httptest.NewRecorder()
	fx.handler.ServeHTTP(rec, req)

	// Passes the filter and reaches the readiness gate instead.
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestOriginFilterIgnoresReads(t *testing.T) {
	fx := newFixture(t, "127.0.0.1", false)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.RemoteAddr = "203.0.113.9:4000"

	rec := httptest.NewRecorder()
	fx.handler.ServeHTTP(rec, req)

	require.NotEqual(t, http.StatusForbidden, rec.Code)
}

func TestHealthzWhileLoading(t *testing.T) {
	fx := newFixture(t, "*", false)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	fx.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "loading", resp["status"])
}

func TestHealthzWhenReady(t *testing.T) {
	fx := newFixture(t, "*", true)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	fx.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "ready", resp["status"])
}

func TestTranscribeEndToEnd(t *testing.T) {
	fx := newFixture(t, "127.0.0.1", true)

	body, contentType := multipartUpload(t, "clip.wav", []byte("fake audio bytes"))
	req := httptest.NewRequest(http.MethodPost, "/transcribe", body)
	req.Header.Set("Content-Type", contentType)
	req.RemoteAddr = "127.0.0.1:51234"

	rec := httptest.NewRecorder()
	fx.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	var result models.TranscriptionResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.Equal(t, "good morning", result.Text)
	require.Equal(t, "en", result.Language)
	require.Len(t, result.Segments, 2)
	require.LessOrEqual(t, result.Segments[0].Start, result.Segments[1].Start)

	require.Equal(t, 1, fx.repo.count())
}

func TestTranscribeRejectsBadExtension(t *testing.T) {
	fx := newFixture(t, "127.0.0.1", true)

	body, contentType := multipartUpload(t, "notes.txt", []byte("hello"))
	req := httptest.NewRequest(http.MethodPost, "/transcribe", body)
	req.Header.Set("Content-Type", contentType)
	req.RemoteAddr = "127.0.0.1:51234"

	rec := httptest.NewRecorder()
	fx.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestTranscribeMethodNotAllowed(t *testing.T) {
	fx := newFixture(t, "127.0.0.1", true)

	req := httptest.NewRequest(http.MethodGet, "/transcribe", nil)
	rec := httptest.NewRecorder()
	fx.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestLogsEndpoint(t *testing.T) {
	fx := newFixture(t, "127.0.0.1", true)

	for i := 0; i < 3; i++ {
		body, contentType := multipartUpload(t, "clip.wav", []byte("fake audio bytes"))
		req := httptest.NewRequest(http.MethodPost, "/transcribe", body)
		req.Header.Set("Content-Type", contentType)
		req.RemoteAddr = "127.0.0.1:51234"
		rec := httptest.NewRecorder()
		fx.handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/transcribe/logs?limit=2", nil)
	rec := httptest.NewRecorder()
	fx.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var records []*models.RequestLogRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &records))
	require.Len(t, records, 2)
	require.True(t, records[0].OK)
}

func TestLogsEndpointWithDisabledStore(t *testing.T) {
	dir := t.TempDir()
	loader := whisper.NewLoader(whisper.LoaderConfig{BinPath: "whisper-cli", ModelPath: "model.bin"})
	repo := repository.NewDisabledRepository()
	svc := services.NewTranscriptionService(
		loader,
		admission.NewSlotPool(1),
		audio.NewNormalizer("ffmpeg", time.Second),
		services.NewOutcomeLogger(repo, 100),
		repo,
		services.TranscriptionConfig{MaxUploadBytes: 1 << 20, ScratchDir: dir},
	)

	mux := http.NewServeMux()
	handlers.NewTranscribeHandler(svc, loader).RegisterRoutes(mux)

	req := httptest.NewRequest(http.MethodGet, "/transcribe/logs", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, "[]", rec.Body.String())
}
