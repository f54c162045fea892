package handlers

import (
	"net/http"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/aigoflow/stt-service/internal/config"
	"github.com/aigoflow/stt-service/internal/models"
	"github.com/aigoflow/stt-service/internal/services"
)

// OriginFilter rejects write requests from disallowed peer addresses before
// any request body is read. Denials still produce an outcome record.
func OriginFilter(cfg *config.Config, svc *services.TranscriptionService, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isWriteMethod(r.Method) {
			host := clientHost(r)
			if !cfg.OriginAllowed(host) {
				cond := services.AccessDenied("host not allowed to POST, adjust ALLOWED_POST_HOSTS to enable it")
				svc.RecordRejection(r.Context(), &models.RequestLogRecord{
					Timestamp:  time.Now(),
					ReqID:      ulid.Make().String(),
					Source:     "http.transcribe",
					ClientHost: host,
					UserAgent:  r.UserAgent(),
					Status:     cond.Status,
					Error:      cond.Detail,
				})
				writeDetail(w, cond.Status, cond.Detail)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// SecurityHeaders applies the hardening headers to every response.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")
		h.Set("Cross-Origin-Resource-Policy", "same-origin")
		h.Set("Permissions-Policy", "microphone=(self)")
		h.Set("Content-Security-Policy",
			"default-src 'self'; "+
				"script-src 'self' 'unsafe-inline'; "+
				"style-src 'self' 'unsafe-inline'; "+
				"img-src 'self' data:; "+
				"media-src 'self' blob:; "+
				"connect-src 'self'; "+
				"base-uri 'none'; "+
				"form-action 'self'; "+
				"frame-ancestors 'none'")
		next.ServeHTTP(w, r)
	})
}

func isWriteMethod(m string) bool {
	switch m {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}
