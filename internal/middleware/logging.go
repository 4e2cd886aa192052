package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

const (
	requestIDHeader = "X-Request-ID"

	// maxLoggedErrorBody bounds how much of an error response is kept for the log line.
	maxLoggedErrorBody = 4 << 10
)

// errorBody extracts the error fields from JSON error responses.
type errorBody struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details any    `json:"details"`
}

// Logging writes one access log line per request. Server errors log at
// error, client errors at warn.
func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, requestID)

		started := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		reqLog := &requestLog{}

		next.ServeHTTP(wrapped, r.WithContext(context.WithValue(r.Context(), requestLogContextKey, reqLog)))

		attrs := []any{
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.status,
			"duration_ms", time.Since(started).Milliseconds(),
			"client_ip", ClientIP(r),
		}
		if userID := reqLog.getUserID(); userID != "" {
			attrs = append(attrs, "user_id", userID)
		}
		if wrapped.Header().Get(NewAccessTokenHeader) != "" {
			attrs = append(attrs, "session_refreshed", true)
		}
		if wrapped.status >= http.StatusBadRequest {
			attrs = append(attrs, errorAttrs(r, wrapped.body.Bytes())...)
		}

		switch {
		case wrapped.status >= http.StatusInternalServerError:
			slog.Error("request", attrs...)
		case wrapped.status >= http.StatusBadRequest:
			slog.Warn("request", attrs...)
		default:
			slog.Info("request", attrs...)
		}
	})
}

func errorAttrs(r *http.Request, body []byte) []any {
	var attrs []any
	if r.URL.RawQuery != "" {
		attrs = append(attrs, "query", r.URL.RawQuery)
	}

	var parsed errorBody
	if len(body) == 0 || json.Unmarshal(body, &parsed) != nil || parsed.Error == "" {
		return attrs
	}

	attrs = append(attrs, "error_code", parsed.Code, "error_message", parsed.Error)
	if parsed.Details != nil {
		attrs = append(attrs, "error_details", parsed.Details)
	}
	return attrs
}

type responseWriter struct {
	http.ResponseWriter
	status      int
	body        bytes.Buffer
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(statusCode int) {
	if rw.wroteHeader {
		return
	}
	rw.status = statusCode
	rw.wroteHeader = true
	rw.ResponseWriter.WriteHeader(statusCode)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	if rw.status >= http.StatusBadRequest && rw.body.Len() < maxLoggedErrorBody {
		remaining := maxLoggedErrorBody - rw.body.Len()
		rw.body.Write(b[:min(len(b), remaining)])
	}
	return rw.ResponseWriter.Write(b)
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}
