package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"task-manager-api/internal/model"
)

const defaultRequestTimeout = 30 * time.Second

// Timeout bounds the whole handler chain below it. The request context is
// cancelled on expiry, so in-flight database and identity calls stop too.
func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	body, _ := json.Marshal(model.ErrorResponse{Error: "request timed out", Code: "REQUEST_TIMEOUT"})

	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, timeout, string(body))
	}
}
