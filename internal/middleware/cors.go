package middleware

import (
	"net/http"

	"github.com/rs/cors"
)

// CORS allows the configured origins. Credentials (the refresh cookie) are
// only allowed for an explicit origin list since browsers refuse them with "*".
func CORS(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	wildcard := false
	for _, origin := range origins {
		if origin == "*" {
			wildcard = true
			break
		}
	}

	handler := cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{NewAccessTokenHeader, "X-Request-ID"},
		MaxAge:           3600,
		AllowCredentials: !wildcard,
	})

	return handler.Handler
}
