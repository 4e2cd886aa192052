package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"task-manager-api/internal/identity"
	"task-manager-api/internal/middleware"
	"task-manager-api/internal/model"
	"task-manager-api/pkg/apierror"
)

// ErrorWriter renders errors as JSON. ExposeDetails adds the underlying
// message to 500 responses and must be off in production.
type ErrorWriter struct {
	ExposeDetails bool
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (e ErrorWriter) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	body := model.ErrorResponse{
		Error: "internal server error",
		Code:  "INTERNAL_ERROR",
	}

	var apiErr *apierror.APIError
	var statusErr *identity.StatusError
	if errors.As(err, &apiErr) {
		status = apiErr.HTTPStatus
		body.Code = apiErr.Code
		body.Error = apiErr.Message
		body.Details = apiErr.Details
	} else if errors.Is(err, model.ErrTaskNotFound) {
		status = http.StatusNotFound
		body.Code = "NOT_FOUND"
		body.Error = "task not found"
	} else if errors.Is(err, model.ErrUserAlreadyExists) {
		status = http.StatusBadRequest
		body.Code = "ALREADY_EXISTS"
		body.Error = "user already exists"
	} else if errors.Is(err, model.ErrInvalidCredentials) {
		status = http.StatusUnauthorized
		body.Code = "UNAUTHORIZED"
		body.Error = "invalid credentials"
	} else if errors.Is(err, model.ErrInvalidToken) || errors.Is(err, model.ErrTokenExpired) ||
		errors.Is(err, model.ErrTokenNotFound) || errors.Is(err, model.ErrRefreshFailed) {
		status = http.StatusUnauthorized
		body.Code = "UNAUTHORIZED"
		body.Error = "invalid refresh token"
	} else if errors.Is(err, model.ErrUnauthorized) {
		status = http.StatusUnauthorized
		body.Code = "UNAUTHORIZED"
		body.Error = "authentication required"
	} else if errors.As(err, &statusErr) && statusErr.Status < http.StatusInternalServerError {
		status = http.StatusBadRequest
		body.Code = "BAD_REQUEST"
		body.Error = statusErr.Message
	} else {
		slog.Error("unhandled error in writeError", "error", err.Error())
		if e.ExposeDetails {
			body.Details = err.Error()
		}
	}

	writeJSON(w, status, body)
}

// decodeJSON reads a JSON body into dst. An empty body is accepted when
// allowEmpty is set.
func decodeJSON(r *http.Request, dst any, allowEmpty bool) error {
	defer r.Body.Close()

	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil || (allowEmpty && errors.Is(err, io.EOF)) {
		return nil
	}

	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return apierror.New("PAYLOAD_TOO_LARGE", "request body too large", maxErr.Limit, http.StatusRequestEntityTooLarge)
	}
	return apierror.BadRequest("invalid JSON body")
}

// callerFromRequest returns the authenticated caller. The auth gate runs before
// every handler that uses it, so a missing identity means a wiring bug.
func callerFromRequest(r *http.Request) (model.Caller, error) {
	ident, ok := middleware.IdentityFromContext(r.Context())
	if !ok || ident.UserID == "" {
		return model.Caller{}, model.ErrUnauthorized
	}

	return model.Caller{Identity: ident, IP: middleware.ClientIP(r)}, nil
}

func parseIntOrDefault(raw string, fallback int) int {
	if strings.TrimSpace(raw) == "" {
		return fallback
	}

	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fallback
	}

	return v
}
