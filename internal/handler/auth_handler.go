package handler

import (
	"net/http"
	"strings"

	"task-manager-api/internal/middleware"
	"task-manager-api/internal/model"
	"task-manager-api/internal/service"
)

type AuthHandler struct {
	ErrorWriter
	service       *service.AuthService
	secureCookies bool
}

func NewAuthHandler(service *service.AuthService, secureCookies bool, errs ErrorWriter) *AuthHandler {
	return &AuthHandler{ErrorWriter: errs, service: service, secureCookies: secureCookies}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var payload model.RegisterRequest
	if err := decodeJSON(r, &payload, false); err != nil {
		h.writeError(w, err)
		return
	}

	user, err := h.service.Register(r.Context(), payload)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, model.RegisterResponse{
		Message: "User created successfully",
		User:    model.AuthUser{ID: user.ID, Email: user.Email},
	})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var payload model.LoginRequest
	if err := decodeJSON(r, &payload, false); err != nil {
		h.writeError(w, err)
		return
	}

	session, err := h.service.Login(r.Context(), payload)
	if err != nil {
		h.writeError(w, err)
		return
	}

	middleware.SetRefreshCookie(w, session.RefreshToken, h.secureCookies)
	writeJSON(w, http.StatusOK, model.LoginResponse{
		User: session.User,
		Session: model.LoginSession{
			AccessToken: session.AccessToken,
			ExpiresAt:   session.ExpiresAt,
		},
	})
}

// Refresh exchanges a refresh token for a new session. The token comes from
// the body, or from the refresh cookie when the body has none; the cookie is
// rotated either way.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var payload model.RefreshRequest
	if err := decodeJSON(r, &payload, true); err != nil {
		h.writeError(w, err)
		return
	}

	if strings.TrimSpace(payload.RefreshToken) == "" {
		if cookie, err := r.Cookie(middleware.RefreshCookieName); err == nil {
			payload.RefreshToken = cookie.Value
		}
	}

	session, err := h.service.Refresh(r.Context(), payload)
	if err != nil {
		h.writeError(w, err)
		return
	}

	middleware.SetRefreshCookie(w, session.RefreshToken, h.secureCookies)
	writeJSON(w, http.StatusOK, model.RefreshResponse{
		User: model.AuthUser{ID: session.User.ID, Email: session.User.Email},
		Session: model.RefreshSession{
			AccessToken:  session.AccessToken,
			RefreshToken: session.RefreshToken,
			ExpiresAt:    session.ExpiresAt,
		},
	})
}
