package handler

import (
	"net/http"
	"net/url"
	"strings"

	"task-manager-api/internal/model"
	"task-manager-api/internal/service"
	"task-manager-api/pkg/apierror"
)

type AuditHandler struct {
	ErrorWriter
	service *service.AuditService
}

func NewAuditHandler(service *service.AuditService, errs ErrorWriter) *AuditHandler {
	return &AuditHandler{ErrorWriter: errs, service: service}
}

// List serves the admin audit trail, newest first.
func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	query, err := auditQueryFromURL(r.URL.Query())
	if err != nil {
		h.writeError(w, err)
		return
	}

	entries, pagination, err := h.service.Query(r.Context(), query)
	if err != nil {
		h.writeError(w, err)
		return
	}

	if entries == nil {
		entries = []model.AuditEntry{}
	}
	writeJSON(w, http.StatusOK, model.AuditListResponse{Entries: entries, Pagination: pagination})
}

func auditQueryFromURL(values url.Values) (model.AuditQuery, error) {
	status := strings.ToLower(strings.TrimSpace(values.Get("status")))
	if status != "" && status != service.AuditStatusSuccess && status != service.AuditStatusFailed {
		return model.AuditQuery{}, apierror.BadRequest("status must be 'success' or 'failed'")
	}

	return model.AuditQuery{
		Action:  strings.TrimSpace(values.Get("action")),
		ActorID: strings.TrimSpace(values.Get("actor_id")),
		Status:  status,
		TaskID:  strings.TrimSpace(values.Get("task_id")),
		From:    strings.TrimSpace(values.Get("from")),
		To:      strings.TrimSpace(values.Get("to")),
		Page:    parseIntOrDefault(values.Get("page"), 1),
		Limit:   parseIntOrDefault(values.Get("limit"), 50),
	}, nil
}
