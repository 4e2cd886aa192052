package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"task-manager-api/internal/model"
	"task-manager-api/internal/service"
)

type TaskHandler struct {
	ErrorWriter
	service *service.TaskService
}

func NewTaskHandler(service *service.TaskService, errs ErrorWriter) *TaskHandler {
	return &TaskHandler{ErrorWriter: errs, service: service}
}

func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFromRequest(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	query := r.URL.Query()
	tasks, pagination, err := h.service.List(r.Context(), caller, model.TaskQuery{
		Status:   query.Get("status"),
		Priority: query.Get("priority"),
		Search:   query.Get("search"),
		Page:     parseIntOrDefault(query.Get("page"), 1),
		Limit:    parseIntOrDefault(query.Get("limit"), 10),
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, model.TaskListResponse{Tasks: tasks, Pagination: pagination})
}

func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFromRequest(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	var payload model.CreateTaskRequest
	if err := decodeJSON(r, &payload, false); err != nil {
		h.writeError(w, err)
		return
	}

	task, err := h.service.Create(r.Context(), caller, payload)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, task)
}

func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFromRequest(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	task, err := h.service.Get(r.Context(), caller, chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, task)
}

func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFromRequest(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	id := chi.URLParam(r, "id")

	var payload model.UpdateTaskRequest
	if err := decodeJSON(r, &payload, false); err != nil {
		// A task the caller cannot see is reported as missing, whatever the body.
		if _, findErr := h.service.Get(r.Context(), caller, id); findErr != nil {
			err = findErr
		}
		h.writeError(w, err)
		return
	}

	task, err := h.service.Update(r.Context(), caller, id, payload)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, task)
}

func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFromRequest(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	if err := h.service.Delete(r.Context(), caller, chi.URLParam(r, "id")); err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, model.MessageResponse{Message: "Task deleted successfully"})
}
