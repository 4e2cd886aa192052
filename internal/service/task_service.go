package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"task-manager-api/internal/model"
	"task-manager-api/internal/util"
	"task-manager-api/internal/validation"
	"task-manager-api/pkg/apierror"
)

const (
	defaultTaskPage  = 1
	defaultTaskLimit = 10
	maxTaskLimit     = 100
)

type TaskStore interface {
	List(ctx context.Context, query model.TaskQuery) ([]model.Task, int, error)
	FindByID(ctx context.Context, id string, ownerID string) (model.Task, error)
	Create(ctx context.Context, t model.Task) (model.Task, error)
	Update(ctx context.Context, id string, patch model.TaskPatch) (model.Task, error)
	Delete(ctx context.Context, id string) error
}

// TaskService applies the access model: callers see only the tasks they
// created unless their role is admin. A task outside the caller's scope is
// reported exactly like a missing one.
type TaskService struct {
	store TaskStore
	audit *AuditService
	now   func() time.Time
}

func NewTaskService(store TaskStore, audit *AuditService) *TaskService {
	return &TaskService{store: store, audit: audit, now: time.Now}
}

func (s *TaskService) List(ctx context.Context, caller model.Caller, query model.TaskQuery) ([]model.Task, model.Pagination, error) {
	query.OwnerID = ownerScope(caller.Identity)
	query.Status = strings.TrimSpace(query.Status)
	query.Priority = strings.TrimSpace(query.Priority)
	query.Page, query.Limit = normalizePage(query.Page, query.Limit)

	if err := validateTaskQuery(query); err != nil {
		return nil, model.Pagination{}, err
	}
	query.Search = util.SanitizeText(query.Search)

	tasks, total, err := s.store.List(ctx, query)
	if err != nil {
		return nil, model.Pagination{}, err
	}

	return tasks, model.NewPagination(total, query.Page, query.Limit), nil
}

func (s *TaskService) Get(ctx context.Context, caller model.Caller, id string) (model.Task, error) {
	return s.find(ctx, caller, id)
}

func (s *TaskService) Create(ctx context.Context, caller model.Caller, req model.CreateTaskRequest) (model.Task, error) {
	req.Title = util.SanitizeTitle(req.Title)
	req.Description = util.SanitizeText(req.Description)

	if err := validation.Struct(req); err != nil {
		return model.Task{}, err
	}

	dueDate, err := parseDueDate(req.DueDate)
	if err != nil {
		return model.Task{}, err
	}

	now := s.now().UTC()
	task := model.Task{
		ID:          uuid.NewString(),
		Title:       req.Title,
		Description: req.Description,
		Status:      defaultString(req.Status, model.TaskStatusPending),
		Priority:    defaultString(req.Priority, model.TaskPriorityMedium),
		DueDate:     dueDate,
		CreatedBy:   caller.Identity.UserID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	created, err := s.store.Create(ctx, task)
	if err != nil {
		s.audit.Log(ctx, "task.create", caller.AuditActor(), AuditStatusFailed, task.ID, nil, task, err.Error())
		return model.Task{}, err
	}

	s.audit.Log(ctx, "task.create", caller.AuditActor(), AuditStatusSuccess, created.ID, nil, created, "")
	return created, nil
}

// Update checks the task is visible to the caller before looking at the
// payload, so an unknown task is a 404 even when the body is invalid.
func (s *TaskService) Update(ctx context.Context, caller model.Caller, id string, req model.UpdateTaskRequest) (model.Task, error) {
	existing, err := s.find(ctx, caller, id)
	if err != nil {
		return model.Task{}, err
	}

	if req.Title != nil {
		title := util.SanitizeTitle(*req.Title)
		req.Title = &title
	}
	if req.Description != nil {
		description := util.SanitizeText(*req.Description)
		req.Description = &description
	}

	if err := validation.Struct(req); err != nil {
		return model.Task{}, err
	}

	patch := model.TaskPatch{
		Title:       req.Title,
		Description: req.Description,
		Status:      emptyAsNil(req.Status),
		Priority:    emptyAsNil(req.Priority),
		UpdatedAt:   s.now().UTC(),
	}
	if req.DueDate != nil && *req.DueDate != "" {
		if patch.DueDate, err = parseDueDate(req.DueDate); err != nil {
			return model.Task{}, err
		}
	}

	updated, err := s.store.Update(ctx, existing.ID, patch)
	if err != nil {
		s.audit.Log(ctx, "task.update", caller.AuditActor(), AuditStatusFailed, existing.ID, existing, nil, err.Error())
		return model.Task{}, err
	}

	s.audit.Log(ctx, "task.update", caller.AuditActor(), AuditStatusSuccess, updated.ID, existing, updated, "")
	return updated, nil
}

func (s *TaskService) Delete(ctx context.Context, caller model.Caller, id string) error {
	existing, err := s.find(ctx, caller, id)
	if err != nil {
		return err
	}

	if err := s.store.Delete(ctx, existing.ID); err != nil {
		s.audit.Log(ctx, "task.delete", caller.AuditActor(), AuditStatusFailed, existing.ID, existing, nil, err.Error())
		return err
	}

	s.audit.Log(ctx, "task.delete", caller.AuditActor(), AuditStatusSuccess, existing.ID, existing, nil, "")
	return nil
}

func (s *TaskService) find(ctx context.Context, caller model.Caller, id string) (model.Task, error) {
	parsed, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return model.Task{}, model.ErrTaskNotFound
	}

	return s.store.FindByID(ctx, parsed.String(), ownerScope(caller.Identity))
}

// ownerScope returns the owner filter for ident; empty means unrestricted.
func ownerScope(ident model.Identity) string {
	if ident.IsAdmin() {
		return ""
	}
	return ident.UserID
}

func normalizePage(page int, limit int) (int, int) {
	if page < 1 {
		page = defaultTaskPage
	}
	if limit <= 0 {
		limit = defaultTaskLimit
	}
	if limit > maxTaskLimit {
		limit = maxTaskLimit
	}
	return page, limit
}

// validateTaskQuery rejects filters that cannot reach the database as text
// and pages whose offset would overflow.
func validateTaskQuery(query model.TaskQuery) error {
	var fields []apierror.FieldError
	if !util.ValidText(query.Search) {
		fields = append(fields, apierror.FieldError{Field: "search", Message: "must be valid UTF-8 text"})
	}
	if !model.PageInRange(query.Page, query.Limit) {
		fields = append(fields, apierror.FieldError{Field: "page", Message: "is out of range"})
	}
	if len(fields) > 0 {
		return apierror.Validation(fields)
	}

	return validation.Struct(query)
}

func parseDueDate(raw *string) (*time.Time, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}

	due, err := time.Parse(time.RFC3339, strings.TrimSpace(*raw))
	if err != nil {
		return nil, apierror.Validation([]apierror.FieldError{{Field: "due_date", Message: "must be an RFC 3339 timestamp"}})
	}
	due = due.UTC()
	return &due, nil
}

func defaultString(value string, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

func emptyAsNil(value *string) *string {
	if value == nil || *value == "" {
		return nil
	}
	return value
}
