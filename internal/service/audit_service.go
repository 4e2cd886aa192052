package service

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"task-manager-api/internal/model"
	"task-manager-api/internal/util"
	"task-manager-api/pkg/apierror"
)

const (
	AuditStatusSuccess = "success"
	AuditStatusFailed  = "failed"

	defaultAuditLimit = 50
	maxAuditLimit     = 200
)

type AuditStore interface {
	Log(ctx context.Context, entry model.AuditEntry) error
	Query(ctx context.Context, query model.AuditQuery) ([]model.AuditEntry, int, error)
}

type AuditService struct {
	store AuditStore
	now   func() time.Time
}

func NewAuditService(store AuditStore) *AuditService {
	return &AuditService{store: store, now: time.Now}
}

// Log records an entry. Failures are logged and never reach the caller; a nil
// service discards entries.
func (s *AuditService) Log(ctx context.Context, action string, actor model.AuditActor, status string, resource string, before any, after any, errText string) {
	if s == nil || s.store == nil {
		return
	}

	entry := model.AuditEntry{
		Action:     action,
		OccurredAt: s.now().UTC().Format(time.RFC3339Nano),
		Actor:      actor,
		Status:     status,
		Resource:   resource,
		Before:     before,
		After:      after,
		Error:      errText,
	}

	// The entry outlives a cancelled request.
	if err := s.store.Log(context.WithoutCancel(ctx), entry); err != nil {
		slog.Warn("audit entry dropped", "action", action, "resource", resource, "error", err)
	}
}

func (s *AuditService) Query(ctx context.Context, query model.AuditQuery) ([]model.AuditEntry, model.Pagination, error) {
	if query.Page < 1 {
		query.Page = 1
	}
	if query.Limit <= 0 {
		query.Limit = defaultAuditLimit
	}
	if query.Limit > maxAuditLimit {
		query.Limit = maxAuditLimit
	}

	if err := validateAuditQuery(query); err != nil {
		return nil, model.Pagination{}, err
	}

	if _, err := parseOptionalAuditTime(query.From); err != nil {
		return nil, model.Pagination{}, apierror.New("BAD_REQUEST", "invalid 'from' datetime format", query.From, http.StatusBadRequest)
	}
	if _, err := parseOptionalAuditTime(query.To); err != nil {
		return nil, model.Pagination{}, apierror.New("BAD_REQUEST", "invalid 'to' datetime format", query.To, http.StatusBadRequest)
	}

	entries, total, err := s.store.Query(ctx, query)
	if err != nil {
		return nil, model.Pagination{}, err
	}

	return entries, model.NewPagination(total, query.Page, query.Limit), nil
}

func validateAuditQuery(query model.AuditQuery) error {
	var fields []apierror.FieldError
	for _, f := range []struct{ name, value string }{
		{"action", query.Action},
		{"actor_id", query.ActorID},
		{"status", query.Status},
		{"task_id", query.TaskID},
	} {
		if !util.ValidText(f.value) {
			fields = append(fields, apierror.FieldError{Field: f.name, Message: "must be valid UTF-8 text"})
		}
	}
	if !model.PageInRange(query.Page, query.Limit) {
		fields = append(fields, apierror.FieldError{Field: "page", Message: "is out of range"})
	}
	if len(fields) > 0 {
		return apierror.Validation(fields)
	}
	return nil
}

func parseOptionalAuditTime(raw string) (time.Time, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return time.Time{}, nil
	}

	if value, err := time.Parse(time.RFC3339Nano, trimmed); err == nil {
		return value.UTC(), nil
	}

	value, err := time.Parse(time.RFC3339, trimmed)
	if err != nil {
		return time.Time{}, err
	}
	return value.UTC(), nil
}
