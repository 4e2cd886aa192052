package model

import (
	"math"
	"time"
)

const (
	TaskStatusPending    = "pending"
	TaskStatusInProgress = "in-progress"
	TaskStatusCompleted  = "completed"
)

const (
	TaskPriorityLow    = "low"
	TaskPriorityMedium = "medium"
	TaskPriorityHigh   = "high"
)

type Task struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      string     `json:"status"`
	Priority    string     `json:"priority"`
	DueDate     *time.Time `json:"due_date"`
	CreatedBy   string     `json:"created_by"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// TaskQuery selects a page of tasks. An empty OwnerID means no owner filter.
type TaskQuery struct {
	OwnerID  string `json:"-"`
	Status   string `json:"status" validate:"omitempty,oneof=pending in-progress completed"`
	Priority string `json:"priority" validate:"omitempty,oneof=low medium high"`
	Search   string `json:"search"`
	Page     int    `json:"page"`
	Limit    int    `json:"limit"`
}

// MaxQueryOffset is the largest row offset a list query may request.
const MaxQueryOffset = math.MaxInt32

// PageInRange reports whether page of size limit starts within MaxQueryOffset.
func PageInRange(page int, limit int) bool {
	return limit <= 0 || page-1 <= MaxQueryOffset/limit
}

func (q TaskQuery) Offset() int {
	return (q.Page - 1) * q.Limit
}

// TaskPatch lists the columns to change; nil fields are kept.
type TaskPatch struct {
	Title       *string
	Description *string
	Status      *string
	Priority    *string
	DueDate     *time.Time
	UpdatedAt   time.Time
}

// Apply returns a copy of t with the patch applied.
func (p TaskPatch) Apply(t Task) Task {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if p.DueDate != nil {
		due := *p.DueDate
		t.DueDate = &due
	}
	t.UpdatedAt = p.UpdatedAt
	return t
}
