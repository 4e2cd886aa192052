package repository

import (
	"context"
	"sort"
	"strings"
	"sync"

	"task-manager-api/internal/model"
)

// MemoryTaskRepository keeps tasks in process memory with the same filtering,
// ordering and paging rules as TaskRepository. It backs unit tests and local
// experiments; it is not safe to share across processes.
type MemoryTaskRepository struct {
	mu    sync.RWMutex
	tasks map[string]model.Task
}

func NewMemoryTaskRepository(seed ...model.Task) *MemoryTaskRepository {
	repo := &MemoryTaskRepository{tasks: make(map[string]model.Task, len(seed))}
	for _, t := range seed {
		repo.tasks[t.ID] = t
	}
	return repo
}

func (r *MemoryTaskRepository) List(_ context.Context, query model.TaskQuery) ([]model.Task, int, error) {
	r.mu.RLock()
	matched := make([]model.Task, 0, len(r.tasks))
	for _, t := range r.tasks {
		if matchesQuery(t, query) {
			matched = append(matched, t)
		}
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID > matched[j].ID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	start := query.Offset()
	if start < 0 || start >= total {
		return []model.Task{}, total, nil
	}
	end := start + query.Limit
	if end > total {
		end = total
	}

	return matched[start:end], total, nil
}

func (r *MemoryTaskRepository) FindByID(_ context.Context, id string, ownerID string) (model.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tasks[id]
	if !ok || (ownerID != "" && t.CreatedBy != ownerID) {
		return model.Task{}, model.ErrTaskNotFound
	}
	return t, nil
}

func (r *MemoryTaskRepository) Create(_ context.Context, t model.Task) (model.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.tasks[t.ID] = t
	return t, nil
}

func (r *MemoryTaskRepository) Update(_ context.Context, id string, patch model.TaskPatch) (model.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[id]
	if !ok {
		return model.Task{}, model.ErrTaskNotFound
	}

	updated := patch.Apply(t)
	r.tasks[id] = updated
	return updated, nil
}

func (r *MemoryTaskRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tasks[id]; !ok {
		return model.ErrTaskNotFound
	}
	delete(r.tasks, id)
	return nil
}

func matchesQuery(t model.Task, q model.TaskQuery) bool {
	if q.OwnerID != "" && t.CreatedBy != q.OwnerID {
		return false
	}
	if q.Status != "" && t.Status != q.Status {
		return false
	}
	if q.Priority != "" && t.Priority != q.Priority {
		return false
	}
	if search := strings.ToLower(strings.TrimSpace(q.Search)); search != "" {
		return strings.Contains(strings.ToLower(t.Title), search) ||
			strings.Contains(strings.ToLower(t.Description), search)
	}
	return true
}
