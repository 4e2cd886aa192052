package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"task-manager-api/internal/model"
	"task-manager-api/internal/util"
)

const taskColumns = `id, title, description, status, priority, due_date, created_by, created_at, updated_at`

type TaskRepository struct {
	pool *pgxpool.Pool
}

func NewTaskRepository(pool *pgxpool.Pool) *TaskRepository {
	return &TaskRepository{pool: pool}
}

func (r *TaskRepository) List(ctx context.Context, query model.TaskQuery) ([]model.Task, int, error) {
	where := make([]string, 0, 4)
	args := make([]any, 0, 6)
	argIdx := 1

	if query.OwnerID != "" {
		where = append(where, fmt.Sprintf("created_by = $%d", argIdx))
		args = append(args, query.OwnerID)
		argIdx++
	}
	if query.Status != "" {
		where = append(where, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, query.Status)
		argIdx++
	}
	if query.Priority != "" {
		where = append(where, fmt.Sprintf("priority = $%d", argIdx))
		args = append(args, query.Priority)
		argIdx++
	}
	if search := strings.TrimSpace(query.Search); search != "" {
		where = append(where, fmt.Sprintf(`(title ILIKE $%d ESCAPE '\' OR description ILIKE $%d ESCAPE '\')`, argIdx, argIdx))
		args = append(args, "%"+util.EscapeLike(search)+"%")
		argIdx++
	}

	whereClause := ""
	if len(where) > 0 {
		whereClause = "WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM tasks "+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count tasks: %w", err)
	}

	dataQuery := fmt.Sprintf(
		`SELECT %s FROM tasks %s
		 ORDER BY created_at DESC, id DESC
		 LIMIT $%d OFFSET $%d`, taskColumns, whereClause, argIdx, argIdx+1)
	args = append(args, query.Limit, query.Offset())

	rows, err := r.pool.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	tasks := make([]model.Task, 0, query.Limit)
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, t)
	}

	return tasks, total, rows.Err()
}

// FindByID returns the task with id. A non-empty ownerID additionally requires
// the task to belong to that user; a mismatch reads as model.ErrTaskNotFound.
func (r *TaskRepository) FindByID(ctx context.Context, id string, ownerID string) (model.Task, error) {
	sql := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`
	args := []any{id}
	if ownerID != "" {
		sql += ` AND created_by = $2`
		args = append(args, ownerID)
	}

	t, err := scanTask(r.pool.QueryRow(ctx, sql, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Task{}, model.ErrTaskNotFound
	}
	if err != nil {
		return model.Task{}, fmt.Errorf("find task: %w", err)
	}
	return t, nil
}

func (r *TaskRepository) Create(ctx context.Context, t model.Task) (model.Task, error) {
	created, err := scanTask(r.pool.QueryRow(ctx,
		`INSERT INTO tasks (id, title, description, status, priority, due_date, created_by, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING `+taskColumns,
		t.ID, t.Title, t.Description, t.Status, t.Priority, t.DueDate, t.CreatedBy, t.CreatedAt, t.UpdatedAt))
	if err != nil {
		return model.Task{}, fmt.Errorf("create task: %w", err)
	}
	return created, nil
}

func (r *TaskRepository) Update(ctx context.Context, id string, patch model.TaskPatch) (model.Task, error) {
	updated, err := scanTask(r.pool.QueryRow(ctx,
		`UPDATE tasks SET
		     title       = COALESCE($2, title),
		     description = COALESCE($3, description),
		     status      = COALESCE($4, status),
		     priority    = COALESCE($5, priority),
		     due_date    = COALESCE($6, due_date),
		     updated_at  = $7
		 WHERE id = $1
		 RETURNING `+taskColumns,
		id, patch.Title, patch.Description, patch.Status, patch.Priority, patch.DueDate, patch.UpdatedAt))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Task{}, model.ErrTaskNotFound
	}
	if err != nil {
		return model.Task{}, fmt.Errorf("update task: %w", err)
	}
	return updated, nil
}

func (r *TaskRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrTaskNotFound
	}
	return nil
}

func scanTask(row pgx.Row) (model.Task, error) {
	var t model.Task
	err := row.Scan(&t.ID, &t.Title, &t.Description, &t.Status, &t.Priority, &t.DueDate,
		&t.CreatedBy, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}
