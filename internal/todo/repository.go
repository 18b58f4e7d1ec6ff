package todo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/redmonkez12/go-todo-api/internal/database"
)

// ErrNotFound covers both missing tasks and tasks owned by someone else
var ErrNotFound = errors.New("todo not found")

// Repository handles task persistence. Every query is scoped to the owner.
type Repository struct {
	db  *bun.DB
	now func() time.Time
}

func NewRepository(db *bun.DB) *Repository {
	return &Repository{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// Create inserts a task for ownerID
func (r *Repository) Create(ctx context.Context, ownerID int64, in CreateInput) (*Task, error) {
	dbTask := &database.Task{
		Title:       in.Title,
		Description: in.Description,
		Completed:   in.Completed,
		CreatedAt:   r.now(),
		UserID:      ownerID,
	}

	_, err := database.QuerierFrom(ctx, r.db).NewInsert().
		Model(dbTask).
		Returning("*").
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create todo: %w", err)
	}

	return mapDBTaskToModel(dbTask), nil
}

// List returns a page of the owner's tasks ordered by id
func (r *Repository) List(ctx context.Context, ownerID int64, filter ListFilter) ([]*Task, error) {
	var rows []database.Task

	q := database.QuerierFrom(ctx, r.db).NewSelect().
		Model(&rows).
		Where("user_id = ?", ownerID)
	if filter.Completed != nil {
		q = q.Where("completed = ?", *filter.Completed)
	}

	err := q.OrderExpr("id ASC").
		Offset(filter.Skip).
		Limit(filter.Limit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list todos: %w", err)
	}

	tasks := make([]*Task, 0, len(rows))
	for i := range rows {
		tasks = append(tasks, mapDBTaskToModel(&rows[i]))
	}
	return tasks, nil
}

// Get retrieves one of the owner's tasks
func (r *Repository) Get(ctx context.Context, ownerID, id int64) (*Task, error) {
	dbTask := new(database.Task)
	err := database.QuerierFrom(ctx, r.db).NewSelect().
		Model(dbTask).
		Where("id = ?", id).
		Where("user_id = ?", ownerID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get todo: %w", err)
	}

	return mapDBTaskToModel(dbTask), nil
}

// Save writes every mutable column of task and stamps updated_at
func (r *Repository) Save(ctx context.Context, task *Task) error {
	now := r.now()
	result, err := database.QuerierFrom(ctx, r.db).NewUpdate().
		Model((*database.Task)(nil)).
		Set("title = ?", task.Title).
		Set("description = ?", task.Description).
		Set("completed = ?", task.Completed).
		Set("updated_at = ?", now).
		Where("id = ?", task.ID).
		Where("user_id = ?", task.UserID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to update todo: %w", err)
	}
	if err := requireRow(result); err != nil {
		return err
	}

	task.UpdatedAt = &now
	return nil
}

// Toggle flips the completed flag in a single statement
func (r *Repository) Toggle(ctx context.Context, ownerID, id int64) error {
	result, err := database.QuerierFrom(ctx, r.db).NewUpdate().
		Model((*database.Task)(nil)).
		Set("completed = NOT completed").
		Set("updated_at = ?", r.now()).
		Where("id = ?", id).
		Where("user_id = ?", ownerID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to toggle todo: %w", err)
	}
	return requireRow(result)
}

// Delete removes one of the owner's tasks
func (r *Repository) Delete(ctx context.Context, ownerID, id int64) error {
	result, err := database.QuerierFrom(ctx, r.db).NewDelete().
		Model((*database.Task)(nil)).
		Where("id = ?", id).
		Where("user_id = ?", ownerID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete todo: %w", err)
	}
	return requireRow(result)
}

func requireRow(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func mapDBTaskToModel(t *database.Task) *Task {
	return &Task{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Completed:   t.Completed,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
		UserID:      t.UserID,
	}
}
