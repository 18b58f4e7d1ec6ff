package todo

import (
	"context"

	"github.com/uptrace/bun"

	"github.com/redmonkez12/go-todo-api/internal/database"
)

// Service implements the task operations of an authenticated user
type Service struct {
	db   *bun.DB
	repo *Repository
}

func NewService(db *bun.DB, repo *Repository) *Service {
	return &Service{db: db, repo: repo}
}

func (s *Service) Create(ctx context.Context, ownerID int64, in CreateInput) (*Task, error) {
	return s.repo.Create(ctx, ownerID, in)
}

// List applies the default page size and clamps out-of-range paging values.
func (s *Service) List(ctx context.Context, ownerID int64, filter ListFilter) ([]*Task, error) {
	if filter.Skip < 0 {
		filter.Skip = 0
	}
	if filter.Limit <= 0 {
		filter.Limit = DefaultListLimit
	}
	if filter.Limit > MaxListLimit {
		filter.Limit = MaxListLimit
	}
	return s.repo.List(ctx, ownerID, filter)
}

func (s *Service) Get(ctx context.Context, ownerID, id int64) (*Task, error) {
	return s.repo.Get(ctx, ownerID, id)
}

// Update merges the supplied fields into the task inside one transaction
func (s *Service) Update(ctx context.Context, ownerID, id int64, in UpdateInput) (*Task, error) {
	var task *Task
	err := database.WithTx(ctx, s.db, func(ctx context.Context) error {
		var err error
		task, err = s.repo.Get(ctx, ownerID, id)
		if err != nil {
			return err
		}

		if in.Title != nil {
			task.Title = *in.Title
		}
		switch {
		case in.ClearDescription:
			task.Description = nil
		case in.Description != nil:
			task.Description = in.Description
		}
		if in.Completed != nil {
			task.Completed = *in.Completed
		}

		return s.repo.Save(ctx, task)
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

func (s *Service) Delete(ctx context.Context, ownerID, id int64) error {
	return s.repo.Delete(ctx, ownerID, id)
}

// Toggle flips completion and returns the stored task
func (s *Service) Toggle(ctx context.Context, ownerID, id int64) (*Task, error) {
	if err := s.repo.Toggle(ctx, ownerID, id); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, ownerID, id)
}
