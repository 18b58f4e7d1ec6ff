package todo

import (
	"time"
)

type Task struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Description *string    `json:"description"`
	Completed   bool       `json:"completed"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at"`
	UserID      int64      `json:"user_id"`
}

// CreateInput holds the fields of a new task
type CreateInput struct {
	Title       string
	Description *string
	Completed   bool
}

// UpdateInput is a partial update; nil fields are left unchanged.
// ClearDescription sets the description to null and wins over Description.
type UpdateInput struct {
	Title            *string
	Description      *string
	Completed        *bool
	ClearDescription bool
}

// ListFilter selects a page of an owner's tasks
type ListFilter struct {
	Skip      int
	Limit     int
	Completed *bool
}

const (
	DefaultListLimit = 100
	MaxListLimit     = 1000
)
