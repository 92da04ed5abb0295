package task

import (
	"errors"
	"time"
)

const (
	MaxTitleLen       = 200
	MaxDescriptionLen = 2000
)

var (
	// ErrNotFound covers both a missing task and a task owned by someone else.
	ErrNotFound = errors.New("task not found")
	// ErrOwnerGone is returned when the owning user no longer exists.
	ErrOwnerGone = errors.New("task owner does not exist")
)

type Task struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Title       string    `json:"title"`
	Description *string   `json:"description"`
	IsCompleted bool      `json:"is_completed"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Length rules live in the task service, which measures the trimmed title.
type CreateTaskRequest struct {
	Title       string  `json:"title" binding:"required"`
	Description *string `json:"description"`
}

// UpdateTaskRequest is a partial update: nil fields are left alone.
type UpdateTaskRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	IsCompleted *bool   `json:"is_completed"`
}

func (r UpdateTaskRequest) Empty() bool {
	return r.Title == nil && r.Description == nil && r.IsCompleted == nil
}

// Apply copies the supplied fields onto t. An empty description clears it.
func (r UpdateTaskRequest) Apply(t *Task, now time.Time) {
	if r.Title != nil {
		t.Title = *r.Title
	}

	if r.Description != nil {
		if *r.Description == "" {
			t.Description = nil
		} else {
			d := *r.Description
			t.Description = &d
		}
	}

	if r.IsCompleted != nil {
		t.IsCompleted = *r.IsCompleted
	}

	t.UpdatedAt = now
}

// with pointers if optional, it will be nil
type ListTasksFilter struct {
	Completed *bool
	Limit     int

	// keyset position; zero values mean "from the newest"
	BeforeCreatedAt time.Time
	BeforeID        string
}
