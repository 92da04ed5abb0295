package task

import (
	"time"

	"github.com/google/uuid"
)

func NewFromCreateRequest(ownerID string, req CreateTaskRequest, now time.Time) Task {
	t := Task{
		ID:          uuid.NewString(),
		UserID:      ownerID,
		Title:       req.Title,
		IsCompleted: false,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if req.Description != nil && *req.Description != "" {
		d := *req.Description
		t.Description = &d
	}

	return t
}
