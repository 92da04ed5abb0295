package services

import (
	"context"
	"time"

	"github.com/geocoder89/taskhub/internal/domain/task"
	"github.com/geocoder89/taskhub/internal/domain/user"
)

type UserStore interface {
	Create(ctx context.Context, u user.User) (user.User, error)
	GetByEmail(ctx context.Context, email string) (user.User, error)
	GetByID(ctx context.Context, id string) (user.User, error)
}

// TaskStore methods all take the owner; a task belonging to another owner
// must come back as task.ErrNotFound.
type TaskStore interface {
	Create(ctx context.Context, t task.Task) (task.Task, error)
	GetByIDAndOwner(ctx context.Context, ownerID, id string) (task.Task, error)
	ListByOwner(ctx context.Context, ownerID string, f task.ListTasksFilter) ([]task.Task, error)
	UpdateByIDAndOwner(ctx context.Context, ownerID, id string, req task.UpdateTaskRequest) (task.Task, error)
	ToggleByIDAndOwner(ctx context.Context, ownerID, id string) (task.Task, error)
	DeleteByIDAndOwner(ctx context.Context, ownerID, id string) error
}

type PasswordHasher interface {
	HashPassword(plain string) (string, error)
	CheckPassword(hash, plain string) (bool, error)
	DummyHash() (string, error)
}

type TokenManager interface {
	GenerateAccessToken(userID string) (string, time.Time, error)
	VerifyAccessToken(token string) (string, error)
}

type TaskListCache interface {
	Get(ctx context.Context, ownerID string, f task.ListTasksFilter) ([]task.Task, string, bool)
	Set(ctx context.Context, key string, tasks []task.Task)
	Invalidate(ctx context.Context, ownerID string)
}
