package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/geocoder89/taskhub/internal/domain/task"
)

// TasksRepo keeps tasks in a map. Every read-modify-write runs under the
// write lock, so concurrent updates and toggles serialise.
type TasksRepo struct {
	mu    sync.RWMutex
	items map[string]task.Task
	now   func() time.Time

	// optional, mirrors the tasks.user_id foreign key
	users *UsersRepo
}

func NewTasksRepo() *TasksRepo {
	return &TasksRepo{
		items: make(map[string]task.Task),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// ReferenceUsers makes Create reject tasks whose owner is not in users.
func (r *TasksRepo) ReferenceUsers(users *UsersRepo) *TasksRepo {
	r.users = users
	return r
}

// values go in and out by copy so callers never share the description pointer
func clone(t task.Task) task.Task {
	if t.Description != nil {
		d := *t.Description
		t.Description = &d
	}
	return t
}

func (r *TasksRepo) Create(ctx context.Context, t task.Task) (task.Task, error) {
	if r.users != nil {
		if _, err := r.users.GetByID(ctx, t.UserID); err != nil {
			return task.Task{}, task.ErrOwnerGone
		}
	}

	r.mu.Lock()
	r.items[t.ID] = clone(t)
	r.mu.Unlock()

	return clone(t), nil
}

// lookup must be called with the lock held.
func (r *TasksRepo) lookup(ownerID, id string) (task.Task, bool) {
	t, ok := r.items[id]
	if !ok || t.UserID != ownerID {
		return task.Task{}, false
	}
	return t, true
}

func (r *TasksRepo) GetByIDAndOwner(_ context.Context, ownerID, id string) (task.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.lookup(ownerID, id)
	if !ok {
		return task.Task{}, task.ErrNotFound
	}

	return clone(t), nil
}

func (r *TasksRepo) ListByOwner(_ context.Context, ownerID string, f task.ListTasksFilter) ([]task.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]task.Task, 0)

	for _, t := range r.items {
		if t.UserID != ownerID {
			continue
		}
		if f.Completed != nil && t.IsCompleted != *f.Completed {
			continue
		}
		if !f.BeforeCreatedAt.IsZero() && f.BeforeID != "" && !olderThan(t, f.BeforeCreatedAt, f.BeforeID) {
			continue
		}
		out = append(out, clone(t))
	}

	sort.Slice(out, func(i, j int) bool {
		return olderThan(out[j], out[i].CreatedAt, out[i].ID)
	})

	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}

	return out, nil
}

// olderThan reports whether t sorts after (createdAt, id) in newest-first order.
func olderThan(t task.Task, createdAt time.Time, id string) bool {
	if t.CreatedAt.Equal(createdAt) {
		return t.ID < id
	}
	return t.CreatedAt.Before(createdAt)
}

func (r *TasksRepo) UpdateByIDAndOwner(_ context.Context, ownerID, id string, req task.UpdateTaskRequest) (task.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.lookup(ownerID, id)
	if !ok {
		return task.Task{}, task.ErrNotFound
	}

	req.Apply(&t, r.now())
	r.items[id] = t

	return clone(t), nil
}

func (r *TasksRepo) ToggleByIDAndOwner(_ context.Context, ownerID, id string) (task.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.lookup(ownerID, id)
	if !ok {
		return task.Task{}, task.ErrNotFound
	}

	t.IsCompleted = !t.IsCompleted
	t.UpdatedAt = r.now()
	r.items[id] = t

	return clone(t), nil
}

func (r *TasksRepo) DeleteByIDAndOwner(_ context.Context, ownerID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.lookup(ownerID, id); !ok {
		return task.ErrNotFound
	}

	delete(r.items, id)

	return nil
}

// Ping satisfies the readiness check; the map is always available.
func (r *TasksRepo) Ping(context.Context) error {
	return nil
}
