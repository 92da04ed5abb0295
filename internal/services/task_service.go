package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/geocoder89/taskhub/internal/apperr"
	"github.com/geocoder89/taskhub/internal/domain/task"
	"github.com/geocoder89/taskhub/internal/utils"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 100
)

// TaskService runs every task operation on behalf of an owner id that came
// from a verified token. Not found and not yours are the same answer.
type TaskService struct {
	tasks TaskStore
	lists TaskListCache
	now   func() time.Time
}

// lists may be nil to disable list caching.
func NewTaskService(tasks TaskStore, lists TaskListCache) *TaskService {
	return &TaskService{
		tasks: tasks,
		lists: lists,
		now:   func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}
}

type ListTasksQuery struct {
	Completed *bool
	Limit     int
	Cursor    string
}

type TaskPage struct {
	Items      []task.Task
	NextCursor *string
}

func validateTitle(raw string) (string, error) {
	title := strings.TrimSpace(raw)

	if title == "" {
		return "", apperr.Validation("title", "must not be empty")
	}
	if utf8.RuneCountInString(title) > task.MaxTitleLen {
		return "", apperr.Validation("title", fmt.Sprintf("must be at most %d characters", task.MaxTitleLen))
	}

	return title, nil
}

func validateDescription(d *string) error {
	if d != nil && utf8.RuneCountInString(*d) > task.MaxDescriptionLen {
		return apperr.Validation("description", fmt.Sprintf("must be at most %d characters", task.MaxDescriptionLen))
	}
	return nil
}

func requireOwner(ownerID string) error {
	if ownerID == "" {
		return apperr.ErrUnauthorized
	}
	return nil
}

// taskErr maps store results onto the caller-facing taxonomy.
func taskErr(op string, err error) error {
	if errors.Is(err, task.ErrNotFound) {
		return apperr.ErrNotFound
	}
	return storeErr(op, err)
}

func (s *TaskService) invalidate(ctx context.Context, ownerID string) {
	if s.lists != nil {
		s.lists.Invalidate(ctx, ownerID)
	}
}

func (s *TaskService) Create(ctx context.Context, ownerID string, req task.CreateTaskRequest) (task.Task, error) {
	if err := requireOwner(ownerID); err != nil {
		return task.Task{}, err
	}

	title, err := validateTitle(req.Title)
	if err != nil {
		return task.Task{}, err
	}
	if err := validateDescription(req.Description); err != nil {
		return task.Task{}, err
	}
	req.Title = title

	t, err := s.tasks.Create(ctx, task.NewFromCreateRequest(ownerID, req, s.now()))
	if err != nil {
		// a valid token for a deleted account
		if errors.Is(err, task.ErrOwnerGone) {
			return task.Task{}, fmt.Errorf("create task: %w", apperr.ErrUnauthorized)
		}
		return task.Task{}, storeErr("create task", err)
	}

	s.invalidate(ctx, ownerID)

	return t, nil
}

func (s *TaskService) Get(ctx context.Context, ownerID, id string) (task.Task, error) {
	if err := requireOwner(ownerID); err != nil {
		return task.Task{}, err
	}

	// a malformed id can't name anything
	if !utils.IsUUID(id) {
		return task.Task{}, apperr.ErrNotFound
	}

	t, err := s.tasks.GetByIDAndOwner(ctx, ownerID, id)
	if err != nil {
		return task.Task{}, taskErr("get task", err)
	}

	return t, nil
}

func (s *TaskService) List(ctx context.Context, ownerID string, q ListTasksQuery) (TaskPage, error) {
	if err := requireOwner(ownerID); err != nil {
		return TaskPage{}, err
	}

	limit := q.Limit
	switch {
	case limit == 0:
		limit = DefaultListLimit
	case limit < 0 || limit > MaxListLimit:
		return TaskPage{}, apperr.Validation("limit", fmt.Sprintf("must be between 1 and %d", MaxListLimit))
	}

	// one extra row tells us whether another page exists
	f := task.ListTasksFilter{Completed: q.Completed, Limit: limit + 1}

	if q.Cursor != "" {
		c, err := utils.DecodeTaskCursor(q.Cursor)
		if err != nil {
			return TaskPage{}, apperr.Validation("cursor", "is invalid")
		}
		f.BeforeCreatedAt = c.CreatedAt
		f.BeforeID = c.ID
	}

	var (
		items    []task.Task
		cacheKey string
		hit      bool
	)

	if s.lists != nil {
		items, cacheKey, hit = s.lists.Get(ctx, ownerID, f)
	}

	if !hit {
		var err error
		items, err = s.tasks.ListByOwner(ctx, ownerID, f)
		if err != nil {
			return TaskPage{}, storeErr("list tasks", err)
		}

		if s.lists != nil {
			s.lists.Set(ctx, cacheKey, items)
		}
	}

	page := TaskPage{Items: items}

	if len(items) > limit {
		page.Items = items[:limit]
		last := page.Items[limit-1]

		cur, err := utils.EncodeTaskCursor(last.CreatedAt, last.ID)
		if err != nil {
			return TaskPage{}, fmt.Errorf("list tasks: %w: %v", apperr.ErrInternal, err)
		}
		page.NextCursor = &cur
	}

	return page, nil
}

// Update applies only the supplied fields. An empty patch changes nothing
// and returns the task as it is.
func (s *TaskService) Update(ctx context.Context, ownerID, id string, req task.UpdateTaskRequest) (task.Task, error) {
	if err := requireOwner(ownerID); err != nil {
		return task.Task{}, err
	}

	if req.Title != nil {
		title, err := validateTitle(*req.Title)
		if err != nil {
			return task.Task{}, err
		}
		req.Title = &title
	}
	if err := validateDescription(req.Description); err != nil {
		return task.Task{}, err
	}

	if !utils.IsUUID(id) {
		return task.Task{}, apperr.ErrNotFound
	}

	if req.Empty() {
		return s.Get(ctx, ownerID, id)
	}

	t, err := s.tasks.UpdateByIDAndOwner(ctx, ownerID, id, req)
	if err != nil {
		return task.Task{}, taskErr("update task", err)
	}

	s.invalidate(ctx, ownerID)

	return t, nil
}

func (s *TaskService) Toggle(ctx context.Context, ownerID, id string) (task.Task, error) {
	if err := requireOwner(ownerID); err != nil {
		return task.Task{}, err
	}

	if !utils.IsUUID(id) {
		return task.Task{}, apperr.ErrNotFound
	}

	t, err := s.tasks.ToggleByIDAndOwner(ctx, ownerID, id)
	if err != nil {
		return task.Task{}, taskErr("toggle task", err)
	}

	s.invalidate(ctx, ownerID)

	return t, nil
}

func (s *TaskService) Delete(ctx context.Context, ownerID, id string) error {
	if err := requireOwner(ownerID); err != nil {
		return err
	}

	if !utils.IsUUID(id) {
		return apperr.ErrNotFound
	}

	if err := s.tasks.DeleteByIDAndOwner(ctx, ownerID, id); err != nil {
		return taskErr("delete task", err)
	}

	s.invalidate(ctx, ownerID)

	return nil
}
