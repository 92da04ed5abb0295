package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"time"

	"github.com/geocoder89/taskhub/internal/domain/task"
	"github.com/geocoder89/taskhub/internal/utils"
)

// TaskLists caches list results per owner. Each owner has a generation
// counter that is part of every key; Invalidate bumps it, which orphans all
// of that owner's cached pages at once. Orphans expire with the ttl.
//
// Callers must call Get before reading the store and pass the returned key
// to Set, so a page read before a write can never be served after it.
//
// Backend failures are logged and treated as misses.
type TaskLists struct {
	backend Backend
	ttl     time.Duration
	log     *slog.Logger
}

func NewTaskLists(backend Backend, ttl time.Duration, log *slog.Logger) *TaskLists {
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}

	return &TaskLists{backend: backend, ttl: ttl, log: log}
}

func generationKey(ownerID string) string {
	return "tasks:gen:v1:owner=" + ownerID
}

func (c *TaskLists) generation(ctx context.Context, ownerID string) (int64, error) {
	b, ok, err := c.backend.Get(ctx, generationKey(ownerID))
	if err != nil || !ok {
		return 0, err
	}
	return strconv.ParseInt(string(b), 10, 64)
}

// Get returns the cached page and the key under which a fresh page should be
// stored. An empty key means caching is unavailable for this call.
func (c *TaskLists) Get(ctx context.Context, ownerID string, f task.ListTasksFilter) (tasks []task.Task, key string, hit bool) {
	gen, err := c.generation(ctx, ownerID)
	if err != nil {
		c.log.WarnContext(ctx, "task list cache generation read failed", "err", err)
		return nil, "", false
	}

	key = utils.BuildTaskListCacheKey(ownerID, gen, f)

	b, ok, err := c.backend.Get(ctx, key)
	if err != nil {
		c.log.WarnContext(ctx, "task list cache read failed", "err", err)
		return nil, key, false
	}
	if !ok {
		return nil, key, false
	}

	if err := json.Unmarshal(b, &tasks); err != nil {
		c.log.WarnContext(ctx, "task list cache entry undecodable", "err", err)
		return nil, key, false
	}

	return tasks, key, true
}

func (c *TaskLists) Set(ctx context.Context, key string, tasks []task.Task) {
	if key == "" {
		return
	}

	b, err := json.Marshal(tasks)
	if err != nil {
		return
	}

	if err := c.backend.Set(ctx, key, b, c.ttl); err != nil {
		c.log.WarnContext(ctx, "task list cache write failed", "err", err)
	}
}

func (c *TaskLists) Invalidate(ctx context.Context, ownerID string) {
	if _, err := c.backend.Incr(ctx, generationKey(ownerID)); err != nil {
		c.log.WarnContext(ctx, "task list cache invalidation failed", "owner_id", ownerID, "err", err)
	}
}
