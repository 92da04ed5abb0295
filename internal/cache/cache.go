package cache

import (
	"context"
	"strconv"
	"sync"
	"time"
)

// Backend is the key/value surface the task list cache needs.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
	Incr(ctx context.Context, key string) (int64, error)
}

// Memory is an in-process Backend. A zero ttl means the entry never expires.
type Memory struct {
	mu  sync.RWMutex
	m   map[string]entry
	now func() time.Time
}

type entry struct {
	val []byte
	exp time.Time
}

func NewMemory() *Memory {
	return &Memory{
		m:   make(map[string]entry),
		now: time.Now,
	}
}

func (c *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	now := c.now()
	c.mu.RLock()
	e, ok := c.m[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}

	if !e.exp.IsZero() && now.After(e.exp) {
		c.mu.Lock()
		delete(c.m, key)
		c.mu.Unlock()
		return nil, false, nil
	}

	return e.val, true, nil
}

func (c *Memory) Set(_ context.Context, key string, val []byte, ttl time.Duration) error {
	e := entry{val: val}
	if ttl > 0 {
		e.exp = c.now().Add(ttl)
	}

	c.mu.Lock()
	c.m[key] = e
	c.mu.Unlock()

	return nil
}

func (c *Memory) Incr(_ context.Context, key string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var n int64
	if e, ok := c.m[key]; ok {
		n, _ = strconv.ParseInt(string(e.val), 10, 64)
	}
	n++
	c.m[key] = entry{val: []byte(strconv.FormatInt(n, 10))}

	return n, nil
}

func (c *Memory) Clear() {
	c.mu.Lock()
	c.m = make(map[string]entry)
	c.mu.Unlock()
}
