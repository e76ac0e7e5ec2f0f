package repository

import (
	"context"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"

	"task-tracker/internal/model"
)

type taskBackend interface {
	Create(ctx context.Context, task *model.Task) error
	Get(ctx context.Context, id string) (*model.Task, error)
	List(ctx context.Context, filter TaskFilter) ([]model.Task, error)
	Replace(ctx context.Context, task *model.Task) error
	Remove(ctx context.Context, id string) (*model.Task, error)
}

// Cache wraps a task backend with a Redis read-through cache for Get.
type Cache struct {
	base  taskBackend
	redis *redis.Client
	ttl   time.Duration
}

// NewCache creates a caching wrapper using the provided Redis client and TTL.
// A nil client disables caching.
func NewCache(base taskBackend, client *redis.Client, ttl time.Duration) *Cache {
	if base == nil {
		panic("repository.NewCache: base backend is nil")
	}
	if ttl < 0 {
		ttl = 0
	}
	return &Cache{base: base, redis: client, ttl: ttl}
}

func (c *Cache) Create(ctx context.Context, task *model.Task) error {
	return c.base.Create(ctx, task)
}

func (c *Cache) Get(ctx context.Context, id string) (*model.Task, error) {
	if task, ok := c.load(ctx, id); ok {
		return task, nil
	}
	task, err := c.base.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	c.store(ctx, task)
	return task, nil
}

func (c *Cache) List(ctx context.Context, filter TaskFilter) ([]model.Task, error) {
	return c.base.List(ctx, filter)
}

func (c *Cache) Replace(ctx context.Context, task *model.Task) error {
	c.evict(ctx, task.ID)
	if err := c.base.Replace(ctx, task); err != nil {
		return err
	}
	c.evict(ctx, task.ID)
	return nil
}

func (c *Cache) Remove(ctx context.Context, id string) (*model.Task, error) {
	task, err := c.base.Remove(ctx, id)
	c.evict(ctx, id)
	return task, err
}

func (c *Cache) load(ctx context.Context, id string) (*model.Task, bool) {
	if c.redis == nil {
		return nil, false
	}
	data, err := c.redis.Get(ctx, taskCacheKey(id)).Bytes()
	if err != nil {
		if err != redis.Nil {
			// On redis errors fall back to the database without failing.
			_ = c.redis.Del(ctx, taskCacheKey(id)).Err()
		}
		return nil, false
	}
	var task model.Task
	if err := sonic.Unmarshal(data, &task); err != nil {
		_ = c.redis.Del(ctx, taskCacheKey(id)).Err()
		return nil, false
	}
	return &task, true
}

func (c *Cache) store(ctx context.Context, task *model.Task) {
	if c.redis == nil || c.ttl == 0 {
		return
	}
	data, err := sonic.Marshal(task)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, taskCacheKey(task.ID), data, c.ttl).Err()
}

func (c *Cache) evict(ctx context.Context, id string) {
	if c.redis == nil {
		return
	}
	_ = c.redis.Del(ctx, taskCacheKey(id)).Err()
}

func taskCacheKey(id string) string {
	return "task:" + id
}
