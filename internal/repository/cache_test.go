package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"task-tracker/internal/model"
)

type stubBackend struct {
	getFn     func(ctx context.Context, id string) (*model.Task, error)
	replaceFn func(ctx context.Context, task *model.Task) error
	removeFn  func(ctx context.Context, id string) (*model.Task, error)
}

func (s *stubBackend) Create(ctx context.Context, task *model.Task) error {
	return errors.New("unexpected Create call")
}

func (s *stubBackend) Get(ctx context.Context, id string) (*model.Task, error) {
	if s.getFn == nil {
		return nil, errors.New("unexpected Get call")
	}
	return s.getFn(ctx, id)
}

func (s *stubBackend) List(ctx context.Context, filter TaskFilter) ([]model.Task, error) {
	return nil, errors.New("unexpected List call")
}

func (s *stubBackend) Replace(ctx context.Context, task *model.Task) error {
	if s.replaceFn == nil {
		return errors.New("unexpected Replace call")
	}
	return s.replaceFn(ctx, task)
}

func (s *stubBackend) Remove(ctx context.Context, id string) (*model.Task, error) {
	if s.removeFn == nil {
		return nil, errors.New("unexpected Remove call")
	}
	return s.removeFn(ctx, id)
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestCacheGetMissThenHit(t *testing.T) {
	mr, client := newTestRedis(t)
	ctx := context.Background()
	id := model.NewID()

	var calls int
	cache := NewCache(&stubBackend{
		getFn: func(ctx context.Context, got string) (*model.Task, error) {
			calls++
			if got != id {
				t.Fatalf("unexpected id: %s", got)
			}
			return &model.Task{ID: id, Title: "Ship v1", Tags: []string{"a"}}, nil
		},
	}, client, time.Minute)

	for i := 0; i < 2; i++ {
		task, err := cache.Get(ctx, id)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if task.Title != "Ship v1" || len(task.Tags) != 1 {
			t.Fatalf("unexpected task %+v", task)
		}
	}
	if calls != 1 {
		t.Fatalf("expected 1 call to backend, got %d", calls)
	}
	if ttl := mr.TTL(taskCacheKey(id)); ttl <= 0 || ttl > time.Minute {
		t.Fatalf("unexpected TTL: %v", ttl)
	}
}

func TestCacheReplaceAndRemoveEvict(t *testing.T) {
	mr, client := newTestRedis(t)
	ctx := context.Background()
	id := model.NewID()

	title := "v1"
	cache := NewCache(&stubBackend{
		getFn: func(ctx context.Context, _ string) (*model.Task, error) {
			return &model.Task{ID: id, Title: title}, nil
		},
		replaceFn: func(ctx context.Context, task *model.Task) error {
			title = task.Title
			return nil
		},
		removeFn: func(ctx context.Context, _ string) (*model.Task, error) {
			return &model.Task{ID: id, Title: title}, nil
		},
	}, client, time.Minute)

	if _, err := cache.Get(ctx, id); err != nil {
		t.Fatalf("get: %v", err)
	}
	if err := cache.Replace(ctx, &model.Task{ID: id, Title: "v2"}); err != nil {
		t.Fatalf("replace: %v", err)
	}
	if mr.Exists(taskCacheKey(id)) {
		t.Fatal("expected cache entry to be evicted on replace")
	}
	task, err := cache.Get(ctx, id)
	if err != nil || task.Title != "v2" {
		t.Fatalf("expected fresh task after replace, got %+v err=%v", task, err)
	}

	if _, err := cache.Remove(ctx, id); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if mr.Exists(taskCacheKey(id)) {
		t.Fatal("expected cache entry to be evicted on remove")
	}
}

func TestCacheFallsBackOnCorruptEntry(t *testing.T) {
	mr, client := newTestRedis(t)
	ctx := context.Background()
	id := model.NewID()
	if err := mr.Set(taskCacheKey(id), "{not json"); err != nil {
		t.Fatalf("seed: %v", err)
	}

	cache := NewCache(&stubBackend{
		getFn: func(ctx context.Context, _ string) (*model.Task, error) {
			return &model.Task{ID: id, Title: "from db"}, nil
		},
	}, client, time.Minute)

	task, err := cache.Get(ctx, id)
	if err != nil || task.Title != "from db" {
		t.Fatalf("expected backend fallback, got %+v err=%v", task, err)
	}
}

func TestCacheFallsBackWhenRedisIsDown(t *testing.T) {
	mr, client := newTestRedis(t)
	ctx := context.Background()
	id := model.NewID()

	var calls int
	cache := NewCache(&stubBackend{
		getFn: func(ctx context.Context, _ string) (*model.Task, error) {
			calls++
			return &model.Task{ID: id, Title: "from db"}, nil
		},
	}, client, time.Minute)

	if _, err := cache.Get(ctx, id); err != nil {
		t.Fatalf("warm cache: %v", err)
	}
	mr.Close()

	task, err := cache.Get(ctx, id)
	if err != nil {
		t.Fatalf("expected database fallback while redis is down, got %v", err)
	}
	if task.Title != "from db" || calls != 2 {
		t.Fatalf("unexpected fallback result %+v after %d backend calls", task, calls)
	}
}

func TestCacheWithoutRedisPassesThrough(t *testing.T) {
	var calls int
	cache := NewCache(&stubBackend{
		getFn: func(ctx context.Context, id string) (*model.Task, error) {
			calls++
			return &model.Task{ID: id}, nil
		},
	}, nil, time.Minute)

	for i := 0; i < 3; i++ {
		if _, err := cache.Get(context.Background(), "x"); err != nil {
			t.Fatalf("get: %v", err)
		}
	}
	if calls != 3 {
		t.Fatalf("expected every call to reach the backend, got %d", calls)
	}
}
