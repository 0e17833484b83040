// Package cache provides a redis-backed read cache for task detail
// lookups. Every task mutation event invalidates the cached entry, so a
// short TTL only has to cover missed events.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"fieldops_backend/internal/events"
	"fieldops_backend/internal/installs/transport"
	"fieldops_backend/platform/config"
	"fieldops_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const taskTTL = 5 * time.Minute

type Store struct {
	client *redis.Client
	ttl    time.Duration
	log    *logger.Logger
}

// NewStore connects to redis using the configured URL.
func NewStore(cfg config.CacheConfig, log *logger.Logger) (*Store, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	return &Store{
		client: redis.NewClient(opt),
		ttl:    taskTTL,
		log:    log,
	}, nil
}

func (s *Store) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}

func taskKey(tenantID, taskID uuid.UUID) string {
	return fmt.Sprintf("install:task:%s:%s", tenantID, taskID)
}

// GetTask returns the cached task view, or false on a miss. Redis errors
// count as misses so the database stays the source of truth.
func (s *Store) GetTask(ctx context.Context, tenantID, taskID uuid.UUID) (*transport.TaskResponse, bool) {
	if s == nil || s.client == nil {
		return nil, false
	}

	data, err := s.client.Get(ctx, taskKey(tenantID, taskID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			s.log.SideEffectError("task cache read", err)
		}
		return nil, false
	}

	var task transport.TaskResponse
	if err := json.Unmarshal(data, &task); err != nil {
		return nil, false
	}
	return &task, true
}

// SetTask caches the task view. Best effort.
func (s *Store) SetTask(ctx context.Context, tenantID uuid.UUID, task *transport.TaskResponse) {
	if s == nil || s.client == nil || task == nil {
		return
	}

	data, err := json.Marshal(task)
	if err != nil {
		return
	}

	if err := s.client.Set(ctx, taskKey(tenantID, task.ID), data, s.ttl).Err(); err != nil {
		s.log.SideEffectError("task cache write", err)
	}
}

// InvalidateTask drops the cached entry for a task.
func (s *Store) InvalidateTask(ctx context.Context, tenantID, taskID uuid.UUID) {
	if s == nil || s.client == nil {
		return
	}
	if err := s.client.Del(ctx, taskKey(tenantID, taskID)).Err(); err != nil {
		s.log.SideEffectError("task cache invalidation", err)
	}
}

// RegisterHandlers subscribes the store to every task mutation event so
// stale entries are dropped as soon as a task changes.
func (s *Store) RegisterHandlers(bus events.Bus) {
	for _, name := range events.TaskEventNames {
		bus.Subscribe(name, events.HandlerFunc(s.onTaskMutation))
	}
}

func (s *Store) onTaskMutation(ctx context.Context, event events.Event) error {
	taskEvent, ok := event.(events.TaskEvent)
	if !ok {
		return nil
	}
	ref := taskEvent.TaskRef()
	s.InvalidateTask(ctx, ref.TenantID, ref.TaskID)
	return nil
}
