package cache

import (
	"context"
	"testing"

	"fieldops_backend/internal/events"
	"fieldops_backend/internal/installs/transport"
	"fieldops_backend/platform/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	mr := miniredis.RunT(t)
	return &Store{
		client: redis.NewClient(&redis.Options{Addr: mr.Addr()}),
		ttl:    taskTTL,
		log:    logger.New("test"),
	}
}

func TestTaskCacheRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	tenantID := uuid.New()
	task := &transport.TaskResponse{
		ID:     uuid.New(),
		TaskNo: "INS-20250310-A1B2C3",
		Status: transport.StatusPendingDispatch,
	}

	if _, ok := store.GetTask(ctx, tenantID, task.ID); ok {
		t.Fatalf("expected miss before set")
	}

	store.SetTask(ctx, tenantID, task)

	cached, ok := store.GetTask(ctx, tenantID, task.ID)
	if !ok {
		t.Fatalf("expected hit after set")
	}
	if cached.TaskNo != task.TaskNo {
		t.Fatalf("expected taskNo %s, got %s", task.TaskNo, cached.TaskNo)
	}
	if cached.Status != transport.StatusPendingDispatch {
		t.Fatalf("expected status %s, got %s", transport.StatusPendingDispatch, cached.Status)
	}
}

func TestTaskCacheTenantIsolation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	tenantA := uuid.New()
	tenantB := uuid.New()
	task := &transport.TaskResponse{ID: uuid.New(), TaskNo: "INS-20250310-D4E5F6"}

	store.SetTask(ctx, tenantA, task)

	if _, ok := store.GetTask(ctx, tenantB, task.ID); ok {
		t.Fatalf("tenant B must not see tenant A's cached task")
	}
}

func TestTaskCacheInvalidatedOnMutationEvent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	tenantID := uuid.New()
	task := &transport.TaskResponse{ID: uuid.New(), TaskNo: "INS-20250310-ABCDEF"}
	store.SetTask(ctx, tenantID, task)

	bus := events.NewInMemoryBus(logger.New("test"))
	store.RegisterHandlers(bus)

	err := bus.PublishSync(ctx, events.InstallTaskDispatched{
		TaskMutation: events.TaskMutation{
			BaseEvent: events.NewBaseEvent(),
			TaskID:    task.ID,
			TenantID:  tenantID,
			TaskNo:    task.TaskNo,
		},
		InstallerID: uuid.New(),
	})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}

	if _, ok := store.GetTask(ctx, tenantID, task.ID); ok {
		t.Fatalf("expected entry to be invalidated after dispatch event")
	}
}
