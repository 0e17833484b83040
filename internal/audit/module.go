package audit

import (
	"context"

	"fieldops_backend/internal/events"
	"fieldops_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module subscribes to every install-task event and writes an audit row
// per mutation. Writes are best effort: a failed audit insert is logged
// and never surfaces to the publisher.
type Module struct {
	repo *Repository
	log  *logger.Logger
}

func NewModule(pool *pgxpool.Pool, log *logger.Logger) *Module {
	return &Module{
		repo: New(pool),
		log:  log,
	}
}

func (m *Module) Repository() *Repository {
	return m.repo
}

// RegisterHandlers subscribes the module to all task mutation events.
func (m *Module) RegisterHandlers(bus events.Bus) {
	for _, name := range events.TaskEventNames {
		bus.Subscribe(name, events.HandlerFunc(m.record))
	}
}

func (m *Module) record(ctx context.Context, event events.Event) error {
	taskEvent, ok := event.(events.TaskEvent)
	if !ok {
		return nil
	}

	ref := taskEvent.TaskRef()
	if err := m.repo.Insert(ctx, InsertParams{
		TenantID:  ref.TenantID,
		ActorID:   ref.ActorID,
		TaskID:    ref.TaskID,
		TaskNo:    ref.TaskNo,
		EventName: event.EventName(),
		Payload:   event,
	}); err != nil {
		m.log.SideEffectError("audit log write", err)
	}
	return nil
}
