// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"time"

	"fieldops_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Install Task Domain Events
// =============================================================================

// TaskMutation carries the fields every install-task mutation event shares.
// Subscribers (audit trail, cache invalidation) treat all task events
// uniformly through this embedded struct.
type TaskMutation struct {
	BaseEvent
	TaskID   uuid.UUID `json:"taskId"`
	TenantID uuid.UUID `json:"tenantId"`
	TaskNo   string    `json:"taskNo"`
	ActorID  uuid.UUID `json:"actorId"`
}

// TaskRef exposes the shared mutation fields. Any event embedding
// TaskMutation satisfies TaskEvent through promotion.
func (m TaskMutation) TaskRef() TaskMutation { return m }

// TaskEvent is implemented by every install-task mutation event.
type TaskEvent interface {
	Event
	TaskRef() TaskMutation
}

// InstallTaskCreated is published after a task and its items are inserted.
type InstallTaskCreated struct {
	TaskMutation
	OrderID   uuid.UUID `json:"orderId"`
	ItemCount int       `json:"itemCount"`
	Status    string    `json:"status"`
}

func (e InstallTaskCreated) EventName() string { return "install_task.created" }

// InstallTaskDispatched is published after an installer is assigned.
type InstallTaskDispatched struct {
	TaskMutation
	InstallerID       uuid.UUID  `json:"installerId"`
	ScheduledDate     *time.Time `json:"scheduledDate,omitempty"`
	ScheduledTimeSlot string     `json:"scheduledTimeSlot,omitempty"`
	Forced            bool       `json:"forced"`
}

func (e InstallTaskDispatched) EventName() string { return "install_task.dispatched" }

// InstallTaskCheckedIn is published after an installer checks in on site.
type InstallTaskCheckedIn struct {
	TaskMutation
	LateMinutes int `json:"lateMinutes"`
}

func (e InstallTaskCheckedIn) EventName() string { return "install_task.checked_in" }

// InstallTaskCheckedOut is published after an installer checks out.
type InstallTaskCheckedOut struct {
	TaskMutation
	Signed bool `json:"signed"`
}

func (e InstallTaskCheckedOut) EventName() string { return "install_task.checked_out" }

// InstallTaskConfirmed is published when back office signs the task off.
type InstallTaskConfirmed struct {
	TaskMutation
	ActualLaborFeeCents int64 `json:"actualLaborFeeCents"`
	Rating              *int  `json:"rating,omitempty"`
}

func (e InstallTaskConfirmed) EventName() string { return "install_task.confirmed" }

// InstallTaskRejected is published when a task is sent back for rework.
type InstallTaskRejected struct {
	TaskMutation
	InstallerID uuid.UUID `json:"installerId"`
	Reason      string    `json:"reason"`
	RejectCount int       `json:"rejectCount"`
}

func (e InstallTaskRejected) EventName() string { return "install_task.rejected" }

// InstallTaskCancelled is published when a task is cancelled.
type InstallTaskCancelled struct {
	TaskMutation
	Reason string `json:"reason,omitempty"`
}

func (e InstallTaskCancelled) EventName() string { return "install_task.cancelled" }

// InstallChecklistUpdated is published after the on-site checklist changes.
type InstallChecklistUpdated struct {
	TaskMutation
	AllCompleted bool `json:"allCompleted"`
}

func (e InstallChecklistUpdated) EventName() string { return "install_task.checklist_updated" }

// InstallItemUpdated is published after a single install item changes.
type InstallItemUpdated struct {
	TaskMutation
	ItemID      uuid.UUID `json:"itemId"`
	IsInstalled bool      `json:"isInstalled"`
}

func (e InstallItemUpdated) EventName() string { return "install_task.item_updated" }

// NotificationOutboxDue is published by the scheduler worker when a claimed
// outbox record is due for delivery.
type NotificationOutboxDue struct {
	BaseEvent
	OutboxID uuid.UUID `json:"outboxId"`
	TenantID uuid.UUID `json:"tenantId"`
}

func (e NotificationOutboxDue) EventName() string { return "notification.outbox.due" }

// TaskEventNames lists every install-task event name. Subscribers that treat
// all task mutations uniformly register against this list.
var TaskEventNames = []string{
	InstallTaskCreated{}.EventName(),
	InstallTaskDispatched{}.EventName(),
	InstallTaskCheckedIn{}.EventName(),
	InstallTaskCheckedOut{}.EventName(),
	InstallTaskConfirmed{}.EventName(),
	InstallTaskRejected{}.EventName(),
	InstallTaskCancelled{}.EventName(),
	InstallChecklistUpdated{}.EventName(),
	InstallItemUpdated{}.EventName(),
}
