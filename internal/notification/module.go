// Package notification turns install-task domain events into installer
// emails. Events land in a persistent outbox; the scheduler claims rows
// and calls back into Deliver, so a crashed process never loses a
// notification and a failed send never fails the originating request.
package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"fieldops_backend/internal/events"
	"fieldops_backend/internal/notification/outbox"
	"fieldops_backend/platform/logger"

	"github.com/google/uuid"
)

// reminderLead is how long before the scheduled date the visit reminder
// goes out.
const reminderLead = 24 * time.Hour

// TaskNotificationPayload is the outbox payload for every task kind.
type TaskNotificationPayload struct {
	TaskID        uuid.UUID  `json:"taskId"`
	TaskNo        string     `json:"taskNo"`
	InstallerID   uuid.UUID  `json:"installerId"`
	ScheduledDate *time.Time `json:"scheduledDate,omitempty"`
	TimeSlot      string     `json:"timeSlot,omitempty"`
	Reason        string     `json:"reason,omitempty"`
}

// ContactReader resolves a user's contact details.
type ContactReader interface {
	GetContact(ctx context.Context, userID uuid.UUID) (name, email string, phone *string, err error)
}

// Module wires domain events to the notification outbox and delivers
// claimed records.
type Module struct {
	outbox   *outbox.Repository
	contacts ContactReader
	sender   Sender
	log      *logger.Logger
	now      func() time.Time
}

// New creates the notification module.
func New(outboxRepo *outbox.Repository, contacts ContactReader, sender Sender, log *logger.Logger) *Module {
	return &Module{
		outbox:   outboxRepo,
		contacts: contacts,
		sender:   sender,
		log:      log,
		now:      time.Now,
	}
}

// RegisterHandlers subscribes the module to the domain events it cares about.
func (m *Module) RegisterHandlers(bus events.Bus) {
	bus.Subscribe(events.InstallTaskDispatched{}.EventName(), events.HandlerFunc(m.onTaskDispatched))
	bus.Subscribe(events.InstallTaskRejected{}.EventName(), events.HandlerFunc(m.onTaskRejected))
	bus.Subscribe(events.NotificationOutboxDue{}.EventName(), events.HandlerFunc(m.onOutboxDue))
}

func (m *Module) onTaskDispatched(ctx context.Context, event events.Event) error {
	e, ok := event.(events.InstallTaskDispatched)
	if !ok {
		return nil
	}

	payload := TaskNotificationPayload{
		TaskID:        e.TaskID,
		TaskNo:        e.TaskNo,
		InstallerID:   e.InstallerID,
		ScheduledDate: e.ScheduledDate,
		TimeSlot:      e.ScheduledTimeSlot,
	}

	if _, err := m.outbox.Insert(ctx, outbox.InsertParams{
		TenantID: e.TenantID,
		Kind:     outbox.KindTaskAssigned,
		Payload:  payload,
		RunAt:    m.now().UTC(),
	}); err != nil {
		m.log.SideEffectError("task assigned notification", err)
		return err
	}

	// Queue a visit reminder a day ahead when the schedule allows it.
	if e.ScheduledDate != nil {
		runAt := e.ScheduledDate.Add(-reminderLead)
		if runAt.After(m.now()) {
			if _, err := m.outbox.Insert(ctx, outbox.InsertParams{
				TenantID: e.TenantID,
				Kind:     outbox.KindVisitReminder,
				Payload:  payload,
				RunAt:    runAt.UTC(),
			}); err != nil {
				m.log.SideEffectError("visit reminder notification", err)
			}
		}
	}

	return nil
}

func (m *Module) onTaskRejected(ctx context.Context, event events.Event) error {
	e, ok := event.(events.InstallTaskRejected)
	if !ok {
		return nil
	}

	_, err := m.outbox.Insert(ctx, outbox.InsertParams{
		TenantID: e.TenantID,
		Kind:     outbox.KindTaskRejected,
		Payload: TaskNotificationPayload{
			TaskID:      e.TaskID,
			TaskNo:      e.TaskNo,
			InstallerID: e.InstallerID,
			Reason:      e.Reason,
		},
		RunAt: m.now().UTC(),
	})
	if err != nil {
		m.log.SideEffectError("task rejected notification", err)
	}
	return err
}

func (m *Module) onOutboxDue(ctx context.Context, event events.Event) error {
	e, ok := event.(events.NotificationOutboxDue)
	if !ok {
		return nil
	}
	return m.Deliver(ctx, e.OutboxID)
}

// Deliver loads a claimed outbox record, sends the email, and records the
// outcome. Returning an error lets asynq retry with backoff.
func (m *Module) Deliver(ctx context.Context, outboxID uuid.UUID) error {
	rec, err := m.outbox.GetByID(ctx, outboxID)
	if err != nil {
		return err
	}
	if rec.Status == outbox.StatusSucceeded {
		return nil
	}

	if err := m.outbox.MarkProcessing(ctx, rec.ID); err != nil {
		return err
	}

	if err := m.deliver(ctx, rec); err != nil {
		_ = m.outbox.MarkFailed(ctx, rec.ID, err.Error())
		return err
	}

	return m.outbox.MarkSucceeded(ctx, rec.ID)
}

func (m *Module) deliver(ctx context.Context, rec outbox.Record) error {
	var payload TaskNotificationPayload
	if err := json.Unmarshal(rec.Payload, &payload); err != nil {
		return fmt.Errorf("malformed outbox payload: %w", err)
	}

	name, email, _, err := m.contacts.GetContact(ctx, payload.InstallerID)
	if err != nil {
		return err
	}
	if email == "" {
		m.log.Warn("installer has no email, skipping notification", "kind", rec.Kind, "taskNo", payload.TaskNo)
		return nil
	}

	date := ""
	if payload.ScheduledDate != nil {
		date = payload.ScheduledDate.Format("2006-01-02")
	}

	switch rec.Kind {
	case outbox.KindTaskAssigned:
		return m.sender.SendTaskAssignedEmail(ctx, email, name, payload.TaskNo, date, payload.TimeSlot, "")
	case outbox.KindVisitReminder:
		return m.sender.SendVisitReminderEmail(ctx, email, name, payload.TaskNo, date, payload.TimeSlot, "")
	case outbox.KindTaskRejected:
		return m.sender.SendTaskRejectedEmail(ctx, email, name, payload.TaskNo, payload.Reason)
	default:
		m.log.Warn("unknown outbox kind", "kind", rec.Kind)
		return nil
	}
}
