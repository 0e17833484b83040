package service

import (
	"context"
	"fmt"
	"time"

	"fieldops_backend/internal/events"
	"fieldops_backend/internal/installs/repository"
	"fieldops_backend/internal/installs/transport"
	"fieldops_backend/platform/apperr"
	"fieldops_backend/platform/geo"
	"fieldops_backend/platform/sanitize"

	"github.com/google/uuid"
)

// dispatchableStatuses are the states from which an installer may be
// assigned. Re-dispatching while already DISPATCHING swaps the installer.
var dispatchableStatuses = []string{
	string(transport.StatusPendingDispatch),
	string(transport.StatusDispatching),
}

// rejectableStatuses are the states a back-office reject may start from.
// Rejecting a task that is still PENDING_VISIT records the reason without
// moving it.
var rejectableStatuses = []string{
	string(transport.StatusPendingConfirm),
	string(transport.StatusPendingVisit),
}

// cancellableStatuses are the non-terminal states.
var cancellableStatuses = []string{
	string(transport.StatusPendingDispatch),
	string(transport.StatusDispatching),
	string(transport.StatusPendingVisit),
	string(transport.StatusPendingConfirm),
}

// Dispatch assigns an installer and schedule to a task. The logistics gate
// and soft scheduling conflicts block unless forced; hard conflicts always
// block.
func (s *Service) Dispatch(ctx context.Context, sess transport.Session, taskID uuid.UUID, req transport.DispatchTaskRequest) (*transport.TaskResponse, error) {
	if !s.authz.CanDispatch(sess) {
		return nil, apperr.Forbidden("not allowed to dispatch tasks")
	}

	task, err := s.store.GetByID(ctx, taskID, sess.TenantID)
	if err != nil {
		return nil, err
	}
	if !contains(dispatchableStatuses, task.Status) {
		return nil, apperr.InvalidState(fmt.Sprintf("cannot dispatch task in status %s", task.Status))
	}

	logistics, err := s.CheckLogistics(ctx, sess.TenantID, task.OrderID)
	if err != nil {
		return nil, err
	}
	if !logistics.Ready {
		// Logistics is a soft gate: overridable with force, like
		// itinerary-risk conflicts.
		if !req.Force {
			return nil, apperr.Conflict("materials not ready: " + logistics.Message).WithDetails(logistics)
		}
		s.logForcedOverride(ctx, task, "materials not ready")
	}

	scheduledDate := req.ScheduledDate
	if scheduledDate == nil {
		scheduledDate = task.ScheduledDate
	}
	scheduledSlot := req.ScheduledTimeSlot
	if scheduledSlot == nil {
		scheduledSlot = task.ScheduledTimeSlot
	}

	if scheduledDate != nil {
		conflict, err := s.CheckConflict(ctx, ConflictParams{
			TenantID:       sess.TenantID,
			InstallerID:    req.InstallerID,
			ExcludeTaskID:  task.ID,
			Date:           *scheduledDate,
			TimeSlot:       derefSlot(scheduledSlot),
			TargetLocation: taskLocation(task),
		})
		if err != nil {
			return nil, err
		}
		if conflict.HasConflict {
			if conflict.ConflictType == transport.ConflictHard {
				return nil, apperr.Conflict("scheduling conflict: " + conflict.Message).WithDetails(conflict)
			}
			if !req.Force {
				return nil, apperr.Conflict("scheduling risk: " + conflict.Message).WithDetails(conflict)
			}
			s.logForcedOverride(ctx, task, conflict.Message)
		}
	}

	now := s.now()
	ready := logistics.Ready
	err = s.store.ApplyDispatch(ctx, repository.DispatchUpdate{
		TaskID:            task.ID,
		TenantID:          sess.TenantID,
		FromStatuses:      dispatchableStatuses,
		Status:            string(transport.StatusDispatching),
		InstallerID:       req.InstallerID,
		DispatcherID:      sess.UserID,
		AssignedAt:        now,
		ScheduledDate:     scheduledDate,
		ScheduledTimeSlot: scheduledSlot,
		LogisticsReady:    &ready,
		LaborFeeCents:     req.LaborFeeCents,
		FeeBreakdown:      req.FeeBreakdown,
		Notes:             sanitize.TextPtr(req.DispatcherNotes),
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.InstallTaskDispatched{
		TaskMutation:      s.mutation(task, sess),
		InstallerID:       req.InstallerID,
		ScheduledDate:     scheduledDate,
		ScheduledTimeSlot: derefSlot(scheduledSlot),
		Forced:            req.Force,
	})

	return s.loadTask(ctx, sess.TenantID, taskID)
}

// CheckIn records on-site arrival and computes lateness against the
// scheduled date.
func (s *Service) CheckIn(ctx context.Context, sess transport.Session, taskID uuid.UUID, req transport.CheckInRequest) (*transport.CheckInResult, error) {
	task, err := s.store.GetByID(ctx, taskID, sess.TenantID)
	if err != nil {
		return nil, err
	}
	if err := s.requireOnSiteActor(sess, task.InstallerID); err != nil {
		return nil, err
	}
	if task.Status != string(transport.StatusDispatching) {
		return nil, apperr.InvalidState(fmt.Sprintf("cannot check in on task in status %s", task.Status))
	}

	now := s.now()
	lateMinutes := 0
	if task.ScheduledDate != nil && now.After(*task.ScheduledDate) {
		lateMinutes = int(now.Sub(*task.ScheduledDate).Minutes())
	}

	err = s.store.ApplyCheckIn(ctx, repository.CheckInUpdate{
		TaskID:     task.ID,
		TenantID:   sess.TenantID,
		FromStatus: string(transport.StatusDispatching),
		Status:     string(transport.StatusPendingVisit),
		CheckInAt:  now,
		Location:   req.Location,
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.InstallTaskCheckedIn{
		TaskMutation: s.mutation(task, sess),
		LateMinutes:  lateMinutes,
	})

	return &transport.CheckInResult{IsLate: lateMinutes > 0, LateMinutes: lateMinutes}, nil
}

// CheckOut records on-site completion. Check-out requires a checklist with
// every required item checked; a task without a checklist cannot check out.
func (s *Service) CheckOut(ctx context.Context, sess transport.Session, taskID uuid.UUID, req transport.CheckOutRequest) error {
	task, err := s.store.GetByID(ctx, taskID, sess.TenantID)
	if err != nil {
		return err
	}
	if err := s.requireOnSiteActor(sess, task.InstallerID); err != nil {
		return err
	}
	if task.Status != string(transport.StatusPendingVisit) {
		return apperr.InvalidState(fmt.Sprintf("cannot check out on task in status %s", task.Status))
	}
	if task.Checklist == nil || !AllCompleted(task.Checklist.Items) {
		return apperr.InvalidState("required checklist items are not complete")
	}

	now := s.now()
	var signedAt *time.Time
	if req.CustomerSignatureURL != nil {
		signedAt = &now
	}

	err = s.store.ApplyCheckOut(ctx, repository.CheckOutUpdate{
		TaskID:               task.ID,
		TenantID:             sess.TenantID,
		FromStatus:           string(transport.StatusPendingVisit),
		Status:               string(transport.StatusPendingConfirm),
		CheckOutAt:           now,
		Location:             req.Location,
		CustomerSignatureURL: req.CustomerSignatureURL,
		SignedAt:             signedAt,
	})
	if err != nil {
		return err
	}

	s.publish(ctx, events.InstallTaskCheckedOut{
		TaskMutation: s.mutation(task, sess),
		Signed:       req.CustomerSignatureURL != nil,
	})

	return nil
}

// Confirm is the back-office sign-off that completes a task and settles
// the actual labor fee.
func (s *Service) Confirm(ctx context.Context, sess transport.Session, taskID uuid.UUID, req transport.ConfirmTaskRequest) error {
	if !s.authz.CanConfirm(sess) {
		return apperr.Forbidden("not allowed to confirm tasks")
	}

	task, err := s.store.GetByID(ctx, taskID, sess.TenantID)
	if err != nil {
		return err
	}
	if task.Status != string(transport.StatusPendingConfirm) {
		return apperr.InvalidState(fmt.Sprintf("cannot confirm task in status %s", task.Status))
	}
	if task.InstallerID == nil {
		return apperr.InvalidState("incomplete task information")
	}

	err = s.store.ApplyConfirm(ctx, repository.ConfirmUpdate{
		TaskID:              task.ID,
		TenantID:            sess.TenantID,
		FromStatus:          string(transport.StatusPendingConfirm),
		Status:              string(transport.StatusCompleted),
		ActualLaborFeeCents: req.ActualLaborFeeCents,
		AdjustmentReason:    sanitize.TextPtr(req.AdjustmentReason),
		Rating:              req.Rating,
		RatingComment:       sanitize.TextPtr(req.RatingComment),
		ConfirmedAt:         s.now(),
		ConfirmedBy:         sess.UserID,
	})
	if err != nil {
		return err
	}

	s.publish(ctx, events.InstallTaskConfirmed{
		TaskMutation:        s.mutation(task, sess),
		ActualLaborFeeCents: req.ActualLaborFeeCents,
		Rating:              req.Rating,
	})

	return nil
}

// Reject sends a checked-out task back on site for rework.
func (s *Service) Reject(ctx context.Context, sess transport.Session, taskID uuid.UUID, req transport.RejectTaskRequest) error {
	if !s.authz.CanConfirm(sess) {
		return apperr.Forbidden("not allowed to reject tasks")
	}

	task, err := s.store.GetByID(ctx, taskID, sess.TenantID)
	if err != nil {
		return err
	}
	if !contains(rejectableStatuses, task.Status) {
		return apperr.InvalidState(fmt.Sprintf("cannot reject task in status %s", task.Status))
	}

	reason := sanitize.Text(req.Reason)
	count, err := s.store.ApplyReject(ctx, task.ID, sess.TenantID,
		rejectableStatuses, string(transport.StatusPendingVisit), reason)
	if err != nil {
		return err
	}

	rejectedEvent := events.InstallTaskRejected{
		TaskMutation: s.mutation(task, sess),
		Reason:       reason,
		RejectCount:  count,
	}
	if task.InstallerID != nil {
		rejectedEvent.InstallerID = *task.InstallerID
	}
	s.publish(ctx, rejectedEvent)

	return nil
}

// Cancel cancels a non-terminal task.
func (s *Service) Cancel(ctx context.Context, sess transport.Session, taskID uuid.UUID, req transport.CancelTaskRequest) error {
	if !s.authz.CanCancel(sess) {
		return apperr.Forbidden("not allowed to cancel tasks")
	}

	task, err := s.store.GetByID(ctx, taskID, sess.TenantID)
	if err != nil {
		return err
	}
	if isTerminal(task.Status) {
		return apperr.InvalidState(fmt.Sprintf("cannot cancel task in status %s", task.Status))
	}

	reason := sanitize.TextPtr(req.Reason)
	if err := s.store.ApplyCancel(ctx, task.ID, sess.TenantID, cancellableStatuses, reason); err != nil {
		return err
	}

	s.publish(ctx, events.InstallTaskCancelled{
		TaskMutation: s.mutation(task, sess),
		Reason:       derefSlot(reason),
	})

	return nil
}

func taskLocation(task *repository.InstallTask) *geo.Point {
	return task.AddressLocation
}

func derefSlot(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func contains(list []string, value string) bool {
	for _, item := range list {
		if item == value {
			return true
		}
	}
	return false
}
