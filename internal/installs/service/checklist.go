package service

import (
	"context"

	"fieldops_backend/internal/events"
	"fieldops_backend/internal/installs/repository"
	"fieldops_backend/internal/installs/transport"
	"fieldops_backend/platform/apperr"

	"github.com/google/uuid"
)

// AllCompleted reports whether every required checklist item is checked.
// Optional items never block; an empty checklist counts as complete.
func AllCompleted(items []transport.ChecklistItem) bool {
	for _, item := range items {
		if item.Required && !item.IsChecked {
			return false
		}
	}
	return true
}

// UpdateChecklist replaces the task's checklist document and recomputes
// the completion flag.
func (s *Service) UpdateChecklist(ctx context.Context, sess transport.Session, taskID uuid.UUID, req transport.UpdateChecklistRequest) (*transport.ChecklistStatus, error) {
	task, err := s.store.GetByID(ctx, taskID, sess.TenantID)
	if err != nil {
		return nil, err
	}

	if isTerminal(task.Status) {
		return nil, apperr.InvalidState("cannot edit checklist of a " + task.Status + " task")
	}

	if err := s.requireOnSiteActor(sess, task.InstallerID); err != nil {
		return nil, err
	}

	checklist := &transport.ChecklistStatus{
		Items:        req.Items,
		AllCompleted: AllCompleted(req.Items),
		UpdatedAt:    s.now(),
	}

	if err := s.store.SaveChecklist(ctx, taskID, sess.TenantID, checklist); err != nil {
		return nil, err
	}

	s.publish(ctx, events.InstallChecklistUpdated{
		TaskMutation: s.mutation(task, sess),
		AllCompleted: checklist.AllCompleted,
	})

	return checklist, nil
}

// UpdateItemStatus mutates a single install item line.
func (s *Service) UpdateItemStatus(ctx context.Context, sess transport.Session, itemID uuid.UUID, req transport.UpdateItemStatusRequest) error {
	var issue *string
	if req.IssueCategory != nil {
		value := string(*req.IssueCategory)
		issue = &value
	}

	taskID, err := s.store.UpdateItemStatus(ctx, repository.ItemStatusUpdate{
		ItemID:                  itemID,
		TenantID:                sess.TenantID,
		IsInstalled:             req.IsInstalled,
		ActualInstalledQuantity: req.ActualInstalledQuantity,
		IssueCategory:           issue,
	})
	if err != nil {
		return err
	}

	task, err := s.store.GetByID(ctx, taskID, sess.TenantID)
	if err != nil {
		return err
	}

	s.publish(ctx, events.InstallItemUpdated{
		TaskMutation: s.mutation(task, sess),
		ItemID:       itemID,
		IsInstalled:  req.IsInstalled,
	})

	return nil
}
