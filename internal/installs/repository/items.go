package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fieldops_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ItemStatusUpdate carries the mutable fields of a single install item.
type ItemStatusUpdate struct {
	ItemID                  uuid.UUID
	TenantID                uuid.UUID
	IsInstalled             bool
	ActualInstalledQuantity *int
	IssueCategory           *string
}

// UpdateItemStatus mutates one install item and returns the owning task ID
// so the caller can publish an event for the task.
func (r *Repository) UpdateItemStatus(ctx context.Context, upd ItemStatusUpdate) (uuid.UUID, error) {
	query := `UPDATE install_items SET
			is_installed = $3,
			actual_installed_quantity = COALESCE($4, actual_installed_quantity),
			issue_category = COALESCE($5, issue_category),
			updated_at = $6
		WHERE id = $1 AND tenant_id = $2
		RETURNING task_id`

	var taskID uuid.UUID
	err := r.pool.QueryRow(ctx, query,
		upd.ItemID, upd.TenantID, upd.IsInstalled, upd.ActualInstalledQuantity,
		upd.IssueCategory, time.Now(),
	).Scan(&taskID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, apperr.NotFound(itemNotFoundMsg)
		}
		return uuid.Nil, fmt.Errorf("failed to update install item: %w", err)
	}

	return taskID, nil
}
