package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fieldops_backend/internal/installs/transport"
	"fieldops_backend/platform/apperr"
	"fieldops_backend/platform/geo"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// InstallTask represents the install task database model.
type InstallTask struct {
	ID                   uuid.UUID                  `db:"id"`
	TenantID             uuid.UUID                  `db:"tenant_id"`
	TaskNo               string                     `db:"task_no"`
	OrderID              uuid.UUID                  `db:"order_id"`
	CustomerID           uuid.UUID                  `db:"customer_id"`
	AfterSalesID         *uuid.UUID                 `db:"after_sales_id"`
	SourceType           string                     `db:"source_type"`
	Category             string                     `db:"category"`
	Status               string                     `db:"status"`
	Address              *string                    `db:"address"`
	AddressLocation      *geo.Point                 `db:"address_location"`
	InstallerID          *uuid.UUID                 `db:"installer_id"`
	DispatcherID         *uuid.UUID                 `db:"dispatcher_id"`
	AssignedAt           *time.Time                 `db:"assigned_at"`
	ScheduledDate        *time.Time                 `db:"scheduled_date"`
	ScheduledTimeSlot    *string                    `db:"scheduled_time_slot"`
	LogisticsReady       *bool                      `db:"logistics_ready"`
	LaborFeeCents        *int64                     `db:"labor_fee_cents"`
	FeeBreakdown         *transport.FeeBreakdown    `db:"fee_breakdown"`
	Notes                *string                    `db:"notes"`
	CheckInAt            *time.Time                 `db:"check_in_at"`
	CheckInLocation      *transport.Location        `db:"check_in_location"`
	CheckOutAt           *time.Time                 `db:"check_out_at"`
	CheckOutLocation     *transport.Location        `db:"check_out_location"`
	CustomerSignatureURL *string                    `db:"customer_signature_url"`
	SignedAt             *time.Time                 `db:"signed_at"`
	Checklist            *transport.ChecklistStatus `db:"checklist"`
	ActualLaborFeeCents  *int64                     `db:"actual_labor_fee_cents"`
	AdjustmentReason     *string                    `db:"adjustment_reason"`
	Rating               *int                       `db:"rating"`
	RatingComment        *string                    `db:"rating_comment"`
	ConfirmedAt          *time.Time                 `db:"confirmed_at"`
	ConfirmedBy          *uuid.UUID                 `db:"confirmed_by"`
	CompletedAt          *time.Time                 `db:"completed_at"`
	RejectReason         *string                    `db:"reject_reason"`
	RejectCount          int                        `db:"reject_count"`
	CreatedAt            time.Time                  `db:"created_at"`
	UpdatedAt            time.Time                  `db:"updated_at"`
}

// InstallItem represents one product line attached to an install task.
type InstallItem struct {
	ID                      uuid.UUID  `db:"id"`
	TenantID                uuid.UUID  `db:"tenant_id"`
	TaskID                  uuid.UUID  `db:"task_id"`
	OrderItemID             *uuid.UUID `db:"order_item_id"`
	ProductName             string     `db:"product_name"`
	RoomName                *string    `db:"room_name"`
	Quantity                int        `db:"quantity"`
	ActualInstalledQuantity *int       `db:"actual_installed_quantity"`
	IsInstalled             bool       `db:"is_installed"`
	IssueCategory           string     `db:"issue_category"`
	CreatedAt               time.Time  `db:"created_at"`
	UpdatedAt               time.Time  `db:"updated_at"`
}

// ErrDuplicateTaskNo is returned when the generated task number collides
// with an existing one for the tenant. Callers regenerate and retry.
var ErrDuplicateTaskNo = errors.New("duplicate task number")

const (
	taskNotFoundMsg = "installation task not found"
	itemNotFoundMsg = "install item not found"

	// staleTaskMsg is returned when a guarded update matches zero rows even
	// though the task exists: another writer changed the status first.
	staleTaskMsg = "task was modified concurrently, reload and retry"
)

const taskColumns = `id, tenant_id, task_no, order_id, customer_id, after_sales_id, source_type,
	category, status, address, address_location, installer_id, dispatcher_id, assigned_at,
	scheduled_date, scheduled_time_slot, logistics_ready, labor_fee_cents, fee_breakdown, notes,
	check_in_at, check_in_location, check_out_at, check_out_location, customer_signature_url,
	signed_at, checklist, actual_labor_fee_cents, adjustment_reason, rating, rating_comment,
	confirmed_at, confirmed_by, completed_at, reject_reason, reject_count, created_at, updated_at`

// Repository provides database operations for install tasks.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a new install task repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanTask(row pgx.Row) (*InstallTask, error) {
	var t InstallTask
	err := row.Scan(
		&t.ID, &t.TenantID, &t.TaskNo, &t.OrderID, &t.CustomerID, &t.AfterSalesID, &t.SourceType,
		&t.Category, &t.Status, &t.Address, &t.AddressLocation, &t.InstallerID, &t.DispatcherID,
		&t.AssignedAt, &t.ScheduledDate, &t.ScheduledTimeSlot, &t.LogisticsReady, &t.LaborFeeCents,
		&t.FeeBreakdown, &t.Notes, &t.CheckInAt, &t.CheckInLocation, &t.CheckOutAt,
		&t.CheckOutLocation, &t.CustomerSignatureURL, &t.SignedAt, &t.Checklist,
		&t.ActualLaborFeeCents, &t.AdjustmentReason, &t.Rating, &t.RatingComment, &t.ConfirmedAt,
		&t.ConfirmedBy, &t.CompletedAt, &t.RejectReason, &t.RejectCount, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// CreateWithItems inserts a task and its items in one transaction.
// A task_no collision rolls everything back and returns ErrDuplicateTaskNo.
func (r *Repository) CreateWithItems(ctx context.Context, task *InstallTask, items []InstallItem) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO install_tasks (
			id, tenant_id, task_no, order_id, customer_id, after_sales_id, source_type, category,
			status, address, address_location, installer_id, dispatcher_id, assigned_at,
			scheduled_date, scheduled_time_slot, labor_fee_cents, notes, reject_count,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21
		)`

	_, err = tx.Exec(ctx, query,
		task.ID, task.TenantID, task.TaskNo, task.OrderID, task.CustomerID, task.AfterSalesID,
		task.SourceType, task.Category, task.Status, task.Address, task.AddressLocation,
		task.InstallerID, task.DispatcherID, task.AssignedAt, task.ScheduledDate,
		task.ScheduledTimeSlot, task.LaborFeeCents, task.Notes, task.RejectCount,
		task.CreatedAt, task.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateTaskNo
		}
		return fmt.Errorf("failed to create install task: %w", err)
	}

	for i := range items {
		item := &items[i]
		_, err = tx.Exec(ctx, `
			INSERT INTO install_items (
				id, tenant_id, task_id, order_item_id, product_name, room_name, quantity,
				actual_installed_quantity, is_installed, issue_category, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
			item.ID, item.TenantID, item.TaskID, item.OrderItemID, item.ProductName, item.RoomName,
			item.Quantity, item.ActualInstalledQuantity, item.IsInstalled, item.IssueCategory,
			item.CreatedAt, item.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to create install item: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit install task: %w", err)
	}

	return nil
}

// GetByID retrieves a task scoped to the tenant.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) (*InstallTask, error) {
	query := `SELECT ` + taskColumns + ` FROM install_tasks WHERE id = $1 AND tenant_id = $2`

	task, err := scanTask(r.pool.QueryRow(ctx, query, id, tenantID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound(taskNotFoundMsg)
		}
		return nil, fmt.Errorf("failed to get install task: %w", err)
	}

	return task, nil
}

// GetItems retrieves the install items for a task.
func (r *Repository) GetItems(ctx context.Context, taskID uuid.UUID, tenantID uuid.UUID) ([]InstallItem, error) {
	query := `SELECT id, tenant_id, task_id, order_item_id, product_name, room_name, quantity,
		actual_installed_quantity, is_installed, issue_category, created_at, updated_at
		FROM install_items WHERE task_id = $1 AND tenant_id = $2 ORDER BY created_at ASC`

	rows, err := r.pool.Query(ctx, query, taskID, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list install items: %w", err)
	}
	defer rows.Close()

	var items []InstallItem
	for rows.Next() {
		var item InstallItem
		if err := rows.Scan(
			&item.ID, &item.TenantID, &item.TaskID, &item.OrderItemID, &item.ProductName,
			&item.RoomName, &item.Quantity, &item.ActualInstalledQuantity, &item.IsInstalled,
			&item.IssueCategory, &item.CreatedAt, &item.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan install item: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate install items: %w", err)
	}

	return items, nil
}

// ListForInstallerOnDate retrieves an installer's tasks scheduled on the given
// calendar day, excluding the candidate task itself. Used by conflict checks.
func (r *Repository) ListForInstallerOnDate(ctx context.Context, tenantID, installerID uuid.UUID, day time.Time, excludeTaskID uuid.UUID) ([]InstallTask, error) {
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	dayEnd := dayStart.Add(24 * time.Hour)

	query := `SELECT ` + taskColumns + `
		FROM install_tasks
		WHERE tenant_id = $1 AND installer_id = $2
		AND scheduled_date >= $3 AND scheduled_date < $4
		AND id != $5
		AND status NOT IN ('CANCELLED')
		ORDER BY scheduled_date ASC`

	rows, err := r.pool.Query(ctx, query, tenantID, installerID, dayStart, dayEnd, excludeTaskID)
	if err != nil {
		return nil, fmt.Errorf("failed to list installer tasks for day: %w", err)
	}
	defer rows.Close()

	var items []InstallTask
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan install task: %w", err)
		}
		items = append(items, *task)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate install tasks: %w", err)
	}

	return items, nil
}

// ListParams contains parameters for listing install tasks.
type ListParams struct {
	TenantID    uuid.UUID
	Status      *string
	InstallerID *uuid.UUID
	OrderID     *uuid.UUID
	DateFrom    *time.Time
	DateTo      *time.Time
	Page        int
	PageSize    int
}

// ListResult contains the result of listing install tasks.
type ListResult struct {
	Items      []InstallTask
	Total      int
	Page       int
	PageSize   int
	TotalPages int
}

// List retrieves install tasks with optional filtering.
func (r *Repository) List(ctx context.Context, params ListParams) (*ListResult, error) {
	baseQuery := `FROM install_tasks WHERE tenant_id = $1`
	args := []interface{}{params.TenantID}
	argIndex := 2

	addFilter(&baseQuery, &args, &argIndex, params.Status != nil, " AND status = $%d", derefString(params.Status))
	addFilter(&baseQuery, &args, &argIndex, params.InstallerID != nil, " AND installer_id = $%d", derefUUID(params.InstallerID))
	addFilter(&baseQuery, &args, &argIndex, params.OrderID != nil, " AND order_id = $%d", derefUUID(params.OrderID))
	addFilter(&baseQuery, &args, &argIndex, params.DateFrom != nil, " AND scheduled_date >= $%d", derefTime(params.DateFrom))
	addFilter(&baseQuery, &args, &argIndex, params.DateTo != nil, " AND scheduled_date <= $%d", derefTime(params.DateTo))

	var total int
	countQuery := "SELECT COUNT(*) " + baseQuery
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count install tasks: %w", err)
	}

	totalPages := (total + params.PageSize - 1) / params.PageSize
	offset := (params.Page - 1) * params.PageSize

	selectQuery := fmt.Sprintf(`SELECT %s %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		taskColumns, baseQuery, argIndex, argIndex+1)
	args = append(args, params.PageSize, offset)

	rows, err := r.pool.Query(ctx, selectQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list install tasks: %w", err)
	}
	defer rows.Close()

	var items []InstallTask
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan install task: %w", err)
		}
		items = append(items, *task)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate install tasks: %w", err)
	}

	return &ListResult{
		Items:      items,
		Total:      total,
		Page:       params.Page,
		PageSize:   params.PageSize,
		TotalPages: totalPages,
	}, nil
}

// guardedUpdate runs a status-guarded UPDATE. Zero matched rows after the
// caller has already loaded the task means a concurrent writer won; surface
// that as a conflict rather than not-found.
func (r *Repository) guardedUpdate(ctx context.Context, query string, args ...interface{}) error {
	result, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update install task: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.Conflict(staleTaskMsg)
	}
	return nil
}

// DispatchUpdate carries the fields written when an installer is assigned.
type DispatchUpdate struct {
	TaskID            uuid.UUID
	TenantID          uuid.UUID
	FromStatuses      []string
	Status            string
	InstallerID       uuid.UUID
	DispatcherID      uuid.UUID
	AssignedAt        time.Time
	ScheduledDate     *time.Time
	ScheduledTimeSlot *string
	LogisticsReady    *bool
	LaborFeeCents     *int64
	FeeBreakdown      *transport.FeeBreakdown
	Notes             *string
}

// ApplyDispatch assigns an installer, guarded on the current status.
func (r *Repository) ApplyDispatch(ctx context.Context, upd DispatchUpdate) error {
	query := `UPDATE install_tasks SET
			status = $3, installer_id = $4, dispatcher_id = $5, assigned_at = $6,
			scheduled_date = $7, scheduled_time_slot = $8, logistics_ready = $9,
			labor_fee_cents = COALESCE($10, labor_fee_cents),
			fee_breakdown = COALESCE($11, fee_breakdown),
			notes = COALESCE($12, notes),
			updated_at = $13
		WHERE id = $1 AND tenant_id = $2 AND status = ANY($14)`

	return r.guardedUpdate(ctx, query,
		upd.TaskID, upd.TenantID, upd.Status, upd.InstallerID, upd.DispatcherID, upd.AssignedAt,
		upd.ScheduledDate, upd.ScheduledTimeSlot, upd.LogisticsReady, upd.LaborFeeCents,
		upd.FeeBreakdown, upd.Notes, time.Now(), upd.FromStatuses,
	)
}

// CheckInUpdate carries the fields written on check-in.
type CheckInUpdate struct {
	TaskID     uuid.UUID
	TenantID   uuid.UUID
	FromStatus string
	Status     string
	CheckInAt  time.Time
	Location   *transport.Location
}

// ApplyCheckIn records on-site arrival, guarded on the current status.
func (r *Repository) ApplyCheckIn(ctx context.Context, upd CheckInUpdate) error {
	query := `UPDATE install_tasks SET
			status = $3, check_in_at = $4, check_in_location = $5, updated_at = $6
		WHERE id = $1 AND tenant_id = $2 AND status = $7`

	return r.guardedUpdate(ctx, query,
		upd.TaskID, upd.TenantID, upd.Status, upd.CheckInAt, upd.Location, time.Now(), upd.FromStatus,
	)
}

// CheckOutUpdate carries the fields written on check-out.
type CheckOutUpdate struct {
	TaskID               uuid.UUID
	TenantID             uuid.UUID
	FromStatus           string
	Status               string
	CheckOutAt           time.Time
	Location             *transport.Location
	CustomerSignatureURL *string
	SignedAt             *time.Time
}

// ApplyCheckOut records on-site completion, guarded on the current status.
func (r *Repository) ApplyCheckOut(ctx context.Context, upd CheckOutUpdate) error {
	query := `UPDATE install_tasks SET
			status = $3, check_out_at = $4, check_out_location = $5,
			customer_signature_url = COALESCE($6, customer_signature_url),
			signed_at = COALESCE($7, signed_at),
			updated_at = $8
		WHERE id = $1 AND tenant_id = $2 AND status = $9`

	return r.guardedUpdate(ctx, query,
		upd.TaskID, upd.TenantID, upd.Status, upd.CheckOutAt, upd.Location,
		upd.CustomerSignatureURL, upd.SignedAt, time.Now(), upd.FromStatus,
	)
}

// ConfirmUpdate carries the fields written on back-office confirmation.
type ConfirmUpdate struct {
	TaskID              uuid.UUID
	TenantID            uuid.UUID
	FromStatus          string
	Status              string
	ActualLaborFeeCents int64
	AdjustmentReason    *string
	Rating              *int
	RatingComment       *string
	ConfirmedAt         time.Time
	ConfirmedBy         uuid.UUID
}

// ApplyConfirm completes a task, guarded on the current status.
func (r *Repository) ApplyConfirm(ctx context.Context, upd ConfirmUpdate) error {
	query := `UPDATE install_tasks SET
			status = $3, actual_labor_fee_cents = $4, adjustment_reason = $5,
			rating = $6, rating_comment = $7, confirmed_at = $8, confirmed_by = $9,
			completed_at = $8, updated_at = $10
		WHERE id = $1 AND tenant_id = $2 AND status = $11`

	return r.guardedUpdate(ctx, query,
		upd.TaskID, upd.TenantID, upd.Status, upd.ActualLaborFeeCents, upd.AdjustmentReason,
		upd.Rating, upd.RatingComment, upd.ConfirmedAt, upd.ConfirmedBy, time.Now(), upd.FromStatus,
	)
}

// ApplyReject sends a task back to on-site status and bumps the reject
// counter server-side so concurrent rejects cannot lose increments.
// Returns the new reject count.
func (r *Repository) ApplyReject(ctx context.Context, taskID, tenantID uuid.UUID, fromStatuses []string, toStatus, reason string) (int, error) {
	query := `UPDATE install_tasks SET
			status = $3, reject_reason = $4, reject_count = reject_count + 1,
			check_out_at = NULL, check_out_location = NULL, updated_at = $5
		WHERE id = $1 AND tenant_id = $2 AND status = ANY($6)
		RETURNING reject_count`

	var count int
	err := r.pool.QueryRow(ctx, query, taskID, tenantID, toStatus, reason, time.Now(), fromStatuses).Scan(&count)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, apperr.Conflict(staleTaskMsg)
		}
		return 0, fmt.Errorf("failed to reject install task: %w", err)
	}

	return count, nil
}

// ApplyCancel cancels a task, guarded on the set of cancellable statuses.
// The installer assignment is cleared: installer_id is only ever set on
// tasks in an assigned status, and CANCELLED is not one.
func (r *Repository) ApplyCancel(ctx context.Context, taskID, tenantID uuid.UUID, fromStatuses []string, reason *string) error {
	query := `UPDATE install_tasks SET
			status = 'CANCELLED', installer_id = NULL,
			notes = COALESCE($3, notes), updated_at = $4
		WHERE id = $1 AND tenant_id = $2 AND status = ANY($5)`

	return r.guardedUpdate(ctx, query, taskID, tenantID, reason, time.Now(), fromStatuses)
}

// SaveChecklist replaces the checklist document. Not status-guarded: the
// checklist may be edited throughout the on-site phase.
func (r *Repository) SaveChecklist(ctx context.Context, taskID, tenantID uuid.UUID, checklist *transport.ChecklistStatus) error {
	query := `UPDATE install_tasks SET checklist = $3, updated_at = $4
		WHERE id = $1 AND tenant_id = $2`

	result, err := r.pool.Exec(ctx, query, taskID, tenantID, checklist, time.Now())
	if err != nil {
		return fmt.Errorf("failed to save checklist: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.NotFound(taskNotFoundMsg)
	}

	return nil
}

// SetLogisticsReady caches the latest logistics gate outcome on the task.
func (r *Repository) SetLogisticsReady(ctx context.Context, taskID, tenantID uuid.UUID, ready bool) error {
	query := `UPDATE install_tasks SET logistics_ready = $3, updated_at = $4
		WHERE id = $1 AND tenant_id = $2`

	result, err := r.pool.Exec(ctx, query, taskID, tenantID, ready, time.Now())
	if err != nil {
		return fmt.Errorf("failed to set logistics flag: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.NotFound(taskNotFoundMsg)
	}

	return nil
}

func addFilter(baseQuery *string, args *[]interface{}, argIndex *int, apply bool, clause string, value interface{}) {
	if !apply {
		return
	}
	*baseQuery += fmt.Sprintf(clause, *argIndex)
	*args = append(*args, value)
	*argIndex++
}

func derefUUID(value *uuid.UUID) uuid.UUID {
	if value == nil {
		return uuid.UUID{}
	}
	return *value
}

func derefString(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func derefTime(value *time.Time) time.Time {
	if value == nil {
		return time.Time{}
	}
	return *value
}
