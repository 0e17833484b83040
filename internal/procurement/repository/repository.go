package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fieldops_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Purchase order statuses. RECEIVED, ARRIVED, COMPLETED and
// PARTIAL_RECEIVED count as arrived for the installation logistics gate.
const (
	StatusDraft           = "DRAFT"
	StatusPending         = "PENDING"
	StatusInTransit       = "IN_TRANSIT"
	StatusPartialReceived = "PARTIAL_RECEIVED"
	StatusReceived        = "RECEIVED"
	StatusArrived         = "ARRIVED"
	StatusCompleted       = "COMPLETED"
	StatusCancelled       = "CANCELLED"
)

// PurchaseOrder represents the purchase order database model.
type PurchaseOrder struct {
	ID           uuid.UUID  `db:"id"`
	TenantID     uuid.UUID  `db:"tenant_id"`
	OrderID      uuid.UUID  `db:"order_id"`
	PONo         string     `db:"po_no"`
	SupplierName string     `db:"supplier_name"`
	Status       string     `db:"status"`
	ExpectedAt   *time.Time `db:"expected_at"`
	ReceivedAt   *time.Time `db:"received_at"`
	CreatedAt    time.Time  `db:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at"`
}

const poColumns = `id, tenant_id, order_id, po_no, supplier_name, status, expected_at, received_at, created_at, updated_at`

// Repository provides database operations for purchase orders.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a new procurement repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanPO(row pgx.Row) (*PurchaseOrder, error) {
	var po PurchaseOrder
	err := row.Scan(
		&po.ID, &po.TenantID, &po.OrderID, &po.PONo, &po.SupplierName, &po.Status,
		&po.ExpectedAt, &po.ReceivedAt, &po.CreatedAt, &po.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &po, nil
}

// ListByOrder retrieves every purchase order linked to a sales order.
func (r *Repository) ListByOrder(ctx context.Context, orderID uuid.UUID, tenantID uuid.UUID) ([]PurchaseOrder, error) {
	query := `SELECT ` + poColumns + ` FROM purchase_orders
		WHERE order_id = $1 AND tenant_id = $2 ORDER BY created_at ASC`

	rows, err := r.pool.Query(ctx, query, orderID, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list purchase orders: %w", err)
	}
	defer rows.Close()

	var items []PurchaseOrder
	for rows.Next() {
		po, err := scanPO(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan purchase order: %w", err)
		}
		items = append(items, *po)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate purchase orders: %w", err)
	}

	return items, nil
}

// GetByID retrieves a purchase order scoped to the tenant.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) (*PurchaseOrder, error) {
	query := `SELECT ` + poColumns + ` FROM purchase_orders WHERE id = $1 AND tenant_id = $2`

	po, err := scanPO(r.pool.QueryRow(ctx, query, id, tenantID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("purchase order not found")
		}
		return nil, fmt.Errorf("failed to get purchase order: %w", err)
	}

	return po, nil
}

// UpdateStatus moves a purchase order to a new status and stamps the
// received time when it arrives.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, tenantID uuid.UUID, status string) error {
	query := `UPDATE purchase_orders SET status = $3,
			received_at = CASE WHEN $3 IN ('RECEIVED', 'ARRIVED') THEN $4 ELSE received_at END,
			updated_at = $4
		WHERE id = $1 AND tenant_id = $2`

	result, err := r.pool.Exec(ctx, query, id, tenantID, status, time.Now())
	if err != nil {
		return fmt.Errorf("failed to update purchase order status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.NotFound("purchase order not found")
	}

	return nil
}
