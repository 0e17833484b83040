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

// Order represents the sales order database model.
type Order struct {
	ID              uuid.UUID  `db:"id"`
	TenantID        uuid.UUID  `db:"tenant_id"`
	OrderNo         string     `db:"order_no"`
	CustomerID      uuid.UUID  `db:"customer_id"`
	SalesID         *uuid.UUID `db:"sales_id"`
	Status          string     `db:"status"`
	DeliveryAddress *string    `db:"delivery_address"`
	TotalCents      int64      `db:"total_cents"`
	CreatedAt       time.Time  `db:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at"`
}

// OrderItem represents one product line of an order.
type OrderItem struct {
	ID          uuid.UUID `db:"id"`
	TenantID    uuid.UUID `db:"tenant_id"`
	OrderID     uuid.UUID `db:"order_id"`
	ProductName string    `db:"product_name"`
	RoomName    *string   `db:"room_name"`
	Quantity    int       `db:"quantity"`
	PriceCents  int64     `db:"price_cents"`
	CreatedAt   time.Time `db:"created_at"`
}

// Customer is the contact sheet for an order's customer.
type Customer struct {
	ID      uuid.UUID `db:"id"`
	Name    string    `db:"name"`
	Phone   *string   `db:"phone"`
	Address *string   `db:"address"`
}

const orderNotFoundMsg = "order not found"

// Repository provides read access to orders for other modules.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a new orders repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetByID retrieves an order scoped to the tenant.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) (*Order, error) {
	var o Order
	query := `SELECT id, tenant_id, order_no, customer_id, sales_id, status, delivery_address,
		total_cents, created_at, updated_at
		FROM orders WHERE id = $1 AND tenant_id = $2`

	err := r.pool.QueryRow(ctx, query, id, tenantID).Scan(
		&o.ID, &o.TenantID, &o.OrderNo, &o.CustomerID, &o.SalesID, &o.Status,
		&o.DeliveryAddress, &o.TotalCents, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound(orderNotFoundMsg)
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	return &o, nil
}

// ListItems retrieves the product lines of an order.
func (r *Repository) ListItems(ctx context.Context, orderID uuid.UUID, tenantID uuid.UUID) ([]OrderItem, error) {
	query := `SELECT id, tenant_id, order_id, product_name, room_name, quantity, price_cents, created_at
		FROM order_items WHERE order_id = $1 AND tenant_id = $2 ORDER BY created_at ASC`

	rows, err := r.pool.Query(ctx, query, orderID, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list order items: %w", err)
	}
	defer rows.Close()

	var items []OrderItem
	for rows.Next() {
		var item OrderItem
		if err := rows.Scan(
			&item.ID, &item.TenantID, &item.OrderID, &item.ProductName, &item.RoomName,
			&item.Quantity, &item.PriceCents, &item.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate order items: %w", err)
	}

	return items, nil
}

// GetCustomer retrieves the customer contact sheet for an order.
func (r *Repository) GetCustomer(ctx context.Context, customerID uuid.UUID, tenantID uuid.UUID) (*Customer, error) {
	var c Customer
	query := `SELECT id, name, phone, address FROM customers WHERE id = $1 AND tenant_id = $2`

	err := r.pool.QueryRow(ctx, query, customerID, tenantID).Scan(&c.ID, &c.Name, &c.Phone, &c.Address)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("customer not found")
		}
		return nil, fmt.Errorf("failed to get customer: %w", err)
	}

	return &c, nil
}

// ListParams contains parameters for listing orders.
type ListParams struct {
	TenantID uuid.UUID
	Status   *string
	Page     int
	PageSize int
}

// List retrieves orders with optional filtering.
func (r *Repository) List(ctx context.Context, params ListParams) ([]Order, int, error) {
	baseQuery := `FROM orders WHERE tenant_id = $1`
	args := []interface{}{params.TenantID}
	argIndex := 2

	if params.Status != nil {
		baseQuery += fmt.Sprintf(" AND status = $%d", argIndex)
		args = append(args, *params.Status)
		argIndex++
	}

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) "+baseQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count orders: %w", err)
	}

	offset := (params.Page - 1) * params.PageSize
	selectQuery := fmt.Sprintf(`SELECT id, tenant_id, order_no, customer_id, sales_id, status,
		delivery_address, total_cents, created_at, updated_at %s
		ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, baseQuery, argIndex, argIndex+1)
	args = append(args, params.PageSize, offset)

	rows, err := r.pool.Query(ctx, selectQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	var items []Order
	for rows.Next() {
		var o Order
		if err := rows.Scan(
			&o.ID, &o.TenantID, &o.OrderNo, &o.CustomerID, &o.SalesID, &o.Status,
			&o.DeliveryAddress, &o.TotalCents, &o.CreatedAt, &o.UpdatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("failed to scan order: %w", err)
		}
		items = append(items, o)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate orders: %w", err)
	}

	return items, total, nil
}
