// Package orders provides the sales order read module.
package orders

import (
	apphttp "fieldops_backend/internal/http"
	"fieldops_backend/internal/orders/handler"
	"fieldops_backend/internal/orders/repository"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module represents the orders domain module.
type Module struct {
	handler    *handler.Handler
	repository *repository.Repository
}

// NewModule creates a new orders module.
func NewModule(pool *pgxpool.Pool) *Module {
	repo := repository.New(pool)
	return &Module{
		handler:    handler.New(repo),
		repository: repo,
	}
}

// Repository exposes the order read model for adapter wiring.
func (m *Module) Repository() *repository.Repository {
	return m.repository
}

// Name returns the module name for logging.
func (m *Module) Name() string {
	return "orders"
}

// RegisterRoutes registers the module's routes under /api/orders.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	orders := ctx.Protected.Group("/orders")
	m.handler.RegisterRoutes(orders)
}

var _ apphttp.Module = (*Module)(nil)
