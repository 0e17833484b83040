// Package procurement provides the purchase order module feeding the
// installation logistics gate.
package procurement

import (
	apphttp "fieldops_backend/internal/http"
	"fieldops_backend/internal/procurement/handler"
	"fieldops_backend/internal/procurement/repository"
	"fieldops_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module represents the procurement domain module.
type Module struct {
	handler    *handler.Handler
	repository *repository.Repository
}

// NewModule creates a new procurement module.
func NewModule(pool *pgxpool.Pool, val *validator.Validator) *Module {
	repo := repository.New(pool)
	return &Module{
		handler:    handler.New(repo, val),
		repository: repo,
	}
}

// Repository exposes the purchase order read model for adapter wiring.
func (m *Module) Repository() *repository.Repository {
	return m.repository
}

// Name returns the module name for logging.
func (m *Module) Name() string {
	return "procurement"
}

// RegisterRoutes registers the module's routes under /api/procurement.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	procurement := ctx.Protected.Group("/procurement")
	m.handler.RegisterRoutes(procurement)
}

var _ apphttp.Module = (*Module)(nil)
