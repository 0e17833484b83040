// Package installs provides the installation dispatch domain module.
package installs

import (
	"fieldops_backend/internal/events"
	apphttp "fieldops_backend/internal/http"
	"fieldops_backend/internal/installs/handler"
	"fieldops_backend/internal/installs/repository"
	"fieldops_backend/internal/installs/service"
	"fieldops_backend/platform/logger"
	"fieldops_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module represents the installs domain module.
type Module struct {
	handler *handler.Handler
	Service *service.Service
}

// NewModule creates a new installs module with all dependencies wired.
func NewModule(
	pool *pgxpool.Pool,
	val *validator.Validator,
	orders service.OrderReader,
	procurement service.ProcurementReader,
	authz service.Authorizer,
	installers service.InstallerDirectory,
	bus events.Bus,
	log *logger.Logger,
) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, orders, procurement, authz, installers, bus, log)
	h := handler.New(svc, val)

	return &Module{
		handler: h,
		Service: svc,
	}
}

// Name returns the module name for logging.
func (m *Module) Name() string {
	return "installs"
}

// RegisterRoutes registers the module's routes under /api/installs.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	installs := ctx.Protected.Group("/installs")
	m.handler.RegisterRoutes(installs)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
