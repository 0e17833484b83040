// Package auth provides the authentication domain module.
package auth

import (
	"fieldops_backend/internal/auth/handler"
	"fieldops_backend/internal/auth/repository"
	"fieldops_backend/internal/auth/service"
	apphttp "fieldops_backend/internal/http"
	"fieldops_backend/platform/config"
	"fieldops_backend/platform/logger"
	"fieldops_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module represents the auth domain module.
type Module struct {
	handler    *handler.Handler
	repository *repository.Repository
	service    *service.Service
}

// NewModule creates a new auth module with all dependencies wired.
func NewModule(pool *pgxpool.Pool, cfg config.AuthServiceConfig, log *logger.Logger, val *validator.Validator) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, cfg, log)
	h := handler.New(svc, val)

	return &Module{
		handler:    h,
		repository: repo,
		service:    svc,
	}
}

// Repository exposes the user store for adapter wiring.
func (m *Module) Repository() *repository.Repository {
	return m.repository
}

// Name returns the module name for logging.
func (m *Module) Name() string {
	return "auth"
}

// RegisterRoutes registers the module's routes under /api/v1/auth.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	authGroup := ctx.V1.Group("/auth")
	m.handler.RegisterRoutes(authGroup)
}

var _ apphttp.Module = (*Module)(nil)
