// Package handler exposes read-only order lookups used by dispatchers.
package handler

import (
	"net/http"

	"fieldops_backend/internal/orders/repository"
	"fieldops_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Handler handles HTTP requests for orders.
type Handler struct {
	repo *repository.Repository
}

// New creates a new orders handler.
func New(repo *repository.Repository) *Handler {
	return &Handler{repo: repo}
}

// RegisterRoutes registers the order routes.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.GET("/:id", h.GetByID)
}

func tenantID(c *gin.Context) (uuid.UUID, bool) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return uuid.UUID{}, false
	}
	id := identity.TenantID()
	if id == nil {
		httpkit.Error(c, http.StatusBadRequest, "tenant ID is required", nil)
		return uuid.UUID{}, false
	}
	return *id, true
}

// List handles GET /api/orders
func (h *Handler) List(c *gin.Context) {
	tenant, ok := tenantID(c)
	if !ok {
		return
	}

	var status *string
	if value := c.Query("status"); value != "" {
		status = &value
	}
	page, pageSize := httpkit.Pagination(c)

	items, total, err := h.repo.List(c.Request.Context(), repository.ListParams{
		TenantID: tenant,
		Status:   status,
		Page:     page,
		PageSize: pageSize,
	})
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, gin.H{"items": items, "total": total, "page": page, "pageSize": pageSize})
}

// GetByID handles GET /api/orders/:id
func (h *Handler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid id", nil)
		return
	}
	tenant, ok := tenantID(c)
	if !ok {
		return
	}

	order, err := h.repo.GetByID(c.Request.Context(), id, tenant)
	if httpkit.HandleError(c, err) {
		return
	}

	items, err := h.repo.ListItems(c.Request.Context(), id, tenant)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, gin.H{"order": order, "items": items})
}
