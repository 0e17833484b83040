// Package handler exposes purchase order lookups and status updates.
package handler

import (
	"net/http"

	"fieldops_backend/internal/procurement/repository"
	"fieldops_backend/platform/httpkit"
	"fieldops_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Handler handles HTTP requests for purchase orders.
type Handler struct {
	repo *repository.Repository
	val  *validator.Validator
}

// New creates a new procurement handler.
func New(repo *repository.Repository, val *validator.Validator) *Handler {
	return &Handler{repo: repo, val: val}
}

// RegisterRoutes registers the procurement routes.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/orders/:orderId", h.ListByOrder)
	rg.PATCH("/:id/status", h.UpdateStatus)
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

// ListByOrder handles GET /api/procurement/orders/:orderId
func (h *Handler) ListByOrder(c *gin.Context) {
	orderID, err := uuid.Parse(c.Param("orderId"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid order id", nil)
		return
	}
	tenant, ok := tenantID(c)
	if !ok {
		return
	}

	items, err := h.repo.ListByOrder(c.Request.Context(), orderID, tenant)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, gin.H{"items": items})
}

type updateStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=DRAFT PENDING IN_TRANSIT PARTIAL_RECEIVED RECEIVED ARRIVED COMPLETED CANCELLED"`
}

// UpdateStatus handles PATCH /api/procurement/:id/status
func (h *Handler) UpdateStatus(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid id", nil)
		return
	}

	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	tenant, ok := tenantID(c)
	if !ok {
		return
	}

	if err := h.repo.UpdateStatus(c.Request.Context(), id, tenant, req.Status); httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, gin.H{"status": req.Status})
}
