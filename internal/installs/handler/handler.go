// Package handler exposes the installation dispatch module over HTTP.
package handler

import (
	"net/http"

	"fieldops_backend/internal/installs/service"
	"fieldops_backend/internal/installs/transport"
	"fieldops_backend/platform/httpkit"
	"fieldops_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
	msgInvalidID        = "invalid id"
)

// Handler handles HTTP requests for installation tasks.
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

// New creates a new installs handler.
func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// RegisterRoutes registers the install task routes.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.POST("", h.Create)
	rg.GET("/installers", h.ListInstallers)
	rg.GET("/:id", h.GetByID)
	rg.POST("/:id/dispatch", h.Dispatch)
	rg.POST("/:id/check-in", h.CheckIn)
	rg.POST("/:id/check-out", h.CheckOut)
	rg.POST("/:id/confirm", h.Confirm)
	rg.POST("/:id/reject", h.Reject)
	rg.POST("/:id/cancel", h.Cancel)
	rg.PUT("/:id/checklist", h.UpdateChecklist)
	rg.GET("/:id/logistics", h.Logistics)
	rg.PATCH("/items/:itemId", h.UpdateItemStatus)
}

// session builds the caller session from the authenticated identity.
// Returns false and writes the response when the tenant is missing.
func session(c *gin.Context) (transport.Session, bool) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return transport.Session{}, false
	}
	tenantID := identity.TenantID()
	if tenantID == nil {
		httpkit.Error(c, http.StatusBadRequest, "tenant ID is required", nil)
		return transport.Session{}, false
	}
	return transport.Session{
		UserID:   identity.UserID(),
		TenantID: *tenantID,
		Roles:    identity.Roles(),
	}, true
}

func pathID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return uuid.UUID{}, false
	}
	return id, true
}

// List handles GET /api/installs
func (h *Handler) List(c *gin.Context) {
	var req transport.ListTasksRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, err.Error())
		return
	}

	sess, ok := session(c)
	if !ok {
		return
	}

	result, err := h.svc.List(c.Request.Context(), sess, req)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, result)
}

// Create handles POST /api/installs
func (h *Handler) Create(c *gin.Context) {
	var req transport.CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	sess, ok := session(c)
	if !ok {
		return
	}

	result, err := h.svc.Create(c.Request.Context(), sess, req)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.JSON(c, http.StatusCreated, result)
}

// GetByID handles GET /api/installs/:id
func (h *Handler) GetByID(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	sess, ok := session(c)
	if !ok {
		return
	}

	result, err := h.svc.GetByID(c.Request.Context(), sess, id)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, result)
}

// Dispatch handles POST /api/installs/:id/dispatch
func (h *Handler) Dispatch(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req transport.DispatchTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	sess, ok := session(c)
	if !ok {
		return
	}

	result, err := h.svc.Dispatch(c.Request.Context(), sess, id, req)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, result)
}

// CheckIn handles POST /api/installs/:id/check-in
func (h *Handler) CheckIn(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req transport.CheckInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	sess, ok := session(c)
	if !ok {
		return
	}

	result, err := h.svc.CheckIn(c.Request.Context(), sess, id, req)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, result)
}

// CheckOut handles POST /api/installs/:id/check-out
func (h *Handler) CheckOut(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req transport.CheckOutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	sess, ok := session(c)
	if !ok {
		return
	}

	if err := h.svc.CheckOut(c.Request.Context(), sess, id, req); httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, gin.H{"status": "checked_out"})
}

// Confirm handles POST /api/installs/:id/confirm
func (h *Handler) Confirm(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req transport.ConfirmTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	sess, ok := session(c)
	if !ok {
		return
	}

	if err := h.svc.Confirm(c.Request.Context(), sess, id, req); httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, gin.H{"status": "completed"})
}

// Reject handles POST /api/installs/:id/reject
func (h *Handler) Reject(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req transport.RejectTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	sess, ok := session(c)
	if !ok {
		return
	}

	if err := h.svc.Reject(c.Request.Context(), sess, id, req); httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, gin.H{"status": "rejected"})
}

// Cancel handles POST /api/installs/:id/cancel
func (h *Handler) Cancel(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req transport.CancelTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	sess, ok := session(c)
	if !ok {
		return
	}

	if err := h.svc.Cancel(c.Request.Context(), sess, id, req); httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, gin.H{"status": "cancelled"})
}

// UpdateChecklist handles PUT /api/installs/:id/checklist
func (h *Handler) UpdateChecklist(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req transport.UpdateChecklistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	sess, ok := session(c)
	if !ok {
		return
	}

	result, err := h.svc.UpdateChecklist(c.Request.Context(), sess, id, req)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, result)
}

// Logistics handles GET /api/installs/:id/logistics
func (h *Handler) Logistics(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	sess, ok := session(c)
	if !ok {
		return
	}

	task, err := h.svc.GetByID(c.Request.Context(), sess, id)
	if httpkit.HandleError(c, err) {
		return
	}

	result, err := h.svc.CheckLogistics(c.Request.Context(), sess.TenantID, task.OrderID)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, result)
}

// UpdateItemStatus handles PATCH /api/installs/items/:itemId
func (h *Handler) UpdateItemStatus(c *gin.Context) {
	itemID, ok := pathID(c, "itemId")
	if !ok {
		return
	}

	var req transport.UpdateItemStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	sess, ok := session(c)
	if !ok {
		return
	}

	if err := h.svc.UpdateItemStatus(c.Request.Context(), sess, itemID, req); httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, gin.H{"status": "updated"})
}

// ListInstallers handles GET /api/installs/installers
func (h *Handler) ListInstallers(c *gin.Context) {
	sess, ok := session(c)
	if !ok {
		return
	}

	result, err := h.svc.ListInstallers(c.Request.Context(), sess)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, result)
}
