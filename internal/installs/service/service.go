// Package service implements the installation dispatch engine: task
// creation, scheduling gates, and the on-site lifecycle.
package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"fieldops_backend/internal/events"
	"fieldops_backend/internal/installs/repository"
	"fieldops_backend/internal/installs/transport"
	"fieldops_backend/platform/apperr"
	"fieldops_backend/platform/logger"
	"fieldops_backend/platform/sanitize"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const taskNoPrefix = "INS"

// createRetries is how many times task creation retries on a task number
// collision before giving up.
const createRetries = 3

// TaskStore is the persistence surface the service needs.
type TaskStore interface {
	CreateWithItems(ctx context.Context, task *repository.InstallTask, items []repository.InstallItem) error
	GetByID(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) (*repository.InstallTask, error)
	GetItems(ctx context.Context, taskID uuid.UUID, tenantID uuid.UUID) ([]repository.InstallItem, error)
	List(ctx context.Context, params repository.ListParams) (*repository.ListResult, error)
	ListForInstallerOnDate(ctx context.Context, tenantID, installerID uuid.UUID, day time.Time, excludeTaskID uuid.UUID) ([]repository.InstallTask, error)
	ApplyDispatch(ctx context.Context, upd repository.DispatchUpdate) error
	ApplyCheckIn(ctx context.Context, upd repository.CheckInUpdate) error
	ApplyCheckOut(ctx context.Context, upd repository.CheckOutUpdate) error
	ApplyConfirm(ctx context.Context, upd repository.ConfirmUpdate) error
	ApplyReject(ctx context.Context, taskID, tenantID uuid.UUID, fromStatuses []string, toStatus, reason string) (int, error)
	ApplyCancel(ctx context.Context, taskID, tenantID uuid.UUID, fromStatuses []string, reason *string) error
	SaveChecklist(ctx context.Context, taskID, tenantID uuid.UUID, checklist *transport.ChecklistStatus) error
	SetLogisticsReady(ctx context.Context, taskID, tenantID uuid.UUID, ready bool) error
	UpdateItemStatus(ctx context.Context, upd repository.ItemStatusUpdate) (uuid.UUID, error)
}

// OrderInfo is the slice of an order the engine needs.
type OrderInfo struct {
	ID              uuid.UUID
	OrderNo         string
	CustomerID      uuid.UUID
	DeliveryAddress *string
}

// OrderLine is one product line of an order.
type OrderLine struct {
	ID          uuid.UUID
	ProductName string
	RoomName    *string
	Quantity    int
}

// OrderReader looks up orders in the order module.
type OrderReader interface {
	GetOrder(ctx context.Context, orderID, tenantID uuid.UUID) (*OrderInfo, error)
	ListOrderLines(ctx context.Context, orderID, tenantID uuid.UUID) ([]OrderLine, error)
}

// PurchaseOrderRef is the slice of a purchase order the logistics gate needs.
type PurchaseOrderRef struct {
	ID           uuid.UUID
	PONo         string
	SupplierName string
	Status       string
}

// ProcurementReader looks up purchase orders in the procurement module.
type ProcurementReader interface {
	ListByOrder(ctx context.Context, orderID, tenantID uuid.UUID) ([]PurchaseOrderRef, error)
}

// Authorizer decides which lifecycle operations a session may perform.
type Authorizer interface {
	CanDispatch(sess transport.Session) bool
	CanConfirm(sess transport.Session) bool
	CanCancel(sess transport.Session) bool
	// CanActOnSite reports whether the session may check in or out on
	// behalf of the assigned installer.
	CanActOnSite(sess transport.Session) bool
}

// InstallerInfo is a dispatchable installer.
type InstallerInfo struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Phone *string   `json:"phone,omitempty"`
}

// InstallerDirectory lists the installers of a tenant.
type InstallerDirectory interface {
	ListInstallers(ctx context.Context, tenantID uuid.UUID) ([]InstallerInfo, error)
}

// TaskCache is an optional read cache for single-task lookups. Entries
// are invalidated through the event bus on every task mutation.
type TaskCache interface {
	GetTask(ctx context.Context, tenantID, taskID uuid.UUID) (*transport.TaskResponse, bool)
	SetTask(ctx context.Context, tenantID uuid.UUID, task *transport.TaskResponse)
}

// Service orchestrates the installation task lifecycle.
type Service struct {
	store       TaskStore
	orders      OrderReader
	procurement ProcurementReader
	authz       Authorizer
	installers  InstallerDirectory
	bus         events.Bus
	log         *logger.Logger
	cache       TaskCache

	// now is swappable for tests.
	now func() time.Time
}

// SetTaskCache enables the read cache for single-task lookups.
func (s *Service) SetTaskCache(cache TaskCache) {
	s.cache = cache
}

// New creates a new installation dispatch service.
func New(store TaskStore, orders OrderReader, procurement ProcurementReader, authz Authorizer, installers InstallerDirectory, bus events.Bus, log *logger.Logger) *Service {
	return &Service{
		store:       store,
		orders:      orders,
		procurement: procurement,
		authz:       authz,
		installers:  installers,
		bus:         bus,
		log:         log,
		now:         time.Now,
	}
}

// Create builds a task from an order and snapshots the order lines as
// install items.
func (s *Service) Create(ctx context.Context, sess transport.Session, req transport.CreateTaskRequest) (*transport.CreateTaskResult, error) {
	order, err := s.orders.GetOrder(ctx, req.OrderID, sess.TenantID)
	if err != nil {
		return nil, err
	}
	if order.CustomerID != req.CustomerID {
		return nil, apperr.BadRequest("customer does not match order")
	}

	lines, err := s.orders.ListOrderLines(ctx, req.OrderID, sess.TenantID)
	if err != nil {
		return nil, err
	}

	now := s.now()

	sourceType := req.SourceType
	if sourceType == "" {
		sourceType = transport.SourceOrder
	}
	category := req.Category
	if category == "" {
		category = transport.CategoryOther
	}
	address := req.Address
	if address == nil {
		address = order.DeliveryAddress
	}

	task := &repository.InstallTask{
		ID:                uuid.New(),
		TenantID:          sess.TenantID,
		OrderID:           req.OrderID,
		CustomerID:        req.CustomerID,
		AfterSalesID:      req.AfterSalesID,
		SourceType:        string(sourceType),
		Category:          string(category),
		Status:            string(transport.StatusPendingDispatch),
		Address:           address,
		ScheduledDate:     req.ScheduledDate,
		ScheduledTimeSlot: req.ScheduledTimeSlot,
		LaborFeeCents:     req.LaborFeeCents,
		Notes:             sanitize.TextPtr(req.Notes),
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	// Creating with an installer pre-assigned skips straight to dispatching.
	if req.InstallerID != nil {
		task.Status = string(transport.StatusDispatching)
		task.InstallerID = req.InstallerID
		task.DispatcherID = &sess.UserID
		assignedAt := now
		task.AssignedAt = &assignedAt
	}

	items := make([]repository.InstallItem, 0, len(lines))
	for _, line := range lines {
		lineID := line.ID
		items = append(items, repository.InstallItem{
			ID:            uuid.New(),
			TenantID:      sess.TenantID,
			TaskID:        task.ID,
			OrderItemID:   &lineID,
			ProductName:   line.ProductName,
			RoomName:      line.RoomName,
			Quantity:      line.Quantity,
			IssueCategory: string(transport.IssueNone),
			CreatedAt:     now,
			UpdatedAt:     now,
		})
	}

	for attempt := 0; ; attempt++ {
		task.TaskNo = s.newTaskNo()
		err = s.store.CreateWithItems(ctx, task, items)
		if err == nil {
			break
		}
		if err == repository.ErrDuplicateTaskNo && attempt < createRetries-1 {
			continue
		}
		if err == repository.ErrDuplicateTaskNo {
			return nil, apperr.Conflict("could not allocate a unique task number, retry")
		}
		return nil, err
	}

	s.publish(ctx, events.InstallTaskCreated{
		TaskMutation: s.mutation(task, sess),
		OrderID:      task.OrderID,
		ItemCount:    len(items),
		Status:       task.Status,
	})

	return &transport.CreateTaskResult{ID: task.ID, TaskNo: task.TaskNo}, nil
}

// GetByID returns the full task view including its items.
func (s *Service) GetByID(ctx context.Context, sess transport.Session, taskID uuid.UUID) (*transport.TaskResponse, error) {
	if s.cache != nil {
		if cached, ok := s.cache.GetTask(ctx, sess.TenantID, taskID); ok {
			return cached, nil
		}
	}
	return s.loadTask(ctx, sess.TenantID, taskID)
}

// loadTask reads the task and its items from the store, bypassing the
// cache. Mutating operations use this so they never return a stale view;
// the fresh result overwrites any cached entry.
func (s *Service) loadTask(ctx context.Context, tenantID, taskID uuid.UUID) (*transport.TaskResponse, error) {
	var (
		task  *repository.InstallTask
		items []repository.InstallItem
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		task, err = s.store.GetByID(gctx, taskID, tenantID)
		return err
	})
	g.Go(func() error {
		var err error
		items, err = s.store.GetItems(gctx, taskID, tenantID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	resp := task.ToResponse(items)
	if s.cache != nil {
		s.cache.SetTask(ctx, tenantID, &resp)
	}
	return &resp, nil
}

// List returns a filtered, paginated task list without items.
func (s *Service) List(ctx context.Context, sess transport.Session, req transport.ListTasksRequest) (*transport.ListTasksResult, error) {
	page := req.Page
	if page < 1 {
		page = 1
	}
	pageSize := req.PageSize
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	var status *string
	if req.Status != nil {
		value := string(*req.Status)
		status = &value
	}

	result, err := s.store.List(ctx, repository.ListParams{
		TenantID:    sess.TenantID,
		Status:      status,
		InstallerID: req.InstallerID,
		OrderID:     req.OrderID,
		DateFrom:    req.DateFrom,
		DateTo:      req.DateTo,
		Page:        page,
		PageSize:    pageSize,
	})
	if err != nil {
		return nil, err
	}

	items := make([]transport.TaskResponse, 0, len(result.Items))
	for i := range result.Items {
		items = append(items, result.Items[i].ToResponse(nil))
	}

	return &transport.ListTasksResult{
		Items:      items,
		Total:      result.Total,
		Page:       result.Page,
		PageSize:   result.PageSize,
		TotalPages: result.TotalPages,
	}, nil
}

// ListInstallers returns the tenant's dispatchable installers.
func (s *Service) ListInstallers(ctx context.Context, sess transport.Session) ([]InstallerInfo, error) {
	return s.installers.ListInstallers(ctx, sess.TenantID)
}

// newTaskNo generates a task number like INS-20250115-A3F2C1.
func (s *Service) newTaskNo() string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:6]
	return taskNoPrefix + "-" + s.now().Format("20060102") + "-" + suffix
}

func (s *Service) mutation(task *repository.InstallTask, sess transport.Session) events.TaskMutation {
	return events.TaskMutation{
		BaseEvent: events.NewBaseEvent(),
		TaskID:    task.ID,
		TenantID:  task.TenantID,
		TaskNo:    task.TaskNo,
		ActorID:   sess.UserID,
	}
}

// publish emits a domain event. Handlers run asynchronously and never
// fail the operation that triggered them.
func (s *Service) publish(ctx context.Context, event events.Event) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(ctx, event)
}

// logForcedOverride records a dispatcher pushing past a soft gate.
func (s *Service) logForcedOverride(ctx context.Context, task *repository.InstallTask, reason string) {
	if s.log == nil {
		return
	}
	s.log.WithContext(ctx).Warn("dispatch_forced",
		slog.String("task_no", task.TaskNo),
		slog.String("reason", reason),
	)
}

// requireOnSiteActor allows the assigned installer or an administrator to
// perform on-site mutations.
func (s *Service) requireOnSiteActor(sess transport.Session, installerID *uuid.UUID) error {
	if installerID != nil && *installerID == sess.UserID {
		return nil
	}
	if s.authz.CanActOnSite(sess) {
		return nil
	}
	return apperr.Forbidden("only the assigned installer may perform this action")
}

func isTerminal(status string) bool {
	return status == string(transport.StatusCompleted) || status == string(transport.StatusCancelled)
}
