package service

import (
	"context"
	"testing"
	"time"

	"fieldops_backend/internal/installs/repository"
	"fieldops_backend/internal/installs/transport"
	"fieldops_backend/platform/apperr"
	"fieldops_backend/platform/geo"

	"github.com/google/uuid"
)

// fakeStore is an in-memory TaskStore.
type fakeStore struct {
	tasks   map[uuid.UUID]*repository.InstallTask
	items   map[uuid.UUID][]repository.InstallItem
	sameDay []repository.InstallTask

	created *repository.InstallTask
	// duplicateFirst makes the first CreateWithItems call collide.
	duplicateFirst bool
	createCalls    int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		tasks: make(map[uuid.UUID]*repository.InstallTask),
		items: make(map[uuid.UUID][]repository.InstallItem),
	}
}

func (f *fakeStore) CreateWithItems(_ context.Context, task *repository.InstallTask, items []repository.InstallItem) error {
	f.createCalls++
	if f.duplicateFirst && f.createCalls == 1 {
		return repository.ErrDuplicateTaskNo
	}
	copied := *task
	f.tasks[task.ID] = &copied
	f.items[task.ID] = items
	f.created = &copied
	return nil
}

func (f *fakeStore) GetByID(_ context.Context, id uuid.UUID, tenantID uuid.UUID) (*repository.InstallTask, error) {
	task, ok := f.tasks[id]
	if !ok || task.TenantID != tenantID {
		return nil, apperr.NotFound("installation task not found")
	}
	copied := *task
	return &copied, nil
}

func (f *fakeStore) GetItems(_ context.Context, taskID uuid.UUID, _ uuid.UUID) ([]repository.InstallItem, error) {
	return f.items[taskID], nil
}

func (f *fakeStore) List(_ context.Context, params repository.ListParams) (*repository.ListResult, error) {
	var items []repository.InstallTask
	for _, task := range f.tasks {
		if task.TenantID == params.TenantID {
			items = append(items, *task)
		}
	}
	return &repository.ListResult{Items: items, Total: len(items), Page: params.Page, PageSize: params.PageSize}, nil
}

func (f *fakeStore) ListForInstallerOnDate(_ context.Context, _, _ uuid.UUID, _ time.Time, _ uuid.UUID) ([]repository.InstallTask, error) {
	return f.sameDay, nil
}

func (f *fakeStore) ApplyDispatch(_ context.Context, upd repository.DispatchUpdate) error {
	task := f.tasks[upd.TaskID]
	if task == nil || !statusIn(task.Status, upd.FromStatuses) {
		return apperr.Conflict("task was modified concurrently, reload and retry")
	}
	task.Status = upd.Status
	task.InstallerID = &upd.InstallerID
	task.DispatcherID = &upd.DispatcherID
	task.AssignedAt = &upd.AssignedAt
	task.ScheduledDate = upd.ScheduledDate
	task.ScheduledTimeSlot = upd.ScheduledTimeSlot
	task.LogisticsReady = upd.LogisticsReady
	return nil
}

func (f *fakeStore) ApplyCheckIn(_ context.Context, upd repository.CheckInUpdate) error {
	task := f.tasks[upd.TaskID]
	if task == nil || task.Status != upd.FromStatus {
		return apperr.Conflict("task was modified concurrently, reload and retry")
	}
	task.Status = upd.Status
	task.CheckInAt = &upd.CheckInAt
	return nil
}

func (f *fakeStore) ApplyCheckOut(_ context.Context, upd repository.CheckOutUpdate) error {
	task := f.tasks[upd.TaskID]
	if task == nil || task.Status != upd.FromStatus {
		return apperr.Conflict("task was modified concurrently, reload and retry")
	}
	task.Status = upd.Status
	task.CheckOutAt = &upd.CheckOutAt
	task.CustomerSignatureURL = upd.CustomerSignatureURL
	task.SignedAt = upd.SignedAt
	return nil
}

func (f *fakeStore) ApplyConfirm(_ context.Context, upd repository.ConfirmUpdate) error {
	task := f.tasks[upd.TaskID]
	if task == nil || task.Status != upd.FromStatus {
		return apperr.Conflict("task was modified concurrently, reload and retry")
	}
	task.Status = upd.Status
	task.ActualLaborFeeCents = &upd.ActualLaborFeeCents
	task.ConfirmedAt = &upd.ConfirmedAt
	task.ConfirmedBy = &upd.ConfirmedBy
	return nil
}

func (f *fakeStore) ApplyReject(_ context.Context, taskID, _ uuid.UUID, fromStatuses []string, toStatus, reason string) (int, error) {
	task := f.tasks[taskID]
	if task == nil || !statusIn(task.Status, fromStatuses) {
		return 0, apperr.Conflict("task was modified concurrently, reload and retry")
	}
	task.Status = toStatus
	task.RejectReason = &reason
	task.RejectCount++
	return task.RejectCount, nil
}

func (f *fakeStore) ApplyCancel(_ context.Context, taskID, _ uuid.UUID, fromStatuses []string, _ *string) error {
	task := f.tasks[taskID]
	if task == nil || !statusIn(task.Status, fromStatuses) {
		return apperr.Conflict("task was modified concurrently, reload and retry")
	}
	task.Status = string(transport.StatusCancelled)
	task.InstallerID = nil
	return nil
}

func (f *fakeStore) SaveChecklist(_ context.Context, taskID, _ uuid.UUID, checklist *transport.ChecklistStatus) error {
	task := f.tasks[taskID]
	if task == nil {
		return apperr.NotFound("installation task not found")
	}
	task.Checklist = checklist
	return nil
}

func (f *fakeStore) SetLogisticsReady(_ context.Context, taskID, _ uuid.UUID, ready bool) error {
	task := f.tasks[taskID]
	if task == nil {
		return apperr.NotFound("installation task not found")
	}
	task.LogisticsReady = &ready
	return nil
}

func (f *fakeStore) UpdateItemStatus(_ context.Context, upd repository.ItemStatusUpdate) (uuid.UUID, error) {
	for taskID, items := range f.items {
		for i := range items {
			if items[i].ID == upd.ItemID {
				items[i].IsInstalled = upd.IsInstalled
				return taskID, nil
			}
		}
	}
	return uuid.Nil, apperr.NotFound("install item not found")
}

func statusIn(status string, list []string) bool {
	for _, item := range list {
		if item == status {
			return true
		}
	}
	return false
}

type fakeOrders struct {
	order *OrderInfo
	lines []OrderLine
}

func (f *fakeOrders) GetOrder(_ context.Context, orderID, _ uuid.UUID) (*OrderInfo, error) {
	if f.order == nil || f.order.ID != orderID {
		return nil, apperr.NotFound("order not found")
	}
	return f.order, nil
}

func (f *fakeOrders) ListOrderLines(_ context.Context, _, _ uuid.UUID) ([]OrderLine, error) {
	return f.lines, nil
}

type fakeProcurement struct {
	pos []PurchaseOrderRef
}

func (f *fakeProcurement) ListByOrder(_ context.Context, _, _ uuid.UUID) ([]PurchaseOrderRef, error) {
	return f.pos, nil
}

type fakeAuthz struct {
	dispatch bool
	confirm  bool
	cancel   bool
	onSite   bool
}

func (f *fakeAuthz) CanDispatch(transport.Session) bool  { return f.dispatch }
func (f *fakeAuthz) CanConfirm(transport.Session) bool   { return f.confirm }
func (f *fakeAuthz) CanCancel(transport.Session) bool    { return f.cancel }
func (f *fakeAuthz) CanActOnSite(transport.Session) bool { return f.onSite }

type fakeDirectory struct{}

func (fakeDirectory) ListInstallers(context.Context, uuid.UUID) ([]InstallerInfo, error) {
	return nil, nil
}

func newTestService(store *fakeStore, orders *fakeOrders, proc *fakeProcurement, authz *fakeAuthz) *Service {
	svc := New(store, orders, proc, authz, fakeDirectory{}, nil, nil)
	svc.now = func() time.Time { return time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC) }
	return svc
}

func testSession() transport.Session {
	return transport.Session{
		UserID:   uuid.New(),
		TenantID: uuid.New(),
		Roles:    []string{"dispatcher"},
	}
}

func strPtr(s string) *string { return &s }

func seedTask(store *fakeStore, tenantID uuid.UUID, status transport.TaskStatus) *repository.InstallTask {
	task := &repository.InstallTask{
		ID:       uuid.New(),
		TenantID: tenantID,
		TaskNo:   "INS-20250310-TEST01",
		OrderID:  uuid.New(),
		Status:   string(status),
	}
	store.tasks[task.ID] = task
	return task
}

func completedChecklist() *transport.ChecklistStatus {
	return &transport.ChecklistStatus{
		Items: []transport.ChecklistItem{
			{ID: "1", Label: "Mount bracket", Required: true, IsChecked: true},
		},
		AllCompleted: true,
	}
}

func sameDayTask(taskNo, slot string, status transport.TaskStatus, loc *geo.Point) repository.InstallTask {
	return repository.InstallTask{
		ID:                uuid.New(),
		TaskNo:            taskNo,
		Status:            string(status),
		ScheduledTimeSlot: strPtr(slot),
		AddressLocation:   loc,
	}
}

func TestCheckConflictHardOverlap(t *testing.T) {
	store := newFakeStore()
	store.sameDay = []repository.InstallTask{
		sameDayTask("INS-A", "14:00-16:00", transport.StatusDispatching, nil),
	}
	svc := newTestService(store, &fakeOrders{}, &fakeProcurement{}, &fakeAuthz{})

	result, err := svc.CheckConflict(context.Background(), ConflictParams{
		TenantID:    uuid.New(),
		InstallerID: uuid.New(),
		Date:        time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
		TimeSlot:    "15-17",
	})
	if err != nil {
		t.Fatalf("CheckConflict failed: %v", err)
	}
	if !result.HasConflict || result.ConflictType != transport.ConflictHard {
		t.Fatalf("expected hard conflict, got %+v", result)
	}
	if result.ConflictingTaskNo != "INS-A" {
		t.Fatalf("expected conflicting task INS-A, got %s", result.ConflictingTaskNo)
	}
}

func TestCheckConflictNamedSlotAlias(t *testing.T) {
	store := newFakeStore()
	store.sameDay = []repository.InstallTask{
		sameDayTask("INS-A", "上午", transport.StatusDispatching, nil),
	}
	svc := newTestService(store, &fakeOrders{}, &fakeProcurement{}, &fakeAuthz{})

	result, err := svc.CheckConflict(context.Background(), ConflictParams{
		TenantID:    uuid.New(),
		InstallerID: uuid.New(),
		Date:        time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
		TimeSlot:    "AM",
	})
	if err != nil {
		t.Fatalf("CheckConflict failed: %v", err)
	}
	if result.ConflictType != transport.ConflictHard {
		t.Fatalf("expected AM to collide with 上午, got %+v", result)
	}
}

func TestCheckConflictIgnoresCompleted(t *testing.T) {
	store := newFakeStore()
	store.sameDay = []repository.InstallTask{
		sameDayTask("INS-A", "14:00-16:00", transport.StatusCompleted, nil),
	}
	svc := newTestService(store, &fakeOrders{}, &fakeProcurement{}, &fakeAuthz{})

	result, err := svc.CheckConflict(context.Background(), ConflictParams{
		TenantID:    uuid.New(),
		InstallerID: uuid.New(),
		Date:        time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
		TimeSlot:    "15-17",
	})
	if err != nil {
		t.Fatalf("CheckConflict failed: %v", err)
	}
	if result.HasConflict {
		t.Fatalf("completed tasks must not conflict, got %+v", result)
	}
}

func TestCheckConflictUnparseableSlots(t *testing.T) {
	store := newFakeStore()
	store.sameDay = []repository.InstallTask{
		sameDayTask("INS-A", "whenever works", transport.StatusDispatching, nil),
	}
	svc := newTestService(store, &fakeOrders{}, &fakeProcurement{}, &fakeAuthz{})

	result, err := svc.CheckConflict(context.Background(), ConflictParams{
		TenantID:    uuid.New(),
		InstallerID: uuid.New(),
		Date:        time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
		TimeSlot:    "morning",
	})
	if err != nil {
		t.Fatalf("CheckConflict failed: %v", err)
	}
	if result.HasConflict {
		t.Fatalf("unparseable slots must never hard-conflict, got %+v", result)
	}
}

func TestCheckConflictTravelRisk(t *testing.T) {
	store := newFakeStore()
	// Roughly 111 km north of the target.
	far := &geo.Point{Lat: 32.0, Lng: 120.0}
	store.sameDay = []repository.InstallTask{
		sameDayTask("INS-A", "9-12", transport.StatusDispatching, far),
	}
	svc := newTestService(store, &fakeOrders{}, &fakeProcurement{}, &fakeAuthz{})

	target := &geo.Point{Lat: 31.0, Lng: 120.0}
	result, err := svc.CheckConflict(context.Background(), ConflictParams{
		TenantID:       uuid.New(),
		InstallerID:    uuid.New(),
		Date:           time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
		TimeSlot:       "13-15",
		TargetLocation: target,
	})
	if err != nil {
		t.Fatalf("CheckConflict failed: %v", err)
	}
	if !result.HasConflict || result.ConflictType != transport.ConflictSoft {
		t.Fatalf("expected soft travel-risk conflict, got %+v", result)
	}
}

func TestCheckConflictUnknownDistanceNeverFlags(t *testing.T) {
	store := newFakeStore()
	store.sameDay = []repository.InstallTask{
		sameDayTask("INS-A", "9-12", transport.StatusDispatching, nil),
	}
	svc := newTestService(store, &fakeOrders{}, &fakeProcurement{}, &fakeAuthz{})

	result, err := svc.CheckConflict(context.Background(), ConflictParams{
		TenantID:       uuid.New(),
		InstallerID:    uuid.New(),
		Date:           time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
		TimeSlot:       "13-15",
		TargetLocation: &geo.Point{Lat: 31.0, Lng: 120.0},
	})
	if err != nil {
		t.Fatalf("CheckConflict failed: %v", err)
	}
	if result.HasConflict {
		t.Fatalf("unknown previous location must not flag travel risk, got %+v", result)
	}
}

func TestCheckConflictDailyOverload(t *testing.T) {
	store := newFakeStore()
	store.sameDay = []repository.InstallTask{
		sameDayTask("INS-A", "8-9", transport.StatusDispatching, nil),
		sameDayTask("INS-B", "10-11", transport.StatusPendingVisit, nil),
		sameDayTask("INS-C", "12-13", transport.StatusPendingConfirm, nil),
	}
	svc := newTestService(store, &fakeOrders{}, &fakeProcurement{}, &fakeAuthz{})

	result, err := svc.CheckConflict(context.Background(), ConflictParams{
		TenantID:    uuid.New(),
		InstallerID: uuid.New(),
		Date:        time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
		TimeSlot:    "14-16",
	})
	if err != nil {
		t.Fatalf("CheckConflict failed: %v", err)
	}
	if !result.HasConflict || result.ConflictType != transport.ConflictSoft {
		t.Fatalf("expected soft overload conflict, got %+v", result)
	}
}

func TestCheckLogistics(t *testing.T) {
	svc := newTestService(newFakeStore(), &fakeOrders{}, &fakeProcurement{
		pos: []PurchaseOrderRef{
			{PONo: "PO-1", Status: "RECEIVED"},
			{PONo: "PO-2", Status: "PENDING"},
		},
	}, &fakeAuthz{})

	result, err := svc.CheckLogistics(context.Background(), uuid.New(), uuid.New())
	if err != nil {
		t.Fatalf("CheckLogistics failed: %v", err)
	}
	if result.Ready {
		t.Fatalf("pending PO must block, got %+v", result)
	}
	if len(result.BlockingRefs) != 1 {
		t.Fatalf("expected one blocking ref, got %v", result.BlockingRefs)
	}
}

func TestCheckLogisticsAllArrived(t *testing.T) {
	svc := newTestService(newFakeStore(), &fakeOrders{}, &fakeProcurement{
		pos: []PurchaseOrderRef{
			{PONo: "PO-1", Status: "ARRIVED"},
			{PONo: "PO-2", Status: "PARTIAL_RECEIVED"},
		},
	}, &fakeAuthz{})

	result, err := svc.CheckLogistics(context.Background(), uuid.New(), uuid.New())
	if err != nil {
		t.Fatalf("CheckLogistics failed: %v", err)
	}
	if !result.Ready {
		t.Fatalf("arrived POs must be ready, got %+v", result)
	}
}

func TestCheckLogisticsNoPurchaseOrders(t *testing.T) {
	svc := newTestService(newFakeStore(), &fakeOrders{}, &fakeProcurement{}, &fakeAuthz{})

	result, err := svc.CheckLogistics(context.Background(), uuid.New(), uuid.New())
	if err != nil {
		t.Fatalf("CheckLogistics failed: %v", err)
	}
	if !result.Ready {
		t.Fatalf("no POs means ready, got %+v", result)
	}
}

func TestAllCompleted(t *testing.T) {
	items := []transport.ChecklistItem{
		{ID: "1", Label: "Mount bracket", Required: true, IsChecked: true},
		{ID: "2", Label: "Photo", Required: false, IsChecked: false},
	}
	if !AllCompleted(items) {
		t.Fatal("optional unchecked item must not block")
	}

	items[0].IsChecked = false
	if AllCompleted(items) {
		t.Fatal("required unchecked item must block")
	}

	if !AllCompleted(nil) {
		t.Fatal("empty checklist counts as complete")
	}
}
