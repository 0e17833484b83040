package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"fieldops_backend/internal/installs/repository"
	"fieldops_backend/internal/installs/transport"
	"fieldops_backend/platform/apperr"

	"github.com/google/uuid"
)

func TestCreateTask(t *testing.T) {
	store := newFakeStore()
	sess := testSession()
	orderID := uuid.New()
	customerID := uuid.New()
	orders := &fakeOrders{
		order: &OrderInfo{ID: orderID, CustomerID: customerID, DeliveryAddress: strPtr("12 Canal St")},
		lines: []OrderLine{
			{ID: uuid.New(), ProductName: "Blackout curtain", RoomName: strPtr("Living room"), Quantity: 2},
			{ID: uuid.New(), ProductName: "Sheer panel", Quantity: 1},
		},
	}
	svc := newTestService(store, orders, &fakeProcurement{}, &fakeAuthz{})

	result, err := svc.Create(context.Background(), sess, transport.CreateTaskRequest{
		OrderID:    orderID,
		CustomerID: customerID,
		Category:   transport.CategoryCurtain,
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if !strings.HasPrefix(result.TaskNo, "INS-20250310-") {
		t.Fatalf("unexpected task number %s", result.TaskNo)
	}
	if store.created.Status != string(transport.StatusPendingDispatch) {
		t.Fatalf("expected PENDING_DISPATCH, got %s", store.created.Status)
	}
	if store.created.Address == nil || *store.created.Address != "12 Canal St" {
		t.Fatalf("expected address from order, got %v", store.created.Address)
	}
	items := store.items[result.ID]
	if len(items) != 2 {
		t.Fatalf("expected 2 items snapshotted, got %d", len(items))
	}
	if items[0].ProductName != "Blackout curtain" || items[0].Quantity != 2 {
		t.Fatalf("order line not carried into item: %+v", items[0])
	}
	if items[0].RoomName == nil || *items[0].RoomName != "Living room" {
		t.Fatalf("expected room name carried into item, got %v", items[0].RoomName)
	}
	if items[1].ProductName != "Sheer panel" || items[1].Quantity != 1 {
		t.Fatalf("order line not carried into item: %+v", items[1])
	}
}

func TestCreateTaskWithInstallerStartsDispatching(t *testing.T) {
	store := newFakeStore()
	sess := testSession()
	orderID := uuid.New()
	customerID := uuid.New()
	installerID := uuid.New()
	orders := &fakeOrders{order: &OrderInfo{ID: orderID, CustomerID: customerID}}
	svc := newTestService(store, orders, &fakeProcurement{}, &fakeAuthz{})

	_, err := svc.Create(context.Background(), sess, transport.CreateTaskRequest{
		OrderID:     orderID,
		CustomerID:  customerID,
		InstallerID: &installerID,
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if store.created.Status != string(transport.StatusDispatching) {
		t.Fatalf("expected DISPATCHING, got %s", store.created.Status)
	}
	if store.created.AssignedAt == nil {
		t.Fatal("expected assigned_at to be set")
	}
}

func TestCreateTaskCustomerMismatch(t *testing.T) {
	store := newFakeStore()
	sess := testSession()
	orderID := uuid.New()
	orders := &fakeOrders{order: &OrderInfo{ID: orderID, CustomerID: uuid.New()}}
	svc := newTestService(store, orders, &fakeProcurement{}, &fakeAuthz{})

	_, err := svc.Create(context.Background(), sess, transport.CreateTaskRequest{
		OrderID:    orderID,
		CustomerID: uuid.New(),
	})
	if apperr.GetKind(err) != apperr.KindBadRequest {
		t.Fatalf("expected bad request, got %v", err)
	}
}

func TestCreateTaskRetriesOnDuplicateTaskNo(t *testing.T) {
	store := newFakeStore()
	store.duplicateFirst = true
	sess := testSession()
	orderID := uuid.New()
	customerID := uuid.New()
	orders := &fakeOrders{order: &OrderInfo{ID: orderID, CustomerID: customerID}}
	svc := newTestService(store, orders, &fakeProcurement{}, &fakeAuthz{})

	result, err := svc.Create(context.Background(), sess, transport.CreateTaskRequest{
		OrderID:    orderID,
		CustomerID: customerID,
	})
	if err != nil {
		t.Fatalf("Create should retry past one collision: %v", err)
	}
	if store.createCalls != 2 {
		t.Fatalf("expected 2 create attempts, got %d", store.createCalls)
	}
	if result.TaskNo == "" {
		t.Fatal("expected a task number")
	}
}

func TestDispatchRequiresPermission(t *testing.T) {
	store := newFakeStore()
	sess := testSession()
	task := seedTask(store, sess.TenantID, transport.StatusPendingDispatch)
	svc := newTestService(store, &fakeOrders{}, &fakeProcurement{}, &fakeAuthz{dispatch: false})

	_, err := svc.Dispatch(context.Background(), sess, task.ID, transport.DispatchTaskRequest{InstallerID: uuid.New()})
	if apperr.GetKind(err) != apperr.KindForbidden {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestDispatchBlockedByLogistics(t *testing.T) {
	store := newFakeStore()
	sess := testSession()
	task := seedTask(store, sess.TenantID, transport.StatusPendingDispatch)
	proc := &fakeProcurement{pos: []PurchaseOrderRef{{PONo: "PO-9", Status: "PENDING"}}}
	svc := newTestService(store, &fakeOrders{}, proc, &fakeAuthz{dispatch: true})

	_, err := svc.Dispatch(context.Background(), sess, task.ID, transport.DispatchTaskRequest{InstallerID: uuid.New()})
	if apperr.GetKind(err) != apperr.KindConflict {
		t.Fatalf("materials-not-ready must surface as an overridable conflict, got %v", err)
	}
}

func TestDispatchForceOverridesLogistics(t *testing.T) {
	store := newFakeStore()
	sess := testSession()
	task := seedTask(store, sess.TenantID, transport.StatusPendingDispatch)
	proc := &fakeProcurement{pos: []PurchaseOrderRef{{PONo: "PO-9", Status: "PENDING"}}}
	svc := newTestService(store, &fakeOrders{}, proc, &fakeAuthz{dispatch: true})
	installerID := uuid.New()

	resp, err := svc.Dispatch(context.Background(), sess, task.ID, transport.DispatchTaskRequest{
		InstallerID: installerID,
		Force:       true,
	})
	if err != nil {
		t.Fatalf("forced dispatch failed: %v", err)
	}
	if resp.Status != transport.StatusDispatching {
		t.Fatalf("expected DISPATCHING, got %s", resp.Status)
	}
	if resp.LogisticsReady == nil || *resp.LogisticsReady {
		t.Fatal("logistics flag should record not-ready")
	}
}

func TestDispatchHardConflictNotForceable(t *testing.T) {
	store := newFakeStore()
	sess := testSession()
	task := seedTask(store, sess.TenantID, transport.StatusPendingDispatch)
	store.sameDay = []repository.InstallTask{
		sameDayTask("INS-X", "14-16", transport.StatusDispatching, nil),
	}
	svc := newTestService(store, &fakeOrders{}, &fakeProcurement{}, &fakeAuthz{dispatch: true})

	date := time.Date(2025, 3, 12, 0, 0, 0, 0, time.UTC)
	_, err := svc.Dispatch(context.Background(), sess, task.ID, transport.DispatchTaskRequest{
		InstallerID:       uuid.New(),
		ScheduledDate:     &date,
		ScheduledTimeSlot: strPtr("15-17"),
		Force:             true,
	})
	if apperr.GetKind(err) != apperr.KindConflict {
		t.Fatalf("hard conflict must block even when forced, got %v", err)
	}
}

func TestDispatchSoftConflictForceable(t *testing.T) {
	store := newFakeStore()
	sess := testSession()
	task := seedTask(store, sess.TenantID, transport.StatusPendingDispatch)
	store.sameDay = []repository.InstallTask{
		sameDayTask("INS-A", "8-9", transport.StatusDispatching, nil),
		sameDayTask("INS-B", "10-11", transport.StatusDispatching, nil),
		sameDayTask("INS-C", "12-13", transport.StatusDispatching, nil),
	}
	svc := newTestService(store, &fakeOrders{}, &fakeProcurement{}, &fakeAuthz{dispatch: true})

	date := time.Date(2025, 3, 12, 0, 0, 0, 0, time.UTC)
	req := transport.DispatchTaskRequest{
		InstallerID:       uuid.New(),
		ScheduledDate:     &date,
		ScheduledTimeSlot: strPtr("14-16"),
	}

	_, err := svc.Dispatch(context.Background(), sess, task.ID, req)
	if apperr.GetKind(err) != apperr.KindConflict {
		t.Fatalf("expected soft conflict to block without force, got %v", err)
	}

	req.Force = true
	resp, err := svc.Dispatch(context.Background(), sess, task.ID, req)
	if err != nil {
		t.Fatalf("forced dispatch over soft conflict failed: %v", err)
	}
	if resp.Status != transport.StatusDispatching {
		t.Fatalf("expected DISPATCHING, got %s", resp.Status)
	}
}

func TestCheckInLifecycle(t *testing.T) {
	store := newFakeStore()
	sess := testSession()
	task := seedTask(store, sess.TenantID, transport.StatusDispatching)
	task.InstallerID = &sess.UserID
	sched := time.Date(2025, 3, 10, 7, 30, 0, 0, time.UTC)
	task.ScheduledDate = &sched
	svc := newTestService(store, &fakeOrders{}, &fakeProcurement{}, &fakeAuthz{})

	result, err := svc.CheckIn(context.Background(), sess, task.ID, transport.CheckInRequest{})
	if err != nil {
		t.Fatalf("CheckIn failed: %v", err)
	}
	if !result.IsLate || result.LateMinutes != 30 {
		t.Fatalf("expected 30 minutes late, got %+v", result)
	}
	if store.tasks[task.ID].Status != string(transport.StatusPendingVisit) {
		t.Fatalf("expected PENDING_VISIT, got %s", store.tasks[task.ID].Status)
	}
}

func TestCheckInOnTime(t *testing.T) {
	store := newFakeStore()
	sess := testSession()
	task := seedTask(store, sess.TenantID, transport.StatusDispatching)
	task.InstallerID = &sess.UserID
	sched := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	task.ScheduledDate = &sched
	svc := newTestService(store, &fakeOrders{}, &fakeProcurement{}, &fakeAuthz{})

	// The test clock (08:00) is before the scheduled time.
	result, err := svc.CheckIn(context.Background(), sess, task.ID, transport.CheckInRequest{})
	if err != nil {
		t.Fatalf("CheckIn failed: %v", err)
	}
	if result.IsLate || result.LateMinutes != 0 {
		t.Fatalf("on-time check-in must report zero lateness, got %+v", result)
	}
	if store.tasks[task.ID].Status != string(transport.StatusPendingVisit) {
		t.Fatalf("expected PENDING_VISIT, got %s", store.tasks[task.ID].Status)
	}
}

func TestCheckInWrongStatus(t *testing.T) {
	store := newFakeStore()
	sess := testSession()
	task := seedTask(store, sess.TenantID, transport.StatusPendingDispatch)
	task.InstallerID = &sess.UserID
	svc := newTestService(store, &fakeOrders{}, &fakeProcurement{}, &fakeAuthz{})

	_, err := svc.CheckIn(context.Background(), sess, task.ID, transport.CheckInRequest{})
	if apperr.GetKind(err) != apperr.KindInvalidState {
		t.Fatalf("expected invalid state, got %v", err)
	}
}

func TestCheckInOnlyAssignedInstaller(t *testing.T) {
	store := newFakeStore()
	sess := testSession()
	task := seedTask(store, sess.TenantID, transport.StatusDispatching)
	other := uuid.New()
	task.InstallerID = &other

	// Dispatch rights alone do not grant on-site access.
	svc := newTestService(store, &fakeOrders{}, &fakeProcurement{}, &fakeAuthz{dispatch: true})
	_, err := svc.CheckIn(context.Background(), sess, task.ID, transport.CheckInRequest{})
	if apperr.GetKind(err) != apperr.KindForbidden {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestCheckInAdminOverride(t *testing.T) {
	store := newFakeStore()
	sess := testSession()
	task := seedTask(store, sess.TenantID, transport.StatusDispatching)
	other := uuid.New()
	task.InstallerID = &other
	svc := newTestService(store, &fakeOrders{}, &fakeProcurement{}, &fakeAuthz{onSite: true})

	if _, err := svc.CheckIn(context.Background(), sess, task.ID, transport.CheckInRequest{}); err != nil {
		t.Fatalf("admin check-in on behalf of the installer failed: %v", err)
	}
}

func TestCheckOutBlockedByChecklist(t *testing.T) {
	store := newFakeStore()
	sess := testSession()
	task := seedTask(store, sess.TenantID, transport.StatusPendingVisit)
	task.InstallerID = &sess.UserID
	task.Checklist = &transport.ChecklistStatus{
		Items: []transport.ChecklistItem{
			{ID: "1", Label: "Level check", Required: true, IsChecked: false},
		},
	}
	svc := newTestService(store, &fakeOrders{}, &fakeProcurement{}, &fakeAuthz{})

	err := svc.CheckOut(context.Background(), sess, task.ID, transport.CheckOutRequest{})
	if apperr.GetKind(err) != apperr.KindInvalidState {
		t.Fatalf("expected checklist gate to block, got %v", err)
	}
}

func TestCheckOutWithoutChecklistBlocked(t *testing.T) {
	store := newFakeStore()
	sess := testSession()
	task := seedTask(store, sess.TenantID, transport.StatusPendingVisit)
	task.InstallerID = &sess.UserID
	svc := newTestService(store, &fakeOrders{}, &fakeProcurement{}, &fakeAuthz{})

	err := svc.CheckOut(context.Background(), sess, task.ID, transport.CheckOutRequest{})
	if apperr.GetKind(err) != apperr.KindInvalidState {
		t.Fatalf("check-out without a checklist must block, got %v", err)
	}
}

func TestCheckOutWithSignature(t *testing.T) {
	store := newFakeStore()
	sess := testSession()
	task := seedTask(store, sess.TenantID, transport.StatusPendingVisit)
	task.InstallerID = &sess.UserID
	task.Checklist = completedChecklist()
	svc := newTestService(store, &fakeOrders{}, &fakeProcurement{}, &fakeAuthz{})

	err := svc.CheckOut(context.Background(), sess, task.ID, transport.CheckOutRequest{
		CustomerSignatureURL: strPtr("https://cdn.example.com/sig.png"),
	})
	if err != nil {
		t.Fatalf("CheckOut failed: %v", err)
	}

	stored := store.tasks[task.ID]
	if stored.Status != string(transport.StatusPendingConfirm) {
		t.Fatalf("expected PENDING_CONFIRM, got %s", stored.Status)
	}
	if stored.SignedAt == nil {
		t.Fatal("expected signed_at to be set")
	}
}

func TestConfirmCompletesTask(t *testing.T) {
	store := newFakeStore()
	sess := testSession()
	task := seedTask(store, sess.TenantID, transport.StatusPendingConfirm)
	installerID := uuid.New()
	task.InstallerID = &installerID
	svc := newTestService(store, &fakeOrders{}, &fakeProcurement{}, &fakeAuthz{confirm: true})

	err := svc.Confirm(context.Background(), sess, task.ID, transport.ConfirmTaskRequest{
		ActualLaborFeeCents: 25000,
	})
	if err != nil {
		t.Fatalf("Confirm failed: %v", err)
	}

	stored := store.tasks[task.ID]
	if stored.Status != string(transport.StatusCompleted) {
		t.Fatalf("expected COMPLETED, got %s", stored.Status)
	}
	if stored.ActualLaborFeeCents == nil || *stored.ActualLaborFeeCents != 25000 {
		t.Fatalf("expected actual fee 25000, got %v", stored.ActualLaborFeeCents)
	}
}

func TestConfirmWithoutInstallerBlocked(t *testing.T) {
	store := newFakeStore()
	sess := testSession()
	task := seedTask(store, sess.TenantID, transport.StatusPendingConfirm)
	svc := newTestService(store, &fakeOrders{}, &fakeProcurement{}, &fakeAuthz{confirm: true})

	err := svc.Confirm(context.Background(), sess, task.ID, transport.ConfirmTaskRequest{ActualLaborFeeCents: 100})
	if apperr.GetKind(err) != apperr.KindInvalidState {
		t.Fatalf("confirm without an assigned installer must block, got %v", err)
	}
}

func TestRejectReturnsToPendingVisit(t *testing.T) {
	store := newFakeStore()
	sess := testSession()
	task := seedTask(store, sess.TenantID, transport.StatusPendingConfirm)
	svc := newTestService(store, &fakeOrders{}, &fakeProcurement{}, &fakeAuthz{confirm: true})

	err := svc.Reject(context.Background(), sess, task.ID, transport.RejectTaskRequest{Reason: "curtain crooked"})
	if err != nil {
		t.Fatalf("Reject failed: %v", err)
	}

	stored := store.tasks[task.ID]
	if stored.Status != string(transport.StatusPendingVisit) {
		t.Fatalf("expected PENDING_VISIT, got %s", stored.Status)
	}
	if stored.RejectCount != 1 {
		t.Fatalf("expected reject count 1, got %d", stored.RejectCount)
	}
}

func TestRejectFromPendingVisit(t *testing.T) {
	store := newFakeStore()
	sess := testSession()
	task := seedTask(store, sess.TenantID, transport.StatusPendingVisit)
	svc := newTestService(store, &fakeOrders{}, &fakeProcurement{}, &fakeAuthz{confirm: true})

	err := svc.Reject(context.Background(), sess, task.ID, transport.RejectTaskRequest{Reason: "rework needed"})
	if err != nil {
		t.Fatalf("Reject failed: %v", err)
	}

	stored := store.tasks[task.ID]
	if stored.Status != string(transport.StatusPendingVisit) {
		t.Fatalf("expected task to stay PENDING_VISIT, got %s", stored.Status)
	}
	if stored.RejectReason == nil || *stored.RejectReason != "rework needed" {
		t.Fatalf("expected reject reason recorded, got %v", stored.RejectReason)
	}
}

func TestRejectWrongStatus(t *testing.T) {
	store := newFakeStore()
	sess := testSession()
	task := seedTask(store, sess.TenantID, transport.StatusDispatching)
	svc := newTestService(store, &fakeOrders{}, &fakeProcurement{}, &fakeAuthz{confirm: true})

	err := svc.Reject(context.Background(), sess, task.ID, transport.RejectTaskRequest{Reason: "too early"})
	if apperr.GetKind(err) != apperr.KindInvalidState {
		t.Fatalf("expected invalid state, got %v", err)
	}
}

func TestCancelTerminalTask(t *testing.T) {
	store := newFakeStore()
	sess := testSession()
	task := seedTask(store, sess.TenantID, transport.StatusCompleted)
	svc := newTestService(store, &fakeOrders{}, &fakeProcurement{}, &fakeAuthz{cancel: true})

	err := svc.Cancel(context.Background(), sess, task.ID, transport.CancelTaskRequest{})
	if apperr.GetKind(err) != apperr.KindInvalidState {
		t.Fatalf("expected invalid state, got %v", err)
	}
}

func TestCancelClearsInstallerAssignment(t *testing.T) {
	store := newFakeStore()
	sess := testSession()
	task := seedTask(store, sess.TenantID, transport.StatusDispatching)
	installerID := uuid.New()
	task.InstallerID = &installerID
	svc := newTestService(store, &fakeOrders{}, &fakeProcurement{}, &fakeAuthz{cancel: true})

	if err := svc.Cancel(context.Background(), sess, task.ID, transport.CancelTaskRequest{}); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}

	stored := store.tasks[task.ID]
	if stored.Status != string(transport.StatusCancelled) {
		t.Fatalf("expected CANCELLED, got %s", stored.Status)
	}
	if stored.InstallerID != nil {
		t.Fatal("cancelled task must not keep an installer assignment")
	}
}

func TestTenantIsolation(t *testing.T) {
	store := newFakeStore()
	sess := testSession()
	otherTenantTask := seedTask(store, uuid.New(), transport.StatusPendingDispatch)
	svc := newTestService(store, &fakeOrders{}, &fakeProcurement{}, &fakeAuthz{dispatch: true, cancel: true})

	if _, err := svc.GetByID(context.Background(), sess, otherTenantTask.ID); apperr.GetKind(err) != apperr.KindNotFound {
		t.Fatalf("expected not found across tenants, got %v", err)
	}
	if _, err := svc.Dispatch(context.Background(), sess, otherTenantTask.ID, transport.DispatchTaskRequest{InstallerID: uuid.New()}); apperr.GetKind(err) != apperr.KindNotFound {
		t.Fatalf("expected not found across tenants, got %v", err)
	}
}

func TestUpdateChecklistRecomputesCompletion(t *testing.T) {
	store := newFakeStore()
	sess := testSession()
	task := seedTask(store, sess.TenantID, transport.StatusPendingVisit)
	task.InstallerID = &sess.UserID
	svc := newTestService(store, &fakeOrders{}, &fakeProcurement{}, &fakeAuthz{})

	checklist, err := svc.UpdateChecklist(context.Background(), sess, task.ID, transport.UpdateChecklistRequest{
		Items: []transport.ChecklistItem{
			{ID: "1", Label: "Mount", Required: true, IsChecked: true},
			{ID: "2", Label: "Photo", Required: false, IsChecked: false},
		},
	})
	if err != nil {
		t.Fatalf("UpdateChecklist failed: %v", err)
	}
	if !checklist.AllCompleted {
		t.Fatalf("expected allCompleted true, got %+v", checklist)
	}
	if store.tasks[task.ID].Checklist == nil {
		t.Fatal("checklist was not persisted")
	}
}

func TestConcurrentStatusChangeSurfacesConflict(t *testing.T) {
	store := newFakeStore()
	sess := testSession()
	task := seedTask(store, sess.TenantID, transport.StatusPendingConfirm)
	installerID := uuid.New()
	task.InstallerID = &installerID
	svc := newTestService(store, &fakeOrders{}, &fakeProcurement{}, &fakeAuthz{confirm: true})

	// Simulate another writer completing the task between the read and
	// the guarded update.
	origGet := store.tasks[task.ID]
	_ = origGet
	svc.now = func() time.Time {
		store.tasks[task.ID].Status = string(transport.StatusCompleted)
		return time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	}

	err := svc.Confirm(context.Background(), sess, task.ID, transport.ConfirmTaskRequest{ActualLaborFeeCents: 100})
	if apperr.GetKind(err) != apperr.KindConflict {
		t.Fatalf("expected conflict on concurrent change, got %v", err)
	}
	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		t.Fatalf("expected typed error, got %T", err)
	}
}
