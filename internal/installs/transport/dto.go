// Package transport defines the request/response contracts for the
// installation dispatch module.
package transport

import (
	"time"

	"github.com/google/uuid"
)

// TaskStatus is the lifecycle state of an installation task.
type TaskStatus string

const (
	StatusPendingDispatch TaskStatus = "PENDING_DISPATCH"
	StatusDispatching     TaskStatus = "DISPATCHING"
	StatusPendingVisit    TaskStatus = "PENDING_VISIT"
	StatusPendingConfirm  TaskStatus = "PENDING_CONFIRM"
	StatusCompleted       TaskStatus = "COMPLETED"
	StatusCancelled       TaskStatus = "CANCELLED"
)

// SourceType records where a task originated.
type SourceType string

const (
	SourceOrder      SourceType = "ORDER"
	SourceAfterSales SourceType = "AFTER_SALES"
	SourceRework     SourceType = "REWORK"
)

// Category is the kind of installation work.
type Category string

const (
	CategoryCurtain   Category = "CURTAIN"
	CategoryWallcloth Category = "WALLCLOTH"
	CategoryOther     Category = "OTHER"
)

// IssueCategory classifies a problem found with a single install item.
type IssueCategory string

const (
	IssueNone      IssueCategory = "NONE"
	IssueMissing   IssueCategory = "MISSING"
	IssueDamaged   IssueCategory = "DAMAGED"
	IssueWrongSize IssueCategory = "WRONG_SIZE"
)

// ConflictType classifies a scheduling conflict.
type ConflictType string

const (
	// ConflictNone means the installer is free.
	ConflictNone ConflictType = "NONE"
	// ConflictSoft is a feasibility risk a dispatcher may override with force.
	ConflictSoft ConflictType = "SOFT"
	// ConflictHard is a time-slot overlap and is never overridable.
	ConflictHard ConflictType = "HARD"
)

// Session identifies the caller for every engine operation. It is supplied
// by the HTTP layer from the validated access token and trusted as-is.
type Session struct {
	UserID   uuid.UUID
	TenantID uuid.UUID
	Roles    []string
}

// Location is a GPS fix captured on check-in/check-out.
type Location struct {
	Latitude  float64 `json:"latitude" validate:"min=-90,max=90"`
	Longitude float64 `json:"longitude" validate:"min=-180,max=180"`
	Address   string  `json:"address,omitempty"`
}

// ChecklistItem is one step of the standardized on-site checklist.
type ChecklistItem struct {
	ID        string  `json:"id" validate:"required"`
	Label     string  `json:"label" validate:"required"`
	IsChecked bool    `json:"isChecked"`
	Required  bool    `json:"required"`
	PhotoURL  *string `json:"photoUrl,omitempty"`
}

// ChecklistStatus is the checklist document embedded on a task.
// AllCompleted is derived and recomputed on every update.
type ChecklistStatus struct {
	Items        []ChecklistItem `json:"items"`
	AllCompleted bool            `json:"allCompleted"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

// FeeLine is one surcharge within a dispatch fee breakdown.
type FeeLine struct {
	Type        string  `json:"type" validate:"required,oneof=HIGH_ALTITUDE LONG_DISTANCE SPECIAL_WALL OTHER"`
	AmountCents int64   `json:"amountCents" validate:"min=0"`
	Description *string `json:"description,omitempty"`
	Quantity    *int    `json:"quantity,omitempty"`
}

// FeeBreakdown itemizes the labor fee agreed at dispatch time.
type FeeBreakdown struct {
	BaseFeeCents   int64     `json:"baseFeeCents" validate:"min=0"`
	AdditionalFees []FeeLine `json:"additionalFees,omitempty" validate:"omitempty,dive"`
}

// CreateTaskRequest creates an installation task from an order.
type CreateTaskRequest struct {
	OrderID           uuid.UUID  `json:"orderId" validate:"required"`
	CustomerID        uuid.UUID  `json:"customerId" validate:"required"`
	SourceType        SourceType `json:"sourceType" validate:"omitempty,oneof=ORDER AFTER_SALES REWORK"`
	AfterSalesID      *uuid.UUID `json:"afterSalesId,omitempty"`
	Category          Category   `json:"category" validate:"omitempty,oneof=CURTAIN WALLCLOTH OTHER"`
	Address           *string    `json:"address,omitempty"`
	InstallerID       *uuid.UUID `json:"installerId,omitempty"`
	ScheduledDate     *time.Time `json:"scheduledDate,omitempty"`
	ScheduledTimeSlot *string    `json:"scheduledTimeSlot,omitempty"`
	LaborFeeCents     *int64     `json:"laborFeeCents,omitempty" validate:"omitempty,min=0"`
	Notes             *string    `json:"notes,omitempty"`
}

// DispatchTaskRequest assigns (or re-assigns) an installer and schedule.
type DispatchTaskRequest struct {
	InstallerID       uuid.UUID     `json:"installerId" validate:"required"`
	ScheduledDate     *time.Time    `json:"scheduledDate,omitempty"`
	ScheduledTimeSlot *string       `json:"scheduledTimeSlot,omitempty"`
	LaborFeeCents     *int64        `json:"laborFeeCents,omitempty" validate:"omitempty,min=0"`
	FeeBreakdown      *FeeBreakdown `json:"feeBreakdown,omitempty"`
	DispatcherNotes   *string       `json:"dispatcherNotes,omitempty"`
	// Force overrides soft conflicts and logistics-not-ready. Hard conflicts
	// are never overridable.
	Force bool `json:"force"`
}

// CheckInRequest records on-site arrival.
type CheckInRequest struct {
	Location *Location `json:"location,omitempty"`
}

// CheckOutRequest records on-site completion, gated by the checklist.
type CheckOutRequest struct {
	Location             *Location `json:"location,omitempty"`
	CustomerSignatureURL *string   `json:"customerSignatureUrl,omitempty"`
}

// ConfirmTaskRequest is the back-office sign-off.
type ConfirmTaskRequest struct {
	ActualLaborFeeCents int64   `json:"actualLaborFeeCents" validate:"min=0"`
	AdjustmentReason    *string `json:"adjustmentReason,omitempty"`
	Rating              *int    `json:"rating,omitempty" validate:"omitempty,min=1,max=5"`
	RatingComment       *string `json:"ratingComment,omitempty"`
}

// RejectTaskRequest sends a task back to on-site status.
type RejectTaskRequest struct {
	Reason string `json:"reason" validate:"required"`
}

// CancelTaskRequest cancels a task.
type CancelTaskRequest struct {
	Reason *string `json:"reason,omitempty"`
}

// UpdateChecklistRequest replaces the whole checklist document.
type UpdateChecklistRequest struct {
	Items []ChecklistItem `json:"items" validate:"required,dive"`
}

// UpdateItemStatusRequest mutates a single install item.
type UpdateItemStatusRequest struct {
	IsInstalled             bool           `json:"isInstalled"`
	ActualInstalledQuantity *int           `json:"actualInstalledQuantity,omitempty" validate:"omitempty,min=0"`
	IssueCategory           *IssueCategory `json:"issueCategory,omitempty" validate:"omitempty,oneof=NONE MISSING DAMAGED WRONG_SIZE"`
}

// ListTasksRequest filters the task list.
type ListTasksRequest struct {
	Status      *TaskStatus `form:"status" validate:"omitempty,oneof=PENDING_DISPATCH DISPATCHING PENDING_VISIT PENDING_CONFIRM COMPLETED CANCELLED"`
	InstallerID *uuid.UUID  `form:"installerId"`
	OrderID     *uuid.UUID  `form:"orderId"`
	DateFrom    *time.Time  `form:"dateFrom" time_format:"2006-01-02"`
	DateTo      *time.Time  `form:"dateTo" time_format:"2006-01-02"`
	Page        int         `form:"page"`
	PageSize    int         `form:"pageSize"`
}

// ConflictResult is the outcome of a scheduling-conflict check.
type ConflictResult struct {
	HasConflict       bool         `json:"hasConflict"`
	ConflictType      ConflictType `json:"conflictType"`
	Message           string       `json:"message,omitempty"`
	ConflictingTaskID *uuid.UUID   `json:"conflictingTaskId,omitempty"`
	ConflictingTaskNo string       `json:"conflictingTaskNo,omitempty"`
}

// LogisticsResult is the outcome of a logistics-readiness check.
type LogisticsResult struct {
	Ready        bool     `json:"ready"`
	Message      string   `json:"message,omitempty"`
	BlockingRefs []string `json:"blockingRefs,omitempty"`
}

// CheckInResult reports lateness relative to the scheduled date.
type CheckInResult struct {
	IsLate      bool `json:"isLate"`
	LateMinutes int  `json:"lateMinutes"`
}

// CreateTaskResult returns the identifiers of the created task.
type CreateTaskResult struct {
	ID     uuid.UUID `json:"id"`
	TaskNo string    `json:"taskNo"`
}

// InstallItemResponse is one install item line.
type InstallItemResponse struct {
	ID                      uuid.UUID     `json:"id"`
	OrderItemID             *uuid.UUID    `json:"orderItemId,omitempty"`
	ProductName             string        `json:"productName"`
	RoomName                *string       `json:"roomName,omitempty"`
	Quantity                int           `json:"quantity"`
	ActualInstalledQuantity *int          `json:"actualInstalledQuantity,omitempty"`
	IsInstalled             bool          `json:"isInstalled"`
	IssueCategory           IssueCategory `json:"issueCategory"`
}

// TaskResponse is the full task view.
type TaskResponse struct {
	ID                   uuid.UUID        `json:"id"`
	TaskNo               string           `json:"taskNo"`
	OrderID              uuid.UUID        `json:"orderId"`
	CustomerID           uuid.UUID        `json:"customerId"`
	AfterSalesID         *uuid.UUID       `json:"afterSalesId,omitempty"`
	SourceType           SourceType       `json:"sourceType"`
	Category             Category         `json:"category"`
	Status               TaskStatus       `json:"status"`
	Address              *string          `json:"address,omitempty"`
	InstallerID          *uuid.UUID       `json:"installerId,omitempty"`
	DispatcherID         *uuid.UUID       `json:"dispatcherId,omitempty"`
	AssignedAt           *time.Time       `json:"assignedAt,omitempty"`
	ScheduledDate        *time.Time       `json:"scheduledDate,omitempty"`
	ScheduledTimeSlot    *string          `json:"scheduledTimeSlot,omitempty"`
	LogisticsReady       *bool            `json:"logisticsReady,omitempty"`
	LaborFeeCents        *int64           `json:"laborFeeCents,omitempty"`
	FeeBreakdown         *FeeBreakdown    `json:"feeBreakdown,omitempty"`
	Notes                *string          `json:"notes,omitempty"`
	CheckInAt            *time.Time       `json:"checkInAt,omitempty"`
	CheckInLocation      *Location        `json:"checkInLocation,omitempty"`
	CheckOutAt           *time.Time       `json:"checkOutAt,omitempty"`
	CheckOutLocation     *Location        `json:"checkOutLocation,omitempty"`
	CustomerSignatureURL *string          `json:"customerSignatureUrl,omitempty"`
	SignedAt             *time.Time       `json:"signedAt,omitempty"`
	Checklist            *ChecklistStatus `json:"checklist,omitempty"`
	ActualLaborFeeCents  *int64           `json:"actualLaborFeeCents,omitempty"`
	AdjustmentReason     *string          `json:"adjustmentReason,omitempty"`
	Rating               *int             `json:"rating,omitempty"`
	RatingComment        *string          `json:"ratingComment,omitempty"`
	ConfirmedAt          *time.Time       `json:"confirmedAt,omitempty"`
	ConfirmedBy          *uuid.UUID       `json:"confirmedBy,omitempty"`
	CompletedAt          *time.Time       `json:"completedAt,omitempty"`
	RejectReason         *string          `json:"rejectReason,omitempty"`
	RejectCount          int              `json:"rejectCount"`
	CreatedAt            time.Time        `json:"createdAt"`
	UpdatedAt            time.Time        `json:"updatedAt"`

	Items []InstallItemResponse `json:"items,omitempty"`
}

// ListTasksResult is a paginated task list.
type ListTasksResult struct {
	Items      []TaskResponse `json:"items"`
	Total      int            `json:"total"`
	Page       int            `json:"page"`
	PageSize   int            `json:"pageSize"`
	TotalPages int            `json:"totalPages"`
}
