package repository

import "fieldops_backend/internal/installs/transport"

// ToResponse converts an InstallTask to its transport representation.
func (t *InstallTask) ToResponse(items []InstallItem) transport.TaskResponse {
	resp := transport.TaskResponse{
		ID:                   t.ID,
		TaskNo:               t.TaskNo,
		OrderID:              t.OrderID,
		CustomerID:           t.CustomerID,
		AfterSalesID:         t.AfterSalesID,
		SourceType:           transport.SourceType(t.SourceType),
		Category:             transport.Category(t.Category),
		Status:               transport.TaskStatus(t.Status),
		Address:              t.Address,
		InstallerID:          t.InstallerID,
		DispatcherID:         t.DispatcherID,
		AssignedAt:           t.AssignedAt,
		ScheduledDate:        t.ScheduledDate,
		ScheduledTimeSlot:    t.ScheduledTimeSlot,
		LogisticsReady:       t.LogisticsReady,
		LaborFeeCents:        t.LaborFeeCents,
		FeeBreakdown:         t.FeeBreakdown,
		Notes:                t.Notes,
		CheckInAt:            t.CheckInAt,
		CheckInLocation:      t.CheckInLocation,
		CheckOutAt:           t.CheckOutAt,
		CheckOutLocation:     t.CheckOutLocation,
		CustomerSignatureURL: t.CustomerSignatureURL,
		SignedAt:             t.SignedAt,
		Checklist:            t.Checklist,
		ActualLaborFeeCents:  t.ActualLaborFeeCents,
		AdjustmentReason:     t.AdjustmentReason,
		Rating:               t.Rating,
		RatingComment:        t.RatingComment,
		ConfirmedAt:          t.ConfirmedAt,
		ConfirmedBy:          t.ConfirmedBy,
		CompletedAt:          t.CompletedAt,
		RejectReason:         t.RejectReason,
		RejectCount:          t.RejectCount,
		CreatedAt:            t.CreatedAt,
		UpdatedAt:            t.UpdatedAt,
	}

	for _, item := range items {
		resp.Items = append(resp.Items, item.ToResponse())
	}

	return resp
}

// ToResponse converts an InstallItem to its transport representation.
func (i *InstallItem) ToResponse() transport.InstallItemResponse {
	return transport.InstallItemResponse{
		ID:                      i.ID,
		OrderItemID:             i.OrderItemID,
		ProductName:             i.ProductName,
		RoomName:                i.RoomName,
		Quantity:                i.Quantity,
		ActualInstalledQuantity: i.ActualInstalledQuantity,
		IsInstalled:             i.IsInstalled,
		IssueCategory:           transport.IssueCategory(i.IssueCategory),
	}
}
