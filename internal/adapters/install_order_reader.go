package adapters

import (
	"context"

	installsvc "fieldops_backend/internal/installs/service"
	ordersrepo "fieldops_backend/internal/orders/repository"

	"github.com/google/uuid"
)

// InstallOrderReader adapts the orders repository to the narrow order
// lookup the installs module depends on.
type InstallOrderReader struct {
	repo *ordersrepo.Repository
}

func NewInstallOrderReader(repo *ordersrepo.Repository) *InstallOrderReader {
	return &InstallOrderReader{repo: repo}
}

func (a *InstallOrderReader) GetOrder(ctx context.Context, orderID, tenantID uuid.UUID) (*installsvc.OrderInfo, error) {
	order, err := a.repo.GetByID(ctx, orderID, tenantID)
	if err != nil {
		return nil, err
	}
	return &installsvc.OrderInfo{
		ID:              order.ID,
		OrderNo:         order.OrderNo,
		CustomerID:      order.CustomerID,
		DeliveryAddress: order.DeliveryAddress,
	}, nil
}

func (a *InstallOrderReader) ListOrderLines(ctx context.Context, orderID, tenantID uuid.UUID) ([]installsvc.OrderLine, error) {
	items, err := a.repo.ListItems(ctx, orderID, tenantID)
	if err != nil {
		return nil, err
	}

	lines := make([]installsvc.OrderLine, 0, len(items))
	for _, item := range items {
		lines = append(lines, installsvc.OrderLine{
			ID:          item.ID,
			ProductName: item.ProductName,
			RoomName:    item.RoomName,
			Quantity:    item.Quantity,
		})
	}
	return lines, nil
}

var _ installsvc.OrderReader = (*InstallOrderReader)(nil)
