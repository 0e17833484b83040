package adapters

import (
	"context"

	installsvc "fieldops_backend/internal/installs/service"
	procrepo "fieldops_backend/internal/procurement/repository"

	"github.com/google/uuid"
)

// InstallProcurementReader adapts the procurement repository to the
// logistics gate's purchase order lookup.
type InstallProcurementReader struct {
	repo *procrepo.Repository
}

func NewInstallProcurementReader(repo *procrepo.Repository) *InstallProcurementReader {
	return &InstallProcurementReader{repo: repo}
}

func (a *InstallProcurementReader) ListByOrder(ctx context.Context, orderID, tenantID uuid.UUID) ([]installsvc.PurchaseOrderRef, error) {
	pos, err := a.repo.ListByOrder(ctx, orderID, tenantID)
	if err != nil {
		return nil, err
	}

	refs := make([]installsvc.PurchaseOrderRef, 0, len(pos))
	for _, po := range pos {
		refs = append(refs, installsvc.PurchaseOrderRef{
			ID:           po.ID,
			PONo:         po.PONo,
			SupplierName: po.SupplierName,
			Status:       po.Status,
		})
	}
	return refs, nil
}

var _ installsvc.ProcurementReader = (*InstallProcurementReader)(nil)
