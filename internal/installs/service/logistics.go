package service

import (
	"context"
	"fmt"

	"fieldops_backend/internal/installs/transport"

	"github.com/google/uuid"
)

// readyPOStatuses are the purchase order statuses that count as arrived
// enough to install. Anything else blocks dispatch (unless forced).
var readyPOStatuses = map[string]bool{
	"RECEIVED":         true,
	"ARRIVED":          true,
	"COMPLETED":        true,
	"PARTIAL_RECEIVED": true,
}

// CheckLogistics reports whether every purchase order linked to the order
// has arrived. An order with no purchase orders is ready: nothing was
// bought, so nothing can be in transit.
func (s *Service) CheckLogistics(ctx context.Context, tenantID, orderID uuid.UUID) (transport.LogisticsResult, error) {
	pos, err := s.procurement.ListByOrder(ctx, orderID, tenantID)
	if err != nil {
		return transport.LogisticsResult{}, err
	}

	var blocking []string
	for _, po := range pos {
		if !readyPOStatuses[po.Status] {
			blocking = append(blocking, fmt.Sprintf("%s (%s)", po.PONo, po.Status))
		}
	}

	if len(blocking) > 0 {
		return transport.LogisticsResult{
			Ready:        false,
			Message:      fmt.Sprintf("%d purchase order(s) not yet arrived", len(blocking)),
			BlockingRefs: blocking,
		}, nil
	}

	return transport.LogisticsResult{Ready: true, Message: "all materials arrived"}, nil
}
