package orders

import (
	"context"

	"advisor-live-chat/internal/domain/ports/adapter"
)

var _ adapter.OrderService = (*NoopOrderService)(nil)

// NoopOrderService is used in dev mode when no order subsystem is
// reachable.
type NoopOrderService struct{}

func (NoopOrderService) MarkDelivered(ctx context.Context, orderID string) error { return nil }
