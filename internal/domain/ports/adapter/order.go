package adapter

import "context"

// OrderService is the contract with the order subsystem. The live-chat
// core does not own order rows; it only marks them delivered when an
// active session concludes (the conversation is the delivery).
type OrderService interface {
	MarkDelivered(ctx context.Context, orderID string) error
}
