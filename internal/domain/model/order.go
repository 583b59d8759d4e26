package model

import (
	"strings"

	"advisor-live-chat/internal/domain"
)

type ServiceKind string

const (
	ServiceOrdinary ServiceKind = "ordinary"
	ServiceLiveChat ServiceKind = "live_chat"
)

// PaymentConfirmed is the event the order subsystem delivers when money
// has cleared for an order. Delivery is at-least-once; consumers must be
// idempotent per OrderID.
type PaymentConfirmed struct {
	OrderID          string
	ClientID         string
	ServiceKind      ServiceKind
	PurchasedMinutes int
}

// Validate checks the event once at the payment boundary so nothing
// downstream has to re-inspect the payload.
func (e PaymentConfirmed) Validate() error {
	if strings.TrimSpace(e.OrderID) == "" || strings.TrimSpace(e.ClientID) == "" {
		return domain.ErrInvalidArgument
	}
	if e.ServiceKind == ServiceLiveChat && e.PurchasedMinutes <= 0 {
		return domain.ErrInvalidArgument
	}
	return nil
}
