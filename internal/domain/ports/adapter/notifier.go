package adapter

import "context"

// NotificationKind labels the lifecycle transition a notification is
// about. The sink may use it to pick templates or routing.
type NotificationKind string

const (
	NotifyChatRinging  NotificationKind = "chat_ringing"
	NotifyChatAccepted NotificationKind = "chat_accepted"
	NotifyChatEnded    NotificationKind = "chat_ended"
	NotifyChatDeclined NotificationKind = "chat_declined"
)

// Notification is one fire-and-forget message to a user or to the admin
// side-channel.
type Notification struct {
	UserID         string
	Kind           NotificationKind
	Title          string
	Body           string
	RelatedOrderID string
}

// Notifier is the side-channel that informs client/admin of state
// transitions. Failures are logged and swallowed by the caller; a broken
// sink must never fail a lifecycle transition.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}
