package notify

import (
	"context"

	"advisor-live-chat/internal/domain/ports/adapter"
)

var _ adapter.Notifier = (*NoopNotifier)(nil)

// NoopNotifier swallows everything. Used in dev mode and as a stand-in
// when no side-channel is configured.
type NoopNotifier struct{}

func (NoopNotifier) Notify(ctx context.Context, n adapter.Notification) error { return nil }
