package notify

import (
	"context"

	"github.com/rs/zerolog"

	"advisor-live-chat/internal/domain/ports/adapter"
	"advisor-live-chat/internal/infra/metrics"
	"advisor-live-chat/internal/infra/worker"
)

var _ adapter.Notifier = (*AsyncNotifier)(nil)

// AsyncNotifier pushes sends through the worker pool so a slow sink can
// never stall a lifecycle transition. Notify itself only fails when the
// queue is saturated; delivery errors are logged off the hot path.
type AsyncNotifier struct {
	inner adapter.Notifier
	pool  *worker.Pool
	log   *zerolog.Logger
}

func NewAsyncNotifier(inner adapter.Notifier, pool *worker.Pool, logger *zerolog.Logger) *AsyncNotifier {
	nLog := logger.With().Str("component", "AsyncNotifier").Logger()
	return &AsyncNotifier{inner: inner, pool: pool, log: &nLog}
}

func (a *AsyncNotifier) Notify(ctx context.Context, n adapter.Notification) error {
	return a.pool.Submit(func(taskCtx context.Context) error {
		if err := a.inner.Notify(taskCtx, n); err != nil {
			metrics.IncNotifyFailure(string(n.Kind))
			a.log.Warn().Err(err).Str("kind", string(n.Kind)).Str("user_id", n.UserID).Msg("notification delivery failed")
		}
		return nil
	})
}
