package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"advisor-live-chat/internal/infra/metrics"
	"advisor-live-chat/internal/usecase"
)

// ExpiryWorker periodically ends the active session once its purchased
// time is used up. Expiry is otherwise observed lazily on reads and
// sends; the sweep keeps a session whose client stopped polling from
// squatting on the exclusivity slot forever.
type ExpiryWorker struct {
	interval time.Duration
	sessions usecase.SessionUseCase
	log      *zerolog.Logger
}

func NewExpiryWorker(interval time.Duration, sessions usecase.SessionUseCase, logger *zerolog.Logger) *ExpiryWorker {
	wLog := logger.With().Str("component", "ExpiryWorker").Logger()
	return &ExpiryWorker{
		interval: interval,
		sessions: sessions,
		log:      &wLog,
	}
}

func (w *ExpiryWorker) Run(ctx context.Context) error {
	w.log.Info().Msg("Starting expiry worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping expiry worker")
			return ctx.Err()
		case <-ticker.C:
			n, err := w.sessions.FinishExpired(ctx)
			if err != nil {
				w.log.Error().Err(err).Msg("expiry sweep error")
			}
			if n > 0 {
				metrics.IncSessionsExpired(n)
				w.log.Info().Int("count", n).Msg("expired sessions ended")
			}
		}
	}
}
