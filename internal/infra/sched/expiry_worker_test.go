//go:build !integration

package sched

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"advisor-live-chat/internal/usecase"
)

type stubSweeper struct {
	usecase.SessionUseCase

	calls atomic.Int64
	err   error
}

func (s *stubSweeper) FinishExpired(ctx context.Context) (int, error) {
	s.calls.Add(1)
	if s.err != nil {
		return 0, s.err
	}
	return 1, nil
}

func TestExpiryWorkerSweeps(t *testing.T) {
	logger := zerolog.New(nil)
	sweeper := &stubSweeper{}
	w := NewExpiryWorker(5*time.Millisecond, sweeper, &logger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	deadline := time.After(time.Second)
	for sweeper.calls.Load() < 3 {
		select {
		case <-deadline:
			t.Fatalf("sweeps = %d, want at least 3", sweeper.calls.Load())
		case <-time.After(time.Millisecond):
		}
	}
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run returned %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after cancel")
	}
}

func TestExpiryWorkerKeepsRunningOnError(t *testing.T) {
	logger := zerolog.New(nil)
	sweeper := &stubSweeper{err: errors.New("db down")}
	w := NewExpiryWorker(5*time.Millisecond, sweeper, &logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	deadline := time.After(time.Second)
	for sweeper.calls.Load() < 2 {
		select {
		case <-deadline:
			t.Fatalf("sweeps = %d, want the loop to survive errors", sweeper.calls.Load())
		case <-time.After(time.Millisecond):
		}
	}
}
