//go:build !integration

package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"advisor-live-chat/internal/domain"
	"advisor-live-chat/internal/domain/model"
)

type messageFixture struct {
	uc      *messageUC
	sess    *sessionUC
	repo    *memSessionRepo
	limiter *fakeRateLimiter
	clock   *fakeClock
}

func newMessageFixture(t *testing.T) *messageFixture {
	t.Helper()
	f := &messageFixture{
		repo:    newMemSessionRepo(),
		limiter: newFakeRateLimiter(),
		clock:   newFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)),
	}
	f.sess = NewSessionUseCase(
		f.repo, nil, &fakeOrderService{}, &captureNotifier{}, newMemLocker(),
		newTestTranslator(), []string{"admin-1"}, 10*time.Second, newTestLogger(),
	).WithClock(f.clock.Now)
	f.uc = NewMessageUseCase(f.repo, f.limiter, 4096, 5, time.Minute, newTestLogger()).WithClock(f.clock.Now)
	return f
}

// activeSession creates and accepts a session, returning its id.
func (f *messageFixture) activeSession(t *testing.T, minutes int) string {
	t.Helper()
	ctx := context.Background()
	s, err := f.sess.CreateOnPayment(ctx, "order-1", "client-1", minutes)
	if err != nil {
		t.Fatalf("CreateOnPayment: %v", err)
	}
	if _, err := f.sess.Accept(ctx, s.ID); err != nil {
		t.Fatalf("Accept: %v", err)
	}
	return s.ID
}

func TestSend(t *testing.T) {
	ctx := context.Background()

	t.Run("appends to an active session with a server timestamp", func(t *testing.T) {
		f := newMessageFixture(t)
		id := f.activeSession(t, 30)
		f.clock.Advance(time.Minute)

		m, err := f.uc.Send(ctx, id, "client-1", model.SenderClient, "hello")
		if err != nil {
			t.Fatalf("Send: %v", err)
		}
		if m.ID == "" {
			t.Error("message id not assigned")
		}
		if !m.CreatedAt.Equal(f.clock.Now()) {
			t.Errorf("created_at = %v, want server clock %v", m.CreatedAt, f.clock.Now())
		}

		if _, err := f.uc.Send(ctx, id, "admin-1", model.SenderAdmin, "hi there"); err != nil {
			t.Fatalf("admin send: %v", err)
		}
		msgs, err := f.uc.List(ctx, id)
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		if len(msgs) != 2 || msgs[0].Body != "hello" || msgs[1].Body != "hi there" {
			t.Errorf("transcript = %v, want both messages in order", msgs)
		}
	})

	t.Run("rejected while ringing", func(t *testing.T) {
		f := newMessageFixture(t)
		s, _ := f.sess.CreateOnPayment(ctx, "order-1", "client-1", 30)
		if _, err := f.uc.Send(ctx, s.ID, "client-1", model.SenderClient, "anyone there?"); !errors.Is(err, domain.ErrSessionNotActive) {
			t.Errorf("err = %v, want ErrSessionNotActive", err)
		}
	})

	t.Run("rejected after end", func(t *testing.T) {
		f := newMessageFixture(t)
		id := f.activeSession(t, 30)
		if _, err := f.sess.End(ctx, id); err != nil {
			t.Fatalf("End: %v", err)
		}
		if _, err := f.uc.Send(ctx, id, "client-1", model.SenderClient, "one more thing"); !errors.Is(err, domain.ErrSessionNotActive) {
			t.Errorf("err = %v, want ErrSessionNotActive", err)
		}
	})

	t.Run("rejected once purchased time ran out even before the sweep", func(t *testing.T) {
		f := newMessageFixture(t)
		id := f.activeSession(t, 10)
		f.clock.Advance(9 * time.Minute)
		if _, err := f.uc.Send(ctx, id, "client-1", model.SenderClient, "still here"); err != nil {
			t.Fatalf("send within window: %v", err)
		}
		f.clock.Advance(2 * time.Minute)
		// The sweep has not run; the row still reads active.
		if s, _ := f.sess.Get(ctx, id); s.Status != model.ChatSessionActive {
			t.Fatalf("precondition: status = %s, want active", s.Status)
		}
		if _, err := f.uc.Send(ctx, id, "client-1", model.SenderClient, "hello?"); !errors.Is(err, domain.ErrSessionNotActive) {
			t.Errorf("err = %v, want ErrSessionNotActive", err)
		}
	})

	t.Run("blank body", func(t *testing.T) {
		f := newMessageFixture(t)
		id := f.activeSession(t, 30)
		for _, body := range []string{"", "   ", "\n\t"} {
			if _, err := f.uc.Send(ctx, id, "client-1", model.SenderClient, body); !errors.Is(err, domain.ErrEmptyMessage) {
				t.Errorf("body %q: err = %v, want ErrEmptyMessage", body, err)
			}
		}
	})

	t.Run("oversized body", func(t *testing.T) {
		f := newMessageFixture(t)
		id := f.activeSession(t, 30)
		if _, err := f.uc.Send(ctx, id, "client-1", model.SenderClient, strings.Repeat("x", 4097)); !errors.Is(err, domain.ErrMessageTooLong) {
			t.Errorf("err = %v, want ErrMessageTooLong", err)
		}
		if _, err := f.uc.Send(ctx, id, "client-1", model.SenderClient, strings.Repeat("x", 4096)); err != nil {
			t.Errorf("body at limit: %v", err)
		}
	})

	t.Run("bad sender", func(t *testing.T) {
		f := newMessageFixture(t)
		id := f.activeSession(t, 30)
		if _, err := f.uc.Send(ctx, id, "client-1", model.SenderRole("bot"), "hi"); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("bad role: err = %v, want ErrInvalidArgument", err)
		}
		if _, err := f.uc.Send(ctx, id, "  ", model.SenderClient, "hi"); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("blank sender: err = %v, want ErrInvalidArgument", err)
		}
	})

	t.Run("unknown session", func(t *testing.T) {
		f := newMessageFixture(t)
		if _, err := f.uc.Send(ctx, "nope", "client-1", model.SenderClient, "hi"); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("err = %v, want ErrNotFound", err)
		}
	})
}

func TestSendRateLimit(t *testing.T) {
	ctx := context.Background()

	t.Run("per-sender cap", func(t *testing.T) {
		f := newMessageFixture(t)
		id := f.activeSession(t, 30)
		for i := 0; i < 5; i++ {
			if _, err := f.uc.Send(ctx, id, "client-1", model.SenderClient, "spam"); err != nil {
				t.Fatalf("send %d: %v", i, err)
			}
		}
		if _, err := f.uc.Send(ctx, id, "client-1", model.SenderClient, "spam"); !errors.Is(err, domain.ErrRateLimited) {
			t.Errorf("err = %v, want ErrRateLimited", err)
		}
		// The other side has its own budget.
		if _, err := f.uc.Send(ctx, id, "admin-1", model.SenderAdmin, "reply"); err != nil {
			t.Errorf("admin send: %v", err)
		}
	})

	t.Run("limiter outage fails open", func(t *testing.T) {
		f := newMessageFixture(t)
		id := f.activeSession(t, 30)
		f.limiter.err = errors.New("redis down")
		if _, err := f.uc.Send(ctx, id, "client-1", model.SenderClient, "hello"); err != nil {
			t.Errorf("Send with broken limiter: %v", err)
		}
	})
}

func TestListAfterEnd(t *testing.T) {
	ctx := context.Background()
	f := newMessageFixture(t)
	id := f.activeSession(t, 30)
	if _, err := f.uc.Send(ctx, id, "client-1", model.SenderClient, "thanks"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if _, err := f.sess.End(ctx, id); err != nil {
		t.Fatalf("End: %v", err)
	}

	msgs, err := f.uc.List(ctx, id)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Body != "thanks" {
		t.Errorf("transcript after end = %v, want the one message kept", msgs)
	}

	if _, err := f.uc.List(ctx, "nope"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("unknown session err = %v, want ErrNotFound", err)
	}
}
