//go:build !integration

package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"advisor-live-chat/internal/domain"
	"advisor-live-chat/internal/domain/model"
	"advisor-live-chat/internal/domain/ports/adapter"
	"advisor-live-chat/internal/domain/ports/repository"
	"advisor-live-chat/internal/infra/i18n"
)

func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(nil)
	return &logger
}

func newTestTranslator() *i18n.Translator {
	tr, err := i18n.NewTranslator(i18n.LocalesFS, "en")
	if err != nil {
		panic(err)
	}
	return tr
}

// ---- fake clock ----

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock(start time.Time) *fakeClock {
	return &fakeClock{t: start}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// ---- in-memory session repository ----

// memSessionRepo mirrors the Postgres repo's transition semantics,
// including the atomic check-and-set of MarkActive, so engine tests
// exercise the same error surface.
type memSessionRepo struct {
	mu       sync.Mutex
	byID     map[string]*model.ChatSession
	byOrder  map[string]string
	messages map[string][]*model.ChatMessage
}

func newMemSessionRepo() *memSessionRepo {
	return &memSessionRepo{
		byID:     map[string]*model.ChatSession{},
		byOrder:  map[string]string{},
		messages: map[string][]*model.ChatMessage{},
	}
}

func clone(s *model.ChatSession) *model.ChatSession {
	cp := *s
	return &cp
}

func (m *memSessionRepo) Save(ctx context.Context, qx any, s *model.ChatSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byOrder[s.OrderID]; ok {
		return fmt.Errorf("duplicate order %s", s.OrderID)
	}
	m.byID[s.ID] = clone(s)
	m.byOrder[s.OrderID] = s.ID
	return nil
}

func (m *memSessionRepo) FindByID(ctx context.Context, qx any, id string) (*model.ChatSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s := m.byID[id]; s != nil {
		return clone(s), nil
	}
	return nil, domain.ErrNotFound
}

func (m *memSessionRepo) FindByOrderID(ctx context.Context, qx any, orderID string) (*model.ChatSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.byOrder[orderID]; ok {
		return clone(m.byID[id]), nil
	}
	return nil, domain.ErrNotFound
}

func (m *memSessionRepo) FindActive(ctx context.Context, qx any) (*model.ChatSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.byID {
		if s.Status == model.ChatSessionActive {
			return clone(s), nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memSessionRepo) FindRinging(ctx context.Context, qx any) ([]*model.ChatSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.ChatSession
	for _, s := range m.byID {
		if s.Status == model.ChatSessionRinging {
			out = append(out, clone(s))
		}
	}
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j].CreatedAt.Before(out[i].CreatedAt) {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	return out, nil
}

func (m *memSessionRepo) CountByStatus(ctx context.Context, qx any) (map[string]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]int{}
	for _, s := range m.byID {
		out[string(s.Status)]++
	}
	return out, nil
}

func (m *memSessionRepo) MarkActive(ctx context.Context, qx any, id string, acceptedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.byID[id]
	if s == nil {
		return domain.ErrNotFound
	}
	if s.Status != model.ChatSessionRinging {
		return domain.ErrInvalidTransition
	}
	for _, other := range m.byID {
		if other.Status == model.ChatSessionActive {
			return domain.ErrAdvisorBusy
		}
	}
	t := acceptedAt
	s.Status = model.ChatSessionActive
	s.AcceptedAt = &t
	return nil
}

func (m *memSessionRepo) MarkEnded(ctx context.Context, qx any, id string, endedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.byID[id]
	if s == nil {
		return domain.ErrNotFound
	}
	if s.Status == model.ChatSessionEnded {
		return domain.ErrInvalidTransition
	}
	t := endedAt
	s.Status = model.ChatSessionEnded
	s.EndedAt = &t
	return nil
}

func (m *memSessionRepo) SaveMessage(ctx context.Context, qx any, msg *model.ChatMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.byID[msg.SessionID] == nil {
		return domain.ErrNotFound
	}
	cp := *msg
	m.messages[msg.SessionID] = append(m.messages[msg.SessionID], &cp)
	return nil
}

func (m *memSessionRepo) FindMessages(ctx context.Context, qx any, sessionID string) ([]*model.ChatMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*model.ChatMessage, 0, len(m.messages[sessionID]))
	for _, msg := range m.messages[sessionID] {
		cp := *msg
		out = append(out, &cp)
	}
	return out, nil
}

func (m *memSessionRepo) countActive() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, s := range m.byID {
		if s.Status == model.ChatSessionActive {
			n++
		}
	}
	return n
}

// ---- fake transaction manager ----

// memTxManager runs the callback directly; the in-memory repo has no
// transactions to speak of.
type memTxManager struct {
	mu    sync.Mutex
	calls int
}

func (m *memTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	return fn(ctx, nil)
}

// ---- capture notifier ----

type captureNotifier struct {
	mu   sync.Mutex
	sent []adapter.Notification
	err  error
}

func (n *captureNotifier) Notify(ctx context.Context, note adapter.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, note)
	return nil
}

func (n *captureNotifier) kinds() []adapter.NotificationKind {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]adapter.NotificationKind, 0, len(n.sent))
	for _, s := range n.sent {
		out = append(out, s.Kind)
	}
	return out
}

// ---- fake order service ----

type fakeOrderService struct {
	mu        sync.Mutex
	delivered []string
	err       error
}

func (f *fakeOrderService) MarkDelivered(ctx context.Context, orderID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.delivered = append(f.delivered, orderID)
	return nil
}

func (f *fakeOrderService) deliveredCount(orderID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, id := range f.delivered {
		if id == orderID {
			n++
		}
	}
	return n
}

// ---- fake locker ----

// memLocker is a process-local stand-in for the Redis active-slot lock.
type memLocker struct {
	mu   sync.Mutex
	held map[string]string
}

func newMemLocker() *memLocker {
	return &memLocker{held: map[string]string{}}
}

func (l *memLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.held[key]; ok {
		return "", domain.ErrAdvisorBusy
	}
	token := fmt.Sprintf("tok-%d", len(l.held)+1)
	l.held[key] = token
	return token, nil
}

func (l *memLocker) Unlock(ctx context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] == token {
		delete(l.held, key)
	}
	return nil
}

// ---- fake rate limiter ----

type fakeRateLimiter struct {
	mu     sync.Mutex
	counts map[string]int
	err    error
}

func newFakeRateLimiter() *fakeRateLimiter {
	return &fakeRateLimiter{counts: map[string]int{}}
}

func (f *fakeRateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	f.counts[key]++
	return f.counts[key] <= limit, nil
}
