package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"advisor-live-chat/internal/domain"
	"advisor-live-chat/internal/domain/model"
	"advisor-live-chat/internal/domain/ports/repository"
	"advisor-live-chat/internal/infra/metrics"
)

// Compile-time check
var _ MessageUseCase = (*messageUC)(nil)

// RateLimiter bounds how fast one sender may append messages.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

type MessageUseCase interface {
	// Send appends a message to an active session with billing time left.
	// The timestamp is server-assigned.
	Send(ctx context.Context, sessionID, senderID string, role model.SenderRole, body string) (*model.ChatMessage, error)
	// List returns the transcript in creation order; history persists
	// after the session ended.
	List(ctx context.Context, sessionID string) ([]*model.ChatMessage, error)
}

type messageUC struct {
	sessions  repository.ChatSessionRepository
	limiter   RateLimiter
	maxLen    int
	rateLimit int
	rateWin   time.Duration
	now       func() time.Time
	log       *zerolog.Logger
}

func NewMessageUseCase(sessions repository.ChatSessionRepository, limiter RateLimiter, maxLen, rateLimit int, rateWindow time.Duration, logger *zerolog.Logger) *messageUC {
	ucLog := logger.With().Str("component", "MessageUC").Logger()
	return &messageUC{
		sessions:  sessions,
		limiter:   limiter,
		maxLen:    maxLen,
		rateLimit: rateLimit,
		rateWin:   rateWindow,
		now:       time.Now,
		log:       &ucLog,
	}
}

// WithClock overrides the time source for tests.
func (u *messageUC) WithClock(now func() time.Time) *messageUC {
	u.now = now
	return u
}

func (u *messageUC) Send(ctx context.Context, sessionID, senderID string, role model.SenderRole, body string) (*model.ChatMessage, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, domain.ErrEmptyMessage
	}
	if u.maxLen > 0 && len(body) > u.maxLen {
		return nil, domain.ErrMessageTooLong
	}
	if !model.ValidRole(role) || strings.TrimSpace(senderID) == "" {
		return nil, domain.ErrInvalidArgument
	}

	s, err := u.sessions.FindByID(ctx, nil, sessionID)
	if err != nil {
		return nil, err
	}
	now := u.now()
	// Expiry is observed lazily: a session may still read "active" after
	// its purchased time ran out, but no message gets through. The sweep
	// worker flips the status eventually.
	if s.Status != model.ChatSessionActive || s.Remaining(now) == 0 {
		return nil, domain.ErrSessionNotActive
	}

	if u.limiter != nil && u.rateLimit > 0 {
		key := fmt.Sprintf("chat_msg:%s:%s", sessionID, senderID)
		ok, lerr := u.limiter.Allow(ctx, key, u.rateLimit, u.rateWin)
		if lerr != nil {
			// Fail open: a limiter outage must not mute the chat.
			u.log.Warn().Err(lerr).Msg("rate limiter unavailable")
		} else if !ok {
			return nil, domain.ErrRateLimited
		}
	}

	m := &model.ChatMessage{
		ID:        ulid.Make().String(),
		SessionID: s.ID,
		SenderID:  senderID,
		Role:      role,
		Body:      body,
		CreatedAt: now,
	}
	if err := u.sessions.SaveMessage(ctx, nil, m); err != nil {
		return nil, err
	}
	metrics.IncChatMessage(string(role))
	return m, nil
}

func (u *messageUC) List(ctx context.Context, sessionID string) ([]*model.ChatMessage, error) {
	if _, err := u.sessions.FindByID(ctx, nil, sessionID); err != nil {
		return nil, err
	}
	return u.sessions.FindMessages(ctx, nil, sessionID)
}
