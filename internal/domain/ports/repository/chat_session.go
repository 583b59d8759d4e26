package repository

import (
	"context"
	"time"

	"advisor-live-chat/internal/domain/model"
)

// -----------------------------
// Chat Sessions
// -----------------------------

type ChatSessionRepository interface {
	// Save inserts a new session. Fails if a session already exists for
	// the same order id; CreateOnPayment relies on that for idempotency.
	Save(ctx context.Context, qx any, session *model.ChatSession) error
	FindByID(ctx context.Context, qx any, id string) (*model.ChatSession, error)
	FindByOrderID(ctx context.Context, qx any, orderID string) (*model.ChatSession, error)
	// FindActive returns the single active session, or ErrNotFound.
	FindActive(ctx context.Context, qx any) (*model.ChatSession, error)
	// FindRinging returns all ringing sessions, oldest first.
	FindRinging(ctx context.Context, qx any) ([]*model.ChatSession, error)
	// CountByStatus returns the number of sessions per status.
	CountByStatus(ctx context.Context, qx any) (map[string]int, error)
	// MarkActive atomically flips the session to active, stamping
	// acceptedAt, but only while the session is still ringing AND no
	// other session is active anywhere. Returns ErrAdvisorBusy when the
	// exclusivity slot is taken, ErrInvalidTransition when the row left
	// the ringing state, ErrNotFound for unknown ids.
	MarkActive(ctx context.Context, qx any, id string, acceptedAt time.Time) error
	// MarkEnded flips a ringing or active session to ended, stamping
	// endedAt. Returns ErrInvalidTransition if already ended.
	MarkEnded(ctx context.Context, qx any, id string, endedAt time.Time) error

	SaveMessage(ctx context.Context, qx any, message *model.ChatMessage) error
	// FindMessages returns the session transcript ordered by creation
	// time ascending, regardless of session status.
	FindMessages(ctx context.Context, qx any, sessionID string) ([]*model.ChatMessage, error)
}
