package model

import (
	"time"
)

type ChatSessionStatus string

const (
	ChatSessionRinging ChatSessionStatus = "ringing"
	ChatSessionActive  ChatSessionStatus = "active"
	ChatSessionEnded   ChatSessionStatus = "ended"
)

// ChatSession is the aggregate root for one paid live-chat engagement.
// It is created exactly once per paid order and never deleted; billing
// history needs the row even long after the conversation ended.
type ChatSession struct {
	ID               string
	OrderID          string
	ClientID         string
	PurchasedMinutes int
	Status           ChatSessionStatus
	AcceptedAt       *time.Time // set on ringing -> active
	EndedAt          *time.Time // set on -> ended
	CreatedAt        time.Time
}

func NewChatSession(id, orderID, clientID string, purchasedMinutes int, now time.Time) *ChatSession {
	return &ChatSession{
		ID:               id,
		OrderID:          orderID,
		ClientID:         clientID,
		PurchasedMinutes: purchasedMinutes,
		Status:           ChatSessionRinging,
		CreatedAt:        now,
	}
}

// PurchasedTime is the total billable window bought with the parent order.
func (s *ChatSession) PurchasedTime() time.Duration {
	return time.Duration(s.PurchasedMinutes) * time.Minute
}

// Elapsed returns how much billable time has passed at the given instant.
// It is derived purely from server-side timestamps, so client clock drift
// cannot influence billing. Zero before the session was ever accepted.
func (s *ChatSession) Elapsed(now time.Time) time.Duration {
	if s.AcceptedAt == nil {
		return 0
	}
	until := now
	if s.EndedAt != nil {
		until = *s.EndedAt
	}
	d := until.Sub(*s.AcceptedAt)
	if d < 0 {
		return 0
	}
	return d
}

// Remaining returns the billable time left, floored at zero.
func (s *ChatSession) Remaining(now time.Time) time.Duration {
	rem := s.PurchasedTime() - s.Elapsed(now)
	if rem < 0 {
		return 0
	}
	return rem
}

// Expired reports whether an accepted session has used up its purchased
// time. A ringing session never expires; its clock has not started.
func (s *ChatSession) Expired(now time.Time) bool {
	return s.AcceptedAt != nil && s.Remaining(now) == 0
}

// CanAccept reports whether the ringing -> active transition is legal
// for this row in isolation. The system-wide exclusivity check lives in
// the store's conditional update, not here.
func (s *ChatSession) CanAccept() bool {
	return s.Status == ChatSessionRinging
}

// CanEnd reports whether the session may move to ended.
func (s *ChatSession) CanEnd() bool {
	return s.Status == ChatSessionRinging || s.Status == ChatSessionActive
}
