package model

import "time"

type SenderRole string

const (
	SenderClient SenderRole = "client"
	SenderAdmin  SenderRole = "admin"
)

// ChatMessage is one immutable line in a session's transcript. Ordering
// is by CreatedAt ascending; the ULID message id sorts the same way.
type ChatMessage struct {
	ID        string
	SessionID string
	SenderID  string
	Role      SenderRole
	Body      string
	CreatedAt time.Time
}

func ValidRole(r SenderRole) bool {
	return r == SenderClient || r == SenderAdmin
}
