package repository

import "context"

// AvailabilityRepository holds the advisor's process-wide "accepting
// chats" switch. Not state-machine-governed; toggled freely at any time.
type AvailabilityRepository interface {
	SetAccepting(ctx context.Context, accepting bool) error
	Accepting(ctx context.Context) (bool, error)
}
