package redis

import (
	"context"
	"errors"

	"advisor-live-chat/internal/domain/ports/repository"

	"github.com/go-redis/redis/v8"
)

var _ repository.AvailabilityRepository = (*AvailabilityRepo)(nil)

const acceptingKey = "advisor:accepting"

// AvailabilityRepo keeps the advisor's "accepting chats" switch in Redis
// so it survives restarts and is shared across instances.
type AvailabilityRepo struct {
	client *Client
}

func NewAvailabilityRepo(client *Client) *AvailabilityRepo {
	return &AvailabilityRepo{client: client}
}

func (r *AvailabilityRepo) SetAccepting(ctx context.Context, accepting bool) error {
	v := "0"
	if accepting {
		v = "1"
	}
	return r.client.Set(ctx, acceptingKey, v, 0)
}

func (r *AvailabilityRepo) Accepting(ctx context.Context) (bool, error) {
	v, err := r.client.Get(ctx, acceptingKey)
	if err != nil {
		// Unset means the advisor never went online.
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	return v == "1", nil
}
