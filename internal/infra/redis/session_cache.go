package redis

import (
	"context"
	"encoding/json"
	"time"

	"advisor-live-chat/internal/domain/model"
	"advisor-live-chat/internal/infra/metrics"
)

// SessionCache keeps recently read session rows in Redis so that client
// billing polls do not hit Postgres every second. Best effort only; the
// store invalidates on every status transition.
type SessionCache struct {
	client *Client
	ttl    time.Duration
}

func NewSessionCache(client *Client, ttl time.Duration) *SessionCache {
	return &SessionCache{
		client: client,
		ttl:    ttl,
	}
}

func (c *SessionCache) StoreSession(ctx context.Context, session *model.ChatSession) error {
	key := "chat_session:" + session.ID
	data, err := json.Marshal(session)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, data, c.ttl)
}

func (c *SessionCache) GetSession(ctx context.Context, sessionID string) (*model.ChatSession, error) {
	key := "chat_session:" + sessionID
	data, err := c.client.Get(ctx, key)
	if err != nil {
		metrics.IncCacheRequest("session", "miss")
		return nil, err
	}

	var session model.ChatSession
	if err := json.Unmarshal([]byte(data), &session); err != nil {
		return nil, err
	}
	metrics.IncCacheRequest("session", "hit")
	return &session, nil
}

func (c *SessionCache) DeleteSession(ctx context.Context, sessionID string) error {
	key := "chat_session:" + sessionID
	return c.client.Del(ctx, key)
}
