package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"advisor-live-chat/internal/domain"
	"advisor-live-chat/internal/domain/model"
	"advisor-live-chat/internal/domain/ports/repository"
	"advisor-live-chat/internal/infra/redis"
)

// ChatSessionRepo is the durable record of sessions and transcripts.
// Pure data access; lifecycle policy lives in the use-case layer, except
// for MarkActive where the exclusivity invariant is enforced in SQL.
var _ repository.ChatSessionRepository = (*ChatSessionRepo)(nil)

type ChatSessionRepo struct {
	pool  *pgxpool.Pool
	cache *redis.SessionCache
}

func NewChatSessionRepo(pool *pgxpool.Pool, cache *redis.SessionCache) *ChatSessionRepo {
	return &ChatSessionRepo{pool: pool, cache: cache}
}

const sessionColumns = `id, order_id, client_id, purchased_minutes, status, accepted_at, ended_at, created_at`

func (r *ChatSessionRepo) Save(ctx context.Context, qx any, s *model.ChatSession) error {
	const q = `
INSERT INTO chat_sessions (id, order_id, client_id, purchased_minutes, status, created_at)
VALUES ($1,$2,$3,$4,$5,$6);`
	ex, err := getExecutor(r.pool, qx)
	if err != nil {
		return err
	}
	if _, err := ex.Exec(ctx, q, s.ID, s.OrderID, s.ClientID, s.PurchasedMinutes, string(s.Status), s.CreatedAt); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (r *ChatSessionRepo) FindByID(ctx context.Context, qx any, id string) (*model.ChatSession, error) {
	if r.cache != nil {
		if s, err := r.cache.GetSession(ctx, id); err == nil {
			return s, nil
		}
	}
	q := `SELECT ` + sessionColumns + ` FROM chat_sessions WHERE id=$1;`
	s, err := r.scanOne(ctx, qx, q, id)
	if err != nil {
		return nil, err
	}
	if r.cache != nil {
		_ = r.cache.StoreSession(ctx, s)
	}
	return s, nil
}

func (r *ChatSessionRepo) FindByOrderID(ctx context.Context, qx any, orderID string) (*model.ChatSession, error) {
	q := `SELECT ` + sessionColumns + ` FROM chat_sessions WHERE order_id=$1;`
	return r.scanOne(ctx, qx, q, orderID)
}

func (r *ChatSessionRepo) FindActive(ctx context.Context, qx any) (*model.ChatSession, error) {
	// The partial unique index guarantees at most one row matches.
	q := `SELECT ` + sessionColumns + ` FROM chat_sessions WHERE status='active';`
	return r.scanOne(ctx, qx, q)
}

func (r *ChatSessionRepo) FindRinging(ctx context.Context, qx any) ([]*model.ChatSession, error) {
	q := `SELECT ` + sessionColumns + ` FROM chat_sessions WHERE status='ringing' ORDER BY created_at ASC;`
	ex, err := getExecutor(r.pool, qx)
	if err != nil {
		return nil, err
	}
	rows, err := ex.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query ringing: %w", err)
	}
	defer rows.Close()
	var out []*model.ChatSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *ChatSessionRepo) CountByStatus(ctx context.Context, qx any) (map[string]int, error) {
	const q = `SELECT status, COUNT(*) FROM chat_sessions GROUP BY status;`
	ex, err := getExecutor(r.pool, qx)
	if err != nil {
		return nil, err
	}
	rows, err := ex.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("count sessions: %w", err)
	}
	defer rows.Close()
	out := map[string]int{}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		out[status] = count
	}
	return out, rows.Err()
}

// MarkActive is the single atomic check-and-set behind Accept: the row
// must still be ringing AND no other row may hold the active slot. A
// concurrent winner surfaces either as zero rows updated or as a unique
// violation on the active-slot index.
func (r *ChatSessionRepo) MarkActive(ctx context.Context, qx any, id string, acceptedAt time.Time) error {
	const q = `
UPDATE chat_sessions SET status='active', accepted_at=$2
 WHERE id=$1 AND status='ringing'
   AND NOT EXISTS (SELECT 1 FROM chat_sessions WHERE status='active');`
	ex, err := getExecutor(r.pool, qx)
	if err != nil {
		return err
	}
	tag, err := ex.Exec(ctx, q, id, acceptedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.ErrAdvisorBusy
		}
		return fmt.Errorf("mark active: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return r.explainFailedTransition(ctx, qx, id, model.ChatSessionRinging)
	}
	r.invalidate(ctx, id)
	return nil
}

func (r *ChatSessionRepo) MarkEnded(ctx context.Context, qx any, id string, endedAt time.Time) error {
	const q = `
UPDATE chat_sessions SET status='ended', ended_at=$2
 WHERE id=$1 AND status IN ('ringing','active');`
	ex, err := getExecutor(r.pool, qx)
	if err != nil {
		return err
	}
	tag, err := ex.Exec(ctx, q, id, endedAt)
	if err != nil {
		return fmt.Errorf("mark ended: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return r.explainFailedTransition(ctx, qx, id, "")
	}
	r.invalidate(ctx, id)
	return nil
}

// explainFailedTransition turns a zero-row conditional update into the
// precise domain error the caller needs.
func (r *ChatSessionRepo) explainFailedTransition(ctx context.Context, qx any, id string, want model.ChatSessionStatus) error {
	q := `SELECT ` + sessionColumns + ` FROM chat_sessions WHERE id=$1;`
	s, err := r.scanOne(ctx, qx, q, id)
	if err != nil {
		return err
	}
	if want != "" && s.Status == want {
		// Row state was fine; the active slot must have been taken.
		return domain.ErrAdvisorBusy
	}
	return domain.ErrInvalidTransition
}

func (r *ChatSessionRepo) SaveMessage(ctx context.Context, qx any, m *model.ChatMessage) error {
	const q = `
INSERT INTO chat_messages (id, session_id, sender_id, role, body, created_at)
VALUES ($1,$2,$3,$4,$5,$6);`
	ex, err := getExecutor(r.pool, qx)
	if err != nil {
		return err
	}
	if _, err := ex.Exec(ctx, q, m.ID, m.SessionID, m.SenderID, string(m.Role), m.Body, m.CreatedAt); err != nil {
		return fmt.Errorf("save message: %w", err)
	}
	return nil
}

func (r *ChatSessionRepo) FindMessages(ctx context.Context, qx any, sessionID string) ([]*model.ChatMessage, error) {
	const q = `
SELECT id, session_id, sender_id, role, body, created_at
  FROM chat_messages WHERE session_id=$1 ORDER BY created_at ASC;`
	ex, err := getExecutor(r.pool, qx)
	if err != nil {
		return nil, err
	}
	rows, err := ex.Query(ctx, q, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()
	var out []*model.ChatMessage
	for rows.Next() {
		var m model.ChatMessage
		var role string
		if err := rows.Scan(&m.ID, &m.SessionID, &m.SenderID, &role, &m.Body, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.Role = model.SenderRole(role)
		out = append(out, &m)
	}
	return out, rows.Err()
}

func (r *ChatSessionRepo) scanOne(ctx context.Context, qx any, q string, args ...any) (*model.ChatSession, error) {
	ex, err := getExecutor(r.pool, qx)
	if err != nil {
		return nil, err
	}
	row := ex.QueryRow(ctx, q, args...)
	s, err := scanSession(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scan session: %w", err)
	}
	return s, nil
}

func scanSession(row pgx.Row) (*model.ChatSession, error) {
	var s model.ChatSession
	var status string
	if err := row.Scan(&s.ID, &s.OrderID, &s.ClientID, &s.PurchasedMinutes, &status, &s.AcceptedAt, &s.EndedAt, &s.CreatedAt); err != nil {
		return nil, err
	}
	s.Status = model.ChatSessionStatus(status)
	return &s, nil
}

func (r *ChatSessionRepo) invalidate(ctx context.Context, id string) {
	if r.cache != nil {
		_ = r.cache.DeleteSession(ctx, id)
	}
}
