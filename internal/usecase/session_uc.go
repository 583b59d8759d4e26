package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"advisor-live-chat/internal/domain"
	"advisor-live-chat/internal/domain/model"
	"advisor-live-chat/internal/domain/ports/adapter"
	"advisor-live-chat/internal/domain/ports/repository"
	"advisor-live-chat/internal/infra/i18n"
	"advisor-live-chat/internal/infra/logging"
	"advisor-live-chat/internal/infra/metrics"
)

// activeSlotKey is the single system-wide exclusivity slot: at most one
// session may be active at any instant.
const activeSlotKey = "chat:active_slot"

// Compile-time check
var _ SessionUseCase = (*sessionUC)(nil)

// BillingState is the lazily derived billing clock for one session.
// Nothing here is stored; it is recomputed from the two timestamps on
// every read, so a client that never polls simply never observes expiry.
type BillingState struct {
	SessionID        string
	Status           model.ChatSessionStatus
	PurchasedSeconds int64
	ElapsedSeconds   int64
	RemainingSeconds int64
}

type SessionUseCase interface {
	// HandlePaymentConfirmed reacts to the order subsystem's payment
	// event. Non-live-chat kinds are acknowledged with a nil session.
	HandlePaymentConfirmed(ctx context.Context, ev model.PaymentConfirmed) (*model.ChatSession, error)
	// CreateOnPayment is idempotent per order id; webhook retries must
	// never yield a second session for the same paid order.
	CreateOnPayment(ctx context.Context, orderID, clientID string, purchasedMinutes int) (*model.ChatSession, error)
	Accept(ctx context.Context, sessionID string) (*model.ChatSession, error)
	End(ctx context.Context, sessionID string) (*model.ChatSession, error)
	Get(ctx context.Context, sessionID string) (*model.ChatSession, error)
	GetByOrder(ctx context.Context, orderID string) (*model.ChatSession, error)
	ListRinging(ctx context.Context) ([]*model.ChatSession, error)
	Billing(ctx context.Context, sessionID string) (*BillingState, error)
	// FinishExpired ends the active session once its purchased time is
	// used up. Driven by the sweep worker; a send attempt observing zero
	// remaining time fails on its own without waiting for the sweep.
	FinishExpired(ctx context.Context) (int, error)
}

type sessionUC struct {
	sessions repository.ChatSessionRepository
	txm      repository.TransactionManager
	orders   adapter.OrderService
	notifier adapter.Notifier
	locker   repository.Locker
	tr       *i18n.Translator
	adminIDs []string
	lockTTL  time.Duration
	now      func() time.Time
	log      *zerolog.Logger
}

func NewSessionUseCase(
	sessions repository.ChatSessionRepository,
	txm repository.TransactionManager,
	orders adapter.OrderService,
	notifier adapter.Notifier,
	locker repository.Locker,
	tr *i18n.Translator,
	adminIDs []string,
	lockTTL time.Duration,
	logger *zerolog.Logger,
) *sessionUC {
	ucLog := logger.With().Str("component", "SessionUC").Logger()
	return &sessionUC{
		sessions: sessions,
		txm:      txm,
		orders:   orders,
		notifier: notifier,
		locker:   locker,
		tr:       tr,
		adminIDs: adminIDs,
		lockTTL:  lockTTL,
		now:      time.Now,
		log:      &ucLog,
	}
}

// WithClock overrides the engine's time source. Tests use it to drive the
// billing clock deterministically.
func (u *sessionUC) WithClock(now func() time.Time) *sessionUC {
	u.now = now
	return u
}

func (u *sessionUC) HandlePaymentConfirmed(ctx context.Context, ev model.PaymentConfirmed) (*model.ChatSession, error) {
	if err := ev.Validate(); err != nil {
		return nil, err
	}
	if ev.ServiceKind != model.ServiceLiveChat {
		return nil, nil
	}
	return u.CreateOnPayment(ctx, ev.OrderID, ev.ClientID, ev.PurchasedMinutes)
}

func (u *sessionUC) CreateOnPayment(ctx context.Context, orderID, clientID string, purchasedMinutes int) (*model.ChatSession, error) {
	if strings.TrimSpace(orderID) == "" || strings.TrimSpace(clientID) == "" || purchasedMinutes <= 0 {
		return nil, domain.ErrInvalidArgument
	}

	var s *model.ChatSession
	created := false
	create := func(ctx context.Context, qx repository.Tx) error {
		// Payment events are delivered at least once; an existing session
		// for the order is returned as-is, not duplicated.
		existing, err := u.sessions.FindByOrderID(ctx, qx, orderID)
		if err == nil {
			s = existing
			return nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		// Availability is deliberately NOT re-checked here: the
		// purchase-time gate was advisory, and once paid the client is
		// owed a session. A late busy/offline condition degrades to a
		// queued ringing request.
		fresh := model.NewChatSession(uuid.NewString(), orderID, clientID, purchasedMinutes, u.now())
		if err := u.sessions.Save(ctx, qx, fresh); err != nil {
			return err
		}
		s = fresh
		created = true
		return nil
	}

	var err error
	if u.txm != nil {
		err = u.txm.WithTx(ctx, pgx.TxOptions{}, create)
	} else {
		err = create(ctx, nil)
	}
	if err != nil {
		// A concurrent retry may have won the insert race on order_id.
		if existing, ferr := u.sessions.FindByOrderID(ctx, nil, orderID); ferr == nil {
			return existing, nil
		}
		return nil, err
	}
	if !created {
		return s, nil
	}

	metrics.IncSessionTransition(string(model.ChatSessionRinging))
	for _, adminID := range u.adminIDs {
		u.notify(ctx, adapter.Notification{
			UserID:         adminID,
			Kind:           adapter.NotifyChatRinging,
			Title:          u.tr.T("notif_ringing_title"),
			Body:           u.tr.T("notif_ringing_body", purchasedMinutes),
			RelatedOrderID: orderID,
		})
	}
	return s, nil
}

func (u *sessionUC) Accept(ctx context.Context, sessionID string) (*model.ChatSession, error) {
	defer logging.TraceDuration(u.log, "SessionUC.Accept")()
	ctx = logging.WithSessID(ctx, sessionID)
	s, err := u.sessions.FindByID(ctx, nil, sessionID)
	if err != nil {
		return nil, err
	}
	ctx = logging.WithOrderID(ctx, s.OrderID)
	if !s.CanAccept() {
		return nil, domain.ErrInvalidTransition
	}

	// Serialize concurrent accepts from multiple admin devices. The
	// conditional update below remains the invariant authority; losing a
	// race past the lock still cannot produce two active rows.
	if u.locker != nil {
		token, err := u.locker.TryLock(ctx, activeSlotKey, u.lockTTL)
		if err != nil {
			return nil, domain.ErrAdvisorBusy
		}
		defer func() {
			if uerr := u.locker.Unlock(ctx, activeSlotKey, token); uerr != nil {
				u.log.Warn().Err(uerr).Msg("active slot unlock failed; ttl will reclaim")
			}
		}()
	}

	if err := u.sessions.MarkActive(ctx, nil, sessionID, u.now()); err != nil {
		return nil, err
	}
	s, err = u.sessions.FindByID(ctx, nil, sessionID)
	if err != nil {
		return nil, err
	}

	metrics.IncSessionTransition(string(model.ChatSessionActive))
	u.notify(ctx, adapter.Notification{
		UserID:         s.ClientID,
		Kind:           adapter.NotifyChatAccepted,
		Title:          u.tr.T("notif_accepted_title"),
		Body:           u.tr.T("notif_accepted_body", s.PurchasedMinutes),
		RelatedOrderID: s.OrderID,
	})
	return s, nil
}

func (u *sessionUC) End(ctx context.Context, sessionID string) (*model.ChatSession, error) {
	defer logging.TraceDuration(u.log, "SessionUC.End")()
	ctx = logging.WithSessID(ctx, sessionID)
	s, err := u.sessions.FindByID(ctx, nil, sessionID)
	if err != nil {
		return nil, err
	}
	ctx = logging.WithOrderID(ctx, s.OrderID)
	if !s.CanEnd() {
		return nil, domain.ErrInvalidTransition
	}
	wasActive := s.Status == model.ChatSessionActive

	if err := u.sessions.MarkEnded(ctx, nil, sessionID, u.now()); err != nil {
		return nil, err
	}
	s, err = u.sessions.FindByID(ctx, nil, sessionID)
	if err != nil {
		return nil, err
	}

	metrics.IncSessionTransition(string(model.ChatSessionEnded))
	u.finish(ctx, s, wasActive)
	return s, nil
}

// finish runs the post-transition side effects of reaching ended. The
// transition itself has committed; failures here are logged, never
// propagated.
func (u *sessionUC) finish(ctx context.Context, s *model.ChatSession, wasActive bool) {
	if wasActive {
		// The conversation is the delivery, so the parent order is
		// fulfilled the moment an active session concludes.
		if err := u.orders.MarkDelivered(ctx, s.OrderID); err != nil {
			logging.With(ctx, u.log).Error().Err(err).Str("order_id", s.OrderID).Msg("mark delivered failed")
		}
		u.notify(ctx, adapter.Notification{
			UserID:         s.ClientID,
			Kind:           adapter.NotifyChatEnded,
			Title:          u.tr.T("notif_ended_title"),
			Body:           u.tr.T("notif_ended_body"),
			RelatedOrderID: s.OrderID,
		})
		return
	}
	// Declined while still ringing: no advisor ever connected, and the
	// order stays undelivered.
	u.notify(ctx, adapter.Notification{
		UserID:         s.ClientID,
		Kind:           adapter.NotifyChatDeclined,
		Title:          u.tr.T("notif_declined_title"),
		Body:           u.tr.T("notif_declined_body"),
		RelatedOrderID: s.OrderID,
	})
}

func (u *sessionUC) Get(ctx context.Context, sessionID string) (*model.ChatSession, error) {
	return u.sessions.FindByID(ctx, nil, sessionID)
}

func (u *sessionUC) GetByOrder(ctx context.Context, orderID string) (*model.ChatSession, error) {
	return u.sessions.FindByOrderID(ctx, nil, orderID)
}

func (u *sessionUC) ListRinging(ctx context.Context) ([]*model.ChatSession, error) {
	return u.sessions.FindRinging(ctx, nil)
}

func (u *sessionUC) Billing(ctx context.Context, sessionID string) (*BillingState, error) {
	s, err := u.sessions.FindByID(ctx, nil, sessionID)
	if err != nil {
		return nil, err
	}
	now := u.now()
	return &BillingState{
		SessionID:        s.ID,
		Status:           s.Status,
		PurchasedSeconds: int64(s.PurchasedTime() / time.Second),
		ElapsedSeconds:   int64(s.Elapsed(now) / time.Second),
		RemainingSeconds: int64(s.Remaining(now) / time.Second),
	}, nil
}

func (u *sessionUC) FinishExpired(ctx context.Context) (int, error) {
	s, err := u.sessions.FindActive(ctx, nil)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}
	if !s.Expired(u.now()) {
		return 0, nil
	}
	if err := u.sessions.MarkEnded(ctx, nil, s.ID, u.now()); err != nil {
		// The admin may have ended it between the read and the update.
		if errors.Is(err, domain.ErrInvalidTransition) {
			return 0, nil
		}
		return 0, err
	}
	s, err = u.sessions.FindByID(ctx, nil, s.ID)
	if err != nil {
		return 0, err
	}
	metrics.IncSessionTransition(string(model.ChatSessionEnded))
	u.finish(ctx, s, true)
	return 1, nil
}

func (u *sessionUC) notify(ctx context.Context, n adapter.Notification) {
	if u.notifier == nil {
		return
	}
	if err := u.notifier.Notify(ctx, n); err != nil {
		metrics.IncNotifyFailure(string(n.Kind))
		logging.With(ctx, u.log).Warn().Err(err).Str("kind", string(n.Kind)).Str("user_id", n.UserID).Msg("notification dropped")
	}
}
