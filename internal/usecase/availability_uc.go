package usecase

import (
	"context"
	"errors"

	"advisor-live-chat/internal/domain"
	"advisor-live-chat/internal/domain/ports/repository"
)

// Compile-time check
var _ AvailabilityUseCase = (*availabilityUC)(nil)

type Availability string

const (
	AvailabilityOnline  Availability = "online"
	AvailabilityOffline Availability = "offline"
	AvailabilityBusy    Availability = "busy"
)

// AvailabilityUseCase is the purchase-time gate. Its verdict is advisory:
// it holds no lock, so Accept re-checks exclusivity authoritatively and a
// payment that lands late still yields a queued ringing session.
type AvailabilityUseCase interface {
	Status(ctx context.Context) (Availability, error)
	SetAccepting(ctx context.Context, accepting bool) error
	// CheckPurchase must run before a live-chat payment is initiated.
	// Returns ErrAdvisorOffline or ErrAdvisorBusy; either one blocks the
	// purchase before money moves.
	CheckPurchase(ctx context.Context) error
}

type availabilityUC struct {
	flag     repository.AvailabilityRepository
	sessions repository.ChatSessionRepository
}

func NewAvailabilityUseCase(flag repository.AvailabilityRepository, sessions repository.ChatSessionRepository) *availabilityUC {
	return &availabilityUC{flag: flag, sessions: sessions}
}

func (a *availabilityUC) Status(ctx context.Context) (Availability, error) {
	accepting, err := a.flag.Accepting(ctx)
	if err != nil {
		return "", err
	}
	if !accepting {
		return AvailabilityOffline, nil
	}
	if _, err := a.sessions.FindActive(ctx, nil); err == nil {
		return AvailabilityBusy, nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		return "", err
	}
	return AvailabilityOnline, nil
}

func (a *availabilityUC) SetAccepting(ctx context.Context, accepting bool) error {
	return a.flag.SetAccepting(ctx, accepting)
}

func (a *availabilityUC) CheckPurchase(ctx context.Context) error {
	st, err := a.Status(ctx)
	if err != nil {
		return err
	}
	switch st {
	case AvailabilityOffline:
		return domain.ErrAdvisorOffline
	case AvailabilityBusy:
		return domain.ErrAdvisorBusy
	default:
		return nil
	}
}
