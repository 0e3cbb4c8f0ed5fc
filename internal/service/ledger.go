package service

import (
	"context"
	"errors"
	"time"

	"github.com/Shivanand-hulikatti/campus-events/internal/apperrors"
	"github.com/Shivanand-hulikatti/campus-events/internal/model"
	"github.com/Shivanand-hulikatti/campus-events/internal/repository"
)

// CapacityLedger owns an event's seat bookkeeping. It never touches the
// counters itself; it delegates to the store's atomic primitives and turns
// their sentinels into typed errors.
type CapacityLedger struct {
	seats SeatLedger
}

// NewCapacityLedger returns a ledger over seats.
func NewCapacityLedger(seats SeatLedger) *CapacityLedger {
	return &CapacityLedger{seats: seats}
}

// TryJoin claims a seat for reg.UserID and records reg. It fails with
// ErrAlreadyRegistered, ErrEventFull, ErrWindowClosed or ErrEventNotFound.
func (l *CapacityLedger) TryJoin(ctx context.Context, reg *model.Registration) (*model.Event, error) {
	event, err := l.seats.Reserve(ctx, reg)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return nil, apperrors.ErrEventNotFound
		case errors.Is(err, repository.ErrEventClosed):
			return nil, apperrors.ErrWindowClosed
		case errors.Is(err, repository.ErrAlreadyRegistered):
			return nil, apperrors.ErrAlreadyRegistered
		case errors.Is(err, repository.ErrEventFull):
			return nil, apperrors.ErrEventFull
		default:
			return nil, apperrors.Storage(err)
		}
	}
	return event, nil
}

// Leave tombstones reg and frees its seat. Leaving twice fails with
// ErrNotRegistered.
func (l *CapacityLedger) Leave(ctx context.Context, reg *model.Registration, at time.Time) (*model.Event, error) {
	event, err := l.seats.Release(ctx, reg, at)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotRegistered):
			return nil, apperrors.ErrNotRegistered
		case errors.Is(err, repository.ErrNotFound):
			return nil, apperrors.ErrEventNotFound
		default:
			return nil, apperrors.Storage(err)
		}
	}
	return event, nil
}
