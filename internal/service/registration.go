package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/Shivanand-hulikatti/campus-events/internal/apperrors"
	"github.com/Shivanand-hulikatti/campus-events/internal/model"
	"github.com/Shivanand-hulikatti/campus-events/internal/repository"
	"github.com/Shivanand-hulikatti/campus-events/internal/timeofday"
)

// CancelNotice is how long before the event day a registration may still be
// cancelled.
const CancelNotice = 48 * time.Hour

// Registrations is the registration state machine:
//
//	pending -> approved | rejected    (Decide)
//	any live status -> cancelled      (Cancel, tombstone)
//
// Direct joins skip the approval step and start approved.
type Registrations struct {
	store  RegistrationStore
	ledger *CapacityLedger
	gate   Gate
	loc    *time.Location
	newID  func() string
}

// NewRegistrations wires the state machine to its store.
func NewRegistrations(store RegistrationStore, loc *time.Location) *Registrations {
	if loc == nil {
		loc = time.UTC
	}
	return &Registrations{
		store:  store,
		ledger: NewCapacityLedger(store),
		gate:   NewGate(loc),
		loc:    loc,
		newID:  uuid.NewString,
	}
}

// Submit reserves a seat on event for userID and records the registration.
// Workflow submissions start pending; direct ones are approved immediately.
func (r *Registrations) Submit(ctx context.Context, event *model.Event, userID string, team model.Team, source model.RegistrationSource, now time.Time) (*model.Registration, *model.Event, error) {
	if !r.gate.IsOpen(event, now) {
		return nil, nil, apperrors.ErrWindowClosed
	}

	reg := &model.Registration{
		ID:          r.newID(),
		EventID:     event.ID,
		UserID:      userID,
		TeamName:    team.Name,
		TeamMembers: team.Members,
		Status:      model.RegistrationPending,
		Source:      source,
		CreatedAt:   now.UTC(),
	}
	if source == model.SourceDirect {
		decided := now.UTC()
		reg.Status = model.RegistrationApproved
		reg.DecidedAt = &decided
	}

	updated, err := r.ledger.TryJoin(ctx, reg)
	if err != nil {
		return nil, nil, err
	}
	return reg, updated, nil
}

// Decide approves or rejects a pending registration. Capacity is untouched;
// the seat was reserved at submission.
func (r *Registrations) Decide(ctx context.Context, reg *model.Registration, approve bool, adminID string, now time.Time) (*model.Registration, error) {
	if reg.Status != model.RegistrationPending {
		return nil, apperrors.ErrAlreadyDecided
	}
	status := model.RegistrationRejected
	if approve {
		status = model.RegistrationApproved
	}

	decided, err := r.store.Decide(ctx, reg.ID, status, adminID, now.UTC())
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrStaleState):
			return nil, apperrors.ErrAlreadyDecided
		case errors.Is(err, repository.ErrNotFound):
			return nil, apperrors.ErrRegistrationMissing
		default:
			return nil, apperrors.Storage(err)
		}
	}
	return decided, nil
}

// CanCancel reports whether a registration on event may still be cancelled
// at now: at least two full days must remain before 00:00 of the event day.
// An unreadable event date does not block cancellation.
func (r *Registrations) CanCancel(event *model.Event, now time.Time) bool {
	day, err := timeofday.ParseDay(event.Date, r.loc)
	if err != nil {
		return true
	}
	return day.Sub(now) >= CancelNotice
}

// Cancel tombstones reg and releases its seat, subject to the notice period.
func (r *Registrations) Cancel(ctx context.Context, reg *model.Registration, event *model.Event, now time.Time) (*model.Event, error) {
	if !reg.Status.Live() {
		return nil, apperrors.ErrNotRegistered
	}
	if !r.CanCancel(event, now) {
		return nil, apperrors.ErrTooLateToCancel
	}
	return r.ledger.Leave(ctx, reg, now.UTC())
}
