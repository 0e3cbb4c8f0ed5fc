// Package memory is an in-process implementation of the event engine's stores.
//
// Every operation runs under one mutex, so the seat ledger's compare-and-commit
// has the same semantics as the conditional updates of the database stores.
// It backs STORE_DRIVER=memory and the service tests.
package memory

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/Shivanand-hulikatti/campus-events/internal/model"
	"github.com/Shivanand-hulikatti/campus-events/internal/repository"
	"github.com/Shivanand-hulikatti/campus-events/internal/timeofday"
)

// Store holds all events, registrations and user lists.
type Store struct {
	mu     sync.Mutex
	events map[string]*model.Event
	regs   map[string]*model.Registration
	users  map[string][]string
}

// New creates an empty store.
func New() *Store {
	return &Store{
		events: make(map[string]*model.Event),
		regs:   make(map[string]*model.Registration),
		users:  make(map[string][]string),
	}
}

// Events returns the event store view.
func (s *Store) Events() *EventStore { return &EventStore{s: s} }

// Registrations returns the registration store view.
func (s *Store) Registrations() *RegistrationStore { return &RegistrationStore{s: s} }

// Users returns the user store view.
func (s *Store) Users() *UserStore { return &UserStore{s: s} }

func copyEvent(e *model.Event) *model.Event {
	c := *e
	c.RegisteredUsers = append([]string{}, e.RegisteredUsers...)
	return &c
}

func copyRegistration(r *model.Registration) *model.Registration {
	c := *r
	if r.TeamMembers != nil {
		c.TeamMembers = append([]string{}, r.TeamMembers...)
	}
	return &c
}

func without(list []string, v string) []string {
	out := list[:0:0]
	for _, x := range list {
		if x != v {
			out = append(out, x)
		}
	}
	return out
}

func contains(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

// EventStore is the event view of a Store.
type EventStore struct{ s *Store }

// Create inserts e.
func (es *EventStore) Create(_ context.Context, e *model.Event) error {
	es.s.mu.Lock()
	defer es.s.mu.Unlock()

	if e.RegisteredUsers == nil {
		e.RegisteredUsers = []string{}
	}
	es.s.events[e.ID] = copyEvent(e)
	return nil
}

// GetByID returns the event or repository.ErrNotFound.
func (es *EventStore) GetByID(_ context.Context, id string) (*model.Event, error) {
	es.s.mu.Lock()
	defer es.s.mu.Unlock()

	e, ok := es.s.events[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return copyEvent(e), nil
}

// List returns all events, newest first.
func (es *EventStore) List(_ context.Context) ([]model.Event, error) {
	es.s.mu.Lock()
	defer es.s.mu.Unlock()

	out := make([]model.Event, 0, len(es.s.events))
	for _, e := range es.s.events {
		out = append(out, *copyEvent(e))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// ListActiveOn returns active events dated date.
func (es *EventStore) ListActiveOn(_ context.Context, date string) ([]model.Event, error) {
	es.s.mu.Lock()
	defer es.s.mu.Unlock()

	var out []model.Event
	for _, e := range es.s.events {
		if e.Status == model.EventActive && e.Date == date {
			out = append(out, *copyEvent(e))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// CompleteActiveBefore promotes active events dated before date. Events whose
// date is not a YYYY-MM-DD day are left alone and logged.
func (es *EventStore) CompleteActiveBefore(_ context.Context, date string) ([]string, error) {
	es.s.mu.Lock()
	defer es.s.mu.Unlock()

	var ids []string
	for _, e := range es.s.events {
		if e.Status != model.EventActive {
			continue
		}
		if !timeofday.ValidDate(e.Date) {
			slog.Warn("sweep_event_skipped", "event_id", e.ID, "date", e.Date, "reason", "malformed_date")
			continue
		}
		if e.Date < date {
			e.Status = model.EventCompleted
			ids = append(ids, e.ID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// CompareAndSetStatus moves the event from one status to another.
func (es *EventStore) CompareAndSetStatus(_ context.Context, id string, from, to model.EventStatus) (*model.Event, error) {
	es.s.mu.Lock()
	defer es.s.mu.Unlock()

	e, ok := es.s.events[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if e.Status != from {
		return nil, repository.ErrStaleState
	}
	e.Status = to
	return copyEvent(e), nil
}

// RegistrationStore is the registration and seat-ledger view of a Store.
type RegistrationStore struct{ s *Store }

// Reserve claims a seat and records reg in one step.
func (rs *RegistrationStore) Reserve(_ context.Context, reg *model.Registration) (*model.Event, error) {
	rs.s.mu.Lock()
	defer rs.s.mu.Unlock()

	e, ok := rs.s.events[reg.EventID]
	switch {
	case !ok:
		return nil, repository.ErrNotFound
	case e.Status != model.EventActive:
		return nil, repository.ErrEventClosed
	case contains(e.RegisteredUsers, reg.UserID):
		return nil, repository.ErrAlreadyRegistered
	case e.RegisteredCount >= e.TotalSeats:
		return nil, repository.ErrEventFull
	}

	e.RegisteredCount++
	e.RegisteredUsers = append(e.RegisteredUsers, reg.UserID)
	rs.s.regs[reg.ID] = copyRegistration(reg)
	if !contains(rs.s.users[reg.UserID], reg.EventID) {
		rs.s.users[reg.UserID] = append(rs.s.users[reg.UserID], reg.EventID)
	}
	return copyEvent(e), nil
}

// Release tombstones reg and frees its seat in one step.
func (rs *RegistrationStore) Release(_ context.Context, reg *model.Registration, at time.Time) (*model.Event, error) {
	rs.s.mu.Lock()
	defer rs.s.mu.Unlock()

	stored, ok := rs.s.regs[reg.ID]
	if !ok || !stored.Status.Live() {
		return nil, repository.ErrNotRegistered
	}
	e, ok := rs.s.events[stored.EventID]
	if !ok {
		return nil, repository.ErrNotFound
	}

	stored.Status = model.RegistrationCancelled
	stored.CancelledAt = &at
	if contains(e.RegisteredUsers, stored.UserID) {
		e.RegisteredUsers = without(e.RegisteredUsers, stored.UserID)
		if e.RegisteredCount > 0 {
			e.RegisteredCount--
		}
	}
	rs.s.users[stored.UserID] = without(rs.s.users[stored.UserID], stored.EventID)

	reg.Status = model.RegistrationCancelled
	reg.CancelledAt = &at
	return copyEvent(e), nil
}

// GetByID returns the registration or repository.ErrNotFound.
func (rs *RegistrationStore) GetByID(_ context.Context, id string) (*model.Registration, error) {
	rs.s.mu.Lock()
	defer rs.s.mu.Unlock()

	r, ok := rs.s.regs[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return copyRegistration(r), nil
}

// FindActive returns the user's live registration on an event.
func (rs *RegistrationStore) FindActive(_ context.Context, eventID, userID string) (*model.Registration, error) {
	rs.s.mu.Lock()
	defer rs.s.mu.Unlock()

	for _, r := range rs.s.regs {
		if r.EventID == eventID && r.UserID == userID && r.Status.Live() {
			return copyRegistration(r), nil
		}
	}
	return nil, repository.ErrNotFound
}

// ListByEvent returns every registration on an event, oldest first.
func (rs *RegistrationStore) ListByEvent(_ context.Context, eventID string) ([]model.Registration, error) {
	rs.s.mu.Lock()
	defer rs.s.mu.Unlock()

	var out []model.Registration
	for _, r := range rs.s.regs {
		if r.EventID == eventID {
			out = append(out, *copyRegistration(r))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// Decide records a decision on a pending registration.
func (rs *RegistrationStore) Decide(_ context.Context, id string, status model.RegistrationStatus, decidedBy string, at time.Time) (*model.Registration, error) {
	rs.s.mu.Lock()
	defer rs.s.mu.Unlock()

	r, ok := rs.s.regs[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if r.Status != model.RegistrationPending {
		return nil, repository.ErrStaleState
	}
	r.Status = status
	r.DecidedBy = decidedBy
	r.DecidedAt = &at
	return copyRegistration(r), nil
}

// UserStore is the user view of a Store.
type UserStore struct{ s *Store }

// RegisteredEvents returns the user's denormalized event list.
func (us *UserStore) RegisteredEvents(_ context.Context, userID string) ([]string, error) {
	us.s.mu.Lock()
	defer us.s.mu.Unlock()

	return append([]string{}, us.s.users[userID]...), nil
}
