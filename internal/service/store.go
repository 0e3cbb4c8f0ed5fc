package service

import (
	"context"
	"time"

	"github.com/Shivanand-hulikatti/campus-events/internal/model"
)

// EventStore persists events. Implemented by repository.EventRepository,
// mongostore.EventStore and memory.EventStore.
type EventStore interface {
	Create(ctx context.Context, e *model.Event) error
	GetByID(ctx context.Context, id string) (*model.Event, error)
	List(ctx context.Context) ([]model.Event, error)
	ListActiveOn(ctx context.Context, date string) ([]model.Event, error)
	CompleteActiveBefore(ctx context.Context, date string) ([]string, error)
	CompareAndSetStatus(ctx context.Context, id string, from, to model.EventStatus) (*model.Event, error)
}

// SeatLedger is the storage-level compare-and-commit pair behind the
// capacity ledger. Both calls are single atomic operations in every store.
type SeatLedger interface {
	Reserve(ctx context.Context, reg *model.Registration) (*model.Event, error)
	Release(ctx context.Context, reg *model.Registration, at time.Time) (*model.Event, error)
}

// RegistrationStore persists registrations.
type RegistrationStore interface {
	SeatLedger
	GetByID(ctx context.Context, id string) (*model.Registration, error)
	FindActive(ctx context.Context, eventID, userID string) (*model.Registration, error)
	ListByEvent(ctx context.Context, eventID string) ([]model.Registration, error)
	Decide(ctx context.Context, id string, status model.RegistrationStatus, decidedBy string, at time.Time) (*model.Registration, error)
}

// UserStore reads the per-user registration list.
type UserStore interface {
	RegisteredEvents(ctx context.Context, userID string) ([]string, error)
}
