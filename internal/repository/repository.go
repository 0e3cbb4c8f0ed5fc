// Package repository implements the PostgreSQL stores for the event engine.
// It uses pgx directly (no ORM) for transparency and performance.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Shivanand-hulikatti/campus-events/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

// ErrEventFull is returned when an event has no remaining capacity.
var ErrEventFull = errors.New("event is fully booked")

// ErrAlreadyRegistered is returned when a user already holds a seat.
var ErrAlreadyRegistered = errors.New("user already registered for this event")

// ErrEventClosed is returned when a seat is requested on an event that is not active.
var ErrEventClosed = errors.New("event is not accepting registrations")

// ErrNotRegistered is returned when releasing a registration that no longer holds a seat.
var ErrNotRegistered = errors.New("registration is not active")

// ErrStaleState is returned when a conditional status update lost a race.
var ErrStaleState = errors.New("state changed concurrently")

// DayPattern matches the stored YYYY-MM-DD date shape. Only dates of this
// shape order correctly as text.
const DayPattern = `^[0-9]{4}-[0-9]{2}-[0-9]{2}$`

const uniqueViolation = "23505"

const eventColumns = `id, title, description, venue, date, start_time, end_time, time,
	registration_start_date, registration_end_date, status, total_seats,
	registered_count, registered_users, created_by, created_at`

const registrationColumns = `id, event_id, user_id, team_name, team_members, status, source,
	created_at, decided_at, decided_by, cancelled_at`

func scanEvent(row pgx.Row) (*model.Event, error) {
	var e model.Event
	err := row.Scan(
		&e.ID, &e.Title, &e.Description, &e.Venue, &e.Date, &e.StartTime, &e.EndTime, &e.Time,
		&e.RegistrationStartDate, &e.RegistrationEndDate, &e.Status, &e.TotalSeats,
		&e.RegisteredCount, &e.RegisteredUsers, &e.CreatedBy, &e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func scanRegistration(row pgx.Row) (*model.Registration, error) {
	var r model.Registration
	err := row.Scan(
		&r.ID, &r.EventID, &r.UserID, &r.TeamName, &r.TeamMembers, &r.Status, &r.Source,
		&r.CreatedAt, &r.DecidedAt, &r.DecidedBy, &r.CancelledAt,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// EventRepository handles persistence for events.
type EventRepository struct {
	db *pgxpool.Pool
}

// NewEventRepository constructs an EventRepository.
func NewEventRepository(db *pgxpool.Pool) *EventRepository {
	return &EventRepository{db: db}
}

// Create inserts a new event. The caller assigns the id.
func (r *EventRepository) Create(ctx context.Context, e *model.Event) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO events (id, title, description, venue, date, start_time, end_time, time,
			registration_start_date, registration_end_date, status, total_seats, created_by, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		e.ID, e.Title, e.Description, e.Venue, e.Date, e.StartTime, e.EndTime, e.Time,
		e.RegistrationStartDate, e.RegistrationEndDate, e.Status, e.TotalSeats, e.CreatedBy, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	if e.RegisteredUsers == nil {
		e.RegisteredUsers = []string{}
	}
	return nil
}

// List returns all events ordered by creation time descending.
func (r *EventRepository) List(ctx context.Context) ([]model.Event, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+eventColumns+` FROM events ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return collectEvents(rows)
}

// ListActiveOn returns the active events scheduled on date.
func (r *EventRepository) ListActiveOn(ctx context.Context, date string) ([]model.Event, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+eventColumns+` FROM events WHERE status = $1 AND date = $2 ORDER BY id`,
		model.EventActive, date,
	)
	if err != nil {
		return nil, fmt.Errorf("list active events on %s: %w", date, err)
	}
	return collectEvents(rows)
}

func collectEvents(rows pgx.Rows) ([]model.Event, error) {
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}

// GetByID returns a single event or ErrNotFound.
func (r *EventRepository) GetByID(ctx context.Context, id string) (*model.Event, error) {
	e, err := scanEvent(r.db.QueryRow(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id = $1`, id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	return e, nil
}

// CompleteActiveBefore promotes every active event dated strictly before date
// to completed in one statement and returns the promoted ids. Dates are stored
// as YYYY-MM-DD so text ordering is calendar ordering; rows whose date does not
// have that shape are never promoted.
func (r *EventRepository) CompleteActiveBefore(ctx context.Context, date string) ([]string, error) {
	rows, err := r.db.Query(ctx,
		`UPDATE events SET status = $1
		 WHERE status = $2 AND date ~ $4 AND date < $3
		 RETURNING id`,
		model.EventCompleted, model.EventActive, date, DayPattern,
	)
	if err != nil {
		return nil, fmt.Errorf("complete past events: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("collect completed ids: %w", err)
	}
	return ids, nil
}

// CompareAndSetStatus moves an event from one status to another only if it is
// still in the expected status. It returns ErrStaleState when the event exists
// but has moved on.
func (r *EventRepository) CompareAndSetStatus(ctx context.Context, id string, from, to model.EventStatus) (*model.Event, error) {
	e, err := scanEvent(r.db.QueryRow(ctx,
		`UPDATE events SET status = $3
		 WHERE id = $1 AND status = $2
		 RETURNING `+eventColumns,
		id, from, to,
	))
	if err == nil {
		return e, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("set event status: %w", err)
	}
	if _, err := r.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return nil, ErrStaleState
}

// RegistrationRepository handles persistence for registrations and owns the
// seat ledger operations, which touch events, registrations and users together.
type RegistrationRepository struct {
	db *pgxpool.Pool
}

// NewRegistrationRepository constructs a RegistrationRepository.
func NewRegistrationRepository(db *pgxpool.Pool) *RegistrationRepository {
	return &RegistrationRepository{db: db}
}

// Reserve claims a seat for reg.UserID on reg.EventID and records reg, all in
// one transaction.
//
// The seat claim is a single conditional UPDATE: the increment and the set
// insert only happen if the event is active, the user is not already in
// registered_users and registered_count < total_seats. Concurrent callers for
// the same event queue on the row lock and re-evaluate the WHERE clause against
// the committed row, so two requests can never both take the last seat and the
// same user can never be counted twice.
func (r *RegistrationRepository) Reserve(ctx context.Context, reg *model.Registration) (*model.Event, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	event, err := scanEvent(tx.QueryRow(ctx,
		`UPDATE events
		 SET registered_count = registered_count + 1,
		     registered_users = array_append(registered_users, $2)
		 WHERE id = $1
		   AND status = $3
		   AND registered_count < total_seats
		   AND NOT ($2 = ANY(registered_users))
		 RETURNING `+eventColumns,
		reg.EventID, reg.UserID, model.EventActive,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, diagnoseReserve(ctx, tx, reg.EventID, reg.UserID)
		}
		return nil, fmt.Errorf("claim seat: %w", err)
	}

	members := reg.TeamMembers
	if members == nil {
		members = []string{}
	}
	_, err = tx.Exec(ctx,
		`INSERT INTO registrations (id, event_id, user_id, team_name, team_members, status, source, created_at, decided_at, decided_by)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		reg.ID, reg.EventID, reg.UserID, reg.TeamName, members, reg.Status, reg.Source,
		reg.CreatedAt, reg.DecidedAt, reg.DecidedBy,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, ErrAlreadyRegistered
		}
		return nil, fmt.Errorf("insert registration: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO users (id, registered_events) VALUES ($1, ARRAY[$2::text])
		 ON CONFLICT (id) DO UPDATE
		 SET registered_events = array_append(users.registered_events, $2::text)
		 WHERE NOT ($2::text = ANY(users.registered_events))`,
		reg.UserID, reg.EventID,
	)
	if err != nil {
		return nil, fmt.Errorf("sync user registered events: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return event, nil
}

// diagnoseReserve explains why the conditional seat claim matched no row.
func diagnoseReserve(ctx context.Context, tx pgx.Tx, eventID, userID string) error {
	var (
		status     model.EventStatus
		count      int
		seats      int
		registered bool
	)
	err := tx.QueryRow(ctx,
		`SELECT status, registered_count, total_seats, $2 = ANY(registered_users)
		 FROM events WHERE id = $1`,
		eventID, userID,
	).Scan(&status, &count, &seats, &registered)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("diagnose seat claim: %w", err)
	}
	switch {
	case status != model.EventActive:
		return ErrEventClosed
	case registered:
		return ErrAlreadyRegistered
	default:
		return ErrEventFull
	}
}

// Release tombstones reg and gives its seat back, in one transaction. The count
// is only decremented when the user is actually in registered_users, so it can
// neither go negative nor drift from the set.
func (r *RegistrationRepository) Release(ctx context.Context, reg *model.Registration, at time.Time) (*model.Event, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx,
		`UPDATE registrations SET status = $2, cancelled_at = $3
		 WHERE id = $1 AND status <> $2`,
		reg.ID, model.RegistrationCancelled, at,
	)
	if err != nil {
		return nil, fmt.Errorf("tombstone registration: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrNotRegistered
	}

	event, err := scanEvent(tx.QueryRow(ctx,
		`UPDATE events
		 SET registered_count = GREATEST(registered_count - 1, 0),
		     registered_users = array_remove(registered_users, $2)
		 WHERE id = $1 AND $2 = ANY(registered_users)
		 RETURNING `+eventColumns,
		reg.EventID, reg.UserID,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		event, err = scanEvent(tx.QueryRow(ctx,
			`SELECT `+eventColumns+` FROM events WHERE id = $1`, reg.EventID,
		))
	}
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("release seat: %w", err)
	}

	_, err = tx.Exec(ctx,
		`UPDATE users SET registered_events = array_remove(registered_events, $2::text) WHERE id = $1`,
		reg.UserID, reg.EventID,
	)
	if err != nil {
		return nil, fmt.Errorf("sync user registered events: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	reg.Status = model.RegistrationCancelled
	reg.CancelledAt = &at
	return event, nil
}

// GetByID returns a single registration or ErrNotFound.
func (r *RegistrationRepository) GetByID(ctx context.Context, id string) (*model.Registration, error) {
	reg, err := scanRegistration(r.db.QueryRow(ctx,
		`SELECT `+registrationColumns+` FROM registrations WHERE id = $1`, id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get registration: %w", err)
	}
	return reg, nil
}

// FindActive returns the user's live registration for an event or ErrNotFound.
func (r *RegistrationRepository) FindActive(ctx context.Context, eventID, userID string) (*model.Registration, error) {
	reg, err := scanRegistration(r.db.QueryRow(ctx,
		`SELECT `+registrationColumns+` FROM registrations
		 WHERE event_id = $1 AND user_id = $2 AND status <> $3`,
		eventID, userID, model.RegistrationCancelled,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find registration: %w", err)
	}
	return reg, nil
}

// ListByEvent returns all registrations for a given event, tombstones included.
func (r *RegistrationRepository) ListByEvent(ctx context.Context, eventID string) ([]model.Registration, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+registrationColumns+` FROM registrations
		 WHERE event_id = $1
		 ORDER BY created_at ASC`,
		eventID,
	)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	defer rows.Close()

	var regs []model.Registration
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, fmt.Errorf("scan registration: %w", err)
		}
		regs = append(regs, *reg)
	}
	return regs, rows.Err()
}

// Decide records an admin decision on a pending registration. It returns
// ErrStaleState if the registration is no longer pending.
func (r *RegistrationRepository) Decide(ctx context.Context, id string, status model.RegistrationStatus, decidedBy string, at time.Time) (*model.Registration, error) {
	reg, err := scanRegistration(r.db.QueryRow(ctx,
		`UPDATE registrations SET status = $2, decided_by = $3, decided_at = $4
		 WHERE id = $1 AND status = $5
		 RETURNING `+registrationColumns,
		id, status, decidedBy, at, model.RegistrationPending,
	))
	if err == nil {
		return reg, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("decide registration: %w", err)
	}
	if _, err := r.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return nil, ErrStaleState
}

// UserRepository reads the denormalized per-user registration list.
type UserRepository struct {
	db *pgxpool.Pool
}

// NewUserRepository constructs a UserRepository.
func NewUserRepository(db *pgxpool.Pool) *UserRepository {
	return &UserRepository{db: db}
}

// RegisteredEvents returns the ids of events the user holds seats for. Unknown
// users have an empty list.
func (r *UserRepository) RegisteredEvents(ctx context.Context, userID string) ([]string, error) {
	var events []string
	err := r.db.QueryRow(ctx,
		`SELECT registered_events FROM users WHERE id = $1`, userID,
	).Scan(&events)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("get user registered events: %w", err)
	}
	return events, nil
}
