// Package service implements the event lifecycle and registration rules and
// orchestrates them between the HTTP handlers and the stores.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Shivanand-hulikatti/campus-events/internal/apperrors"
	"github.com/Shivanand-hulikatti/campus-events/internal/model"
	"github.com/Shivanand-hulikatti/campus-events/internal/repository"
	"github.com/Shivanand-hulikatti/campus-events/internal/timeofday"
)

// MaxSeats bounds an event's capacity.
const MaxSeats = 100_000

// EventService orchestrates event-related business operations.
type EventService struct {
	events        EventStore
	registrations RegistrationStore
	users         UserStore
	workflow      *Registrations
	sweeper       *Sweeper
	loc           *time.Location
	newID         func() string
}

// NewEventService constructs an EventService with its dependencies. loc is the
// civil calendar event dates and times are read in.
func NewEventService(
	events EventStore,
	registrations RegistrationStore,
	users UserStore,
	loc *time.Location,
) *EventService {
	if loc == nil {
		loc = time.UTC
	}
	return &EventService{
		events:        events,
		registrations: registrations,
		users:         users,
		workflow:      NewRegistrations(registrations, loc),
		sweeper:       NewSweeper(events, loc),
		loc:           loc,
		newID:         uuid.NewString,
	}
}

// Sweeper returns the completion sweeper so callers can schedule it.
func (s *EventService) Sweeper() *Sweeper {
	return s.sweeper
}

// CreateEvent validates the request and stores a new event owned by adminID.
func (s *EventService) CreateEvent(ctx context.Context, adminID string, req model.CreateEventRequest, now time.Time) (*model.Event, error) {
	req.Title = strings.TrimSpace(req.Title)
	req.Date = strings.TrimSpace(req.Date)
	req.RegistrationStartDate = strings.TrimSpace(req.RegistrationStartDate)
	req.RegistrationEndDate = strings.TrimSpace(req.RegistrationEndDate)

	if req.Title == "" {
		return nil, apperrors.Invalid("title is required")
	}
	if !timeofday.ValidDate(req.Date) {
		return nil, apperrors.Invalid("date must be YYYY-MM-DD")
	}
	if req.TotalSeats <= 0 {
		return nil, apperrors.Invalid("totalSeats must be a positive integer")
	}
	if req.TotalSeats > MaxSeats {
		return nil, apperrors.Invalid("totalSeats cannot exceed 100,000")
	}
	for field, v := range map[string]string{
		"registrationStartDate": req.RegistrationStartDate,
		"registrationEndDate":   req.RegistrationEndDate,
	} {
		if v != "" && !timeofday.ValidDate(v) {
			return nil, apperrors.Invalid(field + " must be YYYY-MM-DD")
		}
	}
	if req.RegistrationStartDate != "" && req.RegistrationEndDate != "" &&
		req.RegistrationStartDate > req.RegistrationEndDate {
		return nil, apperrors.Invalid("registrationStartDate must not be after registrationEndDate")
	}

	switch req.Status {
	case "":
		req.Status = model.EventActive
	case model.EventPending, model.EventActive:
	default:
		return nil, apperrors.Invalid("status must be pending or active")
	}

	event := &model.Event{
		ID:                    s.newID(),
		Title:                 req.Title,
		Description:           strings.TrimSpace(req.Description),
		Venue:                 strings.TrimSpace(req.Venue),
		Date:                  req.Date,
		StartTime:             strings.TrimSpace(req.StartTime),
		EndTime:               strings.TrimSpace(req.EndTime),
		Time:                  strings.TrimSpace(req.Time),
		RegistrationStartDate: req.RegistrationStartDate,
		RegistrationEndDate:   req.RegistrationEndDate,
		Status:                req.Status,
		TotalSeats:            req.TotalSeats,
		RegisteredUsers:       []string{},
		CreatedBy:             adminID,
		CreatedAt:             now.UTC(),
	}
	if err := s.events.Create(ctx, event); err != nil {
		return nil, apperrors.Storage(err)
	}
	return event, nil
}

// ListEvents returns all events, newest first.
func (s *EventService) ListEvents(ctx context.Context) ([]model.Event, error) {
	events, err := s.events.List(ctx)
	if err != nil {
		return nil, apperrors.Storage(err)
	}
	if events == nil {
		events = []model.Event{}
	}
	return events, nil
}

// GetEvent returns a single event by ID.
func (s *EventService) GetEvent(ctx context.Context, id string) (*model.Event, error) {
	if id == "" {
		return nil, apperrors.Invalid("event id is required")
	}
	event, err := s.events.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.ErrEventNotFound
		}
		return nil, apperrors.Storage(err)
	}
	return event, nil
}

// ListRegistrations returns every registration on an event, tombstones included.
func (s *EventService) ListRegistrations(ctx context.Context, eventID string) ([]model.Registration, error) {
	if _, err := s.GetEvent(ctx, eventID); err != nil {
		return nil, err
	}
	regs, err := s.registrations.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, apperrors.Storage(err)
	}
	if regs == nil {
		regs = []model.Registration{}
	}
	return regs, nil
}

// JoinDirect registers userID without an approval step and returns the
// updated event.
func (s *EventService) JoinDirect(ctx context.Context, eventID, userID string, now time.Time) (*model.Event, error) {
	event, err := s.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	_, updated, err := s.workflow.Submit(ctx, event, userID, model.Team{}, model.SourceDirect, now)
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// RequestJoin submits a workflow registration awaiting admin approval. The
// seat is reserved immediately.
func (s *EventService) RequestJoin(ctx context.Context, eventID, userID string, team model.Team, now time.Time) (*model.Registration, error) {
	team.Name = strings.TrimSpace(team.Name)
	if team.Name == "" && len(team.Members) > 0 {
		return nil, apperrors.Invalid("teamName is required when teamMembers are given")
	}
	event, err := s.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	reg, _, err := s.workflow.Submit(ctx, event, userID, team, model.SourceWorkflow, now)
	if err != nil {
		return nil, err
	}
	return reg, nil
}

// Decide approves or rejects a pending registration.
func (s *EventService) Decide(ctx context.Context, registrationID string, approve bool, adminID string, now time.Time) (*model.Registration, error) {
	reg, err := s.getRegistration(ctx, registrationID)
	if err != nil {
		return nil, err
	}
	return s.workflow.Decide(ctx, reg, approve, adminID, now)
}

// CancelJoin cancels userID's live registration on an event, whichever path
// created it.
func (s *EventService) CancelJoin(ctx context.Context, eventID, userID string, now time.Time) (*model.Event, error) {
	event, err := s.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	reg, err := s.registrations.FindActive(ctx, eventID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.ErrNotRegistered
		}
		return nil, apperrors.Storage(err)
	}
	return s.workflow.Cancel(ctx, reg, event, now)
}

// CancelRegistration cancels a registration by id on behalf of its owner.
func (s *EventService) CancelRegistration(ctx context.Context, registrationID, userID string, now time.Time) (*model.Event, error) {
	reg, err := s.getRegistration(ctx, registrationID)
	if err != nil {
		return nil, err
	}
	if reg.UserID != userID {
		return nil, apperrors.ErrNotOwner
	}
	event, err := s.GetEvent(ctx, reg.EventID)
	if err != nil {
		return nil, err
	}
	return s.workflow.Cancel(ctx, reg, event, now)
}

// AdminSetStatus changes an event's status on behalf of the admin who created
// it. Setting the current status again is a no-op.
func (s *EventService) AdminSetStatus(ctx context.Context, eventID, adminID string, status model.EventStatus) (*model.Event, error) {
	if !status.Valid() {
		return nil, apperrors.Invalid(fmt.Sprintf("unknown status %q", status))
	}
	event, err := s.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event.CreatedBy != adminID {
		return nil, apperrors.ErrNotEventCreator
	}
	if event.Status == status {
		return event, nil
	}
	if !event.Status.CanTransitionTo(status) {
		return nil, apperrors.New(apperrors.CodeInvalidStatusTransition,
			fmt.Sprintf("Cannot change event status from %s to %s.", event.Status, status))
	}

	updated, err := s.events.CompareAndSetStatus(ctx, eventID, event.Status, status)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrStaleState):
			return nil, apperrors.New(apperrors.CodeInvalidStatusTransition,
				"Event status changed concurrently, please retry.")
		case errors.Is(err, repository.ErrNotFound):
			return nil, apperrors.ErrEventNotFound
		default:
			return nil, apperrors.Storage(err)
		}
	}
	return updated, nil
}

// RunSweep runs the completion sweep immediately, bypassing the lease.
func (s *EventService) RunSweep(ctx context.Context, now time.Time) (SweepResult, error) {
	res, err := s.sweeper.Run(ctx, now)
	if err != nil {
		return res, apperrors.Storage(err)
	}
	return res, nil
}

// UserEvents returns the ids of events userID currently holds seats for.
func (s *EventService) UserEvents(ctx context.Context, userID string) ([]string, error) {
	events, err := s.users.RegisteredEvents(ctx, userID)
	if err != nil {
		return nil, apperrors.Storage(err)
	}
	if events == nil {
		events = []string{}
	}
	return events, nil
}

func (s *EventService) getRegistration(ctx context.Context, id string) (*model.Registration, error) {
	if id == "" {
		return nil, apperrors.Invalid("registration id is required")
	}
	reg, err := s.registrations.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.ErrRegistrationMissing
		}
		return nil, apperrors.Storage(err)
	}
	return reg, nil
}
