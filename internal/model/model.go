// Package model defines the core domain types for the campus event engine.
package model

import "time"

// EventStatus is the lifecycle state of an event.
type EventStatus string

const (
	EventPending   EventStatus = "pending"
	EventActive    EventStatus = "active"
	EventCompleted EventStatus = "completed"
	EventCancelled EventStatus = "cancelled"
)

// Valid reports whether s is a known event status.
func (s EventStatus) Valid() bool {
	switch s {
	case EventPending, EventActive, EventCompleted, EventCancelled:
		return true
	}
	return false
}

// CanTransitionTo reports whether an admin may move an event from s to next.
// Completed is terminal; completion itself is only reached through the sweep.
func (s EventStatus) CanTransitionTo(next EventStatus) bool {
	switch s {
	case EventPending:
		return next == EventActive || next == EventCancelled
	case EventActive:
		return next == EventCancelled
	case EventCancelled:
		return next == EventActive
	}
	return false
}

// Event represents a campus event created by an admin.
//
// RegisteredCount and RegisteredUsers are owned by the capacity ledger and are
// only ever changed through the store's atomic reserve/release operations.
type Event struct {
	ID                    string      `json:"id" bson:"_id"`
	Title                 string      `json:"title" bson:"title"`
	Description           string      `json:"description" bson:"description"`
	Venue                 string      `json:"venue" bson:"venue"`
	Date                  string      `json:"date" bson:"date"`
	StartTime             string      `json:"startTime,omitempty" bson:"start_time"`
	EndTime               string      `json:"endTime,omitempty" bson:"end_time"`
	Time                  string      `json:"time,omitempty" bson:"time"`
	RegistrationStartDate string      `json:"registrationStartDate,omitempty" bson:"registration_start_date"`
	RegistrationEndDate   string      `json:"registrationEndDate,omitempty" bson:"registration_end_date"`
	Status                EventStatus `json:"status" bson:"status"`
	TotalSeats            int         `json:"totalSeats" bson:"total_seats"`
	RegisteredCount       int         `json:"registeredCount" bson:"registered_count"`
	RegisteredUsers       []string    `json:"registeredUsers" bson:"registered_users"`
	CreatedBy             string      `json:"createdBy" bson:"created_by"`
	CreatedAt             time.Time   `json:"createdAt" bson:"created_at"`
}

// Remaining returns the number of available seats.
func (e *Event) Remaining() int {
	return e.TotalSeats - e.RegisteredCount
}

// IsFull returns true when no seats remain.
func (e *Event) IsFull() bool {
	return e.RegisteredCount >= e.TotalSeats
}

// HasUser reports whether userID currently holds a seat.
func (e *Event) HasUser(userID string) bool {
	for _, u := range e.RegisteredUsers {
		if u == userID {
			return true
		}
	}
	return false
}

// StartClock returns the raw time-of-day the event starts at, preferring
// StartTime over the legacy Time alias.
func (e *Event) StartClock() string {
	if e.StartTime != "" {
		return e.StartTime
	}
	return e.Time
}

// RegistrationStatus is the lifecycle state of a registration.
type RegistrationStatus string

const (
	RegistrationPending   RegistrationStatus = "pending"
	RegistrationApproved  RegistrationStatus = "approved"
	RegistrationRejected  RegistrationStatus = "rejected"
	RegistrationCancelled RegistrationStatus = "cancelled"
)

// Live reports whether the registration still holds a seat.
func (s RegistrationStatus) Live() bool {
	return s != RegistrationCancelled
}

// RegistrationSource records which entry point created a registration.
type RegistrationSource string

const (
	SourceDirect   RegistrationSource = "direct"
	SourceWorkflow RegistrationSource = "workflow"
)

// Registration represents a user's registration for an event. Cancelled
// registrations are kept as tombstones.
type Registration struct {
	ID          string             `json:"id" bson:"_id"`
	EventID     string             `json:"eventId" bson:"event_id"`
	UserID      string             `json:"userId" bson:"user_id"`
	TeamName    string             `json:"teamName,omitempty" bson:"team_name"`
	TeamMembers []string           `json:"teamMembers,omitempty" bson:"team_members"`
	Status      RegistrationStatus `json:"status" bson:"status"`
	Source      RegistrationSource `json:"source" bson:"source"`
	CreatedAt   time.Time          `json:"createdAt" bson:"created_at"`
	DecidedAt   *time.Time         `json:"decidedAt,omitempty" bson:"decided_at"`
	DecidedBy   string             `json:"decidedBy,omitempty" bson:"decided_by"`
	CancelledAt *time.Time         `json:"cancelledAt,omitempty" bson:"cancelled_at"`
}

// User is the slice of the user record this engine keeps in sync.
type User struct {
	ID               string   `json:"id" bson:"_id"`
	RegisteredEvents []string `json:"registeredEvents" bson:"registered_events"`
}

// Team is the optional team attached to a workflow registration.
type Team struct {
	Name    string   `json:"teamName"`
	Members []string `json:"teamMembers"`
}

// CreateEventRequest is the payload for creating a new event.
type CreateEventRequest struct {
	Title                 string      `json:"title"`
	Description           string      `json:"description"`
	Venue                 string      `json:"venue"`
	Date                  string      `json:"date"`
	StartTime             string      `json:"startTime"`
	EndTime               string      `json:"endTime"`
	Time                  string      `json:"time"`
	RegistrationStartDate string      `json:"registrationStartDate"`
	RegistrationEndDate   string      `json:"registrationEndDate"`
	Status                EventStatus `json:"status"`
	TotalSeats            int         `json:"totalSeats"`
}

// RequestJoinRequest is the payload for a workflow registration.
type RequestJoinRequest struct {
	TeamName    string   `json:"teamName"`
	TeamMembers []string `json:"teamMembers"`
}

// DecisionRequest is the payload for approving or rejecting a registration.
type DecisionRequest struct {
	Approve *bool `json:"approve"`
}

// StatusRequest is the payload for an admin status change.
type StatusRequest struct {
	Status EventStatus `json:"status"`
}

// SweepResponse is returned by the on-demand completion sweep.
type SweepResponse struct {
	CompletedToday int      `json:"completedToday"`
	Promoted       []string `json:"promoted"`
}

// UserEventsResponse lists the events a user currently holds seats for.
type UserEventsResponse struct {
	UserID           string   `json:"userId"`
	RegisteredEvents []string `json:"registeredEvents"`
}

// ErrorResponse is a standard JSON error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// BookingResult summarises the outcome of a single join attempt.
// Used by the concurrent test harnesses.
type BookingResult struct {
	UserID  string
	Success bool
	Error   error
}
