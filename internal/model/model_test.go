package model

import "testing"

func TestEventStatusTransitions(t *testing.T) {
	tests := []struct {
		from, to EventStatus
		want     bool
	}{
		{EventPending, EventActive, true},
		{EventPending, EventCancelled, true},
		{EventActive, EventCancelled, true},
		{EventCancelled, EventActive, true},
		{EventActive, EventCompleted, false},
		{EventActive, EventPending, false},
		{EventCompleted, EventActive, false},
		{EventCompleted, EventCancelled, false},
		{EventCancelled, EventCompleted, false},
	}
	for _, tc := range tests {
		if got := tc.from.CanTransitionTo(tc.to); got != tc.want {
			t.Fatalf("%s -> %s: expected %v, got %v", tc.from, tc.to, tc.want, got)
		}
	}
}

func TestEventStatusValid(t *testing.T) {
	if EventStatus("archived").Valid() {
		t.Fatal("unexpected valid status")
	}
	if !EventCompleted.Valid() {
		t.Fatal("completed should be valid")
	}
}

func TestEventSeatHelpers(t *testing.T) {
	e := Event{TotalSeats: 2, RegisteredCount: 1, RegisteredUsers: []string{"u1"}}
	if e.Remaining() != 1 || e.IsFull() {
		t.Fatalf("unexpected seat state: remaining=%d full=%v", e.Remaining(), e.IsFull())
	}
	if !e.HasUser("u1") || e.HasUser("u2") {
		t.Fatal("HasUser mismatch")
	}
	e.RegisteredCount = 2
	if !e.IsFull() {
		t.Fatal("expected full event")
	}
}

func TestStartClockPrefersStartTime(t *testing.T) {
	e := Event{Time: "9am"}
	if e.StartClock() != "9am" {
		t.Fatalf("expected legacy alias, got %q", e.StartClock())
	}
	e.StartTime = "10:00"
	if e.StartClock() != "10:00" {
		t.Fatalf("expected startTime, got %q", e.StartClock())
	}
}

func TestRegistrationLive(t *testing.T) {
	for _, s := range []RegistrationStatus{RegistrationPending, RegistrationApproved, RegistrationRejected} {
		if !s.Live() {
			t.Fatalf("%s should hold a seat", s)
		}
	}
	if RegistrationCancelled.Live() {
		t.Fatal("cancelled should not hold a seat")
	}
}
