package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Shivanand-hulikatti/campus-events/internal/model"
	"github.com/Shivanand-hulikatti/campus-events/internal/repository"
)

func seedEvent(t *testing.T, s *Store, id string, seats int) {
	t.Helper()
	err := s.Events().Create(context.Background(), &model.Event{
		ID:         id,
		Title:      "Hackathon",
		Date:       "2026-03-20",
		Status:     model.EventActive,
		TotalSeats: seats,
		CreatedBy:  "admin",
		CreatedAt:  time.Now(),
	})
	if err != nil {
		t.Fatalf("create event: %v", err)
	}
}

func newReg(id, eventID, userID string) *model.Registration {
	return &model.Registration{
		ID:        id,
		EventID:   eventID,
		UserID:    userID,
		Status:    model.RegistrationPending,
		Source:    model.SourceWorkflow,
		CreatedAt: time.Now(),
	}
}

func TestConcurrentReserve(t *testing.T) {
	s := New()
	seedEvent(t, s, "e1", 5)
	regs := s.Registrations()

	const users = 40
	var wg sync.WaitGroup
	var ok, full int64
	for i := 0; i < users; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := regs.Reserve(context.Background(), newReg(fmt.Sprintf("r%d", i), "e1", fmt.Sprintf("u%d", i)))
			switch {
			case err == nil:
				atomic.AddInt64(&ok, 1)
			case errors.Is(err, repository.ErrEventFull):
				atomic.AddInt64(&full, 1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if ok != 5 || full != users-5 {
		t.Fatalf("expected 5 successes and %d full, got %d and %d", users-5, ok, full)
	}
	e, _ := s.Events().GetByID(context.Background(), "e1")
	if e.RegisteredCount != 5 || len(e.RegisteredUsers) != 5 {
		t.Fatalf("ledger drift: count=%d users=%d", e.RegisteredCount, len(e.RegisteredUsers))
	}
}

func TestReserveSameUserConcurrently(t *testing.T) {
	s := New()
	seedEvent(t, s, "e1", 10)
	regs := s.Registrations()

	var wg sync.WaitGroup
	var ok, dup int64
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := regs.Reserve(context.Background(), newReg(fmt.Sprintf("r%d", i), "e1", "same-user"))
			switch {
			case err == nil:
				atomic.AddInt64(&ok, 1)
			case errors.Is(err, repository.ErrAlreadyRegistered):
				atomic.AddInt64(&dup, 1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if ok != 1 || dup != 9 {
		t.Fatalf("expected exactly one success, got ok=%d dup=%d", ok, dup)
	}
}

func TestReserveDiagnosis(t *testing.T) {
	ctx := context.Background()
	s := New()
	seedEvent(t, s, "e1", 1)
	regs := s.Registrations()

	if _, err := regs.Reserve(ctx, newReg("r0", "missing", "u1")); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := regs.Reserve(ctx, newReg("r1", "e1", "u1")); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if _, err := regs.Reserve(ctx, newReg("r2", "e1", "u1")); !errors.Is(err, repository.ErrAlreadyRegistered) {
		t.Fatalf("expected already registered, got %v", err)
	}
	if _, err := regs.Reserve(ctx, newReg("r3", "e1", "u2")); !errors.Is(err, repository.ErrEventFull) {
		t.Fatalf("expected full, got %v", err)
	}
	if _, err := s.Events().CompareAndSetStatus(ctx, "e1", model.EventActive, model.EventCancelled); err != nil {
		t.Fatalf("set status: %v", err)
	}
	if _, err := regs.Reserve(ctx, newReg("r4", "e1", "u3")); !errors.Is(err, repository.ErrEventClosed) {
		t.Fatalf("expected closed, got %v", err)
	}
}

func TestReleaseTombstonesAndFreesSeat(t *testing.T) {
	ctx := context.Background()
	s := New()
	seedEvent(t, s, "e1", 1)
	regs := s.Registrations()

	reg := newReg("r1", "e1", "u1")
	if _, err := regs.Reserve(ctx, reg); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if got, _ := s.Users().RegisteredEvents(ctx, "u1"); len(got) != 1 || got[0] != "e1" {
		t.Fatalf("expected user list [e1], got %v", got)
	}

	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	e, err := regs.Release(ctx, reg, at)
	if err != nil {
		t.Fatalf("release: %v", err)
	}
	if e.RegisteredCount != 0 || len(e.RegisteredUsers) != 0 {
		t.Fatalf("seat not released: %+v", e)
	}
	stored, _ := regs.GetByID(ctx, "r1")
	if stored.Status != model.RegistrationCancelled || stored.CancelledAt == nil || !stored.CancelledAt.Equal(at) {
		t.Fatalf("expected tombstone, got %+v", stored)
	}
	if got, _ := s.Users().RegisteredEvents(ctx, "u1"); len(got) != 0 {
		t.Fatalf("expected empty user list, got %v", got)
	}
	if _, err := regs.Release(ctx, reg, at); !errors.Is(err, repository.ErrNotRegistered) {
		t.Fatalf("expected not registered on second release, got %v", err)
	}

	// The seat can be taken again, including by the same user.
	if _, err := regs.Reserve(ctx, newReg("r2", "e1", "u1")); err != nil {
		t.Fatalf("re-reserve: %v", err)
	}
	if _, err := regs.FindActive(ctx, "e1", "u1"); err != nil {
		t.Fatalf("find active: %v", err)
	}
}

func TestDecideOnlyFromPending(t *testing.T) {
	ctx := context.Background()
	s := New()
	seedEvent(t, s, "e1", 2)
	regs := s.Registrations()
	if _, err := regs.Reserve(ctx, newReg("r1", "e1", "u1")); err != nil {
		t.Fatalf("reserve: %v", err)
	}

	now := time.Now()
	got, err := regs.Decide(ctx, "r1", model.RegistrationApproved, "admin", now)
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if got.Status != model.RegistrationApproved || got.DecidedBy != "admin" {
		t.Fatalf("unexpected decision: %+v", got)
	}
	if _, err := regs.Decide(ctx, "r1", model.RegistrationRejected, "admin", now); !errors.Is(err, repository.ErrStaleState) {
		t.Fatalf("expected stale state, got %v", err)
	}
	if _, err := regs.Decide(ctx, "nope", model.RegistrationRejected, "admin", now); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCompleteActiveBefore(t *testing.T) {
	ctx := context.Background()
	s := New()
	for id, date := range map[string]string{"past": "2026-03-01", "today": "2026-03-02", "future": "2026-03-03"} {
		if err := s.Events().Create(ctx, &model.Event{ID: id, Date: date, Status: model.EventActive, TotalSeats: 1}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	ids, err := s.Events().CompleteActiveBefore(ctx, "2026-03-02")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if len(ids) != 1 || ids[0] != "past" {
		t.Fatalf("expected [past], got %v", ids)
	}
	again, _ := s.Events().CompleteActiveBefore(ctx, "2026-03-02")
	if len(again) != 0 {
		t.Fatalf("expected idempotent second pass, got %v", again)
	}
	today, _ := s.Events().ListActiveOn(ctx, "2026-03-02")
	if len(today) != 1 || today[0].ID != "today" {
		t.Fatalf("expected today's event, got %v", today)
	}
}

func TestCompleteActiveBeforeIgnoresMalformedDates(t *testing.T) {
	ctx := context.Background()
	s := New()
	for id, date := range map[string]string{"slashes": "1/5/2030", "words": "next week", "empty": "", "past": "2026-03-01"} {
		if err := s.Events().Create(ctx, &model.Event{ID: id, Date: date, Status: model.EventActive, TotalSeats: 1}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	ids, err := s.Events().CompleteActiveBefore(ctx, "2026-03-20")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if len(ids) != 1 || ids[0] != "past" {
		t.Fatalf("expected [past], got %v", ids)
	}
	for _, id := range []string{"slashes", "words", "empty"} {
		e, _ := s.Events().GetByID(ctx, id)
		if e.Status != model.EventActive {
			t.Fatalf("%s: malformed date was completed", id)
		}
	}
}

func TestReturnedEventsAreCopies(t *testing.T) {
	ctx := context.Background()
	s := New()
	seedEvent(t, s, "e1", 3)
	if _, err := s.Registrations().Reserve(ctx, newReg("r1", "e1", "u1")); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	e, _ := s.Events().GetByID(ctx, "e1")
	e.RegisteredUsers[0] = "tampered"
	e.RegisteredCount = 99

	fresh, _ := s.Events().GetByID(ctx, "e1")
	if fresh.RegisteredUsers[0] != "u1" || fresh.RegisteredCount != 1 {
		t.Fatalf("store state leaked through returned copy: %+v", fresh)
	}
}
