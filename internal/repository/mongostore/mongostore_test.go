package mongostore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Shivanand-hulikatti/campus-events/internal/database"
	"github.com/Shivanand-hulikatti/campus-events/internal/model"
	"github.com/Shivanand-hulikatti/campus-events/internal/repository"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	uri := os.Getenv("EVENTS_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("EVENTS_TEST_MONGO_URI not set")
	}

	ctx := context.Background()
	client, err := database.OpenMongo(ctx, uri)
	if err != nil {
		t.Fatalf("OpenMongo: %v", err)
	}
	db := client.Database("campus_events_test_" + uuid.NewString()[:8])
	t.Cleanup(func() {
		_ = db.Drop(context.Background())
		_ = client.Disconnect(context.Background())
	})

	s := New(db)
	if err := s.EnsureIndexes(ctx); err != nil {
		t.Fatalf("EnsureIndexes: %v", err)
	}
	return s
}

func createEvent(t *testing.T, s *Store, seats int) *model.Event {
	t.Helper()
	return createEventOn(t, s, "2026-03-20", seats)
}

func createEventOn(t *testing.T, s *Store, date string, seats int) *model.Event {
	t.Helper()
	e := &model.Event{
		ID:         uuid.NewString(),
		Title:      "Concurrent Test Event",
		Date:       date,
		Status:     model.EventActive,
		TotalSeats: seats,
		CreatedBy:  "admin",
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.Events().Create(context.Background(), e); err != nil {
		t.Fatalf("Create: %v", err)
	}
	return e
}

func registration(eventID, userID string) *model.Registration {
	return &model.Registration{
		ID:        uuid.NewString(),
		EventID:   eventID,
		UserID:    userID,
		Status:    model.RegistrationApproved,
		Source:    model.SourceDirect,
		CreatedAt: time.Now().UTC(),
	}
}

func TestConcurrentReserve(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	ev := createEvent(t, s, 5)

	const userCount = 20
	var wg sync.WaitGroup
	var success, full int32
	for i := 0; i < userCount; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.Registrations().Reserve(ctx, registration(ev.ID, fmt.Sprintf("user-%d", i)))
			switch {
			case err == nil:
				atomic.AddInt32(&success, 1)
			case errors.Is(err, repository.ErrEventFull):
				atomic.AddInt32(&full, 1)
			default:
				t.Errorf("Reserve: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if success != 5 || full != userCount-5 {
		t.Fatalf("expected 5 successes, got %d (full=%d)", success, full)
	}
	got, err := s.Events().GetByID(ctx, ev.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.RegisteredCount != 5 || len(got.RegisteredUsers) != 5 {
		t.Fatalf("ledger drift: count=%d users=%d", got.RegisteredCount, len(got.RegisteredUsers))
	}
}

func TestReserveReleaseCycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	ev := createEvent(t, s, 1)
	regs := s.Registrations()

	reg := registration(ev.ID, "u1")
	if _, err := regs.Reserve(ctx, reg); err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if _, err := regs.Reserve(ctx, registration(ev.ID, "u1")); !errors.Is(err, repository.ErrAlreadyRegistered) {
		t.Fatalf("expected ErrAlreadyRegistered, got %v", err)
	}
	if _, err := regs.Reserve(ctx, registration(ev.ID, "u2")); !errors.Is(err, repository.ErrEventFull) {
		t.Fatalf("expected ErrEventFull, got %v", err)
	}

	e, err := regs.Release(ctx, reg, time.Now().UTC())
	if err != nil {
		t.Fatalf("Release: %v", err)
	}
	if e.RegisteredCount != 0 || len(e.RegisteredUsers) != 0 {
		t.Fatalf("seat not released: %+v", e)
	}
	if _, err := regs.Release(ctx, reg, time.Now().UTC()); !errors.Is(err, repository.ErrNotRegistered) {
		t.Fatalf("expected ErrNotRegistered, got %v", err)
	}
	if events, _ := s.Users().RegisteredEvents(ctx, "u1"); len(events) != 0 {
		t.Fatalf("expected empty user list, got %v", events)
	}

	// The tombstone does not block a fresh registration.
	if _, err := regs.Reserve(ctx, registration(ev.ID, "u1")); err != nil {
		t.Fatalf("re-Reserve: %v", err)
	}
	list, err := regs.ListByEvent(ctx, ev.ID)
	if err != nil {
		t.Fatalf("ListByEvent: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected tombstone plus live registration, got %d", len(list))
	}
}

func TestCompleteActiveBefore(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	past := createEvent(t, s, 1)

	ids, err := s.Events().CompleteActiveBefore(ctx, "2026-03-21")
	if err != nil {
		t.Fatalf("CompleteActiveBefore: %v", err)
	}
	if len(ids) != 1 || ids[0] != past.ID {
		t.Fatalf("expected [%s], got %v", past.ID, ids)
	}
	if _, err := s.Events().CompareAndSetStatus(ctx, past.ID, model.EventActive, model.EventCancelled); !errors.Is(err, repository.ErrStaleState) {
		t.Fatalf("expected ErrStaleState, got %v", err)
	}
}

func TestCompleteActiveBeforeIgnoresMalformedDates(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	bad := createEventOn(t, s, "1/5/2030", 1)
	past := createEventOn(t, s, "2026-03-01", 1)

	ids, err := s.Events().CompleteActiveBefore(ctx, "2026-03-20")
	if err != nil {
		t.Fatalf("CompleteActiveBefore: %v", err)
	}
	if len(ids) != 1 || ids[0] != past.ID {
		t.Fatalf("expected [%s], got %v", past.ID, ids)
	}
	got, err := s.Events().GetByID(ctx, bad.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != model.EventActive {
		t.Fatalf("event with malformed date was completed: %s", got.Status)
	}
}

// A release interrupted after the seat went back leaves a live registration.
// Retrying must finish the tombstone without taking a second seat.
func TestReleaseRetryAfterSeatReturned(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	ev := createEvent(t, s, 2)
	regs := s.Registrations()

	other := registration(ev.ID, "u2")
	if _, err := regs.Reserve(ctx, other); err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	reg := registration(ev.ID, "u1")
	if _, err := regs.Reserve(ctx, reg); err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if err := regs.unclaim(ctx, ev.ID, "u1"); err != nil {
		t.Fatalf("unclaim: %v", err)
	}

	e, err := regs.Release(ctx, reg, time.Now().UTC())
	if err != nil {
		t.Fatalf("Release: %v", err)
	}
	if e.RegisteredCount != 1 || len(e.RegisteredUsers) != 1 || e.RegisteredUsers[0] != "u2" {
		t.Fatalf("seat released twice: count=%d users=%v", e.RegisteredCount, e.RegisteredUsers)
	}
	stored, err := regs.GetByID(ctx, reg.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if stored.Status != model.RegistrationCancelled || stored.CancelledAt == nil {
		t.Fatalf("registration not tombstoned: %+v", stored)
	}
}

func TestUnclaimNeverDropsUserWithoutSeat(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	ev := createEvent(t, s, 1)

	// Corrupt record: user listed but no seat counted.
	_, err := s.events.UpdateOne(ctx,
		bson.M{"_id": ev.ID},
		bson.M{"$set": bson.M{"registered_users": []string{"u1"}, "registered_count": 0}},
	)
	if err != nil {
		t.Fatalf("UpdateOne: %v", err)
	}
	if err := s.Registrations().unclaim(ctx, ev.ID, "u1"); err != nil {
		t.Fatalf("unclaim: %v", err)
	}
	got, err := s.Events().GetByID(ctx, ev.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.RegisteredCount != 0 || len(got.RegisteredUsers) != 1 {
		t.Fatalf("unclaim changed the set without a seat: count=%d users=%v", got.RegisteredCount, got.RegisteredUsers)
	}
}
