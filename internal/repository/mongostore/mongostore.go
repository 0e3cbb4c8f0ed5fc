// Package mongostore implements the event engine's stores on MongoDB.
//
// The seat ledger is a single conditional FindOneAndUpdate on the event
// document. MongoDB has no multi-document transaction on a standalone server,
// so the registration insert that follows a successful claim is compensated
// by releasing the seat when it fails.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Shivanand-hulikatti/campus-events/internal/model"
	"github.com/Shivanand-hulikatti/campus-events/internal/repository"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Store groups the three collections the engine uses.
type Store struct {
	events *mongo.Collection
	regs   *mongo.Collection
	users  *mongo.Collection
}

// New returns a Store backed by db.
func New(db *mongo.Database) *Store {
	return &Store{
		events: db.Collection("events"),
		regs:   db.Collection("registrations"),
		users:  db.Collection("users"),
	}
}

// EnsureIndexes creates the indexes the stores rely on.
//
// registrations_one_live is unique on (event_id, user_id, cancelled_at). Live
// registrations store cancelled_at as null, so at most one live registration
// exists per user and event while any number of tombstones may accumulate.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.events.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "status", Value: 1}, {Key: "date", Value: 1}},
			Options: options.Index().SetName("events_status_date"),
		},
		{
			Keys:    bson.D{{Key: "created_at", Value: -1}},
			Options: options.Index().SetName("events_created_at"),
		},
	})
	if err != nil {
		return fmt.Errorf("events indexes: %w", err)
	}

	_, err = s.regs.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "event_id", Value: 1},
				{Key: "user_id", Value: 1},
				{Key: "cancelled_at", Value: 1},
			},
			Options: options.Index().SetUnique(true).SetName("registrations_one_live"),
		},
		{
			Keys:    bson.D{{Key: "event_id", Value: 1}, {Key: "created_at", Value: 1}},
			Options: options.Index().SetName("registrations_event_created"),
		},
	})
	if err != nil {
		return fmt.Errorf("registrations indexes: %w", err)
	}
	return nil
}

// Events returns the event store view.
func (s *Store) Events() *EventStore { return &EventStore{s: s} }

// Registrations returns the registration store view.
func (s *Store) Registrations() *RegistrationStore { return &RegistrationStore{s: s} }

// Users returns the user store view.
func (s *Store) Users() *UserStore { return &UserStore{s: s} }

var returnAfter = options.FindOneAndUpdate().SetReturnDocument(options.After)

func normalizeEvent(e *model.Event) *model.Event {
	if e.RegisteredUsers == nil {
		e.RegisteredUsers = []string{}
	}
	return e
}

func decodeEvents(ctx context.Context, cur *mongo.Cursor) ([]model.Event, error) {
	defer cur.Close(ctx)

	var events []model.Event
	for cur.Next(ctx) {
		var e model.Event
		if err := cur.Decode(&e); err != nil {
			return nil, fmt.Errorf("decode event: %w", err)
		}
		events = append(events, *normalizeEvent(&e))
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("events cursor: %w", err)
	}
	return events, nil
}

// EventStore persists events.
type EventStore struct{ s *Store }

// Create inserts e.
func (es *EventStore) Create(ctx context.Context, e *model.Event) error {
	normalizeEvent(e)
	if _, err := es.s.events.InsertOne(ctx, e); err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// GetByID returns the event or repository.ErrNotFound.
func (es *EventStore) GetByID(ctx context.Context, id string) (*model.Event, error) {
	var e model.Event
	if err := es.s.events.FindOne(ctx, bson.M{"_id": id}).Decode(&e); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	return normalizeEvent(&e), nil
}

// List returns all events, newest first.
func (es *EventStore) List(ctx context.Context) ([]model.Event, error) {
	cur, err := es.s.events.Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return decodeEvents(ctx, cur)
}

// ListActiveOn returns the active events dated date.
func (es *EventStore) ListActiveOn(ctx context.Context, date string) ([]model.Event, error) {
	cur, err := es.s.events.Find(ctx,
		bson.M{"status": model.EventActive, "date": date},
		options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}),
	)
	if err != nil {
		return nil, fmt.Errorf("list active events on %s: %w", date, err)
	}
	return decodeEvents(ctx, cur)
}

// CompleteActiveBefore promotes every active event dated before date whose
// date has the YYYY-MM-DD shape. Each promotion is conditional on the event
// still being active, so a concurrent admin change wins and the event is left
// out of the result.
func (es *EventStore) CompleteActiveBefore(ctx context.Context, date string) ([]string, error) {
	cur, err := es.s.events.Find(ctx,
		bson.M{"status": model.EventActive, "date": bson.M{"$lt": date, "$regex": repository.DayPattern}},
		options.Find().SetProjection(bson.M{"_id": 1}).SetSort(bson.D{{Key: "_id", Value: 1}}),
	)
	if err != nil {
		return nil, fmt.Errorf("find past events: %w", err)
	}
	var candidates []struct {
		ID string `bson:"_id"`
	}
	if err := cur.All(ctx, &candidates); err != nil {
		return nil, fmt.Errorf("decode past events: %w", err)
	}

	var ids []string
	for _, c := range candidates {
		res, err := es.s.events.UpdateOne(ctx,
			bson.M{"_id": c.ID, "status": model.EventActive},
			bson.M{"$set": bson.M{"status": model.EventCompleted}},
		)
		if err != nil {
			return ids, fmt.Errorf("complete event %s: %w", c.ID, err)
		}
		if res.ModifiedCount == 1 {
			ids = append(ids, c.ID)
		}
	}
	return ids, nil
}

// CompareAndSetStatus moves the event from one status to another, returning
// repository.ErrStaleState if it is no longer in from.
func (es *EventStore) CompareAndSetStatus(ctx context.Context, id string, from, to model.EventStatus) (*model.Event, error) {
	var e model.Event
	err := es.s.events.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "status": from},
		bson.M{"$set": bson.M{"status": to}},
		returnAfter,
	).Decode(&e)
	if err == nil {
		return normalizeEvent(&e), nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("set event status: %w", err)
	}
	if _, err := es.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return nil, repository.ErrStaleState
}

// RegistrationStore persists registrations and owns the seat ledger.
type RegistrationStore struct{ s *Store }

// Reserve claims a seat for reg.UserID and records reg.
func (rs *RegistrationStore) Reserve(ctx context.Context, reg *model.Registration) (*model.Event, error) {
	var e model.Event
	err := rs.s.events.FindOneAndUpdate(ctx,
		bson.M{
			"_id":              reg.EventID,
			"status":           model.EventActive,
			"registered_users": bson.M{"$ne": reg.UserID},
			"$expr":            bson.M{"$lt": bson.A{"$registered_count", "$total_seats"}},
		},
		bson.M{
			"$inc":      bson.M{"registered_count": 1},
			"$addToSet": bson.M{"registered_users": reg.UserID},
		},
		returnAfter,
	).Decode(&e)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, rs.diagnose(ctx, reg.EventID, reg.UserID)
		}
		return nil, fmt.Errorf("claim seat: %w", err)
	}

	if reg.TeamMembers == nil {
		reg.TeamMembers = []string{}
	}
	if _, err := rs.s.regs.InsertOne(ctx, reg); err != nil {
		if uerr := rs.unclaim(ctx, reg.EventID, reg.UserID); uerr != nil {
			slog.Error("seat compensation failed", "event_id", reg.EventID, "user_id", reg.UserID, "error", uerr)
		}
		if mongo.IsDuplicateKeyError(err) {
			return nil, repository.ErrAlreadyRegistered
		}
		return nil, fmt.Errorf("insert registration: %w", err)
	}

	_, err = rs.s.users.UpdateOne(ctx,
		bson.M{"_id": reg.UserID},
		bson.M{"$addToSet": bson.M{"registered_events": reg.EventID}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return nil, fmt.Errorf("sync user registered events: %w", err)
	}
	return normalizeEvent(&e), nil
}

func (rs *RegistrationStore) diagnose(ctx context.Context, eventID, userID string) error {
	var e model.Event
	if err := rs.s.events.FindOne(ctx, bson.M{"_id": eventID}).Decode(&e); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return repository.ErrNotFound
		}
		return fmt.Errorf("diagnose seat claim: %w", err)
	}
	switch {
	case e.Status != model.EventActive:
		return repository.ErrEventClosed
	case e.HasUser(userID):
		return repository.ErrAlreadyRegistered
	default:
		return repository.ErrEventFull
	}
}

// unclaim gives a seat back if userID holds it. The count never drops below
// zero, and a user is only ever removed together with one seat.
func (rs *RegistrationStore) unclaim(ctx context.Context, eventID, userID string) error {
	_, err := rs.s.events.UpdateOne(ctx,
		bson.M{"_id": eventID, "registered_users": userID, "registered_count": bson.M{"$gt": 0}},
		bson.M{
			"$inc":  bson.M{"registered_count": -1},
			"$pull": bson.M{"registered_users": userID},
		},
	)
	if err != nil {
		return fmt.Errorf("release seat: %w", err)
	}
	return nil
}

// Release gives reg's seat back and then tombstones it. The seat is released
// first so a failure part way leaves a live registration that a retry can
// finish; unclaim is a no-op once the seat is gone.
func (rs *RegistrationStore) Release(ctx context.Context, reg *model.Registration, at time.Time) (*model.Event, error) {
	stored, err := rs.findOne(ctx, bson.M{"_id": reg.ID, "status": bson.M{"$ne": model.RegistrationCancelled}})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, repository.ErrNotRegistered
		}
		return nil, err
	}

	if err := rs.unclaim(ctx, stored.EventID, stored.UserID); err != nil {
		return nil, err
	}
	_, err = rs.s.users.UpdateOne(ctx,
		bson.M{"_id": stored.UserID},
		bson.M{"$pull": bson.M{"registered_events": stored.EventID}},
	)
	if err != nil {
		return nil, fmt.Errorf("sync user registered events: %w", err)
	}

	res, err := rs.s.regs.UpdateOne(ctx,
		bson.M{"_id": stored.ID, "status": bson.M{"$ne": model.RegistrationCancelled}},
		bson.M{"$set": bson.M{"status": model.RegistrationCancelled, "cancelled_at": at}},
	)
	if err != nil {
		return nil, fmt.Errorf("tombstone registration: %w", err)
	}
	if res.MatchedCount == 0 {
		return nil, repository.ErrNotRegistered
	}

	event, err := rs.s.Events().GetByID(ctx, stored.EventID)
	if err != nil {
		return nil, err
	}
	reg.Status = model.RegistrationCancelled
	reg.CancelledAt = &at
	return event, nil
}

// GetByID returns the registration or repository.ErrNotFound.
func (rs *RegistrationStore) GetByID(ctx context.Context, id string) (*model.Registration, error) {
	return rs.findOne(ctx, bson.M{"_id": id})
}

// FindActive returns the user's live registration on an event.
func (rs *RegistrationStore) FindActive(ctx context.Context, eventID, userID string) (*model.Registration, error) {
	return rs.findOne(ctx, bson.M{
		"event_id": eventID,
		"user_id":  userID,
		"status":   bson.M{"$ne": model.RegistrationCancelled},
	})
}

func (rs *RegistrationStore) findOne(ctx context.Context, filter bson.M) (*model.Registration, error) {
	var r model.Registration
	if err := rs.s.regs.FindOne(ctx, filter).Decode(&r); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("find registration: %w", err)
	}
	return &r, nil
}

// ListByEvent returns every registration on an event, oldest first.
func (rs *RegistrationStore) ListByEvent(ctx context.Context, eventID string) ([]model.Registration, error) {
	cur, err := rs.s.regs.Find(ctx,
		bson.M{"event_id": eventID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}),
	)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	var regs []model.Registration
	if err := cur.All(ctx, &regs); err != nil {
		return nil, fmt.Errorf("decode registrations: %w", err)
	}
	return regs, nil
}

// Decide records a decision on a pending registration.
func (rs *RegistrationStore) Decide(ctx context.Context, id string, status model.RegistrationStatus, decidedBy string, at time.Time) (*model.Registration, error) {
	var r model.Registration
	err := rs.s.regs.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "status": model.RegistrationPending},
		bson.M{"$set": bson.M{"status": status, "decided_by": decidedBy, "decided_at": at}},
		returnAfter,
	).Decode(&r)
	if err == nil {
		return &r, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("decide registration: %w", err)
	}
	if _, err := rs.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return nil, repository.ErrStaleState
}

// UserStore reads the denormalized per-user registration list.
type UserStore struct{ s *Store }

// RegisteredEvents returns the user's event ids. Unknown users have an empty list.
func (us *UserStore) RegisteredEvents(ctx context.Context, userID string) ([]string, error) {
	var u model.User
	if err := us.s.users.FindOne(ctx, bson.M{"_id": userID}).Decode(&u); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("get user registered events: %w", err)
	}
	if u.RegisteredEvents == nil {
		return []string{}, nil
	}
	return u.RegisteredEvents, nil
}
