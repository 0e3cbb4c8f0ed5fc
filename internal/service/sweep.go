package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/Shivanand-hulikatti/campus-events/internal/lock"
	"github.com/Shivanand-hulikatti/campus-events/internal/model"
	"github.com/Shivanand-hulikatti/campus-events/internal/repository"
	"github.com/Shivanand-hulikatti/campus-events/internal/timeofday"
)

// DefaultSessionLength is assumed for events that have no end time.
const DefaultSessionLength = 3 * time.Hour

// sweepLeaseKey is the Redis key replicas compete for before a sweep tick.
const sweepLeaseKey = "campus-events:sweep"

// Locker hands out a lease for one sweep tick. A nil lease means another
// replica holds it.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (*lock.Lease, error)
}

// SweepResult lists what one sweep pass changed.
type SweepResult struct {
	// Past holds events dated before today, completed by the bulk pass.
	Past []string
	// Today holds events dated today whose end time has passed.
	Today []string
	// Skipped holds today's events whose start or end time could not be read.
	// They stay active.
	Skipped []string
}

// Promoted returns every id completed by the pass.
func (r SweepResult) Promoted() []string {
	out := make([]string, 0, len(r.Past)+len(r.Today))
	out = append(out, r.Past...)
	return append(out, r.Today...)
}

// Sweeper promotes finished events to completed.
type Sweeper struct {
	events EventStore
	loc    *time.Location
	locker Locker
	now    func() time.Time
}

// NewSweeper returns a Sweeper reading event dates in loc.
func NewSweeper(events EventStore, loc *time.Location) *Sweeper {
	if loc == nil {
		loc = time.UTC
	}
	return &Sweeper{events: events, loc: loc, now: time.Now}
}

// UseLocker makes scheduled ticks run only while holding a lease from l.
func (s *Sweeper) UseLocker(l Locker) {
	s.locker = l
}

// Run performs one pass at now. It is idempotent: a second pass with the same
// now promotes nothing. A single malformed or contended event never aborts
// the pass.
func (s *Sweeper) Run(ctx context.Context, now time.Time) (SweepResult, error) {
	var res SweepResult
	today := timeofday.Today(now, s.loc)

	past, err := s.events.CompleteActiveBefore(ctx, today)
	if err != nil {
		return res, err
	}
	res.Past = past
	for _, id := range past {
		slog.Info("sweep_event_completed", "event_id", id, "reason", "past_date")
	}

	candidates, err := s.events.ListActiveOn(ctx, today)
	if err != nil {
		return res, err
	}
	for i := range candidates {
		e := &candidates[i]
		end, err := s.endOf(e)
		if err != nil {
			slog.Warn("sweep_event_skipped", "event_id", e.ID, "date", e.Date, "error", err.Error())
			res.Skipped = append(res.Skipped, e.ID)
			continue
		}
		if !now.After(end) {
			continue
		}

		_, err = s.events.CompareAndSetStatus(ctx, e.ID, model.EventActive, model.EventCompleted)
		switch {
		case err == nil:
			res.Today = append(res.Today, e.ID)
			slog.Info("sweep_event_completed", "event_id", e.ID, "reason", "ended", "ended_at", end)
		case errors.Is(err, repository.ErrStaleState), errors.Is(err, repository.ErrNotFound):
			// Changed under us; the other writer wins.
		default:
			slog.Error("sweep_event_failed", "event_id", e.ID, "error", err.Error())
		}
	}
	return res, nil
}

// endOf returns when e is considered over. An unreadable end time is an error
// even when the start time is readable.
func (s *Sweeper) endOf(e *model.Event) (time.Time, error) {
	if strings.TrimSpace(e.EndTime) != "" {
		return timeofday.Compose(e.Date, e.EndTime, s.loc)
	}
	start, err := timeofday.Compose(e.Date, e.StartClock(), s.loc)
	if err != nil {
		return time.Time{}, err
	}
	return start.Add(DefaultSessionLength), nil
}

// Tick runs one scheduled pass, first taking the lease when a locker is set.
// It reports false when another replica held the lease.
func (s *Sweeper) Tick(ctx context.Context, ttl time.Duration) (SweepResult, bool, error) {
	if s.locker != nil {
		lease, err := s.locker.TryLock(ctx, sweepLeaseKey, ttl)
		if err != nil {
			return SweepResult{}, false, err
		}
		if lease == nil {
			return SweepResult{}, false, nil
		}
		defer func() {
			if err := lease.Unlock(context.WithoutCancel(ctx)); err != nil {
				slog.Warn("sweep_lease_release_failed", "error", err.Error())
			}
		}()
	}
	res, err := s.Run(ctx, s.now())
	return res, true, err
}

// Start runs Tick every interval until ctx is done. The returned channel is
// closed once the worker has exited, after any in-flight tick.
func (s *Sweeper) Start(ctx context.Context, interval time.Duration) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				tickCtx, cancel := context.WithTimeout(ctx, interval)
				res, ran, err := s.Tick(tickCtx, interval)
				cancel()
				if err != nil {
					slog.Error("sweep_tick_failed", "error", err.Error())
					continue
				}
				if ran && len(res.Past)+len(res.Today) > 0 {
					slog.Info("sweep_tick_done", "past", len(res.Past), "today", len(res.Today), "skipped", len(res.Skipped))
				}
			case <-ctx.Done():
				slog.Info("sweep_worker_stopped")
				return
			}
		}
	}()
	return done
}
