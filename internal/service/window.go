package service

import (
	"time"

	"github.com/Shivanand-hulikatti/campus-events/internal/model"
	"github.com/Shivanand-hulikatti/campus-events/internal/timeofday"
)

// Gate decides whether an event currently accepts registrations.
type Gate struct {
	loc *time.Location
}

// NewGate returns a Gate reading event dates in loc.
func NewGate(loc *time.Location) Gate {
	if loc == nil {
		loc = time.UTC
	}
	return Gate{loc: loc}
}

// IsOpen reports whether e accepts registrations at now.
//
// Only active events are open. A parseable registrationEndDate closes the
// window after the end of that day; otherwise the window closes when the
// event starts. A date or clock that cannot be read leaves the window open.
func (g Gate) IsOpen(e *model.Event, now time.Time) bool {
	if e.Status != model.EventActive {
		return false
	}
	if e.RegistrationEndDate != "" {
		if end, err := timeofday.EndOfDay(e.RegistrationEndDate, g.loc); err == nil {
			return !now.After(end)
		}
	}

	clock := e.StartClock()
	if clock == "" {
		clock = e.EndTime
	}
	start, err := timeofday.Compose(e.Date, clock, g.loc)
	if err != nil {
		return true
	}
	return !now.After(start)
}
