package model

import (
	"fmt"
	"time"
)

// Reserved categories. Events in CategoryTask get a scheduled task in the
// event loop; CategoryInternal tasks bypass persistence entirely.
const (
	CategoryTask     = "task"
	CategoryInternal = "internal"
)

type Event struct {
	ID          string
	Title       string
	Description string

	// Time is the event instant (UTC). For recurring events it is the
	// anchor of the pattern, i.e. occurrence zero.
	Time     time.Time
	Duration time.Duration

	Category string
	Notifier string
	Action   string

	Recurring bool
	Pattern   *Pattern
}

func (e *Event) Validate() error {
	if e.Title == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if e.Time.IsZero() {
		return fmt.Errorf("%w: time is required", ErrInvalidInput)
	}
	if e.Duration < 0 {
		return fmt.Errorf("%w: duration cannot be negative", ErrInvalidInput)
	}
	if e.Recurring {
		if e.Pattern == nil {
			return fmt.Errorf("%w: recurring event needs a pattern", ErrInvalidInput)
		}
		e.Pattern.Normalize()
		if err := e.Pattern.Validate(); err != nil {
			return err
		}
	} else if e.Pattern != nil {
		return fmt.Errorf("%w: pattern set on a non-recurring event", ErrInvalidInput)
	}
	return nil
}

// End returns the half-open upper bound of the event's own interval.
func (e *Event) End() time.Time {
	return e.Time.Add(e.Duration)
}

// Overlaps reports whether the event's [Time, Time+Duration) interval
// intersects [start, start+dur).
func (e *Event) Overlaps(start time.Time, dur time.Duration) bool {
	return e.Time.Before(start.Add(dur)) && start.Before(e.End())
}

// Occurrence is a single concrete instant of an event, either the event's own
// time or one produced by expanding its recurrence pattern.
type Occurrence struct {
	EventID  string
	Title    string
	Time     time.Time
	Duration time.Duration
	Category string
}

func (e *Event) occurrenceAt(t time.Time) Occurrence {
	return Occurrence{
		EventID:  e.ID,
		Title:    e.Title,
		Time:     t,
		Duration: e.Duration,
		Category: e.Category,
	}
}

// Patch carries partial updates; nil fields keep the current value.
type Patch struct {
	Title       *string
	Description *string
	Time        *time.Time
	Duration    *time.Duration
	Category    *string
	Notifier    *string
	Action      *string
	Recurring   *bool
	Pattern     *Pattern
}
