package sched

import (
	"context"
	"sort"
	"time"

	"wakehub/internal/model"
)

// Callback runs when a task notifies or executes. Errors are logged by the
// loop, never propagated.
type Callback func(ctx context.Context, ev model.Event) error

// Task is an event paired with a precomputed notification schedule and the
// callbacks the loop invokes. Tasks are owned by the loop once enqueued; the
// notify index only ever advances.
type Task struct {
	Event       model.Event
	NotifyTimes []time.Time

	notifyIdx int
	notify    Callback
	action    Callback

	// heap bookkeeping
	index int
	seq   uint64
}

// NewTask builds a task from absolute notification instants. Instants at or
// before now, or not before the event time, are dropped; the rest are sorted
// ascending.
func NewTask(ev model.Event, notifyTimes []time.Time, notify, action Callback, now time.Time) *Task {
	kept := make([]time.Time, 0, len(notifyTimes))
	for _, t := range notifyTimes {
		if t.After(now) && t.Before(ev.Time) {
			kept = append(kept, t)
		}
	}
	sort.Slice(kept, func(i, j int) bool { return kept[i].Before(kept[j]) })
	return &Task{Event: ev, NotifyTimes: kept, notify: notify, action: action, index: -1}
}

// NewTaskWithOffsets builds a task whose notifications fire the given
// durations before the event time.
func NewTaskWithOffsets(ev model.Event, offsets []time.Duration, notify, action Callback, now time.Time) *Task {
	times := make([]time.Time, 0, len(offsets))
	for _, off := range offsets {
		times = append(times, ev.Time.Add(-off))
	}
	return NewTask(ev, times, notify, action, now)
}

// NextNotifyTime returns the next unsent notification instant. ok is false
// once the schedule is exhausted.
func (t *Task) NextNotifyTime() (next time.Time, ok bool) {
	if t.notifyIdx >= len(t.NotifyTimes) {
		return time.Time{}, false
	}
	return t.NotifyTimes[t.notifyIdx], true
}

func (t *Task) HasPending() bool {
	return t.notifyIdx < len(t.NotifyTimes)
}

// MarkSent advances past the current notification. It never regresses.
func (t *Task) MarkSent() {
	if t.notifyIdx < len(t.NotifyTimes) {
		t.notifyIdx++
	}
}

func (t *Task) Notify(ctx context.Context) error {
	if t.notify == nil {
		return nil
	}
	return t.notify(ctx, t.Event)
}

func (t *Task) Execute(ctx context.Context) error {
	if t.action == nil {
		return nil
	}
	return t.action(ctx, t.Event)
}
