package app

import (
	"fmt"
	"time"

	"wakehub/internal/model"
	"wakehub/internal/registry"
	"wakehub/internal/sched"
)

// BuildTask turns a task-category event into a scheduled task, resolving the
// notifier and action names. Unknown names reject the task; empty names mean
// no-op callbacks.
func BuildTask(reg *registry.Registry, ev model.Event, notifyTimes []time.Time, now time.Time) (*sched.Task, error) {
	var notify sched.Callback
	if ev.Notifier != "" {
		n, ok := reg.Notifier(ev.Notifier)
		if !ok {
			return nil, fmt.Errorf("%w: unknown notifier %q", model.ErrInvalidInput, ev.Notifier)
		}
		notify = sched.Callback(n)
	}

	var action sched.Callback
	if ev.Action != "" {
		a, ok := reg.Action(ev.Action)
		if !ok {
			return nil, fmt.Errorf("%w: unknown action %q", model.ErrInvalidInput, ev.Action)
		}
		action = sched.Callback(a)
	}

	return sched.NewTask(ev, notifyTimes, notify, action, now), nil
}

// BuildTaskWithOffsets is BuildTask for relative notification offsets.
func BuildTaskWithOffsets(reg *registry.Registry, ev model.Event, offsets []time.Duration, now time.Time) (*sched.Task, error) {
	times := make([]time.Time, 0, len(offsets))
	for _, off := range offsets {
		times = append(times, ev.Time.Add(-off))
	}
	return BuildTask(reg, ev, times, now)
}
