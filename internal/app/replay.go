package app

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"wakehub/internal/model"
	"wakehub/internal/registry"
	"wakehub/internal/sched"
	"wakehub/internal/store"
)

// Replay loads the persisted events into the model and re-enqueues the
// task-category events that are still in the future. A single notification is
// synthesized notifyAhead before the event time when the gap permits; events
// whose notifier or action no longer resolves are skipped with a warning
// rather than failing startup.
func Replay(ctx context.Context, st *store.Store, m *model.Model, loop *sched.Loop, reg *registry.Registry, notifyAhead time.Duration, clock sched.Clock, log zerolog.Logger) error {
	events, err := st.ListEvents(ctx)
	if err != nil {
		return fmt.Errorf("replay: %w", err)
	}
	m.Load(events)

	now := clock.Now()
	replayed := 0
	for _, ev := range events {
		if ev.Category != model.CategoryTask || !ev.Time.After(now) {
			continue
		}

		var notifyTimes []time.Time
		if nt := ev.Time.Add(-notifyAhead); nt.After(now) {
			notifyTimes = append(notifyTimes, nt)
		}

		task, err := BuildTask(reg, ev, notifyTimes, now)
		if err != nil {
			log.Warn().Err(err).Str("id", ev.ID).Msg("replay: skipping task")
			continue
		}
		if err := loop.AddTask(ctx, task); err != nil {
			log.Warn().Err(err).Str("id", ev.ID).Msg("replay: enqueue failed")
			continue
		}
		replayed++
	}
	log.Info().Int("events", len(events)).Int("tasks", replayed).Msg("replayed persisted state")
	return nil
}
