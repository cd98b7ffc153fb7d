package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"wakehub/internal/model"
	"wakehub/internal/registry"
	"wakehub/internal/sched"
	"wakehub/internal/store"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

func testStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(":memory:", zerolog.Nop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	if err := st.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return st
}

func TestBuildTask(t *testing.T) {
	reg := registry.New()
	reg.RegisterBuiltins(zerolog.Nop(), "", nil)
	now := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)

	ev := model.Event{
		ID:       "a1",
		Title:    "standup",
		Time:     now.Add(time.Hour),
		Category: model.CategoryTask,
		Notifier: "log",
		Action:   "log",
	}
	task, err := BuildTask(reg, ev, []time.Time{now.Add(30 * time.Minute)}, now)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(task.NotifyTimes) != 1 {
		t.Errorf("notify times = %v", task.NotifyTimes)
	}

	ev.Notifier = "smoke-signal"
	if _, err := BuildTask(reg, ev, nil, now); !errors.Is(err, model.ErrInvalidInput) {
		t.Errorf("unknown notifier: %v", err)
	}

	ev.Notifier = ""
	ev.Action = "carrier-pigeon"
	if _, err := BuildTask(reg, ev, nil, now); !errors.Is(err, model.ErrInvalidInput) {
		t.Errorf("unknown action: %v", err)
	}

	// Empty names are fine: the callbacks become no-ops.
	ev.Action = ""
	task, err = BuildTask(reg, ev, nil, now)
	if err != nil {
		t.Fatalf("build with empty names: %v", err)
	}
	if err := task.Notify(context.Background()); err != nil {
		t.Errorf("no-op notify: %v", err)
	}
}

func TestBuildTaskWithOffsets(t *testing.T) {
	reg := registry.New()
	now := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	ev := model.Event{ID: "a1", Title: "x", Time: now.Add(time.Hour), Category: model.CategoryTask}

	task, err := BuildTaskWithOffsets(reg, ev, []time.Duration{10 * time.Minute}, now)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(task.NotifyTimes) != 1 || !task.NotifyTimes[0].Equal(ev.Time.Add(-10*time.Minute)) {
		t.Errorf("notify times = %v", task.NotifyTimes)
	}
}

func TestReplay(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	now := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)

	seed := []model.Event{
		{ID: "future", Title: "standup", Time: now.Add(time.Hour), Category: model.CategoryTask, Notifier: "log"},
		{ID: "past", Title: "done", Time: now.Add(-time.Hour), Category: model.CategoryTask},
		{ID: "plain", Title: "reference", Time: now.Add(2 * time.Hour)}, // not task-category
		{ID: "broken", Title: "bad names", Time: now.Add(3 * time.Hour), Category: model.CategoryTask, Action: "gone"},
	}
	for _, e := range seed {
		if err := st.AddEvent(ctx, e); err != nil {
			t.Fatalf("seed %s: %v", e.ID, err)
		}
	}

	m := model.New(st, zerolog.Nop())
	loop := sched.NewLoop(m, zerolog.Nop())
	reg := registry.New()
	reg.RegisterBuiltins(zerolog.Nop(), "", nil)

	if err := Replay(ctx, st, m, loop, reg, 10*time.Minute, fixedClock{t: now}, zerolog.Nop()); err != nil {
		t.Fatalf("replay: %v", err)
	}

	if m.Len() != 4 {
		t.Errorf("model holds %d events, want all 4", m.Len())
	}
	// Only the resolvable future task is re-enqueued.
	if loop.Len() != 1 {
		t.Errorf("queue length = %d, want 1", loop.Len())
	}
}

func TestReplayEmptyStore(t *testing.T) {
	st := testStore(t)
	m := model.New(st, zerolog.Nop())
	loop := sched.NewLoop(m, zerolog.Nop())
	reg := registry.New()

	if err := Replay(context.Background(), st, m, loop, reg, 10*time.Minute, fixedClock{t: time.Now()}, zerolog.Nop()); err != nil {
		t.Fatalf("replay: %v", err)
	}
	if m.Len() != 0 || loop.Len() != 0 {
		t.Errorf("model=%d queue=%d, want empty", m.Len(), loop.Len())
	}
}
