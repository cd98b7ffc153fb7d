package sched

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"wakehub/internal/model"
)

// ModelAPI is the slice of the event model the loop needs: staleness lookups
// and the upsert performed when a non-internal task is enqueued.
type ModelAPI interface {
	GetByID(id string) (model.Event, bool)
	Add(ctx context.Context, e model.Event) error
	Update(ctx context.Context, id string, e model.Event) error
}

// Hooks observes dispatch outcomes. Implementations must be fast; they run on
// the worker goroutine.
type Hooks interface {
	NotificationSent(taskID string, at time.Time)
	TaskExecuted(taskID string, at time.Time)
	StaleDropped(taskID string, at time.Time)
}

type nopHooks struct{}

func (nopHooks) NotificationSent(string, time.Time) {}
func (nopHooks) TaskExecuted(string, time.Time)     {}
func (nopHooks) StaleDropped(string, time.Time)     {}

// NopHooks discards all observations.
func NopHooks() Hooks { return nopHooks{} }

// Loop is the single-worker dispatcher over a time-ordered heap of tasks.
//
// A queued task is stale when the model no longer holds its id, or holds it
// with a different time; stale tasks are dropped on dequeue without invoking
// callbacks. Rescheduling therefore works by updating the event and enqueuing
// a fresh task. Internal-category tasks are exempt (they are never in the
// model) and are instead de-duplicated by id at enqueue time.
type Loop struct {
	mu    sync.Mutex
	tasks taskHeap
	seq   uint64

	model ModelAPI
	clock Clock
	hooks Hooks
	log   zerolog.Logger

	running bool
	wakeCh  chan struct{}
	stopCh  chan struct{}
	done    chan struct{}
}

type LoopOption func(*Loop)

func WithClock(c Clock) LoopOption {
	return func(l *Loop) { l.clock = c }
}

func WithHooks(h Hooks) LoopOption {
	return func(l *Loop) { l.hooks = h }
}

func NewLoop(m ModelAPI, log zerolog.Logger, opts ...LoopOption) *Loop {
	l := &Loop{
		model:  m,
		clock:  RealClock(),
		hooks:  NopHooks(),
		log:    log.With().Str("component", "loop").Logger(),
		wakeCh: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Start launches the worker. Idempotent.
func (l *Loop) Start() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.running {
		return
	}
	l.running = true
	l.stopCh = make(chan struct{})
	l.done = make(chan struct{})
	go l.run(l.stopCh, l.done)
}

// Stop wakes the worker and waits for it to finish the in-flight callback.
// Idempotent.
func (l *Loop) Stop() {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return
	}
	l.running = false
	close(l.stopCh)
	done := l.done
	l.mu.Unlock()
	<-done
}

// AddTask enqueues a task. Non-internal tasks are first upserted into the
// model so the staleness rule sees them; internal tasks skip persistence and
// replace any queued internal task with the same id.
func (l *Loop) AddTask(ctx context.Context, t *Task) error {
	if t.Event.Category == model.CategoryInternal {
		l.mu.Lock()
		l.removeInternalLocked(t.Event.ID)
		l.pushLocked(t)
		l.mu.Unlock()
		l.kick()
		return nil
	}

	if _, ok := l.model.GetByID(t.Event.ID); ok {
		if err := l.model.Update(ctx, t.Event.ID, t.Event); err != nil {
			return err
		}
	} else if err := l.model.Add(ctx, t.Event); err != nil {
		return err
	}

	l.mu.Lock()
	l.pushLocked(t)
	l.mu.Unlock()
	l.kick()
	return nil
}

// Len returns the number of queued tasks.
func (l *Loop) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.tasks.Len()
}

func (l *Loop) pushLocked(t *Task) {
	l.seq++
	t.seq = l.seq
	heap.Push(&l.tasks, t)
}

func (l *Loop) removeInternalLocked(id string) {
	for i := 0; i < l.tasks.Len(); i++ {
		t := l.tasks[i]
		if t.Event.Category == model.CategoryInternal && t.Event.ID == id {
			heap.Remove(&l.tasks, i)
			return
		}
	}
}

// kick wakes the worker to re-examine the heap.
func (l *Loop) kick() {
	select {
	case l.wakeCh <- struct{}{}:
	default:
	}
}

func (l *Loop) run(stopCh, done chan struct{}) {
	defer close(done)
	ctx := context.Background()

	for {
		l.mu.Lock()
		if !l.running {
			l.mu.Unlock()
			return
		}
		if l.tasks.Len() == 0 {
			l.mu.Unlock()
			select {
			case <-l.wakeCh:
				continue
			case <-stopCh:
				return
			}
		}
		t := l.tasks[0]

		if t.Event.Category != model.CategoryInternal {
			cur, ok := l.model.GetByID(t.Event.ID)
			if !ok || !cur.Time.Equal(t.Event.Time) {
				heap.Pop(&l.tasks)
				l.mu.Unlock()
				l.log.Debug().Str("id", t.Event.ID).Time("queued_for", t.Event.Time).Msg("dropping stale task")
				l.hooks.StaleDropped(t.Event.ID, l.clock.Now())
				continue
			}
		}

		now := l.clock.Now()

		// Pending notifications catch up in order before execution, even
		// when the worker slept past several instants.
		if nt, ok := t.NextNotifyTime(); ok && !nt.After(now) {
			l.mu.Unlock()
			l.fireNotify(ctx, t)
			l.mu.Lock()
			t.MarkSent()
			l.mu.Unlock()
			continue
		}

		if !t.Event.Time.After(now) {
			heap.Pop(&l.tasks)
			l.mu.Unlock()
			l.fireExecute(ctx, t)
			continue
		}

		wakeAt := t.Event.Time
		if nt, ok := t.NextNotifyTime(); ok && nt.Before(wakeAt) {
			wakeAt = nt
		}
		l.mu.Unlock()

		timer := time.NewTimer(wakeAt.Sub(now))
		select {
		case <-timer.C:
		case <-l.wakeCh:
			timer.Stop()
		case <-stopCh:
			timer.Stop()
			return
		}
	}
}

func (l *Loop) fireNotify(ctx context.Context, t *Task) {
	defer l.recoverCallback(t, "notify")
	if err := t.Notify(ctx); err != nil {
		l.log.Error().Err(err).Str("id", t.Event.ID).Msg("notify callback failed")
	}
	l.hooks.NotificationSent(t.Event.ID, l.clock.Now())
}

func (l *Loop) fireExecute(ctx context.Context, t *Task) {
	defer l.recoverCallback(t, "execute")
	if err := t.Execute(ctx); err != nil {
		l.log.Error().Err(err).Str("id", t.Event.ID).Msg("action callback failed")
	}
	l.hooks.TaskExecuted(t.Event.ID, l.clock.Now())
}

// Callback panics never terminate the worker.
func (l *Loop) recoverCallback(t *Task, kind string) {
	if r := recover(); r != nil {
		l.log.Error().Str("id", t.Event.ID).Str("kind", kind).Any("panic", r).Msg("callback panicked")
	}
}
