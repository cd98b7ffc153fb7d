package app

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"wakehub/internal/metrics"
	"wakehub/internal/sched"
	"wakehub/internal/store"
)

// loopHooks feeds dispatch outcomes into the journal and the counters. The
// journal write is best-effort; a failed row never affects dispatch.
type loopHooks struct {
	store *store.Store
	m     *metrics.Metrics
	log   zerolog.Logger
}

// NewLoopHooks wires the event loop's observations to the dispatch journal
// and prometheus.
func NewLoopHooks(st *store.Store, m *metrics.Metrics, log zerolog.Logger) sched.Hooks {
	return loopHooks{store: st, m: m, log: log.With().Str("component", "dispatch-journal").Logger()}
}

func (h loopHooks) record(taskID, kind string, at time.Time) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := h.store.RecordDispatch(ctx, taskID, kind, at); err != nil {
		h.log.Error().Err(err).Str("task", taskID).Str("kind", kind).Msg("journal write failed")
	}
}

func (h loopHooks) NotificationSent(taskID string, at time.Time) {
	h.m.NotificationsSent.Inc()
	h.record(taskID, "notify", at)
}

func (h loopHooks) TaskExecuted(taskID string, at time.Time) {
	h.m.TasksExecuted.Inc()
	h.record(taskID, "execute", at)
}

func (h loopHooks) StaleDropped(taskID string, at time.Time) {
	h.m.StaleDropped.Inc()
	h.record(taskID, "stale", at)
}
