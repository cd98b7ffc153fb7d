package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service counters. One instance per process, registered
// on its own registry so tests can create throwaway sets.
type Metrics struct {
	registry *prometheus.Registry

	TasksExecuted     prometheus.Counter
	NotificationsSent prometheus.Counter
	StaleDropped      prometheus.Counter
	WakePosts         *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())

	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		TasksExecuted: factory.NewCounter(prometheus.CounterOpts{
			Name: "wakehub_tasks_executed_total",
			Help: "Scheduled task actions executed.",
		}),
		NotificationsSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "wakehub_notifications_sent_total",
			Help: "Ahead-of-time notifications fired.",
		}),
		StaleDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "wakehub_stale_tasks_dropped_total",
			Help: "Queued tasks dropped because the model moved or removed the event.",
		}),
		WakePosts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "wakehub_wake_posts_total",
			Help: "Wake payload deliveries by outcome.",
		}, []string{"outcome"}),
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
