package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"wakehub/internal/model"
)

// Notifier delivers an ahead-of-time notification for an event.
type Notifier func(ctx context.Context, ev model.Event) error

// Action runs when an event's scheduled task executes.
type Action func(ctx context.Context, ev model.Event) error

// Registry maps names to notifiers and actions. Registration happens once at
// bring-up; afterwards the maps are read-only, so concurrent reads are safe.
type Registry struct {
	mu        sync.RWMutex
	notifiers map[string]Notifier
	actions   map[string]Action
}

func New() *Registry {
	return &Registry{
		notifiers: make(map[string]Notifier),
		actions:   make(map[string]Action),
	}
}

func (r *Registry) RegisterNotifier(name string, n Notifier) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifiers[name] = n
}

func (r *Registry) RegisterAction(name string, a Action) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions[name] = a
}

func (r *Registry) Notifier(name string) (Notifier, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n, ok := r.notifiers[name]
	return n, ok
}

func (r *Registry) Action(name string) (Action, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.actions[name]
	return a, ok
}

func (r *Registry) NotifierNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.notifiers))
	for n := range r.notifiers {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func (r *Registry) ActionNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.actions))
	for a := range r.actions {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

// RegisterBuiltins installs the built-in notifiers and actions. webhookURL
// may be empty, in which case the webhook action reports it is unconfigured.
func (r *Registry) RegisterBuiltins(log zerolog.Logger, webhookURL string, client *http.Client) {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}

	r.RegisterNotifier("log", func(_ context.Context, ev model.Event) error {
		log.Info().Str("id", ev.ID).Str("title", ev.Title).Time("at", ev.Time).Msg("upcoming event")
		return nil
	})

	r.RegisterAction("log", func(_ context.Context, ev model.Event) error {
		log.Info().Str("id", ev.ID).Str("title", ev.Title).Msg("event due")
		return nil
	})

	r.RegisterAction("webhook", func(ctx context.Context, ev model.Event) error {
		if webhookURL == "" {
			return fmt.Errorf("webhook action: no url configured")
		}
		payload := map[string]any{
			"id":           ev.ID,
			"title":        ev.Title,
			"description":  ev.Description,
			"time":         ev.Time.Format(time.RFC3339),
			"duration_sec": int(ev.Duration / time.Second),
			"category":     ev.Category,
		}
		body, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("webhook action: marshal: %w", err)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("webhook action: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := client.Do(req)
		if err != nil {
			return fmt.Errorf("webhook action: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 300 {
			return fmt.Errorf("webhook action: unexpected status %d", resp.StatusCode)
		}
		return nil
	})
}
