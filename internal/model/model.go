package model

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Store is the durable mirror behind the in-memory index. Implemented by the
// sqlite-backed store; kept narrow so tests can swap in a fake.
type Store interface {
	AddEvent(ctx context.Context, e Event) error
	RemoveEvent(ctx context.Context, id string) error
	RemoveAllEvents(ctx context.Context) error
	ListEvents(ctx context.Context) ([]Event, error)
}

// Model owns the live time-ordered index of events plus the soft-deleted
// mirror. All operations serialize under a single mutex. Mutations are
// mirrored to the store after the in-memory change succeeds; a mirror failure
// keeps the in-memory change and surfaces an ErrMirror-wrapped error.
type Model struct {
	mu      sync.Mutex
	events  []*Event          // sorted by Time, then ID for determinism
	byID    map[string]*Event // live set
	deleted map[string]*Event // soft-deleted mirror
	store   Store
	log     zerolog.Logger
	now     func() time.Time
}

type Option func(*Model)

// WithNow injects the clock used by "strictly in the future" queries.
func WithNow(now func() time.Time) Option {
	return func(m *Model) { m.now = now }
}

func New(store Store, log zerolog.Logger, opts ...Option) *Model {
	m := &Model{
		byID:    make(map[string]*Event),
		deleted: make(map[string]*Event),
		store:   store,
		log:     log.With().Str("component", "model").Logger(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Load replaces the live index with the given events without touching the
// store. Used at startup to replay the persisted state.
func (m *Model) Load(events []Event) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.events = m.events[:0]
	m.byID = make(map[string]*Event, len(events))
	for i := range events {
		e := events[i]
		if _, ok := m.byID[e.ID]; ok {
			m.log.Warn().Str("id", e.ID).Msg("duplicate id in persisted state, keeping first")
			continue
		}
		m.byID[e.ID] = &e
		m.events = append(m.events, &e)
	}
	m.sortLocked()
}

func (m *Model) sortLocked() {
	sort.Slice(m.events, func(i, j int) bool {
		if m.events[i].Time.Equal(m.events[j].Time) {
			return m.events[i].ID < m.events[j].ID
		}
		return m.events[i].Time.Before(m.events[j].Time)
	})
}

// NewID draws 64 random bits, hex-encodes them and retries until the id is
// unused in both the live and the soft-deleted set.
func (m *Model) NewID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	for {
		var buf [8]byte
		if _, err := rand.Read(buf[:]); err != nil {
			// crypto/rand does not fail on supported platforms
			panic(fmt.Sprintf("model: read random: %v", err))
		}
		id := hex.EncodeToString(buf[:])
		if _, ok := m.byID[id]; ok {
			continue
		}
		if _, ok := m.deleted[id]; ok {
			continue
		}
		return id
	}
}

func (m *Model) Add(ctx context.Context, e Event) error {
	if err := e.Validate(); err != nil {
		return err
	}
	if e.ID == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidInput)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byID[e.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateID, e.ID)
	}
	rec := e
	m.byID[rec.ID] = &rec
	m.events = append(m.events, &rec)
	m.sortLocked()

	if err := m.store.AddEvent(ctx, rec); err != nil {
		return fmt.Errorf("%w: add %s: %v", ErrMirror, rec.ID, err)
	}
	return nil
}

// Remove deletes an event. A soft remove moves it to the deleted mirror so it
// can be restored later; a hard remove also covers events that were already
// soft-deleted.
func (m *Model) Remove(ctx context.Context, id string, soft bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.byID[id]; ok {
		m.dropLocked(id)
		if soft {
			m.deleted[id] = e
		}
		if err := m.store.RemoveEvent(ctx, id); err != nil {
			return fmt.Errorf("%w: remove %s: %v", ErrMirror, id, err)
		}
		return nil
	}
	if !soft {
		if _, ok := m.deleted[id]; ok {
			delete(m.deleted, id)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrNotFound, id)
}

// Restore moves a soft-deleted event back into the live index.
func (m *Model) Restore(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.deleted[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(m.deleted, id)
	m.byID[id] = e
	m.events = append(m.events, e)
	m.sortLocked()

	if err := m.store.AddEvent(ctx, *e); err != nil {
		return fmt.Errorf("%w: restore %s: %v", ErrMirror, id, err)
	}
	return nil
}

// Update replaces the event with the given id. The id is preserved; the time
// may change, which makes any queued task for the old time stale.
func (m *Model) Update(ctx context.Context, id string, e Event) error {
	e.ID = id
	if err := e.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateLocked(ctx, id, e)
}

func (m *Model) updateLocked(ctx context.Context, id string, e Event) error {
	if _, ok := m.byID[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	m.dropLocked(id)
	rec := e
	m.byID[id] = &rec
	m.events = append(m.events, &rec)
	m.sortLocked()

	if err := m.store.RemoveEvent(ctx, id); err != nil {
		return fmt.Errorf("%w: update %s: %v", ErrMirror, id, err)
	}
	if err := m.store.AddEvent(ctx, rec); err != nil {
		return fmt.Errorf("%w: update %s: %v", ErrMirror, id, err)
	}
	return nil
}

// ApplyPatch merges the non-nil fields of the patch into the stored event.
// The read-merge-write happens under the mutex, so concurrent patches of
// disjoint fields both land.
func (m *Model) ApplyPatch(ctx context.Context, id string, p Patch) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.byID[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	next := *cur

	if p.Title != nil {
		next.Title = *p.Title
	}
	if p.Description != nil {
		next.Description = *p.Description
	}
	if p.Time != nil {
		next.Time = *p.Time
	}
	if p.Duration != nil {
		next.Duration = *p.Duration
	}
	if p.Category != nil {
		next.Category = *p.Category
	}
	if p.Notifier != nil {
		next.Notifier = *p.Notifier
	}
	if p.Action != nil {
		next.Action = *p.Action
	}
	if p.Recurring != nil {
		next.Recurring = *p.Recurring
		if !next.Recurring {
			next.Pattern = nil
		}
	}
	if p.Pattern != nil {
		next.Pattern = p.Pattern
		next.Recurring = true
	}

	next.ID = id
	if err := next.Validate(); err != nil {
		return err
	}
	return m.updateLocked(ctx, id, next)
}

func (m *Model) GetByID(id string) (Event, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.byID[id]
	if !ok {
		return Event{}, false
	}
	return *e, true
}

// GetDeleted looks an event up in the soft-deleted mirror.
func (m *Model) GetDeleted(id string) (Event, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.deleted[id]
	if !ok {
		return Event{}, false
	}
	return *e, true
}

func (m *Model) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}

func (m *Model) dropLocked(id string) {
	delete(m.byID, id)
	for i, e := range m.events {
		if e.ID == id {
			m.events = append(m.events[:i], m.events[i+1:]...)
			return
		}
	}
}

// snapshot takes the lock, copies the live slice and releases it, so queries
// can do per-event work without holding the mutex.
func (m *Model) snapshot() []*Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Event, len(m.events))
	copy(out, m.events)
	return out
}
