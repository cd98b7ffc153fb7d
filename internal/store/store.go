package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"wakehub/internal/model"
)

// Store is the single durable key-value store behind the service: the events
// mirror, the settings table and the dispatch journal all live in one sqlite
// file.
type Store struct {
	db  *sql.DB
	log zerolog.Logger
}

func Open(path string, log zerolog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single writer keeps sqlite from returning SQLITE_BUSY under the
	// concurrent handler load.
	db.SetMaxOpenConns(1)
	return &Store{db: db, log: log.With().Str("component", "store").Logger()}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Ping is used by the readiness probe.
func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// --- events ---

func (s *Store) AddEvent(ctx context.Context, e model.Event) error {
	var pattern []byte
	if e.Pattern != nil {
		var err error
		pattern, err = json.Marshal(e.Pattern)
		if err != nil {
			return fmt.Errorf("marshal pattern: %w", err)
		}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO events (id, title, description, time, duration, category, notifier, action, recurring, pattern)
		 VALUES (?,?,?,?,?,?,?,?,?,?)`,
		e.ID, e.Title, e.Description,
		e.Time.UTC().Unix(), int64(e.Duration/time.Second),
		e.Category, e.Notifier, e.Action,
		boolToInt(e.Recurring), nullable(pattern),
	)
	if err != nil {
		return fmt.Errorf("insert event %s: %w", e.ID, err)
	}
	return nil
}

func (s *Store) RemoveEvent(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM events WHERE id=?`, id)
	if err != nil {
		return fmt.Errorf("delete event %s: %w", id, err)
	}
	return nil
}

func (s *Store) RemoveAllEvents(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM events`)
	if err != nil {
		return fmt.Errorf("delete events: %w", err)
	}
	return nil
}

func (s *Store) ListEvents(ctx context.Context) ([]model.Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, description, time, duration, category, notifier, action, recurring, pattern
		 FROM events ORDER BY time, id`)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var out []model.Event
	for rows.Next() {
		var (
			e        model.Event
			unixSecs int64
			durSecs  int64
			rec      int
			pattern  sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.Title, &e.Description, &unixSecs, &durSecs,
			&e.Category, &e.Notifier, &e.Action, &rec, &pattern); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.Time = time.Unix(unixSecs, 0).UTC()
		e.Duration = time.Duration(durSecs) * time.Second
		e.Recurring = rec != 0
		if pattern.Valid && pattern.String != "" {
			var p model.Pattern
			if err := json.Unmarshal([]byte(pattern.String), &p); err != nil {
				return nil, fmt.Errorf("unmarshal pattern for %s: %w", e.ID, err)
			}
			e.Pattern = &p
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return out, nil
}

// --- settings ---

func (s *Store) GetSetting(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key=?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get setting %s: %w", key, err)
	}
	return value, true, nil
}

func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO settings (key, value) VALUES (?,?)
		 ON CONFLICT(key) DO UPDATE SET value=excluded.value`,
		key, value)
	if err != nil {
		return fmt.Errorf("set setting %s: %w", key, err)
	}
	return nil
}

func (s *Store) AllSettings(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM settings`)
	if err != nil {
		return nil, fmt.Errorf("list settings: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scan setting: %w", err)
		}
		out[k] = v
	}
	return out, rows.Err()
}

// --- dispatch journal ---

// Dispatch is one journal row: a notification, an execution or a stale drop.
type Dispatch struct {
	ID      string    `json:"id"`
	TaskID  string    `json:"task_id"`
	Kind    string    `json:"kind"` // notify | execute | stale
	FiredAt time.Time `json:"fired_at"`
}

// RecordDispatch appends to the journal. ULID keys sort by creation time, so
// the primary key doubles as the journal order.
func (s *Store) RecordDispatch(ctx context.Context, taskID, kind string, at time.Time) error {
	id := ulid.Make().String()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO dispatches (id, task_id, kind, fired_at) VALUES (?,?,?,?)`,
		id, taskID, kind, at.UTC().Unix())
	if err != nil {
		return fmt.Errorf("record dispatch %s/%s: %w", taskID, kind, err)
	}
	return nil
}

// ListDispatches returns the most recent journal entries, newest first.
func (s *Store) ListDispatches(ctx context.Context, limit int) ([]Dispatch, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, task_id, kind, fired_at FROM dispatches ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list dispatches: %w", err)
	}
	defer rows.Close()

	var out []Dispatch
	for rows.Next() {
		var (
			d    Dispatch
			unix int64
		)
		if err := rows.Scan(&d.ID, &d.TaskID, &d.Kind, &unix); err != nil {
			return nil, fmt.Errorf("scan dispatch: %w", err)
		}
		d.FiredAt = time.Unix(unix, 0).UTC()
		out = append(out, d)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullable(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
