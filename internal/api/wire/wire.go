// Package wire holds the JSON types shared by the handler packages: the
// response envelope, the event codec and the wire time format.
package wire

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"wakehub/internal/model"
)

// TimeLayout is the wire form of instants: local time, minute precision.
const TimeLayout = "2006-01-02 15:04"

type envelope struct {
	Status  string `json:"status"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

func OK(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Status: "ok", Data: data})
}

func Err(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Status: "error", Message: msg})
}

// ErrFor translates a model error into the matching status code.
func ErrFor(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, model.ErrNotFound):
		Err(w, http.StatusNotFound, err.Error())
	case errors.Is(err, model.ErrDuplicateID):
		Err(w, http.StatusConflict, err.Error())
	case errors.Is(err, model.ErrInvalidPattern), errors.Is(err, model.ErrInvalidInput):
		Err(w, http.StatusBadRequest, err.Error())
	default:
		Err(w, http.StatusInternalServerError, err.Error())
	}
}

// Event is the wire shape of a calendar event.
type Event struct {
	ID           string         `json:"id,omitempty"`
	Title        string         `json:"title"`
	Description  string         `json:"description,omitempty"`
	Time         string         `json:"time"`
	Duration     int64          `json:"duration"` // seconds
	Category     string         `json:"category,omitempty"`
	NotifierName string         `json:"notifier_name,omitempty"`
	ActionName   string         `json:"action_name,omitempty"`
	Recurring    bool           `json:"recurring,omitempty"`
	Pattern      *model.Pattern `json:"pattern,omitempty"`
}

func FromModel(e model.Event) Event {
	return Event{
		ID:           e.ID,
		Title:        e.Title,
		Description:  e.Description,
		Time:         e.Time.Local().Format(TimeLayout),
		Duration:     int64(e.Duration / time.Second),
		Category:     e.Category,
		NotifierName: e.Notifier,
		ActionName:   e.Action,
		Recurring:    e.Recurring,
		Pattern:      e.Pattern,
	}
}

func FromModelSlice(events []model.Event) []Event {
	out := make([]Event, 0, len(events))
	for _, e := range events {
		out = append(out, FromModel(e))
	}
	return out
}

func (e Event) ToModel() (model.Event, error) {
	t, err := ParseTime(e.Time)
	if err != nil {
		return model.Event{}, err
	}
	if e.Duration < 0 {
		return model.Event{}, fmt.Errorf("%w: duration cannot be negative", model.ErrInvalidInput)
	}
	return model.Event{
		ID:          e.ID,
		Title:       e.Title,
		Description: e.Description,
		Time:        t,
		Duration:    time.Duration(e.Duration) * time.Second,
		Category:    e.Category,
		Notifier:    e.NotifierName,
		Action:      e.ActionName,
		Recurring:   e.Recurring || e.Pattern != nil,
		Pattern:     e.Pattern,
	}, nil
}

// ParseTime reads a wire instant in the host's local zone.
func ParseTime(s string) (time.Time, error) {
	t, err := time.ParseInLocation(TimeLayout, s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: time must be %q", model.ErrInvalidInput, TimeLayout)
	}
	return t, nil
}

// ParseDate reads a YYYY-MM-DD day in the host's local zone.
func ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02", s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date must be YYYY-MM-DD", model.ErrInvalidInput)
	}
	return t, nil
}

// Occurrence is the wire shape of an expanded occurrence.
type Occurrence struct {
	EventID  string `json:"event_id"`
	Title    string `json:"title"`
	Time     string `json:"time"`
	Duration int64  `json:"duration"`
	Category string `json:"category,omitempty"`
}

func FromOccurrences(occs []model.Occurrence) []Occurrence {
	out := make([]Occurrence, 0, len(occs))
	for _, o := range occs {
		out = append(out, Occurrence{
			EventID:  o.EventID,
			Title:    o.Title,
			Time:     o.Time.Local().Format(TimeLayout),
			Duration: int64(o.Duration / time.Second),
			Category: o.Category,
		})
	}
	return out
}

// TimeSlot is the wire shape of a free gap.
type TimeSlot struct {
	Start           string `json:"start"`
	End             string `json:"end"`
	DurationMinutes int    `json:"duration_minutes"`
}

func FromSlots(slots []model.TimeSlot) []TimeSlot {
	out := make([]TimeSlot, 0, len(slots))
	for _, s := range slots {
		out = append(out, FromSlot(s))
	}
	return out
}

func FromSlot(s model.TimeSlot) TimeSlot {
	return TimeSlot{
		Start:           s.Start.Local().Format(TimeLayout),
		End:             s.End.Local().Format(TimeLayout),
		DurationMinutes: int(s.Duration() / time.Minute),
	}
}
