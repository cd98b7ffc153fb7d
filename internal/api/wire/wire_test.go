package wire

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"wakehub/internal/model"
)

func TestEventRoundTrip(t *testing.T) {
	e := model.Event{
		ID:          "a1",
		Title:       "standup",
		Description: "daily",
		Time:        time.Date(2025, 6, 2, 9, 30, 0, 0, time.Local),
		Duration:    30 * time.Minute,
		Category:    "work",
		Notifier:    "log",
		Action:      "webhook",
	}

	w := FromModel(e)
	if w.Time != "2025-06-02 09:30" {
		t.Errorf("wire time = %q", w.Time)
	}
	if w.Duration != 1800 {
		t.Errorf("wire duration = %d", w.Duration)
	}

	back, err := w.ToModel()
	if err != nil {
		t.Fatalf("to model: %v", err)
	}
	if !back.Time.Equal(e.Time) || back.Duration != e.Duration {
		t.Errorf("round trip = %+v", back)
	}
	if back.Notifier != "log" || back.Action != "webhook" {
		t.Errorf("names = %q/%q", back.Notifier, back.Action)
	}
}

func TestToModelValidation(t *testing.T) {
	if _, err := (Event{Title: "x", Time: "yesterday"}).ToModel(); !errors.Is(err, model.ErrInvalidInput) {
		t.Errorf("bad time: %v", err)
	}
	if _, err := (Event{Title: "x", Time: "2025-06-02 09:30", Duration: -1}).ToModel(); !errors.Is(err, model.ErrInvalidInput) {
		t.Errorf("negative duration: %v", err)
	}
}

func TestToModelPatternImpliesRecurring(t *testing.T) {
	w := Event{
		Title:   "standup",
		Time:    "2025-06-02 09:30",
		Pattern: &model.Pattern{Freq: model.FreqDaily, Interval: 1},
	}
	e, err := w.ToModel()
	if err != nil {
		t.Fatalf("to model: %v", err)
	}
	if !e.Recurring {
		t.Error("a pattern should imply recurring")
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2025-06-02")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if d.Hour() != 0 || d.Day() != 2 || d.Location() != time.Local {
		t.Errorf("parsed = %v", d)
	}
	if _, err := ParseDate("06/02/2025"); !errors.Is(err, model.ErrInvalidInput) {
		t.Errorf("bad date: %v", err)
	}
}

func TestErrFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{model.ErrNotFound, http.StatusNotFound},
		{model.ErrDuplicateID, http.StatusConflict},
		{model.ErrInvalidInput, http.StatusBadRequest},
		{model.ErrInvalidPattern, http.StatusBadRequest},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		ErrFor(rec, tt.err)
		if rec.Code != tt.want {
			t.Errorf("ErrFor(%v) = %d, want %d", tt.err, rec.Code, tt.want)
		}
	}
}
