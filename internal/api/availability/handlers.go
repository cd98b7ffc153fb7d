package availability

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"wakehub/internal/api/wire"
	"wakehub/internal/app"
)

type slotRequest struct {
	Time     string `json:"time"`
	Duration int64  `json:"duration"` // seconds
}

func (req slotRequest) parse() (time.Time, time.Duration, error) {
	t, err := wire.ParseTime(req.Time)
	if err != nil {
		return time.Time{}, 0, err
	}
	return t, time.Duration(req.Duration) * time.Second, nil
}

// ConflictsHandler lists the events overlapping a proposed interval.
func ConflictsHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req slotRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			wire.Err(w, http.StatusBadRequest, "invalid request body")
			return
		}
		t, d, err := req.parse()
		if err != nil {
			wire.ErrFor(w, err)
			return
		}
		wire.OK(w, http.StatusOK, wire.FromModelSlice(deps.Model.Conflicts(t, d)))
	}
}

// ValidateHandler reports whether a proposed interval is clash-free.
// Conflicts are informational only; nothing stops an overlapping add.
func ValidateHandler(deps app.Deps) http.HandlerFunc {
	type response struct {
		Valid     bool         `json:"valid"`
		Conflicts []wire.Event `json:"conflicts"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req slotRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			wire.Err(w, http.StatusBadRequest, "invalid request body")
			return
		}
		t, d, err := req.parse()
		if err != nil {
			wire.ErrFor(w, err)
			return
		}
		conflicts := deps.Model.Conflicts(t, d)
		wire.OK(w, http.StatusOK, response{
			Valid:     len(conflicts) == 0,
			Conflicts: wire.FromModelSlice(conflicts),
		})
	}
}

const (
	defaultStartHour  = 9
	defaultEndHour    = 17
	defaultMinMinutes = 30
)

func FreeSlotsHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		date, err := wire.ParseDate(chi.URLParam(r, "date"))
		if err != nil {
			wire.ErrFor(w, err)
			return
		}
		startHour := queryInt(r, "start_hour", defaultStartHour)
		endHour := queryInt(r, "end_hour", defaultEndHour)
		minMinutes := queryInt(r, "min_minutes", defaultMinMinutes)
		if startHour < 0 || endHour > 24 || startHour >= endHour {
			wire.Err(w, http.StatusBadRequest, "invalid workday window")
			return
		}
		wire.OK(w, http.StatusOK, wire.FromSlots(deps.Model.FreeSlots(date, startHour, endHour, minMinutes)))
	}
}

func NextFreeHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		minutes := queryInt(r, "duration_minutes", defaultMinMinutes)
		if minutes <= 0 {
			wire.Err(w, http.StatusBadRequest, "duration_minutes must be positive")
			return
		}
		after := time.Now()
		if raw := r.URL.Query().Get("after"); raw != "" {
			t, err := wire.ParseTime(raw)
			if err != nil {
				wire.ErrFor(w, err)
				return
			}
			after = t
		}
		startHour := queryInt(r, "start_hour", defaultStartHour)
		endHour := queryInt(r, "end_hour", defaultEndHour)

		slot, ok := deps.Model.NextFree(time.Duration(minutes)*time.Minute, after, startHour, endHour)
		if !ok {
			wire.Err(w, http.StatusNotFound, "no free slot within a year")
			return
		}
		wire.OK(w, http.StatusOK, wire.FromSlot(slot))
	}
}

func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}
