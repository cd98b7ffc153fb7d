package events

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"wakehub/internal/api/wire"
	"wakehub/internal/app"
	"wakehub/internal/model"
)

// defaultNotifyMinutes is the notification schedule for task-category events
// that do not specify their own offsets.
var defaultNotifyMinutes = []int{10}

type createRequest struct {
	wire.Event
	// NotifyMinutes are offsets before the event time, task category only.
	NotifyMinutes []int `json:"notify_minutes,omitempty"`
}

// enqueueTask derives a scheduled task from a task-category event and hands
// it to the loop, which also upserts the event into the model.
func enqueueTask(deps app.Deps, r *http.Request, ev model.Event, notifyMinutes []int) error {
	if len(notifyMinutes) == 0 {
		notifyMinutes = defaultNotifyMinutes
	}
	offsets := make([]time.Duration, 0, len(notifyMinutes))
	for _, m := range notifyMinutes {
		offsets = append(offsets, time.Duration(m)*time.Minute)
	}
	task, err := app.BuildTaskWithOffsets(deps.Registry, ev, offsets, time.Now())
	if err != nil {
		return err
	}
	return deps.Loop.AddTask(r.Context(), task)
}

func CreateHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			wire.Err(w, http.StatusBadRequest, "invalid request body")
			return
		}
		ev, err := req.ToModel()
		if err != nil {
			wire.ErrFor(w, err)
			return
		}
		if ev.ID == "" {
			ev.ID = deps.Model.NewID()
		}
		if err := ev.Validate(); err != nil {
			wire.ErrFor(w, err)
			return
		}

		if ev.Category == model.CategoryTask {
			if err := enqueueTask(deps, r, ev, req.NotifyMinutes); err != nil {
				wire.ErrFor(w, err)
				return
			}
		} else if err := deps.Model.Add(r.Context(), ev); err != nil {
			wire.ErrFor(w, err)
			return
		}
		wire.OK(w, http.StatusCreated, wire.FromModel(ev))
	}
}

// CreateRecurringHandler is the create path that requires a pattern.
func CreateRecurringHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			wire.Err(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Pattern == nil {
			wire.Err(w, http.StatusBadRequest, "pattern is required for recurring events")
			return
		}
		req.Recurring = true
		ev, err := req.ToModel()
		if err != nil {
			wire.ErrFor(w, err)
			return
		}
		if ev.ID == "" {
			ev.ID = deps.Model.NewID()
		}
		if err := ev.Validate(); err != nil {
			wire.ErrFor(w, err)
			return
		}
		if err := deps.Model.Add(r.Context(), ev); err != nil {
			wire.ErrFor(w, err)
			return
		}
		wire.OK(w, http.StatusCreated, wire.FromModel(ev))
	}
}

func ListHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		maxCount := queryInt(r, "max", 0)
		var cutoff time.Time
		if raw := r.URL.Query().Get("until"); raw != "" {
			t, err := wire.ParseTime(raw)
			if err != nil {
				wire.ErrFor(w, err)
				return
			}
			cutoff = t
		}
		wire.OK(w, http.StatusOK, wire.FromModelSlice(deps.Model.ListAll(maxCount, cutoff)))
	}
}

func ListRecurringHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var out []model.Event
		for _, e := range deps.Model.ListAll(0, time.Time{}) {
			if e.Recurring {
				out = append(out, e)
			}
		}
		wire.OK(w, http.StatusOK, wire.FromModelSlice(out))
	}
}

// NextHandler returns the next n occurrences, expanding recurring events.
func NextHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n := queryInt(r, "n", 1)
		wire.OK(w, http.StatusOK, wire.FromOccurrences(deps.Model.GetNextN(n)))
	}
}

func RangeHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		from, err := wire.ParseTime(r.URL.Query().Get("from"))
		if err != nil {
			wire.ErrFor(w, err)
			return
		}
		to, err := wire.ParseTime(r.URL.Query().Get("to"))
		if err != nil {
			wire.ErrFor(w, err)
			return
		}
		wire.OK(w, http.StatusOK, wire.FromOccurrences(deps.Model.RangeExpanded(from, to)))
	}
}

func SearchHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("q")
		if q == "" {
			wire.Err(w, http.StatusBadRequest, "q is required")
			return
		}
		maxResults := queryInt(r, "max", 50)
		wire.OK(w, http.StatusOK, wire.FromModelSlice(deps.Model.Search(q, maxResults)))
	}
}

func CategoriesHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		wire.OK(w, http.StatusOK, deps.Model.Categories())
	}
}

func ByCategoryHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := chi.URLParam(r, "category")
		wire.OK(w, http.StatusOK, wire.FromModelSlice(deps.Model.ByCategory(c)))
	}
}

func ByDurationHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		minMin := queryInt(r, "min", 0)
		maxMin := queryInt(r, "max", 24*60)
		wire.OK(w, http.StatusOK, wire.FromModelSlice(deps.Model.ByDurationRange(minMin, maxMin)))
	}
}

// day/week/month views; these do not expand recurring events.
func OnDayHandler(deps app.Deps) http.HandlerFunc {
	return dayViewHandler(deps, func(m *model.Model, d time.Time) []model.Event { return m.OnDay(d) })
}

func InWeekHandler(deps app.Deps) http.HandlerFunc {
	return dayViewHandler(deps, func(m *model.Model, d time.Time) []model.Event { return m.InWeek(d) })
}

func InMonthHandler(deps app.Deps) http.HandlerFunc {
	return dayViewHandler(deps, func(m *model.Model, d time.Time) []model.Event { return m.InMonth(d) })
}

func dayViewHandler(deps app.Deps, view func(*model.Model, time.Time) []model.Event) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		d, err := wire.ParseDate(chi.URLParam(r, "date"))
		if err != nil {
			wire.ErrFor(w, err)
			return
		}
		wire.OK(w, http.StatusOK, wire.FromModelSlice(view(deps.Model, d)))
	}
}

func GetHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		e, ok := deps.Model.GetByID(id)
		if !ok {
			wire.Err(w, http.StatusNotFound, "event not found")
			return
		}
		wire.OK(w, http.StatusOK, wire.FromModel(e))
	}
}

func UpdateHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		var req createRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			wire.Err(w, http.StatusBadRequest, "invalid request body")
			return
		}
		ev, err := req.ToModel()
		if err != nil {
			wire.ErrFor(w, err)
			return
		}
		ev.ID = id

		if err := deps.Model.Update(r.Context(), id, ev); err != nil {
			wire.ErrFor(w, err)
			return
		}
		// Rescheduling: the queued copy for the old time goes stale and is
		// dropped on dequeue; enqueue a fresh task for the new time.
		if ev.Category == model.CategoryTask {
			if err := enqueueTask(deps, r, ev, req.NotifyMinutes); err != nil {
				wire.ErrFor(w, err)
				return
			}
		}
		wire.OK(w, http.StatusOK, wire.FromModel(ev))
	}
}

type patchRequest struct {
	Title         *string        `json:"title"`
	Description   *string        `json:"description"`
	Time          *string        `json:"time"`
	Duration      *int64         `json:"duration"`
	Category      *string        `json:"category"`
	NotifierName  *string        `json:"notifier_name"`
	ActionName    *string        `json:"action_name"`
	Recurring     *bool          `json:"recurring"`
	Pattern       *model.Pattern `json:"pattern"`
	NotifyMinutes []int          `json:"notify_minutes,omitempty"`
}

func PatchHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		var req patchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			wire.Err(w, http.StatusBadRequest, "invalid request body")
			return
		}

		p := model.Patch{
			Title:       req.Title,
			Description: req.Description,
			Category:    req.Category,
			Notifier:    req.NotifierName,
			Action:      req.ActionName,
			Recurring:   req.Recurring,
			Pattern:     req.Pattern,
		}
		if req.Time != nil {
			t, err := wire.ParseTime(*req.Time)
			if err != nil {
				wire.ErrFor(w, err)
				return
			}
			p.Time = &t
		}
		if req.Duration != nil {
			d := time.Duration(*req.Duration) * time.Second
			p.Duration = &d
		}

		if err := deps.Model.ApplyPatch(r.Context(), id, p); err != nil {
			wire.ErrFor(w, err)
			return
		}
		e, _ := deps.Model.GetByID(id)
		if e.Category == model.CategoryTask {
			if err := enqueueTask(deps, r, e, req.NotifyMinutes); err != nil {
				wire.ErrFor(w, err)
				return
			}
		}
		wire.OK(w, http.StatusOK, wire.FromModel(e))
	}
}

func DeleteHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		soft := r.URL.Query().Get("soft") == "true"
		if err := deps.Model.Remove(r.Context(), id, soft); err != nil {
			wire.ErrFor(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func RestoreHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := deps.Model.Restore(r.Context(), id); err != nil {
			wire.ErrFor(w, err)
			return
		}
		e, _ := deps.Model.GetByID(id)
		wire.OK(w, http.StatusOK, wire.FromModel(e))
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
