package wakeapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"wakehub/internal/api/wire"
	"wakehub/internal/app"
	"wakehub/internal/auth"
	"wakehub/internal/wake"
)

// wakeConfig is the wire form of the wake.* settings.
type wakeConfig struct {
	Enabled        bool   `json:"enabled"`
	BaselineTime   string `json:"baseline_time"`
	LeadMinutes    int    `json:"lead_minutes"`
	OnlyWhenEvents bool   `json:"only_when_events"`
	SkipWeekends   bool   `json:"skip_weekends"`
	ServerURL      string `json:"server_url"`
}

func GetConfigHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := deps.Settings
		wire.OK(w, http.StatusOK, wakeConfig{
			Enabled:        s.Bool(wake.KeyEnabled, true),
			BaselineTime:   s.String(wake.KeyBaselineTime, "14:00"),
			LeadMinutes:    s.Int(wake.KeyLeadMinutes, 45),
			OnlyWhenEvents: s.Bool(wake.KeyOnlyWhenEvents, false),
			SkipWeekends:   s.Bool(wake.KeySkipWeekends, false),
			ServerURL:      s.String(wake.KeyServerURL, ""),
		})
	}
}

// PutConfigHandler persists the wake settings and reschedules today's wake so
// the new policy takes effect without waiting for midnight maintenance.
func PutConfigHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req wakeConfig
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			wire.Err(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if _, err := time.Parse("15:04", req.BaselineTime); err != nil {
			wire.Err(w, http.StatusBadRequest, "baseline_time must be HH:MM")
			return
		}
		if req.LeadMinutes < 0 {
			wire.Err(w, http.StatusBadRequest, "lead_minutes cannot be negative")
			return
		}

		pairs := map[string]string{
			wake.KeyEnabled:        boolStr(req.Enabled),
			wake.KeyBaselineTime:   req.BaselineTime,
			wake.KeyLeadMinutes:    strconv.Itoa(req.LeadMinutes),
			wake.KeyOnlyWhenEvents: boolStr(req.OnlyWhenEvents),
			wake.KeySkipWeekends:   boolStr(req.SkipWeekends),
			wake.KeyServerURL:      req.ServerURL,
		}
		for k, v := range pairs {
			if err := deps.Settings.Set(r.Context(), k, v); err != nil {
				wire.Err(w, http.StatusInternalServerError, "failed to persist settings")
				return
			}
		}

		if err := deps.Wake.ScheduleToday(r.Context()); err != nil {
			deps.Log.Error().Err(err).Msg("reschedule after config change failed")
		}
		GetConfigHandler(deps)(w, r)
	}
}

type preview struct {
	Skip        bool         `json:"skip"`
	WakeTime    string       `json:"wake_time,omitempty"`
	Reason      string       `json:"reason"`
	FirstEvents []wire.Event `json:"first_events"`
}

func PreviewHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		day, err := wire.ParseDate(chi.URLParam(r, "date"))
		if err != nil {
			wire.ErrFor(w, err)
			return
		}
		d, err := deps.Wake.PreviewForDate(day)
		if err != nil {
			wire.ErrFor(w, err)
			return
		}
		resp := preview{
			Skip:        d.Skip,
			Reason:      d.Reason,
			FirstEvents: wire.FromModelSlice(d.FirstEvents),
		}
		if !d.Skip {
			resp.WakeTime = d.WakeAt.Local().Format(time.RFC3339)
		}
		wire.OK(w, http.StatusOK, resp)
	}
}

func Routes(r chi.Router, deps app.Deps) {
	admin := auth.RequireAdmin(auth.Keys{
		APIKey:       deps.Cfg.APIKey,
		AdminKey:     deps.Cfg.AdminKey,
		AdminKeyHash: deps.Cfg.AdminKeyHash,
	})

	r.Route("/wake", func(r chi.Router) {
		r.Get("/config", GetConfigHandler(deps))
		r.With(admin).Put("/config", PutConfigHandler(deps))
		r.Post("/preview/{date}", PreviewHandler(deps))
	})
}

func boolStr(b bool) string {
	return strconv.FormatBool(b)
}
