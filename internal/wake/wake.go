package wake

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"wakehub/internal/model"
	"wakehub/internal/sched"
	"wakehub/internal/settings"
)

// Settings keys. All values are persisted as text.
const (
	KeyEnabled        = "wake.enabled"
	KeyBaselineTime   = "wake.baseline_time"
	KeyLeadMinutes    = "wake.lead_minutes"
	KeyOnlyWhenEvents = "wake.only_when_events"
	KeySkipWeekends   = "wake.skip_weekends"
	KeyServerURL      = "wake.server_url"
	KeyUserID         = "user.id"
	KeyUserTimezone   = "user.timezone"
)

const (
	defaultBaseline = "14:00"
	defaultLead     = 45

	maintenanceID = "wake:maintenance"
)

// Reasons reported by ComputeWakeTime.
const (
	ReasonBaseline     = "baseline"
	ReasonEarliestLead = "earliest-minus-lead"
	ReasonNoEventsSkip = "no-events-skip"
	ReasonWeekendSkip  = "weekend-skip"
)

// Decision is the outcome of the wake policy for one day.
type Decision struct {
	Skip        bool
	WakeAt      time.Time
	Reason      string
	FirstEvents []model.Event // up to the first three events of the day
}

// Scheduler derives the per-day wake task and keeps the self-renewing daily
// maintenance task alive. ComputeWakeTime is pure with respect to the day,
// the settings and the events on that day.
type Scheduler struct {
	settings *settings.Service
	model    *model.Model
	loop     *sched.Loop
	clock    sched.Clock
	client   *http.Client
	log      zerolog.Logger
	observe  func(outcome string)
}

type Option func(*Scheduler)

func WithClock(c sched.Clock) Option {
	return func(s *Scheduler) { s.clock = c }
}

func WithClient(c *http.Client) Option {
	return func(s *Scheduler) { s.client = c }
}

// WithPostObserver reports each wake delivery outcome ("ok", "error",
// "unconfigured"), feeding the metrics counters.
func WithPostObserver(fn func(outcome string)) Option {
	return func(s *Scheduler) { s.observe = fn }
}

func New(st *settings.Service, m *model.Model, loop *sched.Loop, log zerolog.Logger, opts ...Option) *Scheduler {
	s := &Scheduler{
		settings: st,
		model:    m,
		loop:     loop,
		clock:    sched.RealClock(),
		log:      log.With().Str("component", "wake").Logger(),
		client: &http.Client{
			Timeout: 5 * time.Second,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{Timeout: 3 * time.Second}).DialContext,
			},
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Scheduler) enabled() bool {
	return s.settings.Bool(KeyEnabled, true)
}

// ComputeWakeTime applies the wake policy to the local calendar day
// containing day.
func (s *Scheduler) ComputeWakeTime(day time.Time) (Decision, error) {
	local := day.Local()
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.Local)

	events := s.model.OnDay(midnight)
	first := events
	if len(first) > 3 {
		first = first[:3]
	}

	baseline := s.settings.String(KeyBaselineTime, defaultBaseline)
	base, err := parseBaseline(midnight, baseline)
	if err != nil {
		return Decision{}, err
	}
	lead := time.Duration(s.settings.Int(KeyLeadMinutes, defaultLead)) * time.Minute
	onlyWhenEvents := s.settings.Bool(KeyOnlyWhenEvents, false)
	skipWeekends := s.settings.Bool(KeySkipWeekends, false)

	if len(events) == 0 {
		switch {
		case onlyWhenEvents:
			return Decision{Skip: true, Reason: ReasonNoEventsSkip}, nil
		case skipWeekends && isWeekend(midnight):
			return Decision{Skip: true, Reason: ReasonWeekendSkip}, nil
		default:
			return Decision{WakeAt: base, Reason: ReasonBaseline, FirstEvents: first}, nil
		}
	}

	earliest := events[0].Time
	candidate := earliest.Add(-lead)
	if onlyWhenEvents || earliest.Before(base) {
		return Decision{WakeAt: candidate, Reason: ReasonEarliestLead, FirstEvents: first}, nil
	}
	return Decision{WakeAt: base, Reason: ReasonBaseline, FirstEvents: first}, nil
}

// PreviewForDate is ComputeWakeTime with no side effects, for the preview
// endpoint.
func (s *Scheduler) PreviewForDate(day time.Time) (Decision, error) {
	return s.ComputeWakeTime(day)
}

// ScheduleToday enqueues the wake task for the current local day.
func (s *Scheduler) ScheduleToday(ctx context.Context) error {
	return s.ScheduleForDate(ctx, s.clock.Now())
}

// ScheduleForDate enqueues the wake task for the given day. Nothing is
// enqueued when waking is disabled, the policy says skip, or the wake instant
// already passed.
func (s *Scheduler) ScheduleForDate(ctx context.Context, day time.Time) error {
	if !s.enabled() {
		return nil
	}
	d, err := s.ComputeWakeTime(day)
	if err != nil {
		return err
	}
	if d.Skip {
		s.log.Info().Str("reason", d.Reason).Msg("wake skipped")
		return nil
	}
	now := s.clock.Now()
	if !d.WakeAt.After(now) {
		s.log.Info().Time("wake_at", d.WakeAt).Msg("wake instant already passed")
		return nil
	}

	jobID := jobIDFor(day)
	ev := model.Event{
		ID:       jobID,
		Title:    "Wake",
		Time:     d.WakeAt,
		Category: model.CategoryInternal,
	}
	task := sched.NewTask(ev, nil, nil, func(ctx context.Context, _ model.Event) error {
		return s.postWake(ctx, d, day, jobID)
	}, now)

	s.log.Info().Str("job_id", jobID).Time("wake_at", d.WakeAt).Str("reason", d.Reason).Msg("wake scheduled")
	return s.loop.AddTask(ctx, task)
}

// ScheduleDailyMaintenance enqueues the task that fires at the next local
// midnight, schedules that day's wake and then re-enqueues itself. The id is
// fixed, so re-enqueues replace the queued copy instead of stacking.
func (s *Scheduler) ScheduleDailyMaintenance(ctx context.Context) error {
	now := s.clock.Now().Local()
	nextMidnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.Local).AddDate(0, 0, 1)

	ev := model.Event{
		ID:       maintenanceID,
		Title:    "Daily wake maintenance",
		Time:     nextMidnight,
		Category: model.CategoryInternal,
	}
	task := sched.NewTask(ev, nil, nil, func(ctx context.Context, _ model.Event) error {
		if err := s.ScheduleToday(ctx); err != nil {
			s.log.Error().Err(err).Msg("maintenance: schedule today failed")
		}
		return s.ScheduleDailyMaintenance(ctx)
	}, s.clock.Now())

	return s.loop.AddTask(ctx, task)
}

func jobIDFor(day time.Time) string {
	return "wake:" + day.Local().Format("2006-01-02")
}

func parseBaseline(midnight time.Time, hhmm string) (time.Time, error) {
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid baseline time %q: %w", hhmm, err)
	}
	return midnight.Add(time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute), nil
}

func isWeekend(d time.Time) bool {
	wd := d.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// --- wake POST ---

type eventRef struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Start string `json:"start"`
}

type earliestEvent struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Start       string `json:"start"`
	DurationSec int    `json:"duration_sec"`
}

type payloadContext struct {
	Source        string         `json:"source"`
	Reason        string         `json:"reason"`
	BaselineTime  string         `json:"baseline_time"`
	LeadMinutes   int            `json:"lead_minutes"`
	Date          string         `json:"date"`
	JobID         string         `json:"job_id"`
	EarliestEvent *earliestEvent `json:"earliest_event"`
	FirstEvents   []eventRef     `json:"first_events"`
}

type payload struct {
	UserID   string         `json:"user_id"`
	WakeTime string         `json:"wake_time"`
	Timezone string         `json:"timezone"`
	Context  payloadContext `json:"context"`
}

// postWake delivers the wake payload. Failures are logged and never retried;
// the next day's maintenance task fires the next wake independently.
func (s *Scheduler) postWake(ctx context.Context, d Decision, day time.Time, jobID string) error {
	url := s.settings.String(KeyServerURL, "")
	if url == "" {
		s.log.Warn().Msg("wake fired but no server url configured")
		s.report("unconfigured")
		return nil
	}

	tz := s.settings.String(KeyUserTimezone, time.Local.String())
	p := payload{
		UserID:   s.settings.String(KeyUserID, ""),
		WakeTime: d.WakeAt.Local().Format(time.RFC3339),
		Timezone: tz,
		Context: payloadContext{
			Source:       "scheduler",
			Reason:       d.Reason,
			BaselineTime: s.settings.String(KeyBaselineTime, defaultBaseline),
			LeadMinutes:  s.settings.Int(KeyLeadMinutes, defaultLead),
			Date:         day.Local().Format("2006-01-02 15:04"),
			JobID:        jobID,
			FirstEvents:  []eventRef{},
		},
	}
	for i, ev := range d.FirstEvents {
		p.Context.FirstEvents = append(p.Context.FirstEvents, eventRef{
			ID:    ev.ID,
			Title: ev.Title,
			Start: ev.Time.Local().Format(time.RFC3339),
		})
		if i == 0 {
			p.Context.EarliestEvent = &earliestEvent{
				ID:          ev.ID,
				Title:       ev.Title,
				Description: ev.Description,
				Start:       ev.Time.Local().Format(time.RFC3339),
				DurationSec: int(ev.Duration / time.Second),
			}
		}
	}

	body, err := json.Marshal(p)
	if err != nil {
		s.report("error")
		return fmt.Errorf("marshal wake payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		s.report("error")
		return fmt.Errorf("wake post: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		s.report("error")
		return fmt.Errorf("wake post: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		s.report("error")
		return fmt.Errorf("wake post: unexpected status %d", resp.StatusCode)
	}
	s.report("ok")
	s.log.Info().Str("job_id", jobID).Str("reason", d.Reason).Msg("wake posted")
	return nil
}

func (s *Scheduler) report(outcome string) {
	if s.observe != nil {
		s.observe(outcome)
	}
}
