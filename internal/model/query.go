package model

import (
	"sort"
	"strings"
	"time"
)

// ListAll returns up to maxCount events with time before endCutoff, in time
// order. maxCount <= 0 means no count limit; a zero cutoff means no cutoff.
func (m *Model) ListAll(maxCount int, endCutoff time.Time) []Event {
	var out []Event
	for _, e := range m.snapshot() {
		if !endCutoff.IsZero() && e.Time.After(endCutoff) {
			break
		}
		out = append(out, *e)
		if maxCount > 0 && len(out) == maxCount {
			break
		}
	}
	return out
}

// GetNext returns the first event strictly in the future.
func (m *Model) GetNext() (Event, bool) {
	now := m.now()
	for _, e := range m.snapshot() {
		if e.Time.After(now) {
			return *e, true
		}
	}
	return Event{}, false
}

// GetNextN returns the next n occurrences across all events, expanding
// recurring ones, strictly after now, merged in time order.
func (m *Model) GetNextN(n int) []Occurrence {
	if n <= 0 {
		return nil
	}
	now := m.now()

	var all []Occurrence
	for _, e := range m.snapshot() {
		if e.Recurring && e.Pattern != nil {
			for _, t := range e.Pattern.Occurrences(e.Time, now, n) {
				all = append(all, e.occurrenceAt(t))
			}
		} else if e.Time.After(now) {
			all = append(all, e.occurrenceAt(e.Time))
		}
	}
	sortOccurrences(all)
	if len(all) > n {
		all = all[:n]
	}
	return all
}

// RangeExpanded returns every occurrence in [start, end), expanding recurring
// events, sorted by time.
func (m *Model) RangeExpanded(start, end time.Time) []Occurrence {
	var out []Occurrence
	for _, e := range m.snapshot() {
		if e.Recurring && e.Pattern != nil {
			for _, t := range e.Pattern.OccurrencesBefore(e.Time, start.Add(-time.Nanosecond), end) {
				out = append(out, e.occurrenceAt(t))
			}
		} else if !e.Time.Before(start) && e.Time.Before(end) {
			out = append(out, e.occurrenceAt(e.Time))
		}
	}
	sortOccurrences(out)
	return out
}

func sortOccurrences(occs []Occurrence) {
	sort.Slice(occs, func(i, j int) bool {
		if occs[i].Time.Equal(occs[j].Time) {
			return occs[i].EventID < occs[j].EventID
		}
		return occs[i].Time.Before(occs[j].Time)
	})
}

// between returns live events (no expansion) with time in [start, end).
func (m *Model) between(start, end time.Time) []Event {
	var out []Event
	for _, e := range m.snapshot() {
		if !e.Time.Before(start) && e.Time.Before(end) {
			out = append(out, *e)
		}
	}
	return out
}

// OnDay returns the events on the local calendar day containing d.
// Recurring events are not expanded here, matching the model's day queries.
func (m *Model) OnDay(d time.Time) []Event {
	start := midnight(d)
	return m.between(start, start.AddDate(0, 0, 1))
}

// InWeek returns the events in the Monday-based local week containing d.
func (m *Model) InWeek(d time.Time) []Event {
	start := midnight(d)
	// Walk back to Monday.
	offset := (int(start.Weekday()) + 6) % 7
	start = start.AddDate(0, 0, -offset)
	return m.between(start, start.AddDate(0, 0, 7))
}

// InMonth returns the events in the local calendar month containing d.
func (m *Model) InMonth(d time.Time) []Event {
	local := d.Local()
	start := time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, time.Local)
	return m.between(start, start.AddDate(0, 1, 0))
}

func midnight(d time.Time) time.Time {
	local := d.Local()
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.Local)
}

// ByDurationRange returns events whose duration is within [minMin, maxMin]
// minutes.
func (m *Model) ByDurationRange(minMin, maxMin int) []Event {
	lo := time.Duration(minMin) * time.Minute
	hi := time.Duration(maxMin) * time.Minute
	var out []Event
	for _, e := range m.snapshot() {
		if e.Duration >= lo && e.Duration <= hi {
			out = append(out, *e)
		}
	}
	return out
}

func (m *Model) ByCategory(category string) []Event {
	var out []Event
	for _, e := range m.snapshot() {
		if e.Category == category {
			out = append(out, *e)
		}
	}
	return out
}

// Search returns up to maxResults events whose title or description contains
// the substring. Matching is case-sensitive.
func (m *Model) Search(substr string, maxResults int) []Event {
	var out []Event
	for _, e := range m.snapshot() {
		if strings.Contains(e.Title, substr) || strings.Contains(e.Description, substr) {
			out = append(out, *e)
			if maxResults > 0 && len(out) == maxResults {
				break
			}
		}
	}
	return out
}

// Categories returns the sorted set of category strings in the live index.
func (m *Model) Categories() []string {
	seen := make(map[string]struct{})
	for _, e := range m.snapshot() {
		if e.Category != "" {
			seen[e.Category] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Conflicts returns events whose interval overlaps [t, t+duration),
// half-open on both sides.
func (m *Model) Conflicts(t time.Time, duration time.Duration) []Event {
	var out []Event
	for _, e := range m.snapshot() {
		if e.Overlaps(t, duration) {
			out = append(out, *e)
		}
	}
	return out
}

// TimeSlot is a free gap inside a workday window.
type TimeSlot struct {
	Start time.Time
	End   time.Time
}

func (s TimeSlot) Duration() time.Duration { return s.End.Sub(s.Start) }

// FreeSlots returns the maximal gaps of at least minMinutes inside the
// [startHour, endHour) window of the given local day, after subtracting every
// event interval that intersects the window.
func (m *Model) FreeSlots(date time.Time, startHour, endHour, minMinutes int) []TimeSlot {
	dayStart := midnight(date)
	winStart := dayStart.Add(time.Duration(startHour) * time.Hour)
	winEnd := dayStart.Add(time.Duration(endHour) * time.Hour)
	if !winEnd.After(winStart) {
		return nil
	}

	// Busy intervals clipped to the window, sorted by start.
	type interval struct{ start, end time.Time }
	var busy []interval
	for _, e := range m.snapshot() {
		if !e.Overlaps(winStart, winEnd.Sub(winStart)) {
			continue
		}
		iv := interval{start: e.Time, end: e.End()}
		if iv.start.Before(winStart) {
			iv.start = winStart
		}
		if iv.end.After(winEnd) {
			iv.end = winEnd
		}
		busy = append(busy, iv)
	}
	sort.Slice(busy, func(i, j int) bool { return busy[i].start.Before(busy[j].start) })

	minDur := time.Duration(minMinutes) * time.Minute
	var out []TimeSlot
	cursor := winStart
	for _, iv := range busy {
		if iv.start.After(cursor) && iv.start.Sub(cursor) >= minDur {
			out = append(out, TimeSlot{Start: cursor, End: iv.start})
		}
		if iv.end.After(cursor) {
			cursor = iv.end
		}
	}
	if winEnd.After(cursor) && winEnd.Sub(cursor) >= minDur {
		out = append(out, TimeSlot{Start: cursor, End: winEnd})
	}
	return out
}

// NextFree walks days forward from after and returns the first free slot of
// at least the given duration inside the daily [startHour, endHour) window.
// The search gives up one year out.
func (m *Model) NextFree(duration time.Duration, after time.Time, startHour, endHour int) (TimeSlot, bool) {
	minMinutes := int(duration / time.Minute)
	for i := 0; i < 366; i++ {
		d := after.AddDate(0, 0, i)
		for _, slot := range m.FreeSlots(d, startHour, endHour, minMinutes) {
			start := slot.Start
			if start.Before(after) {
				start = after
			}
			if slot.End.Sub(start) >= duration {
				return TimeSlot{Start: start, End: slot.End}, true
			}
		}
	}
	return TimeSlot{}, false
}
