package model

import (
	"fmt"
	"sort"
	"time"
)

type Frequency string

const (
	FreqDaily   Frequency = "daily"
	FreqWeekly  Frequency = "weekly"
	FreqMonthly Frequency = "monthly"
	FreqYearly  Frequency = "yearly"
)

const day = 24 * time.Hour

// Pattern describes how a recurring event repeats. The anchor instant (the
// event's own time) is occurrence zero; it is passed to the enumeration
// methods rather than stored here, so a pattern is plain shareable data.
type Pattern struct {
	Freq     Frequency `json:"freq"`
	Interval int       `json:"interval"`

	// Days applies to weekly patterns only (0 = Sunday .. 6 = Saturday).
	Days []time.Weekday `json:"days,omitempty"`

	// Max caps the number of occurrences; -1 (or 0 on input) means unbounded.
	Max int `json:"max"`

	// End is the last admissible instant; nil means unbounded.
	End *time.Time `json:"end,omitempty"`
}

func (p *Pattern) Validate() error {
	switch p.Freq {
	case FreqDaily, FreqWeekly, FreqMonthly, FreqYearly:
	default:
		return fmt.Errorf("%w: unknown frequency %q", ErrInvalidPattern, p.Freq)
	}
	if p.Interval < 1 {
		return fmt.Errorf("%w: interval must be >= 1, got %d", ErrInvalidPattern, p.Interval)
	}
	if p.Freq == FreqWeekly {
		if len(p.Days) == 0 {
			return fmt.Errorf("%w: weekly pattern needs at least one day", ErrInvalidPattern)
		}
		for _, d := range p.Days {
			if d < time.Sunday || d > time.Saturday {
				return fmt.Errorf("%w: invalid weekday %d", ErrInvalidPattern, d)
			}
		}
	} else if len(p.Days) != 0 {
		return fmt.Errorf("%w: days are only valid for weekly patterns", ErrInvalidPattern)
	}
	if p.Max < -1 {
		return fmt.Errorf("%w: max must be -1 or positive, got %d", ErrInvalidPattern, p.Max)
	}
	return nil
}

// Normalize maps the zero values of optional fields onto their unbounded
// forms and collapses repeated weekdays, so a day listed twice neither emits
// a duplicate occurrence nor consumes an extra max index.
func (p *Pattern) Normalize() {
	if p.Max == 0 {
		p.Max = -1
	}
	if p.End != nil && p.End.IsZero() {
		p.End = nil
	}
	if len(p.Days) > 1 {
		sort.Slice(p.Days, func(i, j int) bool { return p.Days[i] < p.Days[j] })
		uniq := p.Days[:1]
		for _, d := range p.Days[1:] {
			if d != uniq[len(uniq)-1] {
				uniq = append(uniq, d)
			}
		}
		p.Days = uniq
	}
}

// maxReached reports whether occurrence index i falls outside [0, Max).
func (p *Pattern) maxReached(i int) bool {
	return p.Max >= 0 && i >= p.Max
}

// pastEnd reports whether an occurrence instant lies beyond the end bound.
func (p *Pattern) pastEnd(occ time.Time) bool {
	return p.End != nil && occ.After(*p.End)
}

// Occurrences returns up to n valid occurrences of the pattern anchored at
// anchor, each strictly after the given instant, in ascending order.
func (p *Pattern) Occurrences(anchor, after time.Time, n int) []time.Time {
	if n <= 0 {
		return nil
	}
	switch p.Freq {
	case FreqDaily:
		return p.steppedOccurrences(anchor, after, n, func(i int) time.Time {
			return anchor.Add(time.Duration(i*p.Interval) * day)
		})
	case FreqWeekly:
		return p.weeklyOccurrences(anchor, after, n)
	case FreqMonthly:
		return p.steppedOccurrences(anchor, after, n, func(i int) time.Time {
			return addMonthsClamped(anchor, i*p.Interval)
		})
	case FreqYearly:
		return p.steppedOccurrences(anchor, after, n, func(i int) time.Time {
			return addMonthsClamped(anchor, i*p.Interval*12)
		})
	}
	return nil
}

// steppedOccurrences enumerates occurrence indices 0,1,2,... where the
// instant of index i is produced by occAt. Covers daily, monthly and yearly.
func (p *Pattern) steppedOccurrences(anchor, after time.Time, n int, occAt func(i int) time.Time) []time.Time {
	out := make([]time.Time, 0, n)
	for i := 0; ; i++ {
		if p.maxReached(i) {
			break
		}
		occ := occAt(i)
		if p.pastEnd(occ) {
			break
		}
		if !occ.After(after) {
			continue
		}
		out = append(out, occ)
		if len(out) == n {
			break
		}
	}
	return out
}

// weeklyOccurrences walks weeks from the anchor. For each week the configured
// days are visited in ascending order; candidates before the anchor are not
// occurrences and do not consume an index.
func (p *Pattern) weeklyOccurrences(anchor, after time.Time, n int) []time.Time {
	days := make([]time.Weekday, len(p.Days))
	copy(days, p.Days)
	sort.Slice(days, func(i, j int) bool { return days[i] < days[j] })

	anchorDay := time.Date(anchor.Year(), anchor.Month(), anchor.Day(), 0, 0, 0, 0, anchor.Location())
	timeOfDay := anchor.Sub(anchorDay)
	anchorWeekday := int(anchor.Weekday())

	out := make([]time.Time, 0, n)
	idx := 0
	for week := 0; ; week++ {
		offset := week * p.Interval * 7
		for _, d := range days {
			occ := anchorDay.Add(time.Duration(offset+int(d)-anchorWeekday) * day).Add(timeOfDay)
			if occ.Before(anchor) {
				continue
			}
			if p.maxReached(idx) {
				return out
			}
			if p.pastEnd(occ) {
				return out
			}
			idx++
			if !occ.After(after) {
				continue
			}
			out = append(out, occ)
			if len(out) == n {
				return out
			}
		}
	}
}

// IsDueOn reports whether d is exactly an occurrence of the pattern. It is
// derived from Occurrences so there is a single source of truth.
func (p *Pattern) IsDueOn(anchor, d time.Time) bool {
	occs := p.Occurrences(anchor, d.Add(-time.Nanosecond), 1)
	return len(occs) == 1 && occs[0].Equal(d)
}

// OccurrencesBefore returns every occurrence strictly after the given instant
// and strictly before end, in ascending order.
func (p *Pattern) OccurrencesBefore(anchor, after, end time.Time) []time.Time {
	const batch = 64
	var out []time.Time
	cursor := after
	for {
		occs := p.Occurrences(anchor, cursor, batch)
		for _, occ := range occs {
			if !occ.Before(end) {
				return out
			}
			out = append(out, occ)
		}
		if len(occs) < batch {
			return out
		}
		cursor = occs[len(occs)-1]
	}
}

// addMonthsClamped shifts t by whole months, clamping the day-of-month to the
// last valid day of the target month so Jan 31 + 1 month lands on Feb 28/29,
// never in March.
func addMonthsClamped(t time.Time, months int) time.Time {
	total := int(t.Month()) - 1 + months
	year := t.Year() + total/12
	month := time.Month(total%12 + 1)

	dom := t.Day()
	if last := daysInMonth(year, month); dom > last {
		dom = last
	}
	return time.Date(year, month, dom, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func daysInMonth(year int, month time.Month) int {
	// Day zero of the following month is the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
