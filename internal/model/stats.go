package model

import (
	"sort"
	"time"
)

const busiestDaysTopK = 5

type DayCount struct {
	Day   string `json:"day"` // YYYY-MM-DD, local
	Count int    `json:"count"`
}

type Stats struct {
	TotalEvents      int            `json:"total_events"`
	TotalMinutes     int            `json:"total_minutes"`
	EventsByCategory map[string]int `json:"events_by_category"`
	BusiestDays      []DayCount     `json:"busiest_days"`
	BusiestHours     [24]int        `json:"busiest_hours"`
}

// Stats summarizes the events with time in [start, end). Recurring events
// count once at their anchor, mirroring the day/week/month queries.
func (m *Model) Stats(start, end time.Time) Stats {
	st := Stats{EventsByCategory: make(map[string]int)}
	dayCounts := make(map[string]int)

	for _, e := range m.between(start, end) {
		st.TotalEvents++
		st.TotalMinutes += int(e.Duration / time.Minute)
		if e.Category != "" {
			st.EventsByCategory[e.Category]++
		}
		local := e.Time.Local()
		dayCounts[local.Format("2006-01-02")]++
		st.BusiestHours[local.Hour()]++
	}

	days := make([]DayCount, 0, len(dayCounts))
	for d, c := range dayCounts {
		days = append(days, DayCount{Day: d, Count: c})
	}
	sort.Slice(days, func(i, j int) bool {
		if days[i].Count == days[j].Count {
			return days[i].Day < days[j].Day
		}
		return days[i].Count > days[j].Count
	})
	if len(days) > busiestDaysTopK {
		days = days[:busiestDaysTopK]
	}
	st.BusiestDays = days
	return st
}
