// Package calendar lays out event occurrences on a month or week grid.
package calendar

import (
	"sort"
	"time"

	"github.com/huddleapp/huddle/internal/recurrence"
)

// Bar is one occurrence placed on the grid. Row is the vertical slot
// within a day cell: occurrences sharing any calendar day never share a
// row.
type Bar struct {
	EventID  int64     `json:"event_id"`
	Title    string    `json:"title"`
	StartDay time.Time `json:"start_day"`
	EndDay   time.Time `json:"end_day"` // inclusive
	StartsAt time.Time `json:"starts_at"`
	EndsAt   time.Time `json:"ends_at"`
	AllDay   bool      `json:"all_day"`
	Row      int       `json:"row"`
}

// Day truncates t to midnight in loc.
func Day(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// lastDay returns the last calendar day an occurrence touches. An
// occurrence ending exactly at midnight does not spill into that day.
func lastDay(start, end time.Time, loc *time.Location) time.Time {
	if !end.After(start) {
		return Day(start, loc)
	}
	d := Day(end, loc)
	if end.Equal(d) {
		d = d.AddDate(0, 0, -1)
	}
	if d.Before(Day(start, loc)) {
		return Day(start, loc)
	}
	return d
}

// Layout assigns each occurrence the first row in which it does not
// overlap, by calendar day, any occurrence already placed there. Input
// order does not matter: bars are placed earliest start first, longer
// spans first on ties, so multi-day bars keep stable rows across weeks.
func Layout(occs []recurrence.Occurrence, loc *time.Location) []Bar {
	bars := make([]Bar, 0, len(occs))
	for _, occ := range occs {
		start := Day(occ.StartTime, loc)
		bars = append(bars, Bar{
			EventID:  occ.Event.ID,
			Title:    occ.Event.Title,
			StartDay: start,
			EndDay:   lastDay(occ.StartTime, occ.EndTime, loc),
			StartsAt: occ.StartTime,
			EndsAt:   occ.EndTime,
			AllDay:   occ.Event.AllDay,
			Row:      -1,
		})
	}

	sort.SliceStable(bars, func(i, j int) bool {
		if !bars[i].StartDay.Equal(bars[j].StartDay) {
			return bars[i].StartDay.Before(bars[j].StartDay)
		}
		if !bars[i].EndDay.Equal(bars[j].EndDay) {
			return bars[i].EndDay.After(bars[j].EndDay)
		}
		return bars[i].StartsAt.Before(bars[j].StartsAt)
	})

	// rows[r] holds the bars already placed in row r.
	var rows [][]int
	for i := range bars {
		placed := false
		for r := range rows {
			if !rowConflicts(bars, rows[r], bars[i]) {
				bars[i].Row = r
				rows[r] = append(rows[r], i)
				placed = true
				break
			}
		}
		if !placed {
			bars[i].Row = len(rows)
			rows = append(rows, []int{i})
		}
	}
	return bars
}

func rowConflicts(bars []Bar, row []int, b Bar) bool {
	for _, idx := range row {
		if daysOverlap(bars[idx], b) {
			return true
		}
	}
	return false
}

// daysOverlap reports whether two bars share any calendar day.
func daysOverlap(a, b Bar) bool {
	return !a.EndDay.Before(b.StartDay) && !b.EndDay.Before(a.StartDay)
}

// WeekStart returns the Monday on or before t's calendar day.
func WeekStart(t time.Time, loc *time.Location) time.Time {
	d := Day(t, loc)
	offset := (int(d.Weekday()) + 6) % 7
	return d.AddDate(0, 0, -offset)
}

// MonthGrid returns the range of whole weeks covering t's month, from
// the Monday on or before the 1st to the Monday after the last day.
// The end bound is exclusive.
func MonthGrid(t time.Time, loc *time.Location) (start, end time.Time) {
	t = t.In(loc)
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, loc)
	start = WeekStart(first, loc)
	end = WeekStart(first.AddDate(0, 1, -1), loc).AddDate(0, 0, 7)
	return start, end
}
