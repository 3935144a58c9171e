// Package recurrence expands an event's repeat rule into concrete
// occurrences inside a query window. Rules are structured columns on the
// event row (frequency, interval, optional until) rather than RRULE text.
package recurrence

import (
	"time"

	"github.com/huddleapp/huddle/internal/model"
)

// Occurrence is one concrete instance of an event within a window.
type Occurrence struct {
	Event     *model.Event `json:"event"`
	StartTime time.Time    `json:"start_time"`
	EndTime   time.Time    `json:"end_time"`
}

// maxOccurrences bounds runaway expansion for malformed rules.
const maxOccurrences = 1000

// Expand returns the occurrences of e that intersect [rangeStart, rangeEnd).
// Non-recurring events yield at most one occurrence.
func Expand(e *model.Event, rangeStart, rangeEnd time.Time) []Occurrence {
	duration := e.EndTime.Sub(e.StartTime)

	if !e.Recurs() {
		if e.StartTime.Before(rangeEnd) && e.EndTime.After(rangeStart) {
			return []Occurrence{{Event: e, StartTime: e.StartTime, EndTime: e.EndTime}}
		}
		return nil
	}

	interval := e.RecurInterval
	if interval < 1 {
		interval = 1
	}

	var out []Occurrence
	start := e.StartTime
	for i := 0; i < maxOccurrences; i++ {
		if !start.Before(rangeEnd) {
			break
		}
		if e.RecurUntil != nil && start.After(*e.RecurUntil) {
			break
		}
		end := start.Add(duration)
		if end.After(rangeStart) {
			out = append(out, Occurrence{Event: e, StartTime: start, EndTime: end})
		}
		start = next(start, e.RecurFreq, interval)
	}
	return out
}

// ExpandAll expands a slice of events and returns all occurrences in the
// window, sorted by start time.
func ExpandAll(events []model.Event, rangeStart, rangeEnd time.Time) []Occurrence {
	var out []Occurrence
	for i := range events {
		out = append(out, Expand(&events[i], rangeStart, rangeEnd)...)
	}
	sortOccurrences(out)
	return out
}

func next(t time.Time, freq string, interval int) time.Time {
	switch freq {
	case model.RecurDaily:
		return t.AddDate(0, 0, interval)
	case model.RecurWeekly:
		return t.AddDate(0, 0, 7*interval)
	case model.RecurMonthly:
		return t.AddDate(0, interval, 0)
	default:
		// Unknown frequency: step past the window to terminate.
		return t.AddDate(100, 0, 0)
	}
}

func sortOccurrences(occs []Occurrence) {
	// Insertion sort: per-event expansions are already ordered and the
	// merged slice is nearly sorted.
	for i := 1; i < len(occs); i++ {
		for j := i; j > 0 && occs[j].StartTime.Before(occs[j-1].StartTime); j-- {
			occs[j], occs[j-1] = occs[j-1], occs[j]
		}
	}
}
