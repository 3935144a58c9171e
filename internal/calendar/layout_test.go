package calendar

import (
	"testing"
	"time"

	"github.com/huddleapp/huddle/internal/model"
	"github.com/huddleapp/huddle/internal/recurrence"
)

func occ(id int64, title string, start, end time.Time) recurrence.Occurrence {
	return recurrence.Occurrence{
		Event:     &model.Event{ID: id, Title: title, StartTime: start, EndTime: end},
		StartTime: start,
		EndTime:   end,
	}
}

func day(d int) time.Time {
	return time.Date(2026, 9, d, 0, 0, 0, 0, time.UTC)
}

func TestLayoutOverlappingEventsNeverShareRow(t *testing.T) {
	occs := []recurrence.Occurrence{
		occ(1, "Offsite", day(1), day(4)),                         // Sep 1-3
		occ(2, "Standup", day(2).Add(9*time.Hour), day(2).Add(10*time.Hour)),
		occ(3, "Review", day(3).Add(14*time.Hour), day(3).Add(15*time.Hour)),
		occ(4, "Lunch", day(2).Add(12*time.Hour), day(2).Add(13*time.Hour)),
	}

	bars := Layout(occs, time.UTC)
	if len(bars) != 4 {
		t.Fatalf("bars = %d, want 4", len(bars))
	}

	for i := range bars {
		for j := i + 1; j < len(bars); j++ {
			if bars[i].Row == bars[j].Row && daysOverlap(bars[i], bars[j]) {
				t.Errorf("%q and %q overlap on a day but share row %d",
					bars[i].Title, bars[j].Title, bars[i].Row)
			}
		}
	}
}

func TestLayoutNonOverlappingShareRowZero(t *testing.T) {
	occs := []recurrence.Occurrence{
		occ(1, "Monday", day(1).Add(9*time.Hour), day(1).Add(10*time.Hour)),
		occ(2, "Friday", day(5).Add(9*time.Hour), day(5).Add(10*time.Hour)),
	}

	bars := Layout(occs, time.UTC)
	for _, b := range bars {
		if b.Row != 0 {
			t.Errorf("%q row = %d, want 0 (no day overlap)", b.Title, b.Row)
		}
	}
}

func TestLayoutLongBarKeepsLowRow(t *testing.T) {
	// The multi-day bar starts first, so it takes row 0 and the
	// single-day events stack under it.
	occs := []recurrence.Occurrence{
		occ(2, "Standup", day(2).Add(9*time.Hour), day(2).Add(10*time.Hour)),
		occ(1, "Offsite", day(1), day(5)),
	}

	bars := Layout(occs, time.UTC)
	byTitle := make(map[string]Bar)
	for _, b := range bars {
		byTitle[b.Title] = b
	}
	if byTitle["Offsite"].Row != 0 {
		t.Errorf("Offsite row = %d, want 0", byTitle["Offsite"].Row)
	}
	if byTitle["Standup"].Row != 1 {
		t.Errorf("Standup row = %d, want 1", byTitle["Standup"].Row)
	}
}

func TestLayoutReusesFreedRows(t *testing.T) {
	// Three events on Sep 1, one on Sep 2: the Sep 2 event fits back
	// in row 0.
	occs := []recurrence.Occurrence{
		occ(1, "A", day(1).Add(9*time.Hour), day(1).Add(10*time.Hour)),
		occ(2, "B", day(1).Add(11*time.Hour), day(1).Add(12*time.Hour)),
		occ(3, "C", day(1).Add(13*time.Hour), day(1).Add(14*time.Hour)),
		occ(4, "D", day(2).Add(9*time.Hour), day(2).Add(10*time.Hour)),
	}

	bars := Layout(occs, time.UTC)
	byTitle := make(map[string]Bar)
	for _, b := range bars {
		byTitle[b.Title] = b
	}
	rows := map[int]bool{byTitle["A"].Row: true, byTitle["B"].Row: true, byTitle["C"].Row: true}
	if len(rows) != 3 {
		t.Errorf("same-day events share rows: A=%d B=%d C=%d",
			byTitle["A"].Row, byTitle["B"].Row, byTitle["C"].Row)
	}
	if byTitle["D"].Row != 0 {
		t.Errorf("D row = %d, want 0", byTitle["D"].Row)
	}
}

func TestLastDayMidnightEnd(t *testing.T) {
	// Ends exactly at midnight Sep 3: the bar covers Sep 1-2 only.
	occs := []recurrence.Occurrence{occ(1, "Trip", day(1), day(3))}
	bars := Layout(occs, time.UTC)
	if !bars[0].EndDay.Equal(day(2)) {
		t.Errorf("end day = %v, want %v", bars[0].EndDay, day(2))
	}
}

func TestWeekStart(t *testing.T) {
	// Sep 10 2026 is a Thursday; the week starts Monday Sep 7.
	got := WeekStart(time.Date(2026, 9, 10, 15, 30, 0, 0, time.UTC), time.UTC)
	want := time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("WeekStart = %v, want %v", got, want)
	}

	// A Monday is its own week start.
	got = WeekStart(want, time.UTC)
	if !got.Equal(want) {
		t.Errorf("WeekStart(Monday) = %v, want %v", got, want)
	}
}

func TestMonthGrid(t *testing.T) {
	// September 2026: the 1st is a Tuesday, the 30th a Wednesday.
	start, end := MonthGrid(time.Date(2026, 9, 15, 0, 0, 0, 0, time.UTC), time.UTC)
	if want := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC); !start.Equal(want) {
		t.Errorf("grid start = %v, want %v", start, want)
	}
	if want := time.Date(2026, 10, 5, 0, 0, 0, 0, time.UTC); !end.Equal(want) {
		t.Errorf("grid end = %v, want %v", end, want)
	}
	if days := int(end.Sub(start).Hours() / 24); days%7 != 0 {
		t.Errorf("grid spans %d days, want whole weeks", days)
	}
}
