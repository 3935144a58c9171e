package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/huddleapp/huddle/internal/calendar"
	"github.com/huddleapp/huddle/internal/model"
	"github.com/huddleapp/huddle/internal/store"
)

func TestCalendarLayout(t *testing.T) {
	db := testDB(t)
	user := seedUser(t, db, "cal@example.com", model.RoleMember)
	es := store.NewEventStore(db)
	h := NewCalendarHandler(es, discardLogger())

	mk := func(title, start, end string) {
		s, _ := parseFlexibleTime(start)
		e, _ := parseFlexibleTime(end)
		if _, err := es.Create(&model.Event{Title: title, StartTime: s, EndTime: e, CreatedBy: user.ID}); err != nil {
			t.Fatalf("create %s: %v", title, err)
		}
	}
	mk("Offsite", "2026-09-01T00:00:00Z", "2026-09-04T00:00:00Z")
	mk("Standup", "2026-09-02T09:00:00Z", "2026-09-02T09:15:00Z")

	req := asUser(httptest.NewRequest("GET", "/api/calendar/layout?start=2026-09-01&end=2026-09-08", nil), user)
	rec := httptest.NewRecorder()
	h.Layout(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var body struct {
		Bars []calendar.Bar `json:"bars"`
	}
	json.Unmarshal(rec.Body.Bytes(), &body)
	if len(body.Bars) != 2 {
		t.Fatalf("bars = %d, want 2", len(body.Bars))
	}
	if body.Bars[0].Row == body.Bars[1].Row {
		t.Error("overlapping events must not share a row")
	}
}

func TestCalendarLayoutBadTimezone(t *testing.T) {
	db := testDB(t)
	user := seedUser(t, db, "tz@example.com", model.RoleMember)
	h := NewCalendarHandler(store.NewEventStore(db), discardLogger())

	req := asUser(httptest.NewRequest("GET", "/api/calendar/layout?start=2026-09-01&end=2026-09-08&tz=Mars/Olympus", nil), user)
	rec := httptest.NewRecorder()
	h.Layout(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}
