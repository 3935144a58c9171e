package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/huddleapp/huddle/internal/calendar"
	"github.com/huddleapp/huddle/internal/recurrence"
	"github.com/huddleapp/huddle/internal/store"
)

type CalendarHandler struct {
	eventStore *store.EventStore
	logger     *slog.Logger
}

func NewCalendarHandler(es *store.EventStore, logger *slog.Logger) *CalendarHandler {
	return &CalendarHandler{eventStore: es, logger: logger}
}

// Layout handles GET /api/calendar/layout?start=&end=&tz=. It returns the
// range's occurrences placed into grid rows, so the client renders bars
// without running its own overlap logic.
func (h *CalendarHandler) Layout(w http.ResponseWriter, r *http.Request) {
	start, end, ok := parseRange(w, r)
	if !ok {
		return
	}

	loc := time.UTC
	if tz := r.URL.Query().Get("tz"); tz != "" {
		parsed, err := time.LoadLocation(tz)
		if err != nil {
			writeError(w, http.StatusBadRequest, "unknown tz")
			return
		}
		loc = parsed
	}

	events, err := h.eventStore.ListByDateRange(start, end)
	if err != nil {
		h.logger.Error("list events for layout", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list events")
		return
	}

	bars := calendar.Layout(recurrence.ExpandAll(events, start, end), loc)
	if bars == nil {
		bars = []calendar.Bar{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"start": start,
		"end":   end,
		"bars":  bars,
	})
}
