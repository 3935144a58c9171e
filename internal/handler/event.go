package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/huddleapp/huddle/internal/auth"
	"github.com/huddleapp/huddle/internal/model"
	"github.com/huddleapp/huddle/internal/recurrence"
	"github.com/huddleapp/huddle/internal/store"
	"github.com/huddleapp/huddle/internal/websocket"
)

type EventHandler struct {
	eventStore *store.EventStore
	hub        *websocket.Hub
	logger     *slog.Logger
}

func NewEventHandler(es *store.EventStore, hub *websocket.Hub, logger *slog.Logger) *EventHandler {
	return &EventHandler{eventStore: es, hub: hub, logger: logger}
}

type eventRequest struct {
	Title         string `json:"title"`
	Description   string `json:"description"`
	StartTime     string `json:"start_time"`
	EndTime       string `json:"end_time"`
	AllDay        bool   `json:"all_day"`
	Location      string `json:"location"`
	RecurFreq     string `json:"recur_freq"`
	RecurInterval int    `json:"recur_interval"`
	RecurUntil    string `json:"recur_until"`
}

func (h *EventHandler) parseAndValidate(w http.ResponseWriter, r *http.Request) (*model.Event, bool) {
	var req eventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return nil, false
	}

	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return nil, false
	}

	startTime, err := time.Parse(time.RFC3339, req.StartTime)
	if err != nil {
		writeError(w, http.StatusBadRequest, "start_time must be RFC3339 format")
		return nil, false
	}
	endTime, err := time.Parse(time.RFC3339, req.EndTime)
	if err != nil {
		writeError(w, http.StatusBadRequest, "end_time must be RFC3339 format")
		return nil, false
	}
	if !startTime.Before(endTime) {
		writeError(w, http.StatusBadRequest, "start_time must be before end_time")
		return nil, false
	}

	e := &model.Event{
		Title:         req.Title,
		Description:   req.Description,
		StartTime:     startTime,
		EndTime:       endTime,
		AllDay:        req.AllDay,
		Location:      req.Location,
		RecurFreq:     req.RecurFreq,
		RecurInterval: req.RecurInterval,
	}

	if req.RecurFreq != "" {
		switch req.RecurFreq {
		case model.RecurDaily, model.RecurWeekly, model.RecurMonthly:
		default:
			writeError(w, http.StatusBadRequest, "recur_freq must be daily, weekly or monthly")
			return nil, false
		}
		if req.RecurUntil != "" {
			until, err := parseFlexibleTime(req.RecurUntil)
			if err != nil {
				writeError(w, http.StatusBadRequest, "recur_until must be RFC3339 or YYYY-MM-DD format")
				return nil, false
			}
			if until.Before(startTime) {
				writeError(w, http.StatusBadRequest, "recur_until must not be before start_time")
				return nil, false
			}
			e.RecurUntil = &until
		}
	} else if req.RecurUntil != "" || req.RecurInterval != 0 {
		writeError(w, http.StatusBadRequest, "recurrence fields require recur_freq")
		return nil, false
	}

	return e, true
}

// Create handles POST /api/events. Admin only.
func (h *EventHandler) Create(w http.ResponseWriter, r *http.Request) {
	e, ok := h.parseAndValidate(w, r)
	if !ok {
		return
	}
	e.CreatedBy = auth.UserID(r.Context())

	event, err := h.eventStore.Create(e)
	if err != nil {
		h.logger.Error("create event", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create event")
		return
	}

	h.hub.Broadcast(websocket.NewMessage("event", "created", event.ID, nil))
	writeJSON(w, http.StatusCreated, event)
}

// List handles GET /api/events?start=&end=. Recurring events are expanded
// into their occurrences inside the range.
func (h *EventHandler) List(w http.ResponseWriter, r *http.Request) {
	start, end, ok := parseRange(w, r)
	if !ok {
		return
	}

	events, err := h.eventStore.ListByDateRange(start, end)
	if err != nil {
		h.logger.Error("list events", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list events")
		return
	}

	occs := recurrence.ExpandAll(events, start, end)
	if occs == nil {
		occs = []recurrence.Occurrence{}
	}
	writeJSON(w, http.StatusOK, occs)
}

// Get handles GET /api/events/{id}.
func (h *EventHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	event, err := h.eventStore.GetByID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get event")
		return
	}
	if event == nil {
		writeError(w, http.StatusNotFound, "event not found")
		return
	}
	writeJSON(w, http.StatusOK, event)
}

// Update handles PUT /api/events/{id}. Admin only.
func (h *EventHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	existing, err := h.eventStore.GetByID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get event")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "event not found")
		return
	}

	e, ok := h.parseAndValidate(w, r)
	if !ok {
		return
	}
	e.CreatedBy = existing.CreatedBy

	event, err := h.eventStore.Update(id, e)
	if err != nil {
		h.logger.Error("update event", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update event")
		return
	}

	h.hub.Broadcast(websocket.NewMessage("event", "updated", event.ID, nil))
	writeJSON(w, http.StatusOK, event)
}

// Delete handles DELETE /api/events/{id}. Admin only. Reminder rows go
// with the event via the foreign key cascade.
func (h *EventHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	existing, err := h.eventStore.GetByID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get event")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "event not found")
		return
	}

	if err := h.eventStore.Delete(id); err != nil {
		h.logger.Error("delete event", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete event")
		return
	}

	h.hub.Broadcast(websocket.NewMessage("event", "deleted", id, nil))
	w.WriteHeader(http.StatusNoContent)
}
