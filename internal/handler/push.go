package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/huddleapp/huddle/internal/auth"
	"github.com/huddleapp/huddle/internal/model"
	"github.com/huddleapp/huddle/internal/push"
	"github.com/huddleapp/huddle/internal/store"
)

type PushHandler struct {
	pushStore *store.PushStore
	registrar *push.Registrar
	service   *push.Service
	logger    *slog.Logger
}

func NewPushHandler(ps *store.PushStore, reg *push.Registrar, svc *push.Service, logger *slog.Logger) *PushHandler {
	return &PushHandler{pushStore: ps, registrar: reg, service: svc, logger: logger}
}

type subscribeRequest struct {
	Endpoint   string `json:"endpoint"`
	P256dh     string `json:"p256dh"`
	Auth       string `json:"auth"`
	DeviceName string `json:"device_name"`
	Force      bool   `json:"force"`
}

// Subscribe handles POST /api/push/subscribe.
func (h *PushHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	var req subscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	sub, err := h.registrar.Register(userID, push.Registration{
		Endpoint:   req.Endpoint,
		P256dh:     req.P256dh,
		Auth:       req.Auth,
		DeviceName: req.DeviceName,
	}, req.Force)
	if err != nil {
		if errors.Is(err, push.ErrNoUser) {
			writeError(w, http.StatusBadRequest, "user is required")
			return
		}
		h.logger.Error("register push subscription", "error", err)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, sub)
}

// Unsubscribe handles DELETE /api/push/subscriptions/{id}. Scoped to the
// caller's own subscriptions.
func (h *PushHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	if err := h.pushStore.DeleteSubscription(id, userID); err != nil {
		h.logger.Error("delete push subscription", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete subscription")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListSubscriptions handles GET /api/push/subscriptions.
func (h *PushHandler) ListSubscriptions(w http.ResponseWriter, r *http.Request) {
	subs, err := h.pushStore.ListByUser(auth.UserID(r.Context()))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list subscriptions")
		return
	}
	if subs == nil {
		writeJSON(w, http.StatusOK, []any{})
		return
	}
	writeJSON(w, http.StatusOK, subs)
}

// GetVAPIDKey handles GET /api/push/vapid-key.
func (h *PushHandler) GetVAPIDKey(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"public_key": h.service.VAPIDPublicKey()})
}

// GetPreferences handles GET /api/push/preferences.
func (h *PushHandler) GetPreferences(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	pref, err := h.pushStore.GetPreference(userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get preferences")
		return
	}
	if pref == nil {
		// No row yet: report the defaults the scheduler assumes.
		pref = &model.NotificationPreference{
			UserID:         userID,
			EventReminders: true,
			DigestTime:     "08:00",
			Timezone:       "UTC",
		}
	}
	writeJSON(w, http.StatusOK, pref)
}

type preferencesRequest struct {
	EventReminders bool   `json:"event_reminders"`
	DailyDigest    bool   `json:"daily_digest"`
	DigestTime     string `json:"digest_time"`
	Timezone       string `json:"timezone"`
}

// UpdatePreferences handles PUT /api/push/preferences.
func (h *PushHandler) UpdatePreferences(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	var req preferencesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.DigestTime == "" {
		req.DigestTime = "08:00"
	}
	if req.Timezone == "" {
		req.Timezone = "UTC"
	}

	if err := h.pushStore.SetPreference(userID, req.EventReminders, req.DailyDigest, req.DigestTime, req.Timezone); err != nil {
		h.logger.Error("set push preferences", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update preferences")
		return
	}

	pref, _ := h.pushStore.GetPreference(userID)
	writeJSON(w, http.StatusOK, pref)
}

// TestNotification handles POST /api/push/test.
func (h *PushHandler) TestNotification(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	subs, err := h.pushStore.ListByUser(userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list subscriptions")
		return
	}

	payload := push.Payload{
		Title: "Test Notification",
		Body:  "Push notifications are working!",
		URL:   "/settings",
		Tag:   "test",
	}

	sent := 0
	for i := range subs {
		if err := h.service.Send(r.Context(), &subs[i], payload); err != nil {
			h.logger.Error("test push send", "error", err)
			continue
		}
		sent++
	}
	writeJSON(w, http.StatusOK, map[string]int{"sent": sent})
}
