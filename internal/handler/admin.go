package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/huddleapp/huddle/internal/push"
	"github.com/huddleapp/huddle/internal/store"
)

// AdminHandler exposes the operator and cron surface: broadcasts, manual
// reminder checks, token cleanup and the environment self check.
type AdminHandler struct {
	broadcaster *push.Broadcaster
	scheduler   *push.Scheduler
	registrar   *push.Registrar
	pushStore   *store.PushStore
	service     *push.Service
	logger      *slog.Logger
}

func NewAdminHandler(b *push.Broadcaster, s *push.Scheduler, reg *push.Registrar, ps *store.PushStore, svc *push.Service, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		broadcaster: b,
		scheduler:   s,
		registrar:   reg,
		pushStore:   ps,
		service:     svc,
		logger:      logger,
	}
}

type broadcastRequest struct {
	WindowHours int     `json:"window_hours"`
	Title       string  `json:"title"`
	Body        string  `json:"body"`
	UserIDs     []int64 `json:"user_ids"`
	Detailed    bool    `json:"detailed"`
}

func (req *broadcastRequest) options(kind string) push.BroadcastOptions {
	return push.BroadcastOptions{
		Kind:     kind,
		Window:   time.Duration(req.WindowHours) * time.Hour,
		Title:    req.Title,
		Body:     req.Body,
		UserIDs:  req.UserIDs,
		Detailed: req.Detailed,
	}
}

// Broadcast handles POST /api/admin/broadcast: announce upcoming events
// to every subscription.
func (h *AdminHandler) Broadcast(w http.ResponseWriter, r *http.Request) {
	// The body is optional: an empty POST means "defaults".
	var req broadcastRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	result, err := h.broadcaster.Broadcast(r.Context(), req.options("broadcast"))
	if err != nil {
		h.logger.Error("broadcast", "error", err)
		writeError(w, http.StatusInternalServerError, "broadcast failed")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// BroadcastUsers handles POST /api/admin/broadcast/users: same as
// Broadcast but user_ids is required.
func (h *AdminHandler) BroadcastUsers(w http.ResponseWriter, r *http.Request) {
	var req broadcastRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if len(req.UserIDs) == 0 {
		writeError(w, http.StatusBadRequest, "user_ids is required")
		return
	}

	result, err := h.broadcaster.Broadcast(r.Context(), req.options("broadcast_users"))
	if err != nil {
		h.logger.Error("broadcast users", "error", err)
		writeError(w, http.StatusInternalServerError, "broadcast failed")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// CheckReminders handles POST /api/admin/push/check: run a reminder check
// outside the scheduler's own timer.
func (h *AdminHandler) CheckReminders(w http.ResponseWriter, r *http.Request) {
	err := h.scheduler.CheckNow(r.Context())
	if errors.Is(err, push.ErrCheckSkipped) {
		writeJSON(w, http.StatusOK, map[string]any{"ran": false, "reason": "throttled or already running"})
		return
	}
	if err != nil {
		h.logger.Error("manual reminder check", "error", err)
		writeError(w, http.StatusInternalServerError, "reminder check failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ran": true})
}

type cleanupRequest struct {
	UserID int64 `json:"user_id"`
}

// Cleanup handles POST /api/admin/push/cleanup: drop all of a user's
// subscriptions. Pushes to that user stop until they re-register.
func (h *AdminHandler) Cleanup(w http.ResponseWriter, r *http.Request) {
	var req cleanupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	if err := h.registrar.Cleanup(req.UserID); err != nil {
		if errors.Is(err, push.ErrNoUser) {
			writeError(w, http.StatusBadRequest, "user_id is required")
			return
		}
		h.logger.Error("push cleanup", "user_id", req.UserID, "error", err)
		writeError(w, http.StatusInternalServerError, "cleanup failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user_id": req.UserID, "cleaned": true})
}

// SelfCheck handles GET /api/admin/selfcheck: report whether the push
// pipeline is configured and how many subscriptions it would reach.
func (h *AdminHandler) SelfCheck(w http.ResponseWriter, r *http.Request) {
	subs, err := h.pushStore.ListAll()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to count subscriptions")
		return
	}
	users, err := h.pushStore.ListUserIDs()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to count subscribed users")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"push_configured":  h.service != nil && h.service.VAPIDPublicKey() != "",
		"subscriptions":    len(subs),
		"subscribed_users": len(users),
	})
}

// BroadcastLogs handles GET /api/admin/broadcast/logs.
func (h *AdminHandler) BroadcastLogs(w http.ResponseWriter, r *http.Request) {
	logs, err := h.pushStore.ListBroadcastLogs(50)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list broadcast logs")
		return
	}
	writeJSON(w, http.StatusOK, logs)
}

// CronReminders handles POST /api/cron/reminders: the 24h lookahead
// broadcast, intended to be hit by an external scheduler.
func (h *AdminHandler) CronReminders(w http.ResponseWriter, r *http.Request) {
	result, err := h.broadcaster.Broadcast(r.Context(), push.BroadcastOptions{Kind: "cron_24h"})
	if err != nil {
		h.logger.Error("cron reminders", "error", err)
		writeError(w, http.StatusInternalServerError, "broadcast failed")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// CronDaily handles POST /api/cron/daily: timezone-aware per-user digest.
// Hit hourly; only users whose local digest hour matches get a push.
func (h *AdminHandler) CronDaily(w http.ResponseWriter, r *http.Request) {
	result, err := h.broadcaster.DailyDigest(r.Context(), time.Now())
	if err != nil {
		h.logger.Error("cron daily digest", "error", err)
		writeError(w, http.StatusInternalServerError, "digest failed")
		return
	}
	writeJSON(w, http.StatusOK, result)
}
