package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/huddleapp/huddle/internal/handler"
	"github.com/huddleapp/huddle/internal/middleware"
	"github.com/huddleapp/huddle/internal/push"
	"github.com/huddleapp/huddle/internal/store"
	ws "github.com/huddleapp/huddle/internal/websocket"
)

// Config carries the server's external configuration.
type Config struct {
	Push          push.Config
	ServiceSecret []byte
}

type Server struct {
	db           *sql.DB
	hub          *ws.Hub
	authH        *handler.AuthHandler
	userH        *handler.UserHandler
	eventH       *handler.EventHandler
	calendarH    *handler.CalendarHandler
	pushH        *handler.PushHandler
	adminH       *handler.AdminHandler
	userStore    *store.UserStore
	sessionStore *store.SessionStore
	pushStore    *store.PushStore
	rateLimiter  *middleware.RateLimiter
	scheduler    *push.Scheduler
	serviceKey   []byte
	logger       *slog.Logger
}

func New(db *sql.DB, cfg Config, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))

	userStore := store.NewUserStore(db)
	sessionStore := store.NewSessionStore(db)
	eventStore := store.NewEventStore(db)
	pushStore := store.NewPushStore(db)

	pushLogger := logger.With("component", "push")

	// The push pipeline only comes up with VAPID keys configured; the
	// rest of the app works without it.
	var (
		pushSvc   *push.Service
		scheduler *push.Scheduler
		registrar *push.Registrar
		pushH     *handler.PushHandler
		adminH    *handler.AdminHandler
	)
	if cfg.Push.VAPIDPublicKey != "" && cfg.Push.VAPIDPrivateKey != "" {
		pushSvc = push.NewService(cfg.Push)
		registrar = push.NewRegistrar(pushStore, pushLogger)
		scheduler = push.NewScheduler(pushSvc, pushStore, eventStore, pushLogger.With("component", "scheduler"))
		scheduler.SetNotifier(func(eventID int64, ref, typ string) {
			hub.Broadcast(ws.NewMessage("reminder", "sent", eventID, map[string]any{"ref": ref, "reminder_type": typ}))
		})
		broadcaster := push.NewBroadcaster(pushSvc, pushStore, eventStore, pushLogger.With("component", "broadcaster"))
		pushH = handler.NewPushHandler(pushStore, registrar, pushSvc, pushLogger)
		adminH = handler.NewAdminHandler(broadcaster, scheduler, registrar, pushStore, pushSvc, logger.With("component", "admin"))
	}

	return &Server{
		db:           db,
		hub:          hub,
		authH:        handler.NewAuthHandler(userStore, sessionStore, logger.With("component", "auth")),
		userH:        handler.NewUserHandler(userStore, sessionStore, logger.With("component", "user")),
		eventH:       handler.NewEventHandler(eventStore, hub, logger.With("component", "event")),
		calendarH:    handler.NewCalendarHandler(eventStore, logger.With("component", "calendar")),
		pushH:        pushH,
		adminH:       adminH,
		userStore:    userStore,
		sessionStore: sessionStore,
		pushStore:    pushStore,
		rateLimiter:  middleware.NewRateLimiter(),
		scheduler:    scheduler,
		serviceKey:   cfg.ServiceSecret,
		logger:       logger,
	}
}

// SessionStore returns the session store for cleanup tasks.
func (s *Server) SessionStore() *store.SessionStore {
	return s.sessionStore
}

// PushStore returns the push store for cleanup tasks.
func (s *Server) PushStore() *store.PushStore {
	return s.pushStore
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

// Scheduler returns the reminder scheduler, nil when push is unconfigured.
func (s *Server) Scheduler() *push.Scheduler {
	return s.scheduler
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	// Public routes.
	mux.HandleFunc("POST /api/auth/register", s.rateLimited(s.authH.Register))
	mux.HandleFunc("POST /api/auth/login", s.rateLimited(s.authH.Login))
	mux.HandleFunc("GET /health", s.healthHandler)

	requireAuth := middleware.RequireAuth(s.sessionStore, s.userStore)

	// Authenticated routes.
	authed := http.NewServeMux()
	s.registerAuthedRoutes(authed)
	mux.Handle("/api/", requireAuth(authed))
	mux.Handle("GET /ws", requireAuth(ws.HandleWebSocket(s.hub)))

	// Cron routes take a service bearer token (or a super admin session).
	if s.adminH != nil {
		serviceAuth := middleware.RequireServiceToken(s.serviceKey, s.sessionStore, s.userStore)
		mux.Handle("POST /api/cron/reminders", serviceAuth(http.HandlerFunc(s.adminH.CronReminders)))
		mux.Handle("POST /api/cron/daily", serviceAuth(http.HandlerFunc(s.adminH.CronDaily)))
	}

	return middleware.RequestLogger(s.logger.With("component", "http"))(mux)
}

func (s *Server) registerAuthedRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/auth/logout", s.authH.Logout)
	mux.HandleFunc("GET /api/auth/me", s.authH.Me)

	// Events: reads for everyone, writes for admins.
	mux.HandleFunc("GET /api/events", s.eventH.List)
	mux.HandleFunc("GET /api/events/{id}", s.eventH.Get)
	mux.Handle("POST /api/events", middleware.RequireAdmin(http.HandlerFunc(s.eventH.Create)))
	mux.Handle("PUT /api/events/{id}", middleware.RequireAdmin(http.HandlerFunc(s.eventH.Update)))
	mux.Handle("DELETE /api/events/{id}", middleware.RequireAdmin(http.HandlerFunc(s.eventH.Delete)))

	mux.HandleFunc("GET /api/calendar/layout", s.calendarH.Layout)

	// Users: role changes and deletion are super admin only.
	mux.Handle("GET /api/users", middleware.RequireAdmin(http.HandlerFunc(s.userH.List)))
	mux.Handle("PUT /api/users/{id}/role", middleware.RequireSuperAdmin(http.HandlerFunc(s.userH.SetRole)))
	mux.Handle("DELETE /api/users/{id}", middleware.RequireSuperAdmin(http.HandlerFunc(s.userH.Delete)))

	if s.pushH != nil {
		mux.HandleFunc("POST /api/push/subscribe", s.pushH.Subscribe)
		mux.HandleFunc("DELETE /api/push/subscriptions/{id}", s.pushH.Unsubscribe)
		mux.HandleFunc("GET /api/push/subscriptions", s.pushH.ListSubscriptions)
		mux.HandleFunc("GET /api/push/vapid-key", s.pushH.GetVAPIDKey)
		mux.HandleFunc("GET /api/push/preferences", s.pushH.GetPreferences)
		mux.HandleFunc("PUT /api/push/preferences", s.pushH.UpdatePreferences)
		mux.HandleFunc("POST /api/push/test", s.pushH.TestNotification)
	}

	if s.adminH != nil {
		mux.Handle("POST /api/admin/broadcast", middleware.RequireAdmin(http.HandlerFunc(s.adminH.Broadcast)))
		mux.Handle("POST /api/admin/broadcast/users", middleware.RequireAdmin(http.HandlerFunc(s.adminH.BroadcastUsers)))
		mux.Handle("GET /api/admin/broadcast/logs", middleware.RequireAdmin(http.HandlerFunc(s.adminH.BroadcastLogs)))
		mux.Handle("POST /api/admin/push/check", middleware.RequireAdmin(http.HandlerFunc(s.adminH.CheckReminders)))
		mux.Handle("POST /api/admin/push/cleanup", middleware.RequireSuperAdmin(http.HandlerFunc(s.adminH.Cleanup)))
		mux.Handle("GET /api/admin/selfcheck", middleware.RequireAdmin(http.HandlerFunc(s.adminH.SelfCheck)))
	}
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) rateLimited(h http.HandlerFunc) http.HandlerFunc {
	rl := middleware.RateLimit(s.rateLimiter, middleware.RealIP, 10, time.Minute)
	return func(w http.ResponseWriter, r *http.Request) {
		rl(h).ServeHTTP(w, r)
	}
}
