package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/huddleapp/huddle/internal/database"
	"github.com/huddleapp/huddle/internal/logging"
	"github.com/huddleapp/huddle/internal/push"
	"github.com/huddleapp/huddle/internal/server"
)

func main() {
	// Missing .env is fine; real deployments set the environment directly.
	_ = godotenv.Load()

	if len(os.Args) > 1 && os.Args[1] == "generate-vapid-keys" {
		generateVAPIDKeys()
		return
	}

	port := envOr("HUDDLE_PORT", "8080")
	dbPath := envOr("HUDDLE_DB_PATH", "huddle.db")

	logger := logging.Setup(os.Getenv("HUDDLE_LOG_LEVEL"), os.Getenv("HUDDLE_LOG_FORMAT"))

	db, err := database.Open(dbPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	cfg := server.Config{
		Push: push.Config{
			VAPIDPublicKey:  os.Getenv("HUDDLE_VAPID_PUBLIC_KEY"),
			VAPIDPrivateKey: os.Getenv("HUDDLE_VAPID_PRIVATE_KEY"),
			Subscriber:      os.Getenv("HUDDLE_VAPID_SUBSCRIBER"),
		},
		ServiceSecret: []byte(os.Getenv("HUDDLE_SERVICE_SECRET")),
	}
	if cfg.Push.VAPIDPublicKey == "" || cfg.Push.VAPIDPrivateKey == "" {
		logger.Warn("VAPID keys not configured, push notifications disabled",
			"hint", "run `huddle generate-vapid-keys`")
	}

	srv := server.New(db, cfg, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if sched := srv.Scheduler(); sched != nil {
		sched.Start(ctx)
		defer sched.Stop()
	}

	// Periodic housekeeping: expired sessions, delivered reminders older
	// than the retention window, stale rate-limit entries.
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := srv.SessionStore().DeleteExpired(); err != nil {
					logger.Error("cleanup sessions", "error", err)
				}
				if err := srv.PushStore().CleanupReminders(time.Now().AddDate(0, 0, -30)); err != nil {
					logger.Error("cleanup reminders", "error", err)
				}
				srv.RateLimiter().Cleanup()
			}
		}
	}()

	httpServer := &http.Server{
		Addr:         ":" + port,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("huddle listening", "port", port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("shutdown error: %v", err)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func generateVAPIDKeys() {
	pub, priv, err := push.GenerateVAPIDKeys()
	if err != nil {
		log.Fatalf("generate VAPID keys: %v", err)
	}
	fmt.Printf("HUDDLE_VAPID_PUBLIC_KEY=%s\n", pub)
	fmt.Printf("HUDDLE_VAPID_PRIVATE_KEY=%s\n", priv)
}
