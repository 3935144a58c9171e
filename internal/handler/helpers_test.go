package handler

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/huddleapp/huddle/internal/auth"
	"github.com/huddleapp/huddle/internal/database"
	"github.com/huddleapp/huddle/internal/model"
	"github.com/huddleapp/huddle/internal/store"
)

func testDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func seedUser(t *testing.T, db *sql.DB, email, role string) *model.User {
	t.Helper()
	user, err := store.NewUserStore(db).Create(email, "", "x", role)
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return user
}

// asUser attaches an authenticated context to the request, standing in
// for the session middleware.
func asUser(r *http.Request, user *model.User) *http.Request {
	ac := auth.AuthContext{UserID: user.ID, Role: user.Role, SessionID: 1}
	return r.WithContext(auth.WithAuth(context.Background(), ac))
}
