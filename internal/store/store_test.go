package store

import (
	"database/sql"
	"testing"

	"github.com/huddleapp/huddle/internal/database"
	"github.com/huddleapp/huddle/internal/model"
)

// testDB opens an in-memory database with migrations applied.
func testDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// seedUser inserts a user and returns its id.
func seedUser(t *testing.T, db *sql.DB, email string) int64 {
	t.Helper()
	result, err := db.Exec(
		`INSERT INTO users (email, password_hash, role) VALUES (?, 'x', ?)`,
		email, model.RoleMember,
	)
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	id, _ := result.LastInsertId()
	return id
}

// seedEvent inserts a minimal event and returns its id.
func seedEvent(t *testing.T, db *sql.DB, createdBy int64, title string) int64 {
	t.Helper()
	result, err := db.Exec(
		`INSERT INTO events (title, start_time, end_time, created_by)
		 VALUES (?, '2026-09-01 10:00:00', '2026-09-01 11:00:00', ?)`,
		title, createdBy,
	)
	if err != nil {
		t.Fatalf("seed event: %v", err)
	}
	id, _ := result.LastInsertId()
	return id
}
