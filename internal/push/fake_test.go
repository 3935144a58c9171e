package push

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/huddleapp/huddle/internal/database"
	"github.com/huddleapp/huddle/internal/model"
	"github.com/huddleapp/huddle/internal/store"
)

// fakeSender records sends and can fail per endpoint.
type fakeSender struct {
	mu       sync.Mutex
	sent     []sentCall
	failWith map[string]error // endpoint -> error
}

type sentCall struct {
	Endpoint string
	Payload  Payload
}

func newFakeSender() *fakeSender {
	return &fakeSender{failWith: make(map[string]error)}
}

func (f *fakeSender) Send(_ context.Context, sub *model.PushSubscription, payload Payload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.failWith[sub.Endpoint]; ok {
		return err
	}
	f.sent = append(f.sent, sentCall{Endpoint: sub.Endpoint, Payload: payload})
	return nil
}

func (f *fakeSender) calls() []sentCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]sentCall, len(f.sent))
	copy(out, f.sent)
	return out
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testStores(t *testing.T) (*sql.DB, *store.PushStore, *store.EventStore) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db, store.NewPushStore(db), store.NewEventStore(db)
}

func seedUser(t *testing.T, db *sql.DB, email string) int64 {
	t.Helper()
	result, err := db.Exec(`INSERT INTO users (email, password_hash, role) VALUES (?, 'x', 'member')`, email)
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	id, _ := result.LastInsertId()
	return id
}
