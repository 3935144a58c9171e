package push

import (
	"errors"
	"sync"
	"testing"
)

func TestRegistrarRejectsEmptyUser(t *testing.T) {
	_, ps, _ := testStores(t)
	reg := NewRegistrar(ps, discardLogger())

	_, err := reg.Register(0, Registration{Endpoint: "https://push.example.com/1", P256dh: "k", Auth: "a"}, false)
	if !errors.Is(err, ErrNoUser) {
		t.Errorf("err = %v, want ErrNoUser", err)
	}
	if err := reg.Cleanup(0); !errors.Is(err, ErrNoUser) {
		t.Errorf("cleanup err = %v, want ErrNoUser", err)
	}
}

func TestRegistrarRejectsIncompleteSubscription(t *testing.T) {
	db, ps, _ := testStores(t)
	uid := seedUser(t, db, "incomplete@example.com")
	reg := NewRegistrar(ps, discardLogger())

	if _, err := reg.Register(uid, Registration{Endpoint: "https://push.example.com/1"}, false); err == nil {
		t.Error("expected error for missing keys")
	}
}

func TestRegistrarUnchangedTokenNoNewRow(t *testing.T) {
	db, ps, _ := testStores(t)
	uid := seedUser(t, db, "stable@example.com")
	reg := NewRegistrar(ps, discardLogger())

	r := Registration{Endpoint: "https://push.example.com/1", P256dh: "k1", Auth: "a1", DeviceName: "Laptop"}
	first, err := reg.Register(uid, r, false)
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	second, err := reg.Register(uid, r, false)
	if err != nil {
		t.Fatalf("re-register: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("expected same row, got ids %d and %d", first.ID, second.ID)
	}
	if !second.UpdatedAt.Equal(first.UpdatedAt) {
		t.Error("unchanged re-registration must skip the write")
	}

	subs, _ := ps.ListByUser(uid)
	if len(subs) != 1 {
		t.Errorf("rows = %d, want 1", len(subs))
	}
}

func TestRegistrarForceRefreshWrites(t *testing.T) {
	db, ps, _ := testStores(t)
	uid := seedUser(t, db, "force@example.com")
	reg := NewRegistrar(ps, discardLogger())

	r := Registration{Endpoint: "https://push.example.com/1", P256dh: "k1", Auth: "a1"}
	reg.Register(uid, r, false)

	r.P256dh = "k2"
	sub, err := reg.Register(uid, r, true)
	if err != nil {
		t.Fatalf("force register: %v", err)
	}
	if sub.P256dhKey != "k2" {
		t.Errorf("p256dh = %q, want refreshed %q", sub.P256dhKey, "k2")
	}
}

func TestRegistrarConcurrentRegistrations(t *testing.T) {
	db, ps, _ := testStores(t)
	uid := seedUser(t, db, "race@example.com")
	reg := NewRegistrar(ps, discardLogger())

	r := Registration{Endpoint: "https://push.example.com/1", P256dh: "k1", Auth: "a1"}

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := reg.Register(uid, r, false); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent register: %v", err)
	}

	subs, _ := ps.ListByUser(uid)
	if len(subs) != 1 {
		t.Errorf("rows = %d, want 1", len(subs))
	}
}

func TestRegistrarCleanup(t *testing.T) {
	db, ps, _ := testStores(t)
	uid := seedUser(t, db, "bye@example.com")
	reg := NewRegistrar(ps, discardLogger())

	reg.Register(uid, Registration{Endpoint: "https://push.example.com/1", P256dh: "k", Auth: "a"}, false)
	reg.Register(uid, Registration{Endpoint: "https://push.example.com/2", P256dh: "k", Auth: "a"}, false)

	if err := reg.Cleanup(uid); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	subs, _ := ps.ListByUser(uid)
	if len(subs) != 0 {
		t.Errorf("rows = %d, want 0", len(subs))
	}
}
