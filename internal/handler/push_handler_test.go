package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/huddleapp/huddle/internal/model"
	"github.com/huddleapp/huddle/internal/push"
	"github.com/huddleapp/huddle/internal/store"
)

func testPushHandler(t *testing.T) (*PushHandler, *store.PushStore, *model.User) {
	t.Helper()
	db := testDB(t)
	user := seedUser(t, db, "push@example.com", model.RoleMember)
	ps := store.NewPushStore(db)
	logger := discardLogger()

	pub, priv, err := push.GenerateVAPIDKeys()
	if err != nil {
		t.Fatalf("generate VAPID keys: %v", err)
	}
	svc := push.NewService(push.Config{VAPIDPublicKey: pub, VAPIDPrivateKey: priv})
	return NewPushHandler(ps, push.NewRegistrar(ps, logger), svc, logger), ps, user
}

func TestSubscribe(t *testing.T) {
	h, ps, user := testPushHandler(t)

	body := `{"endpoint":"https://push.example.com/1","p256dh":"k","auth":"a","device_name":"Phone"}`
	req := asUser(httptest.NewRequest("POST", "/api/push/subscribe", strings.NewReader(body)), user)
	rec := httptest.NewRecorder()
	h.Subscribe(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	subs, _ := ps.ListByUser(user.ID)
	if len(subs) != 1 || subs[0].DeviceName != "Phone" {
		t.Errorf("subs = %+v", subs)
	}

	// Incomplete subscription material is rejected.
	req = asUser(httptest.NewRequest("POST", "/api/push/subscribe", strings.NewReader(`{"endpoint":"x"}`)), user)
	rec = httptest.NewRecorder()
	h.Subscribe(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("incomplete status = %d, want 400", rec.Code)
	}
}

func TestUnsubscribeScopedToOwner(t *testing.T) {
	h, ps, user := testPushHandler(t)
	sub, err := ps.UpsertSubscription(user.ID, "https://push.example.com/1", "k", "a", "Phone")
	if err != nil {
		t.Fatalf("seed subscription: %v", err)
	}

	other := &model.User{ID: user.ID + 100, Role: model.RoleMember}
	req := asUser(httptest.NewRequest("DELETE", fmt.Sprintf("/api/push/subscriptions/%d", sub.ID), nil), other)
	req.SetPathValue("id", fmt.Sprint(sub.ID))
	rec := httptest.NewRecorder()
	h.Unsubscribe(rec, req)

	// The delete is a no-op for someone else's row.
	subs, _ := ps.ListByUser(user.ID)
	if len(subs) != 1 {
		t.Fatalf("subs = %d, want 1 after foreign delete", len(subs))
	}

	req = asUser(httptest.NewRequest("DELETE", fmt.Sprintf("/api/push/subscriptions/%d", sub.ID), nil), user)
	req.SetPathValue("id", fmt.Sprint(sub.ID))
	rec = httptest.NewRecorder()
	h.Unsubscribe(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("owner delete status = %d", rec.Code)
	}
	subs, _ = ps.ListByUser(user.ID)
	if len(subs) != 0 {
		t.Errorf("subs = %d, want 0", len(subs))
	}
}

func TestGetVAPIDKey(t *testing.T) {
	h, _, user := testPushHandler(t)

	req := asUser(httptest.NewRequest("GET", "/api/push/vapid-key", nil), user)
	rec := httptest.NewRecorder()
	h.GetVAPIDKey(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]string
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body["public_key"] == "" {
		t.Error("public_key must be set")
	}
}

func TestPreferencesDefaultsAndUpdate(t *testing.T) {
	h, _, user := testPushHandler(t)

	req := asUser(httptest.NewRequest("GET", "/api/push/preferences", nil), user)
	rec := httptest.NewRecorder()
	h.GetPreferences(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var pref model.NotificationPreference
	json.Unmarshal(rec.Body.Bytes(), &pref)
	if !pref.EventReminders || pref.DailyDigest {
		t.Errorf("defaults = %+v, want reminders on, digest off", pref)
	}

	body := `{"event_reminders":false,"daily_digest":true,"digest_time":"07:30","timezone":"Europe/Berlin"}`
	req = asUser(httptest.NewRequest("PUT", "/api/push/preferences", strings.NewReader(body)), user)
	rec = httptest.NewRecorder()
	h.UpdatePreferences(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d", rec.Code)
	}
	json.Unmarshal(rec.Body.Bytes(), &pref)
	if pref.EventReminders || !pref.DailyDigest || pref.DigestTime != "07:30" || pref.Timezone != "Europe/Berlin" {
		t.Errorf("updated = %+v", pref)
	}
}
