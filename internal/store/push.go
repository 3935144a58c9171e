package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/huddleapp/huddle/internal/model"
)

type PushStore struct {
	db *sql.DB
}

func NewPushStore(db *sql.DB) *PushStore {
	return &PushStore{db: db}
}

const subCols = `id, user_id, endpoint, p256dh_key, auth_key, device_name, created_at, updated_at`

// UpsertSubscription inserts a subscription or, when the endpoint is
// already registered, refreshes its keys in place. The UNIQUE(endpoint)
// constraint makes this safe under concurrent registrations.
func (s *PushStore) UpsertSubscription(userID int64, endpoint, p256dh, auth, deviceName string) (*model.PushSubscription, error) {
	result, err := s.db.Exec(
		`INSERT INTO push_subscriptions (user_id, endpoint, p256dh_key, auth_key, device_name)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(endpoint) DO UPDATE SET
		   user_id = excluded.user_id,
		   p256dh_key = excluded.p256dh_key,
		   auth_key = excluded.auth_key,
		   device_name = excluded.device_name,
		   updated_at = CURRENT_TIMESTAMP`,
		userID, endpoint, p256dh, auth, deviceName,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert push subscription: %w", err)
	}
	id, _ := result.LastInsertId()

	// LastInsertId may be 0 on conflict update; re-query by endpoint.
	if id == 0 {
		return s.GetByEndpoint(endpoint)
	}
	return s.GetByID(id, userID)
}

func (s *PushStore) GetByID(id, userID int64) (*model.PushSubscription, error) {
	row := s.db.QueryRow(
		`SELECT `+subCols+` FROM push_subscriptions WHERE id = ? AND user_id = ?`, id, userID,
	)
	sub, err := scanSubscription(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get push subscription: %w", err)
	}
	return sub, nil
}

func (s *PushStore) GetByEndpoint(endpoint string) (*model.PushSubscription, error) {
	row := s.db.QueryRow(
		`SELECT `+subCols+` FROM push_subscriptions WHERE endpoint = ?`, endpoint,
	)
	sub, err := scanSubscription(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get push subscription by endpoint: %w", err)
	}
	return sub, nil
}

func (s *PushStore) ListByUser(userID int64) ([]model.PushSubscription, error) {
	rows, err := s.db.Query(
		`SELECT `+subCols+` FROM push_subscriptions WHERE user_id = ? ORDER BY created_at DESC`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list push subscriptions by user: %w", err)
	}
	defer rows.Close()
	return scanSubscriptions(rows)
}

func (s *PushStore) ListAll() ([]model.PushSubscription, error) {
	rows, err := s.db.Query(`SELECT ` + subCols + ` FROM push_subscriptions ORDER BY user_id, created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list push subscriptions: %w", err)
	}
	defer rows.Close()
	return scanSubscriptions(rows)
}

// ListUserIDs returns distinct user IDs that have at least one subscription.
func (s *PushStore) ListUserIDs() ([]int64, error) {
	rows, err := s.db.Query(`SELECT DISTINCT user_id FROM push_subscriptions`)
	if err != nil {
		return nil, fmt.Errorf("list subscribed user ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan user id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *PushStore) DeleteSubscription(id, userID int64) error {
	_, err := s.db.Exec(`DELETE FROM push_subscriptions WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete push subscription: %w", err)
	}
	return nil
}

func (s *PushStore) DeleteByEndpoint(endpoint string) error {
	_, err := s.db.Exec(`DELETE FROM push_subscriptions WHERE endpoint = ?`, endpoint)
	if err != nil {
		return fmt.Errorf("delete push subscription by endpoint: %w", err)
	}
	return nil
}

func (s *PushStore) DeleteByUser(userID int64) error {
	_, err := s.db.Exec(`DELETE FROM push_subscriptions WHERE user_id = ?`, userID)
	if err != nil {
		return fmt.Errorf("delete user push subscriptions: %w", err)
	}
	return nil
}

func scanSubscription(scanner interface{ Scan(...any) error }) (*model.PushSubscription, error) {
	var sub model.PushSubscription
	err := scanner.Scan(&sub.ID, &sub.UserID, &sub.Endpoint, &sub.P256dhKey, &sub.AuthKey,
		&sub.DeviceName, &sub.CreatedAt, &sub.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func scanSubscriptions(rows *sql.Rows) ([]model.PushSubscription, error) {
	var subs []model.PushSubscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("scan push subscription: %w", err)
		}
		subs = append(subs, *sub)
	}
	return subs, rows.Err()
}

// --- Reminders ---

// PlanReminder records an unsent reminder for a (user, occurrence, type).
// Duplicate plans are silently ignored via the unique constraint.
func (s *PushStore) PlanReminder(userID, eventID int64, referenceID, reminderType string, notifyAt time.Time) error {
	_, err := s.db.Exec(
		`INSERT OR IGNORE INTO reminders (user_id, event_id, reference_id, reminder_type, notify_at)
		 VALUES (?, ?, ?, ?, ?)`,
		userID, eventID, referenceID, reminderType, notifyAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("plan reminder: %w", err)
	}
	return nil
}

// ClaimReminder flips a reminder from unsent to sent and reports whether
// this caller won the claim. A false return with nil error means another
// run already sent (or is sending) it, or no such reminder exists.
func (s *PushStore) ClaimReminder(userID int64, referenceID, reminderType string) (bool, error) {
	result, err := s.db.Exec(
		`UPDATE reminders SET sent = 1, sent_at = ?
		 WHERE user_id = ? AND reference_id = ? AND reminder_type = ? AND sent = 0`,
		time.Now().UTC(), userID, referenceID, reminderType,
	)
	if err != nil {
		return false, fmt.Errorf("claim reminder: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim reminder rows affected: %w", err)
	}
	return n == 1, nil
}

// WasSent reports whether a reminder of the given type was already sent.
func (s *PushStore) WasSent(userID int64, referenceID, reminderType string) (bool, error) {
	var count int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM reminders
		 WHERE user_id = ? AND reference_id = ? AND reminder_type = ? AND sent = 1`,
		userID, referenceID, reminderType,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check reminder sent: %w", err)
	}
	return count > 0, nil
}

// AnySent reports whether any reminder type was sent for the occurrence.
func (s *PushStore) AnySent(userID int64, referenceID string) (bool, error) {
	var count int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM reminders WHERE user_id = ? AND reference_id = ? AND sent = 1`,
		userID, referenceID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check any reminder sent: %w", err)
	}
	return count > 0, nil
}

// CleanupReminders deletes reminder rows older than the given cutoff.
func (s *PushStore) CleanupReminders(before time.Time) error {
	_, err := s.db.Exec(`DELETE FROM reminders WHERE notify_at < ?`, before.UTC())
	if err != nil {
		return fmt.Errorf("cleanup reminders: %w", err)
	}
	return nil
}

// --- Preferences ---

func (s *PushStore) GetPreference(userID int64) (*model.NotificationPreference, error) {
	var p model.NotificationPreference
	var remindersInt, digestInt int
	err := s.db.QueryRow(
		`SELECT id, user_id, event_reminders, daily_digest, digest_time, timezone, created_at, updated_at
		 FROM notification_preferences WHERE user_id = ?`, userID,
	).Scan(&p.ID, &p.UserID, &remindersInt, &digestInt, &p.DigestTime, &p.Timezone, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get notification preference: %w", err)
	}
	p.EventReminders = remindersInt != 0
	p.DailyDigest = digestInt != 0
	return &p, nil
}

func (s *PushStore) SetPreference(userID int64, eventReminders, dailyDigest bool, digestTime, timezone string) error {
	var remindersInt, digestInt int
	if eventReminders {
		remindersInt = 1
	}
	if dailyDigest {
		digestInt = 1
	}
	_, err := s.db.Exec(
		`INSERT INTO notification_preferences (user_id, event_reminders, daily_digest, digest_time, timezone)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
		   event_reminders = excluded.event_reminders,
		   daily_digest = excluded.daily_digest,
		   digest_time = excluded.digest_time,
		   timezone = excluded.timezone,
		   updated_at = CURRENT_TIMESTAMP`,
		userID, remindersInt, digestInt, digestTime, timezone,
	)
	if err != nil {
		return fmt.Errorf("set notification preference: %w", err)
	}
	return nil
}

// RemindersEnabled reports whether event reminders are on for the user.
// Users without a preference row default to enabled.
func (s *PushStore) RemindersEnabled(userID int64) (bool, error) {
	var enabled int
	err := s.db.QueryRow(
		`SELECT event_reminders FROM notification_preferences WHERE user_id = ?`, userID,
	).Scan(&enabled)
	if err == sql.ErrNoRows {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("check reminders enabled: %w", err)
	}
	return enabled != 0, nil
}

// ListDigestPreferences returns preference rows with the daily digest on.
func (s *PushStore) ListDigestPreferences() ([]model.NotificationPreference, error) {
	rows, err := s.db.Query(
		`SELECT id, user_id, event_reminders, daily_digest, digest_time, timezone, created_at, updated_at
		 FROM notification_preferences WHERE daily_digest = 1`,
	)
	if err != nil {
		return nil, fmt.Errorf("list digest preferences: %w", err)
	}
	defer rows.Close()

	var prefs []model.NotificationPreference
	for rows.Next() {
		var p model.NotificationPreference
		var remindersInt, digestInt int
		if err := rows.Scan(&p.ID, &p.UserID, &remindersInt, &digestInt, &p.DigestTime, &p.Timezone, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan digest preference: %w", err)
		}
		p.EventReminders = remindersInt != 0
		p.DailyDigest = digestInt != 0
		prefs = append(prefs, p)
	}
	return prefs, rows.Err()
}

// --- Broadcast log ---

func (s *PushStore) LogBroadcast(runID, kind string, eventsFound, usersNotified, sent, failed int) error {
	_, err := s.db.Exec(
		`INSERT INTO broadcast_log (run_id, kind, events_found, users_notified, sent, failed)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		runID, kind, eventsFound, usersNotified, sent, failed,
	)
	if err != nil {
		return fmt.Errorf("log broadcast: %w", err)
	}
	return nil
}

func (s *PushStore) ListBroadcastLogs(limit int) ([]model.BroadcastLog, error) {
	rows, err := s.db.Query(
		`SELECT id, run_id, kind, events_found, users_notified, sent, failed, created_at
		 FROM broadcast_log ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list broadcast logs: %w", err)
	}
	defer rows.Close()

	var logs []model.BroadcastLog
	for rows.Next() {
		var l model.BroadcastLog
		if err := rows.Scan(&l.ID, &l.RunID, &l.Kind, &l.EventsFound, &l.UsersNotified, &l.Sent, &l.Failed, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan broadcast log: %w", err)
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
