package model

import "time"

// Reminder type constants.
const (
	ReminderDayBefore = "day_before"
	ReminderEventDay  = "event_day"
)

type PushSubscription struct {
	ID         int64     `json:"id"`
	UserID     int64     `json:"user_id"`
	Endpoint   string    `json:"endpoint"`
	P256dhKey  string    `json:"p256dh_key"`
	AuthKey    string    `json:"auth_key"`
	DeviceName string    `json:"device_name"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Reminder tracks one scheduled (or sent) push reminder for a user and a
// specific event occurrence. ReferenceID identifies the occurrence so that
// each repeat of a recurring event dedupes independently.
type Reminder struct {
	ID           int64      `json:"id"`
	UserID       int64      `json:"user_id"`
	EventID      int64      `json:"event_id"`
	ReferenceID  string     `json:"reference_id"`
	ReminderType string     `json:"reminder_type"`
	NotifyAt     time.Time  `json:"notify_at"`
	Sent         bool       `json:"sent"`
	SentAt       *time.Time `json:"sent_at"`
	CreatedAt    time.Time  `json:"created_at"`
}

// NotificationPreference holds a user's reminder settings. When no row
// exists, event reminders default to enabled and the daily digest to off.
type NotificationPreference struct {
	ID             int64     `json:"id"`
	UserID         int64     `json:"user_id"`
	EventReminders bool      `json:"event_reminders"`
	DailyDigest    bool      `json:"daily_digest"`
	DigestTime     string    `json:"digest_time"` // "HH:MM", user-local
	Timezone       string    `json:"timezone"`    // IANA name, e.g. "America/New_York"
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// BroadcastLog records the outcome of one broadcast run.
type BroadcastLog struct {
	ID            int64     `json:"id"`
	RunID         string    `json:"run_id"`
	Kind          string    `json:"kind"`
	EventsFound   int       `json:"events_found"`
	UsersNotified int       `json:"users_notified"`
	Sent          int       `json:"sent"`
	Failed        int       `json:"failed"`
	CreatedAt     time.Time `json:"created_at"`
}
