package model

import "time"

// Recurrence frequency constants. An empty RecurFreq means the event does
// not repeat.
const (
	RecurDaily   = "daily"
	RecurWeekly  = "weekly"
	RecurMonthly = "monthly"
)

type Event struct {
	ID            int64      `json:"id"`
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	StartTime     time.Time  `json:"start_time"`
	EndTime       time.Time  `json:"end_time"`
	AllDay        bool       `json:"all_day"`
	Location      string     `json:"location"`
	RecurFreq     string     `json:"recur_freq,omitempty"`
	RecurInterval int        `json:"recur_interval,omitempty"`
	RecurUntil    *time.Time `json:"recur_until,omitempty"`
	CreatedBy     int64      `json:"created_by"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Recurs reports whether the event carries a recurrence rule.
func (e *Event) Recurs() bool {
	return e.RecurFreq != ""
}
