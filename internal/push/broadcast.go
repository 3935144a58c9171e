package push

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/huddleapp/huddle/internal/model"
	"github.com/huddleapp/huddle/internal/recurrence"
	"github.com/huddleapp/huddle/internal/store"
)

// defaultBroadcastWindow is how far ahead a broadcast looks for events
// when the caller does not say.
const defaultBroadcastWindow = 24 * time.Hour

// BroadcastOptions controls one broadcast run.
type BroadcastOptions struct {
	Kind     string        // label recorded in the broadcast log
	Window   time.Duration // lookahead; defaults to 24h
	Title    string        // optional override
	Body     string        // optional override
	UserIDs  []int64       // optional recipient filter
	Detailed bool          // include per-endpoint results
}

// SendDetail is one per-endpoint outcome, returned in detailed mode.
type SendDetail struct {
	UserID   int64  `json:"user_id"`
	Endpoint string `json:"endpoint"`
	OK       bool   `json:"ok"`
	Expired  bool   `json:"expired,omitempty"`
	Error    string `json:"error,omitempty"`
}

// BroadcastResult aggregates one run's counters.
type BroadcastResult struct {
	RunID         string       `json:"run_id"`
	EventsFound   int          `json:"events_found"`
	UsersNotified int          `json:"users_notified"`
	Sent          int          `json:"sent"`
	Failed        int          `json:"failed"`
	Expired       int          `json:"expired"`
	Details       []SendDetail `json:"details,omitempty"`
}

// Broadcaster fans event announcements out to registered subscriptions.
// Each run is stateless: it re-fetches events and subscriptions fresh.
type Broadcaster struct {
	sender Sender
	push   *store.PushStore
	events *store.EventStore
	logger *slog.Logger
	now    func() time.Time
}

func NewBroadcaster(sender Sender, pushStore *store.PushStore, eventStore *store.EventStore, logger *slog.Logger) *Broadcaster {
	return &Broadcaster{
		sender: sender,
		push:   pushStore,
		events: eventStore,
		logger: logger,
		now:    time.Now,
	}
}

// Broadcast sends one push per subscription announcing the events due in
// the window. With zero events found the provider is never contacted.
// Subscriptions the push service reports as gone are deleted. There is no
// idempotency key: re-invoking re-sends.
func (b *Broadcaster) Broadcast(ctx context.Context, opts BroadcastOptions) (*BroadcastResult, error) {
	if opts.Window <= 0 {
		opts.Window = defaultBroadcastWindow
	}
	if opts.Kind == "" {
		opts.Kind = "broadcast"
	}
	now := b.now()
	result := &BroadcastResult{RunID: uuid.NewString()}

	events, err := b.events.ListByDateRange(now, now.Add(opts.Window))
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	occs := recurrence.ExpandAll(events, now, now.Add(opts.Window))
	result.EventsFound = len(occs)
	if len(occs) == 0 {
		b.log(opts.Kind, result)
		return result, nil
	}

	subs, err := b.subscriptions(opts.UserIDs)
	if err != nil {
		return nil, err
	}

	payload := broadcastPayload(occs, opts)

	var sendErrs error
	notified := make(map[int64]bool)
	for i := range subs {
		sub := subs[i]
		detail := SendDetail{UserID: sub.UserID, Endpoint: sub.Endpoint}

		err := b.sender.Send(ctx, &sub, payload)
		switch {
		case err == nil:
			result.Sent++
			notified[sub.UserID] = true
			detail.OK = true
		case errors.Is(err, ErrExpired):
			result.Expired++
			detail.Expired = true
			detail.Error = err.Error()
			if derr := b.push.DeleteByEndpoint(sub.Endpoint); derr != nil {
				sendErrs = multierr.Append(sendErrs, derr)
			}
		default:
			result.Failed++
			detail.Error = err.Error()
			sendErrs = multierr.Append(sendErrs, fmt.Errorf("user %d: %w", sub.UserID, err))
		}

		if opts.Detailed {
			result.Details = append(result.Details, detail)
		}
	}
	result.UsersNotified = len(notified)

	if sendErrs != nil {
		b.logger.Warn("broadcast partial failure",
			"run_id", result.RunID, "failed", result.Failed, "error", sendErrs)
	}
	b.log(opts.Kind, result)
	return result, nil
}

// DailyDigest sends each opted-in user a push summarizing their calendar
// day, at the hour they configured in their own timezone.
func (b *Broadcaster) DailyDigest(ctx context.Context, now time.Time) (*BroadcastResult, error) {
	result := &BroadcastResult{RunID: uuid.NewString()}

	prefs, err := b.push.ListDigestPreferences()
	if err != nil {
		return nil, fmt.Errorf("list digest preferences: %w", err)
	}

	for _, pref := range prefs {
		loc, err := time.LoadLocation(pref.Timezone)
		if err != nil {
			b.logger.Warn("bad digest timezone", "user_id", pref.UserID, "tz", pref.Timezone)
			continue
		}
		digestAt, err := time.Parse("15:04", pref.DigestTime)
		if err != nil {
			b.logger.Warn("bad digest time", "user_id", pref.UserID, "digest_time", pref.DigestTime)
			continue
		}
		local := now.In(loc)
		if local.Hour() != digestAt.Hour() {
			continue
		}

		dayStart := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
		dayEnd := dayStart.AddDate(0, 0, 1)

		events, err := b.events.ListByDateRange(dayStart, dayEnd)
		if err != nil {
			return nil, fmt.Errorf("list digest events: %w", err)
		}
		occs := recurrence.ExpandAll(events, dayStart, dayEnd)
		if len(occs) == 0 {
			continue
		}
		result.EventsFound += len(occs)

		subs, err := b.push.ListByUser(pref.UserID)
		if err != nil {
			b.logger.Error("list digest subscriptions", "user_id", pref.UserID, "error", err)
			continue
		}

		payload := Payload{
			Title: "Today's Events",
			Body:  digestBody(occs),
			URL:   "/calendar",
			Tag:   "daily-digest-" + local.Format("2006-01-02"),
		}

		sent := false
		for i := range subs {
			sub := subs[i]
			if err := b.sender.Send(ctx, &sub, payload); err != nil {
				if errors.Is(err, ErrExpired) {
					result.Expired++
					b.push.DeleteByEndpoint(sub.Endpoint)
					continue
				}
				result.Failed++
				b.logger.Error("send digest", "user_id", pref.UserID, "error", err)
				continue
			}
			result.Sent++
			sent = true
		}
		if sent {
			result.UsersNotified++
		}
	}

	b.log("daily_digest", result)
	return result, nil
}

func (b *Broadcaster) subscriptions(userIDs []int64) ([]model.PushSubscription, error) {
	if len(userIDs) == 0 {
		subs, err := b.push.ListAll()
		if err != nil {
			return nil, fmt.Errorf("list subscriptions: %w", err)
		}
		return subs, nil
	}

	var subs []model.PushSubscription
	for _, uid := range userIDs {
		userSubs, err := b.push.ListByUser(uid)
		if err != nil {
			return nil, fmt.Errorf("list subscriptions for user %d: %w", uid, err)
		}
		subs = append(subs, userSubs...)
	}
	return subs, nil
}

func (b *Broadcaster) log(kind string, r *BroadcastResult) {
	if err := b.push.LogBroadcast(r.RunID, kind, r.EventsFound, r.UsersNotified, r.Sent, r.Failed); err != nil {
		b.logger.Error("write broadcast log", "run_id", r.RunID, "error", err)
	}
	b.logger.Info("broadcast complete", "run_id", r.RunID, "kind", kind,
		"events", r.EventsFound, "users", r.UsersNotified, "sent", r.Sent,
		"failed", r.Failed, "expired", r.Expired)
}

func broadcastPayload(occs []recurrence.Occurrence, opts BroadcastOptions) Payload {
	payload := Payload{Title: opts.Title, Body: opts.Body, URL: "/calendar", Tag: "broadcast"}
	if payload.Title == "" {
		if len(occs) == 1 {
			payload.Title = "Upcoming: " + occs[0].Event.Title
		} else {
			payload.Title = fmt.Sprintf("%d upcoming events", len(occs))
		}
	}
	if payload.Body == "" {
		if len(occs) == 1 {
			payload.Body = occs[0].Event.Title + " at " + occs[0].StartTime.Format("Mon Jan 2 15:04")
		} else {
			payload.Body = summarizeTitles(occs)
		}
	}
	return payload
}

func summarizeTitles(occs []recurrence.Occurrence) string {
	const maxListed = 3
	body := ""
	for i, occ := range occs {
		if i == maxListed {
			body += fmt.Sprintf(" and %d more", len(occs)-maxListed)
			break
		}
		if i > 0 {
			body += ", "
		}
		body += occ.Event.Title
	}
	return body
}

func digestBody(occs []recurrence.Occurrence) string {
	if len(occs) == 1 {
		return occs[0].Event.Title + " at " + occs[0].StartTime.Format("15:04")
	}
	return fmt.Sprintf("You have %d events today: %s", len(occs), summarizeTitles(occs))
}
