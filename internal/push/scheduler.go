package push

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/huddleapp/huddle/internal/model"
	"github.com/huddleapp/huddle/internal/recurrence"
	"github.com/huddleapp/huddle/internal/store"
)

const (
	// checkInterval is both the ticker period and the throttle window:
	// no matter how many triggers fire, a check runs at most once per
	// window.
	checkInterval = 2 * time.Minute

	// planWindow is how far ahead unsent reminder rows are created.
	planWindow = 30 * 24 * time.Hour

	// eventDayGrace allows slightly-overdue events to still notify.
	eventDayGrace = 2 * time.Hour

	// eventDayHorizon is the upper bound for an event_day reminder.
	eventDayHorizon = 4 * time.Hour

	// dayBeforeHorizon is the upper bound for a day_before reminder.
	dayBeforeHorizon = 30 * time.Hour

	// backupDelay is how long after an event_day send its duplicate
	// follows. The duplicate carries a distinct tag so the browser
	// does not collapse it into the first.
	backupDelay = 30 * time.Second
)

// Classify returns which reminder type an occurrence starting at start is
// due for at now, and whether any is due at all.
func Classify(now, start time.Time) (string, bool) {
	until := start.Sub(now)
	switch {
	case until >= -eventDayGrace && until <= eventDayHorizon:
		return model.ReminderEventDay, true
	case until > eventDayHorizon && until <= dayBeforeHorizon:
		return model.ReminderDayBefore, true
	}
	return "", false
}

// ReferenceID identifies one occurrence of an event for reminder dedup.
// Recurring events produce a distinct reference per occurrence date.
func ReferenceID(eventID int64, start time.Time) string {
	return fmt.Sprintf("event-%d-%s", eventID, start.UTC().Format("2006-01-02"))
}

// Scheduler periodically finds due event occurrences and sends reminders.
type Scheduler struct {
	mu     sync.RWMutex
	sender Sender
	push   *store.PushStore
	events *store.EventStore
	logger *slog.Logger

	interval time.Duration
	throttle time.Duration
	backup   time.Duration
	now      func() time.Time
	notify   func(eventID int64, ref, typ string)

	runMu     sync.Mutex // at most one concurrent check
	checkMu   sync.Mutex // guards lastCheck
	lastCheck time.Time

	cancel context.CancelFunc
	done   chan struct{}
}

// NewScheduler creates a reminder scheduler.
func NewScheduler(sender Sender, pushStore *store.PushStore, eventStore *store.EventStore, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		sender:   sender,
		push:     pushStore,
		events:   eventStore,
		logger:   logger,
		interval: checkInterval,
		throttle: checkInterval,
		backup:   backupDelay,
		now:      time.Now,
	}
}

// SetNotifier registers a callback invoked after each reminder send, used
// to push a live-sync message to connected UI clients. Must be called
// before Start.
func (s *Scheduler) SetNotifier(fn func(eventID int64, ref, typ string)) {
	s.notify = fn
}

// Start begins the scheduler loop.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.mu.Unlock()

	go func() {
		defer close(s.done)

		if err := s.PlanUpcoming(); err != nil {
			s.logger.Error("plan upcoming reminders", "error", err)
		}

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := s.CheckNow(ctx); err != nil && !errors.Is(err, ErrCheckSkipped) {
					s.logger.Error("reminder check", "error", err)
				}
			}
		}
	}()
}

// Stop gracefully stops the scheduler.
func (s *Scheduler) Stop() {
	s.mu.RLock()
	cancel := s.cancel
	done := s.done
	s.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// ErrCheckSkipped is returned when a check was suppressed by the throttle
// window or because another check is still running.
var ErrCheckSkipped = errors.New("reminder check skipped")

// CheckNow runs a reminder check immediately, subject to the throttle and
// the one-concurrent-run guard.
func (s *Scheduler) CheckNow(ctx context.Context) error {
	now := s.now()

	s.checkMu.Lock()
	if !s.lastCheck.IsZero() && now.Sub(s.lastCheck) < s.throttle {
		s.checkMu.Unlock()
		return ErrCheckSkipped
	}
	s.lastCheck = now
	s.checkMu.Unlock()

	if !s.runMu.TryLock() {
		return ErrCheckSkipped
	}
	defer s.runMu.Unlock()

	return s.check(ctx, now)
}

// PlanUpcoming creates unsent reminder rows for every subscribed user and
// every occurrence in the planning window. Existing rows are untouched.
func (s *Scheduler) PlanUpcoming() error {
	now := s.now()

	events, err := s.events.ListByDateRange(now, now.Add(planWindow))
	if err != nil {
		return fmt.Errorf("list events for planning: %w", err)
	}
	occs := recurrence.ExpandAll(events, now, now.Add(planWindow))
	if len(occs) == 0 {
		return nil
	}

	userIDs, err := s.push.ListUserIDs()
	if err != nil {
		return fmt.Errorf("list subscribed users: %w", err)
	}

	for _, uid := range userIDs {
		for _, occ := range occs {
			ref := ReferenceID(occ.Event.ID, occ.StartTime)
			if err := s.push.PlanReminder(uid, occ.Event.ID, ref, model.ReminderDayBefore, occ.StartTime.Add(-24*time.Hour)); err != nil {
				return err
			}
			if err := s.push.PlanReminder(uid, occ.Event.ID, ref, model.ReminderEventDay, occ.StartTime); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Scheduler) check(ctx context.Context, now time.Time) error {
	events, err := s.events.ListByDateRange(now.Add(-eventDayGrace), now.Add(dayBeforeHorizon))
	if err != nil {
		return fmt.Errorf("list due events: %w", err)
	}
	occs := recurrence.ExpandAll(events, now.Add(-eventDayGrace), now.Add(dayBeforeHorizon))
	if len(occs) == 0 {
		return nil
	}

	userIDs, err := s.push.ListUserIDs()
	if err != nil {
		return fmt.Errorf("list subscribed users: %w", err)
	}

	for _, uid := range userIDs {
		enabled, err := s.push.RemindersEnabled(uid)
		if err != nil {
			s.logger.Error("check reminder preference", "user_id", uid, "error", err)
			continue
		}
		if !enabled {
			continue
		}

		subs, err := s.push.ListByUser(uid)
		if err != nil {
			s.logger.Error("list subscriptions", "user_id", uid, "error", err)
			continue
		}
		if len(subs) == 0 {
			continue
		}

		for _, occ := range occs {
			s.remind(ctx, uid, subs, occ, now)
		}
	}
	return nil
}

// remind sends at most one reminder for the (user, occurrence) pair.
// Failures are logged and left for the next tick; nothing here is fatal
// to the run.
func (s *Scheduler) remind(ctx context.Context, userID int64, subs []model.PushSubscription, occ recurrence.Occurrence, now time.Time) {
	typ, ok := Classify(now, occ.StartTime)
	if !ok {
		return
	}
	ref := ReferenceID(occ.Event.ID, occ.StartTime)

	if typ == model.ReminderDayBefore {
		any, err := s.push.AnySent(userID, ref)
		if err != nil {
			s.logger.Error("check sent reminders", "user_id", userID, "ref", ref, "error", err)
			return
		}
		if any {
			return
		}
	}

	notifyAt := occ.StartTime
	if typ == model.ReminderDayBefore {
		notifyAt = occ.StartTime.Add(-24 * time.Hour)
	}
	if err := s.push.PlanReminder(userID, occ.Event.ID, ref, typ, notifyAt); err != nil {
		s.logger.Error("plan reminder", "user_id", userID, "ref", ref, "error", err)
		return
	}

	won, err := s.push.ClaimReminder(userID, ref, typ)
	if err != nil {
		s.logger.Error("claim reminder", "user_id", userID, "ref", ref, "error", err)
		return
	}
	if !won {
		return
	}

	payload := reminderPayload(occ, typ)
	s.deliver(ctx, subs, payload)

	if typ == model.ReminderEventDay && s.backup > 0 {
		// Duplicate send shortly after, tagged separately so the
		// browser shows it even if the first was swallowed.
		dup := payload
		dup.Tag = payload.Tag + "-backup"
		time.AfterFunc(s.backup, func() {
			s.deliver(context.Background(), subs, dup)
		})
	}

	if s.notify != nil {
		s.notify(occ.Event.ID, ref, typ)
	}
	s.logger.Info("reminder sent", "user_id", userID, "ref", ref, "type", typ)
}

func (s *Scheduler) deliver(ctx context.Context, subs []model.PushSubscription, payload Payload) {
	for i := range subs {
		sub := subs[i]
		if err := s.sender.Send(ctx, &sub, payload); err != nil {
			if errors.Is(err, ErrExpired) {
				if derr := s.push.DeleteByEndpoint(sub.Endpoint); derr != nil {
					s.logger.Error("delete expired subscription", "error", derr)
				}
				continue
			}
			s.logger.Error("send reminder", "endpoint", sub.Endpoint, "error", err)
		}
	}
}

func reminderPayload(occ recurrence.Occurrence, typ string) Payload {
	at := occ.StartTime.Format("Mon Jan 2 15:04")
	var body string
	if typ == model.ReminderDayBefore {
		body = fmt.Sprintf("%s is coming up: %s", occ.Event.Title, at)
	} else {
		body = fmt.Sprintf("%s starts at %s", occ.Event.Title, at)
	}
	return Payload{
		Title: "Event Reminder",
		Body:  body,
		URL:   "/calendar",
		Tag:   ReferenceID(occ.Event.ID, occ.StartTime) + "-" + typ,
	}
}
