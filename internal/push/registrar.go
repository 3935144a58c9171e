package push

import (
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/singleflight"

	"github.com/huddleapp/huddle/internal/model"
	"github.com/huddleapp/huddle/internal/store"
)

// ErrNoUser is returned when a registration names no user.
var ErrNoUser = errors.New("push registration requires a user")

// Registration is the browser-supplied subscription material.
type Registration struct {
	Endpoint   string
	P256dh     string
	Auth       string
	DeviceName string
}

// Registrar persists push subscriptions. Concurrent registrations for the
// same user are collapsed into a single store write via singleflight, and
// an unchanged re-registration skips the write entirely.
type Registrar struct {
	store  *store.PushStore
	group  singleflight.Group
	logger *slog.Logger
}

func NewRegistrar(ps *store.PushStore, logger *slog.Logger) *Registrar {
	return &Registrar{store: ps, logger: logger}
}

// Register stores the subscription for the user. When forceRefresh is
// false and the stored row already carries identical keys, the write is
// skipped and the existing row returned.
func (r *Registrar) Register(userID int64, reg Registration, forceRefresh bool) (*model.PushSubscription, error) {
	if userID == 0 {
		return nil, ErrNoUser
	}
	if reg.Endpoint == "" || reg.P256dh == "" || reg.Auth == "" {
		return nil, fmt.Errorf("incomplete subscription for user %d", userID)
	}

	key := fmt.Sprintf("register-%d", userID)
	v, err, shared := r.group.Do(key, func() (any, error) {
		return r.register(userID, reg, forceRefresh)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		r.logger.Debug("collapsed concurrent registration", "user_id", userID)
	}
	return v.(*model.PushSubscription), nil
}

func (r *Registrar) register(userID int64, reg Registration, forceRefresh bool) (*model.PushSubscription, error) {
	if !forceRefresh {
		existing, err := r.store.GetByEndpoint(reg.Endpoint)
		if err != nil {
			return nil, err
		}
		if existing != nil && existing.UserID == userID &&
			existing.P256dhKey == reg.P256dh && existing.AuthKey == reg.Auth {
			return existing, nil
		}
	}

	sub, err := r.store.UpsertSubscription(userID, reg.Endpoint, reg.P256dh, reg.Auth, reg.DeviceName)
	if err != nil {
		return nil, err
	}
	r.logger.Info("push subscription registered", "user_id", userID, "device", reg.DeviceName)
	return sub, nil
}

// Cleanup removes every subscription for the user. Pushes to that user
// fail until re-registration.
func (r *Registrar) Cleanup(userID int64) error {
	if userID == 0 {
		return ErrNoUser
	}
	if err := r.store.DeleteByUser(userID); err != nil {
		return err
	}
	r.logger.Info("push subscriptions removed", "user_id", userID)
	return nil
}
