package identity

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// ErrMissingDevice is returned when a request carries neither a device id
// nor a token.
var ErrMissingDevice = errors.New("device id required")

// TransitionError reports that the actor was resolved but the sign-in
// transition could not be completed. The transition stays pending.
type TransitionError struct {
	Transition Transition
	Err        error
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("transition %s -> %s: %v", e.Transition.DeviceID, e.Transition.UserID, e.Err)
}

func (e *TransitionError) Unwrap() error { return e.Err }

// Resolver turns request credentials into an Actor and fires registered
// TransitionHandlers the first time a device/user pair is seen.
type Resolver struct {
	provider Provider
	markers  MarkerStore
	group    singleflight.Group

	mu       sync.Mutex
	handlers []TransitionHandler
}

// NewResolver creates a Resolver. Markers must be persistent so that a
// completed transition is not replayed after a restart. The resolver keeps
// no per-pair state of its own; the marker is checked on every resolve.
func NewResolver(provider Provider, markers MarkerStore) *Resolver {
	return &Resolver{
		provider: provider,
		markers:  markers,
	}
}

// OnTransition registers h. Handlers run in registration order.
func (r *Resolver) OnTransition(h TransitionHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers = append(r.handlers, h)
}

// Resolve authenticates the credentials and returns the actor. When the
// actor has both a device and a user and the pair has not transitioned yet,
// the transition handlers run before Resolve returns. A failed transition is
// reported as *TransitionError alongside the resolved actor.
func (r *Resolver) Resolve(ctx context.Context, c Credentials) (Actor, error) {
	if c.DeviceID == "" && c.Token == "" {
		return Actor{}, ErrMissingDevice
	}

	actor := Actor{DeviceID: c.DeviceID}
	if c.Token != "" {
		userID, err := r.provider.Authenticate(ctx, c.Token)
		if err != nil {
			return Actor{}, errors.Wrap(err, "authenticate")
		}
		actor.UserID = userID
	}

	if actor.Authenticated() && actor.DeviceID != "" {
		t := Transition{DeviceID: actor.DeviceID, UserID: actor.UserID}
		if err := r.transition(ctx, t); err != nil {
			return actor, &TransitionError{Transition: t, Err: err}
		}
	}
	return actor, nil
}

func (r *Resolver) transition(ctx context.Context, t Transition) error {
	_, err, _ := r.group.Do(t.DeviceID+"\x00"+t.UserID, func() (any, error) {
		return nil, r.runTransition(ctx, t)
	})
	return err
}

func (r *Resolver) runTransition(ctx context.Context, t Transition) error {
	key := MarkerKey{Kind: MarkerTransition, DeviceID: t.DeviceID, UserID: t.UserID}
	marked, err := r.markers.IsMarked(ctx, key)
	if err != nil {
		return errors.Wrap(err, "check transition marker")
	}
	if marked {
		return nil
	}

	lg := zctx.From(ctx).With(
		zap.String("device_id", t.DeviceID),
		zap.String("user_id", t.UserID),
	)
	lg.Info("Anonymous session authenticated")

	r.mu.Lock()
	handlers := make([]TransitionHandler, len(r.handlers))
	copy(handlers, r.handlers)
	r.mu.Unlock()

	for _, h := range handlers {
		if err := h(ctx, t); err != nil {
			lg.Warn("Transition handler failed", zap.Error(err))
			return err
		}
	}
	if err := r.markers.Mark(ctx, key); err != nil {
		return errors.Wrap(err, "write transition marker")
	}
	return nil
}
