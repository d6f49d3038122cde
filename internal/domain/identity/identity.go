// Package identity resolves the shopper behind a request and announces the
// one-time transition from an anonymous device session to a signed-in user.
package identity

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
)

// ErrUnauthenticated is returned when an operation needs a signed-in user.
var ErrUnauthenticated = errors.New("authentication required")

// ErrInvalidToken is returned by a Provider for malformed or expired tokens.
var ErrInvalidToken = errors.New("invalid token")

// ScopeKind distinguishes anonymous device scopes from user scopes.
type ScopeKind string

const (
	ScopeAnonymous ScopeKind = "anonymous"
	ScopeUser      ScopeKind = "user"
)

// Scope is the ownership boundary for drafts and wishlist entries.
type Scope struct {
	Kind ScopeKind `json:"kind"`
	ID   string    `json:"id"`
}

// Anonymous returns the scope of an anonymous device.
func Anonymous(deviceID string) Scope {
	return Scope{Kind: ScopeAnonymous, ID: deviceID}
}

// User returns the scope of an authenticated user.
func User(userID string) Scope {
	return Scope{Kind: ScopeUser, ID: userID}
}

// IsAnonymous reports whether the scope belongs to a device.
func (s Scope) IsAnonymous() bool { return s.Kind == ScopeAnonymous }

// IsUser reports whether the scope belongs to a signed-in user.
func (s Scope) IsUser() bool { return s.Kind == ScopeUser }

// Valid reports whether the scope has a known kind and a non-empty id.
func (s Scope) Valid() bool {
	return (s.Kind == ScopeAnonymous || s.Kind == ScopeUser) && s.ID != ""
}

func (s Scope) String() string {
	return fmt.Sprintf("%s:%s", s.Kind, s.ID)
}

// Actor is the current shopper. A device id is always present; a user id is
// present only once the shopper has signed in.
type Actor struct {
	DeviceID string
	UserID   string
}

// Authenticated reports whether the actor carries a user id.
func (a Actor) Authenticated() bool { return a.UserID != "" }

// Scope returns the store scope the actor reads and writes.
func (a Actor) Scope() Scope {
	if a.Authenticated() {
		return User(a.UserID)
	}
	return Anonymous(a.DeviceID)
}

// Credentials are the raw identity inputs of a request.
type Credentials struct {
	DeviceID string
	Token    string
}

// Provider validates a bearer token and returns the user id it carries.
type Provider interface {
	Authenticate(ctx context.Context, token string) (userID string, err error)
}

// Transition is emitted once when an anonymous device session becomes
// authenticated.
type Transition struct {
	DeviceID string
	UserID   string
}

// TransitionHandler consumes a Transition. A non-nil error leaves the
// transition pending so the next resolution retries it.
type TransitionHandler func(ctx context.Context, t Transition) error
