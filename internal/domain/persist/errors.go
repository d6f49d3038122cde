// Package persist defines the failure taxonomy shared by draft and wishlist
// stores.
package persist

import (
	"fmt"

	"github.com/go-faster/errors"
)

var (
	// ErrNotFound is returned when a record is absent from its scope.
	ErrNotFound = errors.New("not found")
	// ErrQuotaExceeded is wrapped by PersistenceError when a device store is full.
	ErrQuotaExceeded = errors.New("storage quota exceeded")
	// ErrScopeMismatch is returned when a store is asked for a scope it does not hold.
	ErrScopeMismatch = errors.New("scope not served by this store")
)

// PersistenceError is a device-local storage or serialization failure.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("local store %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// RemoteUnavailableError is a network or permission failure on a remote store.
type RemoteUnavailableError struct {
	Op  string
	Err error
}

func (e *RemoteUnavailableError) Error() string {
	return fmt.Sprintf("remote store %s: %v", e.Op, e.Err)
}

func (e *RemoteUnavailableError) Unwrap() error { return e.Err }

// Local wraps err as a PersistenceError unless it is nil or already typed.
func Local(op string, err error) error {
	if err == nil || errors.Is(err, ErrNotFound) || errors.Is(err, ErrScopeMismatch) {
		return err
	}
	var pe *PersistenceError
	if errors.As(err, &pe) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}

// Remote wraps err as a RemoteUnavailableError unless it is nil or already typed.
func Remote(op string, err error) error {
	if err == nil || errors.Is(err, ErrNotFound) || errors.Is(err, ErrScopeMismatch) {
		return err
	}
	var re *RemoteUnavailableError
	if errors.As(err, &re) {
		return err
	}
	return &RemoteUnavailableError{Op: op, Err: err}
}

// IsPersistence reports whether err is a local store failure.
func IsPersistence(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe)
}

// IsRemoteUnavailable reports whether err is a remote store failure.
func IsRemoteUnavailable(err error) bool {
	var re *RemoteUnavailableError
	return errors.As(err, &re)
}
