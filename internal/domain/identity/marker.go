package identity

import "context"

// MarkerKind names the one-shot step a marker guards.
type MarkerKind string

const (
	MarkerTransition MarkerKind = "transition"
	MarkerDrafts     MarkerKind = "drafts"
	MarkerWishlist   MarkerKind = "wishlist"
)

// MarkerKey identifies a completed one-shot step for a device/user pair.
type MarkerKey struct {
	Kind     MarkerKind
	DeviceID string
	UserID   string
}

// MarkerStore persists completion markers so one-shot work survives reloads.
type MarkerStore interface {
	IsMarked(ctx context.Context, key MarkerKey) (bool, error)
	Mark(ctx context.Context, key MarkerKey) error
}
