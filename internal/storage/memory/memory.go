// Package memory provides process-local stores. They back the server when
// no remote is configured and serve as fixtures in tests.
package memory

import (
	"context"
	"sync"

	"github.com/xenking/stitchbag/internal/domain/draft"
	"github.com/xenking/stitchbag/internal/domain/identity"
	"github.com/xenking/stitchbag/internal/domain/persist"
	"github.com/xenking/stitchbag/internal/domain/wishlist"
)

var (
	_ draft.Store          = (*DraftStore)(nil)
	_ wishlist.Store       = (*WishlistStore)(nil)
	_ identity.MarkerStore = (*MarkerStore)(nil)
)

// DraftStore holds drafts of any scope.
type DraftStore struct {
	mu     sync.Mutex
	drafts map[identity.Scope]map[string]draft.Draft
}

// NewDraftStore creates an empty DraftStore.
func NewDraftStore() *DraftStore {
	return &DraftStore{drafts: make(map[identity.Scope]map[string]draft.Draft)}
}

func (s *DraftStore) List(_ context.Context, scope identity.Scope) ([]draft.Draft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]draft.Draft, 0, len(s.drafts[scope]))
	for _, d := range s.drafts[scope] {
		out = append(out, d.Clone())
	}
	return out, nil
}

func (s *DraftStore) Get(_ context.Context, scope identity.Scope, id string) (*draft.Draft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.drafts[scope][id]
	if !ok {
		return nil, persist.ErrNotFound
	}
	c := d.Clone()
	return &c, nil
}

func (s *DraftStore) Put(_ context.Context, scope identity.Scope, d *draft.Draft) error {
	if d.Scope != scope {
		return persist.ErrScopeMismatch
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.drafts[scope]
	if !ok {
		m = make(map[string]draft.Draft)
		s.drafts[scope] = m
	}
	m[d.ID] = d.Clone()
	return nil
}

func (s *DraftStore) Delete(_ context.Context, scope identity.Scope, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.drafts[scope], id)
	return nil
}

// Len returns the number of drafts stored for scope.
func (s *DraftStore) Len(scope identity.Scope) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.drafts[scope])
}

// WishlistStore holds wishlist entries of any scope.
type WishlistStore struct {
	mu      sync.Mutex
	entries map[identity.Scope]map[string]wishlist.Entry
}

// NewWishlistStore creates an empty WishlistStore.
func NewWishlistStore() *WishlistStore {
	return &WishlistStore{entries: make(map[identity.Scope]map[string]wishlist.Entry)}
}

func (s *WishlistStore) List(_ context.Context, scope identity.Scope) ([]wishlist.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]wishlist.Entry, 0, len(s.entries[scope]))
	for _, e := range s.entries[scope] {
		out = append(out, e)
	}
	return out, nil
}

func (s *WishlistStore) Get(_ context.Context, scope identity.Scope, designID string) (wishlist.Entry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[scope][designID]
	return e, ok, nil
}

func (s *WishlistStore) Add(_ context.Context, scope identity.Scope, e wishlist.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.entries[scope]
	if !ok {
		m = make(map[string]wishlist.Entry)
		s.entries[scope] = m
	}
	if _, liked := m[e.DesignID]; !liked {
		m[e.DesignID] = e
	}
	return nil
}

func (s *WishlistStore) Remove(_ context.Context, scope identity.Scope, designID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries[scope], designID)
	return nil
}

// MarkerStore records markers in memory.
type MarkerStore struct {
	mu   sync.Mutex
	done map[identity.MarkerKey]struct{}
}

// NewMarkerStore creates an empty MarkerStore.
func NewMarkerStore() *MarkerStore {
	return &MarkerStore{done: make(map[identity.MarkerKey]struct{})}
}

func (s *MarkerStore) IsMarked(_ context.Context, key identity.MarkerKey) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.done[key]
	return ok, nil
}

func (s *MarkerStore) Mark(_ context.Context, key identity.MarkerKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.done[key] = struct{}{}
	return nil
}
