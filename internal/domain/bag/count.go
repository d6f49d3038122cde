package bag

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/xenking/stitchbag/internal/domain/draft"
	"github.com/xenking/stitchbag/internal/domain/identity"
)

// publishLocked pushes the current count to every subscriber, replacing any
// value the subscriber has not read yet. Caller holds r.mu.
func (v *view) publishLocked() {
	n := len(v.drafts)
	for _, ch := range v.subs {
		select {
		case <-ch:
		default:
		}
		ch <- n
	}
}

// BagCount returns the number of editable drafts in the actor's bag.
func (r *Reconciler) BagCount(ctx context.Context, actor identity.Actor) (int, error) {
	scope := actor.Scope()
	store, err := r.stores.For(scope)
	if err != nil {
		return 0, err
	}

	r.mu.Lock()
	v, ok := r.views[scope]
	if ok {
		n := len(v.drafts)
		r.mu.Unlock()
		return n, nil
	}
	r.mu.Unlock()

	list, err := store.List(ctx, scope)
	if err != nil {
		return 0, errors.Wrap(err, "count drafts")
	}
	n := 0
	for i := range list {
		if list[i].Editable() {
			n++
		}
	}
	return n, nil
}

// SubscribeCount returns a channel that yields the bag count now and after
// every change. Slow readers only see the latest value. The returned cancel
// func closes the channel; the scope's view is dropped with its last
// subscriber.
func (r *Reconciler) SubscribeCount(ctx context.Context, actor identity.Actor) (<-chan int, func(), error) {
	scope := actor.Scope()
	store, err := r.stores.For(scope)
	if err != nil {
		return nil, nil, err
	}

	r.mu.Lock()
	_, ok := r.views[scope]
	r.mu.Unlock()
	var list []draft.Draft
	if !ok {
		if list, err = store.List(ctx, scope); err != nil {
			return nil, nil, errors.Wrap(err, "load bag")
		}
	}

	ch := make(chan int, 1)

	r.mu.Lock()
	v, ok := r.views[scope]
	if !ok {
		v = newView(list)
		r.views[scope] = v
	}
	id := v.nextSub
	v.nextSub++
	v.subs[id] = ch
	ch <- len(v.drafts)
	r.mu.Unlock()

	cancel := func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		sub, ok := v.subs[id]
		if !ok {
			return
		}
		delete(v.subs, id)
		close(sub)
		if len(v.subs) == 0 && r.views[scope] == v {
			delete(r.views, scope)
		}
	}
	return ch, cancel, nil
}
