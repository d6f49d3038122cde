package bag

import (
	"context"
	"sort"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/stitchbag/internal/domain/draft"
	"github.com/xenking/stitchbag/internal/domain/identity"
	"github.com/xenking/stitchbag/internal/domain/persist"
	"github.com/xenking/stitchbag/internal/domain/pricing"
	"github.com/xenking/stitchbag/internal/optimistic"
)

// repriceConcurrency bounds parallel catalog lookups in ListDrafts.
const repriceConcurrency = 8

// AddDraft validates and prices a new draft, shows it in the bag at once and
// persists it. If the write fails the draft is removed again.
func (r *Reconciler) AddDraft(ctx context.Context, actor identity.Actor, req AddRequest) (*draft.Draft, error) {
	ctx, span := r.tracer.Start(ctx, "bag.AddDraft")
	defer span.End()

	if err := draft.Validate(req.ServiceType, req.DesignID, req.Selections); err != nil {
		return nil, err
	}
	qty := req.Quantity
	if qty == 0 {
		qty = 1
	}
	if qty < 1 {
		return nil, &draft.InvalidQuantityError{Quantity: qty}
	}

	scope := actor.Scope()
	store, err := r.stores.For(scope)
	if err != nil {
		return nil, err
	}

	now := r.now()
	d := &draft.Draft{
		ID:          r.newID(),
		Scope:       scope,
		ServiceType: req.ServiceType,
		Design:      draft.DesignRef{ID: req.DesignID},
		Selections:  req.Selections,
		Quantity:    qty,
		Status:      draft.StatusDraft,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	price, snap, err := r.quoter.Quote(ctx, d)
	if err != nil {
		return nil, err
	}
	d.Design = draft.RefFromDesign(snap.Design)
	d.EstimatedPrice = price.Total

	unlock, err := r.lockDraft(ctx, scope, d.ID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	err = r.runner.Run(ctx, optimistic.Mutation{
		Name:  "add_draft",
		Apply: func() { r.setInView(scope, *d) },
		Persist: func(ctx context.Context) error {
			if err := store.Put(ctx, scope, d); err != nil {
				// The write may have landed before the failure was reported.
				if derr := store.Delete(ctx, scope, d.ID); derr != nil {
					zctx.From(ctx).Warn("Compensating delete failed",
						zap.String("draft_id", d.ID),
						zap.Error(derr),
					)
				}
				return err
			}
			return nil
		},
		Revert: func() { r.removeFromView(scope, d.ID) },
	})
	if err != nil {
		return nil, errors.Wrap(err, "save draft")
	}
	return d, nil
}

// UpdateQuantity sets the quantity of an editable draft. Setting the value
// the draft already has writes nothing.
func (r *Reconciler) UpdateQuantity(ctx context.Context, actor identity.Actor, id string, qty int) error {
	ctx, span := r.tracer.Start(ctx, "bag.UpdateQuantity")
	defer span.End()

	if qty < 1 {
		return &draft.InvalidQuantityError{Quantity: qty}
	}

	return r.mutate(ctx, actor, id, "update_quantity", func(next *draft.Draft) (bool, error) {
		if next.Quantity == qty {
			return false, nil
		}
		next.Quantity = qty
		return true, nil
	})
}

// UpdateSelections replaces the selections of an editable draft and reprices
// it in full.
func (r *Reconciler) UpdateSelections(ctx context.Context, actor identity.Actor, id string, sel draft.Selections) error {
	ctx, span := r.tracer.Start(ctx, "bag.UpdateSelections")
	defer span.End()

	return r.mutate(ctx, actor, id, "update_selections", func(next *draft.Draft) (bool, error) {
		if err := draft.Validate(next.ServiceType, next.Design.ID, sel); err != nil {
			return false, err
		}
		next.Selections = sel
		price, snap, err := r.quoter.Quote(ctx, next)
		if err != nil {
			return false, err
		}
		next.Design = draft.RefFromDesign(snap.Design)
		next.EstimatedPrice = price.Total
		return true, nil
	})
}

// mutate runs an optimistic edit of one draft under its lock. edit receives
// a copy of the stored draft and reports whether anything changed.
func (r *Reconciler) mutate(
	ctx context.Context,
	actor identity.Actor,
	id, name string,
	edit func(next *draft.Draft) (bool, error),
) error {
	scope := actor.Scope()
	store, err := r.stores.For(scope)
	if err != nil {
		return err
	}
	unlock, err := r.lockDraft(ctx, scope, id)
	if err != nil {
		return err
	}
	defer unlock()

	cur, err := r.current(ctx, scope, store, id)
	if err != nil {
		return err
	}
	if !cur.Editable() {
		return draft.ErrSubmitted
	}

	next := cur.Clone()
	changed, err := edit(&next)
	if err != nil || !changed {
		return err
	}
	next.UpdatedAt = r.now()

	prev := cur.Clone()
	return r.runner.Run(ctx, optimistic.Mutation{
		Name:  name,
		Apply: func() { r.setInView(scope, next) },
		Persist: func(ctx context.Context) error {
			return store.Put(ctx, scope, &next)
		},
		Revert: func() { r.setInView(scope, prev) },
	})
}

// RemoveDraft drops an editable draft from the bag. Removing an absent draft
// is a no-op. If the delete fails the draft is put back.
func (r *Reconciler) RemoveDraft(ctx context.Context, actor identity.Actor, id string) error {
	ctx, span := r.tracer.Start(ctx, "bag.RemoveDraft")
	defer span.End()

	scope := actor.Scope()
	store, err := r.stores.For(scope)
	if err != nil {
		return err
	}
	unlock, err := r.lockDraft(ctx, scope, id)
	if err != nil {
		return err
	}
	defer unlock()

	cur, err := r.current(ctx, scope, store, id)
	if err != nil {
		if errors.Is(err, persist.ErrNotFound) {
			return nil
		}
		return err
	}
	if !cur.Editable() {
		return draft.ErrSubmitted
	}

	return r.runner.Run(ctx, optimistic.Mutation{
		Name:  "remove_draft",
		Apply: func() { r.removeFromView(scope, id) },
		Persist: func(ctx context.Context) error {
			return store.Delete(ctx, scope, id)
		},
		Revert: func() { r.setInView(scope, *cur) },
	})
}

// ListDrafts reads the actor's bag from the store, reprices every editable
// draft and returns them newest first. A live count view is replaced with
// what the store returned.
func (r *Reconciler) ListDrafts(ctx context.Context, actor identity.Actor) ([]Line, error) {
	ctx, span := r.tracer.Start(ctx, "bag.ListDrafts")
	defer span.End()

	scope := actor.Scope()
	store, err := r.stores.For(scope)
	if err != nil {
		return nil, err
	}

	all, err := store.List(ctx, scope)
	if err != nil {
		return nil, errors.Wrap(err, "list drafts")
	}
	r.replaceView(scope, all)

	drafts := make([]draft.Draft, 0, len(all))
	for _, d := range all {
		if d.Editable() {
			drafts = append(drafts, d)
		}
	}

	lines := make([]Line, len(drafts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(repriceConcurrency)
	for i := range drafts {
		g.Go(func() error {
			line, err := r.price(gctx, drafts[i])
			if err != nil {
				return err
			}
			lines[i] = line
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.SliceStable(lines, func(i, j int) bool {
		a, b := lines[i].Draft, lines[j].Draft
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	return lines, nil
}

func (r *Reconciler) price(ctx context.Context, d draft.Draft) (Line, error) {
	b, _, err := r.quoter.Quote(ctx, &d)
	if err != nil {
		var verr *draft.ValidationError
		if errors.As(err, &verr) || errors.Is(err, pricing.ErrIncompleteSnapshot) {
			zctx.From(ctx).Debug("Draft references missing catalog entries",
				zap.String("draft_id", d.ID),
				zap.Error(err),
			)
			return Line{
				Draft:     d,
				LineTotal: pricing.Breakdown{Total: d.EstimatedPrice}.LineTotal(d.Quantity),
				Unpriced:  true,
			}, nil
		}
		return Line{}, errors.Wrapf(err, "price draft %s", d.ID)
	}

	if !b.Total.Equal(d.EstimatedPrice) {
		zctx.From(ctx).Debug("Cached draft price is stale",
			zap.String("draft_id", d.ID),
			zap.String("cached", d.EstimatedPrice.String()),
			zap.String("current", b.Total.String()),
		)
	}
	d.EstimatedPrice = b.Total
	return Line{Draft: d, Price: b, LineTotal: b.LineTotal(d.Quantity)}, nil
}

// MarkSubmitted flips the given drafts to submitted for orderID and removes
// them from the bag. Drafts already submitted for the same order are left
// as they are, so checkout may retry.
func (r *Reconciler) MarkSubmitted(ctx context.Context, actor identity.Actor, ids []string, orderID string) error {
	ctx, span := r.tracer.Start(ctx, "bag.MarkSubmitted")
	defer span.End()

	if !actor.Authenticated() {
		return identity.ErrUnauthenticated
	}
	scope := actor.Scope()
	store, err := r.stores.For(scope)
	if err != nil {
		return err
	}

	for _, id := range ids {
		if err := r.submitOne(ctx, scope, store, id, orderID); err != nil {
			return errors.Wrapf(err, "submit draft %s", id)
		}
	}
	return nil
}

func (r *Reconciler) submitOne(ctx context.Context, scope identity.Scope, store draft.Store, id, orderID string) error {
	unlock, err := r.lockDraft(ctx, scope, id)
	if err != nil {
		return err
	}
	defer unlock()

	cur, err := r.current(ctx, scope, store, id)
	if err != nil {
		return err
	}
	if !cur.Editable() {
		if cur.OrderID == orderID {
			return nil
		}
		return draft.ErrSubmitted
	}

	next := cur.Clone()
	next.Status = draft.StatusSubmitted
	next.OrderID = orderID
	next.UpdatedAt = r.now()

	return r.runner.Run(ctx, optimistic.Mutation{
		Name:  "mark_submitted",
		Apply: func() { r.removeFromView(scope, id) },
		Persist: func(ctx context.Context) error {
			return store.Put(ctx, scope, &next)
		},
		Revert: func() { r.setInView(scope, *cur) },
	})
}
