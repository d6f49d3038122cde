package pricing

import (
	"context"

	"github.com/go-faster/errors"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/stitchbag/internal/domain/catalog"
	"github.com/xenking/stitchbag/internal/domain/draft"
)

// Quoter resolves the catalog entities a draft references and prices it.
type Quoter struct {
	catalog catalog.Repository
	engine  *Engine
}

// NewQuoter creates a Quoter over the given catalog.
func NewQuoter(repo catalog.Repository, engine *Engine) *Quoter {
	return &Quoter{catalog: repo, engine: engine}
}

// Quote prices d against the current catalog. Unknown catalog references
// and colors that do not belong to the selected fabric are reported as
// *draft.ValidationError.
func (q *Quoter) Quote(ctx context.Context, d *draft.Draft) (Breakdown, catalog.Snapshot, error) {
	snap, err := q.Snapshot(ctx, d.Design.ID, d.Selections)
	if err != nil {
		return Breakdown{}, catalog.Snapshot{}, err
	}
	b, err := q.engine.Price(d, snap)
	if err != nil {
		return Breakdown{}, catalog.Snapshot{}, errors.Wrap(err, "price draft")
	}
	return b, snap, nil
}

// Snapshot fetches every referenced entity concurrently.
func (q *Quoter) Snapshot(ctx context.Context, designID string, sel draft.Selections) (catalog.Snapshot, error) {
	var snap catalog.Snapshot
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		d, err := q.catalog.GetDesign(gctx, designID)
		if err != nil {
			return lookupErr("designId", err)
		}
		snap.Design = *d
		return nil
	})
	g.Go(func() error {
		t, err := q.catalog.GetEmbroideryPricingTable(gctx)
		if err != nil {
			return errors.Wrap(err, "get pricing table")
		}
		snap.Table = t
		return nil
	})
	if sel.FabricID != "" {
		g.Go(func() error {
			f, err := q.catalog.GetFabric(gctx, sel.FabricID)
			if err != nil {
				return lookupErr("fabricId", err)
			}
			snap.Fabric = f
			return nil
		})
	}
	if sel.ColorID != "" {
		g.Go(func() error {
			c, err := q.catalog.GetFabricColor(gctx, sel.ColorID)
			if err != nil {
				return lookupErr("colorId", err)
			}
			snap.Color = c
			return nil
		})
	}
	if sel.GarmentID != "" {
		g.Go(func() error {
			gt, err := q.catalog.GetGarmentType(gctx, sel.GarmentID)
			if err != nil {
				return lookupErr("garmentId", err)
			}
			snap.Garment = gt
			return nil
		})
	}
	if sel.Size != nil && sel.Size.StandardSizeID != "" {
		g.Go(func() error {
			s, err := q.catalog.GetStandardSize(gctx, sel.Size.StandardSizeID)
			if err != nil {
				return lookupErr("size.standardSizeId", err)
			}
			snap.Size = s
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return catalog.Snapshot{}, err
	}

	if snap.Color != nil && snap.Fabric != nil && snap.Color.FabricID != "" && snap.Color.FabricID != snap.Fabric.ID {
		return catalog.Snapshot{}, &draft.ValidationError{Problems: []draft.Problem{
			{Field: "colorId", Reason: "not available for the selected fabric"},
		}}
	}
	return snap, nil
}

func lookupErr(field string, err error) error {
	if errors.Is(err, catalog.ErrNotFound) {
		return &draft.ValidationError{Problems: []draft.Problem{{Field: field, Reason: "unknown catalog entry"}}}
	}
	return errors.Wrapf(err, "lookup %s", field)
}
