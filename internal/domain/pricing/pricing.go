// Package pricing computes the cost breakdown of a draft from the catalog
// entities it references. Prices are always recomputed in full.
package pricing

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/stitchbag/internal/domain/catalog"
	"github.com/xenking/stitchbag/internal/domain/draft"
)

// ComponentName identifies one cost component.
type ComponentName string

const (
	EmbroideryCost  ComponentName = "EmbroideryCost"
	FabricCost      ComponentName = "FabricCost"
	StitchingCost   ComponentName = "StitchingCost"
	GarmentBaseCost ComponentName = "GarmentBaseCost"
	SizeUpcharge    ComponentName = "SizeUpcharge"
)

var (
	// ErrIncompleteSnapshot is returned when the snapshot lacks an entity the
	// selections reference.
	ErrIncompleteSnapshot = errors.New("catalog snapshot missing referenced entity")
	// ErrNegativeAmount is returned when a catalog price would yield a
	// negative component.
	ErrNegativeAmount = errors.New("negative cost component")
)

// Component is a named non-negative amount.
type Component struct {
	Name   ComponentName   `json:"name"`
	Amount decimal.Decimal `json:"amount"`
}

// Breakdown is the priced result for one unit of a draft.
type Breakdown struct {
	Components []Component     `json:"components"`
	Total      decimal.Decimal `json:"total"`
}

// Amount returns the amount of the named component, if present.
func (b Breakdown) Amount(name ComponentName) (decimal.Decimal, bool) {
	for _, c := range b.Components {
		if c.Name == name {
			return c.Amount, true
		}
	}
	return decimal.Zero, false
}

// LineTotal is the unit total multiplied by quantity.
func (b Breakdown) LineTotal(quantity int) decimal.Decimal {
	return b.Total.Mul(decimal.NewFromInt(int64(quantity))).Round(2)
}

// Rules holds pricing constants that are not catalog data.
type Rules struct {
	StitchingFee decimal.Decimal
}

// DefaultRules returns the standard flat stitching fee.
func DefaultRules() Rules {
	return Rules{StitchingFee: decimal.NewFromInt(1500)}
}

// Engine is a pure price calculator.
type Engine struct {
	rules Rules
}

// NewEngine creates an Engine with the given rules.
func NewEngine(rules Rules) *Engine {
	return &Engine{rules: rules}
}

// Price computes the breakdown of d against snap. It reads only the service
// type and selections of d; the cached estimated price is ignored.
func (e *Engine) Price(d *draft.Draft, snap catalog.Snapshot) (Breakdown, error) {
	sel := d.Selections
	var b Breakdown

	embroidery, ok := snap.Table.Lookup(snap.Design.Complexity)
	if !ok {
		embroidery = snap.Design.BasePrice
	}
	if err := b.add(EmbroideryCost, embroidery); err != nil {
		return Breakdown{}, err
	}

	if sel.GarmentID != "" && snap.Garment == nil {
		return Breakdown{}, errors.Wrap(ErrIncompleteSnapshot, "garment")
	}

	if sel.FabricID != "" {
		if snap.Fabric == nil {
			return Breakdown{}, errors.Wrap(ErrIncompleteSnapshot, "fabric")
		}
		consumption, ok := consumptionOf(d.ServiceType, sel, snap.Garment)
		if ok {
			if err := b.add(FabricCost, snap.Fabric.PricePerMeter.Mul(consumption)); err != nil {
				return Breakdown{}, err
			}
		}
	}

	if d.ServiceType != draft.ClothOnly {
		if err := b.add(StitchingCost, e.rules.StitchingFee); err != nil {
			return Breakdown{}, err
		}
	}

	if snap.Garment != nil && sel.GarmentID != "" {
		if err := b.add(GarmentBaseCost, snap.Garment.BaseStitchingPrice); err != nil {
			return Breakdown{}, err
		}
	}

	if sel.Size != nil {
		upcharge := decimal.Zero
		if !sel.Size.IsCustom() {
			if snap.Size == nil {
				return Breakdown{}, errors.Wrap(ErrIncompleteSnapshot, "standard size")
			}
			upcharge = snap.Size.ExtraPrice
		}
		if err := b.add(SizeUpcharge, upcharge); err != nil {
			return Breakdown{}, err
		}
	}

	return b, nil
}

// add appends the component rounded to paise; the total is the sum of the
// rounded amounts.
func (b *Breakdown) add(name ComponentName, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return errors.Wrapf(ErrNegativeAmount, "%s", name)
	}
	rounded := amount.Round(2)
	b.Components = append(b.Components, Component{Name: name, Amount: rounded})
	b.Total = b.Total.Add(rounded)
	return nil
}

// consumptionOf returns the meters of fabric the draft uses: the explicit
// length for cloth-only drafts, the garment default for stitched ones.
func consumptionOf(service draft.ServiceType, sel draft.Selections, garment *catalog.GarmentType) (decimal.Decimal, bool) {
	if service == draft.ClothOnly {
		return sel.Length, true
	}
	if garment != nil {
		return garment.DefaultFabricConsumption, true
	}
	return decimal.Zero, false
}
