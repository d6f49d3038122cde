// Package catalog describes the read-only catalog entities that feed pricing.
package catalog

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is matched by every EntryNotFoundError.
var ErrNotFound = errors.New("catalog entry not found")

// Kind names a catalog entity type.
type Kind string

const (
	KindDesign       Kind = "design"
	KindFabric       Kind = "fabric"
	KindFabricColor  Kind = "fabric_color"
	KindGarmentType  Kind = "garment_type"
	KindStandardSize Kind = "standard_size"
	KindPricingTier  Kind = "pricing_tier"
)

// EntryNotFoundError indicates a referenced catalog entity does not exist.
type EntryNotFoundError struct {
	Kind Kind
	ID   string
}

func (e *EntryNotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

func (e *EntryNotFoundError) Is(target error) bool { return target == ErrNotFound }

// Complexity grades an embroidery design for tiered pricing.
type Complexity string

const (
	ComplexitySimple    Complexity = "simple"
	ComplexityMedium    Complexity = "medium"
	ComplexityComplex   Complexity = "complex"
	ComplexityIntricate Complexity = "intricate"
)

// Design is an embroidery design offered in the catalog.
type Design struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Category   string          `json:"category"`
	Complexity Complexity      `json:"complexity"`
	BasePrice  decimal.Decimal `json:"basePrice"`
}

// Fabric is sold by the meter.
type Fabric struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	PricePerMeter decimal.Decimal `json:"pricePerMeter"`
}

// FabricColor is a color variant of a fabric. An empty FabricID means the
// color is available for every fabric.
type FabricColor struct {
	ID       string `json:"id"`
	FabricID string `json:"fabricId,omitempty"`
	Name     string `json:"name"`
	Hex      string `json:"hex,omitempty"`
}

// GarmentType is a stitched garment the design can be applied to.
type GarmentType struct {
	ID                       string          `json:"id"`
	Name                     string          `json:"name"`
	BaseStitchingPrice       decimal.Decimal `json:"baseStitchingPrice"`
	DefaultFabricConsumption decimal.Decimal `json:"defaultFabricConsumption"`
}

// StandardSize is a predefined size with an optional upcharge.
type StandardSize struct {
	ID         string          `json:"id"`
	Label      string          `json:"label"`
	ExtraPrice decimal.Decimal `json:"extraPrice"`
}

// PricingTable maps design complexity to an embroidery price tier.
type PricingTable map[Complexity]decimal.Decimal

// Lookup returns the tier price for c.
func (t PricingTable) Lookup(c Complexity) (decimal.Decimal, bool) {
	p, ok := t[c]
	return p, ok
}

// Repository provides the catalog lookups pricing depends on.
type Repository interface {
	GetDesign(ctx context.Context, id string) (*Design, error)
	GetFabric(ctx context.Context, id string) (*Fabric, error)
	GetFabricColor(ctx context.Context, id string) (*FabricColor, error)
	GetGarmentType(ctx context.Context, id string) (*GarmentType, error)
	GetStandardSize(ctx context.Context, id string) (*StandardSize, error)
	GetEmbroideryPricingTable(ctx context.Context) (PricingTable, error)
}

// Writer stores catalog entities. Every method creates or replaces by id.
type Writer interface {
	UpsertDesign(ctx context.Context, d Design) error
	UpsertFabric(ctx context.Context, f Fabric) error
	UpsertFabricColor(ctx context.Context, c FabricColor) error
	UpsertGarmentType(ctx context.Context, g GarmentType) error
	UpsertStandardSize(ctx context.Context, s StandardSize) error
	UpsertPricingTier(ctx context.Context, c Complexity, price decimal.Decimal) error
}

// Snapshot holds every catalog entity one draft references, resolved at a
// single point in time. Optional references are nil when not selected.
type Snapshot struct {
	Design  Design
	Fabric  *Fabric
	Color   *FabricColor
	Garment *GarmentType
	Size    *StandardSize
	Table   PricingTable
}
