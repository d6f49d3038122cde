package memory

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/xenking/stitchbag/internal/domain/catalog"
)

var (
	_ catalog.Repository = (*Catalog)(nil)
	_ catalog.Writer     = (*Catalog)(nil)
)

// Catalog is a mutable in-memory catalog.
type Catalog struct {
	mu       sync.RWMutex
	designs  map[string]catalog.Design
	fabrics  map[string]catalog.Fabric
	colors   map[string]catalog.FabricColor
	garments map[string]catalog.GarmentType
	sizes    map[string]catalog.StandardSize
	tiers    catalog.PricingTable
}

// NewCatalog creates an empty Catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		designs:  make(map[string]catalog.Design),
		fabrics:  make(map[string]catalog.Fabric),
		colors:   make(map[string]catalog.FabricColor),
		garments: make(map[string]catalog.GarmentType),
		sizes:    make(map[string]catalog.StandardSize),
		tiers:    make(catalog.PricingTable),
	}
}

func lookup[T any](mu *sync.RWMutex, m map[string]T, kind catalog.Kind, id string) (*T, error) {
	mu.RLock()
	defer mu.RUnlock()
	v, ok := m[id]
	if !ok {
		return nil, &catalog.EntryNotFoundError{Kind: kind, ID: id}
	}
	return &v, nil
}

func (c *Catalog) GetDesign(_ context.Context, id string) (*catalog.Design, error) {
	return lookup(&c.mu, c.designs, catalog.KindDesign, id)
}

func (c *Catalog) GetFabric(_ context.Context, id string) (*catalog.Fabric, error) {
	return lookup(&c.mu, c.fabrics, catalog.KindFabric, id)
}

func (c *Catalog) GetFabricColor(_ context.Context, id string) (*catalog.FabricColor, error) {
	return lookup(&c.mu, c.colors, catalog.KindFabricColor, id)
}

func (c *Catalog) GetGarmentType(_ context.Context, id string) (*catalog.GarmentType, error) {
	return lookup(&c.mu, c.garments, catalog.KindGarmentType, id)
}

func (c *Catalog) GetStandardSize(_ context.Context, id string) (*catalog.StandardSize, error) {
	return lookup(&c.mu, c.sizes, catalog.KindStandardSize, id)
}

func (c *Catalog) GetEmbroideryPricingTable(context.Context) (catalog.PricingTable, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t := make(catalog.PricingTable, len(c.tiers))
	for k, v := range c.tiers {
		t[k] = v
	}
	return t, nil
}

func (c *Catalog) UpsertDesign(_ context.Context, d catalog.Design) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.designs[d.ID] = d
	return nil
}

func (c *Catalog) UpsertFabric(_ context.Context, f catalog.Fabric) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fabrics[f.ID] = f
	return nil
}

func (c *Catalog) UpsertFabricColor(_ context.Context, fc catalog.FabricColor) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.colors[fc.ID] = fc
	return nil
}

func (c *Catalog) UpsertGarmentType(_ context.Context, g catalog.GarmentType) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.garments[g.ID] = g
	return nil
}

func (c *Catalog) UpsertStandardSize(_ context.Context, s catalog.StandardSize) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sizes[s.ID] = s
	return nil
}

func (c *Catalog) UpsertPricingTier(_ context.Context, cx catalog.Complexity, price decimal.Decimal) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tiers[cx] = price
	return nil
}

// DeleteDesign removes a design, leaving drafts that reference it unpriceable.
func (c *Catalog) DeleteDesign(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.designs, id)
}
