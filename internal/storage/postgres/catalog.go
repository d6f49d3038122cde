package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/stitchbag/internal/domain/catalog"
)

const (
	getDesignSQL       = `SELECT id, name, category, complexity, base_price FROM designs WHERE id = $1`
	getFabricSQL       = `SELECT id, name, price_per_meter FROM fabrics WHERE id = $1`
	getFabricColorSQL  = `SELECT id, COALESCE(fabric_id, ''), name, hex FROM fabric_colors WHERE id = $1`
	getGarmentTypeSQL  = `SELECT id, name, base_stitching_price, default_fabric_consumption FROM garment_types WHERE id = $1`
	getStandardSizeSQL = `SELECT id, label, extra_price FROM standard_sizes WHERE id = $1`
	getPricingSQL      = `SELECT complexity, price FROM embroidery_pricing`

	upsertDesignSQL = `INSERT INTO designs (id, name, category, complexity, base_price) VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, category = EXCLUDED.category,
		complexity = EXCLUDED.complexity, base_price = EXCLUDED.base_price`
	upsertFabricSQL = `INSERT INTO fabrics (id, name, price_per_meter) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, price_per_meter = EXCLUDED.price_per_meter`
	upsertFabricColorSQL = `INSERT INTO fabric_colors (id, fabric_id, name, hex) VALUES ($1, NULLIF($2, ''), $3, $4)
		ON CONFLICT (id) DO UPDATE SET fabric_id = EXCLUDED.fabric_id, name = EXCLUDED.name, hex = EXCLUDED.hex`
	upsertGarmentTypeSQL = `INSERT INTO garment_types (id, name, base_stitching_price, default_fabric_consumption) VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, base_stitching_price = EXCLUDED.base_stitching_price,
		default_fabric_consumption = EXCLUDED.default_fabric_consumption`
	upsertStandardSizeSQL = `INSERT INTO standard_sizes (id, label, extra_price) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET label = EXCLUDED.label, extra_price = EXCLUDED.extra_price`
	upsertPricingTierSQL = `INSERT INTO embroidery_pricing (complexity, price) VALUES ($1, $2)
		ON CONFLICT (complexity) DO UPDATE SET price = EXCLUDED.price`
)

var (
	_ catalog.Repository = (*CatalogRepository)(nil)
	_ catalog.Writer     = (*CatalogRepository)(nil)
)

// CatalogRepository implements catalog.Repository backed by PostgreSQL.
type CatalogRepository struct {
	pool *pgxpool.Pool
}

// NewCatalogRepository returns a CatalogRepository that uses the given pool.
func NewCatalogRepository(pool *pgxpool.Pool) *CatalogRepository {
	return &CatalogRepository{pool: pool}
}

func (r *CatalogRepository) GetDesign(ctx context.Context, id string) (*catalog.Design, error) {
	return getOne(ctx, r.pool, catalog.KindDesign, id, getDesignSQL, func(row pgx.CollectableRow) (catalog.Design, error) {
		var d catalog.Design
		err := row.Scan(&d.ID, &d.Name, &d.Category, &d.Complexity, &d.BasePrice)
		return d, err
	})
}

func (r *CatalogRepository) GetFabric(ctx context.Context, id string) (*catalog.Fabric, error) {
	return getOne(ctx, r.pool, catalog.KindFabric, id, getFabricSQL, func(row pgx.CollectableRow) (catalog.Fabric, error) {
		var f catalog.Fabric
		err := row.Scan(&f.ID, &f.Name, &f.PricePerMeter)
		return f, err
	})
}

func (r *CatalogRepository) GetFabricColor(ctx context.Context, id string) (*catalog.FabricColor, error) {
	return getOne(ctx, r.pool, catalog.KindFabricColor, id, getFabricColorSQL, func(row pgx.CollectableRow) (catalog.FabricColor, error) {
		var c catalog.FabricColor
		err := row.Scan(&c.ID, &c.FabricID, &c.Name, &c.Hex)
		return c, err
	})
}

func (r *CatalogRepository) GetGarmentType(ctx context.Context, id string) (*catalog.GarmentType, error) {
	return getOne(ctx, r.pool, catalog.KindGarmentType, id, getGarmentTypeSQL, func(row pgx.CollectableRow) (catalog.GarmentType, error) {
		var g catalog.GarmentType
		err := row.Scan(&g.ID, &g.Name, &g.BaseStitchingPrice, &g.DefaultFabricConsumption)
		return g, err
	})
}

func (r *CatalogRepository) GetStandardSize(ctx context.Context, id string) (*catalog.StandardSize, error) {
	return getOne(ctx, r.pool, catalog.KindStandardSize, id, getStandardSizeSQL, func(row pgx.CollectableRow) (catalog.StandardSize, error) {
		var s catalog.StandardSize
		err := row.Scan(&s.ID, &s.Label, &s.ExtraPrice)
		return s, err
	})
}

// GetEmbroideryPricingTable returns every complexity tier.
func (r *CatalogRepository) GetEmbroideryPricingTable(ctx context.Context) (catalog.PricingTable, error) {
	rows, err := r.pool.Query(ctx, getPricingSQL)
	if err != nil {
		return nil, fmt.Errorf("getting pricing table: %w", err)
	}
	defer rows.Close()

	table := make(catalog.PricingTable)
	for rows.Next() {
		var (
			c     catalog.Complexity
			price decimal.Decimal
		)
		if err := rows.Scan(&c, &price); err != nil {
			return nil, fmt.Errorf("scanning pricing tier: %w", err)
		}
		table[c] = price
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("getting pricing table: %w", err)
	}
	return table, nil
}

// UpsertDesign creates or replaces a design.
func (r *CatalogRepository) UpsertDesign(ctx context.Context, d catalog.Design) error {
	_, err := r.pool.Exec(ctx, upsertDesignSQL, d.ID, d.Name, d.Category, string(d.Complexity), d.BasePrice)
	return wrapUpsert(catalog.KindDesign, d.ID, err)
}

// UpsertFabric creates or replaces a fabric.
func (r *CatalogRepository) UpsertFabric(ctx context.Context, f catalog.Fabric) error {
	_, err := r.pool.Exec(ctx, upsertFabricSQL, f.ID, f.Name, f.PricePerMeter)
	return wrapUpsert(catalog.KindFabric, f.ID, err)
}

// UpsertFabricColor creates or replaces a fabric color.
func (r *CatalogRepository) UpsertFabricColor(ctx context.Context, c catalog.FabricColor) error {
	_, err := r.pool.Exec(ctx, upsertFabricColorSQL, c.ID, c.FabricID, c.Name, c.Hex)
	return wrapUpsert(catalog.KindFabricColor, c.ID, err)
}

// UpsertGarmentType creates or replaces a garment type.
func (r *CatalogRepository) UpsertGarmentType(ctx context.Context, g catalog.GarmentType) error {
	_, err := r.pool.Exec(ctx, upsertGarmentTypeSQL, g.ID, g.Name, g.BaseStitchingPrice, g.DefaultFabricConsumption)
	return wrapUpsert(catalog.KindGarmentType, g.ID, err)
}

// UpsertStandardSize creates or replaces a standard size.
func (r *CatalogRepository) UpsertStandardSize(ctx context.Context, s catalog.StandardSize) error {
	_, err := r.pool.Exec(ctx, upsertStandardSizeSQL, s.ID, s.Label, s.ExtraPrice)
	return wrapUpsert(catalog.KindStandardSize, s.ID, err)
}

// UpsertPricingTier sets the embroidery price of a complexity.
func (r *CatalogRepository) UpsertPricingTier(ctx context.Context, c catalog.Complexity, price decimal.Decimal) error {
	_, err := r.pool.Exec(ctx, upsertPricingTierSQL, string(c), price)
	return wrapUpsert(catalog.KindPricingTier, string(c), err)
}

func getOne[T any](
	ctx context.Context,
	pool *pgxpool.Pool,
	kind catalog.Kind,
	id, query string,
	scan pgx.RowToFunc[T],
) (*T, error) {
	rows, err := pool.Query(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("getting %s %q: %w", kind, id, err)
	}
	v, err := pgx.CollectExactlyOneRow(rows, scan)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &catalog.EntryNotFoundError{Kind: kind, ID: id}
		}
		return nil, fmt.Errorf("getting %s %q: %w", kind, id, err)
	}
	return &v, nil
}

func wrapUpsert(kind catalog.Kind, id string, err error) error {
	if err != nil {
		return fmt.Errorf("upserting %s %q: %w", kind, id, err)
	}
	return nil
}
