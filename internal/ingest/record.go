// Package ingest loads catalog content from gzip-compressed JSON-lines
// feeds into a catalog.Writer.
//
// Every line is one flat object tagged with a "kind" field:
//
//	{"kind":"design","id":"paisley","name":"Kashmiri Paisley","complexity":"complex","basePrice":900}
//	{"kind":"pricing_tier","complexity":"complex","price":"1200"}
//
// Prices may be JSON numbers or strings. Unknown fields are ignored.
package ingest

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/stitchbag/internal/domain/catalog"
)

// Record is one decoded catalog entity.
type Record struct {
	Kind   catalog.Kind
	fields map[string]string
}

// ID returns the entity id, or the complexity for pricing tiers.
func (r Record) ID() string {
	if r.Kind == catalog.KindPricingTier {
		return r.fields["complexity"]
	}
	return r.fields["id"]
}

// Decode parses a single feed line.
func Decode(line []byte) (Record, error) {
	fields := make(map[string]string)
	d := jx.DecodeBytes(line)
	if err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		switch d.Next() {
		case jx.String:
			s, err := d.Str()
			if err != nil {
				return err
			}
			fields[string(key)] = s
		case jx.Number:
			n, err := d.Num()
			if err != nil {
				return err
			}
			fields[string(key)] = n.String()
		default:
			return d.Skip()
		}
		return nil
	}); err != nil {
		return Record{}, errors.Wrap(err, "decode object")
	}

	kind := catalog.Kind(fields["kind"])
	switch kind {
	case catalog.KindDesign, catalog.KindFabric, catalog.KindFabricColor,
		catalog.KindGarmentType, catalog.KindStandardSize, catalog.KindPricingTier:
	case "":
		return Record{}, errors.New("missing kind")
	default:
		return Record{}, errors.Errorf("unknown kind %q", kind)
	}
	rec := Record{Kind: kind, fields: fields}
	if rec.ID() == "" {
		return Record{}, errors.Errorf("%s: missing id", kind)
	}
	return rec, nil
}

// Apply upserts the record through w.
func (r Record) Apply(ctx context.Context, w catalog.Writer) error {
	switch r.Kind {
	case catalog.KindDesign:
		price, err := r.price("basePrice", true)
		if err != nil {
			return err
		}
		return w.UpsertDesign(ctx, catalog.Design{
			ID:         r.fields["id"],
			Name:       r.fields["name"],
			Category:   r.fields["category"],
			Complexity: catalog.Complexity(r.fields["complexity"]),
			BasePrice:  price,
		})
	case catalog.KindFabric:
		price, err := r.price("pricePerMeter", true)
		if err != nil {
			return err
		}
		return w.UpsertFabric(ctx, catalog.Fabric{
			ID:            r.fields["id"],
			Name:          r.fields["name"],
			PricePerMeter: price,
		})
	case catalog.KindFabricColor:
		return w.UpsertFabricColor(ctx, catalog.FabricColor{
			ID:       r.fields["id"],
			FabricID: r.fields["fabricId"],
			Name:     r.fields["name"],
			Hex:      r.fields["hex"],
		})
	case catalog.KindGarmentType:
		price, err := r.price("baseStitchingPrice", true)
		if err != nil {
			return err
		}
		consumption, err := r.price("defaultFabricConsumption", true)
		if err != nil {
			return err
		}
		return w.UpsertGarmentType(ctx, catalog.GarmentType{
			ID:                       r.fields["id"],
			Name:                     r.fields["name"],
			BaseStitchingPrice:       price,
			DefaultFabricConsumption: consumption,
		})
	case catalog.KindStandardSize:
		extra, err := r.price("extraPrice", false)
		if err != nil {
			return err
		}
		return w.UpsertStandardSize(ctx, catalog.StandardSize{
			ID:         r.fields["id"],
			Label:      r.fields["label"],
			ExtraPrice: extra,
		})
	case catalog.KindPricingTier:
		price, err := r.price("price", true)
		if err != nil {
			return err
		}
		return w.UpsertPricingTier(ctx, catalog.Complexity(r.fields["complexity"]), price)
	default:
		return errors.Errorf("unknown kind %q", r.Kind)
	}
}

// price parses a non-negative amount. Missing optional amounts are zero.
func (r Record) price(field string, required bool) (decimal.Decimal, error) {
	raw, ok := r.fields[field]
	if !ok {
		if required {
			return decimal.Decimal{}, errors.Errorf("%s %s: missing %s", r.Kind, r.ID(), field)
		}
		return decimal.Zero, nil
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, errors.Wrapf(err, "%s %s: parse %s", r.Kind, r.ID(), field)
	}
	if v.IsNegative() {
		return decimal.Decimal{}, errors.Errorf("%s %s: negative %s %s", r.Kind, r.ID(), field, v)
	}
	return v, nil
}
