// Package draft models a customization in progress: one editable bag line
// owned by an anonymous device or a signed-in user.
package draft

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/stitchbag/internal/domain/catalog"
	"github.com/xenking/stitchbag/internal/domain/identity"
)

// ServiceType selects which selections a draft needs and which costs apply.
type ServiceType string

const (
	ClothOnly           ServiceType = "cloth_only"
	EmbroideryStitching ServiceType = "embroidery_stitching"
	SendYourFabric      ServiceType = "send_your_fabric"
)

// Valid reports whether s is a known service type.
func (s ServiceType) Valid() bool {
	switch s {
	case ClothOnly, EmbroideryStitching, SendYourFabric:
		return true
	default:
		return false
	}
}

// Status is the lifecycle state of a draft.
type Status string

const (
	// StatusDraft drafts are in the bag and editable.
	StatusDraft Status = "draft"
	// StatusSubmitted drafts belong to an order and are immutable.
	StatusSubmitted Status = "submitted"
)

// DesignRef is the denormalized design a draft was built from.
type DesignRef struct {
	ID         string             `json:"id"`
	Name       string             `json:"name"`
	Category   string             `json:"category"`
	Complexity catalog.Complexity `json:"complexity"`
	BasePrice  decimal.Decimal    `json:"basePrice"`
}

// RefFromDesign copies the display fields of a catalog design.
func RefFromDesign(d catalog.Design) DesignRef {
	return DesignRef{
		ID:         d.ID,
		Name:       d.Name,
		Category:   d.Category,
		Complexity: d.Complexity,
		BasePrice:  d.BasePrice,
	}
}

// Measurements is a custom measurement set, in inches, keyed by body part.
type Measurements map[string]decimal.Decimal

// Size is either a standard size reference or a custom measurement set.
type Size struct {
	StandardSizeID string       `json:"standardSizeId,omitempty"`
	Custom         Measurements `json:"custom,omitempty"`
}

// IsCustom reports whether the size uses custom measurements.
func (s Size) IsCustom() bool { return s.StandardSizeID == "" && len(s.Custom) > 0 }

// Selections are the service-dependent choices of a draft.
type Selections struct {
	FabricID  string          `json:"fabricId,omitempty"`
	ColorID   string          `json:"colorId,omitempty"`
	Length    decimal.Decimal `json:"length"`
	GarmentID string          `json:"garmentId,omitempty"`
	Size      *Size           `json:"size,omitempty"`
}

// Draft is one customization in progress or one bag line.
type Draft struct {
	ID             string          `json:"id"`
	Scope          identity.Scope  `json:"scope"`
	ServiceType    ServiceType     `json:"serviceType"`
	Design         DesignRef       `json:"design"`
	Selections     Selections      `json:"selections"`
	Quantity       int             `json:"quantity"`
	EstimatedPrice decimal.Decimal `json:"estimatedPrice"`
	Status         Status          `json:"status"`
	OrderID        string          `json:"orderId,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// Editable reports whether the reconciler may still mutate the draft.
func (d *Draft) Editable() bool { return d.Status == StatusDraft }

// Clone returns a deep copy so callers can mutate without aliasing.
func (d Draft) Clone() Draft {
	if d.Selections.Size != nil {
		size := *d.Selections.Size
		if size.Custom != nil {
			custom := make(Measurements, len(size.Custom))
			for k, v := range size.Custom {
				custom[k] = v
			}
			size.Custom = custom
		}
		d.Selections.Size = &size
	}
	return d
}

// Store is the capability set shared by the device-local and the remote
// draft stores. Every call is scoped; a store never returns records of
// another scope.
type Store interface {
	// List returns every draft of the scope in no particular order.
	List(ctx context.Context, scope identity.Scope) ([]Draft, error)
	// Get returns persist.ErrNotFound when the id is absent.
	Get(ctx context.Context, scope identity.Scope, id string) (*Draft, error)
	// Put creates or replaces the draft by id.
	Put(ctx context.Context, scope identity.Scope, d *Draft) error
	// Delete is a no-op when the id is absent.
	Delete(ctx context.Context, scope identity.Scope, id string) error
}
