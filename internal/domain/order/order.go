package order

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/stitchbag/internal/domain/draft"
)

// Order represents a placed order built from the shopper's bag.
type Order struct {
	ID         string
	UserID     string
	Lines      []OrderLine
	Total      decimal.Decimal
	Currency   string
	PaymentRef string
	CreatedAt  time.Time
}

// DraftIDs returns the ids of the drafts the order was built from.
func (o *Order) DraftIDs() []string {
	ids := make([]string, len(o.Lines))
	for i, l := range o.Lines {
		ids[i] = l.DraftID
	}
	return ids
}

// OrderLine is one priced bag line frozen into the order.
type OrderLine struct {
	DraftID     string            `json:"draft_id"`
	DesignID    string            `json:"design_id"`
	DesignName  string            `json:"design_name"`
	ServiceType draft.ServiceType `json:"service_type"`
	Quantity    int               `json:"quantity"`
	UnitTotal   decimal.Decimal   `json:"unit_total"`
	LineTotal   decimal.Decimal   `json:"line_total"`
}

// Repository defines persistence operations for orders.
type Repository interface {
	Create(ctx context.Context, order *Order) error
}

// ChargeRequest is passed to the payment gateway.
type ChargeRequest struct {
	OrderID  string
	UserID   string
	Amount   decimal.Decimal
	Currency string
	Token    string
}

// PaymentGateway charges the shopper for an order.
type PaymentGateway interface {
	Charge(ctx context.Context, req ChargeRequest) (reference string, err error)
}
