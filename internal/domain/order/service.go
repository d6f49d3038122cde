package order

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xenking/stitchbag/internal/domain/bag"
	"github.com/xenking/stitchbag/internal/domain/identity"
)

// Sentinel errors for checkout.
var (
	ErrEmptyBag        = errors.New("bag is empty")
	ErrPaymentDeclined = errors.New("payment declined")
)

// UnpricedDraftError indicates a bag line whose catalog references are gone,
// so it cannot be charged.
type UnpricedDraftError struct {
	DraftID string
}

func (e *UnpricedDraftError) Error() string {
	return fmt.Sprintf("draft %s cannot be priced", e.DraftID)
}

// DraftNotInBagError indicates a requested draft id is not an editable bag line.
type DraftNotInBagError struct {
	DraftID string
}

func (e *DraftNotInBagError) Error() string {
	return fmt.Sprintf("draft %s is not in the bag", e.DraftID)
}

// DuplicateDraftError indicates a draft id requested more than once.
type DuplicateDraftError struct {
	DraftID string
}

func (e *DuplicateDraftError) Error() string {
	return fmt.Sprintf("draft %s requested more than once", e.DraftID)
}

// Bag is the part of the reconciler checkout relies on.
type Bag interface {
	ListDrafts(ctx context.Context, actor identity.Actor) ([]bag.Line, error)
	MarkSubmitted(ctx context.Context, actor identity.Actor, ids []string, orderID string) error
}

// CheckoutRequest holds the input for checking out.
type CheckoutRequest struct {
	PaymentToken string
	// DraftIDs limits checkout to these drafts. Empty means the whole bag.
	DraftIDs []string
}

// Service encapsulates checkout business logic.
type Service struct {
	bag      Bag
	orders   Repository
	payments PaymentGateway
	currency string
	now      func() time.Time
}

// NewService creates an order Service with the required domain dependencies.
func NewService(b Bag, orders Repository, payments PaymentGateway, currency string) *Service {
	return &Service{
		bag:      b,
		orders:   orders,
		payments: payments,
		currency: currency,
		now:      time.Now,
	}
}

// Checkout prices the bag fresh, charges the shopper, persists the order and
// marks the drafts submitted.
func (s *Service) Checkout(ctx context.Context, actor identity.Actor, req CheckoutRequest) (*Order, error) {
	if !actor.Authenticated() {
		return nil, identity.ErrUnauthenticated
	}

	lines, err := s.bag.ListDrafts(ctx, actor)
	if err != nil {
		return nil, fmt.Errorf("list bag: %w", err)
	}
	lines, err = selectLines(lines, req.DraftIDs)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, ErrEmptyBag
	}

	o := &Order{
		ID:        uuid.New().String(),
		UserID:    actor.UserID,
		Lines:     make([]OrderLine, len(lines)),
		Total:     decimal.Zero,
		Currency:  s.currency,
		CreatedAt: s.now().UTC(),
	}
	for i, l := range lines {
		if l.Unpriced {
			return nil, &UnpricedDraftError{DraftID: l.Draft.ID}
		}
		o.Lines[i] = OrderLine{
			DraftID:     l.Draft.ID,
			DesignID:    l.Draft.Design.ID,
			DesignName:  l.Draft.Design.Name,
			ServiceType: l.Draft.ServiceType,
			Quantity:    l.Draft.Quantity,
			UnitTotal:   l.Price.Total,
			LineTotal:   l.LineTotal,
		}
		o.Total = o.Total.Add(l.LineTotal)
	}
	o.Total = o.Total.Round(2)

	ref, err := s.payments.Charge(ctx, ChargeRequest{
		OrderID:  o.ID,
		UserID:   o.UserID,
		Amount:   o.Total,
		Currency: o.Currency,
		Token:    req.PaymentToken,
	})
	if err != nil {
		return nil, fmt.Errorf("charge: %w", err)
	}
	o.PaymentRef = ref

	if err := s.orders.Create(ctx, o); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}
	if err := s.bag.MarkSubmitted(ctx, actor, o.DraftIDs(), o.ID); err != nil {
		return o, fmt.Errorf("mark drafts submitted: %w", err)
	}
	return o, nil
}

func selectLines(lines []bag.Line, ids []string) ([]bag.Line, error) {
	if len(ids) == 0 {
		return lines, nil
	}
	byID := make(map[string]bag.Line, len(lines))
	for _, l := range lines {
		byID[l.Draft.ID] = l
	}
	selected := make([]bag.Line, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			return nil, &DuplicateDraftError{DraftID: id}
		}
		seen[id] = struct{}{}
		l, ok := byID[id]
		if !ok {
			return nil, &DraftNotInBagError{DraftID: id}
		}
		selected = append(selected, l)
	}
	return selected, nil
}
