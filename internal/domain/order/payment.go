package order

import (
	"context"

	"github.com/google/uuid"
)

// DeclineToken makes MockGateway reject the charge.
const DeclineToken = "tok_declined"

// MockGateway approves every charge except those using DeclineToken.
type MockGateway struct{}

// Charge returns a fake payment reference.
func (MockGateway) Charge(_ context.Context, req ChargeRequest) (string, error) {
	if req.Token == DeclineToken {
		return "", ErrPaymentDeclined
	}
	return "pay_" + uuid.New().String(), nil
}
