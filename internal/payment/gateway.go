package payment

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

var (
	// ErrSignatureInvalid means the checkout signature did not match.
	ErrSignatureInvalid = errors.New("payment signature mismatch")
	// ErrNotConfigured means gateway credentials are missing.
	ErrNotConfigured = errors.New("payment gateway not configured")
	// ErrInvalidAmount means a non-positive amount was requested.
	ErrInvalidAmount = errors.New("amount must be positive")
)

// GatewayOrder is the provider-side order a checkout pays against.
type GatewayOrder struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// Gateway talks to the payment provider.
type Gateway interface {
	CreateOrder(ctx context.Context, amountMinor int64, receipt string) (*GatewayOrder, error)
	VerifySignature(orderID, paymentID, signature string) error
	Refund(ctx context.Context, paymentID string, amountMinor int64) (string, error)
	KeyID() string
}

// ToMinorUnits converts a rupee amount to paise, rounding half away from zero.
func ToMinorUnits(amount float64) int64 {
	return decimal.NewFromFloat(amount).Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}
