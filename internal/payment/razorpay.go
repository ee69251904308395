package payment

import (
	"context"
	"fmt"

	razorpay "github.com/razorpay/razorpay-go"
	"github.com/razorpay/razorpay-go/utils"
)

// RazorpayGateway implements Gateway with the Razorpay SDK.
type RazorpayGateway struct {
	client   *razorpay.Client
	keyID    string
	secret   string
	currency string
}

// NewRazorpayGateway creates a gateway. Missing credentials produce a
// gateway whose every call fails with ErrNotConfigured.
func NewRazorpayGateway(keyID, secret, currency string) *RazorpayGateway {
	if currency == "" {
		currency = "INR"
	}
	g := &RazorpayGateway{keyID: keyID, secret: secret, currency: currency}
	if keyID != "" && secret != "" {
		g.client = razorpay.NewClient(keyID, secret)
	}
	return g
}

func (g *RazorpayGateway) KeyID() string { return g.keyID }

func (g *RazorpayGateway) CreateOrder(ctx context.Context, amountMinor int64, receipt string) (*GatewayOrder, error) {
	if amountMinor <= 0 {
		return nil, ErrInvalidAmount
	}
	if g.client == nil {
		return nil, ErrNotConfigured
	}
	data := map[string]interface{}{
		"amount":          amountMinor,
		"currency":        g.currency,
		"receipt":         receipt,
		"payment_capture": 1,
	}
	body, err := runBlocking(ctx, func() (map[string]interface{}, error) {
		return g.client.Order.Create(data, nil)
	})
	if err != nil {
		return nil, fmt.Errorf("razorpay create order: %w", err)
	}
	id, _ := body["id"].(string)
	if id == "" {
		return nil, fmt.Errorf("razorpay create order: response has no id")
	}
	return &GatewayOrder{ID: id, Amount: amountMinor, Currency: g.currency}, nil
}

func (g *RazorpayGateway) VerifySignature(orderID, paymentID, signature string) error {
	if g.secret == "" {
		return ErrNotConfigured
	}
	params := map[string]interface{}{
		"razorpay_order_id":   orderID,
		"razorpay_payment_id": paymentID,
	}
	if !utils.VerifyPaymentSignature(params, signature, g.secret) {
		return ErrSignatureInvalid
	}
	return nil
}

// Refund issues a refund. The SDK call is blocking, so it runs on its own
// goroutine and the caller stops waiting when ctx is done.
func (g *RazorpayGateway) Refund(ctx context.Context, paymentID string, amountMinor int64) (string, error) {
	if amountMinor <= 0 {
		return "", ErrInvalidAmount
	}
	if g.client == nil {
		return "", ErrNotConfigured
	}
	body, err := runBlocking(ctx, func() (map[string]interface{}, error) {
		return g.client.Payment.Refund(paymentID, int(amountMinor), nil, nil)
	})
	if err != nil {
		return "", fmt.Errorf("razorpay refund %s: %w", paymentID, err)
	}
	id, _ := body["id"].(string)
	if id == "" {
		return "", fmt.Errorf("razorpay refund %s: response has no id", paymentID)
	}
	return id, nil
}

type sdkResult struct {
	body map[string]interface{}
	err  error
}

func runBlocking(ctx context.Context, call func() (map[string]interface{}, error)) (map[string]interface{}, error) {
	done := make(chan sdkResult, 1)
	go func() {
		body, err := call()
		done <- sdkResult{body: body, err: err}
	}()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-done:
		return r.body, r.err
	}
}
