// Package payments wraps the payment provider behind a small interface so
// the fulfillment engine and handlers can be tested against fakes.
package payments

import (
	"context"
)

// PaymentStatus values reported by the provider for a checkout session.
const (
	PaymentStatusPaid              = "paid"
	PaymentStatusUnpaid            = "unpaid"
	PaymentStatusNoPaymentRequired = "no_payment_required"
)

// CheckoutSession is the provider's view of one hosted checkout.
type CheckoutSession struct {
	ID              string
	URL             string
	PaymentStatus   string
	CustomerEmail   string
	PaymentIntentID string
}

// Paid reports whether the session reached a paid state.
func (s CheckoutSession) Paid() bool {
	return s.PaymentStatus == PaymentStatusPaid || s.PaymentStatus == PaymentStatusNoPaymentRequired
}

// Account is a connected seller account's payout capability snapshot.
type Account struct {
	ID             string
	ChargesEnabled bool
	PayoutsEnabled bool
}

// CreateSessionParams describes a destination-charge checkout.
type CreateSessionParams struct {
	AmountMinor          int64
	Currency             string
	ProductName          string
	DestinationAccountID string
	ApplicationFeeMinor  int64
	CustomerEmail        string
	SuccessURL           string
	CancelURL            string
	// Reference carries the purchase/donation id into session metadata.
	Reference     string
	ReferenceKind string // "purchase" or "donation"
}

// Client is the payment provider surface Distro depends on.
type Client interface {
	CreateCheckoutSession(ctx context.Context, p CreateSessionParams) (CheckoutSession, error)
	// GetCheckoutSession retrieves the authoritative session state; callers
	// never trust caller-supplied payment status.
	GetCheckoutSession(ctx context.Context, id string) (CheckoutSession, error)
	GetAccount(ctx context.Context, id string) (Account, error)
}
