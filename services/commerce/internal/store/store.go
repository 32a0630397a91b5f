// Package store persists purchases, donations and download tokens.
// Lifecycles are explicit state machines; every status write goes through
// the transition table so a disallowed transition fails loudly instead of
// silently overwriting.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound = errors.New("store: not found")
	// ErrInvalidTransition marks a status change the lifecycle does not allow.
	ErrInvalidTransition = errors.New("store: invalid status transition")
)

// Status values shared by purchases and donations.
type Status string

const (
	StatusRequiresPayment Status = "requires_payment"
	StatusPaid            Status = "paid"      // purchases
	StatusSucceeded       Status = "succeeded" // donations
	StatusFailed          Status = "failed"
	StatusRefunded        Status = "refunded"
)

var purchaseTransitions = map[Status][]Status{
	StatusRequiresPayment: {StatusPaid, StatusFailed},
	StatusPaid:            {StatusRefunded},
}

var donationTransitions = map[Status][]Status{
	StatusRequiresPayment: {StatusSucceeded, StatusFailed},
	StatusSucceeded:       {StatusRefunded},
}

// TransitionPurchase validates a purchase status change against the table.
func TransitionPurchase(from, to Status) error {
	return transition(purchaseTransitions, from, to)
}

// TransitionDonation validates a donation status change against the table.
func TransitionDonation(from, to Status) error {
	return transition(donationTransitions, from, to)
}

func transition(table map[Status][]Status, from, to Status) error {
	for _, allowed := range table[from] {
		if allowed == to {
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}

// Purchase is one buyer's attempt to pay for one album.
type Purchase struct {
	ID                string     `json:"id"`
	AlbumID           string     `json:"album_id"`
	BandID            string     `json:"band_id"`
	BuyerEmail        string     `json:"buyer_email,omitempty"`
	AmountMinor       int64      `json:"amount_minor"`
	Currency          string     `json:"currency"`
	Status            Status     `json:"status"`
	CheckoutSessionID string     `json:"checkout_session_id,omitempty"`
	PaymentIntentID   string     `json:"payment_intent_id,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// Donation is structurally a purchase without an album.
type Donation struct {
	ID                string    `json:"id"`
	BandID            string    `json:"band_id"`
	DonorEmail        string    `json:"donor_email,omitempty"`
	AmountMinor       int64     `json:"amount_minor"`
	Currency          string    `json:"currency"`
	Status            Status    `json:"status"`
	CheckoutSessionID string    `json:"checkout_session_id,omitempty"`
	PaymentIntentID   string    `json:"payment_intent_id,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// DownloadToken grants access to a purchase's deliverable archive exactly once.
// Only the SHA-256 digest of the secret is stored.
type DownloadToken struct {
	ID         string     `json:"id"`
	PurchaseID string     `json:"purchase_id"`
	TokenHash  string     `json:"-"`
	ExpiresAt  time.Time  `json:"expires_at"`
	ConsumedAt *time.Time `json:"consumed_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// ArchiveAddress locates a deliverable archive in the storage gateway.
// The zero value means the archive has not been produced yet.
type ArchiveAddress struct {
	Bucket string
	Path   string
}

func (a ArchiveAddress) Empty() bool { return a.Bucket == "" || a.Path == "" }

// AlbumOffer is what checkout creation needs to know about an album.
type AlbumOffer struct {
	ID                string
	BandID            string
	Title             string
	PriceMinor        int64
	Currency          string
	ProviderAccountID string
	ChargesEnabled    bool
	Published         bool
}

// BandAccount is what donation checkout needs to know about a band.
type BandAccount struct {
	ID                string
	Name              string
	ProviderAccountID string
	ChargesEnabled    bool
}

// CommerceStore is the persistence surface of the commerce service.
type CommerceStore interface {
	AlbumForCheckout(ctx context.Context, albumID string) (AlbumOffer, error)
	BandForDonation(ctx context.Context, bandID string) (BandAccount, error)

	CreatePurchase(ctx context.Context, p Purchase) (Purchase, error)
	CreateDonation(ctx context.Context, d Donation) (Donation, error)

	PurchaseByID(ctx context.Context, id string) (Purchase, error)
	PurchaseBySession(ctx context.Context, sessionID string) (Purchase, error)
	PurchaseByIntent(ctx context.Context, paymentIntentID string) (Purchase, error)
	DonationBySession(ctx context.Context, sessionID string) (Donation, error)

	// ClaimPurchasePaid atomically moves requires_payment -> paid, recording
	// buyer email and payment-intent id. Exactly one concurrent caller wins;
	// the rest observe claimed=false.
	ClaimPurchasePaid(ctx context.Context, purchaseID, buyerEmail, paymentIntentID string) (claimed bool, err error)

	MarkDonationSucceeded(ctx context.Context, donationID, paymentIntentID string) error
	MarkPurchaseFailedBySession(ctx context.Context, sessionID string) error
	MarkDonationFailedBySession(ctx context.Context, sessionID string) error
	MarkPurchaseFailedByIntent(ctx context.Context, paymentIntentID string) error
	MarkDonationFailedByIntent(ctx context.Context, paymentIntentID string) error
	MarkPurchaseRefundedByIntent(ctx context.Context, paymentIntentID string) (bool, error)
	MarkDonationRefundedByIntent(ctx context.Context, paymentIntentID string) (bool, error)

	InsertDownloadToken(ctx context.Context, t DownloadToken) (DownloadToken, error)
	TokenByHash(ctx context.Context, hash string) (DownloadToken, error)
	// ConsumeToken sets consumed_at iff still null (compare-and-set).
	ConsumeToken(ctx context.Context, tokenID string) (consumed bool, err error)

	// ArchiveForPurchase resolves the deliverable address through the
	// purchase's album. A zero address means "not produced yet".
	ArchiveForPurchase(ctx context.Context, purchaseID string) (ArchiveAddress, error)

	// UpdateAccountStatus syncs a band's payout-capability flags from the
	// payment provider's account events.
	UpdateAccountStatus(ctx context.Context, providerAccountID string, chargesEnabled, payoutsEnabled bool) error
}
