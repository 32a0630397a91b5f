// Package fulfillment converts a "payment likely completed" signal into a
// paid purchase, exactly one download token and exactly one delivery email.
// It is invoked from two independent call sites (the webhook gate and the
// success-page fallback) and must tolerate concurrent duplicate invocation.
package fulfillment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/example/distro/services/commerce/internal/email"
	"github.com/example/distro/services/commerce/internal/payments"
	"github.com/example/distro/services/commerce/internal/publisher"
	"github.com/example/distro/services/commerce/internal/store"
	"github.com/example/distro/services/commerce/internal/tokens"
)

// TokenTTL is fixed at mint time and enforced strictly at redemption.
const TokenTTL = 7 * 24 * time.Hour

var (
	// ErrPurchaseNotFound: no purchase row matches the checkout session.
	ErrPurchaseNotFound = errors.New("fulfillment: purchase not found")
	// ErrMissingEmail: no override and the provider captured no customer email.
	ErrMissingEmail = errors.New("fulfillment: no delivery email available")
	// ErrArchiveNotReady: the seller has not produced the deliverable yet.
	// Retryable, not a bug.
	ErrArchiveNotReady = errors.New("fulfillment: album archive not ready")
	// ErrEmailDelivery: token minted and purchase paid, but the email failed.
	// The resend flow is the retry path.
	ErrEmailDelivery = errors.New("fulfillment: delivery email failed")
	// ErrPurchaseNotPaid: resend requested for a purchase that never reached paid.
	ErrPurchaseNotPaid = errors.New("fulfillment: purchase is not paid")
)

// NotCompleteError reports the provider's current payment status for a
// session that has not reached a paid state. A normal, retryable outcome.
type NotCompleteError struct {
	Status string
}

func (e *NotCompleteError) Error() string {
	return fmt.Sprintf("fulfillment: payment not complete (status %q)", e.Status)
}

type Engine struct {
	store    store.CommerceStore
	payments payments.Client
	mail     email.Sender
	pub      *publisher.Publisher
	baseURL  string
	log      *zap.Logger
}

func NewEngine(st store.CommerceStore, pc payments.Client, mail email.Sender, pub *publisher.Publisher, baseURL string, log *zap.Logger) *Engine {
	return &Engine{
		store:    st,
		payments: pc,
		mail:     mail,
		pub:      pub,
		baseURL:  strings.TrimRight(baseURL, "/"),
		log:      log,
	}
}

// Fulfill idempotently completes the purchase behind sessionID. Exactly one
// concurrent caller wins the paid claim and mints the token; the rest return
// nil without side effects.
func (e *Engine) Fulfill(ctx context.Context, sessionID, overrideEmail string) error {
	p, err := e.store.PurchaseBySession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrPurchaseNotFound
		}
		return fmt.Errorf("fulfillment: purchase lookup: %w", err)
	}

	// Never trust caller-supplied status; ask the provider.
	sess, err := e.payments.GetCheckoutSession(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("fulfillment: session retrieve: %w", err)
	}
	if !sess.Paid() {
		return &NotCompleteError{Status: sess.PaymentStatus}
	}

	to := strings.TrimSpace(overrideEmail)
	if to == "" {
		to = strings.TrimSpace(sess.CustomerEmail)
	}
	if to == "" {
		return ErrMissingEmail
	}

	addr, err := e.store.ArchiveForPurchase(ctx, p.ID)
	if err != nil {
		return fmt.Errorf("fulfillment: archive lookup: %w", err)
	}
	if addr.Empty() {
		return ErrArchiveNotReady
	}

	claimed, err := e.store.ClaimPurchasePaid(ctx, p.ID, to, sess.PaymentIntentID)
	if err != nil {
		return fmt.Errorf("fulfillment: paid claim: %w", err)
	}
	if !claimed {
		current, err := e.store.PurchaseByID(ctx, p.ID)
		if err != nil {
			return fmt.Errorf("fulfillment: purchase re-read: %w", err)
		}
		if current.Status == store.StatusPaid {
			// Lost the claim to the other trigger path; already fulfilled.
			e.log.Debug("purchase already fulfilled", zap.String("purchase_id", p.ID))
			return nil
		}
		return fmt.Errorf("fulfillment: purchase %s in terminal status %s", p.ID, current.Status)
	}

	e.publishCompleted(ctx, p)

	return e.mintAndSend(ctx, p.ID, to)
}

// Resend mints a fresh token for an already-paid purchase and re-sends the
// delivery email. This is the product's "resend download link" action and
// the retry path for ErrEmailDelivery.
func (e *Engine) Resend(ctx context.Context, sessionID, overrideEmail string) error {
	p, err := e.store.PurchaseBySession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrPurchaseNotFound
		}
		return fmt.Errorf("fulfillment: purchase lookup: %w", err)
	}
	if p.Status != store.StatusPaid {
		return ErrPurchaseNotPaid
	}

	to := strings.TrimSpace(overrideEmail)
	if to == "" {
		to = strings.TrimSpace(p.BuyerEmail)
	}
	if to == "" {
		return ErrMissingEmail
	}

	return e.mintAndSend(ctx, p.ID, to)
}

func (e *Engine) mintAndSend(ctx context.Context, purchaseID, to string) error {
	raw, hash, err := tokens.NewDownloadToken()
	if err != nil {
		return fmt.Errorf("fulfillment: token generate: %w", err)
	}

	tok, err := e.store.InsertDownloadToken(ctx, store.DownloadToken{
		PurchaseID: purchaseID,
		TokenHash:  hash,
		ExpiresAt:  time.Now().UTC().Add(TokenTTL),
	})
	if err != nil {
		return fmt.Errorf("fulfillment: token insert: %w", err)
	}

	downloadURL := e.baseURL + "/download/" + raw
	html := fmt.Sprintf(
		`<p>Thanks for your purchase!</p><p><a href="%s">Download your album</a></p><p>The link works once and expires in 7 days.</p>`,
		downloadURL)

	if err := e.mail.Send(to, "Your download is ready", html); err != nil {
		// Token and paid status are retained; the resend flow retries.
		e.log.Error("delivery email failed",
			zap.String("purchase_id", purchaseID),
			zap.String("token_id", tok.ID),
			zap.Error(err),
		)
		return fmt.Errorf("%w: %v", ErrEmailDelivery, err)
	}
	return nil
}

func (e *Engine) publishCompleted(ctx context.Context, p store.Purchase) {
	err := e.pub.Publish(ctx, publisher.SubjectPurchaseCompleted, publisher.CommerceEvent{
		EventID:     p.ID,
		AlbumID:     p.AlbumID,
		BandID:      p.BandID,
		AmountMinor: p.AmountMinor,
		Currency:    p.Currency,
		OccurredAt:  time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		e.log.Warn("purchase completed event publish failed", zap.String("purchase_id", p.ID), zap.Error(err))
	}
}
