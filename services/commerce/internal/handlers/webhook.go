// Package handlers contains the HTTP surface of the commerce service:
// checkout creation, the payment-provider webhook gate and download
// redemption.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/stripe/stripe-go/v82/webhook"
	"go.uber.org/zap"

	"github.com/example/distro/internal/platform/api"
	"github.com/example/distro/services/commerce/internal/fulfillment"
	"github.com/example/distro/services/commerce/internal/payments"
	"github.com/example/distro/services/commerce/internal/publisher"
	"github.com/example/distro/services/commerce/internal/receipts"
	"github.com/example/distro/services/commerce/internal/store"
)

const maxBodyBytes = 65536

func nowRFC3339() string { return time.Now().UTC().Format(time.RFC3339) }

// sessionObject is the slice of a checkout-session payload the gate needs.
type sessionObject struct {
	ID              string          `json:"id"`
	PaymentIntent   json.RawMessage `json:"payment_intent"`
	CustomerDetails struct {
		Email string `json:"email"`
	} `json:"customer_details"`
	Metadata map[string]string `json:"metadata"`
}

type intentObject struct {
	ID string `json:"id"`
}

type chargeObject struct {
	ID            string          `json:"id"`
	PaymentIntent json.RawMessage `json:"payment_intent"`
}

type accountObject struct {
	ID string `json:"id"`
}

// objectID reads an id from a field the provider sends either as a bare
// string or as an expanded object.
func objectID(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return obj.ID
	}
	return ""
}

// WebhookHandler is the single entry point for payment-provider events.
// Signature verification, then event-id dedup, then dispatch. Completed
// purchase sessions delegate to the fulfillment engine so the webhook and
// the success-page fallback run the exact same code.
type WebhookHandler struct {
	secret   string
	log      *zap.Logger
	receipts receipts.Store
	store    store.CommerceStore
	engine   *fulfillment.Engine
	payments payments.Client
	pub      *publisher.Publisher
}

func NewWebhookHandler(
	secret string,
	log *zap.Logger,
	rec receipts.Store,
	st store.CommerceStore,
	engine *fulfillment.Engine,
	pc payments.Client,
	pub *publisher.Publisher,
) *WebhookHandler {
	return &WebhookHandler{
		secret:   secret,
		log:      log,
		receipts: rec,
		store:    st,
		engine:   engine,
		payments: pc,
		pub:      pub,
	}
}

func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		api.BadRequest(w, "READ_ERROR", "cannot read body", "", nil)
		return
	}

	// Signature is always verified; STRIPE_WEBHOOK_SECRET is required at startup.
	event, err := webhook.ConstructEventWithOptions(body, r.Header.Get("Stripe-Signature"), h.secret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		h.log.Warn("webhook signature verification failed", zap.Error(err))
		api.BadRequest(w, "INVALID_SIGNATURE", "webhook signature verification failed", "", nil)
		return
	}
	if event.ID == "" {
		api.BadRequest(w, "MISSING_EVENT_ID", "event id is required", "", nil)
		return
	}

	// First receipt wins; a rejected insert means already handled.
	dup, err := h.receipts.Check(r.Context(), event.ID, string(event.Type))
	if err != nil {
		h.log.Error("receipt check failed", zap.Error(err))
		api.Internal(w, "")
		return
	}
	if dup {
		h.log.Debug("duplicate event, acking", zap.String("event_id", event.ID))
		api.WriteJSON(w, http.StatusOK, map[string]bool{"received": true})
		return
	}

	if err := h.dispatch(r.Context(), event.ID, string(event.Type), event.Data.Raw); err != nil {
		h.log.Error("event dispatch failed",
			zap.String("event_id", event.ID),
			zap.String("type", string(event.Type)),
			zap.Error(err),
		)
		api.Internal(w, "")
		return
	}

	if err := h.receipts.MarkProcessed(r.Context(), event.ID); err != nil {
		h.log.Warn("receipt stamp failed", zap.String("event_id", event.ID), zap.Error(err))
	}

	api.WriteJSON(w, http.StatusOK, map[string]bool{"received": true})
}

func (h *WebhookHandler) dispatch(ctx context.Context, eventID, eventType string, raw json.RawMessage) error {
	switch eventType {
	case "checkout.session.completed", "checkout.session.async_payment_succeeded":
		return h.handleSessionCompleted(ctx, raw)
	case "checkout.session.expired":
		return h.handleSessionExpired(ctx, raw)
	case "payment_intent.payment_failed":
		return h.handlePaymentFailed(ctx, raw)
	case "charge.refunded":
		return h.handleChargeRefunded(ctx, raw)
	case "account.updated":
		return h.handleAccountUpdated(ctx, raw)
	default:
		h.log.Debug("unhandled event type", zap.String("type", eventType), zap.String("event_id", eventID))
		return nil
	}
}

func (h *WebhookHandler) handleSessionCompleted(ctx context.Context, raw json.RawMessage) error {
	var sess sessionObject
	if err := json.Unmarshal(raw, &sess); err != nil {
		return err
	}

	switch sess.Metadata["reference_kind"] {
	case "donation":
		return h.completeDonation(ctx, sess)
	case "purchase":
		return h.completePurchase(ctx, sess)
	default:
		// Sessions created before metadata tagging; resolve by lookup.
		if err := h.completePurchase(ctx, sess); !errors.Is(err, fulfillment.ErrPurchaseNotFound) {
			return err
		}
		return h.completeDonation(ctx, sess)
	}
}

func (h *WebhookHandler) completePurchase(ctx context.Context, sess sessionObject) error {
	err := h.engine.Fulfill(ctx, sess.ID, "")

	var nc *fulfillment.NotCompleteError
	if errors.As(err, &nc) {
		// Completed session with a delayed payment method; the
		// async_payment_succeeded event fulfills later.
		h.log.Info("session completed but payment still pending",
			zap.String("session_id", sess.ID),
			zap.String("payment_status", nc.Status),
		)
		return nil
	}
	return err
}

func (h *WebhookHandler) completeDonation(ctx context.Context, sess sessionObject) error {
	d, err := h.store.DonationBySession(ctx, sess.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			h.log.Warn("no record matches completed session", zap.String("session_id", sess.ID))
			return nil
		}
		return err
	}

	if err := h.store.MarkDonationSucceeded(ctx, d.ID, objectID(sess.PaymentIntent)); err != nil {
		return err
	}

	if err := h.pub.Publish(ctx, publisher.SubjectDonationCompleted, publisher.CommerceEvent{
		EventID:     d.ID,
		BandID:      d.BandID,
		AmountMinor: d.AmountMinor,
		Currency:    d.Currency,
		OccurredAt:  nowRFC3339(),
	}); err != nil {
		h.log.Warn("donation completed event publish failed", zap.String("donation_id", d.ID), zap.Error(err))
	}
	return nil
}

func (h *WebhookHandler) handleSessionExpired(ctx context.Context, raw json.RawMessage) error {
	var sess sessionObject
	if err := json.Unmarshal(raw, &sess); err != nil {
		return err
	}
	if err := h.store.MarkPurchaseFailedBySession(ctx, sess.ID); err != nil {
		return err
	}
	return h.store.MarkDonationFailedBySession(ctx, sess.ID)
}

func (h *WebhookHandler) handlePaymentFailed(ctx context.Context, raw json.RawMessage) error {
	var pi intentObject
	if err := json.Unmarshal(raw, &pi); err != nil {
		return err
	}
	if pi.ID == "" {
		return nil
	}
	if err := h.store.MarkPurchaseFailedByIntent(ctx, pi.ID); err != nil {
		return err
	}
	return h.store.MarkDonationFailedByIntent(ctx, pi.ID)
}

func (h *WebhookHandler) handleChargeRefunded(ctx context.Context, raw json.RawMessage) error {
	var ch chargeObject
	if err := json.Unmarshal(raw, &ch); err != nil {
		return err
	}
	pi := objectID(ch.PaymentIntent)
	if pi == "" {
		h.log.Warn("refunded charge carries no payment intent", zap.String("charge_id", ch.ID))
		return nil
	}

	ok, err := h.store.MarkPurchaseRefundedByIntent(ctx, pi)
	if err != nil {
		return err
	}
	if ok {
		if p, err := h.store.PurchaseByIntent(ctx, pi); err == nil {
			if err := h.pub.Publish(ctx, publisher.SubjectPurchaseRefunded, publisher.CommerceEvent{
				EventID:     p.ID,
				AlbumID:     p.AlbumID,
				BandID:      p.BandID,
				AmountMinor: p.AmountMinor,
				Currency:    p.Currency,
				OccurredAt:  nowRFC3339(),
			}); err != nil {
				h.log.Warn("purchase refunded event publish failed", zap.String("purchase_id", p.ID), zap.Error(err))
			}
		}
		return nil
	}

	_, err = h.store.MarkDonationRefundedByIntent(ctx, pi)
	return err
}

func (h *WebhookHandler) handleAccountUpdated(ctx context.Context, raw json.RawMessage) error {
	var obj accountObject
	if err := json.Unmarshal(raw, &obj); err != nil {
		return err
	}
	if obj.ID == "" {
		return nil
	}

	// The payload carries capability flags, but events can arrive out of
	// order; re-fetch the authoritative state.
	acct, err := h.payments.GetAccount(ctx, obj.ID)
	if err != nil {
		return err
	}
	return h.store.UpdateAccountStatus(ctx, acct.ID, acct.ChargesEnabled, acct.PayoutsEnabled)
}
