package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/mail"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/distro/internal/platform/api"
	"github.com/example/distro/services/commerce/internal/fees"
	"github.com/example/distro/services/commerce/internal/fulfillment"
	"github.com/example/distro/services/commerce/internal/payments"
	"github.com/example/distro/services/commerce/internal/store"
)

// minDonationMinor rejects donations too small to survive the fee floor.
const minDonationMinor = 500

// CheckoutHandler creates hosted checkout sessions and drives the two
// buyer-facing fulfillment triggers (success-page fallback and resend).
type CheckoutHandler struct {
	log      *zap.Logger
	store    store.CommerceStore
	payments payments.Client
	engine   *fulfillment.Engine
	schedule fees.Schedule
	baseURL  string
}

func NewCheckoutHandler(log *zap.Logger, st store.CommerceStore, pc payments.Client, engine *fulfillment.Engine, schedule fees.Schedule, baseURL string) *CheckoutHandler {
	return &CheckoutHandler{
		log:      log,
		store:    st,
		payments: pc,
		engine:   engine,
		schedule: schedule,
		baseURL:  strings.TrimRight(baseURL, "/"),
	}
}

type checkoutRequest struct {
	Email string `json:"email"`
}

type donationRequest struct {
	Email       string `json:"email"`
	AmountMinor int64  `json:"amount_minor"`
	Currency    string `json:"currency"`
}

type checkoutResponse struct {
	CheckoutURL string `json:"checkout_url"`
	PurchaseID  string `json:"purchase_id,omitempty"`
	DonationID  string `json:"donation_id,omitempty"`
}

type sessionRequest struct {
	SessionID string `json:"session_id"`
	Email     string `json:"email"`
}

func decodeBody(r *http.Request, dst any) error {
	defer r.Body.Close()
	return json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes)).Decode(dst)
}

func validEmail(s string) bool {
	_, err := mail.ParseAddress(s)
	return err == nil
}

// CreateAlbumCheckout handles POST /v1/checkout/albums/{album_id}.
func (h *CheckoutHandler) CreateAlbumCheckout(w http.ResponseWriter, r *http.Request) {
	albumID := chi.URLParam(r, "album_id")

	// The body is optional; an absent email is captured by the provider.
	var req checkoutRequest
	if err := decodeBody(r, &req); err != nil && !errors.Is(err, io.EOF) {
		api.BadRequest(w, "INVALID_JSON", "cannot parse request body", "", nil)
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email != "" && !validEmail(req.Email) {
		api.BadRequest(w, "INVALID_EMAIL", "email is not valid", "", nil)
		return
	}

	offer, err := h.store.AlbumForCheckout(r.Context(), albumID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			api.NotFound(w, "ALBUM_NOT_FOUND", "album not found", "")
			return
		}
		h.log.Error("album lookup failed", zap.String("album_id", albumID), zap.Error(err))
		api.Internal(w, "")
		return
	}
	if !offer.Published {
		api.NotFound(w, "ALBUM_NOT_FOUND", "album not found", "")
		return
	}
	if offer.ProviderAccountID == "" || !offer.ChargesEnabled {
		api.Conflict(w, "SELLER_NOT_READY", "this seller cannot accept payments yet", "", nil)
		return
	}

	fee := h.schedule.ApplicationFee(offer.PriceMinor)
	if fee >= offer.PriceMinor {
		api.UnprocessableEntity(w, "PRICE_TOO_LOW", "album price does not cover the platform fee", "",
			map[string]any{"price_minor": offer.PriceMinor, "fee_minor": fee})
		return
	}

	purchaseID := uuid.NewString()
	sess, err := h.payments.CreateCheckoutSession(r.Context(), payments.CreateSessionParams{
		AmountMinor:          offer.PriceMinor,
		Currency:             offer.Currency,
		ProductName:          offer.Title,
		DestinationAccountID: offer.ProviderAccountID,
		ApplicationFeeMinor:  fee,
		CustomerEmail:        req.Email,
		SuccessURL:           h.baseURL + "/purchase/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:            h.baseURL + "/albums/" + offer.ID,
		Reference:            purchaseID,
		ReferenceKind:        "purchase",
	})
	if err != nil {
		h.log.Error("checkout session create failed", zap.String("album_id", albumID), zap.Error(err))
		api.Internal(w, "")
		return
	}

	p, err := h.store.CreatePurchase(r.Context(), store.Purchase{
		ID:                purchaseID,
		AlbumID:           offer.ID,
		BandID:            offer.BandID,
		BuyerEmail:        req.Email,
		AmountMinor:       offer.PriceMinor,
		Currency:          offer.Currency,
		CheckoutSessionID: sess.ID,
	})
	if err != nil {
		h.log.Error("purchase create failed", zap.String("album_id", albumID), zap.Error(err))
		api.Internal(w, "")
		return
	}

	api.WriteJSON(w, http.StatusCreated, checkoutResponse{CheckoutURL: sess.URL, PurchaseID: p.ID})
}

// CreateDonationCheckout handles POST /v1/checkout/donations/{band_id}.
func (h *CheckoutHandler) CreateDonationCheckout(w http.ResponseWriter, r *http.Request) {
	bandID := chi.URLParam(r, "band_id")

	var req donationRequest
	if err := decodeBody(r, &req); err != nil {
		api.BadRequest(w, "INVALID_JSON", "cannot parse request body", "", nil)
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email != "" && !validEmail(req.Email) {
		api.BadRequest(w, "INVALID_EMAIL", "email is not valid", "", nil)
		return
	}
	if req.AmountMinor < minDonationMinor {
		api.UnprocessableEntity(w, "AMOUNT_TOO_LOW", "donation amount is below the minimum", "",
			map[string]any{"min_minor": minDonationMinor})
		return
	}
	currency := strings.ToLower(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = "sek"
	}

	band, err := h.store.BandForDonation(r.Context(), bandID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			api.NotFound(w, "BAND_NOT_FOUND", "band not found", "")
			return
		}
		h.log.Error("band lookup failed", zap.String("band_id", bandID), zap.Error(err))
		api.Internal(w, "")
		return
	}
	if band.ProviderAccountID == "" || !band.ChargesEnabled {
		api.Conflict(w, "SELLER_NOT_READY", "this band cannot accept payments yet", "", nil)
		return
	}

	donationID := uuid.NewString()
	sess, err := h.payments.CreateCheckoutSession(r.Context(), payments.CreateSessionParams{
		AmountMinor:          req.AmountMinor,
		Currency:             currency,
		ProductName:          "Donation to " + band.Name,
		DestinationAccountID: band.ProviderAccountID,
		ApplicationFeeMinor:  h.schedule.ApplicationFee(req.AmountMinor),
		CustomerEmail:        req.Email,
		SuccessURL:           h.baseURL + "/donation/thanks?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:            h.baseURL + "/bands/" + band.ID,
		Reference:            donationID,
		ReferenceKind:        "donation",
	})
	if err != nil {
		h.log.Error("donation session create failed", zap.String("band_id", bandID), zap.Error(err))
		api.Internal(w, "")
		return
	}

	d, err := h.store.CreateDonation(r.Context(), store.Donation{
		ID:                donationID,
		BandID:            band.ID,
		DonorEmail:        req.Email,
		AmountMinor:       req.AmountMinor,
		Currency:          currency,
		CheckoutSessionID: sess.ID,
	})
	if err != nil {
		h.log.Error("donation create failed", zap.String("band_id", bandID), zap.Error(err))
		api.Internal(w, "")
		return
	}

	api.WriteJSON(w, http.StatusCreated, checkoutResponse{CheckoutURL: sess.URL, DonationID: d.ID})
}

// Success handles POST /v1/purchases/success: the success-page fallback
// trigger. It runs the same fulfillment path as the webhook, so whichever
// arrives first wins and the other becomes a no-op.
func (h *CheckoutHandler) Success(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := decodeBody(r, &req); err != nil || strings.TrimSpace(req.SessionID) == "" {
		api.BadRequest(w, "MISSING_SESSION_ID", "session_id is required", "", nil)
		return
	}

	err := h.engine.Fulfill(r.Context(), strings.TrimSpace(req.SessionID), "")
	if err == nil {
		api.WriteJSON(w, http.StatusOK, map[string]string{"status": "fulfilled"})
		return
	}
	h.writeFulfillError(w, err)
}

// Resend handles POST /v1/purchases/resend: mints a fresh token for a paid
// purchase and re-sends the delivery email.
func (h *CheckoutHandler) Resend(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := decodeBody(r, &req); err != nil || strings.TrimSpace(req.SessionID) == "" {
		api.BadRequest(w, "MISSING_SESSION_ID", "session_id is required", "", nil)
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email != "" && !validEmail(req.Email) {
		api.BadRequest(w, "INVALID_EMAIL", "email is not valid", "", nil)
		return
	}

	err := h.engine.Resend(r.Context(), strings.TrimSpace(req.SessionID), req.Email)
	if err == nil {
		api.WriteJSON(w, http.StatusOK, map[string]string{"status": "sent"})
		return
	}
	h.writeFulfillError(w, err)
}

func (h *CheckoutHandler) writeFulfillError(w http.ResponseWriter, err error) {
	var nc *fulfillment.NotCompleteError
	switch {
	case errors.Is(err, fulfillment.ErrPurchaseNotFound):
		api.NotFound(w, "PURCHASE_NOT_FOUND", "no purchase matches this session", "")
	case errors.As(err, &nc):
		api.Conflict(w, "PAYMENT_PENDING", "payment has not completed yet", "",
			map[string]any{"payment_status": nc.Status})
	case errors.Is(err, fulfillment.ErrPurchaseNotPaid):
		api.Conflict(w, "PURCHASE_NOT_PAID", "purchase has not been paid", "", nil)
	case errors.Is(err, fulfillment.ErrArchiveNotReady):
		api.Conflict(w, "ARCHIVE_NOT_READY", "the album archive is still being prepared", "", nil)
	case errors.Is(err, fulfillment.ErrMissingEmail):
		api.UnprocessableEntity(w, "MISSING_EMAIL", "no delivery email available; provide one", "", nil)
	case errors.Is(err, fulfillment.ErrEmailDelivery):
		api.WriteError(w, http.StatusBadGateway, "EMAIL_DELIVERY_FAILED",
			"your purchase is complete but the email failed; use resend", "", nil)
	default:
		h.log.Error("fulfillment failed", zap.Error(err))
		api.Internal(w, "")
	}
}
