package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/example/distro/internal/platform/api"
	"github.com/example/distro/internal/platform/signing"
	"github.com/example/distro/services/commerce/internal/store"
	"github.com/example/distro/services/commerce/internal/tokens"
)

// signedURLTTL bounds how long a redeemed download link stays fetchable.
const signedURLTTL = 10 * time.Minute

// DownloadHandler redeems single-use download tokens. Responses are
// information-minimal: anything that is not a redeemable token is a plain
// 404, so the endpoint cannot be used to probe which tokens exist.
type DownloadHandler struct {
	log            *zap.Logger
	store          store.CommerceStore
	signer         *signing.Signer
	storageBaseURL string
}

func NewDownloadHandler(log *zap.Logger, st store.CommerceStore, signer *signing.Signer, storageBaseURL string) *DownloadHandler {
	return &DownloadHandler{log: log, store: st, signer: signer, storageBaseURL: storageBaseURL}
}

// Redeem handles GET /download/{token}.
func (h *DownloadHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "token")
	if raw == "" {
		api.NotFound(w, "NOT_FOUND", "not found", "")
		return
	}

	tok, err := h.store.TokenByHash(r.Context(), tokens.Hash(raw))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			api.NotFound(w, "NOT_FOUND", "not found", "")
			return
		}
		h.log.Error("token lookup failed", zap.Error(err))
		api.Internal(w, "")
		return
	}

	p, err := h.store.PurchaseByID(r.Context(), tok.PurchaseID)
	if err != nil {
		h.log.Error("purchase lookup failed", zap.String("token_id", tok.ID), zap.Error(err))
		api.Internal(w, "")
		return
	}
	if p.Status != store.StatusPaid {
		// Refunded or otherwise no longer deliverable; indistinguishable
		// from an unknown token on purpose.
		api.NotFound(w, "NOT_FOUND", "not found", "")
		return
	}

	addr, err := h.store.ArchiveForPurchase(r.Context(), p.ID)
	if err != nil {
		h.log.Error("archive lookup failed", zap.String("purchase_id", p.ID), zap.Error(err))
		api.Internal(w, "")
		return
	}
	if addr.Empty() {
		api.NotFound(w, "NOT_FOUND", "not found", "")
		return
	}

	// Consumed is reported before expired so a used link keeps saying
	// "used" after it also expires.
	if tok.ConsumedAt != nil {
		api.Gone(w, "LINK_USED", "this download link has already been used", "")
		return
	}
	if time.Now().After(tok.ExpiresAt) {
		api.Gone(w, "LINK_EXPIRED", "this download link has expired", "")
		return
	}

	consumed, err := h.store.ConsumeToken(r.Context(), tok.ID)
	if err != nil {
		h.log.Error("token consume failed", zap.String("token_id", tok.ID), zap.Error(err))
		api.Internal(w, "")
		return
	}
	if !consumed {
		// Lost the consume race to a concurrent request.
		api.Gone(w, "LINK_USED", "this download link has already been used", "")
		return
	}

	signed := h.signer.Sign(addr.Bucket, addr.Path, time.Now().Add(signedURLTTL))
	dst, err := signing.BuildSignedURL(h.storageBaseURL, signed)
	if err != nil {
		h.log.Error("signed url build failed", zap.String("token_id", tok.ID), zap.Error(err))
		api.Internal(w, "")
		return
	}

	h.log.Info("download token redeemed",
		zap.String("token_id", tok.ID),
		zap.String("purchase_id", p.ID),
	)
	http.Redirect(w, r, dst, http.StatusFound)
}
