package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/example/distro/internal/platform/signing"
	"github.com/example/distro/services/commerce/internal/store"
	"github.com/example/distro/services/commerce/internal/tokens"
)

func downloadRouter(h *DownloadHandler) http.Handler {
	r := chi.NewRouter()
	r.Get("/download/{token}", h.Redeem)
	return r
}

// mintToken inserts a token for the purchase and returns its raw secret.
func mintToken(t *testing.T, e *env, purchaseID string, expiresAt time.Time) string {
	t.Helper()
	raw, hash, err := tokens.NewDownloadToken()
	if err != nil {
		t.Fatalf("token generate: %v", err)
	}
	_, err = e.store.InsertDownloadToken(context.Background(), store.DownloadToken{
		PurchaseID: purchaseID,
		TokenHash:  hash,
		ExpiresAt:  expiresAt,
	})
	if err != nil {
		t.Fatalf("token insert: %v", err)
	}
	return raw
}

// seedPaidPurchase creates a purchase already claimed paid with an archive.
func seedPaidPurchase(t *testing.T, e *env, sessionID string) store.Purchase {
	t.Helper()
	p := seedPurchase(t, e, sessionID)
	claimed, err := e.store.ClaimPurchasePaid(context.Background(), p.ID, "buyer@example.com", "pi_1")
	if err != nil || !claimed {
		t.Fatalf("claim paid: claimed=%v err=%v", claimed, err)
	}
	return p
}

func getDownload(h http.Handler, raw string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/download/"+raw, nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestRedeem_HappyPathRedirectsToSignedURL(t *testing.T) {
	e := newEnv(t)
	h := downloadRouter(e.downloadHandler())
	p := seedPaidPurchase(t, e, "cs_dl_1")
	raw := mintToken(t, e, p.ID, time.Now().Add(time.Hour))

	w := getDownload(h, raw)
	if w.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d: %s", w.Code, w.Body.String())
	}

	loc := w.Header().Get("Location")
	if !strings.Contains(loc, "/storage/v1/object/albums/band-1/album-1.zip") {
		t.Fatalf("unexpected redirect target %q", loc)
	}

	u, err := url.Parse(loc)
	if err != nil {
		t.Fatalf("parse location: %v", err)
	}
	exp, sig, err := signing.ExtractSigned(u.Query())
	if err != nil {
		t.Fatalf("extract signed params: %v", err)
	}
	if !signing.New("storage-secret").Verify("albums", "band-1/album-1.zip", exp, sig) {
		t.Fatal("redirect signature does not verify")
	}

	toks := e.store.TokensForPurchase(p.ID)
	if len(toks) != 1 || toks[0].ConsumedAt == nil {
		t.Fatal("token must be consumed after redemption")
	}
}

func TestRedeem_UnknownTokenIs404(t *testing.T) {
	e := newEnv(t)
	h := downloadRouter(e.downloadHandler())

	w := getDownload(h, "not-a-real-token")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestRedeem_SecondUseIs410(t *testing.T) {
	e := newEnv(t)
	h := downloadRouter(e.downloadHandler())
	p := seedPaidPurchase(t, e, "cs_dl_1")
	raw := mintToken(t, e, p.ID, time.Now().Add(time.Hour))

	if w := getDownload(h, raw); w.Code != http.StatusFound {
		t.Fatalf("first use: expected 302, got %d", w.Code)
	}
	w := getDownload(h, raw)
	if w.Code != http.StatusGone {
		t.Fatalf("second use: expected 410, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "LINK_USED") {
		t.Fatalf("expected LINK_USED, got %s", w.Body.String())
	}
}

func TestRedeem_ExpiredTokenIs410(t *testing.T) {
	e := newEnv(t)
	h := downloadRouter(e.downloadHandler())
	p := seedPaidPurchase(t, e, "cs_dl_1")
	raw := mintToken(t, e, p.ID, time.Now().Add(-time.Minute))

	w := getDownload(h, raw)
	if w.Code != http.StatusGone {
		t.Fatalf("expected 410, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "LINK_EXPIRED") {
		t.Fatalf("expected LINK_EXPIRED, got %s", w.Body.String())
	}

	toks := e.store.TokensForPurchase(p.ID)
	if len(toks) != 1 || toks[0].ConsumedAt != nil {
		t.Fatal("expired token must not be consumed")
	}
}

func TestRedeem_UsedThenExpiredStillSaysUsed(t *testing.T) {
	e := newEnv(t)
	h := downloadRouter(e.downloadHandler())
	p := seedPaidPurchase(t, e, "cs_dl_1")
	raw := mintToken(t, e, p.ID, time.Now().Add(50*time.Millisecond))

	if w := getDownload(h, raw); w.Code != http.StatusFound {
		t.Fatalf("first use: expected 302, got %d", w.Code)
	}
	time.Sleep(80 * time.Millisecond)

	w := getDownload(h, raw)
	if w.Code != http.StatusGone {
		t.Fatalf("expected 410, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "LINK_USED") {
		t.Fatalf("used wins over expired, got %s", w.Body.String())
	}
}

func TestRedeem_UnpaidPurchaseIs404(t *testing.T) {
	e := newEnv(t)
	h := downloadRouter(e.downloadHandler())
	p := seedPurchase(t, e, "cs_dl_1")
	raw := mintToken(t, e, p.ID, time.Now().Add(time.Hour))

	if w := getDownload(h, raw); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestRedeem_RefundedPurchaseIs404(t *testing.T) {
	e := newEnv(t)
	h := downloadRouter(e.downloadHandler())
	p := seedPaidPurchase(t, e, "cs_dl_1")
	raw := mintToken(t, e, p.ID, time.Now().Add(time.Hour))
	if _, err := e.store.MarkPurchaseRefundedByIntent(context.Background(), "pi_1"); err != nil {
		t.Fatalf("refund: %v", err)
	}

	w := getDownload(h, raw)
	if w.Code != http.StatusNotFound {
		t.Fatalf("refunded purchase must 404, got %d", w.Code)
	}
}

func TestRedeem_ConcurrentUseRedeemsOnce(t *testing.T) {
	e := newEnv(t)
	h := downloadRouter(e.downloadHandler())
	p := seedPaidPurchase(t, e, "cs_dl_1")
	raw := mintToken(t, e, p.ID, time.Now().Add(time.Hour))

	const n = 8
	codes := make([]int, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			codes[i] = getDownload(h, raw).Code
		}(i)
	}
	wg.Wait()

	var found, gone int
	for _, c := range codes {
		switch c {
		case http.StatusFound:
			found++
		case http.StatusGone:
			gone++
		default:
			t.Fatalf("unexpected status %d", c)
		}
	}
	if found != 1 {
		t.Fatalf("expected exactly one redirect, got %d", found)
	}
	if gone != n-1 {
		t.Fatalf("expected %d gone responses, got %d", n-1, gone)
	}
}
