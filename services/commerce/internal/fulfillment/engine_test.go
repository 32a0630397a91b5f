package fulfillment

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/example/distro/services/commerce/internal/payments"
	"github.com/example/distro/services/commerce/internal/publisher"
	"github.com/example/distro/services/commerce/internal/store"
)

// ─── fakes ───────────────────────────────────────────────────────────────────

type fakePayments struct {
	sessions map[string]payments.CheckoutSession
}

func (f *fakePayments) CreateCheckoutSession(_ context.Context, _ payments.CreateSessionParams) (payments.CheckoutSession, error) {
	return payments.CheckoutSession{}, errors.New("not implemented")
}

func (f *fakePayments) GetCheckoutSession(_ context.Context, id string) (payments.CheckoutSession, error) {
	s, ok := f.sessions[id]
	if !ok {
		return payments.CheckoutSession{}, errors.New("no such session")
	}
	return s, nil
}

func (f *fakePayments) GetAccount(_ context.Context, id string) (payments.Account, error) {
	return payments.Account{ID: id}, nil
}

type fakeSender struct {
	mu    sync.Mutex
	fail  bool
	sent  []string // recipient
	htmls []string
}

func (f *fakeSender) Send(to, _ string, html string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("smtp down")
	}
	f.sent = append(f.sent, to)
	f.htmls = append(f.htmls, html)
	return nil
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type engineSetup struct {
	engine   *Engine
	store    *store.MemoryCommerceStore
	sender   *fakeSender
	payments *fakePayments
	purchase store.Purchase
}

func newEngineSetup(t *testing.T) *engineSetup {
	t.Helper()
	st := store.NewMemoryCommerceStore()
	p, err := st.CreatePurchase(context.Background(), store.Purchase{
		AlbumID:           "album-1",
		BandID:            "band-1",
		AmountMinor:       10000,
		Currency:          "sek",
		CheckoutSessionID: "cs_test_1",
	})
	if err != nil {
		t.Fatalf("CreatePurchase: %v", err)
	}
	st.SetArchive("album-1", store.ArchiveAddress{Bucket: "albums", Path: "band-1/album-1.zip"})

	fp := &fakePayments{sessions: map[string]payments.CheckoutSession{
		"cs_test_1": {
			ID:              "cs_test_1",
			PaymentStatus:   payments.PaymentStatusPaid,
			CustomerEmail:   "buyer@example.com",
			PaymentIntentID: "pi_1",
		},
	}}
	fs := &fakeSender{}
	pub, _ := publisher.New("", zap.NewNop())

	return &engineSetup{
		engine:   NewEngine(st, fp, fs, pub, "https://distro.example/", zap.NewNop()),
		store:    st,
		sender:   fs,
		payments: fp,
		purchase: p,
	}
}

// ─── Fulfill tests ───────────────────────────────────────────────────────────

func TestFulfill_HappyPath(t *testing.T) {
	s := newEngineSetup(t)
	before := time.Now().UTC()

	if err := s.engine.Fulfill(context.Background(), "cs_test_1", ""); err != nil {
		t.Fatalf("Fulfill: %v", err)
	}

	got, _ := s.store.PurchaseByID(context.Background(), s.purchase.ID)
	if got.Status != store.StatusPaid {
		t.Fatalf("expected status paid, got %s", got.Status)
	}
	if got.BuyerEmail != "buyer@example.com" {
		t.Fatalf("expected provider email captured, got %q", got.BuyerEmail)
	}
	if got.PaymentIntentID != "pi_1" {
		t.Fatalf("expected payment intent captured, got %q", got.PaymentIntentID)
	}

	toks := s.store.TokensForPurchase(s.purchase.ID)
	if len(toks) != 1 {
		t.Fatalf("expected exactly one token, got %d", len(toks))
	}
	if toks[0].ConsumedAt != nil {
		t.Fatal("fresh token must be unused")
	}
	wantExpiry := toks[0].CreatedAt.Add(TokenTTL)
	if !toks[0].ExpiresAt.Equal(wantExpiry) && toks[0].ExpiresAt.Sub(wantExpiry) > time.Second {
		t.Fatalf("expected expiry createdAt+7d, got %v (created %v)", toks[0].ExpiresAt, toks[0].CreatedAt)
	}
	if toks[0].ExpiresAt.Before(before.Add(TokenTTL - time.Minute)) {
		t.Fatalf("expiry too early: %v", toks[0].ExpiresAt)
	}

	if s.sender.count() != 1 {
		t.Fatalf("expected exactly one email, got %d", s.sender.count())
	}
	if !strings.Contains(s.sender.htmls[0], "https://distro.example/download/") {
		t.Fatalf("email should carry redemption URL, got %q", s.sender.htmls[0])
	}
}

func TestFulfill_SessionWithoutPurchase(t *testing.T) {
	s := newEngineSetup(t)
	err := s.engine.Fulfill(context.Background(), "cs_unknown", "")
	if !errors.Is(err, ErrPurchaseNotFound) {
		t.Fatalf("expected ErrPurchaseNotFound, got %v", err)
	}
}

func TestFulfill_PaymentNotComplete(t *testing.T) {
	s := newEngineSetup(t)
	s.payments.sessions["cs_test_1"] = payments.CheckoutSession{
		ID:            "cs_test_1",
		PaymentStatus: payments.PaymentStatusUnpaid,
		CustomerEmail: "buyer@example.com",
	}

	err := s.engine.Fulfill(context.Background(), "cs_test_1", "")
	var nc *NotCompleteError
	if !errors.As(err, &nc) {
		t.Fatalf("expected NotCompleteError, got %v", err)
	}
	if nc.Status != payments.PaymentStatusUnpaid {
		t.Fatalf("expected status unpaid, got %q", nc.Status)
	}

	got, _ := s.store.PurchaseByID(context.Background(), s.purchase.ID)
	if got.Status != store.StatusRequiresPayment {
		t.Fatalf("incomplete payment must not mutate status, got %s", got.Status)
	}
	if len(s.store.TokensForPurchase(s.purchase.ID)) != 0 {
		t.Fatal("incomplete payment must not mint a token")
	}
	if s.sender.count() != 0 {
		t.Fatal("incomplete payment must not send email")
	}
}

func TestFulfill_MissingEmail(t *testing.T) {
	s := newEngineSetup(t)
	s.payments.sessions["cs_test_1"] = payments.CheckoutSession{
		ID:            "cs_test_1",
		PaymentStatus: payments.PaymentStatusPaid,
	}

	err := s.engine.Fulfill(context.Background(), "cs_test_1", "")
	if !errors.Is(err, ErrMissingEmail) {
		t.Fatalf("expected ErrMissingEmail, got %v", err)
	}
}

func TestFulfill_OverrideEmailWins(t *testing.T) {
	s := newEngineSetup(t)
	if err := s.engine.Fulfill(context.Background(), "cs_test_1", "other@example.com"); err != nil {
		t.Fatalf("Fulfill: %v", err)
	}
	if s.sender.sent[0] != "other@example.com" {
		t.Fatalf("expected override email to win, sent to %q", s.sender.sent[0])
	}
}

func TestFulfill_ArchiveNotReady(t *testing.T) {
	s := newEngineSetup(t)
	// Re-point the purchase at an album whose archive was never produced.
	s.store.SetArchive("album-1", store.ArchiveAddress{})

	err := s.engine.Fulfill(context.Background(), "cs_test_1", "")
	if !errors.Is(err, ErrArchiveNotReady) {
		t.Fatalf("expected ErrArchiveNotReady, got %v", err)
	}
	got, _ := s.store.PurchaseByID(context.Background(), s.purchase.ID)
	if got.Status != store.StatusRequiresPayment {
		t.Fatalf("archive-not-ready must leave status unchanged, got %s", got.Status)
	}
}

func TestFulfill_SecondCallIsNoop(t *testing.T) {
	s := newEngineSetup(t)
	ctx := context.Background()

	if err := s.engine.Fulfill(ctx, "cs_test_1", ""); err != nil {
		t.Fatalf("first Fulfill: %v", err)
	}
	if err := s.engine.Fulfill(ctx, "cs_test_1", ""); err != nil {
		t.Fatalf("second Fulfill should be a safe no-op: %v", err)
	}

	if n := len(s.store.TokensForPurchase(s.purchase.ID)); n != 1 {
		t.Fatalf("expected one token after duplicate fulfill, got %d", n)
	}
	if s.sender.count() != 1 {
		t.Fatalf("expected one email after duplicate fulfill, got %d", s.sender.count())
	}
}

func TestFulfill_ConcurrentTriggersMintOnce(t *testing.T) {
	s := newEngineSetup(t)
	ctx := context.Background()

	// Webhook and success-page fallback race on the same session.
	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- s.engine.Fulfill(ctx, "cs_test_1", "")
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("both triggers must succeed, got %v", err)
		}
	}
	if n := len(s.store.TokensForPurchase(s.purchase.ID)); n != 1 {
		t.Fatalf("expected exactly one token despite race, got %d", n)
	}
	if s.sender.count() != 1 {
		t.Fatalf("expected exactly one email despite race, got %d", s.sender.count())
	}
}

func TestFulfill_EmailFailureRetainsTokenAndPaid(t *testing.T) {
	s := newEngineSetup(t)
	s.sender.fail = true

	err := s.engine.Fulfill(context.Background(), "cs_test_1", "")
	if !errors.Is(err, ErrEmailDelivery) {
		t.Fatalf("expected ErrEmailDelivery, got %v", err)
	}

	got, _ := s.store.PurchaseByID(context.Background(), s.purchase.ID)
	if got.Status != store.StatusPaid {
		t.Fatalf("paid status must survive email failure, got %s", got.Status)
	}
	if n := len(s.store.TokensForPurchase(s.purchase.ID)); n != 1 {
		t.Fatalf("minted token must survive email failure, got %d", n)
	}
}

// ─── Resend tests ────────────────────────────────────────────────────────────

func TestResend_MintsFreshTokenAndSends(t *testing.T) {
	s := newEngineSetup(t)
	ctx := context.Background()

	if err := s.engine.Fulfill(ctx, "cs_test_1", ""); err != nil {
		t.Fatalf("Fulfill: %v", err)
	}
	if err := s.engine.Resend(ctx, "cs_test_1", ""); err != nil {
		t.Fatalf("Resend: %v", err)
	}

	if n := len(s.store.TokensForPurchase(s.purchase.ID)); n != 2 {
		t.Fatalf("resend mints a fresh token, expected 2, got %d", n)
	}
	if s.sender.count() != 2 {
		t.Fatalf("expected 2 emails, got %d", s.sender.count())
	}
	// Resend without override goes to the stored buyer email.
	if s.sender.sent[1] != "buyer@example.com" {
		t.Fatalf("expected stored buyer email, got %q", s.sender.sent[1])
	}
}

func TestResend_NotPaid(t *testing.T) {
	s := newEngineSetup(t)
	err := s.engine.Resend(context.Background(), "cs_test_1", "")
	if !errors.Is(err, ErrPurchaseNotPaid) {
		t.Fatalf("expected ErrPurchaseNotPaid, got %v", err)
	}
}

func TestResend_AfterEmailFailure(t *testing.T) {
	s := newEngineSetup(t)
	ctx := context.Background()

	s.sender.fail = true
	if err := s.engine.Fulfill(ctx, "cs_test_1", ""); !errors.Is(err, ErrEmailDelivery) {
		t.Fatalf("expected ErrEmailDelivery, got %v", err)
	}

	s.sender.fail = false
	if err := s.engine.Resend(ctx, "cs_test_1", "fixed@example.com"); err != nil {
		t.Fatalf("Resend after failure: %v", err)
	}
	if s.sender.count() != 1 {
		t.Fatalf("expected one delivered email, got %d", s.sender.count())
	}
	if s.sender.sent[0] != "fixed@example.com" {
		t.Fatalf("expected override recipient, got %q", s.sender.sent[0])
	}
}
