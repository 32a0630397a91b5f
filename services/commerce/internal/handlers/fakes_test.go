package handlers

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/example/distro/internal/platform/signing"
	"github.com/example/distro/services/commerce/internal/fees"
	"github.com/example/distro/services/commerce/internal/fulfillment"
	"github.com/example/distro/services/commerce/internal/payments"
	"github.com/example/distro/services/commerce/internal/publisher"
	"github.com/example/distro/services/commerce/internal/receipts"
	"github.com/example/distro/services/commerce/internal/store"
)

// fakePayments is an in-memory payments.Client.
type fakePayments struct {
	mu         sync.Mutex
	sessions   map[string]payments.CheckoutSession
	accounts   map[string]payments.Account
	created    []payments.CreateSessionParams
	failCreate bool
}

func newFakePayments() *fakePayments {
	return &fakePayments{
		sessions: make(map[string]payments.CheckoutSession),
		accounts: make(map[string]payments.Account),
	}
}

func (f *fakePayments) setSession(s payments.CheckoutSession) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[s.ID] = s
}

func (f *fakePayments) CreateCheckoutSession(_ context.Context, p payments.CreateSessionParams) (payments.CheckoutSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCreate {
		return payments.CheckoutSession{}, errors.New("provider unavailable")
	}
	f.created = append(f.created, p)
	id := fmt.Sprintf("cs_test_%d", len(f.created))
	s := payments.CheckoutSession{
		ID:            id,
		URL:           "https://pay.example/c/" + id,
		PaymentStatus: payments.PaymentStatusUnpaid,
		CustomerEmail: p.CustomerEmail,
	}
	f.sessions[id] = s
	return s, nil
}

func (f *fakePayments) GetCheckoutSession(_ context.Context, id string) (payments.CheckoutSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return payments.CheckoutSession{}, errors.New("no such session")
	}
	return s, nil
}

func (f *fakePayments) GetAccount(_ context.Context, id string) (payments.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.accounts[id]
	if !ok {
		return payments.Account{}, errors.New("no such account")
	}
	return a, nil
}

// fakeSender records sent mail.
type fakeSender struct {
	mu   sync.Mutex
	fail bool
	sent []string
}

func (f *fakeSender) Send(to, _, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("smtp refused")
	}
	f.sent = append(f.sent, to)
	return nil
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

// env wires a full in-memory commerce stack for handler tests.
type env struct {
	store  *store.MemoryCommerceStore
	pay    *fakePayments
	mail   *fakeSender
	pub    *publisher.Publisher
	engine *fulfillment.Engine
}

func newEnv(t *testing.T) *env {
	t.Helper()
	st := store.NewMemoryCommerceStore()
	pay := newFakePayments()
	mail := &fakeSender{}
	pub, err := publisher.New("", zap.NewNop())
	if err != nil {
		t.Fatalf("publisher: %v", err)
	}
	eng := fulfillment.NewEngine(st, pay, mail, pub, "https://distro.example", zap.NewNop())
	return &env{store: st, pay: pay, mail: mail, pub: pub, engine: eng}
}

func (e *env) webhookHandler(t *testing.T) *WebhookHandler {
	t.Helper()
	rec, err := receipts.NewStore("", "", 0, false)
	if err != nil {
		t.Fatalf("receipts: %v", err)
	}
	return NewWebhookHandler(testWebhookSecret, zap.NewNop(), rec, e.store, e.engine, e.pay, e.pub)
}

func (e *env) checkoutHandler() *CheckoutHandler {
	return NewCheckoutHandler(zap.NewNop(), e.store, e.pay, e.engine, fees.Default, "https://distro.example")
}

func (e *env) downloadHandler() *DownloadHandler {
	return NewDownloadHandler(zap.NewNop(), e.store, signing.New("storage-secret"), "https://storage.example")
}

// seedPurchase creates a pending purchase with a produced archive.
func seedPurchase(t *testing.T, e *env, sessionID string) store.Purchase {
	t.Helper()
	p, err := e.store.CreatePurchase(context.Background(), store.Purchase{
		AlbumID:           "album-1",
		BandID:            "band-1",
		AmountMinor:       10000,
		Currency:          "sek",
		CheckoutSessionID: sessionID,
	})
	if err != nil {
		t.Fatalf("seed purchase: %v", err)
	}
	e.store.SetArchive("album-1", store.ArchiveAddress{Bucket: "albums", Path: "band-1/album-1.zip"})
	return p
}

// seedPaidSession registers a provider session that reports paid.
func seedPaidSession(e *env, sessionID string) {
	e.pay.setSession(payments.CheckoutSession{
		ID:              sessionID,
		PaymentStatus:   payments.PaymentStatusPaid,
		CustomerEmail:   "buyer@example.com",
		PaymentIntentID: "pi_1",
	})
}
