package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryCommerceStore is an in-memory CommerceStore for tests and for
// development without a database. Guards mirror the Postgres conditions so
// race behaviour matches production.
type MemoryCommerceStore struct {
	mu        sync.Mutex
	purchases map[string]*Purchase
	donations map[string]*Donation
	tokens    map[string]*DownloadToken
	archives  map[string]ArchiveAddress // album id -> address
	accounts  map[string]AccountStatus  // provider account id -> flags
	offers    map[string]AlbumOffer     // album id -> offer
	bands     map[string]BandAccount    // band id -> account
}

type AccountStatus struct {
	ChargesEnabled bool
	PayoutsEnabled bool
}

func NewMemoryCommerceStore() *MemoryCommerceStore {
	return &MemoryCommerceStore{
		purchases: make(map[string]*Purchase),
		donations: make(map[string]*Donation),
		tokens:    make(map[string]*DownloadToken),
		archives:  make(map[string]ArchiveAddress),
		accounts:  make(map[string]AccountStatus),
		offers:    make(map[string]AlbumOffer),
		bands:     make(map[string]BandAccount),
	}
}

// SetAlbumOffer seeds an album available for checkout.
func (s *MemoryCommerceStore) SetAlbumOffer(o AlbumOffer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offers[o.ID] = o
}

// SetBandAccount seeds a band available for donations.
func (s *MemoryCommerceStore) SetBandAccount(b BandAccount) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bands[b.ID] = b
}

func (s *MemoryCommerceStore) AlbumForCheckout(_ context.Context, albumID string) (AlbumOffer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.offers[albumID]
	if !ok {
		return AlbumOffer{}, ErrNotFound
	}
	return o, nil
}

func (s *MemoryCommerceStore) BandForDonation(_ context.Context, bandID string) (BandAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bands[bandID]
	if !ok {
		return BandAccount{}, ErrNotFound
	}
	return b, nil
}

// SetArchive registers a produced deliverable for an album.
func (s *MemoryCommerceStore) SetArchive(albumID string, a ArchiveAddress) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.archives[albumID] = a
}

// AccountStatusFor exposes synced payout flags for assertions.
func (s *MemoryCommerceStore) AccountStatusFor(providerAccountID string) (AccountStatus, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.accounts[providerAccountID]
	return st, ok
}

// TokensForPurchase returns copies of all tokens minted for a purchase.
func (s *MemoryCommerceStore) TokensForPurchase(purchaseID string) []DownloadToken {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []DownloadToken
	for _, t := range s.tokens {
		if t.PurchaseID == purchaseID {
			out = append(out, *t)
		}
	}
	return out
}

func (s *MemoryCommerceStore) CreatePurchase(_ context.Context, p Purchase) (Purchase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.Status = StatusRequiresPayment
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	cp := p
	s.purchases[p.ID] = &cp
	return p, nil
}

func (s *MemoryCommerceStore) CreateDonation(_ context.Context, d Donation) (Donation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	d.Status = StatusRequiresPayment
	now := time.Now().UTC()
	d.CreatedAt, d.UpdatedAt = now, now
	cp := d
	s.donations[d.ID] = &cp
	return d, nil
}

func (s *MemoryCommerceStore) PurchaseByID(_ context.Context, id string) (Purchase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.purchases[id]
	if !ok {
		return Purchase{}, ErrNotFound
	}
	return *p, nil
}

func (s *MemoryCommerceStore) PurchaseBySession(_ context.Context, sessionID string) (Purchase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.purchases {
		if p.CheckoutSessionID == sessionID && sessionID != "" {
			return *p, nil
		}
	}
	return Purchase{}, ErrNotFound
}

func (s *MemoryCommerceStore) PurchaseByIntent(_ context.Context, paymentIntentID string) (Purchase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.purchases {
		if p.PaymentIntentID == paymentIntentID && paymentIntentID != "" {
			return *p, nil
		}
	}
	return Purchase{}, ErrNotFound
}

func (s *MemoryCommerceStore) DonationBySession(_ context.Context, sessionID string) (Donation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.donations {
		if d.CheckoutSessionID == sessionID && sessionID != "" {
			return *d, nil
		}
	}
	return Donation{}, ErrNotFound
}

func (s *MemoryCommerceStore) ClaimPurchasePaid(_ context.Context, purchaseID, buyerEmail, paymentIntentID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.purchases[purchaseID]
	if !ok || p.Status != StatusRequiresPayment {
		return false, nil
	}
	p.Status = StatusPaid
	p.BuyerEmail = buyerEmail
	p.PaymentIntentID = paymentIntentID
	p.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (s *MemoryCommerceStore) MarkDonationSucceeded(_ context.Context, donationID, paymentIntentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.donations[donationID]
	if !ok || d.Status != StatusRequiresPayment {
		return nil
	}
	d.Status = StatusSucceeded
	d.PaymentIntentID = paymentIntentID
	d.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryCommerceStore) MarkPurchaseFailedBySession(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.purchases {
		if p.CheckoutSessionID == sessionID && p.Status == StatusRequiresPayment {
			p.Status = StatusFailed
			p.UpdatedAt = time.Now().UTC()
		}
	}
	return nil
}

func (s *MemoryCommerceStore) MarkDonationFailedBySession(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.donations {
		if d.CheckoutSessionID == sessionID && d.Status == StatusRequiresPayment {
			d.Status = StatusFailed
			d.UpdatedAt = time.Now().UTC()
		}
	}
	return nil
}

func (s *MemoryCommerceStore) MarkPurchaseFailedByIntent(_ context.Context, paymentIntentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.purchases {
		if p.PaymentIntentID == paymentIntentID && paymentIntentID != "" && p.Status == StatusRequiresPayment {
			p.Status = StatusFailed
			p.UpdatedAt = time.Now().UTC()
		}
	}
	return nil
}

func (s *MemoryCommerceStore) MarkDonationFailedByIntent(_ context.Context, paymentIntentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.donations {
		if d.PaymentIntentID == paymentIntentID && paymentIntentID != "" && d.Status == StatusRequiresPayment {
			d.Status = StatusFailed
			d.UpdatedAt = time.Now().UTC()
		}
	}
	return nil
}

func (s *MemoryCommerceStore) MarkPurchaseRefundedByIntent(_ context.Context, paymentIntentID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.purchases {
		if p.PaymentIntentID == paymentIntentID && paymentIntentID != "" && p.Status == StatusPaid {
			p.Status = StatusRefunded
			p.UpdatedAt = time.Now().UTC()
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryCommerceStore) MarkDonationRefundedByIntent(_ context.Context, paymentIntentID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.donations {
		if d.PaymentIntentID == paymentIntentID && paymentIntentID != "" && d.Status == StatusSucceeded {
			d.Status = StatusRefunded
			d.UpdatedAt = time.Now().UTC()
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryCommerceStore) InsertDownloadToken(_ context.Context, t DownloadToken) (DownloadToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	cp := t
	s.tokens[t.ID] = &cp
	return t, nil
}

func (s *MemoryCommerceStore) TokenByHash(_ context.Context, hash string) (DownloadToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tokens {
		if t.TokenHash == hash {
			return *t, nil
		}
	}
	return DownloadToken{}, ErrNotFound
}

func (s *MemoryCommerceStore) ConsumeToken(_ context.Context, tokenID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tokens[tokenID]
	if !ok || t.ConsumedAt != nil {
		return false, nil
	}
	now := time.Now().UTC()
	t.ConsumedAt = &now
	return true, nil
}

func (s *MemoryCommerceStore) ArchiveForPurchase(_ context.Context, purchaseID string) (ArchiveAddress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.purchases[purchaseID]
	if !ok {
		return ArchiveAddress{}, ErrNotFound
	}
	return s.archives[p.AlbumID], nil
}

func (s *MemoryCommerceStore) UpdateAccountStatus(_ context.Context, providerAccountID string, chargesEnabled, payoutsEnabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[providerAccountID] = AccountStatus{ChargesEnabled: chargesEnabled, PayoutsEnabled: payoutsEnabled}
	return nil
}
