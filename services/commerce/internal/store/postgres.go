package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresCommerceStore is the production Postgres-backed implementation.
type PostgresCommerceStore struct {
	db *pgxpool.Pool
}

func NewPostgresCommerceStore(db *pgxpool.Pool) *PostgresCommerceStore {
	return &PostgresCommerceStore{db: db}
}

// ── Checkout lookups ───────────────────────────────────────────────────────

func (s *PostgresCommerceStore) AlbumForCheckout(ctx context.Context, albumID string) (AlbumOffer, error) {
	var o AlbumOffer
	err := s.db.QueryRow(ctx, `
SELECT al.id, al.band_id, al.title, al.price_minor, al.currency, al.published,
COALESCE(b.provider_account_id,''), b.charges_enabled
FROM albums al JOIN bands b ON b.id = al.band_id
WHERE al.id=$1`, albumID).
		Scan(&o.ID, &o.BandID, &o.Title, &o.PriceMinor, &o.Currency, &o.Published,
			&o.ProviderAccountID, &o.ChargesEnabled)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return AlbumOffer{}, ErrNotFound
		}
		return AlbumOffer{}, err
	}
	return o, nil
}

func (s *PostgresCommerceStore) BandForDonation(ctx context.Context, bandID string) (BandAccount, error) {
	var b BandAccount
	err := s.db.QueryRow(ctx, `
SELECT id, name, COALESCE(provider_account_id,''), charges_enabled
FROM bands WHERE id=$1`, bandID).
		Scan(&b.ID, &b.Name, &b.ProviderAccountID, &b.ChargesEnabled)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return BandAccount{}, ErrNotFound
		}
		return BandAccount{}, err
	}
	return b, nil
}

// ── Purchases ──────────────────────────────────────────────────────────────

func (s *PostgresCommerceStore) CreatePurchase(ctx context.Context, p Purchase) (Purchase, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.Status = StatusRequiresPayment
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now

	_, err := s.db.Exec(ctx, `
INSERT INTO purchases (id, album_id, band_id, buyer_email, amount_minor, currency, status, checkout_session_id, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,NULLIF($8,''),$9,$10)`,
		p.ID, p.AlbumID, p.BandID, p.BuyerEmail, p.AmountMinor, p.Currency, p.Status, p.CheckoutSessionID, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return Purchase{}, err
	}
	return p, nil
}

const purchaseColumns = `id, album_id, band_id, COALESCE(buyer_email,''), amount_minor, currency, status,
COALESCE(checkout_session_id,''), COALESCE(payment_intent_id,''), created_at, updated_at`

func (s *PostgresCommerceStore) scanPurchase(row pgx.Row) (Purchase, error) {
	var p Purchase
	err := row.Scan(&p.ID, &p.AlbumID, &p.BandID, &p.BuyerEmail, &p.AmountMinor, &p.Currency, &p.Status,
		&p.CheckoutSessionID, &p.PaymentIntentID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Purchase{}, ErrNotFound
		}
		return Purchase{}, err
	}
	return p, nil
}

func (s *PostgresCommerceStore) PurchaseByID(ctx context.Context, id string) (Purchase, error) {
	return s.scanPurchase(s.db.QueryRow(ctx, `SELECT `+purchaseColumns+` FROM purchases WHERE id=$1`, id))
}

func (s *PostgresCommerceStore) PurchaseBySession(ctx context.Context, sessionID string) (Purchase, error) {
	return s.scanPurchase(s.db.QueryRow(ctx, `SELECT `+purchaseColumns+` FROM purchases WHERE checkout_session_id=$1`, sessionID))
}

func (s *PostgresCommerceStore) PurchaseByIntent(ctx context.Context, paymentIntentID string) (Purchase, error) {
	return s.scanPurchase(s.db.QueryRow(ctx, `SELECT `+purchaseColumns+` FROM purchases WHERE payment_intent_id=$1`, paymentIntentID))
}

// ClaimPurchasePaid wins or loses on the status guard alone; the loser sees
// RowsAffected()==0 and must re-read to find out why.
func (s *PostgresCommerceStore) ClaimPurchasePaid(ctx context.Context, purchaseID, buyerEmail, paymentIntentID string) (bool, error) {
	tag, err := s.db.Exec(ctx, `
UPDATE purchases
SET status=$2, buyer_email=$3, payment_intent_id=NULLIF($4,''), updated_at=now()
WHERE id=$1 AND status=$5`,
		purchaseID, StatusPaid, buyerEmail, paymentIntentID, StatusRequiresPayment)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresCommerceStore) MarkPurchaseFailedBySession(ctx context.Context, sessionID string) error {
	_, err := s.db.Exec(ctx, `
UPDATE purchases SET status=$2, updated_at=now()
WHERE checkout_session_id=$1 AND status=$3`,
		sessionID, StatusFailed, StatusRequiresPayment)
	return err
}

func (s *PostgresCommerceStore) MarkPurchaseFailedByIntent(ctx context.Context, paymentIntentID string) error {
	_, err := s.db.Exec(ctx, `
UPDATE purchases SET status=$2, updated_at=now()
WHERE payment_intent_id=$1 AND status=$3`,
		paymentIntentID, StatusFailed, StatusRequiresPayment)
	return err
}

func (s *PostgresCommerceStore) MarkPurchaseRefundedByIntent(ctx context.Context, paymentIntentID string) (bool, error) {
	tag, err := s.db.Exec(ctx, `
UPDATE purchases SET status=$2, updated_at=now()
WHERE payment_intent_id=$1 AND status=$3`,
		paymentIntentID, StatusRefunded, StatusPaid)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// ── Donations ──────────────────────────────────────────────────────────────

func (s *PostgresCommerceStore) CreateDonation(ctx context.Context, d Donation) (Donation, error) {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	d.Status = StatusRequiresPayment
	now := time.Now().UTC()
	d.CreatedAt, d.UpdatedAt = now, now

	_, err := s.db.Exec(ctx, `
INSERT INTO donations (id, band_id, donor_email, amount_minor, currency, status, checkout_session_id, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,NULLIF($7,''),$8,$9)`,
		d.ID, d.BandID, d.DonorEmail, d.AmountMinor, d.Currency, d.Status, d.CheckoutSessionID, d.CreatedAt, d.UpdatedAt)
	if err != nil {
		return Donation{}, err
	}
	return d, nil
}

func (s *PostgresCommerceStore) DonationBySession(ctx context.Context, sessionID string) (Donation, error) {
	var d Donation
	err := s.db.QueryRow(ctx, `
SELECT id, band_id, COALESCE(donor_email,''), amount_minor, currency, status,
COALESCE(checkout_session_id,''), COALESCE(payment_intent_id,''), created_at, updated_at
FROM donations WHERE checkout_session_id=$1`, sessionID).
		Scan(&d.ID, &d.BandID, &d.DonorEmail, &d.AmountMinor, &d.Currency, &d.Status,
			&d.CheckoutSessionID, &d.PaymentIntentID, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Donation{}, ErrNotFound
		}
		return Donation{}, err
	}
	return d, nil
}

func (s *PostgresCommerceStore) MarkDonationSucceeded(ctx context.Context, donationID, paymentIntentID string) error {
	_, err := s.db.Exec(ctx, `
UPDATE donations SET status=$2, payment_intent_id=NULLIF($3,''), updated_at=now()
WHERE id=$1 AND status=$4`,
		donationID, StatusSucceeded, paymentIntentID, StatusRequiresPayment)
	return err
}

func (s *PostgresCommerceStore) MarkDonationFailedBySession(ctx context.Context, sessionID string) error {
	_, err := s.db.Exec(ctx, `
UPDATE donations SET status=$2, updated_at=now()
WHERE checkout_session_id=$1 AND status=$3`,
		sessionID, StatusFailed, StatusRequiresPayment)
	return err
}

func (s *PostgresCommerceStore) MarkDonationFailedByIntent(ctx context.Context, paymentIntentID string) error {
	_, err := s.db.Exec(ctx, `
UPDATE donations SET status=$2, updated_at=now()
WHERE payment_intent_id=$1 AND status=$3`,
		paymentIntentID, StatusFailed, StatusRequiresPayment)
	return err
}

func (s *PostgresCommerceStore) MarkDonationRefundedByIntent(ctx context.Context, paymentIntentID string) (bool, error) {
	tag, err := s.db.Exec(ctx, `
UPDATE donations SET status=$2, updated_at=now()
WHERE payment_intent_id=$1 AND status=$3`,
		paymentIntentID, StatusRefunded, StatusSucceeded)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// ── Download tokens ────────────────────────────────────────────────────────

func (s *PostgresCommerceStore) InsertDownloadToken(ctx context.Context, t DownloadToken) (DownloadToken, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(ctx, `
INSERT INTO download_tokens (id, purchase_id, token_hash, expires_at, created_at)
VALUES ($1,$2,$3,$4,$5)`,
		t.ID, t.PurchaseID, t.TokenHash, t.ExpiresAt, t.CreatedAt)
	if err != nil {
		return DownloadToken{}, err
	}
	return t, nil
}

func (s *PostgresCommerceStore) TokenByHash(ctx context.Context, hash string) (DownloadToken, error) {
	var t DownloadToken
	err := s.db.QueryRow(ctx, `
SELECT id, purchase_id, token_hash, expires_at, consumed_at, created_at
FROM download_tokens WHERE token_hash=$1`, hash).
		Scan(&t.ID, &t.PurchaseID, &t.TokenHash, &t.ExpiresAt, &t.ConsumedAt, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return DownloadToken{}, ErrNotFound
		}
		return DownloadToken{}, err
	}
	return t, nil
}

// ConsumeToken is the single defense against double redemption: the WHERE
// clause loses for every caller but one.
func (s *PostgresCommerceStore) ConsumeToken(ctx context.Context, tokenID string) (bool, error) {
	tag, err := s.db.Exec(ctx, `
UPDATE download_tokens SET consumed_at=now()
WHERE id=$1 AND consumed_at IS NULL`, tokenID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// ── Archives / seller accounts ─────────────────────────────────────────────

func (s *PostgresCommerceStore) ArchiveForPurchase(ctx context.Context, purchaseID string) (ArchiveAddress, error) {
	var a ArchiveAddress
	err := s.db.QueryRow(ctx, `
SELECT COALESCE(al.archive_bucket,''), COALESCE(al.archive_path,'')
FROM purchases p JOIN albums al ON al.id = p.album_id
WHERE p.id=$1`, purchaseID).Scan(&a.Bucket, &a.Path)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ArchiveAddress{}, ErrNotFound
		}
		return ArchiveAddress{}, err
	}
	return a, nil
}

func (s *PostgresCommerceStore) UpdateAccountStatus(ctx context.Context, providerAccountID string, chargesEnabled, payoutsEnabled bool) error {
	_, err := s.db.Exec(ctx, `
UPDATE bands SET charges_enabled=$2, payouts_enabled=$3, updated_at=now()
WHERE provider_account_id=$1`,
		providerAccountID, chargesEnabled, payoutsEnabled)
	return err
}
