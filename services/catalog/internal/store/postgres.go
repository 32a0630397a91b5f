package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresCatalogStore is the production Postgres-backed implementation.
type PostgresCatalogStore struct {
	db *pgxpool.Pool
}

func NewPostgresCatalogStore(db *pgxpool.Pool) *PostgresCatalogStore {
	return &PostgresCatalogStore{db: db}
}

// ── Bands ──────────────────────────────────────────────────────────────────

const bandColumns = `id, owner_user_id, name, COALESCE(bio,''), COALESCE(provider_account_id,''),
charges_enabled, payouts_enabled, created_at, updated_at`

func scanBand(row pgx.Row) (Band, error) {
	var b Band
	err := row.Scan(&b.ID, &b.OwnerUserID, &b.Name, &b.Bio, &b.ProviderAccountID,
		&b.ChargesEnabled, &b.PayoutsEnabled, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Band{}, ErrNotFound
		}
		return Band{}, err
	}
	return b, nil
}

func (s *PostgresCatalogStore) CreateBand(ctx context.Context, b Band) (Band, error) {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	b.CreatedAt, b.UpdatedAt = now, now
	_, err := s.db.Exec(ctx, `
INSERT INTO bands (id, owner_user_id, name, bio, provider_account_id, charges_enabled, payouts_enabled, created_at, updated_at)
VALUES ($1,$2,$3,NULLIF($4,''),NULLIF($5,''),$6,$7,$8,$9)`,
		b.ID, b.OwnerUserID, b.Name, b.Bio, b.ProviderAccountID, b.ChargesEnabled, b.PayoutsEnabled, b.CreatedAt, b.UpdatedAt)
	if err != nil {
		return Band{}, err
	}
	return b, nil
}

func (s *PostgresCatalogStore) UpdateBand(ctx context.Context, b Band) (Band, error) {
	tag, err := s.db.Exec(ctx, `
UPDATE bands SET name=$2, bio=NULLIF($3,''), updated_at=now()
WHERE id=$1`, b.ID, b.Name, b.Bio)
	if err != nil {
		return Band{}, err
	}
	if tag.RowsAffected() == 0 {
		return Band{}, ErrNotFound
	}
	return s.BandByID(ctx, b.ID)
}

func (s *PostgresCatalogStore) BandByID(ctx context.Context, id string) (Band, error) {
	return scanBand(s.db.QueryRow(ctx, `SELECT `+bandColumns+` FROM bands WHERE id=$1`, id))
}

func (s *PostgresCatalogStore) ListBands(ctx context.Context, limit int) ([]Band, error) {
	rows, err := s.db.Query(ctx, `SELECT `+bandColumns+` FROM bands ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Band
	for rows.Next() {
		b, err := scanBand(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// ── Albums ─────────────────────────────────────────────────────────────────

const albumColumns = `a.id, a.band_id, a.title, COALESCE(a.description,''), a.price_minor, a.currency,
a.published, COALESCE(a.archive_bucket,''), COALESCE(a.archive_path,''), a.sales_count,
(SELECT count(*) FROM album_likes l WHERE l.album_id = a.id), a.created_at, a.updated_at`

func scanAlbum(row pgx.Row) (Album, error) {
	var a Album
	err := row.Scan(&a.ID, &a.BandID, &a.Title, &a.Description, &a.PriceMinor, &a.Currency,
		&a.Published, &a.ArchiveBucket, &a.ArchivePath, &a.SalesCount, &a.LikeCount, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Album{}, ErrNotFound
		}
		return Album{}, err
	}
	return a, nil
}

func (s *PostgresCatalogStore) CreateAlbum(ctx context.Context, a Album) (Album, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	a.CreatedAt, a.UpdatedAt = now, now
	_, err := s.db.Exec(ctx, `
INSERT INTO albums (id, band_id, title, description, price_minor, currency, published, created_at, updated_at)
VALUES ($1,$2,$3,NULLIF($4,''),$5,$6,$7,$8,$9)`,
		a.ID, a.BandID, a.Title, a.Description, a.PriceMinor, a.Currency, a.Published, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return Album{}, err
	}
	return a, nil
}

func (s *PostgresCatalogStore) UpdateAlbum(ctx context.Context, a Album) (Album, error) {
	tag, err := s.db.Exec(ctx, `
UPDATE albums SET title=$2, description=NULLIF($3,''), price_minor=$4, currency=$5, published=$6, updated_at=now()
WHERE id=$1`, a.ID, a.Title, a.Description, a.PriceMinor, a.Currency, a.Published)
	if err != nil {
		return Album{}, err
	}
	if tag.RowsAffected() == 0 {
		return Album{}, ErrNotFound
	}
	return s.AlbumByID(ctx, a.ID)
}

func (s *PostgresCatalogStore) AlbumByID(ctx context.Context, id string) (Album, error) {
	return scanAlbum(s.db.QueryRow(ctx, `SELECT `+albumColumns+` FROM albums a WHERE a.id=$1`, id))
}

func (s *PostgresCatalogStore) ListAlbumsByBand(ctx context.Context, bandID string) ([]Album, error) {
	rows, err := s.db.Query(ctx, `SELECT `+albumColumns+` FROM albums a WHERE a.band_id=$1 ORDER BY a.created_at DESC`, bandID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Album
	for rows.Next() {
		a, err := scanAlbum(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *PostgresCatalogStore) SetAlbumArchive(ctx context.Context, albumID, bucket, path string) error {
	tag, err := s.db.Exec(ctx, `
UPDATE albums SET archive_bucket=$2, archive_path=$3, updated_at=now()
WHERE id=$1`, albumID, bucket, path)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ── Tracks ─────────────────────────────────────────────────────────────────

const trackColumns = `id, album_id, title, duration_seconds, position, COALESCE(object_bucket,''), COALESCE(object_path,''), created_at`

func scanTrack(row pgx.Row) (Track, error) {
	var t Track
	err := row.Scan(&t.ID, &t.AlbumID, &t.Title, &t.DurationSeconds, &t.Position, &t.ObjectBucket, &t.ObjectPath, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Track{}, ErrNotFound
		}
		return Track{}, err
	}
	return t, nil
}

func (s *PostgresCatalogStore) CreateTrack(ctx context.Context, t Track) (Track, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	t.CreatedAt = time.Now().UTC()
	if t.Position == 0 {
		// Append after the current last position.
		if err := s.db.QueryRow(ctx,
			`SELECT COALESCE(max(position),0)+1 FROM tracks WHERE album_id=$1`, t.AlbumID).Scan(&t.Position); err != nil {
			return Track{}, err
		}
	}
	_, err := s.db.Exec(ctx, `
INSERT INTO tracks (id, album_id, title, duration_seconds, position, object_bucket, object_path, created_at)
VALUES ($1,$2,$3,$4,$5,NULLIF($6,''),NULLIF($7,''),$8)`,
		t.ID, t.AlbumID, t.Title, t.DurationSeconds, t.Position, t.ObjectBucket, t.ObjectPath, t.CreatedAt)
	if err != nil {
		return Track{}, err
	}
	return t, nil
}

func (s *PostgresCatalogStore) DeleteTrack(ctx context.Context, trackID string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM tracks WHERE id=$1`, trackID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresCatalogStore) TrackByID(ctx context.Context, id string) (Track, error) {
	return scanTrack(s.db.QueryRow(ctx, `SELECT `+trackColumns+` FROM tracks WHERE id=$1`, id))
}

func (s *PostgresCatalogStore) ListTracksByAlbum(ctx context.Context, albumID string) ([]Track, error) {
	rows, err := s.db.Query(ctx, `SELECT `+trackColumns+` FROM tracks WHERE album_id=$1 ORDER BY position`, albumID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Track
	for rows.Next() {
		t, err := scanTrack(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *PostgresCatalogStore) ReorderTracks(ctx context.Context, albumID string, trackIDs []string) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var total int
	if err := tx.QueryRow(ctx, `SELECT count(*) FROM tracks WHERE album_id=$1`, albumID).Scan(&total); err != nil {
		return err
	}
	if total != len(trackIDs) {
		return ErrTrackMismatch
	}

	seen := make(map[string]struct{}, len(trackIDs))
	for _, id := range trackIDs {
		if _, dup := seen[id]; dup {
			return ErrTrackMismatch
		}
		seen[id] = struct{}{}
	}

	for i, id := range trackIDs {
		tag, err := tx.Exec(ctx,
			`UPDATE tracks SET position=$3 WHERE id=$1 AND album_id=$2`, id, albumID, i+1)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrTrackMismatch
		}
	}
	return tx.Commit(ctx)
}

// ── Likes ──────────────────────────────────────────────────────────────────

func (s *PostgresCatalogStore) LikeAlbum(ctx context.Context, albumID, userID string) error {
	_, err := s.db.Exec(ctx, `
INSERT INTO album_likes (album_id, user_id, created_at)
VALUES ($1,$2,now())
ON CONFLICT (album_id, user_id) DO NOTHING`, albumID, userID)
	return err
}

func (s *PostgresCatalogStore) UnlikeAlbum(ctx context.Context, albumID, userID string) error {
	_, err := s.db.Exec(ctx, `DELETE FROM album_likes WHERE album_id=$1 AND user_id=$2`, albumID, userID)
	return err
}

// ── Playlists ──────────────────────────────────────────────────────────────

func (s *PostgresCatalogStore) CreatePlaylist(ctx context.Context, p Playlist) (Playlist, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	_, err := s.db.Exec(ctx, `
INSERT INTO playlists (id, owner_user_id, name, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5)`, p.ID, p.OwnerUserID, p.Name, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return Playlist{}, err
	}
	p.TrackIDs = nil
	return p, nil
}

func (s *PostgresCatalogStore) PlaylistByID(ctx context.Context, id string) (Playlist, error) {
	var p Playlist
	err := s.db.QueryRow(ctx, `
SELECT id, owner_user_id, name, created_at, updated_at FROM playlists WHERE id=$1`, id).
		Scan(&p.ID, &p.OwnerUserID, &p.Name, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Playlist{}, ErrNotFound
		}
		return Playlist{}, err
	}

	rows, err := s.db.Query(ctx, `
SELECT track_id FROM playlist_tracks WHERE playlist_id=$1 ORDER BY position`, id)
	if err != nil {
		return Playlist{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var tid string
		if err := rows.Scan(&tid); err != nil {
			return Playlist{}, err
		}
		p.TrackIDs = append(p.TrackIDs, tid)
	}
	return p, rows.Err()
}

func (s *PostgresCatalogStore) ListPlaylistsByOwner(ctx context.Context, ownerUserID string) ([]Playlist, error) {
	rows, err := s.db.Query(ctx, `
SELECT id, owner_user_id, name, created_at, updated_at
FROM playlists WHERE owner_user_id=$1 ORDER BY created_at DESC`, ownerUserID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Playlist
	for rows.Next() {
		var p Playlist
		if err := rows.Scan(&p.ID, &p.OwnerUserID, &p.Name, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PostgresCatalogStore) AddPlaylistTrack(ctx context.Context, playlistID, trackID string) error {
	_, err := s.db.Exec(ctx, `
INSERT INTO playlist_tracks (playlist_id, track_id, position)
VALUES ($1,$2,(SELECT COALESCE(max(position),0)+1 FROM playlist_tracks WHERE playlist_id=$1))
ON CONFLICT (playlist_id, track_id) DO NOTHING`, playlistID, trackID)
	return err
}

func (s *PostgresCatalogStore) RemovePlaylistTrack(ctx context.Context, playlistID, trackID string) error {
	_, err := s.db.Exec(ctx, `DELETE FROM playlist_tracks WHERE playlist_id=$1 AND track_id=$2`, playlistID, trackID)
	return err
}

// ── Search ─────────────────────────────────────────────────────────────────

func (s *PostgresCatalogStore) Search(ctx context.Context, q string, limit int) (SearchResults, error) {
	var res SearchResults
	pattern := "%" + q + "%"

	rows, err := s.db.Query(ctx, `SELECT `+bandColumns+` FROM bands WHERE name ILIKE $1 ORDER BY name LIMIT $2`, pattern, limit)
	if err != nil {
		return res, err
	}
	defer rows.Close()
	for rows.Next() {
		b, err := scanBand(rows)
		if err != nil {
			return res, err
		}
		res.Bands = append(res.Bands, b)
	}
	if err := rows.Err(); err != nil {
		return res, err
	}

	rows, err = s.db.Query(ctx, `SELECT `+albumColumns+` FROM albums a WHERE a.title ILIKE $1 AND a.published ORDER BY a.title LIMIT $2`, pattern, limit)
	if err != nil {
		return res, err
	}
	defer rows.Close()
	for rows.Next() {
		a, err := scanAlbum(rows)
		if err != nil {
			return res, err
		}
		res.Albums = append(res.Albums, a)
	}
	if err := rows.Err(); err != nil {
		return res, err
	}

	rows, err = s.db.Query(ctx, `
SELECT `+trackColumns+` FROM tracks
WHERE title ILIKE $1 AND album_id IN (SELECT id FROM albums WHERE published)
ORDER BY title LIMIT $2`, pattern, limit)
	if err != nil {
		return res, err
	}
	defer rows.Close()
	for rows.Next() {
		t, err := scanTrack(rows)
		if err != nil {
			return res, err
		}
		res.Tracks = append(res.Tracks, t)
	}
	return res, rows.Err()
}
