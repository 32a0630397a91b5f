// Package store persists the catalog: bands, albums, tracks, likes and
// playlists.
package store

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("store: not found")
	// ErrTrackMismatch means a reorder request does not name exactly the
	// album's current tracks.
	ErrTrackMismatch = errors.New("store: track list does not match album")
)

// Band is an artist account selling through the platform.
type Band struct {
	ID                string    `json:"id"`
	OwnerUserID       string    `json:"owner_user_id"`
	Name              string    `json:"name"`
	Bio               string    `json:"bio,omitempty"`
	ProviderAccountID string    `json:"provider_account_id,omitempty"`
	ChargesEnabled    bool      `json:"charges_enabled"`
	PayoutsEnabled    bool      `json:"payouts_enabled"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Album is a sellable release. The archive address is set once the
// deliverable zip has been produced.
type Album struct {
	ID            string    `json:"id"`
	BandID        string    `json:"band_id"`
	Title         string    `json:"title"`
	Description   string    `json:"description,omitempty"`
	PriceMinor    int64     `json:"price_minor"`
	Currency      string    `json:"currency"`
	Published     bool      `json:"published"`
	ArchiveBucket string    `json:"-"`
	ArchivePath   string    `json:"-"`
	SalesCount    int64     `json:"sales_count"`
	LikeCount     int64     `json:"like_count"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Track is one audio object inside an album, ordered by Position.
type Track struct {
	ID              string    `json:"id"`
	AlbumID         string    `json:"album_id"`
	Title           string    `json:"title"`
	DurationSeconds int32     `json:"duration_seconds"`
	Position        int32     `json:"position"`
	ObjectBucket    string    `json:"-"`
	ObjectPath      string    `json:"-"`
	CreatedAt       time.Time `json:"created_at"`
}

// Playlist is a user-owned ordered track list.
type Playlist struct {
	ID          string    `json:"id"`
	OwnerUserID string    `json:"owner_user_id"`
	Name        string    `json:"name"`
	TrackIDs    []string  `json:"track_ids"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// SearchResults groups matches by entity.
type SearchResults struct {
	Bands  []Band  `json:"bands"`
	Albums []Album `json:"albums"`
	Tracks []Track `json:"tracks"`
}

// CatalogStore defines all persistence operations for the catalog service.
type CatalogStore interface {
	// Bands
	CreateBand(ctx context.Context, b Band) (Band, error)
	UpdateBand(ctx context.Context, b Band) (Band, error)
	BandByID(ctx context.Context, id string) (Band, error)
	ListBands(ctx context.Context, limit int) ([]Band, error)

	// Albums
	CreateAlbum(ctx context.Context, a Album) (Album, error)
	UpdateAlbum(ctx context.Context, a Album) (Album, error)
	AlbumByID(ctx context.Context, id string) (Album, error)
	ListAlbumsByBand(ctx context.Context, bandID string) ([]Album, error)
	// SetAlbumArchive records the produced deliverable address.
	SetAlbumArchive(ctx context.Context, albumID, bucket, path string) error

	// Tracks
	CreateTrack(ctx context.Context, t Track) (Track, error)
	DeleteTrack(ctx context.Context, trackID string) error
	TrackByID(ctx context.Context, id string) (Track, error)
	ListTracksByAlbum(ctx context.Context, albumID string) ([]Track, error)
	// ReorderTracks atomically applies a full ordering; trackIDs must name
	// exactly the album's tracks.
	ReorderTracks(ctx context.Context, albumID string, trackIDs []string) error

	// Likes
	LikeAlbum(ctx context.Context, albumID, userID string) error
	UnlikeAlbum(ctx context.Context, albumID, userID string) error

	// Playlists
	CreatePlaylist(ctx context.Context, p Playlist) (Playlist, error)
	PlaylistByID(ctx context.Context, id string) (Playlist, error)
	ListPlaylistsByOwner(ctx context.Context, ownerUserID string) ([]Playlist, error)
	AddPlaylistTrack(ctx context.Context, playlistID, trackID string) error
	RemovePlaylistTrack(ctx context.Context, playlistID, trackID string) error

	// Search matches band names, album titles and track titles.
	Search(ctx context.Context, q string, limit int) (SearchResults, error)
}
