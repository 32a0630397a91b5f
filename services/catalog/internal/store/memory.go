package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryCatalogStore is an in-memory CatalogStore for tests and development.
type MemoryCatalogStore struct {
	mu        sync.Mutex
	bands     map[string]*Band
	albums    map[string]*Album
	tracks    map[string]*Track
	likes     map[string]map[string]struct{} // album id -> user ids
	playlists map[string]*Playlist
}

func NewMemoryCatalogStore() *MemoryCatalogStore {
	return &MemoryCatalogStore{
		bands:     make(map[string]*Band),
		albums:    make(map[string]*Album),
		tracks:    make(map[string]*Track),
		likes:     make(map[string]map[string]struct{}),
		playlists: make(map[string]*Playlist),
	}
}

// AddSales bumps an album's sales counter; used by worker tests.
func (s *MemoryCatalogStore) AddSales(albumID string, n int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.albums[albumID]; ok {
		a.SalesCount += n
	}
}

// ── Bands ──────────────────────────────────────────────────────────────────

func (s *MemoryCatalogStore) CreateBand(_ context.Context, b Band) (Band, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	b.CreatedAt, b.UpdatedAt = now, now
	cp := b
	s.bands[b.ID] = &cp
	return b, nil
}

func (s *MemoryCatalogStore) UpdateBand(_ context.Context, b Band) (Band, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.bands[b.ID]
	if !ok {
		return Band{}, ErrNotFound
	}
	cur.Name = b.Name
	cur.Bio = b.Bio
	cur.UpdatedAt = time.Now().UTC()
	return *cur, nil
}

func (s *MemoryCatalogStore) BandByID(_ context.Context, id string) (Band, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bands[id]
	if !ok {
		return Band{}, ErrNotFound
	}
	return *b, nil
}

func (s *MemoryCatalogStore) ListBands(_ context.Context, limit int) ([]Band, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Band
	for _, b := range s.bands {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ── Albums ─────────────────────────────────────────────────────────────────

func (s *MemoryCatalogStore) CreateAlbum(_ context.Context, a Album) (Album, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	a.CreatedAt, a.UpdatedAt = now, now
	cp := a
	s.albums[a.ID] = &cp
	return a, nil
}

func (s *MemoryCatalogStore) UpdateAlbum(_ context.Context, a Album) (Album, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.albums[a.ID]
	if !ok {
		return Album{}, ErrNotFound
	}
	cur.Title = a.Title
	cur.Description = a.Description
	cur.PriceMinor = a.PriceMinor
	cur.Currency = a.Currency
	cur.Published = a.Published
	cur.UpdatedAt = time.Now().UTC()
	return s.withLikeCount(*cur), nil
}

func (s *MemoryCatalogStore) withLikeCount(a Album) Album {
	a.LikeCount = int64(len(s.likes[a.ID]))
	return a
}

func (s *MemoryCatalogStore) AlbumByID(_ context.Context, id string) (Album, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.albums[id]
	if !ok {
		return Album{}, ErrNotFound
	}
	return s.withLikeCount(*a), nil
}

func (s *MemoryCatalogStore) ListAlbumsByBand(_ context.Context, bandID string) ([]Album, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Album
	for _, a := range s.albums {
		if a.BandID == bandID {
			out = append(out, s.withLikeCount(*a))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryCatalogStore) SetAlbumArchive(_ context.Context, albumID, bucket, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.albums[albumID]
	if !ok {
		return ErrNotFound
	}
	a.ArchiveBucket = bucket
	a.ArchivePath = path
	a.UpdatedAt = time.Now().UTC()
	return nil
}

// ── Tracks ─────────────────────────────────────────────────────────────────

func (s *MemoryCatalogStore) CreateTrack(_ context.Context, t Track) (Track, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	t.CreatedAt = time.Now().UTC()
	if t.Position == 0 {
		var max int32
		for _, cur := range s.tracks {
			if cur.AlbumID == t.AlbumID && cur.Position > max {
				max = cur.Position
			}
		}
		t.Position = max + 1
	}
	cp := t
	s.tracks[t.ID] = &cp
	return t, nil
}

func (s *MemoryCatalogStore) DeleteTrack(_ context.Context, trackID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tracks[trackID]; !ok {
		return ErrNotFound
	}
	delete(s.tracks, trackID)
	return nil
}

func (s *MemoryCatalogStore) TrackByID(_ context.Context, id string) (Track, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tracks[id]
	if !ok {
		return Track{}, ErrNotFound
	}
	return *t, nil
}

func (s *MemoryCatalogStore) ListTracksByAlbum(_ context.Context, albumID string) ([]Track, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Track
	for _, t := range s.tracks {
		if t.AlbumID == albumID {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (s *MemoryCatalogStore) ReorderTracks(_ context.Context, albumID string, trackIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var total int
	for _, t := range s.tracks {
		if t.AlbumID == albumID {
			total++
		}
	}
	if total != len(trackIDs) {
		return ErrTrackMismatch
	}
	seen := make(map[string]struct{}, len(trackIDs))
	for _, id := range trackIDs {
		t, ok := s.tracks[id]
		if !ok || t.AlbumID != albumID {
			return ErrTrackMismatch
		}
		if _, dup := seen[id]; dup {
			return ErrTrackMismatch
		}
		seen[id] = struct{}{}
	}
	for i, id := range trackIDs {
		s.tracks[id].Position = int32(i + 1)
	}
	return nil
}

// ── Likes ──────────────────────────────────────────────────────────────────

func (s *MemoryCatalogStore) LikeAlbum(_ context.Context, albumID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.likes[albumID] == nil {
		s.likes[albumID] = make(map[string]struct{})
	}
	s.likes[albumID][userID] = struct{}{}
	return nil
}

func (s *MemoryCatalogStore) UnlikeAlbum(_ context.Context, albumID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.likes[albumID], userID)
	return nil
}

// ── Playlists ──────────────────────────────────────────────────────────────

func (s *MemoryCatalogStore) CreatePlaylist(_ context.Context, p Playlist) (Playlist, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	p.TrackIDs = nil
	cp := p
	s.playlists[p.ID] = &cp
	return p, nil
}

func (s *MemoryCatalogStore) PlaylistByID(_ context.Context, id string) (Playlist, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.playlists[id]
	if !ok {
		return Playlist{}, ErrNotFound
	}
	cp := *p
	cp.TrackIDs = append([]string(nil), p.TrackIDs...)
	return cp, nil
}

func (s *MemoryCatalogStore) ListPlaylistsByOwner(_ context.Context, ownerUserID string) ([]Playlist, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Playlist
	for _, p := range s.playlists {
		if p.OwnerUserID == ownerUserID {
			cp := *p
			cp.TrackIDs = append([]string(nil), p.TrackIDs...)
			out = append(out, cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryCatalogStore) AddPlaylistTrack(_ context.Context, playlistID, trackID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.playlists[playlistID]
	if !ok {
		return ErrNotFound
	}
	for _, id := range p.TrackIDs {
		if id == trackID {
			return nil
		}
	}
	p.TrackIDs = append(p.TrackIDs, trackID)
	p.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryCatalogStore) RemovePlaylistTrack(_ context.Context, playlistID, trackID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.playlists[playlistID]
	if !ok {
		return ErrNotFound
	}
	out := p.TrackIDs[:0]
	for _, id := range p.TrackIDs {
		if id != trackID {
			out = append(out, id)
		}
	}
	p.TrackIDs = out
	p.UpdatedAt = time.Now().UTC()
	return nil
}

// ── Search ─────────────────────────────────────────────────────────────────

func (s *MemoryCatalogStore) Search(_ context.Context, q string, limit int) (SearchResults, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var res SearchResults
	needle := strings.ToLower(q)

	for _, b := range s.bands {
		if strings.Contains(strings.ToLower(b.Name), needle) {
			res.Bands = append(res.Bands, *b)
		}
	}
	for _, a := range s.albums {
		if a.Published && strings.Contains(strings.ToLower(a.Title), needle) {
			res.Albums = append(res.Albums, s.withLikeCount(*a))
		}
	}
	for _, t := range s.tracks {
		album, ok := s.albums[t.AlbumID]
		if ok && album.Published && strings.Contains(strings.ToLower(t.Title), needle) {
			res.Tracks = append(res.Tracks, *t)
		}
	}

	sort.Slice(res.Bands, func(i, j int) bool { return res.Bands[i].Name < res.Bands[j].Name })
	sort.Slice(res.Albums, func(i, j int) bool { return res.Albums[i].Title < res.Albums[j].Title })
	sort.Slice(res.Tracks, func(i, j int) bool { return res.Tracks[i].Title < res.Tracks[j].Title })
	if len(res.Bands) > limit {
		res.Bands = res.Bands[:limit]
	}
	if len(res.Albums) > limit {
		res.Albums = res.Albums[:limit]
	}
	if len(res.Tracks) > limit {
		res.Tracks = res.Tracks[:limit]
	}
	return res, nil
}
