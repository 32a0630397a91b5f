package store

import (
	"context"
	"errors"
	"testing"
)

func seedAlbumWithTracks(t *testing.T, s *MemoryCatalogStore, n int) (Album, []Track) {
	t.Helper()
	ctx := context.Background()

	b, err := s.CreateBand(ctx, Band{OwnerUserID: "artist-1", Name: "Night Shift"})
	if err != nil {
		t.Fatalf("create band: %v", err)
	}
	a, err := s.CreateAlbum(ctx, Album{BandID: b.ID, Title: "First Light", PriceMinor: 10000, Currency: "sek", Published: true})
	if err != nil {
		t.Fatalf("create album: %v", err)
	}

	var tracks []Track
	for i := 0; i < n; i++ {
		tr, err := s.CreateTrack(ctx, Track{AlbumID: a.ID, Title: "Track", DurationSeconds: 180})
		if err != nil {
			t.Fatalf("create track %d: %v", i, err)
		}
		tracks = append(tracks, tr)
	}
	return a, tracks
}

func TestCreateTrack_AppendsPositions(t *testing.T) {
	s := NewMemoryCatalogStore()
	a, tracks := seedAlbumWithTracks(t, s, 3)

	for i, tr := range tracks {
		if tr.Position != int32(i+1) {
			t.Fatalf("track %d: expected position %d, got %d", i, i+1, tr.Position)
		}
	}

	listed, err := s.ListTracksByAlbum(context.Background(), a.ID)
	if err != nil {
		t.Fatalf("list tracks: %v", err)
	}
	if len(listed) != 3 {
		t.Fatalf("expected 3 tracks, got %d", len(listed))
	}
}

func TestReorderTracks_AppliesFullOrdering(t *testing.T) {
	s := NewMemoryCatalogStore()
	a, tracks := seedAlbumWithTracks(t, s, 3)
	ctx := context.Background()

	order := []string{tracks[2].ID, tracks[0].ID, tracks[1].ID}
	if err := s.ReorderTracks(ctx, a.ID, order); err != nil {
		t.Fatalf("reorder: %v", err)
	}

	listed, err := s.ListTracksByAlbum(ctx, a.ID)
	if err != nil {
		t.Fatalf("list tracks: %v", err)
	}
	for i, tr := range listed {
		if tr.ID != order[i] {
			t.Fatalf("position %d: expected %s, got %s", i+1, order[i], tr.ID)
		}
	}
}

func TestReorderTracks_RejectsPartialOrWrongLists(t *testing.T) {
	s := NewMemoryCatalogStore()
	a, tracks := seedAlbumWithTracks(t, s, 3)
	ctx := context.Background()

	cases := []struct {
		name string
		ids  []string
	}{
		{"partial", []string{tracks[0].ID, tracks[1].ID}},
		{"unknown id", []string{tracks[0].ID, tracks[1].ID, "ghost"}},
		{"duplicate id", []string{tracks[0].ID, tracks[0].ID, tracks[1].ID}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := s.ReorderTracks(ctx, a.ID, tc.ids); !errors.Is(err, ErrTrackMismatch) {
				t.Fatalf("expected ErrTrackMismatch, got %v", err)
			}
		})
	}
}

func TestLikeAlbum_IsIdempotentPerUser(t *testing.T) {
	s := NewMemoryCatalogStore()
	a, _ := seedAlbumWithTracks(t, s, 1)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := s.LikeAlbum(ctx, a.ID, "user-1"); err != nil {
			t.Fatalf("like: %v", err)
		}
	}
	if err := s.LikeAlbum(ctx, a.ID, "user-2"); err != nil {
		t.Fatalf("like: %v", err)
	}

	got, err := s.AlbumByID(ctx, a.ID)
	if err != nil {
		t.Fatalf("album read: %v", err)
	}
	if got.LikeCount != 2 {
		t.Fatalf("expected like count 2, got %d", got.LikeCount)
	}

	if err := s.UnlikeAlbum(ctx, a.ID, "user-1"); err != nil {
		t.Fatalf("unlike: %v", err)
	}
	got, _ = s.AlbumByID(ctx, a.ID)
	if got.LikeCount != 1 {
		t.Fatalf("expected like count 1 after unlike, got %d", got.LikeCount)
	}
}

func TestPlaylist_AddRemoveKeepsOrder(t *testing.T) {
	s := NewMemoryCatalogStore()
	_, tracks := seedAlbumWithTracks(t, s, 3)
	ctx := context.Background()

	p, err := s.CreatePlaylist(ctx, Playlist{OwnerUserID: "user-1", Name: "Late drives"})
	if err != nil {
		t.Fatalf("create playlist: %v", err)
	}

	for _, tr := range tracks {
		if err := s.AddPlaylistTrack(ctx, p.ID, tr.ID); err != nil {
			t.Fatalf("add track: %v", err)
		}
	}
	// Re-adding is a no-op.
	if err := s.AddPlaylistTrack(ctx, p.ID, tracks[0].ID); err != nil {
		t.Fatalf("re-add track: %v", err)
	}

	got, err := s.PlaylistByID(ctx, p.ID)
	if err != nil {
		t.Fatalf("playlist read: %v", err)
	}
	if len(got.TrackIDs) != 3 {
		t.Fatalf("expected 3 tracks, got %d", len(got.TrackIDs))
	}

	if err := s.RemovePlaylistTrack(ctx, p.ID, tracks[1].ID); err != nil {
		t.Fatalf("remove track: %v", err)
	}
	got, _ = s.PlaylistByID(ctx, p.ID)
	if len(got.TrackIDs) != 2 || got.TrackIDs[0] != tracks[0].ID || got.TrackIDs[1] != tracks[2].ID {
		t.Fatalf("unexpected order after removal: %v", got.TrackIDs)
	}
}

func TestSearch_MatchesPublishedOnly(t *testing.T) {
	s := NewMemoryCatalogStore()
	ctx := context.Background()

	b, _ := s.CreateBand(ctx, Band{OwnerUserID: "artist-1", Name: "Night Shift"})
	pub, _ := s.CreateAlbum(ctx, Album{BandID: b.ID, Title: "Night Songs", PriceMinor: 10000, Currency: "sek", Published: true})
	_, _ = s.CreateAlbum(ctx, Album{BandID: b.ID, Title: "Night Drafts", PriceMinor: 10000, Currency: "sek", Published: false})
	_, _ = s.CreateTrack(ctx, Track{AlbumID: pub.ID, Title: "Midnight Run"})

	res, err := s.Search(ctx, "night", 20)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(res.Bands) != 1 || res.Bands[0].Name != "Night Shift" {
		t.Fatalf("unexpected band results: %+v", res.Bands)
	}
	if len(res.Albums) != 1 || res.Albums[0].Title != "Night Songs" {
		t.Fatalf("unpublished albums must not match: %+v", res.Albums)
	}
	if len(res.Tracks) != 1 || res.Tracks[0].Title != "Midnight Run" {
		t.Fatalf("unexpected track results: %+v", res.Tracks)
	}
}

func TestBandAndAlbumNotFound(t *testing.T) {
	s := NewMemoryCatalogStore()
	ctx := context.Background()

	if _, err := s.BandByID(ctx, "ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.AlbumByID(ctx, "ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.UpdateBand(ctx, Band{ID: "ghost", Name: "x"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
