package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/example/distro/internal/platform/api"
	"github.com/example/distro/internal/platform/auth"
	"github.com/example/distro/services/catalog/internal/store"
)

type playlistRequest struct {
	Name string `json:"name"`
}

type playlistTrackRequest struct {
	TrackID string `json:"track_id"`
}

// playlistForWrite loads the playlist and enforces ownership.
func playlistForWrite(w http.ResponseWriter, r *http.Request, cs store.CatalogStore, id string) (store.Playlist, bool) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok || userID == "" {
		api.Unauthorized(w, "UNAUTHORIZED", "authentication required", "")
		return store.Playlist{}, false
	}

	p, err := cs.PlaylistByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			api.NotFound(w, "NOT_FOUND", "playlist not found", "")
			return store.Playlist{}, false
		}
		api.Internal(w, "")
		return store.Playlist{}, false
	}
	if p.OwnerUserID != userID {
		api.Forbidden(w, "FORBIDDEN", "not the playlist owner", "")
		return store.Playlist{}, false
	}
	return p, true
}

// CreatePlaylist handles POST /v1/playlists
func CreatePlaylist(cs store.CatalogStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := auth.UserIDFromContext(r.Context())
		if !ok || userID == "" {
			api.Unauthorized(w, "UNAUTHORIZED", "authentication required", "")
			return
		}

		var req playlistRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
			api.BadRequest(w, "INVALID_JSON", "invalid JSON", "", nil)
			return
		}
		if strings.TrimSpace(req.Name) == "" {
			api.BadRequest(w, "EMPTY_NAME", "name must not be empty", "", nil)
			return
		}

		created, err := cs.CreatePlaylist(r.Context(), store.Playlist{
			OwnerUserID: userID,
			Name:        strings.TrimSpace(req.Name),
		})
		if err != nil {
			api.Internal(w, "")
			return
		}
		api.WriteJSON(w, http.StatusCreated, created)
	}
}

// GetPlaylist handles GET /v1/playlists/{playlist_id}
func GetPlaylist(cs store.CatalogStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(chi.URLParam(r, "playlist_id"))

		p, err := cs.PlaylistByID(r.Context(), id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				api.NotFound(w, "NOT_FOUND", "playlist not found", "")
				return
			}
			api.Internal(w, "")
			return
		}
		api.WriteJSON(w, http.StatusOK, p)
	}
}

// ListMyPlaylists handles GET /v1/playlists
func ListMyPlaylists(cs store.CatalogStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := auth.UserIDFromContext(r.Context())
		if !ok || userID == "" {
			api.Unauthorized(w, "UNAUTHORIZED", "authentication required", "")
			return
		}

		playlists, err := cs.ListPlaylistsByOwner(r.Context(), userID)
		if err != nil {
			api.Internal(w, "")
			return
		}
		api.WriteJSON(w, http.StatusOK, map[string]any{"playlists": playlists})
	}
}

// AddPlaylistTrack handles POST /v1/playlists/{playlist_id}/tracks
func AddPlaylistTrack(cs store.CatalogStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(chi.URLParam(r, "playlist_id"))
		p, ok := playlistForWrite(w, r, cs, id)
		if !ok {
			return
		}

		var req playlistTrackRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
			api.BadRequest(w, "INVALID_JSON", "invalid JSON", "", nil)
			return
		}
		trackID := strings.TrimSpace(req.TrackID)
		if trackID == "" {
			api.BadRequest(w, "MISSING_TRACK", "track_id is required", "", nil)
			return
		}

		if _, err := cs.TrackByID(r.Context(), trackID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				api.NotFound(w, "NOT_FOUND", "track not found", "")
				return
			}
			api.Internal(w, "")
			return
		}

		if err := cs.AddPlaylistTrack(r.Context(), p.ID, trackID); err != nil {
			api.Internal(w, "")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// RemovePlaylistTrack handles DELETE /v1/playlists/{playlist_id}/tracks/{track_id}
func RemovePlaylistTrack(cs store.CatalogStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(chi.URLParam(r, "playlist_id"))
		p, ok := playlistForWrite(w, r, cs, id)
		if !ok {
			return
		}

		trackID := strings.TrimSpace(chi.URLParam(r, "track_id"))
		if err := cs.RemovePlaylistTrack(r.Context(), p.ID, trackID); err != nil {
			api.Internal(w, "")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
