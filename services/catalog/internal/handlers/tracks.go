package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/example/distro/internal/platform/api"
	"github.com/example/distro/internal/platform/signing"
	"github.com/example/distro/services/catalog/internal/store"
)

// streamURLTTL bounds how long a minted streaming URL stays fetchable.
const streamURLTTL = 10 * time.Minute

type trackRequest struct {
	Title           string `json:"title"`
	DurationSeconds int32  `json:"duration_seconds"`
	ObjectBucket    string `json:"object_bucket,omitempty"`
	ObjectPath      string `json:"object_path,omitempty"`
}

type reorderRequest struct {
	TrackIDs []string `json:"track_ids"`
}

// CreateTrack handles POST /v1/albums/{album_id}/tracks
func CreateTrack(cs store.CatalogStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		albumID := strings.TrimSpace(chi.URLParam(r, "album_id"))

		a, err := cs.AlbumByID(r.Context(), albumID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				api.NotFound(w, "NOT_FOUND", "album not found", "")
				return
			}
			api.Internal(w, "")
			return
		}
		if !bandForAlbumWrite(w, r, cs, a.BandID) {
			return
		}

		var req trackRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
			api.BadRequest(w, "INVALID_JSON", "invalid JSON", "", nil)
			return
		}
		if strings.TrimSpace(req.Title) == "" {
			api.BadRequest(w, "EMPTY_TITLE", "title must not be empty", "", nil)
			return
		}

		created, err := cs.CreateTrack(r.Context(), store.Track{
			AlbumID:         albumID,
			Title:           strings.TrimSpace(req.Title),
			DurationSeconds: req.DurationSeconds,
			ObjectBucket:    strings.TrimSpace(req.ObjectBucket),
			ObjectPath:      strings.TrimSpace(req.ObjectPath),
		})
		if err != nil {
			api.Internal(w, "")
			return
		}
		api.WriteJSON(w, http.StatusCreated, created)
	}
}

// DeleteTrack handles DELETE /v1/tracks/{track_id}
func DeleteTrack(cs store.CatalogStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		trackID := strings.TrimSpace(chi.URLParam(r, "track_id"))

		t, err := cs.TrackByID(r.Context(), trackID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				api.NotFound(w, "NOT_FOUND", "track not found", "")
				return
			}
			api.Internal(w, "")
			return
		}
		a, err := cs.AlbumByID(r.Context(), t.AlbumID)
		if err != nil {
			api.Internal(w, "")
			return
		}
		if !bandForAlbumWrite(w, r, cs, a.BandID) {
			return
		}

		if err := cs.DeleteTrack(r.Context(), trackID); err != nil {
			api.Internal(w, "")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// ListAlbumTracks handles GET /v1/albums/{album_id}/tracks
func ListAlbumTracks(cs store.CatalogStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		albumID := strings.TrimSpace(chi.URLParam(r, "album_id"))

		tracks, err := cs.ListTracksByAlbum(r.Context(), albumID)
		if err != nil {
			api.Internal(w, "")
			return
		}
		api.WriteJSON(w, http.StatusOK, map[string]any{"tracks": tracks})
	}
}

// ReorderTracks handles PUT /v1/albums/{album_id}/tracks/order.
// The caller supplies the full ordering; it is applied atomically.
func ReorderTracks(cs store.CatalogStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		albumID := strings.TrimSpace(chi.URLParam(r, "album_id"))

		a, err := cs.AlbumByID(r.Context(), albumID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				api.NotFound(w, "NOT_FOUND", "album not found", "")
				return
			}
			api.Internal(w, "")
			return
		}
		if !bandForAlbumWrite(w, r, cs, a.BandID) {
			return
		}

		var req reorderRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
			api.BadRequest(w, "INVALID_JSON", "invalid JSON", "", nil)
			return
		}
		if len(req.TrackIDs) == 0 {
			api.BadRequest(w, "EMPTY_ORDER", "track_ids must not be empty", "", nil)
			return
		}

		if err := cs.ReorderTracks(r.Context(), albumID, req.TrackIDs); err != nil {
			if errors.Is(err, store.ErrTrackMismatch) {
				api.UnprocessableEntity(w, "TRACK_MISMATCH", "track_ids must name exactly the album's tracks", "", nil)
				return
			}
			api.Internal(w, "")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// StreamTrack handles GET /v1/tracks/{track_id}/stream: 302 to a
// short-lived signed storage URL. Unpublished albums stream only for the
// band owner.
func StreamTrack(cs store.CatalogStore, signer *signing.Signer, storageBaseURL string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		trackID := strings.TrimSpace(chi.URLParam(r, "track_id"))

		t, err := cs.TrackByID(r.Context(), trackID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				api.NotFound(w, "NOT_FOUND", "track not found", "")
				return
			}
			api.Internal(w, "")
			return
		}
		if t.ObjectBucket == "" || t.ObjectPath == "" {
			api.NotFound(w, "NOT_FOUND", "track not found", "")
			return
		}

		a, err := cs.AlbumByID(r.Context(), t.AlbumID)
		if err != nil {
			api.Internal(w, "")
			return
		}
		if !a.Published {
			b, err := cs.BandByID(r.Context(), a.BandID)
			if err != nil || !ownsBand(r, b) {
				api.NotFound(w, "NOT_FOUND", "track not found", "")
				return
			}
		}

		signed := signer.Sign(t.ObjectBucket, t.ObjectPath, time.Now().Add(streamURLTTL))
		dst, err := signing.BuildSignedURL(storageBaseURL, signed)
		if err != nil {
			api.Internal(w, "")
			return
		}
		http.Redirect(w, r, dst, http.StatusFound)
	}
}
