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

type albumRequest struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	PriceMinor  int64  `json:"price_minor"`
	Currency    string `json:"currency"`
	Published   bool   `json:"published"`
}

type archiveRequest struct {
	Bucket string `json:"bucket"`
	Path   string `json:"path"`
}

// bandForAlbumWrite loads the album's band and enforces ownership.
func bandForAlbumWrite(w http.ResponseWriter, r *http.Request, cs store.CatalogStore, bandID string) bool {
	b, err := cs.BandByID(r.Context(), bandID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			api.NotFound(w, "NOT_FOUND", "band not found", "")
			return false
		}
		api.Internal(w, "")
		return false
	}
	if !ownsBand(r, b) {
		api.Forbidden(w, "FORBIDDEN", "not the band owner", "")
		return false
	}
	return true
}

// CreateAlbum handles POST /v1/bands/{band_id}/albums
func CreateAlbum(cs store.CatalogStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		bandID := strings.TrimSpace(chi.URLParam(r, "band_id"))
		if !bandForAlbumWrite(w, r, cs, bandID) {
			return
		}

		var req albumRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
			api.BadRequest(w, "INVALID_JSON", "invalid JSON", "", nil)
			return
		}
		if strings.TrimSpace(req.Title) == "" {
			api.BadRequest(w, "EMPTY_TITLE", "title must not be empty", "", nil)
			return
		}
		if req.PriceMinor <= 0 {
			api.BadRequest(w, "INVALID_PRICE", "price_minor must be positive", "", nil)
			return
		}
		currency := strings.ToLower(strings.TrimSpace(req.Currency))
		if currency == "" {
			currency = "sek"
		}

		created, err := cs.CreateAlbum(r.Context(), store.Album{
			BandID:      bandID,
			Title:       strings.TrimSpace(req.Title),
			Description: strings.TrimSpace(req.Description),
			PriceMinor:  req.PriceMinor,
			Currency:    currency,
			Published:   req.Published,
		})
		if err != nil {
			api.Internal(w, "")
			return
		}
		api.WriteJSON(w, http.StatusCreated, created)
	}
}

// UpdateAlbum handles PUT /v1/albums/{album_id}
func UpdateAlbum(cs store.CatalogStore) http.HandlerFunc {
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

		var req albumRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
			api.BadRequest(w, "INVALID_JSON", "invalid JSON", "", nil)
			return
		}
		if strings.TrimSpace(req.Title) == "" {
			api.BadRequest(w, "EMPTY_TITLE", "title must not be empty", "", nil)
			return
		}
		if req.PriceMinor <= 0 {
			api.BadRequest(w, "INVALID_PRICE", "price_minor must be positive", "", nil)
			return
		}

		a.Title = strings.TrimSpace(req.Title)
		a.Description = strings.TrimSpace(req.Description)
		a.PriceMinor = req.PriceMinor
		if c := strings.ToLower(strings.TrimSpace(req.Currency)); c != "" {
			a.Currency = c
		}
		a.Published = req.Published

		updated, err := cs.UpdateAlbum(r.Context(), a)
		if err != nil {
			api.Internal(w, "")
			return
		}
		api.WriteJSON(w, http.StatusOK, updated)
	}
}

// GetAlbum handles GET /v1/albums/{album_id}
func GetAlbum(cs store.CatalogStore) http.HandlerFunc {
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
		api.WriteJSON(w, http.StatusOK, a)
	}
}

// ListBandAlbums handles GET /v1/bands/{band_id}/albums
func ListBandAlbums(cs store.CatalogStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		bandID := strings.TrimSpace(chi.URLParam(r, "band_id"))

		albums, err := cs.ListAlbumsByBand(r.Context(), bandID)
		if err != nil {
			api.Internal(w, "")
			return
		}
		api.WriteJSON(w, http.StatusOK, map[string]any{"albums": albums})
	}
}

// SetAlbumArchive handles PUT /v1/albums/{album_id}/archive.
// The archive address makes the album deliverable; commerce refuses to
// fulfill purchases until it is set.
func SetAlbumArchive(cs store.CatalogStore) http.HandlerFunc {
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

		var req archiveRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
			api.BadRequest(w, "INVALID_JSON", "invalid JSON", "", nil)
			return
		}
		if strings.TrimSpace(req.Bucket) == "" || strings.TrimSpace(req.Path) == "" {
			api.BadRequest(w, "MISSING_ADDRESS", "bucket and path are required", "", nil)
			return
		}

		if err := cs.SetAlbumArchive(r.Context(), albumID, strings.TrimSpace(req.Bucket), strings.TrimSpace(req.Path)); err != nil {
			api.Internal(w, "")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// LikeAlbum handles PUT /v1/albums/{album_id}/like
func LikeAlbum(cs store.CatalogStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := auth.UserIDFromContext(r.Context())
		if !ok || userID == "" {
			api.Unauthorized(w, "UNAUTHORIZED", "authentication required", "")
			return
		}
		albumID := strings.TrimSpace(chi.URLParam(r, "album_id"))

		if _, err := cs.AlbumByID(r.Context(), albumID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				api.NotFound(w, "NOT_FOUND", "album not found", "")
				return
			}
			api.Internal(w, "")
			return
		}

		if err := cs.LikeAlbum(r.Context(), albumID, userID); err != nil {
			api.Internal(w, "")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// UnlikeAlbum handles DELETE /v1/albums/{album_id}/like
func UnlikeAlbum(cs store.CatalogStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := auth.UserIDFromContext(r.Context())
		if !ok || userID == "" {
			api.Unauthorized(w, "UNAUTHORIZED", "authentication required", "")
			return
		}
		albumID := strings.TrimSpace(chi.URLParam(r, "album_id"))

		if err := cs.UnlikeAlbum(r.Context(), albumID, userID); err != nil {
			api.Internal(w, "")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
