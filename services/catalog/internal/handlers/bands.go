// Package handlers exposes the catalog HTTP surface.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/example/distro/internal/platform/api"
	"github.com/example/distro/internal/platform/auth"
	"github.com/example/distro/services/catalog/internal/store"
)

type bandRequest struct {
	Name string `json:"name"`
	Bio  string `json:"bio,omitempty"`
}

// ownsBand reports whether the request user may manage the band.
func ownsBand(r *http.Request, b store.Band) bool {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok || userID == "" {
		return false
	}
	if role, ok := auth.RoleFromContext(r.Context()); ok && role == "admin" {
		return true
	}
	return b.OwnerUserID == userID
}

// CreateBand handles POST /v1/bands
func CreateBand(cs store.CatalogStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := auth.UserIDFromContext(r.Context())
		if !ok || userID == "" {
			api.Unauthorized(w, "UNAUTHORIZED", "authentication required", "")
			return
		}

		var req bandRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
			api.BadRequest(w, "INVALID_JSON", "invalid JSON", "", nil)
			return
		}
		if strings.TrimSpace(req.Name) == "" {
			api.BadRequest(w, "EMPTY_NAME", "name must not be empty", "", nil)
			return
		}

		created, err := cs.CreateBand(r.Context(), store.Band{
			OwnerUserID: userID,
			Name:        strings.TrimSpace(req.Name),
			Bio:         strings.TrimSpace(req.Bio),
		})
		if err != nil {
			api.Internal(w, "")
			return
		}
		api.WriteJSON(w, http.StatusCreated, created)
	}
}

// UpdateBand handles PUT /v1/bands/{band_id}
func UpdateBand(cs store.CatalogStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		bandID := strings.TrimSpace(chi.URLParam(r, "band_id"))

		b, err := cs.BandByID(r.Context(), bandID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				api.NotFound(w, "NOT_FOUND", "band not found", "")
				return
			}
			api.Internal(w, "")
			return
		}
		if !ownsBand(r, b) {
			api.Forbidden(w, "FORBIDDEN", "not the band owner", "")
			return
		}

		var req bandRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
			api.BadRequest(w, "INVALID_JSON", "invalid JSON", "", nil)
			return
		}
		if strings.TrimSpace(req.Name) == "" {
			api.BadRequest(w, "EMPTY_NAME", "name must not be empty", "", nil)
			return
		}

		b.Name = strings.TrimSpace(req.Name)
		b.Bio = strings.TrimSpace(req.Bio)
		updated, err := cs.UpdateBand(r.Context(), b)
		if err != nil {
			api.Internal(w, "")
			return
		}
		api.WriteJSON(w, http.StatusOK, updated)
	}
}

// GetBand handles GET /v1/bands/{band_id}
func GetBand(cs store.CatalogStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		bandID := strings.TrimSpace(chi.URLParam(r, "band_id"))

		b, err := cs.BandByID(r.Context(), bandID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				api.NotFound(w, "NOT_FOUND", "band not found", "")
				return
			}
			api.Internal(w, "")
			return
		}
		api.WriteJSON(w, http.StatusOK, b)
	}
}

// ListBands handles GET /v1/bands
func ListBands(cs store.CatalogStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 50
		if l := r.URL.Query().Get("limit"); l != "" {
			if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 100 {
				limit = parsed
			}
		}

		bands, err := cs.ListBands(r.Context(), limit)
		if err != nil {
			api.Internal(w, "")
			return
		}
		api.WriteJSON(w, http.StatusOK, map[string]any{"bands": bands})
	}
}
