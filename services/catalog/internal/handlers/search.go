package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/example/distro/internal/platform/api"
	"github.com/example/distro/services/catalog/internal/store"
)

// Search handles GET /v1/search?q=
func Search(cs store.CatalogStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := strings.TrimSpace(r.URL.Query().Get("q"))
		if q == "" {
			api.BadRequest(w, "MISSING_QUERY", "q is required", "", nil)
			return
		}

		limit := 20
		if l := r.URL.Query().Get("limit"); l != "" {
			if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 50 {
				limit = parsed
			}
		}

		res, err := cs.Search(r.Context(), q, limit)
		if err != nil {
			api.Internal(w, "")
			return
		}
		api.WriteJSON(w, http.StatusOK, res)
	}
}
