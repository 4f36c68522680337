package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/moneytrail/apiserver/internal/services"
)

// DashboardRouter registers the summary route.
func DashboardRouter(r chi.Router, dashboard *services.DashboardService, authMiddleware func(http.Handler) http.Handler) {
	r.With(authMiddleware).Get("/", func(w http.ResponseWriter, r *http.Request) {
		user, ok := userFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		summary, err := dashboard.Summary(r.Context(), user.ID)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, summary)
	})
}
