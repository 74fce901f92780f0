package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/habitflow/internal/habitservice"
	"github.com/starford/habitflow/internal/index"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *habitservice.Service, idx index.HabitIndex, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc, idx)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	r.Get("/habits", h.ListHabits)
	r.Post("/habits", h.CreateHabit)
	r.Post("/habits/{id}/toggle", h.ToggleHabit)

	r.Get("/today", h.Today)
	r.Get("/state", h.State)

	r.Get("/stats/week", h.WeekStats)
	r.Get("/stats/categories", h.CategoryStats)
	r.Get("/history", h.History)

	r.Get("/search", h.Search)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
