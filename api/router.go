// Package api exposes the read-only REST surface: health, the live room
// listing and engine runtime metrics.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"knibbles-server/game"
)

// NewAPIRouter builds the /api router with middlewares and routes.
func NewAPIRouter(engine *game.Engine) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]string{"status": "ok"})
	})

	r.Route("/v1", func(sub chi.Router) {
		sub.Get("/rooms", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, engine.RoomInfos())
		})
		sub.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, engine.Metrics.Snapshot())
		})
	})

	return r
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
