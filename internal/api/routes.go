package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"taxigrid/internal/dispatch"
	"taxigrid/internal/metrics"
)

// AttachRoutes wires HTTP routes to handlers.
func AttachRoutes(r chi.Router, store *dispatch.Store, hub *dispatch.Hub) {
	handler := &Handler{store: store, hub: hub}

	r.Get("/health", handler.Health)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api", func(ar chi.Router) {
		ar.Post("/route", handler.Route)
		ar.Post("/book-taxi", handler.BookTaxi)
		ar.Post("/start-ride", handler.StartRide)
		ar.Get("/taxis", handler.ListTaxis)
		ar.Get("/events", handler.ListEvents)
	})

	r.Get("/ws/{topic}", handler.Websocket)
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		json.NewEncoder(w).Encode(body)
	}
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}
