package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/subrelay/subscription-relay/internal/memlog"
)

// NewListenerRouter creates the listener service's HTTP router. The
// listener is open: no endpoint requires a credential.
func NewListenerRouter(log *memlog.Log, advertiseURL string, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))
	r.Use(corsMiddleware)

	h := NewNotificationHandler(log, advertiseURL, logger)

	r.Get("/", h.Health)
	r.Post("/receive", h.Receive)
	r.Get("/notifications", h.List)
	r.Delete("/notifications", h.Clear)

	return r
}

// corsMiddleware allows cross-origin access to the listener.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
