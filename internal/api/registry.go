package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/subrelay/subscription-relay/internal/auth"
	"github.com/subrelay/subscription-relay/internal/domain"
	"github.com/subrelay/subscription-relay/internal/store"
)

// SubscriptionStore is the registry's persistence surface. Get and
// Update return nil without an error for unknown ids; Delete reports
// whether a row was removed.
type SubscriptionStore interface {
	CreateSubscription(ctx context.Context, req domain.CreateSubscriptionRequest) (*domain.Subscription, error)
	GetSubscription(ctx context.Context, id int64) (*domain.Subscription, error)
	ListSubscriptions(ctx context.Context) ([]domain.Subscription, error)
	UpdateSubscription(ctx context.Context, id int64, req domain.UpdateSubscriptionRequest) (*domain.Subscription, error)
	DeleteSubscription(ctx context.Context, id int64) (bool, error)
}

// Deliverer performs one blocking outbound notification POST.
type Deliverer interface {
	Deliver(ctx context.Context, sub *domain.Subscription) error
}

// DeliveryHistory exposes the recorded attempt history per subscription.
type DeliveryHistory interface {
	List(ctx context.Context, subscriptionID int64, limit int) ([]store.DeliveryRecord, error)
	Drop(ctx context.Context, subscriptionID int64) error
}

// NewRegistryRouter creates the registry service's HTTP router. All
// subscription routes require a valid credential; /health does not.
func NewRegistryRouter(subs SubscriptionStore, deliverer Deliverer, history DeliveryHistory, validator auth.TokenValidator, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	h := NewSubscriptionHandler(subs, deliverer, history, logger)

	r.Get("/health", RegistryHealthHandler())

	r.Route("/subscriptions", func(r chi.Router) {
		r.Use(auth.RequireToken(validator))

		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Get("/{id}", h.Get)
		r.Patch("/{id}", h.Update)
		r.Delete("/{id}", h.Delete)
		r.Post("/{id}/notify", h.Notify)
		r.Get("/{id}/deliveries", h.Deliveries)
	})

	return r
}

// RegistryHealthHandler returns the registry's health check handler.
func RegistryHealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{
			"status":  "healthy",
			"version": "1.0.0",
		})
	}
}
