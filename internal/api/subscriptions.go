package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/subrelay/subscription-relay/internal/domain"
)

type SubscriptionHandler struct {
	store     SubscriptionStore
	deliverer Deliverer
	history   DeliveryHistory
	logger    *slog.Logger
}

func NewSubscriptionHandler(s SubscriptionStore, d Deliverer, h DeliveryHistory, logger *slog.Logger) *SubscriptionHandler {
	return &SubscriptionHandler{store: s, deliverer: d, history: h, logger: logger}
}

func subscriptionID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil
}

func (h *SubscriptionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateSubscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.NotificationURL == "" {
		respondError(w, http.StatusBadRequest, "notification_url is required")
		return
	}

	sub, err := h.store.CreateSubscription(r.Context(), req)
	if err != nil {
		h.logger.Error("failed to create subscription", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to create subscription")
		return
	}

	respondJSON(w, http.StatusCreated, sub)
}

func (h *SubscriptionHandler) List(w http.ResponseWriter, r *http.Request) {
	subs, err := h.store.ListSubscriptions(r.Context())
	if err != nil {
		h.logger.Error("failed to list subscriptions", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to list subscriptions")
		return
	}

	respondJSON(w, http.StatusOK, subs)
}

func (h *SubscriptionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := subscriptionID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid subscription id")
		return
	}

	sub, err := h.store.GetSubscription(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to get subscription", "error", err, "subscription_id", id)
		respondError(w, http.StatusInternalServerError, "failed to get subscription")
		return
	}
	if sub == nil {
		respondError(w, http.StatusNotFound, "Subscription not found")
		return
	}

	respondJSON(w, http.StatusOK, sub)
}

func (h *SubscriptionHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := subscriptionID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid subscription id")
		return
	}

	var req domain.UpdateSubscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sub, err := h.store.UpdateSubscription(r.Context(), id, req)
	if err != nil {
		h.logger.Error("failed to update subscription", "error", err, "subscription_id", id)
		respondError(w, http.StatusInternalServerError, "failed to update subscription")
		return
	}
	if sub == nil {
		respondError(w, http.StatusNotFound, "Subscription not found")
		return
	}

	respondJSON(w, http.StatusOK, sub)
}

func (h *SubscriptionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := subscriptionID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid subscription id")
		return
	}

	deleted, err := h.store.DeleteSubscription(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to delete subscription", "error", err, "subscription_id", id)
		respondError(w, http.StatusInternalServerError, "failed to delete subscription")
		return
	}
	if !deleted {
		respondError(w, http.StatusNotFound, "Subscription not found")
		return
	}

	// The attempt history is meaningless without the row.
	if err := h.history.Drop(r.Context(), id); err != nil {
		h.logger.Error("failed to drop delivery history", "error", err, "subscription_id", id)
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *SubscriptionHandler) Notify(w http.ResponseWriter, r *http.Request) {
	id, ok := subscriptionID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid subscription id")
		return
	}

	sub, err := h.store.GetSubscription(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to get subscription", "error", err, "subscription_id", id)
		respondError(w, http.StatusInternalServerError, "failed to get subscription")
		return
	}
	if sub == nil {
		respondError(w, http.StatusNotFound, "Subscription not found")
		return
	}
	if !sub.IsActive {
		respondError(w, http.StatusBadRequest, "Inactive subscription")
		return
	}

	if err := h.deliverer.Deliver(r.Context(), sub); err != nil {
		respondError(w, http.StatusInternalServerError, "Notification failed: "+err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": "Notification sent successfully"})
}

func (h *SubscriptionHandler) Deliveries(w http.ResponseWriter, r *http.Request) {
	id, ok := subscriptionID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid subscription id")
		return
	}

	sub, err := h.store.GetSubscription(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to get subscription", "error", err, "subscription_id", id)
		respondError(w, http.StatusInternalServerError, "failed to get subscription")
		return
	}
	if sub == nil {
		respondError(w, http.StatusNotFound, "Subscription not found")
		return
	}

	limit := 20
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if n, err := strconv.Atoi(limitStr); err == nil && n > 0 {
			limit = n
		}
	}

	records, err := h.history.List(r.Context(), id, limit)
	if err != nil {
		h.logger.Error("failed to list delivery history", "error", err, "subscription_id", id)
		respondError(w, http.StatusInternalServerError, "failed to list delivery history")
		return
	}

	respondJSON(w, http.StatusOK, records)
}
