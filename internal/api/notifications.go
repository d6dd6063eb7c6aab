package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/subrelay/subscription-relay/internal/domain"
	"github.com/subrelay/subscription-relay/internal/memlog"
)

const defaultNotificationLimit = 10

type NotificationHandler struct {
	log          *memlog.Log
	advertiseURL string
	logger       *slog.Logger
}

func NewNotificationHandler(log *memlog.Log, advertiseURL string, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{log: log, advertiseURL: advertiseURL, logger: logger}
}

func (h *NotificationHandler) Receive(w http.ResponseWriter, r *http.Request) {
	var n domain.Notification
	if err := json.NewDecoder(r.Body).Decode(&n); err != nil {
		respondError(w, http.StatusBadRequest, "invalid notification payload: "+err.Error())
		return
	}

	entry := h.log.Append(n)

	h.logger.Info("notification received",
		"subscription_id", n.SubscriptionID,
		"event_type", n.EventType,
		"status", n.Status,
		"received_at", entry.ReceivedAt,
	)

	respondJSON(w, http.StatusOK, map[string]string{"message": "Notification processed successfully"})
}

// List returns the most recent limit entries, oldest of the window
// first. A limit at or below zero returns an empty array; a limit beyond
// the log size returns everything.
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := defaultNotificationLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if n, err := strconv.Atoi(limitStr); err == nil {
			limit = n
		}
	}

	respondJSON(w, http.StatusOK, h.log.Tail(limit))
}

func (h *NotificationHandler) Clear(w http.ResponseWriter, r *http.Request) {
	h.log.Clear()
	w.WriteHeader(http.StatusNoContent)
}

func (h *NotificationHandler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":       "active",
		"listening_on": h.advertiseURL,
		"endpoints": map[string]string{
			"receive":             "POST /receive",
			"get_notifications":   "GET /notifications",
			"clear_notifications": "DELETE /notifications",
		},
	})
}
