package domain

import (
	"encoding/json"
	"time"
)

type Subscription struct {
	ID              int64     `json:"id"`
	NotificationURL string    `json:"notification_url"`
	EventType       *string   `json:"event_type"`
	CreatedAt       time.Time `json:"created_at"`
	IsActive        bool      `json:"is_active"`
}

type CreateSubscriptionRequest struct {
	NotificationURL string  `json:"notification_url"`
	EventType       *string `json:"event_type,omitempty"`
}

// UpdateSubscriptionRequest is a partial update: unsupplied fields are
// left untouched. event_type needs presence tracking because an explicit
// null clears the filter, which a bare *string cannot distinguish from
// an absent key.
type UpdateSubscriptionRequest struct {
	NotificationURL *string
	EventType       *string
	EventTypeSet    bool
	IsActive        *bool
}

func (r *UpdateSubscriptionRequest) UnmarshalJSON(data []byte) error {
	var wire struct {
		NotificationURL *string         `json:"notification_url"`
		EventType       json.RawMessage `json:"event_type"`
		IsActive        *bool           `json:"is_active"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	r.NotificationURL = wire.NotificationURL
	r.IsActive = wire.IsActive
	r.EventType = nil
	r.EventTypeSet = wire.EventType != nil
	if r.EventTypeSet {
		if err := json.Unmarshal(wire.EventType, &r.EventType); err != nil {
			return err
		}
	}
	return nil
}

// OutboundNotification is the payload the registry POSTs to a
// subscription's notification URL.
type OutboundNotification struct {
	Status         string    `json:"status"`
	SubscriptionID int64     `json:"subscription_id"`
	EventType      *string   `json:"event_type"`
	Timestamp      time.Time `json:"timestamp"`
}
