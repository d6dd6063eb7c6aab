package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Timestamp accepts RFC 3339 timestamps as well as the zone-less
// "2006-01-02T15:04:05" form some senders emit. Zone-less values are
// interpreted as UTC. It marshals back as RFC 3339.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("timestamp must be a string: %w", err)
	}
	for _, layout := range timestampLayouts {
		parsed, err := time.Parse(layout, s)
		if err == nil {
			t.Time = parsed.UTC()
			return nil
		}
	}
	return fmt.Errorf("invalid timestamp %q", s)
}

// Notification is the inbound payload the listener accepts on /receive.
// All four fields are required; UnmarshalJSON rejects payloads with any
// of them missing.
type Notification struct {
	Status         string    `json:"status"`
	SubscriptionID int64     `json:"subscription_id"`
	EventType      string    `json:"event_type"`
	Timestamp      Timestamp `json:"timestamp"`
}

func (n *Notification) UnmarshalJSON(data []byte) error {
	var wire struct {
		Status         *string    `json:"status"`
		SubscriptionID *int64     `json:"subscription_id"`
		EventType      *string    `json:"event_type"`
		Timestamp      *Timestamp `json:"timestamp"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	switch {
	case wire.Status == nil:
		return fmt.Errorf("status is required")
	case wire.SubscriptionID == nil:
		return fmt.Errorf("subscription_id is required")
	case wire.EventType == nil:
		return fmt.Errorf("event_type is required")
	case wire.Timestamp == nil:
		return fmt.Errorf("timestamp is required")
	}

	n.Status = *wire.Status
	n.SubscriptionID = *wire.SubscriptionID
	n.EventType = *wire.EventType
	n.Timestamp = *wire.Timestamp
	return nil
}
