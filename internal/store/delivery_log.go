package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// historyCap bounds the per-subscription attempt history kept in Redis.
const historyCap = 100

// DeliveryRecord is one outbound delivery attempt, success or failure.
type DeliveryRecord struct {
	Status      string    `json:"status"`
	HTTPStatus  *int      `json:"http_status,omitempty"`
	Error       string    `json:"error,omitempty"`
	DurationMs  int64     `json:"duration_ms"`
	DeliveredAt time.Time `json:"delivered_at"`
}

// DeliveryLog keeps a capped, newest-first history of delivery attempts
// per subscription in Redis.
type DeliveryLog struct {
	client *redis.Client
}

func NewDeliveryLog(ctx context.Context, redisURL string) (*DeliveryLog, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis URL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("pinging redis: %w", err)
	}

	return &DeliveryLog{client: client}, nil
}

// NewDeliveryLogWithClient wraps an existing client. Used by tests.
func NewDeliveryLogWithClient(client *redis.Client) *DeliveryLog {
	return &DeliveryLog{client: client}
}

func (l *DeliveryLog) Close() error {
	return l.client.Close()
}

func deliveryKey(subscriptionID int64) string {
	return fmt.Sprintf("deliveries:%d", subscriptionID)
}

// Record prepends an attempt to the subscription's history and trims it
// to the cap.
func (l *DeliveryLog) Record(ctx context.Context, subscriptionID int64, rec DeliveryRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshaling delivery record: %w", err)
	}

	key := deliveryKey(subscriptionID)
	pipe := l.client.TxPipeline()
	pipe.LPush(ctx, key, data)
	pipe.LTrim(ctx, key, 0, historyCap-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("recording delivery attempt: %w", err)
	}
	return nil
}

// List returns up to limit attempts, newest first.
func (l *DeliveryLog) List(ctx context.Context, subscriptionID int64, limit int) ([]DeliveryRecord, error) {
	if limit <= 0 {
		return []DeliveryRecord{}, nil
	}

	raw, err := l.client.LRange(ctx, deliveryKey(subscriptionID), 0, int64(limit)-1).Result()
	if err != nil {
		return nil, fmt.Errorf("listing delivery attempts: %w", err)
	}

	records := make([]DeliveryRecord, 0, len(raw))
	for _, item := range raw {
		var rec DeliveryRecord
		if err := json.Unmarshal([]byte(item), &rec); err != nil {
			return nil, fmt.Errorf("unmarshaling delivery record: %w", err)
		}
		records = append(records, rec)
	}

	return records, nil
}

// Drop removes the subscription's entire history. Called when the
// subscription itself is deleted.
func (l *DeliveryLog) Drop(ctx context.Context, subscriptionID int64) error {
	if err := l.client.Del(ctx, deliveryKey(subscriptionID)).Err(); err != nil {
		return fmt.Errorf("dropping delivery history: %w", err)
	}
	return nil
}
