// Package deliver performs the registry's outbound notification POSTs.
// Delivery is a single synchronous call made inside the handling
// request; there is no queue and no retry.
package deliver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/subrelay/subscription-relay/internal/domain"
	"github.com/subrelay/subscription-relay/internal/store"
)

// AttemptRecorder receives the outcome of every delivery attempt.
type AttemptRecorder interface {
	Record(ctx context.Context, subscriptionID int64, rec store.DeliveryRecord) error
}

type Deliverer struct {
	httpClient *http.Client
	attempts   AttemptRecorder
	logger     *slog.Logger
}

func NewDeliverer(attempts AttemptRecorder, timeout time.Duration, logger *slog.Logger) *Deliverer {
	return &Deliverer{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		attempts: attempts,
		logger:   logger,
	}
}

// Deliver POSTs the notification payload to the subscription's stored
// URL and blocks until the endpoint responds or the transport fails. A
// response status of 400 or above counts as a failure. Every attempt is
// recorded; a recording failure is logged, never surfaced.
func (d *Deliverer) Deliver(ctx context.Context, sub *domain.Subscription) error {
	payload := domain.OutboundNotification{
		Status:         "success",
		SubscriptionID: sub.ID,
		EventType:      sub.EventType,
		Timestamp:      time.Now().UTC(),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling notification: %w", err)
	}

	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sub.NotificationURL, bytes.NewReader(body))
	if err != nil {
		failure := fmt.Errorf("building request: %w", err)
		d.recordAttempt(ctx, sub.ID, start, nil, failure.Error())
		return failure
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		failure := fmt.Errorf("request failed: %w", err)
		d.recordAttempt(ctx, sub.ID, start, nil, failure.Error())
		return failure
	}
	defer resp.Body.Close()

	// Drain so the connection can be reused.
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))

	if resp.StatusCode >= 400 {
		failure := fmt.Errorf("endpoint returned status %d", resp.StatusCode)
		d.recordAttempt(ctx, sub.ID, start, &resp.StatusCode, failure.Error())
		return failure
	}

	d.recordAttempt(ctx, sub.ID, start, &resp.StatusCode, "")
	return nil
}

func (d *Deliverer) recordAttempt(ctx context.Context, subscriptionID int64, start time.Time, statusCode *int, errMsg string) {
	elapsed := time.Since(start).Milliseconds()

	status := "success"
	if errMsg != "" {
		status = "failed"
	}

	err := d.attempts.Record(ctx, subscriptionID, store.DeliveryRecord{
		Status:      status,
		HTTPStatus:  statusCode,
		Error:       errMsg,
		DurationMs:  elapsed,
		DeliveredAt: time.Now().UTC(),
	})
	if err != nil {
		d.logger.Error("failed to record delivery attempt",
			"error", err,
			"subscription_id", subscriptionID,
		)
	}

	if status == "success" {
		d.logger.Info("delivery successful",
			"subscription_id", subscriptionID,
			"status_code", statusCode,
			"response_time_ms", elapsed,
		)
	} else {
		d.logger.Warn("delivery failed",
			"subscription_id", subscriptionID,
			"error", errMsg,
			"status_code", statusCode,
			"response_time_ms", elapsed,
		)
	}
}
