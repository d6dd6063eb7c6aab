package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/subrelay/subscription-relay/internal/auth"
	"github.com/subrelay/subscription-relay/internal/domain"
	"github.com/subrelay/subscription-relay/internal/store"
)

const testToken = "test-token"

type fakeSubscriptionStore struct {
	mu      sync.Mutex
	nextID  int64
	subs    map[int64]domain.Subscription
	touches int
}

func newFakeStore() *fakeSubscriptionStore {
	return &fakeSubscriptionStore{subs: map[int64]domain.Subscription{}}
}

func (f *fakeSubscriptionStore) CreateSubscription(_ context.Context, req domain.CreateSubscriptionRequest) (*domain.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.touches++

	f.nextID++
	sub := domain.Subscription{
		ID:              f.nextID,
		NotificationURL: req.NotificationURL,
		EventType:       req.EventType,
		CreatedAt:       time.Now().UTC(),
		IsActive:        true,
	}
	f.subs[sub.ID] = sub
	return &sub, nil
}

func (f *fakeSubscriptionStore) GetSubscription(_ context.Context, id int64) (*domain.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.touches++

	sub, ok := f.subs[id]
	if !ok {
		return nil, nil
	}
	return &sub, nil
}

func (f *fakeSubscriptionStore) ListSubscriptions(_ context.Context) ([]domain.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.touches++

	subs := []domain.Subscription{}
	for id := int64(1); id <= f.nextID; id++ {
		if sub, ok := f.subs[id]; ok {
			subs = append(subs, sub)
		}
	}
	return subs, nil
}

func (f *fakeSubscriptionStore) UpdateSubscription(_ context.Context, id int64, req domain.UpdateSubscriptionRequest) (*domain.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.touches++

	sub, ok := f.subs[id]
	if !ok {
		return nil, nil
	}
	if req.NotificationURL != nil {
		sub.NotificationURL = *req.NotificationURL
	}
	if req.EventTypeSet {
		sub.EventType = req.EventType
	}
	if req.IsActive != nil {
		sub.IsActive = *req.IsActive
	}
	f.subs[id] = sub
	return &sub, nil
}

func (f *fakeSubscriptionStore) DeleteSubscription(_ context.Context, id int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.touches++

	if _, ok := f.subs[id]; !ok {
		return false, nil
	}
	delete(f.subs, id)
	return true, nil
}

type fakeDeliverer struct {
	mu        sync.Mutex
	err       error
	delivered []domain.Subscription
}

func (f *fakeDeliverer) Deliver(_ context.Context, sub *domain.Subscription) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.delivered = append(f.delivered, *sub)
	return nil
}

type fakeHistory struct {
	mu      sync.Mutex
	records map[int64][]store.DeliveryRecord
	dropped []int64
}

func newFakeHistory() *fakeHistory {
	return &fakeHistory{records: map[int64][]store.DeliveryRecord{}}
}

func (f *fakeHistory) List(_ context.Context, id int64, limit int) ([]store.DeliveryRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	records := f.records[id]
	if limit < len(records) {
		records = records[:limit]
	}
	out := make([]store.DeliveryRecord, len(records))
	copy(out, records)
	return out, nil
}

func (f *fakeHistory) Drop(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.records, id)
	f.dropped = append(f.dropped, id)
	return nil
}

type registryFixture struct {
	router    http.Handler
	store     *fakeSubscriptionStore
	deliverer *fakeDeliverer
	history   *fakeHistory
}

func newRegistryFixture(t *testing.T) *registryFixture {
	t.Helper()

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	f := &registryFixture{
		store:     newFakeStore(),
		deliverer: &fakeDeliverer{},
		history:   newFakeHistory(),
	}
	f.router = NewRegistryRouter(f.store, f.deliverer, f.history, auth.NewStaticTokenValidator(testToken), logger)
	return f
}

func (f *registryFixture) request(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	r := httptest.NewRequest(method, path, reader)
	r.Header.Set("Authorization", "Bearer "+testToken)

	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, r)
	return w
}

func (f *registryFixture) create(t *testing.T, body string) domain.Subscription {
	t.Helper()

	w := f.request(t, http.MethodPost, "/subscriptions/", body)
	if w.Code != http.StatusCreated {
		t.Fatalf("create returned %d: %s", w.Code, w.Body)
	}
	var sub domain.Subscription
	if err := json.Unmarshal(w.Body.Bytes(), &sub); err != nil {
		t.Fatalf("decoding created subscription: %v", err)
	}
	return sub
}

func TestRegistry_RequiresCredential(t *testing.T) {
	f := newRegistryFixture(t)

	requests := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/subscriptions/"},
		{http.MethodPost, "/subscriptions/"},
		{http.MethodGet, "/subscriptions/1"},
		{http.MethodPatch, "/subscriptions/1"},
		{http.MethodDelete, "/subscriptions/1"},
		{http.MethodPost, "/subscriptions/1/notify"},
		{http.MethodGet, "/subscriptions/1/deliveries"},
	}

	for _, req := range requests {
		t.Run(req.method+" "+req.path, func(t *testing.T) {
			r := httptest.NewRequest(req.method, req.path, nil)
			w := httptest.NewRecorder()
			f.router.ServeHTTP(w, r)

			if w.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", w.Code)
			}
		})
	}

	// A wrong credential is also rejected.
	r := httptest.NewRequest(http.MethodGet, "/subscriptions/", nil)
	r.Header.Set("Authorization", "Bearer wrong")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, r)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token status = %d, want 401", w.Code)
	}

	if f.store.touches != 0 {
		t.Errorf("store was touched %d times by unauthorized requests, want 0", f.store.touches)
	}
}

func TestRegistry_HealthIsOpen(t *testing.T) {
	f := newRegistryFixture(t)

	r := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Errorf("health status = %d, want 200", w.Code)
	}
}

func TestRegistry_CreateAndList(t *testing.T) {
	f := newRegistryFixture(t)

	sub := f.create(t, `{"notification_url":"http://localhost:8001/receive","event_type":"order.created"}`)

	if sub.ID == 0 {
		t.Error("created subscription has no id")
	}
	if !sub.IsActive {
		t.Error("created subscription should default to active")
	}
	if sub.NotificationURL != "http://localhost:8001/receive" {
		t.Errorf("notification_url = %q", sub.NotificationURL)
	}
	if sub.EventType == nil || *sub.EventType != "order.created" {
		t.Errorf("event_type = %v, want order.created", sub.EventType)
	}

	w := f.request(t, http.MethodGet, "/subscriptions/", "")
	if w.Code != http.StatusOK {
		t.Fatalf("list returned %d", w.Code)
	}
	var subs []domain.Subscription
	if err := json.Unmarshal(w.Body.Bytes(), &subs); err != nil {
		t.Fatalf("decoding list: %v", err)
	}
	if len(subs) != 1 || subs[0].ID != sub.ID {
		t.Errorf("list = %+v, want the created subscription", subs)
	}
}

func TestRegistry_CreateAssignsUniqueIDs(t *testing.T) {
	f := newRegistryFixture(t)

	a := f.create(t, `{"notification_url":"http://a.example"}`)
	b := f.create(t, `{"notification_url":"http://b.example"}`)

	if a.ID == b.ID {
		t.Errorf("both subscriptions got id %d", a.ID)
	}
}

func TestRegistry_CreateValidation(t *testing.T) {
	f := newRegistryFixture(t)

	tests := []struct {
		name string
		body string
	}{
		{"missing notification_url", `{"event_type":"test"}`},
		{"empty notification_url", `{"notification_url":""}`},
		{"malformed json", `{"notification_url":`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.request(t, http.MethodPost, "/subscriptions/", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
		})
	}
}

func TestRegistry_ListEmptyIsArray(t *testing.T) {
	f := newRegistryFixture(t)

	w := f.request(t, http.MethodGet, "/subscriptions/", "")
	if w.Code != http.StatusOK {
		t.Fatalf("list returned %d", w.Code)
	}
	if got := strings.TrimSpace(w.Body.String()); got != "[]" {
		t.Errorf("empty list body = %q, want []", got)
	}
}

func TestRegistry_UpdatePartial(t *testing.T) {
	f := newRegistryFixture(t)
	sub := f.create(t, `{"notification_url":"http://localhost:8001/receive","event_type":"order.created"}`)

	w := f.request(t, http.MethodPatch, fmt.Sprintf("/subscriptions/%d", sub.ID), `{"event_type":"order.updated"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("update returned %d: %s", w.Code, w.Body)
	}

	var updated domain.Subscription
	if err := json.Unmarshal(w.Body.Bytes(), &updated); err != nil {
		t.Fatalf("decoding updated subscription: %v", err)
	}

	if updated.EventType == nil || *updated.EventType != "order.updated" {
		t.Errorf("event_type = %v, want order.updated", updated.EventType)
	}
	// Untouched fields survive a partial update.
	if updated.NotificationURL != sub.NotificationURL {
		t.Errorf("notification_url changed to %q", updated.NotificationURL)
	}
	if updated.IsActive != sub.IsActive {
		t.Errorf("is_active changed to %v", updated.IsActive)
	}
}

func TestRegistry_UpdateNullClearsEventType(t *testing.T) {
	f := newRegistryFixture(t)
	sub := f.create(t, `{"notification_url":"http://localhost:8001/receive","event_type":"order.created"}`)

	path := fmt.Sprintf("/subscriptions/%d", sub.ID)

	// An explicit null clears the filter.
	w := f.request(t, http.MethodPatch, path, `{"event_type":null}`)
	if w.Code != http.StatusOK {
		t.Fatalf("update returned %d: %s", w.Code, w.Body)
	}
	var updated domain.Subscription
	if err := json.Unmarshal(w.Body.Bytes(), &updated); err != nil {
		t.Fatalf("decoding updated subscription: %v", err)
	}
	if updated.EventType != nil {
		t.Errorf("event_type = %q after null update, want cleared", *updated.EventType)
	}
	if updated.NotificationURL != sub.NotificationURL {
		t.Errorf("notification_url changed to %q", updated.NotificationURL)
	}

	// An absent key leaves an existing filter untouched.
	sub2 := f.create(t, `{"notification_url":"http://localhost:8001/receive","event_type":"order.updated"}`)
	w = f.request(t, http.MethodPatch, fmt.Sprintf("/subscriptions/%d", sub2.ID), `{"is_active":false}`)
	if w.Code != http.StatusOK {
		t.Fatalf("update returned %d: %s", w.Code, w.Body)
	}
	if err := json.Unmarshal(w.Body.Bytes(), &updated); err != nil {
		t.Fatalf("decoding updated subscription: %v", err)
	}
	if updated.EventType == nil || *updated.EventType != "order.updated" {
		t.Errorf("event_type = %v, want order.updated left untouched", updated.EventType)
	}
}

func TestRegistry_UpdateNotFound(t *testing.T) {
	f := newRegistryFixture(t)

	w := f.request(t, http.MethodPatch, "/subscriptions/999", `{"is_active":false}`)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestRegistry_DeleteTwice(t *testing.T) {
	f := newRegistryFixture(t)
	sub := f.create(t, `{"notification_url":"http://localhost:8001/receive"}`)

	path := fmt.Sprintf("/subscriptions/%d", sub.ID)

	w := f.request(t, http.MethodDelete, path, "")
	if w.Code != http.StatusNoContent {
		t.Fatalf("first delete returned %d, want 204", w.Code)
	}
	if w.Body.Len() != 0 {
		t.Errorf("delete body = %q, want empty", w.Body)
	}

	w = f.request(t, http.MethodDelete, path, "")
	if w.Code != http.StatusNotFound {
		t.Errorf("second delete returned %d, want 404", w.Code)
	}
}

func TestRegistry_DeleteDropsHistory(t *testing.T) {
	f := newRegistryFixture(t)
	sub := f.create(t, `{"notification_url":"http://localhost:8001/receive"}`)

	w := f.request(t, http.MethodDelete, fmt.Sprintf("/subscriptions/%d", sub.ID), "")
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete returned %d", w.Code)
	}

	if len(f.history.dropped) != 1 || f.history.dropped[0] != sub.ID {
		t.Errorf("dropped history ids = %v, want [%d]", f.history.dropped, sub.ID)
	}
}

func TestRegistry_NotifySuccess(t *testing.T) {
	f := newRegistryFixture(t)
	sub := f.create(t, `{"notification_url":"http://localhost:8001/receive"}`)

	w := f.request(t, http.MethodPost, fmt.Sprintf("/subscriptions/%d/notify", sub.ID), "")
	if w.Code != http.StatusOK {
		t.Fatalf("notify returned %d: %s", w.Code, w.Body)
	}
	if !strings.Contains(w.Body.String(), "Notification sent successfully") {
		t.Errorf("body = %s, want success message", w.Body)
	}

	if len(f.deliverer.delivered) != 1 || f.deliverer.delivered[0].ID != sub.ID {
		t.Errorf("delivered = %+v, want one delivery for id %d", f.deliverer.delivered, sub.ID)
	}
}

func TestRegistry_NotifyInactive(t *testing.T) {
	f := newRegistryFixture(t)
	sub := f.create(t, `{"notification_url":"http://localhost:8001/receive"}`)

	w := f.request(t, http.MethodPatch, fmt.Sprintf("/subscriptions/%d", sub.ID), `{"is_active":false}`)
	if w.Code != http.StatusOK {
		t.Fatalf("deactivate returned %d", w.Code)
	}

	w = f.request(t, http.MethodPost, fmt.Sprintf("/subscriptions/%d/notify", sub.ID), "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("notify returned %d, want 400", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Inactive subscription") {
		t.Errorf("body = %s, want inactive detail", w.Body)
	}
	if len(f.deliverer.delivered) != 0 {
		t.Errorf("deliverer was called %d times for an inactive subscription", len(f.deliverer.delivered))
	}
}

func TestRegistry_NotifyNotFound(t *testing.T) {
	f := newRegistryFixture(t)

	w := f.request(t, http.MethodPost, "/subscriptions/999/notify", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestRegistry_NotifyDeliveryFailure(t *testing.T) {
	f := newRegistryFixture(t)
	f.deliverer.err = errors.New("endpoint returned status 500")
	sub := f.create(t, `{"notification_url":"http://localhost:8001/receive"}`)

	w := f.request(t, http.MethodPost, fmt.Sprintf("/subscriptions/%d/notify", sub.ID), "")
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Notification failed") {
		t.Errorf("body = %s, want delivery failure detail", w.Body)
	}
}

func TestRegistry_Deliveries(t *testing.T) {
	f := newRegistryFixture(t)
	sub := f.create(t, `{"notification_url":"http://localhost:8001/receive"}`)

	f.history.records[sub.ID] = []store.DeliveryRecord{
		{Status: "success", DeliveredAt: time.Now().UTC()},
		{Status: "failed", Error: "request failed", DeliveredAt: time.Now().UTC()},
	}

	w := f.request(t, http.MethodGet, fmt.Sprintf("/subscriptions/%d/deliveries", sub.ID), "")
	if w.Code != http.StatusOK {
		t.Fatalf("deliveries returned %d", w.Code)
	}

	var records []store.DeliveryRecord
	if err := json.Unmarshal(w.Body.Bytes(), &records); err != nil {
		t.Fatalf("decoding records: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}

	w = f.request(t, http.MethodGet, "/subscriptions/999/deliveries", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown id returned %d, want 404", w.Code)
	}
}
