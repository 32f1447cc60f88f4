package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/binaahub/binna/internal/model"
)

type mockNotificationRepo struct {
	created []*model.Notification
	err     error
}

func (m *mockNotificationRepo) Create(_ context.Context, n *model.Notification) error {
	if m.err != nil {
		return m.err
	}
	m.created = append(m.created, n)
	return nil
}

func (m *mockNotificationRepo) ListByUser(_ context.Context, userID string, _ int) ([]*model.Notification, error) {
	var out []*model.Notification
	for _, n := range m.created {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out, nil
}

type recordingPublisher struct {
	keys []string
	err  error
}

func (p *recordingPublisher) Publish(_ context.Context, key string, _ any) error {
	p.keys = append(p.keys, key)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

type observed struct {
	key string
	ok  bool
}

type recordingObserver struct {
	events []observed
}

func (o *recordingObserver) RecordEventPublished(key string, ok bool) {
	o.events = append(o.events, observed{key, ok})
}

func TestNotify_StoresNotification(t *testing.T) {
	repo := &mockNotificationRepo{}
	svc := NewService(repo, nil, nil, nil)

	n := svc.NewNotification("u-1", "order", "طلب جديد", "تم استلام طلب جديد")
	if err := svc.Notify(context.Background(), n); err != nil {
		t.Fatalf("Notify returned error: %v", err)
	}
	if len(repo.created) != 1 || repo.created[0].ID == "" {
		t.Fatalf("notification not stored: %+v", repo.created)
	}

	list, err := svc.List(context.Background(), "u-1", 10)
	if err != nil || len(list) != 1 {
		t.Errorf("List = %v, %v", list, err)
	}
}

func TestNotify_RepositoryError(t *testing.T) {
	svc := NewService(&mockNotificationRepo{err: errors.New("db down")}, nil, nil, nil)
	if err := svc.Notify(context.Background(), svc.NewNotification("u-1", "k", "t", "b")); err == nil {
		t.Error("expected error")
	}
}

func TestPublish_RecordsOutcomeAndSwallowsErrors(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	obs := &recordingObserver{}
	svc := NewService(&mockNotificationRepo{}, pub, nil, obs)

	svc.Publish(context.Background(), RoutingKeyOrderCreated, OrderCreatedEvent{OrderID: "o-1"})

	if len(pub.keys) != 1 || pub.keys[0] != RoutingKeyOrderCreated {
		t.Errorf("published keys = %v", pub.keys)
	}
	if len(obs.events) != 1 || obs.events[0].ok {
		t.Errorf("observed = %+v", obs.events)
	}
}

func TestNopPublisher(t *testing.T) {
	var p Publisher = NopPublisher{}
	if err := p.Publish(context.Background(), "x", nil); err != nil {
		t.Error(err)
	}
	if err := p.Close(); err != nil {
		t.Error(err)
	}
}

func TestSendStoreWebhook_PostsEvent(t *testing.T) {
	var got struct {
		Event string          `json:"event"`
		Data  json.RawMessage `json:"data"`
	}
	var header string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header = r.Header.Get("X-Binna-Event")
		b, _ := io.ReadAll(r.Body)
		json.Unmarshal(b, &got)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	sender := NewWebhookSender(server.Client(), nil)
	svc := NewService(&mockNotificationRepo{}, nil, sender, nil)

	svc.SendStoreWebhook(context.Background(), &model.Store{ID: "s-1", WebhookURL: server.URL}, RoutingKeyInvoicePaid, InvoicePaidEvent{InvoiceID: "inv-1"})

	if got.Event != RoutingKeyInvoicePaid || header != RoutingKeyInvoicePaid {
		t.Errorf("event = %q header = %q", got.Event, header)
	}
	var ev InvoicePaidEvent
	if err := json.Unmarshal(got.Data, &ev); err != nil || ev.InvoiceID != "inv-1" {
		t.Errorf("data = %s", got.Data)
	}
}

func TestWebhookSender_Errors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	sender := NewWebhookSender(server.Client(), nil)
	if err := sender.Send(context.Background(), server.URL, "e", nil); err == nil {
		t.Error("expected error for 500 response")
	}

	rejecting := NewWebhookSender(server.Client(), rejectAll{})
	if err := rejecting.Send(context.Background(), server.URL, "e", nil); err == nil {
		t.Error("expected validator rejection")
	}
}

func TestSendStoreWebhook_NoURL_NoRequest(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))
	defer server.Close()

	svc := NewService(&mockNotificationRepo{}, nil, NewWebhookSender(server.Client(), nil), nil)
	svc.SendStoreWebhook(context.Background(), &model.Store{ID: "s-1"}, "e", nil)

	if called {
		t.Error("no request expected without webhook url")
	}
}

type rejectAll struct{}

func (rejectAll) ValidateURL(string) error { return errors.New("blocked") }
