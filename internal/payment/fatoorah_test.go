package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/binaahub/binna/internal/model"
)

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

func TestMapInvoiceStatus(t *testing.T) {
	tests := []struct {
		in   string
		want model.InvoiceStatus
	}{
		{"Paid", model.InvoiceStatusPaid},
		{"paid", model.InvoiceStatusPaid},
		{"Failed", model.InvoiceStatusFailed},
		{"Expired", model.InvoiceStatusFailed},
		{"Pending", model.InvoiceStatusPending},
		{"", model.InvoiceStatusPending},
		{"Unknown", model.InvoiceStatusPending},
	}
	for _, tt := range tests {
		if got := MapInvoiceStatus(tt.in); got != tt.want {
			t.Errorf("MapInvoiceStatus(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestClient_GetPaymentStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v2/GetPaymentStatus" {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["Key"] != "pay-123" || body["KeyType"] != "PaymentId" {
			t.Errorf("body = %v", body)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"IsSuccess":true,"Message":"","Data":{"InvoiceId":987654,"InvoiceStatus":"Paid","CustomerReference":"inv-1","InvoiceValue":125.5,"InvoiceTransactions":[{"PaymentId":"pay-123","TransactionStatus":"Succss"}]}}`))
	}))
	defer server.Close()

	var buf bytes.Buffer
	c := NewClient(server.Client(), newTestLogger(&buf), server.URL+"/", "test-key")

	status, err := c.GetPaymentStatus(context.Background(), "pay-123")
	if err != nil {
		t.Fatalf("GetPaymentStatus returned error: %v", err)
	}
	if status.GatewayInvoiceID != "987654" || status.CustomerReference != "inv-1" || status.PaymentID != "pay-123" {
		t.Errorf("status = %+v", status)
	}
	if status.Status() != model.InvoiceStatusPaid {
		t.Errorf("Status() = %s", status.Status())
	}
}

func TestClient_GetInvoiceStatus_UsesLastTransaction(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["KeyType"] != "InvoiceId" {
			t.Errorf("KeyType = %q", body["KeyType"])
		}
		w.Write([]byte(`{"IsSuccess":true,"Data":{"InvoiceId":1,"InvoiceStatus":"Pending","InvoiceTransactions":[{"PaymentId":"a"},{"PaymentId":"b"}]}}`))
	}))
	defer server.Close()

	var buf bytes.Buffer
	c := NewClient(server.Client(), newTestLogger(&buf), server.URL, "k")
	status, err := c.GetInvoiceStatus(context.Background(), "1")
	if err != nil {
		t.Fatal(err)
	}
	if status.PaymentID != "b" {
		t.Errorf("PaymentID = %q, want b", status.PaymentID)
	}
}

func TestClient_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"not success", http.StatusOK, `{"IsSuccess":false,"Message":"Invalid key"}`},
		{"http error", http.StatusUnauthorized, `{"IsSuccess":false,"Message":"Unauthorized"}`},
		{"not json", http.StatusBadGateway, `<html>bad gateway</html>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			var buf bytes.Buffer
			c := NewClient(server.Client(), newTestLogger(&buf), server.URL, "k")
			_, err := c.GetPaymentStatus(context.Background(), "p")
			if !errors.Is(err, ErrGateway) {
				t.Errorf("err = %v, want ErrGateway", err)
			}
		})
	}
}

func TestClient_SendPayment(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/SendPayment" {
			t.Errorf("path = %s", r.URL.Path)
		}
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		if body["InvoiceValue"] != 125.5 {
			t.Errorf("InvoiceValue = %v, want 125.5", body["InvoiceValue"])
		}
		if body["CustomerReference"] != "inv-1" || body["NotificationOption"] != "LNK" {
			t.Errorf("body = %v", body)
		}
		w.Write([]byte(`{"IsSuccess":true,"Data":{"InvoiceId":555,"InvoiceURL":"https://pay.example.com/555"}}`))
	}))
	defer server.Close()

	var buf bytes.Buffer
	c := NewClient(server.Client(), newTestLogger(&buf), server.URL, "k")
	link, err := c.SendPayment(context.Background(), PaymentLinkRequest{InvoiceID: "inv-1", Amount: 12550, Currency: "SAR"})
	if err != nil {
		t.Fatalf("SendPayment returned error: %v", err)
	}
	if link.GatewayInvoiceID != "555" || link.URL != "https://pay.example.com/555" {
		t.Errorf("link = %+v", link)
	}
}
