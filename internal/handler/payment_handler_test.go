package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/binaahub/binna/internal/model"
	"github.com/binaahub/binna/internal/payment"
)

// --- モック定義 ---

type mockPaymentService struct {
	createLinkFn func(ctx context.Context, userID, invoiceID string) (*payment.PaymentLink, error)
	redirectFn   func(ctx context.Context, paymentID string) (*payment.Result, error)
	webhookFn    func(ctx context.Context, body []byte, signature string) (*payment.Result, error)
}

func (m *mockPaymentService) CreatePaymentLink(ctx context.Context, userID, invoiceID string) (*payment.PaymentLink, error) {
	if m.createLinkFn != nil {
		return m.createLinkFn(ctx, userID, invoiceID)
	}
	return nil, model.NewServiceUnavailableError("fatoorah")
}

func (m *mockPaymentService) HandleRedirect(ctx context.Context, paymentID string) (*payment.Result, error) {
	if m.redirectFn != nil {
		return m.redirectFn(ctx, paymentID)
	}
	return nil, model.NewPaymentGatewayError()
}

func (m *mockPaymentService) HandleWebhook(ctx context.Context, body []byte, signature string) (*payment.Result, error) {
	if m.webhookFn != nil {
		return m.webhookFn(ctx, body, signature)
	}
	return nil, model.NewInvalidSignatureError()
}

// --- Redirect ---

func TestPaymentHandler_Redirect_Targets(t *testing.T) {
	tests := []struct {
		name   string
		result *payment.Result
		err    error
		want   string
	}{
		{
			name:   "paid",
			result: &payment.Result{InvoiceID: "inv-1", Status: model.InvoiceStatusPaid, Changed: true},
			want:   "/payment/success?invoice=inv-1",
		},
		{
			name:   "pending",
			result: &payment.Result{InvoiceID: "inv-2", Status: model.InvoiceStatusPending},
			want:   "/payment/pending?invoice=inv-2",
		},
		{
			name:   "failed",
			result: &payment.Result{InvoiceID: "inv-3", Status: model.InvoiceStatusFailed},
			want:   "/payment/failed?invoice=inv-3",
		},
		{
			name: "gateway error",
			err:  model.NewPaymentGatewayError(),
			want: "/payment/failed",
		},
		{
			name: "internal error",
			err:  errors.New("db down"),
			want: "/payment/failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockPaymentService{
				redirectFn: func(ctx context.Context, paymentID string) (*payment.Result, error) {
					if paymentID != "pay-9" {
						t.Errorf("paymentID = %q, want pay-9", paymentID)
					}
					return tt.result, tt.err
				},
			}
			h := NewPaymentHandler(svc)

			w := httptest.NewRecorder()
			h.Redirect(w, httptest.NewRequest(http.MethodGet, "/api/fatoorah/callback?paymentId=pay-9", nil))

			if w.Code != http.StatusSeeOther {
				t.Fatalf("status = %d, want %d", w.Code, http.StatusSeeOther)
			}
			if loc := w.Header().Get("Location"); loc != tt.want {
				t.Errorf("Location = %q, want %q", loc, tt.want)
			}
		})
	}
}

// --- Webhook ---

func TestPaymentHandler_Webhook_PassesBodyAndSignature(t *testing.T) {
	const payload = `{"EventType":1,"Data":{"InvoiceId":"123"}}`
	svc := &mockPaymentService{
		webhookFn: func(ctx context.Context, body []byte, signature string) (*payment.Result, error) {
			if string(body) != payload {
				t.Errorf("body = %q", body)
			}
			if signature != "sig-abc" {
				t.Errorf("signature = %q, want sig-abc", signature)
			}
			return &payment.Result{InvoiceID: "inv-1", Status: model.InvoiceStatusPaid, Changed: true}, nil
		},
	}
	h := NewPaymentHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/fatoorah/callback", strings.NewReader(payload))
	req.Header.Set(fatoorahSignatureHeader, "sig-abc")
	w := httptest.NewRecorder()
	h.Webhook(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var body map[string]any
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body["invoice_id"] != "inv-1" || body["status"] != "paid" || body["changed"] != true {
		t.Errorf("body = %v", body)
	}
}

func TestPaymentHandler_Webhook_InvalidSignature_Returns403(t *testing.T) {
	h := NewPaymentHandler(&mockPaymentService{})

	w := httptest.NewRecorder()
	h.Webhook(w, httptest.NewRequest(http.MethodPost, "/api/fatoorah/callback", strings.NewReader(`{}`)))

	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", w.Code, http.StatusForbidden)
	}
}

// --- Pay ---

func TestPaymentHandler_Pay_ReturnsPaymentURL(t *testing.T) {
	svc := &mockPaymentService{
		createLinkFn: func(ctx context.Context, userID, invoiceID string) (*payment.PaymentLink, error) {
			if userID != "u1" || invoiceID != "inv-1" {
				t.Errorf("userID, invoiceID = %q, %q", userID, invoiceID)
			}
			return &payment.PaymentLink{URL: "https://portal.myfatoorah.com/pay/abc", GatewayInvoiceID: "5001"}, nil
		},
	}
	h := NewPaymentHandler(svc)

	req := withURLParam(httptest.NewRequest(http.MethodPost, "/api/invoices/inv-1/pay", nil), "id", "inv-1")
	w := httptest.NewRecorder()
	h.Pay(w, verifiedRequest(req, "u1", model.AccountTypeUser))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var body map[string]any
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body["payment_url"] != "https://portal.myfatoorah.com/pay/abc" {
		t.Errorf("payment_url = %v", body["payment_url"])
	}
}

func TestPaymentHandler_Pay_AlreadyPaid_Returns409(t *testing.T) {
	svc := &mockPaymentService{
		createLinkFn: func(ctx context.Context, userID, invoiceID string) (*payment.PaymentLink, error) {
			return nil, model.NewInvoiceAlreadyPaidError()
		},
	}
	h := NewPaymentHandler(svc)

	req := withURLParam(httptest.NewRequest(http.MethodPost, "/api/invoices/inv-1/pay", nil), "id", "inv-1")
	w := httptest.NewRecorder()
	h.Pay(w, verifiedRequest(req, "u1", model.AccountTypeUser))

	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want %d", w.Code, http.StatusConflict)
	}
}
