package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/binaahub/binna/internal/model"
	"github.com/binaahub/binna/internal/payment"
)

// fatoorahSignatureHeader はMyFatoorah Webhookの署名ヘッダー。
const fatoorahSignatureHeader = "MyFatoorah-Signature"

// PaymentServiceInterface は決済ハンドラーが必要とするサービスインターフェース。
type PaymentServiceInterface interface {
	CreatePaymentLink(ctx context.Context, userID, invoiceID string) (*payment.PaymentLink, error)
	HandleRedirect(ctx context.Context, paymentID string) (*payment.Result, error)
	HandleWebhook(ctx context.Context, body []byte, signature string) (*payment.Result, error)
}

// PaymentHandler はFatoorahのコールバックと支払リンク発行のHTTPハンドラー。
type PaymentHandler struct {
	service PaymentServiceInterface
}

// NewPaymentHandler はPaymentHandlerを生成する。
func NewPaymentHandler(service PaymentServiceInterface) *PaymentHandler {
	return &PaymentHandler{service: service}
}

// Pay は請求書の支払リンクを発行する。
// POST /api/invoices/{id}/pay
func (h *PaymentHandler) Pay(w http.ResponseWriter, r *http.Request) {
	id, ok := verifiedIdentity(w, r)
	if !ok {
		return
	}

	ctx, cancel := withTimeout(r)
	defer cancel()

	link, err := h.service.CreatePaymentLink(ctx, id.UserID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"payment_url": link.URL,
		"invoice_id":  link.GatewayInvoiceID,
	})
}

// Redirect は支払後のブラウザリダイレクトを処理し、結果画面へ転送する。
// 支払状態はクエリではなくゲートウェイへの照会結果で決める。
// GET /api/fatoorah/callback?paymentId=...
func (h *PaymentHandler) Redirect(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := withTimeout(r)
	defer cancel()

	res, err := h.service.HandleRedirect(ctx, r.URL.Query().Get("paymentId"))
	if err != nil {
		var apiErr *model.APIError
		if !errors.As(err, &apiErr) {
			slog.Error("payment redirect failed", slog.String("error", err.Error()))
		}
		http.Redirect(w, r, "/payment/failed", http.StatusSeeOther)
		return
	}

	target := "/payment/failed"
	switch res.Status {
	case model.InvoiceStatusPaid:
		target = "/payment/success"
	case model.InvoiceStatusPending:
		target = "/payment/pending"
	}
	http.Redirect(w, r, target+"?invoice="+url.QueryEscape(res.InvoiceID), http.StatusSeeOther)
}

// Webhook はFatoorahからのサーバー間通知を処理する。
// POST /api/fatoorah/callback
func (h *PaymentHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("تعذر قراءة جسم الطلب"))
		return
	}

	ctx, cancel := withTimeout(r)
	defer cancel()

	res, err := h.service.HandleWebhook(ctx, body, r.Header.Get(fatoorahSignatureHeader))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"invoice_id": res.InvoiceID,
		"status":     string(res.Status),
		"changed":    res.Changed,
	})
}
