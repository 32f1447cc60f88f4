package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/binaahub/binna/internal/model"
	"github.com/binaahub/binna/internal/notify"
	"github.com/binaahub/binna/internal/repository"
)

// Callbackの発生元
const (
	SourceRedirect  = "redirect"
	SourceWebhook   = "webhook"
	SourceReconcile = "reconcile"
)

// Gateway は決済ゲートウェイの操作。テスト時にモックに差し替え可能。
type Gateway interface {
	GetPaymentStatus(ctx context.Context, paymentID string) (*PaymentStatus, error)
	GetInvoiceStatus(ctx context.Context, gatewayInvoiceID string) (*PaymentStatus, error)
	SendPayment(ctx context.Context, in PaymentLinkRequest) (*PaymentLink, error)
}

// Observer はコールバックの処理結果を受け取る。
type Observer interface {
	RecordPaymentCallback(source, status string)
}

// Config は決済サービスの設定。
type Config struct {
	// WebhookSecret が空でなければWebhookの署名を必須とする。
	WebhookSecret string
	// BaseURL は支払完了後にゲートウェイがリダイレクトするアプリケーションのURL。
	BaseURL string
}

// Result はコールバック処理の結果。
type Result struct {
	InvoiceID string
	Status    model.InvoiceStatus
	// Changed は今回の処理で請求書の状態が変わったかを表す。
	Changed bool
}

// Service は請求書の支払処理のサービス層。
type Service struct {
	invoices repository.InvoiceRepository
	stores   repository.StoreRepository
	users    repository.UserRepository
	gateway  Gateway
	notifier *notify.Service
	observer Observer
	config   Config
	now      func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。gatewayがnilの場合、ゲートウェイを使う操作は503を返す。
func NewService(
	invoices repository.InvoiceRepository,
	stores repository.StoreRepository,
	users repository.UserRepository,
	gateway Gateway,
	notifier *notify.Service,
	observer Observer,
	config Config,
) *Service {
	return &Service{
		invoices: invoices,
		stores:   stores,
		users:    users,
		gateway:  gateway,
		notifier: notifier,
		observer: observer,
		config:   config,
		now:      time.Now,
	}
}

// Enabled はゲートウェイが構成されているかを返す。
func (s *Service) Enabled() bool {
	return s.gateway != nil
}

// CreatePaymentLink は請求先の利用者向けに支払リンクを発行し、請求書をpendingにする。
func (s *Service) CreatePaymentLink(ctx context.Context, userID, invoiceID string) (*PaymentLink, error) {
	if s.gateway == nil {
		return nil, model.NewServiceUnavailableError("fatoorah")
	}
	inv, err := s.findInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if inv.UserID != userID {
		return nil, model.NewInvoiceNotFoundError()
	}
	if inv.Status == model.InvoiceStatusPaid {
		return nil, model.NewInvoiceAlreadyPaidError()
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}

	base := strings.TrimRight(s.config.BaseURL, "/")
	link, err := s.gateway.SendPayment(ctx, PaymentLinkRequest{
		InvoiceID:     inv.ID,
		Amount:        inv.Amount,
		Currency:      inv.Currency,
		CustomerName:  user.Name,
		CustomerEmail: user.Email,
		CallbackURL:   base + "/api/fatoorah/callback",
		ErrorURL:      base + "/api/fatoorah/callback",
	})
	if err != nil {
		if errors.Is(err, ErrGateway) {
			return nil, model.NewPaymentGatewayError()
		}
		return nil, err
	}

	if _, err := s.invoices.ApplyPaymentResult(ctx, inv.ID, repository.PaymentResult{
		Status:           model.InvoiceStatusPending,
		GatewayInvoiceID: link.GatewayInvoiceID,
		At:               s.now(),
	}, nil); err != nil {
		return nil, fmt.Errorf("請求書の更新に失敗しました: %w", err)
	}
	return link, nil
}

// HandleRedirect はブラウザのリダイレクトで渡されたpaymentIdをゲートウェイに照会し、請求書に反映する。
// クエリの値は信用せず、状態は必ずゲートウェイから取得する。
func (s *Service) HandleRedirect(ctx context.Context, paymentID string) (*Result, error) {
	if s.gateway == nil {
		return nil, model.NewServiceUnavailableError("fatoorah")
	}
	paymentID = strings.TrimSpace(paymentID)
	if paymentID == "" {
		return nil, model.NewInvalidRequestError("paymentId مطلوب")
	}

	status, err := s.gateway.GetPaymentStatus(ctx, paymentID)
	if err != nil {
		if errors.Is(err, ErrGateway) {
			return nil, model.NewPaymentGatewayError()
		}
		return nil, err
	}
	return s.apply(ctx, SourceRedirect, status.CustomerReference, status.Status(), status.GatewayInvoiceID, status.PaymentID)
}

// webhookPayload はMyFatoorah Webhookのボディ。
type webhookPayload struct {
	EventType json.RawMessage `json:"EventType"`
	Event     string          `json:"Event"`
	Data      json.RawMessage `json:"Data"`
}

type webhookData struct {
	InvoiceID         json.Number `json:"InvoiceId"`
	InvoiceStatus     string      `json:"InvoiceStatus"`
	TransactionStatus string      `json:"TransactionStatus"`
	CustomerReference string      `json:"CustomerReference"`
	PaymentID         string      `json:"PaymentId"`
}

// HandleWebhook はWebhookの署名を検証し、請求書に反映する。
// 署名鍵が未設定の場合、ボディは照会のきっかけとしてのみ使い、状態はゲートウェイから取得する。
func (s *Service) HandleWebhook(ctx context.Context, body []byte, signature string) (*Result, error) {
	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil || len(payload.Data) == 0 {
		return nil, model.NewInvalidRequestError("بيانات غير صالحة")
	}

	if s.config.WebhookSecret != "" {
		if !VerifySignature(payload.Data, signature, s.config.WebhookSecret) {
			if s.observer != nil {
				s.observer.RecordPaymentCallback(SourceWebhook, "invalid_signature")
			}
			return nil, model.NewInvalidSignatureError()
		}
	}

	dec := json.NewDecoder(strings.NewReader(string(payload.Data)))
	dec.UseNumber()
	var data webhookData
	if err := dec.Decode(&data); err != nil {
		return nil, model.NewInvalidRequestError("بيانات غير صالحة")
	}

	if s.config.WebhookSecret == "" {
		return s.confirmWithGateway(ctx, data.InvoiceID.String())
	}

	gatewayStatus := data.InvoiceStatus
	if gatewayStatus == "" {
		gatewayStatus = data.TransactionStatus
	}
	return s.apply(ctx, SourceWebhook, data.CustomerReference, MapInvoiceStatus(gatewayStatus), data.InvoiceID.String(), data.PaymentID)
}

// confirmWithGateway は未署名のWebhookに含まれるInvoiceIdをゲートウェイに照会して反映する。
func (s *Service) confirmWithGateway(ctx context.Context, gatewayInvoiceID string) (*Result, error) {
	if s.gateway == nil {
		return nil, model.NewServiceUnavailableError("fatoorah")
	}
	gatewayInvoiceID = strings.TrimSpace(gatewayInvoiceID)
	if gatewayInvoiceID == "" {
		return nil, model.NewInvalidRequestError("InvoiceId مطلوب")
	}

	status, err := s.gateway.GetInvoiceStatus(ctx, gatewayInvoiceID)
	if err != nil {
		if errors.Is(err, ErrGateway) {
			return nil, model.NewPaymentGatewayError()
		}
		return nil, err
	}
	return s.apply(ctx, SourceWebhook, status.CustomerReference, status.Status(), status.GatewayInvoiceID, status.PaymentID)
}

// apply は請求書の状態を更新し、支払完了時にイベント・通知・Webhookを送る。
// 既に支払済みの請求書への再通知は何もしない。
func (s *Service) apply(ctx context.Context, source, invoiceID string, status model.InvoiceStatus, gatewayInvoiceID, paymentID string) (*Result, error) {
	inv, err := s.findInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}

	var n *model.Notification
	if s.notifier != nil && status != model.InvoiceStatusPending {
		title, body := "تم الدفع بنجاح", "تم استلام دفعتك للفاتورة"
		if status == model.InvoiceStatusFailed {
			title, body = "فشل الدفع", "لم تكتمل عملية الدفع للفاتورة"
		}
		n = s.notifier.NewNotification(inv.UserID, "payment_"+string(status), title, body)
	}

	now := s.now()
	changed, err := s.invoices.ApplyPaymentResult(ctx, inv.ID, repository.PaymentResult{
		Status:           status,
		GatewayInvoiceID: gatewayInvoiceID,
		GatewayPaymentID: paymentID,
		At:               now,
	}, n)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, model.NewInvoiceNotFoundError()
		}
		return nil, fmt.Errorf("請求書の更新に失敗しました: %w", err)
	}

	final := status
	if inv.Status == model.InvoiceStatusPaid {
		final = model.InvoiceStatusPaid
	}
	if s.observer != nil {
		s.observer.RecordPaymentCallback(source, string(final))
	}
	slog.Info("payment result applied",
		slog.String("source", source),
		slog.String("invoice_id", inv.ID),
		slog.String("status", string(final)),
		slog.Bool("changed", changed),
	)

	if changed && status == model.InvoiceStatusPaid {
		s.afterPaid(ctx, inv, gatewayInvoiceID, paymentID, now)
	}
	return &Result{InvoiceID: inv.ID, Status: final, Changed: changed}, nil
}

func (s *Service) afterPaid(ctx context.Context, inv *model.Invoice, gatewayInvoiceID, paymentID string, paidAt time.Time) {
	if s.notifier == nil {
		return
	}
	event := notify.InvoicePaidEvent{
		InvoiceID:        inv.ID,
		StoreID:          inv.StoreID,
		OrderID:          inv.OrderID,
		Amount:           inv.Amount,
		Currency:         inv.Currency,
		GatewayInvoiceID: gatewayInvoiceID,
		GatewayPaymentID: paymentID,
		PaidAt:           paidAt,
	}
	s.notifier.Publish(ctx, notify.RoutingKeyInvoicePaid, event)

	store, err := s.stores.FindByID(ctx, inv.StoreID)
	if err != nil || store == nil {
		slog.Warn("store lookup after payment failed",
			slog.String("invoice_id", inv.ID),
			slog.Any("error", err),
		)
		return
	}
	n := s.notifier.NewNotification(store.OwnerID, "invoice_paid", "فاتورة مدفوعة", "تم دفع إحدى فواتير متجرك")
	if err := s.notifier.Notify(ctx, n); err != nil {
		slog.Warn("failed to notify store of payment",
			slog.String("invoice_id", inv.ID),
			slog.String("error", err.Error()),
		)
	}
	s.notifier.SendStoreWebhook(ctx, store, notify.RoutingKeyInvoicePaid, event)
}

func (s *Service) findInvoice(ctx context.Context, invoiceID string) (*model.Invoice, error) {
	if _, err := uuid.Parse(invoiceID); err != nil {
		return nil, model.NewInvoiceNotFoundError()
	}
	inv, err := s.invoices.FindByID(ctx, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("請求書の取得に失敗しました: %w", err)
	}
	if inv == nil {
		return nil, model.NewInvoiceNotFoundError()
	}
	return inv, nil
}

// VerifySignature はWebhookのData部分からMyFatoorah形式の署名を計算し、headerと比較する。
// 署名対象はDataの各フィールドを名前順に "Name=Value" としてカンマで連結した文字列。
func VerifySignature(data json.RawMessage, signature, secret string) bool {
	if signature == "" {
		return false
	}
	canonical, err := canonicalize(data)
	if err != nil {
		return false
	}
	expected := Sign(canonical, secret)
	return hmac.Equal([]byte(expected), []byte(strings.TrimSpace(signature)))
}

// Sign はHMAC-SHA256の署名をbase64で返す。
func Sign(canonical, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(canonical))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func canonicalize(data json.RawMessage) (string, error) {
	dec := json.NewDecoder(strings.NewReader(string(data)))
	dec.UseNumber()
	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return "", err
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		var v string
		switch val := fields[k].(type) {
		case nil:
			v = ""
		case string:
			v = val
		case json.Number:
			v = val.String()
		case bool:
			v = fmt.Sprintf("%t", val)
		default:
			b, _ := json.Marshal(val)
			v = string(b)
		}
		parts = append(parts, k+"="+v)
	}
	return strings.Join(parts, ","), nil
}
