// Package payment はMyFatoorah決済ゲートウェイとの連携を提供する。
// 支払リンクの発行、支払状態の照会、コールバックとWebhookによる請求書の更新を含む。
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/binaahub/binna/internal/model"
)

const (
	// maxResponseBytes はゲートウェイ応答の読み取り上限。
	maxResponseBytes = 1 << 20

	keyTypePaymentID = "PaymentId"
	keyTypeInvoiceID = "InvoiceId"
)

// ErrGateway はゲートウェイとの通信失敗、またはIsSuccess=falseの応答を表す。
var ErrGateway = errors.New("fatoorah gateway error")

// PaymentStatus はGetPaymentStatusの結果。
type PaymentStatus struct {
	GatewayInvoiceID  string
	InvoiceStatus     string
	CustomerReference string
	PaymentID         string
	InvoiceValue      float64
}

// Status はゲートウェイの状態を請求書の状態に変換する。
func (p *PaymentStatus) Status() model.InvoiceStatus {
	return MapInvoiceStatus(p.InvoiceStatus)
}

// MapInvoiceStatus はMyFatoorahのInvoiceStatusを請求書の状態に変換する。
// Paid以外の確定状態（Failed, Expired）はfailed、それ以外はpendingとする。
func MapInvoiceStatus(s string) model.InvoiceStatus {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "paid":
		return model.InvoiceStatusPaid
	case "failed", "expired":
		return model.InvoiceStatusFailed
	default:
		return model.InvoiceStatusPending
	}
}

// PaymentLinkRequest は支払リンク発行の入力値。金額はハララ単位。
type PaymentLinkRequest struct {
	InvoiceID     string
	Amount        int64
	Currency      string
	CustomerName  string
	CustomerEmail string
	CallbackURL   string
	ErrorURL      string
}

// PaymentLink は発行された支払リンク。
type PaymentLink struct {
	GatewayInvoiceID string
	URL              string
}

// Client はMyFatoorah APIのクライアント。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	baseURL    string
	apiKey     string
}

// NewClient はClientの新しいインスタンスを生成する。
func NewClient(httpClient *http.Client, logger *slog.Logger, baseURL, apiKey string) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
	}
}

type envelope struct {
	IsSuccess        bool            `json:"IsSuccess"`
	Message          string          `json:"Message"`
	ValidationErrors json.RawMessage `json:"ValidationErrors"`
	Data             json.RawMessage `json:"Data"`
}

// call はAPIにJSONをPOSTし、IsSuccessを確認してDataをoutにデコードする。
func (c *Client) call(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("リクエストのエンコードに失敗しました: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("MyFatoorah APIの呼び出しに失敗しました",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("%w: %v", ErrGateway, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("%w: レスポンスの読み取りに失敗しました: %v", ErrGateway, err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		c.logger.Error("MyFatoorah APIのレスポンスのパースに失敗しました",
			slog.String("path", path),
			slog.Int("http_status", resp.StatusCode),
		)
		return fmt.Errorf("%w: status %d", ErrGateway, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK || !env.IsSuccess {
		c.logger.Error("MyFatoorah APIがエラーを返しました",
			slog.String("path", path),
			slog.Int("http_status", resp.StatusCode),
			slog.String("message", env.Message),
		)
		return fmt.Errorf("%w: status %d: %s", ErrGateway, resp.StatusCode, env.Message)
	}

	if out != nil {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("%w: Dataのパースに失敗しました: %v", ErrGateway, err)
		}
	}
	return nil
}

type statusData struct {
	InvoiceID           json.Number `json:"InvoiceId"`
	InvoiceStatus       string      `json:"InvoiceStatus"`
	CustomerReference   string      `json:"CustomerReference"`
	InvoiceValue        float64     `json:"InvoiceValue"`
	InvoiceTransactions []struct {
		PaymentID         string `json:"PaymentId"`
		TransactionStatus string `json:"TransactionStatus"`
	} `json:"InvoiceTransactions"`
}

// GetPaymentStatus はPaymentIdで支払状態を照会する。
func (c *Client) GetPaymentStatus(ctx context.Context, paymentID string) (*PaymentStatus, error) {
	return c.getStatus(ctx, paymentID, keyTypePaymentID)
}

// GetInvoiceStatus はゲートウェイのInvoiceIdで支払状態を照会する。
func (c *Client) GetInvoiceStatus(ctx context.Context, gatewayInvoiceID string) (*PaymentStatus, error) {
	return c.getStatus(ctx, gatewayInvoiceID, keyTypeInvoiceID)
}

func (c *Client) getStatus(ctx context.Context, key, keyType string) (*PaymentStatus, error) {
	var data statusData
	err := c.call(ctx, "/v2/GetPaymentStatus", map[string]string{
		"Key":     key,
		"KeyType": keyType,
	}, &data)
	if err != nil {
		return nil, err
	}

	status := &PaymentStatus{
		GatewayInvoiceID:  data.InvoiceID.String(),
		InvoiceStatus:     data.InvoiceStatus,
		CustomerReference: data.CustomerReference,
		InvoiceValue:      data.InvoiceValue,
	}
	if keyType == keyTypePaymentID {
		status.PaymentID = key
	}
	// 最後の取引を採用する
	if n := len(data.InvoiceTransactions); n > 0 && status.PaymentID == "" {
		status.PaymentID = data.InvoiceTransactions[n-1].PaymentID
	}
	return status, nil
}

// SendPayment は請求書の支払リンクを発行する。CustomerReferenceに請求書IDを設定する。
func (c *Client) SendPayment(ctx context.Context, in PaymentLinkRequest) (*PaymentLink, error) {
	var data struct {
		InvoiceID  json.Number `json:"InvoiceId"`
		InvoiceURL string      `json:"InvoiceURL"`
	}
	err := c.call(ctx, "/v2/SendPayment", map[string]any{
		"NotificationOption": "LNK",
		"CustomerName":       in.CustomerName,
		"CustomerEmail":      in.CustomerEmail,
		"InvoiceValue":       halalasToSAR(in.Amount),
		"DisplayCurrencyIso": in.Currency,
		"CallBackUrl":        in.CallbackURL,
		"ErrorUrl":           in.ErrorURL,
		"CustomerReference":  in.InvoiceID,
		"Language":           "ar",
	}, &data)
	if err != nil {
		return nil, err
	}
	if data.InvoiceURL == "" {
		return nil, fmt.Errorf("%w: InvoiceURL is empty", ErrGateway)
	}
	return &PaymentLink{GatewayInvoiceID: data.InvoiceID.String(), URL: data.InvoiceURL}, nil
}

// halalasToSAR はハララ単位の整数をリヤルの小数に変換する。
func halalasToSAR(amount int64) float64 {
	return float64(amount) / 100
}
