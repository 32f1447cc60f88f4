package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// HTTPDoer はWebhook送信に使うHTTPクライアント。
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// URLValidator は送信先URLを事前に検証する。
type URLValidator interface {
	ValidateURL(rawURL string) error
}

// WebhookSender は店舗が登録したURLへイベントをPOSTする。
type WebhookSender struct {
	client    HTTPDoer
	validator URLValidator
}

// NewWebhookSender はWebhookSenderを生成する。
// 本番ではSSRF防止付きのクライアントとバリデーターを渡す。
func NewWebhookSender(client HTTPDoer, validator URLValidator) *WebhookSender {
	return &WebhookSender{client: client, validator: validator}
}

// Send はイベントをJSONでPOSTする。2xx以外の応答はエラーとする。
func (s *WebhookSender) Send(ctx context.Context, url, event string, payload any) error {
	if s.validator != nil {
		if err := s.validator.ValidateURL(url); err != nil {
			return fmt.Errorf("webhook url rejected: %w", err)
		}
	}

	body, err := json.Marshal(map[string]any{
		"event": event,
		"data":  payload,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal webhook body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Binna-Webhook/1.0")
	req.Header.Set("X-Binna-Event", event)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
