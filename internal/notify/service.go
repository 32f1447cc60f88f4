package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/binaahub/binna/internal/model"
	"github.com/binaahub/binna/internal/repository"
)

// EventObserver はイベント発行の結果を受け取る。
type EventObserver interface {
	RecordEventPublished(routingKey string, ok bool)
}

// Service は通知の保存とイベント発行をまとめる。
// イベントとWebhookはベストエフォートで、失敗してもエラーを返さずログに残す。
type Service struct {
	notifications repository.NotificationRepository
	publisher     Publisher
	webhooks      *WebhookSender
	observer      EventObserver
	now           func() time.Time
}

// NewService はServiceを生成する。publisherがnilの場合はNopPublisher、webhooksがnilの場合は送信しない。
func NewService(notifications repository.NotificationRepository, publisher Publisher, webhooks *WebhookSender, observer EventObserver) *Service {
	if publisher == nil {
		publisher = NopPublisher{}
	}
	return &Service{
		notifications: notifications,
		publisher:     publisher,
		webhooks:      webhooks,
		observer:      observer,
		now:           time.Now,
	}
}

// NewNotification は未保存の通知を生成する。
func (s *Service) NewNotification(userID, kind, title, body string) *model.Notification {
	return &model.Notification{
		ID:        uuid.New().String(),
		UserID:    userID,
		Kind:      kind,
		Title:     title,
		Body:      body,
		CreatedAt: s.now(),
	}
}

// Notify は通知を保存する。
func (s *Service) Notify(ctx context.Context, n *model.Notification) error {
	if err := s.notifications.Create(ctx, n); err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

// List は利用者の通知を新しい順に返す。
func (s *Service) List(ctx context.Context, userID string, limit int) ([]*model.Notification, error) {
	return s.notifications.ListByUser(ctx, userID, limit)
}

// Publish はイベントを発行する。失敗はログに残すのみ。
func (s *Service) Publish(ctx context.Context, routingKey string, payload any) {
	err := s.publisher.Publish(ctx, routingKey, payload)
	if s.observer != nil {
		s.observer.RecordEventPublished(routingKey, err == nil)
	}
	if err != nil {
		slog.Warn("failed to publish event",
			slog.String("routing_key", routingKey),
			slog.String("error", err.Error()),
		)
	}
}

// SendStoreWebhook は店舗のWebhook URLが設定されていればイベントを送信する。失敗はログに残すのみ。
func (s *Service) SendStoreWebhook(ctx context.Context, store *model.Store, event string, payload any) {
	if s.webhooks == nil || store == nil || store.WebhookURL == "" {
		return
	}
	if err := s.webhooks.Send(ctx, store.WebhookURL, event, payload); err != nil {
		slog.Warn("store webhook delivery failed",
			slog.String("store_id", store.ID),
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
		return
	}
	slog.Info("store webhook delivered",
		slog.String("store_id", store.ID),
		slog.String("event", event),
	)
}
