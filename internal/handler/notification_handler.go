package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/binaahub/binna/internal/model"
)

// NotificationServiceInterface は通知ハンドラーが必要とするサービスインターフェース。
type NotificationServiceInterface interface {
	List(ctx context.Context, userID string, limit int) ([]*model.Notification, error)
}

// NotificationHandler は通知一覧のHTTPハンドラー。
type NotificationHandler struct {
	service NotificationServiceInterface
}

// NewNotificationHandler はNotificationHandlerを生成する。
func NewNotificationHandler(service NotificationServiceInterface) *NotificationHandler {
	return &NotificationHandler{service: service}
}

type notificationResponse struct {
	ID        string     `json:"id"`
	Kind      string     `json:"kind"`
	Title     string     `json:"title"`
	Body      string     `json:"body"`
	ReadAt    *time.Time `json:"read_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// List は自分宛ての通知を新しい順に返す。
// GET /api/notifications?limit=
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	id, ok := verifiedIdentity(w, r)
	if !ok {
		return
	}
	limit, _ := pagination(r)

	ctx, cancel := withTimeout(r)
	defer cancel()

	notifications, err := h.service.List(ctx, id.UserID, limit)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	out := make([]notificationResponse, 0, len(notifications))
	for _, n := range notifications {
		out = append(out, notificationResponse{
			ID:        n.ID,
			Kind:      n.Kind,
			Title:     n.Title,
			Body:      n.Body,
			ReadAt:    n.ReadAt,
			CreatedAt: n.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"notifications": out})
}
