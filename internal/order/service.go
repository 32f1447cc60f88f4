// Package order は注文の作成・参照・状態変更のドメインロジックを提供する。
package order

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/binaahub/binna/internal/model"
	"github.com/binaahub/binna/internal/notify"
	"github.com/binaahub/binna/internal/repository"
)

const (
	// MaxItems は1注文あたりの明細数の上限。
	MaxItems = 100
	// MaxQuantity は1明細の数量の上限。order_items.quantityはINTEGER。
	MaxQuantity = 1_000_000
	// MaxUnitPrice は単価の上限（ハララ）。MaxQuantityとの積がint64に収まる。
	MaxUnitPrice int64 = 1_000_000_000_000
	// DefaultCurrency は注文の通貨。
	DefaultCurrency = "SAR"

	maxTextLength = 1000
)

// TextSanitizer は利用者が入力したテキストからHTMLを取り除く。
type TextSanitizer interface {
	PlainText(raw string) string
}

// Observer は作成された注文を受け取る。
type Observer interface {
	RecordOrderCreated(totalHalalas int64)
}

// ItemInput は注文明細の入力値。金額はハララ単位。
type ItemInput struct {
	ProductID string
	Name      string
	Quantity  int
	UnitPrice int64
}

// CreateInput は注文作成の入力値。
type CreateInput struct {
	StoreID         string
	Items           []ItemInput
	ShippingAddress string
	Notes           string
}

// Service は注文のサービス層。
type Service struct {
	orders    repository.OrderRepository
	stores    repository.StoreRepository
	notifier  *notify.Service
	sanitizer TextSanitizer
	observer  Observer
	now       func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	orders repository.OrderRepository,
	stores repository.StoreRepository,
	notifier *notify.Service,
	sanitizer TextSanitizer,
	observer Observer,
) *Service {
	return &Service{
		orders:    orders,
		stores:    stores,
		notifier:  notifier,
		sanitizer: sanitizer,
		observer:  observer,
		now:       time.Now,
	}
}

func (s *Service) plain(v string) string {
	v = strings.TrimSpace(v)
	if s.sanitizer != nil {
		v = s.sanitizer.PlainText(v)
	}
	return v
}

// validate は入力値を検証し、保存用の明細と合計金額を返す。
func (s *Service) validate(in CreateInput) ([]model.OrderItem, int64, error) {
	if strings.TrimSpace(in.StoreID) == "" {
		return nil, 0, model.NewValidationError("store_id", "مطلوب")
	}
	if _, err := uuid.Parse(in.StoreID); err != nil {
		return nil, 0, model.NewValidationError("store_id", "معرّف غير صالح")
	}
	if len(in.Items) == 0 {
		return nil, 0, model.NewValidationError("items", "يجب إضافة منتج واحد على الأقل")
	}
	if len(in.Items) > MaxItems {
		return nil, 0, model.NewValidationError("items", fmt.Sprintf("الحد الأقصى %d منتج", MaxItems))
	}
	if len(in.ShippingAddress) > maxTextLength || len(in.Notes) > maxTextLength {
		return nil, 0, model.NewValidationError("notes", "النص طويل جداً")
	}

	items := make([]model.OrderItem, 0, len(in.Items))
	var total int64
	for i, it := range in.Items {
		field := fmt.Sprintf("items[%d]", i)
		name := s.plain(it.Name)
		switch {
		case strings.TrimSpace(it.ProductID) == "":
			return nil, 0, model.NewValidationError(field+".product_id", "مطلوب")
		case name == "":
			return nil, 0, model.NewValidationError(field+".name", "مطلوب")
		case it.Quantity < 1:
			return nil, 0, model.NewValidationError(field+".quantity", "يجب أن تكون الكمية 1 على الأقل")
		case it.Quantity > MaxQuantity:
			return nil, 0, model.NewValidationError(field+".quantity", fmt.Sprintf("الحد الأقصى للكمية %d", MaxQuantity))
		case it.UnitPrice < 0:
			return nil, 0, model.NewValidationError(field+".unit_price", "لا يمكن أن يكون السعر سالباً")
		case it.UnitPrice > MaxUnitPrice:
			return nil, 0, model.NewValidationError(field+".unit_price", "السعر يتجاوز الحد المسموح")
		}

		item := model.OrderItem{
			ID:        uuid.New().String(),
			ProductID: strings.TrimSpace(it.ProductID),
			Name:      name,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
		}
		sub := item.Subtotal()
		if total > math.MaxInt64-sub {
			return nil, 0, model.NewValidationError("items", "إجمالي الطلب يتجاوز الحد المسموح")
		}
		total += sub
		items = append(items, item)
	}
	return items, total, nil
}

// Create は注文ヘッダと明細を1トランザクションで作成する。
// 保存に失敗した場合はイベントも通知も発生しない。
func (s *Service) Create(ctx context.Context, userID string, in CreateInput) (*model.Order, error) {
	items, total, err := s.validate(in)
	if err != nil {
		return nil, err
	}

	store, err := s.stores.FindByID(ctx, in.StoreID)
	if err != nil {
		return nil, fmt.Errorf("店舗の取得に失敗しました: %w", err)
	}
	if store == nil {
		return nil, model.NewStoreNotFoundError()
	}

	now := s.now()
	order := &model.Order{
		ID:              uuid.New().String(),
		UserID:          userID,
		StoreID:         store.ID,
		Status:          model.OrderStatusPending,
		TotalAmount:     total,
		Currency:        DefaultCurrency,
		ShippingAddress: s.plain(in.ShippingAddress),
		Notes:           s.plain(in.Notes),
		Items:           items,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	for i := range order.Items {
		order.Items[i].OrderID = order.ID
	}

	if err := s.orders.CreateWithItems(ctx, order); err != nil {
		return nil, fmt.Errorf("注文の作成に失敗しました: %w", err)
	}

	if s.observer != nil {
		s.observer.RecordOrderCreated(total)
	}
	s.afterCreate(ctx, store, order)
	return order, nil
}

// afterCreate はコミット済みの注文について店舗への通知とイベント発行を行う。
func (s *Service) afterCreate(ctx context.Context, store *model.Store, order *model.Order) {
	if s.notifier == nil {
		return
	}
	event := notify.OrderCreatedEvent{
		OrderID:     order.ID,
		UserID:      order.UserID,
		StoreID:     order.StoreID,
		TotalAmount: order.TotalAmount,
		Currency:    order.Currency,
		ItemCount:   len(order.Items),
		CreatedAt:   order.CreatedAt,
	}
	s.notifier.Publish(ctx, notify.RoutingKeyOrderCreated, event)

	n := s.notifier.NewNotification(store.OwnerID, "order_created", "طلب جديد",
		fmt.Sprintf("تم استلام طلب جديد بعدد %d منتج", len(order.Items)))
	if err := s.notifier.Notify(ctx, n); err != nil {
		slog.Warn("failed to notify store of new order",
			slog.String("order_id", order.ID),
			slog.String("error", err.Error()),
		)
	}
	s.notifier.SendStoreWebhook(ctx, store, notify.RoutingKeyOrderCreated, event)
}

// List は利用者の注文一覧を返す。
func (s *Service) List(ctx context.Context, userID string, limit, offset int) ([]*model.Order, error) {
	orders, err := s.orders.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("注文一覧の取得に失敗しました: %w", err)
	}
	return orders, nil
}

// Get は注文を返す。注文者本人と注文先店舗のオーナー以外には存在しないものとして扱う。
func (s *Service) Get(ctx context.Context, userID, orderID string) (*model.Order, error) {
	if _, err := uuid.Parse(orderID); err != nil {
		return nil, model.NewOrderNotFoundError()
	}
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("注文の取得に失敗しました: %w", err)
	}
	if order == nil {
		return nil, model.NewOrderNotFoundError()
	}
	if order.UserID == userID {
		return order, nil
	}

	store, err := s.stores.FindByOwnerID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("店舗の取得に失敗しました: %w", err)
	}
	if store == nil || store.ID != order.StoreID {
		return nil, model.NewOrderNotFoundError()
	}
	return order, nil
}

// ListForStore は店舗オーナー宛ての注文一覧を返す。
func (s *Service) ListForStore(ctx context.Context, ownerID string, limit, offset int) ([]*model.Order, error) {
	store, err := s.ownedStore(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	orders, err := s.orders.ListByStore(ctx, store.ID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("店舗の注文一覧の取得に失敗しました: %w", err)
	}
	return orders, nil
}

// UpdateStatus は店舗オーナーが自店舗の注文状態を変更する。
func (s *Service) UpdateStatus(ctx context.Context, ownerID, orderID string, status model.OrderStatus) error {
	if !status.Valid() {
		return model.NewValidationError("status", "حالة غير معروفة")
	}
	if _, err := uuid.Parse(orderID); err != nil {
		return model.NewOrderNotFoundError()
	}
	store, err := s.ownedStore(ctx, ownerID)
	if err != nil {
		return err
	}

	if err := s.orders.UpdateStatus(ctx, orderID, store.ID, status); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.NewOrderNotFoundError()
		}
		return fmt.Errorf("注文状態の更新に失敗しました: %w", err)
	}

	if s.notifier != nil {
		s.notifier.Publish(ctx, notify.RoutingKeyOrderStatus, notify.OrderStatusChangedEvent{
			OrderID:   orderID,
			StoreID:   store.ID,
			Status:    string(status),
			ChangedAt: s.now(),
		})
	}
	return nil
}

func (s *Service) ownedStore(ctx context.Context, ownerID string) (*model.Store, error) {
	store, err := s.stores.FindByOwnerID(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("店舗の取得に失敗しました: %w", err)
	}
	if store == nil {
		return nil, model.NewStoreNotFoundError()
	}
	return store, nil
}
