package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/binaahub/binna/internal/model"
	"github.com/binaahub/binna/internal/order"
)

// OrderServiceInterface は注文ハンドラーが必要とするサービスインターフェース。
type OrderServiceInterface interface {
	Create(ctx context.Context, userID string, in order.CreateInput) (*model.Order, error)
	List(ctx context.Context, userID string, limit, offset int) ([]*model.Order, error)
	Get(ctx context.Context, userID, orderID string) (*model.Order, error)
	ListForStore(ctx context.Context, ownerID string, limit, offset int) ([]*model.Order, error)
	UpdateStatus(ctx context.Context, ownerID, orderID string, status model.OrderStatus) error
}

// OrderHandler は注文のHTTPハンドラー。
type OrderHandler struct {
	service OrderServiceInterface
}

// NewOrderHandler はOrderHandlerを生成する。
func NewOrderHandler(service OrderServiceInterface) *OrderHandler {
	return &OrderHandler{service: service}
}

type orderItemRequest struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
}

type createOrderRequest struct {
	StoreID         string             `json:"store_id"`
	Items           []orderItemRequest `json:"items"`
	ShippingAddress string             `json:"shipping_address"`
	Notes           string             `json:"notes"`
}

type updateOrderStatusRequest struct {
	Status string `json:"status"`
}

type orderItemResponse struct {
	ID        string `json:"id"`
	ProductID string `json:"product_id,omitempty"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
	Subtotal  int64  `json:"subtotal"`
}

type orderResponse struct {
	ID              string              `json:"id"`
	UserID          string              `json:"user_id"`
	StoreID         string              `json:"store_id"`
	Status          string              `json:"status"`
	TotalAmount     int64               `json:"total_amount"`
	Currency        string              `json:"currency"`
	ShippingAddress string              `json:"shipping_address"`
	Notes           string              `json:"notes,omitempty"`
	Items           []orderItemResponse `json:"items,omitempty"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
}

func toOrderResponse(o *model.Order) orderResponse {
	resp := orderResponse{
		ID:              o.ID,
		UserID:          o.UserID,
		StoreID:         o.StoreID,
		Status:          string(o.Status),
		TotalAmount:     o.TotalAmount,
		Currency:        o.Currency,
		ShippingAddress: o.ShippingAddress,
		Notes:           o.Notes,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
	for _, it := range o.Items {
		resp.Items = append(resp.Items, orderItemResponse{
			ID:        it.ID,
			ProductID: it.ProductID,
			Name:      it.Name,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
			Subtotal:  it.Subtotal(),
		})
	}
	return resp
}

func toOrderResponses(orders []*model.Order) []orderResponse {
	out := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		out = append(out, toOrderResponse(o))
	}
	return out
}

// Create は注文を作成する。ヘッダと全明細は同一トランザクションで保存される。
// POST /api/orders/create
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	id, ok := verifiedIdentity(w, r)
	if !ok {
		return
	}

	var req createOrderRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	in := order.CreateInput{
		StoreID:         req.StoreID,
		ShippingAddress: req.ShippingAddress,
		Notes:           req.Notes,
		Items:           make([]order.ItemInput, 0, len(req.Items)),
	}
	for _, it := range req.Items {
		in.Items = append(in.Items, order.ItemInput{
			ProductID: it.ProductID,
			Name:      it.Name,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
		})
	}

	ctx, cancel := withTimeout(r)
	defer cancel()

	o, err := h.service.Create(ctx, id.UserID, in)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "order": toOrderResponse(o)})
}

// List は自分の注文一覧を返す。
// GET /api/orders
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	id, ok := verifiedIdentity(w, r)
	if !ok {
		return
	}
	limit, offset := pagination(r)

	ctx, cancel := withTimeout(r)
	defer cancel()

	orders, err := h.service.List(ctx, id.UserID, limit, offset)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": toOrderResponses(orders), "limit": limit, "offset": offset})
}

// Get は注文詳細を返す。購入者本人または宛先店舗のオーナーのみ参照できる。
// GET /api/orders/{id}
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := verifiedIdentity(w, r)
	if !ok {
		return
	}

	ctx, cancel := withTimeout(r)
	defer cancel()

	o, err := h.service.Get(ctx, id.UserID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

// ListForStore は自店舗宛ての注文一覧を返す。
// GET /api/store/orders
func (h *OrderHandler) ListForStore(w http.ResponseWriter, r *http.Request) {
	id, ok := verifiedIdentity(w, r)
	if !ok {
		return
	}
	limit, offset := pagination(r)

	ctx, cancel := withTimeout(r)
	defer cancel()

	orders, err := h.service.ListForStore(ctx, id.UserID, limit, offset)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": toOrderResponses(orders), "limit": limit, "offset": offset})
}

// UpdateStatus は自店舗宛ての注文の状態を変更する。
// PATCH /api/store/orders/{id}/status
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := verifiedIdentity(w, r)
	if !ok {
		return
	}

	var req updateOrderStatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ctx, cancel := withTimeout(r)
	defer cancel()

	if err := h.service.UpdateStatus(ctx, id.UserID, chi.URLParam(r, "id"), model.OrderStatus(req.Status)); err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "status": req.Status})
}
