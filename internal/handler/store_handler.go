package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/binaahub/binna/internal/model"
	"github.com/binaahub/binna/internal/store"
)

// StoreServiceInterface は店舗ハンドラーが必要とするサービスインターフェース。
type StoreServiceInterface interface {
	MyStore(ctx context.Context, ownerID string) (*model.Store, error)
	CreateStore(ctx context.Context, ownerID string, in store.StoreInput) (*model.Store, error)
	ListProducts(ctx context.Context, ownerID string) ([]*model.StoreProduct, error)
	CreateProduct(ctx context.Context, ownerID string, in store.ProductInput) (*model.StoreProduct, error)
	UpdateProduct(ctx context.Context, ownerID, productID string, patch store.ProductPatch) (*model.StoreProduct, error)
	Marketplace(ctx context.Context, query string, limit, offset int) ([]*model.StoreProduct, error)
}

// StoreHandler は店舗と店舗商品のHTTPハンドラー。
type StoreHandler struct {
	service StoreServiceInterface
}

// NewStoreHandler はStoreHandlerを生成する。
func NewStoreHandler(service StoreServiceInterface) *StoreHandler {
	return &StoreHandler{service: service}
}

type storeRequest struct {
	Name       string `json:"name"`
	WebhookURL string `json:"webhook_url"`
}

type storeResponse struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	WebhookURL string    `json:"webhook_url,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

type storeProductRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Price       int64  `json:"price"`
	Stock       int    `json:"stock"`
	Category    string `json:"category"`
}

type storeProductPatchRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Price       *int64  `json:"price"`
	Stock       *int    `json:"stock"`
	Category    *string `json:"category"`
	Active      *bool   `json:"active"`
}

type storeProductResponse struct {
	ID          string    `json:"id"`
	StoreID     string    `json:"store_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"` // サニタイズ済みHTML
	Price       int64     `json:"price"`
	Stock       int       `json:"stock"`
	Category    string    `json:"category,omitempty"`
	Active      bool      `json:"active"`
	LowStock    bool      `json:"low_stock"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toStoreResponse(s *model.Store) storeResponse {
	return storeResponse{ID: s.ID, Name: s.Name, WebhookURL: s.WebhookURL, CreatedAt: s.CreatedAt}
}

func toStoreProductResponse(p *model.StoreProduct) storeProductResponse {
	return storeProductResponse{
		ID:          p.ID,
		StoreID:     p.StoreID,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price,
		Stock:       p.Stock,
		Category:    p.Category,
		Active:      p.Active,
		LowStock:    p.Stock <= model.LowStockThreshold,
		UpdatedAt:   p.UpdatedAt,
	}
}

func toStoreProductResponses(products []*model.StoreProduct) []storeProductResponse {
	out := make([]storeProductResponse, 0, len(products))
	for _, p := range products {
		out = append(out, toStoreProductResponse(p))
	}
	return out
}

// GetStore は自店舗の情報を返す。
// GET /api/store
func (h *StoreHandler) GetStore(w http.ResponseWriter, r *http.Request) {
	id, ok := verifiedIdentity(w, r)
	if !ok {
		return
	}

	ctx, cancel := withTimeout(r)
	defer cancel()

	s, err := h.service.MyStore(ctx, id.UserID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toStoreResponse(s))
}

// CreateStore は自店舗を作成する。既に作成済みの場合は既存の店舗を返す。
// POST /api/store
func (h *StoreHandler) CreateStore(w http.ResponseWriter, r *http.Request) {
	id, ok := verifiedIdentity(w, r)
	if !ok {
		return
	}

	var req storeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ctx, cancel := withTimeout(r)
	defer cancel()

	s, err := h.service.CreateStore(ctx, id.UserID, store.StoreInput{Name: req.Name, WebhookURL: req.WebhookURL})
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toStoreResponse(s))
}

// ListProducts は自店舗の商品一覧を返す。
// GET /api/store/products
func (h *StoreHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	id, ok := verifiedIdentity(w, r)
	if !ok {
		return
	}

	ctx, cancel := withTimeout(r)
	defer cancel()

	products, err := h.service.ListProducts(ctx, id.UserID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": toStoreProductResponses(products)})
}

// CreateProduct は自店舗に商品を追加する。
// POST /api/store/products
func (h *StoreHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := verifiedIdentity(w, r)
	if !ok {
		return
	}

	var req storeProductRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ctx, cancel := withTimeout(r)
	defer cancel()

	p, err := h.service.CreateProduct(ctx, id.UserID, store.ProductInput{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Stock:       req.Stock,
		Category:    req.Category,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toStoreProductResponse(p))
}

// UpdateProduct は自店舗の商品を部分更新する。
// PATCH /api/store/products/{id}
func (h *StoreHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := verifiedIdentity(w, r)
	if !ok {
		return
	}

	var req storeProductPatchRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ctx, cancel := withTimeout(r)
	defer cancel()

	p, err := h.service.UpdateProduct(ctx, id.UserID, chi.URLParam(r, "id"), store.ProductPatch{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Stock:       req.Stock,
		Category:    req.Category,
		Active:      req.Active,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toStoreProductResponse(p))
}

// Marketplace は公開中の全店舗の商品を返す。認証不要。
// GET /api/marketplace/products?q=&limit=&offset=
func (h *StoreHandler) Marketplace(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)

	ctx, cancel := withTimeout(r)
	defer cancel()

	products, err := h.service.Marketplace(ctx, r.URL.Query().Get("q"), limit, offset)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": toStoreProductResponses(products), "limit": limit, "offset": offset})
}
