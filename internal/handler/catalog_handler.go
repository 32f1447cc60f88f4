package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/binaahub/binna/internal/catalog"
	"github.com/binaahub/binna/internal/model"
)

// CatalogServiceInterface はMedusaテーブルを扱うハンドラーが必要とするサービスインターフェース。
type CatalogServiceInterface interface {
	ListProducts(ctx context.Context, query string, limit, offset int) ([]*model.MedusaProduct, error)
	CreateProduct(ctx context.Context, in catalog.ProductInput) (*model.MedusaProduct, error)
	UpdateProduct(ctx context.Context, id string, patch catalog.ProductPatch) (*model.MedusaProduct, error)
	ListCustomers(ctx context.Context, limit, offset int) ([]*model.MedusaCustomer, error)
	CreateCustomer(ctx context.Context, in catalog.CustomerInput) (*model.MedusaCustomer, error)
	UpdateCustomer(ctx context.Context, id string, patch catalog.CustomerPatch) (*model.MedusaCustomer, error)
	GetCart(ctx context.Context, email string) (*model.Cart, error)
	AddCartItem(ctx context.Context, email string, in catalog.CartItemInput) (*model.Cart, error)
}

// CatalogHandler は管理者向けの商品・顧客管理と購入者のカートのHTTPハンドラー。
type CatalogHandler struct {
	service CatalogServiceInterface
}

// NewCatalogHandler はCatalogHandlerを生成する。
func NewCatalogHandler(service CatalogServiceInterface) *CatalogHandler {
	return &CatalogHandler{service: service}
}

type medusaProductRequest struct {
	Title       string `json:"title"`
	Handle      string `json:"handle"`
	Description string `json:"description"`
	Status      string `json:"status"`
	Thumbnail   string `json:"thumbnail"`
}

type medusaProductPatchRequest struct {
	Title       *string `json:"title"`
	Handle      *string `json:"handle"`
	Description *string `json:"description"`
	Status      *string `json:"status"`
	Thumbnail   *string `json:"thumbnail"`
}

type medusaProductResponse struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Handle      string    `json:"handle"`
	Description string    `json:"description"`
	Status      string    `json:"status"`
	Thumbnail   string    `json:"thumbnail,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type medusaCustomerRequest struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
}

type medusaCustomerPatchRequest struct {
	Email     *string `json:"email"`
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Phone     *string `json:"phone"`
}

type medusaCustomerResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Phone     string    `json:"phone,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type cartItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
}

type lineItemResponse struct {
	ID        string `json:"id"`
	ProductID string `json:"product_id"`
	Title     string `json:"title"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
}

type cartResponse struct {
	ID    string             `json:"id,omitempty"`
	Email string             `json:"email"`
	Items []lineItemResponse `json:"items"`
	Total int64              `json:"total"`
}

func toMedusaProductResponse(p *model.MedusaProduct) medusaProductResponse {
	return medusaProductResponse{
		ID:          p.ID,
		Title:       p.Title,
		Handle:      p.Handle,
		Description: p.Description,
		Status:      p.Status,
		Thumbnail:   p.Thumbnail,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func toMedusaCustomerResponse(c *model.MedusaCustomer) medusaCustomerResponse {
	return medusaCustomerResponse{
		ID:        c.ID,
		Email:     c.Email,
		FirstName: c.FirstName,
		LastName:  c.LastName,
		Phone:     c.Phone,
		CreatedAt: c.CreatedAt,
	}
}

func toCartResponse(c *model.Cart) cartResponse {
	resp := cartResponse{ID: c.ID, Email: c.Email, Items: make([]lineItemResponse, 0, len(c.Items)), Total: c.Total()}
	for _, it := range c.Items {
		resp.Items = append(resp.Items, lineItemResponse{
			ID:        it.ID,
			ProductID: it.ProductID,
			Title:     it.Title,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
		})
	}
	return resp
}

// --- 商品 ---

// ListProducts はMedusaの商品一覧を返す。
// GET /api/admin/products?q=&limit=&offset=
func (h *CatalogHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)

	ctx, cancel := withTimeout(r)
	defer cancel()

	products, err := h.service.ListProducts(ctx, r.URL.Query().Get("q"), limit, offset)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	out := make([]medusaProductResponse, 0, len(products))
	for _, p := range products {
		out = append(out, toMedusaProductResponse(p))
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": out, "limit": limit, "offset": offset})
}

// CreateProduct はMedusaに商品を作成する。
// POST /api/admin/products
func (h *CatalogHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req medusaProductRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ctx, cancel := withTimeout(r)
	defer cancel()

	p, err := h.service.CreateProduct(ctx, catalog.ProductInput(req))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toMedusaProductResponse(p))
}

// UpdateProduct はMedusaの商品を部分更新する。
// PATCH /api/admin/products/{id}
func (h *CatalogHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	var req medusaProductPatchRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ctx, cancel := withTimeout(r)
	defer cancel()

	p, err := h.service.UpdateProduct(ctx, chi.URLParam(r, "id"), catalog.ProductPatch(req))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toMedusaProductResponse(p))
}

// --- 顧客 ---

// ListCustomers はMedusaの顧客一覧を返す。
// GET /api/admin/customers
func (h *CatalogHandler) ListCustomers(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)

	ctx, cancel := withTimeout(r)
	defer cancel()

	customers, err := h.service.ListCustomers(ctx, limit, offset)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	out := make([]medusaCustomerResponse, 0, len(customers))
	for _, c := range customers {
		out = append(out, toMedusaCustomerResponse(c))
	}
	writeJSON(w, http.StatusOK, map[string]any{"customers": out, "limit": limit, "offset": offset})
}

// CreateCustomer はMedusaに顧客を作成する。
// POST /api/admin/customers
func (h *CatalogHandler) CreateCustomer(w http.ResponseWriter, r *http.Request) {
	var req medusaCustomerRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ctx, cancel := withTimeout(r)
	defer cancel()

	c, err := h.service.CreateCustomer(ctx, catalog.CustomerInput(req))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toMedusaCustomerResponse(c))
}

// UpdateCustomer はMedusaの顧客を部分更新する。
// PATCH /api/admin/customers/{id}
func (h *CatalogHandler) UpdateCustomer(w http.ResponseWriter, r *http.Request) {
	var req medusaCustomerPatchRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ctx, cancel := withTimeout(r)
	defer cancel()

	c, err := h.service.UpdateCustomer(ctx, chi.URLParam(r, "id"), catalog.CustomerPatch(req))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toMedusaCustomerResponse(c))
}

// --- カート ---

// GetCart は自分の未完了カートを返す。
// GET /api/cart
func (h *CatalogHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	id, ok := verifiedIdentity(w, r)
	if !ok {
		return
	}

	ctx, cancel := withTimeout(r)
	defer cancel()

	cart, err := h.service.GetCart(ctx, id.Email)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartResponse(cart))
}

// AddCartItem はカートに商品を追加する。カートがなければ作成する。
// POST /api/cart/items
func (h *CatalogHandler) AddCartItem(w http.ResponseWriter, r *http.Request) {
	id, ok := verifiedIdentity(w, r)
	if !ok {
		return
	}

	var req cartItemRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ctx, cancel := withTimeout(r)
	defer cancel()

	cart, err := h.service.AddCartItem(ctx, id.Email, catalog.CartItemInput(req))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCartResponse(cart))
}
