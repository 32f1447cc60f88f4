package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/binaahub/binna/internal/erp"
	"github.com/binaahub/binna/internal/model"
)

// ERPServiceInterface はERPハンドラーが必要とするサービスインターフェース。
type ERPServiceInterface interface {
	ListInvoices(ctx context.Context, ownerID string, limit, offset int) ([]*model.Invoice, error)
	GetInvoice(ctx context.Context, ownerID, invoiceID string) (*model.Invoice, error)
	CreateInvoice(ctx context.Context, ownerID, orderID string) (*model.Invoice, error)
	SalesReport(ctx context.Context, ownerID, from, to string) (*erp.SalesReport, error)
	InventoryReport(ctx context.Context, ownerID string) (*erp.InventoryReport, error)
}

// ERPHandler は請求書とレポートのHTTPハンドラー。
type ERPHandler struct {
	service ERPServiceInterface
}

// NewERPHandler はERPHandlerを生成する。
func NewERPHandler(service ERPServiceInterface) *ERPHandler {
	return &ERPHandler{service: service}
}

type createInvoiceRequest struct {
	OrderID string `json:"order_id"`
}

type invoiceResponse struct {
	ID               string     `json:"id"`
	StoreID          string     `json:"store_id"`
	OrderID          string     `json:"order_id"`
	UserID           string     `json:"user_id"`
	Amount           int64      `json:"amount"`
	Currency         string     `json:"currency"`
	Status           string     `json:"status"`
	GatewayInvoiceID string     `json:"gateway_invoice_id,omitempty"`
	PaidAt           *time.Time `json:"paid_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

type salesRowResponse struct {
	Day         string `json:"day"`
	OrderCount  int    `json:"order_count"`
	GrossAmount int64  `json:"gross_amount"`
	PaidAmount  int64  `json:"paid_amount"`
}

type inventoryItemResponse struct {
	ProductID  string `json:"product_id"`
	Name       string `json:"name"`
	Stock      int    `json:"stock"`
	Price      int64  `json:"price"`
	StockValue int64  `json:"stock_value"`
	LowStock   bool   `json:"low_stock"`
	Active     bool   `json:"active"`
}

func toInvoiceResponse(inv *model.Invoice) invoiceResponse {
	return invoiceResponse{
		ID:               inv.ID,
		StoreID:          inv.StoreID,
		OrderID:          inv.OrderID,
		UserID:           inv.UserID,
		Amount:           inv.Amount,
		Currency:         inv.Currency,
		Status:           string(inv.Status),
		GatewayInvoiceID: inv.GatewayInvoiceID,
		PaidAt:           inv.PaidAt,
		CreatedAt:        inv.CreatedAt,
	}
}

// ListInvoices は自店舗の請求書一覧を返す。
// GET /api/erp/invoices
func (h *ERPHandler) ListInvoices(w http.ResponseWriter, r *http.Request) {
	id, ok := verifiedIdentity(w, r)
	if !ok {
		return
	}
	limit, offset := pagination(r)

	ctx, cancel := withTimeout(r)
	defer cancel()

	invoices, err := h.service.ListInvoices(ctx, id.UserID, limit, offset)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	out := make([]invoiceResponse, 0, len(invoices))
	for _, inv := range invoices {
		out = append(out, toInvoiceResponse(inv))
	}
	writeJSON(w, http.StatusOK, map[string]any{"invoices": out, "limit": limit, "offset": offset})
}

// GetInvoice は自店舗の請求書を返す。
// GET /api/erp/invoices/{id}
func (h *ERPHandler) GetInvoice(w http.ResponseWriter, r *http.Request) {
	id, ok := verifiedIdentity(w, r)
	if !ok {
		return
	}

	ctx, cancel := withTimeout(r)
	defer cancel()

	inv, err := h.service.GetInvoice(ctx, id.UserID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toInvoiceResponse(inv))
}

// CreateInvoice は自店舗宛ての注文から未払いの請求書を作成する。
// POST /api/erp/invoices
func (h *ERPHandler) CreateInvoice(w http.ResponseWriter, r *http.Request) {
	id, ok := verifiedIdentity(w, r)
	if !ok {
		return
	}

	var req createInvoiceRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ctx, cancel := withTimeout(r)
	defer cancel()

	inv, err := h.service.CreateInvoice(ctx, id.UserID, req.OrderID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toInvoiceResponse(inv))
}

// SalesReport は日別の売上を返す。from・toはYYYY-MM-DDで、toを含む。
// GET /api/erp/reports/sales?from=&to=
func (h *ERPHandler) SalesReport(w http.ResponseWriter, r *http.Request) {
	id, ok := verifiedIdentity(w, r)
	if !ok {
		return
	}

	ctx, cancel := withTimeout(r)
	defer cancel()

	q := r.URL.Query()
	report, err := h.service.SalesReport(ctx, id.UserID, q.Get("from"), q.Get("to"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	rows := make([]salesRowResponse, 0, len(report.Rows))
	for _, row := range report.Rows {
		rows = append(rows, salesRowResponse{
			Day:         row.Day.Format(time.DateOnly),
			OrderCount:  row.OrderCount,
			GrossAmount: row.GrossAmount,
			PaidAmount:  row.PaidAmount,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"from":         report.From.Format(time.DateOnly),
		"to":           report.To.AddDate(0, 0, -1).Format(time.DateOnly),
		"rows":         rows,
		"order_count":  report.OrderCount,
		"gross_amount": report.GrossAmount,
		"paid_amount":  report.PaidAmount,
	})
}

// InventoryReport は自店舗の在庫一覧を返す。
// GET /api/erp/reports/inventory
func (h *ERPHandler) InventoryReport(w http.ResponseWriter, r *http.Request) {
	id, ok := verifiedIdentity(w, r)
	if !ok {
		return
	}

	ctx, cancel := withTimeout(r)
	defer cancel()

	report, err := h.service.InventoryReport(ctx, id.UserID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	items := make([]inventoryItemResponse, 0, len(report.Items))
	for _, it := range report.Items {
		items = append(items, inventoryItemResponse(it))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items":           items,
		"total_products":  report.TotalProducts,
		"low_stock_count": report.LowStockCount,
		"stock_value":     report.StockValue,
	})
}
