// Package erp は店舗向けの請求書管理と売上・在庫レポートを提供する。
package erp

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/binaahub/binna/internal/model"
	"github.com/binaahub/binna/internal/repository"
)

const (
	dateLayout         = "2006-01-02"
	defaultReportDays  = 30
	maxReportRangeDays = 366
)

// SalesReport は期間内の日別売上と合計。Toは含まない。
type SalesReport struct {
	From        time.Time
	To          time.Time
	Rows        []model.SalesReportRow
	OrderCount  int
	GrossAmount int64
	PaidAmount  int64
}

// InventoryItem は在庫レポートの1行。
type InventoryItem struct {
	ProductID  string
	Name       string
	Stock      int
	Price      int64
	StockValue int64
	LowStock   bool
	Active     bool
}

// InventoryReport は店舗の在庫一覧と集計。
type InventoryReport struct {
	Items         []InventoryItem
	TotalProducts int
	LowStockCount int
	StockValue    int64
}

// Service はERPのサービス層。
type Service struct {
	orders   repository.OrderRepository
	invoices repository.InvoiceRepository
	stores   repository.StoreRepository
	now      func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(orders repository.OrderRepository, invoices repository.InvoiceRepository, stores repository.StoreRepository) *Service {
	return &Service{orders: orders, invoices: invoices, stores: stores, now: time.Now}
}

func (s *Service) ownedStore(ctx context.Context, ownerID string) (*model.Store, error) {
	st, err := s.stores.FindByOwnerID(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("店舗の取得に失敗しました: %w", err)
	}
	if st == nil {
		return nil, model.NewStoreNotFoundError()
	}
	return st, nil
}

// ListInvoices は店舗の請求書を新しい順に返す。
func (s *Service) ListInvoices(ctx context.Context, ownerID string, limit, offset int) ([]*model.Invoice, error) {
	st, err := s.ownedStore(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	invoices, err := s.invoices.ListByStore(ctx, st.ID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("請求書一覧の取得に失敗しました: %w", err)
	}
	return invoices, nil
}

// GetInvoice は店舗の請求書を返す。
func (s *Service) GetInvoice(ctx context.Context, ownerID, invoiceID string) (*model.Invoice, error) {
	st, err := s.ownedStore(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if _, err := uuid.Parse(invoiceID); err != nil {
		return nil, model.NewInvoiceNotFoundError()
	}
	inv, err := s.invoices.FindByID(ctx, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("請求書の取得に失敗しました: %w", err)
	}
	if inv == nil || inv.StoreID != st.ID {
		return nil, model.NewInvoiceNotFoundError()
	}
	return inv, nil
}

// CreateInvoice は自店舗の注文に対して未払いの請求書を発行する。金額は注文合計。
func (s *Service) CreateInvoice(ctx context.Context, ownerID, orderID string) (*model.Invoice, error) {
	st, err := s.ownedStore(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if _, err := uuid.Parse(orderID); err != nil {
		return nil, model.NewOrderNotFoundError()
	}
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("注文の取得に失敗しました: %w", err)
	}
	if order == nil || order.StoreID != st.ID {
		return nil, model.NewOrderNotFoundError()
	}
	if order.Status == model.OrderStatusCancelled {
		return nil, model.NewValidationError("order_id", "الطلب ملغى")
	}

	now := s.now()
	inv := &model.Invoice{
		ID:        uuid.New().String(),
		StoreID:   st.ID,
		OrderID:   order.ID,
		UserID:    order.UserID,
		Amount:    order.TotalAmount,
		Currency:  order.Currency,
		Status:    model.InvoiceStatusUnpaid,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.invoices.Create(ctx, inv); err != nil {
		return nil, fmt.Errorf("請求書の作成に失敗しました: %w", err)
	}
	return inv, nil
}

// parseRange はレポート期間を解析する。未指定の場合は直近30日。toの日付は含む。
func (s *Service) parseRange(from, to string) (time.Time, time.Time, error) {
	today := s.now().UTC().Truncate(24 * time.Hour)
	end := today.AddDate(0, 0, 1)
	if to != "" {
		t, err := time.Parse(dateLayout, to)
		if err != nil {
			return time.Time{}, time.Time{}, model.NewValidationError("to", "صيغة التاريخ YYYY-MM-DD")
		}
		end = t.AddDate(0, 0, 1)
	}
	start := end.AddDate(0, 0, -defaultReportDays)
	if from != "" {
		f, err := time.Parse(dateLayout, from)
		if err != nil {
			return time.Time{}, time.Time{}, model.NewValidationError("from", "صيغة التاريخ YYYY-MM-DD")
		}
		start = f
	}
	if !start.Before(end) {
		return time.Time{}, time.Time{}, model.NewValidationError("from", "يجب أن يسبق تاريخ النهاية")
	}
	if end.Sub(start) > maxReportRangeDays*24*time.Hour {
		return time.Time{}, time.Time{}, model.NewValidationError("from", "المدة القصوى سنة واحدة")
	}
	return start, end, nil
}

// SalesReport は期間内の日別売上を返す。
func (s *Service) SalesReport(ctx context.Context, ownerID, from, to string) (*SalesReport, error) {
	start, end, err := s.parseRange(from, to)
	if err != nil {
		return nil, err
	}
	st, err := s.ownedStore(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	rows, err := s.orders.SalesReport(ctx, st.ID, start, end)
	if err != nil {
		return nil, fmt.Errorf("売上レポートの取得に失敗しました: %w", err)
	}

	report := &SalesReport{From: start, To: end, Rows: rows}
	for _, r := range rows {
		report.OrderCount += r.OrderCount
		report.GrossAmount += r.GrossAmount
		report.PaidAmount += r.PaidAmount
	}
	return report, nil
}

// InventoryReport は店舗商品の在庫状況を返す。
func (s *Service) InventoryReport(ctx context.Context, ownerID string) (*InventoryReport, error) {
	st, err := s.ownedStore(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	products, err := s.stores.ListProducts(ctx, st.ID)
	if err != nil {
		return nil, fmt.Errorf("商品一覧の取得に失敗しました: %w", err)
	}

	report := &InventoryReport{Items: make([]InventoryItem, 0, len(products))}
	for _, p := range products {
		item := InventoryItem{
			ProductID:  p.ID,
			Name:       p.Name,
			Stock:      p.Stock,
			Price:      p.Price,
			StockValue: int64(p.Stock) * p.Price,
			LowStock:   p.Stock <= model.LowStockThreshold,
			Active:     p.Active,
		}
		if item.LowStock {
			report.LowStockCount++
		}
		report.StockValue += item.StockValue
		report.Items = append(report.Items, item)
	}
	report.TotalProducts = len(report.Items)
	return report, nil
}
