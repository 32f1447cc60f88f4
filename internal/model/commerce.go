package model

import "time"

// Store は出店者（store アカウント）の店舗情報を表す。
type Store struct {
	ID         string
	OwnerID    string
	Name       string
	WebhookURL string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// StoreProduct は店舗が管理する商品を表す。金額はハララ単位の整数。
type StoreProduct struct {
	ID          string
	StoreID     string
	Name        string
	Description string
	Price       int64
	Stock       int
	Category    string
	Active      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// LowStockThreshold はこの数以下の在庫を在庫僅少とみなす。
const LowStockThreshold = 5

// OrderStatus は注文の状態を表す。
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusShipped   OrderStatus = "shipped"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// Valid は定義済みの注文状態かどうかを返す。
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

// Order は注文ヘッダを表す。
type Order struct {
	ID              string
	UserID          string
	StoreID         string
	Status          OrderStatus
	TotalAmount     int64
	Currency        string
	ShippingAddress string
	Notes           string
	Items           []OrderItem
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// OrderItem は注文明細を表す。
type OrderItem struct {
	ID        string
	OrderID   string
	ProductID string
	Name      string
	Quantity  int
	UnitPrice int64
}

// Subtotal は明細の小計を返す。
func (i OrderItem) Subtotal() int64 {
	return int64(i.Quantity) * i.UnitPrice
}

// InvoiceStatus は請求書の支払状態を表す。
type InvoiceStatus string

const (
	InvoiceStatusUnpaid  InvoiceStatus = "unpaid"
	InvoiceStatusPending InvoiceStatus = "pending"
	InvoiceStatusPaid    InvoiceStatus = "paid"
	InvoiceStatusFailed  InvoiceStatus = "failed"
)

// Invoice はERPの請求書を表す。
type Invoice struct {
	ID               string
	StoreID          string
	OrderID          string
	UserID           string
	Amount           int64
	Currency         string
	Status           InvoiceStatus
	GatewayInvoiceID string
	GatewayPaymentID string
	PaidAt           *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Notification はユーザー宛ての通知を表す。
type Notification struct {
	ID        string
	UserID    string
	Kind      string
	Title     string
	Body      string
	ReadAt    *time.Time
	CreatedAt time.Time
}

// SalesReportRow は日別の売上集計行。
type SalesReportRow struct {
	Day         time.Time
	OrderCount  int
	GrossAmount int64
	PaidAmount  int64
}
