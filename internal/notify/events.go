package notify

import "time"

// OrderCreatedEvent は注文作成時に発行するイベント。
type OrderCreatedEvent struct {
	OrderID     string    `json:"order_id"`
	UserID      string    `json:"user_id"`
	StoreID     string    `json:"store_id"`
	TotalAmount int64     `json:"total_amount"`
	Currency    string    `json:"currency"`
	ItemCount   int       `json:"item_count"`
	CreatedAt   time.Time `json:"created_at"`
}

// OrderStatusChangedEvent は店舗が注文状態を変更したときに発行するイベント。
type OrderStatusChangedEvent struct {
	OrderID   string    `json:"order_id"`
	StoreID   string    `json:"store_id"`
	Status    string    `json:"status"`
	ChangedAt time.Time `json:"changed_at"`
}

// InvoicePaidEvent は請求書の支払完了時に発行するイベント。
type InvoicePaidEvent struct {
	InvoiceID        string    `json:"invoice_id"`
	StoreID          string    `json:"store_id"`
	OrderID          string    `json:"order_id,omitempty"`
	Amount           int64     `json:"amount"`
	Currency         string    `json:"currency"`
	GatewayInvoiceID string    `json:"gateway_invoice_id"`
	GatewayPaymentID string    `json:"gateway_payment_id,omitempty"`
	PaidAt           time.Time `json:"paid_at"`
}
