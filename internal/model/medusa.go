package model

import "time"

// MedusaProduct はMedusaのproductテーブルの行を表す。
type MedusaProduct struct {
	ID          string
	Title       string
	Handle      string
	Description string
	Status      string
	Thumbnail   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// MedusaCustomer はMedusaのcustomerテーブルの行を表す。
type MedusaCustomer struct {
	ID        string
	Email     string
	FirstName string
	LastName  string
	Phone     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Cart はMedusaのcartテーブルの行と明細を表す。
type Cart struct {
	ID         string
	CustomerID string
	Email      string
	Items      []LineItem
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// LineItem はMedusaのline_itemテーブルの行を表す。
type LineItem struct {
	ID        string
	CartID    string
	ProductID string
	Title     string
	Quantity  int
	UnitPrice int64
	CreatedAt time.Time
}

// Total はカート内の合計金額を返す。
func (c *Cart) Total() int64 {
	var total int64
	for _, it := range c.Items {
		total += int64(it.Quantity) * it.UnitPrice
	}
	return total
}
