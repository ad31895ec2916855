package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderPending    OrderStatus = "Pending"
	OrderProcessing OrderStatus = "Processing"
	OrderShipped    OrderStatus = "Shipped"
	OrderDelivered  OrderStatus = "Delivered"
	OrderCancelled  OrderStatus = "Cancelled"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderPending:    {OrderProcessing, OrderCancelled},
	OrderProcessing: {OrderShipped, OrderCancelled},
	OrderShipped:    {OrderDelivered},
}

func ParseOrderStatus(s string) (OrderStatus, bool) {
	s = strings.TrimSpace(s)
	for _, st := range []OrderStatus{OrderPending, OrderProcessing, OrderShipped, OrderDelivered, OrderCancelled} {
		if strings.EqualFold(string(st), s) {
			return st, true
		}
	}
	return "", false
}

// CanTransition reports whether an order may move from s to next.
func (s OrderStatus) CanTransition(next OrderStatus) bool {
	for _, st := range orderTransitions[s] {
		if st == next {
			return true
		}
	}
	return false
}

// Cancellable is true only for Pending and Processing.
func (s OrderStatus) Cancellable() bool {
	return s.CanTransition(OrderCancelled)
}

// Order is owned by a user through UserID. TotalAmount is fixed at commit time.
type Order struct {
	ID              int64           `gorm:"primaryKey;autoIncrement:false" json:"id,string"`
	UserID          int64           `gorm:"index;not null" json:"user_id,string"`
	Status          OrderStatus     `gorm:"size:16;index;not null" json:"status"`
	TotalAmount     decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"total_amount"`
	ShippingAddress string          `gorm:"size:500;not null" json:"shipping_address"`
	Notes           string          `gorm:"size:1000" json:"notes"`
	Items           []OrderItem     `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items"`
	CreatedAt       time.Time       `gorm:"index" json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// TableName Specify table name
func (Order) TableName() string {
	return "orders"
}

// OrderItem keeps the product name and unit price captured when the order was placed.
type OrderItem struct {
	ID          int64           `gorm:"primaryKey;autoIncrement:false" json:"id,string"`
	OrderID     int64           `gorm:"index;not null" json:"order_id,string"`
	ProductID   int64           `gorm:"index;not null" json:"product_id,string"`
	ProductName string          `gorm:"size:100" json:"product_name"`
	Quantity    int             `gorm:"not null" json:"quantity"`
	UnitPrice   decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"unit_price"`
}

// TableName Specify table name
func (OrderItem) TableName() string {
	return "order_items"
}

func (i OrderItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// OrderItemView is the read shape of a line item.
type OrderItemView struct {
	ProductID   int64           `json:"product_id,string"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	LineTotal   decimal.Decimal `json:"line_total"`
}

// OrderView is the denormalized order returned to callers.
type OrderView struct {
	ID              int64           `json:"id,string"`
	UserID          int64           `json:"user_id,string"`
	CreatedAt       time.Time       `json:"created_at"`
	Status          string          `json:"status"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	ShippingAddress string          `json:"shipping_address"`
	Notes           string          `json:"notes"`
	Items           []OrderItemView `json:"items"`
}

func (o *Order) View() OrderView {
	v := OrderView{
		ID:              o.ID,
		UserID:          o.UserID,
		CreatedAt:       o.CreatedAt,
		Status:          string(o.Status),
		TotalAmount:     o.TotalAmount,
		ShippingAddress: o.ShippingAddress,
		Notes:           o.Notes,
		Items:           make([]OrderItemView, 0, len(o.Items)),
	}
	for _, it := range o.Items {
		v.Items = append(v.Items, OrderItemView{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			LineTotal:   it.LineTotal(),
		})
	}
	return v
}
