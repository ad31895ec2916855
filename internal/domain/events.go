package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event bus topics
const (
	TopicOrderPlaced    = "order:placed"
	TopicOrderCancelled = "order:cancelled"
	TopicOrderStatus    = "order:status"
)

// OrderEvent is published after an order change has been committed.
type OrderEvent struct {
	OrderID int64
	UserID  int64
	Status  OrderStatus
	Total   decimal.Decimal
	Items   []OrderItemView
	At      time.Time
}
