package domain

import "time"

// OrderStatus is the order lifecycle state. The storefront owns the full
// lifecycle; reconciliation only ever reads PENDING_CONFIRMATION and writes
// CONFIRMED.
type OrderStatus string

const (
	OrderStatusPendingConfirmation OrderStatus = "PENDING_CONFIRMATION"
	OrderStatusConfirmed           OrderStatus = "CONFIRMED"
	OrderStatusCancelled           OrderStatus = "CANCELLED"
	OrderStatusShipped             OrderStatus = "SHIPPED"
	OrderStatusDelivered           OrderStatus = "DELIVERED"
)

// Order carries the fields reconciliation needs. Line items, totals and
// shipping data live with the storefront and are never touched here.
// PK: order_id. GSI: status + created_at.
type Order struct {
	OrderID     string            `json:"order_id" dynamodbav:"order_id"`
	UserID      string            `json:"user_id" dynamodbav:"user_id"`
	Status      OrderStatus       `json:"status" dynamodbav:"status"`
	CreatedAt   int64             `json:"created_at" dynamodbav:"created_at"` // Unix nanoseconds, GSI range key
	ConfirmedAt int64             `json:"confirmed_at,omitempty" dynamodbav:"confirmed_at,omitempty"`
	History     []OrderTransition `json:"history,omitempty" dynamodbav:"history,omitempty"`
}

// OrderTransition is one audit entry in an order's status history.
type OrderTransition struct {
	From  OrderStatus `json:"from" dynamodbav:"from"`
	To    OrderStatus `json:"to" dynamodbav:"to"`
	Actor string      `json:"actor" dynamodbav:"actor"` // "auto-confirm", "admin", ...
	At    int64       `json:"at" dynamodbav:"at"`       // Unix nanoseconds
}

// CreatedTime converts the persisted creation timestamp back to time.Time.
func (o *Order) CreatedTime() time.Time {
	return time.Unix(0, o.CreatedAt)
}
