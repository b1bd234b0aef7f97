package models

import "time"

// Event types
const (
	EventTypeOrderPlaced  = "ORDER_PLACED"
	EventTypeOrderSettled = "ORDER_SETTLED"
)

// Outbox statuses
const (
	OutboxStatusPending   = "pending"
	OutboxStatusPublished = "published"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderPlacedEvent published when a checkout is committed
type OrderPlacedEvent struct {
	BaseEvent
	GroupID  string  `json:"group_id"`
	OrderIDs []int64 `json:"order_ids"`
}

// OrderSettledEvent published once a group reaches Paid or AwaitingPayment
type OrderSettledEvent struct {
	BaseEvent
	GroupID       string        `json:"group_id"`
	OrderID       int64         `json:"order_id"`
	PaymentStatus PaymentStatus `json:"payment_status"`
	PaymentMethod string        `json:"payment_method"`
	TransactionID string        `json:"transaction_id,omitempty"`
}

// OutboxEvent is a durable, not-yet-published domain event
type OutboxEvent struct {
	ID          int64      `db:"id"`
	EventID     string     `db:"event_id"`
	AggregateID string     `db:"aggregate_id"`
	EventType   string     `db:"event_type"`
	Payload     string     `db:"payload"`
	Status      string     `db:"status"`
	Attempts    int        `db:"attempts"`
	LastError   *string    `db:"last_error"`
	CreatedAt   time.Time  `db:"created_at"`
	PublishedAt *time.Time `db:"published_at"`
}
