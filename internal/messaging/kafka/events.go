package kafka

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Топики по умолчанию.
const (
	TopicOrderEvents     = "bookstore.order.events"
	TopicNotifications   = "bookstore.notifications"
	TopicDeadLetterQueue = "bookstore.dlq"
)

// Заголовки сообщений.
const (
	HeaderEventType     = "x-event-type"
	HeaderOutboxID      = "x-outbox-id"
	HeaderAggregateType = "x-aggregate-type"
)

// Envelope оборачивает событие из outbox, ключом сообщения служит ID заказа.
type Envelope struct {
	ID            string          `json:"id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	CreatedAt     time.Time       `json:"created_at"`
	PublishedAt   time.Time       `json:"published_at"`
}

// NotificationKind задаёт вид уведомления клиента.
type NotificationKind string

const (
	NotificationOrderConfirmed NotificationKind = "order_confirmed"
	NotificationOrderCancelled NotificationKind = "order_cancelled"
)

// NotificationEvent описывает задание на отправку уведомления внешнему сервису рассылок.
type NotificationEvent struct {
	Kind        NotificationKind `json:"kind"`
	OrderID     string           `json:"order_id"`
	UserID      string           `json:"user_id"`
	TotalAmount decimal.Decimal  `json:"total_amount"`
	Items       int              `json:"items"`
	Phone       string           `json:"phone,omitempty"`
	Address     string           `json:"address,omitempty"`
	OccurredAt  time.Time        `json:"occurred_at"`
}
