package checkout

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/bookstore/internal/domain"
)

// OrderEvent описывает полезную нагрузку событий заказа в outbox.
type OrderEvent struct {
	OrderID        string           `json:"order_id"`
	UserID         string           `json:"user_id"`
	Status         string           `json:"status"`
	TrackingStatus string           `json:"tracking_status"`
	TotalAmount    decimal.Decimal  `json:"total_amount"`
	Items          []OrderEventItem `json:"items"`
	Reason         string           `json:"reason,omitempty"`
	Version        int64            `json:"version"`
	OccurredAt     time.Time        `json:"occurred_at"`
}

// OrderEventItem описывает позицию заказа в событии.
type OrderEventItem struct {
	BookID    string          `json:"book_id"`
	Quantity  int32           `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

func newOrderEvent(order domain.Order, reason string, occurred time.Time) OrderEvent {
	items := make([]OrderEventItem, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, OrderEventItem{
			BookID:    item.BookID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}
	return OrderEvent{
		OrderID:        order.ID,
		UserID:         order.UserID,
		Status:         string(order.Status),
		TrackingStatus: string(order.TrackingStatus),
		TotalAmount:    order.TotalAmount,
		Items:          items,
		Reason:         reason,
		Version:        order.Version,
		OccurredAt:     occurred.UTC(),
	}
}

// emit пишет событие в outbox и историю заказа в той же транзакции, что и изменение.
func (s *Service) emit(ctx context.Context, tx domain.Tx, order domain.Order, eventType, timelineType, reason string, occurred time.Time) error {
	payload, err := json.Marshal(newOrderEvent(order, reason, occurred))
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", eventType, err)
	}

	msg := domain.OutboxMessage{
		ID:            s.newID(),
		AggregateType: domain.AggregateTypeOrder,
		AggregateID:   order.ID,
		EventType:     eventType,
		Payload:       payload,
		CreatedAt:     occurred.UTC(),
	}
	if _, err := tx.Outbox().Enqueue(ctx, msg); err != nil {
		return fmt.Errorf("enqueue %s event: %w", eventType, err)
	}

	event := domain.TimelineEvent{
		OrderID:  order.ID,
		Type:     timelineType,
		Reason:   reason,
		Occurred: occurred.UTC(),
	}
	if err := tx.Timeline().Append(ctx, event); err != nil {
		return fmt.Errorf("append timeline: %w", err)
	}
	return nil
}
