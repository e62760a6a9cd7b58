package notification

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/bookstore/internal/domain"
	"github.com/vladislavdragonenkov/bookstore/internal/messaging/kafka"
)

// LogNotifier пишет уведомления в лог. Используется, когда брокер не настроен.
type LogNotifier struct {
	logger *log.Entry
}

// NewLogNotifier создаёт LogNotifier.
func NewLogNotifier(logger *log.Entry) *LogNotifier {
	if logger == nil {
		logger = log.WithField("component", "notifier")
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) SendOrderConfirmation(_ context.Context, order domain.Order) error {
	n.logger.WithFields(log.Fields{
		"order_id": order.ID,
		"user_id":  order.UserID,
		"total":    order.TotalAmount.String(),
	}).Info("order confirmation")
	return nil
}

func (n *LogNotifier) SendOrderCancellation(_ context.Context, order domain.Order) error {
	n.logger.WithFields(log.Fields{
		"order_id": order.ID,
		"user_id":  order.UserID,
	}).Info("order cancellation")
	return nil
}

// jsonPublisher описывает то, что нужно от Kafka producer.
type jsonPublisher interface {
	PublishJSON(topic, key string, value any) error
}

// BrokerNotifier ставит задания на рассылку в topic уведомлений.
// Доставку письма выполняет внешний сервис.
type BrokerNotifier struct {
	publisher jsonPublisher
	topic     string
	now       func() time.Time
}

// NewBrokerNotifier создаёт BrokerNotifier; при пустом topic используется kafka.TopicNotifications.
func NewBrokerNotifier(publisher jsonPublisher, topic string) *BrokerNotifier {
	if topic == "" {
		topic = kafka.TopicNotifications
	}
	return &BrokerNotifier{
		publisher: publisher,
		topic:     topic,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (n *BrokerNotifier) SendOrderConfirmation(ctx context.Context, order domain.Order) error {
	return n.send(ctx, kafka.NotificationOrderConfirmed, order)
}

func (n *BrokerNotifier) SendOrderCancellation(ctx context.Context, order domain.Order) error {
	return n.send(ctx, kafka.NotificationOrderCancelled, order)
}

func (n *BrokerNotifier) send(ctx context.Context, kind kafka.NotificationKind, order domain.Order) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	event := kafka.NotificationEvent{
		Kind:        kind,
		OrderID:     order.ID,
		UserID:      order.UserID,
		TotalAmount: order.TotalAmount,
		Items:       len(order.Items),
		Phone:       order.Delivery.Phone,
		Address:     order.Delivery.Address,
		OccurredAt:  n.now(),
	}
	if err := n.publisher.PublishJSON(n.topic, order.ID, event); err != nil {
		return fmt.Errorf("publish %s notification: %w", kind, err)
	}
	return nil
}

var (
	_ domain.Notifier = (*LogNotifier)(nil)
	_ domain.Notifier = (*BrokerNotifier)(nil)
	_ jsonPublisher   = (*kafka.Producer)(nil)
)
