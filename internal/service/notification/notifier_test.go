package notification

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/bookstore/internal/domain"
	"github.com/vladislavdragonenkov/bookstore/internal/messaging/kafka"
)

type capturePublisher struct {
	topic string
	key   string
	value any
	err   error
}

func (c *capturePublisher) PublishJSON(topic, key string, value any) error {
	c.topic, c.key, c.value = topic, key, value
	return c.err
}

func sampleOrder() domain.Order {
	return domain.Order{
		ID:          "order-1",
		UserID:      "user-1",
		TotalAmount: decimal.RequireFromString("20.00"),
		Items:       []domain.OrderItem{{ID: "item-1", BookID: "book-a", Quantity: 2}},
		Delivery:    domain.DeliveryInfo{Phone: "+15551234567", Address: "221B Baker Street"},
	}
}

func TestBrokerNotifierPublishesConfirmation(t *testing.T) {
	pub := &capturePublisher{}
	notifier := NewBrokerNotifier(pub, "")

	require.NoError(t, notifier.SendOrderConfirmation(context.Background(), sampleOrder()))
	require.Equal(t, kafka.TopicNotifications, pub.topic)
	require.Equal(t, "order-1", pub.key)

	event, ok := pub.value.(kafka.NotificationEvent)
	require.True(t, ok)
	require.Equal(t, kafka.NotificationOrderConfirmed, event.Kind)
	require.Equal(t, 1, event.Items)
	require.True(t, event.TotalAmount.Equal(decimal.RequireFromString("20")))
}

func TestBrokerNotifierWrapsPublishError(t *testing.T) {
	pub := &capturePublisher{err: errors.New("broker down")}
	err := NewBrokerNotifier(pub, "custom").SendOrderCancellation(context.Background(), sampleOrder())
	require.ErrorContains(t, err, "broker down")
	require.Equal(t, "custom", pub.topic)
}

func TestBrokerNotifierRespectsCancelledContext(t *testing.T) {
	pub := &capturePublisher{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewBrokerNotifier(pub, "").SendOrderConfirmation(ctx, sampleOrder())
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, pub.topic)
}

func TestLogNotifierLogs(t *testing.T) {
	logger, hook := test.NewNullLogger()
	notifier := NewLogNotifier(logger.WithField("component", "notifier-test"))

	require.NoError(t, notifier.SendOrderConfirmation(context.Background(), sampleOrder()))
	require.NoError(t, notifier.SendOrderCancellation(context.Background(), sampleOrder()))

	entries := hook.AllEntries()
	require.Len(t, entries, 2)
	require.Equal(t, log.InfoLevel, entries[0].Level)
	require.Equal(t, "order-1", entries[1].Data["order_id"])
}
