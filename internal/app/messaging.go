package app

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/bookstore/internal/domain"
	"github.com/vladislavdragonenkov/bookstore/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/bookstore/internal/service/notification"
	"github.com/vladislavdragonenkov/bookstore/internal/service/outbox"
)

// messaging определяет, куда уходят события outbox и уведомления.
type messaging struct {
	producer  *kafka.Producer
	publisher domain.OutboxPublisher
	dlq       domain.OutboxPublisher
	notifier  domain.Notifier
}

// initMessaging подключает Kafka, если брокеры заданы; иначе события и уведомления пишутся в лог.
// Недоступные брокеры считаются ошибкой старта: иначе outbox пометил бы события отправленными.
func initMessaging(cfg Config, logger *log.Entry) (*messaging, error) {
	if len(cfg.KafkaBrokers) == 0 {
		logger.Warn("kafka brokers are not configured: outbox events and notifications go to the log")
		return &messaging{
			publisher: outbox.NewLogPublisher(logger.WithField("component", "outbox-log-publisher")),
			notifier:  notification.NewLogNotifier(logger.WithField("component", "notifier")),
		}, nil
	}

	producer, err := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaClientID)
	if err != nil {
		return nil, fmt.Errorf("init kafka producer: %w", err)
	}
	logger.WithField("brokers", cfg.KafkaBrokers).Info("kafka producer initialized")

	return &messaging{
		producer:  producer,
		publisher: kafka.NewOutboxPublisher(producer, cfg.KafkaOrderTopic),
		dlq:       kafka.NewDLQPublisher(producer, cfg.KafkaDLQTopic),
		notifier:  notification.NewBrokerNotifier(producer, cfg.KafkaNotificationTopic),
	}, nil
}

// close закрывает Kafka producer, если он был создан.
func (m *messaging) close(logger *log.Entry) {
	if m == nil || m.producer == nil {
		return
	}
	if err := m.producer.Close(); err != nil {
		logger.WithError(err).Warn("failed to close kafka producer")
		return
	}
	logger.Info("kafka producer closed")
}
