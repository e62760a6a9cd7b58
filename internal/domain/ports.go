package domain

import (
	"context"
	"time"
)

// InventoryLedger владеет остатками книг внутри транзакции.
type InventoryLedger interface {
	// LockBooks блокирует строки книг в порядке возрастания ID и возвращает найденные.
	LockBooks(ctx context.Context, bookIDs []string) (map[string]Book, error)
	// Reserve списывает qty экземпляров: ErrBookNotFound или *StockError при отказе.
	Reserve(ctx context.Context, bookID string, qty int32) (Book, error)
	// Release возвращает qty экземпляров на склад.
	Release(ctx context.Context, bookID string, qty int32) (Book, error)
}

// OrderWriter изменяет заказы внутри транзакции.
type OrderWriter interface {
	// Create сохраняет заказ вместе с позициями.
	Create(ctx context.Context, order Order) error
	// GetForUpdate читает заказ с блокировкой строки до конца транзакции.
	GetForUpdate(ctx context.Context, id string) (Order, error)
	// Update сохраняет статусы заказа с проверкой версии.
	Update(ctx context.Context, order Order) error
}

// OutboxWriter ставит событие в outbox в рамках текущей транзакции.
type OutboxWriter interface {
	Enqueue(ctx context.Context, msg OutboxMessage) (OutboxMessage, error)
}

// TimelineWriter дописывает историю заказа в рамках текущей транзакции.
type TimelineWriter interface {
	Append(ctx context.Context, event TimelineEvent) error
}

// Tx объединяет репозитории, разделяющие одну транзакцию.
type Tx interface {
	Inventory() InventoryLedger
	Orders() OrderWriter
	Outbox() OutboxWriter
	Timeline() TimelineWriter
}

// UnitOfWork выполняет fn атомарно: либо фиксируются все изменения, либо ни одного.
type UnitOfWork interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// BookRepository читает и заводит книги вне транзакций оформления.
type BookRepository interface {
	Create(ctx context.Context, book Book) error
	Get(ctx context.Context, id string) (Book, error)
}

// OrderRepository читает заказы.
type OrderRepository interface {
	// Get возвращает заказ по идентификатору или ErrOrderNotFound.
	Get(ctx context.Context, id string) (Order, error)
	// Search возвращает страницу заказов по фильтрам запроса.
	Search(ctx context.Context, query OrderQuery) (OrderPage, error)
	// MarkEmailSent выставляет флаг отправленного уведомления.
	MarkEmailSent(ctx context.Context, id string) error
}

// Notifier отправляет клиенту уведомления о заказе. Ошибки не влияют на исход операции.
type Notifier interface {
	SendOrderConfirmation(ctx context.Context, order Order) error
	SendOrderCancellation(ctx context.Context, order Order) error
}

// OutboxPublisher публикует события из transactional outbox.
type OutboxPublisher interface {
	// Publish передаёт событие наружу; должен быть идемпотентным.
	Publish(event OutboxMessage) error
}

// OutboxRepository отдаёт накопленные события воркеру публикации.
type OutboxRepository interface {
	PullPending(ctx context.Context, limit int) ([]OutboxMessage, error)
	Stats(ctx context.Context) (OutboxStats, error)
	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string) error
}

// TimelineRepository хранит события жизненного цикла заказа.
type TimelineRepository interface {
	Append(ctx context.Context, event TimelineEvent) error
	List(ctx context.Context, orderID string) ([]TimelineEvent, error)
}

// IdempotencyRepository хранит состояние обработки запросов по idempotency-key.
type IdempotencyRepository interface {
	CreateProcessing(ctx context.Context, key, requestHash string, ttlAt time.Time) (IdempotencyRecord, error)
	Get(ctx context.Context, key string) (IdempotencyRecord, error)
	MarkDone(ctx context.Context, key string, responseBody []byte, statusCode int) error
	MarkFailed(ctx context.Context, key string, responseBody []byte, statusCode int) error
	DeleteExpired(ctx context.Context, before time.Time, limit int) (int, error)
}

// Типы событий outbox.
const (
	AggregateTypeOrder = "order"

	EventOrderPlaced          = "order.placed"
	EventOrderCancelled       = "order.cancelled"
	EventOrderTrackingChanged = "order.tracking_changed"
)

// OutboxMessage хранит данные для публикуемого события.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
	CreatedAt     time.Time
}

// OutboxStats описывает текущее состояние backlog transactional outbox.
type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}
