package memory

import (
	"context"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/bookstore/internal/domain"
)

// Store хранит книги, заказы, outbox и историю заказов в памяти процесса. Используется в тестах и локальной разработке.
// Транзакция держит эксклюзивную блокировку всего хранилища, откат выполняется по журналу отмены.
// Данные не переживают перезапуск процесса.
type Store struct {
	mu       sync.RWMutex
	books    map[string]domain.Book
	orders   map[string]domain.Order
	outbox   map[string]*outboxRecord
	timeline map[string][]domain.TimelineEvent
	now      func() time.Time
}

// NewStore создаёт пустое хранилище.
func NewStore() *Store {
	return &Store{
		books:    make(map[string]domain.Book),
		orders:   make(map[string]domain.Order),
		outbox:   make(map[string]*outboxRecord),
		timeline: make(map[string][]domain.TimelineEvent),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithinTx выполняет fn под эксклюзивной блокировкой и откатывает изменения при ошибке или панике.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx domain.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memoryTx{store: s}
	committed := false
	// Откат срабатывает до Unlock, в том числе когда fn паникует.
	defer func() {
		if !committed {
			tx.rollback()
		}
	}()

	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	committed = true
	return nil
}

// memoryTx представляет хранилище внутри транзакции. Вызывается под s.mu.Lock.
type memoryTx struct {
	store *Store
	undo  []func()
}

func (t *memoryTx) Inventory() domain.InventoryLedger { return (*txLedger)(t) }
func (t *memoryTx) Orders() domain.OrderWriter { return (*txOrders)(t) }
func (t *memoryTx) Outbox() domain.OutboxWriter { return (*txOutbox)(t) }
func (t *memoryTx) Timeline() domain.TimelineWriter { return (*txTimeline)(t) }

func (t *memoryTx) onRollback(fn func()) {
	t.undo = append(t.undo, fn)
}

func (t *memoryTx) rollback() {
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}

var (
	_ domain.UnitOfWork = (*Store)(nil)
	_ domain.Tx         = (*memoryTx)(nil)
)
