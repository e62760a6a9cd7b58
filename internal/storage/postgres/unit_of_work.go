package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/bookstore/internal/domain"
)

const (
	defaultTxMaxAttempts    = 5
	defaultTxRetryBaseDelay = 10 * time.Millisecond
	maxTxRetryDelay         = 500 * time.Millisecond
)

// RetryObserver получает уведомление о каждом повторе транзакции (для метрик).
type RetryObserver func(attempt int, err error)

// UnitOfWork выполняет бизнес-операции в транзакции READ COMMITTED с явными блокировками строк.
// Сериализационные ошибки и дедлоки повторяются с экспоненциальной задержкой.
type UnitOfWork struct {
	db          *sql.DB
	maxAttempts int
	baseDelay   time.Duration
	onRetry     RetryObserver
	logger      *log.Entry
}

// UnitOfWorkOption настраивает UnitOfWork.
type UnitOfWorkOption func(*UnitOfWork)

// WithMaxAttempts задаёт число попыток транзакции.
func WithMaxAttempts(n int) UnitOfWorkOption {
	return func(u *UnitOfWork) {
		if n > 0 {
			u.maxAttempts = n
		}
	}
}

// WithRetryBaseDelay задаёт базовую задержку между попытками.
func WithRetryBaseDelay(d time.Duration) UnitOfWorkOption {
	return func(u *UnitOfWork) {
		if d > 0 {
			u.baseDelay = d
		}
	}
}

// WithRetryObserver подключает наблюдателя повторов.
func WithRetryObserver(fn RetryObserver) UnitOfWorkOption {
	return func(u *UnitOfWork) {
		u.onRetry = fn
	}
}

// WithLogger задаёт логгер.
func WithLogger(logger *log.Entry) UnitOfWorkOption {
	return func(u *UnitOfWork) {
		if logger != nil {
			u.logger = logger
		}
	}
}

// NewUnitOfWork создаёт транзакционную обёртку над Store.
func NewUnitOfWork(store *Store, opts ...UnitOfWorkOption) *UnitOfWork {
	u := &UnitOfWork{
		db:          store.DB(),
		maxAttempts: defaultTxMaxAttempts,
		baseDelay:   defaultTxRetryBaseDelay,
		logger:      log.New().WithField("component", "postgres-uow"),
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// WithinTx выполняет fn в транзакции. fn может быть вызвана несколько раз,
// поэтому не должна иметь побочных эффектов вне tx.
func (u *UnitOfWork) WithinTx(ctx context.Context, fn func(ctx context.Context, tx domain.Tx) error) error {
	var lastErr error
	for attempt := 1; attempt <= u.maxAttempts; attempt++ {
		err := u.runOnce(ctx, fn)
		if err == nil {
			return nil
		}
		if !isRetryableTxError(err) {
			return err
		}

		lastErr = err
		if u.onRetry != nil {
			u.onRetry(attempt, err)
		}
		if attempt == u.maxAttempts {
			break
		}
		u.logger.WithError(err).WithField("attempt", attempt).Debug("transaction conflict, retrying")

		timer := time.NewTimer(u.backoff(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return fmt.Errorf("%w after %d attempts: %v", domain.ErrTransactionConflict, u.maxAttempts, lastErr)
}

func (u *UnitOfWork) runOnce(ctx context.Context, fn func(ctx context.Context, tx domain.Tx) error) (err error) {
	sqlTx, err := u.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := sqlTx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				u.logger.WithError(rbErr).Warn("rollback failed")
			}
		}
	}()

	if err = fn(ctx, &pgTx{tx: sqlTx}); err != nil {
		return err
	}
	if err = sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// backoff считает экспоненциальную задержку с полным джиттером.
func (u *UnitOfWork) backoff(attempt int) time.Duration {
	d := u.baseDelay << (attempt - 1)
	if d <= 0 || d > maxTxRetryDelay {
		d = maxTxRetryDelay
	}
	return time.Duration(rand.Int64N(int64(d)) + 1)
}

// pgTx связывает репозитории с одной *sql.Tx.
type pgTx struct {
	tx *sql.Tx
}

func (t *pgTx) Inventory() domain.InventoryLedger { return &inventoryLedger{q: t.tx} }
func (t *pgTx) Orders() domain.OrderWriter { return &orderWriter{q: t.tx} }
func (t *pgTx) Outbox() domain.OutboxWriter { return &outboxRepository{q: t.tx} }
func (t *pgTx) Timeline() domain.TimelineWriter { return &timelineRepository{q: t.tx} }

var (
	_ domain.UnitOfWork = (*UnitOfWork)(nil)
	_ domain.Tx         = (*pgTx)(nil)
)
