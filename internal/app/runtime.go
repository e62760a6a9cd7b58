package app

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/bookstore/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/bookstore/internal/health"
	"github.com/vladislavdragonenkov/bookstore/internal/metrics"
	"github.com/vladislavdragonenkov/bookstore/internal/storage/memory"
	"github.com/vladislavdragonenkov/bookstore/internal/storage/postgres"
	"github.com/vladislavdragonenkov/bookstore/internal/storage/redisstore"
)

// runtimeDependencies содержит хранилища, выбранные конфигурацией.
type runtimeDependencies struct {
	uow             domain.UnitOfWork
	books           domain.BookRepository
	orders          domain.OrderRepository
	timeline        domain.TimelineRepository
	outbox          domain.OutboxRepository
	idempotencyRepo domain.IdempotencyRepository
	checkers        map[string]healthcheck.Checker
	closers         []func() error
}

// close освобождает ресурсы в обратном порядке открытия.
func (d *runtimeDependencies) close() error {
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	d.closers = nil
	return errors.Join(errs...)
}

func initRuntimeDependencies(ctx context.Context, cfg Config, checkoutMetrics *metrics.CheckoutMetrics, logger *log.Entry) (*runtimeDependencies, error) {
	deps := &runtimeDependencies{checkers: map[string]healthcheck.Checker{}}

	switch cfg.StorageDriver {
	case StorageDriverMemory:
		store := memory.NewStore()
		deps.uow = store
		deps.books = store.Books()
		deps.orders = store.Orders()
		deps.timeline = store.Timeline()
		deps.outbox = store.Outbox()
		deps.idempotencyRepo = memory.NewIdempotencyRepository()
		logger.Warn("using in-memory storage: data is lost on restart")

	case StorageDriverPostgres:
		if cfg.PostgresDSN == "" {
			return nil, errors.New("postgres dsn is required for storage driver postgres")
		}
		store, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		deps.closers = append(deps.closers, store.Close)

		if cfg.PostgresAutoMigrate {
			if err := store.EnsureSchema(ctx); err != nil {
				_ = deps.close()
				return nil, fmt.Errorf("apply migrations: %w", err)
			}
			logger.Info("postgres migrations applied")
		}

		deps.uow = postgres.NewUnitOfWork(store,
			postgres.WithMaxAttempts(cfg.TxMaxAttempts),
			postgres.WithRetryObserver(checkoutMetrics.RecordTxRetry),
			postgres.WithLogger(logger.WithField("component", "unit-of-work")),
		)
		deps.books = postgres.NewBookRepository(store)
		deps.orders = postgres.NewOrderRepository(store)
		deps.timeline = postgres.NewTimelineRepository(store)
		deps.outbox = postgres.NewOutboxRepository(store)
		deps.idempotencyRepo = postgres.NewIdempotencyRepository(store)
		deps.checkers["postgres"] = healthcheck.NewPostgresChecker(store.DB())

	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}

	if cfg.IdempotencyBackend == IdempotencyBackendRedis {
		client, err := redisstore.NewClient(ctx, cfg.RedisAddr)
		if err != nil {
			_ = deps.close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		deps.closers = append(deps.closers, client.Close)
		deps.idempotencyRepo = redisstore.NewIdempotencyRepository(client)
		deps.checkers["redis"] = healthcheck.NewRedisChecker(client)
		logger.WithField("addr", cfg.RedisAddr).Info("idempotency keys are stored in redis")
	}

	return deps, nil
}
