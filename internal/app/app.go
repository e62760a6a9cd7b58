package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"

	"github.com/vladislavdragonenkov/bookstore/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/bookstore/internal/health"
	"github.com/vladislavdragonenkov/bookstore/internal/metrics"
	"github.com/vladislavdragonenkov/bookstore/internal/service/checkout"
	"github.com/vladislavdragonenkov/bookstore/internal/service/idempotency"
	"github.com/vladislavdragonenkov/bookstore/internal/service/orderquery"
	"github.com/vladislavdragonenkov/bookstore/internal/service/outbox"
	grpcapi "github.com/vladislavdragonenkov/bookstore/internal/transport/grpc"
	"github.com/vladislavdragonenkov/bookstore/internal/version"
)

// outboxStaleAfter задаёт возраст самого старого неотправленного события, после которого сервис degraded.
const outboxStaleAfter = 5 * time.Minute

// Run поднимает сервис и блокируется до отмены ctx или падения gRPC-сервера.
func Run(ctx context.Context, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := log.WithField("component", "app")
	logger.WithFields(version.Fields()).Info("starting bookstore")

	reg := prometheus.DefaultRegisterer
	registerCollector(reg, version.NewBuildInfoCollector(), logger)
	checkoutMetrics := metrics.NewCheckoutMetricsWithRegisterer(reg)
	outboxMetrics := metrics.NewOutboxMetrics(reg)
	idempotencyMetrics := metrics.NewIdempotencyMetrics(reg)

	deps, err := initRuntimeDependencies(ctx, cfg, checkoutMetrics, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := deps.close(); err != nil {
			logger.WithError(err).Warn("failed to close storage")
		}
	}()

	if cfg.CatalogSeedFile != "" {
		created, err := seedCatalog(ctx, deps.books, cfg.CatalogSeedFile, logger)
		if err != nil {
			return err
		}
		logger.WithField("created", created).Info("catalog seeded")
	}

	msg, err := initMessaging(cfg, logger)
	if err != nil {
		return err
	}
	defer msg.close(logger)

	checkoutSvc := checkout.NewService(deps.uow, deps.orders, deps.timeline,
		checkout.WithCancellationWindow(cfg.CancellationWindow),
		checkout.WithNotifier(msg.notifier),
		checkout.WithNotificationTimeout(cfg.NotificationTimeout),
		checkout.WithMetrics(checkoutMetrics),
		checkout.WithLogger(logger.WithField("component", "checkout")),
	)
	queries := orderquery.NewService(deps.orders, deps.books, deps.timeline, cfg.CancellationWindow,
		logger.WithField("component", "order-query"))
	guard := idempotency.NewGuard(deps.idempotencyRepo, cfg.IdempotencyTTL, idempotencyMetrics)
	api := grpcapi.NewServer(checkoutSvc, queries,
		grpcapi.WithIdempotency(guard),
		grpcapi.WithLogger(logger.WithField("component", "grpc-api")),
	)
	grpcServer, grpcHealth := newGRPCServer(api, reg, logger)

	healthHandler := healthcheck.NewHandler(version.GetVersion())
	for name, checker := range deps.checkers {
		healthHandler.RegisterChecker(name, checker)
	}
	healthHandler.RegisterOptional("outbox", outboxBacklogChecker(deps.outbox))

	opsSrv, _, err := startOpsServer(cfg.MetricsAddr, newOpsRouter(prometheus.DefaultGatherer, healthHandler), logger)
	if err != nil {
		return fmt.Errorf("listen ops %s: %w", cfg.MetricsAddr, err)
	}
	defer shutdownHTTP(opsSrv, logger)

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return fmt.Errorf("listen grpc %s: %w", cfg.GRPCAddr, err)
	}

	workersCtx, stopWorkers := context.WithCancel(context.Background())
	var workers sync.WaitGroup
	startWorker(&workers, outbox.NewWorker(deps.outbox, msg.publisher,
		outbox.WithDLQPublisher(msg.dlq),
		outbox.WithMetrics(outboxMetrics),
		outbox.WithPollInterval(cfg.OutboxPollInterval),
		outbox.WithBatchSize(cfg.OutboxBatchSize),
		outbox.WithMaxAttempts(cfg.OutboxMaxAttempts),
		outbox.WithRetryBaseDelay(cfg.OutboxRetryDelay),
		outbox.WithLogger(logger.WithField("component", "outbox-worker")),
	).Run, workersCtx)
	startWorker(&workers, idempotency.NewCleanupWorker(deps.idempotencyRepo,
		idempotency.WithCleanupMetrics(idempotencyMetrics),
		idempotency.WithInterval(cfg.IdempotencyCleanupInterval),
		idempotency.WithBatchSize(cfg.IdempotencyCleanupBatchSize),
		idempotency.WithLogger(logger.WithField("component", "idempotency-cleanup-worker")),
	).Run, workersCtx)

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("gRPC сервер слушает %s", lis.Addr())
		errCh <- grpcServer.Serve(lis)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("получен сигнал остановки, останавливаем gRPC сервер")
		stopGRPC(grpcServer, grpcHealth, cfg.ShutdownTimeout, logger)
		runErr = ctx.Err()
	case err := <-errCh:
		if !errors.Is(err, grpc.ErrServerStopped) {
			runErr = err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := checkoutSvc.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("pending notifications were not finished before shutdown")
	}

	stopWorkers()
	workers.Wait()
	logger.Info("bookstore stopped")
	return runErr
}

func startWorker(wg *sync.WaitGroup, run func(context.Context), ctx context.Context) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		run(ctx)
	}()
}

// stopGRPC дожидается текущих вызовов, но не дольше timeout.
func stopGRPC(server *grpc.Server, healthServer *health.Server, timeout time.Duration, logger *log.Entry) {
	healthServer.Shutdown()

	stopped := make(chan struct{})
	go func() {
		server.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(timeout):
		logger.Warn("graceful stop превысил таймаут, принудительно останавливаем")
		server.Stop()
	}
}

// outboxBacklogChecker сообщает о зависших событиях outbox.
func outboxBacklogChecker(repo domain.OutboxRepository) healthcheck.Checker {
	return healthcheck.NewFuncChecker("outbox", func(ctx context.Context) error {
		stats, err := repo.Stats(ctx)
		if err != nil {
			return err
		}
		if stats.PendingCount > 0 && !stats.OldestPendingAt.IsZero() {
			if age := time.Since(stats.OldestPendingAt); age > outboxStaleAfter {
				return fmt.Errorf("%d pending events, oldest is %s old", stats.PendingCount, age.Truncate(time.Second))
			}
		}
		return nil
	})
}
