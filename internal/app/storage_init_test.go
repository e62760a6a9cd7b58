package app

import (
	"context"
	"os"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/bookstore/internal/domain"
)

func TestInitRuntimeDependencies_Memory(t *testing.T) {
	t.Parallel()

	deps, err := initRuntimeDependencies(context.Background(), memoryConfig(), nil, log.WithField("test", "memory-storage"))
	require.NoError(t, err)
	defer func() { require.NoError(t, deps.close()) }()

	require.NotNil(t, deps.uow)
	require.NotNil(t, deps.books)
	require.NotNil(t, deps.orders)
	require.NotNil(t, deps.timeline)
	require.NotNil(t, deps.outbox)
	require.NotNil(t, deps.idempotencyRepo)
	require.Empty(t, deps.checkers)
}

func TestInitRuntimeDependencies_PostgresRequiresDSN(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.StorageDriver = StorageDriverPostgres
	_, err := initRuntimeDependencies(context.Background(), cfg, nil, log.WithField("test", "postgres-missing-dsn"))
	require.Error(t, err)
}

func TestInitRuntimeDependencies_UnsupportedDriver(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.StorageDriver = "sqlite"
	_, err := initRuntimeDependencies(context.Background(), cfg, nil, log.WithField("test", "unsupported-driver"))
	require.ErrorContains(t, err, "unsupported storage driver")
}

func TestInitRuntimeDependencies_RedisUnavailable(t *testing.T) {
	t.Parallel()

	cfg := memoryConfig()
	cfg.IdempotencyBackend = IdempotencyBackendRedis
	cfg.RedisAddr = "127.0.0.1:1"
	_, err := initRuntimeDependencies(context.Background(), cfg, nil, log.WithField("test", "redis-unavailable"))
	require.ErrorContains(t, err, "connect redis")
}

func TestInitRuntimeDependencies_Postgres(t *testing.T) {
	dsn := os.Getenv("BOOKSTORE_POSTGRES_TEST_DSN")
	if dsn == "" {
		t.Skip("BOOKSTORE_POSTGRES_TEST_DSN is not set")
	}

	cfg := DefaultConfig()
	cfg.StorageDriver = StorageDriverPostgres
	cfg.PostgresDSN = dsn
	deps, err := initRuntimeDependencies(context.Background(), cfg, nil, log.WithField("test", "postgres-storage"))
	require.NoError(t, err)
	defer func() { require.NoError(t, deps.close()) }()

	require.Contains(t, deps.checkers, "postgres")
	check := deps.checkers["postgres"].Check(context.Background())
	require.Equal(t, "healthy", string(check.Status))

	_, err = deps.books.Get(context.Background(), "definitely-missing-book")
	require.ErrorIs(t, err, domain.ErrBookNotFound)
}
