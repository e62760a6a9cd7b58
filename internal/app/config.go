package app

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/vladislavdragonenkov/bookstore/internal/domain"
	"github.com/vladislavdragonenkov/bookstore/internal/messaging/kafka"
)

const envPrefix = "BOOKSTORE_"

// Хранилища данных.
const (
	StorageDriverMemory   = "memory"
	StorageDriverPostgres = "postgres"
)

// Где живут ключи идемпотентности.
const (
	IdempotencyBackendStorage = "storage"
	IdempotencyBackendRedis   = "redis"
)

// Config описывает настройки запуска сервиса.
type Config struct {
	GRPCAddr    string
	MetricsAddr string

	StorageDriver       string
	PostgresDSN         string
	PostgresAutoMigrate bool
	TxMaxAttempts       int

	IdempotencyBackend          string
	RedisAddr                   string
	IdempotencyTTL              time.Duration
	IdempotencyCleanupInterval  time.Duration
	IdempotencyCleanupBatchSize int

	KafkaBrokers           []string
	KafkaClientID          string
	KafkaOrderTopic        string
	KafkaNotificationTopic string
	KafkaDLQTopic          string

	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxMaxAttempts  int
	OutboxRetryDelay   time.Duration

	CancellationWindow  time.Duration
	NotificationTimeout time.Duration
	CatalogSeedFile     string
	ShutdownTimeout     time.Duration

	LogLevel  string
	LogFormat string
}

// DefaultConfig возвращает настройки по умолчанию. Хранилище по умолчанию PostgreSQL,
// DSN задаётся через BOOKSTORE_POSTGRES_DSN; память включается только явно (BOOKSTORE_STORAGE_DRIVER=memory).
func DefaultConfig() Config {
	return Config{
		GRPCAddr:    ":50051",
		MetricsAddr: ":9090",

		StorageDriver:       StorageDriverPostgres,
		PostgresAutoMigrate: true,
		TxMaxAttempts:       5,

		IdempotencyBackend:          IdempotencyBackendStorage,
		IdempotencyTTL:              24 * time.Hour,
		IdempotencyCleanupInterval:  10 * time.Minute,
		IdempotencyCleanupBatchSize: 500,

		KafkaClientID:          "bookstore",
		KafkaOrderTopic:        kafka.TopicOrderEvents,
		KafkaNotificationTopic: kafka.TopicNotifications,
		KafkaDLQTopic:          kafka.TopicDeadLetterQueue,

		OutboxPollInterval: time.Second,
		OutboxBatchSize:    100,
		OutboxMaxAttempts:  3,
		OutboxRetryDelay:   100 * time.Millisecond,

		CancellationWindow:  domain.DefaultCancellationWindow,
		NotificationTimeout: 10 * time.Second,
		ShutdownTimeout:     10 * time.Second,

		LogLevel:  "info",
		LogFormat: "text",
	}
}

// LoadConfig читает BOOKSTORE_* поверх значений по умолчанию.
// getenv обычно os.Getenv; в тестах подставляется map.
func LoadConfig(getenv func(string) string) (Config, error) {
	cfg := DefaultConfig()
	l := loader{getenv: getenv}

	l.str("GRPC_ADDR", &cfg.GRPCAddr)
	l.str("METRICS_ADDR", &cfg.MetricsAddr)

	l.str("STORAGE_DRIVER", &cfg.StorageDriver)
	l.str("POSTGRES_DSN", &cfg.PostgresDSN)
	l.boolean("POSTGRES_AUTO_MIGRATE", &cfg.PostgresAutoMigrate)
	l.integer("TX_MAX_ATTEMPTS", &cfg.TxMaxAttempts)

	l.str("IDEMPOTENCY_BACKEND", &cfg.IdempotencyBackend)
	l.str("REDIS_ADDR", &cfg.RedisAddr)
	l.duration("IDEMPOTENCY_TTL", &cfg.IdempotencyTTL)
	l.duration("IDEMPOTENCY_CLEANUP_INTERVAL", &cfg.IdempotencyCleanupInterval)
	l.integer("IDEMPOTENCY_CLEANUP_BATCH_SIZE", &cfg.IdempotencyCleanupBatchSize)

	l.list("KAFKA_BROKERS", &cfg.KafkaBrokers)
	l.str("KAFKA_CLIENT_ID", &cfg.KafkaClientID)
	l.str("KAFKA_ORDER_TOPIC", &cfg.KafkaOrderTopic)
	l.str("KAFKA_NOTIFICATION_TOPIC", &cfg.KafkaNotificationTopic)
	l.str("KAFKA_DLQ_TOPIC", &cfg.KafkaDLQTopic)

	l.duration("OUTBOX_POLL_INTERVAL", &cfg.OutboxPollInterval)
	l.integer("OUTBOX_BATCH_SIZE", &cfg.OutboxBatchSize)
	l.integer("OUTBOX_MAX_ATTEMPTS", &cfg.OutboxMaxAttempts)
	l.duration("OUTBOX_RETRY_DELAY", &cfg.OutboxRetryDelay)

	l.duration("CANCELLATION_WINDOW", &cfg.CancellationWindow)
	l.duration("NOTIFICATION_TIMEOUT", &cfg.NotificationTimeout)
	l.str("CATALOG_SEED_FILE", &cfg.CatalogSeedFile)
	l.duration("SHUTDOWN_TIMEOUT", &cfg.ShutdownTimeout)

	l.str("LOG_LEVEL", &cfg.LogLevel)
	l.str("LOG_FORMAT", &cfg.LogFormat)

	if err := errors.Join(l.errs...); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate проверяет согласованность настроек.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.GRPCAddr) == "" {
		errs = append(errs, errors.New("grpc address is required"))
	}
	if strings.TrimSpace(c.MetricsAddr) == "" {
		errs = append(errs, errors.New("metrics address is required"))
	}

	switch c.StorageDriver {
	case StorageDriverMemory:
	case StorageDriverPostgres:
		if strings.TrimSpace(c.PostgresDSN) == "" {
			errs = append(errs, fmt.Errorf("%sPOSTGRES_DSN is required for storage driver %q", envPrefix, c.StorageDriver))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported storage driver %q", c.StorageDriver))
	}

	switch c.IdempotencyBackend {
	case IdempotencyBackendStorage:
	case IdempotencyBackendRedis:
		if strings.TrimSpace(c.RedisAddr) == "" {
			errs = append(errs, fmt.Errorf("%sREDIS_ADDR is required for idempotency backend %q", envPrefix, c.IdempotencyBackend))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported idempotency backend %q", c.IdempotencyBackend))
	}

	if len(c.KafkaBrokers) > 0 {
		if c.KafkaOrderTopic == "" || c.KafkaNotificationTopic == "" || c.KafkaDLQTopic == "" {
			errs = append(errs, errors.New("kafka topics must not be empty when brokers are set"))
		}
	}

	positive := map[string]int{
		"TX_MAX_ATTEMPTS":                c.TxMaxAttempts,
		"OUTBOX_BATCH_SIZE":              c.OutboxBatchSize,
		"OUTBOX_MAX_ATTEMPTS":            c.OutboxMaxAttempts,
		"IDEMPOTENCY_CLEANUP_BATCH_SIZE": c.IdempotencyCleanupBatchSize,
	}
	for key, v := range positive {
		if v <= 0 {
			errs = append(errs, fmt.Errorf("%s%s must be > 0, got %d", envPrefix, key, v))
		}
	}
	durations := map[string]time.Duration{
		"OUTBOX_POLL_INTERVAL":         c.OutboxPollInterval,
		"IDEMPOTENCY_TTL":              c.IdempotencyTTL,
		"IDEMPOTENCY_CLEANUP_INTERVAL": c.IdempotencyCleanupInterval,
		"CANCELLATION_WINDOW":          c.CancellationWindow,
		"NOTIFICATION_TIMEOUT":         c.NotificationTimeout,
		"SHUTDOWN_TIMEOUT":             c.ShutdownTimeout,
	}
	for key, v := range durations {
		if v <= 0 {
			errs = append(errs, fmt.Errorf("%s%s must be > 0, got %s", envPrefix, key, v))
		}
	}
	if c.OutboxRetryDelay < 0 {
		errs = append(errs, fmt.Errorf("%sOUTBOX_RETRY_DELAY must be >= 0, got %s", envPrefix, c.OutboxRetryDelay))
	}

	switch c.LogFormat {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unsupported log format %q", c.LogFormat))
	}

	return errors.Join(errs...)
}

// loader накапливает ошибки разбора, чтобы сообщить обо всех сразу.
type loader struct {
	getenv func(string) string
	errs   []error
}

func (l *loader) lookup(key string) (string, bool) {
	raw := strings.TrimSpace(l.getenv(envPrefix + key))
	return raw, raw != ""
}

func (l *loader) str(key string, dst *string) {
	if v, ok := l.lookup(key); ok {
		*dst = v
	}
}

func (l *loader) integer(key string, dst *int) {
	v, ok := l.lookup(key)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		l.errs = append(l.errs, fmt.Errorf("%s%s: %q is not an integer", envPrefix, key, v))
		return
	}
	*dst = n
}

func (l *loader) boolean(key string, dst *bool) {
	v, ok := l.lookup(key)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		l.errs = append(l.errs, fmt.Errorf("%s%s: %q is not a boolean", envPrefix, key, v))
		return
	}
	*dst = b
}

func (l *loader) duration(key string, dst *time.Duration) {
	v, ok := l.lookup(key)
	if !ok {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		l.errs = append(l.errs, fmt.Errorf("%s%s: %q is not a duration", envPrefix, key, v))
		return
	}
	*dst = d
}

func (l *loader) list(key string, dst *[]string) {
	v, ok := l.lookup(key)
	if !ok {
		return
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	*dst = out
}
