package app

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Storage drivers, доступные приложению.
const (
	StorageDriverMemory   = "memory"
	StorageDriverPostgres = "postgres"
)

// Config описывает настройки запуска приложения.
type Config struct {
	GRPCAddr    string
	MetricsAddr string

	StorageDriver       string
	PostgresDSN         string
	PostgresAutoMigrate bool

	// KafkaBrokers — список брокеров через запятую; пустая строка отключает Kafka.
	KafkaBrokers string

	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxMaxAttempts  int
	OutboxRetryDelay   time.Duration
}

// DefaultConfig возвращает базовые настройки: in-memory storage,
// gRPC health на :50051 и HTTP-метрики на :9090.
func DefaultConfig() Config {
	return Config{
		GRPCAddr:            ":50051",
		MetricsAddr:         ":9090",
		StorageDriver:       StorageDriverMemory,
		PostgresAutoMigrate: true,
		OutboxPollInterval:  time.Second,
		OutboxBatchSize:     100,
		OutboxMaxAttempts:   3,
		OutboxRetryDelay:    50 * time.Millisecond,
	}
}

// ConfigFromEnv формирует конфигурацию, позволяя переопределить
// значения по умолчанию через переменные окружения BOOKSTORE_*.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()

	if v := envString("BOOKSTORE_GRPC_ADDR"); v != "" {
		cfg.GRPCAddr = v
	}
	if v := envString("BOOKSTORE_METRICS_ADDR"); v != "" {
		cfg.MetricsAddr = v
	}
	if v := envString("BOOKSTORE_STORAGE_DRIVER"); v != "" {
		cfg.StorageDriver = strings.ToLower(v)
	}
	if v := envString("BOOKSTORE_POSTGRES_DSN"); v != "" {
		cfg.PostgresDSN = v
		// DSN без явного драйвера означает postgres.
		if envString("BOOKSTORE_STORAGE_DRIVER") == "" {
			cfg.StorageDriver = StorageDriverPostgres
		}
	}
	if v := envString("BOOKSTORE_POSTGRES_AUTO_MIGRATE"); v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			cfg.PostgresAutoMigrate = parsed
		}
	}
	if v := envString("BOOKSTORE_KAFKA_BROKERS"); v != "" {
		cfg.KafkaBrokers = v
	}
	if v := envString("BOOKSTORE_OUTBOX_POLL_INTERVAL"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil && parsed > 0 {
			cfg.OutboxPollInterval = parsed
		}
	}
	if v := envString("BOOKSTORE_OUTBOX_BATCH_SIZE"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			cfg.OutboxBatchSize = parsed
		}
	}

	return cfg
}

func envString(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}
