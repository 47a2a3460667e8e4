package app

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/bookstore/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/bookstore/internal/health"
	"github.com/vladislavdragonenkov/bookstore/internal/service/inventory"
	"github.com/vladislavdragonenkov/bookstore/internal/service/offer"
	"github.com/vladislavdragonenkov/bookstore/internal/service/order"
	"github.com/vladislavdragonenkov/bookstore/internal/storage/memory"
	"github.com/vladislavdragonenkov/bookstore/internal/storage/postgres"
)

// Dependencies содержит все зависимости приложения: репозитории,
// инвентарный ledger и доменные сервисы поверх выбранного storage.
type Dependencies struct {
	Books     domain.BookRepository
	Customers domain.CustomerRepository
	Orders    domain.OrderRepository
	Offers    domain.OfferRepository
	Outbox    domain.OutboxRepository
	Timeline  domain.TimelineRepository

	Ledger       *inventory.Ledger
	OrderService *order.Service
	OfferService *offer.Service

	// StorageChecker не nil только для внешнего storage (postgres).
	StorageChecker healthcheck.Checker
	Logger         *log.Entry

	closeFn func() error
}

// NewDependencies создаёт зависимости приложения для выбранного
// storage driver. Для postgres открывает пул соединений и, если
// включён PostgresAutoMigrate, применяет embedded-миграции.
func NewDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*Dependencies, error) {
	if logger == nil {
		logger = log.WithField("component", "app")
	}

	deps := &Dependencies{Logger: logger}

	driver := cfg.StorageDriver
	if driver == "" {
		driver = StorageDriverMemory
	}

	switch driver {
	case StorageDriverMemory:
		deps.Books = memory.NewBookRepository()
		deps.Customers = memory.NewCustomerRepository()
		deps.Orders = memory.NewOrderRepository()
		deps.Offers = memory.NewOfferRepository()
		deps.Outbox = memory.NewOutboxRepository()
		deps.Timeline = memory.NewTimelineRepository()
		logger.Info("using in-memory storage")

	case StorageDriverPostgres:
		if cfg.PostgresDSN == "" {
			return nil, fmt.Errorf("postgres storage driver requires a DSN")
		}

		store, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		if cfg.PostgresAutoMigrate {
			if err := store.EnsureSchema(ctx); err != nil {
				_ = store.Close()
				return nil, fmt.Errorf("apply postgres migrations: %w", err)
			}
		}

		deps.Books = postgres.NewBookRepository(store)
		deps.Customers = postgres.NewCustomerRepository(store)
		deps.Orders = postgres.NewOrderRepository(store)
		deps.Offers = postgres.NewOfferRepository(store)
		deps.Outbox = postgres.NewOutboxRepository(store)
		deps.Timeline = postgres.NewTimelineRepository(store)
		deps.StorageChecker = healthcheck.NewSimpleChecker("postgres", func() error {
			pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			return store.Ping(pingCtx)
		})
		deps.closeFn = store.Close
		logger.Info("using postgres storage")

	default:
		return nil, fmt.Errorf("unsupported storage driver: %q", driver)
	}

	deps.Ledger = inventory.NewLedger(deps.Books, logger.WithField("component", "inventory"))
	deps.OrderService = order.NewService(
		deps.Orders,
		deps.Customers,
		deps.Books,
		deps.Ledger,
		deps.Outbox,
		deps.Timeline,
		logger.WithField("component", "order-service"),
	)
	deps.OfferService = offer.NewService(
		deps.Offers,
		deps.Outbox,
		logger.WithField("component", "offer-service"),
	)

	return deps, nil
}

// Close освобождает ресурсы storage, если они были открыты.
func (d *Dependencies) Close() error {
	if d == nil || d.closeFn == nil {
		return nil
	}
	return d.closeFn()
}
