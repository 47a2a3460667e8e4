package integration

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/vladislavdragonenkov/bookstore/internal/domain"
	"github.com/vladislavdragonenkov/bookstore/internal/service/inventory"
	"github.com/vladislavdragonenkov/bookstore/internal/service/offer"
	"github.com/vladislavdragonenkov/bookstore/internal/service/order"
	"github.com/vladislavdragonenkov/bookstore/internal/service/outbox"
	"github.com/vladislavdragonenkov/bookstore/internal/storage/memory"
)

// CheckoutFlowTestSuite прогоняет полный путь заказа через доменные сервисы
// поверх in-memory storage: оформление, оплату, жизненный цикл статусов,
// отмену и ежедневные предложения.
type CheckoutFlowTestSuite struct {
	suite.Suite

	books     domain.BookRepository
	customers domain.CustomerRepository
	orders    domain.OrderRepository
	offers    domain.OfferRepository
	outboxes  domain.OutboxRepository
	timeline  domain.TimelineRepository

	orderSvc *order.Service
	offerSvc *offer.Service
}

func (s *CheckoutFlowTestSuite) SetupTest() {
	baseLogger := log.New()
	baseLogger.SetLevel(log.WarnLevel) // Уменьшаем шум в тестах
	logger := baseLogger.WithField("component", "integration-test")

	s.books = memory.NewBookRepository()
	s.customers = memory.NewCustomerRepository()
	s.orders = memory.NewOrderRepository()
	s.offers = memory.NewOfferRepository()
	s.outboxes = memory.NewOutboxRepository()
	s.timeline = memory.NewTimelineRepository()

	ledger := inventory.NewLedger(s.books, logger)
	s.orderSvc = order.NewServiceWithoutMetrics(s.orders, s.customers, s.books, ledger, s.outboxes, s.timeline, logger)
	s.offerSvc = offer.NewServiceWithoutMetrics(s.offers, s.outboxes, logger)

	now := time.Now().UTC()
	for _, book := range []domain.Book{
		{ID: "book-dune", ISBN: "9780441013593", Title: "Dune", Author: "Frank Herbert", PriceMinor: 1500, StockQuantity: 10, IsActive: true, Version: 1, CreatedAt: now, UpdatedAt: now},
		{ID: "book-hyperion", ISBN: "9780553283686", Title: "Hyperion", Author: "Dan Simmons", PriceMinor: 1200, StockQuantity: 3, IsActive: true, Version: 1, CreatedAt: now, UpdatedAt: now},
	} {
		require.NoError(s.T(), s.books.Create(book))
	}
}

func (s *CheckoutFlowTestSuite) checkout(items []order.ItemRequest) domain.Order {
	created, err := s.orderSvc.CreateComplete(order.CustomerRequest{
		FirstName: "Marie",
		LastName:  "Lefevre",
		Email:     "marie@example.com",
		Address:   "12 Library Lane",
	}, items, "", "")
	require.NoError(s.T(), err)
	return created
}

func (s *CheckoutFlowTestSuite) TestCheckoutToDeliveredLifecycle() {
	created := s.checkout([]order.ItemRequest{
		{BookID: "book-dune", Quantity: 2},
		{BookID: "book-hyperion", Quantity: 1},
	})

	require.Equal(s.T(), domain.OrderStatusPending, created.Status)
	require.Equal(s.T(), domain.PaymentStatusPending, created.PaymentStatus)
	require.Equal(s.T(), int64(2*1500+1200), created.TotalMinor)
	require.Equal(s.T(), "12 Library Lane", created.ShippingAddress)
	require.Regexp(s.T(), regexp.MustCompile(`^ORD-\d{14}-\d{4}$`), created.OrderNumber)

	// Сток зарезервирован при оформлении.
	dune, err := s.books.Get("book-dune")
	require.NoError(s.T(), err)
	require.Equal(s.T(), int32(8), dune.StockQuantity)

	// Оплата PENDING-заказа автоматически подтверждает его.
	paid, err := s.orderSvc.UpdatePaymentStatus(created.ID, domain.PaymentStatusPaid)
	require.NoError(s.T(), err)
	require.Equal(s.T(), domain.OrderStatusConfirmed, paid.Status)

	processing, err := s.orderSvc.UpdateStatus(created.ID, domain.OrderStatusProcessing)
	require.NoError(s.T(), err)
	require.Nil(s.T(), processing.ShippedAt)

	shipped, err := s.orderSvc.UpdateStatus(created.ID, domain.OrderStatusShipped)
	require.NoError(s.T(), err)
	require.NotNil(s.T(), shipped.ShippedAt)

	delivered, err := s.orderSvc.UpdateStatus(created.ID, domain.OrderStatusDelivered)
	require.NoError(s.T(), err)
	require.NotNil(s.T(), delivered.DeliveredAt)
	require.Equal(s.T(), *shipped.ShippedAt, *delivered.ShippedAt)

	// Доставленный заказ отменить нельзя.
	_, err = s.orderSvc.Cancel(created.ID, "too late")
	require.ErrorIs(s.T(), err, domain.ErrInvalidTransition)

	events, err := s.orderSvc.Timeline(created.ID)
	require.NoError(s.T(), err)
	require.GreaterOrEqual(s.T(), len(events), 5)
	require.Equal(s.T(), "order.created", events[0].Type)

	stats, err := s.orderSvc.Statistics(created.CreatedAt.Add(-time.Minute), created.CreatedAt.Add(time.Minute))
	require.NoError(s.T(), err)
	require.Equal(s.T(), 1, stats.TotalOrders)
	require.Equal(s.T(), 1, stats.CompletedOrders)
	require.Equal(s.T(), created.TotalMinor, stats.TotalRevenueMinor)
}

func (s *CheckoutFlowTestSuite) TestCheckoutAllOrNothing() {
	_, err := s.orderSvc.CreateComplete(order.CustomerRequest{
		Email:   "marie@example.com",
		Address: "12 Library Lane",
	}, []order.ItemRequest{
		{BookID: "book-dune", Quantity: 2},
		{BookID: "book-hyperion", Quantity: 5}, // остаток 3
	}, "", "")
	require.ErrorIs(s.T(), err, domain.ErrInsufficientStock)

	// Резерв первой позиции компенсирован.
	dune, err := s.books.Get("book-dune")
	require.NoError(s.T(), err)
	require.Equal(s.T(), int32(10), dune.StockQuantity)

	pending, err := s.orders.ListByStatus(domain.OrderStatusPending)
	require.NoError(s.T(), err)
	require.Empty(s.T(), pending)

	backlog, err := s.outboxes.PullPending(10)
	require.NoError(s.T(), err)
	require.Empty(s.T(), backlog)
}

func (s *CheckoutFlowTestSuite) TestCancelRestoresStockAndRefunds() {
	created := s.checkout([]order.ItemRequest{{BookID: "book-dune", Quantity: 3}})

	cancelled, err := s.orderSvc.Cancel(created.ID, "changed my mind")
	require.NoError(s.T(), err)
	require.Equal(s.T(), domain.OrderStatusCancelled, cancelled.Status)
	require.Equal(s.T(), domain.PaymentStatusRefunded, cancelled.PaymentStatus)
	require.Contains(s.T(), cancelled.Notes, "Annulation: changed my mind")

	dune, err := s.books.Get("book-dune")
	require.NoError(s.T(), err)
	require.Equal(s.T(), int32(10), dune.StockQuantity)

	// Повторная отмена отклоняется и не возвращает сток дважды.
	_, err = s.orderSvc.Cancel(created.ID, "again")
	require.ErrorIs(s.T(), err, domain.ErrInvalidTransition)

	dune, err = s.books.Get("book-dune")
	require.NoError(s.T(), err)
	require.Equal(s.T(), int32(10), dune.StockQuantity)
}

func (s *CheckoutFlowTestSuite) TestConcurrentCheckoutNeverOversells() {
	// 20 покупателей на 10 экземпляров: успехов ровно столько, сколько на складе.
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.orderSvc.CreateComplete(order.CustomerRequest{
				Email:   "marie@example.com",
				Address: "12 Library Lane",
			}, []order.ItemRequest{{BookID: "book-dune", Quantity: 1}}, "", "")
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			} else if !errors.Is(err, domain.ErrInsufficientStock) {
				s.T().Errorf("unexpected checkout error: %v", err)
			}
		}()
	}
	wg.Wait()

	require.Equal(s.T(), 10, succeeded)

	dune, err := s.books.Get("book-dune")
	require.NoError(s.T(), err)
	require.Equal(s.T(), int32(0), dune.StockQuantity)
}

func (s *CheckoutFlowTestSuite) TestOfferQuotaUnderConcurrency() {
	now := time.Now().UTC()
	limit := int32(30)
	created, err := s.offerSvc.Create(offer.CreateInput{
		Title:              "Boxed set",
		OriginalPriceMinor: 8000,
		OfferPriceMinor:    6000,
		StartDate:          now.AddDate(0, 0, -1),
		EndDate:            now.AddDate(0, 0, 1),
		LimitQuantity:      &limit,
	})
	require.NoError(s.T(), err)
	require.NotNil(s.T(), created.DiscountPercentage)
	require.Equal(s.T(), int32(25), *created.DiscountPercentage)

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.offerSvc.RecordSale(created.ID, 1); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Equal(s.T(), 30, succeeded)

	got, err := s.offerSvc.Get(created.ID)
	require.NoError(s.T(), err)
	require.Equal(s.T(), int32(30), got.SoldQuantity)

	// Исчерпанное предложение перестаёт быть валидным.
	valid, err := s.offerSvc.IsValid(created.ID)
	require.NoError(s.T(), err)
	require.False(s.T(), valid)
}

func (s *CheckoutFlowTestSuite) TestOutboxDrainsToPublisher() {
	created := s.checkout([]order.ItemRequest{{BookID: "book-hyperion", Quantity: 1}})
	_, err := s.orderSvc.Cancel(created.ID, "duplicate order")
	require.NoError(s.T(), err)

	publisher := &capturePublisher{}
	worker := outbox.NewWorker(s.outboxes, publisher,
		outbox.WithLogger(log.WithField("test", "outbox-drain")),
		outbox.WithRetryBaseDelay(0),
	)
	worker.ProcessOnce(context.Background())

	require.GreaterOrEqual(s.T(), len(publisher.events()), 2)
	types := map[string]bool{}
	for _, event := range publisher.events() {
		types[event.EventType] = true
	}
	require.True(s.T(), types["order.created"])
	require.True(s.T(), types["order.cancelled"])

	backlog, err := s.outboxes.PullPending(10)
	require.NoError(s.T(), err)
	require.Empty(s.T(), backlog)
}

type capturePublisher struct {
	mu        sync.Mutex
	published []domain.OutboxMessage
}

func (p *capturePublisher) Publish(event domain.OutboxMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, event)
	return nil
}

func (p *capturePublisher) events() []domain.OutboxMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.OutboxMessage, len(p.published))
	copy(out, p.published)
	return out
}

func TestCheckoutFlowTestSuite(t *testing.T) {
	suite.Run(t, new(CheckoutFlowTestSuite))
}
