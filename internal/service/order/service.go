package order

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/bookstore/internal/domain"
	"github.com/vladislavdragonenkov/bookstore/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/bookstore/internal/metrics"
	"github.com/vladislavdragonenkov/bookstore/internal/service/inventory"
)

// ItemRequest — запрошенная позиция заказа.
type ItemRequest struct {
	BookID   string
	Quantity int32
}

// CustomerRequest — данные клиента для оформления заказа без предварительной регистрации.
type CustomerRequest struct {
	FirstName   string
	LastName    string
	Email       string
	PhoneNumber string
	Address     string
}

// Statistics агрегирует продажи за период. Отменённые заказы входят в общее
// количество, но не в выручку.
type Statistics struct {
	TotalOrders            int
	CompletedOrders        int
	TotalRevenueMinor      int64
	AverageOrderValueMinor int64
}

// Service реализует оформление и жизненный цикл заказов.
// Оформление атомарно на уровне бизнес-логики: при отказе любой позиции
// уже зарезервированный сток возвращается компенсацией.
type Service struct {
	orders    domain.OrderRepository
	customers domain.CustomerRepository
	books     domain.BookRepository
	ledger    *inventory.Ledger
	outbox    domain.OutboxRepository
	timeline  domain.TimelineRepository
	metrics   *metrics.OrderMetrics
	logger    *log.Entry
	now       func() time.Time
}

// NewService создаёт сервис заказов с метриками в default registry.
func NewService(
	orders domain.OrderRepository,
	customers domain.CustomerRepository,
	books domain.BookRepository,
	ledger *inventory.Ledger,
	outbox domain.OutboxRepository,
	timeline domain.TimelineRepository,
	logger *log.Entry,
) *Service {
	s := newService(orders, customers, books, ledger, outbox, timeline, logger)
	s.metrics = metrics.NewOrderMetrics()
	return s
}

// NewServiceWithoutMetrics создаёт сервис без метрик (для тестов).
func NewServiceWithoutMetrics(
	orders domain.OrderRepository,
	customers domain.CustomerRepository,
	books domain.BookRepository,
	ledger *inventory.Ledger,
	outbox domain.OutboxRepository,
	timeline domain.TimelineRepository,
	logger *log.Entry,
) *Service {
	return newService(orders, customers, books, ledger, outbox, timeline, logger)
}

func newService(
	orders domain.OrderRepository,
	customers domain.CustomerRepository,
	books domain.BookRepository,
	ledger *inventory.Ledger,
	outbox domain.OutboxRepository,
	timeline domain.TimelineRepository,
	logger *log.Entry,
) *Service {
	if logger == nil {
		logger = log.WithField("component", "order-service")
	}
	return &Service{
		orders:    orders,
		customers: customers,
		books:     books,
		ledger:    ledger,
		outbox:    outbox,
		timeline:  timeline,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Create оформляет заказ для существующего клиента.
// Позиции резервируются по очереди; при отказе любой из них (нет книги,
// не хватает стока) уже применённые резервации откатываются и заказ не создаётся.
// Цена, название и автор каждой позиции фиксируются на момент оформления.
func (s *Service) Create(customerID string, items []ItemRequest, shippingAddress, notes string) (domain.Order, error) {
	start := s.now()

	if customerID == "" {
		return domain.Order{}, domain.ErrCustomerRequired
	}
	if len(items) == 0 {
		return domain.Order{}, domain.ErrItemsRequired
	}
	for _, item := range items {
		if item.Quantity <= 0 {
			return domain.Order{}, domain.ErrItemQtyInvalid
		}
	}

	customer, err := s.customers.Get(customerID)
	if err != nil {
		return domain.Order{}, err
	}
	if shippingAddress == "" {
		shippingAddress = customer.Address
	}

	// Резервируем сток и снимаем снапшоты позиций. reserved накапливает
	// успешные резервации для компенсации при провале.
	reserved := make([]domain.OrderItem, 0, len(items))
	for _, item := range items {
		book, err := s.books.Get(item.BookID)
		if err != nil {
			s.ledger.RestoreLines(reserved)
			return domain.Order{}, err
		}

		if err := s.ledger.CheckAndReserve(book.ID, item.Quantity); err != nil {
			s.ledger.RestoreLines(reserved)
			if errors.Is(err, domain.ErrInsufficientStock) {
				if s.metrics != nil {
					s.metrics.RecordInsufficientStock()
				}
				s.logger.WithFields(log.Fields{
					"book_id": book.ID,
					"qty":     item.Quantity,
				}).Warn("checkout rejected: insufficient stock")
			}
			return domain.Order{}, err
		}

		reserved = append(reserved, domain.OrderItem{
			ID:         uuid.NewString(),
			BookID:     book.ID,
			Quantity:   item.Quantity,
			PriceMinor: book.PriceMinor,
			BookTitle:  book.Title,
			BookAuthor: book.Author,
			CreatedAt:  start,
		})
	}

	var total int64
	for _, item := range reserved {
		total += item.SubtotalMinor()
	}

	order := domain.Order{
		ID:              uuid.NewString(),
		CustomerID:      customer.ID,
		Items:           reserved,
		TotalMinor:      total,
		Status:          domain.OrderStatusPending,
		PaymentStatus:   domain.PaymentStatusPending,
		ShippingAddress: shippingAddress,
		Notes:           notes,
		Version:         1,
		CreatedAt:       start,
		UpdatedAt:       start,
	}

	if err := s.persistNewOrder(&order); err != nil {
		s.ledger.RestoreLines(reserved)
		return domain.Order{}, err
	}

	s.emitEvent(&order, kafka.EventTypeOrderCreated, map[string]interface{}{
		"order_number": order.OrderNumber,
		"customer_id":  order.CustomerID,
		"total_minor":  order.TotalMinor,
		"items_count":  len(order.Items),
	})

	if s.metrics != nil {
		s.metrics.RecordOrderCreated()
		s.metrics.RecordCheckoutDuration(time.Since(start))
	}

	s.logger.WithFields(log.Fields{
		"order_id":     order.ID,
		"order_number": order.OrderNumber,
		"total_minor":  order.TotalMinor,
	}).Info("order created")
	return order, nil
}

// persistNewOrder сохраняет заказ, перегенерируя номер при конфликте
// уникальности. После исчерпания попыток возвращает ErrOrderNumberConflict.
func (s *Service) persistNewOrder(order *domain.Order) error {
	const maxAttempts = 3

	for attempt := 0; attempt < maxAttempts; attempt++ {
		order.OrderNumber = generateOrderNumber(s.now())

		err := s.orders.Create(*order)
		if err == nil {
			return nil
		}
		if !errors.Is(err, domain.ErrOrderNumberConflict) {
			return err
		}
		s.logger.WithFields(log.Fields{
			"order_number": order.OrderNumber,
			"attempt":      attempt + 1,
		}).Warn("order number collision, regenerating")
	}
	return domain.ErrOrderNumberConflict
}

// CreateComplete оформляет заказ, создавая клиента по ходу дела.
// Если клиент с таким email уже есть, используется он.
func (s *Service) CreateComplete(customer CustomerRequest, items []ItemRequest, shippingAddress, notes string) (domain.Order, error) {
	if customer.Email == "" {
		return domain.Order{}, domain.ErrEmailRequired
	}

	existing, err := s.customers.FindByEmail(customer.Email)
	switch {
	case err == nil:
		return s.Create(existing.ID, items, shippingAddress, notes)
	case !errors.Is(err, domain.ErrCustomerNotFound):
		return domain.Order{}, err
	}

	now := s.now()
	created := domain.Customer{
		ID:          uuid.NewString(),
		FirstName:   customer.FirstName,
		LastName:    customer.LastName,
		Email:       customer.Email,
		PhoneNumber: customer.PhoneNumber,
		Address:     customer.Address,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if errs := created.Validate(); len(errs) > 0 {
		return domain.Order{}, errs[0]
	}
	if err := s.customers.Create(created); err != nil {
		// Параллельное оформление могло успеть создать клиента первым.
		if errors.Is(err, domain.ErrDuplicateEmail) {
			if found, findErr := s.customers.FindByEmail(customer.Email); findErr == nil {
				return s.Create(found.ID, items, shippingAddress, notes)
			}
		}
		return domain.Order{}, err
	}

	s.logger.WithFields(log.Fields{
		"customer_id": created.ID,
		"email":       created.Email,
	}).Info("customer registered during checkout")
	return s.Create(created.ID, items, shippingAddress, notes)
}

// Get возвращает заказ по идентификатору.
func (s *Service) Get(id string) (domain.Order, error) {
	return s.orders.Get(id)
}

// GetByNumber возвращает заказ по человекочитаемому номеру.
func (s *Service) GetByNumber(number string) (domain.Order, error) {
	return s.orders.GetByNumber(number)
}

// ListByCustomer возвращает заказы клиента, свежие первыми.
func (s *Service) ListByCustomer(customerID string, limit int) ([]domain.Order, error) {
	return s.orders.ListByCustomer(customerID, limit)
}

// ListByStatus возвращает заказы в указанном статусе.
func (s *Service) ListByStatus(status domain.OrderStatus) ([]domain.Order, error) {
	if !status.Known() {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownStatus, status)
	}
	return s.orders.ListByStatus(status)
}

// UpdateStatus переводит заказ в новый статус.
// ShippedAt и DeliveredAt выставляются один раз и не перезаписываются при
// повторных переходах. Переход в cancelled возвращает сток на склад.
func (s *Service) UpdateStatus(orderID string, newStatus domain.OrderStatus) (domain.Order, error) {
	if !newStatus.Known() {
		return domain.Order{}, fmt.Errorf("%w: unknown status %q", domain.ErrInvalidTransition, newStatus)
	}

	order, err := s.orders.Get(orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if order.Status == newStatus {
		return order, nil
	}

	var prevStatus domain.OrderStatus
	err = s.saveWithRetry(&order, func(o *domain.Order) error {
		prevStatus = o.Status
		o.Status = newStatus
		switch newStatus {
		case domain.OrderStatusShipped:
			if o.ShippedAt == nil {
				t := s.now()
				o.ShippedAt = &t
			}
		case domain.OrderStatusDelivered:
			if o.DeliveredAt == nil {
				t := s.now()
				o.DeliveredAt = &t
			}
		}
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}

	// Возврат стока выполняется после фиксации статуса, чтобы конфликт
	// версии не привёл к двойному возврату.
	if newStatus == domain.OrderStatusCancelled && prevStatus != domain.OrderStatusCancelled {
		s.ledger.RestoreLines(order.Items)
		if s.metrics != nil {
			s.metrics.RecordOrderCancelled()
		}
	}

	s.emitEvent(&order, kafka.EventTypeOrderStatusChanged, map[string]interface{}{
		"from": string(prevStatus),
		"to":   string(newStatus),
	})

	s.logger.WithFields(log.Fields{
		"order_id": order.ID,
		"from":     prevStatus,
		"to":       newStatus,
	}).Info("order status updated")
	return order, nil
}

// Cancel отменяет заказ: возвращает сток, помечает оплату возвращённой и
// дописывает причину в notes. Доставленный или уже отменённый заказ отменить нельзя.
func (s *Service) Cancel(orderID, reason string) (domain.Order, error) {
	order, err := s.orders.Get(orderID)
	if err != nil {
		return domain.Order{}, err
	}

	err = s.saveWithRetry(&order, func(o *domain.Order) error {
		if !o.Cancellable() {
			return fmt.Errorf("%w: order %s is %s", domain.ErrInvalidTransition, o.ID, o.Status)
		}
		o.Status = domain.OrderStatusCancelled
		o.PaymentStatus = domain.PaymentStatusRefunded
		if reason != "" {
			o.AppendNote("Annulation: " + reason)
		}
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}

	s.ledger.RestoreLines(order.Items)
	if s.metrics != nil {
		s.metrics.RecordOrderCancelled()
	}

	payload := map[string]interface{}{
		"order_number": order.OrderNumber,
	}
	if reason != "" {
		payload["reason"] = reason
	}
	s.emitEvent(&order, kafka.EventTypeOrderCancelled, payload)

	s.logger.WithFields(log.Fields{
		"order_id":     order.ID,
		"order_number": order.OrderNumber,
		"reason":       reason,
	}).Info("order cancelled")
	return order, nil
}

// UpdatePaymentStatus меняет статус оплаты. Получение оплаты по заказу в
// статусе pending автоматически подтверждает заказ.
func (s *Service) UpdatePaymentStatus(orderID string, paymentStatus domain.PaymentStatus) (domain.Order, error) {
	if !paymentStatus.Known() {
		return domain.Order{}, fmt.Errorf("%w: unknown payment status %q", domain.ErrInvalidTransition, paymentStatus)
	}

	order, err := s.orders.Get(orderID)
	if err != nil {
		return domain.Order{}, err
	}

	autoConfirmed := false
	err = s.saveWithRetry(&order, func(o *domain.Order) error {
		o.PaymentStatus = paymentStatus
		autoConfirmed = false
		if paymentStatus == domain.PaymentStatusPaid && o.Status == domain.OrderStatusPending {
			o.Status = domain.OrderStatusConfirmed
			autoConfirmed = true
		}
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}

	s.emitEvent(&order, kafka.EventTypeOrderPaymentUpdated, map[string]interface{}{
		"payment_status": string(paymentStatus),
		"auto_confirmed": autoConfirmed,
	})

	s.logger.WithFields(log.Fields{
		"order_id":       order.ID,
		"payment_status": paymentStatus,
		"auto_confirmed": autoConfirmed,
	}).Info("payment status updated")
	return order, nil
}

// Statistics считает продажи за период [from, to]. Отменённые заказы входят
// в общее количество, но их сумма не учитывается в выручке. Средний чек —
// выручка, делённая на общее количество заказов, с округлением half-up.
func (s *Service) Statistics(from, to time.Time) (Statistics, error) {
	orders, err := s.orders.ListByDateRange(from, to)
	if err != nil {
		return Statistics{}, err
	}

	stats := Statistics{TotalOrders: len(orders)}
	for _, order := range orders {
		if order.Status == domain.OrderStatusDelivered {
			stats.CompletedOrders++
		}
		if order.Status != domain.OrderStatusCancelled {
			stats.TotalRevenueMinor += order.TotalMinor
		}
	}
	if stats.TotalOrders > 0 {
		n := int64(stats.TotalOrders)
		stats.AverageOrderValueMinor = (stats.TotalRevenueMinor + n/2) / n
	}
	return stats, nil
}

// Timeline возвращает историю событий заказа.
func (s *Service) Timeline(orderID string) ([]domain.TimelineEvent, error) {
	if _, err := s.orders.Get(orderID); err != nil {
		return nil, err
	}
	return s.timeline.List(orderID)
}

// saveWithRetry применяет apply к заказу и сохраняет его, повторяя на
// version conflict: свежая версия перезагружается, apply применяется заново.
func (s *Service) saveWithRetry(order *domain.Order, apply func(o *domain.Order) error) error {
	const maxRetries = 3
	const baseDelay = 10 * time.Millisecond

	for attempt := 0; attempt < maxRetries; attempt++ {
		if err := apply(order); err != nil {
			return err
		}
		order.UpdatedAt = s.now()
		prevVersion := order.Version

		if err := s.orders.Save(*order); err != nil {
			if domain.IsVersionConflict(err) && attempt < maxRetries-1 {
				s.logger.WithFields(log.Fields{
					"order_id": order.ID,
					"attempt":  attempt + 1,
					"version":  order.Version,
				}).Warn("version conflict detected, retrying")

				fresh, loadErr := s.orders.Get(order.ID)
				if loadErr != nil {
					return loadErr
				}
				*order = fresh

				time.Sleep(baseDelay * time.Duration(1<<uint(attempt)))
				continue
			}
			return err
		}

		order.Version = prevVersion + 1
		return nil
	}
	return domain.ErrOrderVersionConflict
}

// emitEvent пишет событие в transactional outbox и в timeline заказа.
// Ошибки логируются и не прерывают основную операцию.
func (s *Service) emitEvent(order *domain.Order, eventType kafka.EventType, payload map[string]interface{}) {
	if payload == nil {
		payload = make(map[string]interface{})
	}
	payload["order_id"] = order.ID
	payload["ts"] = order.UpdatedAt.Format(time.RFC3339Nano)

	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.WithError(err).WithFields(log.Fields{
			"order_id": order.ID,
			"event":    eventType,
		}).Error("marshal event failed")
		return
	}

	if s.outbox != nil {
		msg := domain.OutboxMessage{
			AggregateType: "order",
			AggregateID:   order.ID,
			EventType:     string(eventType),
			Payload:       data,
		}
		if _, err := s.outbox.Enqueue(msg); err != nil {
			s.logger.WithError(err).WithFields(log.Fields{
				"order_id": order.ID,
				"event":    eventType,
			}).Error("enqueue event failed")
		} else if s.metrics != nil {
			s.metrics.RecordOutboxEvent()
		}
	}

	if s.timeline != nil {
		var reason string
		if r, ok := payload["reason"].(string); ok {
			reason = r
		}
		event := domain.TimelineEvent{
			OrderID:  order.ID,
			Type:     string(eventType),
			Reason:   reason,
			Occurred: order.UpdatedAt,
		}
		if err := s.timeline.Append(event); err != nil {
			s.logger.WithError(err).WithFields(log.Fields{
				"order_id": order.ID,
				"event":    eventType,
			}).Warn("append timeline event failed")
		} else if s.metrics != nil {
			s.metrics.RecordTimelineEvent()
		}
	}
}
