package domain

import "time"

// BookRepository описывает требования к хранилищу книг.
// ReserveStock и RestoreStock обязаны быть атомарными: проверка и изменение
// остатка выполняются одним условным обновлением, а не read-then-write.
type BookRepository interface {
	// Create сохраняет новую книгу. Возвращает ErrDuplicateISBN при занятом ISBN.
	Create(book Book) error
	// Get возвращает книгу по идентификатору или ErrBookNotFound.
	Get(id string) (Book, error)
	// GetByISBN возвращает книгу по ISBN или ErrBookNotFound.
	GetByISBN(isbn string) (Book, error)
	// Save применяет обновления к книге с учётом optimistic locking.
	Save(book Book) error
	// ReserveStock уменьшает остаток на qty, если остатка хватает.
	// Возвращает ErrInsufficientStock, когда остатка недостаточно.
	ReserveStock(id string, qty int32) error
	// RestoreStock возвращает qty на остаток (компенсация отмены).
	RestoreStock(id string, qty int32) error
}

// CustomerRepository описывает требования к хранилищу клиентов.
type CustomerRepository interface {
	// Create сохраняет нового клиента. Возвращает ErrDuplicateEmail при занятом email.
	Create(customer Customer) error
	// Get возвращает клиента по идентификатору или ErrCustomerNotFound.
	Get(id string) (Customer, error)
	// FindByEmail возвращает клиента по email или ErrCustomerNotFound.
	FindByEmail(email string) (Customer, error)
	// Save применяет обновления к клиенту с учётом optimistic locking.
	Save(customer Customer) error
}

// OrderRepository описывает требования к хранилищу заказов.
type OrderRepository interface {
	// Create сохраняет новый заказ вместе с позициями.
	// Возвращает ErrOrderNumberConflict, если номер заказа уже занят.
	Create(order Order) error
	// Get возвращает заказ по идентификатору или ErrOrderNotFound.
	Get(id string) (Order, error)
	// GetByNumber возвращает заказ по номеру или ErrOrderNotFound.
	GetByNumber(number string) (Order, error)
	// ListByCustomer возвращает заказы клиента, свежие первыми; limit > 0 ограничивает выборку.
	ListByCustomer(customerID string, limit int) ([]Order, error)
	// ListByStatus возвращает заказы в указанном статусе, свежие первыми.
	ListByStatus(status OrderStatus) ([]Order, error)
	// ListByDateRange возвращает заказы, созданные в интервале [from, to].
	ListByDateRange(from, to time.Time) ([]Order, error)
	// Save применяет обновления к заказу с учётом optimistic locking.
	Save(order Order) error
}

// OfferRepository описывает требования к хранилищу ежедневных предложений.
type OfferRepository interface {
	Create(offer DailyOffer) error
	// Get возвращает предложение по идентификатору или ErrOfferNotFound.
	Get(id string) (DailyOffer, error)
	// List возвращает все предложения, свежие первыми.
	List() ([]DailyOffer, error)
	// ListActive возвращает активные предложения, свежие первыми.
	ListActive() ([]DailyOffer, error)
	// ListCurrent возвращает активные предложения, чьё окно дат накрывает указанный день.
	ListCurrent(day time.Time) ([]DailyOffer, error)
	// ListByPromoted возвращает активные предложения для конкретной книги или набора.
	ListByPromoted(item PromotedItem) ([]DailyOffer, error)
	// Save применяет обновления к предложению с учётом optimistic locking.
	Save(offer DailyOffer) error
	// RecordSale атомарно увеличивает продажи на qty, если лимит не будет превышен.
	// Возвращает обновлённое предложение либо ErrQuotaExceeded / ErrOfferNotFound.
	RecordSale(id string, qty int32) (DailyOffer, error)
}
