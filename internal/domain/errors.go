package domain

import "errors"

var (
	// ErrBookNotFound возвращается, если книга отсутствует в каталоге.
	ErrBookNotFound = errors.New("book not found")
	// ErrCustomerNotFound возвращается, если клиент не найден.
	ErrCustomerNotFound = errors.New("customer not found")
	// ErrOrderNotFound возвращается, если заказ не найден в репозитории.
	ErrOrderNotFound = errors.New("order not found")
	// ErrOfferNotFound возвращается, если ежедневное предложение не найдено.
	ErrOfferNotFound = errors.New("daily offer not found")

	// ErrInsufficientStock — бизнес-ошибка: запрошено больше, чем есть на складе.
	ErrInsufficientStock = errors.New("insufficient stock for requested quantity")
	// ErrQuotaExceeded — бизнес-ошибка: продажа превысила бы лимит предложения.
	ErrQuotaExceeded = errors.New("requested quantity exceeds offer limit")
	// ErrOfferNotValid — бизнес-ошибка: предложение неактивно, вне окна дат или распродано.
	ErrOfferNotValid = errors.New("daily offer is no longer valid")
	// ErrInvalidTransition — бизнес-ошибка: недопустимый переход статуса заказа.
	ErrInvalidTransition = errors.New("invalid order status transition")

	// ErrOrderNumberConflict сигнализирует о нарушении уникальности номера заказа.
	ErrOrderNumberConflict = errors.New("order number already exists")
	// ErrOrderVersionConflict сигнализирует о конфликте версий при сохранении.
	ErrOrderVersionConflict = errors.New("version conflict")
	// ErrAlreadyExists — сущность с таким идентификатором уже сохранена.
	ErrAlreadyExists = errors.New("entity with this id already exists")
	// ErrDuplicateISBN — книга с таким ISBN уже существует.
	ErrDuplicateISBN = errors.New("book with this isbn already exists")
	// ErrDuplicateEmail — клиент с таким email уже существует.
	ErrDuplicateEmail = errors.New("customer with this email already exists")

	// Ошибка неизвестного статуса заказа в запросе.
	ErrUnknownStatus = errors.New("unknown order status")
	// Ошибка отсутствующего идентификатора клиента в заказе.
	ErrCustomerRequired = errors.New("customer_id is required")
	// Ошибка отсутствия хотя бы одной позиции в заказе.
	ErrItemsRequired = errors.New("order must contain at least one item")
	// Ошибка при некорректном количестве в позиции (<= 0).
	ErrItemQtyInvalid = errors.New("item quantity must be greater than zero")
	// Ошибка отрицательной цены позиции.
	ErrItemPriceInvalid = errors.New("item price must be non-negative")
	// Ошибка несоответствия суммы заказа и сумм позиций.
	ErrAmountMismatch = errors.New("order total does not match items sum")
	// Ошибка отрицательной суммы заказа.
	ErrAmountNegative = errors.New("order total must be non-negative")
	// Ошибка отрицательного стока книги.
	ErrStockNegative = errors.New("stock quantity must be non-negative")
	// Ошибка отсутствующего email клиента.
	ErrEmailRequired = errors.New("customer email is required")
	// Ошибка отсутствующего заголовка предложения.
	ErrOfferTitleRequired = errors.New("offer title is required")
	// Ошибка некорректных цен предложения.
	ErrOfferPriceInvalid = errors.New("offer prices must be positive and offer price must not exceed original price")
	// Ошибка некорректного окна дат предложения.
	ErrOfferDatesInvalid = errors.New("offer end date must not be before start date")
	// Ошибка превышения лимита продаж предложения.
	ErrSoldAboveLimit = errors.New("sold quantity must not exceed limit quantity")

	// ErrOutboxPublish — ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")
)

// IsNotFound сообщает, является ли ошибка отсутствием сущности (404-семантика).
func IsNotFound(err error) bool {
	return errors.Is(err, ErrBookNotFound) ||
		errors.Is(err, ErrCustomerNotFound) ||
		errors.Is(err, ErrOrderNotFound) ||
		errors.Is(err, ErrOfferNotFound)
}

// IsVersionConflict проверяет, является ли ошибка конфликтом версий.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrOrderVersionConflict)
}
