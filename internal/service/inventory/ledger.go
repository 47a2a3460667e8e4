package inventory

import (
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/bookstore/internal/domain"
)

// Ledger — учёт складских остатков поверх BookRepository.
// Сама атомарность check-and-decrement живёт в репозитории (условное
// обновление); Ledger отвечает за валидацию, классификацию ошибок и
// компенсационный возврат стока.
type Ledger struct {
	books  domain.BookRepository
	logger *log.Entry
}

// NewLedger создаёт Ledger поверх репозитория книг.
func NewLedger(books domain.BookRepository, logger *log.Entry) *Ledger {
	if logger == nil {
		logger = log.WithField("component", "inventory")
	}
	return &Ledger{books: books, logger: logger}
}

// CheckAndReserve атомарно проверяет остаток книги и уменьшает его на qty.
// Возвращает ErrInsufficientStock, если остатка не хватает, и ErrBookNotFound,
// если книги нет.
func (l *Ledger) CheckAndReserve(bookID string, qty int32) error {
	if qty <= 0 {
		return domain.ErrItemQtyInvalid
	}

	if err := l.books.ReserveStock(bookID, qty); err != nil {
		if errors.Is(err, domain.ErrInsufficientStock) || errors.Is(err, domain.ErrBookNotFound) {
			return err
		}
		return fmt.Errorf("reserve stock for book %s: %w", bookID, err)
	}

	l.logger.WithFields(log.Fields{
		"book_id": bookID,
		"qty":     qty,
	}).Debug("stock reserved")
	return nil
}

// Restore возвращает qty на остаток книги. Используется только при откате
// уже применённых резерваций (отмена заказа или компенсация неудавшегося
// оформления). Отсутствие книги логируется и не считается ошибкой:
// удаление книги не должно блокировать отмену заказа.
func (l *Ledger) Restore(bookID string, qty int32) error {
	if qty <= 0 {
		return domain.ErrItemQtyInvalid
	}

	err := l.books.RestoreStock(bookID, qty)
	if err == nil {
		l.logger.WithFields(log.Fields{
			"book_id": bookID,
			"qty":     qty,
		}).Debug("stock restored")
		return nil
	}
	if errors.Is(err, domain.ErrBookNotFound) {
		l.logger.WithField("book_id", bookID).Warn("restore skipped: book no longer exists")
		return nil
	}
	return fmt.Errorf("restore stock for book %s: %w", bookID, err)
}

// RestoreLines возвращает сток по всем позициям заказа. Ошибки отдельных
// позиций логируются, возврат продолжается для остальных.
func (l *Ledger) RestoreLines(items []domain.OrderItem) {
	for _, item := range items {
		if err := l.Restore(item.BookID, item.Quantity); err != nil {
			l.logger.WithError(err).WithField("book_id", item.BookID).Warn("restore failed")
		}
	}
}
