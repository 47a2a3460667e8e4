package memory

import (
	"sync"

	"github.com/vladislavdragonenkov/bookstore/internal/domain"
)

// bookRepositoryInMemory — простая in-memory реализация BookRepository.
// Мьютекс сериализует все мутации стока, поэтому условные обновления
// ReserveStock/RestoreStock атомарны относительно конкурентных запросов.
type bookRepositoryInMemory struct {
	mu    sync.RWMutex
	items map[string]domain.Book
}

// NewBookRepository возвращает in-memory репозиторий для локальной разработки и тестов.
func NewBookRepository() domain.BookRepository {
	return &bookRepositoryInMemory{
		items: make(map[string]domain.Book),
	}
}

// Create сохраняет новую книгу, если ID и ISBN ещё не заняты.
func (r *bookRepositoryInMemory) Create(book domain.Book) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[book.ID]; exists {
		return domain.ErrAlreadyExists
	}
	for _, existing := range r.items {
		if book.ISBN != "" && existing.ISBN == book.ISBN {
			return domain.ErrDuplicateISBN
		}
	}
	r.items[book.ID] = book
	return nil
}

// Get возвращает книгу или ErrBookNotFound, если её нет.
func (r *bookRepositoryInMemory) Get(id string) (domain.Book, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	book, ok := r.items[id]
	if !ok {
		return domain.Book{}, domain.ErrBookNotFound
	}
	return book, nil
}

// GetByISBN возвращает книгу по ISBN или ErrBookNotFound.
func (r *bookRepositoryInMemory) GetByISBN(isbn string) (domain.Book, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, book := range r.items {
		if book.ISBN == isbn {
			return book, nil
		}
	}
	return domain.Book{}, domain.ErrBookNotFound
}

// Save перезаписывает книгу, проверяя версию (optimistic locking).
func (r *bookRepositoryInMemory) Save(book domain.Book) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.items[book.ID]
	if !ok {
		return domain.ErrBookNotFound
	}
	if current.Version != book.Version {
		return domain.ErrOrderVersionConflict
	}
	book.Version++
	r.items[book.ID] = book
	return nil
}

// ReserveStock уменьшает остаток одним шагом под мьютексом;
// проверка и декремент неразделимы.
func (r *bookRepositoryInMemory) ReserveStock(id string, qty int32) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	book, ok := r.items[id]
	if !ok {
		return domain.ErrBookNotFound
	}
	if book.StockQuantity < qty {
		return domain.ErrInsufficientStock
	}
	book.StockQuantity -= qty
	r.items[id] = book
	return nil
}

// RestoreStock возвращает qty на остаток.
func (r *bookRepositoryInMemory) RestoreStock(id string, qty int32) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	book, ok := r.items[id]
	if !ok {
		return domain.ErrBookNotFound
	}
	book.StockQuantity += qty
	r.items[id] = book
	return nil
}

var _ domain.BookRepository = (*bookRepositoryInMemory)(nil)
