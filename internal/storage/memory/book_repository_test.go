package memory_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/vladislavdragonenkov/bookstore/internal/domain"
	"github.com/vladislavdragonenkov/bookstore/internal/storage/memory"
)

func newBook() domain.Book {
	return domain.Book{
		ID:            "book-1",
		ISBN:          "978-0441013593",
		Title:         "Dune",
		Author:        "Frank Herbert",
		PriceMinor:    1000,
		StockQuantity: 5,
		IsActive:      true,
	}
}

func TestBookRepository_CreateDuplicateISBN(t *testing.T) {
	repo := memory.NewBookRepository()
	if err := repo.Create(newBook()); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	dup := newBook()
	dup.ID = "book-2"
	if err := repo.Create(dup); !errors.Is(err, domain.ErrDuplicateISBN) {
		t.Fatalf("expected ErrDuplicateISBN, got %v", err)
	}
}

func TestBookRepository_CreateDuplicateID(t *testing.T) {
	repo := memory.NewBookRepository()
	if err := repo.Create(newBook()); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	dup := newBook()
	dup.ISBN = "978-0553283686"
	if err := repo.Create(dup); !errors.Is(err, domain.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestBookRepository_ReserveStock(t *testing.T) {
	repo := memory.NewBookRepository()
	if err := repo.Create(newBook()); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if err := repo.ReserveStock("book-1", 3); err != nil {
		t.Fatalf("reserve failed: %v", err)
	}

	book, err := repo.Get("book-1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if book.StockQuantity != 2 {
		t.Fatalf("expected stock 2, got %d", book.StockQuantity)
	}
}

func TestBookRepository_ReserveStockInsufficient(t *testing.T) {
	repo := memory.NewBookRepository()
	book := newBook()
	book.StockQuantity = 2
	if err := repo.Create(book); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if err := repo.ReserveStock("book-1", 5); !errors.Is(err, domain.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}

	// Неудачная резервация не должна трогать остаток.
	stored, _ := repo.Get("book-1")
	if stored.StockQuantity != 2 {
		t.Fatalf("expected stock to stay 2, got %d", stored.StockQuantity)
	}
}

func TestBookRepository_ReserveStockMissingBook(t *testing.T) {
	repo := memory.NewBookRepository()
	if err := repo.ReserveStock("ghost", 1); !errors.Is(err, domain.ErrBookNotFound) {
		t.Fatalf("expected ErrBookNotFound, got %v", err)
	}
}

func TestBookRepository_RestoreStock(t *testing.T) {
	repo := memory.NewBookRepository()
	if err := repo.Create(newBook()); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if err := repo.RestoreStock("book-1", 7); err != nil {
		t.Fatalf("restore failed: %v", err)
	}
	stored, _ := repo.Get("book-1")
	if stored.StockQuantity != 12 {
		t.Fatalf("expected stock 12, got %d", stored.StockQuantity)
	}
}

// Конкурентные резервации не должны вдвоём пройти границу остатка.
func TestBookRepository_ReserveStockConcurrent(t *testing.T) {
	repo := memory.NewBookRepository()
	book := newBook()
	book.StockQuantity = 50
	if err := repo.Create(book); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	const workers = 100
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0

	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			if err := repo.ReserveStock("book-1", 1); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if succeeded != 50 {
		t.Fatalf("expected exactly 50 successful reservations, got %d", succeeded)
	}
	stored, _ := repo.Get("book-1")
	if stored.StockQuantity != 0 {
		t.Fatalf("expected stock 0, got %d", stored.StockQuantity)
	}
}
