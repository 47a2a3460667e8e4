package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vladislavdragonenkov/bookstore/internal/domain"
)

const (
	opTimeout = 5 * time.Second
)

type bookRepository struct {
	db *sql.DB
}

// NewBookRepository создаёт PostgreSQL-реализацию BookRepository.
func NewBookRepository(store *Store) domain.BookRepository {
	return &bookRepository{db: store.DB()}
}

const bookColumns = `
	id, isbn, title, author, price_minor, stock_quantity,
	description, category, publisher, publication_year,
	is_active, is_featured, version, created_at, updated_at`

func (r *bookRepository) Create(book domain.Book) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO books (
			id, isbn, title, author, price_minor, stock_quantity,
			description, category, publisher, publication_year,
			is_active, is_featured, version, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
	`,
		book.ID, book.ISBN, book.Title, book.Author, book.PriceMinor, book.StockQuantity,
		book.Description, book.Category, book.Publisher, book.PublicationYear,
		book.IsActive, book.IsFeatured, book.Version, book.CreatedAt, book.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateISBN
		}
		return fmt.Errorf("insert book: %w", err)
	}

	return nil
}

func (r *bookRepository) Get(id string) (domain.Book, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	return r.scanOne(r.db.QueryRowContext(ctx, `
		SELECT`+bookColumns+`
		FROM books
		WHERE id = $1
	`, id))
}

func (r *bookRepository) GetByISBN(isbn string) (domain.Book, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	return r.scanOne(r.db.QueryRowContext(ctx, `
		SELECT`+bookColumns+`
		FROM books
		WHERE isbn = $1
	`, isbn))
}

func (r *bookRepository) Save(book domain.Book) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE books
		SET isbn = $1,
		    title = $2,
		    author = $3,
		    price_minor = $4,
		    stock_quantity = $5,
		    description = $6,
		    category = $7,
		    publisher = $8,
		    publication_year = $9,
		    is_active = $10,
		    is_featured = $11,
		    version = version + 1,
		    updated_at = $12
		WHERE id = $13
		  AND version = $14
	`,
		book.ISBN, book.Title, book.Author, book.PriceMinor, book.StockQuantity,
		book.Description, book.Category, book.Publisher, book.PublicationYear,
		book.IsActive, book.IsFeatured, book.UpdatedAt,
		book.ID, book.Version,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateISBN
		}
		return fmt.Errorf("update book: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		exists, err := r.exists(ctx, book.ID)
		if err != nil {
			return err
		}
		if !exists {
			return domain.ErrBookNotFound
		}
		return domain.ErrOrderVersionConflict
	}

	return nil
}

// ReserveStock уменьшает остаток одним условным UPDATE: проверка и
// списание атомарны, гонка двух резерваций не может увести остаток в минус.
func (r *bookRepository) ReserveStock(id string, qty int32) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE books
		SET stock_quantity = stock_quantity - $2,
		    version = version + 1,
		    updated_at = NOW()
		WHERE id = $1
		  AND stock_quantity >= $2
	`, id, qty)
	if err != nil {
		return fmt.Errorf("reserve stock: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		exists, err := r.exists(ctx, id)
		if err != nil {
			return err
		}
		if !exists {
			return domain.ErrBookNotFound
		}
		return domain.ErrInsufficientStock
	}

	return nil
}

func (r *bookRepository) RestoreStock(id string, qty int32) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE books
		SET stock_quantity = stock_quantity + $2,
		    version = version + 1,
		    updated_at = NOW()
		WHERE id = $1
	`, id, qty)
	if err != nil {
		return fmt.Errorf("restore stock: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrBookNotFound
	}

	return nil
}

func (r *bookRepository) scanOne(row *sql.Row) (domain.Book, error) {
	var book domain.Book
	err := row.Scan(
		&book.ID, &book.ISBN, &book.Title, &book.Author, &book.PriceMinor, &book.StockQuantity,
		&book.Description, &book.Category, &book.Publisher, &book.PublicationYear,
		&book.IsActive, &book.IsFeatured, &book.Version, &book.CreatedAt, &book.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Book{}, domain.ErrBookNotFound
		}
		return domain.Book{}, fmt.Errorf("select book: %w", err)
	}
	return book, nil
}

func (r *bookRepository) exists(ctx context.Context, id string) (bool, error) {
	var found string
	err := r.db.QueryRowContext(ctx, `SELECT id FROM books WHERE id = $1`, id).Scan(&found)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return false, fmt.Errorf("check book exists: %w", err)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

var _ domain.BookRepository = (*bookRepository)(nil)
