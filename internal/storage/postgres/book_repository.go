package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"

	"github.com/vladislavdragonenkov/bookstore/internal/domain"
)

const bookColumns = `id, title, price, stock_quantity, sold_count, created_at, updated_at`

type bookRepository struct {
	q querier
}

// NewBookRepository создаёт PostgreSQL-реализацию BookRepository.
func NewBookRepository(store *Store) domain.BookRepository {
	return &bookRepository{q: store.DB()}
}

// Create заводит книгу. Цену проверяем до INSERT: NUMERIC(12, 2) молча округлил бы лишние знаки.
func (r *bookRepository) Create(ctx context.Context, book domain.Book) error {
	if err := book.Validate(); err != nil {
		return err
	}
	ctx, cancel := withOpTimeout(ctx)
	defer cancel()

	_, err := r.q.ExecContext(ctx, `
		INSERT INTO books (id, title, price, stock_quantity, sold_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
	`, book.ID, book.Title, book.Price, book.StockQuantity, book.SoldCount)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("book %s: %w", book.ID, domain.ErrBookAlreadyExists)
		}
		return fmt.Errorf("insert book: %w", err)
	}
	return nil
}

func (r *bookRepository) Get(ctx context.Context, id string) (domain.Book, error) {
	ctx, cancel := withOpTimeout(ctx)
	defer cancel()

	book, err := scanBook(r.q.QueryRowContext(ctx, `SELECT `+bookColumns+` FROM books WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Book{}, &domain.BookNotFoundError{BookID: id}
	}
	if err != nil {
		return domain.Book{}, fmt.Errorf("select book: %w", err)
	}
	return book, nil
}

// inventoryLedger работает только внутри транзакции UnitOfWork.
type inventoryLedger struct {
	q querier
}

// LockBooks берёт FOR UPDATE на строки книг в порядке возрастания ID,
// чтобы конкурирующие заказы с пересекающимися книгами не попадали в дедлок.
func (l *inventoryLedger) LockBooks(ctx context.Context, bookIDs []string) (map[string]domain.Book, error) {
	ids := slices.Clone(bookIDs)
	slices.Sort(ids)
	ids = slices.Compact(ids)

	rows, err := l.q.QueryContext(ctx, `
		SELECT `+bookColumns+`
		FROM books
		WHERE id = ANY($1)
		ORDER BY id
		FOR UPDATE
	`, ids)
	if err != nil {
		return nil, fmt.Errorf("lock books: %w", err)
	}
	defer rows.Close()

	out := make(map[string]domain.Book, len(ids))
	for rows.Next() {
		book, err := scanBook(rows)
		if err != nil {
			return nil, fmt.Errorf("scan locked book: %w", err)
		}
		out[book.ID] = book
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate locked books: %w", err)
	}
	return out, nil
}

// Reserve списывает сток условным UPDATE: проверка и списание идут одним оператором.
func (l *inventoryLedger) Reserve(ctx context.Context, bookID string, qty int32) (domain.Book, error) {
	if qty <= 0 {
		return domain.Book{}, domain.ErrItemQtyInvalid
	}

	book, err := scanBook(l.q.QueryRowContext(ctx, `
		UPDATE books
		SET stock_quantity = stock_quantity - $2,
		    sold_count = sold_count + $2,
		    updated_at = NOW()
		WHERE id = $1 AND stock_quantity >= $2
		RETURNING `+bookColumns,
		bookID, qty,
	))
	if err == nil {
		return book, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return domain.Book{}, fmt.Errorf("reserve book %s: %w", bookID, err)
	}

	available, err := l.stock(ctx, bookID)
	if err != nil {
		return domain.Book{}, err
	}
	return domain.Book{}, &domain.StockError{BookID: bookID, Requested: qty, Available: available}
}

// Release возвращает сток; на возврат больше проданного отвечает ErrStockReleaseMismatch.
func (l *inventoryLedger) Release(ctx context.Context, bookID string, qty int32) (domain.Book, error) {
	if qty <= 0 {
		return domain.Book{}, domain.ErrItemQtyInvalid
	}

	book, err := scanBook(l.q.QueryRowContext(ctx, `
		UPDATE books
		SET stock_quantity = stock_quantity + $2,
		    sold_count = sold_count - $2,
		    updated_at = NOW()
		WHERE id = $1 AND sold_count >= $2
		RETURNING `+bookColumns,
		bookID, qty,
	))
	if err == nil {
		return book, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return domain.Book{}, fmt.Errorf("release book %s: %w", bookID, err)
	}

	if _, err := l.stock(ctx, bookID); err != nil {
		return domain.Book{}, err
	}
	return domain.Book{}, fmt.Errorf("release %d of book %s: %w", qty, bookID, domain.ErrStockReleaseMismatch)
}

func (l *inventoryLedger) stock(ctx context.Context, bookID string) (int32, error) {
	var available int32
	err := l.q.QueryRowContext(ctx, `SELECT stock_quantity FROM books WHERE id = $1`, bookID).Scan(&available)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, &domain.BookNotFoundError{BookID: bookID}
	}
	if err != nil {
		return 0, fmt.Errorf("read stock of book %s: %w", bookID, err)
	}
	return available, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBook(row rowScanner) (domain.Book, error) {
	var book domain.Book
	err := row.Scan(
		&book.ID, &book.Title, &book.Price, &book.StockQuantity,
		&book.SoldCount, &book.CreatedAt, &book.UpdatedAt,
	)
	if err != nil {
		return domain.Book{}, err
	}
	book.CreatedAt = book.CreatedAt.UTC()
	book.UpdatedAt = book.UpdatedAt.UTC()
	return book, nil
}

var (
	_ domain.BookRepository  = (*bookRepository)(nil)
	_ domain.InventoryLedger = (*inventoryLedger)(nil)
)
