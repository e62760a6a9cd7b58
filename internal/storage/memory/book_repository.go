package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/vladislavdragonenkov/bookstore/internal/domain"
)

type bookRepositoryInMemory struct {
	store *Store
}

// Books возвращает репозиторий каталога поверх хранилища.
func (s *Store) Books() domain.BookRepository {
	return &bookRepositoryInMemory{store: s}
}

// Create заводит книгу; повторный ID перезаписывать нельзя.
func (r *bookRepositoryInMemory) Create(_ context.Context, book domain.Book) error {
	if err := book.Validate(); err != nil {
		return err
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, exists := r.store.books[book.ID]; exists {
		return fmt.Errorf("book %s: %w", book.ID, domain.ErrBookAlreadyExists)
	}
	now := r.store.now()
	book.CreatedAt = now
	book.UpdatedAt = now
	r.store.books[book.ID] = book
	return nil
}

// Get возвращает книгу или ошибку, совместимую с ErrBookNotFound.
func (r *bookRepositoryInMemory) Get(_ context.Context, id string) (domain.Book, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	book, ok := r.store.books[id]
	if !ok {
		return domain.Book{}, &domain.BookNotFoundError{BookID: id}
	}
	return book, nil
}

// txLedger ведёт складской учёт внутри транзакции.
type txLedger memoryTx

func (l *txLedger) tx() *memoryTx { return (*memoryTx)(l) }

// LockBooks под глобальной блокировкой хранилища просто возвращает существующие книги.
func (l *txLedger) LockBooks(_ context.Context, bookIDs []string) (map[string]domain.Book, error) {
	ids := append([]string(nil), bookIDs...)
	sort.Strings(ids)

	out := make(map[string]domain.Book, len(ids))
	for _, id := range ids {
		if book, ok := l.store.books[id]; ok {
			out[id] = book
		}
	}
	return out, nil
}

func (l *txLedger) Reserve(ctx context.Context, bookID string, qty int32) (domain.Book, error) {
	return l.apply(ctx, bookID, func(b domain.Book) (domain.Book, error) { return b.Reserved(qty) })
}

func (l *txLedger) Release(ctx context.Context, bookID string, qty int32) (domain.Book, error) {
	return l.apply(ctx, bookID, func(b domain.Book) (domain.Book, error) { return b.Released(qty) })
}

func (l *txLedger) apply(ctx context.Context, bookID string, mutate func(domain.Book) (domain.Book, error)) (domain.Book, error) {
	if err := ctx.Err(); err != nil {
		return domain.Book{}, err
	}
	current, ok := l.store.books[bookID]
	if !ok {
		return domain.Book{}, &domain.BookNotFoundError{BookID: bookID}
	}
	next, err := mutate(current)
	if err != nil {
		return domain.Book{}, err
	}
	next.UpdatedAt = l.store.now()

	l.store.books[bookID] = next
	l.tx().onRollback(func() { l.store.books[bookID] = current })
	return next, nil
}

var _ domain.InventoryLedger = (*txLedger)(nil)
