package domain

import (
	"errors"
	"fmt"
)

var (
	// Ошибка, если у заказа нет владельца.
	ErrUserRequired = errors.New("user_id is required")
	// Ошибка, если в позиции не указан идентификатор книги.
	ErrBookIDRequired = errors.New("book_id is required")
	// Ошибка отсутствия хотя бы одной позиции в заказе.
	ErrItemsRequired = errors.New("order must contain at least one item")
	// Ошибка при некорректном количестве экземпляров (<= 0).
	ErrItemQtyInvalid = errors.New("item quantity must be greater than zero")
	// Ошибка, если цена за единицу отрицательная.
	ErrItemPriceInvalid = errors.New("item unit price must be non-negative")
	// Ошибка, если сумма позиции не равна цене, умноженной на количество.
	ErrItemTotalMismatch = errors.New("item total does not match unit price times quantity")
	// Ошибка несоответствия суммы заказа и сумм позиций.
	ErrAmountMismatch = errors.New("order total does not match items sum")
	// Ошибка статуса заказа вне допустимого набора.
	ErrInvalidOrderStatus = errors.New("invalid order status")
	// Ошибка статуса доставки вне допустимого набора.
	ErrInvalidTrackingStatus = errors.New("invalid tracking status")
	// Ошибка, если контактные данные доставки не прошли проверку.
	ErrDeliveryInfoInvalid = errors.New("delivery info is invalid")

	// Ошибка, если книга с таким ID уже заведена.
	ErrBookAlreadyExists = errors.New("book already exists")
	// Ошибка, если цена книги отрицательная или точнее копеек.
	ErrBookPriceInvalid = errors.New("book price must be non-negative with at most 2 decimal places")
	// Ошибка отрицательного остатка или счётчика продаж.
	ErrBookStockInvalid = errors.New("book stock counters must be non-negative")
	// ErrBookNotFound возвращается, если книги из запроса нет в каталоге.
	ErrBookNotFound = errors.New("book not found")
	// ErrInsufficientStock возвращается, если на складе меньше экземпляров, чем запрошено.
	ErrInsufficientStock = errors.New("insufficient stock")
	// Ошибка возврата на склад больше, чем было продано (двойной возврат).
	ErrStockReleaseMismatch = errors.New("stock release exceeds sold count")
	// ErrOrderNotFound возвращается, если заказ не найден или принадлежит другому пользователю.
	ErrOrderNotFound = errors.New("order not found")
	// Ошибка повторной отмены уже отменённого заказа.
	ErrOrderAlreadyCancelled = errors.New("order already cancelled")
	// Ошибка, если окно отмены заказа истекло.
	ErrCancellationWindowExpired = errors.New("cancellation window expired")
	// Ошибка перехода статуса, не разрешённого машиной состояний.
	ErrInvalidStatusTransition = errors.New("invalid order status transition")
	// ErrOrderVersionConflict сигнализирует о конфликте версий при сохранении.
	ErrOrderVersionConflict = errors.New("order version conflict")
	// ErrTransactionConflict возвращается, если транзакция не прошла из-за конкурентного доступа после всех повторов.
	ErrTransactionConflict = errors.New("transaction conflict")
	// Ошибка некорректных параметров поиска заказов.
	ErrInvalidQuery = errors.New("invalid order query")

	// Ошибка запроса без ключа идемпотентности.
	ErrIdempotencyKeyRequired = errors.New("idempotency key is required")
	// Ошибка, если не передан хэш запроса.
	ErrIdempotencyRequestHashRequired = errors.New("idempotency request hash is required")
	// Ошибка, если ключ уже занят другим запросом.
	ErrIdempotencyKeyAlreadyExists = errors.New("idempotency key already exists")
	// Ошибка отсутствия записи по ключу.
	ErrIdempotencyKeyNotFound = errors.New("idempotency key not found")
	// Ошибка, если ключ переиспользован с другим телом запроса.
	ErrIdempotencyHashMismatch = errors.New("idempotency key reused with different request")
	// Ошибка, если запрос с этим ключом ещё обрабатывается.
	ErrIdempotencyInProgress = errors.New("idempotency request is still processing")

	// Ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")
)

// BookNotFoundError уточняет, какой книги не нашлось.
type BookNotFoundError struct {
	BookID string
}

func (e *BookNotFoundError) Error() string {
	return fmt.Sprintf("book %q not found", e.BookID)
}

// Unwrap позволяет сравнивать ошибку с ErrBookNotFound через errors.Is.
func (e *BookNotFoundError) Unwrap() error { return ErrBookNotFound }

// StockError описывает нехватку стока по конкретной книге.
type StockError struct {
	BookID    string
	Requested int32
	Available int32
}

func (e *StockError) Error() string {
	return fmt.Sprintf("insufficient stock for book %q: requested %d, available %d", e.BookID, e.Requested, e.Available)
}

// Unwrap позволяет сравнивать ошибку с ErrInsufficientStock через errors.Is.
func (e *StockError) Unwrap() error { return ErrInsufficientStock }

// IsIdempotencyConflict сообщает, что ключ занят другим телом или ещё не отработавшим запросом.
// Такой отказ отдаётся клиенту как есть, остальные ошибки хранилища ключей считаются внутренними.
func IsIdempotencyConflict(err error) bool {
	return errors.Is(err, ErrIdempotencyHashMismatch) || errors.Is(err, ErrIdempotencyInProgress)
}

// IsBusinessRejection отделяет ожидаемые отказы (нет книги, нет стока, окно отмены)
// от инфраструктурных ошибок.
func IsBusinessRejection(err error) bool {
	switch {
	case errors.Is(err, ErrBookNotFound),
		errors.Is(err, ErrInsufficientStock),
		errors.Is(err, ErrOrderNotFound),
		errors.Is(err, ErrOrderAlreadyCancelled),
		errors.Is(err, ErrCancellationWindowExpired):
		return true
	default:
		return false
	}
}
