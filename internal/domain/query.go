package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// OrderSortField задаёт поле сортировки в выборках заказов.
type OrderSortField string

const (
	SortByDate     OrderSortField = "date"
	SortByAmount   OrderSortField = "amount"
	SortByCustomer OrderSortField = "customer"
	SortByStatus   OrderSortField = "status"
)

// SortDirection задаёт направление сортировки.
type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// OrderQuery задаёт фильтры, сортировку и страницу. Все заданные фильтры объединяются через AND.
type OrderQuery struct {
	// UserID ограничивает выборку заказами одного клиента.
	UserID           string
	Statuses         []OrderStatus
	TrackingStatuses []TrackingStatus
	PlacedFrom       *time.Time
	PlacedTo         *time.Time
	// Подстрока идентификатора клиента.
	CustomerContains string
	OrderIDContains  string
	MinAmount        *decimal.Decimal
	MaxAmount        *decimal.Decimal
	SortBy           OrderSortField
	SortDirection    SortDirection
	Page             int
	PageSize         int
}

// OrderPage содержит страницу результатов поиска.
type OrderPage struct {
	Orders   []Order
	Total    int
	Page     int
	PageSize int
}

// Offset возвращает смещение первой записи страницы.
func (q OrderQuery) Offset() int {
	return (q.Page - 1) * q.PageSize
}

// Normalize подставляет значения по умолчанию и проверяет согласованность фильтров.
func (q OrderQuery) Normalize() (OrderQuery, error) {
	if q.SortBy == "" {
		q.SortBy = SortByDate
	}
	if q.SortDirection == "" {
		q.SortDirection = SortDesc
	}
	if q.Page <= 0 {
		q.Page = 1
	}
	if q.PageSize <= 0 {
		q.PageSize = DefaultPageSize
	}
	if q.PageSize > MaxPageSize {
		q.PageSize = MaxPageSize
	}

	switch q.SortBy {
	case SortByDate, SortByAmount, SortByCustomer, SortByStatus:
	default:
		return q, fmt.Errorf("%w: unknown sort field %q", ErrInvalidQuery, q.SortBy)
	}
	switch q.SortDirection {
	case SortAsc, SortDesc:
	default:
		return q, fmt.Errorf("%w: unknown sort direction %q", ErrInvalidQuery, q.SortDirection)
	}
	for _, s := range q.Statuses {
		if !s.Valid() {
			return q, fmt.Errorf("%w: %w", ErrInvalidQuery, ErrInvalidOrderStatus)
		}
	}
	for _, s := range q.TrackingStatuses {
		if !s.Valid() {
			return q, fmt.Errorf("%w: %w", ErrInvalidQuery, ErrInvalidTrackingStatus)
		}
	}
	if q.PlacedFrom != nil && q.PlacedTo != nil && q.PlacedFrom.After(*q.PlacedTo) {
		return q, fmt.Errorf("%w: placed_from is after placed_to", ErrInvalidQuery)
	}
	if q.MinAmount != nil && q.MaxAmount != nil && q.MinAmount.GreaterThan(*q.MaxAmount) {
		return q, fmt.Errorf("%w: min_amount is greater than max_amount", ErrInvalidQuery)
	}

	return q, nil
}
