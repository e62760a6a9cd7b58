package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DefaultCancellationWindow задаёт, сколько времени после оформления клиент может отменить заказ.
const DefaultCancellationWindow = time.Hour

// OrderStatus описывает жизненный цикл заказа.
type OrderStatus string

const (
	// Начальное состояние; снаружи не наблюдается, оформление завершает заказ синхронно.
	OrderStatusPending OrderStatus = "pending"
	// Заказ оформлен, сток списан.
	OrderStatusCompleted OrderStatus = "completed"
	// Заказ отменён, сток возвращён. Терминальное состояние.
	OrderStatusCancelled OrderStatus = "cancelled"
)

// Valid проверяет, что статус относится к поддерживаемым значениям.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusCompleted, OrderStatusCancelled:
		return true
	default:
		return false
	}
}

// CanTransitionTo описывает разрешённые переходы: pending → completed, completed → cancelled.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	switch s {
	case OrderStatusPending:
		return next == OrderStatusCompleted
	case OrderStatusCompleted:
		return next == OrderStatusCancelled
	default:
		return false
	}
}

// ParseOrderStatus приводит строку к OrderStatus.
func ParseOrderStatus(raw string) (OrderStatus, error) {
	s := OrderStatus(raw)
	if !s.Valid() {
		return "", ErrInvalidOrderStatus
	}
	return s, nil
}

// TrackingStatus отражает прогресс доставки независимо от OrderStatus.
type TrackingStatus string

const (
	TrackingStatusOrderPlaced    TrackingStatus = "order_placed"
	TrackingStatusProcessing     TrackingStatus = "processing"
	TrackingStatusInWarehouse    TrackingStatus = "in_warehouse"
	TrackingStatusOnTheWay       TrackingStatus = "on_the_way"
	TrackingStatusOutForDelivery TrackingStatus = "out_for_delivery"
	TrackingStatusDelivered      TrackingStatus = "delivered"
)

// Valid проверяет, что статус доставки относится к поддерживаемым значениям.
func (s TrackingStatus) Valid() bool {
	switch s {
	case TrackingStatusOrderPlaced,
		TrackingStatusProcessing,
		TrackingStatusInWarehouse,
		TrackingStatusOnTheWay,
		TrackingStatusOutForDelivery,
		TrackingStatusDelivered:
		return true
	default:
		return false
	}
}

// ParseTrackingStatus приводит строку к TrackingStatus.
func ParseTrackingStatus(raw string) (TrackingStatus, error) {
	s := TrackingStatus(raw)
	if !s.Valid() {
		return "", ErrInvalidTrackingStatus
	}
	return s, nil
}

// DeliveryInfo содержит контакты доставки. Формат проверяет транспортный слой.
type DeliveryInfo struct {
	Phone          string
	AlternatePhone string
	Address        string
}

// OrderItem представляет одну позицию заказа.
type OrderItem struct {
	ID     string
	BookID string
	// Количество экземпляров, больше нуля.
	Quantity int32
	// Цена книги на момент резерва, дальше не пересчитывается.
	UnitPrice decimal.Decimal
	// TotalPrice = UnitPrice × Quantity.
	TotalPrice decimal.Decimal
}

// NewOrderItem фиксирует цену книги в позиции заказа.
func NewOrderItem(id, bookID string, qty int32, unitPrice decimal.Decimal) OrderItem {
	return OrderItem{
		ID:         id,
		BookID:     bookID,
		Quantity:   qty,
		UnitPrice:  unitPrice,
		TotalPrice: unitPrice.Mul(decimal.NewFromInt32(qty)),
	}
}

// Order агрегирует состояние заказа и его позиции.
type Order struct {
	ID             string
	UserID         string
	TotalAmount    decimal.Decimal
	Status         OrderStatus
	TrackingStatus TrackingStatus
	OrderDate      time.Time
	CompletedDate  *time.Time
	Delivery       DeliveryInfo
	EmailSent      bool
	Items          []OrderItem
	Version        int64
	UpdatedAt      time.Time
}

// ItemsTotal считает точную сумму позиций.
func (o *Order) ItemsTotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range o.Items {
		total = total.Add(item.TotalPrice)
	}
	return total
}

// ValidateInvariants проверяет базовые инварианты заказа и возвращает список замечаний.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	if o.UserID == "" {
		errs = append(errs, ErrUserRequired)
	}
	if len(o.Items) == 0 {
		errs = append(errs, ErrItemsRequired)
	}
	if !o.Status.Valid() {
		errs = append(errs, ErrInvalidOrderStatus)
	}
	if !o.TrackingStatus.Valid() {
		errs = append(errs, ErrInvalidTrackingStatus)
	}

	for _, item := range o.Items {
		if item.BookID == "" {
			errs = append(errs, ErrBookIDRequired)
		}
		if item.Quantity <= 0 {
			errs = append(errs, ErrItemQtyInvalid)
		}
		if item.UnitPrice.IsNegative() {
			errs = append(errs, ErrItemPriceInvalid)
		}
		if !item.UnitPrice.Mul(decimal.NewFromInt32(item.Quantity)).Equal(item.TotalPrice) {
			errs = append(errs, ErrItemTotalMismatch)
		}
	}
	if !o.ItemsTotal().Equal(o.TotalAmount) {
		errs = append(errs, ErrAmountMismatch)
	}

	return errs
}

// CancellationDeadline возвращает последний момент, когда заказ ещё можно отменить.
func (o *Order) CancellationDeadline(window time.Duration) time.Time {
	return o.OrderDate.UTC().Add(window)
}

// WithinCancellationWindow проверяет окно отмены. Граница включительная, ровно window после оформления ещё можно.
func (o *Order) WithinCancellationWindow(now time.Time, window time.Duration) bool {
	return now.UTC().Sub(o.OrderDate.UTC()) <= window
}

// CheckCancellable проверяет отмену в порядке: уже отменён, окно истекло, недопустимый переход.
func (o *Order) CheckCancellable(now time.Time, window time.Duration) error {
	if o.Status == OrderStatusCancelled {
		return ErrOrderAlreadyCancelled
	}
	if !o.WithinCancellationWindow(now, window) {
		return ErrCancellationWindowExpired
	}
	if !o.Status.CanTransitionTo(OrderStatusCancelled) {
		return ErrInvalidStatusTransition
	}
	return nil
}

// Cancel переводит заказ в cancelled. Сток возвращает вызывающая транзакция.
func (o *Order) Cancel(now time.Time, window time.Duration) error {
	if err := o.CheckCancellable(now, window); err != nil {
		return err
	}
	o.Status = OrderStatusCancelled
	o.UpdatedAt = now.UTC()
	return nil
}

// BookQuantities суммирует количество по книгам; дубликаты строк складываются.
func (o *Order) BookQuantities() map[string]int32 {
	out := make(map[string]int32, len(o.Items))
	for _, item := range o.Items {
		out[item.BookID] += item.Quantity
	}
	return out
}
