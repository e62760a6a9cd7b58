// Package bookstorev1 описывает gRPC API сервиса заказов книжного магазина.
// Сообщения передаются в JSON (content-subtype "json"), суммы передаются десятичными строками.
package bookstorev1

import "time"

// Book описывает книгу каталога с текущим остатком.
type Book struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	Price         string `json:"price"`
	StockQuantity int32  `json:"stock_quantity"`
	SoldCount     int32  `json:"sold_count"`
}

// DeliveryInfo содержит контакты доставки.
type DeliveryInfo struct {
	Phone          string `json:"phone"`
	AlternatePhone string `json:"alternate_phone,omitempty"`
	Address        string `json:"address"`
}

// OrderLine описывает строку корзины.
type OrderLine struct {
	BookID   string `json:"book_id"`
	Quantity int32  `json:"quantity"`
}

// OrderItem описывает позицию заказа с зафиксированной ценой.
type OrderItem struct {
	ID         string `json:"id"`
	BookID     string `json:"book_id"`
	Quantity   int32  `json:"quantity"`
	UnitPrice  string `json:"unit_price"`
	TotalPrice string `json:"total_price"`
}

// Order описывает заказ.
type Order struct {
	ID             string       `json:"id"`
	UserID         string       `json:"user_id"`
	TotalAmount    string       `json:"total_amount"`
	Status         string       `json:"status"`
	TrackingStatus string       `json:"tracking_status"`
	OrderDate      time.Time    `json:"order_date"`
	CompletedDate  *time.Time   `json:"completed_date,omitempty"`
	Delivery       DeliveryInfo `json:"delivery"`
	EmailSent      bool         `json:"email_sent"`
	Items          []OrderItem  `json:"items"`
	Version        int64        `json:"version"`
}

// TimelineEvent описывает событие истории заказа.
type TimelineEvent struct {
	Type     string    `json:"type"`
	Reason   string    `json:"reason,omitempty"`
	Occurred time.Time `json:"occurred"`
}

// OrderFilter задаёт фильтры, сортировку и страницу выборки заказов.
// Пустые поля не ограничивают выборку.
type OrderFilter struct {
	Statuses         []string   `json:"statuses,omitempty"`
	TrackingStatuses []string   `json:"tracking_statuses,omitempty"`
	PlacedFrom       *time.Time `json:"placed_from,omitempty"`
	PlacedTo         *time.Time `json:"placed_to,omitempty"`
	CustomerContains string     `json:"customer_contains,omitempty"`
	OrderIDContains  string     `json:"order_id_contains,omitempty"`
	MinAmount        string     `json:"min_amount,omitempty"`
	MaxAmount        string     `json:"max_amount,omitempty"`
	SortBy           string     `json:"sort_by,omitempty"`
	SortDirection    string     `json:"sort_direction,omitempty"`
	Page             int32      `json:"page,omitempty"`
	PageSize         int32      `json:"page_size,omitempty"`
}

type PlaceOrderRequest struct {
	Lines    []OrderLine  `json:"lines"`
	Delivery DeliveryInfo `json:"delivery"`
}

type PlaceOrderResponse struct {
	Order *Order `json:"order"`
}

type CancelOrderRequest struct {
	OrderID string `json:"order_id"`
}

type CancelOrderResponse struct {
	Order *Order `json:"order"`
}

type GetOrderRequest struct {
	OrderID string `json:"order_id"`
}

type GetOrderResponse struct {
	Order                *Order          `json:"order"`
	Timeline             []TimelineEvent `json:"timeline"`
	Cancellable          bool            `json:"cancellable"`
	CancellationDeadline time.Time       `json:"cancellation_deadline"`
}

type ListMyOrdersRequest struct {
	Filter OrderFilter `json:"filter"`
}

type SearchOrdersRequest struct {
	Filter OrderFilter `json:"filter"`
}

// ListOrdersResponse возвращает страницу заказов.
type ListOrdersResponse struct {
	Orders   []*Order `json:"orders"`
	Total    int64    `json:"total"`
	Page     int32    `json:"page"`
	PageSize int32    `json:"page_size"`
}

type UpdateTrackingStatusRequest struct {
	OrderID        string `json:"order_id"`
	TrackingStatus string `json:"tracking_status"`
}

type UpdateTrackingStatusResponse struct {
	Order *Order `json:"order"`
}

type GetBookRequest struct {
	BookID string `json:"book_id"`
}

type GetBookResponse struct {
	Book *Book `json:"book"`
}
