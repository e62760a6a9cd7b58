package grpcapi

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	bookstorev1 "github.com/vladislavdragonenkov/bookstore/api/bookstore/v1"
	"github.com/vladislavdragonenkov/bookstore/internal/domain"
	"github.com/vladislavdragonenkov/bookstore/internal/service/checkout"
)

func toPlaceCommand(userID string, req *bookstorev1.PlaceOrderRequest) checkout.PlaceOrderCommand {
	lines := make([]checkout.OrderLine, 0, len(req.Lines))
	for _, line := range req.Lines {
		lines = append(lines, checkout.OrderLine{
			BookID:   strings.TrimSpace(line.BookID),
			Quantity: line.Quantity,
		})
	}
	return checkout.PlaceOrderCommand{
		UserID: userID,
		Lines:  lines,
		Delivery: domain.DeliveryInfo{
			Phone:          strings.TrimSpace(req.Delivery.Phone),
			AlternatePhone: strings.TrimSpace(req.Delivery.AlternatePhone),
			Address:        strings.TrimSpace(req.Delivery.Address),
		},
	}
}

func toAPIOrder(order domain.Order) *bookstorev1.Order {
	items := make([]bookstorev1.OrderItem, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, bookstorev1.OrderItem{
			ID:         item.ID,
			BookID:     item.BookID,
			Quantity:   item.Quantity,
			UnitPrice:  item.UnitPrice.String(),
			TotalPrice: item.TotalPrice.String(),
		})
	}
	return &bookstorev1.Order{
		ID:             order.ID,
		UserID:         order.UserID,
		TotalAmount:    order.TotalAmount.String(),
		Status:         string(order.Status),
		TrackingStatus: string(order.TrackingStatus),
		OrderDate:      order.OrderDate,
		CompletedDate:  order.CompletedDate,
		Delivery: bookstorev1.DeliveryInfo{
			Phone:          order.Delivery.Phone,
			AlternatePhone: order.Delivery.AlternatePhone,
			Address:        order.Delivery.Address,
		},
		EmailSent: order.EmailSent,
		Items:     items,
		Version:   order.Version,
	}
}

func toAPIOrders(page domain.OrderPage) *bookstorev1.ListOrdersResponse {
	orders := make([]*bookstorev1.Order, 0, len(page.Orders))
	for _, order := range page.Orders {
		orders = append(orders, toAPIOrder(order))
	}
	return &bookstorev1.ListOrdersResponse{
		Orders:   orders,
		Total:    int64(page.Total),
		Page:     int32(page.Page),
		PageSize: int32(page.PageSize),
	}
}

func toAPITimeline(events []domain.TimelineEvent) []bookstorev1.TimelineEvent {
	out := make([]bookstorev1.TimelineEvent, 0, len(events))
	for _, e := range events {
		out = append(out, bookstorev1.TimelineEvent{Type: e.Type, Reason: e.Reason, Occurred: e.Occurred})
	}
	return out
}

func toAPIBook(book domain.Book) *bookstorev1.Book {
	return &bookstorev1.Book{
		ID:            book.ID,
		Title:         book.Title,
		Price:         book.Price.String(),
		StockQuantity: book.StockQuantity,
		SoldCount:     book.SoldCount,
	}
}

// toOrderQuery разбирает фильтр из запроса. Ошибки оборачивают ErrInvalidQuery.
func toOrderQuery(f bookstorev1.OrderFilter) (domain.OrderQuery, error) {
	q := domain.OrderQuery{
		PlacedFrom:       f.PlacedFrom,
		PlacedTo:         f.PlacedTo,
		CustomerContains: strings.TrimSpace(f.CustomerContains),
		OrderIDContains:  strings.TrimSpace(f.OrderIDContains),
		SortBy:           domain.OrderSortField(strings.ToLower(strings.TrimSpace(f.SortBy))),
		SortDirection:    domain.SortDirection(strings.ToLower(strings.TrimSpace(f.SortDirection))),
		Page:             int(f.Page),
		PageSize:         int(f.PageSize),
	}

	for _, raw := range f.Statuses {
		s, err := domain.ParseOrderStatus(strings.TrimSpace(raw))
		if err != nil {
			return domain.OrderQuery{}, fmt.Errorf("%w: status %q", domain.ErrInvalidQuery, raw)
		}
		q.Statuses = append(q.Statuses, s)
	}
	for _, raw := range f.TrackingStatuses {
		s, err := domain.ParseTrackingStatus(strings.TrimSpace(raw))
		if err != nil {
			return domain.OrderQuery{}, fmt.Errorf("%w: tracking status %q", domain.ErrInvalidQuery, raw)
		}
		q.TrackingStatuses = append(q.TrackingStatuses, s)
	}

	var err error
	if q.MinAmount, err = parseAmount("min_amount", f.MinAmount); err != nil {
		return domain.OrderQuery{}, err
	}
	if q.MaxAmount, err = parseAmount("max_amount", f.MaxAmount); err != nil {
		return domain.OrderQuery{}, err
	}
	return q, nil
}

func parseAmount(field, raw string) (*decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %q is not a decimal", domain.ErrInvalidQuery, field, raw)
	}
	return &d, nil
}
