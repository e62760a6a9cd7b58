package orderquery

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/bookstore/internal/domain"
)

// Viewer определяет, от чьего имени читается заказ.
type Viewer struct {
	UserID string
	Admin  bool
}

// OrderDetails объединяет заказ, его историю и сведения об отмене.
type OrderDetails struct {
	Order                domain.Order
	Timeline             []domain.TimelineEvent
	CancellationDeadline time.Time
	Cancellable          bool
}

// Service читает заказы и каталог. Ничего не изменяет.
type Service struct {
	orders   domain.OrderRepository
	books    domain.BookRepository
	timeline domain.TimelineRepository
	window   time.Duration
	now      func() time.Time
	logger   *log.Entry
}

// NewService создаёт сервис чтения; window задаёт окно отмены для расчёта дедлайна.
func NewService(orders domain.OrderRepository, books domain.BookRepository, timeline domain.TimelineRepository, window time.Duration, logger *log.Entry) *Service {
	if window <= 0 {
		window = domain.DefaultCancellationWindow
	}
	if logger == nil {
		logger = log.WithField("component", "order-query")
	}
	return &Service{
		orders:   orders,
		books:    books,
		timeline: timeline,
		window:   window,
		now:      func() time.Time { return time.Now().UTC() },
		logger:   logger,
	}
}

// ListCustomerOrders возвращает заказы пользователя; фильтр по пользователю из запроса игнорируется.
func (s *Service) ListCustomerOrders(ctx context.Context, userID string, query domain.OrderQuery) (domain.OrderPage, error) {
	if userID == "" {
		return domain.OrderPage{}, domain.ErrUserRequired
	}
	query.UserID = userID
	query.CustomerContains = ""
	return s.search(ctx, query)
}

// SearchOrders ищет по всем заказам от имени администратора.
func (s *Service) SearchOrders(ctx context.Context, query domain.OrderQuery) (domain.OrderPage, error) {
	return s.search(ctx, query)
}

func (s *Service) search(ctx context.Context, query domain.OrderQuery) (domain.OrderPage, error) {
	normalized, err := query.Normalize()
	if err != nil {
		return domain.OrderPage{}, err
	}
	page, err := s.orders.Search(ctx, normalized)
	if err != nil {
		return domain.OrderPage{}, fmt.Errorf("search orders: %w", err)
	}
	return page, nil
}

// GetOrder возвращает заказ с историей. Покупатель видит только свои заказы;
// чужой заказ для него неотличим от отсутствующего.
func (s *Service) GetOrder(ctx context.Context, orderID string, viewer Viewer) (OrderDetails, error) {
	if orderID == "" {
		return OrderDetails{}, domain.ErrOrderNotFound
	}
	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return OrderDetails{}, err
	}
	if !viewer.Admin && order.UserID != viewer.UserID {
		return OrderDetails{}, domain.ErrOrderNotFound
	}

	details := OrderDetails{
		Order:                order,
		CancellationDeadline: order.CancellationDeadline(s.window),
		Cancellable:          order.CheckCancellable(s.now(), s.window) == nil,
	}
	if s.timeline != nil {
		events, err := s.timeline.List(ctx, orderID)
		if err != nil {
			s.logger.WithError(err).WithField("order_id", orderID).Warn("load order timeline failed")
		} else {
			details.Timeline = events
		}
	}
	return details, nil
}

// GetBook возвращает книгу с текущими ценой и остатком.
func (s *Service) GetBook(ctx context.Context, bookID string) (domain.Book, error) {
	if bookID == "" {
		return domain.Book{}, domain.ErrBookIDRequired
	}
	return s.books.Get(ctx, bookID)
}
