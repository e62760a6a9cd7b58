// Package grpcapi реализует BookstoreService поверх сервисов оформления и чтения заказов.
// Слой тонкий: проверка входа, идентификация, идемпотентность и перевод ошибок в коды gRPC.
package grpcapi

import (
	"context"
	"strings"

	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	bookstorev1 "github.com/vladislavdragonenkov/bookstore/api/bookstore/v1"
	"github.com/vladislavdragonenkov/bookstore/internal/domain"
	"github.com/vladislavdragonenkov/bookstore/internal/service/checkout"
	"github.com/vladislavdragonenkov/bookstore/internal/service/idempotency"
	"github.com/vladislavdragonenkov/bookstore/internal/service/orderquery"
)

// Checkout описывает операции записи, которые нужны API.
type Checkout interface {
	PlaceOrder(ctx context.Context, cmd checkout.PlaceOrderCommand) (domain.Order, error)
	CancelOrder(ctx context.Context, orderID, userID string) (domain.Order, error)
	UpdateTrackingStatus(ctx context.Context, orderID string, status domain.TrackingStatus) (domain.Order, error)
}

// Queries описывает операции чтения, которые нужны API.
type Queries interface {
	GetOrder(ctx context.Context, orderID string, viewer orderquery.Viewer) (orderquery.OrderDetails, error)
	ListCustomerOrders(ctx context.Context, userID string, query domain.OrderQuery) (domain.OrderPage, error)
	SearchOrders(ctx context.Context, query domain.OrderQuery) (domain.OrderPage, error)
	GetBook(ctx context.Context, bookID string) (domain.Book, error)
}

// Server реализует bookstorev1.BookstoreServiceServer.
type Server struct {
	bookstorev1.UnimplementedBookstoreServiceServer

	checkout Checkout
	queries  Queries
	guard    *idempotency.Guard
	logger   *log.Entry
}

// Option настраивает Server.
type Option func(*Server)

// WithIdempotency включает обработку заголовка idempotency-key для изменяющих вызовов.
func WithIdempotency(guard *idempotency.Guard) Option {
	return func(s *Server) {
		s.guard = guard
	}
}

// WithLogger задаёт logger.
func WithLogger(logger *log.Entry) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewServer собирает gRPC-обработчик.
func NewServer(checkout Checkout, queries Queries, opts ...Option) *Server {
	s := &Server{
		checkout: checkout,
		queries:  queries,
		logger:   log.WithField("component", "grpc-api"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Server) PlaceOrder(ctx context.Context, req *bookstorev1.PlaceOrderRequest) (*bookstorev1.PlaceOrderResponse, error) {
	c, err := callerFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if err := validatePlaceOrder(req); err != nil {
		return nil, err
	}

	return withIdempotency(ctx, s, bookstorev1.MethodPlaceOrder, c.UserID, req,
		func(ctx context.Context) (*bookstorev1.PlaceOrderResponse, error) {
			order, err := s.checkout.PlaceOrder(ctx, toPlaceCommand(c.UserID, req))
			if err != nil {
				return nil, s.fail(err, "place order", log.Fields{"user_id": c.UserID})
			}
			return &bookstorev1.PlaceOrderResponse{Order: toAPIOrder(order)}, nil
		})
}

func (s *Server) CancelOrder(ctx context.Context, req *bookstorev1.CancelOrderRequest) (*bookstorev1.CancelOrderResponse, error) {
	c, err := callerFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, invalidArgument("request is required")
	}
	if err := requireOrderID(req.OrderID); err != nil {
		return nil, err
	}
	orderID := strings.TrimSpace(req.OrderID)

	return withIdempotency(ctx, s, bookstorev1.MethodCancelOrder, c.UserID, req,
		func(ctx context.Context) (*bookstorev1.CancelOrderResponse, error) {
			order, err := s.checkout.CancelOrder(ctx, orderID, c.UserID)
			if err != nil {
				return nil, s.fail(err, "cancel order", log.Fields{"order_id": orderID, "user_id": c.UserID})
			}
			return &bookstorev1.CancelOrderResponse{Order: toAPIOrder(order)}, nil
		})
}

func (s *Server) GetOrder(ctx context.Context, req *bookstorev1.GetOrderRequest) (*bookstorev1.GetOrderResponse, error) {
	c, err := callerFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, invalidArgument("request is required")
	}
	if err := requireOrderID(req.OrderID); err != nil {
		return nil, err
	}

	orderID := strings.TrimSpace(req.OrderID)
	details, err := s.queries.GetOrder(ctx, orderID, orderquery.Viewer{UserID: c.UserID, Admin: c.Admin})
	if err != nil {
		return nil, s.fail(err, "get order", log.Fields{"order_id": orderID})
	}
	return &bookstorev1.GetOrderResponse{
		Order:                toAPIOrder(details.Order),
		Timeline:             toAPITimeline(details.Timeline),
		Cancellable:          details.Cancellable,
		CancellationDeadline: details.CancellationDeadline,
	}, nil
}

func (s *Server) ListMyOrders(ctx context.Context, req *bookstorev1.ListMyOrdersRequest) (*bookstorev1.ListOrdersResponse, error) {
	c, err := callerFromContext(ctx)
	if err != nil {
		return nil, err
	}
	var filter bookstorev1.OrderFilter
	if req != nil {
		filter = req.Filter
	}
	query, err := toOrderQuery(filter)
	if err != nil {
		return nil, toStatus(err)
	}

	page, err := s.queries.ListCustomerOrders(ctx, c.UserID, query)
	if err != nil {
		return nil, s.fail(err, "list customer orders", log.Fields{"user_id": c.UserID})
	}
	return toAPIOrders(page), nil
}

func (s *Server) SearchOrders(ctx context.Context, req *bookstorev1.SearchOrdersRequest) (*bookstorev1.ListOrdersResponse, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return nil, err
	}
	var filter bookstorev1.OrderFilter
	if req != nil {
		filter = req.Filter
	}
	query, err := toOrderQuery(filter)
	if err != nil {
		return nil, toStatus(err)
	}

	page, err := s.queries.SearchOrders(ctx, query)
	if err != nil {
		return nil, s.fail(err, "search orders", nil)
	}
	return toAPIOrders(page), nil
}

func (s *Server) UpdateTrackingStatus(ctx context.Context, req *bookstorev1.UpdateTrackingStatusRequest) (*bookstorev1.UpdateTrackingStatusResponse, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return nil, err
	}
	if req == nil {
		return nil, invalidArgument("request is required")
	}
	if err := requireOrderID(req.OrderID); err != nil {
		return nil, err
	}
	tracking, err := domain.ParseTrackingStatus(strings.TrimSpace(req.TrackingStatus))
	if err != nil {
		return nil, invalidArgument("tracking_status is invalid")
	}

	orderID := strings.TrimSpace(req.OrderID)
	order, err := s.checkout.UpdateTrackingStatus(ctx, orderID, tracking)
	if err != nil {
		return nil, s.fail(err, "update tracking status", log.Fields{"order_id": orderID})
	}
	return &bookstorev1.UpdateTrackingStatusResponse{Order: toAPIOrder(order)}, nil
}

func (s *Server) GetBook(ctx context.Context, req *bookstorev1.GetBookRequest) (*bookstorev1.GetBookResponse, error) {
	if req == nil || strings.TrimSpace(req.BookID) == "" {
		return nil, invalidArgument("book_id is required")
	}
	book, err := s.queries.GetBook(ctx, strings.TrimSpace(req.BookID))
	if err != nil {
		return nil, s.fail(err, "get book", log.Fields{"book_id": req.BookID})
	}
	return &bookstorev1.GetBookResponse{Book: toAPIBook(book)}, nil
}

// fail логирует непредвиденные ошибки и переводит любую ошибку в статус.
// Бизнес-отказы уже учтены в метриках сервиса и пишутся только на debug.
func (s *Server) fail(err error, op string, fields log.Fields) error {
	st := toStatus(err)
	entry := s.logger.WithError(err).WithField("op", op)
	if fields != nil {
		entry = entry.WithFields(fields)
	}
	if domain.IsBusinessRejection(err) {
		entry.Debug("request rejected")
	} else if status.Code(st) == codes.Internal {
		entry.Error("request failed")
	} else {
		entry.Info("request failed")
	}
	return st
}

var _ bookstorev1.BookstoreServiceServer = (*Server)(nil)
