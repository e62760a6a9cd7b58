package checkout

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/bookstore/internal/domain"
	"github.com/vladislavdragonenkov/bookstore/internal/metrics"
)

const (
	defaultNotificationTimeout = 10 * time.Second

	notificationConfirmation = "confirmation"
	notificationCancellation = "cancellation"
)

// OrderLine описывает строку корзины с книгой и количеством.
type OrderLine struct {
	BookID   string
	Quantity int32
}

// PlaceOrderCommand описывает оформление заказа от имени пользователя.
type PlaceOrderCommand struct {
	UserID   string
	Lines    []OrderLine
	Delivery domain.DeliveryInfo
}

// Service проводит транзакции оформления, отмены и смены статуса доставки.
type Service struct {
	uow      domain.UnitOfWork
	orders   domain.OrderRepository
	timeline domain.TimelineRepository
	notifier domain.Notifier
	logger   *log.Entry
	metrics  *metrics.CheckoutMetrics

	now                 func() time.Time
	newID               func() string
	window              time.Duration
	notificationTimeout time.Duration

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// Option настраивает Service.
type Option func(*Service)

// WithClock подменяет источник времени.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator подменяет генератор идентификаторов заказов и позиций.
func WithIDGenerator(newID func() string) Option {
	return func(s *Service) {
		if newID != nil {
			s.newID = newID
		}
	}
}

// WithCancellationWindow задаёт окно, в течение которого заказ можно отменить.
func WithCancellationWindow(window time.Duration) Option {
	return func(s *Service) {
		if window > 0 {
			s.window = window
		}
	}
}

// WithNotifier задаёт канал уведомлений клиента.
func WithNotifier(n domain.Notifier) Option {
	return func(s *Service) {
		s.notifier = n
	}
}

// WithNotificationTimeout ограничивает время одной отправки уведомления.
func WithNotificationTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.notificationTimeout = d
		}
	}
}

// WithMetrics подключает метрики; nil отключает их.
func WithMetrics(m *metrics.CheckoutMetrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithLogger задаёт логгер.
func WithLogger(logger *log.Entry) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewService собирает сервис поверх unit of work и read-side репозиториев.
func NewService(uow domain.UnitOfWork, orders domain.OrderRepository, timeline domain.TimelineRepository, opts ...Option) *Service {
	s := &Service{
		uow:                 uow,
		orders:              orders,
		timeline:            timeline,
		logger:              log.New().WithField("component", "checkout"),
		now:                 func() time.Time { return time.Now().UTC() },
		newID:               uuid.NewString,
		window:              domain.DefaultCancellationWindow,
		notificationTimeout: defaultNotificationTimeout,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// CancellationWindow возвращает действующее окно отмены.
func (s *Service) CancellationWindow() time.Duration {
	return s.window
}

// PlaceOrder атомарно резервирует остатки по всем строкам и сохраняет заказ.
// При любой ошибке склад и заказы остаются нетронутыми.
func (s *Service) PlaceOrder(ctx context.Context, cmd PlaceOrderCommand) (domain.Order, error) {
	if err := validatePlaceCommand(cmd); err != nil {
		return domain.Order{}, err
	}

	started := time.Now()
	var placed domain.Order
	err := s.uow.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		order, err := s.placeInTx(ctx, tx, cmd)
		if err != nil {
			return err
		}
		placed = order
		return nil
	})
	if err != nil {
		reason := rejectionReason(err)
		s.metrics.RecordPlacementRejected(reason, time.Since(started))
		entry := s.logger.WithError(err).WithFields(log.Fields{
			"user_id": cmd.UserID,
			"lines":   len(cmd.Lines),
			"reason":  reason,
		})
		if reason == metrics.ReasonInternal {
			entry.Error("place order failed")
		} else {
			entry.Info("place order rejected")
		}
		return domain.Order{}, err
	}

	s.metrics.RecordOrderPlaced(totalUnits(placed.Items), time.Since(started))
	s.logger.WithFields(log.Fields{
		"order_id": placed.ID,
		"user_id":  placed.UserID,
		"total":    placed.TotalAmount.String(),
	}).Info("order placed")

	s.dispatchNotification(notificationConfirmation, placed)
	return placed, nil
}

func (s *Service) placeInTx(ctx context.Context, tx domain.Tx, cmd PlaceOrderCommand) (domain.Order, error) {
	ledger := tx.Inventory()
	locked, err := ledger.LockBooks(ctx, distinctBookIDs(cmd.Lines))
	if err != nil {
		return domain.Order{}, fmt.Errorf("lock books: %w", err)
	}

	now := s.now().UTC().Truncate(time.Microsecond)
	order := domain.Order{
		ID:             s.newID(),
		UserID:         cmd.UserID,
		Status:         domain.OrderStatusCompleted,
		TrackingStatus: domain.TrackingStatusOrderPlaced,
		OrderDate:      now,
		CompletedDate:  &now,
		Delivery:       cmd.Delivery,
		Items:          make([]domain.OrderItem, 0, len(cmd.Lines)),
		UpdatedAt:      now,
	}

	for _, line := range cmd.Lines {
		if _, ok := locked[line.BookID]; !ok {
			return domain.Order{}, &domain.BookNotFoundError{BookID: line.BookID}
		}
		book, err := ledger.Reserve(ctx, line.BookID, line.Quantity)
		if err != nil {
			return domain.Order{}, err
		}
		order.Items = append(order.Items, domain.NewOrderItem(s.newID(), book.ID, line.Quantity, book.Price))
	}
	order.TotalAmount = order.ItemsTotal()

	if errs := order.ValidateInvariants(); len(errs) > 0 {
		return domain.Order{}, errors.Join(errs...)
	}
	if err := tx.Orders().Create(ctx, order); err != nil {
		return domain.Order{}, fmt.Errorf("create order: %w", err)
	}
	if err := s.emit(ctx, tx, order, domain.EventOrderPlaced, domain.TimelineOrderPlaced, "", now); err != nil {
		return domain.Order{}, err
	}
	return order, nil
}

// CancelOrder отменяет заказ владельца в пределах окна отмены и возвращает остатки на склад.
// Чужой заказ неотличим от отсутствующего.
func (s *Service) CancelOrder(ctx context.Context, orderID, userID string) (domain.Order, error) {
	if orderID == "" {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	if userID == "" {
		return domain.Order{}, domain.ErrUserRequired
	}

	started := time.Now()
	var (
		cancelled domain.Order
		released  int
	)
	err := s.uow.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		order, err := tx.Orders().GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if order.UserID != userID {
			return domain.ErrOrderNotFound
		}

		now := s.now().UTC()
		if err := order.Cancel(now, s.window); err != nil {
			return err
		}

		quantities := order.BookQuantities()
		bookIDs := make([]string, 0, len(quantities))
		for id := range quantities {
			bookIDs = append(bookIDs, id)
		}
		sort.Strings(bookIDs)

		ledger := tx.Inventory()
		if _, err := ledger.LockBooks(ctx, bookIDs); err != nil {
			return fmt.Errorf("lock books: %w", err)
		}
		units := 0
		for _, item := range order.Items {
			if _, err := ledger.Release(ctx, item.BookID, item.Quantity); err != nil {
				return fmt.Errorf("release book %s: %w", item.BookID, err)
			}
			units += int(item.Quantity)
		}

		if err := tx.Orders().Update(ctx, order); err != nil {
			return fmt.Errorf("update order: %w", err)
		}
		order.Version++

		if err := s.emit(ctx, tx, order, domain.EventOrderCancelled, domain.TimelineOrderCancelled, "cancelled by customer", now); err != nil {
			return err
		}
		cancelled = order
		released = units
		return nil
	})
	if err != nil {
		result := cancelResult(err)
		s.metrics.RecordCancellation(result, 0, time.Since(started))
		entry := s.logger.WithError(err).WithFields(log.Fields{
			"order_id": orderID,
			"user_id":  userID,
			"result":   result,
		})
		if result == metrics.CancelResultError {
			entry.Error("cancel order failed")
		} else {
			entry.Info("cancel order rejected")
		}
		return domain.Order{}, err
	}

	s.metrics.RecordCancellation(metrics.CancelResultCancelled, released, time.Since(started))
	s.logger.WithFields(log.Fields{
		"order_id": cancelled.ID,
		"user_id":  cancelled.UserID,
		"released": released,
	}).Info("order cancelled")

	s.dispatchNotification(notificationCancellation, cancelled)
	return cancelled, nil
}

// UpdateTrackingStatus выставляет статус доставки; переходы между ними не ограничены.
func (s *Service) UpdateTrackingStatus(ctx context.Context, orderID string, status domain.TrackingStatus) (domain.Order, error) {
	if orderID == "" {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	if !status.Valid() {
		return domain.Order{}, domain.ErrInvalidTrackingStatus
	}

	var updated domain.Order
	err := s.uow.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		order, err := tx.Orders().GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		previous := order.TrackingStatus
		order.TrackingStatus = status
		if err := tx.Orders().Update(ctx, order); err != nil {
			return fmt.Errorf("update order: %w", err)
		}
		order.Version++
		order.UpdatedAt = s.now().UTC()

		reason := fmt.Sprintf("%s -> %s", previous, status)
		if err := s.emit(ctx, tx, order, domain.EventOrderTrackingChanged, domain.TimelineTrackingChanged, reason, order.UpdatedAt); err != nil {
			return err
		}
		updated = order
		return nil
	})
	if err != nil {
		s.logger.WithError(err).WithFields(log.Fields{
			"order_id": orderID,
			"status":   status,
		}).Warn("update tracking status failed")
		return domain.Order{}, err
	}

	s.metrics.RecordTrackingUpdate(string(status))
	s.logger.WithFields(log.Fields{
		"order_id": updated.ID,
		"status":   status,
	}).Info("tracking status updated")
	return updated, nil
}

// Shutdown перестаёт принимать фоновые уведомления и ждёт уже запущенные.
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// dispatchNotification отправляет уведомление вне транзакции; сбой только логируется.
func (s *Service) dispatchNotification(kind string, order domain.Order) {
	if s.notifier == nil {
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.logger.WithField("order_id", order.ID).Warn("notification skipped: service is shut down")
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()

	s.metrics.NotificationStarted()
	go func() {
		defer s.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), s.notificationTimeout)
		defer cancel()

		var err error
		switch kind {
		case notificationConfirmation:
			err = s.notifier.SendOrderConfirmation(ctx, order)
		default:
			err = s.notifier.SendOrderCancellation(ctx, order)
		}
		s.metrics.NotificationFinished(kind, err == nil)

		fields := log.Fields{"order_id": order.ID, "kind": kind}
		if err != nil {
			s.logger.WithError(err).WithFields(fields).Warn("notification failed")
			return
		}
		s.logger.WithFields(fields).Debug("notification sent")

		if kind == notificationConfirmation && s.orders != nil {
			if err := s.orders.MarkEmailSent(ctx, order.ID); err != nil {
				s.logger.WithError(err).WithFields(fields).Warn("mark email sent failed")
			}
		}
		if s.timeline != nil {
			event := domain.TimelineEvent{
				OrderID:  order.ID,
				Type:     domain.TimelineEmailSent,
				Reason:   kind,
				Occurred: s.now().UTC(),
			}
			if err := s.timeline.Append(ctx, event); err != nil {
				s.logger.WithError(err).WithFields(fields).Warn("append timeline event failed")
			}
		}
	}()
}

func validatePlaceCommand(cmd PlaceOrderCommand) error {
	if cmd.UserID == "" {
		return domain.ErrUserRequired
	}
	if len(cmd.Lines) == 0 {
		return domain.ErrItemsRequired
	}
	for _, line := range cmd.Lines {
		if line.BookID == "" {
			return domain.ErrBookIDRequired
		}
		if line.Quantity <= 0 {
			return domain.ErrItemQtyInvalid
		}
	}
	return nil
}

func distinctBookIDs(lines []OrderLine) []string {
	seen := make(map[string]struct{}, len(lines))
	ids := make([]string, 0, len(lines))
	for _, line := range lines {
		if _, ok := seen[line.BookID]; ok {
			continue
		}
		seen[line.BookID] = struct{}{}
		ids = append(ids, line.BookID)
	}
	sort.Strings(ids)
	return ids
}

func totalUnits(items []domain.OrderItem) int {
	total := 0
	for _, item := range items {
		total += int(item.Quantity)
	}
	return total
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrBookNotFound):
		return metrics.ReasonBookNotFound
	case errors.Is(err, domain.ErrInsufficientStock):
		return metrics.ReasonInsufficientStock
	case errors.Is(err, domain.ErrTransactionConflict):
		return metrics.ReasonConflict
	default:
		return metrics.ReasonInternal
	}
}

func cancelResult(err error) string {
	switch {
	case errors.Is(err, domain.ErrOrderNotFound):
		return metrics.CancelResultNotFound
	case errors.Is(err, domain.ErrOrderAlreadyCancelled):
		return metrics.CancelResultAlreadyCancelled
	case errors.Is(err, domain.ErrCancellationWindowExpired):
		return metrics.CancelResultWindowExpired
	default:
		return metrics.CancelResultError
	}
}
