package memory

import (
	"context"
	"slices"
	"sort"
	"strings"

	"github.com/vladislavdragonenkov/bookstore/internal/domain"
)

// orderRepositoryInMemory читает заказы из Store.
type orderRepositoryInMemory struct {
	store *Store
}

// Orders возвращает read-side репозиторий заказов.
func (s *Store) Orders() domain.OrderRepository {
	return &orderRepositoryInMemory{store: s}
}

// Get возвращает заказ или ErrOrderNotFound, если его нет.
func (r *orderRepositoryInMemory) Get(_ context.Context, id string) (domain.Order, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	order, ok := r.store.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return cloneOrder(order), nil
}

// Search фильтрует, сортирует и режет на страницы все заказы хранилища.
func (r *orderRepositoryInMemory) Search(_ context.Context, query domain.OrderQuery) (domain.OrderPage, error) {
	q, err := query.Normalize()
	if err != nil {
		return domain.OrderPage{}, err
	}

	r.store.mu.RLock()
	matched := make([]domain.Order, 0, len(r.store.orders))
	for _, order := range r.store.orders {
		if matchesQuery(order, q) {
			matched = append(matched, cloneOrder(order))
		}
	}
	r.store.mu.RUnlock()

	sortOrders(matched, q.SortBy, q.SortDirection)

	page := domain.OrderPage{Total: len(matched), Page: q.Page, PageSize: q.PageSize}
	start := q.Offset()
	if start >= len(matched) {
		page.Orders = []domain.Order{}
		return page, nil
	}
	end := start + q.PageSize
	if end > len(matched) {
		end = len(matched)
	}
	page.Orders = matched[start:end]
	return page, nil
}

// MarkEmailSent выставляет флаг отправленного уведомления.
func (r *orderRepositoryInMemory) MarkEmailSent(_ context.Context, id string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	order, ok := r.store.orders[id]
	if !ok {
		return domain.ErrOrderNotFound
	}
	order.EmailSent = true
	r.store.orders[id] = order
	return nil
}

// txOrders пишет заказы внутри транзакции.
type txOrders memoryTx

func (w *txOrders) Create(_ context.Context, order domain.Order) error {
	if _, exists := w.store.orders[order.ID]; exists {
		return domain.ErrOrderVersionConflict
	}
	if order.UpdatedAt.IsZero() {
		order.UpdatedAt = w.store.now()
	}
	w.store.orders[order.ID] = cloneOrder(order)
	(*memoryTx)(w).onRollback(func() { delete(w.store.orders, order.ID) })
	return nil
}

// GetForUpdate под глобальной блокировкой эквивалентен обычному чтению.
func (w *txOrders) GetForUpdate(_ context.Context, id string) (domain.Order, error) {
	order, ok := w.store.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return cloneOrder(order), nil
}

// Update перезаписывает статусы заказа, проверяя версию (optimistic locking).
func (w *txOrders) Update(_ context.Context, order domain.Order) error {
	current, ok := w.store.orders[order.ID]
	if !ok {
		return domain.ErrOrderNotFound
	}
	if current.Version != order.Version {
		return domain.ErrOrderVersionConflict
	}

	next := cloneOrder(current)
	next.Status = order.Status
	next.TrackingStatus = order.TrackingStatus
	next.Version++
	next.UpdatedAt = w.store.now()
	w.store.orders[order.ID] = next
	(*memoryTx)(w).onRollback(func() { w.store.orders[order.ID] = current })
	return nil
}

func matchesQuery(order domain.Order, q domain.OrderQuery) bool {
	if q.UserID != "" && order.UserID != q.UserID {
		return false
	}
	if len(q.Statuses) > 0 && !slices.Contains(q.Statuses, order.Status) {
		return false
	}
	if len(q.TrackingStatuses) > 0 && !slices.Contains(q.TrackingStatuses, order.TrackingStatus) {
		return false
	}
	if q.PlacedFrom != nil && order.OrderDate.Before(*q.PlacedFrom) {
		return false
	}
	if q.PlacedTo != nil && order.OrderDate.After(*q.PlacedTo) {
		return false
	}
	if q.CustomerContains != "" && !containsFold(order.UserID, q.CustomerContains) {
		return false
	}
	if q.OrderIDContains != "" && !containsFold(order.ID, q.OrderIDContains) {
		return false
	}
	if q.MinAmount != nil && order.TotalAmount.LessThan(*q.MinAmount) {
		return false
	}
	if q.MaxAmount != nil && order.TotalAmount.GreaterThan(*q.MaxAmount) {
		return false
	}
	return true
}

// sortOrders сортирует по полю и направлению, при равенстве по ID в том же направлении.
func sortOrders(orders []domain.Order, by domain.OrderSortField, dir domain.SortDirection) {
	cmp := func(a, b domain.Order) int {
		switch by {
		case domain.SortByAmount:
			return a.TotalAmount.Cmp(b.TotalAmount)
		case domain.SortByCustomer:
			return strings.Compare(a.UserID, b.UserID)
		case domain.SortByStatus:
			return strings.Compare(string(a.Status), string(b.Status))
		default:
			return a.OrderDate.Compare(b.OrderDate)
		}
	}

	sort.SliceStable(orders, func(i, j int) bool {
		c := cmp(orders[i], orders[j])
		if c == 0 {
			c = strings.Compare(orders[i].ID, orders[j].ID)
		}
		if dir == domain.SortDesc {
			return c > 0
		}
		return c < 0
	})
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

func cloneOrder(src domain.Order) domain.Order {
	dst := src
	dst.Items = append([]domain.OrderItem(nil), src.Items...)
	if src.CompletedDate != nil {
		completed := *src.CompletedDate
		dst.CompletedDate = &completed
	}
	return dst
}

var (
	_ domain.OrderRepository = (*orderRepositoryInMemory)(nil)
	_ domain.OrderWriter     = (*txOrders)(nil)
)
