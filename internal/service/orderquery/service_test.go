package orderquery

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/bookstore/internal/domain"
	"github.com/vladislavdragonenkov/bookstore/internal/storage/memory"
)

func seedOrder(t *testing.T, store *memory.Store, id, user string, placed time.Time, amount string, status domain.OrderStatus) {
	t.Helper()
	price := decimal.RequireFromString(amount)
	order := domain.Order{
		ID:             id,
		UserID:         user,
		TotalAmount:    price,
		Status:         status,
		TrackingStatus: domain.TrackingStatusOrderPlaced,
		OrderDate:      placed,
		CompletedDate:  &placed,
		Items:          []domain.OrderItem{domain.NewOrderItem(id+"-item", "book-a", 1, price)},
		UpdatedAt:      placed,
	}
	err := store.WithinTx(context.Background(), func(ctx context.Context, tx domain.Tx) error {
		if err := tx.Orders().Create(ctx, order); err != nil {
			return err
		}
		return tx.Timeline().Append(ctx, domain.TimelineEvent{OrderID: id, Type: domain.TimelineOrderPlaced, Occurred: placed})
	})
	require.NoError(t, err)
}

func newTestService(t *testing.T) (*Service, *memory.Store, time.Time) {
	t.Helper()
	store := memory.NewStore()
	now := time.Date(2024, 5, 17, 12, 0, 0, 0, time.UTC)
	svc := NewService(store.Orders(), store.Books(), store.Timeline(), time.Hour, nil)
	svc.now = func() time.Time { return now }
	return svc, store, now
}

func TestListCustomerOrdersForcesScope(t *testing.T) {
	svc, store, now := newTestService(t)
	for i := 0; i < 3; i++ {
		seedOrder(t, store, fmt.Sprintf("a-%d", i), "alice", now.Add(-time.Duration(i)*time.Minute), "10", domain.OrderStatusCompleted)
	}
	seedOrder(t, store, "b-0", "bob", now, "10", domain.OrderStatusCompleted)

	page, err := svc.ListCustomerOrders(context.Background(), "alice", domain.OrderQuery{UserID: "bob"})
	require.NoError(t, err)
	require.Equal(t, 3, page.Total)
	require.Equal(t, "a-0", page.Orders[0].ID)
	for _, o := range page.Orders {
		require.Equal(t, "alice", o.UserID)
	}

	_, err = svc.ListCustomerOrders(context.Background(), "", domain.OrderQuery{})
	require.ErrorIs(t, err, domain.ErrUserRequired)
}

func TestSearchOrdersFiltersAndSorts(t *testing.T) {
	svc, store, now := newTestService(t)
	seedOrder(t, store, "o-1", "alice", now.Add(-3*time.Hour), "5.00", domain.OrderStatusCompleted)
	seedOrder(t, store, "o-2", "bob", now.Add(-2*time.Hour), "50.00", domain.OrderStatusCancelled)
	seedOrder(t, store, "o-3", "carol", now.Add(-time.Hour), "25.00", domain.OrderStatusCompleted)

	minAmount := decimal.RequireFromString("10")
	page, err := svc.SearchOrders(context.Background(), domain.OrderQuery{
		MinAmount:     &minAmount,
		SortBy:        domain.SortByAmount,
		SortDirection: domain.SortAsc,
	})
	require.NoError(t, err)
	require.Equal(t, 2, page.Total)
	require.Equal(t, []string{"o-3", "o-2"}, []string{page.Orders[0].ID, page.Orders[1].ID})

	page, err = svc.SearchOrders(context.Background(), domain.OrderQuery{
		Statuses: []domain.OrderStatus{domain.OrderStatusCompleted},
	})
	require.NoError(t, err)
	require.Equal(t, 2, page.Total)
	require.Equal(t, "o-3", page.Orders[0].ID)

	from := now.Add(-time.Minute)
	to := now.Add(-2 * time.Hour)
	_, err = svc.SearchOrders(context.Background(), domain.OrderQuery{PlacedFrom: &from, PlacedTo: &to})
	require.ErrorIs(t, err, domain.ErrInvalidQuery)
}

func TestGetOrderVisibility(t *testing.T) {
	svc, store, now := newTestService(t)
	seedOrder(t, store, "o-1", "alice", now.Add(-30*time.Minute), "10", domain.OrderStatusCompleted)
	ctx := context.Background()

	details, err := svc.GetOrder(ctx, "o-1", Viewer{UserID: "alice"})
	require.NoError(t, err)
	require.True(t, details.Cancellable)
	require.True(t, details.CancellationDeadline.Equal(now.Add(30*time.Minute)))
	require.Len(t, details.Timeline, 1)

	_, err = svc.GetOrder(ctx, "o-1", Viewer{UserID: "bob"})
	require.ErrorIs(t, err, domain.ErrOrderNotFound)

	details, err = svc.GetOrder(ctx, "o-1", Viewer{UserID: "admin-1", Admin: true})
	require.NoError(t, err)
	require.Equal(t, "alice", details.Order.UserID)

	_, err = svc.GetOrder(ctx, "missing", Viewer{Admin: true})
	require.ErrorIs(t, err, domain.ErrOrderNotFound)
}

func TestGetOrderPastWindowIsNotCancellable(t *testing.T) {
	svc, store, now := newTestService(t)
	seedOrder(t, store, "o-1", "alice", now.Add(-2*time.Hour), "10", domain.OrderStatusCompleted)

	details, err := svc.GetOrder(context.Background(), "o-1", Viewer{UserID: "alice"})
	require.NoError(t, err)
	require.False(t, details.Cancellable)
}

func TestGetBook(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	require.NoError(t, store.Books().Create(ctx, domain.Book{ID: "book-a", Title: "Dune", Price: decimal.RequireFromString("9.99"), StockQuantity: 3}))

	book, err := svc.GetBook(ctx, "book-a")
	require.NoError(t, err)
	require.Equal(t, "Dune", book.Title)

	_, err = svc.GetBook(ctx, "missing")
	require.ErrorIs(t, err, domain.ErrBookNotFound)

	_, err = svc.GetBook(ctx, "")
	require.ErrorIs(t, err, domain.ErrBookIDRequired)
}
