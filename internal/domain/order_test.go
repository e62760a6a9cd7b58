package domain_test

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/bookstore/internal/domain"
)

// helper для создания базового заказа с двумя позициями.
func makeOrder(placedAt time.Time) domain.Order {
	price := decimal.RequireFromString("10.00")
	items := []domain.OrderItem{
		domain.NewOrderItem("item-1", "book-1", 3, price),
		domain.NewOrderItem("item-2", "book-2", 1, decimal.RequireFromString("4.99")),
	}
	order := domain.Order{
		ID:             "order-1",
		UserID:         "user-1",
		Status:         domain.OrderStatusCompleted,
		TrackingStatus: domain.TrackingStatusOrderPlaced,
		OrderDate:      placedAt,
		CompletedDate:  &placedAt,
		Items:          items,
	}
	order.TotalAmount = order.ItemsTotal()
	return order
}

func TestOrderValidateInvariants_Ok(t *testing.T) {
	order := makeOrder(time.Now().UTC())
	if errs := order.ValidateInvariants(); len(errs) != 0 {
		t.Fatalf("expected no validation errors, got %v", errs)
	}
	if !order.TotalAmount.Equal(decimal.RequireFromString("34.99")) {
		t.Fatalf("unexpected total %s", order.TotalAmount)
	}
}

func TestOrderValidateInvariants_Errors(t *testing.T) {
	cases := []struct {
		name string
		mut  func(o *domain.Order)
		want error
	}{
		{name: "no user", mut: func(o *domain.Order) { o.UserID = "" }, want: domain.ErrUserRequired},
		{name: "no items", mut: func(o *domain.Order) { o.Items = nil }, want: domain.ErrItemsRequired},
		{name: "qty invalid", mut: func(o *domain.Order) { o.Items[0].Quantity = 0 }, want: domain.ErrItemQtyInvalid},
		{
			name: "price invalid",
			mut:  func(o *domain.Order) { o.Items[0].UnitPrice = decimal.NewFromInt(-1) },
			want: domain.ErrItemPriceInvalid,
		},
		{
			name: "item total mismatch",
			mut:  func(o *domain.Order) { o.Items[1].TotalPrice = decimal.NewFromInt(5) },
			want: domain.ErrItemTotalMismatch,
		},
		{
			name: "amount mismatch",
			mut:  func(o *domain.Order) { o.TotalAmount = decimal.NewFromInt(999) },
			want: domain.ErrAmountMismatch,
		},
		{name: "bad status", mut: func(o *domain.Order) { o.Status = "paid" }, want: domain.ErrInvalidOrderStatus},
		{
			name: "bad tracking",
			mut:  func(o *domain.Order) { o.TrackingStatus = "lost" },
			want: domain.ErrInvalidTrackingStatus,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			order := makeOrder(time.Now().UTC())
			order.Items = append([]domain.OrderItem(nil), order.Items...)
			tc.mut(&order)

			errs := order.ValidateInvariants()
			found := false
			for _, err := range errs {
				if errors.Is(err, tc.want) {
					found = true
				}
			}
			if !found {
				t.Fatalf("expected %v among %v", tc.want, errs)
			}
		})
	}
}

func TestOrderStatusTransitions(t *testing.T) {
	tests := []struct {
		from, to domain.OrderStatus
		want     bool
	}{
		{domain.OrderStatusPending, domain.OrderStatusCompleted, true},
		{domain.OrderStatusCompleted, domain.OrderStatusCancelled, true},
		{domain.OrderStatusPending, domain.OrderStatusCancelled, false},
		{domain.OrderStatusCancelled, domain.OrderStatusCompleted, false},
		{domain.OrderStatusCancelled, domain.OrderStatusCancelled, false},
		{domain.OrderStatusCompleted, domain.OrderStatusPending, false},
	}
	for _, tt := range tests {
		if got := tt.from.CanTransitionTo(tt.to); got != tt.want {
			t.Errorf("%s -> %s: got %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestOrderCancellationWindowBoundary(t *testing.T) {
	placed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	window := domain.DefaultCancellationWindow

	tests := []struct {
		name    string
		elapsed time.Duration
		wantErr error
	}{
		{name: "just placed", elapsed: 0},
		{name: "59m59s", elapsed: 59*time.Minute + 59*time.Second},
		{name: "exactly one hour", elapsed: time.Hour},
		{name: "1h00m01s", elapsed: time.Hour + time.Second, wantErr: domain.ErrCancellationWindowExpired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			order := makeOrder(placed)
			err := order.Cancel(placed.Add(tt.elapsed), window)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if tt.wantErr != nil && order.Status != domain.OrderStatusCompleted {
				t.Fatalf("failed cancellation must not change status, got %s", order.Status)
			}
			if tt.wantErr == nil && order.Status != domain.OrderStatusCancelled {
				t.Fatalf("expected cancelled, got %s", order.Status)
			}
		})
	}
}

func TestOrderCancelTwice(t *testing.T) {
	placed := time.Now().UTC()
	order := makeOrder(placed)
	if err := order.Cancel(placed.Add(time.Minute), time.Hour); err != nil {
		t.Fatalf("first cancel: %v", err)
	}
	// Повторная отмена сообщает AlreadyCancelled даже за пределами окна.
	if err := order.Cancel(placed.Add(2*time.Hour), time.Hour); !errors.Is(err, domain.ErrOrderAlreadyCancelled) {
		t.Fatalf("expected already cancelled, got %v", err)
	}
}

func TestOrderBookQuantitiesCompoundsDuplicates(t *testing.T) {
	order := makeOrder(time.Now().UTC())
	order.Items = append(order.Items, domain.NewOrderItem("item-3", "book-1", 2, decimal.RequireFromString("10.00")))

	got := order.BookQuantities()
	if got["book-1"] != 5 || got["book-2"] != 1 {
		t.Fatalf("unexpected quantities %v", got)
	}
}

func TestParseTrackingStatus(t *testing.T) {
	for _, raw := range []string{"order_placed", "processing", "in_warehouse", "on_the_way", "out_for_delivery", "delivered"} {
		if _, err := domain.ParseTrackingStatus(raw); err != nil {
			t.Fatalf("%s: %v", raw, err)
		}
	}
	if _, err := domain.ParseTrackingStatus("OrderPlaced"); !errors.Is(err, domain.ErrInvalidTrackingStatus) {
		t.Fatalf("expected invalid tracking status, got %v", err)
	}
}
