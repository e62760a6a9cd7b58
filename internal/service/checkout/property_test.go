package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"pgregory.net/rapid"

	"github.com/vladislavdragonenkov/bookstore/internal/domain"
	"github.com/vladislavdragonenkov/bookstore/internal/storage/memory"
)

// Остаток плюс проданное по каждой книге не меняется при любой последовательности
// оформлений и отмен, а проданное всегда равно сумме по незаотменённым заказам.
func TestStockIsConservedAcrossPlaceAndCancel(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		ctx := context.Background()
		store := memory.NewStore()
		clock := newTestClock()
		logger := log.New()
		logger.SetLevel(log.PanicLevel)

		var seq atomic.Int64
		svc := NewService(store, store.Orders(), store.Timeline(),
			WithClock(clock.Now),
			WithLogger(logger.WithField("component", "checkout-property")),
			WithIDGenerator(func() string { return fmt.Sprintf("id-%05d", seq.Add(1)) }),
		)

		bookCount := rapid.IntRange(1, 4).Draw(rt, "books")
		initial := make(map[string]int32, bookCount)
		bookIDs := make([]string, 0, bookCount)
		for i := 0; i < bookCount; i++ {
			id := fmt.Sprintf("book-%d", i)
			stock := int32(rapid.IntRange(0, 12).Draw(rt, "stock-"+id))
			initial[id] = stock
			bookIDs = append(bookIDs, id)
			if err := store.Books().Create(ctx, domain.Book{ID: id, Price: decimal.RequireFromString("4.99"), StockQuantity: stock}); err != nil {
				rt.Fatalf("seed book: %v", err)
			}
		}

		var placed []string
		steps := rapid.IntRange(1, 25).Draw(rt, "steps")
		for step := 0; step < steps; step++ {
			if len(placed) > 0 && rapid.Bool().Draw(rt, "cancel") {
				idx := rapid.IntRange(0, len(placed)-1).Draw(rt, "order")
				_, err := svc.CancelOrder(ctx, placed[idx], "user-1")
				if err != nil && !errors.Is(err, domain.ErrOrderAlreadyCancelled) {
					rt.Fatalf("cancel: %v", err)
				}
				continue
			}

			lineCount := rapid.IntRange(1, 3).Draw(rt, "lines")
			lines := make([]OrderLine, 0, lineCount)
			for i := 0; i < lineCount; i++ {
				lines = append(lines, OrderLine{
					BookID:   bookIDs[rapid.IntRange(0, bookCount-1).Draw(rt, "book")],
					Quantity: int32(rapid.IntRange(1, 5).Draw(rt, "qty")),
				})
			}
			order, err := svc.PlaceOrder(ctx, PlaceOrderCommand{UserID: "user-1", Lines: lines})
			switch {
			case err == nil:
				placed = append(placed, order.ID)
			case errors.Is(err, domain.ErrInsufficientStock):
			default:
				rt.Fatalf("place: %v", err)
			}
		}

		sold := make(map[string]int32, bookCount)
		page, err := store.Orders().Search(ctx, domain.OrderQuery{
			Statuses: []domain.OrderStatus{domain.OrderStatusCompleted},
			PageSize: domain.MaxPageSize,
		})
		if err != nil {
			rt.Fatalf("search: %v", err)
		}
		for _, order := range page.Orders {
			for _, item := range order.Items {
				sold[item.BookID] += item.Quantity
			}
		}

		for _, id := range bookIDs {
			book, err := store.Books().Get(ctx, id)
			if err != nil {
				rt.Fatalf("get book: %v", err)
			}
			if book.StockQuantity < 0 || book.SoldCount < 0 {
				rt.Fatalf("%s: negative counters stock=%d sold=%d", id, book.StockQuantity, book.SoldCount)
			}
			if book.StockQuantity+book.SoldCount != initial[id] {
				rt.Fatalf("%s: stock %d + sold %d != initial %d", id, book.StockQuantity, book.SoldCount, initial[id])
			}
			if book.SoldCount != sold[id] {
				rt.Fatalf("%s: sold %d, live orders hold %d", id, book.SoldCount, sold[id])
			}
		}
	})
}
