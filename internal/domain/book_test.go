package domain_test

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/bookstore/internal/domain"
)

func TestBookReserveAndRelease(t *testing.T) {
	book := domain.Book{ID: "book-1", Price: decimal.RequireFromString("10.00"), StockQuantity: 5}

	reserved, err := book.Reserved(3)
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if reserved.StockQuantity != 2 || reserved.SoldCount != 3 {
		t.Fatalf("unexpected book after reserve: %+v", reserved)
	}

	_, err = reserved.Reserved(3)
	var stockErr *domain.StockError
	if !errors.As(err, &stockErr) || !errors.Is(err, domain.ErrInsufficientStock) {
		t.Fatalf("expected stock error, got %v", err)
	}
	if stockErr.Requested != 3 || stockErr.Available != 2 {
		t.Fatalf("unexpected stock error details: %+v", stockErr)
	}

	released, err := reserved.Released(3)
	if err != nil {
		t.Fatalf("release: %v", err)
	}
	if released.StockQuantity != 5 || released.SoldCount != 0 {
		t.Fatalf("unexpected book after release: %+v", released)
	}
}

func TestBookReleaseMoreThanSold(t *testing.T) {
	book := domain.Book{ID: "book-1", StockQuantity: 5, SoldCount: 1}
	if _, err := book.Released(2); !errors.Is(err, domain.ErrStockReleaseMismatch) {
		t.Fatalf("expected release mismatch, got %v", err)
	}
}

func TestBookRejectsNonPositiveQuantity(t *testing.T) {
	book := domain.Book{ID: "book-1", StockQuantity: 5}
	if _, err := book.Reserved(0); !errors.Is(err, domain.ErrItemQtyInvalid) {
		t.Fatalf("expected qty error, got %v", err)
	}
}

func TestBookValidate(t *testing.T) {
	tests := []struct {
		name    string
		book    domain.Book
		wantErr error
	}{
		{name: "whole cents", book: domain.Book{ID: "b", Price: decimal.RequireFromString("9.99"), StockQuantity: 1}},
		{name: "trailing zeros", book: domain.Book{ID: "b", Price: decimal.RequireFromString("12.500")}},
		{name: "free book", book: domain.Book{ID: "b", Price: decimal.Zero}},
		{name: "blank id", book: domain.Book{ID: " ", Price: decimal.RequireFromString("1")}, wantErr: domain.ErrBookIDRequired},
		{name: "fraction of a cent", book: domain.Book{ID: "b", Price: decimal.RequireFromString("9.999")}, wantErr: domain.ErrBookPriceInvalid},
		{name: "negative price", book: domain.Book{ID: "b", Price: decimal.RequireFromString("-1.00")}, wantErr: domain.ErrBookPriceInvalid},
		{name: "negative stock", book: domain.Book{ID: "b", Price: decimal.RequireFromString("1"), StockQuantity: -1}, wantErr: domain.ErrBookStockInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.book.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}
