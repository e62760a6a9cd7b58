package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Book описывает единицу складского учёта, то есть цену и остатки одной книги.
type Book struct {
	ID    string
	Title string
	// Текущая цена; в заказ попадает её снимок на момент резерва.
	Price decimal.Decimal
	// Сколько экземпляров доступно для продажи.
	StockQuantity int32
	// Сколько экземпляров продано по незаотменённым заказам.
	SoldCount int32
	CreatedAt time.Time
	UpdatedAt time.Time
}

// PriceScale задаёт, сколько знаков после запятой хранится в цене книги.
const PriceScale = 2

// Validate проверяет книгу перед заведением в каталог.
// Цена с лишними знаками отклоняется, а не округляется.
func (b Book) Validate() error {
	if strings.TrimSpace(b.ID) == "" {
		return ErrBookIDRequired
	}
	if b.Price.IsNegative() || !b.Price.Equal(b.Price.Round(PriceScale)) {
		return fmt.Errorf("book %s price %s: %w", b.ID, b.Price, ErrBookPriceInvalid)
	}
	if b.StockQuantity < 0 || b.SoldCount < 0 {
		return fmt.Errorf("book %s: %w", b.ID, ErrBookStockInvalid)
	}
	return nil
}

// Reserved возвращает копию книги после списания qty экземпляров.
func (b Book) Reserved(qty int32) (Book, error) {
	if qty <= 0 {
		return Book{}, ErrItemQtyInvalid
	}
	if b.StockQuantity < qty {
		return Book{}, &StockError{BookID: b.ID, Requested: qty, Available: b.StockQuantity}
	}
	b.StockQuantity -= qty
	b.SoldCount += qty
	return b, nil
}

// Released возвращает копию книги после возврата qty экземпляров на склад.
// Возврат больше проданного считается ошибкой вызывающего кода.
func (b Book) Released(qty int32) (Book, error) {
	if qty <= 0 {
		return Book{}, ErrItemQtyInvalid
	}
	if b.SoldCount < qty {
		return Book{}, ErrStockReleaseMismatch
	}
	b.StockQuantity += qty
	b.SoldCount -= qty
	return b, nil
}
