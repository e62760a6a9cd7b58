package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/bookstore/internal/domain"
)

// catalogEntry описывает строку файла начального каталога.
type catalogEntry struct {
	ID            string          `json:"id"`
	Title         string          `json:"title"`
	Price         decimal.Decimal `json:"price"`
	StockQuantity int32           `json:"stock_quantity"`
}

// seedCatalog заводит книги из JSON-файла. Уже существующие книги не трогает,
// поэтому повторный запуск безопасен.
func seedCatalog(ctx context.Context, books domain.BookRepository, path string, logger *log.Entry) (int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read catalog seed: %w", err)
	}
	var entries []catalogEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return 0, fmt.Errorf("decode catalog seed %s: %w", path, err)
	}

	// Файл проверяется целиком до первой записи, чтобы ошибка не оставила каталог заполненным наполовину.
	seed := make([]domain.Book, 0, len(entries))
	for _, e := range entries {
		book := domain.Book{
			ID:            e.ID,
			Title:         e.Title,
			Price:         e.Price,
			StockQuantity: e.StockQuantity,
		}
		if err := book.Validate(); err != nil {
			return 0, fmt.Errorf("seed book %q: %w", e.ID, err)
		}
		seed = append(seed, book)
	}

	created := 0
	for _, book := range seed {
		err := books.Create(ctx, book)
		switch {
		case err == nil:
			created++
		case errors.Is(err, domain.ErrBookAlreadyExists):
			logger.WithField("book_id", book.ID).Debug("catalog seed: book already exists")
		default:
			return created, fmt.Errorf("seed book %q: %w", book.ID, err)
		}
	}
	return created, nil
}
