package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vladislavdragonenkov/bookstore/internal/domain"
)

const orderColumns = `id, user_id, total_amount, status, tracking_status, order_date, completed_date,
	phone, alternate_phone, address, email_sent, version, updated_at`

type orderRepository struct {
	q querier
}

// NewOrderRepository создаёт PostgreSQL-реализацию read-side OrderRepository.
func NewOrderRepository(store *Store) domain.OrderRepository {
	return &orderRepository{q: store.DB()}
}

func (r *orderRepository) Get(ctx context.Context, id string) (domain.Order, error) {
	ctx, cancel := withOpTimeout(ctx)
	defer cancel()

	return loadOrder(ctx, r.q, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
}

func (r *orderRepository) MarkEmailSent(ctx context.Context, id string) error {
	ctx, cancel := withOpTimeout(ctx)
	defer cancel()

	res, err := r.q.ExecContext(ctx, `UPDATE orders SET email_sent = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark email sent: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrOrderNotFound
	}
	return nil
}

// orderWriter пишет заказы внутри транзакции UnitOfWork.
type orderWriter struct {
	q querier
}

func (w *orderWriter) Create(ctx context.Context, order domain.Order) error {
	_, err := w.q.ExecContext(ctx, `
		INSERT INTO orders (
			id, user_id, total_amount, status, tracking_status, order_date, completed_date,
			phone, alternate_phone, address, email_sent, version, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
	`,
		order.ID, order.UserID, order.TotalAmount, string(order.Status), string(order.TrackingStatus),
		order.OrderDate, order.CompletedDate, order.Delivery.Phone, order.Delivery.AlternatePhone,
		order.Delivery.Address, order.EmailSent, order.Version, order.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrOrderVersionConflict
		}
		return fmt.Errorf("insert order: %w", err)
	}

	for i, item := range order.Items {
		_, err := w.q.ExecContext(ctx, `
			INSERT INTO order_items (id, order_id, line_no, book_id, quantity, unit_price, total_price)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
		`, item.ID, order.ID, i+1, item.BookID, item.Quantity, item.UnitPrice, item.TotalPrice)
		if err != nil {
			if isForeignKeyViolation(err) {
				return &domain.BookNotFoundError{BookID: item.BookID}
			}
			return fmt.Errorf("insert order item: %w", err)
		}
	}
	return nil
}

// GetForUpdate блокирует строку заказа до конца транзакции.
func (w *orderWriter) GetForUpdate(ctx context.Context, id string) (domain.Order, error) {
	return loadOrder(ctx, w.q, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id)
}

// Update меняет статусы заказа с проверкой версии.
func (w *orderWriter) Update(ctx context.Context, order domain.Order) error {
	res, err := w.q.ExecContext(ctx, `
		UPDATE orders
		SET status = $1,
		    tracking_status = $2,
		    version = version + 1,
		    updated_at = NOW()
		WHERE id = $3
		  AND version = $4
	`, string(order.Status), string(order.TrackingStatus), order.ID, order.Version)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected > 0 {
		return nil
	}

	var exists bool
	if err := w.q.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, order.ID).Scan(&exists); err != nil {
		return fmt.Errorf("check order exists: %w", err)
	}
	if !exists {
		return domain.ErrOrderNotFound
	}
	return domain.ErrOrderVersionConflict
}

func loadOrder(ctx context.Context, q querier, query string, args ...any) (domain.Order, error) {
	order, err := scanOrder(q.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	if err != nil {
		return domain.Order{}, fmt.Errorf("select order: %w", err)
	}

	items, err := loadItems(ctx, q, []string{order.ID})
	if err != nil {
		return domain.Order{}, err
	}
	order.Items = items[order.ID]
	return order, nil
}

// loadItems одним запросом читает позиции нескольких заказов в порядке строк заказа.
func loadItems(ctx context.Context, q querier, orderIDs []string) (map[string][]domain.OrderItem, error) {
	out := make(map[string][]domain.OrderItem, len(orderIDs))
	if len(orderIDs) == 0 {
		return out, nil
	}

	rows, err := q.QueryContext(ctx, `
		SELECT order_id, id, book_id, quantity, unit_price, total_price
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY order_id, line_no
	`, orderIDs)
	if err != nil {
		return nil, fmt.Errorf("load order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			orderID string
			item    domain.OrderItem
		)
		if err := rows.Scan(&orderID, &item.ID, &item.BookID, &item.Quantity, &item.UnitPrice, &item.TotalPrice); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		out[orderID] = append(out[orderID], item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order items: %w", err)
	}
	return out, nil
}

func scanOrder(row rowScanner) (domain.Order, error) {
	var (
		order     domain.Order
		status    string
		tracking  string
		completed sql.NullTime
	)
	err := row.Scan(
		&order.ID, &order.UserID, &order.TotalAmount, &status, &tracking,
		&order.OrderDate, &completed, &order.Delivery.Phone, &order.Delivery.AlternatePhone,
		&order.Delivery.Address, &order.EmailSent, &order.Version, &order.UpdatedAt,
	)
	if err != nil {
		return domain.Order{}, err
	}

	if order.Status, err = domain.ParseOrderStatus(status); err != nil {
		return domain.Order{}, fmt.Errorf("order %s: %w", order.ID, err)
	}
	if order.TrackingStatus, err = domain.ParseTrackingStatus(tracking); err != nil {
		return domain.Order{}, fmt.Errorf("order %s: %w", order.ID, err)
	}
	order.OrderDate = order.OrderDate.UTC()
	order.UpdatedAt = order.UpdatedAt.UTC()
	if completed.Valid {
		t := completed.Time.UTC()
		order.CompletedDate = &t
	}
	return order, nil
}

var (
	_ domain.OrderRepository = (*orderRepository)(nil)
	_ domain.OrderWriter     = (*orderWriter)(nil)
)
