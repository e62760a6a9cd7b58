package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/vladislavdragonenkov/bookstore/internal/domain"
)

var sortColumns = map[domain.OrderSortField]string{
	domain.SortByDate:     "order_date",
	domain.SortByAmount:   "total_amount",
	domain.SortByCustomer: "user_id",
	domain.SortByStatus:   "status",
}

// Search строит выборку по фильтрам запроса; все условия объединяются через AND.
func (r *orderRepository) Search(ctx context.Context, query domain.OrderQuery) (domain.OrderPage, error) {
	q, err := query.Normalize()
	if err != nil {
		return domain.OrderPage{}, err
	}
	ctx, cancel := withOpTimeout(ctx)
	defer cancel()

	where, args := buildOrderFilter(q)

	page := domain.OrderPage{Page: q.Page, PageSize: q.PageSize, Orders: []domain.Order{}}
	if err := r.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders`+where, args...).Scan(&page.Total); err != nil {
		return domain.OrderPage{}, fmt.Errorf("count orders: %w", err)
	}
	if page.Total == 0 || q.Offset() >= page.Total {
		return page, nil
	}

	dir := "DESC"
	if q.SortDirection == domain.SortAsc {
		dir = "ASC"
	}
	stmt := fmt.Sprintf(`SELECT %s FROM orders%s ORDER BY %s %s, id %s LIMIT $%d OFFSET $%d`,
		orderColumns, where, sortColumns[q.SortBy], dir, dir, len(args)+1, len(args)+2)
	args = append(args, q.PageSize, q.Offset())

	rows, err := r.q.QueryContext(ctx, stmt, args...)
	if err != nil {
		return domain.OrderPage{}, fmt.Errorf("search orders: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0, q.PageSize)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return domain.OrderPage{}, fmt.Errorf("scan order row: %w", err)
		}
		page.Orders = append(page.Orders, order)
		ids = append(ids, order.ID)
	}
	if err := rows.Err(); err != nil {
		return domain.OrderPage{}, fmt.Errorf("iterate order rows: %w", err)
	}

	items, err := loadItems(ctx, r.q, ids)
	if err != nil {
		return domain.OrderPage{}, err
	}
	for i := range page.Orders {
		page.Orders[i].Items = items[page.Orders[i].ID]
	}
	return page, nil
}

// buildOrderFilter возвращает " WHERE ..." (или пустую строку) и позиционные аргументы.
func buildOrderFilter(q domain.OrderQuery) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if q.UserID != "" {
		add("user_id = $%d", q.UserID)
	}
	if len(q.Statuses) > 0 {
		statuses := make([]string, 0, len(q.Statuses))
		for _, s := range q.Statuses {
			statuses = append(statuses, string(s))
		}
		add("status = ANY($%d)", statuses)
	}
	if len(q.TrackingStatuses) > 0 {
		tracking := make([]string, 0, len(q.TrackingStatuses))
		for _, s := range q.TrackingStatuses {
			tracking = append(tracking, string(s))
		}
		add("tracking_status = ANY($%d)", tracking)
	}
	if q.PlacedFrom != nil {
		add("order_date >= $%d", q.PlacedFrom.UTC())
	}
	if q.PlacedTo != nil {
		add("order_date <= $%d", q.PlacedTo.UTC())
	}
	if q.CustomerContains != "" {
		add(`user_id ILIKE $%d ESCAPE '\'`, likePattern(q.CustomerContains))
	}
	if q.OrderIDContains != "" {
		add(`id ILIKE $%d ESCAPE '\'`, likePattern(q.OrderIDContains))
	}
	if q.MinAmount != nil {
		add("total_amount >= $%d", *q.MinAmount)
	}
	if q.MaxAmount != nil {
		add("total_amount <= $%d", *q.MaxAmount)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func likePattern(substr string) string {
	return "%" + likeEscaper.Replace(substr) + "%"
}
