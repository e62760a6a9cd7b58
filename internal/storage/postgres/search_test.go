package postgres

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/bookstore/internal/domain"
)

func TestBuildOrderFilter_Empty(t *testing.T) {
	where, args := buildOrderFilter(domain.OrderQuery{})
	require.Empty(t, where)
	require.Empty(t, args)
}

func TestBuildOrderFilter_ComposesWithAnd(t *testing.T) {
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	minAmount := decimal.RequireFromString("15.50")

	where, args := buildOrderFilter(domain.OrderQuery{
		UserID:           "user-1",
		Statuses:         []domain.OrderStatus{domain.OrderStatusCompleted},
		PlacedFrom:       &from,
		CustomerContains: "50%_off",
		MinAmount:        &minAmount,
	})

	require.Equal(t,
		` WHERE user_id = $1 AND status = ANY($2) AND order_date >= $3 AND user_id ILIKE $4 ESCAPE '\' AND total_amount >= $5`,
		where)
	require.Len(t, args, 5)
	require.Equal(t, []string{"completed"}, args[1])
	require.Equal(t, `%50\%\_off%`, args[3])
}

func TestLikePatternEscapesBackslash(t *testing.T) {
	require.Equal(t, `%a\\b%`, likePattern(`a\b`))
}
