package postgres

import (
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

func TestIsRetryableTxError(t *testing.T) {
	require.True(t, isRetryableTxError(&pgconn.PgError{Code: pgSerializationFailure}))
	require.True(t, isRetryableTxError(&pgconn.PgError{Code: pgDeadlockDetected}))
	require.False(t, isRetryableTxError(&pgconn.PgError{Code: pgUniqueViolation}))
	require.False(t, isRetryableTxError(nil))
	require.True(t, isUniqueViolation(&pgconn.PgError{Code: pgUniqueViolation}))
	require.True(t, isForeignKeyViolation(&pgconn.PgError{Code: pgForeignKeyViolation}))
}

func TestUnitOfWorkBackoffIsBounded(t *testing.T) {
	u := &UnitOfWork{baseDelay: 10 * time.Millisecond}
	for attempt := 1; attempt <= 20; attempt++ {
		d := u.backoff(attempt)
		require.Greater(t, d, time.Duration(0))
		require.LessOrEqual(t, d, maxTxRetryDelay)
	}
}
