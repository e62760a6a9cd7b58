package grpcapi

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/vladislavdragonenkov/bookstore/internal/domain"
)

func TestToStatus(t *testing.T) {
	cases := []struct {
		err  error
		code codes.Code
	}{
		{&domain.BookNotFoundError{BookID: "b1"}, codes.NotFound},
		{domain.ErrOrderNotFound, codes.NotFound},
		{&domain.StockError{BookID: "b1", Requested: 2, Available: 1}, codes.FailedPrecondition},
		{domain.ErrOrderAlreadyCancelled, codes.FailedPrecondition},
		{fmt.Errorf("cancel: %w", domain.ErrCancellationWindowExpired), codes.FailedPrecondition},
		{domain.ErrTransactionConflict, codes.Aborted},
		{domain.ErrIdempotencyInProgress, codes.Aborted},
		{domain.ErrIdempotencyHashMismatch, codes.AlreadyExists},
		{fmt.Errorf("%w: bad sort", domain.ErrInvalidQuery), codes.InvalidArgument},
		{domain.ErrInvalidTrackingStatus, codes.InvalidArgument},
		{fmt.Errorf("%w: delivery.phone", domain.ErrDeliveryInfoInvalid), codes.InvalidArgument},
		{context.DeadlineExceeded, codes.DeadlineExceeded},
		{status.Error(codes.Unavailable, "down"), codes.Unavailable},
		{errors.New("connection reset by peer"), codes.Internal},
	}
	for _, tc := range cases {
		t.Run(tc.err.Error(), func(t *testing.T) {
			require.Equal(t, tc.code, status.Code(toStatus(tc.err)))
		})
	}
	require.NoError(t, toStatus(nil))
}

func TestToStatusHidesInternalErrors(t *testing.T) {
	st := status.Convert(toStatus(errors.New("pq: password authentication failed")))
	require.Equal(t, "internal error", st.Message())
}

func TestDecodeFailureFallsBackToStatusCode(t *testing.T) {
	err := decodeFailure(domain.IdempotencyRecord{StatusCode: int(codes.NotFound), ResponseBody: []byte("garbage")})
	require.Equal(t, codes.NotFound, status.Code(err))
	require.Equal(t, replayFailedMessage, status.Convert(err).Message())

	err = decodeFailure(domain.IdempotencyRecord{})
	require.Equal(t, codes.Internal, status.Code(err))
}
